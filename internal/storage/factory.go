package storage

import (
	"fmt"
	"log/slog"
)

const (
	KindMemory = "memory"
	KindBadger = "badger"
	KindSQLite = "sqlite"
)

type Options struct {
	// Path is the sqlite file or badger directory. Ignored by memory.
	Path            string
	Logger          *slog.Logger
	ConflictRetries int
}

func NewStore(kind string, opts Options) (Store, error) {
	switch kind {
	case "", KindMemory:
		return NewMemoryStore(), nil
	case KindBadger:
		return NewBadgerStore(BadgerOptions{
			Path:            opts.Path,
			Logger:          opts.Logger,
			ConflictRetries: opts.ConflictRetries,
		}), nil
	case KindSQLite:
		return newSQLiteStore(opts.Path)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

// DefaultStoreKind is sqlite in builds tagged sqlite and memory otherwise.
func DefaultStoreKind() string {
	return defaultStoreKind
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
