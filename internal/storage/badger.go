package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"gyeol/internal/model"
)

// DefaultConflictRetries bounds how often Atomic re-runs fn after losing an
// optimistic commit race.
const DefaultConflictRetries = 16

var ErrTooManyConflicts = errors.New("transaction conflict retries exhausted")

var (
	agentPrefix   = []byte("agent\x00")
	compatPrefix  = []byte("compat\x00")
	attemptPrefix = []byte("attempt\x00")
	guardPrefix   = []byte("guard\x00")
	attemptSeqKey = []byte("seq\x00attempt")
)

type BadgerOptions struct {
	// Path is the database directory. Empty opens an in-memory database.
	Path            string
	Logger          *slog.Logger
	ConflictRetries int
}

// BadgerStore keeps every record as a key in one badger keyspace. Attempts
// are indexed under each parent by creation time and append sequence.
//
// Atomic relies on badger's optimistic transactions: each key passed to it
// has a guard record that fn's transaction reads and rewrites, so two
// transactions sharing a key cannot both commit. The loser is re-run from
// scratch.
type BadgerStore struct {
	opts BadgerOptions

	mu  sync.RWMutex
	db  *badger.DB
	seq *badger.Sequence
}

func NewBadgerStore(opts BadgerOptions) *BadgerStore {
	if opts.ConflictRetries <= 0 {
		opts.ConflictRetries = DefaultConflictRetries
	}
	return &BadgerStore{opts: opts}
}

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (s *BadgerStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	var opts badger.Options
	if s.opts.Path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(s.opts.Path, 0o750); err != nil {
			return fmt.Errorf("create database directory %s: %w", s.opts.Path, err)
		}
		opts = badger.DefaultOptions(s.opts.Path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if s.opts.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: s.opts.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("open badger database: %w", err)
	}
	seq, err := db.GetSequence(attemptSeqKey, 64)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("open attempt sequence: %w", err)
	}

	s.db = db
	s.seq = seq
	return nil
}

func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	seqErr := s.seq.Release()
	err := s.db.Close()
	s.db = nil
	s.seq = nil
	return errors.Join(seqErr, err)
}

func (s *BadgerStore) handles() (*badger.DB, *badger.Sequence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, nil, ErrNotInitialized
	}
	return s.db, s.seq, nil
}

func (s *BadgerStore) view(ctx context.Context, fn func(t *badgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db, seq, err := s.handles()
	if err != nil {
		return err
	}
	return db.View(func(txn *badger.Txn) error {
		return fn(&badgerTx{txn: txn, seq: seq})
	})
}

func (s *BadgerStore) update(ctx context.Context, fn func(t *badgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db, seq, err := s.handles()
	if err != nil {
		return err
	}
	return db.Update(func(txn *badger.Txn) error {
		return fn(&badgerTx{txn: txn, seq: seq})
	})
}

func (s *BadgerStore) GetAgent(ctx context.Context, id string) (agent model.Agent, ok bool, err error) {
	err = s.view(ctx, func(t *badgerTx) error {
		agent, ok, err = t.GetAgent(ctx, id)
		return err
	})
	return agent, ok, err
}

func (s *BadgerStore) SaveAgent(ctx context.Context, agent model.Agent) error {
	return s.update(ctx, func(t *badgerTx) error {
		return t.SaveAgent(ctx, agent)
	})
}

func (s *BadgerStore) ListAgents(ctx context.Context) ([]model.Agent, error) {
	var out []model.Agent
	err := s.view(ctx, func(t *badgerTx) error {
		it := t.txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(agentPrefix); it.ValidForPrefix(agentPrefix); it.Next() {
			payload, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			agent, err := DecodeAgent(payload)
			if err != nil {
				return err
			}
			out = append(out, agent)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortAgents(out)
	return out, nil
}

func (s *BadgerStore) SaveCompatibility(ctx context.Context, agentA, agentB string, score int) error {
	if err := validatePair(agentA, agentB, score); err != nil {
		return err
	}
	return s.update(ctx, func(t *badgerTx) error {
		return t.txn.Set(compatKey(agentA, agentB), []byte(strconv.Itoa(score)))
	})
}

func (s *BadgerStore) GetCompatibility(ctx context.Context, agentA, agentB string) (score int, ok bool, err error) {
	err = s.view(ctx, func(t *badgerTx) error {
		score, ok, err = t.GetCompatibility(ctx, agentA, agentB)
		return err
	})
	return score, ok, err
}

func (s *BadgerStore) ListAttempts(ctx context.Context, agentID string, limit int) ([]model.BreedingAttempt, error) {
	var out []model.BreedingAttempt
	err := s.view(ctx, func(t *badgerTx) error {
		return t.scanAttempts(agentID, func(attempt model.BreedingAttempt) bool {
			out = append(out, attempt)
			return limit <= 0 || len(out) < limit
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerStore) MostRecentAttempt(ctx context.Context, agentIDs []string) (attempt model.BreedingAttempt, ok bool, err error) {
	err = s.view(ctx, func(t *badgerTx) error {
		attempt, ok, err = t.MostRecentAttempt(ctx, agentIDs)
		return err
	})
	return attempt, ok, err
}

func (s *BadgerStore) Append(ctx context.Context, attempt model.BreedingAttempt) error {
	return s.update(ctx, func(t *badgerTx) error {
		return t.Append(ctx, attempt)
	})
}

// Atomic runs fn in a read-write transaction guarded on keys, retrying the
// whole of fn when the commit loses to a concurrent transaction.
func (s *BadgerStore) Atomic(ctx context.Context, keys []string, fn func(tx Tx) error) error {
	guards := uniqueSorted(keys)
	for attempt := 0; attempt <= s.opts.ConflictRetries; attempt++ {
		err := s.update(ctx, func(t *badgerTx) error {
			for _, key := range guards {
				if err := t.touchGuard(key); err != nil {
					return err
				}
			}
			return fn(t)
		})
		if errors.Is(err, badger.ErrConflict) {
			if s.opts.Logger != nil {
				s.opts.Logger.Debug("badger transaction conflict, retrying", "attempt", attempt+1, "keys", guards)
			}
			continue
		}
		return err
	}
	return fmt.Errorf("%w after %d attempts", ErrTooManyConflicts, s.opts.ConflictRetries+1)
}

type badgerTx struct {
	txn *badger.Txn
	seq *badger.Sequence
}

func (t *badgerTx) touchGuard(key string) error {
	guard := append(append([]byte(nil), guardPrefix...), key...)
	var version uint64
	item, err := t.txn.Get(guard)
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return err
	default:
		if err := item.Value(func(val []byte) error {
			if len(val) == 8 {
				version = binary.BigEndian.Uint64(val)
			}
			return nil
		}); err != nil {
			return err
		}
	}
	next := make([]byte, 8)
	binary.BigEndian.PutUint64(next, version+1)
	return t.txn.Set(guard, next)
}

func (t *badgerTx) GetAgent(_ context.Context, id string) (model.Agent, bool, error) {
	item, err := t.txn.Get(agentKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return model.Agent{}, false, nil
	}
	if err != nil {
		return model.Agent{}, false, err
	}
	payload, err := item.ValueCopy(nil)
	if err != nil {
		return model.Agent{}, false, err
	}
	agent, err := DecodeAgent(payload)
	if err != nil {
		return model.Agent{}, false, err
	}
	return agent, true, nil
}

func (t *badgerTx) SaveAgent(_ context.Context, agent model.Agent) error {
	payload, err := EncodeAgent(agent)
	if err != nil {
		return err
	}
	return t.txn.Set(agentKey(agent.ID), payload)
}

func (t *badgerTx) GetCompatibility(_ context.Context, agentA, agentB string) (int, bool, error) {
	item, err := t.txn.Get(compatKey(agentA, agentB))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	var score int
	err = item.Value(func(val []byte) error {
		score, err = strconv.Atoi(string(val))
		return err
	})
	if err != nil {
		return 0, false, fmt.Errorf("decode compatibility score: %w", err)
	}
	return score, true, nil
}

func (t *badgerTx) MostRecentAttempt(_ context.Context, agentIDs []string) (model.BreedingAttempt, bool, error) {
	var (
		best      model.BreedingAttempt
		bestOrder []byte
		found     bool
	)
	for _, id := range agentIDs {
		err := t.scanAttemptKeys(id, func(key []byte, attempt model.BreedingAttempt) bool {
			order := attemptOrder(key, id)
			if !found || bytes.Compare(order, bestOrder) > 0 {
				best, bestOrder, found = attempt, order, true
			}
			return false
		})
		if err != nil {
			return model.BreedingAttempt{}, false, err
		}
	}
	return best, found, nil
}

func (t *badgerTx) Append(_ context.Context, attempt model.BreedingAttempt) error {
	seq, err := t.seq.Next()
	if err != nil {
		return fmt.Errorf("next attempt sequence: %w", err)
	}
	payload, err := EncodeAttempt(attempt)
	if err != nil {
		return err
	}
	if err := t.txn.Set(attemptKey(attempt.ParentAID, attempt, seq), payload); err != nil {
		return err
	}
	if attempt.ParentBID == attempt.ParentAID {
		return nil
	}
	return t.txn.Set(attemptKey(attempt.ParentBID, attempt, seq), payload)
}

func (t *badgerTx) scanAttempts(agentID string, yield func(model.BreedingAttempt) bool) error {
	return t.scanAttemptKeys(agentID, func(_ []byte, attempt model.BreedingAttempt) bool {
		return yield(attempt)
	})
}

// scanAttemptKeys walks agentID's attempt index newest first.
func (t *badgerTx) scanAttemptKeys(agentID string, yield func(key []byte, attempt model.BreedingAttempt) bool) error {
	prefix := attemptIndexPrefix(agentID)
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.Prefix = prefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	seek := append(append([]byte(nil), prefix...), 0xFF)
	for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		payload, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		attempt, err := DecodeAttempt(payload)
		if err != nil {
			return err
		}
		if !yield(item.KeyCopy(nil), attempt) {
			return nil
		}
	}
	return nil
}

func agentKey(id string) []byte {
	return append(append([]byte(nil), agentPrefix...), id...)
}

func compatKey(agentA, agentB string) []byte {
	lo, hi := orderedPair(agentA, agentB)
	key := append(append([]byte(nil), compatPrefix...), lo...)
	key = append(key, 0)
	return append(key, hi...)
}

func attemptIndexPrefix(agentID string) []byte {
	key := append(append([]byte(nil), attemptPrefix...), agentID...)
	return append(key, 0)
}

// attemptKey sorts by creation time, then append sequence. The time is
// offset so pre-1970 timestamps still order correctly as unsigned bytes.
func attemptKey(agentID string, attempt model.BreedingAttempt, seq uint64) []byte {
	key := attemptIndexPrefix(agentID)
	var order [16]byte
	binary.BigEndian.PutUint64(order[:8], uint64(attempt.CreatedAt.UnixNano())^(1<<63))
	binary.BigEndian.PutUint64(order[8:], seq)
	key = append(key, order[:]...)
	return append(key, attempt.ID...)
}

// attemptOrder strips the per-agent prefix so keys from different indexes
// compare by time and sequence.
func attemptOrder(key []byte, agentID string) []byte {
	return key[len(attemptIndexPrefix(agentID)):]
}
