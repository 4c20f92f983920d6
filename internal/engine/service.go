// Package engine runs progression and breeding requests against a store.
// Every check-then-act sequence executes inside one storage.Store.Atomic
// call keyed on the agents it touches.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"gyeol/internal/genetics"
	"gyeol/internal/model"
	"gyeol/internal/storage"
)

var (
	ErrAgentNotFound   = errors.New("agent not found")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrCounterDecrease = errors.New("progression counters cannot decrease")
)

var requestValidate = validator.New()

// CompatibilitySource supplies pair compatibility scores. storage.Store
// satisfies it.
type CompatibilitySource interface {
	GetCompatibility(ctx context.Context, agentA, agentB string) (int, bool, error)
}

type Config struct {
	Store storage.Store
	// Compatibility overrides the store as the source of pair scores.
	Compatibility CompatibilitySource
	Logger        *slog.Logger
	// Seed, when non-zero, seeds one generator per Service that hands each
	// request its own seed, so a fresh Service replays the same sequence of
	// requests identically. Zero draws a fresh seed from crypto/rand per
	// request.
	Seed int64
	// RandomSource overrides Seed. It is called once per transaction run.
	RandomSource func() genetics.RandomSource
	Now          func() time.Time
	NewID        func() string
}

type Service struct {
	store  storage.Store
	compat CompatibilitySource
	logger *slog.Logger
	// random returns the source factory for one request. The factory is
	// called once per transaction run, so a retried run replays the same
	// draws.
	random func() (func() genetics.RandomSource, error)
	seedMu sync.Mutex
	now    func() time.Time
	newID  func() string

	mu      sync.Mutex
	started bool
}

func NewService(cfg Config) *Service {
	s := &Service{
		store:  cfg.Store,
		compat: cfg.Compatibility,
		logger: cfg.Logger,
		now:    cfg.Now,
		newID:  cfg.NewID,
	}
	if s.compat == nil && cfg.Store != nil {
		s.compat = cfg.Store
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	switch {
	case cfg.RandomSource != nil:
		s.random = func() (func() genetics.RandomSource, error) { return cfg.RandomSource, nil }
	case cfg.Seed != 0:
		seeds := genetics.NewSource(cfg.Seed)
		s.random = func() (func() genetics.RandomSource, error) {
			s.seedMu.Lock()
			seed := seeds.Int63()
			s.seedMu.Unlock()
			return seededFactory(seed), nil
		}
	default:
		s.random = func() (func() genetics.RandomSource, error) {
			seed, err := genetics.NewSeed()
			if err != nil {
				return nil, err
			}
			return seededFactory(seed), nil
		}
	}
	return s
}

// Init initializes the backing store once.
func (s *Service) Init(ctx context.Context) error {
	if s.store == nil {
		return fmt.Errorf("store is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if err := s.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	s.started = true
	return nil
}

func (s *Service) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Close releases the backing store.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	return storage.CloseIfSupported(s.store)
}

func seededFactory(seed int64) func() genetics.RandomSource {
	return func() genetics.RandomSource { return genetics.NewSource(seed) }
}

func validateRequest(req any) error {
	if err := requestValidate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// persistence classifies err as an infrastructure failure unless it already
// carries a domain classification.
func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrAgentNotFound) || errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrCounterDecrease) || errors.Is(err, model.ErrPersistence) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, model.ErrPersistence, err)
}

type agentReader interface {
	GetAgent(ctx context.Context, id string) (model.Agent, bool, error)
}

func loadAgent(ctx context.Context, r agentReader, id string) (model.Agent, error) {
	agent, ok, err := r.GetAgent(ctx, id)
	if err != nil {
		return model.Agent{}, persistence("load agent "+id, err)
	}
	if !ok {
		return model.Agent{}, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return agent, nil
}
