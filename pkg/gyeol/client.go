// Package gyeol is the embeddable entry point to the progression and
// breeding engine.
package gyeol

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"gyeol/internal/api"
	"gyeol/internal/breeding"
	"gyeol/internal/engine"
	"gyeol/internal/genetics"
	"gyeol/internal/model"
	"gyeol/internal/progression"
	"gyeol/internal/storage"
)

const defaultDBPath = "gyeol.db"

type (
	Agent               = model.Agent
	TraitVector         = model.TraitVector
	ProgressionCounters = model.ProgressionCounters
	BreedingAttempt     = model.BreedingAttempt
	Rejection           = model.Rejection
	RandomSource        = genetics.RandomSource

	ProgressStatus = progression.Status
	Eligibility    = breeding.Eligibility

	CreateAgentRequest   = engine.CreateAgentRequest
	CountersRequest      = engine.CountersRequest
	CompatibilityRequest = engine.CompatibilityRequest
	EligibilityRequest   = engine.EligibilityRequest
	EvolveRequest        = engine.EvolveRequest
	EvolveResponse       = engine.EvolveResponse
	BreedRequest         = engine.BreedRequest
	BreedResponse        = engine.BreedResponse
)

var (
	ErrAgentNotFound   = engine.ErrAgentNotFound
	ErrInvalidRequest  = engine.ErrInvalidRequest
	ErrCounterDecrease = engine.ErrCounterDecrease
	ErrPersistence     = model.ErrPersistence
	ErrNotEligible     = model.ErrNotEligible
	ErrOnCooldown      = model.ErrOnCooldown
	ErrRollFailed      = model.ErrRollFailed
)

type Options struct {
	// StoreKind is memory, badger or sqlite. Empty picks the build default.
	StoreKind string
	DBPath    string
	Logger    *slog.Logger

	// Seed makes a fresh client replay the same sequence of breeding
	// requests identically; each request still draws its own seed from it.
	// Zero seeds each request from crypto/rand.
	Seed int64

	RandomSource    func() RandomSource
	ConflictRetries int
	Now             func() time.Time
}

type Client struct {
	store   storage.Store
	service *engine.Service
	logger  *slog.Logger

	mu      sync.Mutex
	started bool
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStore(storeKind, storage.Options{
		Path:            dbPath,
		Logger:          logger,
		ConflictRetries: opts.ConflictRetries,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		store:  store,
		logger: logger,
		service: engine.NewService(engine.Config{
			Store:        store,
			Logger:       logger,
			Seed:         opts.Seed,
			RandomSource: opts.RandomSource,
			Now:          opts.Now,
		}),
	}, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	started := c.started
	c.started = false
	c.mu.Unlock()
	if started {
		return c.service.Close()
	}
	return storage.CloseIfSupported(c.store)
}

// Init opens the store. Every other method calls it on first use.
func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensureService(ctx)
	return err
}

// Handler serves the HTTP API backed by this client.
func (c *Client) Handler(ctx context.Context) (http.Handler, error) {
	svc, err := c.ensureService(ctx)
	if err != nil {
		return nil, err
	}
	return api.NewRouter(svc, c.logger), nil
}

func (c *Client) CreateAgent(ctx context.Context, req CreateAgentRequest) (Agent, error) {
	svc, err := c.ensureService(ctx)
	if err != nil {
		return Agent{}, err
	}
	return svc.CreateAgent(ctx, req)
}

func (c *Client) GetAgent(ctx context.Context, id string) (Agent, error) {
	svc, err := c.ensureService(ctx)
	if err != nil {
		return Agent{}, err
	}
	return svc.GetAgent(ctx, id)
}

func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	svc, err := c.ensureService(ctx)
	if err != nil {
		return nil, err
	}
	return svc.ListAgents(ctx)
}

func (c *Client) RecordCounters(ctx context.Context, req CountersRequest) (Agent, error) {
	svc, err := c.ensureService(ctx)
	if err != nil {
		return Agent{}, err
	}
	return svc.RecordCounters(ctx, req)
}

func (c *Client) SetCompatibility(ctx context.Context, req CompatibilityRequest) error {
	svc, err := c.ensureService(ctx)
	if err != nil {
		return err
	}
	return svc.SetCompatibility(ctx, req)
}

func (c *Client) Progress(ctx context.Context, agentID string) (ProgressStatus, error) {
	svc, err := c.ensureService(ctx)
	if err != nil {
		return ProgressStatus{}, err
	}
	return svc.Progress(ctx, agentID)
}

func (c *Client) Evolve(ctx context.Context, req EvolveRequest) (EvolveResponse, error) {
	svc, err := c.ensureService(ctx)
	if err != nil {
		return EvolveResponse{}, err
	}
	return svc.Evolve(ctx, req)
}

func (c *Client) Eligibility(ctx context.Context, req EligibilityRequest) (Eligibility, error) {
	svc, err := c.ensureService(ctx)
	if err != nil {
		return Eligibility{}, err
	}
	return svc.Eligibility(ctx, req)
}

func (c *Client) Breed(ctx context.Context, req BreedRequest) (BreedResponse, error) {
	svc, err := c.ensureService(ctx)
	if err != nil {
		return BreedResponse{}, err
	}
	return svc.Breed(ctx, req)
}

// Attempts lists the breeding attempts naming agentID, newest first. A
// non-positive limit returns them all.
func (c *Client) Attempts(ctx context.Context, agentID string, limit int) ([]BreedingAttempt, error) {
	svc, err := c.ensureService(ctx)
	if err != nil {
		return nil, err
	}
	return svc.ListAttempts(ctx, agentID, limit)
}

func (c *Client) ensureService(ctx context.Context) (*engine.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return c.service, nil
	}
	if err := c.service.Init(ctx); err != nil {
		return nil, err
	}
	c.started = true
	return c.service, nil
}
