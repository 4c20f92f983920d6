package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gyeol/internal/breeding"
	"gyeol/internal/genetics"
	"gyeol/internal/model"
	"gyeol/internal/progression"
	"gyeol/internal/storage"
	"gyeol/internal/testkit"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	svc   *Service
	store storage.Store
	clock *fakeClock
}

func newHarness(t *testing.T, store storage.Store, random func() genetics.RandomSource) *harness {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)}
	n := 0
	var idMu sync.Mutex
	svc := NewService(Config{
		Store:        store,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		RandomSource: random,
		Now:          clock.Now,
		NewID: func() string {
			idMu.Lock()
			defer idMu.Unlock()
			n++
			return fmt.Sprintf("id-%03d", n)
		},
	})
	require.NoError(t, svc.Init(context.Background()))
	t.Cleanup(func() {
		_ = svc.Close()
	})
	return &harness{svc: svc, store: store, clock: clock}
}

func alwaysSucceed() genetics.RandomSource {
	return testkit.NewScriptedSource(forcedDraws(0.9)...)
}

func forcedDraws(mutation ...float64) []float64 {
	draws := []float64{0.10}
	draws = append(draws, testkit.BlendDraws(0.5)...)
	return append(draws, mutation...)
}

// seedAgent stores an agent at gen with the given traits.
func (h *harness) seedAgent(t *testing.T, id, name string, gen int, traits model.TraitVector) model.Agent {
	t.Helper()
	agent := model.NewAgent(id, name, "owner-"+id, h.clock.Now().Add(-90*24*time.Hour))
	agent.Generation = gen
	agent.Traits = traits
	agent.Visual = model.VisualFor(traits)
	require.NoError(t, h.store.SaveAgent(context.Background(), agent))
	return agent
}

func (h *harness) seedPair(t *testing.T, compat int) (model.Agent, model.Agent) {
	t.Helper()
	a := h.seedAgent(t, "parent-a", "Hana", 3, model.TraitVector{Warmth: 80, Logic: 40, Creativity: 70, Energy: 50, Humor: 90})
	b := h.seedAgent(t, "parent-b", "Doyun", 3, model.TraitVector{Warmth: 65, Logic: 60, Creativity: 55, Energy: 70, Humor: 45})
	require.NoError(t, h.store.SaveCompatibility(context.Background(), a.ID, b.ID, compat))
	return a, b
}

func memoryStore() storage.Store { return storage.NewMemoryStore() }

func badgerStore() storage.Store { return storage.NewBadgerStore(storage.BadgerOptions{}) }

var backends = map[string]func() storage.Store{
	"memory": memoryStore,
	"badger": badgerStore,
}

func TestBreedForcedSuccess(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memoryStore(), func() genetics.RandomSource {
		return testkit.NewScriptedSource(forcedDraws(0.05, 0.5, 0.25)...)
	})
	a, b := h.seedPair(t, 65)

	resp, err := h.svc.Breed(ctx, BreedRequest{AgentAID: a.ID, AgentBID: b.ID, OwnerID: "owner-x"})
	require.NoError(t, err)
	require.True(t, resp.Success, resp.Message)
	require.NotNil(t, resp.Child)
	assert.Equal(t, 3, resp.Child.Generation)
	assert.Equal(t, 83, resp.Child.Traits.Creativity)
	assert.Equal(t, "owner-x", resp.Child.OwnerID)
	require.NotNil(t, resp.MutatedTrait)
	assert.Equal(t, model.TraitCreativity, *resp.MutatedTrait)

	child, err := h.svc.GetAgent(ctx, resp.Child.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.Child.Traits, child.Traits)

	attempts, err := h.svc.ListAttempts(ctx, a.ID, 0)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.True(t, attempts[0].Success)
	assert.Equal(t, resp.Child.ID, *attempts[0].ChildID)

	// parents are untouched
	reloaded, err := h.svc.GetAgent(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Traits, reloaded.Traits)
	assert.Equal(t, a.Generation, reloaded.Generation)
}

func TestBreedLowCompatibilityWritesNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memoryStore(), alwaysSucceed)
	a, b := h.seedPair(t, 40)

	resp, err := h.svc.Breed(ctx, BreedRequest{AgentAID: a.ID, AgentBID: b.ID})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Rejection)
	assert.Equal(t, model.CodeNotEligible, resp.Rejection.Code)
	assert.Contains(t, resp.Message, "50")

	attempts, err := h.svc.ListAttempts(ctx, a.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, attempts)
}

func TestBreedMissingCompatibilityCountsAsZero(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memoryStore(), alwaysSucceed)
	a := h.seedAgent(t, "a", "Ari", 2, model.NeutralTraits())
	b := h.seedAgent(t, "b", "Bom", 2, model.NeutralTraits())

	resp, err := h.svc.Breed(ctx, BreedRequest{AgentAID: a.ID, AgentBID: b.ID})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "current: 0")
}

func TestBreedCooldownThenRecovery(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memoryStore(), func() genetics.RandomSource {
		return testkit.NewScriptedSource(0.95)
	})
	a, b := h.seedPair(t, 90)

	failed, err := h.svc.Breed(ctx, BreedRequest{AgentAID: a.ID, AgentBID: b.ID})
	require.NoError(t, err)
	require.NotNil(t, failed.Rejection)
	assert.Equal(t, model.CodeRollFailed, failed.Rejection.Code)

	h.clock.Advance(24 * time.Hour)
	verdict, err := h.svc.Eligibility(ctx, EligibilityRequest{AgentAID: b.ID, AgentBID: a.ID})
	require.NoError(t, err)
	assert.False(t, verdict.Eligible)
	assert.Equal(t, 48, verdict.Rejection.RemainingHours)

	cooling, err := h.svc.Breed(ctx, BreedRequest{AgentAID: a.ID, AgentBID: b.ID})
	require.NoError(t, err)
	assert.Equal(t, model.CodeOnCooldown, cooling.Rejection.Code)

	h.clock.Advance(48 * time.Hour)
	verdict, err = h.svc.Eligibility(ctx, EligibilityRequest{AgentAID: a.ID, AgentBID: b.ID})
	require.NoError(t, err)
	assert.True(t, verdict.Eligible)

	attempts, err := h.svc.ListAttempts(ctx, b.ID, 0)
	require.NoError(t, err)
	assert.Len(t, attempts, 1, "rejections are not recorded")
}

func TestBreedUnknownAgent(t *testing.T) {
	h := newHarness(t, memoryStore(), alwaysSucceed)
	a := h.seedAgent(t, "a", "Ari", 2, model.NeutralTraits())

	_, err := h.svc.Breed(context.Background(), BreedRequest{AgentAID: a.ID, AgentBID: "ghost"})
	require.ErrorIs(t, err, ErrAgentNotFound)
	assert.False(t, errors.Is(err, model.ErrPersistence))

	_, err = h.svc.Breed(context.Background(), BreedRequest{AgentAID: a.ID})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestConcurrentBreedSharingParent(t *testing.T) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t, open(), alwaysSucceed)
			shared := h.seedAgent(t, "shared", "Sora", 2, model.NeutralTraits())
			partners := make([]model.Agent, 4)
			for i := range partners {
				partners[i] = h.seedAgent(t, fmt.Sprintf("partner-%d", i), "Partner", 2, model.NeutralTraits())
				require.NoError(t, h.store.SaveCompatibility(ctx, shared.ID, partners[i].ID, 80))
			}

			const calls = 8
			var wg sync.WaitGroup
			results := make(chan BreedResponse, calls)
			errs := make(chan error, calls)
			for i := 0; i < calls; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					resp, err := h.svc.Breed(ctx, BreedRequest{AgentAID: shared.ID, AgentBID: partners[i%len(partners)].ID})
					if err != nil {
						errs <- err
						return
					}
					results <- resp
				}(i)
			}
			wg.Wait()
			close(results)
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			successes := 0
			for resp := range results {
				if resp.Success {
					successes++
					continue
				}
				require.NotNil(t, resp.Rejection)
				assert.Equal(t, model.CodeOnCooldown, resp.Rejection.Code)
			}
			assert.Equal(t, 1, successes)

			attempts, err := h.svc.ListAttempts(ctx, shared.ID, 0)
			require.NoError(t, err)
			assert.Len(t, attempts, 1)
		})
	}
}

func TestEvolveAdvancesOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memoryStore(), alwaysSucceed)
	agent, err := h.svc.CreateAgent(ctx, CreateAgentRequest{Name: "  Nabi ", OwnerID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "Nabi", agent.Name)
	assert.Equal(t, 1, agent.Generation)

	req, _ := progression.RequirementFor(2)
	updated, err := h.svc.RecordCounters(ctx, CountersRequest{AgentID: agent.ID, Counters: model.ProgressionCounters{
		Conversations: req.Conversations, UniqueTopics: req.UniqueTopics, Memories: req.Memories,
		Intimacy: req.Intimacy, ConsecutiveDays: req.ConsecutiveDays,
	}})
	require.NoError(t, err)
	assert.Equal(t, 100, updated.EvolutionProgress)

	resp, err := h.svc.Evolve(ctx, EvolveRequest{AgentID: agent.ID})
	require.NoError(t, err)
	assert.True(t, resp.Evolved)
	assert.Equal(t, 2, resp.Agent.Generation)
	assert.Zero(t, resp.Agent.EvolutionProgress)
	assert.True(t, resp.Status.AllMet)

	again, err := h.svc.Evolve(ctx, EvolveRequest{AgentID: agent.ID})
	require.NoError(t, err)
	assert.False(t, again.Evolved)
	require.NotNil(t, again.Rejection)
	assert.ErrorIs(t, again.Rejection, model.ErrNotEligible)
	assert.Equal(t, 2, again.Agent.Generation)

	status, err := h.svc.Progress(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, status.TargetGeneration)
}

func TestConcurrentEvolveAdvancesOneGeneration(t *testing.T) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t, open(), alwaysSucceed)
			req, _ := progression.RequirementFor(2)
			agent := model.NewAgent("evolver", "Evo", "", h.clock.Now())
			agent.Counters = model.ProgressionCounters{
				Conversations: req.Conversations, UniqueTopics: req.UniqueTopics, Memories: req.Memories,
				Intimacy: req.Intimacy, ConsecutiveDays: req.ConsecutiveDays,
			}
			require.NoError(t, h.store.SaveAgent(ctx, agent))

			const calls = 8
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				evolved int
			)
			for i := 0; i < calls; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					resp, err := h.svc.Evolve(ctx, EvolveRequest{AgentID: agent.ID})
					assert.NoError(t, err)
					if resp.Evolved {
						mu.Lock()
						evolved++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, 1, evolved)
			final, err := h.svc.GetAgent(ctx, agent.ID)
			require.NoError(t, err)
			assert.Equal(t, 2, final.Generation)
		})
	}
}

func TestEvolveTerminalGeneration(t *testing.T) {
	h := newHarness(t, memoryStore(), alwaysSucceed)
	h.seedAgent(t, "top", "Top", model.MaxGeneration, model.NeutralTraits())

	resp, err := h.svc.Evolve(context.Background(), EvolveRequest{AgentID: "top"})
	require.NoError(t, err)
	assert.False(t, resp.Evolved)
	assert.True(t, resp.Status.Terminal)
	assert.Equal(t, model.MaxGeneration, resp.Agent.Generation)
}

func TestRecordCountersRejectsDecrease(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memoryStore(), alwaysSucceed)
	agent := h.seedAgent(t, "a", "Ari", 1, model.NeutralTraits())

	_, err := h.svc.RecordCounters(ctx, CountersRequest{AgentID: agent.ID, Counters: model.ProgressionCounters{Conversations: 10, Memories: 4}})
	require.NoError(t, err)

	_, err = h.svc.RecordCounters(ctx, CountersRequest{AgentID: agent.ID, Counters: model.ProgressionCounters{Conversations: 9, Memories: 4}})
	require.ErrorIs(t, err, ErrCounterDecrease)
	assert.Contains(t, err.Error(), progression.LabelConversations)

	_, err = h.svc.RecordCounters(ctx, CountersRequest{AgentID: agent.ID, Counters: model.ProgressionCounters{Conversations: -1}})
	require.ErrorIs(t, err, ErrInvalidRequest)

	stored, err := h.svc.GetAgent(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, stored.Counters.Conversations)
}

func TestRecordCountersAtTopGenerationReadsComplete(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memoryStore(), alwaysSucceed)
	h.seedAgent(t, "top", "Top", model.MaxGeneration, model.NeutralTraits())

	updated, err := h.svc.RecordCounters(ctx, CountersRequest{AgentID: "top", Counters: model.ProgressionCounters{Conversations: 3}})
	require.NoError(t, err)
	assert.Equal(t, 100, updated.EvolutionProgress)

	stored, err := h.svc.GetAgent(ctx, "top")
	require.NoError(t, err)
	assert.Equal(t, 100, stored.EvolutionProgress)
}

func TestSetCompatibilityValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, memoryStore(), alwaysSucceed)
	h.seedAgent(t, "a", "Ari", 2, model.NeutralTraits())
	h.seedAgent(t, "b", "Bom", 2, model.NeutralTraits())

	require.NoError(t, h.svc.SetCompatibility(ctx, CompatibilityRequest{AgentAID: "a", AgentBID: "b", Score: 70}))
	require.ErrorIs(t, h.svc.SetCompatibility(ctx, CompatibilityRequest{AgentAID: "a", AgentBID: "a", Score: 70}), ErrInvalidRequest)
	require.ErrorIs(t, h.svc.SetCompatibility(ctx, CompatibilityRequest{AgentAID: "a", AgentBID: "b", Score: 101}), ErrInvalidRequest)
	require.ErrorIs(t, h.svc.SetCompatibility(ctx, CompatibilityRequest{AgentAID: "a", AgentBID: "zzz", Score: 70}), ErrAgentNotFound)

	verdict, err := h.svc.Eligibility(ctx, EligibilityRequest{AgentAID: "b", AgentBID: "a"})
	require.NoError(t, err)
	assert.Equal(t, breeding.Eligibility{Eligible: true, Reason: "eligible for breeding"}, verdict)
}

type failingStore struct {
	storage.Store
	err error
}

func (f failingStore) Atomic(context.Context, []string, func(storage.Tx) error) error {
	return f.err
}

func TestPersistenceFailuresAreClassified(t *testing.T) {
	ctx := context.Background()
	inner := storage.NewMemoryStore()
	h := newHarness(t, failingStore{Store: inner, err: errors.New("disk full")}, alwaysSucceed)
	h.seedPair(t, 80)

	_, err := h.svc.Breed(ctx, BreedRequest{AgentAID: "parent-a", AgentBID: "parent-b"})
	require.ErrorIs(t, err, model.ErrPersistence)
	assert.Contains(t, err.Error(), "disk full")

	_, err = h.svc.Evolve(ctx, EvolveRequest{AgentID: "parent-a"})
	require.ErrorIs(t, err, model.ErrPersistence)
}

func TestSeededServiceIsReproducible(t *testing.T) {
	run := func() BreedResponse {
		store := storage.NewMemoryStore()
		svc := NewService(Config{Store: store, Seed: 42, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
		require.NoError(t, svc.Init(context.Background()))
		h := &harness{svc: svc, store: store, clock: &fakeClock{now: time.Now()}}
		h.seedPair(t, 90)
		resp, err := svc.Breed(context.Background(), BreedRequest{AgentAID: "parent-a", AgentBID: "parent-b"})
		require.NoError(t, err)
		return resp
	}

	first, second := run(), run()
	assert.Equal(t, first.Success, second.Success)
	assert.Equal(t, first.Attempt.RolledValue, second.Attempt.RolledValue)
	if first.Success {
		assert.Equal(t, first.Child.Traits, second.Child.Traits)
		assert.Equal(t, first.MutatedTrait, second.MutatedTrait)
	}
}

func TestSeededServiceVariesRollsAcrossRequests(t *testing.T) {
	rolls := func() []int {
		store := storage.NewMemoryStore()
		svc := NewService(Config{Store: store, Seed: 42, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
		require.NoError(t, svc.Init(context.Background()))
		h := &harness{svc: svc, store: store, clock: &fakeClock{now: time.Now()}}

		var out []int
		for i := 0; i < 6; i++ {
			a := h.seedAgent(t, fmt.Sprintf("a-%d", i), "Hana", 3, model.NeutralTraits())
			b := h.seedAgent(t, fmt.Sprintf("b-%d", i), "Doyun", 3, model.NeutralTraits())
			require.NoError(t, store.SaveCompatibility(context.Background(), a.ID, b.ID, 90))

			resp, err := svc.Breed(context.Background(), BreedRequest{AgentAID: a.ID, AgentBID: b.ID})
			require.NoError(t, err)
			require.NotNil(t, resp.Attempt)
			out = append(out, resp.Attempt.RolledValue)
		}
		return out
	}

	first := rolls()
	distinct := map[int]struct{}{}
	for _, r := range first {
		distinct[r] = struct{}{}
	}
	assert.Greater(t, len(distinct), 1, "every request rolled %v", first)
	assert.Equal(t, first, rolls(), "a fresh service replays the same sequence")
}
