package storage

import (
	"context"
	"sort"
	"sync"

	"gyeol/internal/model"
)

type pairKey struct{ lo, hi string }

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	agents      map[string]model.Agent
	compat      map[pairKey]int
	attempts    []model.BreedingAttempt

	locks keyLocks
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.agents = make(map[string]model.Agent)
	s.compat = make(map[pairKey]int)
	s.attempts = nil
	return nil
}

func (s *MemoryStore) GetAgent(_ context.Context, id string) (model.Agent, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return model.Agent{}, false, ErrNotInitialized
	}
	agent, ok := s.agents[id]
	return agent, ok, nil
}

func (s *MemoryStore) SaveAgent(_ context.Context, agent model.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	s.agents[agent.ID] = stampAgent(agent)
	return nil
}

func (s *MemoryStore) ListAgents(_ context.Context) ([]model.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	out := make([]model.Agent, 0, len(s.agents))
	for _, agent := range s.agents {
		out = append(out, agent)
	}
	sortAgents(out)
	return out, nil
}

func (s *MemoryStore) SaveCompatibility(_ context.Context, agentA, agentB string, score int) error {
	if err := validatePair(agentA, agentB, score); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	lo, hi := orderedPair(agentA, agentB)
	s.compat[pairKey{lo, hi}] = score
	return nil
}

func (s *MemoryStore) GetCompatibility(_ context.Context, agentA, agentB string) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return 0, false, ErrNotInitialized
	}
	lo, hi := orderedPair(agentA, agentB)
	score, ok := s.compat[pairKey{lo, hi}]
	return score, ok, nil
}

func (s *MemoryStore) ListAttempts(_ context.Context, agentID string, limit int) ([]model.BreedingAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	var out []model.BreedingAttempt
	for i := len(s.attempts) - 1; i >= 0; i-- {
		if s.attempts[i].Involves(agentID) {
			out = append(out, cloneAttempt(s.attempts[i]))
		}
	}
	// appended order is not creation order when callers backdate CreatedAt
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MostRecentAttempt(_ context.Context, agentIDs []string) (model.BreedingAttempt, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return model.BreedingAttempt{}, false, ErrNotInitialized
	}
	best, ok := mostRecent(s.attempts, agentIDs, model.BreedingAttempt{}, false)
	return cloneAttempt(best), ok, nil
}

func (s *MemoryStore) Append(_ context.Context, attempt model.BreedingAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	s.attempts = append(s.attempts, stampAttempt(cloneAttempt(attempt)))
	return nil
}

// Atomic holds an exclusive lock on every key for the duration of fn and
// applies the staged writes in one step when fn succeeds.
func (s *MemoryStore) Atomic(ctx context.Context, keys []string, fn func(tx Tx) error) error {
	release, err := s.locks.acquire(ctx, keys)
	if err != nil {
		return err
	}
	defer release()

	tx := &memoryTx{store: s, agents: make(map[string]model.Agent)}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	for id, agent := range tx.agents {
		s.agents[id] = agent
	}
	s.attempts = append(s.attempts, tx.attempts...)
	return nil
}

type memoryTx struct {
	store    *MemoryStore
	agents   map[string]model.Agent
	attempts []model.BreedingAttempt
}

func (t *memoryTx) GetAgent(ctx context.Context, id string) (model.Agent, bool, error) {
	if agent, ok := t.agents[id]; ok {
		return agent, true, nil
	}
	return t.store.GetAgent(ctx, id)
}

func (t *memoryTx) SaveAgent(_ context.Context, agent model.Agent) error {
	t.agents[agent.ID] = stampAgent(agent)
	return nil
}

func (t *memoryTx) GetCompatibility(ctx context.Context, agentA, agentB string) (int, bool, error) {
	return t.store.GetCompatibility(ctx, agentA, agentB)
}

func (t *memoryTx) MostRecentAttempt(_ context.Context, agentIDs []string) (model.BreedingAttempt, bool, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	if !t.store.initialized {
		return model.BreedingAttempt{}, false, ErrNotInitialized
	}
	best, ok := mostRecent(t.store.attempts, agentIDs, model.BreedingAttempt{}, false)
	best, ok = mostRecent(t.attempts, agentIDs, best, ok)
	return cloneAttempt(best), ok, nil
}

func (t *memoryTx) Append(_ context.Context, attempt model.BreedingAttempt) error {
	t.attempts = append(t.attempts, stampAttempt(cloneAttempt(attempt)))
	return nil
}

func mostRecent(attempts []model.BreedingAttempt, agentIDs []string, best model.BreedingAttempt, found bool) (model.BreedingAttempt, bool) {
	for _, attempt := range attempts {
		for _, id := range agentIDs {
			if attempt.Involves(id) {
				if !found || newer(attempt, best) {
					best = attempt
					found = true
				}
				break
			}
		}
	}
	return best, found
}

func cloneAttempt(a model.BreedingAttempt) model.BreedingAttempt {
	if a.ChildID != nil {
		id := *a.ChildID
		a.ChildID = &id
	}
	if a.MutatedTrait != nil {
		trait := *a.MutatedTrait
		a.MutatedTrait = &trait
	}
	return a
}

func sortAgents(agents []model.Agent) {
	sort.Slice(agents, func(i, j int) bool {
		if !agents[i].CreatedAt.Equal(agents[j].CreatedAt) {
			return agents[i].CreatedAt.Before(agents[j].CreatedAt)
		}
		return agents[i].ID < agents[j].ID
	})
}

// keyLocks hands out one single-slot channel per key. A waiter gives up
// when its context ends.
type keyLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func (l *keyLocks) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.slots == nil {
		l.slots = make(map[string]chan struct{})
	}
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// acquire takes every key in sorted order so overlapping key sets cannot
// deadlock.
func (l *keyLocks) acquire(ctx context.Context, keys []string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sorted := uniqueSorted(keys)
	held := make([]chan struct{}, 0, len(sorted))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}
	for _, key := range sorted {
		ch := l.slot(key)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}
	return release, nil
}

func uniqueSorted(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)
	n := 0
	for i, key := range out {
		if i > 0 && key == out[n-1] {
			continue
		}
		out[n] = key
		n++
	}
	return out[:n]
}
