package engine

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"gyeol/internal/breeding"
	"gyeol/internal/model"
	"gyeol/internal/progression"
	"gyeol/internal/storage"
)

type CreateAgentRequest struct {
	Name    string `json:"name" validate:"required,max=64"`
	OwnerID string `json:"owner_id" validate:"max=128"`
}

type CountersRequest struct {
	AgentID  string                    `json:"agent_id" validate:"required"`
	Counters model.ProgressionCounters `json:"counters"`
}

type CompatibilityRequest struct {
	AgentAID string `json:"agent_a_id" validate:"required"`
	AgentBID string `json:"agent_b_id" validate:"required,nefield=AgentAID"`
	Score    int    `json:"score" validate:"min=0,max=100"`
}

type EligibilityRequest struct {
	AgentAID string `json:"agent_a_id" validate:"required"`
	AgentBID string `json:"agent_b_id" validate:"required"`
}

// CreateAgent stores a new generation 1 agent with neutral traits.
func (s *Service) CreateAgent(ctx context.Context, req CreateAgentRequest) (model.Agent, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validateRequest(req); err != nil {
		return model.Agent{}, err
	}

	agent := model.NewAgent(s.newID(), req.Name, req.OwnerID, s.now())
	if err := s.store.SaveAgent(ctx, agent); err != nil {
		return model.Agent{}, persistence("save agent", err)
	}
	s.logger.Info("agent created", "agent_id", agent.ID, "owner_id", agent.OwnerID)
	return agent, nil
}

func (s *Service) GetAgent(ctx context.Context, id string) (model.Agent, error) {
	return loadAgent(ctx, s.store, id)
}

func (s *Service) ListAgents(ctx context.Context) ([]model.Agent, error) {
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return nil, persistence("list agents", err)
	}
	return agents, nil
}

// RecordCounters replaces an agent's progression counters. Counters only
// grow; a request lowering any of them is rejected whole.
func (s *Service) RecordCounters(ctx context.Context, req CountersRequest) (model.Agent, error) {
	if err := validateRequest(req); err != nil {
		return model.Agent{}, err
	}
	if err := checkCountersNonNegative(req.Counters); err != nil {
		return model.Agent{}, err
	}

	var updated model.Agent
	err := s.store.Atomic(ctx, []string{req.AgentID}, func(tx storage.Tx) error {
		agent, err := loadAgent(ctx, tx, req.AgentID)
		if err != nil {
			return err
		}
		if lowered := decreasedCounters(agent.Counters, req.Counters); len(lowered) > 0 {
			return fmt.Errorf("%w: %s", ErrCounterDecrease, strings.Join(lowered, ", "))
		}
		agent.Counters = req.Counters
		agent.EvolutionProgress = progressPercent(agent)
		agent.UpdatedAt = s.now()
		if err := tx.SaveAgent(ctx, agent); err != nil {
			return persistence("save agent", err)
		}
		updated = agent
		return nil
	})
	if err != nil {
		return model.Agent{}, persistence("record counters", err)
	}
	return updated, nil
}

// progressPercent is the share of next-tier conditions met. An agent at the
// top generation has nothing left to meet and reads as complete.
func progressPercent(agent model.Agent) int {
	status := progression.Evaluate(agent)
	if status.Terminal {
		return 100
	}
	return status.OverallPercent
}

var counterLabels = []string{
	progression.LabelConversations,
	progression.LabelUniqueTopics,
	progression.LabelMemories,
	progression.LabelIntimacy,
	progression.LabelConsecutiveDays,
}

func checkCountersNonNegative(c model.ProgressionCounters) error {
	values := countersByLabel(c)
	for _, label := range counterLabels {
		if values[label] < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidRequest, label)
		}
	}
	return nil
}

func decreasedCounters(current, next model.ProgressionCounters) []string {
	cur, nxt := countersByLabel(current), countersByLabel(next)
	var lowered []string
	for _, label := range counterLabels {
		if nxt[label] < cur[label] {
			lowered = append(lowered, label)
		}
	}
	return lowered
}

func countersByLabel(c model.ProgressionCounters) map[string]int {
	return map[string]int{
		progression.LabelConversations:   c.Conversations,
		progression.LabelUniqueTopics:    c.UniqueTopics,
		progression.LabelMemories:        c.Memories,
		progression.LabelIntimacy:        c.Intimacy,
		progression.LabelConsecutiveDays: c.ConsecutiveDays,
	}
}

// SetCompatibility records the score for an unordered pair of existing
// agents.
func (s *Service) SetCompatibility(ctx context.Context, req CompatibilityRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}
	for _, id := range []string{req.AgentAID, req.AgentBID} {
		if _, err := loadAgent(ctx, s.store, id); err != nil {
			return err
		}
	}
	if err := s.store.SaveCompatibility(ctx, req.AgentAID, req.AgentBID, req.Score); err != nil {
		return persistence("save compatibility", err)
	}
	return nil
}

// Progress reports how far an agent is from its next generation.
func (s *Service) Progress(ctx context.Context, agentID string) (progression.Status, error) {
	agent, err := loadAgent(ctx, s.store, agentID)
	if err != nil {
		return progression.Status{}, err
	}
	return progression.Evaluate(agent), nil
}

// Eligibility previews the breeding gates for a pair without writing
// anything. The verdict may change before a subsequent Breed runs.
func (s *Service) Eligibility(ctx context.Context, req EligibilityRequest) (breeding.Eligibility, error) {
	if err := validateRequest(req); err != nil {
		return breeding.Eligibility{}, err
	}

	var (
		a, b   model.Agent
		compat int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		a, err = loadAgent(gctx, s.store, req.AgentAID)
		return err
	})
	g.Go(func() error {
		var err error
		b, err = loadAgent(gctx, s.store, req.AgentBID)
		return err
	})
	g.Go(func() error {
		var err error
		compat, err = s.compatibility(gctx, req.AgentAID, req.AgentBID)
		return err
	})
	if err := g.Wait(); err != nil {
		return breeding.Eligibility{}, err
	}

	verdict, err := breeding.CheckEligibility(ctx, a, b, compat, s.store, s.now())
	if err != nil {
		return breeding.Eligibility{}, persistence("check eligibility", err)
	}
	return verdict, nil
}

// compatibility returns the recorded score, treating a missing pair as 0.
func (s *Service) compatibility(ctx context.Context, agentA, agentB string) (int, error) {
	score, ok, err := s.compat.GetCompatibility(ctx, agentA, agentB)
	if err != nil {
		return 0, persistence("load compatibility", err)
	}
	if !ok {
		return 0, nil
	}
	return score, nil
}

func (s *Service) ListAttempts(ctx context.Context, agentID string, limit int) ([]model.BreedingAttempt, error) {
	if _, err := loadAgent(ctx, s.store, agentID); err != nil {
		return nil, err
	}
	attempts, err := s.store.ListAttempts(ctx, agentID, limit)
	if err != nil {
		return nil, persistence("list breeding attempts", err)
	}
	return attempts, nil
}
