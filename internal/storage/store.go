package storage

import (
	"context"
	"errors"

	"gyeol/internal/model"
)

var (
	ErrNotInitialized = errors.New("store is not initialized")
	ErrInvalidPair    = errors.New("compatibility pair must name two distinct agents")
	ErrInvalidScore   = errors.New("compatibility score must be within 0..100")
)

// Tx is the view of a store inside Atomic. Reads observe the transaction's
// own writes; writes become visible to others only when fn returns nil.
type Tx interface {
	GetAgent(ctx context.Context, id string) (model.Agent, bool, error)
	SaveAgent(ctx context.Context, agent model.Agent) error
	GetCompatibility(ctx context.Context, agentA, agentB string) (int, bool, error)
	MostRecentAttempt(ctx context.Context, agentIDs []string) (model.BreedingAttempt, bool, error)
	Append(ctx context.Context, attempt model.BreedingAttempt) error
}

// Store persists agents, compatibility scores and the append-only breeding
// ledger.
type Store interface {
	Init(ctx context.Context) error

	GetAgent(ctx context.Context, id string) (model.Agent, bool, error)
	SaveAgent(ctx context.Context, agent model.Agent) error
	ListAgents(ctx context.Context) ([]model.Agent, error)

	// Compatibility is keyed by the unordered pair.
	SaveCompatibility(ctx context.Context, agentA, agentB string, score int) error
	GetCompatibility(ctx context.Context, agentA, agentB string) (int, bool, error)

	// ListAttempts returns attempts naming agentID as either parent, newest
	// first. limit <= 0 returns all of them.
	ListAttempts(ctx context.Context, agentID string, limit int) ([]model.BreedingAttempt, error)
	MostRecentAttempt(ctx context.Context, agentIDs []string) (model.BreedingAttempt, bool, error)
	Append(ctx context.Context, attempt model.BreedingAttempt) error

	// Atomic runs fn as one isolated unit. Two Atomic calls whose key sets
	// intersect never interleave, and fn's writes are discarded when it
	// returns an error. fn may be invoked more than once by backends that
	// resolve conflicts by retrying.
	Atomic(ctx context.Context, keys []string, fn func(tx Tx) error) error
}

func validatePair(agentA, agentB string, score int) error {
	if agentA == "" || agentB == "" || agentA == agentB {
		return ErrInvalidPair
	}
	if score < model.MinTraitValue || score > model.MaxTraitValue {
		return ErrInvalidScore
	}
	return nil
}

// orderedPair returns the pair in lexical order so (a, b) and (b, a) share
// one key.
func orderedPair(agentA, agentB string) (string, string) {
	if agentB < agentA {
		return agentB, agentA
	}
	return agentA, agentB
}

// stampAgent sets the current record versions on a payload about to be
// written.
func stampAgent(agent model.Agent) model.Agent {
	agent.SchemaVersion = CurrentSchemaVersion
	agent.CodecVersion = CurrentCodecVersion
	return agent
}

func stampAttempt(attempt model.BreedingAttempt) model.BreedingAttempt {
	attempt.SchemaVersion = CurrentSchemaVersion
	attempt.CodecVersion = CurrentCodecVersion
	return attempt
}

// newer reports whether candidate should replace current as the most recent
// attempt. Later CreatedAt wins; ties go to the later append.
func newer(candidate, current model.BreedingAttempt) bool {
	return !candidate.CreatedAt.Before(current.CreatedAt)
}
