package breeding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"gyeol/internal/genetics"
	"gyeol/internal/model"
)

// SuccessRate is the percentile below which an eligible attempt succeeds.
const SuccessRate = 70.0

// Writer is the persistence surface Breed needs. Implementations are
// expected to be scoped to one transaction covering both parents.
type Writer interface {
	Ledger
	SaveAgent(ctx context.Context, agent model.Agent) error
}

type Request struct {
	ParentA       model.Agent
	ParentB       model.Agent
	Compatibility int
	// OwnerID owns the child; defaults to parent A's owner.
	OwnerID string
	Now     time.Time
	// NewID generates agent and attempt IDs; defaults to uuid.NewString.
	NewID func() string
}

type Result struct {
	Success        bool                   `json:"success"`
	Child          *model.Agent           `json:"child,omitempty"`
	Message        string                 `json:"message"`
	MutatedTrait   *string                `json:"mutated_trait,omitempty"`
	DominantParent string                 `json:"dominant_parent,omitempty"`
	Attempt        *model.BreedingAttempt `json:"attempt,omitempty"`
	Rejection      *model.Rejection       `json:"rejection,omitempty"`
}

// Breed runs one breeding attempt.
//
// Ineligible pairs are rejected before any draw or ledger write. An eligible
// pair consumes the success roll; a miss is appended to the ledger as a
// failed attempt. A hit consumes the inheritance and mutation draws, saves
// the child and appends a successful attempt naming it.
//
// Rejections are reported in Result with a nil error. Errors are
// persistence failures and wrap model.ErrPersistence; the caller's
// transaction must discard any partial writes.
func Breed(ctx context.Context, req Request, w Writer, rng genetics.RandomSource) (Result, error) {
	if w == nil {
		return Result{}, errors.New("breeding writer is required")
	}
	if rng == nil {
		return Result{}, errors.New("random source is required")
	}
	newID := req.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	verdict, err := CheckEligibility(ctx, req.ParentA, req.ParentB, req.Compatibility, w, now)
	if err != nil {
		return Result{}, err
	}
	if !verdict.Eligible {
		return Result{Message: verdict.Reason, Rejection: verdict.Rejection}, nil
	}

	roll := genetics.Roll(rng)
	rolled := int(math.Floor(roll))
	if roll >= SuccessRate {
		attempt := model.BreedingAttempt{
			ID:          newID(),
			ParentAID:   req.ParentA.ID,
			ParentBID:   req.ParentB.ID,
			Success:     false,
			RolledValue: rolled,
			CreatedAt:   now,
		}
		if err := w.Append(ctx, attempt); err != nil {
			return Result{}, fmt.Errorf("append breeding attempt: %w: %w", model.ErrPersistence, err)
		}
		rejection := model.RollFailed(fmt.Sprintf("breeding failed (%d/%d), try again later", rolled, int(SuccessRate)))
		return Result{Message: rejection.Reason, Attempt: &attempt, Rejection: rejection}, nil
	}

	traits := genetics.Blend(req.ParentA.Traits, req.ParentB.Traits, rng)
	traits, mutated := genetics.Mutate(traits, rng)

	owner := req.OwnerID
	if owner == "" {
		owner = req.ParentA.OwnerID
	}
	child := model.NewAgent(newID(), ChildName(req.ParentA.Name, req.ParentB.Name), owner, now)
	child.Generation = model.ClampGeneration(max(req.ParentA.Generation, req.ParentB.Generation))
	child.Traits = traits
	child.Visual = model.VisualFor(traits)

	if err := w.SaveAgent(ctx, child); err != nil {
		return Result{}, fmt.Errorf("save child agent: %w: %w", model.ErrPersistence, err)
	}

	childID := child.ID
	attempt := model.BreedingAttempt{
		ID:           newID(),
		ParentAID:    req.ParentA.ID,
		ParentBID:    req.ParentB.ID,
		ChildID:      &childID,
		Success:      true,
		RolledValue:  rolled,
		MutatedTrait: mutated,
		CreatedAt:    now,
	}
	if err := w.Append(ctx, attempt); err != nil {
		return Result{}, fmt.Errorf("append breeding attempt: %w: %w", model.ErrPersistence, err)
	}

	message := fmt.Sprintf("breeding succeeded: %s was born", child.Name)
	if mutated != nil {
		message = fmt.Sprintf("%s (mutation: %s boosted)", message, *mutated)
	}

	return Result{
		Success:        true,
		Child:          &child,
		Message:        message,
		MutatedTrait:   mutated,
		DominantParent: DominantParent(req.ParentA.Traits.Sum(), req.ParentB.Traits.Sum()),
		Attempt:        &attempt,
	}, nil
}
