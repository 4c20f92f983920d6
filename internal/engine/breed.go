package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gyeol/internal/breeding"
	"gyeol/internal/model"
	"gyeol/internal/storage"
)

type BreedRequest struct {
	AgentAID string `json:"agent_a_id" validate:"required"`
	AgentBID string `json:"agent_b_id" validate:"required"`
	// OwnerID owns the child; defaults to agent A's owner.
	OwnerID string `json:"owner_id,omitempty"`
}

type BreedResponse struct {
	Success        bool                   `json:"success"`
	Child          *model.Agent           `json:"child,omitempty"`
	Message        string                 `json:"message"`
	MutatedTrait   *string                `json:"mutated_trait,omitempty"`
	DominantParent string                 `json:"dominant_parent,omitempty"`
	Attempt        *model.BreedingAttempt `json:"attempt,omitempty"`
	Rejection      *model.Rejection       `json:"rejection,omitempty"`
}

// Breed runs one breeding attempt for the pair. The eligibility check, the
// ledger append and the child write commit together, under a transaction
// keyed on both parents, so two attempts sharing a parent are serialised
// and at most one of them passes the cooldown gate.
func (s *Service) Breed(ctx context.Context, req BreedRequest) (BreedResponse, error) {
	ctx, span := tracer.Start(ctx, "engine.Breed", trace.WithAttributes(
		attribute.String("agent_a_id", req.AgentAID),
		attribute.String("agent_b_id", req.AgentBID),
	))
	defer span.End()
	defer observeDuration("breed", time.Now())

	if err := validateRequest(req); err != nil {
		return BreedResponse{}, err
	}

	compat, err := s.compatibility(ctx, req.AgentAID, req.AgentBID)
	if err != nil {
		breedingAttempts.WithLabelValues(resultError).Inc()
		return BreedResponse{}, err
	}

	newRandom, err := s.random()
	if err != nil {
		breedingAttempts.WithLabelValues(resultError).Inc()
		return BreedResponse{}, fmt.Errorf("seed random source: %w", err)
	}

	var result breeding.Result
	err = s.store.Atomic(ctx, []string{req.AgentAID, req.AgentBID}, func(tx storage.Tx) error {
		parentA, err := loadAgent(ctx, tx, req.AgentAID)
		if err != nil {
			return err
		}
		parentB, err := loadAgent(ctx, tx, req.AgentBID)
		if err != nil {
			return err
		}
		result, err = breeding.Breed(ctx, breeding.Request{
			ParentA:       parentA,
			ParentB:       parentB,
			Compatibility: compat,
			OwnerID:       req.OwnerID,
			Now:           s.now(),
			NewID:         s.newID,
		}, tx, newRandom())
		return err
	})
	if err != nil {
		err = persistence("breed", err)
		breedingAttempts.WithLabelValues(failureLabel(err)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("breeding failed", "agent_a_id", req.AgentAID, "agent_b_id", req.AgentBID, "error", err)
		return BreedResponse{}, err
	}

	resp := BreedResponse{
		Success:        result.Success,
		Child:          result.Child,
		Message:        result.Message,
		MutatedTrait:   result.MutatedTrait,
		DominantParent: result.DominantParent,
		Attempt:        result.Attempt,
		Rejection:      result.Rejection,
	}
	s.recordBreed(ctx, req, resp)
	return resp, nil
}

func (s *Service) recordBreed(ctx context.Context, req BreedRequest, resp BreedResponse) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Bool("success", resp.Success))

	label := resultSuccess
	if resp.Rejection != nil {
		switch resp.Rejection.Code {
		case model.CodeOnCooldown:
			label = resultOnCooldown
		case model.CodeRollFailed:
			label = resultRollFailed
		default:
			label = resultNotEligible
		}
	}
	breedingAttempts.WithLabelValues(label).Inc()

	attrs := []any{
		"agent_a_id", req.AgentAID,
		"agent_b_id", req.AgentBID,
		"success", resp.Success,
		"result", label,
	}
	if resp.Child != nil {
		attrs = append(attrs, "child_id", resp.Child.ID, "generation", resp.Child.Generation)
	}
	if resp.MutatedTrait != nil {
		mutations.WithLabelValues(*resp.MutatedTrait).Inc()
		attrs = append(attrs, "mutated_trait", *resp.MutatedTrait)
	}
	if !resp.Success {
		attrs = append(attrs, "reason", resp.Message)
	}
	s.logger.Info("breeding attempt", attrs...)
}

func failureLabel(err error) string {
	if errors.Is(err, ErrAgentNotFound) {
		return resultNotFound
	}
	return resultError
}
