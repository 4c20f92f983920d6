package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gyeol/internal/model"
	"gyeol/internal/progression"
	"gyeol/internal/storage"
)

type EvolveRequest struct {
	AgentID string `json:"agent_id" validate:"required"`
}

type EvolveResponse struct {
	Evolved bool        `json:"evolved"`
	Agent   model.Agent `json:"agent"`
	// Status is the evaluation that gated the request.
	Status    progression.Status `json:"status"`
	Message   string             `json:"message"`
	Rejection *model.Rejection   `json:"rejection,omitempty"`
}

// Evolve advances an agent one generation when it meets every condition of
// the next tier. A rejection is reported in the response with a nil error.
func (s *Service) Evolve(ctx context.Context, req EvolveRequest) (EvolveResponse, error) {
	ctx, span := tracer.Start(ctx, "engine.Evolve", trace.WithAttributes(
		attribute.String("agent_id", req.AgentID),
	))
	defer span.End()
	defer observeDuration("evolve", time.Now())

	if err := validateRequest(req); err != nil {
		return EvolveResponse{}, err
	}

	var resp EvolveResponse
	err := s.store.Atomic(ctx, []string{req.AgentID}, func(tx storage.Tx) error {
		resp = EvolveResponse{}
		agent, err := loadAgent(ctx, tx, req.AgentID)
		if err != nil {
			return err
		}
		resp.Status = progression.Evaluate(agent)

		next, err := progression.Advance(agent)
		if err != nil {
			rejection, ok := model.AsRejection(err)
			if !ok {
				return err
			}
			resp.Agent = agent
			resp.Message = rejection.Reason
			resp.Rejection = rejection
			return nil
		}

		next.UpdatedAt = s.now()
		if err := tx.SaveAgent(ctx, next); err != nil {
			return persistence("save agent", err)
		}
		resp.Evolved = true
		resp.Agent = next
		resp.Message = fmt.Sprintf("evolved to generation %d", next.Generation)
		return nil
	})
	if err != nil {
		err = persistence("evolve", err)
		evolutionAttempts.WithLabelValues(failureLabel(err)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("evolution failed", "agent_id", req.AgentID, "error", err)
		return EvolveResponse{}, err
	}

	span.SetAttributes(
		attribute.Bool("evolved", resp.Evolved),
		attribute.Int("generation", resp.Agent.Generation),
	)
	if resp.Evolved {
		evolutionAttempts.WithLabelValues(resultSuccess).Inc()
		s.logger.Info("agent evolved", "agent_id", req.AgentID, "generation", resp.Agent.Generation)
	} else {
		evolutionAttempts.WithLabelValues(resultNotEligible).Inc()
		s.logger.Info("evolution rejected", "agent_id", req.AgentID, "generation", resp.Agent.Generation, "reason", resp.Message)
	}
	return resp, nil
}
