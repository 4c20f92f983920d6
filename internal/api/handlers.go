package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"gyeol/internal/engine"
	"gyeol/internal/model"
)

type handlers struct {
	svc    Engine
	logger *slog.Logger
}

type createAgentBody struct {
	Name    string `json:"name" binding:"required,max=64"`
	OwnerID string `json:"owner_id" binding:"max=128"`
}

type compatibilityBody struct {
	AgentAID string `json:"agent_a_id" binding:"required"`
	AgentBID string `json:"agent_b_id" binding:"required"`
	Score    *int   `json:"score" binding:"required,min=0,max=100"`
}

type breedBody struct {
	AgentAID string `json:"agent_a_id" binding:"required"`
	AgentBID string `json:"agent_b_id" binding:"required"`
	OwnerID  string `json:"owner_id"`
}

type eligibilityQuery struct {
	AgentA string `form:"agent_a" binding:"required"`
	AgentB string `form:"agent_b" binding:"required"`
}

type attemptsQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=0,max=500"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (h *handlers) createAgent(c *gin.Context) {
	var body createAgentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	agent, err := h.svc.CreateAgent(c.Request.Context(), engine.CreateAgentRequest{Name: body.Name, OwnerID: body.OwnerID})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, agent)
}

func (h *handlers) listAgents(c *gin.Context) {
	agents, err := h.svc.ListAgents(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if agents == nil {
		agents = []model.Agent{}
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

func (h *handlers) getAgent(c *gin.Context) {
	agent, err := h.svc.GetAgent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, agent)
}

func (h *handlers) recordCounters(c *gin.Context) {
	var counters model.ProgressionCounters
	if err := c.ShouldBindJSON(&counters); err != nil {
		badRequest(c, err)
		return
	}
	agent, err := h.svc.RecordCounters(c.Request.Context(), engine.CountersRequest{AgentID: c.Param("id"), Counters: counters})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, agent)
}

func (h *handlers) progress(c *gin.Context) {
	status, err := h.svc.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *handlers) evolve(c *gin.Context) {
	resp, err := h.svc.Evolve(c.Request.Context(), engine.EvolveRequest{AgentID: c.Param("id")})
	if err != nil {
		h.fail(c, err)
		return
	}
	if resp.Rejection != nil {
		c.JSON(http.StatusConflict, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) setCompatibility(c *gin.Context) {
	var body compatibilityBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	err := h.svc.SetCompatibility(c.Request.Context(), engine.CompatibilityRequest{
		AgentAID: body.AgentAID,
		AgentBID: body.AgentBID,
		Score:    *body.Score,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent_a_id": body.AgentAID, "agent_b_id": body.AgentBID, "score": *body.Score})
}

func (h *handlers) eligibility(c *gin.Context) {
	var query eligibilityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, err)
		return
	}
	verdict, err := h.svc.Eligibility(c.Request.Context(), engine.EligibilityRequest{AgentAID: query.AgentA, AgentBID: query.AgentB})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, verdict)
}

// breed answers 201 with the child on success, 200 with success=false when
// the roll missed, and 409 when a gate rejected the pair.
func (h *handlers) breed(c *gin.Context) {
	var body breedBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	resp, err := h.svc.Breed(c.Request.Context(), engine.BreedRequest{
		AgentAID: body.AgentAID,
		AgentBID: body.AgentBID,
		OwnerID:  body.OwnerID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	switch {
	case resp.Success:
		c.JSON(http.StatusCreated, resp)
	case resp.Rejection != nil && resp.Rejection.Code == model.CodeRollFailed:
		c.JSON(http.StatusOK, resp)
	default:
		c.JSON(http.StatusConflict, resp)
	}
}

func (h *handlers) listAttempts(c *gin.Context) {
	var query attemptsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, err)
		return
	}
	attempts, err := h.svc.ListAttempts(c.Request.Context(), c.Param("id"), query.Limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	if attempts == nil {
		attempts = []model.BreedingAttempt{}
	}
	c.JSON(http.StatusOK, gin.H{"attempts": attempts})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorBody{Error: err.Error(), Code: "INVALID_REQUEST"})
}

// fail maps engine errors onto HTTP statuses. Persistence failures are
// logged and reported without their cause.
func (h *handlers) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrAgentNotFound):
		c.JSON(http.StatusNotFound, errorBody{Error: err.Error(), Code: "NOT_FOUND"})
	case errors.Is(err, engine.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error(), Code: "INVALID_REQUEST"})
	case errors.Is(err, engine.ErrCounterDecrease):
		c.JSON(http.StatusConflict, errorBody{Error: err.Error(), Code: "COUNTER_DECREASE"})
	default:
		h.logger.Error("request failed", "route", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, errorBody{Error: "internal error", Code: "PERSISTENCE"})
	}
}
