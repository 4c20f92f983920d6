// Package api exposes the engine over HTTP with gin.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gyeol/internal/breeding"
	"gyeol/internal/engine"
	"gyeol/internal/model"
	"gyeol/internal/progression"
)

// Engine is the service surface the handlers call. *engine.Service
// implements it.
type Engine interface {
	CreateAgent(ctx context.Context, req engine.CreateAgentRequest) (model.Agent, error)
	GetAgent(ctx context.Context, id string) (model.Agent, error)
	ListAgents(ctx context.Context) ([]model.Agent, error)
	RecordCounters(ctx context.Context, req engine.CountersRequest) (model.Agent, error)
	Progress(ctx context.Context, agentID string) (progression.Status, error)
	Evolve(ctx context.Context, req engine.EvolveRequest) (engine.EvolveResponse, error)
	SetCompatibility(ctx context.Context, req engine.CompatibilityRequest) error
	Eligibility(ctx context.Context, req engine.EligibilityRequest) (breeding.Eligibility, error)
	Breed(ctx context.Context, req engine.BreedRequest) (engine.BreedResponse, error)
	ListAttempts(ctx context.Context, agentID string, limit int) ([]model.BreedingAttempt, error)
}

// NewRouter builds a gin engine with recovery, request logging and every
// route registered.
func NewRouter(svc Engine, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))
	SetupRoutes(router, svc, logger)
	return router
}

func SetupRoutes(router *gin.Engine, svc Engine, logger *slog.Logger) {
	h := &handlers{svc: svc, logger: logger}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		agents := api.Group("/agents")
		{
			agents.POST("", h.createAgent)
			agents.GET("", h.listAgents)
			agents.GET("/:id", h.getAgent)
			agents.PUT("/:id/counters", h.recordCounters)
			agents.GET("/:id/progress", h.progress)
			agents.POST("/:id/evolve", h.evolve)
			agents.GET("/:id/breeding-attempts", h.listAttempts)
		}
		api.PUT("/compatibility", h.setCompatibility)

		breedingGroup := api.Group("/breeding")
		{
			breedingGroup.GET("/eligibility", h.eligibility)
			breedingGroup.POST("", h.breed)
		}
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		logger.Info("http request",
			"method", c.Request.Method,
			"route", route,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
