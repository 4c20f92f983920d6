package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("gyeol.engine")

// Outcome labels shared by the attempt counters.
const (
	resultSuccess     = "success"
	resultNotEligible = "not_eligible"
	resultOnCooldown  = "on_cooldown"
	resultRollFailed  = "roll_failed"
	resultNotFound    = "not_found"
	resultError       = "error"
)

var (
	breedingAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gyeol_breeding_attempts_total",
		Help: "Breeding requests by outcome",
	}, []string{"result"})

	evolutionAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gyeol_evolution_attempts_total",
		Help: "Evolution requests by outcome",
	}, []string{"result"})

	mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gyeol_mutations_total",
		Help: "Offspring mutations by boosted trait",
	}, []string{"trait"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gyeol_engine_operation_duration_seconds",
		Help:    "Engine operation latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~800ms
	}, []string{"operation"})
)

func observeDuration(operation string, start time.Time) {
	operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
