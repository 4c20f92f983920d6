package progression

import (
	"fmt"
	"strings"

	"gyeol/internal/model"
)

// Advance moves agent up exactly one generation when every condition of the
// next tier is met. It is the only transition that raises a generation.
//
// Rejections are *model.Rejection values matching model.ErrNotEligible.
// Because each tier's thresholds are strictly higher than the previous one,
// a second Advance without new counter growth is always rejected.
func Advance(agent model.Agent) (model.Agent, error) {
	status := Evaluate(agent)
	if status.Terminal {
		return agent, model.NotEligible(fmt.Sprintf("already at the highest generation (gen %d)", model.MaxGeneration))
	}
	if !status.AllMet {
		return agent, model.NotEligible(fmt.Sprintf(
			"not ready for generation %d: missing %s",
			status.TargetGeneration,
			strings.Join(status.Unmet(), ", "),
		))
	}

	next := agent
	next.Generation = status.TargetGeneration
	next.EvolutionProgress = 0
	return next, nil
}
