package progression

import (
	"fmt"
	"math"

	"gyeol/internal/model"
)

type Condition struct {
	Label    string `json:"label"`
	Current  int    `json:"current"`
	Required int    `json:"required"`
	Met      bool   `json:"met"`
}

// Status is the outcome of comparing an agent's counters against the next
// generation tier.
type Status struct {
	CurrentGeneration int         `json:"current_generation"`
	TargetGeneration  int         `json:"target_generation"`
	Terminal          bool        `json:"terminal"`
	Conditions        []Condition `json:"conditions"`
	MetCount          int         `json:"met_count"`
	OverallPercent    int         `json:"overall_percent"`
	AllMet            bool        `json:"all_met"`
}

// Evaluate compares agent's counters against the thresholds of the next
// generation. An agent at the top generation is terminal: the status has no
// conditions and AllMet is false.
func Evaluate(agent model.Agent) Status {
	current := agent.Generation
	if current < model.MinGeneration {
		current = model.MinGeneration
	}
	if current >= model.MaxGeneration {
		return Status{
			CurrentGeneration: current,
			TargetGeneration:  model.MaxGeneration,
			Terminal:          true,
			Conditions:        []Condition{},
		}
	}

	target := current + 1
	req, ok := RequirementFor(target)
	if !ok {
		// unreachable while the table covers every non-terminal tier
		panic(fmt.Sprintf("progression: no requirement for generation %d", target))
	}

	conditions := conditionsFor(agent.Counters, req)
	met := 0
	for _, c := range conditions {
		if c.Met {
			met++
		}
	}

	return Status{
		CurrentGeneration: current,
		TargetGeneration:  target,
		Conditions:        conditions,
		MetCount:          met,
		OverallPercent:    int(math.Round(float64(met) / float64(len(conditions)) * 100)),
		AllMet:            met == len(conditions),
	}
}

// Unmet returns the labels of the conditions still missing.
func (s Status) Unmet() []string {
	var out []string
	for _, c := range s.Conditions {
		if !c.Met {
			out = append(out, c.Label)
		}
	}
	return out
}
