package genetics

import (
	"math"

	"gyeol/internal/model"
)

const (
	// MutationChance is the percentile below which a child mutates.
	MutationChance = 15.0
	MinBoost       = 15
	BoostSpan      = 20
)

// Mutate rolls for a single-axis boost on child. When the roll fires, one
// axis is chosen uniformly and raised by 15..34 (capped at 100) and its name
// is returned. Otherwise child is returned unchanged with a nil axis.
//
// Draw order: mutation roll, then axis pick and boost only when it fires.
func Mutate(child model.TraitVector, rng RandomSource) (model.TraitVector, *string) {
	if Roll(rng) >= MutationChance {
		return child, nil
	}

	idx := int(rng.Float64() * float64(len(model.TraitAxes)))
	if idx >= len(model.TraitAxes) {
		idx = len(model.TraitAxes) - 1
	}
	boost := MinBoost + int(math.Floor(rng.Float64()*BoostSpan))

	values := child.Values()
	values[idx] = model.ClampTrait(values[idx] + boost)
	axis := model.TraitAxes[idx]
	return model.TraitVectorFromValues(values), &axis
}
