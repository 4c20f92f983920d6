package genetics

import (
	"math"

	"gyeol/internal/model"
)

const (
	MinBlendRatio  = 0.3
	BlendRatioSpan = 0.4
	NoiseSpan      = 10.0
)

// Blend combines two parent trait vectors into a child vector.
//
// Each axis is processed in model.TraitAxes order and consumes exactly two
// draws from rng: the parent A weight in [0.3, 0.7) followed by additive
// noise in [-5, 5). The result is rounded and clamped to the trait range.
func Blend(a, b model.TraitVector, rng RandomSource) model.TraitVector {
	av := a.Values()
	bv := b.Values()
	var out [5]int
	for i := range out {
		out[i] = inheritAxis(av[i], bv[i], rng)
	}
	return model.TraitVectorFromValues(out)
}

func inheritAxis(a, b int, rng RandomSource) int {
	ratio := MinBlendRatio + rng.Float64()*BlendRatioSpan
	base := float64(a)*ratio + float64(b)*(1-ratio)
	noise := (rng.Float64() - 0.5) * NoiseSpan
	return model.ClampTrait(int(math.Round(base + noise)))
}
