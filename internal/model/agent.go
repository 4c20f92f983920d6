package model

import (
	"math"
	"sort"
	"time"
)

var traitColors = map[string]string{
	TraitWarmth:     "#F59E0B",
	TraitLogic:      "#06B6D4",
	TraitCreativity: "#A855F7",
	TraitEnergy:     "#22C55E",
	TraitHumor:      "#EAB308",
}

// NewAgent returns a generation 1 agent with neutral traits and zeroed
// progression counters.
func NewAgent(id, name, ownerID string, now time.Time) Agent {
	traits := NeutralTraits()
	return Agent{
		ID:         id,
		Name:       name,
		OwnerID:    ownerID,
		Generation: MinGeneration,
		Traits:     traits,
		Mood:       InitialMood,
		Visual:     VisualFor(traits),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// VisualFor derives the presentation state of an agent from its traits. The
// two strongest axes pick the colours; ties keep canonical axis order.
func VisualFor(traits TraitVector) VisualState {
	values := traits.Values()
	order := []int{0, 1, 2, 3, 4}
	sort.SliceStable(order, func(i, j int) bool {
		return values[order[i]] > values[order[j]]
	})

	avg := float64(traits.Sum()) / float64(len(values))
	glow := math.Min(1, 0.2+(avg/100)*0.4)
	particles := 10 + int(math.Floor((avg/100)*40))
	if particles > 50 {
		particles = 50
	}

	return VisualState{
		ColorPrimary:   traitColors[TraitAxes[order[0]]],
		ColorSecondary: traitColors[TraitAxes[order[1]]],
		GlowIntensity:  glow,
		ParticleCount:  particles,
		Form:           formFor(avg),
	}
}

func formFor(avg float64) string {
	switch {
	case avg < 30:
		return "point"
	case avg < 50:
		return "sphere"
	case avg < 70:
		return "orb"
	case avg < 90:
		return "complex"
	default:
		return "abstract"
	}
}
