package model

import "fmt"

// ClampTrait bounds a trait score to [MinTraitValue, MaxTraitValue].
func ClampTrait(v int) int {
	if v < MinTraitValue {
		return MinTraitValue
	}
	if v > MaxTraitValue {
		return MaxTraitValue
	}
	return v
}

// ClampGeneration bounds a generation to [MinGeneration, MaxGeneration].
func ClampGeneration(g int) int {
	if g < MinGeneration {
		return MinGeneration
	}
	if g > MaxGeneration {
		return MaxGeneration
	}
	return g
}

func NeutralTraits() TraitVector {
	return TraitVector{
		Warmth:     NeutralTraitValue,
		Logic:      NeutralTraitValue,
		Creativity: NeutralTraitValue,
		Energy:     NeutralTraitValue,
		Humor:      NeutralTraitValue,
	}
}

// Get returns the score for the named axis.
func (v TraitVector) Get(axis string) (int, error) {
	switch axis {
	case TraitWarmth:
		return v.Warmth, nil
	case TraitLogic:
		return v.Logic, nil
	case TraitCreativity:
		return v.Creativity, nil
	case TraitEnergy:
		return v.Energy, nil
	case TraitHumor:
		return v.Humor, nil
	default:
		return 0, fmt.Errorf("unknown trait axis: %s", axis)
	}
}

// With returns a copy of v with the named axis set to value, clamped.
func (v TraitVector) With(axis string, value int) (TraitVector, error) {
	value = ClampTrait(value)
	switch axis {
	case TraitWarmth:
		v.Warmth = value
	case TraitLogic:
		v.Logic = value
	case TraitCreativity:
		v.Creativity = value
	case TraitEnergy:
		v.Energy = value
	case TraitHumor:
		v.Humor = value
	default:
		return TraitVector{}, fmt.Errorf("unknown trait axis: %s", axis)
	}
	return v, nil
}

// Values returns the scores in TraitAxes order.
func (v TraitVector) Values() [5]int {
	return [5]int{v.Warmth, v.Logic, v.Creativity, v.Energy, v.Humor}
}

func (v TraitVector) Sum() int {
	return v.Warmth + v.Logic + v.Creativity + v.Energy + v.Humor
}

// Clamped returns v with every axis bounded to the trait range.
func (v TraitVector) Clamped() TraitVector {
	return TraitVector{
		Warmth:     ClampTrait(v.Warmth),
		Logic:      ClampTrait(v.Logic),
		Creativity: ClampTrait(v.Creativity),
		Energy:     ClampTrait(v.Energy),
		Humor:      ClampTrait(v.Humor),
	}
}

func TraitVectorFromValues(values [5]int) TraitVector {
	return TraitVector{
		Warmth:     values[0],
		Logic:      values[1],
		Creativity: values[2],
		Energy:     values[3],
		Humor:      values[4],
	}
}
