package model

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAgentDefaults(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	agent := NewAgent("a1", "Nova", "u1", now)

	assert.Equal(t, MinGeneration, agent.Generation)
	assert.Equal(t, NeutralTraits(), agent.Traits)
	assert.Equal(t, ProgressionCounters{}, agent.Counters)
	assert.Equal(t, InitialMood, agent.Mood)
	assert.Zero(t, agent.EvolutionProgress)
	assert.Equal(t, now, agent.CreatedAt)
	assert.Equal(t, "orb", agent.Visual.Form)
}

func TestTraitVectorWithClamps(t *testing.T) {
	v, err := NeutralTraits().With(TraitHumor, 140)
	require.NoError(t, err)
	assert.Equal(t, MaxTraitValue, v.Humor)

	v, err = v.With(TraitLogic, -3)
	require.NoError(t, err)
	assert.Equal(t, MinTraitValue, v.Logic)

	_, err = v.With("charisma", 10)
	require.Error(t, err)
}

func TestTraitVectorGetFollowsAxisOrder(t *testing.T) {
	v := TraitVector{Warmth: 1, Logic: 2, Creativity: 3, Energy: 4, Humor: 5}
	for i, axis := range TraitAxes {
		got, err := v.Get(axis)
		require.NoError(t, err)
		assert.Equal(t, v.Values()[i], got, axis)
	}
	assert.Equal(t, v, TraitVectorFromValues(v.Values()))
	assert.Equal(t, 15, v.Sum())
}

func TestVisualForPicksStrongestAxes(t *testing.T) {
	visual := VisualFor(TraitVector{Warmth: 10, Logic: 95, Creativity: 20, Energy: 10, Humor: 80})
	assert.Equal(t, traitColors[TraitLogic], visual.ColorPrimary)
	assert.Equal(t, traitColors[TraitHumor], visual.ColorSecondary)
	assert.Equal(t, "sphere", visual.Form)
	assert.LessOrEqual(t, visual.GlowIntensity, 1.0)
	assert.LessOrEqual(t, visual.ParticleCount, 50)
}

func TestVisualForTiesKeepAxisOrder(t *testing.T) {
	visual := VisualFor(TraitVector{Warmth: 100, Logic: 100, Creativity: 100, Energy: 100, Humor: 100})
	assert.Equal(t, traitColors[TraitWarmth], visual.ColorPrimary)
	assert.Equal(t, traitColors[TraitLogic], visual.ColorSecondary)
	assert.Equal(t, "abstract", visual.Form)
	assert.Equal(t, 50, visual.ParticleCount)
}

func TestRejectionMatchesSentinels(t *testing.T) {
	wrapped := fmt.Errorf("evolve: %w", NotEligible("not yet"))
	assert.True(t, errors.Is(wrapped, ErrNotEligible))
	assert.False(t, errors.Is(wrapped, ErrOnCooldown))

	rejection, ok := AsRejection(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeNotEligible, rejection.Code)
	assert.Equal(t, "not yet", rejection.Error())

	assert.True(t, errors.Is(OnCooldown("wait", 3), ErrOnCooldown))
	assert.True(t, errors.Is(RollFailed("unlucky"), ErrRollFailed))
}

func TestClampGeneration(t *testing.T) {
	assert.Equal(t, MinGeneration, ClampGeneration(-3))
	assert.Equal(t, MinGeneration, ClampGeneration(0))
	assert.Equal(t, 3, ClampGeneration(3))
	assert.Equal(t, MaxGeneration, ClampGeneration(9))
}
