// Package testkit holds helpers shared by engine tests.
package testkit

import (
	"math/rand"
	"sync"
)

// ScriptedSource replays fixed draws in order and falls back to a seeded
// generator once the script is exhausted.
type ScriptedSource struct {
	mu       sync.Mutex
	draws    []float64
	next     int
	fallback *rand.Rand
}

func NewScriptedSource(draws ...float64) *ScriptedSource {
	return &ScriptedSource{
		draws:    append([]float64(nil), draws...),
		fallback: rand.New(rand.NewSource(1)),
	}
}

func (s *ScriptedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next < len(s.draws) {
		v := s.draws[s.next]
		s.next++
		return v
	}
	s.next++
	return s.fallback.Float64()
}

// Consumed reports how many draws have been taken.
func (s *ScriptedSource) Consumed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// BlendDraws returns ten draws that make Blend use ratio and zero noise on
// every axis.
func BlendDraws(ratioDraw float64) []float64 {
	out := make([]float64, 0, 10)
	for i := 0; i < 5; i++ {
		out = append(out, ratioDraw, 0.5)
	}
	return out
}
