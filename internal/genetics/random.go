package genetics

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// RandomSource yields uniform draws in [0, 1). *rand.Rand satisfies it.
//
// Every stochastic step of inheritance, mutation and the breeding success
// roll pulls from one RandomSource in a fixed order, so a seeded source
// reproduces an entire breeding event.
type RandomSource interface {
	Float64() float64
}

// NewSource returns a deterministic source for seed.
func NewSource(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Roll draws a percentile value in [0, 100).
func Roll(rng RandomSource) float64 {
	return rng.Float64() * 100
}
