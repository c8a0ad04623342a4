package maze

import (
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// DefaultSeed is used whenever no seed is supplied.
const DefaultSeed Seed = "0"

// Seed is the material that fixes the pseudo-random sequence of a maze.
type Seed string

// SeedFromFloat formats a numeric seed with the shortest representation that
// round-trips, so 0.5 and 0.50 map to the same seed and integers print
// without a fraction.
func SeedFromFloat(f float64) Seed {
	return Seed(strconv.FormatFloat(f, 'g', -1, 64))
}

// OrDefault returns s, or DefaultSeed when s is empty.
func (s Seed) OrDefault() Seed {
	if s == "" {
		return DefaultSeed
	}
	return s
}

// String returns the seed material.
func (s Seed) String() string {
	return string(s)
}

// Sequence is a reproducible stream of floats in [0, 1) derived from a seed.
// Draw n hashes the seed material followed by the decimal counter n, so every
// draw has its own derived seed and the stream never depends on the platform.
// A Sequence is not safe for concurrent use.
type Sequence struct {
	seed    Seed
	counter uint64
}

// NewSequence returns a sequence positioned at its first draw.
func NewSequence(seed Seed) *Sequence {
	return &Sequence{seed: seed.OrDefault()}
}

// Next returns the next value of the sequence.
func (s *Sequence) Next() float64 {
	v := Random(s.seed + Seed(strconv.FormatUint(s.counter, 10)))
	s.counter++
	return v
}

// Intn returns floor(Next() * n). n must be positive.
func (s *Sequence) Intn(n int) int {
	i := int(math.Floor(s.Next() * float64(n)))
	if i >= n { // guards float rounding at the top of the range
		i = n - 1
	}
	return i
}

// Random maps seed material to a float in [0, 1). It is a pure function of
// its input.
func Random(material Seed) float64 {
	h := xxhash.Sum64String(string(material))
	return float64(h>>11) / (1 << 53)
}
