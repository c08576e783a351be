// Package random provides the injectable random source used by role
// assignment, complication selection and chain entry.
//
// Production wiring uses a math/rand generator seeded from crypto/rand.
// Tests use Scripted to replay a fixed sequence of draws.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"time"
)

// Source is the subset of *rand.Rand the engine draws from.
type Source interface {
	// Float64 returns a number in [0.0, 1.0).
	Float64() float64
	// Intn returns a number in [0, n). Panics if n <= 0.
	Intn(n int) int
	// Shuffle permutes n elements using swap.
	Shuffle(n int, swap func(i, j int))
}

// New returns a deterministic source for the given seed.
func New(seed int64) Source {
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

// Default returns a source seeded from crypto/rand, falling back to the
// wall clock when the system entropy pool is unavailable.
func Default() Source {
	seed, err := NewSeed()
	if err != nil {
		seed = time.Now().UnixNano()
	}
	return New(seed)
}

// Scripted replays fixed draws. Floats and Ints are consumed in order; once
// exhausted the last value repeats (or zero if none were given). Shuffle is
// the identity permutation.
type Scripted struct {
	Floats []float64
	Ints   []int

	fi, ii int
}

// Float64 returns the next scripted float.
func (s *Scripted) Float64() float64 {
	if len(s.Floats) == 0 {
		return 0
	}
	if s.fi >= len(s.Floats) {
		return s.Floats[len(s.Floats)-1]
	}
	v := s.Floats[s.fi]
	s.fi++
	return v
}

// Intn returns the next scripted int reduced modulo n.
func (s *Scripted) Intn(n int) int {
	if n <= 0 {
		panic("random: invalid argument to Intn")
	}
	if len(s.Ints) == 0 {
		return 0
	}
	var v int
	if s.ii >= len(s.Ints) {
		v = s.Ints[len(s.Ints)-1]
	} else {
		v = s.Ints[s.ii]
		s.ii++
	}
	if v < 0 {
		v = -v
	}
	return v % n
}

// Shuffle leaves the order unchanged.
func (s *Scripted) Shuffle(n int, swap func(i, j int)) {}
