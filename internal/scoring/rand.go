package scoring

import "math/rand"

// Rand abstracts the random source used by exploration so deterministic
// branches can be unit-tested with a fixed source.
type Rand interface {
	// Float64 returns a pseudo-random value in [0.0, 1.0).
	Float64() float64
}

// SystemRand is the production Rand backed by math/rand's shared,
// lock-protected global source. Safe for concurrent use.
type SystemRand struct{}

// Float64 returns a pseudo-random value in [0.0, 1.0).
func (SystemRand) Float64() float64 {
	return rand.Float64()
}

// FixedRand always returns the same value. Used in tests to pin the
// stochastic branches of exploration.
type FixedRand struct {
	Value float64
}

// Float64 returns the fixed value.
func (f FixedRand) Float64() float64 {
	return f.Value
}

// SequenceRand replays a fixed sequence of values, wrapping around when
// exhausted. Used in tests that consume multiple draws.
type SequenceRand struct {
	Values []float64
	pos    int
}

// Float64 returns the next value in the sequence.
func (s *SequenceRand) Float64() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	v := s.Values[s.pos%len(s.Values)]
	s.pos++
	return v
}
