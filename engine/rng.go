package engine

import "math/rand"

// Rand is the single seeded random stream threaded through a tick. It
// wraps an explicit *rand.Rand, rather than relying on package-level
// math/rand.Seed, so two callers holding independent Rand values never
// share state: replaying the same seed and command trace must produce
// byte-identical output, which a shared global generator cannot guarantee
// once ensemble members run concurrently.
type Rand struct {
	src *rand.Rand
}

// NewRand seeds a new, independent random stream.
func NewRand(seed uint64) *Rand {
	return &Rand{src: rand.New(rand.NewSource(int64(seed)))}
}

// Derive produces a new, independent stream seeded deterministically from
// this one combined with salt — used by the predictor to turn one base
// seed into N independent ensemble-member streams.
func (r *Rand) Derive(salt uint64) *Rand {
	return NewRand(uint64(r.src.Int63()) ^ salt)
}

// Float64 returns a pseudo-random number in [0.0, 1.0).
func (r *Rand) Float64() float64 { return r.src.Float64() }

// Intn returns a pseudo-random number in [0, n).
func (r *Rand) Intn(n int) int { return r.src.Intn(n) }

// NormFloat64 returns a normally distributed float64 (mean 0, stddev 1).
func (r *Rand) NormFloat64() float64 { return r.src.NormFloat64() }
