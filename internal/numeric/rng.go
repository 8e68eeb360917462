package numeric

import (
	"math/rand"
	"time"
)

// NewRNG returns a *rand.Rand seeded from wall time, matching the
// original's single `srand((unsigned)time(NULL))` call at process start.
// Tests pass an explicit seed instead (via -seed in the CLI, or directly
// here) for reproducibility.
func NewRNG(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Uniform draws a single uniform(0,1) sample. Broken out as its own
// function so the sampler's call sites read like the spec's "draw a
// uniform u" steps rather than bare rng.Float64() calls scattered around.
func Uniform(rng *rand.Rand) float64 {
	return rng.Float64()
}
