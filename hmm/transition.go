package hmm

import "math"

// TransProbs computes the site-to-site jump probability for every
// interval i in [0, L-1), per SPEC_FULL.md §4.1 (C2):
//
//	TransProb[i] = 1                                              if unlinked or lambda[i] < 0
//	TransProb[i] = 1 - exp(-(positions[i+1]-positions[i])*lambda[i]*NE)  otherwise
//
// A jump redraws the copied donor from the stationary distribution
// copy_prob; otherwise the previously copied donor persists.
func TransProbs(positions, lambda []float64, ne float64, unlinked bool) []float64 {
	n := len(positions) - 1
	trans := make([]float64, n)
	for i := 0; i < n; i++ {
		if unlinked || lambda[i] < 0 {
			trans[i] = 1.0
			continue
		}
		d := (positions[i+1] - positions[i]) * lambda[i] * ne
		trans[i] = expm1Neg(d)
	}
	return trans
}

// expm1Neg returns 1 - exp(-x) using math.Expm1 for accuracy when x is
// small (as recombination intervals often are), avoiding the
// catastrophic cancellation of computing 1-exp(-x) directly.
func expm1Neg(x float64) float64 {
	return -math.Expm1(-x)
}
