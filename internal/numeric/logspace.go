// Package numeric holds the small set of numeric kernels shared by the
// forward pass, the backward pass, the sampler, and the accumulators:
// log-sum-exp with the max-subtraction trick, safe log/exp, and the
// uniform-draw helper the sampler uses for its stay-vs-jump decision.
//
// A single log-sum-exp implementation is shared everywhere on purpose
// (Design Note §9): nothing in this module exponentiates a log-probability
// without first subtracting the running maximum.
package numeric

import "math"

// NegInf is the log-probability of an impossible event.
var NegInf = math.Inf(-1)

// LogSumExp returns log(Σ exp(xs[i])), subtracting the maximum of xs
// before exponentiating to avoid overflow/underflow. An empty slice
// returns NegInf.
func LogSumExp(xs []float64) float64 {
	if len(xs) == 0 {
		return NegInf
	}
	max := xs[0]
	for _, x := range xs[1:] {
		if x > max {
			max = x
		}
	}
	if math.IsInf(max, -1) {
		return NegInf
	}
	var sum float64
	for _, x := range xs {
		sum += math.Exp(x - max)
	}
	return math.Log(sum) + max
}

// LogAdd returns log(exp(a) + exp(b)) via the two-term max-subtraction
// trick, used in the inner loops where allocating a slice for LogSumExp
// would be wasteful.
func LogAdd(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	}
	if math.IsInf(b, -1) {
		return a
	}
	max := a
	if b > max {
		max = b
	}
	return math.Log(math.Exp(a-max)+math.Exp(b-max)) + max
}

// SafeLog returns log(x), treating x<=0 as NegInf instead of NaN/-Inf
// propagating through arithmetic in a way that's hard to trace back.
func SafeLog(x float64) float64 {
	if x <= 0 {
		return NegInf
	}
	return math.Log(x)
}

// IsBadLikelihood reports whether a log-likelihood is the NaN or
// -Inf that spec.md §4.3/§7 call a fatal "numerical underflow" error.
func IsBadLikelihood(ll float64) bool {
	return math.IsNaN(ll) || math.IsInf(ll, -1)
}

// ShiftExp returns a new slice holding exp(x - shift) for every x in xs.
// The caller chooses shift (normally the maximum of xs); no sentinel
// values are handled here.
func ShiftExp(xs []float64, shift float64) []float64 {
	dst := make([]float64, len(xs))
	for i, x := range xs {
		dst[i] = math.Exp(x - shift)
	}
	return dst
}

// Max returns the maximum entry of xs and its index. Panics on an empty
// slice; callers always have at least one donor haplotype.
func Max(xs []float64) (float64, int) {
	maxV, maxI := xs[0], 0
	for i, x := range xs[1:] {
		if x > maxV {
			maxV = x
			maxI = i + 1
		}
	}
	return maxV, maxI
}
