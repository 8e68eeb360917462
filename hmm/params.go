// Package hmm implements the Li & Stephens copying hidden Markov model at
// the core of ChromoPainter-MutEM: the log-space forward/backward
// recurrences, the stochastic backward sampler, and the sufficient
// statistics the EM driver (package em) needs to re-estimate N_e,
// copying proportions, and mutation rates.
package hmm

import (
	"fmt"

	"github.com/chromopainter/mutem/dataset"
)

// Params holds the mutable HMM parameters re-estimated by EM (SPEC_FULL
// §3 "HMM parameters"). A Params is cloned per recipient and mutated
// in-place across EM iterations; it is never shared between recipients.
type Params struct {
	// NE is the recombination scale (> 0).
	NE float64

	// CopyProb is the stationary copying distribution, one entry per
	// donor haplotype. Sums to 1, all entries >= dataset.SmallCopyVal.
	CopyProb []float64

	// CopyProbStart is the distribution at site 0. Same invariants as
	// CopyProb.
	CopyProbStart []float64

	// MutRate is the per-donor emission (mutation) probability.
	MutRate []float64
}

// Clone deep-copies p so EM iterations on one recipient never alias
// another recipient's (or the dataset-level default) parameters.
func (p *Params) Clone() *Params {
	clone := &Params{
		NE:            p.NE,
		CopyProb:      append([]float64(nil), p.CopyProb...),
		CopyProbStart: append([]float64(nil), p.CopyProbStart...),
		MutRate:       append([]float64(nil), p.MutRate...),
	}
	return clone
}

// Validate checks the invariants from SPEC_FULL.md §3: copy-prob vectors
// sum to 1 within tolerance and every entry is positive; mutation rates
// lie in [0,1].
func (p *Params) Validate(tol float64) error {
	if err := checkSimplex(p.CopyProb, tol); err != nil {
		return fmt.Errorf("copy_prob: %w", err)
	}
	if err := checkSimplex(p.CopyProbStart, tol); err != nil {
		return fmt.Errorf("copy_prob_start: %w", err)
	}
	for h, mu := range p.MutRate {
		if mu < 0 || mu > 1 {
			return fmt.Errorf("mut_rate[%d] = %v out of [0,1]", h, mu)
		}
	}
	return nil
}

func checkSimplex(v []float64, tol float64) error {
	var sum float64
	for i, x := range v {
		if x < dataset.SmallCopyVal {
			return fmt.Errorf("entry %d = %v below SmallCopyVal", i, x)
		}
		sum += x
	}
	if diff := sum - 1.0; diff > tol || diff < -tol {
		return fmt.Errorf("sums to %v, want 1 +/- %v", sum, tol)
	}
	return nil
}
