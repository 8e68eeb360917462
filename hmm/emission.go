package hmm

import (
	"github.com/chromopainter/mutem/dataset"
)

// Emit returns P(obs | h) at site i: (1-mu_h) on a match, mu_h on a
// mismatch, per SPEC_FULL.md §4.2 (C3).
func Emit(recipientAllele dataset.Allele, donorHap []dataset.Allele, i int, mutRate float64) float64 {
	if recipientAllele == donorHap[i] {
		return 1 - mutRate
	}
	return mutRate
}

// DefaultMutRate computes the Li & Stephens (2003) theta-based default
// mutation rate used when a per-hap rate is unset (< 0):
//
//	theta = 1 / sum_{k=1}^{nChr-1} (1/k)
//	mu    = 0.5 * theta / (nDonor + theta)
func DefaultMutRate(nDonor, nChr int) float64 {
	var harmonic float64
	for k := 1; k < nChr; k++ {
		harmonic += 1.0 / float64(k)
	}
	if harmonic == 0 {
		// nChr <= 1 degenerates the harmonic sum; guard against
		// division by zero the way the original's theta would.
		return 0
	}
	theta := 1.0 / harmonic
	return 0.5 * theta / (float64(nDonor) + theta)
}

// ResolveMutRates fills in any per-donor mutation rate that is unset
// (< 0) with the theta-based default.
func ResolveMutRates(mutRate []float64, nChr int) {
	nDonor := len(mutRate)
	def := DefaultMutRate(nDonor, nChr)
	for i, mu := range mutRate {
		if mu < 0 {
			mutRate[i] = def
		}
	}
}

