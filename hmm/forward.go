package hmm

import (
	"math"

	"github.com/chromopainter/mutem/dataset"
	"github.com/chromopainter/mutem/internal/chromoerr"
	"github.com/chromopainter/mutem/internal/numeric"
)

// LogAlpha is the forward log-alpha matrix, stored as a single
// contiguous buffer indexed by i*NDonor+h for cache locality (Design
// Note §9), rather than a slice of slices.
type LogAlpha struct {
	Values []float64
	L      int
	NDonor int
}

// At returns log alpha[h][i].
func (a *LogAlpha) At(i int, h int) float64 { return a.Values[i*a.NDonor+h] }

// Row returns the (read-only) slice of log alpha[.][i] for site i,
// useful for log-sum-exp over donors at a fixed site.
func (a *LogAlpha) Row(i int) []float64 { return a.Values[i*a.NDonor : (i+1)*a.NDonor] }

func (a *LogAlpha) set(i, h int, v float64) { a.Values[i*a.NDonor+h] = v }

// Forward computes the log-alpha matrix and the scalar log-likelihood
// for one recipient haplotype, per SPEC_FULL.md §4.3 (C4).
func Forward(recipient []dataset.Allele, donors [][]dataset.Allele, transProb []float64, p *Params) (*LogAlpha, float64, error) {
	L := len(recipient)
	nDonor := len(donors)
	alpha := &LogAlpha{Values: make([]float64, L*nDonor), L: L, NDonor: nDonor}

	// Initialization: alpha[h][0] = log(copy_prob_start[h] * emit(h,0)).
	for h := 0; h < nDonor; h++ {
		e := Emit(recipient[0], donors[h], 0, p.MutRate[h])
		alpha.set(0, h, numeric.SafeLog(p.CopyProbStart[h]*e))
	}

	for i := 1; i < L; i++ {
		prevTrans := transProb[i-1]
		logTrans := numeric.SafeLog(prevTrans)
		logOneMinusTrans := numeric.SafeLog(1 - prevTrans)

		// A_sum_{i-1} = log( sum_h exp(alpha[h][i-1]) ) + log(TransProb[i-1]).
		aSumPrev := numeric.LogSumExp(alpha.Row(i - 1))
		aSumPrevWeighted := aSumPrev + logTrans

		for h := 0; h < nDonor; h++ {
			e := Emit(recipient[i], donors[h], i, p.MutRate[h])
			logE := numeric.SafeLog(e)

			jumpTerm := numeric.SafeLog(p.CopyProb[h]) + aSumPrevWeighted
			stayTerm := logOneMinusTrans + alpha.At(i-1, h)

			alpha.set(i, h, logE+numeric.LogAdd(jumpTerm, stayTerm))
		}
	}

	logLikelihood := numeric.LogSumExp(alpha.Row(L - 1))
	if numeric.IsBadLikelihood(logLikelihood) {
		return nil, 0, chromoerr.New(chromoerr.Numerical,
			"forward pass produced a non-finite log-likelihood (%v) -- numerical underflow", logLikelihood)
	}
	if math.IsNaN(logLikelihood) {
		return nil, 0, chromoerr.New(chromoerr.Numerical, "forward pass produced NaN log-likelihood")
	}
	return alpha, logLikelihood, nil
}
