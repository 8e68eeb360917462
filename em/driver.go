package em

import (
	"math/rand"

	"github.com/chromopainter/mutem/dataset"
	"github.com/chromopainter/mutem/hmm"
	"github.com/chromopainter/mutem/internal/chromoerr"
)

// HapResult holds the final-iteration output for one of a recipient's K
// haplotypes: its drawn samples and (optionally) its per-locus
// population posteriors.
type HapResult struct {
	LogLikelihood float64
	Samples       [][]int
	PerLocus      [][]float64 // [site][pop], nil unless requested
}

// RecipientResult is everything the output writer (package io/output)
// needs to emit one recipient's rows across every output stream.
type RecipientResult struct {
	FinalParams  *hmm.Params
	PooledStats  *hmm.SufficientStats
	PerHap       []HapResult
	Iterations   int
	LogLikelihoods []float64 // per EM iteration, pooled across K haplotypes
}

// Driver runs the EM loop for one recipient (K in {1,2} haplotypes),
// per SPEC_FULL.md §4.6 (C7). EMRuns iterations of (forward, backward,
// update) run first; the final pass additionally samples and optionally
// emits per-locus posteriors, per the "Iterations = EMruns + 1" rule.
type Driver struct {
	Flags       Flags
	EMRuns      int
	NSamples    int
	RegionSize  float64
	Unlinked    bool
	WantPerLocus bool
	NChr        int // 1 (haploid) or 2 (diploid), for the theta default mutation rate
}

// Run executes the EM loop for one recipient.
func (drv *Driver) Run(
	recipientHaps [][]dataset.Allele,
	donors [][]dataset.Allele,
	positions, lambda []float64,
	popVec []dataset.PopIndex,
	popSizes []int,
	initParams *hmm.Params,
	rng *rand.Rand,
) (*RecipientResult, error) {
	k := len(recipientHaps)
	params := initParams.Clone()
	d := intervalDistances(positions, lambda)

	result := &RecipientResult{
		PerHap:     make([]HapResult, k),
		Iterations: drv.EMRuns + 1,
	}

	for iter := 0; iter < drv.EMRuns+1; iter++ {
		final := iter == drv.EMRuns
		transProb := hmm.TransProbs(positions, lambda, params.NE, drv.Unlinked)

		perHapStats := make([]*hmm.SufficientStats, k)
		perHapNE := make([]float64, k)
		var pooledLogLik float64

		for hapIdx, recipient := range recipientHaps {
			alpha, logLik, err := hmm.Forward(recipient, donors, transProb, params)
			if err != nil {
				return nil, chromoerr.Wrap(chromoerr.Numerical, err, "recipient haplotype %d", hapIdx)
			}
			pooledLogLik += logLik

			stats := hmm.Backward(recipient, donors, positions, lambda, transProb, params,
				alpha, logLik, popVec, len(popSizes), drv.RegionSize, drv.Unlinked, final && drv.WantPerLocus)
			perHapStats[hapIdx] = stats
			perHapNE[hapIdx] = updateNE(params.NE, d, stats)

			if final {
				samples, err := hmm.Sample(rng, alpha, transProb, params.CopyProb, drv.NSamples)
				if err != nil {
					return nil, chromoerr.Wrap(chromoerr.Numerical, err, "sampling recipient haplotype %d", hapIdx)
				}
				result.PerHap[hapIdx] = HapResult{
					LogLikelihood: logLik,
					Samples:       samples,
					PerLocus:      stats.PerLocusPopPosterior,
				}
			}
		}

		result.LogLikelihoods = append(result.LogLikelihoods, pooledLogLik)
		pooled := combineStats(perHapStats)

		if !final {
			drv.applyUpdates(params, pooled, perHapNE, popVec, popSizes, len(recipientHaps[0]), k)
		} else {
			result.PooledStats = pooled
			result.FinalParams = params
		}
	}

	return result, nil
}

func (drv *Driver) applyUpdates(params *hmm.Params, pooled *hmm.SufficientStats, perHapNE []float64, popVec []dataset.PopIndex, popSizes []int, l, k int) {
	if drv.Flags.EstimateNE && !drv.Unlinked {
		params.NE = averageNE(perHapNE)
	}
	if drv.Flags.EstimateCopyProb {
		// Same per-population re-estimation shape, run in parallel off
		// two different numerators (SPEC_FULL.md §4.4): copy_prob off the
		// summed jump-in mass, copy_prob_start off gamma_h(0).
		params.CopyProb = updateCopyProb(pooled.NewCopyProb, popVec, popSizes)
		params.CopyProbStart = updateCopyProb(pooled.Gamma0, popVec, popSizes)
	}
	if drv.Flags.EstimateMutPop {
		params.MutRate = updateMutation(pooled.Differences, popVec, popSizes, l, k, false)
	} else if drv.Flags.EstimateMutGlobal {
		params.MutRate = updateMutation(pooled.Differences, popVec, popSizes, l, k, true)
	}
}
