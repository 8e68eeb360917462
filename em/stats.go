// Package em implements Expectation-Maximization around the package hmm
// forward/backward/sampler primitives: the per-recipient EM driver that
// averages sufficient statistics across the two haplotypes of a diploid
// (SPEC_FULL.md §4.6, C7) and the recipient dispatcher that selects
// donor/recipient-conditioning/all-vs-all mode (§4.7, C8).
package em

import (
	"github.com/chromopainter/mutem/dataset"
	"github.com/chromopainter/mutem/hmm"
)

// PoolByPop sums a per-donor-haplotype statistic into one value per
// population, for the output writer's per-population summary rows
// (.prop.out, .chunkcounts.out, .chunklengths.out).
func PoolByPop(perHap []float64, popVec []dataset.PopIndex, nPop int) []float64 {
	pooled := make([]float64, nPop)
	for h, v := range perHap {
		pooled[popVec[h]] += v
	}
	return pooled
}

// PerPopValue picks one representative entry per population out of a
// per-donor-haplotype parameter vector, for .mutationprobs.out. Unlike
// PoolByPop this is not a sum: FinalParams.MutRate already holds the
// same re-estimated rate for every donor in a population (em.updateMutation
// assigns uniformly within population, or globally under -iM), so the
// per-population row is that shared value, not its sum across donors.
func PerPopValue(perHap []float64, popVec []dataset.PopIndex, nPop int) []float64 {
	pooled := make([]float64, nPop)
	seen := make([]bool, nPop)
	for h, v := range perHap {
		p := popVec[h]
		if !seen[p] {
			pooled[p] = v
			seen[p] = true
		}
	}
	return pooled
}

// combineStats sums the per-haplotype sufficient statistics of a
// recipient's K haplotypes into one set of pooled statistics, which
// SPEC_FULL.md §4.6 uses for every parameter update except N_e (N_e is
// estimated per haplotype and then averaged -- see updateNE).
func combineStats(perHap []*hmm.SufficientStats) *hmm.SufficientStats {
	nDonor := len(perHap[0].NewCopyProb)
	nPop := len(perHap[0].RegionalChunkCountSum)
	nInterval := len(perHap[0].PerIntervalTransition)

	combined := &hmm.SufficientStats{
		NewCopyProb:                  make([]float64, nDonor),
		ChunkCount:                   make([]float64, nDonor),
		Gamma0:                       make([]float64, nDonor),
		ChunkLength:                  make([]float64, nDonor),
		Differences:                  make([]float64, nDonor),
		PerIntervalTransition:        make([]float64, nInterval),
		RegionalChunkCountSum:        make([]float64, nPop),
		RegionalChunkCountSumSquared: make([]float64, nPop),
	}

	for _, s := range perHap {
		for h := 0; h < nDonor; h++ {
			combined.NewCopyProb[h] += s.NewCopyProb[h]
			combined.ChunkCount[h] += s.ChunkCount[h]
			combined.Gamma0[h] += s.Gamma0[h]
			combined.ChunkLength[h] += s.ChunkLength[h]
			combined.Differences[h] += s.Differences[h]
		}
		for i := 0; i < nInterval; i++ {
			combined.PerIntervalTransition[i] += s.PerIntervalTransition[i]
		}
		for p := 0; p < nPop; p++ {
			combined.RegionalChunkCountSum[p] += s.RegionalChunkCountSum[p]
			combined.RegionalChunkCountSumSquared[p] += s.RegionalChunkCountSumSquared[p]
		}
		combined.ExpectedTransitions += s.ExpectedTransitions
		combined.TotalGenDist += s.TotalGenDist
		combined.NumRegions += s.NumRegions
	}
	return combined
}
