package em

import (
	"math"

	"github.com/chromopainter/mutem/dataset"
	"github.com/chromopainter/mutem/hmm"
)

// Flags selects which HMM parameters this recipient's EM loop
// maximizes; parameters not selected remain unchanged across
// iterations (SPEC_FULL.md §4.6 step 3).
type Flags struct {
	EstimateNE        bool
	EstimateCopyProb  bool
	EstimateMutPop    bool // per-population mutation rate (-im)
	EstimateMutGlobal bool // single global mutation rate (-iM)
}

// Any reports whether at least one parameter is selected for EM
// maximization (§4.8 requires this whenever EMruns > 0).
func (f Flags) Any() bool {
	return f.EstimateNE || f.EstimateCopyProb || f.EstimateMutPop || f.EstimateMutGlobal
}

// updateNE re-estimates N_e for one haplotype from its own sufficient
// statistics, per SPEC_FULL.md §4.4:
//
//	N_e' = sum_i ( (N_e*d_i) / (1-exp(-N_e*d_i)) ) * p_trans(i) / total_gen_dist
//
// Not meaningful in unlinked mode (TransProb is forced to 1 and there
// is no genetic distance to regress against); the driver still calls
// it there but discards the result and keeps N_e fixed.
func updateNE(ne float64, d []float64, stats *hmm.SufficientStats) float64 {
	if stats.TotalGenDist <= 0 {
		return ne
	}
	var sum float64
	for i, di := range d {
		if di <= 0 {
			continue
		}
		x := ne * di
		weight := x / -math.Expm1(-x)
		sum += weight * stats.PerIntervalTransition[i]
	}
	return sum / stats.TotalGenDist
}

// averageNE averages the per-haplotype N_e re-estimates across the K
// haplotypes of one recipient (§4.6 step 4).
func averageNE(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// updateCopyProb re-estimates the per-population copying proportions
// from the pooled (summed-across-K) sufficient statistics, per
// SPEC_FULL.md §4.4 "Copying-proportion update":
//
//	copy_prob_pop[p] = (sum_{h in p} new_copy_prob[h]) / sum new_copy_prob
//
// floored to small_copy_val*pop_size[p] when below it, renormalized, then
// spread uniformly within each population to the per-donor vector.
func updateCopyProb(numerator []float64, popVec []dataset.PopIndex, popSizes []int) []float64 {
	pop := make([]float64, len(popSizes))
	var total float64
	for h, v := range numerator {
		pop[popVec[h]] += v
		total += v
	}
	if total <= 0 {
		total = 1
	}
	for p := range pop {
		pop[p] /= total
		if pop[p] < dataset.SmallCopyVal*float64(popSizes[p]) {
			pop[p] = dataset.SmallCopyVal * float64(popSizes[p])
		}
	}
	renormalize(pop)

	perHap := make([]float64, len(numerator))
	for h := range perHap {
		p := popVec[h]
		perHap[h] = pop[p] / float64(popSizes[p])
	}
	return perHap
}

func renormalize(v []float64) {
	var sum float64
	for _, x := range v {
		sum += x
	}
	if sum <= 0 {
		return
	}
	for i := range v {
		v[i] /= sum
	}
}

// updateMutation re-estimates mutation rates per population (and, when
// requested, collapses them to one global rate), per SPEC_FULL.md §4.4
// "Mutation update":
//
//	mu_p   = (sum_{h in p} differences[h]) / (L*K)
//	mu_all = sum_p mu_p
func updateMutation(differences []float64, popVec []dataset.PopIndex, popSizes []int, l, k int, global bool) []float64 {
	pop := make([]float64, len(popSizes))
	for h, v := range differences {
		pop[popVec[h]] += v
	}
	denom := float64(l * k)
	for p := range pop {
		pop[p] /= denom
	}

	perHap := make([]float64, len(differences))
	if global {
		var all float64
		for _, mu := range pop {
			all += mu
		}
		for h := range perHap {
			perHap[h] = all
		}
		return perHap
	}
	for h := range perHap {
		perHap[h] = pop[popVec[h]]
	}
	return perHap
}

// intervalDistances returns d_i = (positions[i+1]-positions[i])*lambda[i]
// for every interval, used by updateNE.
func intervalDistances(positions, lambda []float64) []float64 {
	d := make([]float64, len(lambda))
	for i := range d {
		if lambda[i] < 0 {
			d[i] = -1
			continue
		}
		d[i] = (positions[i+1] - positions[i]) * lambda[i]
	}
	return d
}
