package hmm

import (
	"math"

	"github.com/chromopainter/mutem/dataset"
	"github.com/chromopainter/mutem/internal/numeric"
)

// Delta is declared and always set to 1 in the original implementation
// (Open Question, SPEC_FULL.md §9): it exists only to permit future
// map-rescaling experiments and is never varied here either.
const Delta = 1.0

// DefaultRegionSize is the number of expected chunks that make up one
// "region" for the regional chunk-count variance statistics (-k flag).
const DefaultRegionSize = 100.0

// regionRoundingSlack absorbs floating-point slop when comparing the
// running regional chunk count against the region-size threshold.
const regionRoundingSlack = 1e-7

// SufficientStats holds the posterior-weighted sufficient statistics
// accumulated by one backward pass over one recipient haplotype, per
// SPEC_FULL.md §4.4 (C5).
type SufficientStats struct {
	// NewCopyProb[h] is the sum over intervals of xi_h(i), the
	// feeding term for the copy_prob EM update.
	NewCopyProb []float64

	// ChunkCount[h] is the sum over intervals of xi_h(i) plus gamma_h(0),
	// correcting for the first chunk which has no preceding jump into h.
	ChunkCount []float64

	// Gamma0[h] is gamma_h(0), the posterior at the first site. It feeds
	// both the ChunkCount correction above and the CopyProbStart EM
	// update, which is estimated from gamma_h(0) rather than from
	// NewCopyProb (SPEC_FULL.md §4.4's "runs in parallel" update for the
	// initial distribution).
	Gamma0 []float64

	// ChunkLength[h] is the expected total length (in cM) of chunks
	// copied from h.
	ChunkLength []float64

	// Differences[h] is the expected number of mismatching sites
	// between the recipient and donor h.
	Differences []float64

	// ExpectedTransitions is the sum over all donors and intervals of
	// xi_h(i): the total expected number of jumps.
	ExpectedTransitions float64

	// TotalGenDist is sum_i (positions[i+1]-positions[i])*lambda[i].
	TotalGenDist float64

	// PerIntervalTransition[i] is p_trans(i) = sum_h xi_h(i), used by
	// the N_e EM update.
	PerIntervalTransition []float64

	// RegionalChunkCountSum[p] / RegionalChunkCountSumSquared[p] are
	// the per-population sums (and sums of squares) of per-region
	// chunk counts, flushed every ~regionSize expected chunks.
	RegionalChunkCountSum        []float64
	RegionalChunkCountSumSquared []float64
	NumRegions                  int

	// PerLocusPopPosterior[i][p], when requested, is sum_{h in p}
	// gamma_h(i) -- the per-population posterior copying probability
	// at site i. Nil unless explicitly requested (final EM iteration
	// only, per SPEC_FULL.md §4.4).
	PerLocusPopPosterior [][]float64
}

func newSufficientStats(nDonor, nPop, l int, wantPerLocus bool) *SufficientStats {
	s := &SufficientStats{
		NewCopyProb:                  make([]float64, nDonor),
		ChunkCount:                   make([]float64, nDonor),
		Gamma0:                       make([]float64, nDonor),
		ChunkLength:                  make([]float64, nDonor),
		Differences:                  make([]float64, nDonor),
		PerIntervalTransition:        make([]float64, l-1),
		RegionalChunkCountSum:        make([]float64, nPop),
		RegionalChunkCountSumSquared: make([]float64, nPop),
	}
	if wantPerLocus {
		s.PerLocusPopPosterior = make([][]float64, l)
		for i := range s.PerLocusPopPosterior {
			s.PerLocusPopPosterior[i] = make([]float64, nPop)
		}
	}
	return s
}

// Backward runs the log-space backward recursion, streaming two rolling
// beta vectors, and accumulates the sufficient statistics described in
// SPEC_FULL.md §4.4. logAlpha/logLikelihood come from a prior call to
// Forward on the same recipient haplotype.
func Backward(
	recipient []dataset.Allele,
	donors [][]dataset.Allele,
	positions, lambda []float64,
	transProb []float64,
	p *Params,
	logAlpha *LogAlpha,
	logLikelihood float64,
	popVec []dataset.PopIndex,
	nPop int,
	regionSize float64,
	unlinked bool,
	wantPerLocus bool,
) *SufficientStats {
	L := logAlpha.L
	nDonor := logAlpha.NDonor
	stats := newSufficientStats(nDonor, nPop, L, wantPerLocus)

	if regionSize <= 0 {
		regionSize = DefaultRegionSize
	}

	betaPrev := make([]float64, nDonor) // beta[h][L-1] = 1 -> log 0
	betaCurr := make([]float64, nDonor)
	regionalChunkCount := make([]float64, nDonor)
	betaSumNewTerms := make([]float64, nDonor)
	var totalRegionalChunkCount float64

	// gamma_h(L-1) and the per-locus posterior at the last site use
	// beta=0 directly, since betaPrev is initialized to log(1)=0.
	for h := 0; h < nDonor; h++ {
		gamma := math.Exp(logAlpha.At(L-1, h) + betaPrev[h] - logLikelihood)
		if mismatch(recipient, donors[h], L-1) {
			stats.Differences[h] += gamma
		}
		if wantPerLocus {
			stats.PerLocusPopPosterior[L-1][popVec[h]] += gamma
		}
	}

	for i := L - 2; i >= 0; i-- {
		logTrans := numeric.SafeLog(transProb[i])
		logOneMinusTrans := numeric.SafeLog(1 - transProb[i])

		// betaSumNewTerms collects, over h, log(TransProb[i]*copy_prob[h]*emit(h,i+1)*beta[h][i+1]);
		// their log-sum is the jump term shared by every beta[.][i].
		betaSumNewTerms = betaSumNewTerms[:0]

		var intervalTransitionSum float64
		d := (positions[i+1] - positions[i]) * lambda[i]

		for h := 0; h < nDonor; h++ {
			emitNext := Emit(recipient[i+1], donors[h], i+1, p.MutRate[h])
			logEmitNext := numeric.SafeLog(emitNext)

			// beta[h][i] = (1-TransProb[i])*emit(h,i+1)*beta[h][i+1] + TransProb[i]*sum_h' copy_prob[h']*emit(h',i+1)*beta[h'][i+1]
			stayTerm := logOneMinusTrans + logEmitNext + betaPrev[h]
			jumpWeighted := logTrans + numeric.SafeLog(p.CopyProb[h]) + logEmitNext + betaPrev[h]
			betaSumNewTerms = append(betaSumNewTerms, jumpWeighted)
			betaCurr[h] = stayTerm // jump contribution added below via logAdd against the shared jump-sum
		}
		jumpSum := numeric.LogSumExp(betaSumNewTerms)
		for h := 0; h < nDonor; h++ {
			betaCurr[h] = numeric.LogAdd(betaCurr[h], jumpSum)
		}

		for h := 0; h < nDonor; h++ {
			toIToI := math.Exp(logAlpha.At(i, h)+betaPrev[h]-logLikelihood) *
				Emit(recipient[i+1], donors[h], i+1, p.MutRate[h]) *
				(1 - transProb[i] + transProb[i]*p.CopyProb[h])
			toINext := math.Exp(logAlpha.At(i+1, h) + betaPrev[h] - logLikelihood)
			toIExcludeI := toINext - toIToI
			fromICurr := math.Exp(logAlpha.At(i, h) + betaCurr[h] - logLikelihood)
			fromIExcludeI := fromICurr - toIToI

			xi := toINext - math.Exp(logAlpha.At(i, h)+betaPrev[h]-logLikelihood)*
				Emit(recipient[i+1], donors[h], i+1, p.MutRate[h])*(1-transProb[i])

			stats.NewCopyProb[h] += xi
			stats.ChunkCount[h] += xi
			regionalChunkCount[h] += xi
			intervalTransitionSum += xi

			if !unlinked && lambda[i] >= 0 {
				chunkLengthMass := toIToI + 0.5*(toIExcludeI+fromIExcludeI)
				stats.ChunkLength[h] += 100 * d * Delta * chunkLengthMass
			}

			gamma := fromICurr
			if i == 0 {
				stats.Gamma0[h] = gamma
			}
			if mismatch(recipient, donors[h], i) {
				stats.Differences[h] += gamma
			}
			if wantPerLocus {
				stats.PerLocusPopPosterior[i][popVec[h]] += gamma
			}
		}

		stats.PerIntervalTransition[i] = intervalTransitionSum
		stats.ExpectedTransitions += intervalTransitionSum
		if lambda[i] >= 0 {
			stats.TotalGenDist += d
		}
		totalRegionalChunkCount += intervalTransitionSum

		if totalRegionalChunkCount+regionRoundingSlack >= regionSize {
			flushRegion(regionalChunkCount, popVec, stats)
			totalRegionalChunkCount = 0
			stats.NumRegions++
		}

		betaPrev, betaCurr = betaCurr, betaPrev
	}

	// The first chunk has no preceding jump into h, so xi never counts
	// it; gamma_h(0) makes ChunkCount whole (SPEC_FULL.md §4.4,
	// "corrected: at the end add gamma_h(0) to count the first chunk" --
	// ChromoPainterMutEM.c:1052's unconditional corrected_chunk_count
	// add).
	for h := 0; h < nDonor; h++ {
		stats.ChunkCount[h] += stats.Gamma0[h]
	}

	return stats
}

func flushRegion(regionalChunkCount []float64, popVec []dataset.PopIndex, stats *SufficientStats) {
	sums := make([]float64, len(stats.RegionalChunkCountSum))
	for h, v := range regionalChunkCount {
		sums[popVec[h]] += v
		regionalChunkCount[h] = 0
	}
	for pIdx, v := range sums {
		stats.RegionalChunkCountSum[pIdx] += v
		stats.RegionalChunkCountSumSquared[pIdx] += v * v
	}
}

func mismatch(recipient []dataset.Allele, donor []dataset.Allele, i int) bool {
	return recipient[i] != donor[i]
}
