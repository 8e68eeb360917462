package hmm

import (
	"math"
	"math/rand"

	wr "github.com/mroth/weightedrand"

	"github.com/chromopainter/mutem/internal/numeric"
)

// weightScale turns a max-subtracted, already-exponentiated probability
// into an integer weight for weightedrand.Chooser, which only accepts
// uint weights. Scaling by 1e9 keeps enough resolution that two donors
// differing by one part in a billion still compare distinctly.
const weightScale = 1e9

// Sample draws nSamples independent hidden-state sequences for one
// recipient haplotype via the stochastic backward traceback of
// SPEC_FULL.md §4.5 (C6). It fires only on the final EM iteration.
// Draws are made from the given rand.Source so a run is reproducible
// given a fixed seed (SPEC_FULL.md §5); the max-subtraction trick is
// applied before any weight ever reaches weightedrand.
func Sample(src rand.Source, alpha *LogAlpha, transProb []float64, copyProb []float64, nSamples int) ([][]int, error) {
	L := alpha.L
	sequences := make([][]int, nSamples)
	for s := 0; s < nSamples; s++ {
		seq := make([]int, L)

		// Step 1: sample site L-1 proportional to exp(alpha[h][L-1]).
		last, err := categoricalPick(src, alpha.Row(L-1))
		if err != nil {
			return nil, err
		}
		seq[L-1] = last

		// Step 2: walk backward, deciding stay-vs-jump at each site.
		for i := L - 2; i >= 0; i-- {
			next := seq[i+1]
			rowI := alpha.Row(i)

			// Both masses are shifted by the same max(rowI) before
			// exponentiating, so their ratio (all noSwitch needs) is
			// unchanged; without the shift, alpha values at realistic L
			// underflow to 0 and the sampler would always jump.
			maxAlphaI, _ := numeric.Max(rowI)
			sumAlphaI := numeric.LogSumExp(rowI)
			jumpMass := math.Exp(sumAlphaI-maxAlphaI) * transProb[i] * copyProb[next]
			stayMass := math.Exp(rowI[next]-maxAlphaI) * (1 - transProb[i])
			z := jumpMass + stayMass

			var noSwitch float64
			if z > 0 {
				noSwitch = stayMass / z
			}

			v := numeric.Uniform(rand.New(src))
			if v <= noSwitch {
				seq[i] = next
				continue
			}

			picked, err := categoricalPick(src, rowI)
			if err != nil {
				return nil, err
			}
			seq[i] = picked
		}

		sequences[s] = seq
	}
	return sequences, nil
}

// categoricalPick draws an index h proportional to exp(logWeights[h]),
// using the max-subtraction trick before handing scaled integer weights
// to weightedrand.
func categoricalPick(src rand.Source, logWeights []float64) (int, error) {
	maxLW, _ := numeric.Max(logWeights)
	choices := make([]wr.Choice, len(logWeights))
	for h, lw := range logWeights {
		w := math.Exp(lw-maxLW) * weightScale
		iw := uint(w)
		if iw == 0 {
			iw = 1
		}
		choices[h] = wr.NewChoice(h, iw)
	}
	chooser, err := wr.NewChooser(choices...)
	if err != nil {
		return 0, err
	}
	return chooser.PickSource(rand.New(src)).(int), nil
}
