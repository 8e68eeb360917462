package hmm_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/chromopainter/mutem/hmm"
)

// Clone must produce a value-identical but storage-independent copy: EM
// mutates a cloned Params in place across iterations, so any aliasing
// between a recipient's working copy and the dataset-level defaults
// would leak updates across recipients.
func TestParamsCloneIndependence(t *testing.T) {
	orig := &hmm.Params{
		NE:            1000,
		CopyProb:      []float64{0.25, 0.75},
		CopyProbStart: []float64{0.5, 0.5},
		MutRate:       []float64{0.01, 0.02},
	}

	clone := orig.Clone()
	if diff := cmp.Diff(orig, clone); diff != "" {
		t.Fatalf("clone differs from original before mutation (-orig +clone):\n%s", diff)
	}

	clone.CopyProb[0] = 0.9
	clone.MutRate[1] = 0.5
	clone.NE = 2000

	require.Equal(t, 0.25, orig.CopyProb[0], "mutating the clone must not affect the original")
	require.Equal(t, 0.02, orig.MutRate[1])
	require.Equal(t, float64(1000), orig.NE)

	if diff := cmp.Diff(orig, clone); diff == "" {
		t.Fatal("expected clone to diverge from original after mutating the clone")
	}
}

func TestParamsValidateRejectsBelowFloor(t *testing.T) {
	p := &hmm.Params{
		NE:            1000,
		CopyProb:      []float64{1e-20, 1 - 1e-20},
		CopyProbStart: []float64{0.5, 0.5},
		MutRate:       []float64{0.01, 0.02},
	}
	require.Error(t, p.Validate(1e-9))
}

func TestParamsValidateRejectsMutRateOutOfRange(t *testing.T) {
	p := &hmm.Params{
		NE:            1000,
		CopyProb:      []float64{0.5, 0.5},
		CopyProbStart: []float64{0.5, 0.5},
		MutRate:       []float64{0.01, 1.5},
	}
	require.Error(t, p.Validate(1e-9))
}
