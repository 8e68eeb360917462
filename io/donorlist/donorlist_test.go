package donorlist_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/chromopainter/mutem/io/donorlist"
)

func f64(v float64) *float64 { return &v }

// ReadFlat and ReadYAML describe the same donor-list shape from two
// surfaces; a list expressed equivalently in both formats must parse to
// the same value, field for field.
func TestReadFlatAndReadYAMLAgree(t *testing.T) {
	flat := "popA 2 0.6 0.01\npopB 3 0.4 0.02\n"
	yamlDoc := `
populations:
  - pop_name: popA
    count: 2
    prior: 0.6
    mut_rate: 0.01
  - pop_name: popB
    count: 3
    prior: 0.4
    mut_rate: 0.02
`

	flatList, err := donorlist.ReadFlat(strings.NewReader(flat))
	require.NoError(t, err)

	yamlList, err := donorlist.ReadYAML(strings.NewReader(yamlDoc))
	require.NoError(t, err)

	if diff := cmp.Diff(flatList, yamlList); diff != "" {
		t.Fatalf("flat and YAML parses differ (-flat +yaml):\n%s", diff)
	}

	want := donorlist.List{
		{PopName: "popA", Count: 2, Prior: f64(0.6), MutRate: f64(0.01)},
		{PopName: "popB", Count: 3, Prior: f64(0.4), MutRate: f64(0.02)},
	}
	if diff := cmp.Diff(want, flatList); diff != "" {
		t.Fatalf("parsed list differs from expected (-want +got):\n%s", diff)
	}
}

func TestReadFlatMissingOptionalColumns(t *testing.T) {
	list, err := donorlist.ReadFlat(strings.NewReader("popA 5\npopB 10\n"))
	require.NoError(t, err)

	require.Nil(t, list.Priors())
	require.Nil(t, list.MutRates())
	require.Equal(t, []int{5, 10}, list.PopSizes())
	require.Equal(t, []string{"popA", "popB"}, list.PopNames())
}

func TestReadFlatRejectsBadCount(t *testing.T) {
	_, err := donorlist.ReadFlat(strings.NewReader("popA notanumber\n"))
	require.Error(t, err)
}
