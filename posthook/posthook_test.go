package posthook_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chromopainter/mutem/posthook"
)

func writeStepsFile(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "steps.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadSteps(t *testing.T) {
	path := writeStepsFile(t, `
steps:
  - name: echo-prefix
    command: echo
    args: ["{prefix}"]
`)
	steps, err := posthook.LoadSteps(path)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "echo-prefix", steps[0].Name)
	assert.Equal(t, "echo", steps[0].Command)
	assert.Equal(t, []string{"{prefix}"}, steps[0].Args)
}

func TestRunAllSubstitutesPrefix(t *testing.T) {
	steps := posthook.Steps{{
		Name:    "echo-prefix",
		Command: "echo",
		Args:    []string{"hello-{prefix}"},
	}}
	var log bytes.Buffer
	rows, err := posthook.RunAll(steps, "run1", &log)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Contains(t, log.String(), "hello-run1")
}

func TestRunAllStopsOnFirstFailure(t *testing.T) {
	steps := posthook.Steps{
		{Name: "ok", Command: "true"},
		{Name: "broken", Command: "/no/such/binary"},
		{Name: "never-runs", Command: "true"},
	}
	var log bytes.Buffer
	_, err := posthook.RunAll(steps, "run1", &log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}
