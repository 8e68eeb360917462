// Package posthook runs optional external post-processing commands
// against a completed run's output files -- downstream consumers such
// as population-structure plotting or summary scripts that fall
// outside this module's Non-goals but are common enough to deserve a
// configured hook rather than a one-off shell wrapper. Adapted from the
// teacher's annotate package, which drove external sequence-search
// tools (BLAST/Diamond/Infernal) the same way: a YAML-configured list
// of named external commands, each run and optionally parsed back as
// CSV.
package posthook

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"gopkg.in/yaml.v3"
)

// Step is one external command to run after a chromopainter run
// completes. Args may contain the literal substring "{prefix}", which
// is replaced with the run's output prefix before exec.
type Step struct {
	Name     string   `yaml:"name"`
	Command  string   `yaml:"command"`
	Args     []string `yaml:"args"`
	ParseCSV bool     `yaml:"parse_csv"`
}

// Steps is an ordered list of post-processing steps, decoded from a
// YAML file the way the teacher's annotate.Database loaded a sequence
// database list.
type Steps []Step

// Row is one parsed output row when a Step sets ParseCSV, keyed by the
// command's own CSV header.
type Row map[string]string

// LoadSteps reads a YAML file of the form `steps: [...]` into a Steps
// list.
func LoadSteps(path string) (Steps, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var doc struct {
		Steps Steps `yaml:"steps"`
	}
	if err := yaml.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("posthook: parsing %s: %w", path, err)
	}
	return doc.Steps, nil
}

// RunAll executes every step in order against outputPrefix, logging
// each command's stdout/stderr to log. A step with ParseCSV set has its
// stdout captured to a temp file and parsed back into Rows; other steps
// contribute no rows. The first step to fail stops the run and returns
// its error, along with whatever rows earlier steps already produced.
func RunAll(steps Steps, outputPrefix string, log io.Writer) ([]Row, error) {
	var rows []Row
	for _, step := range steps {
		r, err := runStep(step, outputPrefix, log)
		if err != nil {
			return rows, fmt.Errorf("posthook: step %q: %w", step.Name, err)
		}
		rows = append(rows, r...)
	}
	return rows, nil
}

func runStep(step Step, outputPrefix string, log io.Writer) ([]Row, error) {
	args := make([]string, len(step.Args))
	for i, a := range step.Args {
		args[i] = strings.ReplaceAll(a, "{prefix}", outputPrefix)
	}

	if !step.ParseCSV {
		cmd := exec.Command(step.Command, args...)
		cmd.Stdout = log
		cmd.Stderr = log
		return nil, cmd.Run()
	}

	outFile, err := os.CreateTemp("", "posthook_*.csv")
	if err != nil {
		return nil, err
	}
	defer os.Remove(outFile.Name())
	defer outFile.Close()

	cmd := exec.Command(step.Command, args...)
	cmd.Stdout = outFile
	cmd.Stderr = log
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return readCSV(outFile.Name())
}

func readCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rows, err
		}
		row := make(Row, len(headers))
		for i, h := range headers {
			if i < len(record) {
				row[h] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
