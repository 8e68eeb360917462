// Package donorlist reads the donor-list file described in
// SPEC_FULL.md §6: either the flat `<popname> <count> [prior]
// [mutrate]` text format, or an optional YAML sidecar carrying the
// same four fields, when -f points at a .yaml file. Both produce the
// same List value.
package donorlist

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chromopainter/mutem/internal/chromoerr"
)

// Entry is one population row from the donor list.
type Entry struct {
	PopName string
	Count   int
	Prior   *float64
	MutRate *float64
}

// List is the parsed donor list, in file order.
type List []Entry

// PopSizes returns the Count of each entry, in order.
func (l List) PopSizes() []int {
	sizes := make([]int, len(l))
	for i, e := range l {
		sizes[i] = e.Count
	}
	return sizes
}

// PopNames returns the PopName of each entry, in order.
func (l List) PopNames() []string {
	names := make([]string, len(l))
	for i, e := range l {
		names[i] = e.PopName
	}
	return names
}

// Priors returns the Prior of each entry, or nil if no entry carries
// one (priors are all-or-nothing per SPEC_FULL.md §4.8).
func (l List) Priors() []float64 {
	for _, e := range l {
		if e.Prior == nil {
			return nil
		}
	}
	priors := make([]float64, len(l))
	for i, e := range l {
		priors[i] = *e.Prior
	}
	return priors
}

// MutRates returns the MutRate of each entry, or nil if no entry
// carries one. A population that omits its own mut-rate column while a
// sibling population supplies one is reported as -1, the sentinel
// hmm.ResolveMutRates fills in with the theta-based default.
func (l List) MutRates() []float64 {
	any := false
	for _, e := range l {
		if e.MutRate != nil {
			any = true
			break
		}
	}
	if !any {
		return nil
	}
	rates := make([]float64, len(l))
	for i, e := range l {
		if e.MutRate == nil {
			rates[i] = -1
			continue
		}
		rates[i] = *e.MutRate
	}
	return rates
}

// ReadFlat parses the flat `<popname> <count> [prior] [mutrate]`
// format.
func ReadFlat(r io.Reader) (List, error) {
	sc := bufio.NewScanner(r)
	var list List
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, chromoerr.New(chromoerr.InputFormat,
				"donor list line %d: want at least 2 columns, got %d", lineNo, len(fields))
		}
		count, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, chromoerr.Wrap(chromoerr.InputFormat, err, "donor list line %d count", lineNo)
		}
		e := Entry{PopName: fields[0], Count: count}
		if len(fields) >= 3 {
			v, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return nil, chromoerr.Wrap(chromoerr.InputFormat, err, "donor list line %d prior", lineNo)
			}
			e.Prior = &v
		}
		if len(fields) >= 4 {
			v, err := strconv.ParseFloat(fields[3], 64)
			if err != nil {
				return nil, chromoerr.Wrap(chromoerr.InputFormat, err, "donor list line %d mutrate", lineNo)
			}
			e.MutRate = &v
		}
		list = append(list, e)
	}
	if err := sc.Err(); err != nil {
		return nil, chromoerr.Wrap(chromoerr.IO, err, "reading donor list")
	}
	return list, nil
}

// yamlEntry mirrors Entry for YAML decoding, since Entry's pointer
// fields need matching optional yaml tags.
type yamlEntry struct {
	PopName string   `yaml:"pop_name"`
	Count   int      `yaml:"count"`
	Prior   *float64 `yaml:"prior,omitempty"`
	MutRate *float64 `yaml:"mut_rate,omitempty"`
}

type yamlDoc struct {
	Populations []yamlEntry `yaml:"populations"`
}

// ReadYAML parses the YAML sidecar format, matching the teacher's
// annotate.LoadDatabases use of yaml.v3 for structured config.
func ReadYAML(r io.Reader) (List, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, chromoerr.Wrap(chromoerr.IO, err, "reading donor list YAML")
	}
	var doc yamlDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, chromoerr.Wrap(chromoerr.InputFormat, err, "parsing donor list YAML")
	}
	list := make(List, len(doc.Populations))
	for i, ye := range doc.Populations {
		list[i] = Entry{PopName: ye.PopName, Count: ye.Count, Prior: ye.Prior, MutRate: ye.MutRate}
	}
	return list, nil
}
