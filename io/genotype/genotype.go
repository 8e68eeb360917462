// Package genotype reads the PHASE-style genotype input described in
// SPEC_FULL.md §6: a single unified reader (Design Note §9) regardless
// of which recipient mode a run ultimately selects. Mode selection
// happens afterward, in package em's dispatcher.
package genotype

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chromopainter/mutem/dataset"
	"github.com/chromopainter/mutem/internal/chromoerr"
)

// Options controls the few reader behaviors that depend on run flags:
// jitter policy for colliding positions and whether remaining rows
// beyond nhaps_startpop should be grouped into diploid pairs.
type Options struct {
	JitterPositions bool
	Haploid         bool
}

// Read parses a PHASE-style genotype file per SPEC_FULL.md §6 ¶1:
// nhaps_startpop, nind, L, a "P "-prefixed position line, an ignored
// site-type line, then one allele row per haplotype up to the end of
// the input (blank lines are skipped). The first
// nhaps_startpop rows become ds.DonorHaps; the remainder are grouped
// into ds.Recipients (singles if Haploid, consecutive pairs otherwise).
func Read(r io.Reader, opt Options) (*dataset.Dataset, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024*1024), 64*1024*1024)

	nHapsStartPop, err := readIntLine(sc, "nhaps_startpop")
	if err != nil {
		return nil, err
	}
	nIndFloat, err := readFloatLine(sc, "nind")
	if err != nil {
		return nil, err
	}
	if nIndFloat != float64(int(nIndFloat)) {
		return nil, chromoerr.New(chromoerr.InputFormat, "nind must be integral, got %v", nIndFloat)
	}
	l, err := readIntLine(sc, "L")
	if err != nil {
		return nil, err
	}
	if l < 1 {
		return nil, chromoerr.New(chromoerr.InputFormat, "L must be >= 1, got %d", l)
	}

	if !sc.Scan() {
		return nil, chromoerr.New(chromoerr.InputFormat, "missing position line")
	}
	positions, err := parsePositionLine(sc.Text(), l, opt.JitterPositions)
	if err != nil {
		return nil, err
	}

	if !sc.Scan() {
		return nil, chromoerr.New(chromoerr.InputFormat, "missing site-type line")
	}
	// Site-type line content is ignored (SPEC_FULL.md §6).

	var rows [][]dataset.Allele
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		row, err := parseAlleleRow(sc.Text(), l, len(rows))
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, chromoerr.Wrap(chromoerr.IO, err, "reading genotype file")
	}

	if nHapsStartPop > len(rows) {
		return nil, chromoerr.New(chromoerr.InputFormat,
			"nhaps_startpop=%d exceeds %d total haplotype rows", nHapsStartPop, len(rows))
	}

	ds := &dataset.Dataset{
		L:             l,
		Positions:     positions,
		Lambda:        make([]float64, l-1),
		DonorHaps:     rows[:nHapsStartPop],
		NHapsStartPop: nHapsStartPop,
	}

	recipientRows := rows[nHapsStartPop:]
	step := 2
	if opt.Haploid {
		step = 1
	}
	for i := 0; i+step <= len(recipientRows); i += step {
		ds.Recipients = append(ds.Recipients, dataset.Recipient{
			Name:       fmt.Sprintf("recipient_%d", len(ds.Recipients)),
			Haplotypes: recipientRows[i : i+step],
		})
	}

	return ds, nil
}

func readIntLine(sc *bufio.Scanner, what string) (int, error) {
	if !sc.Scan() {
		return 0, chromoerr.New(chromoerr.InputFormat, "missing %s line", what)
	}
	v, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
	if err != nil {
		return 0, chromoerr.Wrap(chromoerr.InputFormat, err, "parsing %s", what)
	}
	return v, nil
}

func readFloatLine(sc *bufio.Scanner, what string) (float64, error) {
	if !sc.Scan() {
		return 0, chromoerr.New(chromoerr.InputFormat, "missing %s line", what)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(sc.Text()), 64)
	if err != nil {
		return 0, chromoerr.Wrap(chromoerr.InputFormat, err, "parsing %s", what)
	}
	return v, nil
}

func parsePositionLine(line string, l int, jitter bool) ([]float64, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != "P" {
		return nil, chromoerr.New(chromoerr.InputFormat, "position line must start with %q", "P")
	}
	fields = fields[1:]
	if len(fields) != l {
		return nil, chromoerr.New(chromoerr.InputFormat, "position line has %d entries, want %d", len(fields), l)
	}
	positions := make([]float64, l)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, chromoerr.Wrap(chromoerr.InputFormat, err, "parsing position %d", i)
		}
		positions[i] = v
	}
	for i := 1; i < l; i++ {
		if positions[i] <= positions[i-1] {
			if !jitter {
				return nil, chromoerr.New(chromoerr.InputFormat,
					"positions not strictly increasing at site %d (%v <= %v)", i, positions[i], positions[i-1])
			}
			positions[i] = positions[i-1] + 1
		}
	}
	return positions, nil
}

func parseAlleleRow(line string, l int, rowIdx int) ([]dataset.Allele, error) {
	line = strings.TrimSpace(line)
	if len(line) != l {
		return nil, chromoerr.New(chromoerr.InputFormat,
			"haplotype row %d has length %d, want %d", rowIdx, len(line), l)
	}
	row := make([]dataset.Allele, l)
	for i := 0; i < l; i++ {
		a, err := dataset.ParseAllele(line[i])
		if err != nil {
			return nil, chromoerr.Wrap(chromoerr.InputFormat, err, "haplotype row %d site %d", rowIdx, i)
		}
		row[i] = a
	}
	return row, nil
}
