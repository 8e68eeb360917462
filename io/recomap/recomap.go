// Package recomap reads the recombination-map file described in
// SPEC_FULL.md §6: a header line followed by one `<basepair> <rate>`
// row per site. The basepair column is checked against the genotype
// file's positions by package validate, not here -- this package only
// parses the file and floors tiny non-negative rates.
package recomap

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/chromopainter/mutem/dataset"
	"github.com/chromopainter/mutem/internal/chromoerr"
)

// Map is the parsed recombination map: one basepair position and rate
// per site.
type Map struct {
	Positions []float64
	Rates     []float64
}

// Read parses a recombination-map file with exactly l rows following
// the header. Negative rates mark a chromosome break and are passed
// through unmodified (dataset.Dataset.Lambda treats a negative entry
// as "force a full reset"); tiny non-negative rates are floored to
// dataset.SmallRecomVal.
func Read(r io.Reader, l int) (*Map, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	if !sc.Scan() {
		return nil, chromoerr.New(chromoerr.InputFormat, "missing recombination map header")
	}

	m := &Map{Positions: make([]float64, 0, l), Rates: make([]float64, 0, l)}
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, chromoerr.New(chromoerr.InputFormat,
				"recombination map row %d: want 2 columns, got %d", len(m.Positions), len(fields))
		}
		bp, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, chromoerr.Wrap(chromoerr.InputFormat, err, "recombination map row %d basepair", len(m.Positions))
		}
		rate, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, chromoerr.Wrap(chromoerr.InputFormat, err, "recombination map row %d rate", len(m.Positions))
		}
		if rate >= 0 && rate < dataset.SmallRecomVal {
			rate = dataset.SmallRecomVal
		}
		m.Positions = append(m.Positions, bp)
		m.Rates = append(m.Rates, rate)
	}
	if err := sc.Err(); err != nil {
		return nil, chromoerr.Wrap(chromoerr.IO, err, "reading recombination map")
	}
	if len(m.Positions) != l {
		return nil, chromoerr.New(chromoerr.InputFormat,
			"recombination map has %d rows, want %d", len(m.Positions), l)
	}
	return m, nil
}

// Lambda converts a Map's l rates into the l-1 interval-lambda values
// Dataset.Lambda expects: the rate at the left endpoint of each
// interval, or -1 when that left-endpoint rate marks a chromosome break.
func (m *Map) Lambda() []float64 {
	lambda := make([]float64, len(m.Rates)-1)
	for i := range lambda {
		if m.Rates[i] < 0 {
			lambda[i] = -1
			continue
		}
		lambda[i] = m.Rates[i]
	}
	return lambda
}
