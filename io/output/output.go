// Package output writes the nine per-run output streams enumerated in
// SPEC_FULL.md §6 "Output files": per-recipient sample draws, the
// four per-population summary tables, the two regional-variance
// tables, the per-iteration diagnostics table, and the optional
// gzipped per-locus posterior stream. Each writer is a thin, append-
// only text formatter -- all of the numeric content comes from
// em.RecipientResult, computed upstream.
package output

import (
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/chromopainter/mutem/em"
)

// Sinks bundles every output stream for one run, opened once against
// the configured output prefix and closed together at the end.
type Sinks struct {
	Samples             io.WriteCloser
	Prop                io.WriteCloser
	ChunkCounts         io.WriteCloser
	ChunkLengths        io.WriteCloser
	MutationProbs       io.WriteCloser
	RegionChunkCounts   io.WriteCloser
	RegionSquaredCounts io.WriteCloser
	EMProbs             io.WriteCloser
	PerLocus            io.WriteCloser // gzip writer, nil unless -b
	perLocusRaw         io.WriteCloser
	SQLite              *sql.DB // nil unless -sqlite
}

// Open creates every text stream at prefix.<suffix>, plus the gzipped
// per-locus stream when wantPerLocus is set and the SQLite diagnostics
// database when sqlitePath is non-empty.
func Open(prefix string, wantPerLocus bool, sqlitePath string) (*Sinks, error) {
	s := &Sinks{}
	var err error
	if s.Samples, err = os.Create(prefix + ".samples.out"); err != nil {
		return nil, err
	}
	if s.Prop, err = os.Create(prefix + ".prop.out"); err != nil {
		return nil, err
	}
	if s.ChunkCounts, err = os.Create(prefix + ".chunkcounts.out"); err != nil {
		return nil, err
	}
	if s.ChunkLengths, err = os.Create(prefix + ".chunklengths.out"); err != nil {
		return nil, err
	}
	if s.MutationProbs, err = os.Create(prefix + ".mutationprobs.out"); err != nil {
		return nil, err
	}
	if s.RegionChunkCounts, err = os.Create(prefix + ".regionchunkcounts.out"); err != nil {
		return nil, err
	}
	if s.RegionSquaredCounts, err = os.Create(prefix + ".regionsquaredchunkcounts.out"); err != nil {
		return nil, err
	}
	if s.EMProbs, err = os.Create(prefix + ".EMprobs.out"); err != nil {
		return nil, err
	}
	if wantPerLocus {
		f, err := os.Create(prefix + ".copyprobsperlocus.out.gz")
		if err != nil {
			return nil, err
		}
		s.perLocusRaw = f
		s.PerLocus = gzip.NewWriter(f)
	}
	if sqlitePath != "" {
		db, err := sql.Open("sqlite3", sqlitePath)
		if err != nil {
			return nil, err
		}
		if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS em_iterations (
			recipient TEXT, iteration INTEGER, log_likelihood REAL, ne REAL, global_mut_rate REAL
		)`); err != nil {
			db.Close()
			return nil, err
		}
		s.SQLite = db
	}
	return s, nil
}

// Close closes every open stream, returning the first error
// encountered (but attempting to close them all regardless).
func (s *Sinks) Close() error {
	var first error
	record := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	for _, c := range []io.WriteCloser{s.Samples, s.Prop, s.ChunkCounts, s.ChunkLengths,
		s.MutationProbs, s.RegionChunkCounts, s.RegionSquaredCounts, s.EMProbs} {
		record(c.Close())
	}
	if s.PerLocus != nil {
		record(s.PerLocus.Close())
		record(s.perLocusRaw.Close())
	}
	if s.SQLite != nil {
		record(s.SQLite.Close())
	}
	return first
}

// WriteSamples emits the `.samples.out` rows for one recipient: a
// `HAP <k>` header per haplotype, then one row per drawn sample.
func WriteSamples(w io.Writer, recipientName string, result *em.RecipientResult) error {
	for hapIdx, hap := range result.PerHap {
		if _, err := fmt.Fprintf(w, "HAP %d\n", hapIdx+1); err != nil {
			return err
		}
		for sampleIdx, seq := range hap.Samples {
			if _, err := fmt.Fprintf(w, "%s_%d", recipientName, sampleIdx+1); err != nil {
				return err
			}
			for _, state := range seq {
				if _, err := fmt.Fprintf(w, " %d", state); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
	}
	return nil
}

// WritePerPopRow writes one `<recipient> <value_1> ... <value_p>` row
// to w, shared by .prop.out/.chunkcounts.out/.chunklengths.out/
// .mutationprobs.out. The first three differ only in which per-donor
// SufficientStats field is pooled to population level beforehand
// (em.PoolByPop); .mutationprobs.out carries one final mutation rate
// per population (em.PerPopValue).
func WritePerPopRow(w io.Writer, recipientName string, perPop []float64) error {
	if _, err := fmt.Fprintf(w, "%s", recipientName); err != nil {
		return err
	}
	for _, v := range perPop {
		if _, err := fmt.Fprintf(w, " %v", v); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}

// WriteRegionalRow writes one regional-statistics row, which carries an
// additional num_regions column (SPEC_FULL.md §6).
func WriteRegionalRow(w io.Writer, recipientName string, perPop []float64, numRegions int) error {
	if _, err := fmt.Fprintf(w, "%s %d", recipientName, numRegions); err != nil {
		return err
	}
	for _, v := range perPop {
		if _, err := fmt.Fprintf(w, " %v", v); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}

// WriteEMProbsRow writes one `.EMprobs.out` diagnostic row: recipient
// name, iteration index, log-likelihood, N_e, and a single
// representative global mutation rate (the first donor's, since all
// entries are equal after a global-mutation EM update).
func WriteEMProbsRow(w io.Writer, recipientName string, iteration int, logLik, ne, globalMutRate float64) error {
	_, err := fmt.Fprintf(w, "%s %d %v %v %v\n", recipientName, iteration, logLik, ne, globalMutRate)
	return err
}

// RecordSQLite mirrors WriteEMProbsRow into the optional SQLite sink,
// a no-op when s.SQLite is nil.
func (s *Sinks) RecordSQLite(recipientName string, iteration int, logLik, ne, globalMutRate float64) error {
	if s.SQLite == nil {
		return nil
	}
	_, err := s.SQLite.Exec(
		`INSERT INTO em_iterations (recipient, iteration, log_likelihood, ne, global_mut_rate) VALUES (?, ?, ?, ?, ?)`,
		recipientName, iteration, logLik, ne, globalMutRate)
	return err
}

// WritePerLocusRows writes the per-locus-per-recipient-hap posterior
// rows to the gzipped per-locus stream.
func WritePerLocusRows(w io.Writer, recipientName string, result *em.RecipientResult) error {
	for hapIdx, hap := range result.PerHap {
		for site, perPop := range hap.PerLocus {
			if _, err := fmt.Fprintf(w, "%s %d %d", recipientName, hapIdx+1, site); err != nil {
				return err
			}
			for _, v := range perPop {
				if _, err := fmt.Fprintf(w, " %v", v); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
	}
	return nil
}
