// Package validate implements the option validator (C10, SPEC_FULL.md
// §4.8): every cross-flag and cross-file check that must fail fast,
// before any HMM computation starts.
package validate

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spaolacci/murmur3"

	"github.com/chromopainter/mutem/config"
	"github.com/chromopainter/mutem/dataset"
	"github.com/chromopainter/mutem/em"
	"github.com/chromopainter/mutem/internal/chromoerr"
)

// Run checks every invariant in SPEC_FULL.md §4.8 against the parsed
// configuration and dataset, returning the first violation found as a
// chromoerr.InvalidOptions (or chromoerr.InputFormat for donor-list
// count mismatches, which are a property of the input files rather
// than the flags themselves).
func Run(cfg *config.Run, ds *dataset.Dataset) error {
	if err := CheckRequiredFiles(cfg); err != nil {
		return err
	}
	if err := checkMutationSource(cfg); err != nil {
		return err
	}
	if err := checkEMSelection(cfg); err != nil {
		return err
	}
	if err := checkModeExclusion(cfg); err != nil {
		return err
	}
	if err := checkEMRunsRequireFlag(cfg); err != nil {
		return err
	}
	if err := checkStartPopCount(cfg, ds); err != nil {
		return err
	}
	if err := checkDonorListTotal(cfg, ds); err != nil {
		return err
	}
	if err := checkPriorSum(cfg, ds); err != nil {
		return err
	}
	return nil
}

// CheckRequiredFiles enforces §6's required-flag rules: -g is always
// required; -r is required unless -u; -f is required unless -a.
func CheckRequiredFiles(cfg *config.Run) error {
	if cfg.GenotypePath == "" {
		return chromoerr.New(chromoerr.InvalidOptions, "-g (genotype input) is required")
	}
	if cfg.RecombMapPath == "" && !cfg.Mode.Unlinked {
		return chromoerr.New(chromoerr.InvalidOptions, "-r (recombination map) is required unless -u is given")
	}
	if cfg.DonorListPath == "" && !cfg.Mode.AllVsAll {
		return chromoerr.New(chromoerr.InvalidOptions, "-f (donor list) is required unless -a is given")
	}
	return nil
}

func checkMutationSource(cfg *config.Run) error {
	if cfg.HMM.UseDonorListMut == cfg.HMM.GlobalMutRateSet {
		return chromoerr.New(chromoerr.InvalidOptions,
			"exactly one of -m or -M must be given (donor-list mut rate XOR a global rate)")
	}
	return nil
}

func checkEMSelection(cfg *config.Run) error {
	if cfg.HMM.EstimateMutPop && cfg.HMM.EstimateMutGlobal {
		return chromoerr.New(chromoerr.InvalidOptions, "at most one of -im or -iM may be given")
	}
	return nil
}

func checkModeExclusion(cfg *config.Run) error {
	if cfg.Mode.AllVsAll && cfg.Mode.RecipientConditioning {
		return chromoerr.New(chromoerr.InvalidOptions, "-a and -c are mutually exclusive")
	}
	return nil
}

func checkEMRunsRequireFlag(cfg *config.Run) error {
	if cfg.EMRuns <= 0 {
		return nil
	}
	flags := em.Flags{
		EstimateNE:        cfg.HMM.EstimateNE,
		EstimateCopyProb:  cfg.HMM.EstimateCopyProb,
		EstimateMutPop:    cfg.HMM.EstimateMutPop,
		EstimateMutGlobal: cfg.HMM.EstimateMutGlobal,
	}
	if !flags.Any() {
		return chromoerr.New(chromoerr.InvalidOptions,
			"-i %d requires at least one of -in, -ip, -im, -iM", cfg.EMRuns)
	}
	return nil
}

func checkStartPopCount(cfg *config.Run, ds *dataset.Dataset) error {
	if ds.NHapsStartPop == 0 && !cfg.Mode.AllVsAll {
		return chromoerr.New(chromoerr.InvalidOptions,
			"nhaps_startpop=0 is only valid together with -a")
	}
	return nil
}

func checkDonorListTotal(cfg *config.Run, ds *dataset.Dataset) error {
	var want int
	if cfg.Mode.AllVsAll {
		want = len(ds.DonorHaps) + totalRecipientHaps(ds)
	} else {
		want = ds.NHapsStartPop
	}
	var sum int
	for _, n := range ds.PopSizes {
		sum += n
	}
	if sum != want {
		return chromoerr.New(chromoerr.InputFormat,
			"donor-list population counts sum to %d, want %d", sum, want)
	}
	return nil
}

func totalRecipientHaps(ds *dataset.Dataset) int {
	var n int
	for _, r := range ds.Recipients {
		n += len(r.Haplotypes)
	}
	return n
}

func checkPriorSum(cfg *config.Run, ds *dataset.Dataset) error {
	if ds.PriorCopyProb == nil {
		return nil
	}
	var sum float64
	for _, p := range ds.PriorCopyProb {
		sum += p
	}
	const tol = 1e-9
	if cfg.Mode.RecipientConditioning {
		if sum <= 0 || sum >= 1-tol {
			return chromoerr.New(chromoerr.InvalidOptions,
				"priors must sum strictly within (0,1) in recipient-conditioning mode, got %v", sum)
		}
		return nil
	}
	if sum < 1-tol || sum > 1+tol {
		return chromoerr.New(chromoerr.InvalidOptions,
			"priors must sum to 1 in donor mode, got %v", sum)
	}
	return nil
}

// CheckPositions compares the recombination map's basepair column
// against the genotype file's positions, returning a unified diff of
// the mismatching lists in the error message when jitter is not
// enabled. With jitter enabled, mismatches are downgraded by the
// caller to a warning (logged, not returned as an error) -- this
// function always reports the mismatch; deciding whether it is fatal
// is the caller's job since it alone knows cfg.Mode.JitterLocations.
func CheckPositions(mapPositions, genoPositions []float64) error {
	if len(mapPositions) != len(genoPositions) {
		return chromoerr.New(chromoerr.InputFormat,
			"recombination map has %d rows, genotype file has %d positions", len(mapPositions), len(genoPositions))
	}
	for i := range mapPositions {
		if mapPositions[i] != genoPositions[i] {
			diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
				A:        difflib.SplitLines(formatPositions(mapPositions)),
				B:        difflib.SplitLines(formatPositions(genoPositions)),
				FromFile: "recomb_map",
				ToFile:   "genotype positions",
				Context:  2,
			})
			return chromoerr.New(chromoerr.InputFormat,
				"recombination map basepair column mismatches genotype positions at site %d:\n%s", i, diff)
		}
	}
	return nil
}

func formatPositions(ps []float64) string {
	s := ""
	for _, p := range ps {
		s += fmt.Sprintf("%v\n", p)
	}
	return s
}

// DuplicatePair names a donor row that collides, by murmur3 hash, with
// an earlier row at index First.
type DuplicatePair struct {
	First  int
	Second int
}

// WarnDuplicateDonors hashes every donor haplotype row with murmur3 and
// returns the indices of any rows sharing a hash with an earlier row,
// for the caller to log as a non-fatal warning (accidental duplicate
// donor rows are a common copy-paste mistake in hand-edited genotype
// files, not a format violation).
func WarnDuplicateDonors(donorHaps [][]dataset.Allele) []int {
	var dupes []int
	for _, pair := range DuplicateDonorPairs(donorHaps) {
		dupes = append(dupes, pair.Second)
	}
	return dupes
}

// DuplicateDonorPairs is WarnDuplicateDonors with the matching earlier
// row retained, so a caller can render a diff (DiffAlleleRows) between
// the two rather than just report an index.
func DuplicateDonorPairs(donorHaps [][]dataset.Allele) []DuplicatePair {
	seen := make(map[uint64]int, len(donorHaps))
	var dupes []DuplicatePair
	for i, row := range donorHaps {
		h := hashAlleleRow(row)
		if first, ok := seen[h]; ok {
			dupes = append(dupes, DuplicatePair{First: first, Second: i})
			continue
		}
		seen[h] = i
	}
	return dupes
}

func hashAlleleRow(row []dataset.Allele) uint64 {
	buf := make([]byte, len(row))
	for i, a := range row {
		buf[i] = byte(a)
	}
	return murmur3.Sum64(buf)
}

// DiffAlleleRows renders a character-level diff between two donor
// haplotype rows, for the rare case where WarnDuplicateDonors flags two
// rows as a murmur3 hash collision but they are not in fact identical --
// the caller can log this to distinguish a true duplicate from a
// collision before discarding it as noise.
func DiffAlleleRows(a, b []dataset.Allele) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(alleleRowString(a), alleleRowString(b), false)
	return dmp.DiffPrettyText(diffs)
}

func alleleRowString(row []dataset.Allele) string {
	var b strings.Builder
	for _, a := range row {
		fmt.Fprintf(&b, "%d", a)
	}
	return b.String()
}
