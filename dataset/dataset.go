// Package dataset holds the immutable-after-load data model a
// ChromoPainter-MutEM run is built from: the phased genotype matrix, the
// recombination map, and the donor population metadata. A Dataset is
// built once per run (§3 of SPEC_FULL.md); HMM parameters derived from it
// are cloned per recipient and mutated across EM iterations elsewhere
// (package hmm/em), never here.
package dataset

import "fmt"

// Allele is one of {0,1,A,C,G,T} encoded as an integer 0..5.
type Allele uint8

const (
	Allele0 Allele = iota
	Allele1
	AlleleA
	AlleleC
	AlleleG
	AlleleT
	nAlleles
)

// ParseAllele converts a single input character into an Allele.
func ParseAllele(b byte) (Allele, error) {
	switch b {
	case '0':
		return Allele0, nil
	case '1':
		return Allele1, nil
	case 'A', 'a':
		return AlleleA, nil
	case 'C', 'c':
		return AlleleC, nil
	case 'G', 'g':
		return AlleleG, nil
	case 'T', 't':
		return AlleleT, nil
	default:
		return 0, fmt.Errorf("invalid allele byte %q", b)
	}
}

// SiteIndex indexes a site in [0, L).
type SiteIndex int

// HapIndex indexes a donor haplotype in [0, N_donor).
type HapIndex int

// PopIndex indexes a population in [0, P].
type PopIndex int

// SmallCopyVal is the per-hap floor for copying proportions: EM raises
// a population whose re-estimated proportion falls below
// SmallCopyVal*pop_size back to that value before renormalizing.
const SmallCopyVal = 1e-15

// SmallRecomVal is the floor applied to tiny non-negative recombination
// rates read from the genetic map.
const SmallRecomVal = 1e-15

// Dataset is the immutable-after-load input to a run: the phased SNP
// matrix, genetic map, and donor/recipient partition.
type Dataset struct {
	// L is the number of sites. L >= 1.
	L int

	// Positions holds strictly increasing basepair positions.
	Positions []float64

	// Lambda holds per-interval recombination scaling (len L-1).
	// A negative entry marks a chromosome break (infinite genetic
	// distance): the interval forces a full reset (TransProb=1).
	Lambda []float64

	// RecomMap holds the recombination rate of each genetic-map row
	// (len L, one per site), floored to SmallRecomVal when tiny and
	// non-negative, or negative to mark a chromosome break.
	RecomMap []float64

	// DonorHaps holds one allele row per donor haplotype, each of
	// length L. len(DonorHaps) is N_donor, which depends on mode.
	DonorHaps [][]Allele

	// RecipientHaps holds the K in {1,2} haplotype rows of the
	// current recipient. Neither the loader nor the dispatcher sets it
	// (the dispatcher hands each recipient's rows over in an
	// em.RecipientSpec), so it stays nil.
	RecipientHaps [][]Allele

	// NHapsStartPop is the count of designated donor haplotypes
	// (row 1 of the genotype input).
	NHapsStartPop int

	// PopSizes holds donor haplotype counts per population.
	PopSizes []int

	// PopVec maps a donor haplotype index to its population index.
	// The optional "self" population P is the recipient-conditioning
	// pool.
	PopVec []PopIndex

	// PopNames holds population labels (from the donor list), aligned
	// with PopSizes.
	PopNames []string

	// PriorCopyProb holds optional user-supplied priors summing to 1
	// (or to <1 when a "self" population exists, absorbing the
	// remainder). Nil when not supplied.
	PriorCopyProb []float64

	// MutRate holds per-donor emission (mutation) probabilities, as
	// read from the donor list; -1 marks an unset entry. Unset entries
	// are resolved to the theta default (hmm.ResolveMutRates) in the
	// run's initial parameters, not here.
	MutRate []float64

	// Unlinked marks that sites are declared unlinked (-u): every
	// TransProb is forced to 1.0 and N_e is not estimated.
	Unlinked bool

	// DonorNames holds one label per donor haplotype, aligned with
	// DonorHaps and PopVec. In all-vs-all mode these double as recipient
	// names.
	DonorNames []string

	// Recipients holds the non-donor haplotype rows (donor mode and
	// recipient-conditioning mode only; empty in all-vs-all mode, where
	// the dispatcher draws recipients directly from DonorHaps).
	Recipients []Recipient

	// ContentHash is a hex-encoded blake3 digest of the raw genotype
	// file bytes, stamped into the diagnostics output so a rerun against
	// a same-named but edited input is distinguishable from a true
	// repeat run.
	ContentHash string
}

// Recipient names one recipient and its K in {1,2} haplotype rows.
type Recipient struct {
	Name       string
	Haplotypes [][]Allele
}

// NDonor returns the number of donor haplotypes currently available to
// copy from.
func (d *Dataset) NDonor() int { return len(d.DonorHaps) }

// NPop returns the number of donor populations, excluding the optional
// "self" pool.
func (d *Dataset) NPop() int { return len(d.PopSizes) }

// Validate checks the structural invariants from SPEC_FULL.md §3 that
// are cheap to check anywhere a Dataset is constructed or cloned. The
// full cross-option validation lives in package validate.
func (d *Dataset) Validate() error {
	if d.L < 1 {
		return fmt.Errorf("dataset: L must be >= 1, got %d", d.L)
	}
	if len(d.Positions) != d.L {
		return fmt.Errorf("dataset: %d positions, want %d", len(d.Positions), d.L)
	}
	if len(d.Lambda) != d.L-1 {
		return fmt.Errorf("dataset: %d lambda entries, want %d", len(d.Lambda), d.L-1)
	}
	for i := 1; i < d.L; i++ {
		if d.Positions[i] <= d.Positions[i-1] {
			return fmt.Errorf("dataset: positions not strictly increasing at site %d", i)
		}
	}
	for _, h := range d.DonorHaps {
		if len(h) != d.L {
			return fmt.Errorf("dataset: donor haplotype has %d sites, want %d", len(h), d.L)
		}
	}
	if d.NDonor() == 0 {
		// Only all-vs-all mode is allowed to start with zero donors
		// (spec.md §3 invariant); the dispatcher enforces the mode
		// check, this just documents the invariant exists.
		return nil
	}
	return nil
}
