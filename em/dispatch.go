package em

import (
	"math/rand"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/chromopainter/mutem/dataset"
	"github.com/chromopainter/mutem/hmm"
)

// Mode selects which haplotypes act as donors for a given recipient,
// per SPEC_FULL.md §4.7 (C8).
type Mode int

const (
	// ModeDonor copies every recipient from the fixed donor panel
	// (default behavior).
	ModeDonor Mode = iota
	// ModeRecipientConditioning (-c) additionally restricts the donor
	// panel to a named subset per recipient.
	ModeRecipientConditioning
	// ModeAllVsAll (-a) treats every haplotype in the dataset as both a
	// recipient and a potential donor to every other haplotype, excluding
	// self-copying.
	ModeAllVsAll
)

// Dispatcher walks the dataset's recipients (or, in all-vs-all mode,
// every haplotype) and runs a Driver against each one's donor panel.
type Dispatcher struct {
	Mode   Mode
	Driver *Driver
}

// RecipientSpec names one recipient's haplotypes and the donor panel
// (and corresponding population assignment) it should be copied from.
type RecipientSpec struct {
	Name        string
	Haplotypes  [][]dataset.Allele
	Donors      [][]dataset.Allele
	PopVec      []dataset.PopIndex
	PopSizes    []int
}

// Dispatch builds the RecipientSpec list from the dataset according to
// the selected mode. In ModeDonor and ModeRecipientConditioning, the
// donor panel is the dataset's fixed donor list (optionally narrowed by
// a per-recipient conditioning list). In ModeAllVsAll every donor
// haplotype also appears as a recipient in turn, with its own row
// removed from its own donor panel; its population's size is
// decremented by one for that recipient's run so copy_prob
// renormalization is still over the correct panel size
// (SPEC_FULL.md §4.7).
func (d *Dispatcher) Dispatch(ds *dataset.Dataset, conditioning map[string][]int) []RecipientSpec {
	switch d.Mode {
	case ModeAllVsAll:
		return dispatchAllVsAll(ds)
	case ModeRecipientConditioning:
		return dispatchConditioned(ds, conditioning)
	default:
		return dispatchDonorMode(ds)
	}
}

func dispatchDonorMode(ds *dataset.Dataset) []RecipientSpec {
	specs := make([]RecipientSpec, len(ds.Recipients))
	for i, r := range ds.Recipients {
		specs[i] = RecipientSpec{
			Name:       r.Name,
			Haplotypes: r.Haplotypes,
			Donors:     ds.DonorHaps,
			PopVec:     ds.PopVec,
			PopSizes:   ds.PopSizes,
		}
	}
	return specs
}

func dispatchConditioned(ds *dataset.Dataset, conditioning map[string][]int) []RecipientSpec {
	specs := make([]RecipientSpec, len(ds.Recipients))
	for i, r := range ds.Recipients {
		idxs, ok := conditioning[r.Name]
		if !ok {
			specs[i] = RecipientSpec{
				Name:       r.Name,
				Haplotypes: r.Haplotypes,
				Donors:     ds.DonorHaps,
				PopVec:     ds.PopVec,
				PopSizes:   ds.PopSizes,
			}
			continue
		}
		specs[i] = restrictPanel(r.Name, r.Haplotypes, ds, idxs)
	}
	return specs
}

func restrictPanel(name string, haps [][]dataset.Allele, ds *dataset.Dataset, keep []int) RecipientSpec {
	donors := make([][]dataset.Allele, len(keep))
	popVec := make([]dataset.PopIndex, len(keep))
	popCounts := make([]int, len(ds.PopSizes))
	for j, idx := range keep {
		donors[j] = ds.DonorHaps[idx]
		popVec[j] = ds.PopVec[idx]
		popCounts[popVec[j]]++
	}
	return RecipientSpec{
		Name:       name,
		Haplotypes: haps,
		Donors:     donors,
		PopVec:     popVec,
		PopSizes:   popCounts,
	}
}

// dispatchAllVsAll treats every donor haplotype as a recipient in turn,
// excluding its own row from its own donor panel. When that leaves its
// population empty, every later population index shifts down by one so
// popSizes stays contiguous; otherwise indices are unchanged.
func dispatchAllVsAll(ds *dataset.Dataset) []RecipientSpec {
	n := len(ds.DonorHaps)
	specs := make([]RecipientSpec, 0, n)
	for self := 0; self < n; self++ {
		selfPop := ds.PopVec[self]
		sizes := append([]int(nil), ds.PopSizes...)
		sizes[selfPop]--

		remap, newSizes := remapPopIndices(sizes)

		donors := make([][]dataset.Allele, 0, n-1)
		popVec := make([]dataset.PopIndex, 0, n-1)
		for h := 0; h < n; h++ {
			if h == self {
				continue
			}
			donors = append(donors, ds.DonorHaps[h])
			popVec = append(popVec, remap[ds.PopVec[h]])
		}

		specs = append(specs, RecipientSpec{
			Name:       ds.DonorNames[self],
			Haplotypes: [][]dataset.Allele{ds.DonorHaps[self]},
			Donors:     donors,
			PopVec:     popVec,
			PopSizes:   newSizes,
		})
	}
	return specs
}

// remapPopIndices drops any population left with zero members (the
// self individual was its sole donor) and compacts the survivors
// downward, so every downstream output column stays dense instead of
// carrying a zero-width gap -- the "population indices shift by 1"
// behavior SPEC_FULL.md §4.7 calls for.
func remapPopIndices(sizes []int) (map[dataset.PopIndex]dataset.PopIndex, []int) {
	present := make(map[int]bool, len(sizes))
	for p, n := range sizes {
		if n > 0 {
			present[p] = true
		}
	}
	survivors := maps.Keys(present)
	slices.Sort(survivors)

	remap := make(map[dataset.PopIndex]dataset.PopIndex, len(survivors))
	newSizes := make([]int, len(survivors))
	for newIdx, oldIdx := range survivors {
		remap[dataset.PopIndex(oldIdx)] = dataset.PopIndex(newIdx)
		newSizes[newIdx] = sizes[oldIdx]
	}
	return remap, newSizes
}

// RunAll dispatches and runs the EM driver over every recipient,
// returning one RecipientResult per spec in the same order.
func (d *Dispatcher) RunAll(
	specs []RecipientSpec,
	positions, lambda []float64,
	initParams *hmm.Params,
	rng *rand.Rand,
) ([]*RecipientResult, error) {
	results := make([]*RecipientResult, len(specs))
	for i, spec := range specs {
		res, err := d.Driver.Run(spec.Haplotypes, spec.Donors, positions, lambda, spec.PopVec, spec.PopSizes, initParams, rng)
		if err != nil {
			return nil, err
		}
		results[i] = res
	}
	return results, nil
}
