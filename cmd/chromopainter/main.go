// Command chromopainter runs ChromoPainter-MutEM: Li & Stephens
// copying-HMM reconstruction of recipient haplotypes as donor mosaics,
// with EM estimation of the recombination scale, copying proportions,
// and mutation rates, and posterior sampling of hidden donor-state
// sequences.
package main

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"
	"lukechampine.com/blake3"

	"github.com/chromopainter/mutem/config"
	"github.com/chromopainter/mutem/dataset"
	"github.com/chromopainter/mutem/em"
	"github.com/chromopainter/mutem/hmm"
	"github.com/chromopainter/mutem/internal/chromoerr"
	"github.com/chromopainter/mutem/internal/logging"
	"github.com/chromopainter/mutem/internal/numeric"
	"github.com/chromopainter/mutem/io/donorlist"
	"github.com/chromopainter/mutem/io/genotype"
	"github.com/chromopainter/mutem/io/output"
	"github.com/chromopainter/mutem/io/recomap"
	"github.com/chromopainter/mutem/posthook"
	"github.com/chromopainter/mutem/validate"
)

func main() {
	logging.Debug("invoked with argv: %v", os.Args[1:])

	cfg := config.Default()
	help, err := config.ParseArgs(cfg, os.Args[1:])
	if err != nil {
		fail(cfg, chromoerr.Wrap(chromoerr.InvalidOptions, err, "parsing arguments"))
	}
	if help {
		fmt.Println(config.HelpText(terminalWidth()))
		return
	}
	logging.SetVerbose(cfg.Sinks.Verbose)
	logging.Debug("invoked with argv: %v", os.Args[1:])

	if err := run(cfg); err != nil {
		fail(cfg, err)
	}
}

func run(cfg *config.Run) error {
	if err := validate.CheckRequiredFiles(cfg); err != nil {
		return err
	}
	ds, err := loadDataset(cfg)
	if err != nil {
		return err
	}
	if err := ds.Validate(); err != nil {
		return chromoerr.Wrap(chromoerr.InputFormat, err, "dataset")
	}
	if err := validate.Run(cfg, ds); err != nil {
		return err
	}
	if pairs := validate.DuplicateDonorPairs(ds.DonorHaps); len(pairs) > 0 {
		logging.Warn("donor list contains %d duplicate haplotype row(s)", len(pairs))
		for _, pair := range pairs {
			logging.Debug("donor %d duplicates donor %d:\n%s", pair.Second, pair.First,
				validate.DiffAlleleRows(ds.DonorHaps[pair.First], ds.DonorHaps[pair.Second]))
		}
	}
	logging.Debug("dataset: %s", spew.Sdump(ds))

	initParams, err := buildInitialParams(cfg, ds)
	if err != nil {
		return err
	}
	logging.Debug("initial params: %s", spew.Sdump(initParams))

	dispatcher := &em.Dispatcher{
		Mode: resolveMode(cfg),
		Driver: &em.Driver{
			Flags: em.Flags{
				EstimateNE:        cfg.HMM.EstimateNE,
				EstimateCopyProb:  cfg.HMM.EstimateCopyProb,
				EstimateMutPop:    cfg.HMM.EstimateMutPop,
				EstimateMutGlobal: cfg.HMM.EstimateMutGlobal,
			},
			EMRuns:       cfg.EMRuns,
			NSamples:     cfg.SamplesPerHap,
			RegionSize:   cfg.ChunksPerRegion,
			Unlinked:     cfg.Mode.Unlinked,
			WantPerLocus: cfg.Sinks.GzipPerLocus,
			NChr:         nChr(cfg.Mode.Haploid),
		},
	}
	specs := dispatcher.Dispatch(ds, nil)

	seed := cfg.Seed
	if !cfg.SeedSet {
		seed = 0
	}
	rng := numeric.NewRNG(seed)

	sinks, err := output.Open(cfg.Sinks.OutputPrefix, cfg.Sinks.GzipPerLocus, cfg.Sinks.SQLitePath)
	if err != nil {
		return chromoerr.Wrap(chromoerr.IO, err, "opening output files")
	}
	fmt.Fprintf(sinks.EMProbs, "# dataset_hash=%s\n", ds.ContentHash)
	defer sinks.Close()

	results, err := dispatcher.RunAll(specs, ds.Positions, ds.Lambda, initParams, rng)
	if err != nil {
		return err
	}
	for i, spec := range specs {
		if err := emitRecipient(sinks, spec, results[i]); err != nil {
			return chromoerr.Wrap(chromoerr.IO, err, "writing output for %s", spec.Name)
		}
	}

	if cfg.Sinks.PostHookPath != "" {
		if err := runPostHooks(cfg); err != nil {
			return err
		}
	}
	return nil
}

func runPostHooks(cfg *config.Run) error {
	steps, err := posthook.LoadSteps(cfg.Sinks.PostHookPath)
	if err != nil {
		return chromoerr.Wrap(chromoerr.IO, err, "loading post-hook steps")
	}
	if _, err := posthook.RunAll(steps, cfg.Sinks.OutputPrefix, os.Stderr); err != nil {
		return chromoerr.Wrap(chromoerr.IO, err, "running post-hook steps")
	}
	return nil
}

func loadDataset(cfg *config.Run) (*dataset.Dataset, error) {
	raw, err := os.ReadFile(cfg.GenotypePath)
	if err != nil {
		return nil, chromoerr.Wrap(chromoerr.IO, err, "opening genotype file")
	}

	ds, err := genotype.Read(bytes.NewReader(raw), genotype.Options{
		JitterPositions: cfg.Mode.JitterLocations,
		Haploid:         cfg.Mode.Haploid,
	})
	if err != nil {
		return nil, err
	}
	sum := blake3.Sum256(raw)
	ds.ContentHash = hex.EncodeToString(sum[:])
	ds.DonorNames = make([]string, ds.NDonor())
	for i := range ds.DonorNames {
		ds.DonorNames[i] = fmt.Sprintf("donor_%d", i+1)
	}

	if cfg.Mode.Unlinked {
		for i := range ds.Lambda {
			ds.Lambda[i] = 0
		}
	} else if cfg.RecombMapPath != "" {
		mapFile, err := os.Open(cfg.RecombMapPath)
		if err != nil {
			return nil, chromoerr.Wrap(chromoerr.IO, err, "opening recombination map")
		}
		defer mapFile.Close()

		m, err := recomap.Read(mapFile, ds.L)
		if err != nil {
			return nil, err
		}
		if posErr := validate.CheckPositions(m.Positions, ds.Positions); posErr != nil {
			if cfg.Mode.JitterLocations {
				logging.Warn("recombination map/genotype position mismatch, continuing (jitter enabled): %v", posErr)
			} else {
				return nil, posErr
			}
		}
		ds.RecomMap = m.Rates
		ds.Lambda = m.Lambda()
	}

	if cfg.DonorListPath != "" {
		listFile, err := os.Open(cfg.DonorListPath)
		if err != nil {
			return nil, chromoerr.Wrap(chromoerr.IO, err, "opening donor list")
		}
		defer listFile.Close()

		var list donorlist.List
		if isYAMLPath(cfg.DonorListPath) {
			list, err = donorlist.ReadYAML(listFile)
		} else {
			list, err = donorlist.ReadFlat(listFile)
		}
		if err != nil {
			return nil, err
		}
		ds.PopSizes = list.PopSizes()
		ds.PopNames = list.PopNames()
		ds.PriorCopyProb = list.Priors()
		if rates := list.MutRates(); rates != nil {
			ds.MutRate = expandPerPop(rates, ds.PopSizes)
		}
		ds.PopVec = assignPopVec(ds.PopSizes)
	} else {
		ds.PopSizes = []int{ds.NHapsStartPop}
		ds.PopNames = []string{"pop1"}
		ds.PopVec = assignPopVec(ds.PopSizes)
	}

	ds.Unlinked = cfg.Mode.Unlinked
	return ds, nil
}

func isYAMLPath(path string) bool {
	n := len(path)
	return n >= 5 && path[n-5:] == ".yaml"
}

func assignPopVec(popSizes []int) []dataset.PopIndex {
	vec := make([]dataset.PopIndex, 0)
	for p, n := range popSizes {
		for i := 0; i < n; i++ {
			vec = append(vec, dataset.PopIndex(p))
		}
	}
	return vec
}

func expandPerPop(perPop []float64, popSizes []int) []float64 {
	out := make([]float64, 0)
	for p, n := range popSizes {
		for i := 0; i < n; i++ {
			out = append(out, perPop[p])
		}
	}
	return out
}

func buildInitialParams(cfg *config.Run, ds *dataset.Dataset) (*hmm.Params, error) {
	nDonor := ds.NDonor()
	ne := cfg.HMM.NEStart
	if !cfg.HMM.NEStartSet {
		ne = 400000 / float64(totalHaps(ds))
	}

	copyProb := make([]float64, nDonor)
	if cfg.HMM.UseDonorListPrior && ds.PriorCopyProb != nil {
		copy(copyProb, expandPerPop(ds.PriorCopyProb, ds.PopSizes))
	} else {
		uniform := 1.0 / float64(nDonor)
		for i := range copyProb {
			copyProb[i] = uniform
		}
	}

	mutRate := make([]float64, nDonor)
	switch {
	case cfg.HMM.UseDonorListMut && ds.MutRate != nil:
		copy(mutRate, ds.MutRate)
		hmm.ResolveMutRates(mutRate, nChr(cfg.Mode.Haploid))
	case cfg.HMM.GlobalMutRateSet:
		for i := range mutRate {
			mutRate[i] = cfg.HMM.GlobalMutRate
		}
	default:
		theta := hmm.DefaultMutRate(nDonor, nChr(cfg.Mode.Haploid))
		for i := range mutRate {
			mutRate[i] = theta
		}
	}

	p := &hmm.Params{
		NE:            ne,
		CopyProb:      copyProb,
		CopyProbStart: append([]float64(nil), copyProb...),
		MutRate:       mutRate,
	}
	if err := p.Validate(1e-6); err != nil {
		return nil, chromoerr.Wrap(chromoerr.InvalidOptions, err, "initial parameters")
	}
	return p, nil
}

func totalHaps(ds *dataset.Dataset) int {
	n := ds.NDonor()
	for _, r := range ds.Recipients {
		n += len(r.Haplotypes)
	}
	if n == 0 {
		return 1
	}
	return n
}

func nChr(haploid bool) int {
	if haploid {
		return 1
	}
	return 2
}

func resolveMode(cfg *config.Run) em.Mode {
	switch {
	case cfg.Mode.AllVsAll:
		return em.ModeAllVsAll
	case cfg.Mode.RecipientConditioning:
		return em.ModeRecipientConditioning
	default:
		return em.ModeDonor
	}
}

func emitRecipient(sinks *output.Sinks, spec em.RecipientSpec, result *em.RecipientResult) error {
	if err := output.WriteSamples(sinks.Samples, spec.Name, result); err != nil {
		return err
	}
	nPop := len(spec.PopSizes)
	pooled := result.PooledStats

	if err := output.WritePerPopRow(sinks.Prop, spec.Name, em.PoolByPop(pooled.NewCopyProb, spec.PopVec, nPop)); err != nil {
		return err
	}
	if err := output.WritePerPopRow(sinks.ChunkCounts, spec.Name, em.PoolByPop(pooled.ChunkCount, spec.PopVec, nPop)); err != nil {
		return err
	}
	if err := output.WritePerPopRow(sinks.ChunkLengths, spec.Name, em.PoolByPop(pooled.ChunkLength, spec.PopVec, nPop)); err != nil {
		return err
	}
	if err := output.WritePerPopRow(sinks.MutationProbs, spec.Name, em.PerPopValue(result.FinalParams.MutRate, spec.PopVec, nPop)); err != nil {
		return err
	}
	if err := output.WriteRegionalRow(sinks.RegionChunkCounts, spec.Name, pooled.RegionalChunkCountSum, pooled.NumRegions); err != nil {
		return err
	}
	if err := output.WriteRegionalRow(sinks.RegionSquaredCounts, spec.Name, pooled.RegionalChunkCountSumSquared, pooled.NumRegions); err != nil {
		return err
	}

	globalMut := 0.0
	if len(result.FinalParams.MutRate) > 0 {
		globalMut = result.FinalParams.MutRate[0]
	}
	for iter, ll := range result.LogLikelihoods {
		if err := output.WriteEMProbsRow(sinks.EMProbs, spec.Name, iter, ll, result.FinalParams.NE, globalMut); err != nil {
			return err
		}
		if err := sinks.RecordSQLite(spec.Name, iter, ll, result.FinalParams.NE, globalMut); err != nil {
			return err
		}
	}

	if sinks.PerLocus != nil {
		if err := output.WritePerLocusRows(sinks.PerLocus, spec.Name, result); err != nil {
			return err
		}
	}
	return nil
}

func terminalWidth() uint {
	return 100
}

func fail(cfg *config.Run, err error) {
	logging.Fatal("%v", err)
	if cfg != nil && cfg.Sinks.InternalErrors {
		fmt.Fprintln(os.Stderr, "press Enter to exit...")
		bufio.NewReader(os.Stdin).ReadString('\n')
	}
	os.Exit(1)
}
