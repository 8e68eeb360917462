// Package config parses the chromopainter command line into three
// grouped records (HMM starting parameters, mode flags, output sinks),
// per SPEC_FULL.md's Design Note §9 ("giant parameter-list function
// signatures" collapse to configuration records passed by reference).
// Flags are walked by hand, matching the teacher's argv style, rather
// than pulling in a flag-parsing framework the corpus never uses.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// HMMParams holds the starting values and EM-maximization selection for
// the HMM parameters (-n, -m, -M, -in, -ip, -im, -iM).
type HMMParams struct {
	NEStart           float64
	NEStartSet        bool
	UseDonorListPrior bool    // -p
	UseDonorListMut   bool    // -m
	SelfMutRate       float64 // -m X, only meaningful with -c
	SelfMutRateSet    bool
	GlobalMutRate     float64 // -M X
	GlobalMutRateSet  bool

	EstimateNE        bool // -in
	EstimateCopyProb  bool // -ip
	EstimateMutPop    bool // -im
	EstimateMutGlobal bool // -iM
}

// ModeFlags holds the recipient-mode and data-shape selection (-c, -a,
// -j, -u, -J, -y).
type ModeFlags struct {
	Haploid               bool // -j
	Unlinked              bool // -u
	RecipientConditioning bool // -c
	AllVsAll              bool // -a
	AllVsAllStart         int
	AllVsAllEnd           int
	JitterLocations       bool // -J
	SuppressLabelSuffix   bool // -y
}

// Sinks holds the output-file configuration (-o, -b, -sqlite).
type Sinks struct {
	OutputPrefix     string
	GzipPerLocus     bool // -b
	SQLitePath       string
	InternalErrors   bool // --internalerrors
	Verbose          bool // -v
	PostHookPath     string // -posthook
}

// Run is the fully parsed configuration for one invocation.
type Run struct {
	GenotypePath   string // -g
	RecombMapPath  string // -r
	DonorListPath  string // -f
	EMRuns         int    // -i
	SamplesPerHap  int    // -s
	ChunksPerRegion float64 // -k
	Seed           int64
	SeedSet        bool

	HMM   HMMParams
	Mode  ModeFlags
	Sinks Sinks
}

// Default returns the zero-valued configuration with the documented
// CLI defaults filled in (§6): samples=10, chunks-per-region=100.
func Default() *Run {
	return &Run{
		SamplesPerHap:   10,
		ChunksPerRegion: 100,
	}
}

// overlayFile holds the subset of Run fields that may be set from a
// -config YAML file, checked into version control for batch reruns.
type overlayFile struct {
	EMRuns          *int     `yaml:"em_runs"`
	SamplesPerHap   *int     `yaml:"samples_per_hap"`
	ChunksPerRegion *float64 `yaml:"chunks_per_region"`
	NEStart         *float64 `yaml:"ne_start"`
	Seed            *int64   `yaml:"seed"`
}

// ApplyOverlay merges a YAML run-recipe file onto r, matching the
// teacher's annotate.LoadDatabases use of yaml.v3: fields absent from
// the file are left untouched.
func (r *Run) ApplyOverlay(data []byte) error {
	var ov overlayFile
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return fmt.Errorf("config: parsing overlay: %w", err)
	}
	if ov.EMRuns != nil {
		r.EMRuns = *ov.EMRuns
	}
	if ov.SamplesPerHap != nil {
		r.SamplesPerHap = *ov.SamplesPerHap
	}
	if ov.ChunksPerRegion != nil {
		r.ChunksPerRegion = *ov.ChunksPerRegion
	}
	if ov.NEStart != nil {
		r.HMM.NEStart = *ov.NEStart
		r.HMM.NEStartSet = true
	}
	if ov.Seed != nil {
		r.Seed = *ov.Seed
		r.SeedSet = true
	}
	return nil
}

// ParseArgs walks argv (excluding argv[0]) and applies each flag to r,
// in the style of the original's runprogram argument loop. Unknown
// flags are a format error; missing values for a flag that takes one
// are also a format error. --help is reported through the help return
// value and --internalerrors is recorded in r.Sinks.InternalErrors;
// neither exits here, so the caller controls process exit.
func ParseArgs(r *Run, args []string) (help bool, err error) {
	next := func(i *int, flag string) (string, error) {
		*i++
		if *i >= len(args) {
			return "", fmt.Errorf("config: flag %s requires a value", flag)
		}
		return args[*i], nil
	}
	nextFloat := func(i *int, flag string) (float64, error) {
		s, err := next(i, flag)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("config: flag %s: %w", flag, err)
		}
		return v, nil
	}
	nextInt := func(i *int, flag string) (int, error) {
		s, err := next(i, flag)
		if err != nil {
			return 0, err
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("config: flag %s: %w", flag, err)
		}
		return v, nil
	}

	// A -config overlay is applied before every other flag, wherever it
	// appears, so flags on the command line override the recipe.
	for i := 0; i < len(args); i++ {
		if args[i] == "-config" {
			path, cerr := next(&i, "-config")
			if cerr != nil {
				return false, cerr
			}
			if cerr := applyOverlayFile(r, path); cerr != nil {
				return false, cerr
			}
		}
	}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-g":
			if r.GenotypePath, err = next(&i, "-g"); err != nil {
				return false, err
			}
		case "-r":
			if r.RecombMapPath, err = next(&i, "-r"); err != nil {
				return false, err
			}
		case "-f":
			if r.DonorListPath, err = next(&i, "-f"); err != nil {
				return false, err
			}
		case "-i":
			if r.EMRuns, err = nextInt(&i, "-i"); err != nil {
				return false, err
			}
		case "-in":
			r.HMM.EstimateNE = true
		case "-ip":
			r.HMM.EstimateCopyProb = true
		case "-im":
			r.HMM.EstimateMutPop = true
		case "-iM":
			r.HMM.EstimateMutGlobal = true
		case "-s":
			if r.SamplesPerHap, err = nextInt(&i, "-s"); err != nil {
				return false, err
			}
		case "-n":
			if r.HMM.NEStart, err = nextFloat(&i, "-n"); err != nil {
				return false, err
			}
			r.HMM.NEStartSet = true
		case "-p":
			r.HMM.UseDonorListPrior = true
		case "-m":
			r.HMM.UseDonorListMut = true
			if r.HMM.SelfMutRate, err = nextFloat(&i, "-m"); err != nil {
				return false, err
			}
			r.HMM.SelfMutRateSet = true
		case "-M":
			if r.HMM.GlobalMutRate, err = nextFloat(&i, "-M"); err != nil {
				return false, err
			}
			r.HMM.GlobalMutRateSet = true
		case "-k":
			if r.ChunksPerRegion, err = nextFloat(&i, "-k"); err != nil {
				return false, err
			}
		case "-c":
			r.Mode.RecipientConditioning = true
		case "-j":
			r.Mode.Haploid = true
		case "-u":
			r.Mode.Unlinked = true
		case "-a":
			r.Mode.AllVsAll = true
			if r.Mode.AllVsAllStart, err = nextInt(&i, "-a"); err != nil {
				return false, err
			}
			if r.Mode.AllVsAllEnd, err = nextInt(&i, "-a"); err != nil {
				return false, err
			}
		case "-b":
			r.Sinks.GzipPerLocus = true
		case "-y":
			r.Mode.SuppressLabelSuffix = true
		case "-o":
			if r.Sinks.OutputPrefix, err = next(&i, "-o"); err != nil {
				return false, err
			}
		case "-J":
			r.Mode.JitterLocations = true
		case "-v":
			r.Sinks.Verbose = true
		case "-seed":
			if r.Seed, err = nextInt64(&i, args, "-seed"); err != nil {
				return false, err
			}
			r.SeedSet = true
		case "-sqlite":
			if r.Sinks.SQLitePath, err = next(&i, "-sqlite"); err != nil {
				return false, err
			}
		case "-posthook":
			if r.Sinks.PostHookPath, err = next(&i, "-posthook"); err != nil {
				return false, err
			}
		case "-config":
			if _, err = next(&i, "-config"); err != nil {
				return false, err
			}
		case "--internalerrors":
			r.Sinks.InternalErrors = true
		case "--help":
			return true, nil
		default:
			return false, fmt.Errorf("config: unrecognized flag %q", args[i])
		}
	}
	if r.Sinks.OutputPrefix == "" {
		r.Sinks.OutputPrefix = r.GenotypePath
	}
	return false, nil
}

func applyOverlayFile(r *Run, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading overlay %s: %w", path, err)
	}
	return r.ApplyOverlay(data)
}

func nextInt64(i *int, args []string, flag string) (int64, error) {
	*i++
	if *i >= len(args) {
		return 0, fmt.Errorf("config: flag %s requires a value", flag)
	}
	v, err := strconv.ParseInt(args[*i], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: flag %s: %w", flag, err)
	}
	return v, nil
}
