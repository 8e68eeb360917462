package config

import (
	"strings"

	"github.com/mitchellh/go-wordwrap"
)

// helpBody is the flag enumeration printed by --help, carried over
// from the original's helpfilestring constant.
const helpBody = `
-g FILE   genotype input (required)
-r FILE   recomb map (required unless -u)
-f FILE   donor list (required unless -a)
-i N      EM iterations (default 0)
-in/-ip/-im/-iM   enable EM maximization of N_e / copy prop / per-pop mut / global mut
-s N      samples per recipient hap (default 10)
-n X      N_e start (default 400000/total_haps)
-p        use prior copy probs from donor list
-m X      use mut rates from donor list; X is self-mut rate for -c
-M X      global mut rate (default Li&Stephens)
-k X      chunks per region (default 100)
-c        condition on own-population recipients
-j        haploid
-u        unlinked sites
-a A B    all-vs-all, individuals A..B (0 0 = all)
-b        emit gzipped per-locus posteriors
-y        accepted, but has no effect: recipient labels keep their numeric suffix
-o PFX    output prefix (default <geno>)
-J        jitter colliding SNP positions
-seed N   seed the RNG explicitly, for reproducible runs
-config FILE   overlay a YAML run recipe before applying flags
-sqlite FILE   also write EM diagnostics to a SQLite database
-posthook FILE   run external post-processing commands against the output prefix when done
--help / --internalerrors
`

// HelpText returns helpBody word-wrapped to width columns, replacing
// the original's raw 80-column hardcode.
func HelpText(width uint) string {
	return wordwrap.WrapString(strings.TrimLeft(helpBody, "\n"), width)
}
