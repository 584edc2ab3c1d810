// Command seedgen writes a synthetic seed dataset for deployments without
// history. The server loads it through SEED_FILE.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/godilite/score-stats/internal/service"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := service.DefaultSeedConfig()
	var out string

	cmd := &cobra.Command{
		Use:   "seedgen",
		Short: "Generate a seed review-score dataset",
		Long: `Generates a reproducible dataset of review submissions with three or four
reviewers each and writes it as JSON in the shape the persistence endpoint returns.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Count < 0 {
				return fmt.Errorf("--count must not be negative")
			}
			if cfg.FourReviewerRate < 0 || cfg.FourReviewerRate > 1 {
				return fmt.Errorf("--four-rate must be between 0 and 1")
			}

			ds := service.GenerateSeed(cfg)
			if out == "" || out == "-" {
				return service.EncodeSeed(cmd.OutOrStdout(), ds)
			}
			if err := service.WriteSeedFile(out, ds); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d submissions (%d scores) to %s\n",
				ds.TotalSubmissions, len(ds.AllRawScores), out)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&out, "out", "o", "seed.json", `output file, "-" for stdout`)
	flags.IntVarP(&cfg.Count, "count", "n", cfg.Count, "number of submissions")
	flags.Float64Var(&cfg.FourReviewerRate, "four-rate", cfg.FourReviewerRate, "share of submissions with four reviewers")
	flags.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")

	return cmd
}
