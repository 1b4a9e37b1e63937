package cmd

import (
	"github.com/huangsam/strata/core"
	"github.com/huangsam/strata/internal/contract"
	"github.com/spf13/cobra"
)

// runCmd runs the level chain over every raw table.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Produce every level of the chain for each logger.",
	Long: `Load the rule tables, read each raw table in --data-dir and produce the
levels of the chain one after another.

Each quality level flags suspect values and masks them. Each gap-fill level fills
missing values from the level before it or from any earlier level named by a rule.
Every level is written to --out-dir as <level>/<logger>.csv (or .parquet) with a
flag column next to each variable.

A variable that fails keeps its values unflagged and the other variables carry on.
A logger whose rules cannot be planned is reported and skipped.

Examples:
  # Default chain L1:quality,L2:gapfill
  strata run --quality-rules rules/quality.csv --gapfill-rules rules/gapfill.csv

  # Custom chain and a subset of loggers
  strata run --levels qa:quality,gf:gapfill,qa2:quality --loggers CR1000,CR3000

  # Parquet levels and a JSON summary
  strata run --format parquet --output json --output-file summary.json

  # Track runs so they can be exported later
  strata run --run-backend sqlite`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteRun(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot complete run", err)
		}
	},
}
