package cmd

import (
	"github.com/huangsam/strata/core"
	"github.com/huangsam/strata/internal/contract"
	"github.com/spf13/cobra"
)

// rulesCmd groups rule table commands.
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and validate rule tables",
	Long: `Work with the quality and gap-fill rule tables without touching any data.

Subcommands:
  validate - Load both tables and plan the chain for every logger
  list     - Print every loaded rule`,
}

// rulesValidateCmd checks rule tables and level dependencies.
var rulesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check rule tables and level dependencies",
	Long: `Load both rule tables, reporting every malformed row at once, then plan the
level chain for each logger the rules name.

Planning fails when a gap-fill rule reads a level that is not in the chain, reads
the level it produces, or creates a dependency cycle.

Examples:
  strata rules validate --quality-rules rules/quality.csv --gapfill-rules rules/gapfill.csv
  strata rules validate --levels L1:gapfill,L2:quality --output json`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteValidateRules(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Rules are not valid", err)
		}
	},
}

// rulesListCmd prints the loaded rules.
var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every loaded rule",
	Long: `Print the quality and gap-fill rules in flag order, filtered by --loggers.

Examples:
  strata rules list --loggers CR1000
  strata rules list --output csv --output-file rules.csv`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteListRules(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot list rules", err)
		}
	},
}

// funcsCmd lists the built-in functions.
var funcsCmd = &cobra.Command{
	Use:   "funcs",
	Short: "List the functions rules can name",
	Long: `Print every registered quality and fill function.

Quality functions marked as masking set flagged values to missing. The others
only record a flag.`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteListFunctions(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot list functions", err)
		}
	},
}
