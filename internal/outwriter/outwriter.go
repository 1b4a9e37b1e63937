// Package outwriter has output and writer logic.
package outwriter

import (
	"os"
	"time"

	"github.com/huangsam/strata/internal/contract"
	"github.com/huangsam/strata/schema"
	"golang.org/x/term"
)

// OutWriter provides a unified interface for all output operations.
// It encapsulates the various output formats and provides a clean API for the core logic.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteRun prints the per-variable summary of a pipeline run.
func (ow *OutWriter) WriteRun(result *schema.RunResult, cfg *contract.Config, duration time.Duration) error {
	return PrintRunResults(result, cfg, duration)
}

// WriteRules prints a rule listing.
func (ow *OutWriter) WriteRules(rows []schema.RuleRow, cfg *contract.Config) error {
	return PrintRules(rows, cfg)
}

// WriteFunctions prints the registered functions.
func (ow *OutWriter) WriteFunctions(infos []schema.FunctionInfo, cfg *contract.Config) error {
	return PrintFunctions(infos, cfg)
}

// WriteRulesReport prints the outcome of a rules validation.
func (ow *OutWriter) WriteRulesReport(report *schema.RulesReport, cfg *contract.Config) error {
	return PrintRulesReport(report, cfg)
}

// GetMaxTableNameWidth calculates the maximum width for variable names in
// table output based on terminal width.
func GetMaxTableNameWidth(cfg *contract.Config) int {
	termWidth := cfg.Width
	if termWidth <= 0 {
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			termWidth = 80 // Conservative default for narrow terminals and CI
		} else {
			termWidth = detectedWidth
		}
	}

	// Logger + Level + Stage + Points + Missing + Flagged + Status, with borders
	baseWidth := 90

	available := termWidth - baseWidth
	if available < 12 {
		return 12
	}
	if available > 48 {
		return 48
	}
	return available
}
