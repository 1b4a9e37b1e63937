package outwriter

import (
	"fmt"
	"io"
	"strings"

	"github.com/huangsam/strata/internal/contract"
	"github.com/huangsam/strata/schema"
)

// PrintRulesReport outputs a rules validation report. CSV has no natural
// shape for it and falls back to text.
func PrintRulesReport(report *schema.RulesReport, cfg *contract.Config) error {
	if cfg.Output == schema.JSONOut {
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, report)
		}, "Wrote JSON")
	}
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeRulesReportText(w, report)
	}, "Wrote report")
}

func writeRulesReportText(w io.Writer, report *schema.RulesReport) error {
	lines := []string{
		fmt.Sprintf("Rules: %d quality, %d gap-fill", report.Quality, report.GapFill),
		fmt.Sprintf("Digest: %s", report.Digest),
		fmt.Sprintf("Chain: %s", report.Chain),
		fmt.Sprintf("Loggers: %s", strings.Join(report.Loggers, ", ")),
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	for _, p := range report.Problems {
		if _, err := fmt.Fprintf(w, "%s %s\n", contract.ErrorColor.Sprint("Problem:"), p); err != nil {
			return err
		}
	}
	if len(report.Problems) == 0 {
		_, err := fmt.Fprintln(w, contract.CleanColor.Sprint("Rules OK"))
		return err
	}
	return nil
}
