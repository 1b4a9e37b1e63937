package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/huangsam/strata/internal/contract"
	"github.com/huangsam/strata/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// PrintRunResults outputs a run summary, dispatching based on the output format configured.
func PrintRunResults(result *schema.RunResult, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, intFmt := createFormatters(cfg.Precision)
	rows := schema.FlattenRun(result)

	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, schema.SummarizeRun(result))
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeRunCSV(w, rows, fmtFloat, intFmt)
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeRunTable(w, result, rows, cfg, fmtFloat, intFmt, duration)
		}, "Wrote table")
	}
}

// writeRunTable writes one row per variable and level, followed by run totals.
func writeRunTable(w io.Writer, result *schema.RunResult, rows []schema.SummaryRow, cfg *contract.Config,
	fmtFloat func(float64) string, intFmt string, duration time.Duration,
) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Logger", "Level", "Stage", "Variable", "Points", "Missing", "Missing %", "Flagged", "Status"})
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.Global = tw.AlignRight
	})

	nameWidth := GetMaxTableNameWidth(cfg)
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, []string{
			r.Logger,
			r.Level,
			string(r.Stage),
			contract.TruncateName(r.Variable, nameWidth),
			fmt.Sprintf(intFmt, r.Points),
			fmt.Sprintf(intFmt, r.Missing),
			fmtFloat(percent(r.Missing, r.Points)),
			fmt.Sprintf(intFmt, r.Flagged),
			contract.GetColorLabel(r.Status),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	var levels, cached, failed int
	for _, lr := range result.Loggers {
		levels += len(lr.Levels)
		if lr.Cached {
			cached++
		}
		if lr.Error != "" {
			failed++
			if _, err := fmt.Fprintf(w, "%s %s: %s\n", contract.ErrorColor.Sprint("Logger failed"), lr.Logger, lr.Error); err != nil {
				return err
			}
		}
		for _, lvl := range lr.Levels {
			for _, v := range lvl.Variables {
				if v.Error != "" {
					if _, err := fmt.Fprintf(w, "%s %s/%s/%s: %s\n", contract.ErrorColor.Sprint("Variable failed"), lr.Logger, lvl.Level, v.Variable, v.Error); err != nil {
						return err
					}
				}
			}
		}
	}

	if _, err := fmt.Fprintf(w, "Processed %d loggers (%d levels, %d cached, %d failed)\n", len(result.Loggers), levels, cached, failed); err != nil {
		return err
	}
	if result.RunID != "" {
		if _, err := fmt.Fprintf(w, "Run ID: %s\n", result.RunID); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Run completed in %v with %d workers. Cache backend: %s\n", duration, cfg.Workers, cfg.CacheBackend)
	return err
}

// writeRunCSV writes one record per variable and level.
func writeRunCSV(w io.Writer, rows []schema.SummaryRow, fmtFloat func(float64) string, intFmt string) error {
	header := []string{"logger", "level", "stage", "variable", "points", "missing", "missing_pct", "flagged", "status", "error"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, r := range rows {
			rec := []string{
				r.Logger,
				r.Level,
				string(r.Stage),
				r.Variable,
				strconv.Itoa(r.Points),
				fmt.Sprintf(intFmt, r.Missing),
				fmtFloat(percent(r.Missing, r.Points)),
				fmt.Sprintf(intFmt, r.Flagged),
				contract.GetPlainLabel(r.Status),
				r.Error,
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}
