package iocache

import (
	"fmt"
	"io"

	"github.com/huangsam/strata/internal/contract"
	"github.com/huangsam/strata/internal/parquet"
	"github.com/rotisserie/eris"
)

// ExecuteRunsExport writes the run history of store to Parquet files named
// after outputFile.
func ExecuteRunsExport(w io.Writer, store contract.RunStore, outputFile string) error {
	if outputFile == "" {
		return eris.New("--output-file is required for export command")
	}
	if store == nil {
		return eris.New("run tracking is disabled; set --run-backend to export runs")
	}

	status, err := store.GetStatus()
	if err != nil {
		return eris.Wrap(err, "failed to get run status")
	}
	if status.TotalRuns == 0 {
		return eris.New("no run data found to export")
	}

	_, _ = fmt.Fprintf(w, "Exporting data from %s backend...\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Total runs: %d\n", status.TotalRuns)
	_, _ = fmt.Fprintf(w, "Total variable summaries: %d\n", status.TableSizes[summariesTable])

	runs, err := store.GetAllRuns()
	if err != nil {
		return eris.Wrap(err, "failed to retrieve runs")
	}
	summaries, err := store.GetAllVariableSummaries()
	if err != nil {
		return eris.Wrap(err, "failed to retrieve variable summaries")
	}

	runsFile := outputFile + ".runs.parquet"
	if err := parquet.WriteRunsParquet(parquet.ConvertRunRecords(runs), runsFile); err != nil {
		return eris.Wrap(err, "failed to write runs")
	}
	_, _ = fmt.Fprintf(w, "Exported %d runs to: %s\n", len(runs), runsFile)

	summariesFile := outputFile + ".variable_summaries.parquet"
	if err := parquet.WriteVariableSummariesParquet(parquet.ConvertVariableSummaryRecords(summaries), summariesFile); err != nil {
		return eris.Wrap(err, "failed to write variable summaries")
	}
	_, _ = fmt.Fprintf(w, "Exported %d variable summaries to: %s\n", len(summaries), summariesFile)
	return nil
}
