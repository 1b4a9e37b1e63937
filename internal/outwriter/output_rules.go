package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/huangsam/strata/internal/contract"
	"github.com/huangsam/strata/schema"
	"github.com/olekukonko/tablewriter"
)

// PrintRules outputs a rule listing in the configured format.
func PrintRules(rows []schema.RuleRow, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, rows)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeRulesCSV(w, rows)
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeRulesTable(w, rows, cfg)
		}, "Wrote table")
	}
}

func writeRulesTable(w io.Writer, rows []schema.RuleRow, cfg *contract.Config) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Family", "Logger", "Flag", "Variable", "Function", "Window", "Fit Window", "Source"})

	nameWidth := GetMaxTableNameWidth(cfg)
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, []string{
			r.Family,
			r.Logger,
			strconv.Itoa(r.Flagnum),
			contract.TruncateName(r.Varname, nameWidth),
			r.Func,
			r.Window,
			r.FitWindow,
			r.Source,
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	var quality, gapfill int
	for _, r := range rows {
		if r.Family == string(schema.QualityStage) {
			quality++
		} else {
			gapfill++
		}
	}
	_, err := fmt.Fprintf(w, "Showing %d rules (%d quality, %d gap-fill)\n", len(rows), quality, gapfill)
	return err
}

func writeRulesCSV(w io.Writer, rows []schema.RuleRow) error {
	header := []string{"family", "logger", "flagnum", "varname", "func", "window", "fit_window", "source", "description"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, r := range rows {
			rec := []string{r.Family, r.Logger, strconv.Itoa(r.Flagnum), r.Varname, r.Func, r.Window, r.FitWindow, r.Source, r.Description}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// PrintFunctions outputs the registered functions in the configured format.
func PrintFunctions(infos []schema.FunctionInfo, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, infos)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCSVWithHeader(w, []string{"name", "kind", "masks", "description"}, func(cw *csv.Writer) error {
				for _, f := range infos {
					if err := cw.Write([]string{f.Name, string(f.Kind), strconv.FormatBool(f.Masks), f.Description}); err != nil {
						return err
					}
				}
				return nil
			})
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			table := tablewriter.NewWriter(w)
			table.Header([]string{"Name", "Kind", "Masks", "Description"})
			data := make([][]string, 0, len(infos))
			for _, f := range infos {
				masks := "no"
				if f.Masks {
					masks = "yes"
				}
				data = append(data, []string{f.Name, string(f.Kind), masks, f.Description})
			}
			if err := table.Bulk(data); err != nil {
				return err
			}
			return table.Render()
		}, "Wrote table")
	}
}
