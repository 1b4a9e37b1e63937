package rules

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/huangsam/strata/core/registry"
	"github.com/jszwec/csvutil"
)

// QualityRow is one quality rule as it appears in a rule file.
// Fields stay strings so that malformed values are reported by Load.
type QualityRow struct {
	Logger      string `csv:"logger" json:"logger"`
	Flagnum     string `csv:"flagnum" json:"flagnum"`
	Varname     string `csv:"varname" json:"varname"`
	QFunc       string `csv:"q_func" json:"q_func"`
	QFuncArg1   string `csv:"q_func_arg1,omitempty" json:"q_func_arg1,omitempty"`
	QFuncArg2   string `csv:"q_func_arg2,omitempty" json:"q_func_arg2,omitempty"`
	QFuncArg3   string `csv:"q_func_arg3,omitempty" json:"q_func_arg3,omitempty"`
	QFuncArg4   string `csv:"q_func_arg4,omitempty" json:"q_func_arg4,omitempty"`
	QFuncArg5   string `csv:"q_func_arg5,omitempty" json:"q_func_arg5,omitempty"`
	StartFlag   string `csv:"startflag,omitempty" json:"startflag,omitempty"`
	EndFlag     string `csv:"endflag,omitempty" json:"endflag,omitempty"`
	Description string `csv:"description,omitempty" json:"description,omitempty"`
}

// GapFillRow is one gap-fill rule as it appears in a rule file.
type GapFillRow struct {
	Logger      string `csv:"logger" json:"logger"`
	Flagnum     string `csv:"flagnum" json:"flagnum"`
	Varname     string `csv:"varname" json:"varname"`
	SrcLevel    string `csv:"src_level,omitempty" json:"src_level,omitempty"`
	SrcVarname  string `csv:"src_varname,omitempty" json:"src_varname,omitempty"`
	GFFunc      string `csv:"gf_func" json:"gf_func"`
	StartFlag   string `csv:"startflag,omitempty" json:"startflag,omitempty"`
	EndFlag     string `csv:"endflag,omitempty" json:"endflag,omitempty"`
	StartFit    string `csv:"startfit,omitempty" json:"startfit,omitempty"`
	EndFit      string `csv:"endfit,omitempty" json:"endfit,omitempty"`
	GFKwargs    string `csv:"gf_kwargs,omitempty" json:"gf_kwargs,omitempty"`
	Description string `csv:"description,omitempty" json:"description,omitempty"`
}

func (r QualityRow) args() []string {
	return []string{r.QFuncArg1, r.QFuncArg2, r.QFuncArg3, r.QFuncArg4, r.QFuncArg5}
}

func decodeRows[T any](r io.Reader) ([]T, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.TrimLeadingSpace = true

	dec, err := csvutil.NewDecoder(reader)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	var rows []T
	for {
		var row T
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadQualityRows decodes quality rules from CSV with a header row.
func ReadQualityRows(r io.Reader) ([]QualityRow, error) {
	rows, err := decodeRows[QualityRow](r)
	if err != nil {
		return nil, fmt.Errorf("reading quality rules: %w", err)
	}
	return rows, nil
}

// ReadGapFillRows decodes gap-fill rules from CSV with a header row.
func ReadGapFillRows(r io.Reader) ([]GapFillRow, error) {
	rows, err := decodeRows[GapFillRow](r)
	if err != nil {
		return nil, fmt.Errorf("reading gap-fill rules: %w", err)
	}
	return rows, nil
}

func readFile[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return read(f)
}

// LoadFiles reads both rule files and validates them against reg.
// An empty path means the family has no rules.
func LoadFiles(reg *registry.Registry, qualityPath, gapfillPath string) (*Store, error) {
	qrows, err := readFile(qualityPath, ReadQualityRows)
	if err != nil {
		return nil, err
	}
	grows, err := readFile(gapfillPath, ReadGapFillRows)
	if err != nil {
		return nil, err
	}
	return Load(reg, qrows, grows)
}
