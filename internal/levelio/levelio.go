// Package levelio reads raw logger tables and writes produced levels to disk.
package levelio

import (
	"bytes"
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/strata/internal/parquet"
	"github.com/huangsam/strata/schema"
	"github.com/rotisserie/eris"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// TimestampColumn is the first column of every raw and level CSV file.
const TimestampColumn = "timestamp"

// TimestampLayout is the layout of timestamps written to level CSV files.
const TimestampLayout = "2006-01-02 15:04:05"

// missingTokens are the raw CSV cells read as missing values.
var missingTokens = map[string]struct{}{
	"": {}, "NA": {}, "NaN": {}, "NAN": {}, "nan": {}, "null": {}, "NULL": {},
}

// RawSource is one raw file found in the data directory.
type RawSource struct {
	Logger string
	Path   string
	Format schema.LevelFormat
}

// ListRawSources finds raw tables in dir. A logger is named after its file,
// e.g. CR1000.csv or CR1000.parquet. Results are sorted by logger.
func ListRawSources(dir string) ([]RawSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "levelio: list raw directory %s", dir)
	}
	var sources []RawSource
	seen := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		var format schema.LevelFormat
		switch ext {
		case ".csv":
			format = schema.CSVFormat
		case ".parquet":
			format = schema.ParquetFormat
		default:
			continue
		}
		logger := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if prev, dup := seen[logger]; dup {
			return nil, eris.Errorf("levelio: logger %s has two raw files: %s and %s", logger, prev, e.Name())
		}
		seen[logger] = e.Name()
		sources = append(sources, RawSource{Logger: logger, Path: filepath.Join(dir, e.Name()), Format: format})
	}
	slices.SortFunc(sources, func(a, b RawSource) int { return strings.Compare(a.Logger, b.Logger) })
	return sources, nil
}

// ReadRaw loads one raw source as a raw-level table.
func ReadRaw(src RawSource) (*schema.Table, error) {
	switch src.Format {
	case schema.ParquetFormat:
		return ReadRawParquet(src.Logger, src.Path)
	default:
		f, err := os.Open(src.Path)
		if err != nil {
			return nil, eris.Wrapf(err, "levelio: open %s", src.Path)
		}
		defer func() { _ = f.Close() }()
		return ReadRawCSV(src.Logger, f)
	}
}

// ReadRawCSV parses a wide raw table: a timestamp column followed by one
// column per variable. Timestamps must be strictly increasing.
func ReadRawCSV(logger string, r io.Reader) (*schema.Table, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.Errorf("levelio: raw table for %s is empty", logger)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "levelio: read header for %s", logger)
	}
	if len(header) == 0 || !strings.EqualFold(strings.TrimSpace(header[0]), TimestampColumn) {
		return nil, eris.Errorf("levelio: raw table for %s must start with a %q column", logger, TimestampColumn)
	}
	names := make([]string, len(header)-1)
	for i, h := range header[1:] {
		names[i] = strings.TrimSpace(h)
	}

	var index []time.Time
	columns := make([][]float64, len(names))
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "levelio: read %s line %d", logger, line)
		}
		ts, err := parseTimestamp(rec[0])
		if err != nil {
			return nil, eris.Wrapf(err, "levelio: %s line %d", logger, line)
		}
		index = append(index, ts)
		for i := range names {
			v, err := parseValue(rec[i+1])
			if err != nil {
				return nil, eris.Wrapf(err, "levelio: %s line %d column %s", logger, line, names[i])
			}
			columns[i] = append(columns[i], v)
		}
	}

	table, err := schema.NewTable(logger, schema.RawLevel, index)
	if err != nil {
		return nil, eris.Wrapf(err, "levelio: build %s table", logger)
	}
	for i, name := range names {
		if err := table.AddSeries(name, columns[i], nil); err != nil {
			return nil, eris.Wrapf(err, "levelio: add %s", name)
		}
	}
	zap.L().Debug("raw table read", zap.String("logger", logger), zap.Int("rows", table.Len()), zap.Int("variables", len(names)))
	return table, nil
}

// ReadRawParquet loads a long-format raw table (timestamp, variable, value).
// Variables keep the order of first appearance; absent cells are missing.
func ReadRawParquet(logger, path string) (*schema.Table, error) {
	rows, err := parquet.ReadRawRows(path)
	if err != nil {
		return nil, eris.Wrapf(err, "levelio: %s", logger)
	}

	var names []string
	stamps := make(map[int64]time.Time)
	cells := make(map[string]map[int64]float64)
	for _, row := range rows {
		col, ok := cells[row.Variable]
		if !ok {
			names = append(names, row.Variable)
			col = make(map[int64]float64)
			cells[row.Variable] = col
		}
		key := row.Timestamp.UnixNano()
		stamps[key] = row.Timestamp
		if _, dup := col[key]; dup {
			return nil, eris.Errorf("levelio: %s has two values for %s at %s", logger, row.Variable, row.Timestamp.Format(time.RFC3339))
		}
		v := math.NaN()
		if row.Value != nil {
			v = *row.Value
		}
		col[key] = v
	}

	keys := make([]int64, 0, len(stamps))
	for k := range stamps {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	index := make([]time.Time, len(keys))
	for i, k := range keys {
		index[i] = stamps[k]
	}

	table, err := schema.NewTable(logger, schema.RawLevel, index)
	if err != nil {
		return nil, eris.Wrapf(err, "levelio: build %s table", logger)
	}
	for _, name := range names {
		values := make([]float64, len(keys))
		for i, k := range keys {
			v, ok := cells[name][k]
			if !ok {
				v = math.NaN()
			}
			values[i] = v
		}
		if err := table.AddSeries(name, values, nil); err != nil {
			return nil, eris.Wrapf(err, "levelio: add %s", name)
		}
	}
	return table, nil
}

func parseTimestamp(s string) (time.Time, error) {
	ts, err := cast.ToTimeInDefaultLocationE(strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}

func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if _, ok := missingTokens[s]; ok {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// LevelPath returns where a level of a logger is written under outDir.
func LevelPath(outDir string, table *schema.Table, format schema.LevelFormat) string {
	return filepath.Join(outDir, table.Level, table.Logger+"."+string(format))
}

// WriteLevel writes a produced level to outDir/<level>/<logger>.<format>.
// The file is written in full to a temporary file, synced and renamed into
// place, so readers never see a partial level.
func WriteLevel(outDir string, table *schema.Table, format schema.LevelFormat) (string, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case schema.ParquetFormat:
		err = parquet.WriteRows(&buf, parquet.ConvertTable(table))
	default:
		format = schema.CSVFormat
		err = EncodeLevelCSV(&buf, table)
	}
	if err != nil {
		return "", eris.Wrapf(err, "levelio: encode %s/%s", table.Logger, table.Level)
	}

	path := LevelPath(outDir, table, format)
	if err := writeAtomic(path, buf.Bytes()); err != nil {
		return "", err
	}
	zap.L().Debug("level written", zap.String("path", path), zap.Int("bytes", buf.Len()))
	return path, nil
}

// EncodeLevelCSV writes timestamp followed by a value and flag column per
// variable. Missing values are written as NA.
func EncodeLevelCSV(w io.Writer, table *schema.Table) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, 1+2*len(table.Columns))
	header = append(header, TimestampColumn)
	values := make([][]float64, len(table.Columns))
	flags := make([][]int64, len(table.Columns))
	for i, name := range table.Columns {
		header = append(header, name, name+schema.FlagSuffix)
		s, _ := table.Series(name)
		values[i] = s.Values
		flags[i], _ = table.Flags(name)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	rec := make([]string, len(header))
	for r, ts := range table.Index {
		rec[0] = ts.UTC().Format(TimestampLayout)
		for i := range table.Columns {
			rec[1+2*i] = formatValue(values[i][r])
			var f int64
			if flags[i] != nil {
				f = flags[i][r]
			}
			rec[2+2*i] = strconv.FormatInt(f, 10)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// writeAtomic replaces path with data via a synced temporary file in the same directory.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "levelio: create directory %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrapf(err, "levelio: create temp file in %s", dir)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return eris.Wrapf(err, "levelio: write %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return eris.Wrapf(err, "levelio: sync %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return eris.Wrapf(err, "levelio: close %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return eris.Wrapf(err, "levelio: rename into %s", path)
	}
	return nil
}
