package levelio

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/huangsam/strata/internal/parquet"
	"github.com/huangsam/strata/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rawCSV = `timestamp,AirTC_1_2_1,RH_1_2_1
2024-01-01 00:00:00,12.0,80
2024-01-01 01:00:00,NA,81.5
2024-01-01 02:00:00,13.5,
2024-01-01 03:00:00,NAN,nan
`

func TestReadRawCSV(t *testing.T) {
	table, err := ReadRawCSV("CR1000", strings.NewReader(rawCSV))
	require.NoError(t, err)

	assert.Equal(t, schema.RawLevel, table.Level)
	assert.Equal(t, []string{"AirTC_1_2_1", "RH_1_2_1"}, table.Columns)
	require.Equal(t, 4, table.Len())
	assert.Equal(t, time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), table.Index[1])
	assert.False(t, table.HasFlags())

	air, ok := table.Series("AirTC_1_2_1")
	require.True(t, ok)
	assert.Equal(t, 12.0, air.Values[0])
	assert.True(t, math.IsNaN(air.Values[1]))
	assert.True(t, math.IsNaN(air.Values[3]))

	rh, _ := table.Series("RH_1_2_1")
	assert.Equal(t, 2, rh.MissingCount())
}

func TestReadRawCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", "is empty"},
		{"no timestamp column", "time,x\n2024-01-01,1\n", "must start with"},
		{"bad value", "timestamp,x\n2024-01-01,abc\n", "column x"},
		{"bad timestamp", "timestamp,x\nsoon,1\n", "line 2"},
		{"unsorted", "timestamp,x\n2024-01-02,1\n2024-01-01,2\n", "build CR1000 table"},
		{"ragged", "timestamp,x\n2024-01-01,1,2\n", "line 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadRawCSV("CR1000", strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestListRawSources(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"CR3000.csv", "CR1000.parquet", "notes.txt", ".hidden.csv"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "L1"), 0o755))

	sources, err := ListRawSources(dir)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, RawSource{Logger: "CR1000", Path: filepath.Join(dir, "CR1000.parquet"), Format: schema.ParquetFormat}, sources[0])
	assert.Equal(t, "CR3000", sources[1].Logger)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "CR3000.parquet"), nil, 0o644))
	_, err = ListRawSources(dir)
	assert.Error(t, err, "one logger cannot have two raw files")

	_, err = ListRawSources(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestReadRawParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "CR1000.parquet")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	one, two := 1.0, 2.0
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, parquet.WriteRows(f, []parquet.RawRow{
		{Timestamp: base.Add(time.Hour), Variable: "y", Value: &two},
		{Timestamp: base, Variable: "y"},
		{Timestamp: base, Variable: "x", Value: &one},
	}))
	require.NoError(t, f.Close())

	table, err := ReadRaw(RawSource{Logger: "CR1000", Path: path, Format: schema.ParquetFormat})
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "x"}, table.Columns)
	require.Equal(t, 2, table.Len())
	assert.True(t, table.Index[0].Equal(base))

	y, _ := table.Series("y")
	assert.True(t, math.IsNaN(y.Values[0]))
	assert.Equal(t, 2.0, y.Values[1])
	x, _ := table.Series("x")
	assert.Equal(t, 1.0, x.Values[0])
	assert.True(t, math.IsNaN(x.Values[1]), "cells absent from the file are missing")
}

func levelTable(t *testing.T) *schema.Table {
	t.Helper()
	raw, err := ReadRawCSV("CR1000", strings.NewReader(rawCSV))
	require.NoError(t, err)
	table, err := schema.NewTable("CR1000", "L1", raw.Index)
	require.NoError(t, err)
	require.NoError(t, table.AddSeries("AirTC_1_2_1", []float64{12, math.NaN(), 13.5, 0.1}, []int64{0, 1, 0, 4}))
	return table
}

func TestEncodeLevelCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeLevelCSV(&buf, levelTable(t)))
	assert.Equal(t, `timestamp,AirTC_1_2_1,AirTC_1_2_1_flag
2024-01-01 00:00:00,12,0
2024-01-01 01:00:00,NA,1
2024-01-01 02:00:00,13.5,0
2024-01-01 03:00:00,0.1,4
`, buf.String())
}

func TestWriteLevel(t *testing.T) {
	out := t.TempDir()
	table := levelTable(t)

	path, err := WriteLevel(out, table, schema.CSVFormat)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "L1", "CR1000.csv"), path)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	// Re-writing replaces the file with identical bytes and leaves no temp files behind.
	_, err = WriteLevel(out, table, schema.CSVFormat)
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	entries, err := os.ReadDir(filepath.Join(out, "L1"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	pqPath, err := WriteLevel(out, table, schema.ParquetFormat)
	require.NoError(t, err)
	rows, err := parquet.ReadLevelRows(pqPath)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}
