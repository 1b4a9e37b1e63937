package schema_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/huangsam/strata/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTableRejectsUnsortedIndex(t *testing.T) {
	idx := hourly(3)
	idx[1], idx[2] = idx[2], idx[1]
	_, err := schema.NewTable("CR1000", schema.RawLevel, idx)
	assert.Error(t, err)

	_, err = schema.NewTable("CR1000", schema.RawLevel, append(hourly(2), hourly(1)...))
	assert.Error(t, err, "duplicate timestamps are not allowed")
}

func TestTableAddSeries(t *testing.T) {
	tbl, err := schema.NewTable("CR1000", "L1", hourly(3))
	require.NoError(t, err)

	require.NoError(t, tbl.AddSeries("a", []float64{1, 2, 3}, []int64{0, 1, 0}))
	require.NoError(t, tbl.AddSeries("b", []float64{4, 5, 6}, nil))

	assert.Error(t, tbl.AddSeries("a", []float64{1, 2, 3}, nil), "duplicate")
	assert.Error(t, tbl.AddSeries("c", []float64{1, 2}, nil), "short values")
	assert.Error(t, tbl.AddSeries("d", []float64{1, 2, 3}, []int64{0}), "short flags")

	assert.Equal(t, []string{"a", "b"}, tbl.Columns)
	assert.True(t, tbl.Has("a"))
	assert.False(t, tbl.Has("c"))
	assert.True(t, tbl.HasFlags())

	s, ok := tbl.Series("a")
	require.True(t, ok)
	s.Values[0] = 99
	again, _ := tbl.Series("a")
	assert.Equal(t, 1.0, again.Values[0], "Series must return a copy")

	_, ok = tbl.Flags("b")
	assert.False(t, ok)
}

func TestTableJSONRoundTripKeepsMissing(t *testing.T) {
	tbl, err := schema.NewTable("CR1000", "L1", hourly(3))
	require.NoError(t, err)
	require.NoError(t, tbl.AddSeries("AirTC_1_2_1", []float64{12, math.NaN(), 13.5}, []int64{0, 1, 0}))

	data, err := json.Marshal(tbl)
	require.NoError(t, err)
	assert.Contains(t, string(data), "null")

	var decoded schema.Table
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, tbl.Equal(&decoded))

	clone := tbl.Clone()
	assert.True(t, tbl.Equal(clone))
}
