package schema_test

import (
	"math"
	"testing"
	"time"

	"github.com/huangsam/strata/schema"
	"github.com/stretchr/testify/assert"
)

func hourly(n int) []time.Time {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range n {
		out[i] = base.Add(time.Duration(i) * time.Hour)
	}
	return out
}

func ptr(t time.Time) *time.Time { return &t }

func TestWindowIndices(t *testing.T) {
	idx := hourly(5)
	tests := []struct {
		name     string
		window   schema.Window
		expected []int
	}{
		{"unbounded", schema.Window{}, []int{0, 1, 2, 3, 4}},
		{"start only", schema.Window{Start: ptr(idx[3])}, []int{3, 4}},
		{"end only", schema.Window{End: ptr(idx[1])}, []int{0, 1}},
		{"single point", schema.Window{Start: ptr(idx[2]), End: ptr(idx[2])}, []int{2}},
		{"between samples", schema.Window{Start: ptr(idx[1].Add(time.Minute)), End: ptr(idx[3].Add(-time.Minute))}, []int{2}},
		{"before data", schema.Window{End: ptr(idx[0].Add(-time.Hour))}, nil},
		{"after data", schema.Window{Start: ptr(idx[4].Add(time.Hour))}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.window.Indices(idx))
			for _, i := range tt.expected {
				assert.True(t, tt.window.Contains(idx[i]))
			}
		})
	}
}

func TestWindowOrderedAndString(t *testing.T) {
	idx := hourly(2)
	assert.True(t, schema.Window{}.Ordered())
	assert.True(t, schema.Window{Start: ptr(idx[0]), End: ptr(idx[0])}.Ordered())
	assert.False(t, schema.Window{Start: ptr(idx[1]), End: ptr(idx[0])}.Ordered())

	assert.Equal(t, "[*, *]", schema.Window{}.String())
	assert.Equal(t, "[2024-01-01T00:00:00Z, *]", schema.Window{Start: ptr(idx[0])}.String())
}

func TestSeriesHelpers(t *testing.T) {
	idx := hourly(4)
	s := schema.Series{Name: "x", Index: idx, Values: []float64{1, math.NaN(), 3, math.NaN()}}

	assert.Equal(t, 4, s.Len())
	assert.Equal(t, 2, s.MissingCount())
	assert.True(t, s.IsMissing(1))

	c := s.Clone()
	c.Values[0] = 100
	assert.Equal(t, 1.0, s.Values[0], "clone must not share values")

	sub := s.Restrict(schema.Window{Start: ptr(idx[1]), End: ptr(idx[2])})
	assert.Equal(t, idx[1:3], sub.Index)
	assert.Equal(t, 3.0, sub.Values[1])

	v, ok := s.ValueAt(idx[2])
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)
	_, ok = s.ValueAt(idx[0].Add(time.Minute))
	assert.False(t, ok)
}
