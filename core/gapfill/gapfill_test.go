package gapfill

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/huangsam/strata/core/algo"
	"github.com/huangsam/strata/core/registry"
	"github.com/huangsam/strata/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nan = math.NaN()

func series(name string, values ...float64) schema.Series {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	idx := make([]time.Time, len(values))
	for i := range values {
		idx[i] = base.Add(time.Duration(i) * 30 * time.Minute)
	}
	return schema.Series{Name: name, Index: idx, Values: values}
}

func assertValues(t *testing.T, expected, actual []float64) {
	t.Helper()
	require.Len(t, actual, len(expected))
	for i := range expected {
		if math.IsNaN(expected[i]) {
			assert.True(t, math.IsNaN(actual[i]), "index %d should be missing, got %v", i, actual[i])
			continue
		}
		assert.InDelta(t, expected[i], actual[i], 1e-9, "index %d", i)
	}
}

func TestInterpolateScenario(t *testing.T) {
	l1 := series("AirTC_1_2_1", 12.0, nan, 13.5, nan, 14.0)
	in := Input{
		Logger: "CR1000",
		Level:  "L1",
		Series: l1,
		Rules:  []schema.GapFlagRule{{Flagnum: 1, Varname: "AirTC_1_2_1", Func: "interpolate"}},
	}

	res, err := NewEngine(algo.NewRegistry()).Apply(in)
	require.NoError(t, err)
	assertValues(t, []float64{12.0, 12.75, 13.5, 13.75, 14.0}, res.Series.Values)
	assert.Equal(t, []int64{0, 1, 0, 1, 0}, res.Flags)
	assert.Equal(t, []int{2}, res.Filled)
	assert.True(t, math.IsNaN(l1.Values[1]), "input series is never modified")
}

// partial fills only the first n gaps it is offered, with a marker value.
func partial(n int, marker float64) registry.FillFunc {
	return func(in registry.FillInput) ([]schema.Point, error) {
		var out []schema.Point
		for i, g := range in.Gaps {
			if i >= n {
				break
			}
			out = append(out, schema.Point{Time: g, Value: marker})
		}
		return out, nil
	}
}

func TestCascadeNeverOverwrites(t *testing.T) {
	reg := registry.New()
	reg.RegisterFill("first_two", partial(2, 1))
	reg.RegisterFill("everything", func(in registry.FillInput) ([]schema.Point, error) {
		// claims every timestamp, including ones already filled
		out := make([]schema.Point, 0, in.Target.Len())
		for _, ts := range in.Target.Index {
			out = append(out, schema.Point{Time: ts, Value: 2})
		}
		return out, nil
	})

	in := Input{
		Level:  "L1",
		Series: series("x", nan, nan, nan, 7),
		Rules: []schema.GapFlagRule{
			{Flagnum: 1, Func: "first_two"},
			{Flagnum: 2, Func: "everything"},
		},
	}
	res, err := NewEngine(reg).Apply(in)
	require.NoError(t, err)
	assertValues(t, []float64{1, 1, 2, 7}, res.Series.Values)
	assert.Equal(t, []int64{1, 1, 2, 0}, res.Flags)
	assert.Equal(t, []int{2, 1}, res.Filled)
}

func TestUnfilledGapsStayMissing(t *testing.T) {
	in := Input{
		Level:  "L1",
		Series: series("x", nan, 1, nan, 3, nan),
		Rules:  []schema.GapFlagRule{{Flagnum: 1, Func: "interpolate"}},
	}
	res, err := NewEngine(algo.NewRegistry()).Apply(in)
	require.NoError(t, err)
	assertValues(t, []float64{nan, 1, 2, 3, nan}, res.Series.Values)
	assert.Equal(t, []int64{0, 0, 1, 0, 0}, res.Flags)
}

func TestApplyWindowInclusive(t *testing.T) {
	s := series("x", nan, nan, nan)
	ts := s.Index[1]
	in := Input{
		Level:  "L1",
		Series: s,
		Rules: []schema.GapFlagRule{{
			Flagnum: 1, Func: "fillna",
			Apply:  schema.Window{Start: &ts, End: &ts},
			Kwargs: map[string]any{"value": 0},
		}},
	}
	res, err := NewEngine(algo.NewRegistry()).Apply(in)
	require.NoError(t, err)
	assertValues(t, []float64{nan, 0, nan}, res.Series.Values)
	assert.Equal(t, []int64{0, 1, 0}, res.Flags)
}

func TestNoRulesPassThrough(t *testing.T) {
	in := Input{Level: "L1", Series: series("x", 1, nan, 3)}
	res, err := NewEngine(algo.NewRegistry()).Apply(in)
	require.NoError(t, err)
	assertValues(t, []float64{1, nan, 3}, res.Series.Values)
	assert.Equal(t, []int64{0, 0, 0}, res.Flags)
}

func TestMaskedValuesExcludedFromFit(t *testing.T) {
	raw := series("x", 10, 999, nan, 40)
	masked := series("x", 10, nan, nan, 40)
	lookup := func(level, varname string) (schema.Series, error) {
		if level == schema.RawLevel && varname == "x" {
			return raw, nil
		}
		return schema.Series{}, errors.New("not found")
	}
	engine := NewEngine(algo.NewRegistry())

	// default source is the masked series
	res, err := engine.Apply(Input{
		Level: "L1", Series: masked, Lookup: lookup,
		Rules: []schema.GapFlagRule{{Flagnum: 1, Func: "interpolate"}},
	})
	require.NoError(t, err)
	assertValues(t, []float64{10, 20, 30, 40}, res.Series.Values)

	// explicitly sourcing raw brings the masked value back into the fit
	res, err = engine.Apply(Input{
		Level: "L1", Series: masked, Lookup: lookup,
		Rules: []schema.GapFlagRule{{Flagnum: 1, Func: "interpolate", SrcLevel: schema.RawLevel}},
	})
	require.NoError(t, err)
	assertValues(t, []float64{10, 999, 519.5, 40}, res.Series.Values)
}

func TestFitWindowRestrictsSource(t *testing.T) {
	s := series("x", 1, nan, 100, nan, 5)
	end := s.Index[1]
	res, err := NewEngine(algo.NewRegistry()).Apply(Input{
		Level:  "L1",
		Series: s,
		Rules: []schema.GapFlagRule{{
			Flagnum: 1, Func: "fillna",
			Fit:    schema.Window{End: &end},
			Kwargs: map[string]any{"method": "ffill"},
		}},
	})
	require.NoError(t, err)
	assertValues(t, []float64{1, 1, 100, 1, 5}, res.Series.Values)
}

func TestCrossVariableSource(t *testing.T) {
	neighbor := series("AirTC_2_2_1", 10, 11, 12, 13)
	lookup := func(level, varname string) (schema.Series, error) {
		assert.Equal(t, "L1", level)
		assert.Equal(t, "AirTC_2_2_1", varname)
		return neighbor, nil
	}
	res, err := NewEngine(algo.NewRegistry()).Apply(Input{
		Level:  "L1",
		Series: series("AirTC_1_2_1", 20, nan, 24, nan),
		Lookup: lookup,
		Rules:  []schema.GapFlagRule{{Flagnum: 1, Func: "linearfit", SrcVarname: "AirTC_2_2_1"}},
	})
	require.NoError(t, err)
	assertValues(t, []float64{20, 22, 24, 26}, res.Series.Values)
	assert.Equal(t, []int64{0, 1, 0, 1}, res.Flags)
}

func TestLookupErrorIsReturned(t *testing.T) {
	_, err := NewEngine(algo.NewRegistry()).Apply(Input{
		Level:  "L1",
		Series: series("x", nan),
		Lookup: func(string, string) (schema.Series, error) {
			return schema.Series{}, &schema.MissingVariableError{Level: "L1", Varname: "y"}
		},
		Rules: []schema.GapFlagRule{{Flagnum: 1, Func: "substitution", SrcVarname: "y"}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, schema.ErrMissingVariable))
}
