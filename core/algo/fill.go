package algo

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/huangsam/strata/core/registry"
	"github.com/huangsam/strata/schema"
	"github.com/spf13/cast"
)

// valid returns the points of s that are not missing, in time order.
func valid(s schema.Series) []schema.Point {
	out := make([]schema.Point, 0, s.Len())
	for i, v := range s.Values {
		if !math.IsNaN(v) {
			out = append(out, schema.Point{Time: s.Index[i], Value: v})
		}
	}
	return out
}

// bracket finds the last point at or before t and the first point at or after t.
func bracket(points []schema.Point, t time.Time) (before, after int) {
	i, found := slices.BinarySearchFunc(points, t, func(p schema.Point, t time.Time) int { return p.Time.Compare(t) })
	if found {
		return i, i
	}
	return i - 1, i
}

func checkInterpolate(_ []string, kwargs map[string]any) error {
	if v, ok := kwargs["limit"]; ok {
		n, err := cast.ToIntE(v)
		if err != nil {
			return fmt.Errorf("limit: %w", err)
		}
		if n < 1 {
			return fmt.Errorf("limit must be positive, got %d", n)
		}
	}
	if m, ok := kwargs["method"]; ok && cast.ToString(m) != "linear" && cast.ToString(m) != "time" {
		return fmt.Errorf("unsupported interpolation method %v (linear, time)", m)
	}
	return nil
}

// interpolate fills each gap linearly in time between the nearest valid fit values.
// With limit set, only the first limit target timestamps after each anchor are
// filled and the rest of a longer run stays missing.
func interpolate(in registry.FillInput) ([]schema.Point, error) {
	limit := 0
	if v, ok := in.Kwargs["limit"]; ok {
		limit = cast.ToInt(v)
	}
	anchors := valid(in.Fit)
	if len(anchors) == 0 {
		return nil, nil
	}
	var out []schema.Point
	for _, g := range in.Gaps {
		b, a := bracket(anchors, g)
		if b == a {
			out = append(out, schema.Point{Time: g, Value: anchors[b].Value})
			continue
		}
		if b < 0 || a >= len(anchors) {
			continue
		}
		p0, p1 := anchors[b], anchors[a]
		if limit > 0 && between(in.Target.Index, p0.Time, g) >= limit {
			continue
		}
		frac := float64(g.Sub(p0.Time)) / float64(p1.Time.Sub(p0.Time))
		out = append(out, schema.Point{Time: g, Value: p0.Value + frac*(p1.Value-p0.Value)})
	}
	return out, nil
}

// between counts index entries strictly between t0 and t1.
func between(index []time.Time, t0, t1 time.Time) int {
	cmp := func(a, b time.Time) int { return a.Compare(b) }
	lo, found := slices.BinarySearchFunc(index, t0, cmp)
	if found {
		lo++
	}
	hi, _ := slices.BinarySearchFunc(index, t1, cmp)
	return max(hi-lo, 0)
}

func checkFillna(_ []string, kwargs map[string]any) error {
	v, hasValue := kwargs["value"]
	m, hasMethod := kwargs["method"]
	switch {
	case hasValue && hasMethod:
		return fmt.Errorf("fillna takes value or method, not both")
	case hasValue:
		if _, err := cast.ToFloat64E(v); err != nil {
			return fmt.Errorf("value: %w", err)
		}
	case hasMethod:
		if s := cast.ToString(m); s != "ffill" && s != "bfill" {
			return fmt.Errorf("invalid method %q (ffill, bfill)", s)
		}
	default:
		return fmt.Errorf("fillna needs value or method")
	}
	return nil
}

// fillna fills gaps with a constant, or with the nearest earlier (ffill)
// or later (bfill) valid fit value.
func fillna(in registry.FillInput) ([]schema.Point, error) {
	if v, ok := in.Kwargs["value"]; ok {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, fmt.Errorf("value: %w", err)
		}
		out := make([]schema.Point, len(in.Gaps))
		for i, g := range in.Gaps {
			out[i] = schema.Point{Time: g, Value: f}
		}
		return out, nil
	}
	method := cast.ToString(in.Kwargs["method"])
	anchors := valid(in.Fit)
	var out []schema.Point
	for _, g := range in.Gaps {
		b, a := bracket(anchors, g)
		switch {
		case method == "ffill" && b >= 0:
			out = append(out, schema.Point{Time: g, Value: anchors[b].Value})
		case method == "bfill" && a < len(anchors):
			out = append(out, schema.Point{Time: g, Value: anchors[a].Value})
		}
	}
	return out, nil
}

// substitution copies the source value at each gap.
func substitution(in registry.FillInput) ([]schema.Point, error) {
	var out []schema.Point
	for _, g := range in.Gaps {
		if v, ok := in.Fit.ValueAt(g); ok && !math.IsNaN(v) {
			out = append(out, schema.Point{Time: g, Value: v})
		}
	}
	return out, nil
}

func checkLinearfit(_ []string, kwargs map[string]any) error {
	if v, ok := kwargs["zero_intcpt"]; ok {
		if _, err := cast.ToBoolE(v); err != nil {
			return fmt.Errorf("zero_intcpt: %w", err)
		}
	}
	return nil
}

// linearfit regresses the target on the source over timestamps where both are
// valid, then predicts gaps from the source. Too few pairs yields no fills.
func linearfit(in registry.FillInput) ([]schema.Point, error) {
	zero := cast.ToBool(in.Kwargs["zero_intcpt"])

	var n, sx, sy, sxy, sxx float64
	for i, x := range in.Fit.Values {
		if math.IsNaN(x) {
			continue
		}
		y, ok := in.Target.ValueAt(in.Fit.Index[i])
		if !ok || math.IsNaN(y) {
			continue
		}
		n++
		sx += x
		sy += y
		sxy += x * y
		sxx += x * x
	}

	var slope, intercept float64
	if zero {
		if n < 1 || sxx == 0 {
			return nil, nil
		}
		slope = sxy / sxx
	} else {
		den := n*sxx - sx*sx
		if n < 2 || den == 0 {
			return nil, nil
		}
		slope = (n*sxy - sx*sy) / den
		intercept = (sy - slope*sx) / n
	}

	var out []schema.Point
	for _, g := range in.Gaps {
		x, ok := in.Fit.ValueAt(g)
		if !ok || math.IsNaN(x) {
			continue
		}
		out = append(out, schema.Point{Time: g, Value: intercept + slope*x})
	}
	return out, nil
}
