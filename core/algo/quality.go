package algo

import (
	"fmt"
	"math"
	"slices"

	"github.com/huangsam/strata/core/registry"
	"github.com/spf13/cast"
)

func checkRange(args []string, kwargs map[string]any) error {
	lo, hasLo, err := floatParam(args, kwargs, 0, "min")
	if err != nil {
		return err
	}
	hi, hasHi, err := floatParam(args, kwargs, 1, "max")
	if err != nil {
		return err
	}
	if !hasLo && !hasHi {
		return fmt.Errorf("range_check needs min and/or max")
	}
	if hasLo && hasHi && lo > hi {
		return fmt.Errorf("range_check min %g greater than max %g", lo, hi)
	}
	return nil
}

// rangeCheck flags values below min or above max. Missing values are not flagged.
func rangeCheck(in registry.QualityInput) (registry.QualityOutput, error) {
	lo, hasLo, err := floatParam(in.Args, in.Kwargs, 0, "min")
	if err != nil {
		return registry.QualityOutput{}, err
	}
	hi, hasHi, err := floatParam(in.Args, in.Kwargs, 1, "max")
	if err != nil {
		return registry.QualityOutput{}, err
	}
	flagged := make([]bool, len(in.Window))
	for j, i := range in.Window {
		v := in.Series.Values[i]
		if math.IsNaN(v) {
			continue
		}
		flagged[j] = (hasLo && v < lo) || (hasHi && v > hi)
	}
	return registry.QualityOutput{Flagged: flagged}, nil
}

func maskByDatetime(in registry.QualityInput) (registry.QualityOutput, error) {
	flagged := make([]bool, len(in.Window))
	for j := range flagged {
		flagged[j] = true
	}
	return registry.QualityOutput{Flagged: flagged}, nil
}

func checkComparison(offset int) registry.ArgCheck {
	return func(args []string, kwargs map[string]any) error {
		_, err := parseComparison(args, kwargs, offset, offset+1)
		return err
	}
}

func maskByComparison(in registry.QualityInput) (registry.QualityOutput, error) {
	cmp, err := parseComparison(in.Args, in.Kwargs, 0, 1)
	if err != nil {
		return registry.QualityOutput{}, err
	}
	flagged := make([]bool, len(in.Window))
	for j, i := range in.Window {
		flagged[j] = cmp.match(in.Series.Values[i])
	}
	return registry.QualityOutput{Flagged: flagged}, nil
}

func checkComparisonInd(args []string, kwargs map[string]any) error {
	if v, ok := stringParam(args, kwargs, 0, "indvar"); !ok || v == "" {
		return fmt.Errorf("indvar is required")
	}
	return checkComparison(1)(args, kwargs)
}

// peerSeries resolves the independent variable named by the indvar argument.
func peerSeries(in registry.QualityInput) ([]float64, error) {
	name, _ := stringParam(in.Args, in.Kwargs, 0, "indvar")
	if in.Peer == nil {
		return nil, fmt.Errorf("independent variable %q unavailable", name)
	}
	peer, ok := in.Peer(name)
	if !ok {
		return nil, fmt.Errorf("independent variable %q not found", name)
	}
	if peer.Len() != in.Series.Len() {
		return nil, fmt.Errorf("independent variable %q has %d values, want %d", name, peer.Len(), in.Series.Len())
	}
	return peer.Values, nil
}

func maskByComparisonInd(in registry.QualityInput) (registry.QualityOutput, error) {
	cmp, err := parseComparison(in.Args, in.Kwargs, 1, 2)
	if err != nil {
		return registry.QualityOutput{}, err
	}
	ind, err := peerSeries(in)
	if err != nil {
		return registry.QualityOutput{}, err
	}
	flagged := make([]bool, len(in.Window))
	for j, i := range in.Window {
		flagged[j] = cmp.match(ind[i])
	}
	return registry.QualityOutput{Flagged: flagged}, nil
}

// rollingParams holds the parsed arguments of mask_by_rolling_stat.
type rollingParams struct {
	stat   string
	window int
	op     string
	thresh float64
}

func parseRolling(args []string, kwargs map[string]any) (rollingParams, error) {
	var p rollingParams
	if v, ok := stringParam(args, kwargs, 0, "indvar"); !ok || v == "" {
		return p, fmt.Errorf("indvar is required")
	}
	p.stat, _ = stringParam(args, kwargs, 1, "stat")
	if p.stat != "mean" && p.stat != "median" {
		return p, fmt.Errorf("invalid statistic %q (mean, median)", p.stat)
	}
	w, ok := param(args, kwargs, 2, "window")
	if !ok {
		return p, fmt.Errorf("window is required")
	}
	n, err := cast.ToIntE(w)
	if err != nil {
		return p, fmt.Errorf("window: %w", err)
	}
	if n < 2 {
		return p, fmt.Errorf("window must be at least 2, got %d", n)
	}
	p.window = n
	p.op, _ = stringParam(args, kwargs, 3, "comparison")
	if p.op != "above" && p.op != "below" && p.op != "equals" {
		return p, fmt.Errorf("invalid comparison %q (above, below, equals)", p.op)
	}
	thresh, _, err := floatParam(args, kwargs, 4, "thresh")
	if err != nil {
		return p, err
	}
	p.thresh = thresh
	return p, nil
}

func checkRollingStat(args []string, kwargs map[string]any) error {
	_, err := parseRolling(args, kwargs)
	return err
}

// rollingStat computes a centered rolling mean or median requiring window-1 valid values.
func rollingStat(values []float64, window int, stat string) []float64 {
	out := make([]float64, len(values))
	buf := make([]float64, 0, window)
	for i := range values {
		lo := i - window/2
		hi := lo + window - 1
		buf = buf[:0]
		for k := max(lo, 0); k <= min(hi, len(values)-1); k++ {
			if !math.IsNaN(values[k]) {
				buf = append(buf, values[k])
			}
		}
		if len(buf) < window-1 {
			out[i] = math.NaN()
			continue
		}
		if stat == "median" {
			slices.Sort(buf)
			mid := len(buf) / 2
			if len(buf)%2 == 1 {
				out[i] = buf[mid]
			} else {
				out[i] = (buf[mid-1] + buf[mid]) / 2
			}
			continue
		}
		sum := 0.0
		for _, v := range buf {
			sum += v
		}
		out[i] = sum / float64(len(buf))
	}
	return out
}

func maskByRollingStat(in registry.QualityInput) (registry.QualityOutput, error) {
	p, err := parseRolling(in.Args, in.Kwargs)
	if err != nil {
		return registry.QualityOutput{}, err
	}
	ind, err := peerSeries(in)
	if err != nil {
		return registry.QualityOutput{}, err
	}
	stat := rollingStat(ind, p.window, p.stat)
	flagged := make([]bool, len(in.Window))
	for j, i := range in.Window {
		switch p.op {
		case "above":
			flagged[j] = ind[i] > stat[i]+p.thresh
		case "below":
			flagged[j] = ind[i] < stat[i]-p.thresh
		case "equals":
			flagged[j] = ind[i] == stat[i]
		}
	}
	return registry.QualityOutput{Flagged: flagged}, nil
}

func checkMultiplier(args []string, kwargs map[string]any) error {
	_, ok, err := floatParam(args, kwargs, 0, "multiplier")
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("multiplier is required")
	}
	return nil
}

// scaleByMultiplier multiplies windowed values and flags them without masking.
func scaleByMultiplier(in registry.QualityInput) (registry.QualityOutput, error) {
	m, _, err := floatParam(in.Args, in.Kwargs, 0, "multiplier")
	if err != nil {
		return registry.QualityOutput{}, err
	}
	values := slices.Clone(in.Series.Values)
	flagged := make([]bool, len(in.Window))
	for j, i := range in.Window {
		values[i] *= m
		flagged[j] = true
	}
	return registry.QualityOutput{Flagged: flagged, Values: values}, nil
}
