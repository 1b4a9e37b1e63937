// Package algo has the builtin quality checks and fill functions.
package algo

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/huangsam/strata/core/registry"
	"github.com/spf13/cast"
)

// Register installs every builtin function into reg.
func Register(reg *registry.Registry) {
	reg.RegisterQuality("range_check", rangeCheck,
		registry.WithArgCheck(signature(checkRange, "min", "max")),
		registry.WithDescription("flag values outside [min, max]"))
	reg.RegisterQuality("mask_by_datetime", maskByDatetime,
		registry.WithArgCheck(signature(nil)),
		registry.WithDescription("flag every value inside the rule window"))
	reg.RegisterQuality("mask_by_comparison", maskByComparison,
		registry.WithArgCheck(signature(checkComparison(0), "comparison", "cval")),
		registry.WithDescription("flag values above, below or equal to cval, or missing"))
	reg.RegisterQuality("mask_by_comparison_ind", maskByComparisonInd,
		registry.WithArgCheck(signature(checkComparisonInd, "indvar", "comparison", "cval")),
		registry.WithDescription("flag values where an independent variable compares to cval"))
	reg.RegisterQuality("mask_by_rolling_stat", maskByRollingStat,
		registry.WithArgCheck(signature(checkRollingStat, "indvar", "stat", "window", "comparison", "thresh")),
		registry.WithDescription("flag values where an independent variable departs from its centered rolling mean or median"))
	reg.RegisterQuality("scale_by_multiplier", scaleByMultiplier,
		registry.WithArgCheck(signature(checkMultiplier, "multiplier")),
		registry.WithoutMask(),
		registry.WithDescription("multiply values by a constant; flags are kept, values are not masked"))

	reg.RegisterFill("interpolate", interpolate,
		registry.WithArgCheck(checkInterpolate),
		registry.WithDescription("linear interpolation in time between the nearest valid fit values"))
	reg.RegisterFill("fillna", fillna,
		registry.WithArgCheck(checkFillna),
		registry.WithDescription("fill with a constant value or carry the nearest fit value forward/backward"))
	reg.RegisterFill("substitution", substitution,
		registry.WithDescription("copy the source value at each gap"))
	reg.RegisterFill("linearfit", linearfit,
		registry.WithArgCheck(checkLinearfit),
		registry.WithDescription("least-squares fit of the target on the source, optionally through the origin"))
}

// NewRegistry returns a registry holding every builtin function.
func NewRegistry() *registry.Registry {
	reg := registry.New()
	Register(reg)
	return reg
}

// signature binds positional arguments to names in order, the way a call
// with keyword arguments would. Extra positional arguments, a name given both
// ways and unknown keywords are errors. check runs afterwards when set.
func signature(check registry.ArgCheck, names ...string) registry.ArgCheck {
	return func(args []string, kwargs map[string]any) error {
		if len(args) > len(names) {
			return fmt.Errorf("takes at most %d positional arguments, got %d", len(names), len(args))
		}
		for i := range args {
			if _, dup := kwargs[names[i]]; dup {
				return fmt.Errorf("%s given both by position and by keyword", names[i])
			}
		}
		for _, key := range slices.Sorted(maps.Keys(kwargs)) {
			if !slices.Contains(names, key) {
				return fmt.Errorf("unexpected keyword argument %q", key)
			}
		}
		if check == nil {
			return nil
		}
		return check(args, kwargs)
	}
}

// param returns a keyword argument, falling back to a positional one.
func param(args []string, kwargs map[string]any, pos int, key string) (any, bool) {
	if v, ok := kwargs[key]; ok {
		return v, true
	}
	if pos >= 0 && pos < len(args) {
		return args[pos], true
	}
	return nil, false
}

func floatParam(args []string, kwargs map[string]any, pos int, key string) (float64, bool, error) {
	v, ok := param(args, kwargs, pos, key)
	if !ok {
		return 0, false, nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %w", key, err)
	}
	return f, true, nil
}

func stringParam(args []string, kwargs map[string]any, pos int, key string) (string, bool) {
	v, ok := param(args, kwargs, pos, key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(cast.ToString(v)), true
}

var nanLiterals = map[string]struct{}{"NAN": {}, "NaN": {}, "Nan": {}, "nan": {}}

// comparison describes one value test: above, below, equals or isnan.
type comparison struct {
	op   string
	cval float64
}

func parseComparison(args []string, kwargs map[string]any, opPos, cvalPos int) (comparison, error) {
	op, ok := stringParam(args, kwargs, opPos, "comparison")
	if !ok {
		return comparison{}, fmt.Errorf("comparison is required")
	}
	raw, hasCval := stringParam(args, kwargs, cvalPos, "cval")
	if _, isNaN := nanLiterals[raw]; isNaN {
		return comparison{op: "isnan"}, nil
	}
	switch op {
	case "isnan":
		return comparison{op: op}, nil
	case "above", "below", "equals":
	default:
		return comparison{}, fmt.Errorf("invalid comparison %q (above, below, equals, isnan)", op)
	}
	if !hasCval {
		return comparison{}, fmt.Errorf("cval is required for %s", op)
	}
	cval, err := cast.ToFloat64E(raw)
	if err != nil {
		return comparison{}, fmt.Errorf("cval: %w", err)
	}
	return comparison{op: op, cval: cval}, nil
}

func (c comparison) match(v float64) bool {
	switch c.op {
	case "above":
		return v > c.cval
	case "below":
		return v < c.cval
	case "equals":
		return v == c.cval
	case "isnan":
		return math.IsNaN(v)
	}
	return false
}
