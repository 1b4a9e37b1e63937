// Package flag applies ordered quality rules to one variable.
package flag

import (
	"fmt"
	"math"

	"github.com/huangsam/strata/core/registry"
	"github.com/huangsam/strata/schema"
	"go.uber.org/zap"
)

// Result is the flagged output for one variable.
type Result struct {
	Series schema.Series // masked values
	Flags  []int64       // bit i set when the i-th rule (flagnum order) fired
	Hits   []int         // timestamps flagged per rule
}

// Engine applies quality rules using functions from a registry.
type Engine struct {
	reg *registry.Registry
}

// NewEngine returns an engine resolving functions from reg.
func NewEngine(reg *registry.Registry) *Engine {
	return &Engine{reg: reg}
}

// Apply runs rules over the named variable of table, in the order given.
// Rules must already be sorted by flagnum. The table is not modified.
//
// Transforms take effect immediately so later rules see transformed values.
// Masks are collected and applied once at the end so that every rule
// checks the values it would have seen without earlier masking.
func (e *Engine) Apply(table *schema.Table, varname string, rules []schema.QualityFlagRule) (*Result, error) {
	series, ok := table.Series(varname)
	if !ok {
		return nil, &schema.MissingVariableError{Logger: table.Logger, Level: table.Level, Varname: varname}
	}
	if len(rules) > schema.MaxRulesPerVariable {
		return nil, fmt.Errorf("%d quality rules for %s exceed %d flag slots", len(rules), varname, schema.MaxRulesPerVariable)
	}

	flags := make([]int64, series.Len())
	mask := make([]bool, series.Len())
	hits := make([]int, len(rules))
	peer := func(name string) (schema.Series, bool) { return table.Series(name) }

	for pos, rule := range rules {
		fn, err := e.reg.ResolveQuality(rule.Func)
		if err != nil {
			return nil, err
		}
		window := rule.Window.Indices(series.Index)
		if len(window) == 0 {
			continue
		}
		out, err := fn.Apply(registry.QualityInput{
			Series: series.Clone(),
			Window: window,
			Args:   rule.Args,
			Kwargs: rule.Kwargs,
			Peer:   peer,
		})
		if err != nil {
			return nil, fmt.Errorf("quality rule %d (%s): %w", rule.Flagnum, rule.Func, err)
		}
		if len(out.Flagged) != len(window) {
			return nil, fmt.Errorf("quality rule %d (%s): %d results for %d timestamps", rule.Flagnum, rule.Func, len(out.Flagged), len(window))
		}
		if out.Values != nil {
			if len(out.Values) != series.Len() {
				return nil, fmt.Errorf("quality rule %d (%s): transform returned %d values for %d timestamps", rule.Flagnum, rule.Func, len(out.Values), series.Len())
			}
			series.Values = out.Values
		}

		bit := int64(1) << pos
		for j, i := range window {
			if !out.Flagged[j] {
				continue
			}
			flags[i] |= bit
			hits[pos]++
			if fn.Masks {
				mask[i] = true
			}
		}
		zap.L().Debug("quality rule applied",
			zap.String("logger", table.Logger),
			zap.String("varname", varname),
			zap.Int("flagnum", rule.Flagnum),
			zap.String("func", rule.Func),
			zap.Int("flagged", hits[pos]))
	}

	for i, m := range mask {
		if m {
			series.Values[i] = math.NaN()
		}
	}
	return &Result{Series: series, Flags: flags, Hits: hits}, nil
}
