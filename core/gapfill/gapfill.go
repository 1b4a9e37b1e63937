// Package gapfill applies ordered gap-fill rules to one variable.
package gapfill

import (
	"fmt"
	"math"
	"time"

	"github.com/huangsam/strata/core/registry"
	"github.com/huangsam/strata/schema"
	"go.uber.org/zap"
)

// LevelLookup returns a variable from a level that is already complete.
type LevelLookup func(level, varname string) (schema.Series, error)

// Input is one variable to fill.
type Input struct {
	Logger string
	Level  string        // level the series was read from
	Series schema.Series // series as it entered the stage
	Rules  []schema.GapFlagRule
	Lookup LevelLookup
}

// Result is the filled output for one variable.
type Result struct {
	Series schema.Series
	Flags  []int64 // bit i set when the i-th rule (flagnum order) filled the timestamp
	Filled []int   // timestamps filled per rule
}

// Engine applies gap-fill rules using functions from a registry.
type Engine struct {
	reg *registry.Registry
}

// NewEngine returns an engine resolving functions from reg.
func NewEngine(reg *registry.Registry) *Engine {
	return &Engine{reg: reg}
}

// Apply runs the rules in the order given; they must be sorted by flagnum.
// A gap filled by one rule is never touched by a later one, and gaps no
// rule fills stay missing with a zero flag.
func (e *Engine) Apply(in Input) (*Result, error) {
	if len(in.Rules) > schema.MaxRulesPerVariable {
		return nil, fmt.Errorf("%d gap-fill rules for %s exceed %d flag slots", len(in.Rules), in.Series.Name, schema.MaxRulesPerVariable)
	}
	out := in.Series.Clone()
	flags := make([]int64, out.Len())
	filled := make([]int, len(in.Rules))

	for pos, rule := range in.Rules {
		fn, err := e.reg.ResolveFill(rule.Func)
		if err != nil {
			return nil, err
		}

		gaps := make(map[int64]int) // keyed by UnixNano
		var gapTimes []time.Time
		for _, i := range rule.Apply.Indices(out.Index) {
			if math.IsNaN(out.Values[i]) && flags[i] == 0 {
				gaps[out.Index[i].UnixNano()] = i
				gapTimes = append(gapTimes, out.Index[i])
			}
		}
		if len(gapTimes) == 0 {
			continue
		}

		source, err := e.source(in, rule)
		if err != nil {
			return nil, fmt.Errorf("gap-fill rule %d (%s): %w", rule.Flagnum, rule.Func, err)
		}
		points, err := fn.Apply(registry.FillInput{
			Fit:    source.Restrict(rule.Fit),
			Target: in.Series.Clone(),
			Gaps:   gapTimes,
			Kwargs: rule.Kwargs,
		})
		if err != nil {
			return nil, fmt.Errorf("gap-fill rule %d (%s): %w", rule.Flagnum, rule.Func, err)
		}

		bit := int64(1) << pos
		for _, p := range points {
			i, ok := gaps[p.Time.UnixNano()]
			if !ok || math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
				continue
			}
			out.Values[i] = p.Value
			flags[i] |= bit
			filled[pos]++
			delete(gaps, p.Time.UnixNano())
		}
		zap.L().Debug("gap-fill rule applied",
			zap.String("logger", in.Logger),
			zap.String("varname", in.Series.Name),
			zap.Int("flagnum", rule.Flagnum),
			zap.String("func", rule.Func),
			zap.Int("gaps", len(gapTimes)),
			zap.Int("filled", filled[pos]))
	}
	return &Result{Series: out, Flags: flags, Filled: filled}, nil
}

// source resolves the series a rule fits against. It defaults to the input
// series itself, so masked values are unavailable for fitting.
func (e *Engine) source(in Input, rule schema.GapFlagRule) (schema.Series, error) {
	level := rule.SrcLevel
	if level == "" {
		level = in.Level
	}
	varname := rule.SrcVarname
	if varname == "" {
		varname = in.Series.Name
	}
	if level == in.Level && varname == in.Series.Name {
		return in.Series, nil
	}
	if in.Lookup == nil {
		return schema.Series{}, fmt.Errorf("no level lookup for %s/%s", level, varname)
	}
	src, err := in.Lookup(level, varname)
	if err != nil {
		return schema.Series{}, err
	}
	return src, nil
}
