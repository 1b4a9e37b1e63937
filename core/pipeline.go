package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/huangsam/strata/core/flag"
	"github.com/huangsam/strata/core/gapfill"
	"github.com/huangsam/strata/core/registry"
	"github.com/huangsam/strata/core/rules"
	"github.com/huangsam/strata/internal/contract"
	"github.com/huangsam/strata/schema"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pipeline drives a level chain over raw tables. It is safe for
// concurrent use once built, since the registry and rule store are read-only.
type Pipeline struct {
	reg     *registry.Registry
	rules   *rules.Store
	chain   []schema.LevelSpec
	workers int
	cache   contract.CacheStore

	quality *flag.Engine
	gapfill *gapfill.Engine
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithWorkers bounds logger and variable concurrency.
func WithWorkers(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithCache stores finished logger results in a level cache.
func WithCache(store contract.CacheStore) PipelineOption {
	return func(p *Pipeline) { p.cache = store }
}

// NewPipeline builds a pipeline for a chain whose first entry is the raw level.
func NewPipeline(reg *registry.Registry, store *rules.Store, chain []schema.LevelSpec, opts ...PipelineOption) (*Pipeline, error) {
	if len(chain) < 2 {
		return nil, errors.New("level chain needs the raw level and at least one derived level")
	}
	if chain[0].Name != schema.RawLevel || chain[0].Stage != schema.RawStage {
		return nil, fmt.Errorf("level chain must start at %q, got %q", schema.RawLevel, chain[0].Name)
	}
	seen := make(map[string]struct{}, len(chain))
	for i, l := range chain {
		if _, dup := seen[l.Name]; dup {
			return nil, fmt.Errorf("duplicate level %q", l.Name)
		}
		seen[l.Name] = struct{}{}
		if _, ok := schema.ValidStageKinds[l.Stage]; i > 0 && !ok {
			return nil, fmt.Errorf("level %q has invalid stage %q", l.Name, l.Stage)
		}
	}
	p := &Pipeline{
		reg:     reg,
		rules:   store,
		chain:   slices.Clone(chain),
		workers: 1,
		quality: flag.NewEngine(reg),
		gapfill: gapfill.NewEngine(reg),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Chain returns the level chain.
func (p *Pipeline) Chain() []schema.LevelSpec {
	return slices.Clone(p.chain)
}

// Run produces every derived level for one raw table. Failures confined to
// one variable are recorded on its level and do not stop the others.
// The returned error is reserved for planning failures and cancellation.
func (p *Pipeline) Run(ctx context.Context, raw *schema.Table) (*schema.LoggerResult, error) {
	if raw.Level != schema.RawLevel {
		return nil, fmt.Errorf("logger %s: expected a %s table, got %q", raw.Logger, schema.RawLevel, raw.Level)
	}
	order, err := p.Plan(raw.Logger)
	if err != nil {
		return nil, err
	}

	stages := make(map[string]schema.LevelSpec, len(p.chain))
	prior := make(map[string]string, len(p.chain))
	for i, l := range p.chain {
		stages[l.Name] = l
		if i > 0 {
			prior[l.Name] = p.chain[i-1].Name
		}
	}

	done := map[string]*schema.Table{schema.RawLevel: raw}
	result := &schema.LoggerResult{Logger: raw.Logger}
	for _, name := range order {
		if name == schema.RawLevel {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		level, err := p.runLevel(ctx, stages[name], done[prior[name]], done)
		if err != nil {
			return nil, err
		}
		done[name] = level.Table
		result.Levels = append(result.Levels, *level)
	}
	return result, nil
}

// variableOutcome is one variable's share of a level.
type variableOutcome struct {
	values  []float64
	flags   []int64
	summary schema.VariableSummary
	err     error
}

// runLevel produces one level from the level before it. Variables run
// concurrently and the level is complete only when all of them are.
func (p *Pipeline) runLevel(ctx context.Context, spec schema.LevelSpec, input *schema.Table, done map[string]*schema.Table) (*schema.LevelResult, error) {
	outcomes := make([]variableOutcome, len(input.Columns))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, varname := range input.Columns {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = p.runVariable(spec, input, varname, done)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	table, err := schema.NewTable(input.Logger, spec.Name, input.Index)
	if err != nil {
		return nil, err
	}
	level := &schema.LevelResult{Level: spec.Name, Stage: spec.Stage, Table: table}
	for i, varname := range input.Columns {
		o := outcomes[i]
		if err := table.AddSeries(varname, o.values, o.flags); err != nil {
			return nil, err
		}
		if o.err != nil {
			level.Errors = append(level.Errors, o.err)
			o.summary.Error = o.err.Error()
		}
		level.Variables = append(level.Variables, o.summary)
	}

	for _, varname := range p.ruleVariables(spec.Stage, input.Logger) {
		if input.Has(varname) {
			continue
		}
		err := &schema.MissingVariableError{Logger: input.Logger, Level: input.Level, Varname: varname}
		level.Errors = append(level.Errors, err)
		level.Variables = append(level.Variables, schema.VariableSummary{Variable: varname, Error: err.Error()})
	}

	zap.L().Info("level produced",
		zap.String("logger", input.Logger),
		zap.String("level", spec.Name),
		zap.String("stage", string(spec.Stage)),
		zap.Int("variables", len(input.Columns)),
		zap.Int("errors", len(level.Errors)))
	return level, nil
}

// ruleVariables lists the variables the stage's rules name for a logger.
func (p *Pipeline) ruleVariables(stage schema.StageKind, logger string) []string {
	if stage == schema.GapFillStage {
		return p.rules.GapFillVariables(logger)
	}
	return p.rules.QualityVariables(logger)
}

// runVariable applies one stage to one variable. A failed variable keeps
// its input values with no flags so that later levels still line up.
func (p *Pipeline) runVariable(spec schema.LevelSpec, input *schema.Table, varname string, done map[string]*schema.Table) variableOutcome {
	series, _ := input.Series(varname)
	passThrough := func(err error) variableOutcome {
		err = schema.WithContext(err, input.Logger, spec.Name, varname)
		zap.L().Warn("variable failed", zap.Error(err))
		return variableOutcome{
			values:  series.Values,
			flags:   make([]int64, series.Len()),
			summary: schema.SummarizeVariable(varname, series.Values, nil, nil),
			err:     err,
		}
	}

	switch spec.Stage {
	case schema.QualityStage:
		res, err := p.quality.Apply(input, varname, p.rules.QualityRules(input.Logger, varname))
		if err != nil {
			return passThrough(err)
		}
		return variableOutcome{
			values:  res.Series.Values,
			flags:   res.Flags,
			summary: schema.SummarizeVariable(varname, res.Series.Values, res.Flags, res.Hits),
		}
	case schema.GapFillStage:
		res, err := p.gapfill.Apply(gapfill.Input{
			Logger: input.Logger,
			Level:  input.Level,
			Series: series,
			Rules:  p.rules.GapFillRules(input.Logger, varname),
			Lookup: lookupIn(input.Logger, done),
		})
		if err != nil {
			return passThrough(err)
		}
		return variableOutcome{
			values:  res.Series.Values,
			flags:   res.Flags,
			summary: schema.SummarizeVariable(varname, res.Series.Values, res.Flags, res.Filled),
		}
	default:
		return passThrough(fmt.Errorf("unsupported stage %q", spec.Stage))
	}
}

// lookupIn reads variables from completed levels only. The map is not
// written while a level is running.
func lookupIn(logger string, done map[string]*schema.Table) gapfill.LevelLookup {
	return func(level, varname string) (schema.Series, error) {
		table, ok := done[level]
		if !ok {
			return schema.Series{}, &schema.LevelCycleError{Logger: logger, Levels: []string{level}, Reason: "level is not produced yet"}
		}
		s, ok := table.Series(varname)
		if !ok {
			return schema.Series{}, &schema.MissingVariableError{Logger: logger, Level: level, Varname: varname}
		}
		return s, nil
	}
}

// RunAll runs the chain for every raw table using a pool of workers.
// Results are sorted by logger regardless of completion order.
func (p *Pipeline) RunAll(ctx context.Context, raws []*schema.Table) []schema.LoggerResult {
	tableCh := make(chan *schema.Table, len(raws))
	resultCh := make(chan schema.LoggerResult, len(raws))
	var wg sync.WaitGroup

	for range min(p.workers, max(len(raws), 1)) {
		wg.Go(func() {
			for raw := range tableCh {
				resultCh <- p.runLogger(ctx, raw)
			}
		})
	}

	for _, raw := range raws {
		tableCh <- raw
	}
	close(tableCh)

	wg.Wait()
	close(resultCh)

	results := make([]schema.LoggerResult, 0, len(raws))
	for r := range resultCh {
		results = append(results, r)
	}
	slices.SortFunc(results, func(a, b schema.LoggerResult) int { return strings.Compare(a.Logger, b.Logger) })
	return results
}

// runLogger runs one logger through the cache when one is configured.
func (p *Pipeline) runLogger(ctx context.Context, raw *schema.Table) schema.LoggerResult {
	res, err := p.cachedRun(ctx, raw)
	if err != nil {
		zap.L().Error("logger failed", zap.String("logger", raw.Logger), zap.Error(err))
		return schema.LoggerResult{Logger: raw.Logger, Error: err.Error(), Err: err}
	}
	return *res
}
