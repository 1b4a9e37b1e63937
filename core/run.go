package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/huangsam/strata/core/algo"
	"github.com/huangsam/strata/core/rules"
	"github.com/huangsam/strata/internal/contract"
	"github.com/huangsam/strata/internal/levelio"
	"github.com/huangsam/strata/internal/outwriter"
	"github.com/huangsam/strata/schema"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// runPipelineCore performs the common load, run, write and tracking steps.
func runPipelineCore(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) (*schema.RunResult, error) {
	if !shouldSuppressHeader(ctx) {
		outwriter.LogRunHeader(cfg)
	}

	// --- 0. Rules and pipeline ---
	reg := algo.NewRegistry()
	store, err := rules.LoadFiles(reg, cfg.QualityRules, cfg.GapFillRules)
	if err != nil {
		return nil, err
	}
	opts := []PipelineOption{WithWorkers(cfg.Workers)}
	var runStore contract.RunStore
	if mgr != nil {
		if levelStore := mgr.GetLevelStore(); levelStore != nil {
			opts = append(opts, WithCache(levelStore))
		}
		runStore = mgr.GetRunStore()
	}
	p, err := NewPipeline(reg, store, cfg.Levels, opts...)
	if err != nil {
		return nil, err
	}

	// --- 1. Begin Run Tracking (if configured) ---
	if runStore != nil {
		runID, err := runStore.BeginRun(time.Now(), store.Digest(), runParams(cfg))
		if err != nil {
			contract.LogWarn("Run tracking initialization failed", err)
		} else {
			ctx = withRunID(ctx, runID)
		}
	}

	// --- 2. Raw tables ---
	raws, failures, err := loadRawTables(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// --- 3. Level chain ---
	results := append(p.RunAll(ctx, raws), failures...)
	slices.SortFunc(results, func(a, b schema.LoggerResult) int { return strings.Compare(a.Logger, b.Logger) })
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// --- 4. Level files ---
	writeErr := writeLevels(cfg, results)

	// --- 5. End Run Tracking ---
	runID, tracked := getRunID(ctx)
	if runStore != nil && tracked {
		recordSummaries(runStore, runID, results)
		if err := runStore.EndRun(runID, time.Now(), len(results)); err != nil {
			contract.LogWarn("Failed to finalize run tracking", err)
		}
	}
	if writeErr != nil {
		return nil, writeErr
	}

	return &schema.RunResult{RunID: runID, Loggers: results}, nil
}

// runParams is the part of the config stored with a tracked run.
func runParams(cfg *contract.Config) map[string]any {
	return map[string]any{
		"data_dir":      cfg.DataDir,
		"out_dir":       cfg.OutDir,
		"quality_rules": cfg.QualityRules,
		"gapfill_rules": cfg.GapFillRules,
		"levels":        contract.FormatLevelChain(cfg.Levels),
		"loggers":       cfg.Loggers,
		"workers":       cfg.Workers,
		"format":        string(cfg.Format),
	}
}

// loadRawTables reads every raw table that passes the logger filter.
// A table that cannot be read becomes a failed logger result instead of
// stopping the run.
func loadRawTables(ctx context.Context, cfg *contract.Config) ([]*schema.Table, []schema.LoggerResult, error) {
	sources, err := levelio.ListRawSources(cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}
	sources = slices.DeleteFunc(sources, func(s levelio.RawSource) bool { return !cfg.WantsLogger(s.Logger) })
	if len(sources) == 0 {
		return nil, nil, fmt.Errorf("no raw tables found in %s", cfg.DataDir)
	}

	tables := make([]*schema.Table, len(sources))
	errs := make([]error, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tables[i], errs[i] = levelio.ReadRaw(src)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var raws []*schema.Table
	var failures []schema.LoggerResult
	for i, src := range sources {
		if errs[i] != nil {
			zap.L().Error("raw table unreadable", zap.String("logger", src.Logger), zap.Error(errs[i]))
			failures = append(failures, schema.LoggerResult{Logger: src.Logger, Error: errs[i].Error(), Err: errs[i]})
			continue
		}
		raws = append(raws, tables[i])
	}
	return raws, failures, nil
}

// writeLevels writes every produced level to the output directory.
// Nothing is written when no output directory is configured. A failed write
// does not stop the others; all errors are returned together.
func writeLevels(cfg *contract.Config, results []schema.LoggerResult) error {
	if cfg.OutDir == "" {
		return nil
	}
	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(max(cfg.Workers, 1))
	for _, lr := range results {
		for _, lvl := range lr.Levels {
			if lvl.Table == nil {
				continue
			}
			g.Go(func() error {
				if _, err := levelio.WriteLevel(cfg.OutDir, lvl.Table, cfg.Format); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
				return nil
			})
		}
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// recordSummaries stores one row per logger, level and variable.
func recordSummaries(store contract.RunStore, runID string, results []schema.LoggerResult) {
	now := time.Now()
	for _, lr := range results {
		for _, lvl := range lr.Levels {
			for _, v := range lvl.Variables {
				record := schema.VariableSummaryRecord{
					RunID:         runID,
					Logger:        lr.Logger,
					Level:         lvl.Level,
					Varname:       v.Variable,
					RecordTime:    now,
					TotalPoints:   int32(v.Points),
					MissingPoints: int32(v.Missing),
					FlaggedPoints: int32(v.Flagged),
					Status:        contract.GetPlainLabel(v.Status()),
				}
				if v.Error != "" {
					msg := v.Error
					record.ErrorMessage = &msg
				}
				if err := store.RecordVariableSummary(runID, record); err != nil {
					contract.LogWarn("Failed to record variable summary", err)
				}
			}
		}
	}
}
