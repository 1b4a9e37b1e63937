// Package core has core logic for level planning, rule application and run orchestration.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/huangsam/strata/core/algo"
	"github.com/huangsam/strata/core/rules"
	"github.com/huangsam/strata/internal/contract"
	"github.com/huangsam/strata/internal/outwriter"
	"github.com/huangsam/strata/schema"
)

// ExecutorFunc defines the function signature for executing strata commands.
type ExecutorFunc func(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error

// ExecuteRun runs the level chain over every raw table and prints a summary.
// It serves as the main entry point for the 'run' command.
func ExecuteRun(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	start := time.Now()
	result, err := runPipelineCore(ctx, cfg, mgr)
	if err != nil {
		return err
	}
	if err := outwriter.NewOutWriter().WriteRun(result, cfg, time.Since(start)); err != nil {
		return err
	}
	return failedLoggersError(result)
}

// ExecuteValidateRules loads both rule files, plans every logger they name
// and prints a report. Any problem makes the command fail.
func ExecuteValidateRules(_ context.Context, cfg *contract.Config, _ contract.CacheManager) error {
	report, err := ValidateRules(cfg)
	if report != nil {
		if werr := outwriter.NewOutWriter().WriteRulesReport(report, cfg); werr != nil {
			return werr
		}
	}
	return err
}

// ExecuteListRules prints every loaded rule.
func ExecuteListRules(_ context.Context, cfg *contract.Config, _ contract.CacheManager) error {
	rows, err := GetRuleRows(cfg)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteRules(rows, cfg)
}

// ExecuteListFunctions prints the registered quality and gap-fill functions.
func ExecuteListFunctions(_ context.Context, cfg *contract.Config, _ contract.CacheManager) error {
	return outwriter.NewOutWriter().WriteFunctions(GetFunctions(), cfg)
}

// GetRunResults runs the chain without printing anything.
// It is the entry point for callers that render results themselves.
func GetRunResults(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) (*schema.RunResult, error) {
	return runPipelineCore(withSuppressHeader(ctx), cfg, mgr)
}

// GetRuleRows returns the rules of both families, filtered by --loggers.
func GetRuleRows(cfg *contract.Config) ([]schema.RuleRow, error) {
	store, err := rules.LoadFiles(algo.NewRegistry(), cfg.QualityRules, cfg.GapFillRules)
	if err != nil {
		return nil, err
	}
	all := append(schema.QualityRuleRows(store.AllQuality()), schema.GapFillRuleRows(store.AllGapFill())...)
	rows := make([]schema.RuleRow, 0, len(all))
	for _, r := range all {
		if cfg.WantsLogger(r.Logger) {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

// GetFunctions lists the built-in functions.
func GetFunctions() []schema.FunctionInfo {
	return algo.NewRegistry().Functions()
}

// ValidateRules loads the rules and plans the configured chain for every
// logger they name. A report is returned whenever the rules loaded, even
// when planning found problems.
func ValidateRules(cfg *contract.Config) (*schema.RulesReport, error) {
	reg := algo.NewRegistry()
	store, err := rules.LoadFiles(reg, cfg.QualityRules, cfg.GapFillRules)
	if err != nil {
		return nil, err
	}
	p, err := NewPipeline(reg, store, cfg.Levels)
	if err != nil {
		return nil, err
	}

	quality, gapfill := store.Count()
	report := &schema.RulesReport{
		Quality: quality,
		GapFill: gapfill,
		Digest:  store.Digest(),
		Chain:   contract.FormatLevelChain(cfg.Levels),
	}
	var errs []error
	for _, logger := range store.Loggers() {
		if !cfg.WantsLogger(logger) {
			continue
		}
		report.Loggers = append(report.Loggers, logger)
		if _, err := p.Plan(logger); err != nil {
			report.Problems = append(report.Problems, err.Error())
			errs = append(errs, err)
		}
	}
	return report, errors.Join(errs...)
}

// failedLoggersError reports loggers whose chain could not run at all.
// Variable failures are part of a successful run.
func failedLoggersError(result *schema.RunResult) error {
	failed := 0
	for _, lr := range result.Loggers {
		if lr.Error != "" {
			failed++
		}
	}
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d loggers failed", failed, len(result.Loggers))
}
