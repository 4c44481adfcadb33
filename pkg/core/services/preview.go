package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mvandermeer/rosterd/internal/config"
	"github.com/mvandermeer/rosterd/pkg/core/model"
	"github.com/mvandermeer/rosterd/pkg/core/schedule"
	"github.com/mvandermeer/rosterd/pkg/core/timewindow"
	"github.com/mvandermeer/rosterd/pkg/db"
)

// PreviewResult is a generation result scoped to one upcoming period.
type PreviewResult struct {
	Period      timewindow.Period
	Assignments []schedule.Assignment
	Scores      map[string]float64
	Errors      []string
	Warnings    []string
}

// PreviewNextPeriod generates the single period following the reference date
// for one family. Used for rolling, incremental generation; never persists.
func PreviewNextPeriod(ctx context.Context, store db.Store, cfg *config.Config, logger *zap.Logger, family model.ShiftFamily, reference time.Time) (*PreviewResult, error) {
	_, strategies, err := buildEngine(cfg, store)
	if err != nil {
		return nil, err
	}

	strategy, ok := strategies[family]
	if !ok {
		return nil, fmt.Errorf("unknown shift family %q", family)
	}

	// The upcoming period is the first one starting after the reference.
	candidates := strategy.Periods(reference, reference.AddDate(0, 0, 15))
	var period *timewindow.Period
	for i := range candidates {
		if candidates[i].Start.After(reference) {
			period = &candidates[i]
			break
		}
	}
	if period == nil {
		return nil, fmt.Errorf("no upcoming %s period after %s", family, reference.Format("2006-01-02"))
	}

	pool, err := store.ListEligibleEmployees(ctx, family, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible employees for %s: %w", family, err)
	}

	orchestrator := schedule.NewOrchestrator(strategy, logger)
	result, err := orchestrator.Generate(ctx, pool, period.Start, period.End)
	if err != nil {
		return nil, err
	}

	// The preview still runs the reassignment pass so deferred
	// recurring-pattern conflicts show up before anything is committed.
	resolver := schedule.NewResolver(strategies, store, logger)
	conflicts, err := resolver.DetectConflicts(ctx, result.Assignments)
	if err != nil {
		return nil, err
	}
	assignments := result.Assignments
	warnings := result.Warnings
	if len(conflicts) > 0 {
		pools := map[model.ShiftFamily][]model.Employee{family: pool}
		resolved, resolveWarnings, err := resolver.ResolveConflicts(ctx, assignments, conflicts, pools)
		if err != nil {
			return nil, err
		}
		assignments = resolved
		warnings = append(warnings, resolveWarnings...)
	}

	logger.Debug("preview complete",
		zap.String("family", string(family)),
		zap.String("period", period.Label),
		zap.Int("assignments", len(assignments)))

	return &PreviewResult{
		Period:      *period,
		Assignments: assignments,
		Scores:      result.FairnessScores,
		Errors:      result.Errors,
		Warnings:    warnings,
	}, nil
}
