// Package services wires the collaborator stores to the scheduling engine.
// Each function is one use case driven by the CLI (or any other transport
// layer the deployment puts in front of it).
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

// GenerateOptions selects what one generation call covers.
type GenerateOptions struct {
	Families []model.ShiftFamily
	From     time.Time
	To       time.Time
	TeamID   string
	DryRun   bool
}

// GenerateResult is the combined outcome across the requested families.
type GenerateResult struct {
	Assignments       []schedule.Assignment
	TotalShifts       int
	EmployeesAssigned int
	FairnessScores    map[model.ShiftFamily]map[string]float64
	Errors            []string
	Warnings          []string
}

// Generate runs the full pipeline: per-family orchestration in a fixed
// order, the cross-family reassignment pass, and a single transactional
// persist (skipped on dry runs). Family runs each own a disjoint fairness
// state; the resolver join happens only after every requested family has
// completed.
func Generate(ctx context.Context, store db.Store, cfg *config.Config, logger *zap.Logger, opts GenerateOptions) (*GenerateResult, error) {
	logger.Debug("starting generate",
		zap.Int("families", len(opts.Families)),
		zap.Bool("dry_run", opts.DryRun),
		zap.String("team_id", opts.TeamID))

	_, strategies, err := buildEngine(cfg, store)
	if err != nil {
		return nil, err
	}

	result := &GenerateResult{FairnessScores: make(map[model.ShiftFamily]map[string]float64)}

	families := opts.Families
	if len(families) == 0 {
		families = configuredFamilies(cfg)
	}

	pools := make(map[model.ShiftFamily][]model.Employee)

	for _, family := range orderedFamilies(families) {
		strategy, ok := strategies[family]
		if !ok {
			return nil, fmt.Errorf("unknown shift family %q", family)
		}

		pool, err := store.ListEligibleEmployees(ctx, family, opts.TeamID)
		if err != nil {
			return nil, fmt.Errorf("failed to list eligible employees for %s: %w", family, err)
		}
		pools[family] = pool
		logger.Debug("resolved employee pool", zap.String("family", string(family)), zap.Int("count", len(pool)))

		orchestrator := schedule.NewOrchestrator(strategy, logger)
		if cfg.RoundRobinScope == "persistent" {
			count, err := store.CountAssignments(ctx, family)
			if err != nil {
				return nil, fmt.Errorf("failed to seed round-robin counter for %s: %w", family, err)
			}
			orchestrator.SeedRoundRobin(count)
		}

		familyResult, err := orchestrator.Generate(ctx, pool, opts.From, opts.To)
		if err != nil {
			return nil, err
		}

		result.Assignments = append(result.Assignments, familyResult.Assignments...)
		result.FairnessScores[family] = familyResult.FairnessScores
		result.Errors = append(result.Errors, familyResult.Errors...)
		result.Warnings = append(result.Warnings, familyResult.Warnings...)
	}

	// Reassignment pass across all generated families.
	resolver := schedule.NewResolver(strategies, store, logger)
	conflicts, err := resolver.DetectConflicts(ctx, result.Assignments)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		logger.Info("resolving conflicts", zap.Int("count", len(conflicts)))
		resolved, warnings, err := resolver.ResolveConflicts(ctx, result.Assignments, conflicts, pools)
		if err != nil {
			return nil, err
		}
		result.Assignments = resolved
		result.Warnings = append(result.Warnings, warnings...)
	}

	result.TotalShifts = len(result.Assignments)
	result.EmployeesAssigned = distinctEmployees(result.Assignments)

	if opts.DryRun {
		logger.Info("dry run: skipping persistence", zap.Int("assignments", result.TotalShifts))
		return result, nil
	}

	if len(result.Assignments) > 0 {
		records := toRecords(result.Assignments)
		if err := store.InsertAssignments(ctx, records); err != nil {
			return nil, fmt.Errorf("failed to persist assignments: %w", err)
		}
		logger.Info("assignments persisted", zap.Int("count", len(records)))
	}

	return result, nil
}

// buildEngine constructs the window calculator and the startup strategy
// table from configuration.
func buildEngine(cfg *config.Config, store db.Store) (*timewindow.Calculator, map[model.ShiftFamily]*schedule.Strategy, error) {
	calc, err := timewindow.NewCalculator(cfg.Timezone)
	if err != nil {
		return nil, nil, err
	}

	var exclusions [][2]model.ShiftFamily
	for _, pair := range cfg.MutualExclusions {
		exclusions = append(exclusions, [2]model.ShiftFamily{model.ShiftFamily(pair.A), model.ShiftFamily(pair.B)})
	}

	strategies := schedule.BuildStrategies(calc, store, schedule.StrategyOptions{
		FairnessLookbackDays: cfg.FairnessLookbackDays,
		Exclusions:           exclusions,
	})
	return calc, strategies, nil
}

func configuredFamilies(cfg *config.Config) []model.ShiftFamily {
	out := make([]model.ShiftFamily, 0, len(cfg.Families))
	for _, f := range cfg.Families {
		out = append(out, model.ShiftFamily(f))
	}
	return out
}

// orderedFamilies returns the requested families in the fixed engine order
// so concurrent callers and repeated runs see identical sequencing.
func orderedFamilies(requested []model.ShiftFamily) []model.ShiftFamily {
	want := make(map[model.ShiftFamily]bool, len(requested))
	for _, f := range requested {
		want[f] = true
	}
	var out []model.ShiftFamily
	for _, f := range model.Families() {
		if want[f] {
			out = append(out, f)
		}
	}
	return out
}

func toRecords(assignments []schedule.Assignment) []db.AssignmentRecord {
	records := make([]db.AssignmentRecord, 0, len(assignments))
	for _, a := range assignments {
		records = append(records, db.AssignmentRecord{
			ID:            a.ID,
			EmployeeID:    a.EmployeeID,
			ShiftType:     string(a.Family),
			Start:         a.Start,
			End:           a.End,
			DurationHours: a.DurationHours,
			AutoAssigned:  a.AutoAssigned,
			Reason:        a.Reason,
		})
	}
	return records
}

func distinctEmployees(assignments []schedule.Assignment) int {
	seen := make(map[string]bool)
	for _, a := range assignments {
		seen[a.EmployeeID] = true
	}
	return len(seen)
}
