package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mvandermeer/rosterd/pkg/core/fairness"
	"github.com/mvandermeer/rosterd/pkg/core/model"
	"github.com/mvandermeer/rosterd/pkg/core/timewindow"
)

// Orchestrator runs one generation pass for a single shift family. It owns
// the fairness state and in-progress assignment list exclusively for the
// duration of a run; periods are processed in chronological order and never
// reordered, because each period's ranking depends on the hours committed in
// the ones before it.
type Orchestrator struct {
	strategy *Strategy
	logger   *zap.Logger

	// rr is the run-scoped round-robin counter used to break exact fairness
	// ties, so a long run of tied weeks does not always favor the lowest
	// employee ID. It can be seeded to carry over between rolling runs.
	rr int
}

// NewOrchestrator creates an orchestrator for one family strategy.
func NewOrchestrator(strategy *Strategy, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{strategy: strategy, logger: logger}
}

// SeedRoundRobin seeds the tie-break counter. The default (zero) keeps the
// counter scoped to the run.
func (o *Orchestrator) SeedRoundRobin(n int) {
	o.rr = n
}

// periodAvailability is one employee's availability within a single period.
type periodAvailability struct {
	employee model.Employee
	windows  []timewindow.Window
	hours    float64
	ratio    float64
	reasons  []string
}

// Generate produces the assignment list for [from, to). Configuration
// problems (empty pool, empty period list) are reported in the result's
// Errors and yield an empty result; collaborator failures and cancellation
// abort with an error and no result.
func (o *Orchestrator) Generate(ctx context.Context, employees []model.Employee, from, to time.Time) (*Result, error) {
	result := &Result{FairnessScores: map[string]float64{}}

	// INIT: fix a deterministic pool ordering up front so nothing downstream
	// depends on map or input ordering.
	pool := make([]model.Employee, len(employees))
	copy(pool, employees)
	sort.Slice(pool, func(i, j int) bool { return pool[i].ID < pool[j].ID })

	if len(pool) == 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("no eligible employees for %s", o.strategy.Family))
		return result, nil
	}

	historical, err := o.strategy.Fairness.HistoricalState(ctx, pool, from)
	if err != nil {
		return nil, err
	}

	periods := o.strategy.Periods(from, to)
	if len(periods) == 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("no %s periods in range %s to %s",
			o.strategy.Family, from.Format("2006-01-02"), to.Format("2006-01-02")))
		return result, nil
	}

	o.logger.Debug("starting generation run",
		zap.String("family", string(o.strategy.Family)),
		zap.Int("employees", len(pool)),
		zap.Int("periods", len(periods)))

	var pending []fairness.PendingAssignment
	bookedInRun := make(map[string]map[string]bool) // date -> employee IDs committed this run

	// PERIOD_LOOP
	for _, period := range periods {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("generation aborted before period %s: %w", period.Label, err)
		}

		windows := o.strategy.Windows(period)
		totalHours := 0.0
		for _, w := range windows {
			totalHours += w.Hours()
		}

		availability, err := o.periodAvailability(ctx, pool, windows, totalHours, bookedInRun)
		if err != nil {
			return nil, err
		}

		// Fairness is snapshotted fresh per period: historical merged with
		// everything committed so far in this run.
		merged := fairness.Merge(historical, o.strategy.Fairness.ProvisionalState(pending))

		var full, partial []periodAvailability
		for _, pa := range availability {
			switch {
			case pa.ratio == 1.0:
				full = append(full, pa)
			case pa.ratio > 0:
				partial = append(partial, pa)
			}
		}

		switch {
		case len(full) > 0:
			a := o.assignFullWeek(period, windows, totalHours, full, merged)
			result.Assignments = append(result.Assignments, a)
			pending = append(pending, fairness.PendingAssignment{EmployeeID: a.EmployeeID, Family: a.Family, Hours: a.DurationHours})
			markBooked(bookedInRun, a)

		case len(partial) > 0:
			made, warnings, err := o.assignPartialWeek(ctx, period, windows, partial, pool, merged, bookedInRun)
			if err != nil {
				return nil, err
			}
			for _, a := range made {
				result.Assignments = append(result.Assignments, a)
				pending = append(pending, fairness.PendingAssignment{EmployeeID: a.EmployeeID, Family: a.Family, Hours: a.DurationHours})
				markBooked(bookedInRun, a)
			}
			result.Warnings = append(result.Warnings, warnings...)

		default:
			// NO_COVERAGE: the gap appears as an absence in the output, not
			// a placeholder assignment.
			msg := fmt.Sprintf("no coverage for %s: no eligible employee is available", period.Label)
			o.logger.Warn("coverage gap", zap.String("period", period.Label), zap.String("family", string(o.strategy.Family)))
			result.Warnings = append(result.Warnings, msg)
		}
	}

	// DONE
	final := fairness.Merge(historical, o.strategy.Fairness.ProvisionalState(pending))
	result.FairnessScores = o.strategy.Fairness.Scores(final, pool)
	result.TotalShifts = len(result.Assignments)
	result.EmployeesAssigned = countDistinctEmployees(result.Assignments)

	o.logger.Info("generation run complete",
		zap.String("family", string(o.strategy.Family)),
		zap.Int("assignments", result.TotalShifts),
		zap.Int("employees_assigned", result.EmployeesAssigned),
		zap.Int("warnings", len(result.Warnings)))

	return result, nil
}

// periodAvailability computes, for every employee in the pool, the daily
// windows they are available for within one period.
func (o *Orchestrator) periodAvailability(ctx context.Context, pool []model.Employee, windows []timewindow.Window, totalHours float64, bookedInRun map[string]map[string]bool) ([]periodAvailability, error) {
	out := make([]periodAvailability, 0, len(pool))
	for _, employee := range pool {
		pa := periodAvailability{employee: employee}
		for _, w := range windows {
			if bookedInRun[dayKey(w.Date())][employee.ID] {
				pa.reasons = append(pa.reasons, fmt.Sprintf("already committed this run on %s", dayKey(w.Date())))
				continue
			}
			check, err := o.strategy.Checker.CheckAvailability(ctx, employee, w.Date())
			if err != nil {
				return nil, err
			}
			if !check.Available {
				pa.reasons = append(pa.reasons, check.Reason)
				continue
			}
			pa.windows = append(pa.windows, w)
			pa.hours += w.Hours()
		}
		if totalHours > 0 {
			pa.ratio = pa.hours / totalHours
		}
		out = append(out, pa)
	}
	return out, nil
}

// assignFullWeek picks the least-loaded fully-available employee and commits
// them to every daily window of the period as one coherent weekly
// commitment (continuity preference).
func (o *Orchestrator) assignFullWeek(period timewindow.Period, windows []timewindow.Window, totalHours float64, full []periodAvailability, merged fairness.State) Assignment {
	candidates := make([]model.Employee, len(full))
	for i, pa := range full {
		candidates[i] = pa.employee
	}

	chosen := o.pickLeastLoaded(candidates, merged)
	score := o.strategy.Fairness.Scores(merged, candidates)[chosen.ID]

	o.logger.Debug("full week assignment",
		zap.String("period", period.Label),
		zap.String("employee", chosen.ID),
		zap.Float64("fairness_score", score))

	return Assignment{
		ID:            uuid.NewString(),
		EmployeeID:    chosen.ID,
		Family:        o.strategy.Family,
		Start:         period.Start,
		End:           period.End,
		DurationHours: totalHours,
		AutoAssigned:  true,
		Reason:        fmt.Sprintf("weekly %s rotation for %s", o.strategy.Family, period.Label),
		Windows:       windows,
	}
}

// assignPartialWeek covers a period no single employee can take in full: the
// best partial candidate takes every window they are free for, and each
// remaining window gets a single-day coverage search across the whole pool.
func (o *Orchestrator) assignPartialWeek(ctx context.Context, period timewindow.Period, windows []timewindow.Window, partial []periodAvailability, pool []model.Employee, merged fairness.State, bookedInRun map[string]map[string]bool) ([]Assignment, []string, error) {
	scores := o.strategy.Fairness.Scores(merged, pool)

	// Primary by highest availability ratio, then lowest fairness score,
	// then ascending ID. All total orderings.
	sort.Slice(partial, func(i, j int) bool {
		if partial[i].ratio != partial[j].ratio {
			return partial[i].ratio > partial[j].ratio
		}
		si, sj := scores[partial[i].employee.ID], scores[partial[j].employee.ID]
		if si != sj {
			return si < sj
		}
		return partial[i].employee.ID < partial[j].employee.ID
	})
	primary := partial[0]

	o.logger.Debug("partial week assignment",
		zap.String("period", period.Label),
		zap.String("primary", primary.employee.ID),
		zap.Float64("availability_ratio", primary.ratio))

	assignments := []Assignment{{
		ID:            uuid.NewString(),
		EmployeeID:    primary.employee.ID,
		Family:        o.strategy.Family,
		Start:         period.Start,
		End:           period.End,
		DurationHours: primary.hours,
		AutoAssigned:  true,
		Reason:        fmt.Sprintf("partial %s rotation for %s (%.0f%% available)", o.strategy.Family, period.Label, primary.ratio*100),
		Windows:       primary.windows,
	}}

	// Provisional view for the coverage searches includes the primary.
	working := fairness.Merge(merged, o.strategy.Fairness.ProvisionalState([]fairness.PendingAssignment{{
		EmployeeID: primary.employee.ID,
		Family:     o.strategy.Family,
		Hours:      primary.hours,
	}}))

	var warnings []string
	for _, w := range windows {
		if windowCovered(primary.windows, w) {
			continue
		}
		substitute, err := o.findDayCoverage(ctx, w, pool, working, primary.employee.ID, bookedInRun)
		if err != nil {
			return nil, nil, err
		}
		if substitute == nil {
			msg := fmt.Sprintf("coverage gap on %s in %s: no substitute available", dayKey(w.Date()), period.Label)
			o.logger.Warn("single-day coverage gap", zap.String("date", dayKey(w.Date())), zap.String("period", period.Label))
			warnings = append(warnings, msg)
			continue
		}
		cover := Assignment{
			ID:            uuid.NewString(),
			EmployeeID:    substitute.ID,
			Family:        o.strategy.Family,
			Start:         w.Start,
			End:           w.End,
			DurationHours: w.Hours(),
			AutoAssigned:  true,
			Reason:        fmt.Sprintf("single-day coverage for %s in %s", dayKey(w.Date()), period.Label),
			Windows:       []timewindow.Window{w},
		}
		assignments = append(assignments, cover)
		working = fairness.Merge(working, o.strategy.Fairness.ProvisionalState([]fairness.PendingAssignment{{
			EmployeeID: substitute.ID,
			Family:     o.strategy.Family,
			Hours:      cover.DurationHours,
		}}))
	}

	return assignments, warnings, nil
}

// findDayCoverage searches the entire eligible pool, ranked purely by
// fairness, for someone who can take a single window.
func (o *Orchestrator) findDayCoverage(ctx context.Context, w timewindow.Window, pool []model.Employee, state fairness.State, excludeID string, bookedInRun map[string]map[string]bool) (*model.Employee, error) {
	ranked := o.strategy.Fairness.Rank(pool, state)
	for _, candidate := range ranked {
		if candidate.ID == excludeID {
			continue
		}
		if bookedInRun[dayKey(w.Date())][candidate.ID] {
			continue
		}
		check, err := o.strategy.Checker.CheckAvailability(ctx, candidate, w.Date())
		if err != nil {
			return nil, err
		}
		if check.Available {
			return &candidate, nil
		}
	}
	return nil, nil
}

// pickLeastLoaded returns the candidate with the lowest fairness score.
// Exact ties sort by ascending ID and then rotate through the run-scoped
// round-robin counter, so a streak of tied periods spreads across the tied
// employees instead of always landing on the lowest ID.
func (o *Orchestrator) pickLeastLoaded(candidates []model.Employee, state fairness.State) model.Employee {
	scores := o.strategy.Fairness.Scores(state, candidates)

	sorted := make([]model.Employee, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		si, sj := scores[sorted[i].ID], scores[sorted[j].ID]
		if si != sj {
			return si < sj
		}
		return sorted[i].ID < sorted[j].ID
	})

	best := scores[sorted[0].ID]
	tied := sorted[:1]
	for _, e := range sorted[1:] {
		if scores[e.ID] == best {
			tied = append(tied, e)
		} else {
			break
		}
	}

	if len(tied) == 1 {
		return tied[0]
	}
	chosen := tied[o.rr%len(tied)]
	o.rr++
	return chosen
}

func windowCovered(covered []timewindow.Window, w timewindow.Window) bool {
	for _, c := range covered {
		if c.Start.Equal(w.Start) && c.End.Equal(w.End) {
			return true
		}
	}
	return false
}

func markBooked(booked map[string]map[string]bool, a Assignment) {
	for _, w := range a.Windows {
		key := dayKey(w.Date())
		if booked[key] == nil {
			booked[key] = make(map[string]bool)
		}
		booked[key][a.EmployeeID] = true
	}
}

func countDistinctEmployees(assignments []Assignment) int {
	seen := make(map[string]bool)
	for _, a := range assignments {
		seen[a.EmployeeID] = true
	}
	return len(seen)
}
