package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mvandermeer/rosterd/pkg/core/constraint"
	"github.com/mvandermeer/rosterd/pkg/core/fairness"
	"github.com/mvandermeer/rosterd/pkg/core/model"
	"github.com/mvandermeer/rosterd/pkg/core/timewindow"
)

// Resolver is the secondary pass over a run's full assignment list. It finds
// the conflicts the per-day checks deliberately deferred (recurring-pattern
// collisions for the incidents families) plus residual mutual-exclusivity
// violations across families, and repairs only the minimal affected days.
//
// When families are generated concurrently the resolver must run after all
// interacting family runs have completed.
type Resolver struct {
	strategies map[model.ShiftFamily]*Strategy
	store      constraint.AvailabilityStore
	logger     *zap.Logger
}

// NewResolver creates a resolver over the startup strategy table.
func NewResolver(strategies map[model.ShiftFamily]*Strategy, store constraint.AvailabilityStore, logger *zap.Logger) *Resolver {
	return &Resolver{strategies: strategies, store: store, logger: logger}
}

// DetectConflicts scans the combined assignment list for mutual-exclusivity
// and deferred recurring-pattern violations.
func (r *Resolver) DetectConflicts(ctx context.Context, assignments []Assignment) ([]Conflict, error) {
	var conflicts []Conflict

	// Mutual exclusivity: same employee, exclusive families, shared calendar
	// days. The lower-priority assignment is the one flagged for repair.
	for i := range assignments {
		for j := i + 1; j < len(assignments); j++ {
			a, b := assignments[i], assignments[j]
			if a.EmployeeID != b.EmployeeID || a.Family == b.Family {
				continue
			}
			strategy, ok := r.strategies[a.Family]
			if !ok || !strategy.ExclusiveOf(b.Family) {
				continue
			}
			shared := sharedDates(a, b)
			if len(shared) == 0 {
				continue
			}
			yielding := a
			if familyPriority(a.Family) > familyPriority(b.Family) {
				yielding = b
			}
			conflicts = append(conflicts, Conflict{
				Type:         ConflictMutualExclusivity,
				Severity:     "error",
				Message:      fmt.Sprintf("employee %s holds %s and %s in the same week", a.EmployeeID, a.Family, b.Family),
				EmployeeID:   yielding.EmployeeID,
				Family:       yielding.Family,
				AssignmentID: yielding.ID,
				Dates:        shared,
			})
		}
	}

	// Deferred recurring patterns: the incidents checkers let these through
	// so the repair can target single days instead of rejecting whole weeks.
	for _, a := range assignments {
		strategy, ok := r.strategies[a.Family]
		if !ok || !strategy.DeferRecurring {
			continue
		}
		var dates []time.Time
		for _, w := range a.Windows {
			patterns, err := r.store.RecurringPatternsOn(ctx, a.EmployeeID, w.Date())
			if err != nil {
				return nil, err
			}
			for _, p := range patterns {
				occurs, err := constraint.PatternOccursOn(p, w.Date())
				if err != nil {
					return nil, err
				}
				if occurs {
					dates = append(dates, w.Date())
					break
				}
			}
		}
		if len(dates) > 0 {
			conflicts = append(conflicts, Conflict{
				Type:         ConflictRecurringPattern,
				Severity:     "warning",
				Message:      fmt.Sprintf("employee %s has recurring absences during %s assignment", a.EmployeeID, a.Family),
				EmployeeID:   a.EmployeeID,
				Family:       a.Family,
				AssignmentID: a.ID,
				Dates:        dates,
			})
		}
	}

	return conflicts, nil
}

// ResolveConflicts repairs each conflict by reassigning only the affected
// days, splitting the enclosing assignment so unaffected days keep the
// original assignee. Splits replace assignments; nothing is edited in place.
// Days with no viable substitute retain the original (conflicting) assignee
// and surface a warning, since a known conflict beats no coverage.
func (r *Resolver) ResolveConflicts(ctx context.Context, assignments []Assignment, conflicts []Conflict, pools map[model.ShiftFamily][]model.Employee) ([]Assignment, []string, error) {
	if len(conflicts) == 0 {
		return assignments, nil, nil
	}

	affected := make(map[string]map[string]bool) // assignment ID -> conflicted day keys
	for _, c := range conflicts {
		if affected[c.AssignmentID] == nil {
			affected[c.AssignmentID] = make(map[string]bool)
		}
		for _, d := range c.Dates {
			affected[c.AssignmentID][dayKey(d)] = true
		}
	}

	var warnings []string
	resolved := make([]Assignment, 0, len(assignments))

	for i, a := range assignments {
		days, ok := affected[a.ID]
		if !ok {
			resolved = append(resolved, a)
			continue
		}

		strategy := r.strategies[a.Family]

		// Substitute searches must see repairs made earlier in this pass, or
		// two conflicts on the same date could pick the same substitute. The
		// working view is the repaired output so far plus the originals not
		// yet processed.
		view := make([]Assignment, 0, len(assignments))
		view = append(view, resolved...)
		view = append(view, assignments[i+1:]...)

		state, err := r.fairnessView(ctx, strategy, pools[a.Family], append(view, a), a.Start)
		if err != nil {
			return nil, nil, err
		}

		var kept, conflicted []timewindow.Window
		for _, w := range a.Windows {
			if days[dayKey(w.Date())] {
				conflicted = append(conflicted, w)
			} else {
				kept = append(kept, w)
			}
		}

		var replacements []Assignment
		for _, w := range conflicted {
			substitute, err := r.findSubstitute(ctx, strategy, w, pools[a.Family], state, a.EmployeeID, view)
			if err != nil {
				return nil, nil, err
			}
			if substitute == nil {
				// Unresolvable: retain the original assignee for this day.
				kept = append(kept, w)
				msg := fmt.Sprintf("unresolved conflict on %s for employee %s (%s): no substitute available, retaining original assignee",
					dayKey(w.Date()), a.EmployeeID, a.Family)
				r.logger.Warn("unresolved conflict",
					zap.String("date", dayKey(w.Date())),
					zap.String("employee", a.EmployeeID),
					zap.String("family", string(a.Family)))
				warnings = append(warnings, msg)
				continue
			}
			replacement := Assignment{
				ID:            uuid.NewString(),
				EmployeeID:    substitute.ID,
				Family:        a.Family,
				Start:         w.Start,
				End:           w.End,
				DurationHours: w.Hours(),
				AutoAssigned:  true,
				Reason:        fmt.Sprintf("conflict reassignment for %s (was %s)", dayKey(w.Date()), a.EmployeeID),
				Windows:       []timewindow.Window{w},
			}
			replacements = append(replacements, replacement)
			view = append(view, replacement)
			state = fairness.Merge(state, strategy.Fairness.ProvisionalState([]fairness.PendingAssignment{{
				EmployeeID: substitute.ID,
				Family:     a.Family,
				Hours:      w.Hours(),
			}}))
		}

		if len(kept) > 0 {
			resolved = append(resolved, replaceWindows(a, kept))
		}
		resolved = append(resolved, replacements...)
	}

	return resolved, warnings, nil
}

// fairnessView builds the least-loaded ranking basis for substitutions:
// historical hours merged with everything in the current assignment list.
func (r *Resolver) fairnessView(ctx context.Context, strategy *Strategy, pool []model.Employee, assignments []Assignment, asOf time.Time) (fairness.State, error) {
	historical, err := strategy.Fairness.HistoricalState(ctx, pool, asOf)
	if err != nil {
		return nil, err
	}
	pending := make([]fairness.PendingAssignment, 0, len(assignments))
	for _, a := range assignments {
		pending = append(pending, fairness.PendingAssignment{EmployeeID: a.EmployeeID, Family: a.Family, Hours: a.DurationHours})
	}
	return fairness.Merge(historical, strategy.Fairness.ProvisionalState(pending)), nil
}

// findSubstitute looks for an eligible, available, least-loaded employee who
// can take a single conflicted window without creating a new conflict.
func (r *Resolver) findSubstitute(ctx context.Context, strategy *Strategy, w timewindow.Window, pool []model.Employee, state fairness.State, excludeID string, assignments []Assignment) (*model.Employee, error) {
	ranked := strategy.Fairness.Rank(pool, state)
	for _, candidate := range ranked {
		if candidate.ID == excludeID {
			continue
		}
		if holdsAssignmentOn(assignments, candidate.ID, w.Date()) {
			continue
		}
		check, err := strategy.Checker.CheckAvailability(ctx, candidate, w.Date())
		if err != nil {
			return nil, err
		}
		if !check.Available {
			continue
		}
		if strategy.DeferRecurring {
			// The deferring checker waves recurring patterns through; a
			// substitute with one would just recreate the conflict.
			patterns, err := r.store.RecurringPatternsOn(ctx, candidate.ID, w.Date())
			if err != nil {
				return nil, err
			}
			blocked := false
			for _, p := range patterns {
				occurs, err := constraint.PatternOccursOn(p, w.Date())
				if err != nil {
					return nil, err
				}
				if occurs {
					blocked = true
					break
				}
			}
			if blocked {
				continue
			}
		}
		return &candidate, nil
	}
	return nil, nil
}

// replaceWindows builds the replacement assignment that keeps the original
// assignee on the surviving windows.
func replaceWindows(a Assignment, windows []timewindow.Window) Assignment {
	sort.Slice(windows, func(i, j int) bool { return windows[i].Start.Before(windows[j].Start) })
	hours := 0.0
	for _, w := range windows {
		hours += w.Hours()
	}
	return Assignment{
		ID:            uuid.NewString(),
		EmployeeID:    a.EmployeeID,
		Family:        a.Family,
		Start:         windows[0].Start,
		End:           windows[len(windows)-1].End,
		DurationHours: hours,
		AutoAssigned:  a.AutoAssigned,
		Reason:        a.Reason + " (split after conflict resolution)",
		Windows:       windows,
	}
}

func holdsAssignmentOn(assignments []Assignment, employeeID string, date time.Time) bool {
	for _, a := range assignments {
		if a.EmployeeID == employeeID && a.CoversDate(date) {
			return true
		}
	}
	return false
}

func sharedDates(a, b Assignment) []time.Time {
	var shared []time.Time
	for _, w := range a.Windows {
		if b.CoversDate(w.Date()) {
			shared = append(shared, w.Date())
		}
	}
	return shared
}
