// Package fairness ranks employees by accumulated workload within a single
// shift family. Scores are normalized against the pool average so that the
// least-loaded employee is always the most deserving of the next assignment.
package fairness

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mvandermeer/rosterd/pkg/core/model"
)

// DefaultLookbackDays bounds the historical window used when building the
// initial fairness state. The window ends at generation start so the range
// being generated never feeds back into its own ranking.
const DefaultLookbackDays = 180

// Load is one employee's accumulated hours, broken down per shift family.
// Invariant: TotalHours equals the sum of the per-family hours.
type Load struct {
	Hours      map[model.ShiftFamily]float64
	TotalHours float64
}

// State maps employee IDs to their accumulated load. It is the only mutable
// shared state within a generation run and is discarded when the run ends.
type State map[string]*Load

// Add accrues hours for an employee under the given family.
func (s State) Add(employeeID string, family model.ShiftFamily, hours float64) {
	load, ok := s[employeeID]
	if !ok {
		load = &Load{Hours: make(map[model.ShiftFamily]float64)}
		s[employeeID] = load
	}
	load.Hours[family] += hours
	load.TotalHours += hours
}

// Total returns the total tracked hours for an employee. Employees with no
// history report zero, which makes them maximally eligible (cold-start
// fairness).
func (s State) Total(employeeID string) float64 {
	if load, ok := s[employeeID]; ok {
		return load.TotalHours
	}
	return 0
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := make(State, len(s))
	for id, load := range s {
		hours := make(map[model.ShiftFamily]float64, len(load.Hours))
		for family, h := range load.Hours {
			hours[family] = h
		}
		out[id] = &Load{Hours: hours, TotalHours: load.TotalHours}
	}
	return out
}

// HistoryStore is the read-only collaborator that supplies committed
// assignment hours for the lookback window.
type HistoryStore interface {
	// HistoricalHours aggregates committed assignment duration per employee
	// for the given family over [from, to).
	HistoricalHours(ctx context.Context, employeeIDs []string, family model.ShiftFamily, from, to time.Time) (map[string]float64, error)
}

// PendingAssignment is the slice of an in-flight assignment the calculator
// needs: who, which family, and how many hours.
type PendingAssignment struct {
	EmployeeID string
	Family     model.ShiftFamily
	Hours      float64
}

// Calculator computes and ranks fairness state for one shift family. It only
// tracks its own family's hours; other families never leak into its scores.
type Calculator struct {
	family       model.ShiftFamily
	store        HistoryStore
	lookbackDays int
}

// NewCalculator creates a fairness calculator for one family. A non-positive
// lookbackDays falls back to DefaultLookbackDays.
func NewCalculator(family model.ShiftFamily, store HistoryStore, lookbackDays int) *Calculator {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	return &Calculator{family: family, store: store, lookbackDays: lookbackDays}
}

// Family returns the shift family this calculator tracks.
func (c *Calculator) Family() model.ShiftFamily {
	return c.family
}

// HistoricalState queries the bounded lookback window ending at asOf and
// aggregates committed hours per employee. Every employee in the pool gets an
// entry, so zero-history employees are visible to the ranking.
func (c *Calculator) HistoricalState(ctx context.Context, employees []model.Employee, asOf time.Time) (State, error) {
	ids := make([]string, 0, len(employees))
	for _, e := range employees {
		ids = append(ids, e.ID)
	}

	from := asOf.AddDate(0, 0, -c.lookbackDays)
	hours, err := c.store.HistoricalHours(ctx, ids, c.family, from, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to query historical hours for %s: %w", c.family, err)
	}

	state := make(State, len(employees))
	for _, e := range employees {
		state.Add(e.ID, c.family, hours[e.ID])
	}
	return state, nil
}

// ProvisionalState aggregates the assignments made so far in the active run.
func (c *Calculator) ProvisionalState(pending []PendingAssignment) State {
	state := make(State)
	for _, p := range pending {
		if p.Family != c.family {
			continue
		}
		state.Add(p.EmployeeID, p.Family, p.Hours)
	}
	return state
}

// Merge combines two states into a fresh one. Matching keys add; keys present
// only on one side carry through unchanged. Neither input is mutated.
func Merge(a, b State) State {
	out := a.Clone()
	for id, load := range b {
		for family, h := range load.Hours {
			out.Add(id, family, h)
		}
	}
	return out
}

// Scores converts a state into per-employee fairness scores:
// score = totalHours / averageHours across the pool. When the average is zero
// every employee scores zero. Lower scores are more deserving.
func (c *Calculator) Scores(state State, employees []model.Employee) map[string]float64 {
	scores := make(map[string]float64, len(employees))
	if len(employees) == 0 {
		return scores
	}

	var sum float64
	for _, e := range employees {
		sum += state.Total(e.ID)
	}
	average := sum / float64(len(employees))

	for _, e := range employees {
		if average > 0 {
			scores[e.ID] = state.Total(e.ID) / average
		} else {
			scores[e.ID] = 0
		}
	}
	return scores
}

// LeastLoaded selects the employee with the lowest fairness score. Ties break
// on ascending employee ID so the selection is a total ordering regardless of
// input order. Returns nil for an empty pool.
func (c *Calculator) LeastLoaded(employees []model.Employee, state State) *model.Employee {
	ranked := c.Rank(employees, state)
	if len(ranked) == 0 {
		return nil
	}
	return &ranked[0]
}

// Rank returns the pool ordered by ascending fairness score, ties broken by
// ascending employee ID.
func (c *Calculator) Rank(employees []model.Employee, state State) []model.Employee {
	scores := c.Scores(state, employees)
	ranked := make([]model.Employee, len(employees))
	copy(ranked, employees)
	sort.Slice(ranked, func(i, j int) bool {
		si, sj := scores[ranked[i].ID], scores[ranked[j].ID]
		if si != sj {
			return si < sj
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked
}
