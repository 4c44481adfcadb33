package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mvandermeer/rosterd/pkg/core/model"
	"github.com/mvandermeer/rosterd/pkg/core/timewindow"
)

func makeAssignment(id, employeeID string, family model.ShiftFamily, windows []timewindow.Window) Assignment {
	hours := 0.0
	for _, w := range windows {
		hours += w.Hours()
	}
	return Assignment{
		ID:            id,
		EmployeeID:    employeeID,
		Family:        family,
		Start:         windows[0].Start,
		End:           windows[len(windows)-1].End,
		DurationHours: hours,
		AutoAssigned:  true,
		Reason:        "weekly " + string(family) + " rotation",
		Windows:       windows,
	}
}

func fridayAbsence(employeeID string) model.RecurringPattern {
	return model.RecurringPattern{
		ID:         "p-" + employeeID,
		EmployeeID: employeeID,
		RRule:      "FREQ=WEEKLY;BYDAY=FR",
		DTStart:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Part:       model.DayPartFull,
	}
}

func TestDetectConflicts_None(t *testing.T) {
	store := newFakeStore()
	strategies, calc := newTestStrategies(t, store)
	resolver := NewResolver(strategies, store, zap.NewNop())

	week := calc.BusinessWeekWindows(time.Date(2025, 1, 15, 0, 0, 0, 0, calc.Location()))
	assignments := []Assignment{makeAssignment("a1", "emp-1", model.FamilyIncidents, week)}

	conflicts, err := resolver.DetectConflicts(context.Background(), assignments)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestDetectConflicts_MutualExclusivity(t *testing.T) {
	store := newFakeStore()
	strategies, calc := newTestStrategies(t, store)
	resolver := NewResolver(strategies, store, zap.NewNop())

	// emp-1 holds the on-call week anchored Wednesday 2025-01-15 (dates
	// 15..21) and the business week 13..17. Three calendar days overlap.
	oncallWeek := calc.OnCallWeekWindows(time.Date(2025, 1, 16, 0, 0, 0, 0, calc.Location()))
	incidentsWeek := calc.BusinessWeekWindows(time.Date(2025, 1, 15, 0, 0, 0, 0, calc.Location()))
	assignments := []Assignment{
		makeAssignment("a-oncall", "emp-1", model.FamilyOnCall, oncallWeek),
		makeAssignment("a-incidents", "emp-1", model.FamilyIncidents, incidentsWeek),
	}

	conflicts, err := resolver.DetectConflicts(context.Background(), assignments)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)

	c := conflicts[0]
	assert.Equal(t, ConflictMutualExclusivity, c.Type)
	// The incidents assignment yields: on-call outranks it.
	assert.Equal(t, "a-incidents", c.AssignmentID)
	assert.Equal(t, model.FamilyIncidents, c.Family)
	assert.Len(t, c.Dates, 3)
}

func TestDetectConflicts_IncidentsStandbyExclusive(t *testing.T) {
	store := newFakeStore()
	strategies, calc := newTestStrategies(t, store)
	resolver := NewResolver(strategies, store, zap.NewNop())

	// Incidents and standby staff identical business-week windows, so one
	// employee holding both is a double-booking on all five days. Standby
	// yields: it is the lower-priority family.
	week := calc.BusinessWeekWindows(time.Date(2025, 1, 15, 0, 0, 0, 0, calc.Location()))
	assignments := []Assignment{
		makeAssignment("a1", "emp-1", model.FamilyIncidents, week),
		makeAssignment("a2", "emp-1", model.FamilyIncidentsStandby, week),
	}

	conflicts, err := resolver.DetectConflicts(context.Background(), assignments)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)

	c := conflicts[0]
	assert.Equal(t, ConflictMutualExclusivity, c.Type)
	assert.Equal(t, "a2", c.AssignmentID)
	assert.Equal(t, model.FamilyIncidentsStandby, c.Family)
	assert.Len(t, c.Dates, 5)
}

func TestDetectConflicts_DeferredRecurringPattern(t *testing.T) {
	store := newFakeStore()
	store.patterns["emp-1"] = []model.RecurringPattern{fridayAbsence("emp-1")}
	strategies, calc := newTestStrategies(t, store)
	resolver := NewResolver(strategies, store, zap.NewNop())

	week := calc.BusinessWeekWindows(time.Date(2025, 1, 15, 0, 0, 0, 0, calc.Location()))
	assignments := []Assignment{makeAssignment("a1", "emp-1", model.FamilyIncidents, week)}

	conflicts, err := resolver.DetectConflicts(context.Background(), assignments)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)

	c := conflicts[0]
	assert.Equal(t, ConflictRecurringPattern, c.Type)
	assert.Equal(t, "a1", c.AssignmentID)
	require.Len(t, c.Dates, 1)
	assert.Equal(t, "2025-01-17", c.Dates[0].Format("2006-01-02"))
}

func TestDetectConflicts_OnCallPatternNotDeferred(t *testing.T) {
	store := newFakeStore()
	store.patterns["emp-1"] = []model.RecurringPattern{fridayAbsence("emp-1")}
	strategies, calc := newTestStrategies(t, store)
	resolver := NewResolver(strategies, store, zap.NewNop())

	// On-call blocks recurring patterns up front, so the resolver never
	// reports them for on-call assignments.
	week := calc.OnCallWeekWindows(time.Date(2025, 1, 16, 0, 0, 0, 0, calc.Location()))
	assignments := []Assignment{makeAssignment("a1", "emp-1", model.FamilyOnCall, week)}

	conflicts, err := resolver.DetectConflicts(context.Background(), assignments)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestResolveConflicts_SplitsAroundRecurringPattern(t *testing.T) {
	store := newFakeStore()
	store.patterns["emp-1"] = []model.RecurringPattern{fridayAbsence("emp-1")}
	strategies, calc := newTestStrategies(t, store)
	resolver := NewResolver(strategies, store, zap.NewNop())

	week := calc.BusinessWeekWindows(time.Date(2025, 1, 15, 0, 0, 0, 0, calc.Location()))
	assignments := []Assignment{makeAssignment("a1", "emp-1", model.FamilyIncidents, week)}
	pools := map[model.ShiftFamily][]model.Employee{
		model.FamilyIncidents: {incidentsEmployee("emp-1"), incidentsEmployee("emp-2")},
	}

	conflicts, err := resolver.DetectConflicts(context.Background(), assignments)
	require.NoError(t, err)

	resolved, warnings, err := resolver.ResolveConflicts(context.Background(), assignments, conflicts, pools)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, resolved, 2)

	kept := resolved[0]
	cover := resolved[1]

	// emp-1 keeps Monday through Thursday; the split gets a fresh identity.
	assert.Equal(t, "emp-1", kept.EmployeeID)
	assert.NotEqual(t, "a1", kept.ID)
	assert.Equal(t, 36.0, kept.DurationHours)
	assert.Len(t, kept.Windows, 4)
	assert.Contains(t, kept.Reason, "split after conflict resolution")
	for _, w := range kept.Windows {
		assert.NotEqual(t, time.Friday, w.Start.Weekday())
	}

	// emp-2 takes the Friday.
	assert.Equal(t, "emp-2", cover.EmployeeID)
	assert.Equal(t, 9.0, cover.DurationHours)
	require.Len(t, cover.Windows, 1)
	assert.Equal(t, "2025-01-17", cover.Windows[0].Label)
	assert.Contains(t, cover.Reason, "conflict reassignment")
}

func TestResolveConflicts_MutualExclusivityKeepsHigherPriority(t *testing.T) {
	store := newFakeStore()
	strategies, calc := newTestStrategies(t, store)
	resolver := NewResolver(strategies, store, zap.NewNop())

	oncallWeek := calc.OnCallWeekWindows(time.Date(2025, 1, 16, 0, 0, 0, 0, calc.Location()))
	incidentsWeek := calc.BusinessWeekWindows(time.Date(2025, 1, 15, 0, 0, 0, 0, calc.Location()))
	assignments := []Assignment{
		makeAssignment("a-oncall", "emp-1", model.FamilyOnCall, oncallWeek),
		makeAssignment("a-incidents", "emp-1", model.FamilyIncidents, incidentsWeek),
	}
	pools := map[model.ShiftFamily][]model.Employee{
		model.FamilyIncidents: {incidentsEmployee("emp-1"), incidentsEmployee("emp-2")},
		model.FamilyOnCall:    {oncallEmployee("emp-1"), oncallEmployee("emp-2")},
	}

	conflicts, err := resolver.DetectConflicts(context.Background(), assignments)
	require.NoError(t, err)

	resolved, warnings, err := resolver.ResolveConflicts(context.Background(), assignments, conflicts, pools)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, resolved, 5)

	// The on-call week is untouched.
	assert.Equal(t, "a-oncall", resolved[0].ID)
	assert.Equal(t, "emp-1", resolved[0].EmployeeID)

	// emp-1 keeps only Monday and Tuesday of the incidents week; emp-2 takes
	// the three overlapping days.
	split := resolved[1]
	assert.Equal(t, "emp-1", split.EmployeeID)
	assert.Equal(t, model.FamilyIncidents, split.Family)
	assert.Len(t, split.Windows, 2)

	for _, cover := range resolved[2:] {
		assert.Equal(t, "emp-2", cover.EmployeeID)
		assert.Equal(t, model.FamilyIncidents, cover.Family)
		assert.Len(t, cover.Windows, 1)
	}

	// emp-1 no longer holds incidents work on the on-call days.
	for _, a := range resolved {
		if a.EmployeeID != "emp-1" || a.Family != model.FamilyIncidents {
			continue
		}
		for _, d := range []string{"2025-01-15", "2025-01-16", "2025-01-17"} {
			date, _ := time.ParseInLocation("2006-01-02", d, calc.Location())
			assert.False(t, a.CoversDate(date), "emp-1 still holds incidents on %s", d)
		}
	}
}

func TestResolveConflicts_SubstituteMustBeClean(t *testing.T) {
	store := newFakeStore()
	store.patterns["emp-1"] = []model.RecurringPattern{fridayAbsence("emp-1")}
	// emp-2 has the same Friday pattern; picking them would recreate the
	// conflict, so the resolver must skip to emp-3.
	store.patterns["emp-2"] = []model.RecurringPattern{fridayAbsence("emp-2")}
	strategies, calc := newTestStrategies(t, store)
	resolver := NewResolver(strategies, store, zap.NewNop())

	week := calc.BusinessWeekWindows(time.Date(2025, 1, 15, 0, 0, 0, 0, calc.Location()))
	assignments := []Assignment{makeAssignment("a1", "emp-1", model.FamilyIncidents, week)}
	pools := map[model.ShiftFamily][]model.Employee{
		model.FamilyIncidents: {incidentsEmployee("emp-1"), incidentsEmployee("emp-2"), incidentsEmployee("emp-3")},
	}

	conflicts, err := resolver.DetectConflicts(context.Background(), assignments)
	require.NoError(t, err)

	resolved, warnings, err := resolver.ResolveConflicts(context.Background(), assignments, conflicts, pools)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, resolved, 2)
	assert.Equal(t, "emp-3", resolved[1].EmployeeID)
}

func TestResolveConflicts_UnresolvableRetainsOriginal(t *testing.T) {
	store := newFakeStore()
	store.patterns["emp-1"] = []model.RecurringPattern{fridayAbsence("emp-1")}
	strategies, calc := newTestStrategies(t, store)
	resolver := NewResolver(strategies, store, zap.NewNop())

	week := calc.BusinessWeekWindows(time.Date(2025, 1, 15, 0, 0, 0, 0, calc.Location()))
	assignments := []Assignment{makeAssignment("a1", "emp-1", model.FamilyIncidents, week)}
	pools := map[model.ShiftFamily][]model.Employee{
		model.FamilyIncidents: {incidentsEmployee("emp-1")},
	}

	conflicts, err := resolver.DetectConflicts(context.Background(), assignments)
	require.NoError(t, err)

	resolved, warnings, err := resolver.ResolveConflicts(context.Background(), assignments, conflicts, pools)
	require.NoError(t, err)

	// A known conflict beats a coverage gap: emp-1 keeps the whole week and
	// the caller gets a warning.
	require.Len(t, resolved, 1)
	assert.Equal(t, "emp-1", resolved[0].EmployeeID)
	assert.Len(t, resolved[0].Windows, 5)
	assert.Equal(t, 45.0, resolved[0].DurationHours)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "retaining original assignee")
	assert.Contains(t, warnings[0], "2025-01-17")
}

func TestResolveConflicts_EarlierRepairsVisibleToLaterSearches(t *testing.T) {
	store := newFakeStore()
	// Two assignments in the same business week, each with a Friday conflict.
	// emp-3 is the only clean candidate in both pools; once they absorb the
	// incidents Friday, the standby search must not hand them the same day.
	store.patterns["emp-1"] = []model.RecurringPattern{fridayAbsence("emp-1")}
	store.patterns["emp-2"] = []model.RecurringPattern{fridayAbsence("emp-2")}
	strategies, calc := newTestStrategies(t, store)
	resolver := NewResolver(strategies, store, zap.NewNop())

	week := calc.BusinessWeekWindows(time.Date(2025, 1, 15, 0, 0, 0, 0, calc.Location()))
	assignments := []Assignment{
		makeAssignment("a1", "emp-1", model.FamilyIncidents, week),
		makeAssignment("a2", "emp-2", model.FamilyIncidentsStandby, week),
	}
	pools := map[model.ShiftFamily][]model.Employee{
		model.FamilyIncidents:        {incidentsEmployee("emp-1"), incidentsEmployee("emp-3")},
		model.FamilyIncidentsStandby: {standbyEmployee("emp-2"), standbyEmployee("emp-3")},
	}

	conflicts, err := resolver.DetectConflicts(context.Background(), assignments)
	require.NoError(t, err)
	require.Len(t, conflicts, 2)

	resolved, warnings, err := resolver.ResolveConflicts(context.Background(), assignments, conflicts, pools)
	require.NoError(t, err)

	// emp-3 takes the incidents Friday; the standby Friday then has no clean
	// substitute left and stays with emp-2 under a warning.
	friday := time.Date(2025, 1, 17, 0, 0, 0, 0, calc.Location())
	covering := make(map[string]int)
	for _, a := range resolved {
		if a.CoversDate(friday) {
			covering[a.EmployeeID]++
		}
	}
	assert.Equal(t, map[string]int{"emp-2": 1, "emp-3": 1}, covering)

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "retaining original assignee")
	assert.Contains(t, warnings[0], "emp-2")
}

func TestResolveConflicts_NoConflictsPassThrough(t *testing.T) {
	store := newFakeStore()
	strategies, calc := newTestStrategies(t, store)
	resolver := NewResolver(strategies, store, zap.NewNop())

	week := calc.BusinessWeekWindows(time.Date(2025, 1, 15, 0, 0, 0, 0, calc.Location()))
	assignments := []Assignment{makeAssignment("a1", "emp-1", model.FamilyIncidents, week)}

	resolved, warnings, err := resolver.ResolveConflicts(context.Background(), assignments, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, assignments, resolved)
}
