package fairness

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvandermeer/rosterd/pkg/core/model"
)

type fakeHistoryStore struct {
	hours map[string]float64
	err   error

	gotFrom time.Time
	gotTo   time.Time
}

func (f *fakeHistoryStore) HistoricalHours(ctx context.Context, employeeIDs []string, family model.ShiftFamily, from, to time.Time) (map[string]float64, error) {
	f.gotFrom, f.gotTo = from, to
	if f.err != nil {
		return nil, f.err
	}
	return f.hours, nil
}

func employee(id string) model.Employee {
	return model.Employee{ID: id, Active: true, OnCallEligible: true}
}

func TestStateAdd_MaintainsTotalInvariant(t *testing.T) {
	state := make(State)
	state.Add("emp-1", model.FamilyOnCall, 123)
	state.Add("emp-1", model.FamilyOnCall, 15)
	state.Add("emp-1", model.FamilyIncidents, 45)

	load := state["emp-1"]
	sum := 0.0
	for _, h := range load.Hours {
		sum += h
	}
	assert.Equal(t, sum, load.TotalHours)
	assert.Equal(t, 183.0, load.TotalHours)
}

func TestStateTotal_UnknownEmployeeIsZero(t *testing.T) {
	state := make(State)
	assert.Equal(t, 0.0, state.Total("nobody"))
}

func TestHistoricalState_LookbackWindow(t *testing.T) {
	store := &fakeHistoryStore{hours: map[string]float64{"emp-1": 100}}
	calc := NewCalculator(model.FamilyOnCall, store, 180)

	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	state, err := calc.HistoricalState(context.Background(), []model.Employee{employee("emp-1"), employee("emp-2")}, asOf)
	require.NoError(t, err)

	// The window ends at generation start and reaches back 180 days.
	assert.Equal(t, asOf, store.gotTo)
	assert.Equal(t, asOf.AddDate(0, 0, -180), store.gotFrom)

	assert.Equal(t, 100.0, state.Total("emp-1"))
	// Zero-history employees still get an entry.
	assert.Equal(t, 0.0, state.Total("emp-2"))
}

func TestHistoricalState_StoreErrorPropagates(t *testing.T) {
	store := &fakeHistoryStore{err: errors.New("connection refused")}
	calc := NewCalculator(model.FamilyOnCall, store, 0)

	_, err := calc.HistoricalState(context.Background(), []model.Employee{employee("emp-1")}, time.Now())
	assert.Error(t, err)
}

func TestProvisionalState_IgnoresOtherFamilies(t *testing.T) {
	calc := NewCalculator(model.FamilyOnCall, &fakeHistoryStore{}, 0)

	state := calc.ProvisionalState([]PendingAssignment{
		{EmployeeID: "emp-1", Family: model.FamilyOnCall, Hours: 123},
		{EmployeeID: "emp-1", Family: model.FamilyIncidents, Hours: 45},
	})

	assert.Equal(t, 123.0, state.Total("emp-1"))
}

func TestMerge_AddsMatchingAndCarriesRest(t *testing.T) {
	a := make(State)
	a.Add("emp-1", model.FamilyOnCall, 100)
	a.Add("emp-2", model.FamilyOnCall, 50)

	b := make(State)
	b.Add("emp-1", model.FamilyOnCall, 23)
	b.Add("emp-3", model.FamilyOnCall, 10)

	merged := Merge(a, b)

	assert.Equal(t, 123.0, merged.Total("emp-1"))
	assert.Equal(t, 50.0, merged.Total("emp-2"))
	assert.Equal(t, 10.0, merged.Total("emp-3"))

	// Inputs are untouched.
	assert.Equal(t, 100.0, a.Total("emp-1"))
	assert.Equal(t, 10.0, b.Total("emp-3"))
}

func TestScores_NormalizedAgainstAverage(t *testing.T) {
	calc := NewCalculator(model.FamilyOnCall, &fakeHistoryStore{}, 0)
	pool := []model.Employee{employee("emp-1"), employee("emp-2")}

	state := make(State)
	state.Add("emp-1", model.FamilyOnCall, 90)
	state.Add("emp-2", model.FamilyOnCall, 30)

	scores := calc.Scores(state, pool)
	assert.InDelta(t, 1.5, scores["emp-1"], 1e-9)
	assert.InDelta(t, 0.5, scores["emp-2"], 1e-9)
}

func TestScores_ZeroAverageScoresAllZero(t *testing.T) {
	calc := NewCalculator(model.FamilyOnCall, &fakeHistoryStore{}, 0)
	pool := []model.Employee{employee("emp-1"), employee("emp-2")}

	scores := calc.Scores(make(State), pool)
	assert.Equal(t, 0.0, scores["emp-1"])
	assert.Equal(t, 0.0, scores["emp-2"])
}

func TestLeastLoaded_PicksLowestScore(t *testing.T) {
	calc := NewCalculator(model.FamilyOnCall, &fakeHistoryStore{}, 0)
	pool := []model.Employee{employee("emp-1"), employee("emp-2"), employee("emp-3")}

	state := make(State)
	state.Add("emp-1", model.FamilyOnCall, 200)
	state.Add("emp-2", model.FamilyOnCall, 50)
	state.Add("emp-3", model.FamilyOnCall, 120)

	chosen := calc.LeastLoaded(pool, state)
	require.NotNil(t, chosen)
	assert.Equal(t, "emp-2", chosen.ID)
}

func TestLeastLoaded_TieBreaksOnLowestID(t *testing.T) {
	calc := NewCalculator(model.FamilyOnCall, &fakeHistoryStore{}, 0)
	// Input order must not matter.
	pool := []model.Employee{employee("emp-9"), employee("emp-2"), employee("emp-5")}

	chosen := calc.LeastLoaded(pool, make(State))
	require.NotNil(t, chosen)
	assert.Equal(t, "emp-2", chosen.ID)
}

func TestLeastLoaded_EmptyPool(t *testing.T) {
	calc := NewCalculator(model.FamilyOnCall, &fakeHistoryStore{}, 0)
	assert.Nil(t, calc.LeastLoaded(nil, make(State)))
}

func TestRank_ColdStartEmployeeFirst(t *testing.T) {
	calc := NewCalculator(model.FamilyOnCall, &fakeHistoryStore{}, 0)
	pool := []model.Employee{employee("emp-1"), employee("emp-2"), employee("emp-3")}

	state := make(State)
	state.Add("emp-1", model.FamilyOnCall, 80)
	state.Add("emp-2", model.FamilyOnCall, 40)
	// emp-3 has no history at all.

	ranked := calc.Rank(pool, state)
	require.Len(t, ranked, 3)
	assert.Equal(t, "emp-3", ranked[0].ID)
	assert.Equal(t, "emp-2", ranked[1].ID)
	assert.Equal(t, "emp-1", ranked[2].ID)
}
