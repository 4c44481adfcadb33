package constraint

import (
	"context"
	"time"

	"github.com/mvandermeer/rosterd/pkg/core/model"
)

// IncidentsChecker evaluates day-level availability for the incidents and
// incidents-standby families. These families only cover business days.
//
// Recurring absence patterns are deliberately NOT blocked here: the incidents
// families schedule optimistically and defer recurring-pattern conflicts to
// the reassignment pass, which can reassign just the affected day instead of
// rejecting a whole week up front.
type IncidentsChecker struct {
	family model.ShiftFamily
	store  AvailabilityStore
}

// NewIncidentsChecker creates a checker for an incidents-style family.
func NewIncidentsChecker(family model.ShiftFamily, store AvailabilityStore) *IncidentsChecker {
	return &IncidentsChecker{family: family, store: store}
}

func (c *IncidentsChecker) Family() model.ShiftFamily {
	return c.family
}

func (c *IncidentsChecker) CheckAvailability(ctx context.Context, employee model.Employee, date time.Time) (Result, error) {
	if !isBusinessDay(date) {
		return unavailable("%s shifts only run on business days", c.family), nil
	}

	if result, done, err := baseChecks(ctx, c.store, c.family, employee, date); done || err != nil {
		return result, err
	}

	// Recurring patterns pass through; the resolver repairs them per day.
	return available(), nil
}
