package constraint

import (
	"context"
	"time"

	"github.com/mvandermeer/rosterd/pkg/core/model"
)

// OnCallChecker evaluates day-level availability for the on-call family,
// which covers all seven days.
//
// Unlike the incidents families, full-day recurring patterns block an
// assignment outright. Morning and afternoon patterns are permitted on
// weekdays because the on-call coverage block only starts at 17:00; on
// weekend days the 24h block overlaps any day part, so all patterns block.
type OnCallChecker struct {
	store AvailabilityStore
}

// NewOnCallChecker creates the on-call availability checker.
func NewOnCallChecker(store AvailabilityStore) *OnCallChecker {
	return &OnCallChecker{store: store}
}

func (c *OnCallChecker) Family() model.ShiftFamily {
	return model.FamilyOnCall
}

func (c *OnCallChecker) CheckAvailability(ctx context.Context, employee model.Employee, date time.Time) (Result, error) {
	if result, done, err := baseChecks(ctx, c.store, model.FamilyOnCall, employee, date); done || err != nil {
		return result, err
	}

	patterns, err := c.store.RecurringPatternsOn(ctx, employee.ID, date)
	if err != nil {
		return Result{}, err
	}
	active, err := patternsOccurringOn(patterns, date)
	if err != nil {
		return Result{}, err
	}

	weekend := !isBusinessDay(date)
	for _, p := range active {
		if p.Part == model.DayPartFull {
			return unavailable("recurring full-day absence on %s", date.Format("2006-01-02")), nil
		}
		if weekend {
			// 24h weekend coverage overlaps every day part.
			return unavailable("recurring %s absence overlaps weekend coverage on %s", p.Part, date.Format("2006-01-02")), nil
		}
	}

	return available(), nil
}
