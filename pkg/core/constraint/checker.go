// Package constraint decides day-level availability per shift family. Every
// check composes the same ordered rules (eligibility, day-of-week, approved
// leave, existing assignment, recurring patterns) and short-circuits on the
// first failure, carrying a human-readable reason for observability.
package constraint

import (
	"context"
	"fmt"
	"time"

	"github.com/mvandermeer/rosterd/pkg/core/model"
)

// Result is a fresh per-(employee, date) availability decision. Never
// persisted.
type Result struct {
	Available bool
	Reason    string
}

func available() Result {
	return Result{Available: true, Reason: "available"}
}

func unavailable(format string, args ...any) Result {
	return Result{Available: false, Reason: fmt.Sprintf(format, args...)}
}

// AvailabilityStore is the read-only collaborator supplying leave records,
// recurring absence patterns, and committed assignments.
type AvailabilityStore interface {
	HasApprovedLeave(ctx context.Context, employeeID string, date time.Time) (bool, error)
	RecurringPatternsOn(ctx context.Context, employeeID string, date time.Time) ([]model.RecurringPattern, error)
	HasExistingAssignment(ctx context.Context, employeeID string, date time.Time) (bool, error)
}

// Checker is the per-family day-level availability check.
type Checker interface {
	Family() model.ShiftFamily
	// CheckAvailability decides whether the employee can take the family's
	// coverage block on the given calendar date. No side effects.
	CheckAvailability(ctx context.Context, employee model.Employee, date time.Time) (Result, error)
}

// baseChecks runs the rules shared by every family: eligibility, approved
// leave, and double-booking. The zero Result return means all shared checks
// passed.
func baseChecks(ctx context.Context, store AvailabilityStore, family model.ShiftFamily, employee model.Employee, date time.Time) (Result, bool, error) {
	if !employee.EligibleFor(family) {
		return unavailable("not eligible for %s shifts", family), true, nil
	}

	onLeave, err := store.HasApprovedLeave(ctx, employee.ID, date)
	if err != nil {
		return Result{}, true, fmt.Errorf("failed to check leave for %s: %w", employee.ID, err)
	}
	if onLeave {
		return unavailable("approved leave on %s", date.Format("2006-01-02")), true, nil
	}

	booked, err := store.HasExistingAssignment(ctx, employee.ID, date)
	if err != nil {
		return Result{}, true, fmt.Errorf("failed to check existing assignments for %s: %w", employee.ID, err)
	}
	if booked {
		return unavailable("already assigned on %s", date.Format("2006-01-02")), true, nil
	}

	return Result{}, false, nil
}

func isBusinessDay(date time.Time) bool {
	wd := date.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
