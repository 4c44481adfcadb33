// Package db defines the collaborator interfaces the engine consumes. The
// core never talks to storage directly; a persistence layer (pkg/postgres in
// this repository) implements these and is handed in by the caller.
package db

import (
	"context"
	"time"

	"github.com/mvandermeer/rosterd/pkg/core/model"
)

// AssignmentRecord is the persisted form of a generated assignment.
type AssignmentRecord struct {
	ID            string
	EmployeeID    string
	ShiftType     string
	Start         time.Time
	End           time.Time
	DurationHours float64
	AutoAssigned  bool
	Reason        string
}

// EmployeeStore supplies the engine's read-only employee projection.
type EmployeeStore interface {
	// ListEligibleEmployees returns active employees carrying the family's
	// eligibility toggle, optionally scoped to one team.
	ListEligibleEmployees(ctx context.Context, family model.ShiftFamily, teamID string) ([]model.Employee, error)
}

// AvailabilityStore supplies day-level constraint inputs.
type AvailabilityStore interface {
	HasApprovedLeave(ctx context.Context, employeeID string, date time.Time) (bool, error)
	RecurringPatternsOn(ctx context.Context, employeeID string, date time.Time) ([]model.RecurringPattern, error)
	HasExistingAssignment(ctx context.Context, employeeID string, date time.Time) (bool, error)
}

// HistoryStore supplies committed workload for fairness accounting.
type HistoryStore interface {
	HistoricalHours(ctx context.Context, employeeIDs []string, family model.ShiftFamily, from, to time.Time) (map[string]float64, error)
	// CountAssignments reports how many committed assignments exist for a
	// family; used to seed the round-robin tie-break counter when it is
	// configured to persist across runs.
	CountAssignments(ctx context.Context, family model.ShiftFamily) (int, error)
}

// AssignmentWriter persists a generation run's output as one batch.
type AssignmentWriter interface {
	// InsertAssignments writes the batch in a single transaction.
	InsertAssignments(ctx context.Context, records []AssignmentRecord) error
}

// Store is the full collaborator surface a generation run needs.
type Store interface {
	EmployeeStore
	AvailabilityStore
	HistoryStore
	AssignmentWriter
}
