// Package schedule drives shift generation: it walks the rotation periods of
// a date range, selects employees under constraint and fairness rules, and
// repairs residual cross-family conflicts in a reassignment pass.
package schedule

import (
	"time"

	"github.com/mvandermeer/rosterd/pkg/core/model"
	"github.com/mvandermeer/rosterd/pkg/core/timewindow"
)

// Assignment is the sole externally persisted artifact of a generation run.
// Once appended to the output list it is never mutated; the resolver replaces
// assignments when it splits them.
type Assignment struct {
	ID            string
	EmployeeID    string
	Family        model.ShiftFamily
	Start         time.Time
	End           time.Time
	DurationHours float64
	AutoAssigned  bool
	Reason        string

	// Windows are the daily coverage blocks this assignment is responsible
	// for. A weekly assignment carries all of its period's windows; a
	// single-day coverage assignment carries exactly one.
	Windows []timewindow.Window
}

// CoversDate reports whether any of the assignment's windows falls on the
// given calendar date.
func (a Assignment) CoversDate(date time.Time) bool {
	d := dayKey(date)
	for _, w := range a.Windows {
		if dayKey(w.Date()) == d {
			return true
		}
	}
	return false
}

// Result is the structured outcome of one generation run. It is returned
// even on partial failure; only collaborator errors abort without one.
type Result struct {
	Assignments       []Assignment
	TotalShifts       int
	EmployeesAssigned int
	FairnessScores    map[string]float64
	Errors            []string
	Warnings          []string
}

// ConflictType classifies a detected conflict.
type ConflictType string

const (
	ConflictMutualExclusivity ConflictType = "mutual_exclusivity"
	ConflictRecurringPattern  ConflictType = "recurring_pattern"
)

// Conflict is an engine-internal detection result used transiently during
// the reassignment pass. It is not persisted by the core.
type Conflict struct {
	Type         ConflictType
	Severity     string
	Message      string
	EmployeeID   string
	Family       model.ShiftFamily
	AssignmentID string
	Dates        []time.Time
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
