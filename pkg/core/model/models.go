package model

import "time"

// ShiftFamily identifies one coverage type with its own templates,
// fairness tracking, and constraint rules.
type ShiftFamily string

const (
	FamilyIncidents        ShiftFamily = "incidents"
	FamilyIncidentsStandby ShiftFamily = "incidents_standby"
	FamilyOnCall           ShiftFamily = "oncall"
)

func (f ShiftFamily) IsValid() bool {
	return f == FamilyIncidents || f == FamilyIncidentsStandby || f == FamilyOnCall
}

// Families lists all known shift families in a fixed order.
func Families() []ShiftFamily {
	return []ShiftFamily{FamilyIncidents, FamilyIncidentsStandby, FamilyOnCall}
}

// Employee is the read-only projection of the employee directory used by the
// engine. The engine never mutates it.
type Employee struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	TeamID    string
	Active    bool

	// Per-family eligibility toggles. Absence of the toggle means the
	// employee can never be scheduled for that family.
	IncidentsEligible bool
	StandbyEligible   bool
	OnCallEligible    bool
}

// EligibleFor reports whether the employee carries the eligibility toggle
// for the given shift family. Inactive employees are never eligible.
func (e Employee) EligibleFor(family ShiftFamily) bool {
	if !e.Active {
		return false
	}
	switch family {
	case FamilyIncidents:
		return e.IncidentsEligible
	case FamilyIncidentsStandby:
		return e.StandbyEligible
	case FamilyOnCall:
		return e.OnCallEligible
	}
	return false
}

// LeaveStatus is the approval state of a leave record.
type LeaveStatus string

const (
	LeavePending  LeaveStatus = "pending"
	LeaveApproved LeaveStatus = "approved"
	LeaveRejected LeaveStatus = "rejected"
)

// LeaveRecord is a single block of requested time off. Start and End are
// inclusive calendar dates in the deployment timezone.
type LeaveRecord struct {
	ID         string
	EmployeeID string
	Start      time.Time
	End        time.Time
	Status     LeaveStatus
}

// Covers reports whether the leave record spans the given calendar date.
func (l LeaveRecord) Covers(date time.Time) bool {
	d := truncateToDay(date)
	return !d.Before(truncateToDay(l.Start)) && !d.After(truncateToDay(l.End))
}

// DayPart describes which part of the day a recurring pattern blocks.
type DayPart string

const (
	DayPartFull      DayPart = "full"
	DayPartMorning   DayPart = "morning"
	DayPartAfternoon DayPart = "afternoon"
)

// RecurringPattern is a repeating absence (e.g. "every Friday afternoon")
// expressed as an RFC 5545 RRULE anchored at DTStart.
type RecurringPattern struct {
	ID          string
	EmployeeID  string
	RRule       string
	DTStart     time.Time
	Part        DayPart
	Description string
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
