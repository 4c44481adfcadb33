package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/mvandermeer/rosterd/pkg/core/model"
)

// HasApprovedLeave reports whether the employee has an approved leave record
// spanning the given calendar date.
func (d *DB) HasApprovedLeave(ctx context.Context, employeeID string, date time.Time) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM leave_record
			WHERE employee_id = $1
			  AND status = 'approved'
			  AND start_date <= $2::date
			  AND end_date >= $2::date
		)`, employeeID, date).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query leave records: %w", err)
	}
	return exists, nil
}

// RecurringPatternsOn returns the employee's recurring absence patterns. The
// date parameter narrows the query to patterns anchored at or before the
// date; RRULE expansion itself happens in the constraint layer.
func (d *DB) RecurringPatternsOn(ctx context.Context, employeeID string, date time.Time) ([]model.RecurringPattern, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, employee_id, rrule, dtstart, day_part, description
		FROM recurring_pattern
		WHERE employee_id = $1 AND dtstart <= $2::date
		ORDER BY id`, employeeID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query recurring patterns: %w", err)
	}
	defer rows.Close()

	var patterns []model.RecurringPattern
	for rows.Next() {
		var p model.RecurringPattern
		var part string
		if err := rows.Scan(&p.ID, &p.EmployeeID, &p.RRule, &p.DTStart, &part, &p.Description); err != nil {
			return nil, fmt.Errorf("failed to scan recurring pattern: %w", err)
		}
		p.Part = model.DayPart(part)
		patterns = append(patterns, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recurring patterns: %w", err)
	}

	return patterns, nil
}

// HasExistingAssignment reports whether the employee already holds a
// committed assignment whose window touches the given calendar date.
func (d *DB) HasExistingAssignment(ctx context.Context, employeeID string, date time.Time) (bool, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var exists bool
	err := d.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM assignment
			WHERE employee_id = $1
			  AND start_at < $3
			  AND end_at > $2
		)`, employeeID, dayStart, dayEnd).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query assignments: %w", err)
	}
	return exists, nil
}
