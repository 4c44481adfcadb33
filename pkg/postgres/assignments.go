package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/mvandermeer/rosterd/pkg/core/model"
	"github.com/mvandermeer/rosterd/pkg/db"
)

// HistoricalHours aggregates committed assignment duration per employee for
// one shift family over [from, to).
func (d *DB) HistoricalHours(ctx context.Context, employeeIDs []string, family model.ShiftFamily, from, to time.Time) (map[string]float64, error) {
	hours := make(map[string]float64, len(employeeIDs))
	if len(employeeIDs) == 0 {
		return hours, nil
	}

	rows, err := d.pool.Query(ctx, `
		SELECT employee_id, COALESCE(SUM(duration_hours), 0)
		FROM assignment
		WHERE employee_id = ANY($1)
		  AND shift_type = $2
		  AND start_at >= $3
		  AND start_at < $4
		GROUP BY employee_id`, employeeIDs, string(family), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query historical hours: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var total float64
		if err := rows.Scan(&id, &total); err != nil {
			return nil, fmt.Errorf("failed to scan historical hours: %w", err)
		}
		hours[id] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating historical hours: %w", err)
	}

	return hours, nil
}

// CountAssignments reports how many committed assignments exist for a family.
func (d *DB) CountAssignments(ctx context.Context, family model.ShiftFamily) (int, error) {
	var count int
	err := d.pool.QueryRow(ctx, `SELECT COUNT(*) FROM assignment WHERE shift_type = $1`, string(family)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count assignments: %w", err)
	}
	return count, nil
}

// InsertAssignments writes a generation batch in a single transaction.
func (d *DB) InsertAssignments(ctx context.Context, records []db.AssignmentRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range records {
		_, err := tx.Exec(ctx, `
			INSERT INTO assignment (id, employee_id, shift_type, start_at, end_at, duration_hours, auto_assigned, reason)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, r.ID, r.EmployeeID, r.ShiftType, r.Start, r.End, r.DurationHours, r.AutoAssigned, r.Reason)
		if err != nil {
			return fmt.Errorf("failed to insert assignment %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit assignments: %w", err)
	}

	return nil
}
