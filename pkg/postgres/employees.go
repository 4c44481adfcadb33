package postgres

import (
	"context"
	"fmt"

	"github.com/mvandermeer/rosterd/pkg/core/model"
)

// eligibilityColumn maps a shift family to its employee toggle column.
func eligibilityColumn(family model.ShiftFamily) (string, error) {
	switch family {
	case model.FamilyIncidents:
		return "incidents_eligible", nil
	case model.FamilyIncidentsStandby:
		return "standby_eligible", nil
	case model.FamilyOnCall:
		return "oncall_eligible", nil
	}
	return "", fmt.Errorf("unknown shift family %q", family)
}

// ListEligibleEmployees returns active employees carrying the family's
// eligibility toggle, optionally scoped to one team. Results are ordered by
// ID for deterministic downstream processing.
func (d *DB) ListEligibleEmployees(ctx context.Context, family model.ShiftFamily, teamID string) ([]model.Employee, error) {
	column, err := eligibilityColumn(family)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, first_name, last_name, email, team_id, active,
		       incidents_eligible, standby_eligible, oncall_eligible
		FROM employee
		WHERE active AND %s`, column)
	args := []any{}
	if teamID != "" {
		query += ` AND team_id = $1`
		args = append(args, teamID)
	}
	query += ` ORDER BY id`

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var employees []model.Employee
	for rows.Next() {
		var e model.Employee
		if err := rows.Scan(&e.ID, &e.FirstName, &e.LastName, &e.Email, &e.TeamID, &e.Active,
			&e.IncidentsEligible, &e.StandbyEligible, &e.OnCallEligible); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating employees: %w", err)
	}

	return employees, nil
}
