package constraint

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/mvandermeer/rosterd/pkg/core/model"
)

// PatternOccursOn reports whether a recurring pattern has an occurrence on
// the given calendar date. The pattern's RRULE is expanded from its DTSTART
// in the date's location.
func PatternOccursOn(pattern model.RecurringPattern, date time.Time) (bool, error) {
	rule, err := rrule.StrToRRule(pattern.RRule)
	if err != nil {
		return false, fmt.Errorf("invalid rrule on pattern %s: %w", pattern.ID, err)
	}

	dtstart := pattern.DTStart
	if dtstart.IsZero() {
		dtstart = date.AddDate(-1, 0, 0)
	}
	rule.DTStart(time.Date(dtstart.Year(), dtstart.Month(), dtstart.Day(), 0, 0, 0, 0, time.UTC))

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)
	occurrences := rule.Between(dayStart, dayEnd.Add(-time.Second), true)
	return len(occurrences) > 0, nil
}

// patternsOccurringOn filters a pattern list down to the ones that actually
// occur on the date.
func patternsOccurringOn(patterns []model.RecurringPattern, date time.Time) ([]model.RecurringPattern, error) {
	var active []model.RecurringPattern
	for _, p := range patterns {
		occurs, err := PatternOccursOn(p, date)
		if err != nil {
			return nil, err
		}
		if occurs {
			active = append(active, p)
		}
	}
	return active, nil
}
