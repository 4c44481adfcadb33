// Package timewindow converts calendar dates into timezone-aware shift
// windows. All functions are pure and safe for concurrent use; naive inputs
// are interpreted in the calculator's deployment zone.
package timewindow

import (
	"fmt"
	"time"
)

const (
	businessDayStartHour = 8
	businessDayEndHour   = 17
	onCallEveningHour    = 17
	onCallMorningHour    = 8
)

// Window is one day's coverage block. Duration varies by weekday: on-call
// weekday windows run 17:00 to next-day 08:00 (15h), weekend windows run a
// full 24h from 08:00.
type Window struct {
	Start time.Time
	End   time.Time
	Label string
}

// Hours returns the window duration in hours.
func (w Window) Hours() float64 {
	return w.End.Sub(w.Start).Hours()
}

// Date returns the calendar date the window belongs to (its start day).
func (w Window) Date() time.Time {
	return time.Date(w.Start.Year(), w.Start.Month(), w.Start.Day(), 0, 0, 0, 0, w.Start.Location())
}

// Period is one rotation unit to be staffed: a business week for the
// incidents families, a Wednesday-to-Wednesday week for on-call.
type Period struct {
	Start time.Time
	End   time.Time
	Label string
}

// Calculator performs all window arithmetic in one fixed IANA zone.
type Calculator struct {
	loc *time.Location
}

// NewCalculator creates a calculator for the given IANA zone name.
func NewCalculator(zone string) (*Calculator, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", zone, err)
	}
	return &Calculator{loc: loc}, nil
}

// Location returns the calculator's deployment zone.
func (c *Calculator) Location() *time.Location {
	return c.loc
}

// dayIn re-anchors a timestamp to midnight of its calendar day in the
// deployment zone. DST transitions are absorbed by constructing the result
// with time.Date rather than adding fixed durations.
func (c *Calculator) dayIn(t time.Time) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
}

// at returns the given clock time on the calendar day of base, shifted by
// dayOffset days.
func (c *Calculator) at(base time.Time, dayOffset, hour int) time.Time {
	base = base.In(c.loc)
	return time.Date(base.Year(), base.Month(), base.Day()+dayOffset, hour, 0, 0, 0, c.loc)
}

// BusinessDayWindow returns the 08:00-17:00 working window for a date.
func (c *Calculator) BusinessDayWindow(date time.Time) Window {
	day := c.dayIn(date)
	return Window{
		Start: c.at(day, 0, businessDayStartHour),
		End:   c.at(day, 0, businessDayEndHour),
		Label: day.Format("2006-01-02"),
	}
}

// OnCallDailyWindow returns the out-of-hours coverage block for a date.
// Monday-Friday: 17:00 to next-day 08:00. Saturday and Sunday: 08:00 to
// next-day 08:00.
func (c *Calculator) OnCallDailyWindow(date time.Time) Window {
	day := c.dayIn(date)
	w := Window{Label: day.Format("2006-01-02")}
	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		w.Start = c.at(day, 0, onCallMorningHour)
		w.End = c.at(day, 1, onCallMorningHour)
	default:
		w.Start = c.at(day, 0, onCallEveningHour)
		w.End = c.at(day, 1, onCallMorningHour)
	}
	return w
}

// OnCallWeekBounds aligns a reference timestamp to its on-call week: the most
// recent Wednesday 17:00 at or before the reference, ending the following
// Wednesday 08:00. A Wednesday before 17:00 anchors to the previous week.
func (c *Calculator) OnCallWeekBounds(reference time.Time) (time.Time, time.Time) {
	ref := reference.In(c.loc)
	daysSinceWednesday := (int(ref.Weekday()) - int(time.Wednesday) + 7) % 7
	start := c.at(ref, -daysSinceWednesday, onCallEveningHour)
	if start.After(ref) {
		start = c.at(start, -7, onCallEveningHour)
	}
	end := c.at(start, 7, onCallMorningHour)
	return start, end
}

// OnCallWeekWindows returns the 7 consecutive daily windows of the on-call
// week containing the reference. The first window is the anchoring
// Wednesday's evening block.
func (c *Calculator) OnCallWeekWindows(reference time.Time) []Window {
	start, _ := c.OnCallWeekBounds(reference)
	windows := make([]Window, 0, 7)
	for i := 0; i < 7; i++ {
		windows = append(windows, c.OnCallDailyWindow(c.at(start, i, 12)))
	}
	return windows
}

// OnCallWeekPeriods returns the ordered list of on-call week periods whose
// span intersects [from, to).
func (c *Calculator) OnCallWeekPeriods(from, to time.Time) []Period {
	var periods []Period
	start, end := c.OnCallWeekBounds(from.In(c.loc))
	// The week containing "from" may start before it; begin with the first
	// week that has not fully elapsed.
	for end.Before(from) || end.Equal(from) {
		start = c.at(start, 7, onCallEveningHour)
		end = c.at(start, 7, onCallMorningHour)
	}
	for start.Before(to) {
		periods = append(periods, Period{
			Start: start,
			End:   end,
			Label: onCallWeekLabel(start),
		})
		start = c.at(start, 7, onCallEveningHour)
		end = c.at(start, 7, onCallMorningHour)
	}
	return periods
}

// BusinessWeekWindows returns the five business-day windows (Monday through
// Friday) of the business week containing the reference.
func (c *Calculator) BusinessWeekWindows(reference time.Time) []Window {
	start, _ := c.BusinessWeekBounds(reference)
	windows := make([]Window, 0, 5)
	for i := 0; i < 5; i++ {
		windows = append(windows, c.BusinessDayWindow(c.at(start, i, 12)))
	}
	return windows
}

// BusinessWeekBounds aligns a reference to its business week: Monday 08:00
// through Friday 17:00.
func (c *Calculator) BusinessWeekBounds(reference time.Time) (time.Time, time.Time) {
	ref := c.dayIn(reference)
	daysSinceMonday := (int(ref.Weekday()) - int(time.Monday) + 7) % 7
	start := c.at(ref, -daysSinceMonday, businessDayStartHour)
	end := c.at(start, 4, businessDayEndHour)
	return start, end
}

// BusinessWeekPeriods returns the ordered list of business week periods whose
// span intersects [from, to).
func (c *Calculator) BusinessWeekPeriods(from, to time.Time) []Period {
	var periods []Period
	start, end := c.BusinessWeekBounds(from.In(c.loc))
	for end.Before(from) || end.Equal(from) {
		start = c.at(start, 7, businessDayStartHour)
		end = c.at(start, 4, businessDayEndHour)
	}
	for start.Before(to) {
		periods = append(periods, Period{
			Start: start,
			End:   end,
			Label: businessWeekLabel(start),
		})
		start = c.at(start, 7, businessDayStartHour)
		end = c.at(start, 4, businessDayEndHour)
	}
	return periods
}

func onCallWeekLabel(start time.Time) string {
	year, week := start.ISOWeek()
	return fmt.Sprintf("oncall-%d-W%02d", year, week)
}

func businessWeekLabel(start time.Time) string {
	year, week := start.ISOWeek()
	return fmt.Sprintf("week-%d-W%02d", year, week)
}
