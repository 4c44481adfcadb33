package schedule

import (
	"time"

	"github.com/mvandermeer/rosterd/pkg/core/constraint"
	"github.com/mvandermeer/rosterd/pkg/core/fairness"
	"github.com/mvandermeer/rosterd/pkg/core/model"
	"github.com/mvandermeer/rosterd/pkg/core/timewindow"
)

// Strategy bundles the family-specific behavior the orchestrator is
// parameterized with. The state machine itself is single-sourced; only the
// period shape, the checker, the fairness tracking, and the conflict policy
// differ between families.
type Strategy struct {
	Family model.ShiftFamily

	// Periods builds the ordered rotation units intersecting [from, to).
	Periods func(from, to time.Time) []timewindow.Period

	// Windows expands one period into its daily coverage blocks.
	Windows func(p timewindow.Period) []timewindow.Window

	Checker  constraint.Checker
	Fairness *fairness.Calculator

	// ExclusiveWith lists the families an employee must not hold alongside
	// this one on the same calendar day.
	ExclusiveWith []model.ShiftFamily

	// DeferRecurring marks families whose recurring-pattern conflicts are
	// allowed through the checker and repaired by the resolver instead.
	DeferRecurring bool
}

// ExclusiveOf reports whether the strategy's family is mutually exclusive
// with the given family.
func (s *Strategy) ExclusiveOf(family model.ShiftFamily) bool {
	for _, f := range s.ExclusiveWith {
		if f == family {
			return true
		}
	}
	return false
}

// Store combines the collaborator interfaces the strategies need.
type Store interface {
	constraint.AvailabilityStore
	fairness.HistoryStore
}

// StrategyOptions tunes the registry built at startup.
type StrategyOptions struct {
	// FairnessLookbackDays bounds the historical fairness window. Zero means
	// fairness.DefaultLookbackDays.
	FairnessLookbackDays int

	// Exclusions lists family pairs that must not share a calendar day.
	// Empty means DefaultExclusions.
	Exclusions [][2]model.ShiftFamily
}

// DefaultExclusions returns the deployed mutual-exclusivity pairs: each
// incidents family excludes on-call, and the two incidents families exclude
// each other (they staff identical business-week windows, so holding both
// would double-book every day of the week).
func DefaultExclusions() [][2]model.ShiftFamily {
	return [][2]model.ShiftFamily{
		{model.FamilyIncidents, model.FamilyOnCall},
		{model.FamilyIncidentsStandby, model.FamilyOnCall},
		{model.FamilyIncidents, model.FamilyIncidentsStandby},
	}
}

// BuildStrategies constructs the family-to-strategy lookup table. It is
// built once at process startup; no reflection-based dispatch.
func BuildStrategies(calc *timewindow.Calculator, store Store, opts StrategyOptions) map[model.ShiftFamily]*Strategy {
	exclusions := opts.Exclusions
	if len(exclusions) == 0 {
		exclusions = DefaultExclusions()
	}

	exclusiveWith := func(family model.ShiftFamily) []model.ShiftFamily {
		var out []model.ShiftFamily
		for _, pair := range exclusions {
			if pair[0] == family {
				out = append(out, pair[1])
			}
			if pair[1] == family {
				out = append(out, pair[0])
			}
		}
		return out
	}

	strategies := make(map[model.ShiftFamily]*Strategy)

	for _, family := range []model.ShiftFamily{model.FamilyIncidents, model.FamilyIncidentsStandby} {
		strategies[family] = &Strategy{
			Family:         family,
			Periods:        calc.BusinessWeekPeriods,
			Windows:        func(p timewindow.Period) []timewindow.Window { return calc.BusinessWeekWindows(p.Start) },
			Checker:        constraint.NewIncidentsChecker(family, store),
			Fairness:       fairness.NewCalculator(family, store, opts.FairnessLookbackDays),
			ExclusiveWith:  exclusiveWith(family),
			DeferRecurring: true,
		}
	}

	strategies[model.FamilyOnCall] = &Strategy{
		Family:        model.FamilyOnCall,
		Periods:       calc.OnCallWeekPeriods,
		Windows:       func(p timewindow.Period) []timewindow.Window { return calc.OnCallWeekWindows(p.Start) },
		Checker:       constraint.NewOnCallChecker(store),
		Fairness:      fairness.NewCalculator(model.FamilyOnCall, store, opts.FairnessLookbackDays),
		ExclusiveWith: exclusiveWith(model.FamilyOnCall),
	}

	return strategies
}

// familyPriority orders families for conflict resolution: when two exclusive
// assignments collide, the lower-priority one yields and gets repaired.
// On-call coverage outranks the incidents families.
func familyPriority(family model.ShiftFamily) int {
	switch family {
	case model.FamilyOnCall:
		return 2
	case model.FamilyIncidents:
		return 1
	default:
		return 0
	}
}
