package rules

import (
	"fmt"
	"time"

	"github.com/cuemby/cibcore/pkg/types"
)

type specField struct {
	name string
	r    types.Range
	min  int
	max  int
}

func specFields(s *types.DateSpec) []specField {
	return []specField{
		{"seconds", s.Seconds, 0, 59},
		{"minutes", s.Minutes, 0, 59},
		{"hours", s.Hours, 0, 23},
		{"monthdays", s.MonthDays, 1, 31},
		{"weekdays", s.WeekDays, 1, 7},
		{"yeardays", s.YearDays, 1, 366},
		{"months", s.Months, 1, 12},
		{"weeks", s.Weeks, 1, 53},
		{"years", s.Years, 0, 9999},
	}
}

func checkSpec(s *types.DateSpec) error {
	for _, f := range specFields(s) {
		if !f.r.Set {
			continue
		}
		if f.r.Low > f.r.High {
			return fmt.Errorf("date_spec %s: range %d-%d is inverted", f.name, f.r.Low, f.r.High)
		}
		if f.r.Low < f.min || f.r.High > f.max {
			return fmt.Errorf("date_spec %s: range %d-%d outside %d-%d", f.name, f.r.Low, f.r.High, f.min, f.max)
		}
	}
	return nil
}

func specMatches(s *types.DateSpec, t time.Time) bool {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	_, week := t.ISOWeek()

	return s.Seconds.Contains(t.Second()) &&
		s.Minutes.Contains(t.Minute()) &&
		s.Hours.Contains(t.Hour()) &&
		s.MonthDays.Contains(t.Day()) &&
		s.WeekDays.Contains(weekday) &&
		s.YearDays.Contains(t.YearDay()) &&
		s.Months.Contains(int(t.Month())) &&
		s.Weeks.Contains(week) &&
		s.Years.Contains(t.Year())
}

// specStep returns the function advancing a time to the next boundary of the
// finest field the spec constrains. The match can only flip on such a
// boundary.
func specStep(s *types.DateSpec) func(time.Time) time.Time {
	switch {
	case s.Seconds.Set:
		return func(t time.Time) time.Time {
			return t.Truncate(time.Second).Add(time.Second)
		}
	case s.Minutes.Set:
		return func(t time.Time) time.Time {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute()+1, 0, 0, t.Location())
		}
	case s.Hours.Set:
		return func(t time.Time) time.Time {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, t.Location())
		}
	case s.MonthDays.Set, s.WeekDays.Set, s.YearDays.Set, s.Weeks.Set:
		return func(t time.Time) time.Time {
			return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
		}
	case s.Months.Set:
		return func(t time.Time) time.Time {
			return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
		}
	case s.Years.Set:
		return func(t time.Time) time.Time {
			return time.Date(t.Year()+1, 1, 1, 0, 0, 0, 0, t.Location())
		}
	}
	return nil
}

// specChange finds the first boundary after now at which the spec's match
// differs from current. If the scan runs out of steps the last boundary
// examined is returned so the caller re-evaluates no later than that.
func (e *Evaluator) specChange(s *types.DateSpec, now time.Time, current bool) (time.Time, bool) {
	step := specStep(s)
	if step == nil {
		return time.Time{}, false
	}
	if s.Years.Set && !current && now.Year() > s.Years.High {
		// Already past the last matching year
		return time.Time{}, false
	}

	steps := e.specScanSteps
	if steps <= 0 {
		steps = defaultSpecScanSteps
	}

	t := now
	for i := 0; i < steps; i++ {
		t = step(t)
		if specMatches(s, t) != current {
			return t, true
		}
		if s.Years.Set && t.Year() > s.Years.High && !current {
			return time.Time{}, false
		}
	}
	return t, true
}
