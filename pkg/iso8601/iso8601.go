package iso8601

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var dateTimeLayouts = []string{
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDateTime parses the date-time forms accepted in CIB date expressions.
// Values without a zone are interpreted in UTC. The result is truncated to
// whole seconds.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date-time")
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.Truncate(time.Second), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date-time %q", s)
}

// Duration is a calendar-aware duration. Years, months and days are applied
// with time.AddDate so month lengths and leap years are respected.
type Duration struct {
	Years   int
	Months  int
	Weeks   int
	Days    int
	Hours   int
	Minutes int
	Seconds int
}

// IsZero reports whether no component is set.
func (d Duration) IsZero() bool {
	return d == Duration{}
}

// AddTo returns t advanced by d.
func (d Duration) AddTo(t time.Time) time.Time {
	t = t.AddDate(d.Years, d.Months, d.Weeks*7+d.Days)
	return t.Add(time.Duration(d.Hours)*time.Hour +
		time.Duration(d.Minutes)*time.Minute +
		time.Duration(d.Seconds)*time.Second)
}

// String renders d in ISO 8601 form, e.g. "P1DT2H".
func (d Duration) String() string {
	var b strings.Builder
	b.WriteByte('P')
	writePart := func(v int, unit byte) {
		if v != 0 {
			b.WriteString(strconv.Itoa(v))
			b.WriteByte(unit)
		}
	}
	writePart(d.Years, 'Y')
	writePart(d.Months, 'M')
	writePart(d.Weeks, 'W')
	writePart(d.Days, 'D')
	if d.Hours != 0 || d.Minutes != 0 || d.Seconds != 0 {
		b.WriteByte('T')
		writePart(d.Hours, 'H')
		writePart(d.Minutes, 'M')
		writePart(d.Seconds, 'S')
	}
	if b.Len() == 1 {
		return "PT0S"
	}
	return b.String()
}

// ParseDuration parses an ISO 8601 duration such as "P1Y2M3DT4H5M6S" or
// "PT30M".
func ParseDuration(s string) (Duration, error) {
	var d Duration
	s = strings.TrimSpace(s)
	if len(s) < 2 || (s[0] != 'P' && s[0] != 'p') {
		return d, fmt.Errorf("invalid duration %q", s)
	}

	inTime := false
	parsed := false
	num := ""
	for _, r := range strings.ToUpper(s[1:]) {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
			continue
		case r == 'T':
			if inTime || num != "" {
				return Duration{}, fmt.Errorf("invalid duration %q", s)
			}
			inTime = true
			continue
		}

		if num == "" {
			return Duration{}, fmt.Errorf("invalid duration %q: missing value before %q", s, r)
		}
		v, err := strconv.Atoi(num)
		if err != nil {
			return Duration{}, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		num = ""
		parsed = true

		switch {
		case r == 'Y' && !inTime:
			d.Years = v
		case r == 'M' && !inTime:
			d.Months = v
		case r == 'W' && !inTime:
			d.Weeks = v
		case r == 'D' && !inTime:
			d.Days = v
		case r == 'H' && inTime:
			d.Hours = v
		case r == 'M' && inTime:
			d.Minutes = v
		case r == 'S' && inTime:
			d.Seconds = v
		default:
			return Duration{}, fmt.Errorf("invalid duration %q: unexpected %q", s, r)
		}
	}
	if num != "" {
		return Duration{}, fmt.Errorf("invalid duration %q: trailing value without unit", s)
	}
	if !parsed {
		return Duration{}, fmt.Errorf("invalid duration %q: no components", s)
	}
	return d, nil
}

// ParseInterval parses an operation interval. Plain numbers are seconds and
// may carry a unit suffix (ms, s, sec, m, min, h, hr). ISO 8601 durations
// are accepted as long as they contain no years or months.
func ParseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if s[0] == 'P' || s[0] == 'p' {
		d, err := ParseDuration(s)
		if err != nil {
			return 0, err
		}
		if d.Years != 0 || d.Months != 0 {
			return 0, fmt.Errorf("interval %q has no fixed length", s)
		}
		return time.Duration(d.Weeks*7+d.Days)*24*time.Hour +
			time.Duration(d.Hours)*time.Hour +
			time.Duration(d.Minutes)*time.Minute +
			time.Duration(d.Seconds)*time.Second, nil
	}

	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, fmt.Errorf("invalid interval %q", s)
	}
	v, err := strconv.ParseInt(s[:i], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: %w", s, err)
	}

	switch strings.ToLower(strings.TrimSpace(s[i:])) {
	case "", "s", "sec":
		return time.Duration(v) * time.Second, nil
	case "ms", "msec":
		return time.Duration(v) * time.Millisecond, nil
	case "m", "min":
		return time.Duration(v) * time.Minute, nil
	case "h", "hr":
		return time.Duration(v) * time.Hour, nil
	}
	return 0, fmt.Errorf("invalid interval %q: unknown unit", s)
}
