// Package calendar holds the date arithmetic used by the workout rotation:
// weekday names, end-of-week, inclusive ranges and month enumeration.
// All dates are normalized to midnight UTC.
package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// ErrUnknownWeekday is returned when a workout day name is not one of the
// seven weekday names.
var ErrUnknownWeekday = errors.New("unknown weekday name")

var weekdayNames = [7]string{
	"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday",
}

// Date builds a midnight UTC date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Truncate drops the clock part of t, keeping t's calendar day as seen in its
// own location.
func Truncate(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// Today returns the current calendar day in loc.
func Today(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return Truncate(time.Now().In(loc))
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDate renders a date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatDates renders every date as YYYY-MM-DD.
func FormatDates(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = FormatDate(d)
	}
	return out
}

// WeekdayName returns the lowercase English weekday name of t.
func WeekdayName(t time.Time) string {
	return weekdayNames[t.Weekday()]
}

// IsWeekdayName reports whether name is a weekday name, ignoring case and
// surrounding spaces.
func IsWeekdayName(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, w := range weekdayNames {
		if w == n {
			return true
		}
	}
	return false
}

// NormalizeDayNames lowercases and deduplicates names, keeping first-seen
// order. Unknown names yield ErrUnknownWeekday.
func NormalizeDayNames(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		n := strings.ToLower(strings.TrimSpace(name))
		if !IsWeekdayName(n) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownWeekday, name)
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out, nil
}

// EndOfWeek returns the Saturday on or after t. A Saturday maps to itself.
func EndOfWeek(t time.Time) time.Time {
	d := Truncate(t)
	offset := (int(time.Saturday) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset)
}

// DateRange lists every date from start to end, both inclusive. It is empty
// when end is before start.
func DateRange(start, end time.Time) []time.Time {
	s, e := Truncate(start), Truncate(end)
	if e.Before(s) {
		return []time.Time{}
	}
	days := int(e.Sub(s).Hours()/24) + 1
	out := make([]time.Time, 0, days)
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// MatchingDays keeps the dates whose weekday name is in allowed (compared
// case-insensitively). The two returned slices are parallel and keep the
// order of dates.
func MatchingDays(dates []time.Time, allowed []string) ([]time.Time, []string) {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[strings.ToLower(strings.TrimSpace(a))] = struct{}{}
	}

	matchedDates := make([]time.Time, 0, len(dates))
	matchedNames := make([]string, 0, len(dates))
	for _, d := range dates {
		name := WeekdayName(d)
		if _, ok := set[name]; ok {
			matchedDates = append(matchedDates, d)
			matchedNames = append(matchedNames, name)
		}
	}
	return matchedDates, matchedNames
}

// ContainsDay reports whether t's weekday name is in days, ignoring case.
func ContainsDay(days []string, t time.Time) bool {
	name := WeekdayName(t)
	for _, d := range days {
		if strings.ToLower(strings.TrimSpace(d)) == name {
			return true
		}
	}
	return false
}

// DaysInMonth lists every date of the given month.
func DaysInMonth(year int, month time.Month) []time.Time {
	first := Date(year, month, 1)
	last := first.AddDate(0, 1, -1)
	return DateRange(first, last)
}
