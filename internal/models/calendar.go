package models

import (
	"fmt"
	"time"
)

// DateOnly truncates a timestamp to midnight UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsMonday reports whether the date falls on a Monday.
func IsMonday(t time.Time) bool {
	return t.Weekday() == time.Monday
}

// WeekdayIndex maps a weekday to the ISO ordering used by schedule
// patterns: 0 = Monday .. 6 = Sunday.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// StartOfWeek returns the Monday (midnight UTC) of the week containing t.
func StartOfWeek(t time.Time) time.Time {
	return DateOnly(t).AddDate(0, 0, -WeekdayIndex(t))
}

// WeekRange resolves an ISO week number to its Monday..Sunday date bounds.
// The bounds round-trip through time.Time.ISOWeek, which keeps them
// consistent with the week numbers shown in calendar navigation.
func WeekRange(year, week int) (time.Time, time.Time, error) {
	if week < 1 || week > 53 {
		return time.Time{}, time.Time{}, fmt.Errorf("iso week %d out of range", week)
	}

	// January 4th is always inside ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	week1Monday := StartOfWeek(jan4)
	start := week1Monday.AddDate(0, 0, (week-1)*7)

	if y, w := start.ISOWeek(); y != year || w != week {
		return time.Time{}, time.Time{}, fmt.Errorf("year %d has no iso week %d", year, week)
	}

	return start, start.AddDate(0, 0, 6), nil
}

// CombineDateClock attaches a "HH:MM" wall-clock value to a date.
func CombineDateClock(date time.Time, clock string) (time.Time, error) {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse clock %q: %w", clock, err)
	}
	d := DateOnly(date)
	return d.Add(time.Duration(parsed.Hour())*time.Hour + time.Duration(parsed.Minute())*time.Minute), nil
}

// ShiftSpan returns the concrete start/end instants of a shift on a date.
func ShiftSpan(date time.Time, shift Shift) (time.Time, time.Time, error) {
	win, err := shift.Window()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, err := CombineDateClock(date, win.Start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := CombineDateClock(date, win.End)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}
