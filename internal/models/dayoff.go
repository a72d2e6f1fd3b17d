package models

import "time"

// DayOff is an admin-declared blackout interval. New slots are never
// scheduled inside one; existing slots are left alone.
type DayOff struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	StartsAt    time.Time `db:"starts_at" json:"starts_at"`
	EndsAt      time.Time `db:"ends_at" json:"ends_at"`
	RecurWeekly bool      `db:"recur_weekly" json:"recur_weekly"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Covers reports whether the shift occurrence on the given date falls
// inside the blackout interval, accounting for weekly recurrence.
func (d DayOff) Covers(date time.Time, shift Shift) bool {
	slotStart, slotEnd, err := ShiftSpan(date, shift)
	if err != nil {
		return false
	}

	if !d.RecurWeekly {
		return overlaps(slotStart, slotEnd, d.StartsAt.UTC(), d.EndsAt.UTC())
	}

	span := d.EndsAt.Sub(d.StartsAt)
	if span <= 0 {
		return false
	}
	if span >= 7*24*time.Hour {
		return true
	}

	// Project the recurring window onto the week of the candidate date.
	// The previous week's occurrence is also checked so windows that
	// cross the Sunday/Monday boundary are not missed.
	occStart := weeklyOccurrence(d.StartsAt.UTC(), date)
	for _, start := range []time.Time{occStart.AddDate(0, 0, -7), occStart} {
		if overlaps(slotStart, slotEnd, start, start.Add(span)) {
			return true
		}
	}
	return false
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// weeklyOccurrence moves the anchor instant onto the same weekday and
// wall-clock time within the week containing date.
func weeklyOccurrence(anchor, date time.Time) time.Time {
	weekStart := StartOfWeek(date)
	dayOffset := WeekdayIndex(anchor)
	clock := anchor.Sub(DateOnly(anchor))
	return weekStart.AddDate(0, 0, dayOffset).Add(clock)
}
