package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDayOffCoversOneOff(t *testing.T) {
	// Blackout covering all of 2024-03-04.
	d := DayOff{
		StartsAt: date(2024, time.March, 4),
		EndsAt:   date(2024, time.March, 5),
	}

	assert.True(t, d.Covers(date(2024, time.March, 4), 0))
	assert.True(t, d.Covers(date(2024, time.March, 4), 7))
	assert.False(t, d.Covers(date(2024, time.March, 5), 0))
	assert.False(t, d.Covers(date(2024, time.March, 11), 0))
}

func TestDayOffCoversOneOffShiftNarrowing(t *testing.T) {
	// 2024-03-04 13:00..17:30 overlaps shifts 3, 4 and 5 only;
	// shift 2 ends exactly at 13:00 and does not count.
	d := DayOff{
		StartsAt: time.Date(2024, time.March, 4, 13, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2024, time.March, 4, 17, 30, 0, 0, time.UTC),
	}

	assert.False(t, d.Covers(date(2024, time.March, 4), 2))
	assert.True(t, d.Covers(date(2024, time.March, 4), 3))
	assert.True(t, d.Covers(date(2024, time.March, 4), 4))
	assert.True(t, d.Covers(date(2024, time.March, 4), 5))
	assert.False(t, d.Covers(date(2024, time.March, 4), 6))
}

func TestDayOffCoversWeeklyRecurrence(t *testing.T) {
	// Every Wednesday afternoon, anchored on 2024-01-03.
	d := DayOff{
		StartsAt:    time.Date(2024, time.January, 3, 13, 0, 0, 0, time.UTC),
		EndsAt:      time.Date(2024, time.January, 3, 17, 0, 0, 0, time.UTC),
		RecurWeekly: true,
	}

	// Anchor week and weeks after, same weekday.
	assert.True(t, d.Covers(date(2024, time.January, 3), 3))
	assert.True(t, d.Covers(date(2024, time.January, 10), 3))
	assert.True(t, d.Covers(date(2024, time.June, 5), 3))

	// Same date, morning shift does not overlap.
	assert.False(t, d.Covers(date(2024, time.January, 10), 0))

	// Different weekday.
	assert.False(t, d.Covers(date(2024, time.January, 9), 3))
}

func TestDayOffCoversWeeklyCrossesWeekBoundary(t *testing.T) {
	// Sunday 20:00 through Monday 10:00, weekly.
	d := DayOff{
		StartsAt:    time.Date(2024, time.January, 7, 20, 0, 0, 0, time.UTC),
		EndsAt:      time.Date(2024, time.January, 8, 10, 0, 0, 0, time.UTC),
		RecurWeekly: true,
	}

	// Monday morning is covered by the previous week's occurrence.
	assert.True(t, d.Covers(date(2024, time.January, 15), 0))
	assert.True(t, d.Covers(date(2024, time.January, 14), 7))
	assert.False(t, d.Covers(date(2024, time.January, 15), 2))
}

func TestDayOffCoversWeeklyFullSpan(t *testing.T) {
	// A recurring window of seven days or more blacks out everything.
	d := DayOff{
		StartsAt:    date(2024, time.January, 1),
		EndsAt:      date(2024, time.January, 8),
		RecurWeekly: true,
	}
	assert.True(t, d.Covers(date(2025, time.July, 18), 4))
}

func TestDayOffCoversInvertedInterval(t *testing.T) {
	d := DayOff{
		StartsAt:    date(2024, time.January, 8),
		EndsAt:      date(2024, time.January, 1),
		RecurWeekly: true,
	}
	assert.False(t, d.Covers(date(2024, time.January, 8), 0))
}
