package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ClassStatus is the lifecycle phase of a class.
type ClassStatus string

const (
	ClassStatusNotStarted ClassStatus = "NOT_STARTED"
	ClassStatusOngoing    ClassStatus = "ONGOING"
	ClassStatusFinished   ClassStatus = "FINISHED"
	ClassStatusDisabled   ClassStatus = "DISABLED"
)

// Valid returns true when the status is a supported value.
func (s ClassStatus) Valid() bool {
	switch s {
	case ClassStatusNotStarted, ClassStatusOngoing, ClassStatusFinished, ClassStatusDisabled:
		return true
	default:
		return false
	}
}

// Class represents a piano class. Instructor and schedule are assigned
// after creation; DISABLED is terminal (set by merge).
type Class struct {
	ID                  string      `db:"id" json:"id"`
	Level               string      `db:"level" json:"level"`
	Name                string      `db:"name" json:"name"`
	InstructorID        *string     `db:"instructor_id" json:"instructor_id,omitempty"`
	Status              ClassStatus `db:"status" json:"status"`
	Capacity            int         `db:"capacity" json:"capacity"`
	RequiredSlotCount   int         `db:"required_slot_count" json:"required_slot_count"`
	ScheduleDays        *string     `db:"schedule_days" json:"-"`
	ScheduleShift       *int        `db:"schedule_shift" json:"-"`
	ScheduleDescription *string     `db:"schedule_description" json:"schedule_description,omitempty"`
	IsPublic            bool        `db:"is_public" json:"is_public"`
	CreatedAt           time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time   `db:"updated_at" json:"updated_at"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	Level        string
	Status       *ClassStatus
	InstructorID string
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

var dayNames = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// SchedulePattern is the structured recurring rule a class is scheduled
// with. Days use 0 = Monday .. 6 = Sunday.
type SchedulePattern struct {
	Days  []int `json:"days"`
	Shift Shift `json:"shift"`
}

// Normalize sorts and de-duplicates the day set.
func (p SchedulePattern) Normalize() SchedulePattern {
	seen := make(map[int]struct{}, len(p.Days))
	days := make([]int, 0, len(p.Days))
	for _, d := range p.Days {
		if d < 0 || d > 6 {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	sort.Ints(days)
	return SchedulePattern{Days: days, Shift: p.Shift}
}

// Describe renders the pattern as the human-readable summary stored on
// the class, e.g. "Mon;Wed;Fri - Shift 3".
func (p SchedulePattern) Describe() string {
	n := p.Normalize()
	names := make([]string, 0, len(n.Days))
	for _, d := range n.Days {
		names = append(names, dayNames[d])
	}
	return fmt.Sprintf("%s - %s", strings.Join(names, ";"), p.Shift.Label())
}

// Compatible reports whether one pattern's day set contains the other's
// and both use the same shift. Merge uses it for its advisory warning.
func (p SchedulePattern) Compatible(other SchedulePattern) bool {
	if p.Shift != other.Shift {
		return false
	}
	return subsetDays(p.Days, other.Days) || subsetDays(other.Days, p.Days)
}

func subsetDays(sub, super []int) bool {
	set := make(map[int]struct{}, len(super))
	for _, d := range super {
		set[d] = struct{}{}
	}
	for _, d := range sub {
		if _, ok := set[d]; !ok {
			return false
		}
	}
	return true
}

// EncodeDays serialises the day set for storage ("0;2;4").
func (p SchedulePattern) EncodeDays() string {
	n := p.Normalize()
	parts := make([]string, 0, len(n.Days))
	for _, d := range n.Days {
		parts = append(parts, strconv.Itoa(d))
	}
	return strings.Join(parts, ";")
}

// DecodeDays parses a stored day set back into ordinals.
func DecodeDays(raw string) []int {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ";")
	days := make([]int, 0, len(parts))
	for _, part := range parts {
		d, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || d < 0 || d > 6 {
			continue
		}
		days = append(days, d)
	}
	sort.Ints(days)
	return days
}

// Pattern reconstructs the structured pattern stored on the class, or
// nil when the class has never been scheduled.
func (c *Class) Pattern() *SchedulePattern {
	if c.ScheduleDays == nil || c.ScheduleShift == nil {
		return nil
	}
	return &SchedulePattern{Days: DecodeDays(*c.ScheduleDays), Shift: Shift(*c.ScheduleShift)}
}
