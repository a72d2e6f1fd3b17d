package models

import "time"

// SlotStatus is the lifecycle phase of a slot.
type SlotStatus string

const (
	SlotStatusScheduled SlotStatus = "SCHEDULED"
	SlotStatusOngoing   SlotStatus = "ONGOING"
	SlotStatusFinished  SlotStatus = "FINISHED"
	SlotStatusCancelled SlotStatus = "CANCELLED"
)

// Valid returns true when the status is a supported value.
func (s SlotStatus) Valid() bool {
	switch s {
	case SlotStatusScheduled, SlotStatusOngoing, SlotStatusFinished, SlotStatusCancelled:
		return true
	default:
		return false
	}
}

// Active reports whether the slot still occupies its room/instructor.
// Cancelled slots release their allocation.
func (s SlotStatus) Active() bool {
	return s != SlotStatusCancelled
}

// Slot is one concrete (class, room, date, shift) teaching occurrence.
// InstructorID may override the class default for substitutions.
type Slot struct {
	ID           string     `db:"id" json:"id"`
	ClassID      string     `db:"class_id" json:"class_id"`
	RoomID       string     `db:"room_id" json:"room_id"`
	Date         time.Time  `db:"date" json:"date"`
	Shift        Shift      `db:"shift" json:"shift"`
	Status       SlotStatus `db:"status" json:"status"`
	InstructorID *string    `db:"instructor_id" json:"instructor_id,omitempty"`
	Note         *string    `db:"note" json:"note,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// SlotFilter narrows slot queries. All criteria are AND-combined.
type SlotFilter struct {
	DateFrom      *time.Time
	DateTo        *time.Time
	Shifts        []Shift
	Statuses      []SlotStatus
	RoomIDs       []string
	ClassIDs      []string
	InstructorIDs []string
	StudentID     string
	Page          int
	PageSize      int
}

// SlotConflict describes the existing slot an allocation collided with.
type SlotConflict struct {
	SlotID       string    `json:"slot_id"`
	ClassID      string    `json:"class_id"`
	RoomID       string    `json:"room_id"`
	Date         time.Time `json:"date"`
	Shift        Shift     `json:"shift"`
	InstructorID *string   `json:"instructor_id,omitempty"`
	Dimension    string    `json:"dimension"`
}

// Conflict dimensions.
const (
	ConflictDimensionRoom       = "ROOM"
	ConflictDimensionInstructor = "INSTRUCTOR"
)

// SlotConflictError is returned when a slot collides with an existing one.
type SlotConflictError struct {
	Dimension string       `json:"dimension"`
	Message   string       `json:"message"`
	Conflict  SlotConflict `json:"conflict"`
}

// Error implements the error interface for conflict errors.
func (e *SlotConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
