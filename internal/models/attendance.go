package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusUnmarked AttendanceStatus = "UNMARKED"
	AttendanceStatusPresent  AttendanceStatus = "PRESENT"
	AttendanceStatusAbsent   AttendanceStatus = "ABSENT"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusUnmarked, AttendanceStatusPresent, AttendanceStatusAbsent:
		return true
	default:
		return false
	}
}

// AttendanceRecord tracks one student's expected presence at a slot.
// Records are seeded UNMARKED from the class roster at slot creation.
type AttendanceRecord struct {
	ID        string           `db:"id" json:"id"`
	SlotID    string           `db:"slot_id" json:"slot_id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Status    AttendanceStatus `db:"status" json:"status"`
	MarkedAt  *time.Time       `db:"marked_at" json:"marked_at,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceSummary summarises marks for a slot roster.
type AttendanceSummary struct {
	Present  int `db:"present" json:"present"`
	Absent   int `db:"absent" json:"absent"`
	Unmarked int `db:"unmarked" json:"unmarked"`
	Total    int `db:"total" json:"total"`
}

// Enrollment links a student to a class roster.
type Enrollment struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
