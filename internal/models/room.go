package models

import "time"

// RoomStatus captures whether a room can be scheduled into.
type RoomStatus string

const (
	RoomStatusActive   RoomStatus = "ACTIVE"
	RoomStatusDisabled RoomStatus = "DISABLED"
)

// Valid returns true when the status is a supported value.
func (s RoomStatus) Valid() bool {
	return s == RoomStatusActive || s == RoomStatusDisabled
}

// Room represents a teaching room. Rooms referenced by slots are never
// hard-deleted, only disabled.
type Room struct {
	ID        string     `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	Capacity  int        `db:"capacity" json:"capacity"`
	Status    RoomStatus `db:"status" json:"status"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// RoomFilter defines filter criteria for listing rooms.
type RoomFilter struct {
	Status    *RoomStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
