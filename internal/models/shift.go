package models

import "fmt"

// Shift identifies one of the fixed intra-day teaching windows (ordinal 0-7).
type Shift int

// ShiftCount is the number of shifts in a teaching day.
const ShiftCount = 8

// ShiftWindow is the wall-clock span of a shift.
type ShiftWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// shiftWindows is the process-wide constant shift table.
var shiftWindows = [ShiftCount]ShiftWindow{
	{Start: "08:00", End: "09:30"},
	{Start: "09:45", End: "11:15"},
	{Start: "11:30", End: "13:00"},
	{Start: "13:30", End: "15:00"},
	{Start: "15:15", End: "16:45"},
	{Start: "17:00", End: "18:30"},
	{Start: "18:45", End: "20:15"},
	{Start: "20:30", End: "22:00"},
}

// Valid reports whether the ordinal is inside the shift table.
func (s Shift) Valid() bool {
	return s >= 0 && s < ShiftCount
}

// Window returns the wall-clock range for the shift.
func (s Shift) Window() (ShiftWindow, error) {
	if !s.Valid() {
		return ShiftWindow{}, fmt.Errorf("invalid shift ordinal %d", int(s))
	}
	return shiftWindows[s], nil
}

// Label renders the shift for schedule descriptions, e.g. "Shift 3".
func (s Shift) Label() string {
	return fmt.Sprintf("Shift %d", int(s))
}

// Shifts returns the full shift table keyed by ordinal.
func Shifts() []ShiftWindow {
	out := make([]ShiftWindow, ShiftCount)
	copy(out, shiftWindows[:])
	return out
}
