package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShiftValid(t *testing.T) {
	assert.True(t, Shift(0).Valid())
	assert.True(t, Shift(7).Valid())
	assert.False(t, Shift(-1).Valid())
	assert.False(t, Shift(8).Valid())
}

func TestShiftWindow(t *testing.T) {
	win, err := Shift(0).Window()
	require.NoError(t, err)
	assert.Equal(t, ShiftWindow{Start: "08:00", End: "09:30"}, win)

	win, err = Shift(7).Window()
	require.NoError(t, err)
	assert.Equal(t, ShiftWindow{Start: "20:30", End: "22:00"}, win)

	_, err = Shift(8).Window()
	require.Error(t, err)
}

func TestShiftLabel(t *testing.T) {
	assert.Equal(t, "Shift 3", Shift(3).Label())
}

func TestShiftsTableIsACopy(t *testing.T) {
	table := Shifts()
	require.Len(t, table, ShiftCount)
	table[0].Start = "00:00"

	fresh := Shifts()
	assert.Equal(t, "08:00", fresh[0].Start)
}
