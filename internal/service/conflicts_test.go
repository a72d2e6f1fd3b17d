package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pianova/piano-adm-api/internal/models"
	appErrors "github.com/pianova/piano-adm-api/pkg/errors"
)

func conflictSlot(id, room string, instructor *string, date time.Time, shift models.Shift) models.Slot {
	return models.Slot{
		ID:           id,
		ClassID:      "class-" + id,
		RoomID:       room,
		Date:         date,
		Shift:        shift,
		Status:       models.SlotStatusScheduled,
		InstructorID: instructor,
	}
}

func TestCheckAllocationCleanBatch(t *testing.T) {
	day := utcDate(2024, time.April, 1)
	candidates := []models.Slot{
		conflictSlot("a", "room-1", strPtr("t1"), day, 1),
		conflictSlot("b", "room-1", strPtr("t1"), day, 2),
		conflictSlot("c", "room-2", strPtr("t2"), day, 1),
	}
	require.NoError(t, checkAllocation(candidates, nil, nil))
}

func TestCheckAllocationInBatchRoomConflict(t *testing.T) {
	day := utcDate(2024, time.April, 1)
	candidates := []models.Slot{
		conflictSlot("a", "room-1", nil, day, 1),
		conflictSlot("b", "room-1", nil, day, 1),
	}
	err := checkAllocation(candidates, nil, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRoomConflict.Code, appErrors.FromError(err).Code)
}

func TestCheckAllocationInstructorConflictAcrossRooms(t *testing.T) {
	day := utcDate(2024, time.April, 1)
	existing := []models.Slot{conflictSlot("x", "room-2", strPtr("t1"), day, 1)}
	candidates := []models.Slot{conflictSlot("a", "room-1", strPtr("t1"), day, 1)}

	err := checkAllocation(candidates, existing, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInstructorConflict.Code, appErrors.FromError(err).Code)
	assert.Contains(t, err.Error(), "slot x")
}

func TestCheckAllocationExcludeSkipsOwnRecord(t *testing.T) {
	day := utcDate(2024, time.April, 1)
	existing := []models.Slot{conflictSlot("a", "room-1", strPtr("t1"), day, 1)}
	// The same record being edited must not conflict with itself.
	candidates := []models.Slot{conflictSlot("a", "room-1", strPtr("t1"), day, 1)}

	require.NoError(t, checkAllocation(candidates, existing, map[string]struct{}{"a": {}}))
}

func TestCheckAllocationIgnoresCancelled(t *testing.T) {
	day := utcDate(2024, time.April, 1)
	cancelled := conflictSlot("x", "room-1", strPtr("t1"), day, 1)
	cancelled.Status = models.SlotStatusCancelled

	candidates := []models.Slot{conflictSlot("a", "room-1", strPtr("t1"), day, 1)}
	require.NoError(t, checkAllocation(candidates, []models.Slot{cancelled}, nil))
}
