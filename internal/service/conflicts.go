package service

import (
	"fmt"
	"time"

	"github.com/pianova/piano-adm-api/internal/models"
	appErrors "github.com/pianova/piano-adm-api/pkg/errors"
)

// occupancyKey identifies one allocation cell.
type occupancyKey struct {
	resource string
	date     time.Time
	shift    models.Shift
}

// checkAllocation validates the room and instructor invariants for a set
// of candidate slots against an existing-slot snapshot. Slots whose id is
// in exclude (the record being updated, a class's own moving set) are
// ignored. Candidates are also checked against each other so a batch
// cannot conflict internally.
func checkAllocation(candidates []models.Slot, existing []models.Slot, exclude map[string]struct{}) error {
	rooms := make(map[occupancyKey]models.Slot)
	instructors := make(map[occupancyKey]models.Slot)

	index := func(slot models.Slot) {
		if !slot.Status.Active() {
			return
		}
		date := models.DateOnly(slot.Date)
		rooms[occupancyKey{resource: slot.RoomID, date: date, shift: slot.Shift}] = slot
		if slot.InstructorID != nil && *slot.InstructorID != "" {
			instructors[occupancyKey{resource: *slot.InstructorID, date: date, shift: slot.Shift}] = slot
		}
	}

	for _, slot := range existing {
		if _, skip := exclude[slot.ID]; skip {
			continue
		}
		index(slot)
	}

	for _, candidate := range candidates {
		date := models.DateOnly(candidate.Date)
		if hit, ok := rooms[occupancyKey{resource: candidate.RoomID, date: date, shift: candidate.Shift}]; ok {
			return allocationConflict(models.ConflictDimensionRoom, hit)
		}
		if candidate.InstructorID != nil && *candidate.InstructorID != "" {
			if hit, ok := instructors[occupancyKey{resource: *candidate.InstructorID, date: date, shift: candidate.Shift}]; ok {
				return allocationConflict(models.ConflictDimensionInstructor, hit)
			}
		}
		index(candidate)
	}

	return nil
}

func allocationConflict(dimension string, existing models.Slot) error {
	conflict := models.SlotConflict{
		SlotID:       existing.ID,
		ClassID:      existing.ClassID,
		RoomID:       existing.RoomID,
		Date:         models.DateOnly(existing.Date),
		Shift:        existing.Shift,
		InstructorID: existing.InstructorID,
		Dimension:    dimension,
	}

	sentinel := appErrors.ErrRoomConflict
	if dimension == models.ConflictDimensionInstructor {
		sentinel = appErrors.ErrInstructorConflict
	}

	domainErr := &models.SlotConflictError{
		Dimension: dimension,
		Message:   fmt.Sprintf("%s (slot %s)", sentinel.Message, existing.ID),
		Conflict:  conflict,
	}
	return appErrors.Wrap(domainErr, sentinel.Code, sentinel.Status, domainErr.Message)
}
