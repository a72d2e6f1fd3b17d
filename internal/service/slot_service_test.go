package service

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pianova/piano-adm-api/internal/models"
	appErrors "github.com/pianova/piano-adm-api/pkg/errors"
)

type slotFixture struct {
	svc         *SlotService
	classes     *fakeClassRepo
	slots       *fakeSlotRepo
	rooms       *fakeRoomRepo
	attendance  *fakeAttendanceRepo
	enrollments *fakeEnrollmentRepo
	dayOffs     *fakeDayOffSource
	notifier    *fakeNotifier
	mock        sqlmock.Sqlmock
	cleanup     func()
}

func newSlotFixture(t *testing.T) *slotFixture {
	db, mock, cleanup := newTxMock(t)

	f := &slotFixture{
		classes: &fakeClassRepo{classes: map[string]*models.Class{
			"class-1": {
				ID:           "class-1",
				Name:         "Beginner A",
				Status:       models.ClassStatusOngoing,
				InstructorID: strPtr("teacher-1"),
			},
		}},
		slots: &fakeSlotRepo{byID: map[string]*models.Slot{}},
		rooms: &fakeRoomRepo{rooms: map[string]*models.Room{
			"room-1": {ID: "room-1", Name: "Studio 1", Status: models.RoomStatusActive},
			"room-2": {ID: "room-2", Name: "Closed", Status: models.RoomStatusDisabled},
		}},
		attendance:  &fakeAttendanceRepo{},
		enrollments: &fakeEnrollmentRepo{students: []string{"student-1"}},
		dayOffs:     &fakeDayOffSource{},
		notifier:    &fakeNotifier{},
		mock:        mock,
		cleanup:     cleanup,
	}
	f.svc = NewSlotService(db, f.slots, f.classes, f.rooms, f.enrollments, f.attendance, f.dayOffs, f.notifier, nil, zap.NewNop())
	return f
}

func TestSlotAdd(t *testing.T) {
	f := newSlotFixture(t)
	defer f.cleanup()

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	slot, err := f.svc.Add(context.Background(), staffScope(), AddSlotRequest{
		ClassID: "class-1",
		RoomID:  "room-1",
		Date:    utcDate(2024, time.March, 4),
		Shift:   3,
	})
	require.NoError(t, err)
	require.NotNil(t, slot)
	assert.Equal(t, models.SlotStatusScheduled, slot.Status)
	require.NotNil(t, slot.InstructorID)
	assert.Equal(t, "teacher-1", *slot.InstructorID)

	assert.Equal(t, []string{"student-1"}, f.attendance.seeded[slot.ID])
	assert.Equal(t, []models.EventType{models.EventSlotCreated}, f.notifier.eventTypes())
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSlotAddRoomConflict(t *testing.T) {
	f := newSlotFixture(t)
	defer f.cleanup()

	f.slots.active = []models.Slot{{
		ID:     "slot-x",
		RoomID: "room-1",
		Date:   utcDate(2024, time.March, 4),
		Shift:  3,
		Status: models.SlotStatusScheduled,
	}}

	_, err := f.svc.Add(context.Background(), staffScope(), AddSlotRequest{
		ClassID: "class-1",
		RoomID:  "room-1",
		Date:    utcDate(2024, time.March, 4),
		Shift:   3,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRoomConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.slots.created)
}

func TestSlotAddInstructorConflict(t *testing.T) {
	f := newSlotFixture(t)
	defer f.cleanup()

	// Same instructor in a different room at the same time.
	f.slots.active = []models.Slot{{
		ID:           "slot-y",
		RoomID:       "room-9",
		Date:         utcDate(2024, time.March, 4),
		Shift:        3,
		Status:       models.SlotStatusScheduled,
		InstructorID: strPtr("teacher-1"),
	}}

	_, err := f.svc.Add(context.Background(), staffScope(), AddSlotRequest{
		ClassID: "class-1",
		RoomID:  "room-1",
		Date:    utcDate(2024, time.March, 4),
		Shift:   3,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInstructorConflict.Code, appErrors.FromError(err).Code)
}

func TestSlotAddOnDayOff(t *testing.T) {
	f := newSlotFixture(t)
	defer f.cleanup()

	f.dayOffs.dayOffs = []models.DayOff{{
		StartsAt: utcDate(2024, time.March, 4),
		EndsAt:   utcDate(2024, time.March, 5),
	}}

	_, err := f.svc.Add(context.Background(), staffScope(), AddSlotRequest{
		ClassID: "class-1",
		RoomID:  "room-1",
		Date:    utcDate(2024, time.March, 4),
		Shift:   3,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSlotAddDisabledRoom(t *testing.T) {
	f := newSlotFixture(t)
	defer f.cleanup()

	_, err := f.svc.Add(context.Background(), staffScope(), AddSlotRequest{
		ClassID: "class-1",
		RoomID:  "room-2",
		Date:    utcDate(2024, time.March, 4),
		Shift:   3,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSlotAddForbiddenForStudents(t *testing.T) {
	f := newSlotFixture(t)
	defer f.cleanup()

	_, err := f.svc.Add(context.Background(), models.Scope{Role: models.RoleStudent, StudentID: "student-1"}, AddSlotRequest{
		ClassID: "class-1",
		RoomID:  "room-1",
		Date:    utcDate(2024, time.March, 4),
		Shift:   3,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSlotEdit(t *testing.T) {
	f := newSlotFixture(t)
	defer f.cleanup()

	f.slots.byID["s1"] = &models.Slot{
		ID:      "s1",
		ClassID: "class-1",
		RoomID:  "room-1",
		Date:    utcDate(2024, time.March, 4),
		Shift:   3,
		Status:  models.SlotStatusScheduled,
	}

	newDate := utcDate(2024, time.March, 11)
	slot, err := f.svc.Edit(context.Background(), staffScope(), "s1", EditSlotRequest{
		Date: &newDate,
		Note: strPtr("moved a week out"),
	})
	require.NoError(t, err)
	assert.Equal(t, newDate, slot.Date)
	require.NotNil(t, slot.Note)

	require.Len(t, f.slots.updated, 1)
	assert.Equal(t, []models.EventType{models.EventSlotUpdated}, f.notifier.eventTypes())
}

func TestSlotEditCancelledSlot(t *testing.T) {
	f := newSlotFixture(t)
	defer f.cleanup()

	f.slots.byID["s1"] = &models.Slot{ID: "s1", Status: models.SlotStatusCancelled}

	_, err := f.svc.Edit(context.Background(), staffScope(), "s1", EditSlotRequest{Note: strPtr("late")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSlotEditToCancelledEmitsCancellation(t *testing.T) {
	f := newSlotFixture(t)
	defer f.cleanup()

	f.slots.byID["s1"] = &models.Slot{
		ID:      "s1",
		ClassID: "class-1",
		RoomID:  "room-1",
		Date:    utcDate(2024, time.March, 4),
		Shift:   3,
		Status:  models.SlotStatusScheduled,
	}

	cancelled := models.SlotStatusCancelled
	slot, err := f.svc.Edit(context.Background(), staffScope(), "s1", EditSlotRequest{Status: &cancelled})
	require.NoError(t, err)
	assert.Equal(t, models.SlotStatusCancelled, slot.Status)
	assert.Equal(t, []models.EventType{models.EventSlotCancelled}, f.notifier.eventTypes())
}

func TestSlotDelete(t *testing.T) {
	f := newSlotFixture(t)
	defer f.cleanup()

	f.slots.byID["scheduled"] = &models.Slot{ID: "scheduled", Status: models.SlotStatusScheduled}
	f.slots.byID["ongoing"] = &models.Slot{ID: "ongoing", Status: models.SlotStatusOngoing}
	f.slots.byID["cancelled"] = &models.Slot{ID: "cancelled", Status: models.SlotStatusCancelled}

	// Scheduled slots are removed outright.
	require.NoError(t, f.svc.Delete(context.Background(), staffScope(), "scheduled"))
	assert.Equal(t, []string{"scheduled"}, f.slots.deleted)

	// Started slots are soft-cancelled so attendance survives.
	require.NoError(t, f.svc.Delete(context.Background(), staffScope(), "ongoing"))
	require.Len(t, f.slots.updated, 1)
	assert.Equal(t, models.SlotStatusCancelled, f.slots.updated[0].Status)

	// Deleting a cancelled slot is a no-op success.
	require.NoError(t, f.svc.Delete(context.Background(), staffScope(), "cancelled"))
	assert.Len(t, f.slots.deleted, 1)
	assert.Len(t, f.slots.updated, 1)

	assert.Equal(t, []models.EventType{models.EventSlotCancelled, models.EventSlotCancelled}, f.notifier.eventTypes())
}

func TestSlotDeleteNotFound(t *testing.T) {
	f := newSlotFixture(t)
	defer f.cleanup()

	err := f.svc.Delete(context.Background(), staffScope(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSlotQueryScopeNarrowing(t *testing.T) {
	f := newSlotFixture(t)
	defer f.cleanup()

	// Teachers only see their own slots.
	_, _, err := f.svc.Query(context.Background(), models.Scope{Role: models.RoleTeacher, InstructorID: "teacher-1"}, models.SlotFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"teacher-1"}, f.lastFilter().InstructorIDs)

	// Students only see slots they are rostered on.
	_, _, err = f.svc.Query(context.Background(), models.Scope{Role: models.RoleStudent, StudentID: "student-1"}, models.SlotFilter{})
	require.NoError(t, err)
	assert.Equal(t, "student-1", f.lastFilter().StudentID)

	// Staff filters pass through untouched.
	_, _, err = f.svc.Query(context.Background(), staffScope(), models.SlotFilter{RoomIDs: []string{"room-1"}})
	require.NoError(t, err)
	assert.Empty(t, f.lastFilter().InstructorIDs)
	assert.Equal(t, []string{"room-1"}, f.lastFilter().RoomIDs)

	// An anonymous scope gets nothing.
	_, _, err = f.svc.Query(context.Background(), models.Scope{}, models.SlotFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func (f *slotFixture) lastFilter() models.SlotFilter {
	return f.slots.lastFilter
}

func TestSlotGetInstructorOwnership(t *testing.T) {
	f := newSlotFixture(t)
	defer f.cleanup()

	f.slots.byID["s1"] = &models.Slot{ID: "s1", InstructorID: strPtr("teacher-1"), Status: models.SlotStatusScheduled}

	slot, err := f.svc.Get(context.Background(), models.Scope{Role: models.RoleTeacher, InstructorID: "teacher-1"}, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", slot.ID)

	_, err = f.svc.Get(context.Background(), models.Scope{Role: models.RoleTeacher, InstructorID: "teacher-2"}, "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSlotGetStudentEnrollment(t *testing.T) {
	f := newSlotFixture(t)
	defer f.cleanup()

	f.slots.byID["s1"] = &models.Slot{ID: "s1", ClassID: "class-1", InstructorID: strPtr("teacher-1"), Status: models.SlotStatusScheduled}

	// student-1 is on the class-1 roster in the fixture.
	slot, err := f.svc.Get(context.Background(), models.Scope{Role: models.RoleStudent, StudentID: "student-1"}, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", slot.ID)

	_, err = f.svc.Get(context.Background(), models.Scope{Role: models.RoleStudent, StudentID: "student-9"}, "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSlotGetForbiddenForAnonymous(t *testing.T) {
	f := newSlotFixture(t)
	defer f.cleanup()

	f.slots.byID["s1"] = &models.Slot{ID: "s1", ClassID: "class-1", Status: models.SlotStatusScheduled}

	_, err := f.svc.Get(context.Background(), models.Scope{}, "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
