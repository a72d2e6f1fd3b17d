package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/pianova/piano-adm-api/internal/models"
	appErrors "github.com/pianova/piano-adm-api/pkg/errors"
)

// newTxMock returns a sqlmock-backed txProvider. Tests expect Begin and
// Commit around every transactional call; the repositories themselves
// are stubbed and never touch the connection.
func newTxMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func utcDate(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type statusChange struct {
	ID     string
	Status models.ClassStatus
}

type metaChange struct {
	ID      string
	Pattern *models.SchedulePattern
}

type fakeClassRepo struct {
	classes     map[string]*models.Class
	statusCalls []statusChange
	metaCalls   []metaChange
}

func (f *fakeClassRepo) FindByID(_ context.Context, id string) (*models.Class, error) {
	class, ok := f.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *class
	return &cp, nil
}

func (f *fakeClassRepo) UpdateStatus(_ context.Context, _ sqlx.ExtContext, id string, status models.ClassStatus) error {
	f.statusCalls = append(f.statusCalls, statusChange{ID: id, Status: status})
	return nil
}

func (f *fakeClassRepo) UpdateScheduleMeta(_ context.Context, _ sqlx.ExtContext, id string, pattern *models.SchedulePattern) error {
	f.metaCalls = append(f.metaCalls, metaChange{ID: id, Pattern: pattern})
	return nil
}

type fakeSlotRepo struct {
	byID       map[string]*models.Slot
	byClass    map[string][]models.Slot
	active     []models.Slot
	listResult []models.Slot
	listTotal  int
	lastFilter models.SlotFilter

	created      []models.Slot
	updated      []models.Slot
	deleted      []string
	cancelledIDs []string
	reassignIDs  []string
	reassignDest string
}

func (f *fakeSlotRepo) List(_ context.Context, filter models.SlotFilter) ([]models.Slot, int, error) {
	f.lastFilter = filter
	return f.listResult, f.listTotal, nil
}

func (f *fakeSlotRepo) FindByID(_ context.Context, id string) (*models.Slot, error) {
	slot, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *slot
	return &cp, nil
}

func (f *fakeSlotRepo) ListByClass(_ context.Context, classID string) ([]models.Slot, error) {
	return f.byClass[classID], nil
}

func (f *fakeSlotRepo) ListActiveAt(_ context.Context, _ sqlx.ExtContext, _ []time.Time, _ models.Shift) ([]models.Slot, error) {
	return f.active, nil
}

func (f *fakeSlotRepo) ListActiveInRange(_ context.Context, _ sqlx.ExtContext, _, _ time.Time) ([]models.Slot, error) {
	return f.active, nil
}

func (f *fakeSlotRepo) Create(_ context.Context, _ sqlx.ExtContext, slot *models.Slot) error {
	if slot.ID == "" {
		slot.ID = fmt.Sprintf("slot-%d", len(f.created)+1)
	}
	f.created = append(f.created, *slot)
	return nil
}

func (f *fakeSlotRepo) Update(_ context.Context, _ sqlx.ExtContext, slot *models.Slot) error {
	f.updated = append(f.updated, *slot)
	return nil
}

func (f *fakeSlotRepo) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeSlotRepo) CancelBatch(_ context.Context, _ sqlx.ExtContext, ids []string) error {
	f.cancelledIDs = append(f.cancelledIDs, ids...)
	return nil
}

func (f *fakeSlotRepo) ReassignClass(_ context.Context, _ sqlx.ExtContext, ids []string, destClassID string) error {
	f.reassignIDs = append(f.reassignIDs, ids...)
	f.reassignDest = destClassID
	return nil
}

type fakeRoomRepo struct {
	rooms map[string]*models.Room
}

func (f *fakeRoomRepo) FindByID(_ context.Context, id string) (*models.Room, error) {
	room, ok := f.rooms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *room
	return &cp, nil
}

func (f *fakeRoomRepo) RequireUsable(_ context.Context, id string) (*models.Room, error) {
	room, ok := f.rooms[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
	}
	if room.Status != models.RoomStatusActive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "room is disabled")
	}
	cp := *room
	return &cp, nil
}

type markCall struct {
	SlotID     string
	StudentIDs []string
	Status     models.AttendanceStatus
}

type fakeAttendanceRepo struct {
	seeded    map[string][]string
	records   []models.AttendanceRecord
	summary   *models.AttendanceSummary
	hasMarked bool
	marks     []markCall
}

func (f *fakeAttendanceRepo) SeedRoster(_ context.Context, _ sqlx.ExtContext, slotID string, studentIDs []string) error {
	if f.seeded == nil {
		f.seeded = make(map[string][]string)
	}
	f.seeded[slotID] = studentIDs
	return nil
}

func (f *fakeAttendanceRepo) HasMarkedRecords(_ context.Context, _ []string) (bool, error) {
	return f.hasMarked, nil
}

func (f *fakeAttendanceRepo) ListBySlot(_ context.Context, _ string) ([]models.AttendanceRecord, error) {
	return f.records, nil
}

func (f *fakeAttendanceRepo) MarkBatch(_ context.Context, _ sqlx.ExtContext, slotID string, studentIDs []string, status models.AttendanceStatus) error {
	f.marks = append(f.marks, markCall{SlotID: slotID, StudentIDs: studentIDs, Status: status})
	return nil
}

func (f *fakeAttendanceRepo) SummaryBySlot(_ context.Context, _ string) (*models.AttendanceSummary, error) {
	return f.summary, nil
}

type fakeEnrollmentRepo struct {
	students []string
	count    int
}

func (f *fakeEnrollmentRepo) ListStudentIDsByClass(_ context.Context, _ string) ([]string, error) {
	return f.students, nil
}

func (f *fakeEnrollmentRepo) CountByClass(_ context.Context, _ string) (int, error) {
	return f.count, nil
}

type fakeDayOffSource struct {
	dayOffs []models.DayOff
}

func (f *fakeDayOffSource) Relevant(_ context.Context, _, _ time.Time) ([]models.DayOff, error) {
	return f.dayOffs, nil
}

func (f *fakeDayOffSource) IsBlackedOut(_ context.Context, date time.Time, shift models.Shift) (bool, error) {
	for _, d := range f.dayOffs {
		if d.Covers(date, shift) {
			return true, nil
		}
	}
	return false, nil
}

type fakeNotifier struct {
	events []models.DomainEvent
}

func (f *fakeNotifier) Emit(event models.DomainEvent) {
	f.events = append(f.events, event)
}

func (f *fakeNotifier) eventTypes() []models.EventType {
	types := make([]models.EventType, 0, len(f.events))
	for _, event := range f.events {
		types = append(types, event.Type)
	}
	return types
}

type fakeOpRecorder struct {
	ops map[string][]string
}

func (f *fakeOpRecorder) RecordSchedulingOp(op, outcome string) {
	if f.ops == nil {
		f.ops = make(map[string][]string)
	}
	f.ops[op] = append(f.ops[op], outcome)
}
