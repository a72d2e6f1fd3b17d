package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/pianova/piano-adm-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func slotRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "class_id", "room_id", "date", "shift", "status", "instructor_id", "note", "created_at", "updated_at"})
}

func TestSlotRepositoryListWithFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSlotRepository(db)
	from := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	instructor := "teacher-1"

	mock.ExpectQuery(regexp.QuoteMeta("SELECT s.id, s.class_id, s.room_id, s.date, s.shift, s.status, s.instructor_id, s.note, s.created_at, s.updated_at FROM slots s WHERE 1=1 AND s.date >= $1 AND s.status = ANY($2) AND s.instructor_id = ANY($3) ORDER BY s.date ASC, s.shift ASC")).
		WillReturnRows(slotRows().
			AddRow("slot-1", "class-1", "room-1", from, 2, "SCHEDULED", instructor, nil, time.Now(), time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM slots s WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	scheduled := models.SlotStatusScheduled
	slots, total, err := repo.List(context.Background(), models.SlotFilter{
		DateFrom:      &from,
		Statuses:      []models.SlotStatus{scheduled},
		InstructorIDs: []string{instructor},
		Page:          1,
		PageSize:      50,
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, slots, 1)
	require.Equal(t, "slot-1", slots[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepositoryListStudentScope(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSlotRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("EXISTS (SELECT 1 FROM attendance_records ar WHERE ar.slot_id = s.id AND ar.student_id = $1)")).
		WithArgs("student-1").
		WillReturnRows(slotRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("student-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	slots, total, err := repo.List(context.Background(), models.SlotFilter{StudentID: "student-1"})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, slots)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSlotRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO slots")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	slot := &models.Slot{
		ClassID: "class-1",
		RoomID:  "room-1",
		Date:    time.Date(2024, time.January, 3, 15, 4, 5, 0, time.UTC),
		Shift:   2,
		Status:  models.SlotStatusScheduled,
	}
	require.NoError(t, repo.Create(context.Background(), nil, slot))
	require.NotEmpty(t, slot.ID)
	require.Equal(t, time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC), slot.Date)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, class_id, room_id, date, shift, status, instructor_id, note, created_at, updated_at FROM slots WHERE id = $1")).
		WithArgs(slot.ID).
		WillReturnRows(slotRows().
			AddRow(slot.ID, slot.ClassID, slot.RoomID, slot.Date, int(slot.Shift), string(slot.Status), nil, nil, time.Now(), time.Now()))

	found, err := repo.FindByID(context.Background(), slot.ID)
	require.NoError(t, err)
	require.Equal(t, slot.ID, found.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotRepositoryListActiveAt(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSlotRepository(db)
	dates := []time.Time{
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC),
	}

	mock.ExpectQuery(regexp.QuoteMeta("FROM slots WHERE date = ANY($1) AND shift = $2 AND status <> $3")).
		WillReturnRows(slotRows().
			AddRow("slot-9", "class-2", "room-1", dates[0], 2, "SCHEDULED", nil, nil, time.Now(), time.Now()))

	slots, err := repo.ListActiveAt(context.Background(), nil, dates, 2)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	require.NoError(t, mock.ExpectationsWereMet())

	// No dates means no query at all.
	slots, err = repo.ListActiveAt(context.Background(), nil, nil, 2)
	require.NoError(t, err)
	require.Nil(t, slots)
}

func TestSlotRepositoryCancelBatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSlotRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE slots SET status = $1, updated_at = $2 WHERE id = ANY($3)")).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.CancelBatch(context.Background(), nil, []string{"slot-1", "slot-2"}))
	require.NoError(t, mock.ExpectationsWereMet())

	// Empty batch is a no-op.
	require.NoError(t, repo.CancelBatch(context.Background(), nil, nil))
}

func TestSlotRepositoryReassignClass(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSlotRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE slots SET class_id = $1, updated_at = $2 WHERE id = ANY($3)")).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, repo.ReassignClass(context.Background(), nil, []string{"a", "b", "c"}, "class-dest"))
	require.NoError(t, mock.ExpectationsWereMet())
}
