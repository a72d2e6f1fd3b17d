package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/pianova/piano-adm-api/internal/models"
)

func dayOffRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "starts_at", "ends_at", "recur_weekly", "created_at", "updated_at"})
}

func TestDayOffRepositoryCreateAndList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDayOffRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO day_offs")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	dayOff := &models.DayOff{
		Name:     "New Year",
		StartsAt: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Create(context.Background(), dayOff))
	require.NotEmpty(t, dayOff.ID)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, starts_at, ends_at, recur_weekly, created_at, updated_at FROM day_offs ORDER BY starts_at ASC")).
		WillReturnRows(dayOffRows().
			AddRow(dayOff.ID, dayOff.Name, dayOff.StartsAt, dayOff.EndsAt, false, time.Now(), time.Now()))

	dayOffs, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, dayOffs, 1)
	require.Equal(t, "New Year", dayOffs[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDayOffRepositoryListRelevant(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDayOffRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM day_offs WHERE recur_weekly OR (starts_at < $2 AND ends_at > $1)")).
		WithArgs(
			time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
		).
		WillReturnRows(dayOffRows().
			AddRow("off-1", "Weekly closure", time.Now(), time.Now().Add(2*time.Hour), true, time.Now(), time.Now()))

	dayOffs, err := repo.ListRelevant(context.Background(),
		time.Date(2024, time.January, 1, 12, 30, 0, 0, time.UTC),
		time.Date(2024, time.January, 31, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, dayOffs, 1)
	require.True(t, dayOffs[0].RecurWeekly)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDayOffRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDayOffRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE day_offs SET name = ")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	dayOff := &models.DayOff{
		ID:       "off-1",
		Name:     "Renamed",
		StartsAt: time.Now(),
		EndsAt:   time.Now().Add(time.Hour),
	}
	require.NoError(t, repo.Update(context.Background(), dayOff))
	require.False(t, dayOff.UpdatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDayOffRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewDayOffRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM day_offs WHERE id = $1")).
		WithArgs("off-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM day_offs WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := repo.Delete(context.Background(), "off-1")
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = repo.Delete(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}
