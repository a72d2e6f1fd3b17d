package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pianova/piano-adm-api/internal/models"
)

// DayOffRepository provides persistence for blackout intervals.
type DayOffRepository struct {
	db *sqlx.DB
}

// NewDayOffRepository creates a new day-off repository.
func NewDayOffRepository(db *sqlx.DB) *DayOffRepository {
	return &DayOffRepository{db: db}
}

const dayOffColumns = "id, name, starts_at, ends_at, recur_weekly, created_at, updated_at"

// List returns every stored day-off ordered by start time.
func (r *DayOffRepository) List(ctx context.Context) ([]models.DayOff, error) {
	query := fmt.Sprintf("SELECT %s FROM day_offs ORDER BY starts_at ASC", dayOffColumns)
	var dayOffs []models.DayOff
	if err := r.db.SelectContext(ctx, &dayOffs, query); err != nil {
		return nil, fmt.Errorf("list day offs: %w", err)
	}
	return dayOffs, nil
}

// ListRelevant returns day-offs that can affect the date range: intervals
// overlapping it plus every recurring interval.
func (r *DayOffRepository) ListRelevant(ctx context.Context, from, to time.Time) ([]models.DayOff, error) {
	query := fmt.Sprintf("SELECT %s FROM day_offs WHERE recur_weekly OR (starts_at < $2 AND ends_at > $1) ORDER BY starts_at ASC", dayOffColumns)
	var dayOffs []models.DayOff
	if err := r.db.SelectContext(ctx, &dayOffs, query, models.DateOnly(from), models.DateOnly(to).AddDate(0, 0, 1)); err != nil {
		return nil, fmt.Errorf("list relevant day offs: %w", err)
	}
	return dayOffs, nil
}

// FindByID loads a day-off by id.
func (r *DayOffRepository) FindByID(ctx context.Context, id string) (*models.DayOff, error) {
	query := fmt.Sprintf("SELECT %s FROM day_offs WHERE id = $1", dayOffColumns)
	var dayOff models.DayOff
	if err := r.db.GetContext(ctx, &dayOff, query, id); err != nil {
		return nil, err
	}
	return &dayOff, nil
}

// Create stores a new day-off record.
func (r *DayOffRepository) Create(ctx context.Context, dayOff *models.DayOff) error {
	if dayOff.ID == "" {
		dayOff.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if dayOff.CreatedAt.IsZero() {
		dayOff.CreatedAt = now
	}
	dayOff.UpdatedAt = now

	const query = `INSERT INTO day_offs (id, name, starts_at, ends_at, recur_weekly, created_at, updated_at) VALUES (:id, :name, :starts_at, :ends_at, :recur_weekly, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, dayOff); err != nil {
		return fmt.Errorf("create day off: %w", err)
	}
	return nil
}

// Update modifies a day-off record.
func (r *DayOffRepository) Update(ctx context.Context, dayOff *models.DayOff) error {
	dayOff.UpdatedAt = time.Now().UTC()
	const query = `UPDATE day_offs SET name = :name, starts_at = :starts_at, ends_at = :ends_at, recur_weekly = :recur_weekly, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, dayOff); err != nil {
		return fmt.Errorf("update day off: %w", err)
	}
	return nil
}

// Delete removes a day-off by id.
func (r *DayOffRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM day_offs WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete day off: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete day off: %w", err)
	}
	return affected > 0, nil
}
