package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/pianova/piano-adm-api/internal/models"
)

// SlotRepository is the authoritative store for scheduled occurrences.
type SlotRepository struct {
	db *sqlx.DB
}

// NewSlotRepository creates a new slot repository.
func NewSlotRepository(db *sqlx.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

const slotColumns = "id, class_id, room_id, date, shift, status, instructor_id, note, created_at, updated_at"

func (r *SlotRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns slots matching the filter ordered by (date, shift) ascending.
func (r *SlotRepository) List(ctx context.Context, filter models.SlotFilter) ([]models.Slot, int, error) {
	base := "FROM slots s WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("s.date >= $%d", len(args)+1))
		args = append(args, models.DateOnly(*filter.DateFrom))
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("s.date <= $%d", len(args)+1))
		args = append(args, models.DateOnly(*filter.DateTo))
	}
	if len(filter.Shifts) > 0 {
		ordinals := make([]int64, 0, len(filter.Shifts))
		for _, sh := range filter.Shifts {
			ordinals = append(ordinals, int64(sh))
		}
		conditions = append(conditions, fmt.Sprintf("s.shift = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(ordinals))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses = append(statuses, string(st))
		}
		conditions = append(conditions, fmt.Sprintf("s.status = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(statuses))
	}
	if len(filter.RoomIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("s.room_id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.RoomIDs))
	}
	if len(filter.ClassIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("s.class_id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.ClassIDs))
	}
	if len(filter.InstructorIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("s.instructor_id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.InstructorIDs))
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM attendance_records ar WHERE ar.slot_id = s.id AND ar.student_id = $%d)", len(args)+1))
		args = append(args, filter.StudentID)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 500 {
		size = 100
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT s.%s %s ORDER BY s.date ASC, s.shift ASC LIMIT %d OFFSET %d",
		strings.ReplaceAll(slotColumns, ", ", ", s."), base, size, offset)
	var slots []models.Slot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list slots: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count slots: %w", err)
	}

	return slots, total, nil
}

// FindByID loads a slot by id.
func (r *SlotRepository) FindByID(ctx context.Context, id string) (*models.Slot, error) {
	query := fmt.Sprintf("SELECT %s FROM slots WHERE id = $1", slotColumns)
	var slot models.Slot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// ListActiveAt returns every non-cancelled slot occupying the shift on any
// of the given dates. The scheduling engine uses the result as its
// conflict snapshot.
func (r *SlotRepository) ListActiveAt(ctx context.Context, exec sqlx.ExtContext, dates []time.Time, shift models.Shift) ([]models.Slot, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	normalized := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		normalized = append(normalized, models.DateOnly(d))
	}
	query := fmt.Sprintf("SELECT %s FROM slots WHERE date = ANY($1) AND shift = $2 AND status <> $3 ORDER BY date ASC, shift ASC", slotColumns)
	var slots []models.Slot
	if err := sqlx.SelectContext(ctx, r.exec(exec), &slots, query, pq.Array(normalized), int(shift), string(models.SlotStatusCancelled)); err != nil {
		return nil, fmt.Errorf("list active slots: %w", err)
	}
	return slots, nil
}

// ListActiveInRange returns non-cancelled slots between two dates
// regardless of shift.
func (r *SlotRepository) ListActiveInRange(ctx context.Context, exec sqlx.ExtContext, from, to time.Time) ([]models.Slot, error) {
	query := fmt.Sprintf("SELECT %s FROM slots WHERE date >= $1 AND date <= $2 AND status <> $3 ORDER BY date ASC, shift ASC", slotColumns)
	var slots []models.Slot
	if err := sqlx.SelectContext(ctx, r.exec(exec), &slots, query, models.DateOnly(from), models.DateOnly(to), string(models.SlotStatusCancelled)); err != nil {
		return nil, fmt.Errorf("list active slots in range: %w", err)
	}
	return slots, nil
}

// ListByClass returns the class's slots ordered by (date, shift).
func (r *SlotRepository) ListByClass(ctx context.Context, classID string) ([]models.Slot, error) {
	query := fmt.Sprintf("SELECT %s FROM slots WHERE class_id = $1 ORDER BY date ASC, shift ASC", slotColumns)
	var slots []models.Slot
	if err := r.db.SelectContext(ctx, &slots, query, classID); err != nil {
		return nil, fmt.Errorf("list slots by class: %w", err)
	}
	return slots, nil
}

// Create stores a new slot record.
func (r *SlotRepository) Create(ctx context.Context, exec sqlx.ExtContext, slot *models.Slot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now
	slot.Date = models.DateOnly(slot.Date)

	const query = `INSERT INTO slots (id, class_id, room_id, date, shift, status, instructor_id, note, created_at, updated_at)
VALUES (:id, :class_id, :room_id, :date, :shift, :status, :instructor_id, :note, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, slot); err != nil {
		return fmt.Errorf("create slot: %w", err)
	}
	return nil
}

// Update modifies a slot record.
func (r *SlotRepository) Update(ctx context.Context, exec sqlx.ExtContext, slot *models.Slot) error {
	slot.UpdatedAt = time.Now().UTC()
	slot.Date = models.DateOnly(slot.Date)
	const query = `UPDATE slots SET class_id = :class_id, room_id = :room_id, date = :date, shift = :shift, status = :status, instructor_id = :instructor_id, note = :note, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, slot); err != nil {
		return fmt.Errorf("update slot: %w", err)
	}
	return nil
}

// Delete removes a slot by id. Callers enforce that only SCHEDULED slots
// are hard-deleted.
func (r *SlotRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM slots WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	return nil
}

// CancelBatch soft-cancels the given slots.
func (r *SlotRepository) CancelBatch(ctx context.Context, exec sqlx.ExtContext, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `UPDATE slots SET status = $1, updated_at = $2 WHERE id = ANY($3)`
	if _, err := r.exec(exec).ExecContext(ctx, query, string(models.SlotStatusCancelled), time.Now().UTC(), pq.Array(ids)); err != nil {
		return fmt.Errorf("cancel slots: %w", err)
	}
	return nil
}

// ReassignClass moves the given slots to another class (merge).
func (r *SlotRepository) ReassignClass(ctx context.Context, exec sqlx.ExtContext, ids []string, destClassID string) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `UPDATE slots SET class_id = $1, updated_at = $2 WHERE id = ANY($3)`
	if _, err := r.exec(exec).ExecContext(ctx, query, destClassID, time.Now().UTC(), pq.Array(ids)); err != nil {
		return fmt.Errorf("reassign slots: %w", err)
	}
	return nil
}

// CountActiveByRoom reports how many non-cancelled slots reference a room.
func (r *SlotRepository) CountActiveByRoom(ctx context.Context, roomID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM slots WHERE room_id = $1 AND status <> $2`, roomID, string(models.SlotStatusCancelled)); err != nil {
		return 0, fmt.Errorf("count slots by room: %w", err)
	}
	return count, nil
}
