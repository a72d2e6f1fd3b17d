package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/pianova/piano-adm-api/internal/models"
)

// AttendanceRepository manages per-slot attendance rosters.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository creates a new attendance repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const attendanceColumns = "id, slot_id, student_id, status, marked_at, created_at, updated_at"

func (r *AttendanceRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// SeedRoster creates UNMARKED records for every student on a new slot.
func (r *AttendanceRepository) SeedRoster(ctx context.Context, exec sqlx.ExtContext, slotID string, studentIDs []string) error {
	if len(studentIDs) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `INSERT INTO attendance_records (id, slot_id, student_id, status, created_at, updated_at)
VALUES (:id, :slot_id, :student_id, :status, :created_at, :updated_at)
ON CONFLICT (slot_id, student_id) DO NOTHING`

	for _, studentID := range studentIDs {
		record := models.AttendanceRecord{
			ID:        uuid.NewString(),
			SlotID:    slotID,
			StudentID: studentID,
			Status:    models.AttendanceStatusUnmarked,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, &record); err != nil {
			return fmt.Errorf("seed attendance roster: %w", err)
		}
	}
	return nil
}

// ListBySlot returns the slot roster ordered by student id.
func (r *AttendanceRepository) ListBySlot(ctx context.Context, slotID string) ([]models.AttendanceRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM attendance_records WHERE slot_id = $1 ORDER BY student_id ASC", attendanceColumns)
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, slotID); err != nil {
		return nil, fmt.Errorf("list attendance by slot: %w", err)
	}
	return records, nil
}

// MarkBatch overwrites the status of the listed roster entries.
func (r *AttendanceRepository) MarkBatch(ctx context.Context, exec sqlx.ExtContext, slotID string, studentIDs []string, status models.AttendanceStatus) error {
	if len(studentIDs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	const query = `UPDATE attendance_records SET status = $1, marked_at = $2, updated_at = $2 WHERE slot_id = $3 AND student_id = ANY($4)`
	if _, err := r.exec(exec).ExecContext(ctx, query, string(status), now, slotID, pq.Array(studentIDs)); err != nil {
		return fmt.Errorf("mark attendance batch: %w", err)
	}
	return nil
}

// HasMarkedRecords reports whether any of the slots carry a non-unmarked
// attendance record. DELETE_SCHEDULE uses this to protect history.
func (r *AttendanceRepository) HasMarkedRecords(ctx context.Context, slotIDs []string) (bool, error) {
	if len(slotIDs) == 0 {
		return false, nil
	}
	var count int
	const query = `SELECT COUNT(*) FROM attendance_records WHERE slot_id = ANY($1) AND status <> $2`
	if err := r.db.GetContext(ctx, &count, query, pq.Array(slotIDs), string(models.AttendanceStatusUnmarked)); err != nil {
		return false, fmt.Errorf("count marked attendance: %w", err)
	}
	return count > 0, nil
}

// SummaryBySlot aggregates roster marks for a slot.
func (r *AttendanceRepository) SummaryBySlot(ctx context.Context, slotID string) (*models.AttendanceSummary, error) {
	const query = `SELECT
COUNT(*) FILTER (WHERE status = 'PRESENT') AS present,
COUNT(*) FILTER (WHERE status = 'ABSENT') AS absent,
COUNT(*) FILTER (WHERE status = 'UNMARKED') AS unmarked,
COUNT(*) AS total
FROM attendance_records WHERE slot_id = $1`
	var summary models.AttendanceSummary
	if err := r.db.GetContext(ctx, &summary, query, slotID); err != nil {
		return nil, fmt.Errorf("attendance summary: %w", err)
	}
	return &summary, nil
}
