package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/pianova/piano-adm-api/internal/models"
	"github.com/pianova/piano-adm-api/pkg/config"
	appErrors "github.com/pianova/piano-adm-api/pkg/errors"
)

type attendanceRepository interface {
	ListBySlot(ctx context.Context, slotID string) ([]models.AttendanceRecord, error)
	MarkBatch(ctx context.Context, exec sqlx.ExtContext, slotID string, studentIDs []string, status models.AttendanceStatus) error
	SummaryBySlot(ctx context.Context, slotID string) (*models.AttendanceSummary, error)
}

type slotFinder interface {
	FindByID(ctx context.Context, id string) (*models.Slot, error)
}

// AttendanceService marks and reads slot rosters. Marking overwrites
// the listed students only; unlisted students stay UNMARKED.
type AttendanceService struct {
	db        txProvider
	records   attendanceRepository
	slots     slotFinder
	cfg       config.AttendanceConfig
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAttendanceService constructs the service.
func NewAttendanceService(db txProvider, records attendanceRepository, slots slotFinder, cfg config.AttendanceConfig, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.GraceWindow <= 0 {
		cfg.GraceWindow = 48 * time.Hour
	}
	return &AttendanceService{db: db, records: records, slots: slots, cfg: cfg, validator: validate, logger: logger, now: time.Now}
}

// MarkRequest lists the students to overwrite for one slot.
type MarkRequest struct {
	Present []string `json:"present"`
	Absent  []string `json:"absent"`
}

// Mark records attendance for the listed students. The slot must be
// ongoing, or finished within the grace window after its day.
func (s *AttendanceService) Mark(ctx context.Context, scope models.Scope, slotID string, req MarkRequest) error {
	slot, err := s.loadSlot(ctx, slotID)
	if err != nil {
		return err
	}
	if err := s.authorize(scope, slot); err != nil {
		return err
	}
	if len(req.Present) == 0 && len(req.Absent) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "no students listed")
	}

	seen := make(map[string]struct{}, len(req.Present))
	for _, id := range req.Present {
		seen[id] = struct{}{}
	}
	for _, id := range req.Absent {
		if _, dup := seen[id]; dup {
			return appErrors.Clone(appErrors.ErrValidation, "student listed as both present and absent")
		}
	}

	now := s.now()
	switch slot.Status {
	case models.SlotStatusOngoing:
	case models.SlotStatusFinished:
		deadline := models.DateOnly(slot.Date).AddDate(0, 0, 1).Add(s.cfg.GraceWindow)
		if now.After(deadline) {
			return appErrors.Clone(appErrors.ErrInvalidSlot, "attendance window for this slot has closed")
		}
	default:
		return appErrors.Clone(appErrors.ErrInvalidSlot, "")
	}
	if models.DateOnly(slot.Date).After(models.DateOnly(now)) {
		return appErrors.Clone(appErrors.ErrInvalidSlot, "slot has not taken place yet")
	}

	roster, err := s.records.ListBySlot(ctx, slotID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	onRoster := make(map[string]struct{}, len(roster))
	for _, record := range roster {
		onRoster[record.StudentID] = struct{}{}
	}
	for _, id := range append(append([]string{}, req.Present...), req.Absent...) {
		if _, ok := onRoster[id]; !ok {
			return appErrors.Clone(appErrors.ErrValidation, "student "+id+" is not on the slot roster")
		}
	}

	err = runInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.records.MarkBatch(ctx, tx, slotID, req.Present, models.AttendanceStatusPresent); err != nil {
			return err
		}
		return s.records.MarkBatch(ctx, tx, slotID, req.Absent, models.AttendanceStatusAbsent)
	})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}
	return nil
}

// ListBySlot returns the slot's roster with current marks.
func (s *AttendanceService) ListBySlot(ctx context.Context, scope models.Scope, slotID string) ([]models.AttendanceRecord, error) {
	slot, err := s.loadSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(scope, slot); err != nil {
		return nil, err
	}
	records, err := s.records.ListBySlot(ctx, slotID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	return records, nil
}

// Summary returns aggregate counts for the slot.
func (s *AttendanceService) Summary(ctx context.Context, scope models.Scope, slotID string) (*models.AttendanceSummary, error) {
	slot, err := s.loadSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(scope, slot); err != nil {
		return nil, err
	}
	summary, err := s.records.SummaryBySlot(ctx, slotID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise attendance")
	}
	return summary, nil
}

// authorize allows staff, and the instructor the slot belongs to.
func (s *AttendanceService) authorize(scope models.Scope, slot *models.Slot) error {
	if scope.Unrestricted() {
		return nil
	}
	if scope.InstructorID != "" && slot.InstructorID != nil && *slot.InstructorID == scope.InstructorID {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "attendance is restricted to the slot's instructor")
}

func (s *AttendanceService) loadSlot(ctx context.Context, id string) (*models.Slot, error) {
	slot, err := s.slots.FindByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot")
	}
	return slot, nil
}
