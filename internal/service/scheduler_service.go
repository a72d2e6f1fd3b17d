package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/pianova/piano-adm-api/internal/models"
	"github.com/pianova/piano-adm-api/pkg/config"
	appErrors "github.com/pianova/piano-adm-api/pkg/errors"
)

type schedulerClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ClassStatus) error
	UpdateScheduleMeta(ctx context.Context, exec sqlx.ExtContext, id string, pattern *models.SchedulePattern) error
}

type schedulerSlotRepository interface {
	ListByClass(ctx context.Context, classID string) ([]models.Slot, error)
	ListActiveAt(ctx context.Context, exec sqlx.ExtContext, dates []time.Time, shift models.Shift) ([]models.Slot, error)
	ListActiveInRange(ctx context.Context, exec sqlx.ExtContext, from, to time.Time) ([]models.Slot, error)
	Create(ctx context.Context, exec sqlx.ExtContext, slot *models.Slot) error
	Update(ctx context.Context, exec sqlx.ExtContext, slot *models.Slot) error
	CancelBatch(ctx context.Context, exec sqlx.ExtContext, ids []string) error
	ReassignClass(ctx context.Context, exec sqlx.ExtContext, ids []string, destClassID string) error
}

type schedulerAttendanceRepository interface {
	SeedRoster(ctx context.Context, exec sqlx.ExtContext, slotID string, studentIDs []string) error
	HasMarkedRecords(ctx context.Context, slotIDs []string) (bool, error)
}

type schedulerEnrollmentRepository interface {
	ListStudentIDsByClass(ctx context.Context, classID string) ([]string, error)
	CountByClass(ctx context.Context, classID string) (int, error)
}

type blackoutSource interface {
	Relevant(ctx context.Context, from, to time.Time) ([]models.DayOff, error)
}

type opRecorder interface {
	RecordSchedulingOp(op, outcome string)
}

// SchedulerService is the bulk scheduling engine. Every multi-slot
// operation runs as one transaction with a dry-run conflict pre-check,
// so callers never observe a half-applied schedule.
type SchedulerService struct {
	db          txProvider
	classes     schedulerClassRepository
	slots       schedulerSlotRepository
	rooms       roomSource
	attendance  schedulerAttendanceRepository
	enrollments schedulerEnrollmentRepository
	dayOffs     blackoutSource
	notifier    eventEmitter
	metrics     opRecorder
	locks       *resourceLocks
	cfg         config.SchedulerConfig
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewSchedulerService constructs the engine.
func NewSchedulerService(
	db txProvider,
	classes schedulerClassRepository,
	slots schedulerSlotRepository,
	rooms roomSource,
	attendance schedulerAttendanceRepository,
	enrollments schedulerEnrollmentRepository,
	dayOffs blackoutSource,
	notifier eventEmitter,
	metrics opRecorder,
	cfg config.SchedulerConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *SchedulerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LookaheadWeeks <= 0 {
		cfg.LookaheadWeeks = 52
	}
	if cfg.MaxBatchSlots <= 0 {
		cfg.MaxBatchSlots = 500
	}
	return &SchedulerService{
		db:          db,
		classes:     classes,
		slots:       slots,
		rooms:       rooms,
		attendance:  attendance,
		enrollments: enrollments,
		dayOffs:     dayOffs,
		notifier:    notifier,
		metrics:     metrics,
		locks:       newResourceLocks(),
		cfg:         cfg,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// ScheduleRequest is the recurring pattern a class is scheduled with.
type ScheduleRequest struct {
	DaysOfWeek []int     `json:"days_of_week" validate:"required,min=1,dive,min=0,max=6"`
	Shift      int       `json:"shift" validate:"min=0"`
	StartWeek  time.Time `json:"start_week" validate:"required"`
	RoomID     string    `json:"room_id" validate:"required"`
}

// MergeResult reports what a merge did, including the advisory
// schedule-mismatch warning.
type MergeResult struct {
	MovedSlotIDs []string `json:"moved_slot_ids"`
	Warnings     []string `json:"warnings,omitempty"`
}

// Schedule generates the class's requiredSlotCount occurrences from the
// pattern, skipping blacked-out dates, and commits them atomically.
func (s *SchedulerService) Schedule(ctx context.Context, scope models.Scope, classID string, req ScheduleRequest) ([]models.Slot, error) {
	slots, err := s.schedule(ctx, scope, classID, req)
	s.record("SCHEDULE", err)
	return slots, err
}

func (s *SchedulerService) schedule(ctx context.Context, scope models.Scope, classID string, req ScheduleRequest) ([]models.Slot, error) {
	if !scope.CanMutate() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "scheduling requires staff access")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	shift := models.Shift(req.Shift)
	if !shift.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid shift ordinal")
	}
	startWeek := models.DateOnly(req.StartWeek)
	if !models.IsMonday(startWeek) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start week must be a Monday")
	}
	pattern := models.SchedulePattern{Days: req.DaysOfWeek, Shift: shift}.Normalize()
	if len(pattern.Days) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "days of week must not be empty")
	}

	class, err := s.loadClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if class.Status == models.ClassStatusDisabled {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class is disabled")
	}
	if class.RequiredSlotCount > s.cfg.MaxBatchSlots {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("required slot count exceeds the %d slot batch limit", s.cfg.MaxBatchSlots))
	}

	if _, err := s.rooms.RequireUsable(ctx, req.RoomID); err != nil {
		return nil, err
	}

	classSlots, err := s.slots.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class slots")
	}
	if hasActiveSchedule(classSlots) {
		return nil, appErrors.Clone(appErrors.ErrAlreadyScheduled, "")
	}

	dates, err := s.enumerateDates(ctx, pattern, startWeek, class.RequiredSlotCount)
	if err != nil {
		return nil, err
	}

	candidates := make([]models.Slot, 0, len(dates))
	for _, date := range dates {
		candidates = append(candidates, models.Slot{
			ClassID:      classID,
			RoomID:       req.RoomID,
			Date:         date,
			Shift:        shift,
			Status:       models.SlotStatusScheduled,
			InstructorID: class.InstructorID,
		})
	}

	unlock := s.locks.Acquire(roomLockKey(req.RoomID), instructorLockKeyPtr(class.InstructorID))
	defer unlock()

	existing, err := s.slots.ListActiveAt(ctx, nil, dates, shift)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load conflicting slots")
	}
	if err := checkAllocation(candidates, existing, nil); err != nil {
		return nil, err
	}

	roster, err := s.enrollments.ListStudentIDsByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	err = runInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for i := range candidates {
			if err := s.slots.Create(ctx, tx, &candidates[i]); err != nil {
				return err
			}
			if err := s.attendance.SeedRoster(ctx, tx, candidates[i].ID, roster); err != nil {
				return err
			}
		}
		return s.classes.UpdateScheduleMeta(ctx, tx, classID, &pattern)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist schedule")
	}

	for i := range candidates {
		s.notifier.Emit(models.DomainEvent{Type: models.EventSlotCreated, Slot: &candidates[i]})
	}
	return candidates, nil
}

// enumerateDates walks week by week from startWeek, adding the pattern's
// weekdays in ascending order and skipping blacked-out occurrences,
// until count dates are collected or the lookahead window runs out.
func (s *SchedulerService) enumerateDates(ctx context.Context, pattern models.SchedulePattern, startWeek time.Time, count int) ([]time.Time, error) {
	horizon := startWeek.AddDate(0, 0, s.cfg.LookaheadWeeks*7)
	dayOffs, err := s.dayOffs.Relevant(ctx, startWeek, horizon)
	if err != nil {
		return nil, err
	}

	dates := make([]time.Time, 0, count)
	for week := 0; week < s.cfg.LookaheadWeeks && len(dates) < count; week++ {
		weekStart := startWeek.AddDate(0, 0, week*7)
		for _, day := range pattern.Days {
			if len(dates) >= count {
				break
			}
			date := weekStart.AddDate(0, 0, day)
			if coveredByAny(dayOffs, date, pattern.Shift) {
				continue
			}
			dates = append(dates, date)
		}
	}
	if len(dates) < count {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("only %d of %d occurrences fit within %d weeks; too many dates are blacked out", len(dates), count, s.cfg.LookaheadWeeks))
	}
	return dates, nil
}

// DeleteSchedule soft-cancels the class's scheduled and ongoing slots
// and clears the stored pattern. Finished slots are left untouched
// unless includeFinished is set, and even then only when no attendance
// has been recorded on them. A second call is a no-op success.
func (s *SchedulerService) DeleteSchedule(ctx context.Context, scope models.Scope, classID string, includeFinished bool) error {
	err := s.deleteSchedule(ctx, scope, classID, includeFinished)
	s.record("DELETE_SCHEDULE", err)
	return err
}

func (s *SchedulerService) deleteSchedule(ctx context.Context, scope models.Scope, classID string, includeFinished bool) error {
	if !scope.CanMutate() {
		return appErrors.Clone(appErrors.ErrForbidden, "scheduling requires staff access")
	}
	if _, err := s.loadClass(ctx, classID); err != nil {
		return err
	}

	classSlots, err := s.slots.ListByClass(ctx, classID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class slots")
	}

	var toCancel []models.Slot
	var finishedIDs []string
	for _, slot := range classSlots {
		switch slot.Status {
		case models.SlotStatusScheduled, models.SlotStatusOngoing:
			toCancel = append(toCancel, slot)
		case models.SlotStatusFinished:
			finishedIDs = append(finishedIDs, slot.ID)
		}
	}

	if includeFinished && len(finishedIDs) > 0 {
		marked, err := s.attendance.HasMarkedRecords(ctx, finishedIDs)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect attendance")
		}
		if marked {
			return appErrors.Clone(appErrors.ErrCannotClear, "")
		}
		for _, slot := range classSlots {
			if slot.Status == models.SlotStatusFinished {
				toCancel = append(toCancel, slot)
			}
		}
	}

	ids := make([]string, 0, len(toCancel))
	for _, slot := range toCancel {
		ids = append(ids, slot.ID)
	}

	err = runInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.slots.CancelBatch(ctx, tx, ids); err != nil {
			return err
		}
		return s.classes.UpdateScheduleMeta(ctx, tx, classID, nil)
	})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear schedule")
	}

	for i := range toCancel {
		toCancel[i].Status = models.SlotStatusCancelled
		s.notifier.Emit(models.DomainEvent{Type: models.EventSlotCancelled, Slot: &toCancel[i]})
	}
	return nil
}

// Delay moves every future slot of the class forward by weeks*7 days,
// re-checking conflicts on the new dates. Finished and past slots keep
// their dates and history.
func (s *SchedulerService) Delay(ctx context.Context, scope models.Scope, classID string, weeks int) ([]models.Slot, error) {
	slots, err := s.delay(ctx, scope, classID, weeks)
	s.record("DELAY", err)
	return slots, err
}

func (s *SchedulerService) delay(ctx context.Context, scope models.Scope, classID string, weeks int) ([]models.Slot, error) {
	if !scope.CanMutate() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "scheduling requires staff access")
	}
	if weeks < 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "delay must be at least one week")
	}
	if _, err := s.loadClass(ctx, classID); err != nil {
		return nil, err
	}

	classSlots, err := s.slots.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class slots")
	}

	today := models.DateOnly(s.now())
	var moving []models.Slot
	exclude := make(map[string]struct{})
	for _, slot := range classSlots {
		if !slot.Status.Active() || slot.Status == models.SlotStatusFinished {
			continue
		}
		if slot.Date.Before(today) {
			continue
		}
		moved := slot
		moved.Date = slot.Date.AddDate(0, 0, weeks*7)
		moving = append(moving, moved)
		exclude[slot.ID] = struct{}{}
	}
	if len(moving) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(moving)*2)
	for _, slot := range moving {
		keys = append(keys, roomLockKey(slot.RoomID), instructorLockKeyPtr(slot.InstructorID))
	}
	unlock := s.locks.Acquire(keys...)
	defer unlock()

	from, to := moving[0].Date, moving[0].Date
	for _, slot := range moving[1:] {
		if slot.Date.Before(from) {
			from = slot.Date
		}
		if slot.Date.After(to) {
			to = slot.Date
		}
	}
	existing, err := s.slots.ListActiveInRange(ctx, nil, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load conflicting slots")
	}
	if err := checkAllocation(moving, existing, exclude); err != nil {
		return nil, err
	}

	err = runInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for i := range moving {
			if err := s.slots.Update(ctx, tx, &moving[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delay schedule")
	}

	for i := range moving {
		s.notifier.Emit(models.DomainEvent{Type: models.EventSlotUpdated, Slot: &moving[i]})
	}
	return moving, nil
}

// Publish transitions a class NOT_STARTED -> ONGOING once it has at
// least one scheduled slot and one enrolled student. Publishing an
// already ongoing class is a no-op success.
func (s *SchedulerService) Publish(ctx context.Context, scope models.Scope, classID string) error {
	err := s.publish(ctx, scope, classID)
	s.record("PUBLISH", err)
	return err
}

func (s *SchedulerService) publish(ctx context.Context, scope models.Scope, classID string) error {
	if !scope.CanMutate() {
		return appErrors.Clone(appErrors.ErrForbidden, "scheduling requires staff access")
	}
	class, err := s.loadClass(ctx, classID)
	if err != nil {
		return err
	}
	switch class.Status {
	case models.ClassStatusOngoing:
		return nil
	case models.ClassStatusNotStarted:
	default:
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("class in status %s cannot be published", class.Status))
	}

	classSlots, err := s.slots.ListByClass(ctx, classID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class slots")
	}
	scheduled := 0
	for _, slot := range classSlots {
		if slot.Status == models.SlotStatusScheduled || slot.Status == models.SlotStatusOngoing {
			scheduled++
		}
	}
	if scheduled == 0 {
		return appErrors.Clone(appErrors.ErrNotReady, "class has no scheduled slots")
	}

	enrolled, err := s.enrollments.CountByClass(ctx, classID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	if enrolled == 0 {
		return appErrors.Clone(appErrors.ErrNotReady, "class has no enrolled students")
	}

	if err := s.classes.UpdateStatus(ctx, nil, classID, models.ClassStatusOngoing); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish class")
	}

	s.notifier.Emit(models.DomainEvent{Type: models.EventClassPublished, ClassID: classID})
	return nil
}

// Merge reassigns the source class's remaining slots to the destination
// and disables the source. A pattern mismatch yields a warning, not an
// error; a (date, shift) collision between the two classes is blocking.
func (s *SchedulerService) Merge(ctx context.Context, scope models.Scope, sourceClassID, destClassID string) (*MergeResult, error) {
	result, err := s.merge(ctx, scope, sourceClassID, destClassID)
	s.record("MERGE", err)
	return result, err
}

func (s *SchedulerService) merge(ctx context.Context, scope models.Scope, sourceClassID, destClassID string) (*MergeResult, error) {
	if !scope.CanMutate() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "scheduling requires staff access")
	}
	if sourceClassID == destClassID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "source and destination must differ")
	}

	source, err := s.loadClass(ctx, sourceClassID)
	if err != nil {
		return nil, err
	}
	dest, err := s.loadClass(ctx, destClassID)
	if err != nil {
		return nil, err
	}
	if source.Status == models.ClassStatusDisabled {
		return nil, appErrors.Clone(appErrors.ErrValidation, "source class is already disabled")
	}
	if dest.Status == models.ClassStatusDisabled || dest.Status == models.ClassStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrValidation, "destination class cannot accept slots")
	}

	result := &MergeResult{}
	if sp, dp := source.Pattern(), dest.Pattern(); sp != nil && dp != nil && !sp.Compatible(*dp) {
		result.Warnings = append(result.Warnings, "schedule_mismatch")
	}

	sourceSlots, err := s.slots.ListByClass(ctx, sourceClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load source slots")
	}
	destSlots, err := s.slots.ListByClass(ctx, destClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load destination slots")
	}

	occupied := make(map[occupancyKey]models.Slot)
	for _, slot := range destSlots {
		if !slot.Status.Active() {
			continue
		}
		occupied[occupancyKey{resource: destClassID, date: models.DateOnly(slot.Date), shift: slot.Shift}] = slot
	}

	var moving []string
	for _, slot := range sourceSlots {
		if !slot.Status.Active() || slot.Status == models.SlotStatusFinished {
			continue
		}
		key := occupancyKey{resource: destClassID, date: models.DateOnly(slot.Date), shift: slot.Shift}
		if hit, ok := occupied[key]; ok {
			return nil, appErrors.Wrap(
				&models.SlotConflictError{
					Dimension: models.ConflictDimensionRoom,
					Message:   fmt.Sprintf("destination already holds a slot at this time (slot %s)", hit.ID),
					Conflict: models.SlotConflict{
						SlotID:    hit.ID,
						ClassID:   hit.ClassID,
						RoomID:    hit.RoomID,
						Date:      models.DateOnly(hit.Date),
						Shift:     hit.Shift,
						Dimension: models.ConflictDimensionRoom,
					},
				},
				appErrors.ErrConflict.Code, appErrors.ErrConflict.Status,
				fmt.Sprintf("destination already holds a slot at this time (slot %s)", hit.ID),
			)
		}
		moving = append(moving, slot.ID)
	}

	err = runInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.slots.ReassignClass(ctx, tx, moving, destClassID); err != nil {
			return err
		}
		if err := s.classes.UpdateScheduleMeta(ctx, tx, sourceClassID, nil); err != nil {
			return err
		}
		return s.classes.UpdateStatus(ctx, tx, sourceClassID, models.ClassStatusDisabled)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to merge classes")
	}

	result.MovedSlotIDs = moving
	return result, nil
}

func hasActiveSchedule(slots []models.Slot) bool {
	for _, slot := range slots {
		if slot.Status == models.SlotStatusScheduled || slot.Status == models.SlotStatusOngoing {
			return true
		}
	}
	return false
}

func coveredByAny(dayOffs []models.DayOff, date time.Time, shift models.Shift) bool {
	for _, d := range dayOffs {
		if d.Covers(date, shift) {
			return true
		}
	}
	return false
}

func (s *SchedulerService) record(op string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = appErrors.FromError(err).Code
	}
	s.metrics.RecordSchedulingOp(op, outcome)
}

func (s *SchedulerService) loadClass(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.classes.FindByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}
