package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/pianova/piano-adm-api/internal/models"
	appErrors "github.com/pianova/piano-adm-api/pkg/errors"
)

type slotRepository interface {
	List(ctx context.Context, filter models.SlotFilter) ([]models.Slot, int, error)
	FindByID(ctx context.Context, id string) (*models.Slot, error)
	ListActiveAt(ctx context.Context, exec sqlx.ExtContext, dates []time.Time, shift models.Shift) ([]models.Slot, error)
	Create(ctx context.Context, exec sqlx.ExtContext, slot *models.Slot) error
	Update(ctx context.Context, exec sqlx.ExtContext, slot *models.Slot) error
	Delete(ctx context.Context, id string) error
}

type classFinder interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type roomSource interface {
	RequireUsable(ctx context.Context, id string) (*models.Room, error)
}

type rosterSource interface {
	ListStudentIDsByClass(ctx context.Context, classID string) ([]string, error)
}

type rosterSeeder interface {
	SeedRoster(ctx context.Context, exec sqlx.ExtContext, slotID string, studentIDs []string) error
}

type blackoutChecker interface {
	IsBlackedOut(ctx context.Context, date time.Time, shift models.Shift) (bool, error)
}

type eventEmitter interface {
	Emit(event models.DomainEvent)
}

// SlotService is the ad-hoc slot path: single-slot add, edit and
// delete plus the calendar query surface. Bulk operations (recurring
// schedules, delay, merge) live in SchedulerService.
type SlotService struct {
	db          txProvider
	slots       slotRepository
	classes     classFinder
	rooms       roomSource
	enrollments rosterSource
	attendance  rosterSeeder
	dayOffs     blackoutChecker
	notifier    eventEmitter
	locks       *resourceLocks
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewSlotService constructs the service.
func NewSlotService(
	db txProvider,
	slots slotRepository,
	classes classFinder,
	rooms roomSource,
	enrollments rosterSource,
	attendance rosterSeeder,
	dayOffs blackoutChecker,
	notifier eventEmitter,
	validate *validator.Validate,
	logger *zap.Logger,
) *SlotService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlotService{
		db:          db,
		slots:       slots,
		classes:     classes,
		rooms:       rooms,
		enrollments: enrollments,
		attendance:  attendance,
		dayOffs:     dayOffs,
		notifier:    notifier,
		locks:       newResourceLocks(),
		validator:   validate,
		logger:      logger,
	}
}

// AddSlotRequest describes a single ad-hoc slot.
type AddSlotRequest struct {
	ClassID      string    `json:"class_id" validate:"required"`
	RoomID       string    `json:"room_id" validate:"required"`
	Date         time.Time `json:"date" validate:"required"`
	Shift        int       `json:"shift" validate:"min=0"`
	InstructorID *string   `json:"instructor_id,omitempty"`
	Note         *string   `json:"note,omitempty"`
}

// EditSlotRequest patches an existing slot. Nil fields are left alone.
type EditSlotRequest struct {
	RoomID       *string            `json:"room_id,omitempty"`
	Date         *time.Time         `json:"date,omitempty"`
	Shift        *int               `json:"shift,omitempty"`
	Status       *models.SlotStatus `json:"status,omitempty"`
	InstructorID *string            `json:"instructor_id,omitempty"`
	Note         *string            `json:"note,omitempty"`
}

// Add creates one slot after the full conflict check. The class's
// enrolled students seed the attendance roster in the same transaction.
func (s *SlotService) Add(ctx context.Context, scope models.Scope, req AddSlotRequest) (*models.Slot, error) {
	if !scope.CanMutate() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "slot management requires staff access")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload")
	}
	shift := models.Shift(req.Shift)
	if !shift.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid shift ordinal")
	}
	date := models.DateOnly(req.Date)

	class, err := s.loadClass(ctx, req.ClassID)
	if err != nil {
		return nil, err
	}
	if class.Status == models.ClassStatusDisabled {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class is disabled")
	}
	if _, err := s.rooms.RequireUsable(ctx, req.RoomID); err != nil {
		return nil, err
	}

	blacked, err := s.dayOffs.IsBlackedOut(ctx, date, shift)
	if err != nil {
		return nil, err
	}
	if blacked {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date falls on a day off")
	}

	instructorID := req.InstructorID
	if instructorID == nil {
		instructorID = class.InstructorID
	}

	slot := models.Slot{
		ClassID:      req.ClassID,
		RoomID:       req.RoomID,
		Date:         date,
		Shift:        shift,
		Status:       models.SlotStatusScheduled,
		InstructorID: instructorID,
		Note:         req.Note,
	}

	unlock := s.locks.Acquire(roomLockKey(slot.RoomID), instructorLockKeyPtr(slot.InstructorID))
	defer unlock()

	existing, err := s.slots.ListActiveAt(ctx, nil, []time.Time{date}, shift)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load conflicting slots")
	}
	if err := checkAllocation([]models.Slot{slot}, existing, nil); err != nil {
		return nil, err
	}

	roster, err := s.enrollments.ListStudentIDsByClass(ctx, slot.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	err = runInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.slots.Create(ctx, tx, &slot); err != nil {
			return err
		}
		return s.attendance.SeedRoster(ctx, tx, slot.ID, roster)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create slot")
	}

	s.notifier.Emit(models.DomainEvent{Type: models.EventSlotCreated, Slot: &slot})
	return &slot, nil
}

// Edit patches a slot, re-running the conflict check with the slot
// itself excluded when the allocation changes.
func (s *SlotService) Edit(ctx context.Context, scope models.Scope, id string, req EditSlotRequest) (*models.Slot, error) {
	if !scope.CanMutate() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "slot management requires staff access")
	}

	slot, err := s.loadSlot(ctx, id)
	if err != nil {
		return nil, err
	}
	if slot.Status == models.SlotStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cancelled slots cannot be edited")
	}

	if req.RoomID != nil {
		if _, err := s.rooms.RequireUsable(ctx, *req.RoomID); err != nil {
			return nil, err
		}
		slot.RoomID = *req.RoomID
	}
	if req.Date != nil {
		slot.Date = models.DateOnly(*req.Date)
	}
	if req.Shift != nil {
		shift := models.Shift(*req.Shift)
		if !shift.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid shift ordinal")
		}
		slot.Shift = shift
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown slot status")
		}
		slot.Status = *req.Status
	}
	if req.InstructorID != nil {
		if *req.InstructorID == "" {
			slot.InstructorID = nil
		} else {
			slot.InstructorID = req.InstructorID
		}
	}
	if req.Note != nil {
		slot.Note = req.Note
	}

	if req.Date != nil || req.Shift != nil {
		blacked, err := s.dayOffs.IsBlackedOut(ctx, slot.Date, slot.Shift)
		if err != nil {
			return nil, err
		}
		if blacked {
			return nil, appErrors.Clone(appErrors.ErrValidation, "date falls on a day off")
		}
	}

	unlock := s.locks.Acquire(roomLockKey(slot.RoomID), instructorLockKeyPtr(slot.InstructorID))
	defer unlock()

	if slot.Status.Active() {
		existing, err := s.slots.ListActiveAt(ctx, nil, []time.Time{slot.Date}, slot.Shift)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load conflicting slots")
		}
		exclude := map[string]struct{}{slot.ID: {}}
		if err := checkAllocation([]models.Slot{*slot}, existing, exclude); err != nil {
			return nil, err
		}
	}

	if err := s.slots.Update(ctx, nil, slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update slot")
	}

	eventType := models.EventSlotUpdated
	if slot.Status == models.SlotStatusCancelled {
		eventType = models.EventSlotCancelled
	}
	s.notifier.Emit(models.DomainEvent{Type: eventType, Slot: slot})
	return slot, nil
}

// Delete removes a slot. Slots that have progressed past SCHEDULED are
// soft-cancelled instead so attendance history survives.
func (s *SlotService) Delete(ctx context.Context, scope models.Scope, id string) error {
	if !scope.CanMutate() {
		return appErrors.Clone(appErrors.ErrForbidden, "slot management requires staff access")
	}

	slot, err := s.loadSlot(ctx, id)
	if err != nil {
		return err
	}

	switch slot.Status {
	case models.SlotStatusScheduled:
		if err := s.slots.Delete(ctx, id); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete slot")
		}
	case models.SlotStatusCancelled:
		return nil
	default:
		slot.Status = models.SlotStatusCancelled
		if err := s.slots.Update(ctx, nil, slot); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel slot")
		}
	}

	s.notifier.Emit(models.DomainEvent{Type: models.EventSlotCancelled, Slot: slot})
	return nil
}

// Query lists slots ordered by (date, shift). Teachers see their own
// slots, students the slots of classes they are enrolled in.
func (s *SlotService) Query(ctx context.Context, scope models.Scope, filter models.SlotFilter) ([]models.Slot, int, error) {
	if !scope.Unrestricted() {
		switch {
		case scope.InstructorID != "":
			filter.InstructorIDs = []string{scope.InstructorID}
		case scope.StudentID != "":
			filter.StudentID = scope.StudentID
		default:
			return nil, 0, appErrors.Clone(appErrors.ErrForbidden, "calendar access requires an account role")
		}
	}

	slots, total, err := s.slots.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list slots")
	}
	return slots, total, nil
}

// Get returns one slot, scope-checked the same way as Query.
func (s *SlotService) Get(ctx context.Context, scope models.Scope, id string) (*models.Slot, error) {
	slot, err := s.loadSlot(ctx, id)
	if err != nil {
		return nil, err
	}
	if scope.Unrestricted() {
		return slot, nil
	}
	switch {
	case scope.InstructorID != "":
		if slot.InstructorID == nil || *slot.InstructorID != scope.InstructorID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "slot belongs to another instructor")
		}
	case scope.StudentID != "":
		roster, err := s.enrollments.ListStudentIDsByClass(ctx, slot.ClassID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
		}
		enrolled := false
		for _, studentID := range roster {
			if studentID == scope.StudentID {
				enrolled = true
				break
			}
		}
		if !enrolled {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "slot belongs to a class the student is not enrolled in")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "calendar access requires an account role")
	}
	return slot, nil
}

func (s *SlotService) loadSlot(ctx context.Context, id string) (*models.Slot, error) {
	slot, err := s.slots.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot")
	}
	return slot, nil
}

func (s *SlotService) loadClass(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.classes.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

func instructorLockKeyPtr(id *string) string {
	if id == nil {
		return ""
	}
	return instructorLockKey(*id)
}
