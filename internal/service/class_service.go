package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/pianova/piano-adm-api/internal/models"
	appErrors "github.com/pianova/piano-adm-api/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, exec sqlx.ExtContext, class *models.Class) error
}

type enrollmentRepository interface {
	ListStudentIDsByClass(ctx context.Context, classID string) ([]string, error)
	CountByClass(ctx context.Context, classID string) (int, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, classID, studentID string) (bool, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// ClassService manages the class lifecycle up to the scheduling
// handoff. Schedule-related transitions live in SchedulerService.
type ClassService struct {
	classes     classRepository
	enrollments enrollmentRepository
	users       userFinder
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewClassService constructs the service.
func NewClassService(classes classRepository, enrollments enrollmentRepository, users userFinder, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{classes: classes, enrollments: enrollments, users: users, validator: validate, logger: logger}
}

// CreateClassRequest describes the create payload. Instructor and
// schedule are assigned after creation.
type CreateClassRequest struct {
	Level             string `json:"level" validate:"required"`
	Name              string `json:"name" validate:"required"`
	Capacity          int    `json:"capacity" validate:"required,min=1"`
	RequiredSlotCount int    `json:"required_slot_count" validate:"required,min=1"`
	IsPublic          bool   `json:"is_public"`
}

// UpdateClassRequest describes the update payload.
type UpdateClassRequest struct {
	Level             string `json:"level" validate:"required"`
	Name              string `json:"name" validate:"required"`
	Capacity          int    `json:"capacity" validate:"required,min=1"`
	RequiredSlotCount int    `json:"required_slot_count" validate:"required,min=1"`
	IsPublic          bool   `json:"is_public"`
}

// List returns classes matching the filter, narrowed to the caller.
func (s *ClassService) List(ctx context.Context, scope models.Scope, filter models.ClassFilter) ([]models.Class, int, error) {
	if !scope.Unrestricted() && scope.InstructorID != "" {
		filter.InstructorID = scope.InstructorID
	}
	classes, total, err := s.classes.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, total, nil
}

// Get returns a single class.
func (s *ClassService) Get(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.classes.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

// Create registers a new class as NOT_STARTED with no instructor and
// no schedule.
func (s *ClassService) Create(ctx context.Context, scope models.Scope, req CreateClassRequest) (*models.Class, error) {
	if !scope.CanMutate() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "class management requires staff access")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	class := models.Class{
		Level:             req.Level,
		Name:              req.Name,
		Status:            models.ClassStatusNotStarted,
		Capacity:          req.Capacity,
		RequiredSlotCount: req.RequiredSlotCount,
		IsPublic:          req.IsPublic,
	}
	if err := s.classes.Create(ctx, &class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	return &class, nil
}

// Update modifies class metadata. Lifecycle status and schedule fields
// are owned by the scheduling engine and not touched here.
func (s *ClassService) Update(ctx context.Context, scope models.Scope, id string, req UpdateClassRequest) (*models.Class, error) {
	if !scope.CanMutate() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "class management requires staff access")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	class, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if class.Status == models.ClassStatusDisabled {
		return nil, appErrors.Clone(appErrors.ErrValidation, "disabled classes cannot be modified")
	}

	class.Level = req.Level
	class.Name = req.Name
	class.Capacity = req.Capacity
	class.RequiredSlotCount = req.RequiredSlotCount
	class.IsPublic = req.IsPublic

	if err := s.classes.Update(ctx, nil, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return class, nil
}

// AssignInstructor sets or clears the class's default instructor.
func (s *ClassService) AssignInstructor(ctx context.Context, scope models.Scope, classID string, instructorID *string) (*models.Class, error) {
	if !scope.CanMutate() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "class management requires staff access")
	}

	class, err := s.Get(ctx, classID)
	if err != nil {
		return nil, err
	}
	if class.Status == models.ClassStatusDisabled {
		return nil, appErrors.Clone(appErrors.ErrValidation, "disabled classes cannot be modified")
	}

	if instructorID != nil && *instructorID != "" {
		user, err := s.users.FindByID(ctx, *instructorID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
		}
		if user.Role != models.RoleTeacher {
			return nil, appErrors.Clone(appErrors.ErrValidation, "user is not an instructor")
		}
	} else {
		instructorID = nil
	}

	class.InstructorID = instructorID
	if err := s.classes.Update(ctx, nil, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return class, nil
}

// Enroll adds a student to the class roster. New slots created later
// seed attendance from the enrolled set; existing rosters are untouched.
func (s *ClassService) Enroll(ctx context.Context, scope models.Scope, classID, studentID string) error {
	if !scope.CanMutate() {
		return appErrors.Clone(appErrors.ErrForbidden, "enrollment requires staff access")
	}

	class, err := s.Get(ctx, classID)
	if err != nil {
		return err
	}
	if class.Status == models.ClassStatusDisabled || class.Status == models.ClassStatusFinished {
		return appErrors.Clone(appErrors.ErrValidation, "class is not accepting enrollments")
	}

	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return appErrors.Clone(appErrors.ErrValidation, "user is not a student")
	}

	count, err := s.enrollments.CountByClass(ctx, classID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	if count >= class.Capacity {
		return appErrors.Clone(appErrors.ErrConflict, "class is at capacity")
	}

	enrollment := models.Enrollment{ClassID: classID, StudentID: studentID}
	if err := s.enrollments.Create(ctx, &enrollment); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll student")
	}
	return nil
}

// Unenroll removes a student from the class roster.
func (s *ClassService) Unenroll(ctx context.Context, scope models.Scope, classID, studentID string) error {
	if !scope.CanMutate() {
		return appErrors.Clone(appErrors.ErrForbidden, "enrollment requires staff access")
	}
	removed, err := s.enrollments.Delete(ctx, classID, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unenroll student")
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	return nil
}

// Roster returns the student ids enrolled in the class.
func (s *ClassService) Roster(ctx context.Context, classID string) ([]string, error) {
	ids, err := s.enrollments.ListStudentIDsByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	return ids, nil
}
