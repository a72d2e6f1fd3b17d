package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/pianova/piano-adm-api/internal/models"
	appErrors "github.com/pianova/piano-adm-api/pkg/errors"
)

type dayOffRepository interface {
	List(ctx context.Context) ([]models.DayOff, error)
	ListRelevant(ctx context.Context, from, to time.Time) ([]models.DayOff, error)
	FindByID(ctx context.Context, id string) (*models.DayOff, error)
	Create(ctx context.Context, dayOff *models.DayOff) error
	Update(ctx context.Context, dayOff *models.DayOff) error
	Delete(ctx context.Context, id string) (bool, error)
}

// DayOffService manages blackout intervals. Day-offs gate new
// scheduling only; existing slots are never cancelled retroactively.
type DayOffService struct {
	repo      dayOffRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDayOffService constructs the service.
func NewDayOffService(repo dayOffRepository, validate *validator.Validate, logger *zap.Logger) *DayOffService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DayOffService{repo: repo, validator: validate, logger: logger}
}

// CreateDayOffRequest describes the create payload.
type CreateDayOffRequest struct {
	Name        string    `json:"name" validate:"required"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required"`
	RecurWeekly bool      `json:"recur_weekly"`
}

// UpdateDayOffRequest describes the update payload.
type UpdateDayOffRequest struct {
	Name        string    `json:"name" validate:"required"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required"`
	RecurWeekly bool      `json:"recur_weekly"`
}

// List returns all day-offs.
func (s *DayOffService) List(ctx context.Context, scope models.Scope) ([]models.DayOff, error) {
	if !scope.Unrestricted() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "day-off registry requires staff access")
	}
	dayOffs, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list day offs")
	}
	return dayOffs, nil
}

// Create stores a new blackout interval.
func (s *DayOffService) Create(ctx context.Context, scope models.Scope, req CreateDayOffRequest) (*models.DayOff, error) {
	if scope.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "day-off management requires admin access")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid day-off payload")
	}
	if !req.EndsAt.After(req.StartsAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "day-off must end after it starts")
	}

	dayOff := models.DayOff{
		Name:        req.Name,
		StartsAt:    req.StartsAt.UTC(),
		EndsAt:      req.EndsAt.UTC(),
		RecurWeekly: req.RecurWeekly,
	}
	if err := s.repo.Create(ctx, &dayOff); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create day off")
	}
	return &dayOff, nil
}

// Update modifies an existing blackout interval.
func (s *DayOffService) Update(ctx context.Context, scope models.Scope, id string, req UpdateDayOffRequest) (*models.DayOff, error) {
	if scope.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "day-off management requires admin access")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid day-off payload")
	}
	if !req.EndsAt.After(req.StartsAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "day-off must end after it starts")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "day off not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load day off")
	}

	existing.Name = req.Name
	existing.StartsAt = req.StartsAt.UTC()
	existing.EndsAt = req.EndsAt.UTC()
	existing.RecurWeekly = req.RecurWeekly

	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update day off")
	}
	return existing, nil
}

// Delete removes a blackout interval. No cascading effect on slots.
func (s *DayOffService) Delete(ctx context.Context, scope models.Scope, id string) error {
	if scope.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "day-off management requires admin access")
	}
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete day off")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "day off not found")
	}
	return nil
}

// IsBlackedOut reports whether the shift occurrence on the date falls
// inside any stored blackout interval.
func (s *DayOffService) IsBlackedOut(ctx context.Context, date time.Time, shift models.Shift) (bool, error) {
	dayOffs, err := s.repo.ListRelevant(ctx, date, date)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check blackout")
	}
	for _, d := range dayOffs {
		if d.Covers(date, shift) {
			return true, nil
		}
	}
	return false, nil
}

// Relevant returns the day-offs that can affect the date range; the
// scheduling engine evaluates Covers against the returned set.
func (s *DayOffService) Relevant(ctx context.Context, from, to time.Time) ([]models.DayOff, error) {
	dayOffs, err := s.repo.ListRelevant(ctx, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load day offs")
	}
	return dayOffs, nil
}
