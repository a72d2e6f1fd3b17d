package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pianova/piano-adm-api/internal/models"
	"github.com/pianova/piano-adm-api/internal/service"
	appErrors "github.com/pianova/piano-adm-api/pkg/errors"
	"github.com/pianova/piano-adm-api/pkg/response"
)

type classService interface {
	List(ctx context.Context, scope models.Scope, filter models.ClassFilter) ([]models.Class, int, error)
	Get(ctx context.Context, id string) (*models.Class, error)
	Create(ctx context.Context, scope models.Scope, req service.CreateClassRequest) (*models.Class, error)
	Update(ctx context.Context, scope models.Scope, id string, req service.UpdateClassRequest) (*models.Class, error)
	AssignInstructor(ctx context.Context, scope models.Scope, classID string, instructorID *string) (*models.Class, error)
	Enroll(ctx context.Context, scope models.Scope, classID, studentID string) error
	Unenroll(ctx context.Context, scope models.Scope, classID, studentID string) error
	Roster(ctx context.Context, classID string) ([]string, error)
}

type schedulerService interface {
	Schedule(ctx context.Context, scope models.Scope, classID string, req service.ScheduleRequest) ([]models.Slot, error)
	DeleteSchedule(ctx context.Context, scope models.Scope, classID string, includeFinished bool) error
	Delay(ctx context.Context, scope models.Scope, classID string, weeks int) ([]models.Slot, error)
	Publish(ctx context.Context, scope models.Scope, classID string) error
	Merge(ctx context.Context, scope models.Scope, sourceClassID, destClassID string) (*service.MergeResult, error)
}

// ClassHandler manages class endpoints including the scheduling actions.
type ClassHandler struct {
	classes   classService
	scheduler schedulerService
}

// NewClassHandler constructs handler.
func NewClassHandler(classes classService, scheduler schedulerService) *ClassHandler {
	return &ClassHandler{classes: classes, scheduler: scheduler}
}

// ClassActionRequest is the discriminated payload for POST /classes/{id}/actions.
type ClassActionRequest struct {
	Action string `json:"action" binding:"required"`

	// SCHEDULE
	DaysOfWeek []int  `json:"days_of_week,omitempty"`
	Shift      *int   `json:"shift,omitempty"`
	StartWeek  string `json:"start_week,omitempty"`
	RoomID     string `json:"room_id,omitempty"`

	// DELAY
	Weeks int `json:"weeks,omitempty"`

	// DELETE_SCHEDULE
	IncludeFinished bool `json:"include_finished,omitempty"`

	// MERGE
	DestClassID string `json:"dest_class_id,omitempty"`
}

// Actions godoc
// @Summary Execute a class scheduling action
// @Description Discriminated SCHEDULE / DELETE_SCHEDULE / DELAY / PUBLISH / MERGE operation
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body ClassActionRequest true "Action payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /classes/{id}/actions [post]
func (h *ClassHandler) Actions(c *gin.Context) {
	var req ClassActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	scope := scopeFromContext(c)
	classID := c.Param("id")

	switch strings.ToUpper(req.Action) {
	case "SCHEDULE":
		startWeek, err := parseDate(req.StartWeek)
		if err != nil {
			response.Error(c, err)
			return
		}
		shift := -1
		if req.Shift != nil {
			shift = *req.Shift
		}
		slots, err := h.scheduler.Schedule(c.Request.Context(), scope, classID, service.ScheduleRequest{
			DaysOfWeek: req.DaysOfWeek,
			Shift:      shift,
			StartWeek:  startWeek,
			RoomID:     req.RoomID,
		})
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Created(c, slots)

	case "DELETE_SCHEDULE":
		if err := h.scheduler.DeleteSchedule(c.Request.Context(), scope, classID, req.IncludeFinished); err != nil {
			response.Error(c, err)
			return
		}
		response.NoContent(c)

	case "DELAY":
		slots, err := h.scheduler.Delay(c.Request.Context(), scope, classID, req.Weeks)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, slots, nil)

	case "PUBLISH":
		if err := h.scheduler.Publish(c.Request.Context(), scope, classID); err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, gin.H{"status": string(models.ClassStatusOngoing)}, nil)

	case "MERGE":
		result, err := h.scheduler.Merge(c.Request.Context(), scope, classID, req.DestClassID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, result, nil)

	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown action "+req.Action))
	}
}

// List godoc
// @Summary List classes
// @Tags Classes
// @Produce json
// @Param level query string false "Filter by level"
// @Param status query string false "Filter by status"
// @Param instructor_id query string false "Filter by instructor"
// @Param search query string false "Name search"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	var filter models.ClassFilter
	filter.Level = c.Query("level")
	if raw := c.Query("status"); raw != "" {
		status := models.ClassStatus(strings.ToUpper(raw))
		filter.Status = &status
	}
	filter.InstructorID = c.Query("instructor_id")
	filter.Search = c.Query("search")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	classes, total, err := h.classes.List(c.Request.Context(), scopeFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, classes, pagination)
}

// Get godoc
// @Summary Get class
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	class, err := h.classes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Create godoc
// @Summary Create class
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body service.CreateClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	var req service.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	class, err := h.classes.Create(c.Request.Context(), scopeFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// Update godoc
// @Summary Update class
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body service.UpdateClassRequest true "Class payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id} [put]
func (h *ClassHandler) Update(c *gin.Context) {
	var req service.UpdateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	class, err := h.classes.Update(c.Request.Context(), scopeFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

type assignInstructorRequest struct {
	InstructorID *string `json:"instructor_id"`
}

// AssignInstructor godoc
// @Summary Assign or clear the class instructor
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body assignInstructorRequest true "Instructor payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id}/instructor [put]
func (h *ClassHandler) AssignInstructor(c *gin.Context) {
	var req assignInstructorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	class, err := h.classes.AssignInstructor(c.Request.Context(), scopeFromContext(c), c.Param("id"), req.InstructorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

type enrollRequest struct {
	StudentID string `json:"student_id" binding:"required"`
}

// Enroll godoc
// @Summary Enroll a student
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body enrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /classes/{id}/enrollments [post]
func (h *ClassHandler) Enroll(c *gin.Context) {
	var req enrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.classes.Enroll(c.Request.Context(), scopeFromContext(c), c.Param("id"), req.StudentID); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"class_id": c.Param("id"), "student_id": req.StudentID})
}

// Unenroll godoc
// @Summary Remove a student from a class
// @Tags Classes
// @Param id path string true "Class ID"
// @Param studentId path string true "Student ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /classes/{id}/enrollments/{studentId} [delete]
func (h *ClassHandler) Unenroll(c *gin.Context) {
	if err := h.classes.Unenroll(c.Request.Context(), scopeFromContext(c), c.Param("id"), c.Param("studentId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Roster godoc
// @Summary List enrolled student ids
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/enrollments [get]
func (h *ClassHandler) Roster(c *gin.Context) {
	ids, err := h.classes.Roster(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ids, nil)
}
