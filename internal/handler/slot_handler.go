package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pianova/piano-adm-api/internal/models"
	"github.com/pianova/piano-adm-api/internal/service"
	appErrors "github.com/pianova/piano-adm-api/pkg/errors"
	"github.com/pianova/piano-adm-api/pkg/export"
	"github.com/pianova/piano-adm-api/pkg/response"
)

type slotService interface {
	Add(ctx context.Context, scope models.Scope, req service.AddSlotRequest) (*models.Slot, error)
	Edit(ctx context.Context, scope models.Scope, id string, req service.EditSlotRequest) (*models.Slot, error)
	Delete(ctx context.Context, scope models.Scope, id string) error
	Query(ctx context.Context, scope models.Scope, filter models.SlotFilter) ([]models.Slot, int, error)
	Get(ctx context.Context, scope models.Scope, id string) (*models.Slot, error)
}

// SlotHandler manages the slot query surface and the action endpoint.
type SlotHandler struct {
	service slotService
}

// NewSlotHandler constructs handler.
func NewSlotHandler(svc slotService) *SlotHandler {
	return &SlotHandler{service: svc}
}

// SlotActionRequest is the discriminated payload for POST /slots/actions.
type SlotActionRequest struct {
	Action string `json:"action" binding:"required"`

	// ADD
	ClassID string `json:"class_id,omitempty"`
	RoomID  string `json:"room_id,omitempty"`
	Date    string `json:"date,omitempty"`
	Shift   *int   `json:"shift,omitempty"`

	// EDIT / DELETE
	SlotID       string             `json:"slot_id,omitempty"`
	Status       *models.SlotStatus `json:"status,omitempty"`
	InstructorID *string            `json:"instructor_id,omitempty"`
	Note         *string            `json:"note,omitempty"`
}

// Actions godoc
// @Summary Execute a slot action
// @Description Discriminated ADD / EDIT / DELETE slot mutation
// @Tags Slots
// @Accept json
// @Produce json
// @Param payload body SlotActionRequest true "Action payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /slots/actions [post]
func (h *SlotHandler) Actions(c *gin.Context) {
	var req SlotActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	scope := scopeFromContext(c)

	switch strings.ToUpper(req.Action) {
	case "ADD":
		date, err := parseDate(req.Date)
		if err != nil {
			response.Error(c, err)
			return
		}
		shift := -1
		if req.Shift != nil {
			shift = *req.Shift
		}
		slot, err := h.service.Add(c.Request.Context(), scope, service.AddSlotRequest{
			ClassID:      req.ClassID,
			RoomID:       req.RoomID,
			Date:         date,
			Shift:        shift,
			InstructorID: req.InstructorID,
			Note:         req.Note,
		})
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Created(c, slot)

	case "EDIT":
		if req.SlotID == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "slot_id is required"))
			return
		}
		patch := service.EditSlotRequest{
			Status:       req.Status,
			InstructorID: req.InstructorID,
			Note:         req.Note,
			Shift:        req.Shift,
		}
		if req.RoomID != "" {
			patch.RoomID = &req.RoomID
		}
		if req.Date != "" {
			date, err := parseDate(req.Date)
			if err != nil {
				response.Error(c, err)
				return
			}
			patch.Date = &date
		}
		slot, err := h.service.Edit(c.Request.Context(), scope, req.SlotID, patch)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, slot, nil)

	case "DELETE":
		if req.SlotID == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "slot_id is required"))
			return
		}
		if err := h.service.Delete(c.Request.Context(), scope, req.SlotID); err != nil {
			response.Error(c, err)
			return
		}
		response.NoContent(c)

	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown action "+req.Action))
	}
}

// List godoc
// @Summary Query slots
// @Tags Slots
// @Produce json
// @Param date_from query string false "Start date (YYYY-MM-DD)"
// @Param date_to query string false "End date (YYYY-MM-DD)"
// @Param shifts query string false "Comma-separated shift ordinals"
// @Param statuses query string false "Comma-separated statuses"
// @Param room_ids query string false "Comma-separated room ids"
// @Param class_ids query string false "Comma-separated class ids"
// @Param instructor_ids query string false "Comma-separated instructor ids"
// @Param student_id query string false "Student id"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /slots [get]
func (h *SlotHandler) List(c *gin.Context) {
	filter, err := parseSlotFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	slots, total, err := h.service.Query(c.Request.Context(), scopeFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, slots, pagination)
}

// Get godoc
// @Summary Get slot
// @Tags Slots
// @Produce json
// @Param id path string true "Slot ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /slots/{id} [get]
func (h *SlotHandler) Get(c *gin.Context) {
	slot, err := h.service.Get(c.Request.Context(), scopeFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// Export godoc
// @Summary Export the filtered slot list as CSV
// @Tags Slots
// @Produce text/csv
// @Success 200 {string} string "CSV content"
// @Router /slots/export [get]
func (h *SlotHandler) Export(c *gin.Context) {
	filter, err := parseSlotFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter.PageSize = 500

	slots, _, err := h.service.Query(c.Request.Context(), scopeFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	headers := []string{"id", "class_id", "room_id", "date", "shift", "status", "instructor_id"}
	rows := make([]map[string]string, 0, len(slots))
	for _, slot := range slots {
		instructor := ""
		if slot.InstructorID != nil {
			instructor = *slot.InstructorID
		}
		rows = append(rows, map[string]string{
			"id":            slot.ID,
			"class_id":      slot.ClassID,
			"room_id":       slot.RoomID,
			"date":          slot.Date.Format("2006-01-02"),
			"shift":         strconv.Itoa(int(slot.Shift)),
			"status":        string(slot.Status),
			"instructor_id": instructor,
		})
	}

	payload, err := export.NewCSVExporter().Render(export.Dataset{Headers: headers, Rows: rows})
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export"))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="slots.csv"`)
	c.Data(http.StatusOK, "text/csv", payload)
}

func parseSlotFilter(c *gin.Context) (models.SlotFilter, error) {
	var filter models.SlotFilter

	if raw := c.Query("date_from"); raw != "" {
		date, err := parseDate(raw)
		if err != nil {
			return filter, err
		}
		filter.DateFrom = &date
	}
	if raw := c.Query("date_to"); raw != "" {
		date, err := parseDate(raw)
		if err != nil {
			return filter, err
		}
		filter.DateTo = &date
	}
	for _, part := range splitList(c.Query("shifts")) {
		ordinal, err := strconv.Atoi(part)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid shift ordinal "+part)
		}
		filter.Shifts = append(filter.Shifts, models.Shift(ordinal))
	}
	for _, part := range splitList(c.Query("statuses")) {
		status := models.SlotStatus(strings.ToUpper(part))
		if !status.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid slot status "+part)
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	filter.RoomIDs = splitList(c.Query("room_ids"))
	filter.ClassIDs = splitList(c.Query("class_ids"))
	filter.InstructorIDs = splitList(c.Query("instructor_ids"))
	filter.StudentID = c.Query("student_id")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "100")); err == nil {
		filter.PageSize = limit
	}
	return filter, nil
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "date is required")
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "date must be formatted YYYY-MM-DD")
	}
	return date, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
