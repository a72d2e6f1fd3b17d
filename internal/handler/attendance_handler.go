package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pianova/piano-adm-api/internal/service"
	appErrors "github.com/pianova/piano-adm-api/pkg/errors"
	"github.com/pianova/piano-adm-api/pkg/response"
)

// AttendanceHandler manages roster endpoints.
type AttendanceHandler struct {
	service *service.AttendanceService
}

// NewAttendanceHandler constructs handler.
func NewAttendanceHandler(svc *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// Mark godoc
// @Summary Mark attendance for a slot
// @Description Overwrites marks for the listed students; unlisted students stay UNMARKED
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Slot ID"
// @Param payload body service.MarkRequest true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /slots/{id}/attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req service.MarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.service.Mark(c.Request.Context(), scopeFromContext(c), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"slot_id": c.Param("id")}, nil)
}

// List godoc
// @Summary List a slot's attendance roster
// @Tags Attendance
// @Produce json
// @Param id path string true "Slot ID"
// @Success 200 {object} response.Envelope
// @Router /slots/{id}/attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	records, err := h.service.ListBySlot(c.Request.Context(), scopeFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Summary godoc
// @Summary Attendance summary for a slot
// @Tags Attendance
// @Produce json
// @Param id path string true "Slot ID"
// @Success 200 {object} response.Envelope
// @Router /slots/{id}/attendance/summary [get]
func (h *AttendanceHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context(), scopeFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
