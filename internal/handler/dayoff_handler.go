package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pianova/piano-adm-api/internal/service"
	appErrors "github.com/pianova/piano-adm-api/pkg/errors"
	"github.com/pianova/piano-adm-api/pkg/response"
)

// DayOffHandler manages blackout interval endpoints.
type DayOffHandler struct {
	service *service.DayOffService
}

// NewDayOffHandler constructs handler.
func NewDayOffHandler(svc *service.DayOffService) *DayOffHandler {
	return &DayOffHandler{service: svc}
}

// List godoc
// @Summary List day offs
// @Tags DayOffs
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /day-offs [get]
func (h *DayOffHandler) List(c *gin.Context) {
	dayOffs, err := h.service.List(c.Request.Context(), scopeFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dayOffs, nil)
}

// Create godoc
// @Summary Create day off
// @Tags DayOffs
// @Accept json
// @Produce json
// @Param payload body service.CreateDayOffRequest true "Day off payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /day-offs [post]
func (h *DayOffHandler) Create(c *gin.Context) {
	var req service.CreateDayOffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	dayOff, err := h.service.Create(c.Request.Context(), scopeFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dayOff)
}

// Update godoc
// @Summary Update day off
// @Tags DayOffs
// @Accept json
// @Produce json
// @Param id path string true "Day off ID"
// @Param payload body service.UpdateDayOffRequest true "Day off payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /day-offs/{id} [put]
func (h *DayOffHandler) Update(c *gin.Context) {
	var req service.UpdateDayOffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	dayOff, err := h.service.Update(c.Request.Context(), scopeFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dayOff, nil)
}

// Delete godoc
// @Summary Delete day off
// @Tags DayOffs
// @Param id path string true "Day off ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /day-offs/{id} [delete]
func (h *DayOffHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), scopeFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
