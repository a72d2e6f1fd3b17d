package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pianova/piano-adm-api/internal/models"
	"github.com/pianova/piano-adm-api/internal/service"
	appErrors "github.com/pianova/piano-adm-api/pkg/errors"
	"github.com/pianova/piano-adm-api/pkg/response"
)

// CalendarHandler renders the week-grid read surface.
type CalendarHandler struct {
	slots *service.SlotService
}

// NewCalendarHandler constructs handler.
func NewCalendarHandler(slots *service.SlotService) *CalendarHandler {
	return &CalendarHandler{slots: slots}
}

// Week godoc
// @Summary Week calendar view
// @Description Slots for one ISO week ordered by (date, shift)
// @Tags Calendar
// @Produce json
// @Param year query int true "ISO year"
// @Param week query int true "ISO week number"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /calendar/week [get]
func (h *CalendarHandler) Week(c *gin.Context) {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "year must be an integer"))
		return
	}
	week, err := strconv.Atoi(c.Query("week"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "week must be an integer"))
		return
	}

	start, end, err := models.WeekRange(year, week)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}

	filter := models.SlotFilter{DateFrom: &start, DateTo: &end, PageSize: 200}
	slots, _, err := h.slots.Query(c.Request.Context(), scopeFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"year":       year,
		"week":       week,
		"week_start": start,
		"week_end":   end,
		"slots":      slots,
	}, nil)
}

// Shifts godoc
// @Summary List the fixed daily shift windows
// @Tags Calendar
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /calendar/shifts [get]
func (h *CalendarHandler) Shifts(c *gin.Context) {
	response.JSON(c, http.StatusOK, models.Shifts(), nil)
}
