package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pianova/piano-adm-api/internal/middleware"
	"github.com/pianova/piano-adm-api/internal/models"
	"github.com/pianova/piano-adm-api/internal/service"
)

type slotServiceMock struct {
	addReq     service.AddSlotRequest
	addErr     error
	editID     string
	editReq    service.EditSlotRequest
	deleteID   string
	lastFilter models.SlotFilter
	queryResp  []models.Slot
}

func (m *slotServiceMock) Add(_ context.Context, _ models.Scope, req service.AddSlotRequest) (*models.Slot, error) {
	m.addReq = req
	if m.addErr != nil {
		return nil, m.addErr
	}
	return &models.Slot{ID: "slot-1", ClassID: req.ClassID}, nil
}

func (m *slotServiceMock) Edit(_ context.Context, _ models.Scope, id string, req service.EditSlotRequest) (*models.Slot, error) {
	m.editID = id
	m.editReq = req
	return &models.Slot{ID: id}, nil
}

func (m *slotServiceMock) Delete(_ context.Context, _ models.Scope, id string) error {
	m.deleteID = id
	return nil
}

func (m *slotServiceMock) Query(_ context.Context, _ models.Scope, filter models.SlotFilter) ([]models.Slot, int, error) {
	m.lastFilter = filter
	return m.queryResp, len(m.queryResp), nil
}

func (m *slotServiceMock) Get(_ context.Context, _ models.Scope, id string) (*models.Slot, error) {
	return &models.Slot{ID: id}, nil
}

func newSlotContext(t *testing.T, method, target string, payload interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var req *http.Request
	if payload != nil {
		body, err := json.Marshal(payload)
		require.NoError(t, err)
		req, _ = http.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, target, nil)
	}
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	return c, w
}

func TestSlotHandlerActionsAdd(t *testing.T) {
	svc := &slotServiceMock{}
	h := NewSlotHandler(svc)

	shift := 3
	c, w := newSlotContext(t, http.MethodPost, "/slots/actions", SlotActionRequest{
		Action:  "add",
		ClassID: "class-1",
		RoomID:  "room-1",
		Date:    "2024-03-04",
		Shift:   &shift,
	})
	h.Actions(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "class-1", svc.addReq.ClassID)
	assert.Equal(t, 3, svc.addReq.Shift)
	assert.Equal(t, time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC), svc.addReq.Date)
}

func TestSlotHandlerActionsAddMissingShift(t *testing.T) {
	svc := &slotServiceMock{}
	h := NewSlotHandler(svc)

	c, _ := newSlotContext(t, http.MethodPost, "/slots/actions", SlotActionRequest{
		Action:  "ADD",
		ClassID: "class-1",
		RoomID:  "room-1",
		Date:    "2024-03-04",
	})
	h.Actions(c)

	// The ordinal is forwarded out of range so the slot path rejects it.
	assert.Equal(t, -1, svc.addReq.Shift)
}

func TestSlotHandlerActionsEdit(t *testing.T) {
	svc := &slotServiceMock{}
	h := NewSlotHandler(svc)

	c, w := newSlotContext(t, http.MethodPost, "/slots/actions", SlotActionRequest{
		Action: "EDIT",
		SlotID: "slot-1",
		RoomID: "room-2",
		Note:   strPtrTest("substitute"),
	})
	h.Actions(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "slot-1", svc.editID)
	require.NotNil(t, svc.editReq.RoomID)
	assert.Equal(t, "room-2", *svc.editReq.RoomID)
	assert.Nil(t, svc.editReq.Date)
}

func TestSlotHandlerActionsEditRequiresSlotID(t *testing.T) {
	h := NewSlotHandler(&slotServiceMock{})

	c, w := newSlotContext(t, http.MethodPost, "/slots/actions", SlotActionRequest{Action: "EDIT"})
	h.Actions(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSlotHandlerActionsDelete(t *testing.T) {
	svc := &slotServiceMock{}
	h := NewSlotHandler(svc)

	c, w := newSlotContext(t, http.MethodPost, "/slots/actions", SlotActionRequest{Action: "DELETE", SlotID: "slot-1"})
	h.Actions(c)
	c.Writer.WriteHeaderNow()

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "slot-1", svc.deleteID)
}

func TestSlotHandlerListFilterParsing(t *testing.T) {
	svc := &slotServiceMock{}
	h := NewSlotHandler(svc)

	c, w := newSlotContext(t, http.MethodGet, "/slots?date_from=2024-01-01&shifts=2,3&statuses=scheduled&room_ids=room-1,room-2&page=2&limit=25", nil)
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.lastFilter.DateFrom)
	assert.Equal(t, []models.Shift{2, 3}, svc.lastFilter.Shifts)
	assert.Equal(t, []models.SlotStatus{models.SlotStatusScheduled}, svc.lastFilter.Statuses)
	assert.Equal(t, []string{"room-1", "room-2"}, svc.lastFilter.RoomIDs)
	assert.Equal(t, 2, svc.lastFilter.Page)
	assert.Equal(t, 25, svc.lastFilter.PageSize)
}

func TestSlotHandlerListRejectsBadStatus(t *testing.T) {
	h := NewSlotHandler(&slotServiceMock{})

	c, w := newSlotContext(t, http.MethodGet, "/slots?statuses=BOGUS", nil)
	h.List(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSlotHandlerExport(t *testing.T) {
	svc := &slotServiceMock{queryResp: []models.Slot{{
		ID:      "slot-1",
		ClassID: "class-1",
		RoomID:  "room-1",
		Date:    time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC),
		Shift:   3,
		Status:  models.SlotStatusScheduled,
	}}}
	h := NewSlotHandler(svc)

	c, w := newSlotContext(t, http.MethodGet, "/slots/export", nil)
	h.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "slots.csv")
	assert.Contains(t, w.Body.String(), "slot-1,class-1,room-1,2024-03-04,3,SCHEDULED")
	assert.Equal(t, 500, svc.lastFilter.PageSize)
}

func strPtrTest(s string) *string { return &s }
