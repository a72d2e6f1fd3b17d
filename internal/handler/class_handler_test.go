package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pianova/piano-adm-api/internal/middleware"
	"github.com/pianova/piano-adm-api/internal/models"
	"github.com/pianova/piano-adm-api/internal/service"
	appErrors "github.com/pianova/piano-adm-api/pkg/errors"
)

type classServiceMock struct {
	classService
}

type schedulerServiceMock struct {
	scheduleCalls int
	scheduleReq   service.ScheduleRequest
	scheduleErr   error
	deleteCalls   int
	includeFin    bool
	delayWeeks    int
	publishCalls  int
	mergeDest     string
	mergeResult   *service.MergeResult
}

func (m *schedulerServiceMock) Schedule(_ context.Context, _ models.Scope, _ string, req service.ScheduleRequest) ([]models.Slot, error) {
	m.scheduleCalls++
	m.scheduleReq = req
	if m.scheduleErr != nil {
		return nil, m.scheduleErr
	}
	return []models.Slot{{ID: "slot-1"}}, nil
}

func (m *schedulerServiceMock) DeleteSchedule(_ context.Context, _ models.Scope, _ string, includeFinished bool) error {
	m.deleteCalls++
	m.includeFin = includeFinished
	return nil
}

func (m *schedulerServiceMock) Delay(_ context.Context, _ models.Scope, _ string, weeks int) ([]models.Slot, error) {
	m.delayWeeks = weeks
	return nil, nil
}

func (m *schedulerServiceMock) Publish(_ context.Context, _ models.Scope, _ string) error {
	m.publishCalls++
	return nil
}

func (m *schedulerServiceMock) Merge(_ context.Context, _ models.Scope, _ string, destClassID string) (*service.MergeResult, error) {
	m.mergeDest = destClassID
	return m.mergeResult, nil
}

func newClassActionContext(t *testing.T, payload interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req, _ := http.NewRequest(http.MethodPost, "/classes/class-1/actions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "class-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	return c, w
}

func TestClassHandlerActionsSchedule(t *testing.T) {
	scheduler := &schedulerServiceMock{}
	h := NewClassHandler(&classServiceMock{}, scheduler)

	c, w := newClassActionContext(t, ClassActionRequest{
		Action:     "schedule",
		DaysOfWeek: []int{0, 2},
		Shift:      intPtrTest(2),
		StartWeek:  "2024-01-01",
		RoomID:     "room-1",
	})
	h.Actions(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, scheduler.scheduleCalls)
	assert.Equal(t, []int{0, 2}, scheduler.scheduleReq.DaysOfWeek)
	assert.Equal(t, 2, scheduler.scheduleReq.Shift)
	assert.Equal(t, "room-1", scheduler.scheduleReq.RoomID)
}

func TestClassHandlerActionsScheduleBadDate(t *testing.T) {
	scheduler := &schedulerServiceMock{}
	h := NewClassHandler(&classServiceMock{}, scheduler)

	c, w := newClassActionContext(t, ClassActionRequest{
		Action:    "SCHEDULE",
		StartWeek: "January 1st",
		RoomID:    "room-1",
	})
	h.Actions(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, scheduler.scheduleCalls)
}

func TestClassHandlerActionsScheduleConflictStatus(t *testing.T) {
	scheduler := &schedulerServiceMock{scheduleErr: appErrors.Clone(appErrors.ErrRoomConflict, "")}
	h := NewClassHandler(&classServiceMock{}, scheduler)

	c, w := newClassActionContext(t, ClassActionRequest{
		Action:     "SCHEDULE",
		DaysOfWeek: []int{0},
		Shift:      intPtrTest(2),
		StartWeek:  "2024-01-01",
		RoomID:     "room-1",
	})
	h.Actions(c)

	require.Equal(t, http.StatusConflict, w.Code)

	var envelope struct {
		Error *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrRoomConflict.Code, envelope.Error.Code)
}

func TestClassHandlerActionsDeleteSchedule(t *testing.T) {
	scheduler := &schedulerServiceMock{}
	h := NewClassHandler(&classServiceMock{}, scheduler)

	c, w := newClassActionContext(t, ClassActionRequest{Action: "DELETE_SCHEDULE", IncludeFinished: true})
	h.Actions(c)
	c.Writer.WriteHeaderNow()

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, scheduler.deleteCalls)
	assert.True(t, scheduler.includeFin)
}

func TestClassHandlerActionsDelay(t *testing.T) {
	scheduler := &schedulerServiceMock{}
	h := NewClassHandler(&classServiceMock{}, scheduler)

	c, w := newClassActionContext(t, ClassActionRequest{Action: "DELAY", Weeks: 3})
	h.Actions(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, scheduler.delayWeeks)
}

func TestClassHandlerActionsMerge(t *testing.T) {
	scheduler := &schedulerServiceMock{mergeResult: &service.MergeResult{MovedSlotIDs: []string{"s1"}}}
	h := NewClassHandler(&classServiceMock{}, scheduler)

	c, w := newClassActionContext(t, ClassActionRequest{Action: "MERGE", DestClassID: "class-2"})
	h.Actions(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "class-2", scheduler.mergeDest)
}

func TestClassHandlerActionsUnknown(t *testing.T) {
	h := NewClassHandler(&classServiceMock{}, &schedulerServiceMock{})

	c, w := newClassActionContext(t, ClassActionRequest{Action: "EXPLODE"})
	h.Actions(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func intPtrTest(i int) *int { return &i }
