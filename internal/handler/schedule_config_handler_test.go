package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/timetable"
)

type scheduleConfigMock struct {
	school      string
	level       string
	limit       int
	saved       dto.UpsertScheduleConfigRequest
	saveErr     error
	historyCall bool
}

func (m *scheduleConfigMock) GetForLevel(ctx context.Context, schoolID, level string) (*dto.ScheduleConfigResponse, error) {
	m.school, m.level = schoolID, level
	return &dto.ScheduleConfigResponse{IsDefault: true, LevelConfig: timetable.DefaultLevelConfig(timetable.AcademicLevel(level))}, nil
}

func (m *scheduleConfigMock) GetForCourse(ctx context.Context, courseID string) (*dto.ScheduleConfigResponse, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
}

func (m *scheduleConfigMock) GetForTeacher(ctx context.Context, teacherID string) (*dto.ScheduleConfigResponse, error) {
	return &dto.ScheduleConfigResponse{LevelConfig: timetable.DefaultLevelConfig(timetable.LevelMiddle)}, nil
}

func (m *scheduleConfigMock) List(ctx context.Context, schoolID string) ([]dto.ScheduleConfigResponse, error) {
	m.school = schoolID
	return []dto.ScheduleConfigResponse{}, nil
}

func (m *scheduleConfigMock) Save(ctx context.Context, schoolID, level string, req dto.UpsertScheduleConfigRequest) (*dto.SaveScheduleConfigResponse, error) {
	m.school, m.level, m.saved = schoolID, level, req
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	return &dto.SaveScheduleConfigResponse{CriticalChange: true, DeprecatedSchedule: 2}, nil
}

func (m *scheduleConfigMock) History(ctx context.Context, schoolID, level string, limit int) ([]dto.ScheduleConfigHistoryItem, error) {
	m.historyCall = true
	m.limit = limit
	return []dto.ScheduleConfigHistoryItem{}, nil
}

func (m *scheduleConfigMock) PreviewSlots(ctx context.Context, schoolID, level string) (*dto.SlotPreviewResponse, error) {
	return &dto.SlotPreviewResponse{TeachingBlocks: 5, TeachingHours: 3.75}, nil
}

func (m *scheduleConfigMock) ValidateCongruency(ctx context.Context, schoolID string) (*dto.CongruencyReport, error) {
	return &dto.CongruencyReport{IsValid: true, Issues: []dto.CongruencyIssue{}}, nil
}

func newScheduleConfigRouter(m *scheduleConfigMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &ScheduleConfigHandler{service: m}
	r := gin.New()
	r.GET("/schools/:id/schedule-configs", h.List)
	r.GET("/schools/:id/schedule-configs/:level", h.Get)
	r.PUT("/schools/:id/schedule-configs/:level", h.Upsert)
	r.GET("/schools/:id/schedule-configs/:level/history", h.History)
	r.GET("/schools/:id/schedule-configs/:level/slots", h.Slots)
	r.GET("/schools/:id/schedule-congruency", h.Congruency)
	r.GET("/courses/:id/schedule-config", h.CourseConfig)
	r.GET("/teachers/:id/schedule-config", h.TeacherConfig)
	return r
}

func TestScheduleConfigHandlerGetNormalisesLevel(t *testing.T) {
	m := &scheduleConfigMock{}
	r := newScheduleConfigRouter(m)

	w := doJSON(r, http.MethodGet, "/schools/school-1/schedule-configs/basic", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "school-1", m.school)
	assert.Equal(t, "BASIC", m.level)
	assert.Contains(t, w.Body.String(), `"isDefault":true`)
	assert.Contains(t, w.Body.String(), `"blockDuration":45`)
}

func TestScheduleConfigHandlerUpsert(t *testing.T) {
	m := &scheduleConfigMock{}
	r := newScheduleConfigRouter(m)

	w := doJSON(r, http.MethodPut, "/schools/school-1/schedule-configs/MIDDLE", `{"startTime":"07:30","endTime":"13:30","blockDuration":90,"breaks":[{"afterBlock":2,"duration":15,"name":"Recess"}],"changeReason":"new term"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MIDDLE", m.level)
	assert.Equal(t, "07:30", m.saved.StartTime)
	require.Len(t, m.saved.Breaks, 1)
	assert.Equal(t, "new term", m.saved.ChangeReason)
	assert.Contains(t, w.Body.String(), `"deprecatedSchedules":2`)

	w = doJSON(r, http.MethodPut, "/schools/school-1/schedule-configs/MIDDLE", `{"startTime":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	m.saveErr = appErrors.Clone(appErrors.ErrInvalidGrid, "block duration must be a multiple of 15 minutes")
	w = doJSON(r, http.MethodPut, "/schools/school-1/schedule-configs/MIDDLE", `{"startTime":"07:30","endTime":"13:30","blockDuration":50}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrInvalidGrid.Code, env.Error.Code)
}

func TestScheduleConfigHandlerHistoryLimit(t *testing.T) {
	m := &scheduleConfigMock{}
	r := newScheduleConfigRouter(m)

	w := doJSON(r, http.MethodGet, "/schools/school-1/schedule-configs/BASIC/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, defaultHistoryLimit, m.limit)

	w = doJSON(r, http.MethodGet, "/schools/school-1/schedule-configs/BASIC/history?limit=3", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, m.limit)
	assert.Contains(t, w.Body.String(), `"pagination":{"page":1,"page_size":3,"total_count":0}`)

	m.historyCall = false
	for _, raw := range []string{"0", "abc", "500"} {
		w = doJSON(r, http.MethodGet, "/schools/school-1/schedule-configs/BASIC/history?limit="+raw, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, raw)
	}
	assert.False(t, m.historyCall)
}

func TestScheduleConfigHandlerReadEndpoints(t *testing.T) {
	r := newScheduleConfigRouter(&scheduleConfigMock{})

	w := doJSON(r, http.MethodGet, "/schools/school-1/schedule-configs", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/schools/school-1/schedule-configs/BASIC/slots", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"teachingBlocks":5`)

	w = doJSON(r, http.MethodGet, "/schools/school-1/schedule-congruency", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"isValid":true`)

	w = doJSON(r, http.MethodGet, "/teachers/teacher-1/schedule-config", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/courses/missing/schedule-config", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
