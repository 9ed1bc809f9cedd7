package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

type scheduleConfigManager interface {
	GetForLevel(ctx context.Context, schoolID, level string) (*dto.ScheduleConfigResponse, error)
	GetForCourse(ctx context.Context, courseID string) (*dto.ScheduleConfigResponse, error)
	GetForTeacher(ctx context.Context, teacherID string) (*dto.ScheduleConfigResponse, error)
	List(ctx context.Context, schoolID string) ([]dto.ScheduleConfigResponse, error)
	Save(ctx context.Context, schoolID, level string, req dto.UpsertScheduleConfigRequest) (*dto.SaveScheduleConfigResponse, error)
	History(ctx context.Context, schoolID, level string, limit int) ([]dto.ScheduleConfigHistoryItem, error)
	PreviewSlots(ctx context.Context, schoolID, level string) (*dto.SlotPreviewResponse, error)
	ValidateCongruency(ctx context.Context, schoolID string) (*dto.CongruencyReport, error)
}

// ScheduleConfigHandler manages the per-level day grids of a school.
type ScheduleConfigHandler struct {
	service scheduleConfigManager
}

// NewScheduleConfigHandler constructs the handler.
func NewScheduleConfigHandler(svc *service.ScheduleConfigService) *ScheduleConfigHandler {
	return &ScheduleConfigHandler{service: svc}
}

func levelParam(c *gin.Context) string {
	return strings.ToUpper(c.Param("level"))
}

// List godoc
// @Summary Day grids of every academic level of a school
// @Tags ScheduleConfig
// @Produce json
// @Param id path string true "School ID"
// @Success 200 {object} response.Envelope
// @Router /schools/{id}/schedule-configs [get]
func (h *ScheduleConfigHandler) List(c *gin.Context) {
	configs, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, configs, nil)
}

// Get godoc
// @Summary Day grid of one academic level
// @Tags ScheduleConfig
// @Produce json
// @Param id path string true "School ID"
// @Param level path string true "BASIC or MIDDLE"
// @Success 200 {object} response.Envelope
// @Router /schools/{id}/schedule-configs/{level} [get]
func (h *ScheduleConfigHandler) Get(c *gin.Context) {
	cfg, err := h.service.GetForLevel(c.Request.Context(), c.Param("id"), levelParam(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}

// Upsert godoc
// @Summary Replace the day grid of an academic level
// @Description Changing the start, end, block length or breaks archives the previous grid and deprecates the level's active schedules.
// @Tags ScheduleConfig
// @Accept json
// @Produce json
// @Param id path string true "School ID"
// @Param level path string true "BASIC or MIDDLE"
// @Param payload body dto.UpsertScheduleConfigRequest true "Grid payload"
// @Success 200 {object} response.Envelope
// @Router /schools/{id}/schedule-configs/{level} [put]
func (h *ScheduleConfigHandler) Upsert(c *gin.Context) {
	var req dto.UpsertScheduleConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid schedule config payload"))
		return
	}
	result, err := h.service.Save(c.Request.Context(), c.Param("id"), levelParam(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// History godoc
// @Summary Previous versions of a level's day grid
// @Tags ScheduleConfig
// @Produce json
// @Param id path string true "School ID"
// @Param level path string true "BASIC or MIDDLE"
// @Param limit query int false "Maximum entries (default 10)"
// @Success 200 {object} response.Envelope
// @Router /schools/{id}/schedule-configs/{level}/history [get]
func (h *ScheduleConfigHandler) History(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxHistoryLimit {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be between 1 and 100"))
			return
		}
		limit = parsed
	}
	items, err := h.service.History(c.Request.Context(), c.Param("id"), levelParam(c), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, &models.Pagination{Page: 1, PageSize: limit, TotalCount: len(items)})
}

// Slots godoc
// @Summary Preview the slots a level's grid produces
// @Tags ScheduleConfig
// @Produce json
// @Param id path string true "School ID"
// @Param level path string true "BASIC or MIDDLE"
// @Success 200 {object} response.Envelope
// @Router /schools/{id}/schedule-configs/{level}/slots [get]
func (h *ScheduleConfigHandler) Slots(c *gin.Context) {
	preview, err := h.service.PreviewSlots(c.Request.Context(), c.Param("id"), levelParam(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, preview, nil)
}

// Congruency godoc
// @Summary Teachers whose courses follow incompatible day grids
// @Tags ScheduleConfig
// @Produce json
// @Param id path string true "School ID"
// @Success 200 {object} response.Envelope
// @Router /schools/{id}/schedule-congruency [get]
func (h *ScheduleConfigHandler) Congruency(c *gin.Context) {
	report, err := h.service.ValidateCongruency(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// CourseConfig godoc
// @Summary Day grid a course follows
// @Tags ScheduleConfig
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/schedule-config [get]
func (h *ScheduleConfigHandler) CourseConfig(c *gin.Context) {
	cfg, err := h.service.GetForCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}

// TeacherConfig godoc
// @Summary Widest day grid across a teacher's school, used for the teacher timetable
// @Tags ScheduleConfig
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/schedule-config [get]
func (h *ScheduleConfigHandler) TeacherConfig(c *gin.Context) {
	cfg, err := h.service.GetForTeacher(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}
