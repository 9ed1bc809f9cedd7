package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type timetableGenerator interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error)
	GenerateBatch(ctx context.Context, req dto.BatchGenerateRequest) (*dto.BatchGenerateResponse, error)
	Save(ctx context.Context, req dto.SaveTimetableRequest) (*dto.SaveTimetableResponse, error)
	ListCourseBlocks(ctx context.Context, courseID string) (*dto.TimetableView, error)
	ListTeacherBlocks(ctx context.Context, teacherID string) (*dto.TimetableView, error)
	Delete(ctx context.Context, scheduleID string) error
}

type blockValidator interface {
	ValidateBlock(ctx context.Context, req dto.ValidateBlockRequest) (*dto.ValidateBlockResponse, error)
}

// TimetableHandler exposes generation, persistence and timetable views.
type TimetableHandler struct {
	generator timetableGenerator
	conflicts blockValidator
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(generator *service.TimetableGeneratorService, conflicts *service.ScheduleConflictService) *TimetableHandler {
	return &TimetableHandler{generator: generator, conflicts: conflicts}
}

// Generate godoc
// @Summary Generate a timetable proposal for a course
// @Description Runs the greedy generator. A successful run returns a proposalId to save; a run that cannot start answers 422 with the diagnostics.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /timetables/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	result, err := h.generator.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !result.Success {
		response.Partial(c, result, appErrors.Clone(appErrors.ErrSetupFailed, strings.Join(result.Errors, "; ")))
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// GenerateBatch godoc
// @Summary Generate proposals for several courses
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.BatchGenerateRequest true "Batch payload"
// @Success 200 {object} response.Envelope
// @Router /timetables/generate/batch [post]
func (h *TimetableHandler) GenerateBatch(c *gin.Context) {
	var req dto.BatchGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch payload"))
		return
	}
	result, err := h.generator.GenerateBatch(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, map[string]interface{}{
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	})
}

// Save godoc
// @Summary Save a proposal or an edited block list as the course timetable
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.SaveTimetableRequest true "Save payload"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /timetables/save [post]
func (h *TimetableHandler) Save(c *gin.Context) {
	var req dto.SaveTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid save payload"))
		return
	}
	result, err := h.generator.Save(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Created {
		response.Created(c, result)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// CourseTimetable godoc
// @Summary Committed timetable of a course
// @Tags Timetables
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/timetable [get]
func (h *TimetableHandler) CourseTimetable(c *gin.Context) {
	view, err := h.generator.ListCourseBlocks(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// TeacherTimetable godoc
// @Summary Committed timetable of a teacher across courses
// @Tags Timetables
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/timetable [get]
func (h *TimetableHandler) TeacherTimetable(c *gin.Context) {
	view, err := h.generator.ListTeacherBlocks(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Delete godoc
// @Summary Delete a schedule and its blocks
// @Tags Timetables
// @Param id path string true "Schedule ID"
// @Success 204
// @Router /timetables/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	if err := h.generator.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ValidateBlock godoc
// @Summary Check a block for conflicts before placing it
// @Description Error-severity findings make the block invalid; an unavailable teacher is reported as a warning.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.ValidateBlockRequest true "Block payload"
// @Success 200 {object} response.Envelope
// @Router /timetables/conflicts/validate [post]
func (h *TimetableHandler) ValidateBlock(c *gin.Context) {
	var req dto.ValidateBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid block payload"))
		return
	}
	result, err := h.conflicts.ValidateBlock(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
