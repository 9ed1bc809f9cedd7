package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/timetable"
)

type conflictBlockReader interface {
	ListBlocksByCourse(ctx context.Context, courseID string) ([]models.ScheduleBlock, error)
	ListBlocksByTeacher(ctx context.Context, teacherID string) ([]models.ScheduleBlock, error)
}

type availabilityReader interface {
	ListAvailability(ctx context.Context, teacherIDs []string, academicYear int) ([]models.TeacherAvailabilitySlot, error)
}

// ScheduleConflictService validates single blocks while a timetable is edited by hand.
type ScheduleConflictService struct {
	courses      courseReader
	blocks       conflictBlockReader
	availability availabilityReader
	academicYear int
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewScheduleConflictService constructs the conflict service. academicYear 0 uses the course's year.
func NewScheduleConflictService(courses courseReader, blocks conflictBlockReader, availability availabilityReader, academicYear int, validate *validator.Validate, logger *zap.Logger) *ScheduleConflictService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleConflictService{
		courses:      courses,
		blocks:       blocks,
		availability: availability,
		academicYear: academicYear,
		validator:    validate,
		logger:       logger,
	}
}

// ValidateBlock checks a candidate block against the course's stored and draft blocks, the teacher's blocks
// in other courses and the teacher's declared availability. A stored block with the candidate's id is
// treated as the version being edited and ignored.
func (s *ScheduleConflictService) ValidateBlock(ctx context.Context, req dto.ValidateBlockRequest) (*dto.ValidateBlockResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid block payload")
	}
	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		return nil, notFoundOrInternal(err, "course not found", "failed to load course")
	}

	candidate, err := blockFromInput(course.ID, req.Block)
	if err != nil {
		return nil, err
	}
	draft, err := blocksFromInput(course.ID, req.Draft)
	if err != nil {
		return nil, err
	}

	courseRows, err := s.blocks.ListBlocksByCourse(ctx, course.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course blocks")
	}
	teacherRows, err := s.blocks.ListBlocksByTeacher(ctx, candidate.TeacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher blocks")
	}

	pool := make([]timetable.Block, 0, len(courseRows)+len(teacherRows)+len(draft))
	seen := make(map[string]bool)
	draftIDs := make(map[string]bool, len(draft))
	for _, b := range draft {
		draftIDs[b.ID] = true
	}
	for _, rows := range [][]models.ScheduleBlock{courseRows, teacherRows} {
		for _, row := range rows {
			if seen[row.ID] || draftIDs[row.ID] {
				continue
			}
			seen[row.ID] = true
			b, err := blockFromModel(row)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored schedule block is corrupt")
			}
			pool = append(pool, b)
		}
	}
	pool = append(pool, draft...)

	teacher, err := s.teacherSnapshot(ctx, candidate.TeacherID, course)
	if err != nil {
		return nil, err
	}

	conflicts := timetable.DetectConflicts(candidate, pool, teacher)
	if ids := timetable.CourseOverlap(candidate, pool); len(ids) > 0 {
		conflicts = append(conflicts, timetable.Conflict{
			Kind:             timetable.ConflictCourseOverlap,
			Message:          "course already has a block at this time",
			BlockID:          candidate.ID,
			AffectedBlockIDs: ids,
			Severity:         timetable.SeverityError,
		})
	}

	s.logger.Debug("block validated",
		zap.String("course_id", course.ID),
		zap.String("teacher_id", candidate.TeacherID),
		zap.Int("conflicts", len(conflicts)),
	)
	return &dto.ValidateBlockResponse{Valid: !hasErrors(conflicts), Conflicts: conflicts}, nil
}

// teacherSnapshot returns nil when the teacher has declared no availability for the year,
// which skips the availability check instead of flagging every block.
func (s *ScheduleConflictService) teacherSnapshot(ctx context.Context, teacherID string, course *models.Course) (*timetable.Teacher, error) {
	year := s.academicYear
	if year <= 0 {
		year = course.AcademicYear
	}
	rows, err := s.availability.ListAvailability(ctx, []string{teacherID}, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher availability")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	byDay := make(map[timetable.Weekday][]timetable.Interval)
	for _, row := range rows {
		day, ok := timetable.ParseWeekday(row.DayOfWeek)
		start, startErr := timetable.ParseClock(row.StartTime)
		end, endErr := timetable.ParseClock(row.EndTime)
		if !ok || startErr != nil || endErr != nil {
			continue
		}
		byDay[day] = append(byDay[day], timetable.Interval{Start: start, End: end})
	}
	teacher := &timetable.Teacher{ID: teacherID}
	for _, day := range timetable.AllWeekdays {
		if iv := byDay[day]; len(iv) > 0 {
			teacher.Availability = append(teacher.Availability, timetable.TeacherAvailability{Day: day, TimeSlots: iv})
		}
	}
	return teacher, nil
}
