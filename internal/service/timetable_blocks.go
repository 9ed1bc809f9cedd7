package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/timetable"
)

func blockFromModel(m models.ScheduleBlock) (timetable.Block, error) {
	start, err := timetable.ParseClock(m.StartTime)
	if err != nil {
		return timetable.Block{}, fmt.Errorf("block %s: %w", m.ID, err)
	}
	end, err := timetable.ParseClock(m.EndTime)
	if err != nil {
		return timetable.Block{}, fmt.Errorf("block %s: %w", m.ID, err)
	}
	day, ok := timetable.ParseWeekday(m.DayOfWeek)
	if !ok {
		return timetable.Block{}, fmt.Errorf("block %s: unknown day %q", m.ID, m.DayOfWeek)
	}
	b := timetable.Block{
		ID:        m.ID,
		CourseID:  m.CourseID,
		Day:       day,
		Start:     start,
		End:       end,
		SubjectID: m.SubjectID,
		TeacherID: m.TeacherID,
		Color:     m.Color,
	}
	if m.Classroom != nil {
		b.Classroom = *m.Classroom
	}
	return b, nil
}

func blocksFromModels(rows []models.ScheduleBlock) ([]timetable.Block, error) {
	blocks := make([]timetable.Block, 0, len(rows))
	for _, row := range rows {
		b, err := blockFromModel(row)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// blockFromInput turns a client block into a core block of the course. Blocks without an id get a fresh one.
func blockFromInput(courseID string, in dto.BlockInput) (timetable.Block, error) {
	start, err := timetable.ParseClock(in.StartTime)
	if err != nil {
		return timetable.Block{}, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	end, err := timetable.ParseClock(in.EndTime)
	if err != nil {
		return timetable.Block{}, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if end <= start {
		return timetable.Block{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("block %s %s-%s: end time must be after start time", in.Day, in.StartTime, in.EndTime))
	}
	day, ok := timetable.ParseWeekday(in.Day)
	if !ok {
		return timetable.Block{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day %q", in.Day))
	}
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	color := in.Color
	if color == "" {
		color = timetable.DefaultBlockColor
	}
	return timetable.Block{
		ID:        id,
		CourseID:  courseID,
		Day:       day,
		Start:     start,
		End:       end,
		SubjectID: in.SubjectID,
		TeacherID: in.TeacherID,
		Classroom: in.Classroom,
		Color:     color,
	}, nil
}

func blocksFromInput(courseID string, inputs []dto.BlockInput) ([]timetable.Block, error) {
	blocks := make([]timetable.Block, 0, len(inputs))
	seen := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		b, err := blockFromInput(courseID, in)
		if err != nil {
			return nil, err
		}
		if seen[b.ID] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("block id %s is used more than once", b.ID))
		}
		seen[b.ID] = true
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// toScheduleBlocks maps core blocks onto rows, numbering each by the teaching slot it starts in.
// Blocks that do not start on a grid slot keep block number 0.
func toScheduleBlocks(blocks []timetable.Block, cfg timetable.LevelConfig) []models.ScheduleBlock {
	numbers := make(map[timetable.Clock]int)
	if slots, err := timetable.BuildDaySlots(cfg); err == nil {
		for _, slot := range timetable.TeachingBlocks(slots) {
			numbers[slot.Start] = slot.BlockNumber
		}
	}

	rows := make([]models.ScheduleBlock, 0, len(blocks))
	for _, b := range blocks {
		row := models.ScheduleBlock{
			ID:          b.ID,
			CourseID:    b.CourseID,
			SubjectID:   b.SubjectID,
			TeacherID:   b.TeacherID,
			DayOfWeek:   string(b.Day),
			BlockNumber: numbers[b.Start],
			StartTime:   b.Start.String(),
			EndTime:     b.End.String(),
			Duration:    b.Interval().Minutes(),
			Color:       b.Color,
		}
		if b.Classroom != "" {
			classroom := b.Classroom
			row.Classroom = &classroom
		}
		rows = append(rows, row)
	}
	return rows
}

type teacherDay struct {
	teacherID string
	day       timetable.Weekday
}

type teacherDayLister interface {
	ListTeacherBlocksOnDay(ctx context.Context, teacherID, day, excludeCourseID string) ([]models.ScheduleBlock, error)
}

// committedBlocks lazily loads the blocks a teacher holds in other courses, one query per teacher and day.
// It is not safe for concurrent use; callers build one per request.
type committedBlocks struct {
	repo     teacherDayLister
	courseID string
	loaded   map[teacherDay][]timetable.Block
}

func newCommittedBlocks(repo teacherDayLister, courseID string) *committedBlocks {
	return &committedBlocks{repo: repo, courseID: courseID, loaded: make(map[teacherDay][]timetable.Block)}
}

func (c *committedBlocks) forTeacher(ctx context.Context, teacherID string, day timetable.Weekday) ([]timetable.Block, error) {
	key := teacherDay{teacherID: teacherID, day: day}
	if blocks, ok := c.loaded[key]; ok {
		return blocks, nil
	}
	rows, err := c.repo.ListTeacherBlocksOnDay(ctx, teacherID, string(day), c.courseID)
	if err != nil {
		return nil, err
	}
	blocks, err := blocksFromModels(rows)
	if err != nil {
		return nil, err
	}
	c.loaded[key] = blocks
	return blocks, nil
}

// committedChecker implements timetable.AvailabilityChecker on top of a snapshot: the teacher must be available
// per their declared intervals and must not already teach another course at that time.
type committedChecker struct {
	snapshot  timetable.AvailabilityChecker
	committed *committedBlocks
}

func (c *committedChecker) Check(ctx context.Context, teacherID string, day timetable.Weekday, start, end timetable.Clock) (bool, error) {
	ok, err := c.snapshot.Check(ctx, teacherID, day, start, end)
	if err != nil || !ok {
		return false, err
	}
	busy, err := c.committed.forTeacher(ctx, teacherID, day)
	if err != nil {
		return false, err
	}
	for _, b := range busy {
		if timetable.Overlaps(b.Start, b.End, start, end) {
			return false, nil
		}
	}
	return true, nil
}

// committedConflicts checks a full course timetable before it is written: blocks of the course must not
// overlap each other and their teachers must be free in every other course.
func committedConflicts(ctx context.Context, committed *committedBlocks, blocks []timetable.Block) ([]timetable.Conflict, error) {
	conflicts := make([]timetable.Conflict, 0)
	for _, b := range blocks {
		if ids := timetable.CourseOverlap(b, blocks); len(ids) > 0 {
			conflicts = append(conflicts, timetable.Conflict{
				Kind:             timetable.ConflictCourseOverlap,
				Message:          "course already has a block at this time",
				BlockID:          b.ID,
				AffectedBlockIDs: ids,
				Severity:         timetable.SeverityError,
			})
		}
		others, err := committed.forTeacher(ctx, b.TeacherID, b.Day)
		if err != nil {
			return nil, err
		}
		if ids := timetable.TeacherDoubleBooked(b, others); len(ids) > 0 {
			conflicts = append(conflicts, timetable.Conflict{
				Kind:             timetable.ConflictTeacherDoubleBooking,
				Message:          "teacher is already assigned to another course at this time",
				BlockID:          b.ID,
				AffectedBlockIDs: ids,
				Severity:         timetable.SeverityError,
			})
		}
	}
	return conflicts, nil
}

func hasErrors(conflicts []timetable.Conflict) bool {
	for _, c := range conflicts {
		if c.Severity == timetable.SeverityError {
			return true
		}
	}
	return false
}
