package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// TimetableRepository persists course schedules and their blocks.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs the repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const (
	scheduleColumns = `id, school_id, course_id, name, academic_year, semester, is_active, is_deprecated, created_at, updated_at`
	blockColumns    = `b.id, b.schedule_id, b.course_id, b.subject_id, b.teacher_id, b.day_of_week, b.block_number, b.start_time, b.end_time, b.duration, b.classroom, b.color, b.created_at`
)

// FindActiveByCourse returns the active schedule of a course for an academic year.
func (r *TimetableRepository) FindActiveByCourse(ctx context.Context, exec sqlx.ExtContext, courseID string, academicYear int) (*models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE course_id = $1 AND academic_year = $2 AND is_active = TRUE ORDER BY created_at DESC LIMIT 1`
	var schedule models.Schedule
	if err := sqlx.GetContext(ctx, r.exec(exec), &schedule, query, courseID, academicYear); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// FindByID loads a schedule by id.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = $1`
	var schedule models.Schedule
	if err := r.db.GetContext(ctx, &schedule, query, id); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// CreateSchedule inserts a schedule row.
func (r *TimetableRepository) CreateSchedule(ctx context.Context, exec sqlx.ExtContext, schedule *models.Schedule) error {
	if schedule == nil {
		return fmt.Errorf("schedule payload is nil")
	}
	if schedule.CourseID == "" {
		return fmt.Errorf("course_id is required")
	}
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now

	const query = `
INSERT INTO schedules (id, school_id, course_id, name, academic_year, semester, is_active, is_deprecated, created_at, updated_at)
VALUES (:id, :school_id, :course_id, :name, :academic_year, :semester, :is_active, :is_deprecated, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, schedule); err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

// ReplaceBlocks swaps every block of the schedule for the given ones and clears the deprecation flag.
func (r *TimetableRepository) ReplaceBlocks(ctx context.Context, exec sqlx.ExtContext, scheduleID string, blocks []models.ScheduleBlock) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM schedule_blocks WHERE schedule_id = $1`, scheduleID); err != nil {
		return fmt.Errorf("delete schedule blocks: %w", err)
	}

	now := time.Now().UTC()
	const insert = `
INSERT INTO schedule_blocks (id, schedule_id, course_id, subject_id, teacher_id, day_of_week, block_number, start_time, end_time, duration, classroom, color, created_at)
VALUES (:id, :schedule_id, :course_id, :subject_id, :teacher_id, :day_of_week, :block_number, :start_time, :end_time, :duration, :classroom, :color, :created_at)`
	for i := range blocks {
		block := &blocks[i]
		if block.ID == "" {
			block.ID = uuid.NewString()
		}
		block.ScheduleID = scheduleID
		if block.CreatedAt.IsZero() {
			block.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, insert, block); err != nil {
			return fmt.Errorf("insert schedule block: %w", err)
		}
	}

	if _, err := target.ExecContext(ctx, `UPDATE schedules SET is_deprecated = FALSE, updated_at = $1 WHERE id = $2`, now, scheduleID); err != nil {
		return fmt.Errorf("touch schedule: %w", err)
	}
	return nil
}

// ListBlocksByCourse returns the blocks of the course's active schedules ordered by day and time.
func (r *TimetableRepository) ListBlocksByCourse(ctx context.Context, courseID string) ([]models.ScheduleBlock, error) {
	query := `SELECT ` + blockColumns + `
FROM schedule_blocks b JOIN schedules s ON s.id = b.schedule_id
WHERE b.course_id = $1 AND s.is_active = TRUE
ORDER BY b.day_of_week ASC, b.start_time ASC`
	var blocks []models.ScheduleBlock
	if err := r.db.SelectContext(ctx, &blocks, query, courseID); err != nil {
		return nil, fmt.Errorf("list course blocks: %w", err)
	}
	return blocks, nil
}

// ListBlocksByTeacher returns every active block taught by the teacher across courses.
func (r *TimetableRepository) ListBlocksByTeacher(ctx context.Context, teacherID string) ([]models.ScheduleBlock, error) {
	query := `SELECT ` + blockColumns + `
FROM schedule_blocks b JOIN schedules s ON s.id = b.schedule_id
WHERE b.teacher_id = $1 AND s.is_active = TRUE
ORDER BY b.day_of_week ASC, b.start_time ASC`
	var blocks []models.ScheduleBlock
	if err := r.db.SelectContext(ctx, &blocks, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher blocks: %w", err)
	}
	return blocks, nil
}

// ListTeacherBlocksOnDay returns the teacher's active blocks on one day that belong to other courses.
func (r *TimetableRepository) ListTeacherBlocksOnDay(ctx context.Context, teacherID, day, excludeCourseID string) ([]models.ScheduleBlock, error) {
	query := `SELECT ` + blockColumns + `
FROM schedule_blocks b JOIN schedules s ON s.id = b.schedule_id
WHERE b.teacher_id = $1 AND b.day_of_week = $2 AND b.course_id <> $3 AND s.is_active = TRUE
ORDER BY b.start_time ASC`
	var blocks []models.ScheduleBlock
	if err := r.db.SelectContext(ctx, &blocks, query, teacherID, day, excludeCourseID); err != nil {
		return nil, fmt.Errorf("list teacher blocks on day: %w", err)
	}
	return blocks, nil
}

// ListBlocksBySchool returns every active block of the school joined with its course level.
func (r *TimetableRepository) ListBlocksBySchool(ctx context.Context, schoolID string) ([]models.ScheduleBlockDetail, error) {
	query := `SELECT ` + blockColumns + `, c.academic_level
FROM schedule_blocks b
JOIN schedules s ON s.id = b.schedule_id
JOIN courses c ON c.id = b.course_id
WHERE c.school_id = $1 AND s.is_active = TRUE
ORDER BY b.teacher_id ASC`
	var blocks []models.ScheduleBlockDetail
	if err := r.db.SelectContext(ctx, &blocks, query, schoolID); err != nil {
		return nil, fmt.Errorf("list school blocks: %w", err)
	}
	return blocks, nil
}

// MarkDeprecatedForLevel flags the active schedules of every course of the level as out of date.
func (r *TimetableRepository) MarkDeprecatedForLevel(ctx context.Context, exec sqlx.ExtContext, schoolID, level string) (int64, error) {
	const query = `UPDATE schedules SET is_deprecated = TRUE, updated_at = $3
WHERE is_active = TRUE AND course_id IN (SELECT id FROM courses WHERE school_id = $1 AND academic_level = $2)`
	result, err := r.exec(exec).ExecContext(ctx, query, schoolID, level, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("mark schedules deprecated: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deprecated schedules rows affected: %w", err)
	}
	return affected, nil
}

// DeleteSchedule removes a schedule and its blocks.
func (r *TimetableRepository) DeleteSchedule(ctx context.Context, exec sqlx.ExtContext, id string) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM schedule_blocks WHERE schedule_id = $1`, id); err != nil {
		return fmt.Errorf("delete schedule blocks: %w", err)
	}
	result, err := target.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("schedule rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
