package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// TeacherRepository reads teachers together with their qualifications and availability.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

const teacherColumns = `t.id, t.school_id, t.first_name, t.last_name, t.email, t.active, t.created_at, t.updated_at`

// FindByID loads a teacher by id.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	query := `SELECT ` + teacherColumns + ` FROM teachers t WHERE t.id = $1`
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// ListQualified returns active teachers of the school qualified for at least one of the subjects.
// When teacherIDs is not empty the result is restricted to those teachers.
func (r *TeacherRepository) ListQualified(ctx context.Context, schoolID string, subjectIDs, teacherIDs []string) ([]models.Teacher, error) {
	if len(subjectIDs) == 0 {
		return []models.Teacher{}, nil
	}
	query := `SELECT DISTINCT ` + teacherColumns + `
FROM teachers t
JOIN teacher_subjects ts ON ts.teacher_id = t.id
WHERE t.school_id = $1 AND t.active = TRUE AND ts.subject_id = ANY($2)`
	args := []interface{}{schoolID, pq.Array(subjectIDs)}
	if len(teacherIDs) > 0 {
		query += ` AND t.id = ANY($3)`
		args = append(args, pq.Array(teacherIDs))
	}
	query += ` ORDER BY t.last_name ASC, t.first_name ASC, t.id ASC`

	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, args...); err != nil {
		return nil, fmt.Errorf("list qualified teachers: %w", err)
	}
	return teachers, nil
}

// ListBySchool returns every active teacher of the school.
func (r *TeacherRepository) ListBySchool(ctx context.Context, schoolID string) ([]models.Teacher, error) {
	query := `SELECT ` + teacherColumns + ` FROM teachers t WHERE t.school_id = $1 AND t.active = TRUE ORDER BY t.last_name ASC, t.first_name ASC`
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, schoolID); err != nil {
		return nil, fmt.Errorf("list teachers by school: %w", err)
	}
	return teachers, nil
}

// ListSubjects returns the qualification rows of the given teachers.
func (r *TeacherRepository) ListSubjects(ctx context.Context, teacherIDs []string) ([]models.TeacherSubject, error) {
	if len(teacherIDs) == 0 {
		return []models.TeacherSubject{}, nil
	}
	const query = `SELECT teacher_id, subject_id FROM teacher_subjects WHERE teacher_id = ANY($1)`
	var rows []models.TeacherSubject
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(teacherIDs)); err != nil {
		return nil, fmt.Errorf("list teacher subjects: %w", err)
	}
	return rows, nil
}

// ListAvailability returns the declared availability windows of the teachers for one academic year.
func (r *TeacherRepository) ListAvailability(ctx context.Context, teacherIDs []string, academicYear int) ([]models.TeacherAvailabilitySlot, error) {
	if len(teacherIDs) == 0 {
		return []models.TeacherAvailabilitySlot{}, nil
	}
	const query = `SELECT id, teacher_id, academic_year, day_of_week, start_time, end_time
FROM teacher_availability WHERE teacher_id = ANY($1) AND academic_year = $2
ORDER BY teacher_id ASC, day_of_week ASC, start_time ASC`
	var rows []models.TeacherAvailabilitySlot
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(teacherIDs), academicYear); err != nil {
		return nil, fmt.Errorf("list teacher availability: %w", err)
	}
	return rows, nil
}
