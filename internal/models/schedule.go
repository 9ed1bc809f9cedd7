package models

import "time"

// Schedule is the persisted weekly timetable of a course for an academic year.
type Schedule struct {
	ID           string    `db:"id" json:"id"`
	SchoolID     string    `db:"school_id" json:"school_id"`
	CourseID     string    `db:"course_id" json:"course_id"`
	Name         string    `db:"name" json:"name"`
	AcademicYear int       `db:"academic_year" json:"academic_year"`
	Semester     int       `db:"semester" json:"semester"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	IsDeprecated bool      `db:"is_deprecated" json:"is_deprecated"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ScheduleBlock is one committed teaching block of a schedule.
type ScheduleBlock struct {
	ID          string    `db:"id" json:"id"`
	ScheduleID  string    `db:"schedule_id" json:"schedule_id"`
	CourseID    string    `db:"course_id" json:"course_id"`
	SubjectID   string    `db:"subject_id" json:"subject_id"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	DayOfWeek   string    `db:"day_of_week" json:"day_of_week"`
	BlockNumber int       `db:"block_number" json:"block_number"`
	StartTime   string    `db:"start_time" json:"start_time"`
	EndTime     string    `db:"end_time" json:"end_time"`
	Duration    int       `db:"duration" json:"duration"`
	Classroom   *string   `db:"classroom" json:"classroom,omitempty"`
	Color       string    `db:"color" json:"color"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ScheduleBlockDetail joins a block with the course level, used by congruency checks.
type ScheduleBlockDetail struct {
	ScheduleBlock
	AcademicLevel string `db:"academic_level" json:"academic_level"`
}
