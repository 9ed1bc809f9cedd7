package models

import "time"

// Course is a group of students that shares one weekly timetable.
type Course struct {
	ID            string    `db:"id" json:"id"`
	SchoolID      string    `db:"school_id" json:"school_id"`
	Name          string    `db:"name" json:"name"`
	AcademicLevel string    `db:"academic_level" json:"academic_level"`
	AcademicYear  int       `db:"academic_year" json:"academic_year"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
