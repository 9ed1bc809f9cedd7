package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ScheduleLevelConfig stores the daily time grid of a school for one academic level.
// Breaks is the JSON encoded list of break definitions.
type ScheduleLevelConfig struct {
	ID            string         `db:"id" json:"id"`
	SchoolID      string         `db:"school_id" json:"school_id"`
	AcademicLevel string         `db:"academic_level" json:"academic_level"`
	StartTime     string         `db:"start_time" json:"start_time"`
	EndTime       string         `db:"end_time" json:"end_time"`
	BlockDuration int            `db:"block_duration" json:"block_duration"`
	Breaks        types.JSONText `db:"breaks" json:"breaks"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// ScheduleLevelConfigHistory keeps the previous values of a config whenever a critical field changes.
type ScheduleLevelConfigHistory struct {
	ID            string         `db:"id" json:"id"`
	ConfigID      string         `db:"config_id" json:"config_id"`
	SchoolID      string         `db:"school_id" json:"school_id"`
	AcademicLevel string         `db:"academic_level" json:"academic_level"`
	StartTime     string         `db:"start_time" json:"start_time"`
	EndTime       string         `db:"end_time" json:"end_time"`
	BlockDuration int            `db:"block_duration" json:"block_duration"`
	Breaks        types.JSONText `db:"breaks" json:"breaks"`
	ChangedBy     *string        `db:"changed_by" json:"changed_by,omitempty"`
	ChangeReason  string         `db:"change_reason" json:"change_reason"`
	CreatedAt     time.Time      `db:"created_at" json:"changed_at"`
}
