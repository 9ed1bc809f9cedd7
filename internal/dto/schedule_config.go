package dto

import (
	"time"

	"github.com/noah-isme/sma-timetable-api/pkg/timetable"
)

// UpsertScheduleConfigRequest replaces the daily grid of a school level.
type UpsertScheduleConfigRequest struct {
	StartTime     string                  `json:"startTime" validate:"required,datetime=15:04"`
	EndTime       string                  `json:"endTime" validate:"required,datetime=15:04"`
	BlockDuration int                     `json:"blockDuration" validate:"required,min=15,max=240"`
	Breaks        []timetable.BreakConfig `json:"breaks" validate:"max=12,dive"`
	ChangeReason  string                  `json:"changeReason" validate:"omitempty,max=255"`
	ChangedBy     string                  `json:"changedBy" validate:"omitempty,max=64"`
}

// ScheduleConfigResponse is a stored or default level config.
type ScheduleConfigResponse struct {
	ID        string `json:"id,omitempty"`
	IsDefault bool   `json:"isDefault"`
	timetable.LevelConfig
}

// SaveScheduleConfigResponse reports side effects of a config change.
type SaveScheduleConfigResponse struct {
	Config             ScheduleConfigResponse `json:"config"`
	CriticalChange     bool                   `json:"criticalChange"`
	DeprecatedSchedule int64                  `json:"deprecatedSchedules"`
}

// ScheduleConfigHistoryItem is a previous version of a level config.
type ScheduleConfigHistoryItem struct {
	ID            string                  `json:"id"`
	StartTime     string                  `json:"startTime"`
	EndTime       string                  `json:"endTime"`
	BlockDuration int                     `json:"blockDuration"`
	Breaks        []timetable.BreakConfig `json:"breaks"`
	ChangedBy     *string                 `json:"changedBy,omitempty"`
	ChangeReason  string                  `json:"changeReason"`
	ChangedAt     time.Time               `json:"changedAt"`
}

// SlotPreviewResponse shows the day grid a config produces.
type SlotPreviewResponse struct {
	Config         timetable.LevelConfig `json:"config"`
	Slots          []timetable.TimeSlot  `json:"slots"`
	TeachingBlocks int                   `json:"teachingBlocks"`
	TeachingHours  float64               `json:"teachingHours"`
}

// LevelSummary is the part of a level config relevant to congruency.
type LevelSummary struct {
	Level         string `json:"level"`
	StartTime     string `json:"startTime"`
	EndTime       string `json:"endTime"`
	BlockDuration int    `json:"blockDuration"`
}

// CongruencyIssue flags a teacher whose courses follow incompatible grids.
type CongruencyIssue struct {
	Type       string         `json:"type"`
	EntityID   string         `json:"entityId"`
	EntityName string         `json:"entityName"`
	Issue      string         `json:"issue"`
	Levels     []string       `json:"levels"`
	Configs    []LevelSummary `json:"configs"`
}

// CongruencyReport is the result of a school-wide congruency check.
type CongruencyReport struct {
	IsValid     bool              `json:"isValid"`
	IssuesCount int               `json:"issuesCount"`
	Issues      []CongruencyIssue `json:"issues"`
}
