package dto

import (
	"time"

	"github.com/noah-isme/sma-timetable-api/pkg/timetable"
)

// GenerateTimetableRequest instructs the generator to build a proposal for one course.
type GenerateTimetableRequest struct {
	CourseID     string                  `json:"courseId" validate:"required"`
	Requirements []timetable.Requirement `json:"requirements" validate:"max=64,dive"`
	Constraints  timetable.Constraints   `json:"constraints"`
	Days         []string                `json:"days" validate:"omitempty,max=6,dive,oneof=MONDAY TUESDAY WEDNESDAY THURSDAY FRIDAY SATURDAY"`
	// TeacherIDs narrows the eligible teachers; empty means every qualified teacher of the school.
	TeacherIDs []string `json:"teacherIds" validate:"omitempty,max=256"`
}

// GenerateTimetableResponse carries the generation result and, on success, the proposal handle.
type GenerateTimetableResponse struct {
	ProposalID string     `json:"proposalId,omitempty"`
	CourseID   string     `json:"courseId"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	*timetable.Result
}

// BatchGenerateRequest runs independent generations for several courses.
type BatchGenerateRequest struct {
	Courses []GenerateTimetableRequest `json:"courses" validate:"required,min=1,max=50,dive"`
}

// BatchGenerateItem is the outcome for one course of a batch.
type BatchGenerateItem struct {
	CourseID string                     `json:"courseId"`
	Proposal *GenerateTimetableResponse `json:"proposal,omitempty"`
	Error    string                     `json:"error,omitempty"`
}

// BatchGenerateResponse lists per-course outcomes in request order.
type BatchGenerateResponse struct {
	Items     []BatchGenerateItem `json:"items"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
}

// BlockInput describes a manually placed or edited block.
type BlockInput struct {
	ID        string `json:"id"`
	Day       string `json:"day" validate:"required,oneof=MONDAY TUESDAY WEDNESDAY THURSDAY FRIDAY SATURDAY"`
	StartTime string `json:"startTime" validate:"required,datetime=15:04"`
	EndTime   string `json:"endTime" validate:"required,datetime=15:04"`
	SubjectID string `json:"subjectId" validate:"required"`
	TeacherID string `json:"teacherId" validate:"required"`
	Classroom string `json:"classroom" validate:"omitempty,max=64"`
	Color     string `json:"color" validate:"omitempty,hexcolor"`
}

// SaveTimetableRequest persists either a stored proposal or an edited block list for a course.
type SaveTimetableRequest struct {
	ProposalID string       `json:"proposalId" validate:"required_without=CourseID"`
	CourseID   string       `json:"courseId" validate:"required_without=ProposalID"`
	Blocks     []BlockInput `json:"blocks" validate:"omitempty,max=200,dive"`
}

// SaveTimetableResponse reports the schedule the blocks were written to.
type SaveTimetableResponse struct {
	ScheduleID string `json:"scheduleId"`
	CourseID   string `json:"courseId"`
	Blocks     int    `json:"blocks"`
	Created    bool   `json:"created"`
}

// TimetableView is a course or teacher timetable as rendered by the API.
type TimetableView struct {
	Mode      string                `json:"mode"`
	OwnerID   string                `json:"ownerId"`
	Config    timetable.LevelConfig `json:"config"`
	Blocks    []timetable.BlockView `json:"blocks"`
	Scheduled int                   `json:"scheduled"`
}

// ValidateBlockRequest asks whether a block can be placed in a course timetable.
type ValidateBlockRequest struct {
	CourseID string     `json:"courseId" validate:"required"`
	Block    BlockInput `json:"block"`
	// Draft lists unsaved blocks of the course that should be checked alongside the stored ones.
	Draft []BlockInput `json:"draft" validate:"omitempty,max=200,dive"`
}

// ValidateBlockResponse lists the conflicts found for the block.
type ValidateBlockResponse struct {
	Valid     bool                 `json:"valid"`
	Conflicts []timetable.Conflict `json:"conflicts"`
}
