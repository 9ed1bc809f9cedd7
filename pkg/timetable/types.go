package timetable

import (
	"encoding/json"
	"time"
)

// AcademicLevel selects which time-grid configuration a course follows.
type AcademicLevel string

// Supported academic levels.
const (
	LevelBasic  AcademicLevel = "BASIC"
	LevelMiddle AcademicLevel = "MIDDLE"
)

// BreakConfig places a non-teachable interval after the given block number.
type BreakConfig struct {
	AfterBlock int    `json:"afterBlock" validate:"min=1"`
	Duration   int    `json:"duration" validate:"min=15"`
	Name       string `json:"name" validate:"required,max=64"`
}

// LevelConfig is the daily time grid of a school for one academic level.
type LevelConfig struct {
	SchoolID      string        `json:"schoolId,omitempty"`
	AcademicLevel AcademicLevel `json:"academicLevel,omitempty" validate:"omitempty,oneof=BASIC MIDDLE"`
	StartTime     string        `json:"startTime" validate:"required,datetime=15:04"`
	EndTime       string        `json:"endTime" validate:"required,datetime=15:04"`
	BlockDuration int           `json:"blockDuration" validate:"required,min=15,max=240"`
	Breaks        []BreakConfig `json:"breaks" validate:"dive"`
}

// SlotKind distinguishes teaching blocks from breaks.
type SlotKind string

// Slot kinds.
const (
	SlotBlock SlotKind = "block"
	SlotBreak SlotKind = "break"
)

// TimeSlot is one contiguous entry of a day's grid.
type TimeSlot struct {
	Kind            SlotKind `json:"type"`
	Start           Clock    `json:"startTime"`
	End             Clock    `json:"endTime"`
	DurationMinutes int      `json:"duration"`
	BlockNumber     int      `json:"blockNumber,omitempty"`
	BreakName       string   `json:"breakName,omitempty"`
}

// Interval returns the slot's time range.
func (s TimeSlot) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}

// Subject is the generator's read-only view of a subject record.
type Subject struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Code  string `json:"code"`
	Color string `json:"color"`
}

// TeacherAvailability lists the intervals a teacher may be scheduled on one day.
type TeacherAvailability struct {
	Day       Weekday    `json:"dayOfWeek"`
	TimeSlots []Interval `json:"timeSlots"`
}

// Teacher is a snapshot of a teacher's qualifications and weekly availability.
type Teacher struct {
	ID                  string                `json:"id"`
	Name                string                `json:"name"`
	QualifiedSubjectIDs []string              `json:"qualifiedSubjectIds"`
	Availability        []TeacherAvailability `json:"availability"`
}

// Qualified reports whether the teacher may teach the subject.
func (t Teacher) Qualified(subjectID string) bool {
	for _, id := range t.QualifiedSubjectIDs {
		if id == subjectID {
			return true
		}
	}
	return false
}

// Requirement is the weekly demand for one subject in a generation request.
type Requirement struct {
	SubjectID          string `json:"subjectId" validate:"required"`
	HoursPerWeek       int    `json:"hoursPerWeek" validate:"required,min=1,max=40"`
	PreferredTeacherID string `json:"preferredTeacherId,omitempty"`
}

// Constraints toggles soft rules of the generator.
type Constraints struct {
	AvoidConsecutiveBlocks bool `json:"avoidConsecutiveBlocks"`
}

// Block is a committed teaching assignment.
type Block struct {
	ID        string  `json:"id"`
	CourseID  string  `json:"courseId"`
	Day       Weekday `json:"day"`
	Start     Clock   `json:"startTime"`
	End       Clock   `json:"endTime"`
	SubjectID string  `json:"subjectId"`
	TeacherID string  `json:"teacherId"`
	Classroom string  `json:"classroom,omitempty"`
	Color     string  `json:"color"`
}

// Interval returns the block's time range.
func (b Block) Interval() Interval {
	return Interval{Start: b.Start, End: b.End}
}

// ConflictKind enumerates conflict categories.
type ConflictKind string

// Conflict kinds.
const (
	ConflictTeacherDoubleBooking ConflictKind = "TEACHER_DOUBLE_BOOKING"
	ConflictTeacherUnavailable   ConflictKind = "TEACHER_UNAVAILABLE"
	ConflictClassroom            ConflictKind = "CLASSROOM_CONFLICT"
	ConflictCourseOverlap        ConflictKind = "COURSE_OVERLAP"
)

// Severity grades a conflict finding.
type Severity string

// Severities.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Conflict is a finding attached to the block that triggered it.
type Conflict struct {
	Kind             ConflictKind `json:"type"`
	Message          string       `json:"message"`
	BlockID          string       `json:"blockId"`
	AffectedBlockIDs []string     `json:"affectedBlocks,omitempty"`
	Severity         Severity     `json:"severity"`
}

// SubjectCoverage reports how much of a subject's weekly demand was scheduled.
type SubjectCoverage struct {
	SubjectID  string  `json:"subjectId"`
	Subject    string  `json:"subject"`
	Required   float64 `json:"required"`
	Assigned   float64 `json:"assigned"`
	Percentage int     `json:"percentage"`
}

// Stats summarises one generation run.
type Stats struct {
	TotalBlocks         int               `json:"totalBlocks"`
	TeachersUsed        int               `json:"teachersUsed"`
	TotalRequiredHours  float64           `json:"totalRequiredHours"`
	TotalAssignedHours  float64           `json:"totalAssignedHours"`
	CoveragePercentage  int               `json:"coveragePercentage"`
	SubjectsCoverage    []SubjectCoverage `json:"subjectsCoverage"`
	CandidatesEvaluated int               `json:"candidatesEvaluated"`
	ValidationChecks    int               `json:"validationChecks"`
	ValidationCacheHits int               `json:"validationCacheHits"`
	GenerationTime      time.Duration     `json:"-"`
	GenerationTimeMs    int64             `json:"generationTimeMs"`
}

// Result is the outcome of a generation call.
type Result struct {
	Success  bool     `json:"success"`
	Blocks   []Block  `json:"blocks"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Stats    Stats    `json:"stats"`
}

// SetupFailure builds the result returned when generation cannot start.
func SetupFailure(messages ...string) *Result {
	return &Result{
		Success:  false,
		Blocks:   []Block{},
		Errors:   messages,
		Warnings: []string{},
	}
}

// BlockRole carries the counterpart shown for a block, depending on whose timetable is viewed.
type BlockRole interface {
	roleName() string
}

// ForCourse is the role of a block inside a course timetable: the counterpart is the teacher.
type ForCourse struct {
	TeacherID string
}

// ForTeacher is the role of a block inside a teacher timetable: the counterpart is the course.
type ForTeacher struct {
	CourseID string
}

func (ForCourse) roleName() string  { return "course" }
func (ForTeacher) roleName() string { return "teacher" }

// BlockView is a block projected for a course or a teacher timetable.
type BlockView struct {
	ID        string
	Day       Weekday
	Start     Clock
	End       Clock
	SubjectID string
	Classroom string
	Color     string
	Role      BlockRole
}

// MarshalJSON flattens the role into the view payload.
func (v BlockView) MarshalJSON() ([]byte, error) {
	payload := map[string]any{
		"id":        v.ID,
		"day":       v.Day,
		"startTime": v.Start,
		"endTime":   v.End,
		"subjectId": v.SubjectID,
		"color":     v.Color,
	}
	if v.Classroom != "" {
		payload["classroom"] = v.Classroom
	}
	switch role := v.Role.(type) {
	case ForCourse:
		payload["mode"] = role.roleName()
		payload["teacherId"] = role.TeacherID
	case ForTeacher:
		payload["mode"] = role.roleName()
		payload["courseId"] = role.CourseID
	}
	return json.Marshal(payload)
}

// ProjectForCourse renders blocks as seen from a course timetable.
func ProjectForCourse(blocks []Block) []BlockView {
	return project(blocks, func(b Block) BlockRole { return ForCourse{TeacherID: b.TeacherID} })
}

// ProjectForTeacher renders blocks as seen from a teacher timetable.
func ProjectForTeacher(blocks []Block) []BlockView {
	return project(blocks, func(b Block) BlockRole { return ForTeacher{CourseID: b.CourseID} })
}

func project(blocks []Block, role func(Block) BlockRole) []BlockView {
	views := make([]BlockView, 0, len(blocks))
	for _, b := range blocks {
		views = append(views, BlockView{
			ID:        b.ID,
			Day:       b.Day,
			Start:     b.Start,
			End:       b.End,
			SubjectID: b.SubjectID,
			Classroom: b.Classroom,
			Color:     b.Color,
			Role:      role(b),
		})
	}
	return views
}
