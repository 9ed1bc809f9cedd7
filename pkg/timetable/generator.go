package timetable

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Defaults applied while committing blocks.
const (
	DefaultMaxSubjectBlocksPerDay = 2
	DefaultMaxTeacherBlocksPerDay = 4
	DefaultBlockColor             = "#3b82f6"
)

// Options tunes a Generator. Zero values fall back to the defaults.
type Options struct {
	MaxSubjectBlocksPerDay int
	MaxTeacherBlocksPerDay int
	NewID                  func() string
	Now                    func() time.Time
}

// Request is a read-only snapshot of everything one course's generation needs.
type Request struct {
	CourseID     string
	LevelConfig  LevelConfig
	Subjects     []Subject
	Requirements []Requirement
	Teachers     []Teacher
	Constraints  Constraints
	// Days defaults to Monday–Friday.
	Days []Weekday
	// Checker defaults to a SnapshotChecker over Teachers.
	Checker AvailabilityChecker
}

// Generator builds weekly timetables with a single greedy pass over prioritised candidates.
// A Generator holds no per-run state and may be shared between goroutines.
type Generator struct {
	opts   Options
	logger *zap.Logger
}

// NewGenerator constructs a generator.
func NewGenerator(logger *zap.Logger, opts Options) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxSubjectBlocksPerDay <= 0 {
		opts.MaxSubjectBlocksPerDay = DefaultMaxSubjectBlocksPerDay
	}
	if opts.MaxTeacherBlocksPerDay <= 0 {
		opts.MaxTeacherBlocksPerDay = DefaultMaxTeacherBlocksPerDay
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Generator{opts: opts, logger: logger}
}

type candidate struct {
	day         Weekday
	slot        TimeSlot
	requirement Requirement
	subject     Subject
	priority    int
}

type teacherDayKey struct {
	teacherID string
	day       Weekday
}

type subjectDayKey struct {
	subjectID string
	day       Weekday
}

// run holds the counters mutated while candidates are processed in order.
type run struct {
	blocks          []Block
	minutesAssigned map[string]int
	teacherDayCount map[teacherDayKey]int
	subjectDayCount map[subjectDayKey]int
	warned          map[string]bool
	warnings        []string
	evaluated       int
}

// Generate produces the timetable for one course. It never returns nil.
func (g *Generator) Generate(ctx context.Context, req Request) *Result {
	started := g.opts.Now()

	subjects, setupErrs := g.checkSetup(req)
	if len(setupErrs) > 0 {
		return SetupFailure(setupErrs...)
	}
	daySlots, err := BuildDaySlots(req.LevelConfig)
	if err != nil {
		return SetupFailure(err.Error())
	}
	slots := TeachingBlocks(daySlots)
	days := req.Days
	if len(days) == 0 {
		days = Weekdays
	}

	teachersBySubject := rankTeachers(req.Requirements, req.Teachers)
	candidates := enumerateCandidates(days, slots, req.Requirements, subjects)

	checker := req.Checker
	if checker == nil {
		checker = NewSnapshotChecker(req.Teachers)
	}
	validator := NewAvailabilityValidator(checker)

	state := &run{
		blocks:          make([]Block, 0),
		minutesAssigned: make(map[string]int, len(req.Requirements)),
		teacherDayCount: make(map[teacherDayKey]int),
		subjectDayCount: make(map[subjectDayKey]int),
		warned:          make(map[string]bool),
		warnings:        make([]string, 0),
	}
	for _, c := range candidates {
		g.process(ctx, req, c, teachersBySubject[c.subject.ID], validator, state)
	}

	order, failures := validator.Failures()
	for _, teacherID := range order {
		state.warnings = append(state.warnings, fmt.Sprintf("availability check failed for teacher %s: %v", teacherID, failures[teacherID]))
	}

	stats := g.summarise(req, subjects, state)
	stats.CandidatesEvaluated = state.evaluated
	stats.ValidationChecks = validator.Misses()
	stats.ValidationCacheHits = validator.Hits()
	stats.GenerationTime = g.opts.Now().Sub(started)
	stats.GenerationTimeMs = stats.GenerationTime.Milliseconds()

	g.logger.Debug("timetable generated",
		zap.String("course_id", req.CourseID),
		zap.Int("candidates", len(candidates)),
		zap.Int("blocks", stats.TotalBlocks),
		zap.Int("coverage", stats.CoveragePercentage),
		zap.Int("validation_checks", stats.ValidationChecks),
		zap.Int("validation_cache_hits", stats.ValidationCacheHits),
		zap.Duration("duration", stats.GenerationTime),
	)

	return &Result{
		Success:  true,
		Blocks:   state.blocks,
		Errors:   []string{},
		Warnings: append(state.warnings, coverageWarnings(stats.SubjectsCoverage, state.warned)...),
		Stats:    stats,
	}
}

func (g *Generator) checkSetup(req Request) (map[string]Subject, []string) {
	if len(req.Requirements) == 0 {
		return nil, []string{"at least one subject requirement is required"}
	}
	catalog := make(map[string]Subject, len(req.Subjects))
	for _, s := range req.Subjects {
		catalog[s.ID] = s
	}

	var errs []string
	seen := make(map[string]bool, len(req.Requirements))
	for _, r := range req.Requirements {
		if _, ok := catalog[r.SubjectID]; !ok {
			errs = append(errs, fmt.Sprintf("subject %s not found", r.SubjectID))
			continue
		}
		if seen[r.SubjectID] {
			errs = append(errs, fmt.Sprintf("subject %s is requested more than once", r.SubjectID))
			continue
		}
		if r.HoursPerWeek <= 0 {
			errs = append(errs, fmt.Sprintf("subject %s must require at least one hour per week", r.SubjectID))
		}
		seen[r.SubjectID] = true
	}
	return catalog, errs
}

// rankTeachers lists the qualified teachers per subject, preferred teacher first, otherwise in input order.
func rankTeachers(requirements []Requirement, teachers []Teacher) map[string][]Teacher {
	ranked := make(map[string][]Teacher, len(requirements))
	for _, r := range requirements {
		var preferred []Teacher
		var rest []Teacher
		for _, t := range teachers {
			if !t.Qualified(r.SubjectID) {
				continue
			}
			if r.PreferredTeacherID != "" && t.ID == r.PreferredTeacherID {
				preferred = append(preferred, t)
				continue
			}
			rest = append(rest, t)
		}
		ranked[r.SubjectID] = append(preferred, rest...)
	}
	return ranked
}

// enumerateCandidates builds every (day, slot, subject) triple once. The priority is
// (hoursNeeded-hoursAssigned)*10 - blocksThisDay evaluated before anything is assigned, so both
// counters are zero and the order is fixed for the whole run.
func enumerateCandidates(days []Weekday, slots []TimeSlot, requirements []Requirement, subjects map[string]Subject) []candidate {
	candidates := make([]candidate, 0, len(days)*len(slots)*len(requirements))
	for _, day := range days {
		for _, slot := range slots {
			for _, r := range requirements {
				candidates = append(candidates, candidate{
					day:         day,
					slot:        slot,
					requirement: r,
					subject:     subjects[r.SubjectID],
					priority:    r.HoursPerWeek * 10,
				})
			}
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].priority > candidates[j].priority
	})
	return candidates
}

func (g *Generator) process(ctx context.Context, req Request, c candidate, teachers []Teacher, validator *AvailabilityValidator, state *run) {
	state.evaluated++
	subjectID := c.subject.ID

	required := c.requirement.HoursPerWeek * 60
	assigned := state.minutesAssigned[subjectID]
	if assigned >= required || assigned+c.slot.DurationMinutes > required {
		return
	}
	for _, b := range state.blocks {
		if b.Day == c.day && Overlaps(b.Start, b.End, c.slot.Start, c.slot.End) {
			return
		}
	}
	if req.Constraints.AvoidConsecutiveBlocks {
		for _, b := range state.blocks {
			if b.Day == c.day && b.SubjectID == subjectID && b.End == c.slot.Start {
				return
			}
		}
	}
	if state.subjectDayCount[subjectDayKey{subjectID, c.day}] >= g.opts.MaxSubjectBlocksPerDay {
		return
	}
	if len(teachers) == 0 {
		if !state.warned[subjectID] {
			state.warned[subjectID] = true
			state.warnings = append(state.warnings, fmt.Sprintf("no qualified teacher available for %s", c.subject.Name))
		}
		return
	}

	for _, t := range teachers {
		if state.teacherDayCount[teacherDayKey{t.ID, c.day}] >= g.opts.MaxTeacherBlocksPerDay {
			continue
		}
		if adjacentToTeacher(state.blocks, t.ID, c.day, c.slot) {
			continue
		}
		if !validator.IsValid(ctx, t.ID, c.day, c.slot.Start, c.slot.End) {
			continue
		}
		g.commit(req.CourseID, c, t, state)
		return
	}
}

func adjacentToTeacher(blocks []Block, teacherID string, day Weekday, slot TimeSlot) bool {
	for _, b := range blocks {
		if b.Day == day && b.TeacherID == teacherID && (b.End == slot.Start || b.Start == slot.End) {
			return true
		}
	}
	return false
}

func (g *Generator) commit(courseID string, c candidate, t Teacher, state *run) {
	color := c.subject.Color
	if color == "" {
		color = DefaultBlockColor
	}
	state.blocks = append(state.blocks, Block{
		ID:        g.opts.NewID(),
		CourseID:  courseID,
		Day:       c.day,
		Start:     c.slot.Start,
		End:       c.slot.End,
		SubjectID: c.subject.ID,
		TeacherID: t.ID,
		Color:     color,
	})
	state.minutesAssigned[c.subject.ID] += c.slot.DurationMinutes
	state.teacherDayCount[teacherDayKey{t.ID, c.day}]++
	state.subjectDayCount[subjectDayKey{c.subject.ID, c.day}]++
}

func (g *Generator) summarise(req Request, subjects map[string]Subject, state *run) Stats {
	stats := Stats{
		TotalBlocks:      len(state.blocks),
		SubjectsCoverage: make([]SubjectCoverage, 0, len(req.Requirements)),
	}
	for _, r := range req.Requirements {
		required := float64(r.HoursPerWeek)
		assigned := float64(state.minutesAssigned[r.SubjectID]) / 60
		stats.TotalRequiredHours += required
		stats.TotalAssignedHours += assigned
		stats.SubjectsCoverage = append(stats.SubjectsCoverage, SubjectCoverage{
			SubjectID:  r.SubjectID,
			Subject:    subjects[r.SubjectID].Name,
			Required:   required,
			Assigned:   assigned,
			Percentage: percentage(assigned, required),
		})
	}
	stats.CoveragePercentage = percentage(stats.TotalAssignedHours, stats.TotalRequiredHours)

	teachers := make(map[string]struct{})
	for _, b := range state.blocks {
		teachers[b.TeacherID] = struct{}{}
	}
	stats.TeachersUsed = len(teachers)
	return stats
}

// coverageWarnings skips subjects that already carry a "no qualified teacher" warning.
func coverageWarnings(coverage []SubjectCoverage, alreadyWarned map[string]bool) []string {
	var warnings []string
	for _, sc := range coverage {
		if sc.Percentage >= 100 || alreadyWarned[sc.SubjectID] {
			continue
		}
		warnings = append(warnings, fmt.Sprintf("%s: only %s/%s hours assigned (%d%%)",
			sc.Subject, formatHours(sc.Assigned), formatHours(sc.Required), sc.Percentage))
	}
	return warnings
}

func percentage(assigned, required float64) int {
	if required <= 0 {
		return 0
	}
	p := int(math.Round(assigned / required * 100))
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

func formatHours(h float64) string {
	if h == math.Trunc(h) {
		return fmt.Sprintf("%.0f", h)
	}
	return fmt.Sprintf("%.2f", h)
}
