package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/timetable"
)

type subjectReader interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Subject, error)
}

type teacherSnapshotReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	ListQualified(ctx context.Context, schoolID string, subjectIDs, teacherIDs []string) ([]models.Teacher, error)
	ListSubjects(ctx context.Context, teacherIDs []string) ([]models.TeacherSubject, error)
	ListAvailability(ctx context.Context, teacherIDs []string, academicYear int) ([]models.TeacherAvailabilitySlot, error)
}

type timetableRepository interface {
	teacherDayLister
	FindActiveByCourse(ctx context.Context, exec sqlx.ExtContext, courseID string, academicYear int) (*models.Schedule, error)
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
	CreateSchedule(ctx context.Context, exec sqlx.ExtContext, schedule *models.Schedule) error
	ReplaceBlocks(ctx context.Context, exec sqlx.ExtContext, scheduleID string, blocks []models.ScheduleBlock) error
	ListBlocksByCourse(ctx context.Context, courseID string) ([]models.ScheduleBlock, error)
	ListBlocksByTeacher(ctx context.Context, teacherID string) ([]models.ScheduleBlock, error)
	DeleteSchedule(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type levelConfigResolver interface {
	GetForLevel(ctx context.Context, schoolID, level string) (*dto.ScheduleConfigResponse, error)
	GetForTeacher(ctx context.Context, teacherID string) (*dto.ScheduleConfigResponse, error)
}

// TimetableGeneratorConfig governs generator behaviour.
type TimetableGeneratorConfig struct {
	ProposalTTL            time.Duration
	ProposalCapacity       int
	MaxSubjectBlocksPerDay int
	MaxTeacherBlocksPerDay int
	BatchConcurrency       int
	// AcademicYear pins the year of availability and schedules; 0 uses the course's year.
	AcademicYear int
	ViewCacheTTL time.Duration
}

// TimetableGeneratorService builds timetable proposals and persists course schedules.
type TimetableGeneratorService struct {
	courses    courseReader
	subjects   subjectReader
	teachers   teacherSnapshotReader
	timetables timetableRepository
	configs    levelConfigResolver
	tx         txProvider
	generator  *timetable.Generator
	store      *proposalStore
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        TimetableGeneratorConfig
	now        func() time.Time
}

// NewTimetableGeneratorService wires generator dependencies.
func NewTimetableGeneratorService(
	courses courseReader,
	subjects subjectReader,
	teachers teacherSnapshotReader,
	timetables timetableRepository,
	configs levelConfigResolver,
	tx txProvider,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableGeneratorConfig,
) *TimetableGeneratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 4
	}
	generator := timetable.NewGenerator(logger.Named("generator"), timetable.Options{
		MaxSubjectBlocksPerDay: cfg.MaxSubjectBlocksPerDay,
		MaxTeacherBlocksPerDay: cfg.MaxTeacherBlocksPerDay,
		NewID:                  uuid.NewString,
	})
	return &TimetableGeneratorService{
		courses:    courses,
		subjects:   subjects,
		teachers:   teachers,
		timetables: timetables,
		configs:    configs,
		tx:         tx,
		generator:  generator,
		store:      newProposalStore(cfg.ProposalCapacity, cfg.ProposalTTL, cache, metrics, logger),
		cache:      cache,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

func (s *TimetableGeneratorService) academicYear(course *models.Course) int {
	if s.cfg.AcademicYear > 0 {
		return s.cfg.AcademicYear
	}
	if course.AcademicYear > 0 {
		return course.AcademicYear
	}
	return s.now().Year()
}

// Generate runs the generator for one course. A run that cannot start, including one for an unknown
// course, is returned with Success=false and no proposal; a successful run is kept as a proposal until it is saved or expires.
func (s *TimetableGeneratorService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}
	course, err := s.courses.FindByID(ctx, req.CourseID)
	if errors.Is(err, sql.ErrNoRows) {
		result := timetable.SetupFailure(fmt.Sprintf("course %s not found", req.CourseID))
		s.metrics.ObserveGeneration(result)
		return &dto.GenerateTimetableResponse{CourseID: req.CourseID, Result: result}, nil
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	cfg, err := s.configs.GetForLevel(ctx, course.SchoolID, course.AcademicLevel)
	if err != nil {
		return nil, err
	}

	days := make([]timetable.Weekday, 0, len(req.Days))
	for _, raw := range req.Days {
		day, ok := timetable.ParseWeekday(raw)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day %q", raw))
		}
		days = append(days, day)
	}

	year := s.academicYear(course)
	loadStart := time.Now()
	snapshot, err := s.loadSnapshot(ctx, course, req, year)
	s.metrics.ObserveDBQuery("generation_snapshot", time.Since(loadStart))
	if err != nil {
		return nil, err
	}

	checker := &committedChecker{
		snapshot:  timetable.NewSnapshotChecker(snapshot.teachers),
		committed: newCommittedBlocks(s.timetables, course.ID),
	}
	result := s.generator.Generate(ctx, timetable.Request{
		CourseID:     course.ID,
		LevelConfig:  cfg.LevelConfig,
		Subjects:     snapshot.subjects,
		Requirements: req.Requirements,
		Teachers:     snapshot.teachers,
		Constraints:  req.Constraints,
		Days:         days,
		Checker:      checker,
	})
	s.metrics.ObserveGeneration(result)

	s.logger.Info("timetable generation finished",
		zap.String("course_id", course.ID),
		zap.Bool("success", result.Success),
		zap.Int("blocks", result.Stats.TotalBlocks),
		zap.Int("coverage", result.Stats.CoveragePercentage),
		zap.Int("warnings", len(result.Warnings)),
		zap.Int("teachers", len(snapshot.teachers)),
		zap.Int64("duration_ms", result.Stats.GenerationTimeMs),
	)

	resp := &dto.GenerateTimetableResponse{CourseID: course.ID, Result: result}
	if !result.Success {
		return resp, nil
	}

	proposal := timetableProposal{
		ID:           uuid.NewString(),
		CourseID:     course.ID,
		SchoolID:     course.SchoolID,
		AcademicYear: year,
		Blocks:       result.Blocks,
		Stats:        result.Stats,
		CreatedAt:    s.now().UTC(),
	}
	s.store.Save(ctx, proposal)
	expires := s.store.expiresAt(proposal)
	resp.ProposalID = proposal.ID
	resp.ExpiresAt = &expires
	return resp, nil
}

// GenerateBatch runs independent generations for several courses with bounded concurrency.
// One course failing does not stop the others; each item reports its own outcome.
func (s *TimetableGeneratorService) GenerateBatch(ctx context.Context, req dto.BatchGenerateRequest) (*dto.BatchGenerateResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch generation payload")
	}

	items := make([]dto.BatchGenerateItem, len(req.Courses))
	var g errgroup.Group
	g.SetLimit(s.cfg.BatchConcurrency)
	for i := range req.Courses {
		i, courseReq := i, req.Courses[i]
		g.Go(func() error {
			item := dto.BatchGenerateItem{CourseID: courseReq.CourseID}
			if err := ctx.Err(); err != nil {
				item.Error = err.Error()
				items[i] = item
				return nil
			}
			resp, err := s.Generate(ctx, courseReq)
			switch {
			case err != nil:
				item.Error = appErrors.FromError(err).Message
			case !resp.Success:
				item.Proposal = resp
				item.Error = strings.Join(resp.Errors, "; ")
			default:
				item.Proposal = resp
			}
			items[i] = item
			return nil
		})
	}
	_ = g.Wait()

	out := &dto.BatchGenerateResponse{Items: items}
	for _, item := range items {
		if item.Error == "" {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	s.logger.Info("timetable batch finished",
		zap.Int("courses", len(items)),
		zap.Int("succeeded", out.Succeeded),
		zap.Int("failed", out.Failed),
	)
	return out, nil
}

type generationSnapshot struct {
	subjects []timetable.Subject
	teachers []timetable.Teacher
}

// loadSnapshot reads the subjects and the qualified teachers of the request concurrently.
func (s *TimetableGeneratorService) loadSnapshot(ctx context.Context, course *models.Course, req dto.GenerateTimetableRequest, year int) (*generationSnapshot, error) {
	subjectIDs := make([]string, 0, len(req.Requirements))
	seen := make(map[string]bool, len(req.Requirements))
	for _, r := range req.Requirements {
		if !seen[r.SubjectID] {
			seen[r.SubjectID] = true
			subjectIDs = append(subjectIDs, r.SubjectID)
		}
	}
	snapshot := &generationSnapshot{subjects: []timetable.Subject{}, teachers: []timetable.Teacher{}}
	if len(subjectIDs) == 0 {
		return snapshot, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.subjects.FindByIDs(gctx, subjectIDs)
		if err != nil {
			return fmt.Errorf("load subjects: %w", err)
		}
		for _, row := range rows {
			if row.SchoolID != course.SchoolID {
				continue
			}
			subject := timetable.Subject{ID: row.ID, Name: row.Name, Code: row.Code}
			if row.Color != nil {
				subject.Color = *row.Color
			}
			snapshot.subjects = append(snapshot.subjects, subject)
		}
		return nil
	})
	g.Go(func() error {
		teachers, err := s.loadTeachers(gctx, course.SchoolID, subjectIDs, req.TeacherIDs, year)
		if err != nil {
			return err
		}
		snapshot.teachers = teachers
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load generation snapshot")
	}
	return snapshot, nil
}

func (s *TimetableGeneratorService) loadTeachers(ctx context.Context, schoolID string, subjectIDs, teacherIDs []string, year int) ([]timetable.Teacher, error) {
	rows, err := s.teachers.ListQualified(ctx, schoolID, subjectIDs, teacherIDs)
	if err != nil {
		return nil, fmt.Errorf("load qualified teachers: %w", err)
	}
	if len(rows) == 0 {
		return []timetable.Teacher{}, nil
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	qualifications, err := s.teachers.ListSubjects(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load teacher subjects: %w", err)
	}
	slots, err := s.teachers.ListAvailability(ctx, ids, year)
	if err != nil {
		return nil, fmt.Errorf("load teacher availability: %w", err)
	}

	subjectsByTeacher := make(map[string][]string, len(rows))
	for _, q := range qualifications {
		subjectsByTeacher[q.TeacherID] = append(subjectsByTeacher[q.TeacherID], q.SubjectID)
	}
	intervals := make(map[teacherDay][]timetable.Interval)
	for _, slot := range slots {
		day, ok := timetable.ParseWeekday(slot.DayOfWeek)
		start, startErr := timetable.ParseClock(slot.StartTime)
		end, endErr := timetable.ParseClock(slot.EndTime)
		if !ok || startErr != nil || endErr != nil || end <= start {
			s.logger.Warn("skipping malformed availability row",
				zap.String("availability_id", slot.ID),
				zap.String("teacher_id", slot.TeacherID),
			)
			continue
		}
		key := teacherDay{teacherID: slot.TeacherID, day: day}
		intervals[key] = append(intervals[key], timetable.Interval{Start: start, End: end})
	}

	teachers := make([]timetable.Teacher, 0, len(rows))
	for _, row := range rows {
		t := timetable.Teacher{
			ID:                  row.ID,
			Name:                row.FullName(),
			QualifiedSubjectIDs: subjectsByTeacher[row.ID],
		}
		for _, day := range timetable.AllWeekdays {
			if iv := intervals[teacherDay{teacherID: row.ID, day: day}]; len(iv) > 0 {
				t.Availability = append(t.Availability, timetable.TeacherAvailability{Day: day, TimeSlots: iv})
			}
		}
		teachers = append(teachers, t)
	}
	return teachers, nil
}

// Save writes a proposal, optionally edited, or a hand-built block list as the course's active timetable.
// The blocks replace whatever the active schedule held; the schedule is created on first save.
func (s *TimetableGeneratorService) Save(ctx context.Context, req dto.SaveTimetableRequest) (resp *dto.SaveTimetableResponse, err error) {
	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid save timetable payload")
	}

	courseID := req.CourseID
	var blocks []timetable.Block
	year := 0
	if req.ProposalID != "" {
		proposal, ok := s.store.Get(ctx, req.ProposalID)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrProposalGone, "proposal not found or expired")
		}
		if courseID != "" && courseID != proposal.CourseID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "proposal belongs to another course")
		}
		courseID = proposal.CourseID
		blocks = proposal.Blocks
		year = proposal.AcademicYear
	}
	if len(req.Blocks) > 0 {
		if blocks, err = blocksFromInput(courseID, req.Blocks); err != nil {
			return nil, err
		}
	}
	if len(blocks) == 0 {
		return nil, appErrors.Clone(appErrors.ErrEmptyTimetable, "")
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, notFoundOrInternal(err, "course not found", "failed to load course")
	}
	if year == 0 {
		year = s.academicYear(course)
	}
	cfg, err := s.configs.GetForLevel(ctx, course.SchoolID, course.AcademicLevel)
	if err != nil {
		return nil, err
	}

	conflicts, err := committedConflicts(ctx, newCommittedBlocks(s.timetables, course.ID), blocks)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check committed blocks")
	}
	if hasErrors(conflicts) {
		return nil, appErrors.WithDetails(appErrors.ErrConflict, "timetable conflicts with committed blocks", conflicts)
	}

	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	created := false
	schedule, err := s.timetables.FindActiveByCourse(ctx, tx, course.ID, year)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		now := s.now().UTC()
		schedule = &models.Schedule{
			SchoolID:     course.SchoolID,
			CourseID:     course.ID,
			Name:         fmt.Sprintf("Timetable %s - %d", course.Name, year),
			AcademicYear: year,
			Semester:     semesterOf(now),
			IsActive:     true,
		}
		if err = s.timetables.CreateSchedule(ctx, tx, schedule); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule")
			return nil, err
		}
		created = true
	case err != nil:
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active schedule")
		return nil, err
	}

	rows := toScheduleBlocks(blocks, cfg.LevelConfig)
	if err = s.timetables.ReplaceBlocks(ctx, tx, schedule.ID, rows); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist schedule blocks")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit schedule")
		return nil, err
	}

	if req.ProposalID != "" {
		s.store.Delete(ctx, req.ProposalID)
		s.metrics.RecordProposal(ProposalSaved)
	}
	s.invalidateViews(ctx, course.ID)

	s.logger.Info("timetable saved",
		zap.String("course_id", course.ID),
		zap.String("schedule_id", schedule.ID),
		zap.Bool("created", created),
		zap.Int("blocks", len(rows)),
	)

	return &dto.SaveTimetableResponse{
		ScheduleID: schedule.ID,
		CourseID:   course.ID,
		Blocks:     len(rows),
		Created:    created,
	}, nil
}

// semesterOf places January to June in the first semester.
func semesterOf(t time.Time) int {
	if t.Month() <= time.June {
		return 1
	}
	return 2
}

func (s *TimetableGeneratorService) invalidateViews(ctx context.Context, courseID string) {
	_ = s.cache.Delete(ctx, courseTimetableCacheKey(courseID))
	_ = s.cache.Invalidate(ctx, teacherTimetableCacheKey("*"))
}

func (s *TimetableGeneratorService) cachedBlocks(ctx context.Context, key string, load func(context.Context) ([]models.ScheduleBlock, error)) ([]timetable.Block, error) {
	var rows []models.ScheduleBlock
	if hit, _ := s.cache.Get(ctx, key, &rows); !hit {
		start := time.Now()
		loaded, err := load(ctx)
		s.metrics.ObserveDBQuery("schedule_blocks", time.Since(start))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule blocks")
		}
		rows = loaded
		_ = s.cache.Set(ctx, key, rows, s.cfg.ViewCacheTTL)
	}
	blocks, err := blocksFromModels(rows)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored schedule block is corrupt")
	}
	return blocks, nil
}

// ListCourseBlocks renders the course's committed timetable; each block names its teacher.
func (s *TimetableGeneratorService) ListCourseBlocks(ctx context.Context, courseID string) (*dto.TimetableView, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, notFoundOrInternal(err, "course not found", "failed to load course")
	}
	blocks, err := s.cachedBlocks(ctx, courseTimetableCacheKey(course.ID), func(ctx context.Context) ([]models.ScheduleBlock, error) {
		return s.timetables.ListBlocksByCourse(ctx, course.ID)
	})
	if err != nil {
		return nil, err
	}
	cfg, err := s.configs.GetForLevel(ctx, course.SchoolID, course.AcademicLevel)
	if err != nil {
		return nil, err
	}
	return &dto.TimetableView{
		Mode:      "course",
		OwnerID:   course.ID,
		Config:    cfg.LevelConfig,
		Blocks:    timetable.ProjectForCourse(blocks),
		Scheduled: len(blocks),
	}, nil
}

// ListTeacherBlocks renders a teacher's committed timetable across courses; each block names its course.
func (s *TimetableGeneratorService) ListTeacherBlocks(ctx context.Context, teacherID string) (*dto.TimetableView, error) {
	if _, err := s.teachers.FindByID(ctx, teacherID); err != nil {
		return nil, notFoundOrInternal(err, "teacher not found", "failed to load teacher")
	}
	blocks, err := s.cachedBlocks(ctx, teacherTimetableCacheKey(teacherID), func(ctx context.Context) ([]models.ScheduleBlock, error) {
		return s.timetables.ListBlocksByTeacher(ctx, teacherID)
	})
	if err != nil {
		return nil, err
	}
	cfg, err := s.configs.GetForTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	return &dto.TimetableView{
		Mode:      "teacher",
		OwnerID:   teacherID,
		Config:    cfg.LevelConfig,
		Blocks:    timetable.ProjectForTeacher(blocks),
		Scheduled: len(blocks),
	}, nil
}

// Delete removes a schedule and its blocks.
func (s *TimetableGeneratorService) Delete(ctx context.Context, scheduleID string) (err error) {
	schedule, err := s.timetables.FindByID(ctx, scheduleID)
	if err != nil {
		return notFoundOrInternal(err, "schedule not found", "failed to load schedule")
	}
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.timetables.DeleteSchedule(ctx, tx, schedule.ID); err != nil {
		err = notFoundOrInternal(err, "schedule not found", "failed to delete schedule")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit schedule deletion")
		return err
	}

	s.invalidateViews(ctx, schedule.CourseID)
	s.logger.Info("schedule deleted", zap.String("schedule_id", schedule.ID), zap.String("course_id", schedule.CourseID))
	return nil
}
