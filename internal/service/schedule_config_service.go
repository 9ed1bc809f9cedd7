package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/timetable"
)

const defaultChangeReason = "schedule day updated"

type scheduleConfigRepository interface {
	FindByLevel(ctx context.Context, schoolID, level string) (*models.ScheduleLevelConfig, error)
	ListBySchool(ctx context.Context, schoolID string) ([]models.ScheduleLevelConfig, error)
	Upsert(ctx context.Context, exec sqlx.ExtContext, cfg *models.ScheduleLevelConfig) error
	InsertHistory(ctx context.Context, exec sqlx.ExtContext, entry *models.ScheduleLevelConfigHistory) error
	ListHistory(ctx context.Context, configID string, limit int) ([]models.ScheduleLevelConfigHistory, error)
}

type scheduleLevelTracker interface {
	MarkDeprecatedForLevel(ctx context.Context, exec sqlx.ExtContext, schoolID, level string) (int64, error)
	ListBlocksBySchool(ctx context.Context, schoolID string) ([]models.ScheduleBlockDetail, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type teacherDirectory interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	ListBySchool(ctx context.Context, schoolID string) ([]models.Teacher, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// ScheduleConfigService manages the per-level daily grids of a school.
type ScheduleConfigService struct {
	configs   scheduleConfigRepository
	schedules scheduleLevelTracker
	courses   courseReader
	teachers  teacherDirectory
	tx        txProvider
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleConfigService wires the level config dependencies.
func NewScheduleConfigService(
	configs scheduleConfigRepository,
	schedules scheduleLevelTracker,
	courses courseReader,
	teachers teacherDirectory,
	tx txProvider,
	cache *CacheService,
	cacheTTL time.Duration,
	validate *validator.Validate,
	logger *zap.Logger,
) *ScheduleConfigService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleConfigService{
		configs:   configs,
		schedules: schedules,
		courses:   courses,
		teachers:  teachers,
		tx:        tx,
		cache:     cache,
		cacheTTL:  cacheTTL,
		validator: validate,
		logger:    logger,
	}
}

func parseLevel(raw string) (timetable.AcademicLevel, error) {
	switch level := timetable.AcademicLevel(raw); level {
	case timetable.LevelBasic, timetable.LevelMiddle:
		return level, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown academic level %q", raw))
	}
}

func decodeBreaks(raw types.JSONText) ([]timetable.BreakConfig, error) {
	breaks := []timetable.BreakConfig{}
	if len(raw) == 0 {
		return breaks, nil
	}
	if err := json.Unmarshal(raw, &breaks); err != nil {
		return nil, err
	}
	return breaks, nil
}

func configFromModel(m *models.ScheduleLevelConfig) (*dto.ScheduleConfigResponse, error) {
	breaks, err := decodeBreaks(m.Breaks)
	if err != nil {
		return nil, fmt.Errorf("decode breaks of config %s: %w", m.ID, err)
	}
	return &dto.ScheduleConfigResponse{
		ID: m.ID,
		LevelConfig: timetable.LevelConfig{
			SchoolID:      m.SchoolID,
			AcademicLevel: timetable.AcademicLevel(m.AcademicLevel),
			StartTime:     m.StartTime,
			EndTime:       m.EndTime,
			BlockDuration: m.BlockDuration,
			Breaks:        breaks,
		},
	}, nil
}

func defaultConfig(schoolID string, level timetable.AcademicLevel) *dto.ScheduleConfigResponse {
	cfg := timetable.DefaultLevelConfig(level)
	cfg.SchoolID = schoolID
	cfg.AcademicLevel = level
	return &dto.ScheduleConfigResponse{IsDefault: true, LevelConfig: cfg}
}

// GetForLevel returns the stored grid of the level, or the built-in default when none was saved.
func (s *ScheduleConfigService) GetForLevel(ctx context.Context, schoolID, rawLevel string) (*dto.ScheduleConfigResponse, error) {
	level, err := parseLevel(rawLevel)
	if err != nil {
		return nil, err
	}

	key := scheduleConfigCacheKey(schoolID, string(level))
	var cached dto.ScheduleConfigResponse
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	stored, err := s.configs.FindByLevel(ctx, schoolID, string(level))
	var resp *dto.ScheduleConfigResponse
	switch {
	case errors.Is(err, sql.ErrNoRows):
		resp = defaultConfig(schoolID, level)
	case err != nil:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule config")
	default:
		if resp, err = configFromModel(stored); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored schedule config is corrupt")
		}
	}

	_ = s.cache.Set(ctx, key, resp, s.cacheTTL)
	return resp, nil
}

// GetForCourse resolves the grid of the course's academic level.
func (s *ScheduleConfigService) GetForCourse(ctx context.Context, courseID string) (*dto.ScheduleConfigResponse, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, notFoundOrInternal(err, "course not found", "failed to load course")
	}
	return s.GetForLevel(ctx, course.SchoolID, course.AcademicLevel)
}

// GetForTeacher returns the widest grid of the teacher's school: earliest start, then latest end.
// Levels without a stored grid compete with their default.
// Teachers may work across levels, so their personal timetable uses the grid that spans every block.
func (s *ScheduleConfigService) GetForTeacher(ctx context.Context, teacherID string) (*dto.ScheduleConfigResponse, error) {
	teacher, err := s.teachers.FindByID(ctx, teacherID)
	if err != nil {
		return nil, notFoundOrInternal(err, "teacher not found", "failed to load teacher")
	}

	configs, err := s.List(ctx, teacher.SchoolID)
	if err != nil {
		return nil, err
	}
	widest := configs[0]
	for _, cfg := range configs[1:] {
		if cfg.StartTime < widest.StartTime || (cfg.StartTime == widest.StartTime && cfg.EndTime > widest.EndTime) {
			widest = cfg
		}
	}
	return &widest, nil
}

// List returns the grid of every level of the school, falling back to defaults for unsaved levels.
func (s *ScheduleConfigService) List(ctx context.Context, schoolID string) ([]dto.ScheduleConfigResponse, error) {
	stored, err := s.configs.ListBySchool(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule configs")
	}
	byLevel := make(map[timetable.AcademicLevel]dto.ScheduleConfigResponse, len(stored))
	for i := range stored {
		resp, err := configFromModel(&stored[i])
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored schedule config is corrupt")
		}
		byLevel[resp.AcademicLevel] = *resp
	}

	result := make([]dto.ScheduleConfigResponse, 0, 2)
	for _, level := range []timetable.AcademicLevel{timetable.LevelBasic, timetable.LevelMiddle} {
		if resp, ok := byLevel[level]; ok {
			result = append(result, resp)
			continue
		}
		result = append(result, *defaultConfig(schoolID, level))
	}
	return result, nil
}

// criticalChange reports whether the new grid moves teaching blocks of existing schedules.
func criticalChange(previous *models.ScheduleLevelConfig, next timetable.LevelConfig) (bool, error) {
	if previous.StartTime != next.StartTime || previous.EndTime != next.EndTime || previous.BlockDuration != next.BlockDuration {
		return true, nil
	}
	oldBreaks, err := decodeBreaks(previous.Breaks)
	if err != nil {
		return false, err
	}
	newBreaks := next.Breaks
	if newBreaks == nil {
		newBreaks = []timetable.BreakConfig{}
	}
	return !reflect.DeepEqual(oldBreaks, newBreaks), nil
}

// Save validates and stores the grid of a level. A change to the day's times, block length or breaks
// archives the previous values and flags the level's active schedules as deprecated.
func (s *ScheduleConfigService) Save(ctx context.Context, schoolID, rawLevel string, req dto.UpsertScheduleConfigRequest) (resp *dto.SaveScheduleConfigResponse, err error) {
	level, err := parseLevel(rawLevel)
	if err != nil {
		return nil, err
	}
	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule config payload")
	}

	next := timetable.LevelConfig{
		SchoolID:      schoolID,
		AcademicLevel: level,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		BlockDuration: req.BlockDuration,
		Breaks:        req.Breaks,
	}
	if next.Breaks == nil {
		next.Breaks = []timetable.BreakConfig{}
	}
	if err = timetable.ValidateLevelConfig(next); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidGrid.Code, appErrors.ErrInvalidGrid.Status, err.Error())
	}

	breaksJSON, err := json.Marshal(next.Breaks)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode breaks")
	}

	previous, err := s.configs.FindByLevel(ctx, schoolID, string(level))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule config")
	}
	if errors.Is(err, sql.ErrNoRows) {
		previous = nil
	}

	critical := false
	if previous != nil {
		if critical, err = criticalChange(previous, next); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored schedule config is corrupt")
		}
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

	record := &models.ScheduleLevelConfig{
		SchoolID:      schoolID,
		AcademicLevel: string(level),
		StartTime:     next.StartTime,
		EndTime:       next.EndTime,
		BlockDuration: next.BlockDuration,
		Breaks:        types.JSONText(breaksJSON),
	}
	if previous != nil {
		record.ID = previous.ID
	}
	if err = s.configs.Upsert(ctx, tx, record); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save schedule config")
		return nil, err
	}

	var deprecated int64
	if critical {
		reason := req.ChangeReason
		if reason == "" {
			reason = defaultChangeReason
		}
		var changedBy *string
		if req.ChangedBy != "" {
			changedBy = &req.ChangedBy
		}
		entry := &models.ScheduleLevelConfigHistory{
			ConfigID:      record.ID,
			SchoolID:      schoolID,
			AcademicLevel: string(level),
			StartTime:     previous.StartTime,
			EndTime:       previous.EndTime,
			BlockDuration: previous.BlockDuration,
			Breaks:        previous.Breaks,
			ChangedBy:     changedBy,
			ChangeReason:  reason,
		}
		if err = s.configs.InsertHistory(ctx, tx, entry); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record schedule config history")
			return nil, err
		}
		if deprecated, err = s.schedules.MarkDeprecatedForLevel(ctx, tx, schoolID, string(level)); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deprecate schedules")
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit schedule config")
		return nil, err
	}

	_ = s.cache.Invalidate(ctx, scheduleConfigCachePattern(schoolID))

	s.logger.Info("schedule config saved",
		zap.String("school_id", schoolID),
		zap.String("level", string(level)),
		zap.Bool("critical", critical),
		zap.Int64("deprecated_schedules", deprecated),
	)

	return &dto.SaveScheduleConfigResponse{
		Config:             dto.ScheduleConfigResponse{ID: record.ID, LevelConfig: next},
		CriticalChange:     critical,
		DeprecatedSchedule: deprecated,
	}, nil
}

// History lists previous versions of the level's grid, newest first.
func (s *ScheduleConfigService) History(ctx context.Context, schoolID, rawLevel string, limit int) ([]dto.ScheduleConfigHistoryItem, error) {
	level, err := parseLevel(rawLevel)
	if err != nil {
		return nil, err
	}
	stored, err := s.configs.FindByLevel(ctx, schoolID, string(level))
	if errors.Is(err, sql.ErrNoRows) {
		return []dto.ScheduleConfigHistoryItem{}, nil
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule config")
	}

	rows, err := s.configs.ListHistory(ctx, stored.ID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule config history")
	}
	items := make([]dto.ScheduleConfigHistoryItem, 0, len(rows))
	for _, row := range rows {
		breaks, err := decodeBreaks(row.Breaks)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored schedule config history is corrupt")
		}
		items = append(items, dto.ScheduleConfigHistoryItem{
			ID:            row.ID,
			StartTime:     row.StartTime,
			EndTime:       row.EndTime,
			BlockDuration: row.BlockDuration,
			Breaks:        breaks,
			ChangedBy:     row.ChangedBy,
			ChangeReason:  row.ChangeReason,
			ChangedAt:     row.CreatedAt,
		})
	}
	return items, nil
}

// PreviewSlots lays out the day grid of the level's current config.
func (s *ScheduleConfigService) PreviewSlots(ctx context.Context, schoolID, rawLevel string) (*dto.SlotPreviewResponse, error) {
	cfg, err := s.GetForLevel(ctx, schoolID, rawLevel)
	if err != nil {
		return nil, err
	}
	slots, err := timetable.BuildDaySlots(cfg.LevelConfig)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidGrid.Code, appErrors.ErrInvalidGrid.Status, err.Error())
	}
	teaching := timetable.TeachingBlocks(slots)
	minutes := 0
	for _, slot := range teaching {
		minutes += slot.DurationMinutes
	}
	return &dto.SlotPreviewResponse{
		Config:         cfg.LevelConfig,
		Slots:          slots,
		TeachingBlocks: len(teaching),
		TeachingHours:  float64(minutes) / 60,
	}, nil
}

// ValidateCongruency flags teachers whose committed blocks span levels with different day grids.
func (s *ScheduleConfigService) ValidateCongruency(ctx context.Context, schoolID string) (*dto.CongruencyReport, error) {
	blocks, err := s.schedules.ListBlocksBySchool(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school blocks")
	}

	levelsByTeacher := make(map[string]map[string]struct{})
	var teacherOrder []string
	for _, b := range blocks {
		levels, ok := levelsByTeacher[b.TeacherID]
		if !ok {
			levels = make(map[string]struct{})
			levelsByTeacher[b.TeacherID] = levels
			teacherOrder = append(teacherOrder, b.TeacherID)
		}
		levels[b.AcademicLevel] = struct{}{}
	}

	report := &dto.CongruencyReport{IsValid: true, Issues: []dto.CongruencyIssue{}}
	if len(teacherOrder) == 0 {
		return report, nil
	}

	names := make(map[string]string)
	if teachers, err := s.teachers.ListBySchool(ctx, schoolID); err == nil {
		for _, t := range teachers {
			names[t.ID] = t.FullName()
		}
	} else {
		s.logger.Warn("teacher names unavailable for congruency report", zap.String("school_id", schoolID), zap.Error(err))
	}

	summaries := make(map[string]dto.LevelSummary)
	sort.Strings(teacherOrder)
	for _, teacherID := range teacherOrder {
		levelSet := levelsByTeacher[teacherID]
		if len(levelSet) < 2 {
			continue
		}
		levels := make([]string, 0, len(levelSet))
		for level := range levelSet {
			levels = append(levels, level)
		}
		sort.Strings(levels)

		configs := make([]dto.LevelSummary, 0, len(levels))
		for _, level := range levels {
			summary, ok := summaries[level]
			if !ok {
				cfg, err := s.GetForLevel(ctx, schoolID, level)
				if err != nil {
					return nil, err
				}
				summary = dto.LevelSummary{Level: level, StartTime: cfg.StartTime, EndTime: cfg.EndTime, BlockDuration: cfg.BlockDuration}
				summaries[level] = summary
			}
			configs = append(configs, summary)
		}
		if summariesAgree(configs) {
			continue
		}

		name := names[teacherID]
		if name == "" {
			name = teacherID
		}
		report.Issues = append(report.Issues, dto.CongruencyIssue{
			Type:       "teacher",
			EntityID:   teacherID,
			EntityName: name,
			Issue:      "teacher has courses in levels with different day grids",
			Levels:     levels,
			Configs:    configs,
		})
	}

	report.IssuesCount = len(report.Issues)
	report.IsValid = report.IssuesCount == 0
	return report, nil
}

func summariesAgree(configs []dto.LevelSummary) bool {
	for _, c := range configs[1:] {
		if c.StartTime != configs[0].StartTime || c.EndTime != configs[0].EndTime || c.BlockDuration != configs[0].BlockDuration {
			return false
		}
	}
	return true
}

func notFoundOrInternal(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}
