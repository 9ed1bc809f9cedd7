package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/timetable"
)

type scheduleConfigRepoStub struct {
	items     map[string]models.ScheduleLevelConfig
	history   []models.ScheduleLevelConfigHistory
	upserted  []models.ScheduleLevelConfig
	finds     int
	listErr   error
	lastLimit int
}

func newScheduleConfigRepoStub(items ...models.ScheduleLevelConfig) *scheduleConfigRepoStub {
	stub := &scheduleConfigRepoStub{items: make(map[string]models.ScheduleLevelConfig)}
	for _, item := range items {
		stub.items[item.SchoolID+":"+item.AcademicLevel] = item
	}
	return stub
}

func (s *scheduleConfigRepoStub) FindByLevel(ctx context.Context, schoolID, level string) (*models.ScheduleLevelConfig, error) {
	s.finds++
	item, ok := s.items[schoolID+":"+level]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &item, nil
}

func (s *scheduleConfigRepoStub) ListBySchool(ctx context.Context, schoolID string) ([]models.ScheduleLevelConfig, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.ScheduleLevelConfig
	for _, item := range s.items {
		if item.SchoolID == schoolID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *scheduleConfigRepoStub) Upsert(ctx context.Context, exec sqlx.ExtContext, cfg *models.ScheduleLevelConfig) error {
	if cfg.ID == "" {
		cfg.ID = "config-new"
	}
	s.upserted = append(s.upserted, *cfg)
	s.items[cfg.SchoolID+":"+cfg.AcademicLevel] = *cfg
	return nil
}

func (s *scheduleConfigRepoStub) InsertHistory(ctx context.Context, exec sqlx.ExtContext, entry *models.ScheduleLevelConfigHistory) error {
	s.history = append(s.history, *entry)
	return nil
}

func (s *scheduleConfigRepoStub) ListHistory(ctx context.Context, configID string, limit int) ([]models.ScheduleLevelConfigHistory, error) {
	s.lastLimit = limit
	var out []models.ScheduleLevelConfigHistory
	for _, h := range s.history {
		if h.ConfigID == configID {
			out = append(out, h)
		}
	}
	return out, nil
}

func storedConfig(id, level, start, end string, duration int, breaks string) models.ScheduleLevelConfig {
	return models.ScheduleLevelConfig{
		ID:            id,
		SchoolID:      "school-1",
		AcademicLevel: level,
		StartTime:     start,
		EndTime:       end,
		BlockDuration: duration,
		Breaks:        types.JSONText(breaks),
	}
}

type configFixture struct {
	svc       *ScheduleConfigService
	configs   *scheduleConfigRepoStub
	schedules *timetableRepoStub
	teachers  *teacherRepoStub
	cache     *memoryCache
}

func newConfigFixture(t *testing.T, stored ...models.ScheduleLevelConfig) (*configFixture, sqlmock.Sqlmock) {
	t.Helper()
	configs := newScheduleConfigRepoStub(stored...)
	schedules := newTimetableRepoStub()
	teachers := &teacherRepoStub{teachers: []models.Teacher{
		{ID: "teacher-1", SchoolID: "school-1", FirstName: "Ana", LastName: "Rojas"},
		{ID: "teacher-2", SchoolID: "school-1", FirstName: "Luis"},
	}}
	courses := &courseRepoStub{items: map[string]models.Course{
		"course-1": {ID: "course-1", SchoolID: "school-1", AcademicLevel: "BASIC"},
	}}
	mem := newMemoryCache()
	cache := NewCacheService(mem, nil, time.Minute, nil, true)
	tx, mock := newTxProviderMock(t)
	svc := NewScheduleConfigService(configs, schedules, courses, teachers, tx, cache, time.Minute, nil, nil)
	return &configFixture{svc: svc, configs: configs, schedules: schedules, teachers: teachers, cache: mem}, mock
}

func TestScheduleConfigGetForLevelFallsBackToDefault(t *testing.T) {
	f, _ := newConfigFixture(t)

	cfg, err := f.svc.GetForLevel(context.Background(), "school-1", "BASIC")
	require.NoError(t, err)
	assert.True(t, cfg.IsDefault)
	assert.Equal(t, "08:00", cfg.StartTime)
	assert.Equal(t, "13:00", cfg.EndTime)
	assert.Equal(t, 45, cfg.BlockDuration)
	assert.Equal(t, timetable.LevelBasic, cfg.AcademicLevel)
	assert.Equal(t, "school-1", cfg.SchoolID)

	_, err = f.svc.GetForLevel(context.Background(), "school-1", "ADVANCED")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestScheduleConfigGetForLevelUsesCache(t *testing.T) {
	f, _ := newConfigFixture(t, storedConfig("cfg-1", "MIDDLE", "07:30", "13:30", 90, `[{"afterBlock":2,"duration":30,"name":"Recess"}]`))

	first, err := f.svc.GetForLevel(context.Background(), "school-1", "MIDDLE")
	require.NoError(t, err)
	assert.False(t, first.IsDefault)
	assert.Equal(t, "cfg-1", first.ID)
	require.Len(t, first.Breaks, 1)
	assert.Equal(t, "Recess", first.Breaks[0].Name)

	second, err := f.svc.GetForLevel(context.Background(), "school-1", "MIDDLE")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.configs.finds)
	assert.True(t, f.cache.has(scheduleConfigCacheKey("school-1", "MIDDLE")))
}

func TestScheduleConfigGetForCourse(t *testing.T) {
	f, _ := newConfigFixture(t)

	cfg, err := f.svc.GetForCourse(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Equal(t, timetable.LevelBasic, cfg.AcademicLevel)

	_, err = f.svc.GetForCourse(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestScheduleConfigGetForTeacherPicksWidestGrid(t *testing.T) {
	f, _ := newConfigFixture(t,
		storedConfig("cfg-basic", "BASIC", "08:00", "13:00", 45, `[]`),
		storedConfig("cfg-middle", "MIDDLE", "08:00", "15:00", 90, `[]`),
	)

	cfg, err := f.svc.GetForTeacher(context.Background(), "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, "cfg-middle", cfg.ID)
	assert.Equal(t, "15:00", cfg.EndTime)

	_, err = f.svc.GetForTeacher(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestScheduleConfigGetForTeacherDefaultsToMiddle(t *testing.T) {
	f, _ := newConfigFixture(t)

	cfg, err := f.svc.GetForTeacher(context.Background(), "teacher-1")
	require.NoError(t, err)
	assert.True(t, cfg.IsDefault)
	assert.Equal(t, timetable.LevelMiddle, cfg.AcademicLevel)
}

func TestScheduleConfigGetForTeacherConsidersUnsavedLevels(t *testing.T) {
	f, _ := newConfigFixture(t, storedConfig("cfg-basic", "BASIC", "08:00", "12:00", 45, `[]`))

	cfg, err := f.svc.GetForTeacher(context.Background(), "teacher-1")
	require.NoError(t, err)
	assert.True(t, cfg.IsDefault)
	assert.Equal(t, timetable.LevelMiddle, cfg.AcademicLevel)
	assert.Equal(t, "14:00", cfg.EndTime)

	f, _ = newConfigFixture(t, storedConfig("cfg-basic", "BASIC", "07:30", "12:00", 45, `[]`))
	cfg, err = f.svc.GetForTeacher(context.Background(), "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, "cfg-basic", cfg.ID)
	assert.False(t, cfg.IsDefault)
}

func TestScheduleConfigListFillsMissingLevels(t *testing.T) {
	f, _ := newConfigFixture(t, storedConfig("cfg-middle", "MIDDLE", "07:30", "13:30", 90, `[]`))

	list, err := f.svc.List(context.Background(), "school-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, timetable.LevelBasic, list[0].AcademicLevel)
	assert.True(t, list[0].IsDefault)
	assert.Equal(t, "cfg-middle", list[1].ID)
	assert.False(t, list[1].IsDefault)

	f.configs.listErr = errors.New("db down")
	_, err = f.svc.List(context.Background(), "school-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestScheduleConfigSaveCriticalChangeArchivesAndDeprecates(t *testing.T) {
	f, mock := newConfigFixture(t, storedConfig("cfg-basic", "BASIC", "08:00", "13:00", 45, `[]`))
	f.cache.items[scheduleConfigCacheKey("school-1", "BASIC")] = []byte(`{}`)

	mock.ExpectBegin()
	mock.ExpectCommit()

	resp, err := f.svc.Save(context.Background(), "school-1", "BASIC", dto.UpsertScheduleConfigRequest{
		StartTime:     "07:45",
		EndTime:       "13:00",
		BlockDuration: 45,
		ChangedBy:     "admin-1",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.True(t, resp.CriticalChange)
	assert.Equal(t, int64(3), resp.DeprecatedSchedule)
	assert.Equal(t, "cfg-basic", resp.Config.ID)
	assert.Equal(t, "07:45", resp.Config.StartTime)

	require.Len(t, f.configs.history, 1)
	entry := f.configs.history[0]
	assert.Equal(t, "cfg-basic", entry.ConfigID)
	assert.Equal(t, "08:00", entry.StartTime)
	assert.Equal(t, defaultChangeReason, entry.ChangeReason)
	require.NotNil(t, entry.ChangedBy)
	assert.Equal(t, "admin-1", *entry.ChangedBy)

	assert.Equal(t, []string{"school-1:BASIC"}, f.schedules.deprecatedFor)
	assert.False(t, f.cache.has(scheduleConfigCacheKey("school-1", "BASIC")))
}

func TestScheduleConfigSaveBreakChangeIsCritical(t *testing.T) {
	f, mock := newConfigFixture(t, storedConfig("cfg-basic", "BASIC", "08:00", "13:00", 45, `[{"afterBlock":2,"duration":15,"name":"Recreo"}]`))
	mock.ExpectBegin()
	mock.ExpectCommit()

	resp, err := f.svc.Save(context.Background(), "school-1", "BASIC", dto.UpsertScheduleConfigRequest{
		StartTime:     "08:00",
		EndTime:       "13:00",
		BlockDuration: 45,
		Breaks:        []timetable.BreakConfig{{AfterBlock: 2, Duration: 30, Name: "Recreo"}},
		ChangeReason:  "longer recess",
	})
	require.NoError(t, err)
	assert.True(t, resp.CriticalChange)
	require.Len(t, f.configs.history, 1)
	assert.Equal(t, "longer recess", f.configs.history[0].ChangeReason)
	assert.Nil(t, f.configs.history[0].ChangedBy)
}

func TestScheduleConfigSaveWithoutCriticalChange(t *testing.T) {
	f, mock := newConfigFixture(t, storedConfig("cfg-basic", "BASIC", "08:00", "13:00", 45, `[{"afterBlock":2,"duration":15,"name":"Recreo"}]`))
	mock.ExpectBegin()
	mock.ExpectCommit()

	resp, err := f.svc.Save(context.Background(), "school-1", "BASIC", dto.UpsertScheduleConfigRequest{
		StartTime:     "08:00",
		EndTime:       "13:00",
		BlockDuration: 45,
		Breaks:        []timetable.BreakConfig{{AfterBlock: 2, Duration: 15, Name: "Recreo"}},
	})
	require.NoError(t, err)
	assert.False(t, resp.CriticalChange)
	assert.Zero(t, resp.DeprecatedSchedule)
	assert.Empty(t, f.configs.history)
	assert.Empty(t, f.schedules.deprecatedFor)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleConfigSaveFirstConfig(t *testing.T) {
	f, mock := newConfigFixture(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	resp, err := f.svc.Save(context.Background(), "school-1", "MIDDLE", dto.UpsertScheduleConfigRequest{
		StartTime:     "08:00",
		EndTime:       "14:00",
		BlockDuration: 90,
	})
	require.NoError(t, err)
	assert.Equal(t, "config-new", resp.Config.ID)
	assert.False(t, resp.CriticalChange)
	require.Len(t, f.configs.upserted, 1)
	assert.JSONEq(t, `[]`, string(f.configs.upserted[0].Breaks))
}

func TestScheduleConfigSaveRejectsInvalidGrid(t *testing.T) {
	f, _ := newConfigFixture(t)

	_, err := f.svc.Save(context.Background(), "school-1", "BASIC", dto.UpsertScheduleConfigRequest{
		StartTime:     "08:00",
		EndTime:       "13:00",
		BlockDuration: 50,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidGrid.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Save(context.Background(), "school-1", "BASIC", dto.UpsertScheduleConfigRequest{
		StartTime:     "08:00",
		EndTime:       "13:00",
		BlockDuration: 45,
		Breaks: []timetable.BreakConfig{
			{AfterBlock: 2, Duration: 15, Name: "A"},
			{AfterBlock: 2, Duration: 15, Name: "B"},
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidGrid.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Save(context.Background(), "school-1", "BASIC", dto.UpsertScheduleConfigRequest{StartTime: "8am"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.configs.upserted)
}

func TestScheduleConfigHistory(t *testing.T) {
	f, _ := newConfigFixture(t)

	items, err := f.svc.History(context.Background(), "school-1", "BASIC", 10)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)

	f.configs.items["school-1:BASIC"] = storedConfig("cfg-basic", "BASIC", "07:45", "13:00", 45, `[]`)
	f.configs.history = []models.ScheduleLevelConfigHistory{{
		ID:            "hist-1",
		ConfigID:      "cfg-basic",
		StartTime:     "08:00",
		EndTime:       "13:00",
		BlockDuration: 45,
		Breaks:        types.JSONText(`[{"afterBlock":2,"duration":15,"name":"Recreo"}]`),
		ChangeReason:  "earlier start",
	}}

	items, err = f.svc.History(context.Background(), "school-1", "BASIC", 5)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "08:00", items[0].StartTime)
	assert.Equal(t, "earlier start", items[0].ChangeReason)
	require.Len(t, items[0].Breaks, 1)
	assert.Equal(t, 5, f.configs.lastLimit)
}

func TestScheduleConfigPreviewSlots(t *testing.T) {
	f, _ := newConfigFixture(t)

	preview, err := f.svc.PreviewSlots(context.Background(), "school-1", "BASIC")
	require.NoError(t, err)
	assert.Len(t, preview.Slots, 7)
	assert.Equal(t, 5, preview.TeachingBlocks)
	assert.InDelta(t, 3.75, preview.TeachingHours, 0.001)
}

func TestScheduleConfigValidateCongruency(t *testing.T) {
	f, _ := newConfigFixture(t, storedConfig("cfg-middle", "MIDDLE", "08:00", "14:00", 90, `[]`))
	detail := func(teacherID, level string) models.ScheduleBlockDetail {
		return models.ScheduleBlockDetail{
			ScheduleBlock: models.ScheduleBlock{TeacherID: teacherID},
			AcademicLevel: level,
		}
	}
	f.schedules.schoolBlocks = []models.ScheduleBlockDetail{
		detail("teacher-2", "BASIC"),
		detail("teacher-2", "MIDDLE"),
		detail("teacher-1", "BASIC"),
		detail("teacher-1", "BASIC"),
	}

	report, err := f.svc.ValidateCongruency(context.Background(), "school-1")
	require.NoError(t, err)
	assert.False(t, report.IsValid)
	assert.Equal(t, 1, report.IssuesCount)
	require.Len(t, report.Issues, 1)

	issue := report.Issues[0]
	assert.Equal(t, "teacher", issue.Type)
	assert.Equal(t, "teacher-2", issue.EntityID)
	assert.Equal(t, "Luis", issue.EntityName)
	assert.Equal(t, []string{"BASIC", "MIDDLE"}, issue.Levels)
	require.Len(t, issue.Configs, 2)
	assert.Equal(t, 45, issue.Configs[0].BlockDuration)
	assert.Equal(t, 90, issue.Configs[1].BlockDuration)
}

func TestScheduleConfigValidateCongruencyMatchingGrids(t *testing.T) {
	f, _ := newConfigFixture(t,
		storedConfig("cfg-basic", "BASIC", "08:00", "14:00", 90, `[]`),
		storedConfig("cfg-middle", "MIDDLE", "08:00", "14:00", 90, `[{"afterBlock":2,"duration":15,"name":"Recreo"}]`),
	)
	f.schedules.schoolBlocks = []models.ScheduleBlockDetail{
		{ScheduleBlock: models.ScheduleBlock{TeacherID: "teacher-1"}, AcademicLevel: "BASIC"},
		{ScheduleBlock: models.ScheduleBlock{TeacherID: "teacher-1"}, AcademicLevel: "MIDDLE"},
	}

	report, err := f.svc.ValidateCongruency(context.Background(), "school-1")
	require.NoError(t, err)
	assert.True(t, report.IsValid)
	assert.Zero(t, report.IssuesCount)
	assert.NotNil(t, report.Issues)
}
