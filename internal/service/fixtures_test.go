package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/timetable"
)

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

// memoryCache is an in-process CacheRepository that round-trips values through JSON like Redis does.
type memoryCache struct {
	mu    sync.Mutex
	items map[string][]byte
	sets  int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: make(map[string][]byte)}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	raw, ok := m.items[key]
	m.mu.Unlock()
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.items[key] = raw
	m.sets++
	m.mu.Unlock()
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	m.mu.Lock()
	for key := range m.items {
		if strings.HasPrefix(key, prefix) {
			delete(m.items, key)
		}
	}
	m.mu.Unlock()
	return nil
}

func (m *memoryCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[key]
	return ok
}

type courseRepoStub struct {
	items map[string]models.Course
	err   error
}

func (s *courseRepoStub) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if s.err != nil {
		return nil, s.err
	}
	course, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &course, nil
}

type subjectRepoStub struct {
	items []models.Subject
}

func (s *subjectRepoStub) FindByIDs(ctx context.Context, ids []string) ([]models.Subject, error) {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []models.Subject
	for _, subject := range s.items {
		if wanted[subject.ID] {
			out = append(out, subject)
		}
	}
	return out, nil
}

type teacherRepoStub struct {
	teachers     []models.Teacher
	subjects     []models.TeacherSubject
	availability []models.TeacherAvailabilitySlot
	availErr     error
}

func (s *teacherRepoStub) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	for _, t := range s.teachers {
		if t.ID == id {
			teacher := t
			return &teacher, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *teacherRepoStub) ListBySchool(ctx context.Context, schoolID string) ([]models.Teacher, error) {
	var out []models.Teacher
	for _, t := range s.teachers {
		if t.SchoolID == schoolID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *teacherRepoStub) ListQualified(ctx context.Context, schoolID string, subjectIDs, teacherIDs []string) ([]models.Teacher, error) {
	subjects := make(map[string]bool, len(subjectIDs))
	for _, id := range subjectIDs {
		subjects[id] = true
	}
	restrict := make(map[string]bool, len(teacherIDs))
	for _, id := range teacherIDs {
		restrict[id] = true
	}
	var out []models.Teacher
	for _, t := range s.teachers {
		if t.SchoolID != schoolID || (len(restrict) > 0 && !restrict[t.ID]) {
			continue
		}
		for _, q := range s.subjects {
			if q.TeacherID == t.ID && subjects[q.SubjectID] {
				out = append(out, t)
				break
			}
		}
	}
	return out, nil
}

func (s *teacherRepoStub) ListSubjects(ctx context.Context, teacherIDs []string) ([]models.TeacherSubject, error) {
	ids := make(map[string]bool, len(teacherIDs))
	for _, id := range teacherIDs {
		ids[id] = true
	}
	var out []models.TeacherSubject
	for _, q := range s.subjects {
		if ids[q.TeacherID] {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *teacherRepoStub) ListAvailability(ctx context.Context, teacherIDs []string, academicYear int) ([]models.TeacherAvailabilitySlot, error) {
	if s.availErr != nil {
		return nil, s.availErr
	}
	ids := make(map[string]bool, len(teacherIDs))
	for _, id := range teacherIDs {
		ids[id] = true
	}
	var out []models.TeacherAvailabilitySlot
	for _, slot := range s.availability {
		if ids[slot.TeacherID] && slot.AcademicYear == academicYear {
			out = append(out, slot)
		}
	}
	return out, nil
}

// availableAllWeek declares 07:00-18:00 availability Monday to Friday.
func availableAllWeek(teacherID string, year int) []models.TeacherAvailabilitySlot {
	var slots []models.TeacherAvailabilitySlot
	for _, day := range timetable.Weekdays {
		slots = append(slots, models.TeacherAvailabilitySlot{
			ID:           teacherID + "-" + string(day),
			TeacherID:    teacherID,
			AcademicYear: year,
			DayOfWeek:    string(day),
			StartTime:    "07:00",
			EndTime:      "18:00",
		})
	}
	return slots
}

type timetableRepoStub struct {
	mu            sync.Mutex
	schedules     map[string]models.Schedule
	active        *models.Schedule
	created       []models.Schedule
	replaced      map[string][]models.ScheduleBlock
	blocks        []models.ScheduleBlock
	deleted       []string
	dayCalls      int
	courseCalls   int
	replaceErr    error
	deprecatedFor []string
	schoolBlocks  []models.ScheduleBlockDetail
}

func newTimetableRepoStub() *timetableRepoStub {
	return &timetableRepoStub{
		schedules: make(map[string]models.Schedule),
		replaced:  make(map[string][]models.ScheduleBlock),
	}
}

func (s *timetableRepoStub) FindActiveByCourse(ctx context.Context, exec sqlx.ExtContext, courseID string, academicYear int) (*models.Schedule, error) {
	if s.active == nil || s.active.CourseID != courseID {
		return nil, sql.ErrNoRows
	}
	active := *s.active
	return &active, nil
}

func (s *timetableRepoStub) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	schedule, ok := s.schedules[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &schedule, nil
}

func (s *timetableRepoStub) CreateSchedule(ctx context.Context, exec sqlx.ExtContext, schedule *models.Schedule) error {
	schedule.ID = "schedule-new"
	s.created = append(s.created, *schedule)
	return nil
}

func (s *timetableRepoStub) ReplaceBlocks(ctx context.Context, exec sqlx.ExtContext, scheduleID string, blocks []models.ScheduleBlock) error {
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.replaced[scheduleID] = blocks
	return nil
}

func (s *timetableRepoStub) ListBlocksByCourse(ctx context.Context, courseID string) ([]models.ScheduleBlock, error) {
	s.mu.Lock()
	s.courseCalls++
	s.mu.Unlock()
	var out []models.ScheduleBlock
	for _, b := range s.blocks {
		if b.CourseID == courseID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *timetableRepoStub) ListBlocksByTeacher(ctx context.Context, teacherID string) ([]models.ScheduleBlock, error) {
	var out []models.ScheduleBlock
	for _, b := range s.blocks {
		if b.TeacherID == teacherID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *timetableRepoStub) ListTeacherBlocksOnDay(ctx context.Context, teacherID, day, excludeCourseID string) ([]models.ScheduleBlock, error) {
	s.mu.Lock()
	s.dayCalls++
	s.mu.Unlock()
	var out []models.ScheduleBlock
	for _, b := range s.blocks {
		if b.TeacherID == teacherID && b.DayOfWeek == day && b.CourseID != excludeCourseID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *timetableRepoStub) ListBlocksBySchool(ctx context.Context, schoolID string) ([]models.ScheduleBlockDetail, error) {
	return s.schoolBlocks, nil
}

func (s *timetableRepoStub) MarkDeprecatedForLevel(ctx context.Context, exec sqlx.ExtContext, schoolID, level string) (int64, error) {
	s.deprecatedFor = append(s.deprecatedFor, schoolID+":"+level)
	return 3, nil
}

func (s *timetableRepoStub) DeleteSchedule(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if _, ok := s.schedules[id]; !ok {
		return sql.ErrNoRows
	}
	s.deleted = append(s.deleted, id)
	return nil
}

type configResolverStub struct {
	cfg timetable.LevelConfig
}

func (s configResolverStub) GetForLevel(ctx context.Context, schoolID, level string) (*dto.ScheduleConfigResponse, error) {
	return &dto.ScheduleConfigResponse{LevelConfig: s.cfg}, nil
}

func (s configResolverStub) GetForTeacher(ctx context.Context, teacherID string) (*dto.ScheduleConfigResponse, error) {
	return &dto.ScheduleConfigResponse{LevelConfig: s.cfg}, nil
}

// twoBlockGrid has two 60 minute blocks split by a recess: 08:00-09:00 and 09:15-10:15.
func twoBlockGrid() timetable.LevelConfig {
	return timetable.LevelConfig{
		StartTime:     "08:00",
		EndTime:       "10:15",
		BlockDuration: 60,
		Breaks:        []timetable.BreakConfig{{AfterBlock: 1, Duration: 15, Name: "Recess"}},
	}
}

func committedBlock(id, courseID, teacherID, day, start, end string) models.ScheduleBlock {
	return models.ScheduleBlock{
		ID:         id,
		ScheduleID: "schedule-" + courseID,
		CourseID:   courseID,
		SubjectID:  "history",
		TeacherID:  teacherID,
		DayOfWeek:  day,
		StartTime:  start,
		EndTime:    end,
		Color:      "#ef4444",
	}
}
