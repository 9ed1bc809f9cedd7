package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// ScheduleConfigRepository persists per-level time grids and their change history.
type ScheduleConfigRepository struct {
	db *sqlx.DB
}

// NewScheduleConfigRepository constructs the repository.
func NewScheduleConfigRepository(db *sqlx.DB) *ScheduleConfigRepository {
	return &ScheduleConfigRepository{db: db}
}

func (r *ScheduleConfigRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const scheduleConfigColumns = `id, school_id, academic_level, start_time, end_time, block_duration, breaks, created_at, updated_at`

// FindByLevel loads the config of a school level. It returns sql.ErrNoRows when none is stored.
func (r *ScheduleConfigRepository) FindByLevel(ctx context.Context, schoolID, level string) (*models.ScheduleLevelConfig, error) {
	query := `SELECT ` + scheduleConfigColumns + ` FROM schedule_level_configs WHERE school_id = $1 AND academic_level = $2`
	var cfg models.ScheduleLevelConfig
	if err := r.db.GetContext(ctx, &cfg, query, schoolID, level); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ListBySchool returns every stored level config of the school.
func (r *ScheduleConfigRepository) ListBySchool(ctx context.Context, schoolID string) ([]models.ScheduleLevelConfig, error) {
	query := `SELECT ` + scheduleConfigColumns + ` FROM schedule_level_configs WHERE school_id = $1 ORDER BY academic_level ASC`
	var configs []models.ScheduleLevelConfig
	if err := r.db.SelectContext(ctx, &configs, query, schoolID); err != nil {
		return nil, fmt.Errorf("list schedule configs: %w", err)
	}
	return configs, nil
}

// Upsert inserts or replaces the config of (school, level) and fills the stored id and timestamps.
func (r *ScheduleConfigRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, cfg *models.ScheduleLevelConfig) error {
	if cfg == nil {
		return fmt.Errorf("schedule config payload is nil")
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if len(cfg.Breaks) == 0 {
		cfg.Breaks = types.JSONText(`[]`)
	}
	now := time.Now().UTC()
	cfg.UpdatedAt = now

	const query = `
INSERT INTO schedule_level_configs (id, school_id, academic_level, start_time, end_time, block_duration, breaks, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
ON CONFLICT (school_id, academic_level) DO UPDATE
SET start_time = EXCLUDED.start_time,
    end_time = EXCLUDED.end_time,
    block_duration = EXCLUDED.block_duration,
    breaks = EXCLUDED.breaks,
    updated_at = EXCLUDED.updated_at
RETURNING id, created_at`

	var stored struct {
		ID        string    `db:"id"`
		CreatedAt time.Time `db:"created_at"`
	}
	if err := sqlx.GetContext(ctx, r.exec(exec), &stored, query,
		cfg.ID, cfg.SchoolID, cfg.AcademicLevel, cfg.StartTime, cfg.EndTime, cfg.BlockDuration, cfg.Breaks, now); err != nil {
		return fmt.Errorf("upsert schedule config: %w", err)
	}
	cfg.ID = stored.ID
	cfg.CreatedAt = stored.CreatedAt
	return nil
}

// InsertHistory records the previous values of a config.
func (r *ScheduleConfigRepository) InsertHistory(ctx context.Context, exec sqlx.ExtContext, entry *models.ScheduleLevelConfigHistory) error {
	if entry == nil {
		return fmt.Errorf("schedule config history payload is nil")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if len(entry.Breaks) == 0 {
		entry.Breaks = types.JSONText(`[]`)
	}
	const query = `
INSERT INTO schedule_level_config_history (id, config_id, school_id, academic_level, start_time, end_time, block_duration, breaks, changed_by, change_reason, created_at)
VALUES (:id, :config_id, :school_id, :academic_level, :start_time, :end_time, :block_duration, :breaks, :changed_by, :change_reason, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, entry); err != nil {
		return fmt.Errorf("insert schedule config history: %w", err)
	}
	return nil
}

// ListHistory returns the most recent history entries of a config, newest first.
func (r *ScheduleConfigRepository) ListHistory(ctx context.Context, configID string, limit int) ([]models.ScheduleLevelConfigHistory, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	const query = `SELECT id, config_id, school_id, academic_level, start_time, end_time, block_duration, breaks, changed_by, change_reason, created_at
FROM schedule_level_config_history WHERE config_id = $1 ORDER BY created_at DESC LIMIT $2`
	var history []models.ScheduleLevelConfigHistory
	if err := r.db.SelectContext(ctx, &history, query, configID, limit); err != nil {
		return nil, fmt.Errorf("list schedule config history: %w", err)
	}
	return history, nil
}
