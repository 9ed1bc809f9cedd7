package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/router"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
)

// @title SMA Timetable API
// @version 1.0.0
// @description Weekly timetable generation, level day grids and conflict checks
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("postgres unavailable", zap.Error(err))
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db); err != nil {
		logr.Fatal("schema migration failed", zap.Error(err))
	}

	metrics := service.NewMetricsService()
	checks := map[string]handler.Pinger{"postgres": db}

	cacheEnabled := cfg.Cache.Enabled
	var cacheRepo service.CacheRepository
	if cacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
			cacheEnabled = false
		} else {
			defer client.Close()
			cacheRepo = repository.NewCacheRepository(client, logr.Named("cache"))
			checks["redis"] = handler.PingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.ScheduleConfigTTL, logr.Named("cache"), cacheEnabled)

	courses := repository.NewCourseRepository(db)
	subjects := repository.NewSubjectRepository(db)
	teachers := repository.NewTeacherRepository(db)
	timetables := repository.NewTimetableRepository(db)
	configs := repository.NewScheduleConfigRepository(db)

	validate := validator.New()

	configSvc := service.NewScheduleConfigService(configs, timetables, courses, teachers, db, cacheSvc, cfg.Cache.ScheduleConfigTTL, validate, logr.Named("schedule_config"))
	generatorSvc := service.NewTimetableGeneratorService(courses, subjects, teachers, timetables, configSvc, db, cacheSvc, metrics, validate, logr.Named("timetable"), service.TimetableGeneratorConfig{
		ProposalTTL:            cfg.Scheduler.ProposalTTL,
		ProposalCapacity:       cfg.Scheduler.ProposalCapacity,
		MaxSubjectBlocksPerDay: cfg.Scheduler.MaxSubjectBlocksPerDay,
		MaxTeacherBlocksPerDay: cfg.Scheduler.MaxTeacherBlocksPerDay,
		BatchConcurrency:       cfg.Scheduler.BatchConcurrency,
		AcademicYear:           cfg.Scheduler.AcademicYear,
		ViewCacheTTL:           cfg.Cache.TimetableTTL,
	})
	conflictSvc := service.NewScheduleConflictService(courses, timetables, teachers, cfg.Scheduler.AcademicYear, validate, logr.Named("conflicts"))

	r := router.New(cfg, logr, metrics, router.Handlers{
		Timetable:      handler.NewTimetableHandler(generatorSvc, conflictSvc),
		ScheduleConfig: handler.NewScheduleConfigHandler(configSvc),
		Metrics:        handler.NewMetricsHandler(metrics, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.Bool("cache", cacheEnabled))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
