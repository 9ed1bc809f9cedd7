package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

// Probe and scrape paths kept out of the request log.
var quietPaths = []string{"/health", "/ready", "/metrics"}

// Handlers groups the HTTP handlers mounted by New.
type Handlers struct {
	Timetable      *handler.TimetableHandler
	ScheduleConfig *handler.ScheduleConfigHandler
	Metrics        *handler.MetricsHandler
}

// New builds the gin engine with the shared middleware chain and every route.
func New(cfg *config.Config, log *zap.Logger, metrics *service.MetricsService, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(log, quietPaths...))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/metrics/summary", h.Metrics.Snapshot)

	timetables := api.Group("/timetables")
	timetables.POST("/generate", h.Timetable.Generate)
	timetables.POST("/generate/batch", h.Timetable.GenerateBatch)
	timetables.POST("/save", h.Timetable.Save)
	timetables.POST("/conflicts/validate", h.Timetable.ValidateBlock)
	timetables.DELETE("/:id", h.Timetable.Delete)

	api.GET("/courses/:id/timetable", h.Timetable.CourseTimetable)
	api.GET("/courses/:id/schedule-config", h.ScheduleConfig.CourseConfig)
	api.GET("/teachers/:id/timetable", h.Timetable.TeacherTimetable)
	api.GET("/teachers/:id/schedule-config", h.ScheduleConfig.TeacherConfig)

	schools := api.Group("/schools/:id")
	schools.GET("/schedule-configs", h.ScheduleConfig.List)
	schools.GET("/schedule-configs/:level", h.ScheduleConfig.Get)
	schools.PUT("/schedule-configs/:level", h.ScheduleConfig.Upsert)
	schools.GET("/schedule-configs/:level/history", h.ScheduleConfig.History)
	schools.GET("/schedule-configs/:level/slots", h.ScheduleConfig.Slots)
	schools.GET("/schedule-congruency", h.ScheduleConfig.Congruency)

	return r
}
