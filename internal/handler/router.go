package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/lesson-scheduler-api/internal/middleware"
	"github.com/noah-isme/lesson-scheduler-api/internal/models"
	"github.com/noah-isme/lesson-scheduler-api/internal/service"
	"github.com/noah-isme/lesson-scheduler-api/pkg/config"
	"github.com/noah-isme/lesson-scheduler-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lesson-scheduler-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lesson-scheduler-api/pkg/middleware/requestid"
)

// RouterDeps carries everything the HTTP surface needs.
type RouterDeps struct {
	Identity *service.IdentityService
	Metrics  *service.MetricsService
	Lessons  *LessonHandler
	Admin    *AdminHandler
	Probes   *MetricsHandler
}

// NewRouter wires middleware and routes.
func NewRouter(cfg *config.Config, logr *zap.Logger, deps RouterDeps) *gin.Engine {
	if logr == nil {
		logr = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(deps.Metrics))

	r.GET("/health", deps.Probes.Health)
	r.GET("/ready", deps.Probes.Ready)
	r.GET("/metrics", deps.Probes.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix, middleware.JWT(deps.Identity))

	lessons := api.Group("/lessons")
	lessons.POST("", middleware.RequireRoles(models.RoleTeacher), deps.Lessons.Create)
	lessons.GET("", deps.Lessons.List)
	lessons.GET("/:id", deps.Lessons.Get)
	lessons.PATCH("/:id", middleware.RequireRoles(models.RoleTeacher), deps.Lessons.Update)
	lessons.POST("/:id/cancel", middleware.RequireRoles(models.RoleTeacher), deps.Lessons.Cancel)
	lessons.GET("/:id/history", deps.Lessons.History)

	admin := api.Group("/admin", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	admin.GET("/lessons", deps.Admin.List)
	admin.GET("/lessons/stats", deps.Admin.Stats)
	admin.GET("/lessons/export", deps.Admin.Export)

	return r
}
