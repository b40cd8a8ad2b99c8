package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "github.com/noah-isme/lesson-scheduler-api/api/swagger"
	"github.com/noah-isme/lesson-scheduler-api/internal/handler"
	"github.com/noah-isme/lesson-scheduler-api/internal/repository"
	"github.com/noah-isme/lesson-scheduler-api/internal/service"
	"github.com/noah-isme/lesson-scheduler-api/pkg/cache"
	"github.com/noah-isme/lesson-scheduler-api/pkg/config"
	"github.com/noah-isme/lesson-scheduler-api/pkg/database"
	"github.com/noah-isme/lesson-scheduler-api/pkg/jobs"
	"github.com/noah-isme/lesson-scheduler-api/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lesson HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close() //nolint:errcheck

	if cfg.Migrations.AutoApply {
		migrator, err := database.NewMigrator(db)
		if err != nil {
			return err
		}
		if err := migrator.Up(ctx); err != nil {
			return err
		}
		logr.Info("migrations applied")
	}

	var redisClient *redis.Client
	if cfg.Stats.CacheEnabled || cfg.Notifications.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close() //nolint:errcheck
	}

	metrics := service.NewMetricsService()

	txManager := repository.NewTxManager(db, cfg.Scheduling.LockTimeout)
	lessonRepo := repository.NewLessonRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	historyRepo := repository.NewLessonHistoryRepository(db)
	tutorRepo := repository.NewTutorRepository(db)

	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metrics, cfg.Stats.CacheTTL, logr, cfg.Stats.CacheEnabled)
	audit := service.NewAuditRecorder(historyRepo, logr)
	identity := service.NewIdentityService(tutorRepo, service.IdentityConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer}, logr)
	admin := service.NewAdminQueryService(lessonRepo, cacheSvc, metrics, service.AdminQueryConfig{StatsTTL: cfg.Stats.CacheTTL}, logr)
	queries := service.NewLessonQueryService(lessonRepo, audit, admin, logr)

	opts := []service.LessonServiceOption{
		service.WithLessonLocation(cfg.Scheduling.Location()),
		service.WithCancellationWindow(cfg.Scheduling.CancellationWindow),
		service.WithLessonCache(cacheSvc),
		service.WithLessonMetrics(metrics),
	}

	var queue *jobs.Queue
	if cfg.Notifications.Enabled {
		stream := repository.NewLessonEventStream(redisClient, cfg.Notifications.Channel)
		queue = jobs.NewQueue("lesson-events", service.LessonEventHandler(stream, metrics, logr), jobs.QueueConfig{
			Workers:    cfg.Notifications.Workers,
			MaxRetries: cfg.Notifications.MaxRetries,
			RetryDelay: cfg.Notifications.RetryDelay,
			Logger:     logr,
		})
		queue.Start(ctx)
		defer queue.Stop()
		opts = append(opts, service.WithLessonEvents(service.NewLessonEventDispatcher(queue, metrics, logr)))
	}

	lessons := service.NewLessonService(txManager, lessonRepo, enrollmentRepo, audit, validator.New(), logr, opts...)

	checks := map[string]handler.Pinger{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	router := handler.NewRouter(cfg, logr, handler.RouterDeps{
		Identity: identity,
		Metrics:  metrics,
		Lessons:  handler.NewLessonHandler(lessons, queries),
		Admin:    handler.NewAdminHandler(admin),
		Probes:   handler.NewMetricsHandler(metrics, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
