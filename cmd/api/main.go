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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/Achyut-shekhar/Attendx/api/swagger"
	"github.com/Achyut-shekhar/Attendx/internal/handler"
	"github.com/Achyut-shekhar/Attendx/internal/middleware"
	"github.com/Achyut-shekhar/Attendx/internal/repository"
	"github.com/Achyut-shekhar/Attendx/internal/service"
	"github.com/Achyut-shekhar/Attendx/pkg/cache"
	"github.com/Achyut-shekhar/Attendx/pkg/config"
	"github.com/Achyut-shekhar/Attendx/pkg/database"
	"github.com/Achyut-shekhar/Attendx/pkg/jobs"
	"github.com/Achyut-shekhar/Attendx/pkg/logger"
	corsmiddleware "github.com/Achyut-shekhar/Attendx/pkg/middleware/cors"
	reqidmiddleware "github.com/Achyut-shekhar/Attendx/pkg/middleware/requestid"
	"github.com/Achyut-shekhar/Attendx/pkg/storage"
)

// @title Attendx API
// @version 1.0.0
// @description Class attendance with session codes and geofence verdicts
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, session code cache disabled", "error", err)
		redisClient = nil
	}

	userRepo := repository.NewUserRepository(db)
	classRepo := repository.NewClassRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	sessionCache := repository.NewSessionCacheRepository(redisClient, logr)
	defer sessionCache.Close() //nolint:errcheck

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	classSvc := service.NewClassService(classRepo, validate, logr)

	notificationSvc := service.NewNotificationService(notificationRepo, classRepo, logr, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	})
	if cfg.Notifications.Enabled {
		notificationSvc.Start(ctx)
		defer notificationSvc.Stop()
	}

	sessionSvc := service.NewSessionService(sessionRepo, classRepo, attendanceRepo, sessionCache,
		notificationSvc, metricsSvc, validate, logr, service.SessionConfig{
			DefaultRadiusMeters: cfg.Geofence.DefaultRadiusMeters,
			CodeCacheTTL:        cfg.Geofence.SessionCacheTTL,
		})
	attendanceSvc := service.NewAttendanceService(attendanceRepo, sessionRepo, classRepo, sessionCache,
		notificationSvc, metricsSvc, validate, logr, service.GeofenceConfig{
			DefaultRadiusMeters: cfg.Geofence.DefaultRadiusMeters,
			MaxAccuracyBuffer:   cfg.Geofence.MaxAccuracyBuffer,
			CodeCacheTTL:        cfg.Geofence.SessionCacheTTL,
		})
	var reportArchive *storage.Archive
	var reportSigner *storage.LinkSigner
	if cfg.Reports.Enabled {
		reportArchive, err = storage.NewArchive(cfg.Reports.Dir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init report archive", "error", err)
		}
		reportSigner = storage.NewLinkSigner(cfg.JWT.Secret, cfg.Reports.LinkTTL)
	}
	reportSvc := service.NewReportService(attendanceRepo, sessionRepo, classRepo, reportArchive, reportSigner, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, handler.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		Class:         handler.NewClassHandler(classSvc),
		Session:       handler.NewSessionHandler(sessionSvc),
		Attendance:    handler.NewAttendanceHandler(attendanceSvc),
		Notification:  handler.NewNotificationHandler(notificationSvc),
		Report:        handler.NewReportHandler(reportSvc),
		AuthService:   authSvc,
		ReportEnabled: cfg.Reports.Enabled,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
