package main

import (
	"context"
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

	_ "github.com/molinacode/padel-crm-api/api/swagger"
	"github.com/molinacode/padel-crm-api/internal/handler"
	"github.com/molinacode/padel-crm-api/internal/middleware"
	"github.com/molinacode/padel-crm-api/internal/repository"
	"github.com/molinacode/padel-crm-api/internal/service"
	"github.com/molinacode/padel-crm-api/pkg/cache"
	"github.com/molinacode/padel-crm-api/pkg/config"
	"github.com/molinacode/padel-crm-api/pkg/database"
	"github.com/molinacode/padel-crm-api/pkg/export"
	"github.com/molinacode/padel-crm-api/pkg/jobs"
	"github.com/molinacode/padel-crm-api/pkg/logger"
	corsmiddleware "github.com/molinacode/padel-crm-api/pkg/middleware/cors"
	reqidmiddleware "github.com/molinacode/padel-crm-api/pkg/middleware/requestid"
	"github.com/molinacode/padel-crm-api/pkg/storage"
)

// @title Padel CRM API
// @version 1.0.0
// @description Padel academy management: classes, seat accounting, attendance, makeup credits
// @BasePath /api/v1
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	occurrenceRepo := repository.NewOccurrenceRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	releaseRepo := repository.NewSlotReleaseRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	makeupRepo := repository.NewMakeupCreditRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	// Seat availability cache is optional. A redis outage at boot degrades
	// to uncached resolution instead of failing the process.
	var availabilityCache *service.MeteredCache
	if cfg.Availability.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, availability cache disabled", "error", err)
		} else {
			defer redisClient.Close()
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Availability.CacheTTL, logr, true)
			availabilityCache = service.NewMeteredCache(cacheSvc)
		}
	}

	// Services.
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: cfg.JWT.Issuer,
	})
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, occurrenceRepo, validate, logr)

	var capacitySvc *service.CapacityService
	if availabilityCache != nil {
		capacitySvc = service.NewCapacityService(occurrenceRepo, classRepo, enrollmentRepo, releaseRepo, attendanceRepo, availabilityCache, cfg.Availability.CacheTTL, logr)
	} else {
		capacitySvc = service.NewCapacityService(occurrenceRepo, classRepo, enrollmentRepo, releaseRepo, attendanceRepo, nil, cfg.Availability.CacheTTL, logr)
	}

	occurrenceSvc := service.NewOccurrenceService(occurrenceRepo, capacitySvc, validate, logr)
	releaseSvc := service.NewReleaseService(releaseRepo, occurrenceRepo, logr)
	makeupSvc := service.NewMakeupService(makeupRepo, attendanceRepo, validate, logr)
	assignmentSvc := service.NewAssignmentService(enrollmentRepo, studentRepo, classRepo, occurrenceRepo, capacitySvc, releaseSvc, makeupSvc, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, releaseSvc, makeupSvc, capacitySvc, validate, logr)
	paymentSvc := service.NewPaymentService(paymentRepo, enrollmentRepo, validate, logr)

	// Export pipeline, gated behind its feature flag.
	var exportJobSvc *service.ExportJobService
	var exportQueue *jobs.Queue
	if cfg.Exports.Enabled {
		fileStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc := service.NewExportService(
			studentRepo, attendanceRepo, paymentRepo, makeupRepo,
			fileStore, signer,
			service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Exports.SignedURLTTL},
			logr,
			export.NewCSVExporter(), export.NewPDFExporter(),
		)

		jobStore := service.NewExportJobStore()
		worker := service.NewExportWorker(jobStore, exportSvc, cfg.Exports.WorkerRetries, logr)
		exportQueue = jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		exportQueue.Start(ctx)

		exportJobSvc = service.NewExportJobService(jobStore, exportQueue, exportSvc, logr, service.ExportJobServiceConfig{
			ResultTTL:       cfg.Exports.SignedURLTTL,
			CleanupInterval: time.Hour,
			MaxRetries:      cfg.Exports.WorkerRetries,
		})
		exportJobSvc.StartCleanup(ctx)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.Audit(logr))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handler.Handlers{
		Auth:        handler.NewAuthHandler(authSvc),
		Students:    handler.NewStudentHandler(studentSvc),
		Classes:     handler.NewClassHandler(classSvc),
		Occurrences: handler.NewOccurrenceHandler(occurrenceSvc, capacitySvc),
		Enrollments: handler.NewEnrollmentHandler(assignmentSvc),
		Attendance:  handler.NewAttendanceHandler(attendanceSvc),
		Makeups:     handler.NewMakeupHandler(makeupSvc),
		Releases:    handler.NewReleaseHandler(releaseSvc),
		Payments:    handler.NewPaymentHandler(paymentSvc),
		Metrics:     handler.NewMetricsHandler(metricsSvc),
	}
	if exportJobSvc != nil {
		h.Exports = handler.NewExportHandler(exportJobSvc)
	}
	handler.RegisterRoutes(r, cfg.APIPrefix, h, authSvc)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
	if exportQueue != nil {
		exportQueue.Stop()
	}
}
