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

	_ "github.com/ryadh-dz/autoecole-api/api/swagger"
	"github.com/ryadh-dz/autoecole-api/internal/handler"
	"github.com/ryadh-dz/autoecole-api/internal/middleware"
	"github.com/ryadh-dz/autoecole-api/internal/repository"
	"github.com/ryadh-dz/autoecole-api/internal/service"
	"github.com/ryadh-dz/autoecole-api/pkg/cache"
	"github.com/ryadh-dz/autoecole-api/pkg/config"
	"github.com/ryadh-dz/autoecole-api/pkg/database"
	"github.com/ryadh-dz/autoecole-api/pkg/export"
	"github.com/ryadh-dz/autoecole-api/pkg/logger"
	corsmiddleware "github.com/ryadh-dz/autoecole-api/pkg/middleware/cors"
	reqidmiddleware "github.com/ryadh-dz/autoecole-api/pkg/middleware/requestid"
	"github.com/ryadh-dz/autoecole-api/pkg/storage"
)

// @title AutoEcole API
// @version 1.0.0
// @description Driving school enrollment and course progression service
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			redisClient.Close()
		}
	}()

	documentStore, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init document storage", "error", err)
	}
	certificateStore, err := storage.NewLocalStorage(cfg.Certificates.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init certificate storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)

	userRepo := repository.NewUserRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	applicationRepo := repository.NewTeacherApplicationRepository(db)

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled)
	}

	tokenSvc := service.NewTokenService(cfg.JWT)

	certificateSvc := service.NewCertificateService(
		enrollmentRepo,
		courseRepo,
		export.NewCertificateRenderer(),
		certificateStore,
		signer,
		cfg.Certificates,
		logr,
	)

	totals := service.CourseTotals{
		Theory: cfg.Courses.TheorySessions,
		Park:   cfg.Courses.ParkSessions,
		Road:   cfg.Courses.RoadSessions,
	}

	schoolSvc := service.NewSchoolService(schoolRepo, userRepo, nil, cacheSvc, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, courseRepo, schoolRepo, userRepo, documentRepo, totals, cacheSvc, metricsSvc, logr)
	courseSvc := service.NewCourseService(courseRepo, enrollmentRepo, cfg.Courses.PassThreshold, certificateSvc, cacheSvc, metricsSvc, logr)
	documentSvc := service.NewDocumentService(documentRepo, documentStore, signer, cfg.Documents, cacheSvc, logr)
	approvalSvc := service.NewApprovalService(applicationRepo, enrollmentRepo, schoolRepo, userRepo, documentRepo, cacheSvc, metricsSvc, logr)
	exportSvc := service.NewExportService(enrollmentRepo, schoolRepo, export.NewCSVExporter(), logr)
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Users:        userRepo,
		Enrollments:  enrollmentRepo,
		Courses:      courseRepo,
		Documents:    documentRepo,
		Schools:      schoolRepo,
		Applications: applicationRepo,
		Docs:         documentRepo,
		Certificates: certificateSvc,
		Cache:        cacheSvc,
		Logger:       logr,
		CacheTTL:     cfg.Dashboard.CacheTTL,
	})

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	certificateSvc.Start(workerCtx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	router := handler.NewRouter(handler.RouterParams{
		Schools:     handler.NewSchoolHandler(schoolSvc),
		Enrollments: handler.NewEnrollmentHandler(enrollmentSvc, approvalSvc, exportSvc),
		Courses:     handler.NewCourseHandler(courseSvc),
		Documents:   handler.NewDocumentHandler(documentSvc),
		Teachers:    handler.NewTeacherHandler(approvalSvc),
		Dashboards:  handler.NewDashboardHandler(dashboardSvc, certificateSvc),
		Tokens:      tokenSvc,
		Metrics:     metricsSvc,
	})
	router.Register(r, cfg)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}

	certificateSvc.Stop()
	cancelWorkers()
}
