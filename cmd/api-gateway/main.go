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
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/civic-portal-api/api/swagger"
	"github.com/noah-isme/civic-portal-api/internal/authz"
	"github.com/noah-isme/civic-portal-api/internal/handler"
	internalmiddleware "github.com/noah-isme/civic-portal-api/internal/middleware"
	"github.com/noah-isme/civic-portal-api/internal/models"
	"github.com/noah-isme/civic-portal-api/internal/repository"
	"github.com/noah-isme/civic-portal-api/internal/service"
	"github.com/noah-isme/civic-portal-api/internal/workflow"
	"github.com/noah-isme/civic-portal-api/pkg/cache"
	"github.com/noah-isme/civic-portal-api/pkg/config"
	"github.com/noah-isme/civic-portal-api/pkg/database"
	"github.com/noah-isme/civic-portal-api/pkg/export"
	"github.com/noah-isme/civic-portal-api/pkg/jobs"
	"github.com/noah-isme/civic-portal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/civic-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/civic-portal-api/pkg/middleware/requestid"
	"github.com/noah-isme/civic-portal-api/pkg/storage"
	"github.com/noah-isme/civic-portal-api/pkg/validation"
	"github.com/noah-isme/civic-portal-api/pkg/version"
)

// @title Civic Portal API
// @version 1.0.0
// @description Constituency transparency portal: approvals, ratings, complaints and MLA attendance.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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
	models.SetPageLimits(cfg.Workflow.DefaultPageSize, cfg.Workflow.MaxPageSize)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, public stats served uncached", zap.Error(err))
	} else {
		defer redisClient.Close() //nolint:errcheck
		cacheRepo = repository.NewStatsStore(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.PublicStats.CacheTTL, logr, cfg.PublicStats.CacheEnabled)

	app, cleanup, err := buildApp(ctx, cfg, db, cacheSvc, metricsSvc, logr)
	if err != nil {
		logr.Fatal("failed to build application", zap.Error(err))
	}
	defer cleanup()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/metrics", "/health", "/ready"))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, readinessChecks(db, redisClient))
	app.handlers.Metrics = metricsHandler
	handler.RegisterOps(r, metricsHandler)
	handler.RegisterRoutes(r.Group(cfg.APIPrefix), app.handlers, app.routeDeps)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "version", version.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

type application struct {
	handlers  handler.Handlers
	routeDeps handler.RouteDeps
}

func buildApp(ctx context.Context, cfg *config.Config, db *sqlx.DB, cacheSvc *service.CacheService, metricsSvc *service.MetricsService, logr *zap.Logger) (*application, func(), error) {
	validate := validation.New()
	guard := authz.NewGuard(nil)
	machine := workflow.NewMachine(guard)

	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	contentRepo := repository.NewContentRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	schemeRepo := repository.NewSchemeRepository(db)
	eventRepo := repository.NewEventRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	complaintRepo := repository.NewComplaintRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)

	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "civic-portal-api",
	})
	userSvc := service.NewUserService(userRepo, auditRepo, validate, logr)
	auditSvc := service.NewAuditService(auditRepo, logr)

	contentDeps := service.ContentDeps{
		Store:     contentRepo,
		Machine:   machine,
		Audit:     auditRepo,
		Stats:     cacheSvc,
		Metrics:   metricsSvc,
		Validator: validate,
		Logger:    logr,
	}
	ratingSvc := service.NewRatingService(contentRepo, guard, auditRepo, cacheSvc, metricsSvc, validate, logr, cfg.Workflow.RatingRequiresApproval)
	scheduleSvc := service.NewScheduleService(scheduleRepo, machine, auditRepo, metricsSvc, validate, logr)
	complaintSvc := service.NewComplaintService(complaintRepo, guard, auditRepo, cacheSvc, metricsSvc, validate, logr, cfg.Workflow.DefaultComplaintPriority)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, guard, auditRepo, cacheSvc, metricsSvc, validate, logr)
	transparencySvc := service.NewTransparencyService(projectRepo, contentRepo, complaintRepo, attendanceRepo, cacheSvc, metricsSvc, cfg.PublicStats.CacheTTL, logr)

	app := &application{
		handlers: handler.Handlers{
			Auth:         handler.NewAuthHandler(authSvc),
			Users:        handler.NewUserHandler(userSvc),
			Audit:        handler.NewAuditHandler(auditSvc),
			Projects:     handler.NewContentHandler[models.ProjectRequest, models.Project](models.ContentProject, service.NewProjectService(projectRepo, contentDeps), ratingSvc),
			Schemes:      handler.NewContentHandler[models.SchemeRequest, models.Scheme](models.ContentScheme, service.NewSchemeService(schemeRepo, contentDeps), ratingSvc),
			Events:       handler.NewContentHandler[models.EventRequest, models.Event](models.ContentEvent, service.NewEventService(eventRepo, contentDeps), ratingSvc),
			Schedules:    handler.NewScheduleHandler(scheduleSvc),
			Complaints:   handler.NewComplaintHandler(complaintSvc),
			Attendance:   handler.NewAttendanceHandler(attendanceSvc),
			Transparency: handler.NewTransparencyHandler(transparencySvc),
		},
		routeDeps: handler.RouteDeps{
			Tokens:  authSvc,
			Guard:   guard,
			Denials: metricsSvc,
			Audit:   auditRepo,
		},
	}

	cleanup := func() {}
	if !cfg.Reports.Enabled {
		logr.Info("report exports disabled")
		return app, cleanup, nil
	}

	fileStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		return nil, nil, fmt.Errorf("init report storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	reportRepo := repository.NewReportRepository(db)
	exportSvc := service.NewExportService(service.ExportSources{
		Projects:   projectRepo,
		Schemes:    schemeRepo,
		Events:     eventRepo,
		Complaints: complaintRepo,
		Attendance: attendanceRepo,
	}, fileStore, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, logr, export.NewCSVExporter(), export.NewPDFExporter())

	worker := service.NewReportWorker(reportRepo, exportSvc, cfg.Reports.WorkerRetries, logr)
	queue := jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logr,
	})
	queue.Start(ctx)

	reportSvc := service.NewReportService(reportRepo, guard, queue, exportSvc, auditRepo, validate, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
	})
	reportSvc.RecoverPendingJobs(ctx)
	reportSvc.StartCleanup(ctx)

	app.handlers.Reports = handler.NewReportHandler(reportSvc)
	return app, queue.Stop, nil
}

func readinessChecks(db *sqlx.DB, redisClient *redis.Client) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}
