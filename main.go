package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/azure"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/config"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/delivery"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/handler"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/metrics"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/middleware"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/pdf"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/repository"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/scheduler"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/security"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/service"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/api"
	"go.uber.org/zap"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logger, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded successfully",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("timezone", cfg.Scheduler.Timezone),
	)

	// Initialize database connection pool with pgx
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Invalid database URL", zap.Error(err))
	}
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns
	poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(context.Background()); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}
	logger.Info("Successfully connected to database")

	loc := cfg.Location()

	// Response text is encrypted at rest when a key is configured
	var responseCipher repository.TextCipher
	if key := cfg.EncryptionKeyBytes(); key != nil {
		c, err := security.NewResponseCipher(key)
		if err != nil {
			logger.Fatal("Failed to initialize response cipher", zap.Error(err))
		}
		responseCipher = c
	} else {
		logger.Warn("ENCRYPTION_KEY not set; patient replies are stored as plain text")
	}

	// Initialize repositories
	assignmentRepo := repository.NewAssignmentRepository(pool, logger)
	contactRepo := repository.NewContactRepository(pool, logger)
	scheduleRepo := repository.NewScheduleRepository(pool, logger)
	reminderRepo := repository.NewReminderRepository(pool, responseCipher, logger)
	eventRepo := repository.NewEventRepository(pool, logger)
	adherenceRepo := repository.NewAdherenceRepository(pool, logger)
	deliveryEventRepo := repository.NewDeliveryEventRepository(pool, logger)
	reportRepo := repository.NewReportRepository(pool, logger)
	patientDataRepo := repository.NewPatientDataRepository(pool, logger)

	auditLogger := audit.NewLogger(pool, logger)

	// Report storage is optional; without it report endpoints answer 503
	var reportStorage azure.ReportStorage
	if cfg.StorageEnabled() {
		blobClient, err := azure.NewBlobStorageClient(
			cfg.Storage.AccountName,
			cfg.Storage.AccountKey,
			cfg.Storage.ReportContainer,
			logger,
		)
		if err != nil {
			logger.Fatal("Failed to initialize report blob storage client", zap.Error(err))
		}
		reportStorage = blobClient
	} else {
		logger.Warn("Azure storage not configured; adherence reports are disabled")
	}

	// Delivery channels
	if cfg.Delivery.Twilio.StatusCallbackURL == "" && cfg.Server.PublicURL != "" {
		cfg.Delivery.Twilio.StatusCallbackURL = cfg.Server.PublicURL + "/webhooks/delivery-status"
	}
	router, err := delivery.NewRouterFromConfig(cfg.Delivery, logger)
	if err != nil {
		logger.Fatal("Failed to initialize delivery channels", zap.Error(err))
	}
	channelNames := make([]string, 0, len(router.Channels()))
	for _, ch := range router.Channels() {
		channelNames = append(channelNames, string(ch))
	}
	logger.Info("Delivery channels configured", zap.Strings("channels", channelNames))

	// Initialize services
	contacts := service.NewContactResolver(contactRepo, cfg.Cache.ContactTTL, auditLogger, logger)
	calculator := service.NewAdherenceCalculator(eventRepo, adherenceRepo, loc, logger)
	generator := service.NewReminderGenerator(scheduleRepo, assignmentRepo, reminderRepo, loc, cfg.Delivery.MaxRetries, logger)

	scheduleService := service.NewScheduleService(scheduleRepo, assignmentRepo, generator, auditLogger, cfg.Scheduler.GenerationDaysAhead, loc, logger)
	reminderService := service.NewReminderService(reminderRepo, deliveryEventRepo, auditLogger, logger)
	eventService := service.NewEventService(eventRepo, assignmentRepo, calculator, auditLogger, loc, logger)
	assignmentService := service.NewAssignmentService(assignmentRepo, scheduleRepo, generator, auditLogger, cfg.Scheduler.GenerationDaysAhead, logger)
	correlator := service.NewCorrelator(reminderRepo, eventRepo, deliveryEventRepo, contacts, calculator, cfg.Scheduler.Lookback, loc, logger)
	dispatcher := service.NewDispatcher(reminderRepo, scheduleRepo, eventRepo, deliveryEventRepo, contacts, router, cfg.Scheduler.Lookback, cfg.Scheduler.BatchSize, logger)
	escalator := service.NewEscalator(reminderRepo, cfg.Scheduler.Lookback, logger)
	reportService := service.NewReportService(reportRepo, eventRepo, assignmentRepo, contacts, reportStorage, pdf.NewPDFGenerator(logger), auditLogger, loc, logger)
	patientDataService := service.NewPatientDataService(scheduleRepo, reminderRepo, eventRepo, adherenceRepo, contactRepo, reportRepo, patientDataRepo, reportStorage, contacts, auditLogger, logger)

	// Periodic driver
	var driver *scheduler.Driver
	if cfg.Scheduler.Enabled {
		driver, err = scheduler.NewDriver(scheduler.Config{
			DispatchSpec:   cfg.Scheduler.DispatchCron,
			GenerationSpec: cfg.Scheduler.GenerationCron,
			DaysAhead:      cfg.Scheduler.GenerationDaysAhead,
			Location:       loc,
		}, dispatcher, escalator, generator, logger)
		if err != nil {
			logger.Fatal("Failed to initialize scheduler", zap.Error(err))
		}
		go driver.RunGeneration(context.Background())
		driver.Start()
	} else {
		logger.Warn("Scheduler disabled; reminders are only generated on demand")
	}

	// Webhook signatures
	var verifier handler.SignatureVerifier
	if cfg.Delivery.Twilio.ValidateSignatures {
		verifier = delivery.NewSignatureVerifier(cfg.Delivery.Twilio.AuthToken)
	}

	// Metrics registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(registry)

	// Request validation against the API document
	middleware.RegisterValidators()
	doc, err := api.GetSwagger()
	if err != nil {
		logger.Fatal("Failed to load API document", zap.Error(err))
	}
	apiValidator, err := middleware.OpenAPIValidator(doc, logger)
	if err != nil {
		logger.Fatal("Failed to initialize request validator", zap.Error(err))
	}

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Recovery must be first
	r.Use(middleware.RecoveryMiddleware(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader, middleware.ActorHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.RequestLoggingMiddleware(logger))
	r.Use(middleware.ErrorLoggingMiddleware(logger))

	handler.RegisterRoutes(r, handler.Handlers{
		Health:      handler.NewHealthHandler(pool, version, logger),
		Schedules:   handler.NewScheduleHandler(scheduleService, logger),
		Reminders:   handler.NewReminderHandler(reminderService, logger),
		Events:      handler.NewEventHandler(eventService, logger),
		Adherence:   handler.NewAdherenceHandler(calculator, reportService, logger),
		Assignments: handler.NewAssignmentHandler(assignmentService, logger),
		Patients:    handler.NewPatientHandler(contacts, patientDataService, logger),
		Webhooks:    handler.NewWebhookHandler(reminderService, correlator, verifier, cfg.Server.PublicURL, logger),
	}, registry, apiValidator)

	// Start server with graceful shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if driver != nil {
		driver.Stop(ctx)
	}

	pool.Close()

	logger.Info("Server exited")
}

// newLogger builds the zap logger from the logging configuration
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Server.Environment != "production" {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	zapCfg.Level = level
	if cfg.Logging.Format == "json" || cfg.Logging.Format == "console" {
		zapCfg.Encoding = cfg.Logging.Format
	}

	return zapCfg.Build()
}
