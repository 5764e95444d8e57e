package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"order_composer/internal/composer"
	"order_composer/internal/config"
	"order_composer/internal/database"
	"order_composer/internal/handlers"
	"order_composer/internal/migrations"
	"order_composer/internal/redis"
	"order_composer/internal/repository"
	"order_composer/internal/services"
	"order_composer/pkg/backend"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal("Failed to load configuration: ", err)
	}
	logger := config.NewLogger(cfg.Log)
	debug := logger.IsLevelEnabled(logrus.DebugLevel)
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL, logger, debug)
	if err != nil {
		logger.Fatal("Failed to connect to database: ", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("Failed to get database handle: ", err)
	}
	defer sqlDB.Close()

	err = migrations.RunMigrations(db, logger, migrations.Defaults{
		TaxRate:         cfg.Composer.DefaultTaxRate,
		TaxEnabled:      cfg.Composer.TaxEnabled,
		DefaultCurrency: cfg.Composer.DefaultCurrency,
	})
	if err != nil {
		logger.Fatal("Failed to migrate database: ", err)
	}

	// Initialize Redis
	redisClient, err := redis.Initialize(cfg.RedisURL)
	if err != nil {
		logger.Fatal("Failed to connect to Redis: ", err)
	}
	defer redisClient.Close()

	backendClient := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.APIToken, cfg.Backend.Timeout)

	// Initialize repositories
	submissionRepo := repository.NewSubmissionRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	preferenceRepo := repository.NewPreferenceRepository(db)

	// Initialize services
	locks := services.NewDraftLocks()
	catalogService := services.NewCatalogService(backendClient, redisClient, cfg.CatalogTTL(), logger)
	draftService := services.NewDraftService(
		redisClient,
		catalogService,
		backendClient,
		settingsRepo,
		preferenceRepo,
		locks,
		services.DraftConfig{
			TTL:             cfg.DraftTTL(),
			DefaultCurrency: cfg.Composer.DefaultCurrency,
			Options: composer.Options{
				Overlap:          composer.ParseOverlapPolicy(cfg.Composer.OverlapPolicy),
				AutoAddFreeItems: cfg.Composer.AutoAddFreeItems,
			},
		},
		logger,
	)
	submissionService := services.NewSubmissionService(
		redisClient,
		backendClient,
		draftService,
		submissionRepo,
		locks,
		cfg.Composer.SubmitLockTTL,
		cfg.DraftTTL(),
		logger,
	)

	// Initialize handlers
	apiHandler := handlers.NewAPIHandler(draftService, submissionService, logger)
	lookupHandler := handlers.NewLookupHandler(catalogService, backendClient, logger)
	settingsHandler := handlers.NewSettingsHandler(settingsRepo, preferenceRepo, logger)

	// Setup routes
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handlers.RequestLogger(logger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AddAllowHeaders("Authorization", handlers.OperatorHeader, handlers.CorrelationHeader)
	corsConfig.AddExposeHeaders(handlers.CorrelationHeader)
	router.Use(cors.New(corsConfig))

	router.GET("/health", healthHandler(db, redisClient))

	api := router.Group("/api/composer")
	apiHandler.RegisterRoutes(api)
	lookupHandler.RegisterRoutes(api)
	settingsHandler.RegisterRoutes(api)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()
	logger.WithField("port", cfg.ServerPort).Info("Server started")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Server stopped unexpectedly")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
	logger.Info("Server stopped")
}

func healthHandler(db *gorm.DB, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := gin.H{"database": "ok", "redis": "ok"}
		code := http.StatusOK
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			status["database"] = "unavailable"
			code = http.StatusServiceUnavailable
		}
		if err := redisClient.Ping(ctx); err != nil {
			status["redis"] = "unavailable"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	}
}
