package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kapitalops/intakebot/internal/approval"
	"github.com/kapitalops/intakebot/internal/config"
	"github.com/kapitalops/intakebot/internal/dedup"
	"github.com/kapitalops/intakebot/internal/lark"
	"github.com/kapitalops/intakebot/internal/ledger"
	"github.com/kapitalops/intakebot/internal/orchestrator"
	"github.com/kapitalops/intakebot/internal/session"
	"github.com/kapitalops/intakebot/internal/store"
	"github.com/kapitalops/intakebot/internal/webhook"
	"github.com/kapitalops/intakebot/internal/worker"
	"github.com/kapitalops/intakebot/pkg/database"
	"github.com/kapitalops/intakebot/pkg/logging"
)

func main() {
	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := logging.New(logging.Config{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting intake workflow service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Initialize database
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
		logger.Fatal("Failed to create data directory", zap.Error(err))
	}
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	migrator := database.NewMigrator(db, logger)
	if err := migrator.Run(store.Migrations()); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories and seed data
	actorRepo := store.NewActorRepository(db, logger)
	adminRepo := store.NewAdminRepository(db, logger)
	catalogRepo := store.NewCatalogRepository(db, logger)

	ctx := context.Background()
	if err := catalogRepo.SeedIfEmpty(ctx); err != nil {
		logger.Fatal("Failed to seed catalogs", zap.Error(err))
	}
	if err := adminRepo.Seed(ctx, cfg.Workflow.SeedAdminIDs); err != nil {
		logger.Fatal("Failed to seed admins", zap.Error(err))
	}

	// Initialize Lark client and messenger
	larkClient := lark.NewClient(lark.Config{
		AppID:     cfg.Lark.AppID,
		AppSecret: cfg.Lark.AppSecret,
	}, logger)
	messenger := lark.NewMessenger(larkClient, logger)

	// Initialize ledger sink behind the dedup cache
	workbook := ledger.NewWorkbook(cfg.Ledger.WorkbookPath, cfg.Ledger.Tab, logger)
	writer := ledger.NewWriter(workbook, actorRepo, logger)
	cache := dedup.NewCache(writer, cfg.Workflow.SuppressionWindow, cfg.Workflow.RetentionWindow, logger)

	// Approval gate and form sessions
	gate := approval.NewGate(adminRepo, messenger, cfg.Workflow.ApprovalTTL, logger)
	sessions := session.NewManager(catalogRepo, cfg.Workflow.RetentionWindow, logger)

	// Orchestrator
	engine := orchestrator.NewEngine(orchestrator.Deps{
		Actors:    actorRepo,
		Admins:    adminRepo,
		Catalog:   catalogRepo,
		Sessions:  sessions,
		Gate:      gate,
		Cache:     cache,
		Tabs:      workbook,
		Messenger: messenger,
		Logger:    logger,
	}, cfg.Workflow.ApprovalThreshold)

	// Webhook handler
	webhookVerifier := webhook.NewVerifier(cfg.Lark.VerifyToken, cfg.Lark.EncryptKey, logger)
	webhookHandler := webhook.NewHandler(webhookVerifier, engine, logger)

	// Background sweeper
	sweeper := worker.NewSweeper(sessions, gate,
		cfg.Workflow.SweepInterval, cfg.Workflow.SessionMaxIdle, logger)
	if err := sweeper.Start(ctx); err != nil {
		logger.Fatal("Failed to start sweeper", zap.Error(err))
	}
	defer sweeper.Stop()

	// Set Gin mode based on logger level
	if cfg.Logger.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize HTTP router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "intakebot",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	// Webhook endpoint
	router.POST(cfg.Lark.WebhookPath, webhookHandler.Handle)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
