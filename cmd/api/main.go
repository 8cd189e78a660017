package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-panelworks-backend/config"
	v1 "go-panelworks-backend/internal/delivery/http/v1"
	"go-panelworks-backend/internal/domain"
	"go-panelworks-backend/internal/repository/postgres"
	"go-panelworks-backend/internal/usecase"
	"go-panelworks-backend/pkg/database"
	"go-panelworks-backend/pkg/email"
	"go-panelworks-backend/pkg/logger"
	"go-panelworks-backend/pkg/redis"
	"go-panelworks-backend/pkg/security"
)

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Setup Logger
	logger.Init()
	logger.Log.Info("Starting panel works backend", "port", cfg.Port)

	// 3. Setup Redis (optional - rate limiting falls back to in-memory)
	if err := redis.Initialize(redis.Config{URL: cfg.UpstashRedisURL, Password: cfg.UpstashRedisPassword}); err != nil {
		logger.Log.Warn("Redis unavailable, using in-memory rate limiting", "error", err)
	}
	defer redis.Close()

	// 4. Setup Mail Relay
	mailer := email.NewSMTPService(cfg)
	if !cfg.MailConfigured() {
		logger.Log.Warn("Mail relay not fully configured - contact dispatch will be unavailable")
	}

	// 5. Setup Outbox (optional - fire-and-forget without DATABASE_URL)
	var outboxRepo domain.OutboxRepository
	if cfg.DBUrl != "" {
		dbPool, err := database.NewPostgresConnection(cfg.DBUrl)
		if err != nil {
			logger.Log.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()
		outboxRepo = postgres.NewOutboxRepository(dbPool,
			time.Duration(cfg.OutboxRetrySeconds)*time.Second)
		logger.Log.Info("Durable outbox enabled")
	}

	// 6. Setup Usecases
	contactUC := usecase.NewContactUsecase(mailer, outboxRepo, cfg)

	// 7. Outbox retry worker (only with a durable outbox)
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	if outboxRepo != nil {
		worker := usecase.NewOutboxWorker(outboxRepo, mailer, contactUC, cfg)
		go worker.Run(workerCtx)
	}

	// 8. Setup Router
	limiter := security.NewSubmissionLimiter(cfg.RateLimitPerWindow,
		time.Duration(cfg.RateLimitWindowSeconds)*time.Second)
	router := v1.NewRouter(v1.RouterDeps{
		ContactUC: contactUC,
		Limiter:   limiter,
		Config:    cfg,
	})

	// 9. Start Server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Error("Listen failed", "error", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")
	stopWorker()

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", "error", err)
	}

	logger.Log.Info("Server exiting")
}
