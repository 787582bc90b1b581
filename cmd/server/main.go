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

	"github.com/ikkim/bookstore-backend/config"
	"github.com/ikkim/bookstore-backend/internal/app/controller"
	"github.com/ikkim/bookstore-backend/internal/app/repository"
	"github.com/ikkim/bookstore-backend/internal/app/service"
	"github.com/ikkim/bookstore-backend/internal/db"
	"github.com/ikkim/bookstore-backend/internal/events"
	"github.com/ikkim/bookstore-backend/internal/lock"
	"github.com/ikkim/bookstore-backend/internal/middleware"
	"github.com/ikkim/bookstore-backend/internal/router"
	"github.com/ikkim/bookstore-backend/internal/scheduler"
	"github.com/ikkim/bookstore-backend/internal/storage"
	"github.com/ikkim/bookstore-backend/internal/websocket"
	"github.com/ikkim/bookstore-backend/pkg/kafka"
	"github.com/ikkim/bookstore-backend/pkg/logger"
	"github.com/ikkim/bookstore-backend/pkg/metrics"
	redisstore "github.com/ikkim/bookstore-backend/pkg/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	logLevel := cfg.Server.LogLevel
	if logLevel == "" && cfg.Server.Environment == "development" {
		logLevel = "debug"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      cfg.Server.LogFormat,
		EnableColor: cfg.Server.LogFormat == "console",
	})

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", err)
	}

	logger.Info("Starting bookstore backend", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   logLevel,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	gdb, err := db.Initialize(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(gdb); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	if err := db.Migrate(gdb); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	serverMetrics := metrics.NewServerMetrics()

	// Redis backs the checkout lock, the stats cache and token revocation.
	// Without it the process falls back to an in-memory lock and no cache.
	var (
		locker    lock.Locker = lock.NewLocalLocker()
		cache     service.StatsCache
		blacklist service.TokenBlacklist
		revoked   middleware.TokenChecker
	)
	if cfg.Redis.Enabled() {
		client, err := redisstore.NewClient(&cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", err)
		}
		defer client.Close()

		store := redisstore.NewStore(client)
		locker = lock.NewRedisLocker(client)
		cache = store
		blacklist = store
		revoked = store
	} else {
		logger.Warn("REDIS_ADDR not set; using in-process checkout lock, stats cache and token revocation disabled")
	}

	var archive service.ArchiveStore
	if cfg.S3.Enabled() {
		s3Storage, err := storage.NewS3Storage(ctx, cfg.S3)
		if err != nil {
			logger.Fatal("Failed to initialize S3 storage", err)
		}
		archive = s3Storage
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(gdb)
	cartRepo := repository.NewCartRepository(gdb)
	orderRepo := repository.NewOrderRepository(gdb)
	outboxRepo := repository.NewOutboxRepository(gdb)
	reviewRepo := repository.NewReviewRepository(gdb)
	messageRepo := repository.NewMessageRepository(gdb)

	// Initialize services
	authService := service.NewAuthService(userRepo, cfg.JWT, cfg.Admin, blacklist)
	if err := authService.EnsureAdmin(ctx); err != nil {
		logger.Fatal("Failed to provision admin account", err)
	}
	cartService := service.NewCartService(cartRepo)
	orderService := service.NewOrderService(gdb, orderRepo, cartRepo, outboxRepo, locker, cfg.Checkout, serverMetrics)
	reviewService := service.NewReviewService(reviewRepo, orderRepo)
	messageService := service.NewMessageService(messageRepo)
	adminService := service.NewAdminService(userRepo, orderRepo, reviewRepo, messageRepo, cache, archive)

	hub := websocket.NewHub(messageService)
	go hub.Run(ctx)

	// Background jobs
	var relayJob func(context.Context) error
	kafkaClient := kafka.NewClient(cfg.Kafka.Brokers)
	if kafkaClient.Enabled() {
		writer, err := kafkaClient.NewWriter(cfg.Kafka.TopicPrefix + events.TopicOrderEvents)
		if err != nil {
			logger.Fatal("Failed to create Kafka writer", err)
		}
		publisher := kafka.NewPublisher(writer)
		defer publisher.Close()

		relay := events.NewRelay(outboxRepo, publisher, cfg.Scheduler.OutboxBatchSize, serverMetrics)
		relayJob = func(ctx context.Context) error {
			_, err := relay.RelayPending(ctx)
			return err
		}
	} else {
		logger.Warn("KAFKA_BROKERS not set; order events stay in the outbox")
	}

	jobs := scheduler.New()
	scheduler.Register(jobs, cfg.Scheduler, relayJob, func(ctx context.Context) error {
		_, err := adminService.RefreshStats(ctx)
		return err
	})
	if err := jobs.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", err)
	}
	defer jobs.Stop()

	// Controllers and routes
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret, revoked)
	r := router.NewRouter(
		router.Controllers{
			Auth:    controller.NewAuthController(authService),
			Cart:    controller.NewCartController(cartService),
			Order:   controller.NewOrderController(orderService, cfg.Checkout.TxTimeout),
			Review:  controller.NewReviewController(reviewService),
			Message: controller.NewMessageController(messageService, hub, websocket.NewUpgrader(cfg.CORS.AllowedOrigins)),
			Admin:   controller.NewAdminController(adminService, orderService, reviewService, messageService, hub, cfg.Checkout.TxTimeout),
		},
		authMiddleware,
		serverMetrics,
		gdb,
		cfg,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown did not complete", err)
	}
	logger.Info("Server stopped successfully")
}
