package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/medibook-api/internal/config"
	"github.com/jwalitptl/medibook-api/internal/email"
	"github.com/jwalitptl/medibook-api/internal/handler/health"
	"github.com/jwalitptl/medibook-api/internal/middleware"
	"github.com/jwalitptl/medibook-api/internal/repository/postgres"
	"github.com/jwalitptl/medibook-api/internal/service/notification"
	"github.com/jwalitptl/medibook-api/pkg/logger"
	"github.com/jwalitptl/medibook-api/pkg/messaging"
	"github.com/jwalitptl/medibook-api/pkg/messaging/redis"
	"github.com/jwalitptl/medibook-api/pkg/metrics"
	"github.com/jwalitptl/medibook-api/pkg/worker"
)

const healthAddr = ":8081"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	appLogger := logger.NewLogger(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	log.Logger = appLogger.ZL

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	rdb, err := redis.NewClient(ctx, redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	broker := redis.NewRedisBroker(rdb, log.Logger)
	defer broker.Close()

	workerMetrics := metrics.NewMetrics("medibook", "worker")
	outboxRepo := postgres.NewOutboxRepository(db)

	sender, err := email.NewSender(ctx, cfg.Email, cfg.Secrets, appLogger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure email provider")
	}
	loc, _ := time.LoadLocation(cfg.Email.Timezone)
	notifier := notification.NewService(sender, appLogger,
		notification.WithLocation(loc),
		notification.WithMetrics(workerMetrics))

	processor, err := worker.NewOutboxProcessor(
		outboxRepo,
		messaging.NewBrokerAdapter(broker, cfg.Redis.Channel),
		notifier,
		worker.OutboxProcessorConfig{
			BatchSize:    cfg.Outbox.BatchSize,
			PollInterval: cfg.Outbox.PollInterval,
			MaxAttempts:  cfg.Outbox.MaxAttempts,
			RetryDelay:   cfg.Outbox.RetryDelay,
			Lease:        cfg.Outbox.Lease,
		},
		appLogger,
		workerMetrics,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create outbox processor")
	}

	retention := worker.NewRetentionWorker(outboxRepo, cfg.Outbox.Retention, appLogger)
	scheduler, err := retention.Schedule(ctx, cfg.Outbox.CleanupSchedule)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to schedule outbox cleanup")
	}
	defer scheduler.Stop()

	// Health and metrics endpoints
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(middleware.Recovery())
	health.NewHandler(map[string]health.Pinger{
		"database": health.PingFunc(db.PingContext),
		"redis":    health.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
	}, prometheus.DefaultGatherer).RegisterRoutes(&engine.RouterGroup)

	healthServer := &http.Server{
		Addr:              healthAddr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server failed")
		}
	}()

	log.Info().Str("health_addr", healthAddr).Msg("starting outbox worker")
	processor.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}
	log.Info().Msg("worker stopped")
}
