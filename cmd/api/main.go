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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/medibook-api/internal/cache"
	"github.com/jwalitptl/medibook-api/internal/config"
	"github.com/jwalitptl/medibook-api/internal/email"
	adminHandler "github.com/jwalitptl/medibook-api/internal/handler/admin"
	authHandler "github.com/jwalitptl/medibook-api/internal/handler/auth"
	"github.com/jwalitptl/medibook-api/internal/handler/health"
	notificationHandler "github.com/jwalitptl/medibook-api/internal/handler/notification"
	patientHandler "github.com/jwalitptl/medibook-api/internal/handler/patient"
	"github.com/jwalitptl/medibook-api/internal/lock"
	"github.com/jwalitptl/medibook-api/internal/middleware"
	"github.com/jwalitptl/medibook-api/internal/repository/postgres"
	"github.com/jwalitptl/medibook-api/internal/router"
	adminService "github.com/jwalitptl/medibook-api/internal/service/admin"
	authService "github.com/jwalitptl/medibook-api/internal/service/auth"
	notificationService "github.com/jwalitptl/medibook-api/internal/service/notification"
	patientService "github.com/jwalitptl/medibook-api/internal/service/patient"
	"github.com/jwalitptl/medibook-api/pkg/auth"
	"github.com/jwalitptl/medibook-api/pkg/logger"
	"github.com/jwalitptl/medibook-api/pkg/messaging"
	"github.com/jwalitptl/medibook-api/pkg/messaging/redis"
	"github.com/jwalitptl/medibook-api/pkg/metrics"
	"github.com/jwalitptl/medibook-api/pkg/validator"
	"github.com/jwalitptl/medibook-api/pkg/worker"
)

func main() {
	// Load configuration
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

	// Initialize database
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Initialize Redis
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

	appMetrics := metrics.NewMetrics("medibook", "api")

	// Initialize repositories
	patientRepo := postgres.NewPatientRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	// Initialize services
	v := validator.New()
	listingCache := cache.NewAppointmentCache(cfg.Cache.TTL, cfg.Cache.CleanupInterval,
		cache.WithGenerations(cache.NewRedisGenerations(rdb, cfg.Cache.GenerationKey)))
	jwtSvc := auth.NewJWTService(cfg.Secrets.JWTSecret, cfg.JWT.Issuer, cfg.JWT.TTL())

	sender, err := email.NewSender(ctx, cfg.Email, cfg.Secrets, appLogger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure email provider")
	}
	loc, _ := time.LoadLocation(cfg.Email.Timezone)
	notifier := notificationService.NewService(sender, appLogger,
		notificationService.WithLocation(loc),
		notificationService.WithMetrics(appMetrics))

	patientSvc := patientService.NewService(
		patientRepo,
		lock.NewRedisLocker(rdb, "intake", cfg.Lock.IntakeTTL),
		v,
		patientService.WithCache(listingCache),
		patientService.WithMetrics(appMetrics),
		patientService.WithLogger(appLogger),
	)
	adminSvc := adminService.NewService(
		patientRepo,
		v,
		adminService.WithCache(listingCache),
		adminService.WithMetrics(appMetrics),
		adminService.WithLogger(appLogger),
	)
	authSvc, err := authService.NewService(cfg.Secrets.AdminPasskey, jwtSvc, authService.WithLogger(appLogger))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize admin gate")
	}

	// Setup router
	r := router.NewRouter(
		middleware.NewAuthMiddleware(jwtSvc),
		router.Handlers{
			Health: health.NewHandler(map[string]health.Pinger{
				"database": patientRepo,
				"redis":    health.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
			}, prometheus.DefaultGatherer),
			Patient:      patientHandler.NewHandler(patientSvc),
			Auth:         authHandler.NewHandler(authSvc),
			Admin:        adminHandler.NewHandler(adminSvc),
			Notification: notificationHandler.NewHandler(notifier, v),
		},
		appMetrics,
		router.RouterConfig{
			Mode:      cfg.Server.Mode,
			RateLimit: rate.Limit(cfg.Limits.RequestsPerSecond),
			RateBurst: cfg.Limits.Burst,
			CORSConfig: func() middleware.CORSConfig {
				c := middleware.DefaultCORSConfig()
				c.AllowOrigins = cfg.Server.AllowedOrigins
				return c
			}(),
			RequestTimeout: cfg.Server.WriteTimeout,
			MaxBodyBytes:   cfg.Limits.MaxBodyBytes,
		},
	)
	r.Setup()

	// Deliver outbox events in-process unless a separate worker does it
	if cfg.Outbox.InProcess {
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
			appMetrics,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create outbox processor")
		}
		go processor.Start(ctx)
	}

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout + time.Second,
	}

	// Start server
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("failed to start server")
			stop()
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server exited properly")
}
