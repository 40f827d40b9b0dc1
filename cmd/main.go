/**
 * @description
 * Entry point for the UPBANK core service. Wires configuration, logging, the store driver,
 * the login rate limiter, event publishing, scheduled jobs and the HTTP server.
 */
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/upbank/core-service/internal/api"
	"github.com/upbank/core-service/internal/app"
	"github.com/upbank/core-service/internal/config"
	"github.com/upbank/core-service/internal/store"
	"github.com/upbank/core-service/pkg/kafka"
	"github.com/upbank/core-service/pkg/metrics"
	"github.com/upbank/core-service/pkg/rabbitmq"
)

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.TimeKey = "timestamp"
	if parsed, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(parsed)
	}
	return cfg.Build()
}

func main() {
	// Load .env file for local development. In production, env vars are set directly.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("cannot build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	for _, warning := range cfg.Warnings {
		logger.Warn("config", zap.String("warning", warning))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	repo, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer closeStore()

	collector := metrics.NewCollector()

	service := app.NewService(repo, app.Options{
		MaxLoginAttempts:    cfg.LoginMaxAttempts,
		AccountNumberPrefix: cfg.AccountNumberPrefix,
		ConceptPolicy:       app.ParseConceptPolicy(cfg.TransferConceptPolicy),
		EventExchange:       cfg.EventExchange,
	}, logger)
	service.SetMetrics(collector)

	if cfg.RedisURL != "" && cfg.LoginRateLimitPerMinute > 0 {
		redisClient, err := app.ParseRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Fatal("invalid redis configuration", zap.Error(err))
		}
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not reachable at startup; login rate limiting fails open", zap.Error(err))
		}
		service.SetLoginRateLimiter(app.NewRedisLoginLimiter(redisClient, cfg.RedisRateLimitPrefix), cfg.LoginRateLimitPerMinute)
		logger.Info("login rate limiting enabled", zap.Int("per_minute", cfg.LoginRateLimitPerMinute))
	}

	connect := publisherFactory(cfg, logger)
	if connect != nil {
		// Status events go through their own connection; the dispatcher keeps another.
		if publisher, err := connect(); err != nil {
			logger.Warn("failed to connect to event broker, using fallback publisher", zap.String("broker", cfg.EventBroker), zap.Error(err))
			service.SetEventPublisher(&rabbitmq.EventProducerFallback{Logger: logger})
		} else {
			defer publisher.Close()
			service.SetEventPublisher(publisher)
		}

		dispatcher := app.NewOutboxDispatcher(repo, connect, logger).
			WithBatch(cfg.OutboxBatchSize, time.Duration(cfg.OutboxPollIntervalMs)*time.Millisecond).
			WithMetrics(collector)
		go dispatcher.Run(ctx)
		logger.Info("outbox dispatcher started", zap.String("broker", cfg.EventBroker))
	} else {
		logger.Info("event publishing disabled")
	}

	jobs := app.NewJobs(repo, collector, time.Duration(cfg.OutboxRetentionDays)*24*time.Hour, logger)
	scheduler := app.NewScheduler(jobs, cfg.OutboxPurgeSchedule, cfg.MetricsRefreshSchedule, logger)
	scheduler.Start()
	jobs.RefreshStatusGauges()

	handler := api.NewHandler(service, logger)
	router := api.NewRouter(handler, api.RouterOptions{
		AdminAPIKey:    cfg.AdminAPIKey,
		AllowedOrigins: cfg.AllowedOrigins(),
		Metrics:        collector.Handler(),
		Logger:         logger,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	<-sigCh
	logger.Info("shutdown signal received, gracefully shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	<-scheduler.Stop().Done()

	logger.Info("server stopped")
}

// openStore returns the configured repository and a function that releases it.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Repository, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		repo := store.NewMemoryRepository(cfg.EventExchange)
		if err := store.SeedDemoData(repo, app.HashPassword); err != nil {
			return nil, nil, err
		}
		logger.Warn("using in-memory store with demo data; nothing is persisted")
		return repo, func() {}, nil
	}

	if cfg.MigrationsEnabled {
		version, err := store.RunMigrations(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("database migrations applied", zap.Uint("version", version))
	}

	pgConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to parse database URL: %w", err)
	}
	pgConfig.MaxConns = 100
	pgConfig.MinConns = 20
	pgConfig.MaxConnLifetime = 30 * time.Minute
	pgConfig.MaxConnIdleTime = 5 * time.Minute
	pgConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, pgConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	logger.Info("database connection established")
	return store.NewPostgresRepository(dbpool, cfg.EventExchange), dbpool.Close, nil
}

// publisherFactory returns nil when no broker is configured.
func publisherFactory(cfg config.Config, logger *zap.Logger) app.PublisherFactory {
	switch cfg.EventBroker {
	case config.BrokerRabbitMQ:
		logger.Info("event broker", zap.String("broker", cfg.EventBroker), zap.String("rabbitmq_url", rabbitmq.MaskURL(cfg.RabbitMQURL)))
		return func() (app.EventPublisher, error) {
			producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, logger)
			if err != nil {
				return nil, err
			}
			return producer, nil
		}
	case config.BrokerKafka:
		brokers := kafka.ParseBrokers(cfg.KafkaBrokers)
		logger.Info("event broker", zap.String("broker", cfg.EventBroker), zap.Strings("kafka_brokers", brokers))
		return func() (app.EventPublisher, error) {
			producer, err := kafka.NewEventProducer(brokers, logger)
			if err != nil {
				return nil, err
			}
			return producer, nil
		}
	default:
		return nil
	}
}
