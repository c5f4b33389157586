package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leasemarket/internal/api"
	"leasemarket/internal/config"
	"leasemarket/internal/database"
	"leasemarket/internal/database/postgres"
	"leasemarket/internal/domain"
	"leasemarket/internal/events"
	"leasemarket/internal/logging"
	"leasemarket/internal/metrics"
	"leasemarket/internal/repository"
	"leasemarket/internal/service"
	"leasemarket/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := make(map[string]api.HealthCheck)

	repo, closeRepo, err := initRepository(ctx, cfg, health, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
		health["redis"] = func(ctx context.Context) error { return repository.Ping(ctx, redisClient) }
	}

	bus := events.NewEventBus()
	if fwd := initEvents(ctx, cfg, bus, redisClient, logger); fwd != nil {
		defer fwd.Close()
	}

	svc := service.NewLeaseService(
		repo,
		initLocker(cfg, redisClient, logger),
		bus,
		cfg.Lease.MaxDailyHours,
		cfg.Lease.LockTimeout(),
		logging.Component(logger, "lease-service"),
	)

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}
	httpServer := api.NewHTTPServer(&cfg.API, svc, health, logging.Component(logger, "http"))

	startMetrics(ctx, cfg, logger)

	return startServers(ctx, httpServer, cfg, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}

	return cfg, logging.Component(baseLogger, "api-main"), closer, nil
}

// initRepository открывает хранилище и засевает каталог из конфига.
func initRepository(ctx context.Context, cfg *config.Config, health map[string]api.HealthCheck, logger *zerolog.Logger) (domain.Repository, func(), error) {
	switch cfg.Database.Driver {
	case "postgres":
		repo, err := postgres.New(ctx, cfg.Database.DSN, logging.Component(logger, "postgres"))
		if err != nil {
			logger.Error().Err(err).Msg("init postgres")
			return nil, nil, err
		}
		if err := repo.SeedCatalog(ctx, cfg.Catalog.Requesters, cfg.Catalog.Resources); err != nil {
			_ = repo.Close()
			return nil, nil, fmt.Errorf("seed catalog: %w", err)
		}
		health["database"] = repo.Ping
		return repo, func() { _ = repo.Close() }, nil
	case "memory":
		repo := repository.NewMemoryRepository()
		for _, r := range cfg.Catalog.Requesters {
			repo.PutRequester(r)
		}
		for _, r := range cfg.Catalog.Resources {
			repo.PutResource(r)
		}
		logger.Warn().Msg("using in-memory storage, contracts are lost on restart")
		return repo, func() {}, nil
	}

	// sqlite
	db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "database"))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, nil, err
	}
	if err := db.SeedCatalog(ctx, cfg.Catalog.Requesters, cfg.Catalog.Resources); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("seed catalog: %w", err)
	}
	health["database"] = db.Ping

	if cfg.Backup.Enabled {
		backup := database.NewBackupService(db, cfg.Backup, logging.Component(logger, "backup"))
		go backup.Start(ctx)
	}

	return db, func() { _ = db.Close() }, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initLocker предпочитает Redis, локальные блокировки остаются запасным вариантом.
func initLocker(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.ResourceLocker {
	local := repository.NewMemoryResourceLocker()
	if redisClient == nil {
		return local
	}
	return repository.NewFailoverResourceLocker(
		repository.NewRedisResourceLocker(redisClient, cfg.Lease.LockPrefix),
		local,
		logging.Component(logger, "locker"),
	)
}

func initEvents(ctx context.Context, cfg *config.Config, bus *events.EventBus, redisClient *redis.Client, logger *zerolog.Logger) *events.KafkaForwarder {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil
	}

	fwd := events.NewKafkaForwarder(cfg.Kafka.Brokers, cfg.Kafka.Topic, logging.Component(logger, "kafka"))
	w := worker.NewEventWorker(fwd, redisClient, worker.RetryPolicy{}, logging.Component(logger, "event-worker"))
	w.Attach(bus, events.EventContractCreated, events.EventLeaseRejected)
	go w.Start(ctx)

	logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka forwarding enabled")
	return fwd
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
