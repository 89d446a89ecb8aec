package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"autoservice/internal/api"
	"autoservice/internal/config"
	"autoservice/internal/database"
	"autoservice/internal/domain"
	"autoservice/internal/events"
	"autoservice/internal/google"
	"autoservice/internal/logging"
	"autoservice/internal/metrics"
	"autoservice/internal/repository"
	"autoservice/internal/service"
	"autoservice/internal/worker"

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

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	loc := cfg.Scheduling.Location()
	db, err := database.NewDB(cfg.Database.Path, loc, logging.Component(logger, "database"))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	eventBus := events.NewEventBus()
	if cfg.Events.AMQPURL != "" {
		forwarder, err := events.NewAMQPForwarder(cfg.Events.AMQPURL, cfg.Events.Exchange, cfg.Events.RoutingKey, logging.Component(logger, "amqp"))
		if err != nil {
			logger.Warn().Err(err).Msg("amqp forwarding disabled")
		} else {
			defer forwarder.Close()
			eventBus.SubscribeAll(forwarder.Handle)
		}
	}

	var journal domain.SyncWorker
	if w := initJournal(ctx, cfg, db, redisClient, logger); w != nil {
		journal = w
	}

	calendar := service.NewCalendarService(db, db, loc, logging.Component(logger, "calendar"))
	catalog := service.NewCatalogService(db, logging.Component(logger, "catalog"))
	deps := api.Deps{
		Slots: service.NewSlotEngine(db, db, loc, logging.Component(logger, "slots")),
		Reservations: service.NewReservationCoordinator(service.ReservationDeps{
			Ledger:   db,
			Roster:   calendar,
			Services: db,
			Users:    db,
			Workers:  db,
			EventBus: eventBus,
			Journal:  journal,
		}, loc, cfg.Scheduling.BookingHorizonDays, logging.Component(logger, "reservations")),
		Catalog: catalog,
		Ping:    db.PingContext,
	}

	grpcServer, err := api.NewGRPCServer(&cfg.API, deps, loc, logger)
	if err != nil {
		logger.Error().Err(err).Msg("create grpc server")
		return err
	}

	httpServer := api.NewHTTPServer(cfg.API, deps, loc, logger)

	startMetrics(ctx, cfg, logger)

	return startServers(ctx, grpcServer, httpServer, cfg, logger)
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

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = repository.Close(redisClient)
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initJournal(ctx context.Context, cfg *config.Config, db *database.DB, redisClient *redis.Client, logger *zerolog.Logger) *worker.JournalWorker {
	if !cfg.Google.Enabled() {
		return nil
	}

	sheets, err := google.NewJournalSheets(ctx,
		cfg.Google.CredentialsFile,
		cfg.Google.JournalSpreadsheetID,
		cfg.Google.JournalSheetName,
		cfg.Scheduling.Location(),
		logging.Component(logger, "sheets"))
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without journal")
		return nil
	}

	retryPolicy := worker.RetryPolicy{MaxRetries: 5, InitialDelay: 2 * time.Second, MaxDelay: time.Minute, BackoffFactor: 2}
	journalWorker := worker.NewJournalWorker(db, sheets, redisClient, retryPolicy, logging.Component(logger, "journal"))
	go journalWorker.Start(ctx)

	logger.Info().Msg("google sheets journal connected")
	return journalWorker
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

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	go func() {
		if err := grpcServer.Serve(); err != nil {
			logger.Error().Err(err).Msg("grpc server stopped")
		}
	}()

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Str("grpc_addr", grpcServer.Addr()).Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcServer.Shutdown(shutdownCtx)
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
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
