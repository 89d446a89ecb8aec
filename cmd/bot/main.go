package main

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"autoservice/internal/api"
	"autoservice/internal/bot"
	"autoservice/internal/config"
	"autoservice/internal/database"
	"autoservice/internal/domain"
	"autoservice/internal/events"
	"autoservice/internal/google"
	"autoservice/internal/logging"
	"autoservice/internal/metrics"
	"autoservice/internal/models"
	"autoservice/internal/repository"
	"autoservice/internal/security"
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

type services struct {
	calendar     *service.CalendarService
	slots        *service.SlotEngine
	catalog      *service.CatalogService
	workers      *service.WorkerService
	users        *service.UserService
	reservations *service.ReservationCoordinator
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	loc := cfg.Scheduling.Location()
	db, err := database.NewDB(cfg.Database.Path, loc, logging.Component(logger, "database"))
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка инициализации базы данных")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, stateRepo := initStateRepository(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}
	stateService := service.NewStateService(stateRepo, logging.Component(logger, "state"))

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
	}

	eventBus := events.NewEventBus()
	eventBus.OnError(func(ev *events.Event, err error) {
		logger.Error().Err(err).Str("event_type", ev.Type).Msg("event handler failed")
	})
	if forwarder := initAMQPForwarder(cfg, logger); forwarder != nil {
		defer forwarder.Close()
		eventBus.SubscribeAll(forwarder.Handle)
	}

	journal := initJournalWorker(ctx, cfg, db, redisClient, logger)

	svc := buildServices(cfg, db, eventBus, journal, logger)
	if err := seedCatalog(ctx, cfg.Scheduling.ServicesFile, svc.catalog, logger); err != nil {
		return err
	}

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(db, cfg.Backup, logging.Component(logger, "backup"))
		go backupService.Start(ctx)
	}

	if cfg.API.Enabled {
		shutdownAPI, err := startAPI(cfg, api.Deps{
			Slots:        svc.slots,
			Reservations: svc.reservations,
			Catalog:      svc.catalog,
			Ping:         db.PingContext,
		}, logger)
		if err != nil {
			return err
		}
		defer shutdownAPI()
	}

	botAPI, err := bot.NewBotAPI(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания BotAPI")
		return err
	}
	tgService := service.NewTelegramService(botAPI)

	subscribeAdminNotifications(eventBus, tgService, cfg.Bot.Admins, loc, logger)

	if cfg.Reminders.Enabled {
		reminders := worker.NewReminderNotifier(db, stateRepo, tgService,
			cfg.Reminders.LeadTime, cfg.Reminders.PollInterval, loc, logging.Component(logger, "reminders"))
		go reminders.Start(ctx)
	}

	telegramBot, err := bot.NewBot(cfg, bot.Deps{
		Telegram:     tgService,
		State:        stateService,
		Slots:        svc.slots,
		Reservations: svc.reservations,
		Calendar:     svc.calendar,
		Catalog:      svc.catalog,
		Workers:      svc.workers,
		Users:        svc.users,
	}, bot.NewMetrics(), logging.Component(logger, "bot"))
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания бота")
		return err
	}

	logger.Info().Str("timezone", loc.String()).Msg("Бот запущен...")
	go func() {
		<-ctx.Done()
		telegramBot.Stop()
	}()
	telegramBot.Start(ctx)

	logger.Info().Msg("Shutdown complete.")
	return nil
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
	return cfg, logging.Component(baseLogger, "bot-main"), closer, nil
}

// initStateRepository prefers redis and falls back to process memory when it is down.
func initStateRepository(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, domain.StateRepository) {
	ttl := time.Duration(models.DefaultSessionTTL) * time.Second
	fallback := repository.NewMemoryStateRepository(ttl)
	if cfg.Redis.Address == "" {
		logger.Warn().Msg("Redis address is empty, sessions are kept in memory")
		return nil, fallback
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable")
	}
	primary := repository.NewRedisStateRepository(redisClient, ttl)
	return redisClient, repository.NewFailoverStateRepository(primary, fallback, logging.Component(logger, "state-repo"))
}

func initAMQPForwarder(cfg *config.Config, logger *zerolog.Logger) *events.AMQPForwarder {
	if cfg.Events.AMQPURL == "" {
		return nil
	}
	forwarder, err := events.NewAMQPForwarder(cfg.Events.AMQPURL, cfg.Events.Exchange, cfg.Events.RoutingKey, logging.Component(logger, "amqp"))
	if err != nil {
		logger.Warn().Err(err).Msg("AMQP forwarding disabled")
		return nil
	}
	logger.Info().Str("exchange", cfg.Events.Exchange).Msg("AMQP forwarding enabled")
	return forwarder
}

// initJournalWorker returns nil when the Google journal is not configured.
func initJournalWorker(ctx context.Context, cfg *config.Config, db *database.DB, redisClient *redis.Client, logger *zerolog.Logger) domain.SyncWorker {
	if !cfg.Google.Enabled() {
		logger.Info().Msg("Google Sheets journal is not configured")
		return nil
	}

	sheets, err := google.NewJournalSheets(ctx,
		cfg.Google.CredentialsFile,
		cfg.Google.JournalSpreadsheetID,
		cfg.Google.JournalSheetName,
		cfg.Scheduling.Location(),
		logging.Component(logger, "sheets"))
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize Google Sheets journal")
		return nil
	}

	retryPolicy := worker.RetryPolicy{MaxRetries: 5, InitialDelay: 2 * time.Second, MaxDelay: time.Minute, BackoffFactor: 2}
	journalWorker := worker.NewJournalWorker(db, sheets, redisClient, retryPolicy, logging.Component(logger, "journal"))
	go journalWorker.Start(ctx)
	return journalWorker
}

func buildServices(cfg *config.Config, db *database.DB, bus *events.EventBus, journal domain.SyncWorker, logger *zerolog.Logger) *services {
	loc := cfg.Scheduling.Location()
	calendar := service.NewCalendarService(db, db, loc, logging.Component(logger, "calendar"))
	return &services{
		calendar: calendar,
		slots:    service.NewSlotEngine(db, db, loc, logging.Component(logger, "slots")),
		catalog:  service.NewCatalogService(db, logging.Component(logger, "catalog")),
		workers:  service.NewWorkerService(db, calendar, db, loc, logging.Component(logger, "workers")),
		users:    service.NewUserService(db, security.NewHasher(0), cfg.Bot.PaginationSize, logging.Component(logger, "users")),
		reservations: service.NewReservationCoordinator(service.ReservationDeps{
			Ledger:   db,
			Roster:   calendar,
			Services: db,
			Users:    db,
			Workers:  db,
			EventBus: bus,
			Journal:  journal,
		}, loc, cfg.Scheduling.BookingHorizonDays, logging.Component(logger, "reservations")),
	}
}

func seedCatalog(ctx context.Context, servicesPath string, catalog *service.CatalogService, logger *zerolog.Logger) error {
	if env := os.Getenv("SERVICES_PATH"); env != "" {
		servicesPath = env
	}
	if servicesPath == "" {
		servicesPath = "configs/services.yaml"
	}

	seed, err := config.LoadServices(servicesPath)
	if err != nil {
		logger.Error().Err(err).Str("path", servicesPath).Msg("Ошибка чтения каталога услуг")
		return err
	}
	added, err := catalog.Seed(ctx, seed)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка заполнения каталога услуг")
		return err
	}
	logger.Info().Int("added", added).Int("total", len(seed)).Msg("Service catalog seeded")
	return nil
}

// startAPI launches the enabled API servers and returns their shutdown func.
func startAPI(cfg *config.Config, deps api.Deps, logger *zerolog.Logger) (func(), error) {
	loc := cfg.Scheduling.Location()
	apiLogger := logging.Component(logger, "api")

	var httpServer *api.HTTPServer
	if cfg.API.HTTP.Enabled {
		httpServer = api.NewHTTPServer(cfg.API, deps, loc, apiLogger)
		go func() {
			if err := httpServer.Start(); err != nil {
				logger.Error().Err(err).Msg("API server error")
			}
		}()
	}

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		var err error
		grpcServer, err = api.NewGRPCServer(&cfg.API, deps, loc, apiLogger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return nil, err
		}
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if grpcServer != nil {
			grpcServer.Shutdown(ctx)
		}
		if httpServer != nil {
			_ = httpServer.Shutdown(ctx)
		}
	}, nil
}

type broadcaster interface {
	Broadcast(chatIDs []int64, text string) error
}

// subscribeAdminNotifications tells the configured admin chats about bookings and cancellations.
func subscribeAdminNotifications(
	bus *events.EventBus,
	sender broadcaster,
	admins []int64,
	loc *time.Location,
	logger *zerolog.Logger,
) {
	if len(admins) == 0 {
		return
	}

	notify := func(ev *events.Event) error {
		var payload events.AppointmentEventPayload
		if err := ev.Decode(&payload); err != nil {
			return fmt.Errorf("decode %s payload: %w", ev.Type, err)
		}

		var header string
		switch ev.Type {
		case events.EventAppointmentCreated:
			header = "🆕 Новая запись"
		case events.EventAppointmentCancelled:
			header = "🚫 Отменена запись"
		default:
			return nil
		}

		text := fmt.Sprintf("<b>%s</b> на %s\n%s → %s, %s",
			header,
			payload.Date.In(loc).Format(models.DateTimeLayout),
			html.EscapeString(payload.ClientName),
			html.EscapeString(payload.WorkerName),
			html.EscapeString(payload.ServiceName))
		if payload.ChangedBy != "" {
			text += " (" + html.EscapeString(payload.ChangedBy) + ")"
		}
		return sender.Broadcast(admins, text)
	}

	bus.SubscribeAll(notify)
	logger.Info().Int("admins", len(admins)).Msg("Admin notifications enabled")
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
	logger.Info().Int("port", port).Msg("Metrics server started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
