package bot

import (
	"context"
	"errors"
	"time"

	"autoservice/internal/config"
	"autoservice/internal/domain"
	"autoservice/internal/logging"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const updateTimeout = 30 * time.Second

// Deps are the services the bot talks to.
type Deps struct {
	Telegram     domain.TelegramService
	State        domain.StateManager
	Slots        domain.SlotFinder
	Reservations domain.Reservations
	Calendar     domain.Calendar
	Catalog      domain.Catalog
	Workers      domain.Workers
	Users        domain.Users
}

type Bot struct {
	tgService    domain.TelegramService
	config       *config.Config
	stateService domain.StateManager
	slots        domain.SlotFinder
	reservations domain.Reservations
	calendar     domain.Calendar
	catalog      domain.Catalog
	workers      domain.Workers
	users        domain.Users
	loc          *time.Location
	metrics      *Metrics
	logger       *zerolog.Logger
	now          func() time.Time
}

func NewBot(cfg *config.Config, deps Deps, metrics *Metrics, logger *zerolog.Logger) (*Bot, error) {
	if cfg == nil {
		return nil, errors.New("bot config is required")
	}
	if deps.Telegram == nil || deps.State == nil {
		return nil, errors.New("telegram and state services are required")
	}
	if deps.Slots == nil || deps.Reservations == nil || deps.Catalog == nil ||
		deps.Workers == nil || deps.Users == nil || deps.Calendar == nil {
		return nil, errors.New("domain services are required")
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Bot{
		tgService:    deps.Telegram,
		config:       cfg,
		stateService: deps.State,
		slots:        deps.Slots,
		reservations: deps.Reservations,
		calendar:     deps.Calendar,
		catalog:      deps.Catalog,
		workers:      deps.Workers,
		users:        deps.Users,
		loc:          cfg.Scheduling.Location(),
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
	}, nil
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.tgService.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.tgService.GetSelf().UserName).Msg("Authorized on account")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

// Stop stops receiving Telegram updates.
func (b *Bot) Stop() {
	if b == nil || b.tgService == nil {
		return
	}
	b.tgService.StopReceivingUpdates()
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	start := time.Now()
	defer func() {
		if b.metrics != nil {
			b.metrics.UpdateProcessingTime.Observe(time.Since(start).Seconds())
		}
	}()

	updateCtx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()

	updateCtx, l := logging.WithRequestID(updateCtx, b.logger)

	b.withRecovery(l, func() {
		chatID := updateChatID(update)
		if chatID == 0 {
			return
		}

		if !b.allowUpdate(updateCtx, chatID) {
			if update.Message != nil {
				b.sendMessage(chatID, "⚠️ Вы отправляете сообщения слишком часто. Пожалуйста, подождите немного.")
			}
			if update.CallbackQuery != nil {
				_ = b.tgService.AnswerCallback(update.CallbackQuery.ID, "Слишком много запросов")
			}
			return
		}

		if update.CallbackQuery != nil {
			b.handleCallbackQuery(updateCtx, update.CallbackQuery)
			return
		}

		if update.Message == nil {
			return
		}

		if b.metrics != nil {
			b.metrics.MessagesProcessed.Inc()
		}
		b.handleMessage(updateCtx, update.Message)
	})
}

func updateChatID(update tgbotapi.Update) int64 {
	switch {
	case update.Message != nil && update.Message.Chat != nil:
		return update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil:
		return update.CallbackQuery.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		return update.CallbackQuery.From.ID
	}
	return 0
}
