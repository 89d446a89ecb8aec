package bot

import (
	"context"
	"strconv"
	"strings"

	"autoservice/internal/domain"
	"autoservice/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	// Отвечаем на callback сразу, чтобы убрать "часики"
	if err := b.tgService.AnswerCallback(callback.ID, ""); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("Failed to answer callback")
	}

	chatID := callback.From.ID
	if callback.Message != nil && callback.Message.Chat != nil {
		chatID = callback.Message.Chat.ID
	}

	session, err := b.stateService.GetSession(ctx, chatID)
	if err != nil {
		b.replyError(ctx, chatID, domain.ErrStorageUnavailable, "Failed to load session")
		return
	}

	data := callback.Data
	switch {
	case data == cbMenu:
		b.resetStep(ctx, chatID)
		b.sendMainMenu(chatID, session)
	case data == cbServices:
		b.showServices(ctx, session)
	case data == cbRegister:
		b.startRegistration(ctx, session)
	case data == cbLogin:
		b.startLogin(ctx, session)
	case data == cbLogout:
		b.logout(ctx, session)

	case data == cbBook:
		if b.requireAuth(session) {
			b.startBooking(ctx, session)
		}
	case data == cbMyAppointments:
		if b.requireAuth(session) {
			b.showAppointments(ctx, session)
		}
	case data == cbProfile:
		if b.requireAuth(session) {
			b.startProfileEdit(ctx, session)
		}

	case strings.HasPrefix(data, prefixService):
		if b.requireAuth(session) {
			b.selectService(ctx, session, strings.TrimPrefix(data, prefixService))
		}
	case strings.HasPrefix(data, prefixDay):
		if !b.requireAuth(session) {
			return
		}
		day, err := b.parseDay(strings.TrimPrefix(data, prefixDay))
		if err != nil {
			return
		}
		b.showSlots(ctx, session, day)
	case strings.HasPrefix(data, prefixSlot):
		if b.requireAuth(session) {
			b.bookSlot(ctx, session, strings.TrimPrefix(data, prefixSlot))
		}
	case strings.HasPrefix(data, prefixCancel):
		if b.requireAuth(session) {
			b.cancelOwn(ctx, session, strings.TrimPrefix(data, prefixCancel))
		}
	case strings.HasPrefix(data, prefixField):
		if b.requireAuth(session) && session.Step == models.StepProfileSelectField {
			b.selectProfileField(ctx, session, strings.TrimPrefix(data, prefixField))
		}

	case data == cbWorkers:
		if b.requireAdmin(session) {
			b.runAdminCommand(ctx, session, "workers", adminCommands["workers"], "")
		}
	case data == cbAdminHelp:
		if b.requireAdmin(session) {
			b.sendMessage(chatID, adminHelp())
		}
	case strings.HasPrefix(data, prefixClients):
		if !b.requireAdmin(session) {
			return
		}
		page, _ := strconv.Atoi(strings.TrimPrefix(data, prefixClients))
		messageID := 0
		if callback.Message != nil {
			messageID = callback.Message.MessageID
		}
		b.renderClientsPage(ctx, chatID, messageID, page)

	default:
		zerolog.Ctx(ctx).Debug().Str("data", data).Msg("Unknown callback")
	}
}
