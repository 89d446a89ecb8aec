package bot

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// maxMessageLength leaves headroom below Telegram's 4096 character limit.
const maxMessageLength = 4000

// renderClientsPage отрисовывает страницу списка клиентов; страницы считаются с 1.
func (b *Bot) renderClientsPage(ctx context.Context, chatID int64, messageID, page int) {
	if page < 1 {
		page = 1
	}
	users, pages, err := b.users.ListClients(ctx, page)
	if err != nil {
		b.replyError(ctx, chatID, err, "Failed to list clients")
		return
	}
	if pages == 0 {
		b.sendMessage(chatID, "Клиентов пока нет.")
		return
	}
	if page > pages {
		page = pages
		if users, _, err = b.users.ListClients(ctx, page); err != nil {
			b.replyError(ctx, chatID, err, "Failed to list clients")
			return
		}
	}

	pageSize := b.config.Bot.PaginationSize
	var message strings.Builder
	message.WriteString("<b>👥 Клиенты</b>\n")
	if pages > 1 {
		message.WriteString(fmt.Sprintf("Страница %d из %d\n", page, pages))
	}
	message.WriteString("\n")
	for i, u := range users {
		message.WriteString(fmt.Sprintf("%d. %s · %s\n",
			(page-1)*pageSize+i+1, html.EscapeString(u.Name), formatPhoneForDisplay(u.Phone)))
	}

	var navButtons []tgbotapi.InlineKeyboardButton
	if page > 1 {
		navButtons = append(navButtons, tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад", fmt.Sprintf("%s%d", prefixClients, page-1)))
	}
	if page < pages {
		navButtons = append(navButtons, tgbotapi.NewInlineKeyboardButtonData("Вперед ➡️", fmt.Sprintf("%s%d", prefixClients, page+1)))
	}
	rows := [][]tgbotapi.InlineKeyboardButton{}
	if len(navButtons) > 0 {
		rows = append(rows, navButtons)
	}
	rows = append(rows, backRow())
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)

	if messageID != 0 {
		if _, err := b.tgService.EditMessage(chatID, messageID, message.String(), &markup); err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Msg("Failed to edit clients page")
		}
		return
	}
	b.sendWithKeyboard(chatID, message.String(), markup)
}

// sendLongHTML joins lines into as few messages as the length limit allows.
func (b *Bot) sendLongHTML(chatID int64, lines []string) {
	var chunk strings.Builder
	for _, line := range lines {
		if chunk.Len()+len(line)+1 > maxMessageLength && chunk.Len() > 0 {
			b.sendHTML(chatID, chunk.String())
			chunk.Reset()
		}
		chunk.WriteString(line)
		chunk.WriteString("\n")
	}
	if chunk.Len() > 0 {
		b.sendHTML(chatID, chunk.String())
	}
}
