package bot

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"autoservice/internal/domain"
	"autoservice/internal/models"

	"github.com/rs/zerolog"
)

// Session keys used by the wizards.
const (
	keyName    = "name"
	keyLogin   = "login"
	keyPhone   = "phone"
	keyService = "service"
	keyDay     = "day"
	keyField   = "field"
)

var shortWeekdays = [...]string{"Пн", "Вт", "Ср", "Чт", "Пт", "Сб", "Вс"}

func (b *Bot) sendMessage(chatID int64, text string) {
	if _, err := b.tgService.SendMessage(chatID, text); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

func (b *Bot) sendHTML(chatID int64, text string) {
	if _, err := b.tgService.SendHTML(chatID, text); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

func (b *Bot) sendWithKeyboard(chatID int64, text string, keyboard interface{}) {
	if _, err := b.tgService.SendWithKeyboard(chatID, text, keyboard); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

// replyError logs unexpected failures and shows the user a readable message.
func (b *Bot) replyError(ctx context.Context, chatID int64, err error, msg string) {
	zerolog.Ctx(ctx).Warn().Err(err).Int64("chat_id", chatID).Msg(msg)
	b.sendMessage(chatID, b.getErrorMessage(err))
}

func (b *Bot) setStep(ctx context.Context, chatID int64, step string, data map[string]interface{}) {
	if err := b.stateService.SetStep(ctx, chatID, step, data); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Str("step", step).Msg("Failed to save session step")
	}
}

func (b *Bot) resetStep(ctx context.Context, chatID int64) {
	if err := b.stateService.ResetStep(ctx, chatID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("Failed to reset session step")
	}
}

func (b *Bot) today() time.Time {
	now := b.now().In(b.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, b.loc)
}

// normalizePhone приводит номер к виду 7XXXXXXXXXX, пустая строка означает неверный формат.
func normalizePhone(phone string) string {
	var cleaned strings.Builder
	for _, char := range phone {
		if char >= '0' && char <= '9' {
			cleaned.WriteRune(char)
		}
	}

	digits := cleaned.String()
	switch {
	case len(digits) == 11 && digits[0] == '8':
		return "7" + digits[1:]
	case len(digits) == 11 && digits[0] == '7':
		return digits
	case len(digits) == 10:
		return "7" + digits
	}
	return ""
}

func formatPhoneForDisplay(phone string) string {
	if len(phone) == 11 && phone[0] == '7' {
		return fmt.Sprintf("+7 (%s) %s-%s-%s", phone[1:4], phone[4:7], phone[7:9], phone[9:])
	}
	return phone
}

// sanitizeInput escapes user text for HTML messages and folds it onto one line.
func sanitizeInput(input string) string {
	input = strings.Join(strings.Fields(input), " ")
	return html.EscapeString(input)
}

// splitArgs splits command arguments on ';'.
func splitArgs(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ";")
	args := make([]string, 0, len(parts))
	for _, p := range parts {
		args = append(args, strings.TrimSpace(p))
	}
	for len(args) > 0 && args[len(args)-1] == "" {
		args = args[:len(args)-1]
	}
	return args
}

func (b *Bot) parseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{models.DateLayout, models.ISODateLayout} {
		if day, err := time.ParseInLocation(layout, s, b.loc); err == nil {
			return day, nil
		}
	}
	return time.Time{}, domain.NewValidationError("date", fmt.Sprintf("неверная дата %q, ожидается ДД.ММ.ГГГГ", s))
}

func (b *Bot) parseDateTime(s string) (time.Time, error) {
	s = strings.Join(strings.Fields(s), " ")
	for _, layout := range []string{models.DateTimeLayout, "2006-01-02 15:04"} {
		if ts, err := time.ParseInLocation(layout, s, b.loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, domain.NewValidationError("date", fmt.Sprintf("неверные дата и время %q, ожидается ДД.ММ.ГГГГ ЧЧ:ММ", s))
}

// parsePeriod reads "from[; to]" into an inclusive range that covers whole days.
func (b *Bot) parsePeriod(args []string) (time.Time, time.Time, error) {
	if len(args) == 0 {
		return time.Time{}, time.Time{}, domain.NewValidationError("period", "укажите период")
	}
	start, err := b.parseDay(args[0])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	last := start
	if len(args) > 1 {
		if last, err = b.parseDay(args[1]); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if last.Before(start) {
		return time.Time{}, time.Time{}, domain.NewValidationError("period", "конец периода раньше начала")
	}
	end := last.AddDate(0, 0, 1).Add(-time.Second)
	return start, end, nil
}

func dayLabel(day time.Time) string {
	return fmt.Sprintf("%s %s", shortWeekdays[models.WeekdayOf(day)], day.Format("02.01"))
}

func formatAppointment(v *models.AppointmentView, loc *time.Location) string {
	return fmt.Sprintf("📅 %s · %s\n   👷 %s, 👤 %s, 💰 %d ₽",
		v.Date.In(loc).Format(models.DateTimeLayout),
		html.EscapeString(v.ServiceName),
		html.EscapeString(v.WorkerName),
		html.EscapeString(v.ClientName),
		v.Price,
	)
}
