package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"autoservice/internal/domain"
	"autoservice/internal/models"

	"github.com/rs/zerolog"
)

func (b *Bot) startBooking(ctx context.Context, session *models.Session) {
	services, err := b.catalog.List(ctx)
	if err != nil {
		b.replyError(ctx, session.ChatID, err, "Failed to list services")
		return
	}
	if len(services) == 0 {
		b.sendMessage(session.ChatID, "Список услуг пока пуст.")
		return
	}

	b.setStep(ctx, session.ChatID, models.StepBookSelectService, nil)
	b.sendWithKeyboard(session.ChatID, "Выберите услугу:", servicesKeyboard(services))
}

func (b *Bot) selectService(ctx context.Context, session *models.Session, rawID string) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return
	}
	services, err := b.catalog.List(ctx)
	if err != nil {
		b.replyError(ctx, session.ChatID, err, "Failed to list services")
		return
	}

	var chosen *models.Service
	for _, svc := range services {
		if svc.ID == id {
			chosen = svc
			break
		}
	}
	if chosen == nil {
		b.sendMessage(session.ChatID, b.getErrorMessage(domain.UnknownService(rawID)))
		return
	}

	b.setStep(ctx, session.ChatID, models.StepBookSelectDate, map[string]interface{}{keyService: chosen.Name})
	b.sendWithKeyboard(session.ChatID,
		fmt.Sprintf("Услуга: <b>%s</b>\nВыберите день или введите дату в формате ДД.ММ.ГГГГ:", html.EscapeString(chosen.Name)),
		daysKeyboard(b.today(), b.daysShown()))
}

func (b *Bot) daysShown() int {
	horizon := b.config.Scheduling.BookingHorizonDays
	if horizon <= 0 || horizon > bookingDaysShown {
		return bookingDaysShown
	}
	return horizon
}

func (b *Bot) showSlots(ctx context.Context, session *models.Session, day time.Time) {
	if session.GetString(keyService) == "" {
		b.startBooking(ctx, session)
		return
	}

	slots, err := b.slots.ComputeFreeSlots(ctx, day)
	if err != nil {
		b.replyError(ctx, session.ChatID, err, "Failed to compute free slots")
		return
	}

	now := b.now()
	var upcoming []models.Slot
	for _, slot := range slots {
		if slot.Start.After(now) {
			upcoming = append(upcoming, slot)
		}
	}

	if len(upcoming) == 0 {
		b.sendWithKeyboard(session.ChatID,
			fmt.Sprintf("На %s свободного времени нет. Выберите другой день:", day.Format(models.DateLayout)),
			daysKeyboard(b.today(), b.daysShown()))
		return
	}

	b.setStep(ctx, session.ChatID, models.StepBookSelectSlot, map[string]interface{}{keyDay: day.Format(models.ISODateLayout)})
	b.sendWithKeyboard(session.ChatID,
		fmt.Sprintf("Свободное время на %s:", day.Format(models.DateLayout)),
		slotsKeyboard(upcoming))
}

func (b *Bot) bookSlot(ctx context.Context, session *models.Session, rawHour string) {
	serviceName := session.GetString(keyService)
	day, err := b.parseDay(session.GetString(keyDay))
	if serviceName == "" || err != nil {
		b.startBooking(ctx, session)
		return
	}
	hour, err := models.ParseClock(rawHour)
	if err != nil {
		return
	}

	res, err := b.reservations.Reserve(ctx, day, hour, session.UserID, serviceName)
	if err != nil {
		b.replyError(ctx, session.ChatID, err, "Reservation failed")
		if errors.Is(err, domain.ErrNoAvailableWorker) || errors.Is(err, domain.ErrPastAppointment) {
			b.showSlots(ctx, session, day)
		}
		return
	}

	b.metrics.booked(res.ServiceName)
	b.resetStep(ctx, session.ChatID)
	b.sendHTML(session.ChatID, fmt.Sprintf("✅ %s\n\nУслуга: %s\nМастер: %s\nСтоимость: %d ₽",
		res.Confirmation(),
		html.EscapeString(res.ServiceName),
		html.EscapeString(res.WorkerName),
		res.Price,
	))
	b.sendMainMenu(session.ChatID, session)
}

func (b *Bot) showAppointments(ctx context.Context, session *models.Session) {
	views, err := b.reservations.ListUpcoming(ctx, session.UserID)
	if err != nil {
		b.replyError(ctx, session.ChatID, err, "Failed to list appointments")
		return
	}
	if len(views) == 0 {
		b.sendWithKeyboard(session.ChatID, "У вас нет предстоящих записей.", clientKeyboard(session.IsAdmin()))
		return
	}

	var sb strings.Builder
	sb.WriteString("<b>📋 Ваши записи</b>\n\n")
	for _, v := range views {
		sb.WriteString(formatAppointment(v, b.loc))
		sb.WriteString("\n")
	}
	sb.WriteString("\nНажмите на запись, чтобы отменить её.")
	b.sendWithKeyboard(session.ChatID, sb.String(), appointmentsKeyboard(views, b.loc))
}

func (b *Bot) cancelOwn(ctx context.Context, session *models.Session, rawUnix string) {
	unix, err := strconv.ParseInt(rawUnix, 10, 64)
	if err != nil {
		return
	}
	ts := time.Unix(unix, 0).In(b.loc)

	if err := b.reservations.CancelOwn(ctx, session.UserID, ts); err != nil {
		b.replyError(ctx, session.ChatID, err, "Cancellation failed")
		return
	}
	zerolog.Ctx(ctx).Info().Int64("user_id", session.UserID).Time("date", ts).Msg("Appointment cancelled by client")
	b.sendMessage(session.ChatID, fmt.Sprintf("Запись на %s отменена.", ts.Format(models.DateTimeLayout)))
	b.showAppointments(ctx, session)
}

func (b *Bot) startProfileEdit(ctx context.Context, session *models.Session) {
	b.setStep(ctx, session.ChatID, models.StepProfileSelectField, nil)
	b.sendWithKeyboard(session.ChatID, "Что вы хотите изменить?", profileKeyboard())
}

func (b *Bot) selectProfileField(ctx context.Context, session *models.Session, key string) {
	field, err := models.ParseProfileField(key)
	if err != nil {
		return
	}
	b.setStep(ctx, session.ChatID, models.StepProfileEnterValue, map[string]interface{}{keyField: field.Key()})
	b.sendMessage(session.ChatID, fmt.Sprintf("Введите новое значение поля «%s»:", field.Title()))
}

func (b *Bot) profileValue(ctx context.Context, session *models.Session, value string) {
	field, err := models.ParseProfileField(session.GetString(keyField))
	if err != nil {
		b.resetStep(ctx, session.ChatID)
		b.startProfileEdit(ctx, session)
		return
	}
	if field == models.ProfilePhone {
		if phone := normalizePhone(value); phone != "" {
			value = phone
		}
	}

	if err := b.users.ChangeProfile(ctx, session.UserID, field, value); err != nil {
		b.replyError(ctx, session.ChatID, err, "Profile update failed")
		return
	}
	b.resetStep(ctx, session.ChatID)
	b.sendMessage(session.ChatID, fmt.Sprintf("✅ Поле «%s» обновлено.", field.Title()))
	b.sendMainMenu(session.ChatID, session)
}
