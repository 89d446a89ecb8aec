package worker

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"autoservice/internal/metrics"
	"autoservice/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// UpcomingFinder lists appointments that start inside [start, end).
type UpcomingFinder interface {
	FindStartingBetween(ctx context.Context, start, end time.Time) ([]*models.AppointmentView, error)
}

// OnceMarker records keys so the same reminder is not sent twice.
type OnceMarker interface {
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unmark(ctx context.Context, key string) error
}

type HTMLSender interface {
	SendHTML(chatID int64, text string) (tgbotapi.Message, error)
}

// ReminderNotifier polls the ledger and reminds clients ahead of their appointments.
type ReminderNotifier struct {
	finder UpcomingFinder
	marker OnceMarker
	sender HTMLSender
	lead   time.Duration
	poll   time.Duration
	loc    *time.Location
	now    func() time.Time
	logger *zerolog.Logger
}

func NewReminderNotifier(finder UpcomingFinder, marker OnceMarker, sender HTMLSender, lead, poll time.Duration, loc *time.Location, logger *zerolog.Logger) *ReminderNotifier {
	if lead <= 0 {
		lead = models.DefaultReminderLeadMinutes * time.Minute
	}
	if poll <= 0 {
		poll = models.DefaultReminderPollMinutes * time.Minute
	}
	if loc == nil {
		loc = time.Local
	}
	return &ReminderNotifier{
		finder: finder,
		marker: marker,
		sender: sender,
		lead:   lead,
		poll:   poll,
		loc:    loc,
		now:    time.Now,
		logger: logger,
	}
}

func (n *ReminderNotifier) Start(ctx context.Context) {
	n.logger.Info().Dur("lead", n.lead).Dur("poll", n.poll).Msg("Reminder notifier started")
	ticker := time.NewTicker(n.poll)
	defer ticker.Stop()

	for {
		if _, err := n.RunOnce(ctx); err != nil {
			n.logger.Error().Err(err).Msg("reminder iteration failed")
		}
		select {
		case <-ctx.Done():
			n.logger.Info().Msg("Reminder notifier stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce reminds about appointments starting in [now+lead, now+lead+poll) and returns how many were sent.
func (n *ReminderNotifier) RunOnce(ctx context.Context) (int, error) {
	from := n.now().Add(n.lead)
	to := from.Add(n.poll)

	views, err := n.finder.FindStartingBetween(ctx, from, to)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, v := range views {
		if v.ClientChatID == 0 {
			metrics.IncReminder("no_chat")
			continue
		}

		key := fmt.Sprintf("reminder:%d", v.ID)
		first, err := n.marker.MarkOnce(ctx, key, n.lead+2*n.poll)
		if err != nil {
			n.logger.Error().Err(err).Int64("appointment_id", v.ID).Msg("failed to mark reminder")
			continue
		}
		if !first {
			continue
		}

		if _, err := n.sender.SendHTML(v.ClientChatID, n.format(v)); err != nil {
			metrics.IncReminder("failed")
			n.logger.Error().Err(err).Int64("appointment_id", v.ID).Int64("chat_id", v.ClientChatID).Msg("failed to send reminder")
			// released so the next poll retries while the appointment is still in the window
			if uErr := n.marker.Unmark(ctx, key); uErr != nil {
				n.logger.Error().Err(uErr).Int64("appointment_id", v.ID).Msg("failed to release reminder mark")
			}
			continue
		}
		metrics.IncReminder("sent")
		sent++
	}

	if sent > 0 {
		n.logger.Info().Int("sent", sent).Time("from", from).Time("to", to).Msg("Reminders sent")
	}
	return sent, nil
}

func (n *ReminderNotifier) format(v *models.AppointmentView) string {
	var b strings.Builder
	b.WriteString("<b>Напоминание о записи</b>\n")
	fmt.Fprintf(&b, "<b>Название услуги:</b> %s\n", html.EscapeString(v.ServiceName))
	fmt.Fprintf(&b, "<b>Цена:</b> %d\n", v.Price)
	fmt.Fprintf(&b, "<b>Работник:</b> %s\n", html.EscapeString(v.WorkerName))
	fmt.Fprintf(&b, "<b>Дата:</b> %s\n", v.Date.In(n.loc).Format("02-01-2006 15:04"))
	return b.String()
}
