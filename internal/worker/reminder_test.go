package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"autoservice/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

type fakeFinder struct {
	views    []*models.AppointmentView
	err      error
	from, to time.Time
}

func (f *fakeFinder) FindStartingBetween(_ context.Context, start, end time.Time) ([]*models.AppointmentView, error) {
	f.from, f.to = start, end
	return f.views, f.err
}

type fakeMarker struct {
	seen map[string]bool
}

func (m *fakeMarker) MarkOnce(_ context.Context, key string, _ time.Duration) (bool, error) {
	if m.seen == nil {
		m.seen = make(map[string]bool)
	}
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func (m *fakeMarker) Unmark(_ context.Context, key string) error {
	delete(m.seen, key)
	return nil
}

type fakeSender struct {
	sent map[int64]string
	err  error
}

func (s *fakeSender) SendHTML(chatID int64, text string) (tgbotapi.Message, error) {
	if s.err != nil {
		return tgbotapi.Message{}, s.err
	}
	if s.sent == nil {
		s.sent = make(map[int64]string)
	}
	s.sent[chatID] = text
	return tgbotapi.Message{}, nil
}

func newTestNotifier(finder *fakeFinder, sender *fakeSender, now time.Time) *ReminderNotifier {
	logger := zerolog.Nop()
	loc := time.FixedZone("MSK", 3*60*60)
	n := NewReminderNotifier(finder, &fakeMarker{}, sender, 2*time.Hour, 15*time.Minute, loc, &logger)
	n.now = func() time.Time { return now }
	return n
}

func TestReminderNotifier_RunOnce(t *testing.T) {
	now := time.Date(2025, 3, 3, 7, 0, 0, 0, time.UTC)
	finder := &fakeFinder{views: []*models.AppointmentView{
		{ID: 1, ClientChatID: 100, ServiceName: "Шиномонтаж <R16>", WorkerName: "Петр", Price: 2000, Date: now.Add(2 * time.Hour)},
		{ID: 2, ClientChatID: 0, ServiceName: "Мойка", WorkerName: "Олег", Price: 500, Date: now.Add(2 * time.Hour)},
	}}
	sender := &fakeSender{}
	n := newTestNotifier(finder, sender, now)

	sent, err := n.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if sent != 1 {
		t.Fatalf("expected 1 reminder, got %d", sent)
	}
	if !finder.from.Equal(now.Add(2*time.Hour)) || !finder.to.Equal(now.Add(2*time.Hour+15*time.Minute)) {
		t.Fatalf("unexpected window [%s, %s)", finder.from, finder.to)
	}

	text := sender.sent[100]
	for _, want := range []string{"Напоминание о записи", "Шиномонтаж &lt;R16&gt;", "2000", "Петр", "03-03-2025 12:00"} {
		if !strings.Contains(text, want) {
			t.Fatalf("reminder %q does not contain %q", text, want)
		}
	}

	sent, err = n.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if sent != 0 {
		t.Fatalf("reminder must be sent once, got %d more", sent)
	}
}

func TestReminderNotifier_Errors(t *testing.T) {
	now := time.Date(2025, 3, 3, 7, 0, 0, 0, time.UTC)

	t.Run("FinderFails", func(t *testing.T) {
		n := newTestNotifier(&fakeFinder{err: errors.New("db down")}, &fakeSender{}, now)
		if _, err := n.RunOnce(context.Background()); err == nil {
			t.Fatalf("expected finder error")
		}
	})

	t.Run("SendFails", func(t *testing.T) {
		finder := &fakeFinder{views: []*models.AppointmentView{{ID: 1, ClientChatID: 100, Date: now}}}
		sender := &fakeSender{err: errors.New("blocked")}
		n := newTestNotifier(finder, sender, now)
		sent, err := n.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("send errors must not abort the run: %v", err)
		}
		if sent != 0 {
			t.Fatalf("expected nothing sent, got %d", sent)
		}

		sender.err = nil
		sent, err = n.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("retry run: %v", err)
		}
		if sent != 1 || sender.sent[100] == "" {
			t.Fatalf("failed reminder must be retried on the next poll, sent=%d", sent)
		}

		sent, _ = n.RunOnce(context.Background())
		if sent != 0 {
			t.Fatalf("delivered reminder must not repeat, got %d", sent)
		}
	})
}

func TestReminderNotifier_Defaults(t *testing.T) {
	logger := zerolog.Nop()
	n := NewReminderNotifier(&fakeFinder{}, &fakeMarker{}, &fakeSender{}, 0, 0, nil, &logger)
	if n.lead != 2*time.Hour || n.poll != 15*time.Minute {
		t.Fatalf("unexpected defaults lead=%s poll=%s", n.lead, n.poll)
	}
}
