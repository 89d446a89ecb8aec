package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"autoservice/internal/config"
	"autoservice/internal/domain"
	"autoservice/internal/models"
	"autoservice/internal/repository"
	"autoservice/internal/security"
	"autoservice/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var (
	testLoc = time.FixedZone("MSK", 3*60*60)
	// Monday
	testNow = time.Date(2025, 3, 3, 10, 30, 0, 0, testLoc)
)

type sentMessage struct {
	chatID    int64
	messageID int
	text      string
	keyboard  interface{}
	document  string
}

type fakeTelegram struct {
	domain.TelegramService

	mu       sync.Mutex
	updates  chan tgbotapi.Update
	sent     []sentMessage
	edited   []sentMessage
	answered []string
	stopped  bool
}

func newFakeTelegram() *fakeTelegram {
	return &fakeTelegram{updates: make(chan tgbotapi.Update, 8)}
}

func (f *fakeTelegram) record(m sentMessage) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeTelegram) SendMessage(chatID int64, text string) (tgbotapi.Message, error) {
	return f.record(sentMessage{chatID: chatID, text: text})
}

func (f *fakeTelegram) SendHTML(chatID int64, text string) (tgbotapi.Message, error) {
	return f.record(sentMessage{chatID: chatID, text: text})
}

func (f *fakeTelegram) SendWithKeyboard(chatID int64, text string, keyboard interface{}) (tgbotapi.Message, error) {
	return f.record(sentMessage{chatID: chatID, text: text, keyboard: keyboard})
}

func (f *fakeTelegram) SendDocument(chatID int64, path, caption string) (tgbotapi.Message, error) {
	return f.record(sentMessage{chatID: chatID, text: caption, document: path})
}

func (f *fakeTelegram) EditMessage(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := sentMessage{chatID: chatID, messageID: messageID, text: text}
	if keyboard != nil {
		m.keyboard = *keyboard
	}
	f.edited = append(f.edited, m)
	return tgbotapi.Message{MessageID: messageID}, nil
}

func (f *fakeTelegram) AnswerCallback(callbackID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, callbackID)
	return nil
}

func (f *fakeTelegram) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeTelegram) GetSelf() tgbotapi.User {
	return tgbotapi.User{UserName: "autoservice_test_bot"}
}

func (f *fakeTelegram) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeTelegram) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func (f *fakeTelegram) last() sentMessage {
	msgs := f.messages()
	if len(msgs) == 0 {
		return sentMessage{}
	}
	return msgs[len(msgs)-1]
}

// texts joins every message sent so far.
func (f *fakeTelegram) texts() string {
	var parts []string
	for _, m := range f.messages() {
		parts = append(parts, m.text)
	}
	return strings.Join(parts, "\n")
}

func (f *fakeTelegram) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
	f.edited = nil
}

type fakeSlots struct {
	slots   []models.Slot
	err     error
	gotDate time.Time
}

func (f *fakeSlots) ComputeFreeSlots(_ context.Context, date time.Time) ([]models.Slot, error) {
	f.gotDate = date
	return f.slots, f.err
}

type reserveCall struct {
	date     time.Time
	hour     models.Clock
	clientID int64
	service  string
}

type adminReserveCall struct {
	client, worker, service string
	ts                      time.Time
}

type cancelCall struct {
	party models.Participant
	name  string
	ts    time.Time
}

type fakeReservations struct {
	reservation *models.Reservation
	err         error
	upcoming    []*models.AppointmentView
	rangeViews  []*models.AppointmentView
	stats       []*models.WorkerStatistics

	reserves      []reserveCall
	adminReserves []adminReserveCall
	cancelsOwn    []time.Time
	cancels       []cancelCall
	rangeStart    time.Time
	rangeEnd      time.Time
}

func (f *fakeReservations) Reserve(_ context.Context, date time.Time, hour models.Clock, clientID int64, serviceName string) (*models.Reservation, error) {
	f.reserves = append(f.reserves, reserveCall{date: date, hour: hour, clientID: clientID, service: serviceName})
	return f.reservation, f.err
}

func (f *fakeReservations) ReserveForAdmin(_ context.Context, clientName, workerName, serviceName string, ts time.Time) (*models.Reservation, error) {
	f.adminReserves = append(f.adminReserves, adminReserveCall{client: clientName, worker: workerName, service: serviceName, ts: ts})
	return f.reservation, f.err
}

func (f *fakeReservations) CancelOwn(_ context.Context, _ int64, ts time.Time) error {
	f.cancelsOwn = append(f.cancelsOwn, ts)
	return f.err
}

func (f *fakeReservations) Cancel(_ context.Context, party models.Participant, name string, ts time.Time) error {
	f.cancels = append(f.cancels, cancelCall{party: party, name: name, ts: ts})
	return f.err
}

func (f *fakeReservations) ListUpcoming(context.Context, int64) ([]*models.AppointmentView, error) {
	return f.upcoming, nil
}

func (f *fakeReservations) ListRange(_ context.Context, start, end time.Time) ([]*models.AppointmentView, error) {
	f.rangeStart, f.rangeEnd = start, end
	return f.rangeViews, nil
}

func (f *fakeReservations) AggregateStatistics(_ context.Context, start, end time.Time) ([]*models.WorkerStatistics, error) {
	f.rangeStart, f.rangeEnd = start, end
	return f.stats, nil
}

type intervalCall struct {
	workerID   int64
	weekday    models.Weekday
	start, end models.Clock
}

type fakeCalendar struct {
	intervals []models.WorkingInterval
	set       []intervalCall
	cleared   []intervalCall
}

func (f *fakeCalendar) SetInterval(_ context.Context, workerID int64, weekday models.Weekday, start, end models.Clock) error {
	f.set = append(f.set, intervalCall{workerID: workerID, weekday: weekday, start: start, end: end})
	return nil
}

func (f *fakeCalendar) ClearInterval(_ context.Context, workerID int64, weekday models.Weekday) error {
	f.cleared = append(f.cleared, intervalCall{workerID: workerID, weekday: weekday})
	return nil
}

func (f *fakeCalendar) IntervalsForWorker(context.Context, int64) ([]models.WorkingInterval, error) {
	return f.intervals, nil
}

func (f *fakeCalendar) WorkersWorkingAt(context.Context, time.Time) ([]int64, error) {
	return nil, nil
}

type fakeCatalog struct {
	services    []*models.Service
	panicOnList bool
	created     []models.Service
	deleted     []string
	prices      map[string]int64
	payouts     map[string]int64
}

func (f *fakeCatalog) List(context.Context) ([]*models.Service, error) {
	if f.panicOnList {
		panic("catalog exploded")
	}
	return f.services, nil
}

func (f *fakeCatalog) Get(_ context.Context, name string) (*models.Service, error) {
	for _, s := range f.services {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, domain.UnknownService(name)
}

func (f *fakeCatalog) Create(_ context.Context, name string, price, payout int64) (*models.Service, error) {
	if payout > price {
		return nil, domain.NewValidationError("payout", "must not exceed price")
	}
	svc := models.Service{ID: int64(len(f.services) + 1), Name: name, Price: price, Payout: payout}
	f.created = append(f.created, svc)
	return &svc, nil
}

func (f *fakeCatalog) Delete(_ context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeCatalog) ChangePrice(_ context.Context, name string, price int64) error {
	if f.prices == nil {
		f.prices = make(map[string]int64)
	}
	f.prices[name] = price
	return nil
}

func (f *fakeCatalog) ChangePayout(_ context.Context, name string, payout int64) error {
	if f.payouts == nil {
		f.payouts = make(map[string]int64)
	}
	f.payouts[name] = payout
	return nil
}

type fakeWorkers struct {
	byName   map[string]*models.Worker
	overview *models.WorkersOverview
	added    []string
	deleted  []string
}

func (f *fakeWorkers) Add(_ context.Context, name string) (*models.Worker, error) {
	f.added = append(f.added, name)
	return &models.Worker{ID: int64(len(f.added)), Name: name}, nil
}

func (f *fakeWorkers) Delete(_ context.Context, name string) error {
	if _, ok := f.byName[name]; !ok {
		return domain.UnknownEntity("worker", name)
	}
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeWorkers) List(context.Context) ([]*models.Worker, error) {
	var out []*models.Worker
	for _, w := range f.byName {
		out = append(out, w)
	}
	return out, nil
}

func (f *fakeWorkers) Resolve(_ context.Context, name string) (*models.Worker, error) {
	if w, ok := f.byName[name]; ok {
		return w, nil
	}
	return nil, domain.UnknownEntity("worker", name)
}

func (f *fakeWorkers) StatusOverview(_ context.Context, at time.Time) (*models.WorkersOverview, error) {
	if f.overview == nil {
		return &models.WorkersOverview{At: at}, nil
	}
	return f.overview, nil
}

type profileChange struct {
	userID int64
	field  models.ProfileField
	value  string
}

type fakeUsers struct {
	users      map[string]*models.User
	passwords  map[string]string
	registered []models.Registration
	changes    []profileChange
	deleted    []string
	clients    []*models.User
	pages      int
	pagesAsked []int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[string]*models.User), passwords: make(map[string]string)}
}

func (f *fakeUsers) add(user *models.User, password string) {
	f.users[user.Login] = user
	f.passwords[user.Login] = password
}

func (f *fakeUsers) Register(_ context.Context, reg models.Registration) (*models.User, error) {
	if len(reg.Password) < 6 {
		return nil, domain.NewValidationError("password", "слишком короткий пароль")
	}
	if _, ok := f.users[reg.Login]; ok {
		return nil, domain.ErrConflict
	}
	f.registered = append(f.registered, reg)
	user := &models.User{ID: int64(100 + len(f.registered)), Name: reg.Name, Login: reg.Login, Phone: reg.Phone, Role: models.RoleClient}
	f.add(user, reg.Password)
	return user, nil
}

func (f *fakeUsers) Authenticate(_ context.Context, login, password string, chatID int64) (*models.User, error) {
	user, ok := f.users[login]
	if !ok || f.passwords[login] != password {
		return nil, security.ErrInvalidCredentials
	}
	user.ChatID = chatID
	return user, nil
}

func (f *fakeUsers) ChangeProfile(_ context.Context, userID int64, field models.ProfileField, value string) error {
	f.changes = append(f.changes, profileChange{userID: userID, field: field, value: value})
	return nil
}

func (f *fakeUsers) ListClients(_ context.Context, page int) ([]*models.User, int, error) {
	f.pagesAsked = append(f.pagesAsked, page)
	return f.clients, f.pages, nil
}

func (f *fakeUsers) Info(_ context.Context, name string) (*models.User, error) {
	for _, u := range f.users {
		if u.Name == name {
			return u, nil
		}
	}
	return nil, domain.UnknownEntity("user", name)
}

func (f *fakeUsers) Delete(_ context.Context, name string, actingAdminID int64) error {
	user, err := f.Info(context.Background(), name)
	if err != nil {
		return err
	}
	if user.ID == actingAdminID {
		return domain.NewValidationError("name", "cannot delete yourself")
	}
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, domain.ErrNotFound
}

type botFixture struct {
	bot          *Bot
	cfg          *config.Config
	tg           *fakeTelegram
	state        *service.StateService
	slots        *fakeSlots
	reservations *fakeReservations
	calendar     *fakeCalendar
	catalog      *fakeCatalog
	workers      *fakeWorkers
	users        *fakeUsers
}

func newBotFixture(t *testing.T) *botFixture {
	t.Helper()
	logger := zerolog.Nop()

	f := &botFixture{
		cfg: &config.Config{
			Bot: config.BotConfig{
				PaginationSize:    10,
				RateLimitMessages: 100,
				RateLimitWindow:   60,
			},
			Scheduling: config.SchedulingConfig{BookingHorizonDays: 30},
			Exports:    config.ExportConfig{Path: t.TempDir()},
		},
		tg:           newFakeTelegram(),
		state:        service.NewStateService(repository.NewMemoryStateRepository(time.Hour), &logger),
		slots:        &fakeSlots{},
		reservations: &fakeReservations{},
		calendar:     &fakeCalendar{},
		catalog: &fakeCatalog{services: []*models.Service{
			{ID: 1, Name: "Мойка", Price: 500, Payout: 200},
			{ID: 2, Name: "Шиномонтаж", Price: 2000, Payout: 800},
		}},
		workers: &fakeWorkers{byName: map[string]*models.Worker{
			"Петр": {ID: 7, Name: "Петр"},
		}},
		users: newFakeUsers(),
	}

	b, err := NewBot(f.cfg, Deps{
		Telegram:     f.tg,
		State:        f.state,
		Slots:        f.slots,
		Reservations: f.reservations,
		Calendar:     f.calendar,
		Catalog:      f.catalog,
		Workers:      f.workers,
		Users:        f.users,
	}, nil, &logger)
	require.NoError(t, err)
	b.loc = testLoc
	b.now = func() time.Time { return testNow }
	f.bot = b
	return f
}

func (f *botFixture) text(chatID int64, text string) {
	f.bot.processUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: chatID},
		Chat: &tgbotapi.Chat{ID: chatID},
		Text: text,
	}})
}

func (f *botFixture) command(chatID int64, text string) {
	name := strings.SplitN(text, " ", 2)[0]
	f.bot.processUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: chatID},
		Chat:     &tgbotapi.Chat{ID: chatID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}})
}

func (f *botFixture) callback(chatID int64, data string) {
	f.bot.processUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-" + data,
		From:    &tgbotapi.User{ID: chatID},
		Message: &tgbotapi.Message{MessageID: 77, Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    data,
	}})
}

// signedIn stores an authenticated session for chatID.
func (f *botFixture) signedIn(t *testing.T, chatID, userID int64, role models.Role) {
	t.Helper()
	require.NoError(t, f.state.SaveSession(context.Background(), &models.Session{ChatID: chatID, UserID: userID, Role: role}))
}

func (f *botFixture) session(t *testing.T, chatID int64) *models.Session {
	t.Helper()
	s, err := f.state.GetSession(context.Background(), chatID)
	require.NoError(t, err)
	return s
}

func callbacksOf(keyboard interface{}) []string {
	markup, ok := keyboard.(tgbotapi.InlineKeyboardMarkup)
	if !ok {
		return nil
	}
	var out []string
	for _, row := range markup.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData != nil {
				out = append(out, *btn.CallbackData)
			}
		}
	}
	return out
}
