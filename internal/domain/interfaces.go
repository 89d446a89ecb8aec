package domain

import (
	"context"
	"time"

	"autoservice/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// RemoveCriteria scopes a ledger removal to one timestamp and at least one participant.
type RemoveCriteria struct {
	Date     time.Time
	ClientID int64
	WorkerID int64
}

// Ledger is the authoritative set of confirmed appointments.
type Ledger interface {
	IsWorkerBusy(ctx context.Context, workerID int64, ts time.Time) (bool, error)
	Commit(ctx context.Context, appointment *models.Appointment) (int64, error)
	Remove(ctx context.Context, criteria RemoveCriteria) ([]*models.AppointmentView, error)
	BookedBetween(ctx context.Context, start, end time.Time) ([]*models.Appointment, error)
	FindInRange(ctx context.Context, start, end time.Time) ([]*models.AppointmentView, error)
	FindByClient(ctx context.Context, clientID int64, after time.Time) ([]*models.AppointmentView, error)
	GetAppointmentView(ctx context.Context, id int64) (*models.AppointmentView, error)
	Statistics(ctx context.Context, start, end time.Time) ([]*models.WorkerStatistics, error)
}

type CalendarStore interface {
	UpsertWorkingInterval(ctx context.Context, interval models.WorkingInterval) error
	DeleteWorkingInterval(ctx context.Context, workerID int64, weekday models.Weekday) error
	GetWorkingIntervals(ctx context.Context, workerID int64) ([]models.WorkingInterval, error)
	GetIntervalsByWeekday(ctx context.Context, weekday models.Weekday) ([]models.WorkingInterval, error)
}

type WorkerRepository interface {
	CreateWorker(ctx context.Context, worker *models.Worker) error
	DeleteWorker(ctx context.Context, id int64) error
	GetWorkerByID(ctx context.Context, id int64) (*models.Worker, error)
	GetWorkerByName(ctx context.Context, name string) (*models.Worker, error)
	ListWorkers(ctx context.Context) ([]*models.Worker, error)
}

type ServiceRepository interface {
	CreateService(ctx context.Context, svc *models.Service) error
	GetServiceByName(ctx context.Context, name string) (*models.Service, error)
	ListServices(ctx context.Context) ([]*models.Service, error)
	DeleteService(ctx context.Context, id int64) error
	UpdateServicePrice(ctx context.Context, id, price int64) error
	UpdateServicePayout(ctx context.Context, id, payout int64) error
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	GetUserByName(ctx context.Context, name string) (*models.User, error)
	UpdateUserField(ctx context.Context, id int64, field models.ProfileField, value string) error
	UpdateUserChatID(ctx context.Context, id, chatID int64) error
	ListUsersByRole(ctx context.Context, role models.Role, limit, offset int) ([]*models.User, error)
	CountUsersByRole(ctx context.Context, role models.Role) (int, error)
	DeleteUser(ctx context.Context, id int64) error
}

type SyncQueueRepository interface {
	CreateSyncTask(ctx context.Context, task *models.SyncTask) error
	GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error)
	UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

type StateRepository interface {
	GetSession(ctx context.Context, chatID int64) (*models.Session, error)
	SaveSession(ctx context.Context, session *models.Session) error
	ClearSession(ctx context.Context, chatID int64) error
	CheckRateLimit(ctx context.Context, chatID int64, limit int, window time.Duration) (bool, error)
	// MarkOnce records key for ttl and reports whether it was not recorded before.
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unmark(ctx context.Context, key string) error
}

type StateManager interface {
	GetSession(ctx context.Context, chatID int64) (*models.Session, error)
	SaveSession(ctx context.Context, session *models.Session) error
	SetStep(ctx context.Context, chatID int64, step string, data map[string]interface{}) error
	ResetStep(ctx context.Context, chatID int64) error
	Logout(ctx context.Context, chatID int64) error
	CheckRateLimit(ctx context.Context, chatID int64, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type JournalWriter interface {
	UpsertAppointment(ctx context.Context, appointment *models.AppointmentView) error
	DeleteAppointmentRow(ctx context.Context, appointmentID int64) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, appointmentID int64, view *models.AppointmentView) error
}

// SlotFinder computes bookable hours.
type SlotFinder interface {
	ComputeFreeSlots(ctx context.Context, date time.Time) ([]models.Slot, error)
}

// Reservations books, cancels and lists appointments.
type Reservations interface {
	Reserve(ctx context.Context, date time.Time, hour models.Clock, clientID int64, serviceName string) (*models.Reservation, error)
	ReserveForAdmin(ctx context.Context, clientName, workerName, serviceName string, ts time.Time) (*models.Reservation, error)
	CancelOwn(ctx context.Context, clientID int64, ts time.Time) error
	Cancel(ctx context.Context, party models.Participant, name string, ts time.Time) error
	ListUpcoming(ctx context.Context, clientID int64) ([]*models.AppointmentView, error)
	ListRange(ctx context.Context, start, end time.Time) ([]*models.AppointmentView, error)
	AggregateStatistics(ctx context.Context, start, end time.Time) ([]*models.WorkerStatistics, error)
}

type Calendar interface {
	SetInterval(ctx context.Context, workerID int64, weekday models.Weekday, start, end models.Clock) error
	ClearInterval(ctx context.Context, workerID int64, weekday models.Weekday) error
	IntervalsForWorker(ctx context.Context, workerID int64) ([]models.WorkingInterval, error)
	WorkersWorkingAt(ctx context.Context, ts time.Time) ([]int64, error)
}

type Catalog interface {
	List(ctx context.Context) ([]*models.Service, error)
	Get(ctx context.Context, name string) (*models.Service, error)
	Create(ctx context.Context, name string, price, payout int64) (*models.Service, error)
	Delete(ctx context.Context, name string) error
	ChangePrice(ctx context.Context, name string, price int64) error
	ChangePayout(ctx context.Context, name string, payout int64) error
}

type Workers interface {
	Add(ctx context.Context, name string) (*models.Worker, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]*models.Worker, error)
	Resolve(ctx context.Context, name string) (*models.Worker, error)
	StatusOverview(ctx context.Context, at time.Time) (*models.WorkersOverview, error)
}

type Users interface {
	Register(ctx context.Context, reg models.Registration) (*models.User, error)
	Authenticate(ctx context.Context, login, password string, chatID int64) (*models.User, error)
	ChangeProfile(ctx context.Context, userID int64, field models.ProfileField, value string) error
	ListClients(ctx context.Context, page int) ([]*models.User, int, error)
	Info(ctx context.Context, name string) (*models.User, error)
	Delete(ctx context.Context, name string, actingAdminID int64) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

type TelegramService interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	SendMessage(chatID int64, text string) (tgbotapi.Message, error)
	SendHTML(chatID int64, text string) (tgbotapi.Message, error)
	SendWithKeyboard(chatID int64, text string, keyboard interface{}) (tgbotapi.Message, error)
	SendDocument(chatID int64, path, caption string) (tgbotapi.Message, error)
	EditMessage(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	AnswerCallback(callbackID string, text string) error
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}
