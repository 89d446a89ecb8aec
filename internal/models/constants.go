package models

const (
	ParseModeMarkdown = "Markdown"
	ParseModeHTML     = "HTML"
)

const (
	StepIdle               = ""
	StepRegisterName       = "register_name"
	StepRegisterLogin      = "register_login"
	StepRegisterPassword   = "register_password"
	StepRegisterPhone      = "register_phone"
	StepLoginLogin         = "login_login"
	StepLoginPassword      = "login_password"
	StepBookSelectService  = "book_select_service"
	StepBookSelectDate     = "book_select_date"
	StepBookSelectSlot     = "book_select_slot"
	StepProfileSelectField = "profile_select_field"
	StepProfileEnterValue  = "profile_enter_value"
)

const (
	SyncTaskUpsert = "upsert"
	SyncTaskDelete = "delete"
)

const (
	SyncStatusPending   = "pending"
	SyncStatusRetry     = "retry"
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
)

const (
	// DefaultSessionTTL время жизни сессии чата в Redis
	DefaultSessionTTL = 24 * 60 * 60 // 24 часа в секундах

	// ClientsPageSize размер страницы списка клиентов
	ClientsPageSize = 10

	// DefaultBookingHorizonDays на сколько дней вперед можно записаться
	DefaultBookingHorizonDays = 30

	// RateLimitMessages количество сообщений в окне
	RateLimitMessages = 20

	// RateLimitWindow окно ограничения частоты сообщений
	RateLimitWindow = 60 // 1 минута в секундах

	// DefaultReminderLeadMinutes за сколько минут до записи отправляется напоминание
	DefaultReminderLeadMinutes = 120

	// DefaultReminderPollMinutes период опроса записей для напоминаний
	DefaultReminderPollMinutes = 15

	// WorkerQueueSize размер очереди воркера журнала
	WorkerQueueSize = 128
)
