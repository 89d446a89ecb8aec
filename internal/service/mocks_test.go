package service

import (
	"context"
	"time"

	"autoservice/internal/domain"
	"autoservice/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) IsWorkerBusy(ctx context.Context, workerID int64, ts time.Time) (bool, error) {
	args := m.Called(ctx, workerID, ts)
	return args.Bool(0), args.Error(1)
}

func (m *mockLedger) Commit(ctx context.Context, a *models.Appointment) (int64, error) {
	args := m.Called(ctx, a)
	id, _ := args.Get(0).(int64)
	if args.Error(1) == nil {
		a.ID = id
	}
	return id, args.Error(1)
}

func (m *mockLedger) Remove(ctx context.Context, criteria domain.RemoveCriteria) ([]*models.AppointmentView, error) {
	args := m.Called(ctx, criteria)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AppointmentView), args.Error(1)
}

func (m *mockLedger) BookedBetween(ctx context.Context, start, end time.Time) ([]*models.Appointment, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Appointment), args.Error(1)
}

func (m *mockLedger) FindInRange(ctx context.Context, start, end time.Time) ([]*models.AppointmentView, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AppointmentView), args.Error(1)
}

func (m *mockLedger) FindByClient(ctx context.Context, clientID int64, after time.Time) ([]*models.AppointmentView, error) {
	args := m.Called(ctx, clientID, after)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AppointmentView), args.Error(1)
}

func (m *mockLedger) GetAppointmentView(ctx context.Context, id int64) (*models.AppointmentView, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AppointmentView), args.Error(1)
}

func (m *mockLedger) Statistics(ctx context.Context, start, end time.Time) ([]*models.WorkerStatistics, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.WorkerStatistics), args.Error(1)
}

type mockCalendarStore struct {
	mock.Mock
}

func (m *mockCalendarStore) UpsertWorkingInterval(ctx context.Context, interval models.WorkingInterval) error {
	return m.Called(ctx, interval).Error(0)
}

func (m *mockCalendarStore) DeleteWorkingInterval(ctx context.Context, workerID int64, weekday models.Weekday) error {
	return m.Called(ctx, workerID, weekday).Error(0)
}

func (m *mockCalendarStore) GetWorkingIntervals(ctx context.Context, workerID int64) ([]models.WorkingInterval, error) {
	args := m.Called(ctx, workerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.WorkingInterval), args.Error(1)
}

func (m *mockCalendarStore) GetIntervalsByWeekday(ctx context.Context, weekday models.Weekday) ([]models.WorkingInterval, error) {
	args := m.Called(ctx, weekday)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.WorkingInterval), args.Error(1)
}

type mockWorkerRepo struct {
	mock.Mock
}

func (m *mockWorkerRepo) CreateWorker(ctx context.Context, w *models.Worker) error {
	args := m.Called(ctx, w)
	if args.Error(0) == nil && w.ID == 0 {
		w.ID = 1
	}
	return args.Error(0)
}

func (m *mockWorkerRepo) DeleteWorker(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockWorkerRepo) GetWorkerByID(ctx context.Context, id int64) (*models.Worker, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Worker), args.Error(1)
}

func (m *mockWorkerRepo) GetWorkerByName(ctx context.Context, name string) (*models.Worker, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Worker), args.Error(1)
}

func (m *mockWorkerRepo) ListWorkers(ctx context.Context) ([]*models.Worker, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Worker), args.Error(1)
}

type mockServiceRepo struct {
	mock.Mock
}

func (m *mockServiceRepo) CreateService(ctx context.Context, svc *models.Service) error {
	return m.Called(ctx, svc).Error(0)
}

func (m *mockServiceRepo) GetServiceByName(ctx context.Context, name string) (*models.Service, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Service), args.Error(1)
}

func (m *mockServiceRepo) ListServices(ctx context.Context) ([]*models.Service, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Service), args.Error(1)
}

func (m *mockServiceRepo) DeleteService(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockServiceRepo) UpdateServicePrice(ctx context.Context, id, price int64) error {
	return m.Called(ctx, id, price).Error(0)
}

func (m *mockServiceRepo) UpdateServicePayout(ctx context.Context, id, payout int64) error {
	return m.Called(ctx, id, payout).Error(0)
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) CreateUser(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserRepo) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	args := m.Called(ctx, login)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserRepo) GetUserByName(ctx context.Context, name string) (*models.User, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserRepo) UpdateUserField(ctx context.Context, id int64, field models.ProfileField, value string) error {
	return m.Called(ctx, id, field, value).Error(0)
}

func (m *mockUserRepo) UpdateUserChatID(ctx context.Context, id, chatID int64) error {
	return m.Called(ctx, id, chatID).Error(0)
}

func (m *mockUserRepo) ListUsersByRole(ctx context.Context, role models.Role, limit, offset int) ([]*models.User, error) {
	args := m.Called(ctx, role, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *mockUserRepo) CountUsersByRole(ctx context.Context, role models.Role) (int, error) {
	args := m.Called(ctx, role)
	return args.Int(0), args.Error(1)
}

func (m *mockUserRepo) DeleteUser(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type mockStateRepo struct {
	mock.Mock
}

func (m *mockStateRepo) GetSession(ctx context.Context, chatID int64) (*models.Session, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *mockStateRepo) SaveSession(ctx context.Context, session *models.Session) error {
	return m.Called(ctx, session).Error(0)
}

func (m *mockStateRepo) ClearSession(ctx context.Context, chatID int64) error {
	return m.Called(ctx, chatID).Error(0)
}

func (m *mockStateRepo) CheckRateLimit(ctx context.Context, chatID int64, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, chatID, limit, window)
	return args.Bool(0), args.Error(1)
}

func (m *mockStateRepo) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockStateRepo) Unmark(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type mockRoster struct {
	mock.Mock
}

func (m *mockRoster) WorkersWorkingAt(ctx context.Context, ts time.Time) ([]int64, error) {
	args := m.Called(ctx, ts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

type mockSyncWorker struct {
	mock.Mock
}

func (m *mockSyncWorker) EnqueueTask(ctx context.Context, taskType string, appointmentID int64, view *models.AppointmentView) error {
	return m.Called(ctx, taskType, appointmentID, view).Error(0)
}
