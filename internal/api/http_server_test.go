package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"autoservice/internal/config"
	"autoservice/internal/domain"
	"autoservice/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLoc = time.FixedZone("MSK", 3*60*60)

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

type fakeReservations struct {
	err          error
	reservation  *models.Reservation
	views        []*models.AppointmentView
	stats        []*models.WorkerStatistics
	reserve      reserveCall
	cancelledAt  time.Time
	cancelParty  models.Participant
	cancelName   string
	rangeStart   time.Time
	rangeEnd     time.Time
	upcomingFor  int64
	adminWorker  string
	cancelClient int64
}

func (f *fakeReservations) Reserve(_ context.Context, date time.Time, hour models.Clock, clientID int64, service string) (*models.Reservation, error) {
	f.reserve = reserveCall{date: date, hour: hour, clientID: clientID, service: service}
	return f.reservation, f.err
}

func (f *fakeReservations) ReserveForAdmin(_ context.Context, _, worker, _ string, _ time.Time) (*models.Reservation, error) {
	f.adminWorker = worker
	return f.reservation, f.err
}

func (f *fakeReservations) CancelOwn(_ context.Context, clientID int64, ts time.Time) error {
	f.cancelClient = clientID
	f.cancelledAt = ts
	return f.err
}

func (f *fakeReservations) Cancel(_ context.Context, party models.Participant, name string, ts time.Time) error {
	f.cancelParty = party
	f.cancelName = name
	f.cancelledAt = ts
	return f.err
}

func (f *fakeReservations) ListUpcoming(_ context.Context, clientID int64) ([]*models.AppointmentView, error) {
	f.upcomingFor = clientID
	return f.views, f.err
}

func (f *fakeReservations) ListRange(_ context.Context, start, end time.Time) ([]*models.AppointmentView, error) {
	f.rangeStart, f.rangeEnd = start, end
	return f.views, f.err
}

func (f *fakeReservations) AggregateStatistics(_ context.Context, start, end time.Time) ([]*models.WorkerStatistics, error) {
	f.rangeStart, f.rangeEnd = start, end
	return f.stats, f.err
}

type fakeCatalog struct {
	services []*models.Service
	err      error
}

func (f *fakeCatalog) List(context.Context) ([]*models.Service, error) { return f.services, f.err }
func (f *fakeCatalog) Get(context.Context, string) (*models.Service, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeCatalog) Create(context.Context, string, int64, int64) (*models.Service, error) {
	return nil, nil
}
func (f *fakeCatalog) Delete(context.Context, string) error              { return nil }
func (f *fakeCatalog) ChangePrice(context.Context, string, int64) error  { return nil }
func (f *fakeCatalog) ChangePayout(context.Context, string, int64) error { return nil }

type apiFixture struct {
	slots        *fakeSlots
	reservations *fakeReservations
	catalog      *fakeCatalog
	pingErr      error
	server       *httptest.Server
}

func testAPIConfig() config.APIConfig {
	return config.APIConfig{
		Enabled: true,
		HTTP:    config.APIHTTPConfig{Enabled: true},
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{
				{Key: "test-key", Extra: "test-extra"},
				{Key: "reader", Extra: "reader-extra", Permissions: []string{permReadSlots}},
			},
		},
	}
}

func newAPIFixture(t *testing.T, cfg config.APIConfig) *apiFixture {
	t.Helper()
	f := &apiFixture{
		slots:        &fakeSlots{},
		reservations: &fakeReservations{},
		catalog:      &fakeCatalog{},
	}
	deps := Deps{
		Slots:        f.slots,
		Reservations: f.reservations,
		Catalog:      f.catalog,
		Ping:         func(context.Context) error { return f.pingErr },
	}
	logger := zerolog.Nop()
	srv := NewHTTPServer(cfg, deps, testLoc, &logger)
	f.server = httptest.NewServer(srv.Handler())
	t.Cleanup(f.server.Close)
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	return f.doAs(t, "test-key", "test-extra", method, path, body)
}

func (f *apiFixture) doAs(t *testing.T, key, extra, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("x-api-key", key)
		req.Header.Set("x-api-extra", extra)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp, decoded
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t, testAPIConfig())

	resp, body := f.doAs(t, "", "", http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, resp.Header.Get(requestIDMetadataKey))

	f.pingErr = errors.New("db closed")
	resp, _ = f.doAs(t, "", "", http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSlotsEndpoint(t *testing.T) {
	f := newAPIFixture(t, testAPIConfig())
	day := time.Date(2025, 3, 3, 0, 0, 0, 0, testLoc)
	f.slots.slots = []models.Slot{{Start: day.Add(9 * time.Hour)}, {Start: day.Add(10 * time.Hour)}}

	resp, body := f.do(t, http.MethodGet, "/api/v1/slots?date=2025-03-03", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2025-03-03", body["date"])
	assert.Equal(t, []any{"09:00", "10:00"}, body["slots"])
	assert.True(t, f.slots.gotDate.Equal(day))

	resp, _ = f.do(t, http.MethodGet, "/api/v1/slots?date=03-2025", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = f.do(t, http.MethodGet, "/api/v1/slots?date=2025-03-04", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"09:00", "10:00"}, body["slots"])
}

func TestSlotsEmptyDay(t *testing.T) {
	f := newAPIFixture(t, testAPIConfig())
	f.slots.slots = []models.Slot{}

	resp, body := f.do(t, http.MethodGet, "/api/v1/slots?date=2025-03-09", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{}, body["slots"])
}

func TestAuthMiddleware(t *testing.T) {
	f := newAPIFixture(t, testAPIConfig())

	resp, body := f.doAs(t, "", "", http.MethodGet, "/api/v1/services", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, errMissingHeaders.Error(), body["error"])

	resp, _ = f.doAs(t, "test-key", "wrong", http.MethodGet, "/api/v1/services", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.doAs(t, "reader", "reader-extra", http.MethodGet, "/api/v1/services", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = f.doAs(t, "reader", "reader-extra", http.MethodGet, "/api/v1/slots?date=2025-03-03", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := testAPIConfig()
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 1, Burst: 1}
	f := newAPIFixture(t, cfg)

	resp, _ := f.do(t, http.MethodGet, "/api/v1/services", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = f.do(t, http.MethodGet, "/api/v1/services", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestServicesEndpoint(t *testing.T) {
	f := newAPIFixture(t, testAPIConfig())
	f.catalog.services = []*models.Service{{ID: 1, Name: "Мойка", Price: 500, Payout: 200}}

	resp, body := f.do(t, http.MethodGet, "/api/v1/services", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	services := body["services"].([]any)
	require.Len(t, services, 1)
	assert.Equal(t, "Мойка", services[0].(map[string]any)["name"])
}

func TestReserveEndpoint(t *testing.T) {
	start := time.Date(2025, 3, 4, 10, 0, 0, 0, testLoc)

	t.Run("Success", func(t *testing.T) {
		f := newAPIFixture(t, testAPIConfig())
		f.reservations.reservation = &models.Reservation{
			Appointment: models.Appointment{ID: 42, Date: start},
			WorkerName:  "Петр",
			ServiceName: "Мойка",
			Price:       500,
		}

		resp, body := f.do(t, http.MethodPost, "/api/v1/reservations",
			`{"client_id": 7, "service": "Мойка", "date": "2025-03-04", "time": "10:00"}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, float64(42), body["id"])
		assert.Equal(t, "Петр", body["worker"])
		assert.Equal(t, "Вы успешно записались на 04-03-2025 10-00", body["confirmation"])

		call := f.reservations.reserve
		assert.Equal(t, models.ClockAt(10, 0), call.hour)
		assert.Equal(t, int64(7), call.clientID)
		assert.True(t, call.date.Equal(time.Date(2025, 3, 4, 0, 0, 0, 0, testLoc)))
	})

	errCases := []struct {
		name string
		err  error
		code int
	}{
		{"NoWorker", domain.ErrNoAvailableWorker, http.StatusConflict},
		{"UnknownService", domain.UnknownService("Полировка"), http.StatusNotFound},
		{"UnknownClient", domain.UnknownEntity("client", "7"), http.StatusNotFound},
		{"Invalid", domain.NewValidationError("date", "must be in the future"), http.StatusBadRequest},
		{"Storage", fmt.Errorf("commit: %w", domain.ErrStorageUnavailable), http.StatusServiceUnavailable},
		{"Internal", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range errCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newAPIFixture(t, testAPIConfig())
			f.reservations.err = tc.err

			resp, body := f.do(t, http.MethodPost, "/api/v1/reservations",
				`{"client_id": 7, "service": "Мойка", "date": "2025-03-04", "time": "10:00"}`)
			assert.Equal(t, tc.code, resp.StatusCode)
			if tc.code == http.StatusInternalServerError {
				assert.Equal(t, "internal error", body["error"])
			}
		})
	}

	t.Run("BadRequests", func(t *testing.T) {
		f := newAPIFixture(t, testAPIConfig())
		bodies := []string{
			`{"client_id": 7, "service": "Мойка", "date": "2025-03-04"}`,
			`{"client_id": 7, "service": "", "date": "2025-03-04", "time": "10:00"}`,
			`{"client_id": 7, "service": "Мойка", "date": "tomorrow", "time": "10:00"}`,
			`{"client_id": 7, "service": "Мойка", "date": "2025-03-04", "time": "10:00", "worker": "x"}`,
			`not json`,
		}
		for _, b := range bodies {
			resp, _ := f.do(t, http.MethodPost, "/api/v1/reservations", b)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, b)
		}
	})
}

func TestCancelOwnEndpoint(t *testing.T) {
	f := newAPIFixture(t, testAPIConfig())

	resp, _ := f.do(t, http.MethodDelete, "/api/v1/reservations", `{"client_id": 7, "start": "2025-03-04T10:00"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, int64(7), f.reservations.cancelClient)
	assert.True(t, f.reservations.cancelledAt.Equal(time.Date(2025, 3, 4, 10, 0, 0, 0, testLoc)))

	f.reservations.err = domain.ErrPastAppointment
	resp, _ = f.do(t, http.MethodDelete, "/api/v1/reservations", `{"client_id": 7, "start": "2025-03-04T07:00:00Z"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.True(t, f.reservations.cancelledAt.Equal(time.Date(2025, 3, 4, 10, 0, 0, 0, testLoc)))

	resp, _ = f.do(t, http.MethodGet, "/api/v1/reservations", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestClientAppointmentsEndpoint(t *testing.T) {
	f := newAPIFixture(t, testAPIConfig())
	f.reservations.views = []*models.AppointmentView{{
		ID: 3, ClientName: "Иван", WorkerName: "Петр", ServiceName: "Мойка", Price: 500,
		Date: time.Date(2025, 3, 4, 7, 0, 0, 0, time.UTC),
	}}

	resp, body := f.do(t, http.MethodGet, "/api/v1/clients/7/appointments", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(7), f.reservations.upcomingFor)
	appointments := body["appointments"].([]any)
	require.Len(t, appointments, 1)
	assert.Equal(t, "2025-03-04T10:00:00+03:00", appointments[0].(map[string]any)["start"])

	resp, _ = f.do(t, http.MethodGet, "/api/v1/clients/abc/appointments", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRangeEndpoints(t *testing.T) {
	f := newAPIFixture(t, testAPIConfig())

	resp, body := f.do(t, http.MethodGet, "/api/v1/appointments?start=2025-03-03&end=2025-03-09", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{}, body["appointments"])
	assert.True(t, f.reservations.rangeStart.Equal(time.Date(2025, 3, 3, 0, 0, 0, 0, testLoc)))
	assert.True(t, f.reservations.rangeEnd.Equal(time.Date(2025, 3, 9, 23, 59, 59, 0, testLoc)))

	f.reservations.stats = []*models.WorkerStatistics{{WorkerName: "Петр", TotalPrice: 1500, TotalServices: 2, TotalPayout: 600}}
	resp, body = f.do(t, http.MethodGet, "/api/v1/statistics?start=2025-03-03T09:00&end=2025-03-03T18:00", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := body["statistics"].([]any)
	require.Len(t, stats, 1)
	assert.Equal(t, float64(600), stats[0].(map[string]any)["total_payout"])
	assert.True(t, f.reservations.rangeEnd.Equal(time.Date(2025, 3, 3, 18, 0, 0, 0, testLoc)))

	resp, _ = f.do(t, http.MethodGet, "/api/v1/statistics?start=2025-03-03", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	f.reservations.err = domain.NewValidationError("range", "end is before start")
	resp, _ = f.do(t, http.MethodGet, "/api/v1/appointments?start=2025-03-09&end=2025-03-03", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminEndpoints(t *testing.T) {
	f := newAPIFixture(t, testAPIConfig())
	f.reservations.reservation = &models.Reservation{
		Appointment: models.Appointment{ID: 9, Date: time.Date(2025, 3, 4, 12, 0, 0, 0, testLoc)},
		WorkerName:  "Олег",
	}

	resp, _ := f.do(t, http.MethodPost, "/api/v1/admin/reservations",
		`{"client": "Иван", "worker": "Олег", "service": "Мойка", "start": "2025-03-04 12:00"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Олег", f.reservations.adminWorker)

	resp, _ = f.do(t, http.MethodPost, "/api/v1/admin/cancel", `{"role": "worker", "name": "Олег", "start": "04.03.2025 12:00"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, models.ParticipantWorker, f.reservations.cancelParty)
	assert.Equal(t, "Олег", f.reservations.cancelName)

	resp, _ = f.do(t, http.MethodPost, "/api/v1/admin/cancel", `{"role": "owner", "name": "Олег", "start": "2025-03-04T12:00"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.doAs(t, "reader", "reader-extra", http.MethodPost, "/api/v1/admin/cancel", `{}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestStatusForError(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusForError(domain.NewValidationError("x", "y")))
	assert.Equal(t, http.StatusConflict, statusForError(domain.ErrConflict))
	assert.Equal(t, http.StatusNotFound, statusForError(domain.ErrNotFound))
	assert.Equal(t, http.StatusInternalServerError, statusForError(errors.New("other")))
}
