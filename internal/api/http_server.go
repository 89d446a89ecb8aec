package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"autoservice/internal/config"
	"autoservice/internal/domain"
	"autoservice/internal/metrics"
	"autoservice/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Deps are the scheduling operations exposed over HTTP and gRPC.
type Deps struct {
	Slots        domain.SlotFinder
	Reservations domain.Reservations
	Catalog      domain.Catalog
	// Ping reports storage health for /healthz. Optional.
	Ping func(ctx context.Context) error
}

// HTTPServer exposes the scheduling API as JSON over HTTP.
type HTTPServer struct {
	cfg    config.APIConfig
	deps   Deps
	loc    *time.Location
	auth   *HTTPAuth
	server *http.Server
	logger *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, deps Deps, loc *time.Location, logger *zerolog.Logger) *HTTPServer {
	if loc == nil {
		loc = time.Local
	}
	srv := &HTTPServer{
		cfg:    cfg,
		deps:   deps,
		loc:    loc,
		auth:   NewHTTPAuth(cfg),
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealth)
	srv.route(mux, "GET /api/v1/slots", permReadSlots, srv.handleSlots)
	srv.route(mux, "GET /api/v1/services", permReadServices, srv.handleServices)
	srv.route(mux, "POST /api/v1/reservations", permWriteReservations, srv.handleReserve)
	srv.route(mux, "DELETE /api/v1/reservations", permWriteReservations, srv.handleCancelOwn)
	srv.route(mux, "GET /api/v1/clients/{id}/appointments", permReadAppointments, srv.handleClientAppointments)
	srv.route(mux, "GET /api/v1/appointments", permReadAppointments, srv.handleAppointments)
	srv.route(mux, "GET /api/v1/statistics", permReadStatistics, srv.handleStatistics)
	srv.route(mux, "POST /api/v1/admin/reservations", permAdmin, srv.handleAdminReserve)
	srv.route(mux, "POST /api/v1/admin/cancel", permAdmin, srv.handleAdminCancel)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           loggingMiddleware(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return srv
}

func (s *HTTPServer) route(mux *http.ServeMux, pattern, permission string, h http.HandlerFunc) {
	mux.Handle(pattern, s.auth.Require(permission, h))
}

// Handler returns the root handler with middleware applied.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return errors.New("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ping != nil {
		if err := s.deps.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r.URL.Query().Get("date"), s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	slots, err := s.deps.Slots.ComputeFreeSlots(r.Context(), date)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	out := make([]string, 0, len(slots))
	for _, slot := range slots {
		out = append(out, slot.String())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":  date.Format(models.ISODateLayout),
		"slots": out,
	})
}

func (s *HTTPServer) handleServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.deps.Catalog.List(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if services == nil {
		services = []*models.Service{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

type reserveRequest struct {
	ClientID int64  `json:"client_id"`
	Service  string `json:"service"`
	Date     string `json:"date"`
	Time     string `json:"time"`
}

func (s *HTTPServer) handleReserve(w http.ResponseWriter, r *http.Request) {
	var body reserveRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.ClientID <= 0 || strings.TrimSpace(body.Service) == "" {
		writeError(w, http.StatusBadRequest, "client_id and service are required")
		return
	}
	date, err := parseDate(body.Date, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	hour, err := models.ParseClock(body.Time)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.deps.Reservations.Reserve(r.Context(), date, hour, body.ClientID, body.Service)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reservationJSON(res))
}

type cancelOwnRequest struct {
	ClientID int64  `json:"client_id"`
	Start    string `json:"start"`
}

func (s *HTTPServer) handleCancelOwn(w http.ResponseWriter, r *http.Request) {
	var body cancelOwnRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.ClientID <= 0 {
		writeError(w, http.StatusBadRequest, "client_id is required")
		return
	}
	ts, err := parseInstant(body.Start, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.deps.Reservations.CancelOwn(r.Context(), body.ClientID, ts); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleClientAppointments(w http.ResponseWriter, r *http.Request) {
	clientID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || clientID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid client id")
		return
	}

	views, err := s.deps.Reservations.ListUpcoming(r.Context(), clientID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": s.appointmentsJSON(views)})
}

func (s *HTTPServer) handleAppointments(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	views, err := s.deps.Reservations.ListRange(r.Context(), start, end)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": s.appointmentsJSON(views)})
}

func (s *HTTPServer) handleStatistics(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := s.deps.Reservations.AggregateStatistics(r.Context(), start, end)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if stats == nil {
		stats = []*models.WorkerStatistics{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"statistics": stats})
}

type adminReserveRequest struct {
	Client  string `json:"client"`
	Worker  string `json:"worker"`
	Service string `json:"service"`
	Start   string `json:"start"`
}

func (s *HTTPServer) handleAdminReserve(w http.ResponseWriter, r *http.Request) {
	var body adminReserveRequest
	if !decodeBody(w, r, &body) {
		return
	}
	ts, err := parseInstant(body.Start, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.deps.Reservations.ReserveForAdmin(r.Context(), body.Client, body.Worker, body.Service, ts)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reservationJSON(res))
}

type adminCancelRequest struct {
	Role  string `json:"role"`
	Name  string `json:"name"`
	Start string `json:"start"`
}

func (s *HTTPServer) handleAdminCancel(w http.ResponseWriter, r *http.Request) {
	var body adminCancelRequest
	if !decodeBody(w, r, &body) {
		return
	}
	party, err := models.ParseParticipant(strings.TrimSpace(body.Role))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ts, err := parseInstant(body.Start, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.deps.Reservations.Cancel(r.Context(), party, body.Name, ts); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusForError(err)
	if code == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, code, "internal error")
		return
	}
	writeError(w, code, err.Error())
}

type appointmentJSON struct {
	ID      int64  `json:"id"`
	Start   string `json:"start"`
	Client  string `json:"client"`
	Worker  string `json:"worker"`
	Service string `json:"service"`
	Price   int64  `json:"price"`
}

func (s *HTTPServer) appointmentsJSON(views []*models.AppointmentView) []appointmentJSON {
	out := make([]appointmentJSON, 0, len(views))
	for _, v := range views {
		out = append(out, appointmentJSON{
			ID:      v.ID,
			Start:   v.Date.In(s.loc).Format(time.RFC3339),
			Client:  v.ClientName,
			Worker:  v.WorkerName,
			Service: v.ServiceName,
			Price:   v.Price,
		})
	}
	return out
}

func reservationJSON(res *models.Reservation) map[string]any {
	return map[string]any{
		"id":           res.Appointment.ID,
		"start":        res.Appointment.Date.Format(time.RFC3339),
		"worker":       res.WorkerName,
		"service":      res.ServiceName,
		"price":        res.Price,
		"confirmation": res.Confirmation(),
	}
}

// HTTPAuth provides API-key auth and per-key rate limiting for HTTP endpoints.
type HTTPAuth struct {
	keys *keyring
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	return &HTTPAuth{keys: newKeyring(cfg)}
}

// Require wraps next with authentication for the given permission.
func (a *HTTPAuth) Require(permission string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := strings.TrimSpace(r.Header.Get(a.keys.apiKeyHeader))
		extra := strings.TrimSpace(r.Header.Get(a.keys.extraHeader))

		if err := a.keys.authenticate(apiKey, extra, permission); err != nil {
			statusCode := http.StatusUnauthorized
			if errors.Is(err, errPermissionDenied) {
				statusCode = http.StatusForbidden
			}
			writeError(w, statusCode, err.Error())
			return
		}

		if err := a.keys.allow(httpClientKey(r, apiKey)); err != nil {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func httpClientKey(r *http.Request, apiKey string) string {
	if apiKey != "" {
		return apiKey
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

func loggingMiddleware(logger *zerolog.Logger, next http.Handler) http.Handler {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "http").Logger()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDMetadataKey))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDMetadataKey, requestID)

		reqLogger := base.With().Str("request_id", requestID).Logger()
		r = r.WithContext(reqLogger.WithContext(r.Context()))

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.IncHTTP(endpoint)

		reqLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func parseDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("date is required")
	}
	for _, layout := range []string{models.ISODateLayout, models.DateLayout} {
		if d, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return d, nil
		}
	}
	return time.Time{}, errors.New("invalid date format; expected YYYY-MM-DD")
}

func parseInstant(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("start is required")
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.In(loc), nil
	}
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02 15:04", models.DateTimeLayout} {
		if ts, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errors.New("invalid time format; expected YYYY-MM-DDTHH:MM")
}

// parseRange reads start and end query params. A date-only end covers the whole day.
func parseRange(r *http.Request, loc *time.Location) (time.Time, time.Time, error) {
	q := r.URL.Query()
	start, err := parseBound(q.Get("start"), loc, false)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start: %w", err)
	}
	end, err := parseBound(q.Get("end"), loc, true)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end: %w", err)
	}
	return start, end, nil
}

func parseBound(raw string, loc *time.Location, endOfDay bool) (time.Time, error) {
	if d, err := parseDate(raw, loc); err == nil {
		if endOfDay {
			return d.AddDate(0, 0, 1).Add(-time.Second), nil
		}
		return d, nil
	}
	return parseInstant(raw, loc)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
