package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"autoservice/internal/domain"
	"autoservice/internal/models"

	"github.com/rs/zerolog"
)

// CalendarService manages the weekly working intervals of workers.
type CalendarService struct {
	store   domain.CalendarStore
	workers domain.WorkerRepository
	loc     *time.Location
	logger  *zerolog.Logger
}

func NewCalendarService(store domain.CalendarStore, workers domain.WorkerRepository, loc *time.Location, logger *zerolog.Logger) *CalendarService {
	if loc == nil {
		loc = time.Local
	}
	return &CalendarService{
		store:   store,
		workers: workers,
		loc:     loc,
		logger:  logger,
	}
}

func (s *CalendarService) SetInterval(ctx context.Context, workerID int64, weekday models.Weekday, start, end models.Clock) error {
	if !weekday.Valid() {
		return domain.NewValidationError("weekday", "out of range")
	}
	if !start.Valid() || !end.Valid() {
		return domain.NewValidationError("time", "out of range")
	}
	if start >= end {
		return domain.NewValidationError("time", "start must be before end")
	}
	if !start.IsWholeHour() || !end.IsWholeHour() {
		return domain.NewValidationError("time", "must be a whole hour")
	}

	if _, err := s.workers.GetWorkerByID(ctx, workerID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.UnknownEntity("worker", fmt.Sprint(workerID))
		}
		return err
	}

	interval := models.WorkingInterval{WorkerID: workerID, Weekday: weekday, Start: start, End: end}
	if err := s.store.UpsertWorkingInterval(ctx, interval); err != nil {
		s.logger.Error().Err(err).Int64("worker_id", workerID).Int("weekday", int(weekday)).Msg("failed to set working interval")
		return err
	}

	s.logger.Info().
		Int64("worker_id", workerID).
		Str("weekday", weekday.String()).
		Str("start", start.String()).
		Str("end", end.String()).
		Msg("Working interval set")
	return nil
}

func (s *CalendarService) ClearInterval(ctx context.Context, workerID int64, weekday models.Weekday) error {
	if !weekday.Valid() {
		return domain.NewValidationError("weekday", "out of range")
	}
	return s.store.DeleteWorkingInterval(ctx, workerID, weekday)
}

// IntervalsForWorker returns the worker's week ordered by weekday.
func (s *CalendarService) IntervalsForWorker(ctx context.Context, workerID int64) ([]models.WorkingInterval, error) {
	return s.store.GetWorkingIntervals(ctx, workerID)
}

// WorkersWorkingAt returns ids of workers on duty at ts, ascending.
func (s *CalendarService) WorkersWorkingAt(ctx context.Context, ts time.Time) ([]int64, error) {
	local := ts.In(s.loc)
	intervals, err := s.store.GetIntervalsByWeekday(ctx, models.WeekdayOf(local))
	if err != nil {
		return nil, err
	}

	tod := models.ClockOf(local)
	ids := make([]int64, 0, len(intervals))
	for _, wi := range intervals {
		if wi.Contains(tod) {
			ids = append(ids, wi.WorkerID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
