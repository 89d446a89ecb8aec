package service

import (
	"context"
	"sort"
	"time"

	"autoservice/internal/domain"
	"autoservice/internal/metrics"
	"autoservice/internal/models"

	"github.com/rs/zerolog"
)

// BookingLookup is the part of the ledger the slot engine reads.
type BookingLookup interface {
	BookedBetween(ctx context.Context, start, end time.Time) ([]*models.Appointment, error)
}

// SlotEngine computes the bookable hours of a day.
type SlotEngine struct {
	calendar domain.CalendarStore
	ledger   BookingLookup
	loc      *time.Location
	logger   *zerolog.Logger
}

func NewSlotEngine(calendar domain.CalendarStore, ledger BookingLookup, loc *time.Location, logger *zerolog.Logger) *SlotEngine {
	if loc == nil {
		loc = time.Local
	}
	return &SlotEngine{
		calendar: calendar,
		ledger:   ledger,
		loc:      loc,
		logger:   logger,
	}
}

// ComputeFreeSlots returns every hour of date at which at least one worker is on duty and free.
func (e *SlotEngine) ComputeFreeSlots(ctx context.Context, date time.Time) ([]models.Slot, error) {
	started := time.Now()
	defer func() { metrics.ObserveSlotComputation(time.Since(started)) }()

	day := models.Clock(0).On(date.In(e.loc))

	intervals, err := e.calendar.GetIntervalsByWeekday(ctx, models.WeekdayOf(day))
	if err != nil {
		e.logger.Error().Err(err).Time("date", day).Msg("failed to load working intervals")
		return nil, err
	}
	if len(intervals) == 0 {
		return []models.Slot{}, nil
	}

	booked, err := e.ledger.BookedBetween(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		e.logger.Error().Err(err).Time("date", day).Msg("failed to load bookings")
		return nil, err
	}

	return FreeSlots(day, intervals, booked), nil
}

// FreeSlots builds the hourly grid of every worker, drops the hours that worker
// already has booked and returns the union in ascending order.
func FreeSlots(day time.Time, intervals []models.WorkingInterval, booked []*models.Appointment) []models.Slot {
	busy := make(map[int64]map[models.Clock]struct{})
	for _, a := range booked {
		if busy[a.WorkerID] == nil {
			busy[a.WorkerID] = make(map[models.Clock]struct{})
		}
		busy[a.WorkerID][models.ClockOf(a.Date.In(day.Location()))] = struct{}{}
	}

	step := models.Clock(models.SlotDuration / time.Minute)
	free := make(map[models.Clock]struct{})
	for _, wi := range intervals {
		for c := wi.Start; c+step <= wi.End; c += step {
			if _, taken := busy[wi.WorkerID][c]; taken {
				continue
			}
			free[c] = struct{}{}
		}
	}

	clocks := make([]models.Clock, 0, len(free))
	for c := range free {
		clocks = append(clocks, c)
	}
	sort.Slice(clocks, func(i, j int) bool { return clocks[i] < clocks[j] })

	slots := make([]models.Slot, 0, len(clocks))
	for _, c := range clocks {
		slots = append(slots, models.Slot{Start: c.On(day)})
	}
	return slots
}
