package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"autoservice/internal/domain"
	"autoservice/internal/models"

	"github.com/rs/zerolog"
)

type WorkerService struct {
	repo   domain.WorkerRepository
	roster DutyRoster
	ledger domain.Ledger
	loc    *time.Location
	logger *zerolog.Logger
}

func NewWorkerService(repo domain.WorkerRepository, roster DutyRoster, ledger domain.Ledger, loc *time.Location, logger *zerolog.Logger) *WorkerService {
	if loc == nil {
		loc = time.Local
	}
	return &WorkerService{
		repo:   repo,
		roster: roster,
		ledger: ledger,
		loc:    loc,
		logger: logger,
	}
}

func (s *WorkerService) Add(ctx context.Context, name string) (*models.Worker, error) {
	name = strings.TrimSpace(name)
	if err := validateVar("name", name, "required,min=2,max=64"); err != nil {
		return nil, err
	}

	worker := &models.Worker{Name: name}
	if err := s.repo.CreateWorker(ctx, worker); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("worker_id", worker.ID).Str("name", name).Msg("Worker added")
	return worker, nil
}

// Delete removes the worker together with the working time and appointments.
func (s *WorkerService) Delete(ctx context.Context, name string) error {
	worker, err := s.Resolve(ctx, name)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteWorker(ctx, worker.ID); err != nil {
		return err
	}
	s.logger.Info().Int64("worker_id", worker.ID).Str("name", worker.Name).Msg("Worker deleted")
	return nil
}

func (s *WorkerService) List(ctx context.Context) ([]*models.Worker, error) {
	return s.repo.ListWorkers(ctx)
}

func (s *WorkerService) Resolve(ctx context.Context, name string) (*models.Worker, error) {
	name = strings.TrimSpace(name)
	worker, err := s.repo.GetWorkerByName(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.UnknownEntity("worker", name)
	}
	return worker, err
}

// StatusOverview splits workers into working and free, working and busy, and not working
// for the hour that contains at.
func (s *WorkerService) StatusOverview(ctx context.Context, at time.Time) (*models.WorkersOverview, error) {
	at = at.In(s.loc)
	at = models.ClockAt(at.Hour(), 0).On(at)

	workers, err := s.repo.ListWorkers(ctx)
	if err != nil {
		return nil, err
	}
	onDuty, err := s.roster.WorkersWorkingAt(ctx, at)
	if err != nil {
		return nil, err
	}

	overview := &models.WorkersOverview{At: at}
	for _, w := range workers {
		if !containsID(onDuty, w.ID) {
			overview.NotWorking = append(overview.NotWorking, *w)
			continue
		}
		busy, err := s.ledger.IsWorkerBusy(ctx, w.ID, at)
		if err != nil {
			return nil, err
		}
		if busy {
			overview.WorkingBusy = append(overview.WorkingBusy, *w)
		} else {
			overview.WorkingFree = append(overview.WorkingFree, *w)
		}
	}
	return overview, nil
}
