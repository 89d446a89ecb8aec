package service

import (
	"context"
	"errors"
	"strings"

	"autoservice/internal/domain"
	"autoservice/internal/models"

	"github.com/rs/zerolog"
)

// CatalogService manages the list of services and keeps payout within price.
type CatalogService struct {
	repo   domain.ServiceRepository
	logger *zerolog.Logger
}

func NewCatalogService(repo domain.ServiceRepository, logger *zerolog.Logger) *CatalogService {
	return &CatalogService{
		repo:   repo,
		logger: logger,
	}
}

func (s *CatalogService) List(ctx context.Context) ([]*models.Service, error) {
	return s.repo.ListServices(ctx)
}

func (s *CatalogService) Get(ctx context.Context, name string) (*models.Service, error) {
	svc, err := s.repo.GetServiceByName(ctx, strings.TrimSpace(name))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.UnknownService(name)
	}
	return svc, err
}

func (s *CatalogService) Create(ctx context.Context, name string, price, payout int64) (*models.Service, error) {
	svc := &models.Service{
		Name:   strings.TrimSpace(name),
		Price:  price,
		Payout: payout,
	}
	if err := validateStruct(svc); err != nil {
		return nil, err
	}

	if err := s.repo.CreateService(ctx, svc); err != nil {
		return nil, err
	}

	s.logger.Info().Str("service", svc.Name).Int64("price", price).Int64("payout", payout).Msg("Service created")
	return svc, nil
}

func (s *CatalogService) Delete(ctx context.Context, name string) error {
	svc, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteService(ctx, svc.ID); err != nil {
		return err
	}
	s.logger.Info().Str("service", svc.Name).Msg("Service deleted")
	return nil
}

func (s *CatalogService) ChangePrice(ctx context.Context, name string, price int64) error {
	svc, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	if price < 0 {
		return domain.NewValidationError("price", "gte=0")
	}
	if price < svc.Payout {
		return domain.NewValidationError("price", "must not be below payout")
	}
	return s.repo.UpdateServicePrice(ctx, svc.ID, price)
}

func (s *CatalogService) ChangePayout(ctx context.Context, name string, payout int64) error {
	svc, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	if payout < 0 {
		return domain.NewValidationError("payout", "gte=0")
	}
	if payout > svc.Price {
		return domain.NewValidationError("payout", "must not exceed price")
	}
	return s.repo.UpdateServicePayout(ctx, svc.ID, payout)
}

// Seed creates the services that do not exist yet and returns how many were added.
func (s *CatalogService) Seed(ctx context.Context, services []models.Service) (int, error) {
	added := 0
	for _, svc := range services {
		_, err := s.repo.GetServiceByName(ctx, svc.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return added, err
		}
		if _, err := s.Create(ctx, svc.Name, svc.Price, svc.Payout); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}
