package service

import (
	"context"
	"testing"

	"autoservice/internal/domain"
	"autoservice/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCatalogService(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()
	diagnostics := &models.Service{ID: 4, Name: "Диагностика", Price: 1000, Payout: 400}

	t.Run("CreateValid", func(t *testing.T) {
		repo := new(mockServiceRepo)
		s := NewCatalogService(repo, &logger)
		repo.On("CreateService", ctx, mock.MatchedBy(func(svc *models.Service) bool {
			return svc.Name == "Шиномонтаж" && svc.Price == 2000 && svc.Payout == 800
		})).Return(nil).Once()

		svc, err := s.Create(ctx, "  Шиномонтаж ", 2000, 800)
		require.NoError(t, err)
		assert.Equal(t, "Шиномонтаж", svc.Name)
		repo.AssertExpectations(t)
	})

	t.Run("CreatePayoutAbovePrice", func(t *testing.T) {
		repo := new(mockServiceRepo)
		s := NewCatalogService(repo, &logger)

		_, err := s.Create(ctx, "Диагностика", 1000, 1200)
		assert.ErrorIs(t, err, domain.ErrValidation)
		repo.AssertNotCalled(t, "CreateService", mock.Anything, mock.Anything)
	})

	t.Run("CreateNegativePrice", func(t *testing.T) {
		s := NewCatalogService(new(mockServiceRepo), &logger)
		_, err := s.Create(ctx, "Диагностика", -1, 0)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("CreateDuplicate", func(t *testing.T) {
		repo := new(mockServiceRepo)
		s := NewCatalogService(repo, &logger)
		repo.On("CreateService", ctx, mock.Anything).Return(domain.ErrConflict).Once()

		_, err := s.Create(ctx, "Диагностика", 1000, 400)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("ChangePayoutAbovePrice", func(t *testing.T) {
		repo := new(mockServiceRepo)
		s := NewCatalogService(repo, &logger)
		repo.On("GetServiceByName", ctx, "Диагностика").Return(diagnostics, nil).Once()

		err := s.ChangePayout(ctx, "Диагностика", 1200)
		assert.ErrorIs(t, err, domain.ErrValidation)
		repo.AssertNotCalled(t, "UpdateServicePayout", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ChangePayout", func(t *testing.T) {
		repo := new(mockServiceRepo)
		s := NewCatalogService(repo, &logger)
		repo.On("GetServiceByName", ctx, "Диагностика").Return(diagnostics, nil).Once()
		repo.On("UpdateServicePayout", ctx, int64(4), int64(1000)).Return(nil).Once()

		require.NoError(t, s.ChangePayout(ctx, "Диагностика", 1000))
		repo.AssertExpectations(t)
	})

	t.Run("ChangePriceBelowPayout", func(t *testing.T) {
		repo := new(mockServiceRepo)
		s := NewCatalogService(repo, &logger)
		repo.On("GetServiceByName", ctx, "Диагностика").Return(diagnostics, nil).Once()

		err := s.ChangePrice(ctx, "Диагностика", 300)
		assert.ErrorIs(t, err, domain.ErrValidation)
		repo.AssertNotCalled(t, "UpdateServicePrice", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ChangePrice", func(t *testing.T) {
		repo := new(mockServiceRepo)
		s := NewCatalogService(repo, &logger)
		repo.On("GetServiceByName", ctx, "Диагностика").Return(diagnostics, nil).Once()
		repo.On("UpdateServicePrice", ctx, int64(4), int64(1500)).Return(nil).Once()

		require.NoError(t, s.ChangePrice(ctx, "Диагностика", 1500))
	})

	t.Run("UnknownService", func(t *testing.T) {
		repo := new(mockServiceRepo)
		s := NewCatalogService(repo, &logger)
		repo.On("GetServiceByName", ctx, "Мойка").Return(nil, domain.ErrNotFound)

		assert.ErrorIs(t, s.Delete(ctx, "Мойка"), domain.ErrUnknownService)
		assert.ErrorIs(t, s.ChangePrice(ctx, "Мойка", 10), domain.ErrUnknownService)
	})

	t.Run("Delete", func(t *testing.T) {
		repo := new(mockServiceRepo)
		s := NewCatalogService(repo, &logger)
		repo.On("GetServiceByName", ctx, "Диагностика").Return(diagnostics, nil).Once()
		repo.On("DeleteService", ctx, int64(4)).Return(nil).Once()

		require.NoError(t, s.Delete(ctx, "Диагностика"))
		repo.AssertExpectations(t)
	})

	t.Run("SeedSkipsExisting", func(t *testing.T) {
		repo := new(mockServiceRepo)
		s := NewCatalogService(repo, &logger)
		repo.On("GetServiceByName", ctx, "Диагностика").Return(diagnostics, nil).Once()
		repo.On("GetServiceByName", ctx, "Мойка").Return(nil, domain.ErrNotFound).Once()
		repo.On("CreateService", ctx, mock.MatchedBy(func(svc *models.Service) bool { return svc.Name == "Мойка" })).Return(nil).Once()

		added, err := s.Seed(ctx, []models.Service{
			{Name: "Диагностика", Price: 1000, Payout: 400},
			{Name: "Мойка", Price: 500, Payout: 200},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, added)
		repo.AssertExpectations(t)
	})
}
