package service

import (
	"context"
	"testing"
	"time"

	"autoservice/internal/domain"
	"autoservice/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestWorkerService(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	t.Run("Add", func(t *testing.T) {
		repo := new(mockWorkerRepo)
		s := NewWorkerService(repo, new(mockRoster), new(mockLedger), testLoc, &logger)
		repo.On("CreateWorker", ctx, mock.MatchedBy(func(w *models.Worker) bool { return w.Name == "Петр" })).Return(nil).Once()

		w, err := s.Add(ctx, " Петр ")
		require.NoError(t, err)
		assert.Equal(t, "Петр", w.Name)
	})

	t.Run("AddEmptyName", func(t *testing.T) {
		s := NewWorkerService(new(mockWorkerRepo), new(mockRoster), new(mockLedger), testLoc, &logger)
		_, err := s.Add(ctx, "  ")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("DeleteUnknown", func(t *testing.T) {
		repo := new(mockWorkerRepo)
		s := NewWorkerService(repo, new(mockRoster), new(mockLedger), testLoc, &logger)
		repo.On("GetWorkerByName", ctx, "Никто").Return(nil, domain.ErrNotFound).Once()

		assert.ErrorIs(t, s.Delete(ctx, "Никто"), domain.ErrUnknownEntity)
		repo.AssertNotCalled(t, "DeleteWorker", mock.Anything, mock.Anything)
	})

	t.Run("Delete", func(t *testing.T) {
		repo := new(mockWorkerRepo)
		s := NewWorkerService(repo, new(mockRoster), new(mockLedger), testLoc, &logger)
		repo.On("GetWorkerByName", ctx, "Петр").Return(&models.Worker{ID: 1, Name: "Петр"}, nil).Once()
		repo.On("DeleteWorker", ctx, int64(1)).Return(nil).Once()

		require.NoError(t, s.Delete(ctx, "Петр"))
		repo.AssertExpectations(t)
	})

	t.Run("StatusOverview", func(t *testing.T) {
		repo := new(mockWorkerRepo)
		roster := new(mockRoster)
		ledger := new(mockLedger)
		s := NewWorkerService(repo, roster, ledger, testLoc, &logger)

		hour := monday.Add(14 * time.Hour)
		repo.On("ListWorkers", ctx).Return([]*models.Worker{
			{ID: 1, Name: "Петр"}, {ID: 2, Name: "Алексей"}, {ID: 3, Name: "Олег"},
		}, nil).Once()
		roster.On("WorkersWorkingAt", ctx, atTime(hour)).Return([]int64{1, 2}, nil).Once()
		ledger.On("IsWorkerBusy", ctx, int64(1), atTime(hour)).Return(true, nil).Once()
		ledger.On("IsWorkerBusy", ctx, int64(2), atTime(hour)).Return(false, nil).Once()

		overview, err := s.StatusOverview(ctx, hour.Add(25*time.Minute))
		require.NoError(t, err)
		assert.True(t, overview.At.Equal(hour))
		require.Len(t, overview.WorkingBusy, 1)
		assert.Equal(t, "Петр", overview.WorkingBusy[0].Name)
		require.Len(t, overview.WorkingFree, 1)
		assert.Equal(t, "Алексей", overview.WorkingFree[0].Name)
		require.Len(t, overview.NotWorking, 1)
		assert.Equal(t, "Олег", overview.NotWorking[0].Name)
	})
}
