package service

import (
	"context"
	"time"

	"autoservice/internal/domain"
	"autoservice/internal/models"

	"github.com/rs/zerolog"
)

// StateService keeps the conversation session of every chat.
type StateService struct {
	stateRepo domain.StateRepository
	logger    *zerolog.Logger
}

func NewStateService(stateRepo domain.StateRepository, logger *zerolog.Logger) *StateService {
	return &StateService{
		stateRepo: stateRepo,
		logger:    logger,
	}
}

// GetSession never returns a nil session without an error.
func (s *StateService) GetSession(ctx context.Context, chatID int64) (*models.Session, error) {
	session, err := s.stateRepo.GetSession(ctx, chatID)
	if err != nil {
		s.logger.Error().Err(err).Int64("chat_id", chatID).Msg("failed to get session")
		return nil, err
	}
	if session == nil {
		session = &models.Session{ChatID: chatID}
	}
	return session, nil
}

func (s *StateService) SaveSession(ctx context.Context, session *models.Session) error {
	return s.stateRepo.SaveSession(ctx, session)
}

// SetStep moves the chat to step, merging data into the session.
func (s *StateService) SetStep(ctx context.Context, chatID int64, step string, data map[string]interface{}) error {
	session, err := s.GetSession(ctx, chatID)
	if err != nil {
		return err
	}
	session.Step = step
	for k, v := range data {
		session.Set(k, v)
	}
	return s.stateRepo.SaveSession(ctx, session)
}

// ResetStep drops the wizard state but keeps the login.
func (s *StateService) ResetStep(ctx context.Context, chatID int64) error {
	session, err := s.GetSession(ctx, chatID)
	if err != nil {
		return err
	}
	session.Step = models.StepIdle
	session.Data = nil
	return s.stateRepo.SaveSession(ctx, session)
}

func (s *StateService) Logout(ctx context.Context, chatID int64) error {
	return s.stateRepo.ClearSession(ctx, chatID)
}

func (s *StateService) CheckRateLimit(ctx context.Context, chatID int64, limit int, window time.Duration) (bool, error) {
	return s.stateRepo.CheckRateLimit(ctx, chatID, limit, window)
}
