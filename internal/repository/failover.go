package repository

import (
	"context"
	"sync/atomic"
	"time"

	"autoservice/internal/domain"
	"autoservice/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverStateRepository serves from primary (Redis) and switches to the
// fallback on the first error. The primary is retried once recoveryInterval
// has passed.
type FailoverStateRepository struct {
	primary   domain.StateRepository
	fallback  domain.StateRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverStateRepository(primary, fallback domain.StateRepository, logger *zerolog.Logger) *FailoverStateRepository {
	return &FailoverStateRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverStateRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	return time.Since(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

func (r *FailoverStateRepository) report(err error) {
	if err == nil {
		if r.isDown.CompareAndSwap(true, false) {
			r.logger.Info().Msg("Primary state repository recovered")
		}
		return
	}
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary state repository failed, falling back to memory")
	}
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverStateRepository) GetSession(ctx context.Context, chatID int64) (*models.Session, error) {
	if r.usePrimary() {
		session, err := r.primary.GetSession(ctx, chatID)
		r.report(err)
		if err == nil {
			return session, nil
		}
	}
	return r.fallback.GetSession(ctx, chatID)
}

func (r *FailoverStateRepository) SaveSession(ctx context.Context, session *models.Session) error {
	if r.usePrimary() {
		err := r.primary.SaveSession(ctx, session)
		r.report(err)
		if err == nil {
			return nil
		}
	}
	return r.fallback.SaveSession(ctx, session)
}

func (r *FailoverStateRepository) ClearSession(ctx context.Context, chatID int64) error {
	// the fallback may hold a copy written during an outage
	_ = r.fallback.ClearSession(ctx, chatID)
	if r.usePrimary() {
		err := r.primary.ClearSession(ctx, chatID)
		r.report(err)
		return nil
	}
	return nil
}

func (r *FailoverStateRepository) CheckRateLimit(ctx context.Context, chatID int64, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, chatID, limit, window)
		r.report(err)
		if err == nil {
			return allowed, nil
		}
	}
	return r.fallback.CheckRateLimit(ctx, chatID, limit, window)
}

func (r *FailoverStateRepository) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if r.usePrimary() {
		ok, err := r.primary.MarkOnce(ctx, key, ttl)
		r.report(err)
		if err == nil {
			return ok, nil
		}
	}
	return r.fallback.MarkOnce(ctx, key, ttl)
}

// Unmark clears key in both stores: a mark may have been taken by either side.
func (r *FailoverStateRepository) Unmark(ctx context.Context, key string) error {
	if r.usePrimary() {
		err := r.primary.Unmark(ctx, key)
		r.report(err)
		if err != nil {
			r.logger.Warn().Err(err).Str("key", key).Msg("failed to unmark in primary")
		}
	}
	return r.fallback.Unmark(ctx, key)
}
