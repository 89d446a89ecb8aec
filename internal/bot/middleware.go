package bot

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

func (b *Bot) withRecovery(l *zerolog.Logger, handler func()) {
	defer func() {
		if r := recover(); r != nil {
			if b.metrics != nil {
				b.metrics.ErrorsTotal.Inc()
			}
			l.Error().Interface("panic", r).Msg("Recovered from panic in update handler")
		}
	}()
	handler()
}

// allowUpdate applies the per-chat rate limit. Storage failures let the update through.
func (b *Bot) allowUpdate(ctx context.Context, chatID int64) bool {
	if b.isAdminChat(chatID) {
		return true
	}

	window := time.Duration(b.config.Bot.RateLimitWindow) * time.Second
	allowed, err := b.stateService.CheckRateLimit(ctx, chatID, b.config.Bot.RateLimitMessages, window)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("Rate limit check failed")
		return true
	}
	if !allowed {
		zerolog.Ctx(ctx).Warn().Int64("chat_id", chatID).Msg("Rate limit exceeded")
	}
	return allowed
}

// isAdminChat reports whether the chat is listed as an operator chat in the config.
func (b *Bot) isAdminChat(chatID int64) bool {
	for _, id := range b.config.Bot.Admins {
		if id == chatID {
			return true
		}
	}
	return false
}
