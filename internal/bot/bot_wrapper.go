package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotWrapper exposes *tgbotapi.BotAPI as a domain.TelegramSender.
type BotWrapper struct {
	*tgbotapi.BotAPI
}

func NewBotWrapper(api *tgbotapi.BotAPI) *BotWrapper {
	return &BotWrapper{BotAPI: api}
}

// NewBotAPI authorizes the token and wraps the client.
func NewBotAPI(token string, debug bool) (*BotWrapper, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = debug
	return NewBotWrapper(api), nil
}

func (w *BotWrapper) GetSelf() tgbotapi.User {
	return w.Self
}
