package bot

import (
	"errors"

	"autoservice/internal/domain"
	"autoservice/internal/security"
)

func (b *Bot) getErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var verr *domain.ValidationError
	var entity *domain.EntityError

	switch {
	case errors.Is(err, security.ErrInvalidCredentials):
		return "⚠️ Неверный логин или пароль."
	case errors.As(err, &verr):
		if verr.Reason != "" {
			return "⚠️ Некорректные данные: " + verr.Reason
		}
		return "⚠️ Некорректные данные."
	case errors.Is(err, domain.ErrPastAppointment):
		return "⚠️ Нельзя записаться на прошедшее время."
	case errors.Is(err, domain.ErrNoAvailableWorker):
		return "⚠️ В данное время нет свободных работников. Выберите другое время."
	case errors.Is(err, domain.ErrUnknownService):
		return "⚠️ Такой услуги нет в прайс-листе."
	case errors.As(err, &entity) && errors.Is(err, domain.ErrUnknownEntity):
		return "⚠️ Не найдено: " + entity.Name
	case errors.Is(err, domain.ErrNotFound):
		return "⚠️ Запись не найдена."
	case errors.Is(err, domain.ErrConflict):
		return "⚠️ Такая запись уже существует."
	case errors.Is(err, domain.ErrStorageUnavailable):
		return "❌ Ошибка обращения к базе, повторите позже."
	}

	return "❌ Произошла ошибка при обработке вашего запроса. Пожалуйста, попробуйте позже."
}
