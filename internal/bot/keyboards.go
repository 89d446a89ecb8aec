package bot

import (
	"fmt"
	"strconv"
	"time"

	"autoservice/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback data.
const (
	cbMenu           = "menu"
	cbServices       = "services"
	cbRegister       = "register"
	cbLogin          = "login"
	cbLogout         = "logout"
	cbBook           = "book"
	cbMyAppointments = "my"
	cbProfile        = "profile"
	cbWorkers        = "workers"
	cbAdminHelp      = "admin_help"

	prefixService = "svc:"
	prefixDay     = "day:"
	prefixSlot    = "slot:"
	prefixCancel  = "cancel:"
	prefixField   = "field:"
	prefixClients = "clients:"
)

const bookingDaysShown = 7

func startKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("💰 Посмотреть доступные услуги", cbServices)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔑 Войти в профиль", cbLogin)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📝 Зарегистрироваться", cbRegister)),
	)
}

func clientKeyboard(admin bool) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🚗 Записаться в автосервис", cbBook)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📋 Мои записи", cbMyAppointments)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("💰 Услуги", cbServices)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✏️ Изменить данные профиля", cbProfile)),
	}
	if admin {
		rows = append(rows,
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("👷 Работники сейчас", cbWorkers)),
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📖 Команды администратора", cbAdminHelp)),
		)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🚪 Выйти из профиля", cbLogout)))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func backRow() []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ В меню", cbMenu))
}

func servicesKeyboard(services []*models.Service) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(services)+1)
	for _, svc := range services {
		label := fmt.Sprintf("%s · %d ₽", svc.Name, svc.Price)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, prefixService+strconv.FormatInt(svc.ID, 10)),
		))
	}
	rows = append(rows, backRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func daysKeyboard(from time.Time, count int) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for i := 0; i < count; i++ {
		day := from.AddDate(0, 0, i)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(dayLabel(day), prefixDay+day.Format(models.ISODateLayout)))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, backRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func slotsKeyboard(slots []models.Slot) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, slot := range slots {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(slot.String(), prefixSlot+slot.String()))
		if len(row) == 4 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📅 Другой день", cbBook)))
	rows = append(rows, backRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func appointmentsKeyboard(views []*models.AppointmentView, loc *time.Location) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(views)+1)
	for _, v := range views {
		label := fmt.Sprintf("❌ %s %s", v.Date.In(loc).Format("02.01 15:04"), v.ServiceName)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, prefixCancel+strconv.FormatInt(v.Date.Unix(), 10)),
		))
	}
	rows = append(rows, backRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func profileKeyboard() tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, f := range models.ProfileFields() {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(f.Title(), prefixField+f.Key()),
		))
	}
	rows = append(rows, backRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
