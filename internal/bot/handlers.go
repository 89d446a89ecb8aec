package bot

import (
	"context"
	"fmt"
	"strings"

	"autoservice/internal/domain"
	"autoservice/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	session, err := b.stateService.GetSession(ctx, chatID)
	if err != nil {
		b.replyError(ctx, chatID, domain.ErrStorageUnavailable, "Failed to load session")
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, session, msg.Command(), msg.CommandArguments())
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	if b.handleStep(ctx, session, text) {
		return
	}
	b.sendMainMenu(chatID, session)
}

func (b *Bot) handleCommand(ctx context.Context, session *models.Session, command, args string) {
	chatID := session.ChatID
	b.metrics.command(command)
	zerolog.Ctx(ctx).Debug().Str("command", command).Int64("chat_id", chatID).Msg("Command received")

	switch command {
	case "start", "menu":
		b.resetStep(ctx, chatID)
		b.sendMainMenu(chatID, session)
	case "help":
		b.sendHelp(chatID, session)
	case "cancel":
		b.resetStep(ctx, chatID)
		b.sendMessage(chatID, "Действие отменено.")
		b.sendMainMenu(chatID, session)
	case "services":
		b.showServices(ctx, session)
	case "register":
		b.startRegistration(ctx, session)
	case "login":
		b.startLogin(ctx, session)
	case "logout":
		b.logout(ctx, session)
	case "book":
		if b.requireAuth(session) {
			b.startBooking(ctx, session)
		}
	case "my":
		if b.requireAuth(session) {
			b.showAppointments(ctx, session)
		}
	case "profile":
		if b.requireAuth(session) {
			b.startProfileEdit(ctx, session)
		}
	default:
		if cmd, ok := adminCommands[command]; ok {
			if b.requireAdmin(session) {
				b.runAdminCommand(ctx, session, command, cmd, args)
			}
			return
		}
		b.sendMessage(chatID, "Неизвестная команда. Список команд: /help")
	}
}

// handleStep feeds free text into the active wizard.
func (b *Bot) handleStep(ctx context.Context, session *models.Session, text string) bool {
	switch session.Step {
	case models.StepRegisterName:
		b.registerName(ctx, session, text)
	case models.StepRegisterLogin:
		b.registerLogin(ctx, session, text)
	case models.StepRegisterPhone:
		b.registerPhone(ctx, session, text)
	case models.StepRegisterPassword:
		b.registerPassword(ctx, session, text)
	case models.StepLoginLogin:
		b.loginLogin(ctx, session, text)
	case models.StepLoginPassword:
		b.loginPassword(ctx, session, text)
	case models.StepBookSelectDate:
		day, err := b.parseDay(text)
		if err != nil {
			b.sendMessage(session.ChatID, b.getErrorMessage(err))
			return true
		}
		b.showSlots(ctx, session, day)
	case models.StepProfileEnterValue:
		b.profileValue(ctx, session, text)
	default:
		return false
	}
	return true
}

func (b *Bot) sendMainMenu(chatID int64, session *models.Session) {
	if !session.Authenticated() {
		b.sendWithKeyboard(chatID, "Добро пожаловать в автосервис! Выберите действие:", startKeyboard())
		return
	}
	b.sendWithKeyboard(chatID, "Главное меню:", clientKeyboard(session.IsAdmin()))
}

func (b *Bot) sendHelp(chatID int64, session *models.Session) {
	var sb strings.Builder
	sb.WriteString("Доступные команды:\n")
	sb.WriteString("/start - главное меню\n/services - прайс-лист\n/cancel - прервать текущее действие\n")
	if !session.Authenticated() {
		sb.WriteString("/register - регистрация\n/login - вход\n")
	} else {
		sb.WriteString("/book - записаться\n/my - мои записи\n/profile - изменить профиль\n/logout - выйти\n")
	}
	if session.IsAdmin() {
		sb.WriteString("\n")
		sb.WriteString(adminHelp())
	}
	b.sendMessage(chatID, sb.String())
}

func (b *Bot) requireAuth(session *models.Session) bool {
	if session.Authenticated() {
		return true
	}
	b.sendWithKeyboard(session.ChatID, "Сначала войдите в профиль или зарегистрируйтесь.", startKeyboard())
	return false
}

func (b *Bot) requireAdmin(session *models.Session) bool {
	if session.IsAdmin() {
		return true
	}
	b.sendMessage(session.ChatID, "⛔ Команда доступна только администратору.")
	return false
}

func (b *Bot) showServices(ctx context.Context, session *models.Session) {
	services, err := b.catalog.List(ctx)
	if err != nil {
		b.replyError(ctx, session.ChatID, err, "Failed to list services")
		return
	}
	if len(services) == 0 {
		b.sendMessage(session.ChatID, "Список услуг пока пуст.")
		return
	}

	var sb strings.Builder
	sb.WriteString("<b>💰 Прайс-лист</b>\n\n")
	for _, svc := range services {
		sb.WriteString(fmt.Sprintf("• %s · %d ₽", sanitizeInput(svc.Name), svc.Price))
		if session.IsAdmin() {
			sb.WriteString(fmt.Sprintf(" (выплата %d ₽)", svc.Payout))
		}
		sb.WriteString("\n")
	}
	b.sendHTML(session.ChatID, sb.String())
}

func (b *Bot) startRegistration(ctx context.Context, session *models.Session) {
	if session.Authenticated() {
		b.sendMessage(session.ChatID, "Вы уже вошли в профиль. Чтобы зарегистрировать новый, выйдите: /logout")
		return
	}
	b.setStep(ctx, session.ChatID, models.StepRegisterName, nil)
	b.sendMessage(session.ChatID, "Введите ваше имя:")
}

func (b *Bot) registerName(ctx context.Context, session *models.Session, text string) {
	b.setStep(ctx, session.ChatID, models.StepRegisterLogin, map[string]interface{}{keyName: text})
	b.sendMessage(session.ChatID, "Придумайте логин (латинские буквы и цифры):")
}

func (b *Bot) registerLogin(ctx context.Context, session *models.Session, text string) {
	b.setStep(ctx, session.ChatID, models.StepRegisterPhone, map[string]interface{}{keyLogin: text})
	b.sendMessage(session.ChatID, "Введите номер телефона, например 89991234567:")
}

func (b *Bot) registerPhone(ctx context.Context, session *models.Session, text string) {
	phone := normalizePhone(text)
	if phone == "" {
		b.sendMessage(session.ChatID, "⚠️ Неверный формат номера. Введите 11 цифр, например 89991234567:")
		return
	}
	b.setStep(ctx, session.ChatID, models.StepRegisterPassword, map[string]interface{}{keyPhone: phone})
	b.sendMessage(session.ChatID, "Придумайте пароль (не короче 6 символов):")
}

func (b *Bot) registerPassword(ctx context.Context, session *models.Session, password string) {
	reg := models.Registration{
		Name:     session.GetString(keyName),
		Login:    session.GetString(keyLogin),
		Phone:    session.GetString(keyPhone),
		Password: password,
	}

	user, err := b.users.Register(ctx, reg)
	if err != nil {
		b.resetStep(ctx, session.ChatID)
		b.replyError(ctx, session.ChatID, err, "Registration failed")
		b.sendMessage(session.ChatID, "Попробуйте зарегистрироваться заново: /register")
		return
	}

	if _, err := b.users.Authenticate(ctx, reg.Login, password, session.ChatID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", user.ID).Msg("Failed to bind chat after registration")
	}
	b.signIn(ctx, session, user)
	b.sendMessage(session.ChatID, fmt.Sprintf("✅ Регистрация завершена, %s!", user.Name))
	b.sendMainMenu(session.ChatID, session)
}

func (b *Bot) startLogin(ctx context.Context, session *models.Session) {
	if session.Authenticated() {
		b.sendMainMenu(session.ChatID, session)
		return
	}
	b.setStep(ctx, session.ChatID, models.StepLoginLogin, nil)
	b.sendMessage(session.ChatID, "Введите логин:")
}

func (b *Bot) loginLogin(ctx context.Context, session *models.Session, text string) {
	b.setStep(ctx, session.ChatID, models.StepLoginPassword, map[string]interface{}{keyLogin: text})
	b.sendMessage(session.ChatID, "Введите пароль:")
}

func (b *Bot) loginPassword(ctx context.Context, session *models.Session, password string) {
	user, err := b.users.Authenticate(ctx, session.GetString(keyLogin), password, session.ChatID)
	if err != nil {
		b.resetStep(ctx, session.ChatID)
		b.replyError(ctx, session.ChatID, err, "Login failed")
		b.sendWithKeyboard(session.ChatID, "Попробуйте ещё раз.", startKeyboard())
		return
	}

	b.signIn(ctx, session, user)
	b.sendMessage(session.ChatID, fmt.Sprintf("👋 Здравствуйте, %s!", user.Name))
	b.sendMainMenu(session.ChatID, session)
}

// signIn binds the session to user and clears any wizard data.
func (b *Bot) signIn(ctx context.Context, session *models.Session, user *models.User) {
	session.UserID = user.ID
	session.Role = user.Role
	session.Step = models.StepIdle
	session.Data = nil
	if err := b.stateService.SaveSession(ctx, session); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", session.ChatID).Msg("Failed to save session")
	}
	zerolog.Ctx(ctx).Info().Int64("user_id", user.ID).Int64("chat_id", session.ChatID).Msg("User signed in")
}

func (b *Bot) logout(ctx context.Context, session *models.Session) {
	if err := b.stateService.Logout(ctx, session.ChatID); err != nil {
		b.replyError(ctx, session.ChatID, domain.ErrStorageUnavailable, "Failed to logout")
		return
	}
	b.sendWithKeyboard(session.ChatID, "Вы вышли из профиля.", startKeyboard())
}
