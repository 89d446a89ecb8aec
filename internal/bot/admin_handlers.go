package bot

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"autoservice/internal/domain"
	"autoservice/internal/models"

	"github.com/rs/zerolog"
)

type adminHandler func(b *Bot, ctx context.Context, session *models.Session, args []string) error

type adminCommand struct {
	minArgs int
	usage   string
	title   string
	run     adminHandler
}

var (
	adminCommands     map[string]adminCommand
	adminCommandOrder []string
)

func init() {
	table := []struct {
		name string
		cmd  adminCommand
	}{
		{"workers", adminCommand{0, "/workers", "кто из работников сейчас свободен, занят или не работает", (*Bot).adminWorkers}},
		{"addworker", adminCommand{1, "/addworker Имя", "добавить работника", (*Bot).adminAddWorker}},
		{"delworker", adminCommand{1, "/delworker Имя", "удалить работника вместе с графиком и записями", (*Bot).adminDeleteWorker}},
		{"hours", adminCommand{1, "/hours Имя", "график работника", (*Bot).adminHours}},
		{"sethours", adminCommand{4, "/sethours Имя; день 1-7; 09:00; 18:00", "задать рабочие часы на день недели", (*Bot).adminSetHours}},
		{"clearhours", adminCommand{2, "/clearhours Имя; день 1-7", "сделать день недели выходным", (*Bot).adminClearHours}},
		{"addservice", adminCommand{3, "/addservice Название; цена; выплата работнику", "добавить услугу", (*Bot).adminAddService}},
		{"delservice", adminCommand{1, "/delservice Название", "удалить услугу", (*Bot).adminDeleteService}},
		{"setprice", adminCommand{2, "/setprice Название; цена", "изменить цену услуги", (*Bot).adminSetPrice}},
		{"setpayout", adminCommand{2, "/setpayout Название; выплата", "изменить выплату работнику", (*Bot).adminSetPayout}},
		{"book", adminCommand{4, "/book Клиент; Работник; Услуга; ДД.ММ.ГГГГ ЧЧ:ММ", "записать клиента к работнику", (*Bot).adminBook}},
		{"unbook", adminCommand{3, "/unbook клиент|работник; Имя; ДД.ММ.ГГГГ ЧЧ:ММ", "отменить запись", (*Bot).adminUnbook}},
		{"schedule", adminCommand{0, "/schedule [ДД.ММ.ГГГГ; ДД.ММ.ГГГГ]", "записи за период, по умолчанию на сегодня", (*Bot).adminSchedule}},
		{"stats", adminCommand{1, "/stats ДД.ММ.ГГГГ; ДД.ММ.ГГГГ", "статистика работников за период", (*Bot).adminStats}},
		{"export", adminCommand{1, "/export ДД.ММ.ГГГГ; ДД.ММ.ГГГГ", "выгрузить записи и статистику в Excel", (*Bot).adminExport}},
		{"clients", adminCommand{0, "/clients [страница]", "список клиентов", (*Bot).adminClients}},
		{"user", adminCommand{1, "/user Имя", "данные пользователя", (*Bot).adminUserInfo}},
		{"deluser", adminCommand{1, "/deluser Имя", "удалить пользователя", (*Bot).adminDeleteUser}},
	}

	adminCommands = make(map[string]adminCommand, len(table))
	for _, entry := range table {
		adminCommands[entry.name] = entry.cmd
		adminCommandOrder = append(adminCommandOrder, entry.name)
	}
}

func adminHelp() string {
	var sb strings.Builder
	sb.WriteString("Команды администратора (аргументы через «;»):\n")
	for _, name := range adminCommandOrder {
		cmd := adminCommands[name]
		sb.WriteString(fmt.Sprintf("%s - %s\n", cmd.usage, cmd.title))
	}
	return sb.String()
}

func (b *Bot) runAdminCommand(ctx context.Context, session *models.Session, name string, cmd adminCommand, rawArgs string) {
	args := splitArgs(rawArgs)
	if len(args) < cmd.minArgs {
		b.sendMessage(session.ChatID, "Использование: "+cmd.usage)
		return
	}

	if err := cmd.run(b, ctx, session, args); err != nil {
		b.replyError(ctx, session.ChatID, err, "Admin command failed")
		return
	}
	zerolog.Ctx(ctx).Info().Str("command", name).Int64("admin_id", session.UserID).Msg("Admin command executed")
}

func (b *Bot) adminWorkers(ctx context.Context, session *models.Session, _ []string) error {
	overview, err := b.workers.StatusOverview(ctx, b.now())
	if err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>👷 Работники на %s</b>\n", overview.At.In(b.loc).Format(models.DateTimeLayout)))
	writeWorkers(&sb, "🟢 Работают и свободны", overview.WorkingFree)
	writeWorkers(&sb, "🔴 Работают и заняты", overview.WorkingBusy)
	writeWorkers(&sb, "⚪ Не работают", overview.NotWorking)
	b.sendHTML(session.ChatID, sb.String())
	return nil
}

func writeWorkers(sb *strings.Builder, title string, workers []models.Worker) {
	sb.WriteString("\n" + title + ":\n")
	if len(workers) == 0 {
		sb.WriteString("  нет\n")
		return
	}
	for _, w := range workers {
		sb.WriteString("  • " + html.EscapeString(w.Name) + "\n")
	}
}

func (b *Bot) adminAddWorker(ctx context.Context, session *models.Session, args []string) error {
	worker, err := b.workers.Add(ctx, args[0])
	if err != nil {
		return err
	}
	b.sendMessage(session.ChatID, fmt.Sprintf("✅ Работник %s добавлен. Задайте график: /sethours", worker.Name))
	return nil
}

func (b *Bot) adminDeleteWorker(ctx context.Context, session *models.Session, args []string) error {
	if err := b.workers.Delete(ctx, args[0]); err != nil {
		return err
	}
	b.sendMessage(session.ChatID, fmt.Sprintf("✅ Работник %s удален.", args[0]))
	return nil
}

func (b *Bot) adminHours(ctx context.Context, session *models.Session, args []string) error {
	worker, err := b.workers.Resolve(ctx, args[0])
	if err != nil {
		return err
	}
	intervals, err := b.calendar.IntervalsForWorker(ctx, worker.ID)
	if err != nil {
		return err
	}

	if len(intervals) == 0 {
		b.sendMessage(session.ChatID, fmt.Sprintf("У работника %s график не задан.", worker.Name))
		return nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🗓 График: %s\n\n", worker.Name))
	for _, wi := range intervals {
		sb.WriteString(fmt.Sprintf("%s: %s-%s\n", wi.Weekday, wi.Start, wi.End))
	}
	b.sendMessage(session.ChatID, sb.String())
	return nil
}

func (b *Bot) adminSetHours(ctx context.Context, session *models.Session, args []string) error {
	worker, err := b.workers.Resolve(ctx, args[0])
	if err != nil {
		return err
	}
	weekday, err := parseWeekdayArg(args[1])
	if err != nil {
		return err
	}
	start, err := models.ParseClock(args[2])
	if err != nil {
		return domain.NewValidationError("start", err.Error())
	}
	end, err := models.ParseClock(args[3])
	if err != nil {
		return domain.NewValidationError("end", err.Error())
	}

	if err := b.calendar.SetInterval(ctx, worker.ID, weekday, start, end); err != nil {
		return err
	}
	b.sendMessage(session.ChatID, fmt.Sprintf("✅ %s: %s %s-%s", worker.Name, weekday, start, end))
	return nil
}

func (b *Bot) adminClearHours(ctx context.Context, session *models.Session, args []string) error {
	worker, err := b.workers.Resolve(ctx, args[0])
	if err != nil {
		return err
	}
	weekday, err := parseWeekdayArg(args[1])
	if err != nil {
		return err
	}

	if err := b.calendar.ClearInterval(ctx, worker.ID, weekday); err != nil {
		return err
	}
	b.sendMessage(session.ChatID, fmt.Sprintf("✅ %s: %s теперь выходной.", worker.Name, weekday))
	return nil
}

func (b *Bot) adminAddService(ctx context.Context, session *models.Session, args []string) error {
	price, err := parseAmount("price", args[1])
	if err != nil {
		return err
	}
	payout, err := parseAmount("payout", args[2])
	if err != nil {
		return err
	}

	svc, err := b.catalog.Create(ctx, args[0], price, payout)
	if err != nil {
		return err
	}
	b.sendMessage(session.ChatID, fmt.Sprintf("✅ Услуга %s добавлена: %d ₽, выплата %d ₽.", svc.Name, svc.Price, svc.Payout))
	return nil
}

func (b *Bot) adminDeleteService(ctx context.Context, session *models.Session, args []string) error {
	if err := b.catalog.Delete(ctx, args[0]); err != nil {
		return err
	}
	b.sendMessage(session.ChatID, fmt.Sprintf("✅ Услуга %s удалена.", args[0]))
	return nil
}

func (b *Bot) adminSetPrice(ctx context.Context, session *models.Session, args []string) error {
	price, err := parseAmount("price", args[1])
	if err != nil {
		return err
	}
	if err := b.catalog.ChangePrice(ctx, args[0], price); err != nil {
		return err
	}
	b.sendMessage(session.ChatID, fmt.Sprintf("✅ Новая цена услуги %s: %d ₽.", args[0], price))
	return nil
}

func (b *Bot) adminSetPayout(ctx context.Context, session *models.Session, args []string) error {
	payout, err := parseAmount("payout", args[1])
	if err != nil {
		return err
	}
	if err := b.catalog.ChangePayout(ctx, args[0], payout); err != nil {
		return err
	}
	b.sendMessage(session.ChatID, fmt.Sprintf("✅ Новая выплата за услугу %s: %d ₽.", args[0], payout))
	return nil
}

func (b *Bot) adminBook(ctx context.Context, session *models.Session, args []string) error {
	ts, err := b.parseDateTime(args[3])
	if err != nil {
		return err
	}

	res, err := b.reservations.ReserveForAdmin(ctx, args[0], args[1], args[2], ts)
	if err != nil {
		return err
	}
	b.metrics.booked(res.ServiceName)
	b.sendMessage(session.ChatID, fmt.Sprintf("✅ Клиент %s записан к работнику %s на %s (%s, %d ₽).",
		args[0], res.WorkerName, res.Appointment.Date.In(b.loc).Format(models.DateTimeLayout), res.ServiceName, res.Price))
	return nil
}

func (b *Bot) adminUnbook(ctx context.Context, session *models.Session, args []string) error {
	party, err := models.ParseParticipant(strings.ToLower(args[0]))
	if err != nil {
		return domain.NewValidationError("role", "укажите «клиент» или «работник»")
	}
	ts, err := b.parseDateTime(args[2])
	if err != nil {
		return err
	}

	if err := b.reservations.Cancel(ctx, party, args[1], ts); err != nil {
		return err
	}
	b.sendMessage(session.ChatID, fmt.Sprintf("✅ Запись %s на %s отменена.", args[1], ts.Format(models.DateTimeLayout)))
	return nil
}

func (b *Bot) adminSchedule(ctx context.Context, session *models.Session, args []string) error {
	if len(args) == 0 {
		args = []string{b.today().Format(models.DateLayout)}
	}
	start, end, err := b.parsePeriod(args)
	if err != nil {
		return err
	}

	views, err := b.reservations.ListRange(ctx, start, end)
	if err != nil {
		return err
	}
	title := fmt.Sprintf("<b>📅 Записи %s - %s</b>", start.Format(models.DateLayout), end.Format(models.DateLayout))
	if len(views) == 0 {
		b.sendHTML(session.ChatID, title+"\n\nЗаписей нет.")
		return nil
	}

	lines := []string{title, ""}
	for _, v := range views {
		lines = append(lines, formatAppointment(v, b.loc))
	}
	b.sendLongHTML(session.ChatID, lines)
	return nil
}

func (b *Bot) adminStats(ctx context.Context, session *models.Session, args []string) error {
	start, end, err := b.parsePeriod(args)
	if err != nil {
		return err
	}

	stats, err := b.reservations.AggregateStatistics(ctx, start, end)
	if err != nil {
		return err
	}
	b.sendHTML(session.ChatID, formatStatistics(stats, start, end))
	return nil
}

func formatStatistics(stats []*models.WorkerStatistics, start, end time.Time) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>📊 Статистика %s - %s</b>\n\n", start.Format(models.DateLayout), end.Format(models.DateLayout)))
	if len(stats) == 0 {
		sb.WriteString("Записей за период нет.")
		return sb.String()
	}

	var services, revenue, payout int64
	for _, s := range stats {
		sb.WriteString(fmt.Sprintf("👷 %s: услуг %d, выручка %d ₽, выплата %d ₽\n",
			html.EscapeString(s.WorkerName), s.TotalServices, s.TotalPrice, s.TotalPayout))
		services += s.TotalServices
		revenue += s.TotalPrice
		payout += s.TotalPayout
	}
	sb.WriteString(fmt.Sprintf("\nИтого: услуг %d, выручка %d ₽, выплаты %d ₽", services, revenue, payout))
	return sb.String()
}

func (b *Bot) adminExport(ctx context.Context, session *models.Session, args []string) error {
	start, end, err := b.parsePeriod(args)
	if err != nil {
		return err
	}

	path, err := b.exportToExcel(ctx, start, end)
	if err != nil {
		return err
	}
	if b.metrics != nil {
		b.metrics.ExportsTotal.Inc()
	}

	caption := fmt.Sprintf("Записи %s - %s", start.Format(models.DateLayout), end.Format(models.DateLayout))
	if _, err := b.tgService.SendDocument(session.ChatID, path, caption); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("path", path).Msg("Failed to send export")
		b.sendMessage(session.ChatID, "❌ Не удалось отправить файл, он сохранен на сервере: "+path)
	}
	return nil
}

func (b *Bot) adminClients(ctx context.Context, session *models.Session, args []string) error {
	page := 1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return domain.NewValidationError("page", "номер страницы должен быть положительным числом")
		}
		page = n
	}
	b.renderClientsPage(ctx, session.ChatID, 0, page)
	return nil
}

func (b *Bot) adminUserInfo(ctx context.Context, session *models.Session, args []string) error {
	user, err := b.users.Info(ctx, args[0])
	if err != nil {
		return err
	}

	role := "клиент"
	if user.IsAdmin() {
		role = "администратор"
	}
	text := fmt.Sprintf("<b>👤 %s</b>\nЛогин: %s\nТелефон: %s\nРоль: %s\nЗарегистрирован: %s",
		html.EscapeString(user.Name),
		html.EscapeString(user.Login),
		formatPhoneForDisplay(user.Phone),
		role,
		user.CreatedAt.In(b.loc).Format(models.DateLayout),
	)
	b.sendHTML(session.ChatID, text)
	return nil
}

func (b *Bot) adminDeleteUser(ctx context.Context, session *models.Session, args []string) error {
	if err := b.users.Delete(ctx, args[0], session.UserID); err != nil {
		return err
	}
	b.sendMessage(session.ChatID, fmt.Sprintf("✅ Пользователь %s удален.", args[0]))
	return nil
}

func parseWeekdayArg(s string) (models.Weekday, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, domain.NewValidationError("weekday", "день недели задается числом от 1 до 7")
	}
	weekday, err := models.ParseWeekdayNumber(n)
	if err != nil {
		return 0, domain.NewValidationError("weekday", "день недели задается числом от 1 до 7")
	}
	return weekday, nil
}

func parseAmount(field, s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return 0, domain.NewValidationError(field, "сумма должна быть целым неотрицательным числом")
	}
	return n, nil
}
