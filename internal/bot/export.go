package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"autoservice/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	appointmentsSheet = "Записи"
	statisticsSheet   = "Статистика"
	defaultExportDir  = "exports"
)

var appointmentHeaders = []string{"Дата", "Время", "Клиент", "Работник", "Услуга", "Цена"}

var statisticsHeaders = []string{"Работник", "Услуг", "Выручка", "Выплата"}

// exportToExcel создает Excel файл с записями и статистикой за период
func (b *Bot) exportToExcel(ctx context.Context, start, end time.Time) (string, error) {
	dir := b.config.Exports.Path
	if dir == "" {
		dir = defaultExportDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	views, err := b.reservations.ListRange(ctx, start, end)
	if err != nil {
		return "", fmt.Errorf("error getting appointments: %w", err)
	}
	stats, err := b.reservations.AggregateStatistics(ctx, start, end)
	if err != nil {
		return "", fmt.Errorf("error getting statistics: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", appointmentsSheet); err != nil {
		return "", fmt.Errorf("error renaming sheet: %w", err)
	}
	if _, err := f.NewSheet(statisticsSheet); err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return "", fmt.Errorf("error creating style: %w", err)
	}

	if err := b.writeAppointments(f, headerStyle, views); err != nil {
		return "", err
	}
	if err := writeStatistics(f, headerStyle, stats); err != nil {
		return "", err
	}

	fileName := fmt.Sprintf("appointments_%s_to_%s.xlsx",
		start.Format(models.ISODateLayout),
		end.Format(models.ISODateLayout))
	filePath := filepath.Join(dir, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	zerolog.Ctx(ctx).Info().Str("file_path", filePath).Int("appointments", len(views)).Msg("Excel file created")
	return filePath, nil
}

func (b *Bot) writeAppointments(f *excelize.File, headerStyle int, views []*models.AppointmentView) error {
	if err := writeHeader(f, appointmentsSheet, appointmentHeaders, headerStyle); err != nil {
		return err
	}

	for i, v := range views {
		row := i + 2
		local := v.Date.In(b.loc)
		values := []interface{}{
			local.Format(models.DateLayout),
			local.Format("15:04"),
			v.ClientName,
			v.WorkerName,
			v.ServiceName,
			v.Price,
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(appointmentsSheet, cell, &values); err != nil {
			return fmt.Errorf("error writing row %d: %w", row, err)
		}
	}

	_ = f.SetColWidth(appointmentsSheet, "A", "B", 12)
	_ = f.SetColWidth(appointmentsSheet, "C", "E", 25)
	_ = f.SetColWidth(appointmentsSheet, "F", "F", 10)
	return nil
}

func writeStatistics(f *excelize.File, headerStyle int, stats []*models.WorkerStatistics) error {
	if err := writeHeader(f, statisticsSheet, statisticsHeaders, headerStyle); err != nil {
		return err
	}

	var services, revenue, payout int64
	row := 2
	for _, s := range stats {
		values := []interface{}{s.WorkerName, s.TotalServices, s.TotalPrice, s.TotalPayout}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(statisticsSheet, cell, &values); err != nil {
			return fmt.Errorf("error writing statistics row %d: %w", row, err)
		}
		services += s.TotalServices
		revenue += s.TotalPrice
		payout += s.TotalPayout
		row++
	}

	totals := []interface{}{"Итого", services, revenue, payout}
	cell, _ := excelize.CoordinatesToCellName(1, row)
	if err := f.SetSheetRow(statisticsSheet, cell, &totals); err != nil {
		return fmt.Errorf("error writing totals: %w", err)
	}

	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(totals), row)
		_ = f.SetCellStyle(statisticsSheet, cell, last, boldStyle)
	}

	_ = f.SetColWidth(statisticsSheet, "A", "A", 25)
	_ = f.SetColWidth(statisticsSheet, "B", "D", 12)
	return nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("error writing header: %w", err)
		}
	}
	first, _ := excelize.CoordinatesToCellName(1, 1)
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	return f.SetCellStyle(sheet, first, last, style)
}
