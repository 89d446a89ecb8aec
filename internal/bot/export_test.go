package bot

import (
	"path/filepath"
	"testing"
	"time"

	"autoservice/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportToExcel(t *testing.T) {
	f := newAdminFixture(t)
	f.reservations.rangeViews = []*models.AppointmentView{
		{ClientName: "Иван", WorkerName: "Петр", ServiceName: "Мойка", Price: 500, Date: time.Date(2025, 3, 4, 9, 0, 0, 0, testLoc)},
		{ClientName: "Анна", WorkerName: "Олег", ServiceName: "Шиномонтаж", Price: 2000, Date: time.Date(2025, 3, 5, 16, 0, 0, 0, testLoc)},
	}
	f.reservations.stats = []*models.WorkerStatistics{
		{WorkerName: "Олег", TotalServices: 1, TotalPrice: 2000, TotalPayout: 800},
		{WorkerName: "Петр", TotalServices: 1, TotalPrice: 500, TotalPayout: 200},
	}

	f.command(adminChat, "/export 01.03.2025; 31.03.2025")

	last := f.tg.last()
	require.NotEmpty(t, last.document)
	assert.Equal(t, "Записи 01.03.2025 - 31.03.2025", last.text)
	assert.Equal(t, filepath.Join(f.cfg.Exports.Path, "appointments_2025-03-01_to_2025-03-31.xlsx"), last.document)

	file, err := excelize.OpenFile(last.document)
	require.NoError(t, err)
	defer file.Close()

	assert.Equal(t, []string{appointmentsSheet, statisticsSheet}, file.GetSheetList())

	rows, err := file.GetRows(appointmentsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, appointmentHeaders, rows[0])
	assert.Equal(t, []string{"04.03.2025", "09:00", "Иван", "Петр", "Мойка", "500"}, rows[1])
	assert.Equal(t, []string{"05.03.2025", "16:00", "Анна", "Олег", "Шиномонтаж", "2000"}, rows[2])

	stats, err := file.GetRows(statisticsSheet)
	require.NoError(t, err)
	require.Len(t, stats, 4)
	assert.Equal(t, statisticsHeaders, stats[0])
	assert.Equal(t, []string{"Олег", "1", "2000", "800"}, stats[1])
	assert.Equal(t, []string{"Итого", "2", "2500", "1000"}, stats[3])
}

func TestExportToExcel_Empty(t *testing.T) {
	f := newBotFixture(t)
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, testLoc)

	path, err := f.bot.exportToExcel(t.Context(), start, start.AddDate(0, 0, 1).Add(-time.Second))
	require.NoError(t, err)

	file, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer file.Close()

	total, err := file.GetCellValue(statisticsSheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "Итого", total)
	assert.Equal(t, "appointments_2025-03-01_to_2025-03-01.xlsx", filepath.Base(path))
}

func TestExportRequiresPeriod(t *testing.T) {
	f := newAdminFixture(t)

	f.command(adminChat, "/export 31.02.2025")
	assert.Contains(t, f.tg.last().text, "неверная дата")
	assert.Empty(t, f.tg.last().document)
}
