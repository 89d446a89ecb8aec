package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"autoservice/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var errRowNotFound = errors.New("appointment row not found")

var journalHeader = []interface{}{"ID", "Дата", "Клиент", "Работник", "Услуга", "Цена"}

// JournalSheets mirrors appointments into one sheet of a spreadsheet, one row
// per appointment keyed by the id in column A.
type JournalSheets struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	loc           *time.Location
	rowCache      map[int64]int
	cacheMu       sync.RWMutex
	logger        *zerolog.Logger
}

func NewJournalSheets(ctx context.Context, credentialsFile, spreadsheetID, sheetName string, loc *time.Location, logger *zerolog.Logger) (*JournalSheets, error) {
	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	logger.Info().Str("account", config.Email).Str("spreadsheet", spreadsheetID).Msg("Google Sheets journal configured")
	return newJournalSheets(srv, spreadsheetID, sheetName, loc, logger), nil
}

func newJournalSheets(srv *sheets.Service, spreadsheetID, sheetName string, loc *time.Location, logger *zerolog.Logger) *JournalSheets {
	if loc == nil {
		loc = time.Local
	}
	return &JournalSheets{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		loc:           loc,
		rowCache:      make(map[int64]int),
		logger:        logger,
	}
}

// ServiceAccountEmail returns client_email from a service account key file.
func ServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

// Prepare writes the header row and loads the row index cache.
func (s *JournalSheets) Prepare(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, s.rangeOf("A1:F1"), &sheets.ValueRange{
		Values: [][]interface{}{journalHeader},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write journal header: %w", err)
	}
	return s.WarmUpCache(ctx)
}

// WarmUpCache populates the row index cache by reading the entire ID column.
func (s *JournalSheets) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.rangeOf("A:A")).Context(ctx).Do()
	if err != nil {
		return err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[int64]int)
	for i, row := range resp.Values {
		if id, ok := cellID(row); ok {
			s.rowCache[id] = i + 1
		}
	}
	return nil
}

// UpsertAppointment rewrites the appointment row or appends a new one.
func (s *JournalSheets) UpsertAppointment(ctx context.Context, appointment *models.AppointmentView) error {
	if appointment == nil || appointment.ID == 0 {
		return errors.New("appointment is required")
	}

	rowIdx, err := s.findRow(ctx, appointment.ID)
	if errors.Is(err, errRowNotFound) {
		return s.appendRow(ctx, appointment)
	}
	if err != nil {
		return err
	}

	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, s.rangeOf(fmt.Sprintf("A%d:F%d", rowIdx, rowIdx)), &sheets.ValueRange{
		Values: [][]interface{}{s.rowValues(appointment)},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// DeleteAppointmentRow clears the row of a cancelled appointment. A missing row is not an error.
func (s *JournalSheets) DeleteAppointmentRow(ctx context.Context, appointmentID int64) error {
	rowIdx, err := s.findRow(ctx, appointmentID)
	if errors.Is(err, errRowNotFound) {
		s.logger.Debug().Int64("appointment_id", appointmentID).Msg("journal row already absent")
		return nil
	}
	if err != nil {
		return err
	}

	_, err = s.service.Spreadsheets.Values.Clear(s.spreadsheetID, s.rangeOf(fmt.Sprintf("A%d:F%d", rowIdx, rowIdx)), &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err == nil {
		s.deleteCachedRow(appointmentID)
	}
	return err
}

func (s *JournalSheets) appendRow(ctx context.Context, appointment *models.AppointmentView) error {
	resp, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, s.rangeOf("A:A"), &sheets.ValueRange{
		Values: [][]interface{}{s.rowValues(appointment)},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return err
	}
	if resp.Updates != nil {
		if row, ok := firstRow(resp.Updates.UpdatedRange); ok {
			s.setCachedRow(appointment.ID, row)
		}
	}
	return nil
}

// findRow locates the 1-based row index of appointmentID in column A.
func (s *JournalSheets) findRow(ctx context.Context, appointmentID int64) (int, error) {
	if row, ok := s.getCachedRow(appointmentID); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.rangeOf("A:A")).Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	for i, row := range resp.Values {
		if id, ok := cellID(row); ok && id == appointmentID {
			s.setCachedRow(appointmentID, i+1)
			return i + 1, nil
		}
	}
	return 0, errRowNotFound
}

func (s *JournalSheets) rowValues(a *models.AppointmentView) []interface{} {
	return []interface{}{
		a.ID,
		a.Date.In(s.loc).Format("02.01.2006 15:04"),
		a.ClientName,
		a.WorkerName,
		a.ServiceName,
		a.Price,
	}
}

func (s *JournalSheets) rangeOf(cells string) string {
	return s.sheetName + "!" + cells
}

func (s *JournalSheets) getCachedRow(id int64) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *JournalSheets) setCachedRow(id int64, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

func (s *JournalSheets) deleteCachedRow(id int64) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	delete(s.rowCache, id)
}

func cellID(row []interface{}) (int64, bool) {
	if len(row) == 0 {
		return 0, false
	}
	var id int64
	switch v := row[0].(type) {
	case float64:
		id = int64(v)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		id = parsed
	}
	return id, id > 0
}

// firstRow extracts 10 from "Journal!A10:F10".
func firstRow(updatedRange string) (int, bool) {
	if i := strings.LastIndex(updatedRange, "!"); i >= 0 {
		updatedRange = updatedRange[i+1:]
	}
	if i := strings.Index(updatedRange, ":"); i >= 0 {
		updatedRange = updatedRange[:i]
	}
	digits := strings.TrimLeft(updatedRange, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	row, err := strconv.Atoi(digits)
	if err != nil || row <= 0 {
		return 0, false
	}
	return row, true
}
