package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"tablebook/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var bookingHeaders = []interface{}{
	"ID", "Public ID", "Type", "Guest", "Phone", "Email",
	"Date", "Time", "Party", "Status", "Code",
	"Payment", "Prepayment", "Refund %", "Created At",
}

// SheetsService mirrors bookings into a Google spreadsheet the owner reads.
type SheetsService struct {
	service   *sheets.Service
	sheetID   string
	sheetName string
}

// NewSheetsService builds the client from a service account credentials file.
func NewSheetsService(ctx context.Context, credentialsFile, sheetID, sheetName string) (*SheetsService, error) {
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

	if sheetName == "" {
		sheetName = "Bookings"
	}

	return &SheetsService{
		service:   srv,
		sheetID:   sheetID,
		sheetName: sheetName,
	}, nil
}

// TestConnection проверяет доступ к таблице броней
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.sheetID, s.sheetName+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// ServiceAccountEmail возвращает email сервисного аккаунта для выдачи доступа
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

// ReplaceBookings rewrites the sheet with a header row and the given
// bookings. Used by the range export task for a full refresh.
func (s *SheetsService) ReplaceBookings(ctx context.Context, bookings []models.Booking) error {
	values := [][]interface{}{bookingHeaders}
	for i := range bookings {
		values = append(values, bookingRow(&bookings[i]))
	}

	clearRange := s.sheetName + "!A:O"
	if _, err := s.service.Spreadsheets.Values.Clear(s.sheetID, clearRange, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet: %w", err)
	}

	vr := &sheets.ValueRange{Values: values}
	_, err := s.service.Spreadsheets.Values.
		Update(s.sheetID, s.sheetName+"!A1", vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update sheet: %w", err)
	}
	return nil
}

// AppendBooking adds one booking row at the bottom of the sheet.
func (s *SheetsService) AppendBooking(ctx context.Context, booking *models.Booking) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{bookingRow(booking)}}
	_, err := s.service.Spreadsheets.Values.
		Append(s.sheetID, s.sheetName+"!A1", vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append booking %d: %w", booking.ID, err)
	}
	return nil
}

func bookingRow(b *models.Booking) []interface{} {
	return []interface{}{
		b.ID,
		b.PublicID,
		string(b.Type),
		b.GuestName,
		b.Phone,
		b.Email,
		b.Date.Format(models.DateLayout),
		b.Time,
		b.PartySize,
		b.Status,
		b.ConfirmationCode,
		b.PaymentStatus,
		b.PrepaymentCents,
		b.RefundPercentage,
		b.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
