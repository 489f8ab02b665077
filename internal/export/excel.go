// Package export produces offline xlsx booking reports.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"tablebook/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Reservations"

var columns = []string{
	"Date", "Time", "Type", "Guest", "Phone", "Party",
	"Status", "Code", "Payment", "Prepayment", "Refund %",
}

// ExcelWriter renders a date-keyed booking map into a spreadsheet, one row
// per booking with a bold per-day divider.
type ExcelWriter struct {
	logger *zerolog.Logger
}

func NewExcelWriter(logger *zerolog.Logger) *ExcelWriter {
	return &ExcelWriter{logger: logger}
}

func (w *ExcelWriter) WriteBookingsReport(path string, daily map[string][]models.Booking) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	dayStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#F2F2F2"}, Pattern: 1},
	})

	for col, name := range columns {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheetName, cell, name)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	dates := make([]string, 0, len(daily))
	for date := range daily {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	row := 2
	for _, date := range dates {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(sheetName, cell, date)
		last, _ := excelize.CoordinatesToCellName(len(columns), row)
		_ = f.MergeCell(sheetName, cell, last)
		_ = f.SetCellStyle(sheetName, cell, cell, dayStyle)
		row++

		bookings := append([]models.Booking(nil), daily[date]...)
		sort.Slice(bookings, func(i, j int) bool { return bookings[i].Time < bookings[j].Time })

		for i := range bookings {
			w.writeBookingRow(f, row, &bookings[i])
			row++
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 14)
	_ = f.SetColWidth(sheetName, "B", "K", 16)
	_ = f.DeleteSheet("Sheet1")

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}

	w.logger.Info().Str("file_path", path).Int("days", len(dates)).Msg("report written")
	return nil
}

func (w *ExcelWriter) writeBookingRow(f *excelize.File, row int, b *models.Booking) {
	values := []interface{}{
		b.Date.Format(models.DateLayout),
		b.Time,
		string(b.Type),
		b.GuestName,
		b.Phone,
		b.PartySize,
		b.Status,
		b.ConfirmationCode,
		b.PaymentStatus,
		float64(b.PrepaymentCents) / 100,
		b.RefundPercentage,
	}
	for col, v := range values {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		_ = f.SetCellValue(sheetName, cell, v)
	}
}
