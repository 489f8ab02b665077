package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tablebook/internal/models"
)

const bookingColumns = `id, public_id, type, guest_name, phone, email, date, time, party_size,
    status, confirmation_code, cancel_reason, payment_status, charge_id,
    prepayment_cents, refund_percentage, created_at, updated_at, version`

func scanBooking(row interface{ Scan(...interface{}) error }) (*models.Booking, error) {
	var b models.Booking
	var typ, dateStr string
	var code, reason, chargeID sql.NullString
	err := row.Scan(
		&b.ID, &b.PublicID, &typ, &b.GuestName, &b.Phone, &b.Email, &dateStr, &b.Time,
		&b.PartySize, &b.Status, &code, &reason, &b.PaymentStatus, &chargeID,
		&b.PrepaymentCents, &b.RefundPercentage, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	b.Type = models.ReservationType(typ)
	b.ConfirmationCode = code.String
	b.CancelReason = reason.String
	b.ChargeID = chargeID.String
	date, err := time.Parse(models.DateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt booking date %q: %w", dateStr, err)
	}
	b.Date = date
	return &b, nil
}

// GetBooking returns a booking by its internal id.
func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking %d: %w", id, err)
	}
	return b, nil
}

// GetBookingByPublicID returns a booking by its public uuid.
func (db *DB) GetBookingByPublicID(ctx context.Context, publicID string) (*models.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE public_id = ?`, publicID)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking %s: %w", publicID, err)
	}
	return b, nil
}

// ListBookings returns every booking for a date and type, including
// cancelled ones; callers filter by status as needed.
func (db *DB) ListBookings(ctx context.Context, date time.Time, typ models.ReservationType) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE date = ? AND type = ? ORDER BY time, id`,
		date.Format(models.DateLayout), string(typ))
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// GetBookingsByDateRange returns bookings with dates in [start, end].
func (db *DB) GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE date >= ? AND date <= ? ORDER BY date, time, id`,
		start.Format(models.DateLayout), end.Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings by range: %w", err)
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// GetDailyBookings groups a date range's bookings by their YYYY-MM-DD key.
func (db *DB) GetDailyBookings(ctx context.Context, start, end time.Time) (map[string][]models.Booking, error) {
	bookings, err := db.GetBookingsByDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	daily := make(map[string][]models.Booking)
	for _, b := range bookings {
		key := models.DateKey(b.Date)
		daily[key] = append(daily[key], b)
	}
	return daily, nil
}

// CreateReservationWithLock inserts a booking after re-running the admission
// decision inside the insert transaction. admit receives the date+type
// bookings as read under the transaction and returns ErrNotAvailable (or any
// error) to veto the insert. This closes the check-then-insert race the
// advisory admission check cannot.
func (db *DB) CreateReservationWithLock(ctx context.Context, booking *models.Booking, admit func(existing []models.Booking) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE date = ? AND type = ? ORDER BY time, id`,
		booking.Date.Format(models.DateLayout), string(booking.Type))
	if err != nil {
		return fmt.Errorf("failed to read bookings in tx: %w", err)
	}
	var existing []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan booking in tx: %w", err)
		}
		existing = append(existing, *b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	if admit != nil {
		if err := admit(existing); err != nil {
			return err
		}
	}

	now := time.Now()
	result, err := tx.ExecContext(ctx, `
        INSERT INTO bookings (
            public_id, type, guest_name, phone, email, date, time, party_size,
            status, confirmation_code, payment_status, charge_id,
            prepayment_cents, refund_percentage, created_at, updated_at, version
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.PublicID, string(booking.Type), booking.GuestName, booking.Phone,
		booking.Email, booking.Date.Format(models.DateLayout), booking.Time,
		booking.PartySize, booking.Status, nullable(booking.ConfirmationCode),
		booking.PaymentStatus, nullable(booking.ChargeID),
		booking.PrepaymentCents, booking.RefundPercentage, now, now, 1,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}

	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	return nil
}

// UpdateBookingStatusWithVersion applies an optimistic status update; the
// version must match the caller's read or ErrConcurrentModification is
// returned. Confirmation code, cancel reason and the payment fields ride
// along so lifecycle transitions persist atomically; a no-show fee charge
// must survive with its charge reference or it can never be reversed.
func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, b *models.Booking, expectedVersion int64) error {
	result, err := db.ExecContext(ctx, `
        UPDATE bookings SET
            status = ?, confirmation_code = ?, cancel_reason = ?,
            payment_status = ?, charge_id = ?, prepayment_cents = ?,
            refund_percentage = ?, updated_at = ?, version = version + 1
        WHERE id = ? AND version = ?`,
		b.Status, nullable(b.ConfirmationCode), nullable(b.CancelReason),
		b.PaymentStatus, nullable(b.ChargeID), b.PrepaymentCents,
		b.RefundPercentage, time.Now(), b.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking %d: %w", b.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		if _, getErr := db.GetBooking(ctx, b.ID); getErr != nil {
			return getErr
		}
		return ErrConcurrentModification
	}
	b.Version = expectedVersion + 1
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
