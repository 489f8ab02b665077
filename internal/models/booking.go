package models

import "time"

type Booking struct {
	ID               int64           `json:"id"`
	PublicID         string          `json:"public_id"`
	Type             ReservationType `json:"type"`
	GuestName        string          `json:"guest_name"`
	Phone            string          `json:"phone"`
	Email            string          `json:"email"`
	Date             time.Time       `json:"date"`
	Time             string          `json:"time"` // HH:MM
	PartySize        int             `json:"party_size"`
	Status           string          `json:"status"` // pending, confirmed, seated, completed, cancelled, no_show
	ConfirmationCode string          `json:"confirmation_code,omitempty"`
	CancelReason     string          `json:"cancel_reason,omitempty"`
	PaymentStatus    string          `json:"payment_status,omitempty"`
	ChargeID         string          `json:"charge_id,omitempty"`
	PrepaymentCents  int64           `json:"prepayment_cents,omitempty"`
	RefundPercentage int             `json:"refund_percentage,omitempty"` // cumulative, capped at 100
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Version          int64           `json:"version"`
}

// CountsAgainstCapacity reports whether the booking still occupies seats
// for admission purposes. Cancelled bookings free their seats.
func (b *Booking) CountsAgainstCapacity() bool {
	return b.Status != StatusCancelled
}

// Shift derives the lunch/dinner bucket from the booking time.
func (b *Booking) Shift() (Shift, error) {
	return ShiftForClock(b.Time)
}

// ReservationAt combines date and time into a single instant.
func (b *Booking) ReservationAt() (time.Time, error) {
	minutes, err := ParseClock(b.Time)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := b.Date.Date()
	return time.Date(y, m, d, minutes/60, minutes%60, 0, 0, b.Date.Location()), nil
}
