package policy

import (
	"fmt"
	"time"

	"tablebook/internal/models"
)

// Refund tiers by hours remaining before the reservation. Boundaries are
// inclusive on the lower tier: exactly 48h yields 50, exactly 24h yields 0.
const (
	fullRefundAfter    = 48 * time.Hour
	partialRefundAfter = 24 * time.Hour
)

// RefundPercentage computes the time-tiered refund for a cancellation.
func RefundPercentage(reservationAt, cancelledAt time.Time) int {
	remaining := reservationAt.Sub(cancelledAt)
	switch {
	case remaining > fullRefundAfter:
		return 100
	case remaining > partialRefundAfter:
		return 50
	default:
		return 0
	}
}

// RefundTier applies the tier to omakase only. Dining cancellations carry no
// automatic refund; their refunds ride on manual no-show fee reversal.
func RefundTier(typ models.ReservationType, reservationAt, cancelledAt time.Time) int {
	if typ != models.TypeOmakase {
		return 0
	}
	return RefundPercentage(reservationAt, cancelledAt)
}

// RefundDecision is what the boundary layer executes against the payment
// collaborator. A zero AmountCents decision performs no payment action.
type RefundDecision struct {
	Percentage  int
	AmountCents int64
	ChargeID    string
}

// DecideRefund computes the refund owed on cancellation. A refund is only
// attempted when the booking is paid and a charge reference exists;
// otherwise the cancellation is a status-only change.
func DecideRefund(b *models.Booking, cancelledAt time.Time) (RefundDecision, error) {
	reservationAt, err := b.ReservationAt()
	if err != nil {
		return RefundDecision{}, err
	}

	pct := RefundTier(b.Type, reservationAt, cancelledAt)
	if pct == 0 || b.PaymentStatus != models.PaymentPaid || b.ChargeID == "" || b.PrepaymentCents == 0 {
		return RefundDecision{Percentage: pct}, nil
	}

	return RefundDecision{
		Percentage:  pct,
		AmountCents: b.PrepaymentCents * int64(pct) / 100,
		ChargeID:    b.ChargeID,
	}, nil
}

// ApplyRefund accumulates a processed refund percentage on the booking.
// Percentages sum across partial refunds, capped at 100; payment status
// moves to refunded at 100 and partially_refunded below.
func ApplyRefund(b *models.Booking, percentage int) {
	if percentage <= 0 {
		return
	}
	b.RefundPercentage += percentage
	if b.RefundPercentage >= 100 {
		b.RefundPercentage = 100
		b.PaymentStatus = models.PaymentRefunded
	} else {
		b.PaymentStatus = models.PaymentPartiallyRefunded
	}
}

// transitions is the booking status machine. cancelled -> confirmed is
// re-confirmation and must issue a fresh confirmation code.
var transitions = map[string][]string{
	models.StatusPending:   {models.StatusConfirmed, models.StatusCancelled},
	models.StatusConfirmed: {models.StatusSeated, models.StatusCancelled, models.StatusNoShow},
	models.StatusSeated:    {models.StatusCompleted, models.StatusNoShow},
	models.StatusCancelled: {models.StatusConfirmed},
	models.StatusCompleted: nil,
	models.StatusNoShow:    nil,
}

// CanTransition reports whether a status change is allowed.
func CanTransition(from, to string) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition moves the booking to a new status, enforcing the machine and
// issuing a confirmation code where the target state requires one.
func Transition(b *models.Booking, to string, now time.Time) error {
	if !CanTransition(b.Status, to) {
		return fmt.Errorf("cannot transition booking from %s to %s", b.Status, to)
	}

	reconfirm := b.Status == models.StatusCancelled && to == models.StatusConfirmed
	if to == models.StatusConfirmed && (b.ConfirmationCode == "" || reconfirm) {
		b.ConfirmationCode = NewConfirmationCode()
	}

	b.Status = to
	b.UpdatedAt = now
	return nil
}
