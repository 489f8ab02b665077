// Package admission decides whether a reservation request fits under the
// configured calendar and capacity constraints.
package admission

import (
	"time"

	"tablebook/internal/calendar"
	"tablebook/internal/capacity"
	"tablebook/internal/models"
	"tablebook/internal/settings"
)

// Reason classifies why a request was rejected.
type Reason string

const (
	ReasonPastDate             = Reason("past_date")
	ReasonClosedDate           = Reason("closed_date")
	ReasonTypeUnavailable      = Reason("type_unavailable")
	ReasonInsufficientCapacity = Reason("insufficient_capacity")
)

// Request is a candidate reservation.
type Request struct {
	Type      models.ReservationType
	Date      time.Time
	Time      string // HH:MM
	PartySize int
}

// Decision is the typed outcome of an admission check. Rejection is a normal
// business outcome, not an error.
type Decision struct {
	Accepted       bool   `json:"accepted"`
	Reason         Reason `json:"reason,omitempty"`
	TotalCapacity  int    `json:"total_capacity"`
	ReservedSeats  int    `json:"reserved_seats"`
	AvailableSeats int    `json:"available_seats"`
	Shortfall      int    `json:"shortfall,omitempty"`
}

// Controller evaluates requests against settings snapshots. It is stateless
// and reentrant; callers supply the current bookings for the requested date.
type Controller struct {
	cal   *calendar.Policy
	model settings.CapacityModel
}

func NewController(cal *calendar.Policy, model settings.CapacityModel) *Controller {
	return &Controller{cal: cal, model: model}
}

// Check runs the admission pipeline: past-date gate, closure resolution,
// type availability, then the capacity sum. existing should hold the date's
// bookings as read from the store; cancelled ones are skipped here.
//
// The result is advisory: two concurrent checks can both pass. The storage
// layer must repeat the capacity comparison inside its insert transaction.
func (c *Controller) Check(existing []models.Booking, req Request, now time.Time) (Decision, error) {
	totalCapacity, err := capacity.At(c.model, req.Type, req.Time)
	if err != nil {
		return Decision{}, err
	}

	reserved, err := c.reservedSeats(existing, req)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{
		TotalCapacity:  totalCapacity,
		ReservedSeats:  reserved,
		AvailableSeats: totalCapacity - reserved,
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if req.Date.Before(today) {
		d.Reason = ReasonPastDate
		return d, nil
	}

	shift, err := models.ShiftForClock(req.Time)
	if err != nil {
		return Decision{}, err
	}
	if c.cal.IsShiftClosed(req.Date, shift) {
		d.Reason = ReasonClosedDate
		return d, nil
	}

	available, err := c.cal.IsTypeAvailable(req.Type, req.Date, req.Time)
	if err != nil {
		return Decision{}, err
	}
	if !available {
		d.Reason = ReasonTypeUnavailable
		return d, nil
	}

	if d.AvailableSeats < req.PartySize {
		d.Reason = ReasonInsufficientCapacity
		d.Shortfall = req.PartySize - d.AvailableSeats
		return d, nil
	}

	d.Accepted = true
	return d, nil
}

// reservedSeats sums party sizes of non-cancelled bookings that compete for
// the same capacity bucket as the request. Under the flat model every
// booking of the type counts; slot and interval models count only bookings
// in the query's bucket.
func (c *Controller) reservedSeats(existing []models.Booking, req Request) (int, error) {
	sum := 0
	for i := range existing {
		b := &existing[i]
		if !b.CountsAgainstCapacity() {
			continue
		}
		if b.Type != req.Type || !models.SameDate(b.Date, req.Date) {
			continue
		}
		same, err := capacity.SameBucket(c.model, req.Type, req.Time, b.Time)
		if err != nil {
			// A stored booking with an unparsable time should not block new
			// admissions; it simply cannot be attributed to a bucket.
			continue
		}
		if same {
			sum += b.PartySize
		}
	}
	return sum, nil
}
