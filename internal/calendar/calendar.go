// Package calendar answers whether a date, shift, or reservation type is
// open for booking, given closure and availability snapshots.
package calendar

import (
	"time"

	"tablebook/internal/models"
	"tablebook/internal/settings"
)

// Policy resolves closures and weekly type availability. It holds copy-on-read
// snapshots and never mutates them; construct a new Policy per request.
type Policy struct {
	closures     settings.ClosureSettings
	availability settings.AvailabilitySettings
}

func New(closures settings.ClosureSettings, availability settings.AvailabilitySettings) *Policy {
	return &Policy{closures: closures, availability: availability}
}

// IsDateClosed reports whether the whole day is closed: an explicit closed
// date, a recurring closed weekday, a closed holiday, or a full-day shift
// closure.
func (p *Policy) IsDateClosed(date time.Time) bool {
	key := models.DateKey(date)

	for _, d := range p.closures.ExplicitDates {
		if d == key {
			return true
		}
	}
	if settings.WeekdayIn(p.closures.ClosedWeekdays, int(date.Weekday())) {
		return true
	}
	for _, h := range p.closures.Holidays {
		if h.Date == key && h.Closed {
			return true
		}
	}
	for _, sc := range p.closures.ShiftClosures {
		if sc.Date == key && sc.Kind == settings.ClosureFullDay {
			return true
		}
	}
	return false
}

// IsShiftClosed reports whether a specific shift is closed, either because
// the whole day is or because a partial-day closure targets that shift.
func (p *Policy) IsShiftClosed(date time.Time, shift models.Shift) bool {
	if p.IsDateClosed(date) {
		return true
	}

	key := models.DateKey(date)
	for _, sc := range p.closures.ShiftClosures {
		if sc.Date != key {
			continue
		}
		if sc.Kind == settings.ClosureLunchOnly && shift == models.ShiftLunch {
			return true
		}
		if sc.Kind == settings.ClosureDinnerOnly && shift == models.ShiftDinner {
			return true
		}
	}
	return false
}

// IsTypeAvailable reports whether the reservation type is offered on the
// date's weekday. For dining, a non-empty clock ("HH:MM") additionally gates
// on the configured shifts for that weekday; a malformed clock is a
// validation error.
func (p *Policy) IsTypeAvailable(typ models.ReservationType, date time.Time, clock string) (bool, error) {
	weekday := int(date.Weekday())

	switch typ {
	case models.TypeOmakase:
		return settings.WeekdayIn(p.availability.OmakaseDays, weekday), nil

	case models.TypeDining:
		if !settings.WeekdayIn(p.availability.DiningDays, weekday) {
			return false, nil
		}
		shifts, configured := p.availability.DiningShifts[weekday]
		if !configured || clock == "" {
			return true, nil
		}
		shift, err := models.ShiftForClock(clock)
		if err != nil {
			return false, err
		}
		for _, s := range shifts {
			if models.Shift(s) == shift {
				return true, nil
			}
		}
		return false, nil

	default:
		return false, nil
	}
}
