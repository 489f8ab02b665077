package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ReservationType is the booking category offered by the restaurant.
type ReservationType string

const (
	TypeOmakase ReservationType = "omakase"
	TypeDining  ReservationType = "dining"
)

// ReservationTypes lists every supported type, in display order.
var ReservationTypes = []ReservationType{TypeOmakase, TypeDining}

func ParseReservationType(s string) (ReservationType, error) {
	switch ReservationType(strings.ToLower(strings.TrimSpace(s))) {
	case TypeOmakase:
		return TypeOmakase, nil
	case TypeDining:
		return TypeDining, nil
	default:
		return "", fmt.Errorf("unknown reservation type: %q", s)
	}
}

// Shift is the coarse time-of-day bucket used for availability gating.
type Shift string

const (
	ShiftLunch  Shift = "lunch"
	ShiftDinner Shift = "dinner"
)

// LunchDinnerBoundaryHour splits the day into lunch and dinner shifts.
// Times before 15:00 count as lunch.
const LunchDinnerBoundaryHour = 15

// ParseClock converts a "HH:MM" string to minutes since midnight.
func ParseClock(clock string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(clock), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", clock)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid time %q: bad hour", clock)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid time %q: bad minute", clock)
	}
	return hour*60 + minute, nil
}

// ShiftForClock classifies a "HH:MM" time into lunch or dinner.
func ShiftForClock(clock string) (Shift, error) {
	minutes, err := ParseClock(clock)
	if err != nil {
		return "", err
	}
	if minutes < LunchDinnerBoundaryHour*60 {
		return ShiftLunch, nil
	}
	return ShiftDinner, nil
}

// ParseDate parses a calendar date in YYYY-MM-DD form.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// DateKey formats a time as the canonical YYYY-MM-DD key.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// SameDate reports whether two instants fall on the same calendar day.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
