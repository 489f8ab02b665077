package settings

import (
	"tablebook/internal/models"
)

// Storage keys for each settings concern. Payloads are JSON, one document
// per key, never partially applied.
const (
	KeyClosure      = "closure_settings"
	KeyAvailability = "availability_settings"
	KeyCapacity     = "capacity_model"
	KeyConfirmation = "confirmation_settings"
)

// Holiday marks a calendar date that may close the restaurant.
type Holiday struct {
	Date   string `json:"date" yaml:"date"`
	Closed bool   `json:"closed" yaml:"closed"`
}

// ShiftClosure closes all or part of a single day.
type ShiftClosure struct {
	Date string `json:"date" yaml:"date"`
	Kind string `json:"kind" yaml:"kind"` // full_day, lunch_only, dinner_only
}

const (
	ClosureFullDay    = "full_day"
	ClosureLunchOnly  = "lunch_only"
	ClosureDinnerOnly = "dinner_only"
)

// ClosureSettings describes when the restaurant is closed.
type ClosureSettings struct {
	ExplicitDates  []string       `json:"explicit_dates" yaml:"explicit_dates"`
	ClosedWeekdays []int          `json:"closed_weekdays" yaml:"closed_weekdays"` // 0=Sunday
	Holidays       []Holiday      `json:"holidays" yaml:"holidays"`
	ShiftClosures  []ShiftClosure `json:"shift_closures" yaml:"shift_closures"`
}

// AvailabilitySettings describes the weekly offering per reservation type.
type AvailabilitySettings struct {
	OmakaseDays []int `json:"omakase_days" yaml:"omakase_days"`
	// DiningDays must never be empty; dining operates at least one day a week.
	DiningDays   []int            `json:"dining_days" yaml:"dining_days"`
	DiningShifts map[int][]string `json:"dining_shifts,omitempty" yaml:"dining_shifts,omitempty"` // weekday -> shifts
}

// ConfirmationSettings carries the admin-level auto-confirm overrides.
// Nil pointers mean "not set here"; resolution falls through to the next tier.
type ConfirmationSettings struct {
	OmakaseAutoConfirm *bool `json:"omakase_auto_confirm,omitempty" yaml:"omakase_auto_confirm,omitempty"`
	DiningAutoConfirm  *bool `json:"dining_auto_confirm,omitempty" yaml:"dining_auto_confirm,omitempty"`
}

// Capacity model modes.
const (
	ModeFlat      = "flat"
	ModeSlots     = "slots"
	ModeIntervals = "intervals"
)

// FlatCapacity is one seat ceiling per day, per type.
type FlatCapacity struct {
	OmakaseSeats int `json:"omakase_seats" yaml:"omakase_seats"`
	DiningSeats  int `json:"dining_seats" yaml:"dining_seats"`
}

// Slot is a fixed-width time bucket with its own covers/parties ceiling.
type Slot struct {
	Time       string `json:"time" yaml:"time"` // HH:MM
	MaxCovers  int    `json:"max_covers" yaml:"max_covers"`
	MaxParties int    `json:"max_parties" yaml:"max_parties"`
	Enabled    bool   `json:"enabled" yaml:"enabled"`
}

// SlotGridCapacity is an ordered grid of slots per reservation type.
type SlotGridCapacity struct {
	SlotDurationMinutes int                               `json:"slot_duration_minutes" yaml:"slot_duration_minutes"` // 15 or 30
	Slots               map[models.ReservationType][]Slot `json:"slots" yaml:"slots"`
}

// TimeInterval is an admin-defined [start,end) range with a capacity ceiling.
// An interval whose end is not after its start spans past midnight.
type TimeInterval struct {
	ID       string `json:"id" yaml:"id"`
	Start    string `json:"start" yaml:"start"` // HH:MM
	End      string `json:"end" yaml:"end"`     // HH:MM
	Capacity int    `json:"capacity" yaml:"capacity"`
}

// IntervalCapacity holds arbitrary intervals per reservation type.
type IntervalCapacity struct {
	Intervals map[models.ReservationType][]TimeInterval `json:"intervals" yaml:"intervals"`
}

// CapacityModel is a tagged union over the three interchangeable capacity
// representations. Only the variant selected by Mode is consulted.
type CapacityModel struct {
	Mode      string           `json:"mode" yaml:"mode"`
	Flat      FlatCapacity     `json:"flat,omitempty" yaml:"flat,omitempty"`
	SlotGrid  SlotGridCapacity `json:"slot_grid,omitempty" yaml:"slot_grid,omitempty"`
	Intervals IntervalCapacity `json:"intervals,omitempty" yaml:"intervals,omitempty"`
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// WeekdayIn reports membership of a weekday (0=Sunday) in a configured set.
func WeekdayIn(days []int, day int) bool {
	return containsInt(days, day)
}
