package settings

import (
	"fmt"
	"strings"
	"time"

	"tablebook/internal/models"
)

// Violation is one reason a settings payload was rejected.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries the full violation list for a rejected payload.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Message))
	}
	return "invalid settings: " + strings.Join(parts, "; ")
}

// Seat ceilings for the flat model. The legacy bound applies unless the
// deployment opts into the extended one.
const (
	FlatSeatBoundLegacy   = 100
	FlatSeatBoundExtended = 200
)

const (
	intervalCapacityMax = 200
	slotCeilingMax      = 999
	minutesPerDay       = 24 * 60
)

func violationf(field, format string, args ...interface{}) Violation {
	return Violation{Field: field, Message: fmt.Sprintf(format, args...)}
}

func checkDate(field, value string, out []Violation) []Violation {
	t, err := time.Parse(models.DateLayout, value)
	if err != nil || t.Format(models.DateLayout) != value {
		return append(out, violationf(field, "malformed date %q, expected YYYY-MM-DD", value))
	}
	return out
}

// Validate checks every date string for well-formedness and closure kinds
// for membership in the known set. Empty result means valid.
func (s ClosureSettings) Validate() []Violation {
	var out []Violation
	for i, d := range s.ExplicitDates {
		out = checkDate(fmt.Sprintf("explicit_dates[%d]", i), d, out)
	}
	for _, wd := range s.ClosedWeekdays {
		if wd < 0 || wd > 6 {
			out = append(out, violationf("closed_weekdays", "weekday %d out of range 0..6", wd))
		}
	}
	for i, h := range s.Holidays {
		out = checkDate(fmt.Sprintf("holidays[%d].date", i), h.Date, out)
	}
	for i, sc := range s.ShiftClosures {
		out = checkDate(fmt.Sprintf("shift_closures[%d].date", i), sc.Date, out)
		switch sc.Kind {
		case ClosureFullDay, ClosureLunchOnly, ClosureDinnerOnly:
		default:
			out = append(out, violationf(fmt.Sprintf("shift_closures[%d].kind", i), "unknown kind %q", sc.Kind))
		}
	}
	return out
}

// Validate enforces that dining operates at least one day a week and that
// every weekday and shift name is well-formed. Omakase may be fully paused.
func (s AvailabilitySettings) Validate() []Violation {
	var out []Violation
	if len(s.DiningDays) == 0 {
		out = append(out, violationf("dining_days", "must not be empty"))
	}
	for _, wd := range s.OmakaseDays {
		if wd < 0 || wd > 6 {
			out = append(out, violationf("omakase_days", "weekday %d out of range 0..6", wd))
		}
	}
	for _, wd := range s.DiningDays {
		if wd < 0 || wd > 6 {
			out = append(out, violationf("dining_days", "weekday %d out of range 0..6", wd))
		}
	}
	for wd, shifts := range s.DiningShifts {
		if wd < 0 || wd > 6 {
			out = append(out, violationf("dining_shifts", "weekday %d out of range 0..6", wd))
		}
		for _, sh := range shifts {
			if models.Shift(sh) != models.ShiftLunch && models.Shift(sh) != models.ShiftDinner {
				out = append(out, violationf("dining_shifts", "unknown shift %q for weekday %d", sh, wd))
			}
		}
	}
	return out
}

// Validate applies the legacy flat seat bound. Idempotent: re-validating a
// previously valid model yields no violations.
func (m CapacityModel) Validate() []Violation {
	return m.ValidateWithFlatBound(FlatSeatBoundLegacy)
}

// ValidateWithFlatBound validates the active variant with an explicit flat
// seat ceiling (legacy 100 or extended 200 depending on deployment).
func (m CapacityModel) ValidateWithFlatBound(flatBound int) []Violation {
	switch m.Mode {
	case ModeFlat:
		return m.validateFlat(flatBound)
	case ModeSlots:
		return m.validateSlots()
	case ModeIntervals:
		return m.validateIntervals()
	default:
		return []Violation{violationf("mode", "unknown capacity mode %q", m.Mode)}
	}
}

func (m CapacityModel) validateFlat(bound int) []Violation {
	var out []Violation
	if m.Flat.OmakaseSeats < 0 || m.Flat.OmakaseSeats > bound {
		out = append(out, violationf("flat.omakase_seats", "must be within [0,%d]", bound))
	}
	if m.Flat.DiningSeats < 0 || m.Flat.DiningSeats > bound {
		out = append(out, violationf("flat.dining_seats", "must be within [0,%d]", bound))
	}
	return out
}

func (m CapacityModel) validateSlots() []Violation {
	var out []Violation
	if d := m.SlotGrid.SlotDurationMinutes; d != 15 && d != 30 {
		out = append(out, violationf("slot_grid.slot_duration_minutes", "must be 15 or 30, got %d", d))
	}
	for typ, slots := range m.SlotGrid.Slots {
		seen := make(map[string]bool, len(slots))
		for i, slot := range slots {
			field := fmt.Sprintf("slot_grid.slots.%s[%d]", typ, i)
			if _, err := models.ParseClock(slot.Time); err != nil {
				out = append(out, violationf(field+".time", "%v", err))
				continue
			}
			if seen[slot.Time] {
				out = append(out, violationf(field+".time", "duplicate slot time %s", slot.Time))
			}
			seen[slot.Time] = true
			if slot.MaxCovers < 0 || slot.MaxCovers > slotCeilingMax {
				out = append(out, violationf(field+".max_covers", "must be within [0,%d]", slotCeilingMax))
			}
			if slot.MaxParties < 0 || slot.MaxParties > slotCeilingMax {
				out = append(out, violationf(field+".max_parties", "must be within [0,%d]", slotCeilingMax))
			}
		}
	}
	return out
}

func (m CapacityModel) validateIntervals() []Violation {
	// A span keeps the index of the interval it came from; malformed
	// intervals produce no span, so span position and interval position
	// can diverge.
	type span struct {
		source     int
		start, end int
	}

	var out []Violation
	for typ, intervals := range m.Intervals.Intervals {
		spans := make([]span, 0, len(intervals))
		for i, iv := range intervals {
			field := fmt.Sprintf("intervals.%s[%d]", typ, i)
			start, err := models.ParseClock(iv.Start)
			if err != nil {
				out = append(out, violationf(field+".start", "%v", err))
				continue
			}
			end, err := models.ParseClock(iv.End)
			if err != nil {
				out = append(out, violationf(field+".end", "%v", err))
				continue
			}
			if start == end {
				out = append(out, violationf(field, "start and end must differ"))
				continue
			}
			if iv.Capacity < 0 || iv.Capacity > intervalCapacityMax {
				out = append(out, violationf(field+".capacity", "must be within [0,%d]", intervalCapacityMax))
			}
			// Wraparound: an interval ending at or before its start spans midnight.
			if end <= start {
				end += minutesPerDay
			}
			spans = append(spans, span{source: i, start: start, end: end})
		}
		for i := 0; i < len(spans); i++ {
			for j := i + 1; j < len(spans); j++ {
				if spansOverlap([2]int{spans[i].start, spans[i].end}, [2]int{spans[j].start, spans[j].end}) {
					out = append(out, violationf(
						fmt.Sprintf("intervals.%s", typ),
						"intervals %s and %s overlap", intervals[spans[i].source].ID, intervals[spans[j].source].ID))
				}
			}
		}
	}
	return out
}

// spansOverlap tests [start,end) intersection on minute offsets, checking the
// raw positions and both 24-hour shifted forms so pairs straddling midnight
// are compared on a common clock.
func spansOverlap(a, b [2]int) bool {
	overlap := func(s1, e1, s2, e2 int) bool {
		return s1 < e2 && s2 < e1
	}
	return overlap(a[0], a[1], b[0], b[1]) ||
		overlap(a[0]+minutesPerDay, a[1]+minutesPerDay, b[0], b[1]) ||
		overlap(a[0], a[1], b[0]+minutesPerDay, b[1]+minutesPerDay)
}
