// Package capacity resolves seat ceilings for a query instant across the
// three interchangeable capacity representations.
package capacity

import (
	"fmt"

	"tablebook/internal/models"
	"tablebook/internal/settings"
)

// At returns the applicable seat ceiling for a reservation type at a wall
// clock time, dispatching on the active capacity variant. A time that lands
// in no enabled slot or interval yields zero capacity.
func At(model settings.CapacityModel, typ models.ReservationType, clock string) (int, error) {
	switch model.Mode {
	case settings.ModeFlat:
		if typ == models.TypeOmakase {
			return model.Flat.OmakaseSeats, nil
		}
		return model.Flat.DiningSeats, nil

	case settings.ModeSlots:
		slot, ok, err := matchSlot(model.SlotGrid, typ, clock)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, nil
		}
		return slot.MaxCovers, nil

	case settings.ModeIntervals:
		iv, ok, err := matchInterval(model.Intervals, typ, clock)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, nil
		}
		return iv.Capacity, nil

	default:
		return 0, fmt.Errorf("unknown capacity mode %q", model.Mode)
	}
}

// SameBucket reports whether two clock times fall in the same capacity
// bucket: always for the flat model, same slot for the grid, same interval
// for intervals. Admission sums only bookings sharing the query's bucket.
func SameBucket(model settings.CapacityModel, typ models.ReservationType, clockA, clockB string) (bool, error) {
	switch model.Mode {
	case settings.ModeFlat:
		return true, nil

	case settings.ModeSlots:
		a, okA, err := matchSlot(model.SlotGrid, typ, clockA)
		if err != nil {
			return false, err
		}
		b, okB, err := matchSlot(model.SlotGrid, typ, clockB)
		if err != nil {
			return false, err
		}
		return okA && okB && a.Time == b.Time, nil

	case settings.ModeIntervals:
		a, okA, err := matchInterval(model.Intervals, typ, clockA)
		if err != nil {
			return false, err
		}
		b, okB, err := matchInterval(model.Intervals, typ, clockB)
		if err != nil {
			return false, err
		}
		return okA && okB && a.ID == b.ID, nil

	default:
		return false, fmt.Errorf("unknown capacity mode %q", model.Mode)
	}
}

// matchSlot finds the enabled slot whose window contains the clock: an exact
// time match, or the nearest earlier slot within its own duration.
func matchSlot(grid settings.SlotGridCapacity, typ models.ReservationType, clock string) (settings.Slot, bool, error) {
	minutes, err := models.ParseClock(clock)
	if err != nil {
		return settings.Slot{}, false, err
	}

	duration := grid.SlotDurationMinutes
	if duration <= 0 {
		duration = 30
	}

	var best settings.Slot
	bestStart := -1
	for _, slot := range grid.Slots[typ] {
		if !slot.Enabled {
			continue
		}
		start, err := models.ParseClock(slot.Time)
		if err != nil {
			return settings.Slot{}, false, err
		}
		if start <= minutes && minutes < start+duration && start > bestStart {
			best = slot
			bestStart = start
		}
	}
	return best, bestStart >= 0, nil
}

// matchInterval finds the interval whose [start,end) range contains the
// clock, treating end<=start as spanning past midnight.
func matchInterval(ic settings.IntervalCapacity, typ models.ReservationType, clock string) (settings.TimeInterval, bool, error) {
	minutes, err := models.ParseClock(clock)
	if err != nil {
		return settings.TimeInterval{}, false, err
	}

	for _, iv := range ic.Intervals[typ] {
		start, err := models.ParseClock(iv.Start)
		if err != nil {
			return settings.TimeInterval{}, false, err
		}
		end, err := models.ParseClock(iv.End)
		if err != nil {
			return settings.TimeInterval{}, false, err
		}
		if end <= start {
			// Wraps midnight: contained if at/after start or before end.
			if minutes >= start || minutes < end {
				return iv, true, nil
			}
			continue
		}
		if start <= minutes && minutes < end {
			return iv, true, nil
		}
	}
	return settings.TimeInterval{}, false, nil
}
