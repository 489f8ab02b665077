package capacity

import (
	"fmt"

	"tablebook/internal/models"
	"tablebook/internal/settings"
)

// Dining service hours for the derived grid.
const (
	diningOpenMinute  = 11 * 60 // 11:00
	diningCloseMinute = 22 * 60 // 22:00
)

// Omakase runs two fixed seatings per evening.
var omakaseSeatings = []string{"17:00", "20:00"}

// GenerateGrid builds the default slot layout for a type. The dining grid is
// derived from the slot duration over service hours; omakase always gets the
// fixed two-seating grid. Slot times come out strictly increasing.
func GenerateGrid(typ models.ReservationType, durationMinutes, maxCovers, maxParties int) ([]settings.Slot, error) {
	if durationMinutes != 15 && durationMinutes != 30 {
		return nil, fmt.Errorf("slot duration must be 15 or 30, got %d", durationMinutes)
	}

	if typ == models.TypeOmakase {
		slots := make([]settings.Slot, 0, len(omakaseSeatings))
		for _, t := range omakaseSeatings {
			slots = append(slots, settings.Slot{Time: t, MaxCovers: maxCovers, MaxParties: maxParties, Enabled: true})
		}
		return slots, nil
	}

	var slots []settings.Slot
	for m := diningOpenMinute; m+durationMinutes <= diningCloseMinute; m += durationMinutes {
		slots = append(slots, settings.Slot{
			Time:       fmt.Sprintf("%02d:%02d", m/60, m%60),
			MaxCovers:  maxCovers,
			MaxParties: maxParties,
			Enabled:    true,
		})
	}
	return slots, nil
}
