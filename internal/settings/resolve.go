package settings

import (
	"encoding/json"
	"os"
	"time"

	"tablebook/internal/models"
)

// Source identifies which tier supplied a resolved settings value.
type Source string

const (
	SourceStore   Source = "store"
	SourceEnv     Source = "env"
	SourceDefault Source = "default"
)

// Environment variables consulted when no stored value exists. Payloads are
// the same JSON documents the settings store holds.
const (
	EnvClosure      = "TABLEBOOK_CLOSURE_SETTINGS"
	EnvAvailability = "TABLEBOOK_AVAILABILITY_SETTINGS"
	EnvCapacity     = "TABLEBOOK_CAPACITY_MODEL"
	EnvConfirmation = "TABLEBOOK_CONFIRMATION_SETTINGS"
)

// DefaultClosure returns the conservative fallback: nothing closed.
func DefaultClosure() ClosureSettings {
	return ClosureSettings{}
}

// DefaultAvailability: omakase Thursday only, dining every day with both shifts.
func DefaultAvailability() AvailabilitySettings {
	allDays := []int{0, 1, 2, 3, 4, 5, 6}
	shifts := make(map[int][]string, 7)
	for _, d := range allDays {
		shifts[d] = []string{string(models.ShiftLunch), string(models.ShiftDinner)}
	}
	return AvailabilitySettings{
		OmakaseDays:  []int{int(time.Thursday)},
		DiningDays:   allDays,
		DiningShifts: shifts,
	}
}

// DefaultCapacity: flat model, 12 omakase and 24 dining seats per day.
func DefaultCapacity() CapacityModel {
	return CapacityModel{
		Mode: ModeFlat,
		Flat: FlatCapacity{OmakaseSeats: 12, DiningSeats: 24},
	}
}

// DefaultConfirmation: dining auto-confirms, omakase waits for manual review.
func DefaultConfirmation() ConfirmationSettings {
	omakase := false
	dining := true
	return ConfirmationSettings{
		OmakaseAutoConfirm: &omakase,
		DiningAutoConfirm:  &dining,
	}
}

// ResolveClosure applies the three-tier lookup: stored value, then the
// environment variable, then the hardcoded default. The returned Source
// records which tier supplied the value, for diagnostics.
func ResolveClosure(stored []byte) (ClosureSettings, Source) {
	var s ClosureSettings
	if src, ok := resolveJSON(stored, EnvClosure, &s); ok {
		return s, src
	}
	return DefaultClosure(), SourceDefault
}

func ResolveAvailability(stored []byte) (AvailabilitySettings, Source) {
	var s AvailabilitySettings
	if src, ok := resolveJSON(stored, EnvAvailability, &s); ok {
		return s, src
	}
	return DefaultAvailability(), SourceDefault
}

func ResolveCapacity(stored []byte) (CapacityModel, Source) {
	var m CapacityModel
	if src, ok := resolveJSON(stored, EnvCapacity, &m); ok {
		return m, src
	}
	return DefaultCapacity(), SourceDefault
}

func ResolveConfirmation(stored []byte) (ConfirmationSettings, Source) {
	var s ConfirmationSettings
	if src, ok := resolveJSON(stored, EnvConfirmation, &s); ok {
		return s, src
	}
	return DefaultConfirmation(), SourceDefault
}

// resolveJSON tries the store tier then the env tier. A payload that fails to
// unmarshal is treated as absent rather than corrupting the resolved value.
func resolveJSON(stored []byte, envVar string, dst interface{}) (Source, bool) {
	if len(stored) > 0 {
		if err := json.Unmarshal(stored, dst); err == nil {
			return SourceStore, true
		}
	}
	if raw := os.Getenv(envVar); raw != "" {
		if err := json.Unmarshal([]byte(raw), dst); err == nil {
			return SourceEnv, true
		}
	}
	return "", false
}
