package calendar

import (
	"testing"
	"time"

	"tablebook/internal/models"
	"tablebook/internal/settings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-09-02 is a Wednesday, 2026-09-03 a Thursday.
var (
	wednesday = time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	thursday  = time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC)
)

func TestIsDateClosed(t *testing.T) {
	closures := settings.ClosureSettings{
		ExplicitDates:  []string{"2026-09-02"},
		ClosedWeekdays: []int{int(time.Monday)},
		Holidays: []settings.Holiday{
			{Date: "2026-09-07", Closed: true},
			{Date: "2026-09-08", Closed: false},
		},
		ShiftClosures: []settings.ShiftClosure{
			{Date: "2026-09-10", Kind: settings.ClosureFullDay},
			{Date: "2026-09-11", Kind: settings.ClosureLunchOnly},
		},
	}
	p := New(closures, settings.DefaultAvailability())

	assert.True(t, p.IsDateClosed(wednesday), "explicit date")
	assert.True(t, p.IsDateClosed(time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)), "closed holiday (also a Monday)")
	assert.True(t, p.IsDateClosed(time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)), "recurring Monday")
	assert.False(t, p.IsDateClosed(time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC)), "open holiday entry")
	assert.True(t, p.IsDateClosed(time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)), "full-day shift closure")
	assert.False(t, p.IsDateClosed(time.Date(2026, 9, 11, 0, 0, 0, 0, time.UTC)), "lunch-only closure keeps the day open")
	assert.False(t, p.IsDateClosed(thursday))
}

func TestIsShiftClosed(t *testing.T) {
	closures := settings.ClosureSettings{
		ShiftClosures: []settings.ShiftClosure{
			{Date: "2026-09-11", Kind: settings.ClosureLunchOnly},
			{Date: "2026-09-12", Kind: settings.ClosureDinnerOnly},
			{Date: "2026-09-10", Kind: settings.ClosureFullDay},
		},
	}
	p := New(closures, settings.DefaultAvailability())

	friday := time.Date(2026, 9, 11, 0, 0, 0, 0, time.UTC)
	saturday := time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC)

	assert.True(t, p.IsShiftClosed(friday, models.ShiftLunch))
	assert.False(t, p.IsShiftClosed(friday, models.ShiftDinner))
	assert.True(t, p.IsShiftClosed(saturday, models.ShiftDinner))
	assert.False(t, p.IsShiftClosed(saturday, models.ShiftLunch))

	// Full-day closure closes both shifts.
	closed := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	assert.True(t, p.IsShiftClosed(closed, models.ShiftLunch))
	assert.True(t, p.IsShiftClosed(closed, models.ShiftDinner))
}

func TestIsTypeAvailable(t *testing.T) {
	availability := settings.AvailabilitySettings{
		OmakaseDays: []int{int(time.Thursday)},
		DiningDays:  []int{int(time.Wednesday), int(time.Thursday), int(time.Friday)},
		DiningShifts: map[int][]string{
			int(time.Wednesday): {string(models.ShiftDinner)},
		},
	}
	p := New(settings.ClosureSettings{}, availability)

	t.Run("omakase gated by weekday only", func(t *testing.T) {
		ok, err := p.IsTypeAvailable(models.TypeOmakase, thursday, "")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = p.IsTypeAvailable(models.TypeOmakase, wednesday, "")
		require.NoError(t, err)
		assert.False(t, ok, "omakase runs Thursdays only")
	})

	t.Run("dining weekday", func(t *testing.T) {
		saturday := time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC)
		ok, err := p.IsTypeAvailable(models.TypeDining, saturday, "19:00")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("dining shift gating", func(t *testing.T) {
		// Wednesday only serves dinner.
		ok, err := p.IsTypeAvailable(models.TypeDining, wednesday, "12:00")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = p.IsTypeAvailable(models.TypeDining, wednesday, "19:00")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("no shift config or no time means weekday decides", func(t *testing.T) {
		ok, err := p.IsTypeAvailable(models.TypeDining, thursday, "12:00")
		require.NoError(t, err)
		assert.True(t, ok, "Thursday has no shift entries")

		ok, err = p.IsTypeAvailable(models.TypeDining, wednesday, "")
		require.NoError(t, err)
		assert.True(t, ok, "no time supplied")
	})

	t.Run("malformed time", func(t *testing.T) {
		_, err := p.IsTypeAvailable(models.TypeDining, wednesday, "7pm")
		assert.Error(t, err)
	})
}
