package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// 2025-01-08 is a Wednesday.
func wednesday(hour, minute int) time.Time {
	return time.Date(2025, 1, 8, hour, minute, 0, 0, time.UTC)
}

func TestClockClassifiesWeekdaySessions(t *testing.T) {
	clock := NewClock(time.UTC)

	require.Equal(t, Regular, clock.Current(wednesday(9, 30)))
	require.Equal(t, Regular, clock.Current(wednesday(15, 59)))
	require.Equal(t, PreMarket, clock.Current(wednesday(4, 0)))
	require.Equal(t, PreMarket, clock.Current(wednesday(9, 29)))
	require.Equal(t, AfterHours, clock.Current(wednesday(16, 0)))
	require.Equal(t, AfterHours, clock.Current(wednesday(19, 59)))
	require.Equal(t, Overnight, clock.Current(wednesday(20, 0)))
	require.Equal(t, Overnight, clock.Current(wednesday(3, 59)))
}

func TestClockOvernightValidity(t *testing.T) {
	clock := NewClock(time.UTC)

	// Thursday 21:00 leads into a Friday trading day.
	thursday := time.Date(2025, 1, 9, 21, 0, 0, 0, time.UTC)
	require.Equal(t, Overnight, clock.Current(thursday))

	// Friday 21:00 leads into the weekend: closed.
	friday := time.Date(2025, 1, 10, 21, 0, 0, 0, time.UTC)
	require.Equal(t, Closed, clock.Current(friday))

	// Friday 02:00 is still the tail of Thursday's overnight window.
	fridayEarly := time.Date(2025, 1, 10, 2, 0, 0, 0, time.UTC)
	require.Equal(t, Overnight, clock.Current(fridayEarly))

	// Saturday is closed in every window.
	saturday := time.Date(2025, 1, 11, 2, 0, 0, 0, time.UTC)
	require.Equal(t, Closed, clock.Current(saturday))
	saturdayNoon := time.Date(2025, 1, 11, 12, 0, 0, 0, time.UTC)
	require.Equal(t, Closed, clock.Current(saturdayNoon))

	// Sunday evening is classified closed; the Sunday-night session is
	// picked up by the Monday early-morning branch.
	sunday := time.Date(2025, 1, 12, 21, 0, 0, 0, time.UTC)
	require.Equal(t, Closed, clock.Current(sunday))
	mondayEarly := time.Date(2025, 1, 13, 2, 0, 0, 0, time.UTC)
	require.Equal(t, Overnight, clock.Current(mondayEarly))
}

func TestIsTradable(t *testing.T) {
	require.True(t, IsTradable(Regular, Config{}))
	require.False(t, IsTradable(PreMarket, Config{}))
	require.True(t, IsTradable(PreMarket, Config{ExtendedHours: true}))
	require.True(t, IsTradable(AfterHours, Config{ExtendedHours: true}))
	require.False(t, IsTradable(Overnight, Config{ExtendedHours: true}))
	require.True(t, IsTradable(Overnight, Config{Overnight: true}))
	require.False(t, IsTradable(Closed, Config{ExtendedHours: true, Overnight: true}))
}

func TestRequiresLimit(t *testing.T) {
	require.False(t, RequiresLimit(Regular))
	require.True(t, RequiresLimit(PreMarket))
	require.True(t, RequiresLimit(AfterHours))
	require.True(t, RequiresLimit(Overnight))
}
