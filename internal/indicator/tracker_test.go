package indicator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrackerFirstClassificationHasNoEvents(t *testing.T) {
	tracker := NewTracker()
	state := tracker.Update(1.5, 1.0)

	require.Equal(t, PositionAbove, state.Position)
	require.False(t, state.Crossover)
	require.False(t, state.Crossunder)
}

func TestTrackerDetectsCrossover(t *testing.T) {
	tracker := NewTracker()
	tracker.Update(-1.0, 0.5)

	state := tracker.Update(1.0, 0.5)
	require.Equal(t, PositionAbove, state.Position)
	require.True(t, state.Crossover)
	require.False(t, state.Crossunder)

	// Staying above is not a fresh crossover.
	state = tracker.Update(1.2, 0.5)
	require.False(t, state.Crossover)
}

func TestTrackerDetectsCrossunder(t *testing.T) {
	tracker := NewTracker()
	tracker.Update(1.0, 0.5)

	state := tracker.Update(-1.0, 0.5)
	require.Equal(t, PositionBelow, state.Position)
	require.True(t, state.Crossunder)
	require.False(t, state.Crossover)
}

func TestTrackerEqualValuesRetainPosition(t *testing.T) {
	tracker := NewTracker()
	tracker.Update(1.0, 0.5)

	state := tracker.Update(0.5, 0.5)
	require.Equal(t, PositionAbove, state.Position)
	require.False(t, state.Crossover)
	require.False(t, state.Crossunder)
}

func TestTrackerUnknownToAboveIsCrossover(t *testing.T) {
	tracker := NewTracker()
	// Equal values on the seed tick leave the position unknown.
	tracker.Update(0.5, 0.5)

	state := tracker.Update(1.0, 0.5)
	require.Equal(t, PositionAbove, state.Position)
	require.True(t, state.Crossover)
}

func TestTrackerSingleCrossoverRun(t *testing.T) {
	macd, err := NewMACD(3, 5, 3, 50)
	require.NoError(t, err)
	tracker := NewTracker()

	// Declining into the warm-up, then a sustained rally: exactly one
	// below-to-above transition and never a crossunder.
	prices := []float64{110, 108, 106, 104, 102, 100, 98, 96, 100, 104, 108, 112, 116, 120, 124}

	crossovers := 0
	crossunders := 0
	for _, p := range prices {
		snapshot := macd.Update(p)
		if !snapshot.Ready {
			continue
		}
		state := tracker.Update(snapshot.MACD, snapshot.Signal)
		if state.Crossover {
			crossovers++
		}
		if state.Crossunder {
			crossunders++
		}
	}

	require.Equal(t, 1, crossovers)
	require.Equal(t, 0, crossunders)
	require.Equal(t, PositionAbove, tracker.Position())
}
