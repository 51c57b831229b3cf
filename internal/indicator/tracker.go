package indicator

// MACDPosition is where the MACD line sits relative to its signal line.
type MACDPosition string

const (
	PositionUnknown MACDPosition = "UNKNOWN"
	PositionAbove   MACDPosition = "ABOVE"
	PositionBelow   MACDPosition = "BELOW"
)

// SignalState is the per-tick crossover classification consumed by the
// trading policy.
type SignalState struct {
	Position   MACDPosition
	Crossover  bool
	Crossunder bool
	MACD       float64
	Signal     float64
}

// Tracker classifies each MACD/signal pair against the previous tick's
// position. Equal values retain the previous position rather than
// counting as a transition.
type Tracker struct {
	prev   MACDPosition
	seeded bool
}

func NewTracker() *Tracker {
	return &Tracker{prev: PositionUnknown}
}

// Update must be called exactly once per new price sample. The first
// classification reports no crossover or crossunder regardless of the
// computed position.
func (t *Tracker) Update(macd, signal float64) SignalState {
	position := t.prev
	switch {
	case macd > signal:
		position = PositionAbove
	case macd < signal:
		position = PositionBelow
	}

	state := SignalState{
		Position: position,
		MACD:     macd,
		Signal:   signal,
	}

	if t.seeded {
		state.Crossover = position == PositionAbove && (t.prev == PositionBelow || t.prev == PositionUnknown)
		state.Crossunder = position == PositionBelow && (t.prev == PositionAbove || t.prev == PositionUnknown)
	}

	t.prev = position
	t.seeded = true
	return state
}

// Position returns the classification from the most recent Update.
func (t *Tracker) Position() MACDPosition {
	return t.prev
}
