package indicator

import "fmt"

const (
	DefaultFastWindow   = 13
	DefaultSlowWindow   = 21
	DefaultSignalWindow = 9
)

// Snapshot is the indicator output for a single price sample. Ready is
// false until slow-window samples have been observed; until then the
// numeric fields other than Price are meaningless and callers must not
// act on them.
type Snapshot struct {
	Ready     bool
	Price     float64
	FastEMA   float64
	SlowEMA   float64
	MACD      float64
	Signal    float64
	Histogram float64
}

type ema struct {
	k      float64
	value  float64
	primed bool
}

func newEMA(window int) ema {
	return ema{k: 2.0 / (float64(window) + 1.0)}
}

func (e *ema) update(price float64) float64 {
	if !e.primed {
		e.value = price
		e.primed = true
		return e.value
	}
	e.value = price*e.k + e.value*(1-e.k)
	return e.value
}

// MACD computes fast/slow EMAs, the MACD line, its signal line, and the
// histogram incrementally, one price at a time. Given the same ordered
// price sequence and parameters the output is reproducible bit for bit.
type MACD struct {
	fastWindow   int
	slowWindow   int
	signalWindow int

	prices    *RingBuffer
	count     int
	fastEMA   ema
	slowEMA   ema
	signalEMA ema
}

func NewMACD(fastWindow, slowWindow, signalWindow, maxRecords int) (*MACD, error) {
	if fastWindow <= 0 || slowWindow <= 0 || signalWindow <= 0 {
		return nil, fmt.Errorf("macd windows must be positive: fast=%d slow=%d signal=%d", fastWindow, slowWindow, signalWindow)
	}
	if fastWindow >= slowWindow {
		return nil, fmt.Errorf("fast window (%d) must be less than slow window (%d)", fastWindow, slowWindow)
	}
	if maxRecords < slowWindow {
		maxRecords = slowWindow
	}
	return &MACD{
		fastWindow:   fastWindow,
		slowWindow:   slowWindow,
		signalWindow: signalWindow,
		prices:       NewRingBuffer(maxRecords),
		fastEMA:      newEMA(fastWindow),
		slowEMA:      newEMA(slowWindow),
		signalEMA:    newEMA(signalWindow),
	}, nil
}

// Update folds one new close/mid price into the indicator state.
func (m *MACD) Update(price float64) Snapshot {
	m.prices.Add(price)
	m.count++

	fast := m.fastEMA.update(price)
	slow := m.slowEMA.update(price)

	// The MACD and signal recurrences run from the first sample; Ready
	// only gates whether consumers may act on them. This mirrors a
	// full-series EMA computed over the same inputs.
	macd := fast - slow
	signal := m.signalEMA.update(macd)

	return Snapshot{
		Ready:     m.count >= m.slowWindow,
		Price:     price,
		FastEMA:   fast,
		SlowEMA:   slow,
		MACD:      macd,
		Signal:    signal,
		Histogram: macd - signal,
	}
}

// Count reports how many samples have been observed, capped nowhere;
// Ready flips once Count reaches the slow window.
func (m *MACD) Count() int {
	return m.count
}

// Prices exposes the retained window of samples, oldest first.
func (m *MACD) Prices() []float64 {
	return m.prices.Values()
}
