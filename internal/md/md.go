// Package md holds the market data types shared by the quote feed,
// the indicator engine, and the brokers.
package md

import "time"

// Bar is one OHLC aggregate. Timestamps are unique and monotonically
// increasing per symbol; low <= open,close <= high.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    uint64
}

// Quote is a top-of-book bid/ask pair.
type Quote struct {
	Symbol    string
	Timestamp time.Time
	Bid       float64
	Ask       float64
}

// Mid returns the bid/ask midpoint, the price the indicator engine
// consumes.
func (q Quote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

// Valid reports whether the quote carries a usable two-sided market.
func (q Quote) Valid() bool {
	return q.Bid > 0 && q.Ask > 0 && q.Bid <= q.Ask
}

// SpreadPct is the bid/ask spread as a percentage of the bid.
func (q Quote) SpreadPct() float64 {
	if q.Bid <= 0 {
		return 0
	}
	return (q.Ask - q.Bid) / q.Bid * 100
}
