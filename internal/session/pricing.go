package session

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"

	"aitrade/internal/md"
)

// ErrNoQuote means no usable bid/ask was available; the caller must
// abstain from placing the order rather than guess a price.
var ErrNoQuote = errors.New("no quote available")

// Buffer bounds in percent. Overnight spreads run wider, so the limit
// price is pushed further through the book to get filled.
const (
	overnightMinBufferPct = 1.0
	overnightMaxBufferPct = 3.0
	extendedMinBufferPct  = 0.5
	extendedMaxBufferPct  = 1.5
)

// LimitPrice computes the limit price for an order outside regular
// hours: a spread-derived buffer above the ask for buys, below the bid
// for sells, rounded to cents.
func LimitPrice(side alpaca.Side, quote md.Quote, s Session) (float64, error) {
	if !quote.Valid() {
		return 0, ErrNoQuote
	}
	if !RequiresLimit(s) {
		return 0, fmt.Errorf("session %s does not price limit orders", s)
	}

	spreadPct := quote.SpreadPct()
	var bufferPct float64
	if s == Overnight {
		bufferPct = clamp(spreadPct, overnightMinBufferPct, overnightMaxBufferPct)
	} else {
		bufferPct = clamp(spreadPct/2, extendedMinBufferPct, extendedMaxBufferPct)
	}

	var price decimal.Decimal
	if side == alpaca.Buy {
		price = decimal.NewFromFloat(quote.Ask * (1 + bufferPct/100))
	} else {
		price = decimal.NewFromFloat(quote.Bid * (1 - bufferPct/100))
	}
	rounded, _ := price.Round(2).Float64()

	slog.Info("limit price computed",
		"session", s, "side", side,
		"bid", quote.Bid, "ask", quote.Ask,
		"spread_pct", spreadPct, "buffer_pct", bufferPct,
		"limit_price", rounded)
	return rounded, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
