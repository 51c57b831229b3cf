package strategy

import (
	"time"

	"aitrade/internal/indicator"
)

type Action string

const (
	Hold         Action = "HOLD"
	Buy          Action = "BUY"
	Sell         Action = "SELL"
	Short        Action = "SHORT"
	CoverAndBuy  Action = "COVER_AND_BUY"
	SellAndShort Action = "SELL_AND_SHORT"
)

// IsBuySide reports whether the action results in a buy order on the
// wire. CoverAndBuy flattens a short and opens a long in one order.
func (a Action) IsBuySide() bool {
	return a == Buy || a == CoverAndBuy
}

// IsSellSide reports whether the action results in a sell order.
func (a Action) IsSellSide() bool {
	return a == Sell || a == Short || a == SellAndShort
}

type PositionSide string

const (
	SideNone  PositionSide = "NONE"
	SideLong  PositionSide = "LONG"
	SideShort PositionSide = "SHORT"
)

// MarketSnapshot is everything the policy may consult for one tick.
type MarketSnapshot struct {
	Symbol     string
	Timestamp  time.Time
	Side       PositionSide
	Qty        int
	Signal     indicator.SignalState
	LastAction Action
}

type TradeIntent struct {
	Action Action
	Qty    int
	Reason string
}

type Strategy interface {
	Decide(snapshot MarketSnapshot) TradeIntent
}
