// Package broker unifies the order-execution backends behind one
// capability interface and selects between them at runtime.
package broker

import (
	"context"
	"errors"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"aitrade/internal/md"
	"aitrade/internal/state"
	"aitrade/internal/strategy"
)

var (
	// ErrNoBrokerConnected is returned by any delegated call while no
	// backend connection is up.
	ErrNoBrokerConnected = errors.New("no broker connected")

	// ErrDataUnavailable means the feed returned nothing this tick; the
	// caller skips the tick instead of treating it as a signal.
	ErrDataUnavailable = errors.New("no market data available")

	// ErrConnection wraps startup connection failures. Both backends
	// failing is fatal to the process.
	ErrConnection = errors.New("broker connection failed")
)

type Account struct {
	ID           string
	Equity       float64
	BuyingPower  float64
	Cash         float64
	PaperTrading bool
}

type Position struct {
	Symbol   string
	Qty      int
	Side     strategy.PositionSide
	AvgEntry float64
}

type Clock struct {
	Timestamp time.Time
	IsOpen    bool
	NextOpen  time.Time
	NextClose time.Time
}

type OrderRequest struct {
	Symbol        string
	Qty           int
	Side          alpaca.Side
	Type          alpaca.OrderType
	TimeInForce   alpaca.TimeInForce
	ClientOrderID string
	ExtendedHours bool
	LimitPrice    *float64
}

type OrderRef struct {
	ID            string
	ClientOrderID string
	Status        string
}

// Broker is the capability set every backend implements. Dispatch is
// static through this interface; adapters return typed errors rather
// than panicking on missing capabilities.
type Broker interface {
	Name() string
	Connect(ctx context.Context) error
	Disconnect() error
	IsPaperTrading() bool

	GetAccountInfo(ctx context.Context) (Account, error)
	GetAllPositions(ctx context.Context) ([]Position, error)
	GetHistoricalData(ctx context.Context, symbol string, timeframe time.Duration, limit int) ([]md.Bar, error)
	GetRealtimeData(ctx context.Context, symbol string) (md.Quote, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderRef, error)
	GetClock(ctx context.Context) (Clock, error)
	ExtendedHoursEligible(ctx context.Context, symbol string) (bool, error)

	SaveStrategyState(symbol, strategyName string, st state.StrategyState) error
	GetStrategyState(symbol, strategyName string) (state.StrategyState, bool, error)
}

// PositionFor extracts the position for one symbol from a full
// position listing. A missing symbol is a flat position, not an error.
func PositionFor(positions []Position, symbol string) Position {
	for _, p := range positions {
		if p.Symbol == symbol {
			return p
		}
	}
	return Position{Symbol: symbol, Side: strategy.SideNone}
}

func sideForQty(qty int) strategy.PositionSide {
	switch {
	case qty > 0:
		return strategy.SideLong
	case qty < 0:
		return strategy.SideShort
	default:
		return strategy.SideNone
	}
}
