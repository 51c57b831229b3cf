package broker

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/google/uuid"

	"aitrade/internal/md"
	"aitrade/internal/session"
	"aitrade/internal/state"
)

const PaperName = "paper"

// Per-session synthetic spread, as a fraction of price. Overnight books
// are thin, so the simulated spread widens accordingly.
const (
	regularSpreadPct   = 0.001
	extendedSpreadPct  = 0.002
	overnightSpreadPct = 0.003
)

type paperPosition struct {
	Qty      int
	AvgEntry float64
}

// Paper is the fallback backend: a local simulated broker with virtual
// cash and positions, filled instantly against a deterministic
// random-walk quote stream. It exercises the full decision path
// without live credentials and is the failover target when the primary
// broker is unreachable.
type Paper struct {
	mu        sync.Mutex
	connected bool
	cash      float64
	realized  float64
	positions map[string]*paperPosition
	states    *state.Store
	clock     *session.Clock
	rng       *rand.Rand
	prices    map[string]float64
	basePrice float64
}

func NewPaper(stateDir string, clock *session.Clock, startingCash float64, seed int64) *Paper {
	return &Paper{
		cash:      startingCash,
		positions: make(map[string]*paperPosition),
		states:    state.NewStore(stateDir, PaperName),
		clock:     clock,
		rng:       rand.New(rand.NewSource(seed)),
		prices:    make(map[string]float64),
		basePrice: 100,
	}
}

func (p *Paper) Name() string { return PaperName }

func (p *Paper) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = true
	slog.Info("connected to paper broker", "cash", p.cash)
	return nil
}

func (p *Paper) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	return nil
}

func (p *Paper) IsPaperTrading() bool { return true }

func (p *Paper) GetAccountInfo(ctx context.Context) (Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return Account{}, ErrNoBrokerConnected
	}

	equity := p.cash
	for symbol, pos := range p.positions {
		equity += float64(pos.Qty) * p.priceLocked(symbol)
	}
	return Account{
		ID:           "paper-account",
		Equity:       equity,
		BuyingPower:  p.cash,
		Cash:         p.cash,
		PaperTrading: true,
	}, nil
}

func (p *Paper) GetAllPositions(ctx context.Context) ([]Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return nil, ErrNoBrokerConnected
	}

	result := make([]Position, 0, len(p.positions))
	for symbol, pos := range p.positions {
		if pos.Qty == 0 {
			continue
		}
		result = append(result, Position{
			Symbol:   symbol,
			Qty:      pos.Qty,
			Side:     sideForQty(pos.Qty),
			AvgEntry: pos.AvgEntry,
		})
	}
	return result, nil
}

// GetHistoricalData synthesizes a bar series from the random walk and
// leaves the walk positioned at the final close, so realtime quotes
// continue the same path.
func (p *Paper) GetHistoricalData(ctx context.Context, symbol string, timeframe time.Duration, limit int) ([]md.Bar, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return nil, ErrNoBrokerConnected
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: non-positive bar limit", ErrDataUnavailable)
	}

	bars := make([]md.Bar, 0, limit)
	start := time.Now().UTC().Add(-time.Duration(limit) * timeframe)
	for i := 0; i < limit; i++ {
		open := p.priceLocked(symbol)
		close := p.stepLocked(symbol)
		high, low := open, close
		if low > high {
			high, low = low, high
		}
		bars = append(bars, md.Bar{
			Symbol:    symbol,
			Timestamp: start.Add(time.Duration(i) * timeframe),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    uint64(1000 + p.rng.Intn(9000)),
		})
	}
	return bars, nil
}

func (p *Paper) GetRealtimeData(ctx context.Context, symbol string) (md.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return md.Quote{}, ErrNoBrokerConnected
	}

	now := time.Now()
	mid := p.stepLocked(symbol)
	spreadPct := regularSpreadPct
	switch p.clock.Current(now) {
	case session.Overnight:
		spreadPct = overnightSpreadPct
	case session.PreMarket, session.AfterHours:
		spreadPct = extendedSpreadPct
	}
	halfSpread := mid * spreadPct / 2

	return md.Quote{
		Symbol:    symbol,
		Timestamp: now,
		Bid:       mid - halfSpread,
		Ask:       mid + halfSpread,
	}, nil
}

// PlaceOrder fills immediately at the limit price when given one,
// otherwise at the current walk price. Sells past flat flip the
// position short, matching what the decision policy submits.
func (p *Paper) PlaceOrder(ctx context.Context, req OrderRequest) (OrderRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return OrderRef{}, ErrNoBrokerConnected
	}
	if req.Qty <= 0 {
		return OrderRef{}, fmt.Errorf("order quantity must be positive, got %d", req.Qty)
	}

	fillPrice := p.priceLocked(req.Symbol)
	if req.LimitPrice != nil {
		fillPrice = *req.LimitPrice
	}

	signedQty := req.Qty
	if req.Side == alpaca.Sell {
		signedQty = -req.Qty
	}
	p.applyFillLocked(req.Symbol, signedQty, fillPrice)

	ref := OrderRef{
		ID:            uuid.NewString(),
		ClientOrderID: req.ClientOrderID,
		Status:        "filled",
	}
	slog.Info("paper fill", "order_id", ref.ID, "symbol", req.Symbol, "side", req.Side, "qty", req.Qty, "price", fillPrice)
	return ref, nil
}

func (p *Paper) applyFillLocked(symbol string, signedQty int, price float64) {
	pos := p.positions[symbol]
	if pos == nil {
		pos = &paperPosition{}
		p.positions[symbol] = pos
	}

	p.cash -= float64(signedQty) * price

	sameDirection := pos.Qty == 0 || (pos.Qty > 0) == (signedQty > 0)
	if sameDirection {
		total := pos.Qty + signedQty
		if total != 0 {
			pos.AvgEntry = (pos.AvgEntry*float64(pos.Qty) + price*float64(signedQty)) / float64(total)
		}
		pos.Qty = total
		return
	}

	closed := min(abs(pos.Qty), abs(signedQty))
	direction := 1.0
	if pos.Qty < 0 {
		direction = -1.0
	}
	p.realized += (price - pos.AvgEntry) * float64(closed) * direction

	pos.Qty += signedQty
	if pos.Qty == 0 {
		delete(p.positions, symbol)
		return
	}
	if (pos.Qty > 0) != (pos.Qty-signedQty > 0) {
		// Crossed through flat: the remainder opens at the fill price.
		pos.AvgEntry = price
	}
}

func (p *Paper) GetClock(ctx context.Context) (Clock, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return Clock{}, ErrNoBrokerConnected
	}

	now := time.Now()
	return Clock{
		Timestamp: now,
		IsOpen:    p.clock.Current(now) == session.Regular,
		NextOpen:  nextSessionBoundary(now, 9, 30),
		NextClose: nextSessionBoundary(now, 16, 0),
	}, nil
}

func (p *Paper) ExtendedHoursEligible(ctx context.Context, symbol string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return false, ErrNoBrokerConnected
	}
	return true, nil
}

func (p *Paper) SaveStrategyState(symbol, strategyName string, st state.StrategyState) error {
	return p.states.Save(symbol, strategyName, st)
}

func (p *Paper) GetStrategyState(symbol, strategyName string) (state.StrategyState, bool, error) {
	return p.states.Load(symbol, strategyName)
}

// RealizedPnL reports closed-trade profit and loss for inspection.
func (p *Paper) RealizedPnL() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.realized
}

func (p *Paper) priceLocked(symbol string) float64 {
	if price, ok := p.prices[symbol]; ok {
		return price
	}
	p.prices[symbol] = p.basePrice
	return p.basePrice
}

func (p *Paper) stepLocked(symbol string) float64 {
	price := p.priceLocked(symbol)
	price *= 1 + 0.002*(p.rng.Float64()-0.5)
	p.prices[symbol] = price
	return price
}

func nextSessionBoundary(now time.Time, hour, minute int) time.Time {
	boundary := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	for !boundary.After(now) || boundary.Weekday() == time.Saturday || boundary.Weekday() == time.Sunday {
		boundary = boundary.AddDate(0, 0, 1)
	}
	return boundary
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
