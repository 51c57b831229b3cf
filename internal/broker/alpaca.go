package broker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"aitrade/internal/md"
	"aitrade/internal/state"
)

const AlpacaName = "alpaca"

// Alpaca adapts the Alpaca trading and market data APIs to the Broker
// capability set. It doubles as the quote source for the paper broker.
type Alpaca struct {
	trading   *alpaca.Client
	data      *marketdata.Client
	states    *state.Store
	baseURL   string
	connected bool
}

func NewAlpaca(apiKey, apiSecret, baseURL, stateDir string) *Alpaca {
	opts := alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	}
	return &Alpaca{
		trading: alpaca.NewClient(opts),
		data: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
		}),
		states:  state.NewStore(stateDir, AlpacaName),
		baseURL: baseURL,
	}
}

func (a *Alpaca) Name() string { return AlpacaName }

// callBounded runs fn on its own goroutine and abandons it when ctx
// expires; the alpaca client has no context-aware call variants, so
// this is the only way to give its blocking calls a bounded wait. The
// returned error is ctx.Err() on expiry, so callers can key on
// context.DeadlineExceeded.
func callBounded[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := fn()
		done <- result{value, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-done:
		return res.value, res.err
	}
}

// Connect probes the account endpoint with a bounded wait; a timeout
// counts as a failed connection, not an infinite block.
func (a *Alpaca) Connect(ctx context.Context) error {
	acct, err := callBounded(ctx, func() (*alpaca.Account, error) {
		return a.trading.GetAccount()
	})
	if err != nil {
		return fmt.Errorf("alpaca connect: %w", err)
	}
	a.connected = true
	slog.Info("connected to alpaca", "account_id", acct.ID, "paper", a.IsPaperTrading())
	return nil
}

func (a *Alpaca) Disconnect() error {
	// The REST client holds no persistent connection to tear down.
	a.connected = false
	return nil
}

func (a *Alpaca) IsPaperTrading() bool {
	return strings.Contains(a.baseURL, "paper-api")
}

func (a *Alpaca) GetAccountInfo(ctx context.Context) (Account, error) {
	if !a.connected {
		return Account{}, ErrNoBrokerConnected
	}
	acct, err := a.trading.GetAccount()
	if err != nil {
		slog.Error("fetch account failed", "error", err)
		return Account{}, err
	}
	equity, _ := acct.Equity.Float64()
	buyingPower, _ := acct.BuyingPower.Float64()
	cash, _ := acct.Cash.Float64()
	return Account{
		ID:           acct.ID,
		Equity:       equity,
		BuyingPower:  buyingPower,
		Cash:         cash,
		PaperTrading: a.IsPaperTrading(),
	}, nil
}

func (a *Alpaca) GetAllPositions(ctx context.Context) ([]Position, error) {
	if !a.connected {
		return nil, ErrNoBrokerConnected
	}
	positions, err := a.trading.GetPositions()
	if err != nil {
		slog.Error("fetch positions failed", "error", err)
		return nil, err
	}
	result := make([]Position, 0, len(positions))
	for _, pos := range positions {
		qty := int(pos.Qty.IntPart())
		avgEntry, _ := pos.AvgEntryPrice.Float64()
		result = append(result, Position{
			Symbol:   pos.Symbol,
			Qty:      qty,
			Side:     sideForQty(qty),
			AvgEntry: avgEntry,
		})
	}
	return result, nil
}

func (a *Alpaca) GetHistoricalData(ctx context.Context, symbol string, timeframe time.Duration, limit int) ([]md.Bar, error) {
	if !a.connected {
		return nil, ErrNoBrokerConnected
	}
	bars, err := a.data.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame:  timeFrameFor(timeframe),
		Start:      time.Now().UTC().Add(-time.Duration(limit+1) * timeframe),
		TotalLimit: limit,
	})
	if err != nil {
		slog.Error("fetch bars failed", "symbol", symbol, "error", err)
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no bars for %s", ErrDataUnavailable, symbol)
	}
	result := make([]md.Bar, 0, len(bars))
	for _, bar := range bars {
		result = append(result, md.Bar{
			Symbol:    symbol,
			Timestamp: bar.Timestamp,
			Open:      bar.Open,
			High:      bar.High,
			Low:       bar.Low,
			Close:     bar.Close,
			Volume:    bar.Volume,
		})
	}
	return result, nil
}

// GetRealtimeData fetches the latest quote with a bounded wait.
func (a *Alpaca) GetRealtimeData(ctx context.Context, symbol string) (md.Quote, error) {
	if !a.connected {
		return md.Quote{}, ErrNoBrokerConnected
	}
	latest, err := callBounded(ctx, func() (*marketdata.Quote, error) {
		return a.data.GetLatestQuote(symbol, marketdata.GetLatestQuoteRequest{})
	})
	if err != nil {
		slog.Error("fetch quote failed", "symbol", symbol, "error", err)
		return md.Quote{}, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	quote := md.Quote{
		Symbol:    symbol,
		Timestamp: latest.Timestamp,
		Bid:       latest.BidPrice,
		Ask:       latest.AskPrice,
	}
	if !quote.Valid() {
		return md.Quote{}, fmt.Errorf("%w: one-sided quote for %s", ErrDataUnavailable, symbol)
	}
	return quote, nil
}

func (a *Alpaca) PlaceOrder(ctx context.Context, req OrderRequest) (OrderRef, error) {
	if !a.connected {
		return OrderRef{}, ErrNoBrokerConnected
	}
	qty := decimal.NewFromInt(int64(req.Qty))
	orderReq := alpaca.PlaceOrderRequest{
		Symbol:        req.Symbol,
		Qty:           &qty,
		Side:          req.Side,
		Type:          req.Type,
		TimeInForce:   req.TimeInForce,
		ClientOrderID: req.ClientOrderID,
		ExtendedHours: req.ExtendedHours,
	}
	if req.LimitPrice != nil {
		limitPrice := decimal.NewFromFloat(*req.LimitPrice)
		orderReq.LimitPrice = &limitPrice
	}

	// Submission must honor the caller's deadline: the engine keys its
	// ambiguous-outcome re-query on context.DeadlineExceeded.
	order, err := callBounded(ctx, func() (*alpaca.Order, error) {
		return a.trading.PlaceOrder(orderReq)
	})
	if err != nil {
		slog.Error("place order failed", "side", req.Side, "symbol", req.Symbol, "qty", req.Qty, "type", req.Type, "error", err)
		return OrderRef{}, err
	}

	slog.Info("place order success", "order_id", order.ID, "side", req.Side, "symbol", req.Symbol, "qty", req.Qty, "type", req.Type, "status", order.Status)
	return OrderRef{
		ID:            order.ID,
		ClientOrderID: order.ClientOrderID,
		Status:        string(order.Status),
	}, nil
}

func (a *Alpaca) GetClock(ctx context.Context) (Clock, error) {
	if !a.connected {
		return Clock{}, ErrNoBrokerConnected
	}
	clock, err := a.trading.GetClock()
	if err != nil {
		return Clock{}, err
	}
	return Clock{
		Timestamp: clock.Timestamp,
		IsOpen:    clock.IsOpen,
		NextOpen:  clock.NextOpen,
		NextClose: clock.NextClose,
	}, nil
}

// ExtendedHoursEligible checks the asset before an extended or
// overnight order. Non-tradable assets are rejected outright;
// fractionability stands in for liquidity.
func (a *Alpaca) ExtendedHoursEligible(ctx context.Context, symbol string) (bool, error) {
	if !a.connected {
		return false, ErrNoBrokerConnected
	}
	asset, err := a.trading.GetAsset(symbol)
	if err != nil {
		return false, fmt.Errorf("check asset %s: %w", symbol, err)
	}
	if !asset.Tradable {
		return false, fmt.Errorf("%s is not tradable", symbol)
	}
	if !asset.Shortable {
		slog.Warn("asset not shortable, short entries may be rejected", "symbol", symbol)
	}
	return asset.Fractionable, nil
}

func (a *Alpaca) SaveStrategyState(symbol, strategyName string, st state.StrategyState) error {
	return a.states.Save(symbol, strategyName, st)
}

func (a *Alpaca) GetStrategyState(symbol, strategyName string) (state.StrategyState, bool, error) {
	return a.states.Load(symbol, strategyName)
}

func timeFrameFor(timeframe time.Duration) marketdata.TimeFrame {
	switch {
	case timeframe >= 24*time.Hour:
		return marketdata.OneDay
	case timeframe >= time.Hour:
		return marketdata.NewTimeFrame(int(timeframe/time.Hour), marketdata.Hour)
	case timeframe >= time.Minute:
		return marketdata.NewTimeFrame(int(timeframe/time.Minute), marketdata.Min)
	default:
		return marketdata.OneMin
	}
}
