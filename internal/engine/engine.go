package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"aitrade/internal/broker"
	"aitrade/internal/config"
	"aitrade/internal/indicator"
	"aitrade/internal/md"
	"aitrade/internal/risk"
	"aitrade/internal/session"
	"aitrade/internal/state"
	"aitrade/internal/strategy"
)

type symbolState struct {
	macd           *indicator.MACD
	tracker        *indicator.Tracker
	lastAction     strategy.Action
	lastSignalTime time.Time
}

// Engine runs the polling trade loop: fetch quote, update indicator,
// classify, decide, gate by session, place the order, persist state.
// One Engine instance owns its symbols; the broker connection is the
// only shared resource and serializes internally.
type Engine struct {
	cfg        config.Config
	strategy   strategy.Strategy
	broker     broker.Broker
	clock      *session.Clock
	decisions  *DecisionLogger
	gate       risk.Gate
	sessionCfg session.Config
	runID      string
	orderSeq   uint64
	symbols    map[string]*symbolState
	order      []string

	// now is swappable so session gating is testable.
	now func() time.Time
}

type failoverer interface {
	Failover(ctx context.Context) error
}

func New(cfg config.Config, strat strategy.Strategy, brk broker.Broker, clock *session.Clock, decisions *DecisionLogger) (*Engine, error) {
	symbols := make(map[string]*symbolState, len(cfg.Symbols))
	for _, symbol := range cfg.Symbols {
		macd, err := indicator.NewMACD(cfg.FastWindow, cfg.SlowWindow, cfg.SignalWindow, cfg.MaxRecords)
		if err != nil {
			return nil, fmt.Errorf("indicator for %s: %w", symbol, err)
		}
		symbols[symbol] = &symbolState{
			macd:    macd,
			tracker: indicator.NewTracker(),
		}
	}
	return &Engine{
		cfg:       cfg,
		strategy:  strat,
		broker:    brk,
		clock:     clock,
		decisions: decisions,
		gate: risk.Gate{Limits: risk.Limits{
			MaxPositionQty: cfg.MaxPositionQty,
			MaxNotional:    cfg.MaxNotional,
			Cooldown:       cfg.Cooldown,
			KillSwitch:     cfg.KillSwitch,
		}},
		sessionCfg: session.Config{
			ExtendedHours: cfg.ExtendedHours,
			Overnight:     cfg.OvernightTrading,
		},
		runID:   decisions.RunID(),
		symbols: symbols,
		order:   cfg.Symbols,
		now:     time.Now,
	}, nil
}

// Warmup reloads persisted strategy state and primes each symbol's
// indicator from historical bars so a restart does not wait a full
// slow window before producing signals.
func (e *Engine) Warmup(ctx context.Context) {
	for _, symbol := range e.order {
		st := e.symbols[symbol]

		saved, ok, err := e.broker.GetStrategyState(symbol, e.cfg.StrategyName())
		if err != nil {
			slog.Warn("strategy state load failed", "symbol", symbol, "error", err)
		} else if ok {
			st.lastAction = saved.LastAction
			st.lastSignalTime = saved.LastSignalTime
			slog.Info("strategy state reloaded",
				"symbol", symbol, "last_action", saved.LastAction,
				"position_type", saved.PositionType, "shares", saved.Shares)
		}

		if e.cfg.WarmupBars <= 0 {
			continue
		}
		bars, err := e.broker.GetHistoricalData(ctx, symbol, time.Minute, e.cfg.WarmupBars)
		if err != nil {
			slog.Warn("indicator warmup skipped", "symbol", symbol, "error", err)
			continue
		}
		for _, bar := range bars {
			snapshot := st.macd.Update(bar.Close)
			if snapshot.Ready {
				st.tracker.Update(snapshot.MACD, snapshot.Signal)
			}
		}
		log.Printf("warmup complete symbol=%s bars=%d ready=%v", symbol, len(bars), st.macd.Count() >= e.cfg.SlowWindow)
	}
}

// Run polls until the context is cancelled. The in-flight iteration is
// abandoned between symbols on shutdown; no order is ever left half
// constructed across the boundary.
func (e *Engine) Run(ctx context.Context) {
	log.Printf("trading loop started run_id=%s symbols=%v interval=%s", e.runID, e.order, e.cfg.Interval)
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		e.runOnce(ctx)
		select {
		case <-ctx.Done():
			log.Printf("trading loop stopped run_id=%s", e.runID)
			return
		case <-ticker.C:
		}
	}
}

func (e *Engine) runOnce(ctx context.Context) {
	for _, symbol := range e.order {
		if ctx.Err() != nil {
			return
		}
		e.onTick(ctx, symbol, e.symbols[symbol])
	}
}

func (e *Engine) onTick(ctx context.Context, symbol string, st *symbolState) {
	now := e.now()
	sess := e.clock.Current(now)
	decision := Decision{
		RunID:     e.runID,
		Timestamp: now.UTC(),
		Symbol:    symbol,
		Session:   sess,
		Broker:    e.broker.Name(),
	}

	quoteCtx, cancel := context.WithTimeout(ctx, e.cfg.QuoteTimeout)
	quote, err := e.broker.GetRealtimeData(quoteCtx, symbol)
	cancel()
	if err != nil {
		decision.Result = "skip_no_data"
		decision.RejectReason = err.Error()
		e.decisions.Append(decision)
		if errors.Is(err, broker.ErrNoBrokerConnected) {
			e.tryFailover(ctx)
		}
		log.Printf("tick skipped symbol=%s reason=%v", symbol, err)
		return
	}

	decision.Bid = quote.Bid
	decision.Ask = quote.Ask
	decision.Mid = quote.Mid()

	snapshot := st.macd.Update(quote.Mid())
	decision.MACD = snapshot.MACD
	decision.Signal = snapshot.Signal
	decision.Histogram = snapshot.Histogram
	if !snapshot.Ready {
		decision.Result = "warming_up"
		e.decisions.Append(decision)
		log.Printf("warming up symbol=%s samples=%d/%d", symbol, st.macd.Count(), e.cfg.SlowWindow)
		return
	}

	signalState := st.tracker.Update(snapshot.MACD, snapshot.Signal)
	decision.MACDPosition = signalState.Position
	decision.Crossover = signalState.Crossover
	decision.Crossunder = signalState.Crossunder

	positions, err := e.broker.GetAllPositions(ctx)
	if err != nil {
		decision.Result = "position_query_failed"
		decision.RejectReason = err.Error()
		e.decisions.Append(decision)
		if errors.Is(err, broker.ErrNoBrokerConnected) {
			e.tryFailover(ctx)
		}
		return
	}
	position := broker.PositionFor(positions, symbol)
	decision.PositionSide = position.Side
	decision.PositionQty = position.Qty

	intent := e.strategy.Decide(strategy.MarketSnapshot{
		Symbol:     symbol,
		Timestamp:  now,
		Side:       position.Side,
		Qty:        position.Qty,
		Signal:     signalState,
		LastAction: st.lastAction,
	})
	decision.Intent = intent.Action
	decision.IntentQty = intent.Qty
	decision.Reason = intent.Reason

	slog.Info("decision",
		"symbol", symbol, "session", sess,
		"macd_position", signalState.Position,
		"crossover", signalState.Crossover, "crossunder", signalState.Crossunder,
		"position", position.Side, "qty", position.Qty,
		"action", intent.Action, "intent_qty", intent.Qty, "reason", intent.Reason)

	if intent.Action == strategy.Hold {
		decision.Result = "hold"
		e.decisions.Append(decision)
		return
	}

	if !session.IsTradable(sess, e.sessionCfg) {
		decision.Result = "outside_trading_hours"
		e.decisions.Append(decision)
		slog.Warn("order suppressed outside allowed trading hours",
			"symbol", symbol, "session", sess,
			"extended_hours", e.sessionCfg.ExtendedHours, "overnight", e.sessionCfg.Overnight)
		return
	}

	if err := e.gate.Evaluate(intent, risk.Check{
		Now:           now,
		Price:         quote.Mid(),
		PositionQty:   position.Qty,
		LastTradeTime: st.lastSignalTime,
	}); err != nil {
		decision.Result = "risk_rejected"
		decision.RejectReason = err.Error()
		e.decisions.Append(decision)
		return
	}

	req, err := e.buildOrder(ctx, symbol, quote, sess, intent)
	if err != nil {
		decision.Result = "order_build_failed"
		decision.RejectReason = err.Error()
		e.decisions.Append(decision)
		log.Printf("order build failed symbol=%s action=%s err=%v", symbol, intent.Action, err)
		return
	}
	if req.LimitPrice != nil {
		decision.LimitPrice = *req.LimitPrice
	}
	decision.ClientOrderID = req.ClientOrderID

	orderCtx, cancelOrder := context.WithTimeout(ctx, e.cfg.OrderTimeout)
	ref, err := e.broker.PlaceOrder(orderCtx, req)
	cancelOrder()
	if err != nil {
		e.handleOrderFailure(ctx, symbol, st, position, intent, decision, err)
		return
	}

	decision.Result = "order_submitted"
	decision.OrderID = ref.ID
	e.decisions.Append(decision)
	slog.Info("order submitted",
		"symbol", symbol, "side", req.Side, "qty", req.Qty, "type", req.Type,
		"order_id", ref.ID, "client_order_id", ref.ClientOrderID, "status", ref.Status)

	e.recordExecution(symbol, st, intent, resultingQty(position, intent), now)
}

// resultingQty is the signed position left after the intent fills: a
// flatten-and-flip order trades more shares than it leaves behind.
func resultingQty(before broker.Position, intent strategy.TradeIntent) int {
	if intent.Action.IsBuySide() {
		return before.Qty + intent.Qty
	}
	return before.Qty - intent.Qty
}

// buildOrder constructs a market order during regular hours and a
// limit order everywhere else, per the session pricing policy.
func (e *Engine) buildOrder(ctx context.Context, symbol string, quote md.Quote, sess session.Session, intent strategy.TradeIntent) (broker.OrderRequest, error) {
	side := alpaca.Sell
	if intent.Action.IsBuySide() {
		side = alpaca.Buy
	}

	req := broker.OrderRequest{
		Symbol:        symbol,
		Qty:           intent.Qty,
		Side:          side,
		Type:          alpaca.Market,
		TimeInForce:   alpaca.Day,
		ClientOrderID: e.nextClientOrderID(),
	}

	if !session.RequiresLimit(sess) {
		return req, nil
	}

	eligible, err := e.broker.ExtendedHoursEligible(ctx, symbol)
	if err != nil {
		return broker.OrderRequest{}, fmt.Errorf("eligibility check: %w", err)
	}
	if !eligible {
		// The broker may still reject it; surface the risk and proceed.
		slog.Warn("symbol may not be eligible for extended hours", "symbol", symbol)
	}

	limitPrice, err := session.LimitPrice(side, quote, sess)
	if err != nil {
		return broker.OrderRequest{}, err
	}
	req.Type = alpaca.Limit
	req.LimitPrice = &limitPrice
	req.ExtendedHours = true
	return req, nil
}

// handleOrderFailure distinguishes an outright rejection from an
// ambiguous timeout. After a timeout the position is re-queried: a
// position moved in the intended direction is recorded as executed,
// anything else leaves the persisted state untouched so the next tick
// re-decides instead of blindly resending.
func (e *Engine) handleOrderFailure(ctx context.Context, symbol string, st *symbolState, before broker.Position, intent strategy.TradeIntent, decision Decision, orderErr error) {
	if errors.Is(orderErr, context.DeadlineExceeded) {
		positions, err := e.broker.GetAllPositions(ctx)
		if err == nil {
			after := broker.PositionFor(positions, symbol)
			moved := after.Qty > before.Qty
			if !intent.Action.IsBuySide() {
				moved = after.Qty < before.Qty
			}
			if moved {
				decision.Result = "ambiguous_timeout_filled"
				decision.RejectReason = orderErr.Error()
				e.decisions.Append(decision)
				slog.Warn("order timed out but position moved, recording execution",
					"symbol", symbol, "before_qty", before.Qty, "after_qty", after.Qty)
				e.recordExecution(symbol, st, intent, resultingQty(before, intent), e.now())
				return
			}
		}
		decision.Result = "order_timeout_unfilled"
		decision.RejectReason = orderErr.Error()
		e.decisions.Append(decision)
		slog.Warn("order timed out with no position change, state unchanged", "symbol", symbol)
		return
	}

	decision.Result = "order_rejected"
	decision.RejectReason = orderErr.Error()
	e.decisions.Append(decision)
	slog.Error("order rejected", "symbol", symbol, "action", intent.Action, "qty", intent.Qty, "error", orderErr)

	if errors.Is(orderErr, broker.ErrNoBrokerConnected) {
		e.tryFailover(ctx)
	}
}

// recordExecution persists strategy state after an executed action. A
// persistence failure is logged but never blocks the order that
// already succeeded.
func (e *Engine) recordExecution(symbol string, st *symbolState, intent strategy.TradeIntent, shares int, when time.Time) {
	st.lastAction = intent.Action
	st.lastSignalTime = when

	positionType := strategy.SideNone
	switch {
	case shares > 0:
		positionType = strategy.SideLong
	case shares < 0:
		positionType = strategy.SideShort
	}

	record := state.StrategyState{
		LastAction:     intent.Action,
		Shares:         shares,
		PositionType:   positionType,
		LastSignalTime: when.UTC(),
	}
	if err := e.broker.SaveStrategyState(symbol, e.cfg.StrategyName(), record); err != nil {
		slog.Error("strategy state save failed", "symbol", symbol, "error", err)
		return
	}
	slog.Info("strategy state saved",
		"symbol", symbol, "strategy", e.cfg.StrategyName(),
		"last_action", record.LastAction, "shares", record.Shares,
		"position_type", record.PositionType,
		"last_signal_time", record.LastSignalTime.Format(time.RFC3339))
}

func (e *Engine) tryFailover(ctx context.Context) {
	f, ok := e.broker.(failoverer)
	if !ok {
		return
	}
	if err := f.Failover(ctx); err != nil {
		slog.Error("failover failed", "error", err)
		return
	}
	slog.Info("failover complete", "broker", e.broker.Name())
}

func (e *Engine) nextClientOrderID() string {
	seq := atomic.AddUint64(&e.orderSeq, 1)
	return fmt.Sprintf("%s-%d", e.runID, seq)
}
