package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"aitrade/internal/md"
	"aitrade/internal/state"
)

// Selector owns the single broker connection: primary first, fallback
// on any connection failure, or exactly one backend when forced. All
// capability calls delegate to the current backend and fail with
// ErrNoBrokerConnected while no connection is up.
//
// The mutex serializes connect, switch, and disconnect transitions as
// well as order submissions across goroutines.
type Selector struct {
	mu       sync.Mutex
	primary  Broker
	fallback Broker
	force    string
	current  Broker
}

type Status struct {
	CurrentBroker string
	ForceBroker   string
	IsConnected   bool
}

func NewSelector(primary, fallback Broker, force string) *Selector {
	return &Selector{
		primary:  primary,
		fallback: fallback,
		force:    strings.ToLower(force),
	}
}

// Connect runs the selection algorithm. A forced backend that cannot
// connect is fatal; in auto mode both backends failing is fatal.
func (s *Selector) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked(ctx)
}

func (s *Selector) connectLocked(ctx context.Context) error {
	if s.force != "" && s.force != "auto" {
		target := s.brokerNamed(s.force)
		if target == nil {
			return fmt.Errorf("%w: unknown forced broker %q", ErrConnection, s.force)
		}
		slog.Info("forcing broker", "broker", s.force)
		if err := target.Connect(ctx); err != nil {
			return fmt.Errorf("%w: forced broker %s: %v", ErrConnection, s.force, err)
		}
		s.current = target
		return nil
	}

	slog.Info("auto broker selection", "primary", s.primary.Name(), "fallback", s.fallback.Name())
	primaryErr := s.primary.Connect(ctx)
	if primaryErr == nil {
		s.current = s.primary
		return nil
	}
	slog.Warn("primary broker unavailable, trying fallback", "primary", s.primary.Name(), "error", primaryErr)

	fallbackErr := s.fallback.Connect(ctx)
	if fallbackErr == nil {
		s.current = s.fallback
		return nil
	}

	slog.Error("no broker connection available", "primary_error", primaryErr, "fallback_error", fallbackErr)
	return fmt.Errorf("%w: %v", ErrConnection, errors.Join(primaryErr, fallbackErr))
}

func (s *Selector) brokerNamed(name string) Broker {
	switch name {
	case s.primary.Name():
		return s.primary
	case s.fallback.Name():
		return s.fallback
	default:
		return nil
	}
}

func (s *Selector) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// BrokerType names the currently connected backend, or "" when
// disconnected.
func (s *Selector) BrokerType() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.Name()
}

func (s *Selector) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := Status{ForceBroker: s.force, IsConnected: s.current != nil}
	if s.current != nil {
		status.CurrentBroker = s.current.Name()
	}
	return status
}

// SwitchTo tears down the current connection, ignoring teardown
// errors, and brings up the named backend. On failure the selector is
// left disconnected and the error is returned; it never panics.
func (s *Selector) SwitchTo(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = strings.ToLower(name)
	if s.current != nil && s.current.Name() == name {
		slog.Info("already using requested broker", "broker", name)
		return nil
	}

	target := s.brokerNamed(name)
	if target == nil {
		return fmt.Errorf("unknown broker %q", name)
	}

	if s.current != nil {
		slog.Info("switching broker", "from", s.current.Name(), "to", name)
		if err := s.current.Disconnect(); err != nil {
			slog.Warn("teardown error ignored", "broker", s.current.Name(), "error", err)
		}
		s.current = nil
	}

	if err := target.Connect(ctx); err != nil {
		slog.Error("broker switch failed", "broker", name, "error", err)
		return fmt.Errorf("switch to %s: %w", name, err)
	}
	s.current = target
	return nil
}

// Failover swaps to the other backend after a connectivity error on
// the current one. Forced mode never fails over.
func (s *Selector) Failover(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.force != "" && s.force != "auto" {
		return fmt.Errorf("%w: failover disabled in forced mode", ErrConnection)
	}

	target := s.fallback
	if s.current == s.fallback {
		target = s.primary
	}
	if s.current != nil {
		if err := s.current.Disconnect(); err != nil {
			slog.Warn("teardown error ignored", "broker", s.current.Name(), "error", err)
		}
		s.current = nil
	}

	slog.Warn("failing over", "to", target.Name())
	if err := target.Connect(ctx); err != nil {
		return fmt.Errorf("%w: failover to %s: %v", ErrConnection, target.Name(), err)
	}
	s.current = target
	return nil
}

// Reconnect drops the current connection and re-runs the selection
// algorithm, preferring the primary backend again.
func (s *Selector) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		if err := s.current.Disconnect(); err != nil {
			slog.Warn("teardown error ignored", "broker", s.current.Name(), "error", err)
		}
		s.current = nil
	}
	return s.connectLocked(ctx)
}

func (s *Selector) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	err := s.current.Disconnect()
	s.current = nil
	return err
}

// Delegated capability calls. Every one re-checks the connection; a
// backend can drop between ticks.

// Name reports the active backend so logs and journal records name
// the broker that actually handled the call.
func (s *Selector) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return "none"
	}
	return s.current.Name()
}

func (s *Selector) IsPaperTrading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && s.current.IsPaperTrading()
}

func (s *Selector) GetAccountInfo(ctx context.Context) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Account{}, ErrNoBrokerConnected
	}
	return s.current.GetAccountInfo(ctx)
}

func (s *Selector) GetAllPositions(ctx context.Context) ([]Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, ErrNoBrokerConnected
	}
	return s.current.GetAllPositions(ctx)
}

func (s *Selector) GetHistoricalData(ctx context.Context, symbol string, timeframe time.Duration, limit int) ([]md.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, ErrNoBrokerConnected
	}
	return s.current.GetHistoricalData(ctx, symbol, timeframe, limit)
}

func (s *Selector) GetRealtimeData(ctx context.Context, symbol string) (md.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return md.Quote{}, ErrNoBrokerConnected
	}
	return s.current.GetRealtimeData(ctx, symbol)
}

func (s *Selector) PlaceOrder(ctx context.Context, req OrderRequest) (OrderRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return OrderRef{}, ErrNoBrokerConnected
	}
	return s.current.PlaceOrder(ctx, req)
}

func (s *Selector) GetClock(ctx context.Context) (Clock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Clock{}, ErrNoBrokerConnected
	}
	return s.current.GetClock(ctx)
}

func (s *Selector) ExtendedHoursEligible(ctx context.Context, symbol string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return false, ErrNoBrokerConnected
	}
	return s.current.ExtendedHoursEligible(ctx, symbol)
}

func (s *Selector) SaveStrategyState(symbol, strategyName string, st state.StrategyState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ErrNoBrokerConnected
	}
	return s.current.SaveStrategyState(symbol, strategyName, st)
}

func (s *Selector) GetStrategyState(symbol, strategyName string) (state.StrategyState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return state.StrategyState{}, false, ErrNoBrokerConnected
	}
	return s.current.GetStrategyState(symbol, strategyName)
}
