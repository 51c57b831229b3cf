package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"aitrade/internal/md"
	"aitrade/internal/state"
)

type fakeBroker struct {
	name        string
	connectErr  error
	connects    int
	disconnects int
	connected   bool
}

func (f *fakeBroker) Name() string { return f.name }

func (f *fakeBroker) Connect(ctx context.Context) error {
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeBroker) Disconnect() error {
	f.disconnects++
	f.connected = false
	return errors.New("teardown noise")
}

func (f *fakeBroker) IsPaperTrading() bool { return true }

func (f *fakeBroker) GetAccountInfo(ctx context.Context) (Account, error) {
	return Account{ID: f.name}, nil
}

func (f *fakeBroker) GetAllPositions(ctx context.Context) ([]Position, error) {
	return nil, nil
}

func (f *fakeBroker) GetHistoricalData(ctx context.Context, symbol string, timeframe time.Duration, limit int) ([]md.Bar, error) {
	return nil, nil
}

func (f *fakeBroker) GetRealtimeData(ctx context.Context, symbol string) (md.Quote, error) {
	return md.Quote{Symbol: symbol, Bid: 99, Ask: 100}, nil
}

func (f *fakeBroker) PlaceOrder(ctx context.Context, req OrderRequest) (OrderRef, error) {
	return OrderRef{ID: "order-1", ClientOrderID: req.ClientOrderID}, nil
}

func (f *fakeBroker) GetClock(ctx context.Context) (Clock, error) { return Clock{}, nil }

func (f *fakeBroker) ExtendedHoursEligible(ctx context.Context, symbol string) (bool, error) {
	return true, nil
}

func (f *fakeBroker) SaveStrategyState(symbol, strategyName string, st state.StrategyState) error {
	return nil
}

func (f *fakeBroker) GetStrategyState(symbol, strategyName string) (state.StrategyState, bool, error) {
	return state.StrategyState{}, false, nil
}

func TestSelectorPrefersPrimary(t *testing.T) {
	primary := &fakeBroker{name: "alpaca"}
	fallback := &fakeBroker{name: "paper"}
	selector := NewSelector(primary, fallback, "")

	require.NoError(t, selector.Connect(context.Background()))
	require.Equal(t, "alpaca", selector.BrokerType())
	require.Zero(t, fallback.connects)
}

func TestSelectorFallsBackWhenPrimaryFails(t *testing.T) {
	primary := &fakeBroker{name: "alpaca", connectErr: errors.New("refused")}
	fallback := &fakeBroker{name: "paper"}
	selector := NewSelector(primary, fallback, "")

	require.NoError(t, selector.Connect(context.Background()))
	require.Equal(t, "paper", selector.BrokerType())
}

func TestSelectorFailsHardWhenBothFail(t *testing.T) {
	primary := &fakeBroker{name: "alpaca", connectErr: errors.New("refused")}
	fallback := &fakeBroker{name: "paper", connectErr: errors.New("also refused")}
	selector := NewSelector(primary, fallback, "")

	err := selector.Connect(context.Background())
	require.ErrorIs(t, err, ErrConnection)
	require.False(t, selector.IsConnected())
}

func TestSelectorForcedBrokerFailsHard(t *testing.T) {
	primary := &fakeBroker{name: "alpaca", connectErr: errors.New("refused")}
	fallback := &fakeBroker{name: "paper"}
	selector := NewSelector(primary, fallback, "alpaca")

	err := selector.Connect(context.Background())
	require.ErrorIs(t, err, ErrConnection)
	// Forced mode never touches the fallback.
	require.Zero(t, fallback.connects)
}

func TestSelectorSwitchToIgnoresTeardownErrors(t *testing.T) {
	primary := &fakeBroker{name: "alpaca"}
	fallback := &fakeBroker{name: "paper"}
	selector := NewSelector(primary, fallback, "")

	require.NoError(t, selector.Connect(context.Background()))
	require.NoError(t, selector.SwitchTo(context.Background(), "paper"))
	require.Equal(t, "paper", selector.BrokerType())
	require.Equal(t, 1, primary.disconnects)

	// Switching to the already-connected backend is a no-op.
	require.NoError(t, selector.SwitchTo(context.Background(), "paper"))
	require.Equal(t, 1, fallback.connects)
}

func TestSelectorSwitchFailureLeavesDisconnected(t *testing.T) {
	primary := &fakeBroker{name: "alpaca"}
	fallback := &fakeBroker{name: "paper", connectErr: errors.New("down")}
	selector := NewSelector(primary, fallback, "")

	require.NoError(t, selector.Connect(context.Background()))
	require.Error(t, selector.SwitchTo(context.Background(), "paper"))
	require.False(t, selector.IsConnected())

	_, err := selector.GetAccountInfo(context.Background())
	require.ErrorIs(t, err, ErrNoBrokerConnected)
}

func TestSelectorDelegatedCallsRequireConnection(t *testing.T) {
	selector := NewSelector(&fakeBroker{name: "alpaca"}, &fakeBroker{name: "paper"}, "")

	_, err := selector.GetRealtimeData(context.Background(), "NVDA")
	require.ErrorIs(t, err, ErrNoBrokerConnected)
	_, err = selector.PlaceOrder(context.Background(), OrderRequest{})
	require.ErrorIs(t, err, ErrNoBrokerConnected)
	_, err = selector.GetAllPositions(context.Background())
	require.ErrorIs(t, err, ErrNoBrokerConnected)
	err = selector.SaveStrategyState("NVDA", "macd", state.StrategyState{})
	require.ErrorIs(t, err, ErrNoBrokerConnected)
}

func TestSelectorStatusReflectsConnection(t *testing.T) {
	primary := &fakeBroker{name: "alpaca"}
	fallback := &fakeBroker{name: "paper"}
	selector := NewSelector(primary, fallback, "alpaca")

	status := selector.Status()
	require.False(t, status.IsConnected)
	require.Equal(t, "alpaca", status.ForceBroker)
	require.Empty(t, status.CurrentBroker)

	require.NoError(t, selector.Connect(context.Background()))
	status = selector.Status()
	require.True(t, status.IsConnected)
	require.Equal(t, "alpaca", status.CurrentBroker)
}

func TestSelectorFailoverSwapsBackends(t *testing.T) {
	primary := &fakeBroker{name: "alpaca"}
	fallback := &fakeBroker{name: "paper"}
	selector := NewSelector(primary, fallback, "")

	require.NoError(t, selector.Connect(context.Background()))
	require.NoError(t, selector.Failover(context.Background()))
	require.Equal(t, "paper", selector.BrokerType())

	require.NoError(t, selector.Failover(context.Background()))
	require.Equal(t, "alpaca", selector.BrokerType())
}

func TestSelectorReconnectPrefersPrimaryAgain(t *testing.T) {
	primary := &fakeBroker{name: "alpaca", connectErr: errors.New("refused")}
	fallback := &fakeBroker{name: "paper"}
	selector := NewSelector(primary, fallback, "")

	require.NoError(t, selector.Connect(context.Background()))
	require.Equal(t, "paper", selector.BrokerType())

	primary.connectErr = nil
	require.NoError(t, selector.Reconnect(context.Background()))
	require.Equal(t, "alpaca", selector.BrokerType())
}
