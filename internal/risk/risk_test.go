package risk

import (
	"testing"
	"time"

	"aitrade/internal/strategy"
)

func buyIntent(qty int) strategy.TradeIntent {
	return strategy.TradeIntent{Action: strategy.Buy, Qty: qty}
}

func TestGatePassesHoldWithoutChecks(t *testing.T) {
	gate := Gate{Limits: Limits{KillSwitch: true}}
	if err := gate.Evaluate(strategy.TradeIntent{Action: strategy.Hold}, Check{}); err != nil {
		t.Fatalf("hold must always pass, got %v", err)
	}
}

func TestGateRejectsKillSwitch(t *testing.T) {
	gate := Gate{Limits: Limits{KillSwitch: true}}
	if err := gate.Evaluate(buyIntent(1), Check{Now: time.Now(), Price: 100}); err == nil {
		t.Fatalf("expected kill switch rejection")
	}
}

func TestGateRejectsCooldown(t *testing.T) {
	gate := Gate{Limits: Limits{Cooldown: time.Minute}}
	check := Check{
		Now:           time.Now(),
		LastTradeTime: time.Now().Add(-30 * time.Second),
		Price:         100,
	}
	if err := gate.Evaluate(buyIntent(1), check); err == nil {
		t.Fatalf("expected cooldown rejection")
	}
}

func TestGateAllowsAfterCooldownExpires(t *testing.T) {
	gate := Gate{Limits: Limits{Cooldown: time.Minute}}
	check := Check{
		Now:           time.Now(),
		LastTradeTime: time.Now().Add(-2 * time.Minute),
		Price:         100,
	}
	if err := gate.Evaluate(buyIntent(1), check); err != nil {
		t.Fatalf("expected approval, got %v", err)
	}
}

func TestGateRejectsMaxPosition(t *testing.T) {
	gate := Gate{Limits: Limits{MaxPositionQty: 150}}
	check := Check{Now: time.Now(), Price: 100, PositionQty: 100}
	if err := gate.Evaluate(buyIntent(100), check); err == nil {
		t.Fatalf("expected max position rejection")
	}
}

func TestGateMaxPositionCoversShortFlip(t *testing.T) {
	gate := Gate{Limits: Limits{MaxPositionQty: 150}}
	// Short 100 flipping with 200 sold lands at -300.
	check := Check{Now: time.Now(), Price: 100, PositionQty: -100}
	intent := strategy.TradeIntent{Action: strategy.Sell, Qty: 200}
	if err := gate.Evaluate(intent, check); err == nil {
		t.Fatalf("expected max position rejection on short side")
	}
}

func TestGateRejectsMaxNotional(t *testing.T) {
	gate := Gate{Limits: Limits{MaxNotional: 150}}
	check := Check{Now: time.Now(), Price: 100}
	if err := gate.Evaluate(buyIntent(2), check); err == nil {
		t.Fatalf("expected max notional rejection")
	}
}

func TestGateZeroLimitsDisableChecks(t *testing.T) {
	gate := Gate{}
	check := Check{Now: time.Now(), Price: 1000, PositionQty: 100000}
	if err := gate.Evaluate(buyIntent(100000), check); err != nil {
		t.Fatalf("expected approval with unlimited gate, got %v", err)
	}
}
