// Package risk gates trade intents before they become orders.
package risk

import (
	"fmt"
	"log/slog"
	"time"

	"aitrade/internal/strategy"
)

// Limits are the static bounds a deployment configures. Zero values
// disable the corresponding check.
type Limits struct {
	MaxPositionQty int
	MaxNotional    float64
	Cooldown       time.Duration
	KillSwitch     bool
}

// Check is the per-tick context an intent is evaluated against.
type Check struct {
	Now           time.Time
	Price         float64
	PositionQty   int
	LastTradeTime time.Time
}

type Gate struct {
	Limits Limits
}

// Evaluate returns nil when the intent may proceed. Rejections carry
// a short machine-readable reason.
func (g Gate) Evaluate(intent strategy.TradeIntent, check Check) error {
	if intent.Action == strategy.Hold {
		return nil
	}

	if g.Limits.KillSwitch {
		slog.Warn("risk rejected", "reason", "kill_switch_enabled", "intent", intent.Action)
		return fmt.Errorf("kill_switch_enabled")
	}
	if intent.Qty <= 0 {
		slog.Warn("risk rejected", "reason", "invalid_quantity", "qty", intent.Qty)
		return fmt.Errorf("invalid_quantity")
	}
	if g.Limits.Cooldown > 0 && !check.LastTradeTime.IsZero() {
		if elapsed := check.Now.Sub(check.LastTradeTime); elapsed < g.Limits.Cooldown {
			slog.Info("risk rejected", "reason", "cooldown_active", "remaining", g.Limits.Cooldown-elapsed)
			return fmt.Errorf("cooldown_active")
		}
	}

	resulting := check.PositionQty + intent.Qty
	if intent.Action.IsSellSide() {
		resulting = check.PositionQty - intent.Qty
	}
	if g.Limits.MaxPositionQty > 0 && abs(resulting) > g.Limits.MaxPositionQty {
		slog.Warn("risk rejected", "reason", "max_position_exceeded",
			"resulting_qty", resulting, "max", g.Limits.MaxPositionQty)
		return fmt.Errorf("max_position_exceeded")
	}

	notional := check.Price * float64(intent.Qty)
	if g.Limits.MaxNotional > 0 && notional > g.Limits.MaxNotional {
		slog.Warn("risk rejected", "reason", "max_notional_exceeded",
			"notional", notional, "max", g.Limits.MaxNotional)
		return fmt.Errorf("max_notional_exceeded")
	}

	slog.Info("risk approved", "intent", intent.Action, "qty", intent.Qty, "notional", notional)
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
