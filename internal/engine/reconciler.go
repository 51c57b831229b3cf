package engine

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"time"

	"aitrade/internal/broker"
)

// ReconcileLoop periodically re-reads account and position snapshots
// so the log reflects the broker's view of the world, and nudges a
// dropped connection back up between trade ticks.
func ReconcileLoop(ctx context.Context, brk broker.Broker, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reconcileOnce(ctx, brk)
		}
	}
}

type reconnecter interface {
	Reconnect(ctx context.Context) error
}

func reconcileOnce(ctx context.Context, brk broker.Broker) {
	account, err := brk.GetAccountInfo(ctx)
	if err != nil {
		if errors.Is(err, broker.ErrNoBrokerConnected) {
			if r, ok := brk.(reconnecter); ok {
				if rerr := r.Reconnect(ctx); rerr != nil {
					slog.Error("reconnect failed", "error", rerr)
				} else {
					slog.Info("reconnected", "broker", brk.Name())
				}
			}
			return
		}
		log.Printf("reconcile account failed: %v", err)
		return
	}
	log.Printf("account broker=%s equity=%.2f cash=%.2f buying_power=%.2f",
		brk.Name(), account.Equity, account.Cash, account.BuyingPower)

	positions, err := brk.GetAllPositions(ctx)
	if err != nil {
		log.Printf("reconcile positions failed: %v", err)
		return
	}
	for _, position := range positions {
		log.Printf("position symbol=%s qty=%d avg_entry=%.2f side=%s",
			position.Symbol, position.Qty, position.AvgEntry, position.Side)
	}

	clock, err := brk.GetClock(ctx)
	if err != nil {
		log.Printf("reconcile clock failed: %v", err)
		return
	}
	if !clock.IsOpen {
		log.Printf("market closed, next open %s", clock.NextOpen.Format(time.RFC3339))
	}
}
