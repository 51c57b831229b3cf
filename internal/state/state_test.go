package state

import (
	"testing"
	"time"

	"aitrade/internal/strategy"
)

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir(), "alpaca")

	saved := StrategyState{
		LastAction:     strategy.Sell,
		Shares:         -200,
		PositionType:   strategy.SideShort,
		LastSignalTime: time.Date(2025, 3, 4, 15, 30, 0, 0, time.UTC),
	}
	if err := store.Save("NVDA", "macd_13_21_9", saved); err != nil {
		t.Fatalf("save state: %v", err)
	}

	loaded, ok, err := store.Load("NVDA", "macd_13_21_9")
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if !ok {
		t.Fatalf("expected state record to exist")
	}
	if loaded.LastAction != saved.LastAction ||
		loaded.Shares != saved.Shares ||
		loaded.PositionType != saved.PositionType ||
		!loaded.LastSignalTime.Equal(saved.LastSignalTime) {
		t.Fatalf("round trip mismatch: saved %+v loaded %+v", saved, loaded)
	}
}

func TestStoreLoadMissingRecord(t *testing.T) {
	store := NewStore(t.TempDir(), "paper")

	_, ok, err := store.Load("AAPL", "macd_13_21_9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected no record for unknown symbol")
	}
}

func TestStoreBrokerSuffixesAreIsolated(t *testing.T) {
	dir := t.TempDir()
	live := NewStore(dir, "alpaca")
	paper := NewStore(dir, "paper")

	if err := live.Save("AAPL", "macd_13_21_9", StrategyState{LastAction: strategy.Buy, Shares: 100, PositionType: strategy.SideLong}); err != nil {
		t.Fatalf("save live state: %v", err)
	}

	_, ok, err := paper.Load("AAPL", "macd_13_21_9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("paper store must not see live state")
	}
}
