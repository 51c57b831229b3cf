package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Symbols:           []string{"NVDA"},
		Interval:          time.Minute,
		SharesPerTrade:    100,
		FastWindow:        13,
		SlowWindow:        21,
		SignalWindow:      9,
		MaxRecords:        100,
		ForceBroker:       "paper",
		OrderTimeout:      15 * time.Second,
		QuoteTimeout:      10 * time.Second,
		ReconcileInterval: time.Minute,
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	if err := validate(validConfig()); err != nil {
		t.Fatalf("expected config to be valid, got %v", err)
	}
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no symbols", func(c *Config) { c.Symbols = nil }},
		{"zero shares", func(c *Config) { c.SharesPerTrade = 0 }},
		{"fast >= slow", func(c *Config) { c.FastWindow = 21 }},
		{"small max-records", func(c *Config) { c.MaxRecords = 5 }},
		{"unknown broker", func(c *Config) { c.ForceBroker = "ibkr" }},
		{"zero interval", func(c *Config) { c.Interval = 0 }},
		{"missing credentials", func(c *Config) { c.ForceBroker = "" }},
	}
	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(&cfg)
		if err := validate(cfg); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestApplyFileRespectsFlagPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trader.yaml")
	contents := "shares_per_trade: 25\nfast_window: 5\nslow_window: 12\nstate_dir: /var/lib/trader\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := validConfig()
	cfg.StateDir = "from-cli"
	setFlags := map[string]bool{"shares": true, "state-dir": true}

	if err := applyFile(&cfg, path, setFlags); err != nil {
		t.Fatalf("apply file: %v", err)
	}

	if cfg.SharesPerTrade != 100 {
		t.Fatalf("CLI flag should win over file, got shares=%d", cfg.SharesPerTrade)
	}
	if cfg.StateDir != "from-cli" {
		t.Fatalf("CLI flag should win over file, got state-dir=%s", cfg.StateDir)
	}
	if cfg.FastWindow != 5 || cfg.SlowWindow != 12 {
		t.Fatalf("file values should fill unset flags, got fast=%d slow=%d", cfg.FastWindow, cfg.SlowWindow)
	}
}

func TestSplitSymbolsNormalizes(t *testing.T) {
	symbols := splitSymbols("nvda, aapl ,,MSFT")
	expected := []string{"NVDA", "AAPL", "MSFT"}
	if len(symbols) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, symbols)
	}
	for i := range expected {
		if symbols[i] != expected[i] {
			t.Fatalf("expected %v, got %v", expected, symbols)
		}
	}
}

func TestParseBoolAcceptsCommonSpellings(t *testing.T) {
	if !parseBool("yes", false) || !parseBool("1", false) || !parseBool("True", false) {
		t.Fatalf("expected truthy spellings to parse true")
	}
	if parseBool("no", true) || parseBool("0", true) {
		t.Fatalf("expected falsy spellings to parse false")
	}
	if !parseBool("garbage", true) {
		t.Fatalf("expected fallback on unparsable input")
	}
}

func TestStrategyName(t *testing.T) {
	cfg := validConfig()
	if got := cfg.StrategyName(); got != "macd_13_21_9" {
		t.Fatalf("expected macd_13_21_9, got %s", got)
	}
}
