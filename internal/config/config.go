package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"aitrade/internal/indicator"
)

// Config drives one trader process. Precedence is CLI flag > env var >
// config file > built-in default.
type Config struct {
	Symbols        []string      `yaml:"symbols"`
	Interval       time.Duration `yaml:"interval"`
	SharesPerTrade int           `yaml:"shares_per_trade"`

	FastWindow   int `yaml:"fast_window"`
	SlowWindow   int `yaml:"slow_window"`
	SignalWindow int `yaml:"signal_window"`
	MaxRecords   int `yaml:"max_records"`
	WarmupBars   int `yaml:"warmup_bars"`

	ForceBroker      string `yaml:"force_broker"`
	ExtendedHours    bool   `yaml:"extended_hours"`
	OvernightTrading bool   `yaml:"overnight_trading"`
	TimeZone         string `yaml:"time_zone"`

	StateDir      string `yaml:"state_dir"`
	DecisionsPath string `yaml:"decisions_path"`

	MaxPositionQty int           `yaml:"max_position_qty"`
	MaxNotional    float64       `yaml:"max_notional"`
	Cooldown       time.Duration `yaml:"cooldown"`
	KillSwitch     bool          `yaml:"kill_switch"`

	OrderTimeout      time.Duration `yaml:"order_timeout"`
	QuoteTimeout      time.Duration `yaml:"quote_timeout"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`

	BaseURL           string  `yaml:"base_url"`
	PaperStartingCash float64 `yaml:"paper_starting_cash"`
	PaperSeed         int64   `yaml:"paper_seed"`

	APIKey    string `yaml:"-"`
	APISecret string `yaml:"-"`
}

func Load() (Config, error) {
	// Missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	var cfg Config
	var configPath string
	var symbols string

	flag.StringVar(&configPath, "config", "", "path to YAML config file")
	flag.StringVar(&symbols, "symbols", "NVDA", "comma-separated symbols to trade")
	flag.DurationVar(&cfg.Interval, "interval", 60*time.Second, "polling interval between quote fetches")
	flag.IntVar(&cfg.SharesPerTrade, "shares", 100, "shares per trade signal")
	flag.IntVar(&cfg.FastWindow, "fast-window", indicator.DefaultFastWindow, "fast EMA window")
	flag.IntVar(&cfg.SlowWindow, "slow-window", indicator.DefaultSlowWindow, "slow EMA window")
	flag.IntVar(&cfg.SignalWindow, "signal-window", indicator.DefaultSignalWindow, "signal line EMA window")
	flag.IntVar(&cfg.MaxRecords, "max-records", 100, "max price records kept in memory")
	flag.IntVar(&cfg.WarmupBars, "warmup-bars", 50, "historical bars used to prime the indicator at startup")
	flag.StringVar(&cfg.ForceBroker, "force-broker", "", "force a specific broker: alpaca or paper (empty = auto)")
	flag.BoolVar(&cfg.ExtendedHours, "extended-hours", true, "allow pre-market and after-hours trading")
	flag.BoolVar(&cfg.OvernightTrading, "overnight", true, "allow overnight session trading")
	flag.StringVar(&cfg.TimeZone, "time-zone", "America/New_York", "exchange time zone for session boundaries")
	flag.StringVar(&cfg.StateDir, "state-dir", "strategy_state", "directory for persisted strategy state")
	flag.StringVar(&cfg.DecisionsPath, "decisions-path", "decisions.ndjson", "path to decisions journal")
	flag.IntVar(&cfg.MaxPositionQty, "max-position", 0, "max absolute position size, 0 = unlimited")
	flag.Float64Var(&cfg.MaxNotional, "max-notional", 0, "max notional per order, 0 = unlimited")
	flag.DurationVar(&cfg.Cooldown, "cooldown", 0, "minimum time between executed trades per symbol")
	flag.BoolVar(&cfg.KillSwitch, "kill-switch", false, "reject every non-hold intent")
	flag.DurationVar(&cfg.OrderTimeout, "order-timeout", 15*time.Second, "bounded wait for order submission")
	flag.DurationVar(&cfg.QuoteTimeout, "quote-timeout", 10*time.Second, "bounded wait for quote fetches")
	flag.DurationVar(&cfg.ReconcileInterval, "reconcile-interval", 60*time.Second, "account/position reconciliation interval")
	flag.StringVar(&cfg.BaseURL, "base-url", "https://paper-api.alpaca.markets", "alpaca trading base URL")
	flag.Float64Var(&cfg.PaperStartingCash, "paper-cash", 100000, "starting cash for the paper broker")
	flag.Int64Var(&cfg.PaperSeed, "paper-seed", 1, "random seed for the paper quote walk")
	flag.Parse()

	setFlags := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

	applyEnv(&cfg, setFlags)

	if configPath != "" {
		if err := applyFile(&cfg, configPath, setFlags); err != nil {
			return cfg, err
		}
	}

	if !setFlags["symbols"] {
		if env := os.Getenv("SYMBOLS"); env != "" {
			symbols = env
		} else if len(cfg.Symbols) > 0 {
			symbols = strings.Join(cfg.Symbols, ",")
		}
	}
	cfg.Symbols = splitSymbols(symbols)

	cfg.APIKey = os.Getenv("ALPACA_API_KEY")
	cfg.APISecret = os.Getenv("ALPACA_API_SECRET")
	cfg.ForceBroker = strings.ToLower(cfg.ForceBroker)

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv fills fields from the environment when the matching flag was
// not given on the command line.
func applyEnv(cfg *Config, setFlags map[string]bool) {
	if !setFlags["force-broker"] {
		if env := os.Getenv("FORCE_BROKER"); env != "" && !strings.EqualFold(env, "auto") {
			cfg.ForceBroker = env
		}
	}
	if !setFlags["extended-hours"] {
		if env := os.Getenv("EXTENDED_HOURS"); env != "" {
			cfg.ExtendedHours = parseBool(env, cfg.ExtendedHours)
		}
	}
	if !setFlags["overnight"] {
		if env := os.Getenv("OVERNIGHT_TRADING"); env != "" {
			cfg.OvernightTrading = parseBool(env, cfg.OvernightTrading)
		}
	}
	if !setFlags["base-url"] {
		if env := os.Getenv("ALPACA_BASE_URL"); env != "" {
			cfg.BaseURL = env
		}
	}
}

// applyFile overlays YAML config values onto fields that neither the
// command line nor the environment has already claimed.
func applyFile(cfg *Config, path string, setFlags map[string]bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if !setFlags["interval"] && fileCfg.Interval > 0 {
		cfg.Interval = fileCfg.Interval
	}
	if !setFlags["shares"] && fileCfg.SharesPerTrade > 0 {
		cfg.SharesPerTrade = fileCfg.SharesPerTrade
	}
	if !setFlags["fast-window"] && fileCfg.FastWindow > 0 {
		cfg.FastWindow = fileCfg.FastWindow
	}
	if !setFlags["slow-window"] && fileCfg.SlowWindow > 0 {
		cfg.SlowWindow = fileCfg.SlowWindow
	}
	if !setFlags["signal-window"] && fileCfg.SignalWindow > 0 {
		cfg.SignalWindow = fileCfg.SignalWindow
	}
	if !setFlags["max-records"] && fileCfg.MaxRecords > 0 {
		cfg.MaxRecords = fileCfg.MaxRecords
	}
	if !setFlags["warmup-bars"] && fileCfg.WarmupBars > 0 {
		cfg.WarmupBars = fileCfg.WarmupBars
	}
	if !setFlags["force-broker"] && cfg.ForceBroker == "" && fileCfg.ForceBroker != "" {
		cfg.ForceBroker = fileCfg.ForceBroker
	}
	if !setFlags["time-zone"] && fileCfg.TimeZone != "" {
		cfg.TimeZone = fileCfg.TimeZone
	}
	if !setFlags["state-dir"] && fileCfg.StateDir != "" {
		cfg.StateDir = fileCfg.StateDir
	}
	if !setFlags["decisions-path"] && fileCfg.DecisionsPath != "" {
		cfg.DecisionsPath = fileCfg.DecisionsPath
	}
	if !setFlags["max-position"] && fileCfg.MaxPositionQty > 0 {
		cfg.MaxPositionQty = fileCfg.MaxPositionQty
	}
	if !setFlags["max-notional"] && fileCfg.MaxNotional > 0 {
		cfg.MaxNotional = fileCfg.MaxNotional
	}
	if !setFlags["cooldown"] && fileCfg.Cooldown > 0 {
		cfg.Cooldown = fileCfg.Cooldown
	}
	if !setFlags["kill-switch"] && fileCfg.KillSwitch {
		cfg.KillSwitch = true
	}
	if !setFlags["order-timeout"] && fileCfg.OrderTimeout > 0 {
		cfg.OrderTimeout = fileCfg.OrderTimeout
	}
	if !setFlags["quote-timeout"] && fileCfg.QuoteTimeout > 0 {
		cfg.QuoteTimeout = fileCfg.QuoteTimeout
	}
	if !setFlags["reconcile-interval"] && fileCfg.ReconcileInterval > 0 {
		cfg.ReconcileInterval = fileCfg.ReconcileInterval
	}
	if !setFlags["base-url"] && os.Getenv("ALPACA_BASE_URL") == "" && fileCfg.BaseURL != "" {
		cfg.BaseURL = fileCfg.BaseURL
	}
	if !setFlags["paper-cash"] && fileCfg.PaperStartingCash > 0 {
		cfg.PaperStartingCash = fileCfg.PaperStartingCash
	}
	if !setFlags["paper-seed"] && fileCfg.PaperSeed != 0 {
		cfg.PaperSeed = fileCfg.PaperSeed
	}
	if len(fileCfg.Symbols) > 0 {
		cfg.Symbols = fileCfg.Symbols
	}
	return nil
}

func validate(cfg Config) error {
	if len(cfg.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	if cfg.Interval <= 0 {
		return fmt.Errorf("interval must be > 0")
	}
	if cfg.SharesPerTrade <= 0 {
		return fmt.Errorf("shares must be > 0")
	}
	if cfg.FastWindow <= 0 || cfg.SlowWindow <= 0 || cfg.SignalWindow <= 0 {
		return fmt.Errorf("indicator windows must be > 0")
	}
	if cfg.FastWindow >= cfg.SlowWindow {
		return fmt.Errorf("fast-window must be < slow-window")
	}
	if cfg.MaxRecords < cfg.SlowWindow {
		return fmt.Errorf("max-records must be >= slow-window")
	}
	switch cfg.ForceBroker {
	case "", "auto", "alpaca", "paper":
	default:
		return fmt.Errorf("invalid force-broker: %s", cfg.ForceBroker)
	}
	if cfg.ForceBroker != "paper" && (cfg.APIKey == "" || cfg.APISecret == "") {
		return fmt.Errorf("ALPACA_API_KEY and ALPACA_API_SECRET are required unless force-broker=paper")
	}
	if cfg.OrderTimeout <= 0 || cfg.QuoteTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0")
	}
	if cfg.MaxPositionQty < 0 || cfg.MaxNotional < 0 || cfg.Cooldown < 0 {
		return fmt.Errorf("risk limits must be >= 0")
	}
	return nil
}

// StrategyName identifies the strategy state record, parameterized the
// same way as its windows.
func (c Config) StrategyName() string {
	return fmt.Sprintf("macd_%d_%d_%d", c.FastWindow, c.SlowWindow, c.SignalWindow)
}

func splitSymbols(raw string) []string {
	parts := strings.Split(raw, ",")
	symbols := make([]string, 0, len(parts))
	for _, part := range parts {
		symbol := strings.ToUpper(strings.TrimSpace(part))
		if symbol != "" {
			symbols = append(symbols, symbol)
		}
	}
	return symbols
}

func parseBool(raw string, fallback bool) bool {
	value, err := strconv.ParseBool(raw)
	if err != nil {
		switch strings.ToLower(raw) {
		case "yes", "y", "t":
			return true
		case "no", "n":
			return false
		}
		return fallback
	}
	return value
}
