package config

import (
	"flag"
	"fmt"
	"os"
	"time"
)

type Config struct {
	Symbol         string
	LowerThreshold float64
	UpperThreshold float64
	RSIWindow      int
	OrderQty       float64
	Interval       time.Duration
	Lookback       time.Duration
	RequestTimeout time.Duration
	LedgerCap      int
	KillSwitch     bool
	TimeInForce    string
	DecisionsPath  string
	JournalPath    string
	RedisAddr      string
	StatusAddr     string
	PaperBaseURL   string
	APIKey         string
	APISecret      string
}

func Load() (Config, error) {
	var cfg Config

	loadDotEnvIfPresent(".env")

	flag.StringVar(&cfg.Symbol, "symbol", "BTC/USD", "traded symbol")
	flag.Float64Var(&cfg.LowerThreshold, "lower", 30, "RSI entry threshold (buy at or below)")
	flag.Float64Var(&cfg.UpperThreshold, "upper", 70, "RSI exit threshold (sell at or above)")
	flag.IntVar(&cfg.RSIWindow, "rsi-window", 14, "RSI lookback window")
	flag.Float64Var(&cfg.OrderQty, "qty", 0.001, "fixed order quantity")
	flag.DurationVar(&cfg.Interval, "interval", 60*time.Second, "decision cycle interval")
	flag.DurationVar(&cfg.Lookback, "lookback", time.Hour, "bar history lookback")
	flag.DurationVar(&cfg.RequestTimeout, "request-timeout", 10*time.Second, "timeout per external call")
	flag.IntVar(&cfg.LedgerCap, "ledger-cap", 256, "max trade updates retained in memory")
	flag.BoolVar(&cfg.KillSwitch, "kill-switch", false, "if true, never place orders")
	flag.StringVar(&cfg.TimeInForce, "time-in-force", "gtc", "time in force: gtc or day")
	flag.StringVar(&cfg.DecisionsPath, "decisions-path", "decisions.ndjson", "path to decisions log")
	flag.StringVar(&cfg.JournalPath, "journal-path", "", "path to sqlite trade journal (empty disables)")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", "", "redis address for trade fan-out (empty disables)")
	flag.StringVar(&cfg.StatusAddr, "status-addr", ":8080", "status/metrics listen address")
	flag.StringVar(&cfg.PaperBaseURL, "paper-base-url", "https://paper-api.alpaca.markets", "paper trading base URL")
	flag.Parse()

	cfg.APIKey = os.Getenv("APCA_API_KEY_ID")
	cfg.APISecret = os.Getenv("APCA_API_SECRET_KEY")

	if err := validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return fmt.Errorf("APCA_API_KEY_ID and APCA_API_SECRET_KEY are required")
	}
	if cfg.RSIWindow <= 1 {
		return fmt.Errorf("rsi-window must be > 1")
	}
	if cfg.LowerThreshold < 0 || cfg.UpperThreshold > 100 {
		return fmt.Errorf("thresholds must lie within [0,100]")
	}
	if cfg.LowerThreshold >= cfg.UpperThreshold {
		return fmt.Errorf("lower must be < upper")
	}
	if cfg.OrderQty <= 0 {
		return fmt.Errorf("qty must be > 0")
	}
	if cfg.Interval <= 0 {
		return fmt.Errorf("interval must be > 0")
	}
	if cfg.Lookback < cfg.Interval {
		return fmt.Errorf("lookback must be >= interval")
	}
	// Bars arrive at one-minute granularity; the RSI needs window+1 closes.
	if minBars := int(cfg.Lookback / time.Minute); minBars < cfg.RSIWindow+1 {
		return fmt.Errorf("lookback of %s yields %d bars, need at least %d", cfg.Lookback, minBars, cfg.RSIWindow+1)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request-timeout must be > 0")
	}
	if cfg.LedgerCap <= 0 {
		return fmt.Errorf("ledger-cap must be > 0")
	}
	if cfg.TimeInForce != "gtc" && cfg.TimeInForce != "day" {
		return fmt.Errorf("unsupported time in force: %s", cfg.TimeInForce)
	}
	return nil
}
