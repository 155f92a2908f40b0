package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tradeforge/riskcore/internal/risk"
	"github.com/tradeforge/riskcore/internal/riskerr"
)

// Feed holds the market data connection settings.
type Feed struct {
	URL                  string        `json:"url"`
	Key                  string        `json:"key"`
	Secret               string        `json:"secret"`
	Symbols              []string      `json:"symbols"`
	MaxReconnectAttempts int           `json:"max_reconnect_attempts"`
	ReconnectBase        time.Duration `json:"reconnect_base"`
}

// Config is the full service configuration, loaded from an optional
// JSON file and then overridden by environment variables.
type Config struct {
	DatabaseURL       string      `json:"database_url"`
	Feed              Feed        `json:"feed"`
	Risk              risk.Limits `json:"risk"`
	InitialBalance    float64     `json:"initial_balance"`
	MetricsPort       int         `json:"metrics_port"`
	LogLevel          string      `json:"log_level"`
	ConsoleLog        bool        `json:"console_log"`
	TickRetentionDays int         `json:"tick_retention_days"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Feed: Feed{
			Symbols:              []string{"EURUSD", "GBPUSD", "USDJPY"},
			MaxReconnectAttempts: 5,
			ReconnectBase:        time.Second,
		},
		Risk:              risk.DefaultLimits(),
		InitialBalance:    10000,
		MetricsPort:       9090,
		LogLevel:          "info",
		ConsoleLog:        true,
		TickRetentionDays: 3,
	}
}

// Load builds the configuration from defaults, an optional JSON file
// and environment overrides, in that order of precedence.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, riskerr.Wrap(riskerr.CategoryConfig, "config", "load", "read config file", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, riskerr.Wrap(riskerr.CategoryConfig, "config", "load", "parse config file", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("MARKET_FEED_URL"); v != "" {
		c.Feed.URL = v
	}
	if v := os.Getenv("MARKET_FEED_KEY"); v != "" {
		c.Feed.Key = v
	}
	if v := os.Getenv("MARKET_FEED_SECRET"); v != "" {
		c.Feed.Secret = v
	}
	if v := os.Getenv("MARKET_FEED_SYMBOLS"); v != "" {
		parts := strings.Split(v, ",")
		symbols := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				symbols = append(symbols, p)
			}
		}
		c.Feed.Symbols = symbols
	}
	if v, ok := envFloat("MAX_DRAWDOWN_PCT"); ok {
		c.Risk.MaxDrawdownPct = v
	}
	if v, ok := envFloat("RISK_PER_TRADE_PCT"); ok {
		c.Risk.RiskPerTradePct = v
	}
	if v, ok := envFloat("DAILY_LOSS_LIMIT"); ok {
		c.Risk.DailyLossLimitPct = v
	}
	if v, ok := envInt("MAX_POSITIONS"); ok {
		c.Risk.MaxPositions = v
	}
	if v, ok := envInt("MAX_TRADES_PER_SYMBOL_HOUR"); ok {
		c.Risk.MaxTradesPerSymbolHour = v
	}
	if v, ok := envFloat("INITIAL_BALANCE"); ok {
		c.InitialBalance = v
	}
	if v, ok := envInt("METRICS_PORT"); ok {
		c.MetricsPort = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return riskerr.New(riskerr.CategoryConfig, "config", "validate", "database URL is required")
	}
	if c.InitialBalance <= 0 {
		return riskerr.New(riskerr.CategoryConfig, "config", "validate", "initial balance must be positive")
	}
	if c.TickRetentionDays <= 0 {
		c.TickRetentionDays = 3
	}
	c.Risk = c.Risk.WithDefaults()
	return nil
}

func envFloat(name string) (float64, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
