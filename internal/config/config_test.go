package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoad_DefaultsWithoutFile tests the baseline configuration
func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/riskcore_test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 10000.0, cfg.InitialBalance)
	assert.Equal(t, 9090, cfg.MetricsPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 3, cfg.TickRetentionDays)
	assert.Equal(t, 5, cfg.Feed.MaxReconnectAttempts)
	assert.Equal(t, time.Second, cfg.Feed.ReconnectBase)
	assert.Equal(t, 0.14, cfg.Risk.MaxDrawdownPct)
	assert.Equal(t, 0.02, cfg.Risk.RiskPerTradePct)
}

// TestLoad_FileThenEnvOverride tests the precedence order
func TestLoad_FileThenEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"database_url": "postgres://file-host/riskcore",
		"initial_balance": 25000,
		"risk": {"max_drawdown_pct": 0.10},
		"feed": {"url": "wss://file-venue/stream", "symbols": ["EURUSD"]}
	}`), 0644))

	t.Setenv("DATABASE_URL", "postgres://env-host/riskcore")
	t.Setenv("MAX_DRAWDOWN_PCT", "0.08")

	cfg, err := Load(path)
	require.NoError(t, err)

	// Environment beats the file.
	assert.Equal(t, "postgres://env-host/riskcore", cfg.DatabaseURL)
	assert.Equal(t, 0.08, cfg.Risk.MaxDrawdownPct)
	// File beats the defaults.
	assert.Equal(t, 25000.0, cfg.InitialBalance)
	assert.Equal(t, "wss://file-venue/stream", cfg.Feed.URL)
	assert.Equal(t, []string{"EURUSD"}, cfg.Feed.Symbols)
	// Untouched limits fall back to defaults.
	assert.Equal(t, 10, cfg.Risk.MaxPositions)
}

// TestLoad_SymbolListFromEnv tests comma-separated symbol parsing
func TestLoad_SymbolListFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/riskcore_test")
	t.Setenv("MARKET_FEED_SYMBOLS", " EURUSD, GBPUSD ,USDJPY,")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"EURUSD", "GBPUSD", "USDJPY"}, cfg.Feed.Symbols)
}

// TestLoad_MissingDatabaseURL tests the required-field validation
func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load("")
	assert.Error(t, err)
}

// TestLoad_BadFileIsError tests that an unreadable config file fails fast
func TestLoad_BadFileIsError(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/riskcore_test")

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0644))
	_, err = Load(path)
	assert.Error(t, err)
}

// TestLoad_InvalidEnvNumberIgnored tests that unparseable numeric overrides are skipped
func TestLoad_InvalidEnvNumberIgnored(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/riskcore_test")
	t.Setenv("MAX_POSITIONS", "lots")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Risk.MaxPositions)
}
