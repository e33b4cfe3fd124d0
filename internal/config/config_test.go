package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "1m", cfg.Model.DefaultHorizon)
	assert.Len(t, cfg.Model.Horizons, 3)
	assert.False(t, cfg.TelegramEnabled())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Collector, cfg.Collector)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	p := writeConfig(t, `
log_level: debug
data_source:
  provider: mock
collector:
  lookback_bars: 90
  fetch_timeout: 3s
  breaker:
    enabled: true
decision:
  mode: score_scaled
  target_pct: 0.2
  stop_pct: 0.05
scan:
  concurrency: 16
  tickers: [aapl, tsla]
server:
  scan_timeout: 90s
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "mock", cfg.DataSource.Provider)
	assert.Equal(t, 90, cfg.Collector.LookbackBars)
	assert.Equal(t, 3*time.Second, cfg.Collector.FetchTimeout)
	assert.True(t, cfg.Collector.Breaker.Enabled)
	// Unset keys keep their defaults.
	assert.Equal(t, 20, cfg.Collector.MinBars)
	assert.Equal(t, 14, cfg.Features.RSIPeriod)
	assert.Equal(t, "score_scaled", string(cfg.Decision.Mode))
	assert.Equal(t, 16, cfg.Scan.Concurrency)
	assert.Equal(t, []string{"aapl", "tsla"}, cfg.Scan.Tickers)
	assert.Equal(t, 90*time.Second, cfg.Server.ScanTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BREAKOUT_TELEGRAM_BOT_TOKEN", "tok")
	t.Setenv("BREAKOUT_TELEGRAM_CHAT_ID", "99")
	t.Setenv("BREAKOUT_CONCURRENCY", "3")
	t.Setenv("BREAKOUT_FETCH_TIMEOUT", "2s")
	t.Setenv("BREAKOUT_DB_DRIVER", "sqlite")
	t.Setenv("BREAKOUT_DB_DSN", "scans.db")
	t.Setenv("BREAKOUT_PROXY", "")
	t.Setenv("HTTPS_PROXY", "http://proxy:3128")

	cfg, err := Load(writeConfig(t, "scan:\n  concurrency: 10\n"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.TelegramEnabled())
	assert.Equal(t, 3, cfg.Scan.Concurrency)
	assert.Equal(t, 2*time.Second, cfg.Collector.FetchTimeout)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "http://proxy:3128", cfg.Proxy)
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "scan: [unclosed"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
		{"provider", func(c *Config) { c.DataSource.Provider = "bloomberg" }},
		{"polygon without key", func(c *Config) { c.DataSource.Provider = "polygon" }},
		{"lookback", func(c *Config) { c.Collector.LookbackBars = 0 }},
		{"no horizons", func(c *Config) { c.Model.Horizons = nil }},
		{"duplicate horizon", func(c *Config) { c.Model.Horizons[1].Name = "1w" }},
		{"threshold", func(c *Config) { c.Model.Horizons[0].Threshold = 1.5 }},
		{"default horizon", func(c *Config) { c.Model.DefaultHorizon = "6m" }},
		{"concurrency", func(c *Config) { c.Scan.Concurrency = 0 }},
		{"half telegram", func(c *Config) { c.Telegram.BotToken = "x" }},
		{"db driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"db dsn", func(c *Config) { c.Database.Driver = "postgres" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
