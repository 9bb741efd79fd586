package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []int{14, 17, 20}, cfg.Schedule.Hours)
	assert.True(t, cfg.Schedule.WeekdaysOnly)
	assert.Equal(t, "file", cfg.Store.Backend)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tickers:
  - symbol: SPY
    enabled: true
  - symbol: NASDAQ
    cfd_ratio: 41.33
    enabled: true
schedule:
  hours: [13, 19]
  weekdays_only: true
store:
  backend: file
  dir: /tmp/state
http:
  addr: ":9090"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []int{13, 19}, cfg.Schedule.Hours)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	require.Len(t, cfg.Tickers, 2)
	assert.Equal(t, 41.33, cfg.Tickers[1].CFDRatio)
}

func TestLoadRejectsBadSchedule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tickers:
  - symbol: SPY
    enabled: true
schedule:
  hours: [25]
store:
  backend: file
  dir: state
`), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "out of range")
}

func TestValidateStoreBackends(t *testing.T) {
	cfg := Default()
	cfg.Store = StoreConfig{Backend: "postgres"}
	assert.ErrorContains(t, cfg.Validate(), "requires dsn")

	cfg.Store = StoreConfig{Backend: "redis"}
	assert.ErrorContains(t, cfg.Validate(), "requires an address")

	cfg.Store = StoreConfig{Backend: "sqlite"}
	assert.ErrorContains(t, cfg.Validate(), "unknown store backend")
}

func TestEnvOverridesToken(t *testing.T) {
	t.Setenv("LEVELCAST_GITHUB_TOKEN", "ghp_test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "ghp_test", cfg.Seeds.Token)
}

func TestEnabledTickers(t *testing.T) {
	cfg := &Config{Tickers: []TickerConfig{
		{Symbol: "SPY", Enabled: true},
		{Symbol: "GLD", Enabled: false},
	}}
	enabled := cfg.EnabledTickers()
	require.Len(t, enabled, 1)
	assert.Equal(t, "SPY", enabled[0].Symbol)
}
