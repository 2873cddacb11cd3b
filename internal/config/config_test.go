package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Server.SearchPerMinute)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "driving", cfg.Mapbox.Profile)
	assert.Equal(t, "https://api.tfl.gov.uk", cfg.TfL.BaseURL)
	assert.Contains(t, cfg.TfL.Modes, "tube")
	assert.Equal(t, "none", cfg.Cache.Driver)
	assert.Equal(t, 24, cfg.Cache.GeocodeTTLHours)
	assert.Equal(t, 5, cfg.Cache.JourneyTTLMins)

	require.Len(t, cfg.Search.Budgets, 4)
	assert.Equal(t, BudgetConfig{Minutes: 20, StopAt: 4}, cfg.Search.Budgets[0])
	assert.Equal(t, BudgetConfig{Minutes: 60, StopAt: 12}, cfg.Search.Budgets[3])
	assert.Equal(t, 3, cfg.Search.ResultCount)
	assert.Equal(t, 75, cfg.Search.MaxJourneyMinutes)
	assert.Equal(t, 3, cfg.Search.BatchSize)
	assert.Equal(t, 200, cfg.Search.BatchPauseMs)
	assert.InDelta(t, 2.0, cfg.Search.MinSeparationKm, 0.001)

	assert.Equal(t, "2", cfg.Scoring.Version)
	assert.InDelta(t, 0.45, cfg.Scoring.SpeedWeight, 0.001)
	assert.InDelta(t, 0.25, cfg.Scoring.FairnessWeight, 0.001)
	assert.InDelta(t, 0.20, cfg.Scoring.ConvenienceWeight, 0.001)
	assert.InDelta(t, 0.10, cfg.Scoring.PrestigeWeight, 0.001)

	assert.InDelta(t, -0.56, cfg.ServiceArea.MinLng, 0.001)
	assert.InDelta(t, 51.72, cfg.ServiceArea.MaxLat, 0.001)

	assert.Equal(t, 8, cfg.Resilience.TimeoutSecs)
	assert.Equal(t, 1, cfg.Resilience.MaxAttempts)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
  format: console
server:
  port: 9090
cache:
  driver: sqlite
  dsn: /tmp/cache.db
search:
  result_count: 5
  budgets:
    - {minutes: 15, stop_at: 3}
    - {minutes: 40, stop_at: 9}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Cache.Driver)
	assert.Equal(t, 5, cfg.Search.ResultCount)
	assert.Equal(t, []BudgetConfig{{15, 3}, {40, 9}}, cfg.Search.Budgets)
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.Search.BatchSize)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
cache:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("COMMONPLACE_CACHE_DRIVER", "memory")
	t.Setenv("COMMONPLACE_LOG_LEVEL", "warn")
	t.Setenv("COMMONPLACE_MAPBOX_TOKEN", "pk.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "pk.test", cfg.Mapbox.Token)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("COMMONPLACE_TFL_APP_KEY=from-dotenv\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("COMMONPLACE_TFL_APP_KEY") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.TfL.AppKey)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [port"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commonplace.log")
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json", File: path, MaxSizeMB: 1}))

	zap.L().Info("file sink check")
	_ = zap.L().Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "file sink check")
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config populated with the shipped defaults.
func validDefaults(t *testing.T) *Config {
	t.Helper()
	chdirTemp(t)
	cfg, err := Load()
	require.NoError(t, err)
	cfg.Mapbox.Token = "pk.test"
	return cfg
}

func TestValidateServe(t *testing.T) {
	cfg := validDefaults(t)
	assert.NoError(t, cfg.Validate("serve"))

	cfg.Server.Port = 0
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestValidateSearch_MissingToken(t *testing.T) {
	cfg := validDefaults(t)
	cfg.Mapbox.Token = ""

	err := cfg.Validate("search")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapbox.token is required")
	assert.NoError(t, cfg.Validate("catalog"))
}

func TestValidateSearch_Budgets(t *testing.T) {
	cfg := validDefaults(t)

	cfg.Search.Budgets = []BudgetConfig{{30, 6}, {20, 4}}
	err := cfg.Validate("search")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ascending")

	cfg.Search.Budgets = nil
	err = cfg.Validate("search")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not be empty")
}

func TestValidateSearch_Weights(t *testing.T) {
	cfg := validDefaults(t)

	cfg.Scoring.SpeedWeight = 0.9
	err := cfg.Validate("search")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 1")

	cfg.Scoring.SpeedWeight = -0.1
	err = cfg.Validate("search")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "speed_weight must be >= 0")
}

func TestValidateServiceArea(t *testing.T) {
	cfg := validDefaults(t)
	cfg.ServiceArea.MaxLng = cfg.ServiceArea.MinLng

	err := cfg.Validate("search")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service_area")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults(t)
	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
