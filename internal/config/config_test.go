package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15, cfg.Server.ShutdownTimeoutSecs)
	assert.InDelta(t, 20, cfg.API.RateLimitPerSec, 0.001)
	assert.Equal(t, 40, cfg.API.RateLimitBurst)
	assert.InDelta(t, 60, cfg.Predict.PublishThreshold, 0.001)
	assert.Equal(t, 30, cfg.Predict.GraceDays)
	assert.Equal(t, 14, cfg.Predict.SlackDays)
	assert.Equal(t, 24, cfg.Predict.RecencyWindowMonths)
	assert.InDelta(t, 18, cfg.Predict.ExternalScoreCap, 0.001)
	assert.InDelta(t, 10, cfg.Predict.SupportThreshold, 0.001)
	assert.Equal(t, 365, cfg.Predict.TimingHorizonDays)
	assert.InDelta(t, 0.85, cfg.Predict.AutoAcceptThreshold, 0.001)
	assert.InDelta(t, 0.1, cfg.Predict.AmbiguityMargin, 0.001)
	assert.Equal(t, 3, cfg.Predict.MaxUpsertRetries)
	assert.Equal(t, 30, cfg.Predict.EvidenceCacheTTLMins)
	assert.Equal(t, 8, cfg.Batch.MaxConcurrentPairs)
	assert.InDelta(t, 50, cfg.Batch.RatePerSec, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
  database_url: civant.db
log:
  level: debug
  format: console
server:
  port: 9090
api:
  tokens:
    tok-acme: acme_corp
  admin_tokens:
    - tok-admin
predict:
  publish_threshold: 70
  grace_days: 45
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "civant.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "acme_corp", cfg.API.Tokens["tok-acme"])
	assert.True(t, cfg.API.IsAdminToken("tok-admin"))
	assert.False(t, cfg.API.IsAdminToken("tok-acme"))
	assert.InDelta(t, 70, cfg.Predict.PublishThreshold, 0.001)
	assert.Equal(t, 45, cfg.Predict.GraceDays)
	// Untouched keys keep their defaults.
	assert.Equal(t, 14, cfg.Predict.SlackDays)
}

func TestLoadFromEnv(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("CIVANT_STORE_DRIVER", "sqlite")
	t.Setenv("CIVANT_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestInitLogger(t *testing.T) {
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.True(t, zap.L().Core().Enabled(zap.DebugLevel))

	err := InitLogger(LogConfig{Level: "not-a-level", Format: "json"})
	require.Error(t, err)
}

func TestEvidenceCacheTTL(t *testing.T) {
	cfg := PredictConfig{EvidenceCacheTTLMins: 45}
	assert.Equal(t, "45m0s", cfg.EvidenceCacheTTL().String())
}
