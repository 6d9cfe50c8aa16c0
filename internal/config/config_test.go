package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiazeyu1987/hospitalscan/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Encoding)
	assert.Equal(t, 30*time.Second, cfg.Crawler.RequestTimeout)
	assert.Equal(t, 2*time.Second, cfg.Crawler.RateLimit)
	assert.InDelta(t, 0.8, cfg.Dedup.SimilarityThreshold, 1e-9)
	assert.Equal(t, 30, cfg.Dedup.RetentionDays)
	assert.Equal(t, 24*time.Hour, cfg.Tasks.ReaperAge)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Empty(t, cfg.Scheduler.Jobs)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logger:
  level: debug
  encoding: console
dedup:
  similarity_threshold: 0.9
  retention_days: 7
scheduler:
  jobs:
    - id: tender_monitor
      every: 6h
      task_type: tender_monitor
      max_instances: 2
      urls:
        - http://hospital.example/tenders
    - id: daily_report
      cron: "0 2 * * *"
      task_type: hospital_scan
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.InDelta(t, 0.9, cfg.Dedup.SimilarityThreshold, 1e-9)
	assert.Equal(t, 7, cfg.Dedup.RetentionDays)

	require.Len(t, cfg.Scheduler.Jobs, 2)
	assert.Equal(t, 6*time.Hour, cfg.Scheduler.Jobs[0].Every)
	assert.Equal(t, []string{"http://hospital.example/tenders"}, cfg.Scheduler.Jobs[0].URLs)
	assert.Equal(t, "0 2 * * *", cfg.Scheduler.Jobs[1].Cron)

	// File values fill their sections; untouched sections keep defaults.
	assert.Equal(t, 30*time.Second, cfg.Verify.Timeout)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestEngineConfigConversions(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.VerifyEngineConfig().Timeout)
	assert.InDelta(t, 0.8, cfg.DedupEngineConfig().SimilarityThreshold, 1e-9)
	assert.Equal(t, 2*time.Second, cfg.FetcherConfig().RateLimit)
	assert.Equal(t, 24*time.Hour, cfg.ManagerOptions().ReaperAge)
}
