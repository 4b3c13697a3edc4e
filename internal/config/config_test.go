package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "app:\n  port: 9000\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.App.Port)
	assert.Equal(t, "incremental", cfg.Scrape.Mode)
	assert.Equal(t, 4, cfg.Scrape.DetailWorkers)
	assert.Equal(t, 2, cfg.Scrape.MissThreshold)
	assert.Equal(t, 2000, cfg.Scrape.DelayMinMS)
	assert.Equal(t, 5000, cfg.Scrape.DelayMaxMS)
	assert.Equal(t, 50, cfg.Scrape.BatchSize)
	assert.Equal(t, "joblens.db", cfg.Database.DSN)
}

func TestLoad_EnvOverridesDSN(t *testing.T) {
	path := writeConfig(t, "database:\n  dsn: local.db\n")
	t.Setenv("JOBLENS_DB_DSN", "postgres://scraper@db/joblens")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://scraper@db/joblens", cfg.Database.DSN)
}

func TestNormalizeAndValidate(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
sources:
  google:
    enabled: true
    queries: ["software engineer", " software engineer ", ""]
  lever:
    enabled: true
    companies:
      - slug: ""
        name: Example
`))
	require.NoError(t, err)

	out, vr := NormalizeAndValidate(cfg)

	assert.Equal(t, []string{"software engineer"}, out.Sources.Google.Queries)
	require.False(t, vr.OK())
	assert.Contains(t, vr.Errors[0], "sources.lever.companies[0].slug")
}

func TestNormalizeAndValidate_ModeAndDelays(t *testing.T) {
	cfg, err := Load(writeConfig(t, "scrape:\n  mode: weekly\n  delay_min_ms: 6000\n  delay_max_ms: 1000\n"))
	require.NoError(t, err)

	_, vr := NormalizeAndValidate(cfg)
	require.Len(t, vr.Errors, 2)
	assert.Contains(t, vr.Errors[0], "scrape.mode")
	assert.Contains(t, vr.Errors[1], "delay_min_ms")
}

func TestSaveAtomic_RoundTrip(t *testing.T) {
	path := writeConfig(t, "app:\n  port: 9000\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.Sources.Google.Enabled = true
	cfg.Sources.Google.Queries = []string{"data engineer"}
	require.NoError(t, SaveAtomic(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"data engineer"}, got.Sources.Google.Queries)

	// previous file kept as .bak
	_, err = os.Stat(path + ".bak")
	assert.NoError(t, err)
}

func TestEnsureUserConfig_CopiesDefault(t *testing.T) {
	defaultPath := writeConfig(t, "app:\n  port: 1234\n")
	dataDir := t.TempDir()

	userPath, err := EnsureUserConfig(dataDir, defaultPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dataDir, "config.yml"), userPath)

	cfg, err := Load(userPath)
	require.NoError(t, err)
	assert.Equal(t, 1234, cfg.App.Port)

	// second call leaves the user copy alone
	require.NoError(t, os.WriteFile(userPath, []byte("app:\n  port: 4321\n"), 0o644))
	again, err := EnsureUserConfig(dataDir, defaultPath)
	require.NoError(t, err)
	cfg, err = Load(again)
	require.NoError(t, err)
	assert.Equal(t, 4321, cfg.App.Port)
}
