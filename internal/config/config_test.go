package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unsetConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{configPathEnv, databaseDSNEnv, blueskyHandleEnv, blueskyAppPassEnv, regionEnv} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	unsetConfigEnv(t)

	cfg := Load()

	assert.Equal(t, "funko", cfg.Source.Scanner)
	assert.Equal(t, "https://funko.com", cfg.Source.BaseURL)
	assert.Equal(t, "pl", cfg.Source.Region)
	assert.Equal(t, []string{"sale", "new-releases", "exclusives"}, cfg.Source.Pages)
	assert.Equal(t, "https://bsky.social", cfg.Bluesky.Host)
	assert.Equal(t, []string{"All"}, cfg.Filter.Fandoms)
	assert.Contains(t, cfg.Filter.DenyList, "nba")
	assert.Equal(t, 180*time.Minute, cfg.Scheduler.Interval())
	assert.Zero(t, cfg.Posting.MaxPostsPerCheck)
	assert.False(t, cfg.Posting.DryRun)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	unsetConfigEnv(t)
	t.Setenv(databaseDSNEnv, "postgres://env:env@db:5432/ledger")
	t.Setenv(blueskyHandleEnv, "watcher.bsky.social")
	t.Setenv(blueskyAppPassEnv, "secret-app-pass")
	t.Setenv(regionEnv, "de")

	cfg := Load()

	assert.Equal(t, "postgres://env:env@db:5432/ledger", cfg.Database.DSN)
	assert.Equal(t, "watcher.bsky.social", cfg.Bluesky.Handle)
	assert.Equal(t, "secret-app-pass", cfg.Bluesky.AppPassword)
	assert.Equal(t, "de", cfg.Source.Region)
}

func TestLoadMergesYAMLFile(t *testing.T) {
	unsetConfigEnv(t)

	raw := `
source:
  region: uk
  pages:
    - new-releases
    - back-in-stock
filter:
  fandoms:
    - Anime
    - Movies
posting:
  maxPostsPerCheck: 5
  postDelaySeconds: 30
scheduler:
  checkIntervalMinutes: 60
logging:
  level: debug
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))
	t.Setenv(configPathEnv, path)

	cfg := Load()

	assert.Equal(t, "uk", cfg.Source.Region)
	assert.Equal(t, []string{"new-releases", "back-in-stock"}, cfg.Source.Pages)
	assert.Equal(t, []string{"Anime", "Movies"}, cfg.Filter.Fandoms)
	assert.Equal(t, 5, cfg.Posting.MaxPostsPerCheck)
	assert.Equal(t, 30*time.Second, cfg.Posting.PostDelay())
	assert.Equal(t, time.Hour, cfg.Scheduler.Interval())
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Fields absent from the file keep their defaults.
	assert.Equal(t, "funko", cfg.Source.Scanner)
	assert.Equal(t, "https://bsky.social", cfg.Bluesky.Host)
}

func TestLoadEnvWinsOverFile(t *testing.T) {
	unsetConfigEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source:\n  region: uk\n"), 0o600))
	t.Setenv(configPathEnv, path)
	t.Setenv(regionEnv, "fr")

	cfg := Load()
	assert.Equal(t, "fr", cfg.Source.Region)
}

func TestLoadUnreadableFileFallsBackToDefaults(t *testing.T) {
	unsetConfigEnv(t)
	t.Setenv(configPathEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg := Load()
	assert.Equal(t, "pl", cfg.Source.Region)
}

func TestSchedulerIntervalDefaultsWhenUnset(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 180*time.Minute, SchedulerConfig{}.Interval())
	assert.Equal(t, 45*time.Minute, SchedulerConfig{CheckIntervalMinutes: 45}.Interval())
}

func TestPostDelayZeroWhenUnset(t *testing.T) {
	t.Parallel()

	assert.Zero(t, PostingConfig{}.PostDelay())
	assert.Equal(t, 12*time.Second, PostingConfig{PostDelaySeconds: 12}.PostDelay())
}
