package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LOG_LEVEL", "STORAGE_TYPE", "STORAGE_PATH", "DATABASE_URL", "CRAWL_INTERVAL",
		"PROVIDERS_FILE", "FETCH_CONCURRENCY", "NEWSAPI_KEY", "GUARDIAN_KEY", "NYTIMES_KEY",
		"GUARDIAN_TIMEOUT", "ENRICH_DELAY_MS",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("PROVIDERS_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(nil)
	require.NoError(t, err)
	require.Equal(t, StorageSQLite, cfg.StorageType)
	require.Equal(t, 15*time.Minute, cfg.CrawlInterval)
	require.Equal(t, 50, cfg.FetchPageSize)
	require.Equal(t, 1, cfg.FetchConcurrency)
	require.Equal(t, 250*time.Millisecond, cfg.EnrichDelay)
	require.Len(t, cfg.Providers, 3)
	for _, p := range cfg.Providers {
		require.False(t, p.Config().IsValid(), "provider %s should have no key", p.ID)
	}
}

func TestLoadProviderEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("GUARDIAN_KEY", "g-secret")
	t.Setenv("GUARDIAN_TIMEOUT", "9")

	cfg, err := Load(nil)
	require.NoError(t, err)

	g := cfg.Providers[1].Config()
	require.Equal(t, "g-secret", g.APIKey())
	require.Equal(t, 9*time.Second, g.Timeout())
	require.True(t, g.IsValid())
}

func TestLoadRejectsBadValues(t *testing.T) {
	isolate(t)
	t.Setenv("CRAWL_INTERVAL", "0")
	_, err := Load(nil)
	require.Error(t, err)

	isolate(t)
	t.Setenv("STORAGE_TYPE", "mongo")
	_, err = Load(nil)
	require.ErrorContains(t, err, "unsupported storage_type")

	isolate(t)
	t.Setenv("STORAGE_TYPE", "postgres")
	_, err = Load(nil)
	require.ErrorContains(t, err, "database_url")
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	isolate(t)
	t.Setenv("STORAGE_TYPE", "sqlite")

	path := filepath.Join(t.TempDir(), "store.db")
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(fs)
	require.NoError(t, fs.Parse([]string{"--storage-type=bbolt", "--storage-path=" + path, "--fetch-concurrency=3"}))

	cfg, err := Load(fs)
	require.NoError(t, err)
	require.Equal(t, StorageBBolt, cfg.StorageType)
	require.Equal(t, path, cfg.StoragePath)
	require.Equal(t, 3, cfg.FetchConcurrency)
	require.Equal(t, "info", cfg.LogLevel, "unchanged flag must not override default")
}

func TestLoadProvidersFile(t *testing.T) {
	isolate(t)
	file := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(file, []byte("providers:\n  - id: newsapi\n    enabled: false\n"), 0o644))
	t.Setenv("PROVIDERS_FILE", file)

	cfg, err := Load(nil)
	require.NoError(t, err)
	require.False(t, cfg.Providers[0].IsEnabled())
}
