package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samvad-hq/samvad-news-ingest/pkg/providers"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Storage backends.
const (
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageBBolt    = "bbolt"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName              string        `mapstructure:"app_name"`
	Env                  string        `mapstructure:"app_env"`
	LogLevel             string        `mapstructure:"log_level"`
	ProvidersFile        string        `mapstructure:"providers_file"`
	PublishersFile       string        `mapstructure:"publishers_file"`
	CrawlIntervalSeconds int64         `mapstructure:"crawl_interval"`
	CrawlInterval        time.Duration `mapstructure:"-"`

	StorageType string `mapstructure:"storage_type"`
	StoragePath string `mapstructure:"storage_path"`
	DatabaseURL string `mapstructure:"database_url"`

	FetchPageSize    int `mapstructure:"fetch_page_size"`
	FetchConcurrency int `mapstructure:"fetch_concurrency"`

	HTTPRetryCount int `mapstructure:"http_retry_count"`

	EnrichMetadata    bool          `mapstructure:"enrich_metadata"`
	EnrichMaxArticles int           `mapstructure:"enrich_max_articles"`
	EnrichDelayMs     int64         `mapstructure:"enrich_delay_ms"`
	EnrichDelay       time.Duration `mapstructure:"-"`

	MetricsAddr string `mapstructure:"metrics_addr"`

	Providers []providers.Settings `mapstructure:"-"`
}

// Flags registers the config overrides shared by every command. Flag names use
// dashes; they are bound to the matching underscore keys.
func Flags(fs *pflag.FlagSet) {
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("storage-type", "", "storage backend (sqlite, postgres, bbolt)")
	fs.String("storage-path", "", "file path for sqlite or bbolt storage")
	fs.String("database-url", "", "postgres connection string")
	fs.String("providers-file", "", "providers registry file (yaml or json)")
	fs.String("publishers-file", "", "publishers registry file (yaml or json)")
	fs.Int("fetch-concurrency", 0, "number of providers fetched in parallel")
}

// Load reads configuration from environment variables and config files.
// fs may be nil; when given, flags registered with Flags override the environment.
func Load(fs *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "samvad-news-ingest")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("providers_file", "./configs/providers.yaml")
	v.SetDefault("publishers_file", "./configs/publishers.yaml")
	v.SetDefault("crawl_interval", 900) // seconds
	v.SetDefault("storage_type", StorageSQLite)
	v.SetDefault("storage_path", "./data/news.db")
	v.SetDefault("database_url", "")
	v.SetDefault("fetch_page_size", providers.DefaultPageSize)
	v.SetDefault("fetch_concurrency", 1)
	v.SetDefault("http_retry_count", 2)
	v.SetDefault("enrich_metadata", false)
	v.SetDefault("enrich_max_articles", 20)
	v.SetDefault("enrich_delay_ms", 250)
	v.SetDefault("metrics_addr", "")

	v.AutomaticEnv()

	if fs != nil {
		if err := bindFlags(v, fs); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CrawlIntervalSeconds <= 0 {
		return nil, fmt.Errorf("invalid crawl_interval (must be positive seconds)")
	}
	cfg.CrawlInterval = time.Duration(cfg.CrawlIntervalSeconds) * time.Second

	cfg.StorageType = strings.ToLower(strings.TrimSpace(cfg.StorageType))
	switch cfg.StorageType {
	case StorageSQLite, StorageBBolt:
		if strings.TrimSpace(cfg.StoragePath) == "" {
			return nil, fmt.Errorf("storage_path is required for %s storage", cfg.StorageType)
		}
	case StoragePostgres:
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, fmt.Errorf("database_url is required for postgres storage")
		}
	default:
		return nil, fmt.Errorf("unsupported storage_type %q", cfg.StorageType)
	}

	if cfg.FetchPageSize <= 0 {
		return nil, fmt.Errorf("invalid fetch_page_size (must be positive)")
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = 1
	}
	if cfg.EnrichDelayMs < 0 {
		return nil, fmt.Errorf("invalid enrich_delay_ms (must not be negative)")
	}
	cfg.EnrichDelay = time.Duration(cfg.EnrichDelayMs) * time.Millisecond

	settings, err := providers.LoadSettings(cfg.ProvidersFile)
	if err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}
	settings, err = providers.ApplyOverrides(settings, func(key string) (string, bool) {
		if !v.IsSet(key) {
			return "", false
		}
		return v.GetString(key), true
	})
	if err != nil {
		return nil, fmt.Errorf("provider overrides: %w", err)
	}
	cfg.Providers = settings

	return &cfg, nil
}

var flagKeys = []string{
	"log_level",
	"storage_type",
	"storage_path",
	"database_url",
	"providers_file",
	"publishers_file",
	"fetch_concurrency",
}

// bindFlags binds the shared flags that exist on fs. Unchanged flags never beat defaults.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, key := range flagKeys {
		f := fs.Lookup(strings.ReplaceAll(key, "_", "-"))
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", f.Name, err)
		}
	}
	return nil
}
