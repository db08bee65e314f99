// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Catalog source kinds.
const (
	SourceBundled  = "bundled"
	SourceStorage  = "storage"
	SourceUpstream = "upstream"
	SourcePostgres = "postgres"
)

// Storage backends.
const (
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Application ApplicationConfig `mapstructure:"application"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Upstream    UpstreamConfig    `mapstructure:"upstream"`
	Storage     StorageConfig     `mapstructure:"storage"`
	DB          DBConfig          `mapstructure:"db"`
	PubSub      PubSubConfig      `mapstructure:"pubsub"`
	Analytics   AnalyticsConfig   `mapstructure:"analytics"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
	Content     ContentConfig     `mapstructure:"content"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ApplicationConfig describes the deployment for telemetry resources.
type ApplicationConfig struct {
	ServiceName   string `mapstructure:"service_name"`
	Version       string `mapstructure:"version"`
	ProjectID     string `mapstructure:"project_id"`
	ProjectNumber string `mapstructure:"project_number"`
	Region        string `mapstructure:"region"`
}

// CatalogConfig selects where product data comes from.
type CatalogConfig struct {
	Source         string `mapstructure:"source"`
	Path           string `mapstructure:"path"`
	RefreshSeconds int    `mapstructure:"refresh_seconds"`
}

// UpstreamConfig configures the product API client and its probing.
type UpstreamConfig struct {
	BaseURL          string   `mapstructure:"base_url"`
	APIKey           string   `mapstructure:"api_key"`
	APIKeyHeader     string   `mapstructure:"api_key_header"`
	UserAgent        string   `mapstructure:"user_agent"`
	DefaultQuery     string   `mapstructure:"default_query"`
	TimeoutSeconds   int      `mapstructure:"timeout_seconds"`
	ExpectedCount    int      `mapstructure:"expected_count"`
	Variants         []string `mapstructure:"variants"`
	MaxPages         int      `mapstructure:"max_pages"`
	MaxRetries       int      `mapstructure:"max_retries"`
	BackoffInitialMs int      `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int      `mapstructure:"backoff_max_ms"`
}

// StorageConfig selects the blob backend used for datasheets.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	Table        string `mapstructure:"table"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// AnalyticsConfig tunes the search analytics hub.
type AnalyticsConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	BufferSize     int  `mapstructure:"buffer_size"`
	MaxBatchEvents int  `mapstructure:"max_batch_events"`
	MaxBatchWaitMs int  `mapstructure:"max_batch_wait_ms"`
}

// RateLimitConfig sets the per-client token bucket on /api.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// ContentConfig points at the markdown articles. Empty uses the embedded set.
type ContentConfig struct {
	ArticlesDir string `mapstructure:"articles_dir"`
}

// Load builds a Config from an optional .env file, the config file at path
// and the environment, in increasing precedence.
func Load(path string) (Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadDotEnv exports the variables in files without overriding ones already
// set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// DefaultVariants are the query variants probed when the upstream undercounts.
var DefaultVariants = []string{
	"limit=500",
	"limit=1000",
	"per_page=500",
	"per_page=1000",
	"page=1&per_page=500",
	"all=true",
	"published=all",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 30)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("logging.development", true)
	v.SetDefault("application.service_name", "adhesive-catalog")
	v.SetDefault("application.version", "dev")
	v.SetDefault("catalog.source", SourceBundled)
	v.SetDefault("catalog.refresh_seconds", 300)
	v.SetDefault("catalog.path", "")
	v.SetDefault("upstream.base_url", "")
	v.SetDefault("upstream.api_key", "")
	v.SetDefault("upstream.api_key_header", "X-API-Key")
	v.SetDefault("upstream.default_query", "")
	v.SetDefault("upstream.expected_count", 0)
	v.SetDefault("upstream.user_agent", "adhesive-catalog/0.1")
	v.SetDefault("upstream.timeout_seconds", 15)
	v.SetDefault("upstream.variants", DefaultVariants)
	v.SetDefault("upstream.max_pages", 20)
	v.SetDefault("upstream.max_retries", 2)
	v.SetDefault("upstream.backoff_initial_ms", 250)
	v.SetDefault("upstream.backoff_max_ms", 2000)
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.local_dir", "data")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "products")
	v.SetDefault("db.max_open_conns", 4)
	v.SetDefault("db.max_idle_conns", 1)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("analytics.enabled", true)
	v.SetDefault("analytics.buffer_size", 256)
	v.SetDefault("analytics.max_batch_events", 50)
	v.SetDefault("analytics.max_batch_wait_ms", 2000)
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.rps", 10)
	v.SetDefault("ratelimit.burst", 20)
	v.SetDefault("content.articles_dir", "")
	v.SetDefault("application.project_id", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.Catalog.Source {
	case SourceBundled, SourceUpstream:
	case SourceStorage:
		if c.Catalog.Path == "" {
			return fmt.Errorf("catalog.path must be set when catalog.source is %q", SourceStorage)
		}
	case SourcePostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set when catalog.source is %q", SourcePostgres)
		}
	default:
		return fmt.Errorf("catalog.source %q is not supported", c.Catalog.Source)
	}
	if c.Catalog.Source == SourceUpstream && c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url must be set when catalog.source is %q", SourceUpstream)
	}
	switch c.Storage.Backend {
	case BackendLocal, BackendMemory:
	case BackendGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}
	if c.Upstream.TimeoutSeconds <= 0 {
		return fmt.Errorf("upstream.timeout_seconds must be > 0")
	}
	if c.Upstream.ExpectedCount < 0 {
		return fmt.Errorf("upstream.expected_count must be >= 0")
	}
	if c.Upstream.MaxPages <= 0 {
		return fmt.Errorf("upstream.max_pages must be > 0")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("ratelimit.rps and ratelimit.burst must be > 0 when rate limiting is enabled")
	}
	if c.Analytics.Enabled && c.Analytics.BufferSize <= 0 {
		return fmt.Errorf("analytics.buffer_size must be > 0 when analytics is enabled")
	}
	return nil
}

// RefreshInterval returns how often the catalog is reloaded. Zero disables it.
func (c Config) RefreshInterval() time.Duration {
	if c.Catalog.RefreshSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Catalog.RefreshSeconds) * time.Second
}

// UpstreamTimeout converts the upstream timeout to a duration.
func (c Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.Upstream.TimeoutSeconds) * time.Second
}

// RequestTimeout bounds a single API request.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds graceful shutdown.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// AnalyticsBatchWait converts the analytics flush interval to a duration.
func (c Config) AnalyticsBatchWait() time.Duration {
	return time.Duration(c.Analytics.MaxBatchWaitMs) * time.Millisecond
}
