package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	GeoIndex GeoIndexConfig `yaml:"geoindex" mapstructure:"geoindex"`
	Retry    RetryConfig    `yaml:"retry" mapstructure:"retry"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Search   SearchConfig   `yaml:"search" mapstructure:"search"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the primary store backend.
type StoreConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL   string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns      int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns      int32  `yaml:"min_conns" mapstructure:"min_conns"`
	CallTimeoutMs int    `yaml:"call_timeout_ms" mapstructure:"call_timeout_ms"`
}

// CallTimeout returns the per-statement deadline.
func (s StoreConfig) CallTimeout() time.Duration {
	return time.Duration(s.CallTimeoutMs) * time.Millisecond
}

// GeoIndexConfig configures the geo-index backend.
type GeoIndexConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL   string `yaml:"database_url" mapstructure:"database_url"`
	CallTimeoutMs int    `yaml:"call_timeout_ms" mapstructure:"call_timeout_ms"`
}

// CallTimeout returns the per-call deadline for index operations.
func (g GeoIndexConfig) CallTimeout() time.Duration {
	return time.Duration(g.CallTimeoutMs) * time.Millisecond
}

// RetryConfig configures the index-write retry policy.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
}

// BatchConfig configures the reconciliation jobs.
type BatchConfig struct {
	PageSize              int     `yaml:"page_size" mapstructure:"page_size"`
	IndexWritesPerSec     float64 `yaml:"index_writes_per_sec" mapstructure:"index_writes_per_sec"`
	ReconcileIntervalSecs int     `yaml:"reconcile_interval_secs" mapstructure:"reconcile_interval_secs"`
}

// SearchConfig bounds proximity search parameters.
type SearchConfig struct {
	DefaultRadius float64 `yaml:"default_radius" mapstructure:"default_radius"`
	MaxRadius     float64 `yaml:"max_radius" mapstructure:"max_radius"`
	DefaultLimit  int     `yaml:"default_limit" mapstructure:"default_limit"`
	MaxLimit      int     `yaml:"max_limit" mapstructure:"max_limit"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches for
// config.yaml in the working directory and tolerates its absence; a named
// file must exist.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("PROXIMITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("store.call_timeout_ms", 3000)
	v.SetDefault("geoindex.driver", "postgis")
	v.SetDefault("geoindex.database_url", "")
	v.SetDefault("geoindex.call_timeout_ms", 1000)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 1000)
	v.SetDefault("retry.max_backoff_ms", 4000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("batch.page_size", 500)
	v.SetDefault("batch.index_writes_per_sec", 0)
	v.SetDefault("batch.reconcile_interval_secs", 0)
	v.SetDefault("search.default_radius", 5000)
	v.SetDefault("search.max_radius", 20000)
	v.SetDefault("search.default_limit", 20)
	v.SetDefault("search.max_limit", 50)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// GeoIndexURL returns the geo-index connection string, falling back to the
// store URL when unset.
func (c *Config) GeoIndexURL() string {
	if c.GeoIndex.DatabaseURL != "" {
		return c.GeoIndex.DatabaseURL
	}
	return c.Store.DatabaseURL
}

// Validate checks the settings a command mode needs. Modes: serve, sync,
// seed, search, migrate.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve", "sync", "seed", "search", "migrate":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "postgres", "sqlite":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	case "memory":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be postgres, sqlite or memory", c.Store.Driver))
	}

	switch c.GeoIndex.Driver {
	case "postgis":
		if c.GeoIndexURL() == "" {
			errs = append(errs, "geoindex.database_url (or store.database_url) is required")
		}
	case "memory":
	default:
		errs = append(errs, fmt.Sprintf("geoindex.driver %q must be postgis or memory", c.GeoIndex.Driver))
	}

	if c.Retry.MaxAttempts < 1 || c.Retry.MaxAttempts > 10 {
		errs = append(errs, "retry.max_attempts must be between 1 and 10")
	}
	if c.Batch.PageSize < 1 {
		errs = append(errs, "batch.page_size must be > 0")
	}
	if c.Search.MaxRadius < 1 || c.Search.DefaultRadius < 1 || c.Search.DefaultRadius > c.Search.MaxRadius {
		errs = append(errs, "search.default_radius must be within [1, search.max_radius]")
	}
	if c.Search.MaxLimit < 1 || c.Search.DefaultLimit < 1 || c.Search.DefaultLimit > c.Search.MaxLimit {
		errs = append(errs, "search.default_limit must be within [1, search.max_limit]")
	}

	if mode == "serve" && c.Server.Port <= 0 {
		errs = append(errs, "server.port must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
