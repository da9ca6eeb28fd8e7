package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the fetcher.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Export    ExportConfig    `mapstructure:"export"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// APIConfig configures the PSE client, its retry policy and pagination.
type APIConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryBaseDelay  time.Duration `mapstructure:"retry_base_delay"`
	RetryMultiplier float64       `mapstructure:"retry_multiplier"`
	PageSize        int           `mapstructure:"page_size"`
	MaxPageSize     int           `mapstructure:"max_page_size"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	RateLimitBurst  int           `mapstructure:"rate_limit_burst"`
	CacheSize       int           `mapstructure:"cache_size"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig configures the optional Postgres sink. When Enabled is
// false the fetcher never opens a database connection.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// ConnString builds a lib/pq connection string from the config.
func (d DatabaseConfig) ConnString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type SchedulerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Spec    string `mapstructure:"spec"`
	// Lookback is how far behind now each scheduled refresh reaches.
	Lookback time.Duration `mapstructure:"lookback"`
}

type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

type ExportConfig struct {
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from a YAML file, expanding $VAR references
// from the environment before decoding, and applies defaults for any key
// the file leaves unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var raw map[string]interface{}
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal raw config: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	buf, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal raw config: %w", err)
	}
	if err := v.MergeConfig(bytes.NewReader(buf)); err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects configurations the fetcher cannot run with.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must be set")
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("api.max_retries must be non-negative")
	}
	if c.API.RetryMultiplier < 1 {
		return fmt.Errorf("api.retry_multiplier must be at least 1")
	}
	if c.API.PageSize <= 0 || c.API.PageSize > c.API.MaxPageSize {
		return fmt.Errorf("api.page_size must be in (0, %d]", c.API.MaxPageSize)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "https://api.raporty.pse.pl/api/gen-jw")
	v.SetDefault("api.request_timeout", "60s")
	v.SetDefault("api.max_retries", 3)
	v.SetDefault("api.retry_base_delay", "1s")
	v.SetDefault("api.retry_multiplier", 2.0)
	v.SetDefault("api.page_size", 100000)
	v.SetDefault("api.max_page_size", 100000)
	v.SetDefault("api.rate_limit", 5.0)
	v.SetDefault("api.rate_limit_burst", 10)
	v.SetDefault("api.cache_size", 16)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.spec", "*/15 * * * *")
	v.SetDefault("scheduler.lookback", "24h")

	v.SetDefault("export.path", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
