// Package config loads acs-tracts settings from config.yaml, .env, and ACS_* environment variables.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Census CensusConfig `yaml:"census" mapstructure:"census"`
	States StatesConfig `yaml:"states" mapstructure:"states"`
	Output OutputConfig `yaml:"output" mapstructure:"output"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// CensusConfig configures the Census Data API client.
type CensusConfig struct {
	BaseURL        string      `yaml:"base_url" mapstructure:"base_url"`
	APIKey         string      `yaml:"api_key" mapstructure:"api_key"`
	SecretsPath    string      `yaml:"secrets_path" mapstructure:"secrets_path"`
	TimeoutSecs    int         `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxConcurrency int         `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	RateLimit      float64     `yaml:"rate_limit" mapstructure:"rate_limit"`
	LabelCacheSize int         `yaml:"label_cache_size" mapstructure:"label_cache_size"`
	Retry          RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// RetryConfig configures retries for transient Census API failures.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// StatesConfig points at the state-name lookup table.
type StatesConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// OutputConfig configures where the final table is written.
type OutputConfig struct {
	Dir    string `yaml:"dir" mapstructure:"dir"`
	Format string `yaml:"format" mapstructure:"format"`
}

// StoreConfig configures the database sinks.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
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
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ACS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("census.base_url", "https://api.census.gov")
	v.SetDefault("census.api_key", "")
	v.SetDefault("census.secrets_path", defaultSecretsPath())
	v.SetDefault("census.timeout_secs", 60)
	v.SetDefault("census.max_concurrency", 8)
	v.SetDefault("census.rate_limit", 10.0)
	v.SetDefault("census.label_cache_size", 128)
	v.SetDefault("census.retry.max_attempts", 3)
	v.SetDefault("census.retry.initial_backoff_ms", 500)
	v.SetDefault("census.retry.max_backoff_ms", 30000)
	v.SetDefault("states.path", filepath.Join("state_codes", "census_state_codes.csv"))
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.format", "csv")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.sqlite_path", "census_tracts.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// defaultSecretsPath is ~/.secrets, or empty when the home dir is unknown.
func defaultSecretsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".secrets")
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

// Formats lists the output formats understood by the export package.
var Formats = []string{"csv", "xlsx", "parquet", "sqlite", "postgres"}

// Validate checks the settings required by the given command mode
// ("tracts", "states", or "serve").
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.Census.BaseURL == "" {
		problems = append(problems, "census.base_url is required")
	}
	if c.Census.MaxConcurrency < 1 || c.Census.MaxConcurrency > 64 {
		problems = append(problems, "census.max_concurrency must be between 1 and 64")
	}
	if c.Census.LabelCacheSize < 1 {
		problems = append(problems, "census.label_cache_size must be > 0")
	}
	if c.Census.RateLimit <= 0 {
		problems = append(problems, "census.rate_limit must be > 0")
	}

	switch mode {
	case "tracts":
		if !validFormat(c.Output.Format) {
			problems = append(problems, "output.format must be one of "+strings.Join(Formats, ", "))
		}
		if c.Output.Format == "postgres" && c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for postgres output")
		}
		if c.States.Path == "" {
			problems = append(problems, "states.path is required")
		}
	case "states":
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.States.Path == "" {
			problems = append(problems, "states.path is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func validFormat(f string) bool {
	for _, ok := range Formats {
		if f == ok {
			return true
		}
	}
	return false
}
