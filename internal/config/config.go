// Package config loads the server configuration from environment variables
// (FLUX_ prefix) with an optional YAML file overlay. Environment values
// take precedence over the file; both fall back to defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is the environment variable prefix for all settings, e.g.
// FLUX_SERVER_PORT, FLUX_ADMIN_PASSWORD.
const EnvPrefix = "FLUX"

// Config represents the complete application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Storage   StorageConfig   `yaml:"storage" envconfig:"STORAGE"`
	Admin     AdminConfig     `yaml:"admin" envconfig:"ADMIN"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// ServerConfig contains HTTP server configuration. Single-word fields skip
// the envconfig alt tag: the field name already yields the prefixed key,
// and an alt tag would add a bare-name fallback that can collide with
// ambient shell variables ($PORT on platform hosts).
type ServerConfig struct {
	Port            int           `yaml:"port" default:"5000"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// StorageConfig contains the SQLite store configuration. Path carries no
// envconfig alt tag: envconfig falls back to the bare alt name when the
// prefixed key is unset, and a bare PATH alt would read the shell's $PATH.
// The field name alone yields FLUX_STORAGE_PATH with no fallback.
type StorageConfig struct {
	Path     string `yaml:"path" default:"flux.db"`
	PoolSize int    `yaml:"pool_size" envconfig:"POOL_SIZE" default:"4"`
}

// AdminConfig contains admin authentication configuration. The credentials
// are consumed only by the security package's authenticator; nothing in
// the license core reads them. Username carries no envconfig alt tag so
// there is no bare-name fallback onto the login shell's $USER or
// $USERNAME; the env key is FLUX_ADMIN_USERNAME.
type AdminConfig struct {
	Username   string        `yaml:"username" default:"admin"`
	Password   string        `yaml:"password" default:"fluxadmin"`
	SessionTTL time.Duration `yaml:"session_ttl" envconfig:"SESSION_TTL" default:"12h"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"json"`
	Output string `yaml:"output" default:"stdout"`
}

// RateLimitConfig limits the public validation endpoint.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" default:"true"`
	RPS     float64 `yaml:"rps" default:"50"`
	Burst   int     `yaml:"burst" default:"25"`
}

// Load loads configuration from environment variables and, if present, the
// YAML file named by FLUX_CONFIG_FILE (default "config.yaml").
func Load() (*Config, error) {
	configFile := os.Getenv(EnvPrefix + "_CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yaml"
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: processing environment: %w", err)
	}

	// File values fill anything the environment (or a default) left at
	// its zero value; explicit environment settings win.
	if _, err := os.Stat(configFile); err == nil {
		fileCfg, fileEnabled, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", configFile, err)
		}
		cfg = mergeConfigs(*fileCfg, cfg)

		// Booleans cannot use the zero-value merge: false is a legal
		// setting. The file's explicit enabled flag applies unless the
		// environment set one.
		if fileEnabled != nil {
			if _, set := os.LookupEnv(EnvPrefix + "_RATE_LIMIT_ENABLED"); !set {
				cfg.RateLimit.Enabled = *fileEnabled
			}
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return &cfg, nil
}

// mergeConfigs overlays env config on top of file config: any env field
// still at its zero value falls back to the file's value.
func mergeConfigs(fileConfig, envConfig Config) Config {
	out := envConfig
	if out.Server.Port == 0 {
		out.Server.Port = fileConfig.Server.Port
	}
	if out.Server.ReadTimeout == 0 {
		out.Server.ReadTimeout = fileConfig.Server.ReadTimeout
	}
	if out.Server.WriteTimeout == 0 {
		out.Server.WriteTimeout = fileConfig.Server.WriteTimeout
	}
	if out.Server.IdleTimeout == 0 {
		out.Server.IdleTimeout = fileConfig.Server.IdleTimeout
	}
	if out.Server.ShutdownTimeout == 0 {
		out.Server.ShutdownTimeout = fileConfig.Server.ShutdownTimeout
	}
	if out.Storage.Path == "" {
		out.Storage.Path = fileConfig.Storage.Path
	}
	if out.Storage.PoolSize == 0 {
		out.Storage.PoolSize = fileConfig.Storage.PoolSize
	}
	if out.Admin.Username == "" {
		out.Admin.Username = fileConfig.Admin.Username
	}
	if out.Admin.Password == "" {
		out.Admin.Password = fileConfig.Admin.Password
	}
	if out.Admin.SessionTTL == 0 {
		out.Admin.SessionTTL = fileConfig.Admin.SessionTTL
	}
	if out.Logging.Level == "" {
		out.Logging.Level = fileConfig.Logging.Level
	}
	if out.Logging.Format == "" {
		out.Logging.Format = fileConfig.Logging.Format
	}
	if out.Logging.Output == "" {
		out.Logging.Output = fileConfig.Logging.Output
	}
	if out.RateLimit.RPS == 0 {
		out.RateLimit.RPS = fileConfig.RateLimit.RPS
	}
	if out.RateLimit.Burst == 0 {
		out.RateLimit.Burst = fileConfig.RateLimit.Burst
	}
	return out
}

// loadFromFile parses the YAML file. The rate-limit enabled flag is also
// decoded as a pointer so an absent key is distinguishable from an explicit
// false.
func loadFromFile(path string) (*Config, *bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, nil, err
	}
	var flags struct {
		RateLimit struct {
			Enabled *bool `yaml:"enabled"`
		} `yaml:"rate_limit"`
	}
	if err := yaml.Unmarshal(data, &flags); err != nil {
		return nil, nil, err
	}
	return &cfg, flags.RateLimit.Enabled, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}
	if c.Admin.Username == "" || c.Admin.Password == "" {
		return fmt.Errorf("admin username and password are required")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}
