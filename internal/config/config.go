// Package config loads devquote settings with Viper.
//
// Precedence, lowest first: built-in defaults, the YAML config file
// (~/.devquote/config.yaml unless --config is given), DEVQUOTE_*
// environment variables.
package config

import (
	stderrors "errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/devquote/internal/errors"
	"github.com/felixgeelhaar/devquote/internal/log"
)

// EnvPrefix prefixes every environment override, e.g. DEVQUOTE_API_BASE_URL.
const EnvPrefix = "DEVQUOTE"

// Storage backends.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds the application configuration.
type Config struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// APIConfig configures the backend connection.
type APIConfig struct {
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RefreshTimeout time.Duration `mapstructure:"refresh_timeout" yaml:"refresh_timeout"`
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`
}

// StorageConfig selects and configures the token store backend.
type StorageConfig struct {
	Backend     string `mapstructure:"backend" yaml:"backend"`
	Path        string `mapstructure:"path" yaml:"path"`
	Passphrase  string `mapstructure:"passphrase" yaml:"passphrase,omitempty"`
	RedisURL    string `mapstructure:"redis_url" yaml:"redis_url"`
	RedisPrefix string `mapstructure:"redis_prefix" yaml:"redis_prefix"`
}

// LoggingConfig configures internal/log.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig toggles the metrics dump on exit.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Dir returns ~/.devquote.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".devquote"
	}
	return filepath.Join(home, ".devquote")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load reads configuration from file and environment. A missing file is
// not an error. The result is not validated.
func Load(configPath string) (*Config, error) {
	v, err := newViper(configPath, true)
	if err != nil {
		return nil, err
	}
	return unmarshal(v)
}

// Default returns the built-in defaults, ignoring config files and the
// environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := unmarshal(v)
	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

// newViper builds a Viper with defaults and the config file. env adds the
// environment overrides.
func newViper(configPath string, env bool) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(Dir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if env {
		v.SetEnvPrefix(EnvPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) && !stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "failed to read config file", err)
		}
	}
	return v, nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "failed to decode configuration", err)
	}
	cfg.Storage.Path = expandHome(cfg.Storage.Path)
	return &cfg, nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8080/api")
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("api.refresh_timeout", 15*time.Second)
	v.SetDefault("api.user_agent", "devquote-cli")

	v.SetDefault("storage.backend", BackendFile)
	v.SetDefault("storage.path", filepath.Join(Dir(), "session.json"))
	v.SetDefault("storage.passphrase", "")
	v.SetDefault("storage.redis_url", "redis://localhost:6379/0")
	v.SetDefault("storage.redis_prefix", "devquote:")

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "text")

	v.SetDefault("metrics.enabled", false)
}

// Keys lists every settable key in dot notation.
func Keys() []string {
	v := viper.New()
	setDefaults(v)
	keys := v.AllKeys()
	slices.Sort(keys)
	return keys
}

// Validate reports every invalid setting in one CONFIG-001 error.
func (c *Config) Validate() error {
	var problems []string

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, fmt.Sprintf("api.base_url %q must be an http(s) URL", c.API.BaseURL))
	}
	if c.API.Timeout <= 0 {
		problems = append(problems, "api.timeout must be positive")
	}
	if c.API.RefreshTimeout <= 0 {
		problems = append(problems, "api.refresh_timeout must be positive")
	}

	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.Path == "" {
			problems = append(problems, "storage.path is required for the file backend")
		}
	case BackendRedis:
		if c.Storage.RedisURL == "" {
			problems = append(problems, "storage.redis_url is required for the redis backend")
		}
	case BackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("storage.backend %q must be file, memory or redis", c.Storage.Backend))
	}

	if !log.ValidLevel(c.Logging.Level) {
		problems = append(problems, fmt.Sprintf("logging.level %q must be debug, info, warn or error", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q must be text or json", c.Logging.Format))
	}

	if len(problems) > 0 {
		return errors.NewConfigInvalidError(strings.Join(problems, "; "))
	}
	return nil
}

// LogConfig converts the logging section for internal/log.
func (c *Config) LogConfig() log.Config {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(c.Logging.Level)
	cfg.Format = log.ParseFormat(strings.ToLower(c.Logging.Format))
	if cfg.Level == log.LevelDebug {
		cfg.AddSource = true
	}
	return cfg
}

// Save writes cfg as YAML. The file may hold a passphrase and is created
// with mode 0600.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(errors.ErrCodeConfigInvalid, "failed to encode configuration", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(errors.ErrCodeConfigInvalid, "failed to create config directory", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(errors.ErrCodeConfigInvalid, "failed to write config file", err)
	}
	return nil
}

// Set changes one key in the file at path and saves it. Environment
// overrides are not persisted.
func Set(path, key, value string) (*Config, error) {
	key = strings.ToLower(key)
	if !slices.Contains(Keys(), key) {
		return nil, errors.NewConfigInvalidError(fmt.Sprintf("unknown key %q", key))
	}

	v, err := newViper(path, false)
	if err != nil {
		return nil, err
	}
	v.Set(key, value)

	cfg, err := unmarshal(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, Save(cfg, path)
}

// Get returns the effective value of key.
func (c *Config) Get(key string) (string, error) {
	switch strings.ToLower(key) {
	case "api.base_url":
		return c.API.BaseURL, nil
	case "api.timeout":
		return c.API.Timeout.String(), nil
	case "api.refresh_timeout":
		return c.API.RefreshTimeout.String(), nil
	case "api.user_agent":
		return c.API.UserAgent, nil
	case "storage.backend":
		return c.Storage.Backend, nil
	case "storage.path":
		return c.Storage.Path, nil
	case "storage.passphrase":
		if c.Storage.Passphrase == "" {
			return "", nil
		}
		return log.RedactedValue, nil
	case "storage.redis_url":
		return c.Storage.RedisURL, nil
	case "storage.redis_prefix":
		return c.Storage.RedisPrefix, nil
	case "logging.level":
		return c.Logging.Level, nil
	case "logging.format":
		return c.Logging.Format, nil
	case "metrics.enabled":
		return fmt.Sprint(c.Metrics.Enabled), nil
	}
	return "", errors.NewConfigInvalidError(fmt.Sprintf("unknown key %q", key))
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Storage.Passphrase != "" {
		out.Storage.Passphrase = log.RedactedValue
	}
	return &out
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
