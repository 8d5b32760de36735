// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all statuswatch configuration.
type Config struct {
	// API configuration
	API APIConfig `yaml:"api"`

	// Realtime configuration
	Realtime RealtimeConfig `yaml:"realtime"`

	// Cache configuration
	Cache CacheConfig `yaml:"cache"`

	// Forward configuration
	Forward ForwardConfig `yaml:"forward"`

	// Notify configuration
	Notify NotifyConfig `yaml:"notify"`

	// Auth configuration
	Auth AuthConfig `yaml:"auth"`

	// Logging configuration
	Log LogConfig `yaml:"log"`
}

// APIConfig holds REST API client settings.
type APIConfig struct {
	BaseURL string        `envconfig:"SW_API_URL" yaml:"base_url"`
	Timeout time.Duration `envconfig:"SW_API_TIMEOUT" yaml:"timeout"`
}

// RealtimeConfig holds websocket connection settings.
type RealtimeConfig struct {
	SocketURL    string        `envconfig:"SW_SOCKET_URL" yaml:"socket_url"`
	ProbePath    string        `envconfig:"SW_PROBE_PATH" yaml:"probe_path"`
	ProbeTimeout time.Duration `envconfig:"SW_PROBE_TIMEOUT" yaml:"probe_timeout"`
}

// CacheConfig holds query cache settings.
type CacheConfig struct {
	Type     string        `envconfig:"SW_CACHE_TYPE" yaml:"type"`
	TTL      time.Duration `envconfig:"SW_CACHE_TTL" yaml:"ttl"` // 0 = no expiry
	RedisURL string        `envconfig:"SW_REDIS_URL" yaml:"redis_url"`
}

// ForwardConfig holds event export settings.
type ForwardConfig struct {
	Type         string `envconfig:"SW_FORWARD_TYPE" yaml:"type"`
	KafkaBrokers string `envconfig:"SW_KAFKA_BROKERS" yaml:"kafka_brokers"`
	KafkaTopic   string `envconfig:"SW_KAFKA_TOPIC" yaml:"kafka_topic"`
}

// NotifyConfig holds notification output settings.
type NotifyConfig struct {
	// RatePerSecond caps notifications emitted per second. 0 = unlimited.
	RatePerSecond float64 `envconfig:"SW_NOTIFY_RATE" yaml:"rate_per_second"`
	Burst         int     `envconfig:"SW_NOTIFY_BURST" yaml:"burst"`
}

// AuthConfig holds credential storage settings.
type AuthConfig struct {
	TokenPath string `envconfig:"SW_TOKEN_PATH" yaml:"token_path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"SW_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"SW_LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Set defaults first
	setDefaults(cfg)

	// Load from YAML file if provided (overrides defaults)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.API = APIConfig{
		BaseURL: "http://localhost:8080",
		Timeout: 30 * time.Second,
	}

	cfg.Realtime = RealtimeConfig{
		SocketURL:    "ws://localhost:8080/ws",
		ProbePath:    "/healthz",
		ProbeTimeout: 5 * time.Second,
	}

	cfg.Cache = CacheConfig{
		Type:     "memory",
		TTL:      0,
		RedisURL: "redis://localhost:6379",
	}

	cfg.Forward = ForwardConfig{
		Type:       "none",
		KafkaTopic: "statuswatch.events",
	}

	cfg.Notify = NotifyConfig{
		RatePerSecond: 0,
		Burst:         10,
	}

	cfg.Auth = AuthConfig{
		TokenPath: defaultTokenPath(),
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".statuswatch/token.json"
	}
	return filepath.Join(home, ".statuswatch", "token.json")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.API.BaseURL == "" {
		errs = append(errs, "api base_url cannot be empty")
	}

	if c.Realtime.SocketURL == "" {
		errs = append(errs, "realtime socket_url cannot be empty")
	}

	if c.Realtime.ProbeTimeout <= 0 {
		errs = append(errs, "probe_timeout must be positive")
	}

	validCacheTypes := map[string]bool{"memory": true, "redis": true}
	if !validCacheTypes[c.Cache.Type] {
		errs = append(errs, fmt.Sprintf("invalid cache type: %s (must be memory or redis)", c.Cache.Type))
	}

	validForwardTypes := map[string]bool{"none": true, "kafka": true}
	if !validForwardTypes[c.Forward.Type] {
		errs = append(errs, fmt.Sprintf("invalid forward type: %s (must be none or kafka)", c.Forward.Type))
	}

	if c.Forward.Type == "kafka" && c.Forward.KafkaBrokers == "" {
		errs = append(errs, "kafka_brokers cannot be empty when forward type is kafka")
	}

	if c.Notify.RatePerSecond < 0 {
		errs = append(errs, "notify rate_per_second cannot be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// KafkaBrokerList returns the configured brokers as a slice.
func (c ForwardConfig) KafkaBrokerList() []string {
	if c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
