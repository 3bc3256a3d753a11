package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Config represents the main erigo configuration
type Config struct {
	// Erigones SDDC API
	API APIConfig `json:"api" mapstructure:"api"`

	// Telegram
	Telegram TelegramConfig `json:"telegram" mapstructure:"telegram"`

	// Credential persistence
	Credentials CredentialsConfig `json:"credentials" mapstructure:"credentials"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// APIConfig holds the Erigones SDDC API endpoint settings
type APIConfig struct {
	URL                string `json:"url" mapstructure:"url"`
	Timeout            int    `json:"timeout" mapstructure:"timeout"`                             // seconds
	TaskPollIntervalMs int    `json:"task_poll_interval_ms" mapstructure:"task_poll_interval_ms"` // first poll delay
	TaskTimeout        int    `json:"task_timeout" mapstructure:"task_timeout"`                   // seconds
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken string  `json:"bot_token" mapstructure:"bot_token"`
	Admins   []int64 `json:"admins" mapstructure:"admins"` // empty allows everyone
}

// CredentialsConfig selects where user credentials are persisted
type CredentialsConfig struct {
	Backend string `json:"backend" mapstructure:"backend"` // file, sqlite, memory
	Path    string `json:"path" mapstructure:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	AuditFile string `json:"audit_file" mapstructure:"audit_file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// MetricsConfig holds the Prometheus endpoint settings
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// ConfigError reports a missing or invalid required setting
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s is not set in configuration", e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Timeout:            30,
			TaskPollIntervalMs: 500,
			TaskTimeout:        600,
		},
		Telegram: TelegramConfig{
			Admins: []int64{},
		},
		Credentials: CredentialsConfig{
			Backend: "file",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks the settings every command needs
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.URL) == "" {
		return &ConfigError{Field: "api.url"}
	}
	if c.API.Timeout < 0 {
		return &ConfigError{Field: "api.timeout", Message: "must be >= 0"}
	}
	if c.API.TaskPollIntervalMs < 0 {
		return &ConfigError{Field: "api.task_poll_interval_ms", Message: "must be >= 0"}
	}
	if c.API.TaskTimeout < 0 {
		return &ConfigError{Field: "api.task_timeout", Message: "must be >= 0"}
	}

	switch c.Credentials.Backend {
	case "", "file", "sqlite", "memory":
	default:
		return &ConfigError{Field: "credentials.backend", Message: fmt.Sprintf("invalid backend %s (must be: file, sqlite, memory)", c.Credentials.Backend)}
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return &ConfigError{Field: "metrics.addr", Message: "required when metrics are enabled"}
	}

	return nil
}

// ValidateTelegram checks the settings needed to run the bot
func (c *Config) ValidateTelegram() error {
	if c.Telegram.BotToken == "" {
		return &ConfigError{Field: "telegram.bot_token"}
	}
	return nil
}

// IsAdmin reports whether a Telegram user may run admin commands
func (c *TelegramConfig) IsAdmin(userID int64) bool {
	if len(c.Admins) == 0 {
		return true
	}
	for _, id := range c.Admins {
		if id == userID {
			return true
		}
	}
	return false
}

// RequestTimeout returns the HTTP timeout for API calls
func (c *APIConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// TaskPollInterval returns the first delay between task status checks
func (c *APIConfig) TaskPollInterval() time.Duration {
	return time.Duration(c.TaskPollIntervalMs) * time.Millisecond
}

// TaskWait returns how long to wait for a pending task
func (c *APIConfig) TaskWait() time.Duration {
	return time.Duration(c.TaskTimeout) * time.Second
}
