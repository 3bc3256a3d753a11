package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

var telegramTokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIURL validates the Erigones SDDC API base URL
func (v *Validator) ValidateAPIURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("API URL cannot be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid API URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid API URL scheme %q (must be http or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("API URL has no host")
	}

	return nil
}

// ValidateTelegramToken validates a Telegram bot token
func (v *Validator) ValidateTelegramToken(token string) error {
	if token == "" {
		return fmt.Errorf("telegram bot token cannot be empty")
	}

	// Telegram bot tokens have format: <bot_id>:<token>
	if !telegramTokenPattern.MatchString(token) {
		return fmt.Errorf("invalid Telegram bot token format")
	}

	return nil
}

// ValidateBackend validates a credentials backend name
func (v *Validator) ValidateBackend(backend string) error {
	if backend == "" {
		return nil // file
	}

	validBackends := []string{"file", "sqlite", "memory"}
	for _, valid := range validBackends {
		if backend == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid credentials backend: %s (must be one of: %s)", backend, strings.Join(validBackends, ", "))
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateListenAddr validates a host:port listen address
func (v *Validator) ValidateListenAddr(addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := cfg.Validate(); err != nil {
		errors = append(errors, err)
	}

	if cfg.API.URL != "" {
		if err := v.ValidateAPIURL(cfg.API.URL); err != nil {
			errors = append(errors, err)
		}
	}

	if cfg.Telegram.BotToken != "" {
		if err := v.ValidateTelegramToken(cfg.Telegram.BotToken); err != nil {
			errors = append(errors, err)
		}
	}
	for _, id := range cfg.Telegram.Admins {
		if id <= 0 {
			errors = append(errors, fmt.Errorf("telegram admin id must be positive, got %d", id))
		}
	}

	if err := v.ValidateBackend(cfg.Credentials.Backend); err != nil {
		errors = append(errors, err)
	}

	if cfg.Metrics.Enabled {
		if err := v.ValidateListenAddr(cfg.Metrics.Addr); err != nil {
			errors = append(errors, err)
		}
	}

	if cfg.Logging.MaxSize < 0 {
		errors = append(errors, fmt.Errorf("logging.max_size must be >= 0"))
	}
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
