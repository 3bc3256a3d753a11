package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizard creates a new configuration wizard
func NewWizard() *Wizard {
	return NewWizardWithIO(os.Stdin, os.Stdout)
}

// NewWizardWithIO creates a wizard reading answers from in and prompting on out
func NewWizardWithIO(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run runs the interactive configuration wizard, starting from base when given
func (w *Wizard) Run(base *Config) (*Config, error) {
	w.println("=== erigo Configuration Wizard ===")
	w.println()

	cfg := base
	if cfg == nil {
		cfg = DefaultConfig()
	}
	validator := NewValidator()

	// API URL
	for {
		w.printf("Erigones SDDC API URL [%s]: ", cfg.API.URL)
		raw, err := w.readLine()
		if err != nil {
			return nil, err
		}

		if raw == "" {
			raw = cfg.API.URL
		}

		if err := validator.ValidateAPIURL(raw); err != nil {
			w.printf("Error: %v\n", err)
			continue
		}

		cfg.API.URL = strings.TrimRight(raw, "/")
		break
	}

	w.println()
	w.println("Telegram Configuration:")

	// Bot Token
	for {
		w.print("Telegram Bot Token (press Enter to keep current): ")
		token, err := w.readLine()
		if err != nil {
			return nil, err
		}

		if token == "" {
			if cfg.Telegram.BotToken == "" {
				w.println("Error: Bot token is required")
				continue
			}
			break
		}

		if err := validator.ValidateTelegramToken(token); err != nil {
			w.printf("Error: %v\n", err)
			continue
		}

		cfg.Telegram.BotToken = token
		break
	}

	// Admins
	for {
		w.print("Admin Telegram user IDs, comma separated (empty allows everyone): ")
		line, err := w.readLine()
		if err != nil {
			return nil, err
		}

		admins, err := parseIDs(line)
		if err != nil {
			w.printf("Error: %v\n", err)
			continue
		}

		cfg.Telegram.Admins = admins
		break
	}

	w.println()

	// Credentials backend
	w.printf("Credentials backend (file/sqlite/memory) [%s]: ", cfg.Credentials.Backend)
	backend, err := w.readLine()
	if err != nil {
		return nil, err
	}

	if backend != "" {
		if err := validator.ValidateBackend(backend); err != nil {
			w.printf("Warning: %v, keeping %s\n", err, cfg.Credentials.Backend)
		} else {
			cfg.Credentials.Backend = backend
			cfg.Credentials.Path = ""
		}
	}

	// Log Level
	w.printf("Log level (debug/info/warn/error) [%s]: ", cfg.Logging.Level)
	level, err := w.readLine()
	if err != nil {
		return nil, err
	}

	if level != "" {
		if err := validator.ValidateLogLevel(level); err != nil {
			w.printf("Warning: %v, keeping %s\n", err, cfg.Logging.Level)
		} else {
			cfg.Logging.Level = level
		}
	}

	w.println()
	w.println("Configuration complete!")

	return cfg, nil
}

func parseIDs(line string) ([]int64, error) {
	ids := []int64{}
	for _, field := range strings.Split(line, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid user id: %s", field)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (w *Wizard) print(s string) {
	fmt.Fprint(w.out, s)
}

func (w *Wizard) printf(format string, args ...interface{}) {
	fmt.Fprintf(w.out, format, args...)
}

func (w *Wizard) println(args ...interface{}) {
	fmt.Fprintln(w.out, args...)
}
