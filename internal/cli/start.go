package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/harun/erigo/internal/audit"
	"github.com/harun/erigo/internal/config"
	"github.com/harun/erigo/internal/telegram"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the erigo Telegram bot",
	Long: `Start the erigo Telegram bot in the foreground.
The bot answers es-login, es-logout, es and vm commands until it receives
SIGINT or SIGTERM.`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.ValidateTelegram(); err != nil {
		return err
	}

	pidFile := getPIDFilePath(cfg.DataDir)
	if isRunning(pidFile) {
		return fmt.Errorf("erigo is already running (PID file: %s)", pidFile)
	}

	log, err := newLogger(cfg, true)
	if err != nil {
		return err
	}
	defer log.Close()
	logger := log.GetZerolog()

	if err := writePIDFile(pidFile); err != nil {
		return err
	}
	defer os.Remove(pidFile)

	a, err := openApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	bot, err := telegram.New(&cfg.Telegram, logger, a.metrics)
	if err != nil {
		return err
	}

	auditLog, err := audit.Open(cfg.Logging.AuditFile)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer auditLog.Close()

	commands := telegram.NewCommands(bot, cfg.API.URL)
	commands.SetAudit(auditLog)
	for _, spec := range a.commands.Specs() {
		commands.Register(spec)
	}
	if err := commands.SetCommands(); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish bot commands")
	}
	bot.SetCommandHandler(commands)
	bot.SetMessageHandler(telegram.NewHandler(bot, commands))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = startMetricsServer(cfg, a, logger)
	}

	if err := bot.Start(ctx); err != nil {
		return err
	}

	logger.Info().
		Str("api", cfg.API.URL).
		Int("users", len(a.store.Users())).
		Msg("erigo started")

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	if err := bot.Stop(); err != nil {
		logger.Warn().Err(err).Msg("Failed to stop bot")
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Failed to stop metrics server")
		}
	}

	return nil
}

func startMetricsServer(cfg *config.Config, a *app, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())

	srv := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Metrics.Addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	return srv
}

func getPIDFilePath(dataDir string) string {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "erigo.pid")
		}
		dataDir = filepath.Join(home, ".erigo")
	}
	return filepath.Join(dataDir, "erigo.pid")
}

func writePIDFile(pidFile string) error {
	if err := os.MkdirAll(filepath.Dir(pidFile), 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0600); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

func readPID(pidFile string) (int, error) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID file %s", pidFile)
	}
	return pid, nil
}

func isRunning(pidFile string) bool {
	pid, err := readPID(pidFile)
	if err != nil {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix, FindProcess always succeeds, so we need to send signal 0
	return process.Signal(syscall.Signal(0)) == nil
}
