package telegram

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/harun/erigo/internal/audit"
	"github.com/harun/erigo/internal/tracing"
	"github.com/harun/erigo/pkg/command"
	"github.com/rs/zerolog"
)

// UserPrefix namespaces Telegram user IDs in credential and session keys
const UserPrefix = "tg:"

// Commands dispatches chat commands to the API command handlers
type Commands struct {
	bot      *Bot
	logger   zerolog.Logger
	apiURL   string
	handlers map[string]command.Spec
	audit    *audit.Logger
}

// CommandContext contains command metadata
type CommandContext struct {
	ChatID    int64
	MessageID int
	UserID    int64
	Username  string
	Private   bool
	Command   string
	Args      []string
}

// User returns the identity used for credentials and sessions
func (c CommandContext) User() string {
	return fmt.Sprintf("%s%d", UserPrefix, c.UserID)
}

// NewCommands creates a new command dispatcher. apiURL is shown in error replies.
func NewCommands(bot *Bot, apiURL string) *Commands {
	return &Commands{
		bot:      bot,
		logger:   bot.logger.With().Str("module", "commands").Logger(),
		apiURL:   apiURL,
		handlers: make(map[string]command.Spec),
	}
}

// Register registers a command
func (c *Commands) Register(spec command.Spec) {
	c.handlers[spec.Name] = spec
	c.logger.Info().Str("command", spec.Name).Bool("admin", spec.Admin).Msg("Command registered")
}

// SetAudit sets the audit log receiving one event per command run
func (c *Commands) SetAudit(a *audit.Logger) {
	c.audit = a
}

// Unregister removes a command
func (c *Commands) Unregister(name string) {
	delete(c.handlers, name)
	c.logger.Info().Str("command", name).Msg("Command unregistered")
}

// Has reports whether name is a registered command
func (c *Commands) Has(name string) bool {
	_, ok := c.handlers[normalizeCommand(name)]
	return ok
}

// HandleCommand processes a slash command update
func (c *Commands) HandleCommand(ctx context.Context, update tgbotapi.Update) error {
	if update.Message == nil || update.Message.From == nil {
		return nil
	}

	fields := strings.Fields(update.Message.Text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return nil
	}

	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.Index(name, "@"); at >= 0 {
		if !strings.EqualFold(name[at+1:], c.bot.self.UserName) {
			return nil // addressed to another bot
		}
		name = name[:at]
	}

	return c.Dispatch(ctx, newCommandContext(update.Message, name, fields[1:]))
}

// Dispatch runs a parsed command and replies with its result
func (c *Commands) Dispatch(ctx context.Context, cc CommandContext) error {
	cc.Command = normalizeCommand(cc.Command)
	ctx = tracing.NewCommandContext(ctx, cc.User())
	logger := tracing.LoggerFromContext(ctx, c.logger)

	logger.Debug().
		Int64("chat_id", cc.ChatID).
		Str("command", cc.Command).
		Int("args", len(cc.Args)).
		Msg("Command received")

	if cc.Command == "help" || cc.Command == "start" {
		return c.SendResponse(cc, c.helpText())
	}

	spec, exists := c.handlers[cc.Command]
	if !exists {
		return c.sendUnknownCommand(cc)
	}

	if spec.Admin && !c.bot.config.IsAdmin(cc.UserID) {
		logger.Warn().Str("command", cc.Command).Msg("Admin command denied")
		c.bot.metrics.RecordCommand(cc.Command, errPermissionDenied)
		c.audit.RecordCommand(ctx, cc.Command, audit.StatusDenied, auditMetadata(cc))
		return c.SendResponse(cc, "Permission denied")
	}

	if spec.Name == command.Login {
		// the message carries a password or api_key, in any chat
		if err := c.bot.DeleteMessage(cc.ChatID, cc.MessageID); err != nil {
			logger.Warn().Err(err).Msg("Failed to delete credentials message")
		}
		cc.MessageID = 0

		if !cc.Private {
			logger.Warn().Int64("chat_id", cc.ChatID).Msg("es-login outside a private chat")
			c.bot.metrics.RecordCommand(cc.Command, errNotPrivate)
			c.audit.RecordCommand(ctx, cc.Command, audit.StatusDenied, auditMetadata(cc))
			return c.SendResponse(cc, "Use es-login in a private chat with the bot")
		}
	}

	reply, err := spec.Run(ctx, command.Call{
		User: cc.User(),
		Args: cc.Args,
		Notify: func(text string) {
			if err := c.SendResponse(cc, text); err != nil {
				logger.Warn().Err(err).Msg("Failed to send progress message")
			}
		},
	})
	c.bot.metrics.RecordCommand(cc.Command, err)

	if err != nil {
		logger.Info().Err(err).Str("command", cc.Command).Msg("Command failed")
		meta := auditMetadata(cc)
		meta["error"] = command.Message(err, c.apiURL)
		c.audit.RecordCommand(ctx, cc.Command, audit.StatusFailure, meta)
		return c.SendResponse(cc, command.Message(err, c.apiURL))
	}
	c.audit.RecordCommand(ctx, cc.Command, audit.StatusSuccess, auditMetadata(cc))

	return c.SendResponse(cc, reply)
}

// SetCommands publishes the command list to Telegram. Names use underscores
// because Telegram does not allow dashes in bot commands.
func (c *Commands) SetCommands() error {
	names := c.GetRegisteredCommands()
	commands := make([]tgbotapi.BotCommand, 0, len(names))
	for _, name := range names {
		commands = append(commands, tgbotapi.BotCommand{
			Command:     strings.ReplaceAll(name, "-", "_"),
			Description: c.handlers[name].Description,
		})
	}

	cfg := tgbotapi.NewSetMyCommands(commands...)
	if _, err := c.bot.api.Request(cfg); err != nil {
		return fmt.Errorf("failed to set commands: %w", err)
	}

	c.logger.Info().Int("count", len(commands)).Msg("Bot commands updated")
	return nil
}

// sendUnknownCommand sends an unknown command response
func (c *Commands) sendUnknownCommand(cc CommandContext) error {
	text := fmt.Sprintf("Unknown command: %s\nSend /help for a list of commands.", cc.Command)
	return c.bot.SendMessageWithReply(cc.ChatID, text, cc.MessageID)
}

// SendResponse sends a response to a command
func (c *Commands) SendResponse(cc CommandContext, text string) error {
	return c.bot.SendMessageWithReply(cc.ChatID, text, cc.MessageID)
}

// GetRegisteredCommands returns all registered command names, sorted
func (c *Commands) GetRegisteredCommands() []string {
	commands := make([]string, 0, len(c.handlers))
	for name := range c.handlers {
		commands = append(commands, name)
	}
	sort.Strings(commands)
	return commands
}

func (c *Commands) helpText() string {
	var b strings.Builder
	b.WriteString("Erigones SDDC API commands:\n")
	for _, name := range c.GetRegisteredCommands() {
		spec := c.handlers[name]
		fmt.Fprintf(&b, "\n%s\n  %s\n", spec.Usage, spec.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func newCommandContext(msg *tgbotapi.Message, name string, args []string) CommandContext {
	return CommandContext{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		UserID:    msg.From.ID,
		Username:  msg.From.UserName,
		Private:   msg.Chat.IsPrivate(),
		Command:   name,
		Args:      args,
	}
}

// auditMetadata describes a command without its credentials or parameters
func auditMetadata(cc CommandContext) map[string]interface{} {
	meta := map[string]interface{}{"chat_id": cc.ChatID}
	switch cc.Command {
	case command.ES:
		if len(cc.Args) >= 2 {
			meta["action"] = cc.Args[0]
			meta["resource"] = cc.Args[1]
		}
	case command.VM:
		if len(cc.Args) == 1 {
			meta["dc"] = cc.Args[0]
		}
	case command.Login:
		if len(cc.Args) == 1 {
			meta["credential"] = "api_key"
		} else if len(cc.Args) == 2 {
			meta["credential"] = "password"
		}
	}
	return meta
}

// normalizeCommand maps Telegram style es_login to es-login
func normalizeCommand(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", "-"))
}

type commandError string

func (e commandError) Error() string { return string(e) }

const (
	errPermissionDenied commandError = "permission denied"
	errNotPrivate       commandError = "not a private chat"
)
