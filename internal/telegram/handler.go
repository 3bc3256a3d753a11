package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Handler accepts commands written as plain text, such as "vm admin", so
// the chat syntax matches other chat front ends. In groups the bot must be
// mentioned.
type Handler struct {
	bot      *Bot
	commands *Commands
	logger   zerolog.Logger
}

// NewHandler creates a new message handler
func NewHandler(bot *Bot, commands *Commands) *Handler {
	return &Handler{
		bot:      bot,
		commands: commands,
		logger:   bot.logger.With().Str("module", "handler").Logger(),
	}
}

// HandleMessage processes incoming plain text messages
func (h *Handler) HandleMessage(ctx context.Context, update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Text == "" {
		return nil
	}

	text := msg.Text
	isGroup := msg.Chat.IsGroup() || msg.Chat.IsSuperGroup()
	if isGroup {
		mention := "@" + h.bot.self.UserName
		if h.bot.self.UserName == "" || !strings.Contains(text, mention) {
			return nil
		}
		text = strings.ReplaceAll(text, mention, "")
	}

	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}

	h.logger.Debug().
		Int64("chat_id", msg.Chat.ID).
		Int64("user_id", msg.From.ID).
		Bool("is_group", isGroup).
		Msg("Message received")

	if !h.commands.Has(fields[0]) {
		if isGroup {
			return nil
		}
		return h.bot.SendMessageWithReply(msg.Chat.ID, "Send /help for a list of commands.", msg.MessageID)
	}

	return h.commands.Dispatch(ctx, newCommandContext(msg, fields[0], fields[1:]))
}
