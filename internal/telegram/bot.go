package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/harun/erigo/internal/config"
	"github.com/harun/erigo/internal/metrics"
	"github.com/rs/zerolog"
)

// MaxMessageLength is the Telegram limit for a text message, in characters
const MaxMessageLength = 4096

// API is the part of tgbotapi.BotAPI the bot uses
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot represents a Telegram bot instance
type Bot struct {
	api     API
	self    tgbotapi.User
	config  *config.TelegramConfig
	logger  zerolog.Logger
	metrics *metrics.Metrics

	// Handlers
	messageHandler MessageHandler
	commandHandler CommandHandler

	// State
	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// MessageHandler handles incoming plain text messages
type MessageHandler interface {
	HandleMessage(ctx context.Context, update tgbotapi.Update) error
}

// CommandHandler handles bot commands
type CommandHandler interface {
	HandleCommand(ctx context.Context, update tgbotapi.Update) error
}

// New creates a new Telegram bot instance
func New(cfg *config.TelegramConfig, logger zerolog.Logger, m *metrics.Metrics) (*Bot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("telegram config is required")
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	bot := NewWithAPI(api, api.Self, cfg, logger, m)

	bot.logger.Info().
		Str("username", api.Self.UserName).
		Int64("id", api.Self.ID).
		Msg("Telegram bot authenticated")

	return bot, nil
}

// NewWithAPI creates a bot on top of an existing API client
func NewWithAPI(api API, self tgbotapi.User, cfg *config.TelegramConfig, logger zerolog.Logger, m *metrics.Metrics) *Bot {
	if cfg == nil {
		cfg = &config.TelegramConfig{}
	}
	return &Bot{
		api:     api,
		self:    self,
		config:  cfg,
		logger:  logger.With().Str("component", "telegram").Logger(),
		metrics: m,
	}
}

// Start starts the bot and begins processing updates. Handlers receive a
// context that is cancelled by Stop.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return fmt.Errorf("bot is already running")
	}

	b.logger.Info().Msg("Starting Telegram bot")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	b.ctx, b.cancel = context.WithCancel(ctx)
	b.running = true

	b.wg.Add(1)
	go b.processUpdates(b.ctx, updates)

	b.logger.Info().Msg("Telegram bot started")

	return nil
}

// Stop stops receiving updates and waits for in-flight handlers
func (b *Bot) Stop() error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return fmt.Errorf("bot is not running")
	}

	b.logger.Info().Msg("Stopping Telegram bot")

	b.running = false
	b.api.StopReceivingUpdates()
	b.cancel()
	b.mu.Unlock()

	b.wg.Wait()

	b.logger.Info().Msg("Telegram bot stopped")

	return nil
}

// processUpdates dispatches each update on its own goroutine
func (b *Bot) processUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}

			b.wg.Add(1)
			go func(update tgbotapi.Update) {
				defer b.wg.Done()
				if err := b.handleUpdate(ctx, update); err != nil {
					b.logger.Error().
						Err(err).
						Int("update_id", update.UpdateID).
						Msg("Failed to handle update")
				}
			}(update)
		}
	}
}

// handleUpdate routes an update to the appropriate handler
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.Message == nil || update.Message.From == nil {
		return nil
	}

	if update.Message.IsCommand() && b.commandHandler != nil {
		return b.commandHandler.HandleCommand(ctx, update)
	}

	if b.messageHandler != nil {
		return b.messageHandler.HandleMessage(ctx, update)
	}

	return nil
}

// SendMessage sends a text message, split into several when too long
func (b *Bot) SendMessage(chatID int64, text string) error {
	return b.SendMessageWithReply(chatID, text, 0)
}

// SendMessageWithReply sends a text message as a reply, split into several when too long
func (b *Bot) SendMessageWithReply(chatID int64, text string, replyToMessageID int) error {
	for _, chunk := range splitMessage(text, MaxMessageLength) {
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.ReplyToMessageID = replyToMessageID
		msg.DisableWebPagePreview = true

		_, err := b.api.Send(msg)
		b.metrics.RecordMessageSent(err)
		if err != nil {
			return fmt.Errorf("failed to send message: %w", err)
		}
	}

	b.logger.Debug().
		Int64("chat_id", chatID).
		Int("reply_to", replyToMessageID).
		Msg("Reply sent")

	return nil
}

// DeleteMessage removes a message from a chat
func (b *Bot) DeleteMessage(chatID int64, messageID int) error {
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// splitMessage cuts text into pieces of at most limit characters, preferring line breaks
func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

// GetBotInfo returns bot information
func (b *Bot) GetBotInfo() map[string]interface{} {
	return map[string]interface{}{
		"username":  b.self.UserName,
		"id":        b.self.ID,
		"firstName": b.self.FirstName,
		"running":   b.IsRunning(),
	}
}

// SetMessageHandler sets the message handler
func (b *Bot) SetMessageHandler(handler MessageHandler) {
	b.messageHandler = handler
}

// SetCommandHandler sets the command handler
func (b *Bot) SetCommandHandler(handler CommandHandler) {
	b.commandHandler = handler
}

// IsRunning returns whether the bot is running
func (b *Bot) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// ValidateToken validates a bot token by attempting to authenticate
func ValidateToken(token string) error {
	if token == "" {
		return fmt.Errorf("bot token is empty")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return fmt.Errorf("invalid bot token: %w", err)
	}

	if api.Self.UserName == "" {
		return fmt.Errorf("failed to get bot info")
	}

	return nil
}

// WaitForReady waits for the bot to be ready
func (b *Bot) WaitForReady(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if b.IsRunning() {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("bot did not become ready within timeout")
}
