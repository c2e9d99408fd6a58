// Package bot delivers due-card reminders through Telegram.
package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/lingua/internal/logger"
	"github.com/example/lingua/pkg/models"
)

// Config locates the bot and the chat reminders go to
type Config struct {
	Token  string
	ChatID int64
	// Endpoint overrides tgbotapi.APIEndpoint, e.g. for a local Bot API server
	Endpoint string
}

// Notifier sends reminders to a single chat
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	log    *logger.Logger
}

// NewNotifier connects to the Bot API and checks the token
func NewNotifier(cfg Config, log *logger.Logger) (*Notifier, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram bot token is not set")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is not set")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if log == nil {
		log = logger.Nop()
	}

	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.Token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	log.Info("telegram notifier authorized", "bot", api.Self.UserName, "chat_id", cfg.ChatID)

	return &Notifier{api: api, chatID: cfg.ChatID, log: log}, nil
}

// SendReminder tells the chat how many cards of deck are waiting
func (n *Notifier) SendReminder(ctx context.Context, deck models.Deck, count int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, ReminderText(deck.Name, count))
	if _, err := n.api.Send(msg); err != nil {
		n.log.Error("failed to send reminder", "deck_id", deck.ID, "error", err)
		return fmt.Errorf("failed to send reminder: %w", err)
	}
	n.log.Debug("reminder sent", "deck_id", deck.ID, "count", count)
	return nil
}

// ReminderText formats the reminder message
func ReminderText(deckName string, count int) string {
	noun := "cards"
	if count == 1 {
		noun = "card"
	}
	return fmt.Sprintf("You have %d %s to review in %q.", count, noun, deckName)
}
