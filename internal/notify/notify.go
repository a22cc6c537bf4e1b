// Package notify delivers short text messages to an operator's chat.
package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sirosfoundation/relay-panel/pkg/config"
)

// ErrEmptyTarget is returned when a message has no destination chat
var ErrEmptyTarget = errors.New("empty notification target")

// Sender delivers a message to a chat address
type Sender interface {
	Send(ctx context.Context, chatID, text string) error
}

// New returns the Telegram sender when a bot token is configured,
// otherwise a sender that only writes the message to the log.
func New(cfg config.TelegramConfig, logger *zap.Logger) Sender {
	if cfg.BotToken == "" {
		logger.Warn("No Telegram bot token configured, messages will not be delivered")
		return NewLogSender(logger)
	}
	return NewTelegramSender(cfg, logger)
}

// LogSender records that a message was due without delivering it.
// Message text is never logged since it may carry a one-time code.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a LogSender
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger.Named("notify")}
}

func (s *LogSender) Send(ctx context.Context, chatID, text string) error {
	if chatID == "" {
		return ErrEmptyTarget
	}
	s.logger.Info("Notification not delivered",
		zap.String("chat_id", chatID),
		zap.Int("length", len(text)),
	)
	return nil
}
