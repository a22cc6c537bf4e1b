package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sirosfoundation/relay-panel/pkg/config"
)

const defaultTelegramAPI = "https://api.telegram.org"

// TelegramSender delivers messages through the Telegram Bot API sendMessage method
type TelegramSender struct {
	client   *http.Client
	apiURL   string
	botToken string
	logger   *zap.Logger
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// NewTelegramSender creates a TelegramSender
func NewTelegramSender(cfg config.TelegramConfig, logger *zap.Logger) *TelegramSender {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = defaultTelegramAPI
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &TelegramSender{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		apiURL:   apiURL,
		botToken: cfg.BotToken,
		logger:   logger.Named("telegram"),
	}
}

// Send posts text to chatID. A non-2xx status or a body with ok=false is an error.
func (s *TelegramSender) Send(ctx context.Context, chatID, text string) error {
	if chatID == "" {
		return ErrEmptyTarget
	}

	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.apiURL, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		// the request URL carries the bot token, keep it out of the error
		return fmt.Errorf("telegram request failed: %w", unwrapURLError(err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("failed to read telegram response: %w", err)
	}

	var result sendMessageResponse
	_ = json.Unmarshal(respBody, &result)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !result.OK {
		s.logger.Warn("Telegram rejected message",
			zap.Int("status", resp.StatusCode),
			zap.String("description", result.Description),
		)
		if result.Description != "" {
			return fmt.Errorf("telegram returned %d: %s", resp.StatusCode, result.Description)
		}
		return fmt.Errorf("telegram returned %d", resp.StatusCode)
	}

	s.logger.Debug("Message delivered", zap.String("chat_id", chatID))
	return nil
}

func unwrapURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		return ue.Err
	}
	return err
}
