package share

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const telegramMaxMessageLen = 4096

// TelegramChannel sends messages through the Telegram Bot API.
type TelegramChannel struct {
	baseURL string
	chatID  string
	client  *http.Client
}

// TelegramOption configures a TelegramChannel.
type TelegramOption func(*TelegramChannel)

// WithTelegramBaseURL overrides the Bot API endpoint (for testing).
func WithTelegramBaseURL(u string) TelegramOption {
	return func(t *TelegramChannel) { t.baseURL = strings.TrimRight(u, "/") }
}

// WithTelegramClient overrides the HTTP client.
func WithTelegramClient(c *http.Client) TelegramOption {
	return func(t *TelegramChannel) { t.client = c }
}

// NewTelegramChannel creates a Telegram channel adapter. chatID is used when
// a message has no target.
func NewTelegramChannel(token, chatID string, opts ...TelegramOption) (*TelegramChannel, error) {
	if token == "" {
		return nil, errors.New("telegram bot token is required (ENGLISH_TELEGRAM_BOT_TOKEN)")
	}
	t := &TelegramChannel{
		baseURL: "https://api.telegram.org/bot" + token,
		chatID:  chatID,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *TelegramChannel) SendMessage(ctx context.Context, msg OutboundMessage) error {
	chatID := msg.Target
	if chatID == "" {
		chatID = t.chatID
	}
	if chatID == "" {
		return ErrNoTarget
	}

	// Rich payloads carry Discord markdown and go out without a parse mode.
	parseMode := ""
	if msg.Payload == nil {
		parseMode = "Markdown"
	}

	for _, part := range SplitMessage(msg.Body(), telegramMaxMessageLen) {
		params := url.Values{
			"chat_id": {chatID},
			"text":    {part},
		}
		if parseMode != "" {
			params.Set("parse_mode", parseMode)
		}

		status, body, err := t.post(ctx, params)
		if err != nil {
			return err
		}
		if status == http.StatusOK {
			continue
		}
		// If Markdown parsing fails, retry without parse mode
		if parseMode != "" && status == http.StatusBadRequest {
			slog.Warn("Telegram markdown parse failed, retrying plain")
			params.Del("parse_mode")
			status, body, err = t.post(ctx, params)
			if err != nil {
				return fmt.Errorf("retrying plain: %w", err)
			}
			if status == http.StatusOK {
				continue
			}
		}
		return &WebhookError{Channel: Telegram, Status: status, Body: body}
	}
	return nil
}

func (t *TelegramChannel) post(ctx context.Context, params url.Values) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/sendMessage", strings.NewReader(params.Encode()))
	if err != nil {
		return 0, "", fmt.Errorf("creating Telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("sending Telegram message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK {
		return resp.StatusCode, "", nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return resp.StatusCode, string(body), nil
}

// SplitMessage splits text into chunks of at most maxLen bytes, preferring
// newline then space boundaries.
func SplitMessage(text string, maxLen int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			parts = append(parts, text)
			break
		}
		// Find last newline or space within limit
		cutAt := maxLen
		if idx := strings.LastIndex(text[:maxLen], "\n"); idx > 0 {
			cutAt = idx + 1
		} else if idx := strings.LastIndex(text[:maxLen], " "); idx > 0 {
			cutAt = idx + 1
		} else {
			cutAt = runeBoundary(text, maxLen)
		}
		parts = append(parts, text[:cutAt])
		text = text[cutAt:]
	}
	return parts
}

// runeBoundary backs n off to the start of a UTF-8 sequence.
func runeBoundary(s string, n int) int {
	for n > 0 && n < len(s) && s[n]&0xC0 == 0x80 {
		n--
	}
	if n == 0 {
		return 1
	}
	return n
}
