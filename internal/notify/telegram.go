package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"monitorbot/internal/httpx"
)

// TelegramTarget posts notifications to a Telegram channel via the Bot API.
type TelegramTarget struct {
	botToken  string
	channelID int64
	apiBase   string
	client    *http.Client
}

func NewTelegramTarget(botToken string, channelID int64) *TelegramTarget {
	return &TelegramTarget{
		botToken:  botToken,
		channelID: channelID,
		apiBase:   "https://api.telegram.org",
		client:    httpx.ExternalClient(),
	}
}

func (t *TelegramTarget) Name() string { return "telegram" }

// Send posts with Markdown formatting.
func (t *TelegramTarget) Send(ctx context.Context, text string) error {
	return t.sendMessage(ctx, text, "Markdown")
}

// SendPlain posts without a parse mode, for when the channel rejects the
// Markdown variant.
func (t *TelegramTarget) SendPlain(ctx context.Context, text string) error {
	return t.sendMessage(ctx, text, "")
}

func (t *TelegramTarget) sendMessage(ctx context.Context, text, parseMode string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)

	form := url.Values{}
	form.Set("chat_id", strconv.FormatInt(t.channelID, 10))
	form.Set("text", text)
	form.Set("disable_web_page_preview", "true")
	if parseMode != "" {
		form.Set("parse_mode", parseMode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}
	return nil
}
