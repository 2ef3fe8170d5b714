package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"monitorbot/internal/config"
	"monitorbot/internal/domain"
	"monitorbot/internal/httpx"
)

// TelegramSource reads messages from configured groups and channel posts from
// configured broadcast channels through the Bot API. Groups are two-way chats
// where members ask questions; channels are one-way admin broadcasts.
//
// The source holds a single API session: concurrent fetches serialize on one
// mutex, and a flood-wait signal (HTTP 429 with retry_after) is slept out
// before any further call.
type TelegramSource struct {
	token         string
	groups        []config.ChatConfig
	channels      []config.ChatConfig
	messagesLimit int
	apiBase       string
	client        *http.Client

	mu     sync.Mutex
	offset int64
}

func NewTelegramSource(cfg config.TelegramConfig) *TelegramSource {
	return &TelegramSource{
		token:         cfg.BotToken,
		groups:        cfg.Groups,
		channels:      cfg.Channels,
		messagesLimit: cfg.MessagesLimit,
		apiBase:       "https://api.telegram.org",
		client:        httpx.ExternalClient(),
	}
}

func (t *TelegramSource) Name() string { return "telegram" }

// Connect validates the token with getMe.
func (t *TelegramSource) Connect(ctx context.Context) error {
	var me struct {
		Username string `json:"username"`
	}
	if err := t.call(ctx, "getMe", nil, &me); err != nil {
		return fmt.Errorf("telegram connect: %w", err)
	}
	log.Printf("telegram connected bot=%s", me.Username)
	return nil
}

func (t *TelegramSource) Disconnect() error {
	t.client.CloseIdleConnections()
	return nil
}

// Bot API update shapes, trimmed to the fields the monitor reads.

type tgUpdate struct {
	UpdateID    int64      `json:"update_id"`
	Message     *tgMessage `json:"message"`
	ChannelPost *tgMessage `json:"channel_post"`
}

type tgMessage struct {
	MessageID int64   `json:"message_id"`
	From      *tgUser `json:"from"`
	Chat      tgChat  `json:"chat"`
	Date      int64   `json:"date"`
	Text      string  `json:"text"`
	ReplyTo   *struct {
		Text string `json:"text"`
	} `json:"reply_to_message"`
}

type tgUser struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type tgChat struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Username string `json:"username"`
}

// Fetch drains pending updates and converts messages from configured chats.
// Updates from unconfigured chats advance the offset but produce no items.
func (t *TelegramSource) Fetch(ctx context.Context, lookback time.Duration) ([]domain.Item, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().UTC().Add(-lookback)

	var allItems []domain.Item
	fetched := 0
	for fetched < t.messagesLimit {
		updates, err := t.getUpdates(ctx)
		if err != nil {
			if len(allItems) > 0 {
				log.Printf("telegram fetch partial error: %v", err)
				break
			}
			return nil, err
		}
		if len(updates) == 0 {
			break
		}

		for _, update := range updates {
			if update.UpdateID >= t.offset {
				t.offset = update.UpdateID + 1
			}
			item, ok := t.convertUpdate(update, cutoff)
			if !ok {
				continue
			}
			allItems = append(allItems, item)
		}
		fetched += len(updates)
	}

	log.Printf("telegram fetch done total=%d", len(allItems))
	return allItems, nil
}

func (t *TelegramSource) getUpdates(ctx context.Context) ([]tgUpdate, error) {
	params := url.Values{}
	params.Set("offset", strconv.FormatInt(t.offset, 10))
	params.Set("limit", strconv.Itoa(min(t.messagesLimit, 100)))
	params.Set("allowed_updates", `["message","channel_post"]`)

	var updates []tgUpdate
	if err := t.call(ctx, "getUpdates", params, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// call performs one Bot API method call. On a flood-wait response it sleeps
// the advertised retry_after and retries once.
func (t *TelegramSource) call(ctx context.Context, method string, params url.Values, result any) error {
	retried := false
	for {
		retryAfter, err := t.callOnce(ctx, method, params, result)
		if retryAfter > 0 && !retried {
			log.Printf("telegram flood wait %s on %s, sleeping", retryAfter, method)
			select {
			case <-time.After(retryAfter + time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			retried = true
			continue
		}
		return err
	}
}

func (t *TelegramSource) callOnce(ctx context.Context, method string, params url.Values, result any) (time.Duration, error) {
	endpoint := fmt.Sprintf("%s/bot%s/%s", t.apiBase, t.token, method)

	var body io.Reader
	if params != nil {
		body = strings.NewReader(params.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	if params != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("reading response: %w", err)
	}

	var envelope struct {
		OK          bool            `json:"ok"`
		Result      json.RawMessage `json:"result"`
		Description string          `json:"description"`
		Parameters  *struct {
			RetryAfter int `json:"retry_after"`
		} `json:"parameters"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return 0, fmt.Errorf("parsing response: %w", err)
	}

	if !envelope.OK {
		if envelope.Parameters != nil && envelope.Parameters.RetryAfter > 0 {
			return time.Duration(envelope.Parameters.RetryAfter) * time.Second,
				fmt.Errorf("telegram API throttled: %s", envelope.Description)
		}
		return 0, fmt.Errorf("telegram API error: %s", envelope.Description)
	}

	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return 0, fmt.Errorf("parsing result: %w", err)
		}
	}
	return 0, nil
}

// convertUpdate maps one update to an Item when it belongs to a configured
// group or channel and is inside the lookback window.
func (t *TelegramSource) convertUpdate(update tgUpdate, cutoff time.Time) (domain.Item, bool) {
	msg := update.Message
	sourceKind := domain.SourceTelegram
	chats := t.groups
	if msg == nil {
		msg = update.ChannelPost
		sourceKind = domain.SourceTelegramChannel
		chats = t.channels
	}
	if msg == nil || msg.Text == "" {
		return domain.Item{}, false
	}

	chatCfg, ok := matchChat(chats, msg.Chat)
	if !ok {
		return domain.Item{}, false
	}

	created := time.Unix(msg.Date, 0).UTC()
	if created.Before(cutoff) {
		return domain.Item{}, false
	}

	language := chatCfg.Language
	if language == "" {
		language = "ru"
	}

	channelName := chatCfg.Name
	if channelName == "" {
		channelName = msg.Chat.Title
	}

	// Channels: author is the channel itself; groups: individual sender.
	author := msg.Chat.Title
	if sourceKind == domain.SourceTelegram {
		author = "Unknown"
		if msg.From != nil {
			author = strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
		}
	}

	msgURL := fmt.Sprintf("https://t.me/c/%d/%d", msg.Chat.ID, msg.MessageID)
	if msg.Chat.Username != "" {
		msgURL = fmt.Sprintf("https://t.me/%s/%d", msg.Chat.Username, msg.MessageID)
	}

	extra := map[string]string{
		"username": msg.Chat.Username,
		"is_reply": strconv.FormatBool(msg.ReplyTo != nil),
	}
	if sourceKind == domain.SourceTelegram && msg.ReplyTo != nil {
		extra["reply_to_text"] = truncate(msg.ReplyTo.Text, 200)
	}

	return domain.Item{
		ID:        fmt.Sprintf("tg_%d_%d", msg.Chat.ID, msg.MessageID),
		Source:    sourceKind,
		Channel:   channelName,
		Text:      msg.Text,
		URL:       msgURL,
		Author:    author,
		CreatedAt: created,
		Language:  language,
		Extra:     extra,
	}, true
}

func matchChat(chats []config.ChatConfig, chat tgChat) (config.ChatConfig, bool) {
	for _, c := range chats {
		if c.ChatID != 0 && c.ChatID == chat.ID {
			return c, true
		}
		if c.Username != "" && strings.EqualFold(strings.TrimPrefix(c.Username, "@"), chat.Username) {
			return c, true
		}
	}
	return config.ChatConfig{}, false
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
