package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultModel            = "claude-haiku-4-5-20251001"
	defaultMinTextLength    = 30
	defaultMaxPerHour       = 30
	defaultRetentionDays    = 30
	defaultRedditInterval   = 15 // minutes
	defaultTelegramInterval = 30 // minutes
	defaultLookbackHours    = 2
	defaultPostsLimit       = 50
	defaultForumPostsLimit  = 25
	defaultMessagesLimit    = 100
)

type Config struct {
	Database       DatabaseConfig       `yaml:"database"`
	Reddit         RedditConfig         `yaml:"reddit"`
	Forums         ForumsConfig         `yaml:"forums"`
	Telegram       TelegramConfig       `yaml:"telegram"`
	Classification ClassificationConfig `yaml:"classification"`
	Notifications  NotificationConfig   `yaml:"notifications"`
	Slack          SlackConfig          `yaml:"slack"`
}

type DatabaseConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

type RedditConfig struct {
	Subreddits           []SubredditConfig `yaml:"subreddits"`
	PostsLimit           int               `yaml:"posts_limit"`
	CheckIntervalMinutes int               `yaml:"check_interval_minutes"`
}

type SubredditConfig struct {
	Name string `yaml:"name"`
}

type ForumsConfig struct {
	Feeds      []ForumFeedConfig `yaml:"feeds"`
	PostsLimit int               `yaml:"posts_limit"`
}

type ForumFeedConfig struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Language string `yaml:"language"`
}

type TelegramConfig struct {
	BotToken              string       `yaml:"bot_token"`
	Groups                []ChatConfig `yaml:"groups"`
	Channels              []ChatConfig `yaml:"channels"`
	MessagesLimit         int          `yaml:"messages_limit"`
	CheckIntervalMinutes  int          `yaml:"check_interval_minutes"`
	LookbackHours         int          `yaml:"lookback_hours"`
	NotificationChannelID int64        `yaml:"notification_channel_id"`
}

type ChatConfig struct {
	Name     string `yaml:"name"`
	ChatID   int64  `yaml:"chat_id"`
	Username string `yaml:"username"`
	Language string `yaml:"language"`
}

type ClassificationConfig struct {
	AnthropicAPIKey string          `yaml:"anthropic_api_key"`
	Model           string          `yaml:"model"`
	EN              LanguageMarkers `yaml:"en"`
	RU              LanguageMarkers `yaml:"ru"`
	UK              LanguageMarkers `yaml:"uk"`
}

type LanguageMarkers struct {
	Keywords          []string `yaml:"keywords"`
	QuestionMarkers   []string `yaml:"question_markers"`
	MinKeywordMatches int      `yaml:"min_keyword_matches"`
}

type NotificationConfig struct {
	MinTextLength        int    `yaml:"min_text_length"`
	MaxPerHour           int    `yaml:"max_per_hour"`
	IncludeDraftResponse *bool  `yaml:"include_draft_response"`
	DailyDigestSchedule  string `yaml:"daily_digest_schedule"` // 5-field cron, empty = disabled
}

type SlackConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// IncludeDraft reports whether AI-drafted replies should be requested.
// Defaults to true when the field is omitted.
func (n NotificationConfig) IncludeDraft() bool {
	if n.IncludeDraftResponse == nil {
		return true
	}
	return *n.IncludeDraftResponse
}

// RedditInterval returns the feed poll interval as a duration.
func (c Config) RedditInterval() time.Duration {
	return time.Duration(c.Reddit.CheckIntervalMinutes) * time.Minute
}

// TelegramInterval returns the chat poll interval as a duration.
func (c Config) TelegramInterval() time.Duration {
	return time.Duration(c.Telegram.CheckIntervalMinutes) * time.Minute
}

// RedditLookback derives the feed lookback window from the poll interval:
// 4x the interval so a missed cycle does not drop items, never below one hour.
func (c Config) RedditLookback() time.Duration {
	lookback := 4 * c.RedditInterval()
	if lookback < time.Hour {
		lookback = time.Hour
	}
	return lookback
}

// TelegramLookback is an explicit absolute window, not interval-derived.
func (c Config) TelegramLookback() time.Duration {
	return time.Duration(c.Telegram.LookbackHours) * time.Hour
}

// Retention returns how long processed records are kept before purge.
func (c Config) Retention() time.Duration {
	return time.Duration(c.Database.RetentionDays) * 24 * time.Hour
}

// Load reads the YAML config, applies env var overrides and defaults, and
// validates. Invalid configuration is fatal.
func Load(path string) Config {
	var cfg Config

	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		path = envPath
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", path, err)
		}
		log.Printf("Loaded config from %s", path)
	}

	// Env vars override YAML values
	envOverride(&cfg.Database.Path, "DB_PATH")
	envOverride(&cfg.Classification.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.Classification.Model, "MONITOR_MODEL")
	envOverride(&cfg.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	envOverrideInt64(&cfg.Telegram.NotificationChannelID, "TELEGRAM_NOTIFICATION_CHANNEL_ID")
	envOverride(&cfg.Slack.BotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.Slack.ChannelID, "SLACK_CHANNEL_ID")
	envOverrideInt(&cfg.Notifications.MaxPerHour, "MAX_NOTIFICATIONS_PER_HOUR")

	// Defaults
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/processed.db"
	}
	if cfg.Database.RetentionDays == 0 {
		cfg.Database.RetentionDays = defaultRetentionDays
	}
	if cfg.Classification.Model == "" {
		cfg.Classification.Model = defaultModel
	}
	if cfg.Classification.EN.MinKeywordMatches == 0 {
		cfg.Classification.EN.MinKeywordMatches = 1
	}
	if cfg.Notifications.MinTextLength == 0 {
		cfg.Notifications.MinTextLength = defaultMinTextLength
	}
	if cfg.Notifications.MaxPerHour == 0 {
		cfg.Notifications.MaxPerHour = defaultMaxPerHour
	}
	if cfg.Reddit.PostsLimit == 0 {
		cfg.Reddit.PostsLimit = defaultPostsLimit
	}
	if cfg.Reddit.CheckIntervalMinutes == 0 {
		cfg.Reddit.CheckIntervalMinutes = defaultRedditInterval
	}
	if cfg.Forums.PostsLimit == 0 {
		cfg.Forums.PostsLimit = defaultForumPostsLimit
	}
	if cfg.Telegram.MessagesLimit == 0 {
		cfg.Telegram.MessagesLimit = defaultMessagesLimit
	}
	if cfg.Telegram.CheckIntervalMinutes == 0 {
		cfg.Telegram.CheckIntervalMinutes = defaultTelegramInterval
	}
	if cfg.Telegram.LookbackHours == 0 {
		cfg.Telegram.LookbackHours = defaultLookbackHours
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	return cfg
}

// Validate checks value ranges; it does not require any particular source to
// be configured (that is reported at startup instead).
func (c Config) Validate() error {
	if c.Notifications.MaxPerHour < 1 {
		return fmt.Errorf("notifications.max_per_hour must be >= 1, got %d", c.Notifications.MaxPerHour)
	}
	if c.Notifications.MinTextLength < 0 {
		return fmt.Errorf("notifications.min_text_length must be >= 0, got %d", c.Notifications.MinTextLength)
	}
	if c.Database.RetentionDays < 1 {
		return fmt.Errorf("database.retention_days must be >= 1, got %d", c.Database.RetentionDays)
	}
	if c.Classification.EN.MinKeywordMatches < 1 {
		return fmt.Errorf("classification.en.min_keyword_matches must be >= 1, got %d", c.Classification.EN.MinKeywordMatches)
	}
	if c.Telegram.LookbackHours < 1 {
		return fmt.Errorf("telegram.lookback_hours must be >= 1, got %d", c.Telegram.LookbackHours)
	}
	for _, sub := range c.Reddit.Subreddits {
		if sub.Name == "" {
			return fmt.Errorf("reddit.subreddits entries must have a name")
		}
	}
	for _, feed := range c.Forums.Feeds {
		if feed.URL == "" {
			return fmt.Errorf("forums.feeds entries must have a url")
		}
	}
	return nil
}

// HasRedditSource reports whether any subreddit is configured.
func (c Config) HasRedditSource() bool {
	return len(c.Reddit.Subreddits) > 0
}

// HasForumSource reports whether any forum feed is configured.
func (c Config) HasForumSource() bool {
	return len(c.Forums.Feeds) > 0
}

// HasTelegramSource reports whether the chat source can run.
func (c Config) HasTelegramSource() bool {
	return c.Telegram.BotToken != "" && (len(c.Telegram.Groups) > 0 || len(c.Telegram.Channels) > 0)
}

// TelegramOutputConfigured reports whether the Telegram notifier can run.
func (c Config) TelegramOutputConfigured() bool {
	return c.Telegram.BotToken != "" && c.Telegram.NotificationChannelID != 0
}

// SlackOutputConfigured reports whether the Slack notifier can run.
func (c Config) SlackOutputConfigured() bool {
	return c.Slack.BotToken != "" && c.Slack.ChannelID != ""
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideInt64(field *int64, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}
