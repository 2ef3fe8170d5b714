package domain

import "time"

// Origin kinds assigned by source adapters. The kind is part of every item ID
// prefix and is persisted on the processed record, so values are stable.
const (
	SourceRedditPost      = "reddit_post"
	SourceRedditComment   = "reddit_comment"
	SourceForumPost       = "forum_post"
	SourceTelegram        = "telegram"
	SourceTelegramChannel = "telegram_channel"
)

// Item is one unit of fetched content: a forum/feed post or a chat message.
// Adapters construct it once per fetch cycle; it is never mutated afterwards
// and never persisted directly (only the derived classification is stored).
type Item struct {
	ID        string // source-qualified, stable across re-fetches
	Source    string // one of the Source* kinds
	Channel   string // r/immigration, forum name, @group, ...
	Title     string
	Text      string
	URL       string
	Author    string
	CreatedAt time.Time
	Language  string // declared language code, defaults to "en"
	Extra     map[string]string
}

// Location returns the inferred geographic label, if any adapter attached one.
func (it Item) Location() string {
	return it.Extra["location"]
}

// IsBroadcast reports whether the item came from a one-way broadcast channel,
// where nobody asks questions and relevance alone makes it actionable.
func (it Item) IsBroadcast() bool {
	return it.Source == SourceTelegramChannel
}
