package source

import (
	"context"
	"log"
	"net/http"
	"regexp"
	"time"

	"github.com/mmcdole/gofeed"

	"monitorbot/internal/config"
	"monitorbot/internal/domain"
	"monitorbot/internal/httpx"
)

var nonWordRe = regexp.MustCompile(`[^\w]`)

// ForumSource fetches posts from configured forum RSS feeds (e.g.
// VisaJourney). Feeds carry a per-feed declared language for routing.
type ForumSource struct {
	feeds      []config.ForumFeedConfig
	postsLimit int
	client     *http.Client
}

func NewForumSource(cfg config.ForumsConfig) *ForumSource {
	return &ForumSource{
		feeds:      cfg.Feeds,
		postsLimit: cfg.PostsLimit,
		client:     httpx.ExternalClient(),
	}
}

func (f *ForumSource) Name() string { return "forums" }

func (f *ForumSource) Connect(ctx context.Context) error { return nil }

func (f *ForumSource) Disconnect() error { return nil }

func (f *ForumSource) Fetch(ctx context.Context, lookback time.Duration) ([]domain.Item, error) {
	cutoff := time.Now().UTC().Add(-lookback)

	var allItems []domain.Item
	for _, feedCfg := range f.feeds {
		name := feedCfg.Name
		if name == "" {
			name = feedCfg.URL
		}
		items, err := f.fetchForum(ctx, feedCfg, name, cutoff)
		if err != nil {
			log.Printf("forum fetch %s error: %v", name, err)
			continue
		}
		log.Printf("forum fetch %s items=%d", name, len(items))
		allItems = append(allItems, items...)
	}

	log.Printf("forum fetch done total=%d", len(allItems))
	return allItems, nil
}

func (f *ForumSource) fetchForum(ctx context.Context, feedCfg config.ForumFeedConfig, name string, cutoff time.Time) ([]domain.Item, error) {
	feed, err := fetchFeed(ctx, f.client, feedCfg.URL)
	if err != nil {
		return nil, err
	}

	language := feedCfg.Language
	if language == "" {
		language = "en"
	}

	entries := feed.Items
	if len(entries) > f.postsLimit {
		entries = entries[:f.postsLimit]
	}

	var items []domain.Item
	for _, entry := range entries {
		item, ok := convertForumEntry(entry, name, language, cutoff)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func convertForumEntry(entry *gofeed.Item, forumName, language string, cutoff time.Time) (domain.Item, bool) {
	created := time.Now().UTC()
	if entry.PublishedParsed != nil {
		created = entry.PublishedParsed.UTC()
	} else if entry.UpdatedParsed != nil {
		created = entry.UpdatedParsed.UTC()
	}
	if created.Before(cutoff) {
		return domain.Item{}, false
	}

	// Stable ID from the feed's own GUID, falling back to the link.
	guid := entry.GUID
	if guid == "" {
		guid = entry.Link
	}
	if guid == "" {
		log.Printf("forum entry without guid or link skipped title=%q", entry.Title)
		return domain.Item{}, false
	}
	postID := nonWordRe.ReplaceAllString(guid, "_")

	author := "unknown"
	if entry.Author != nil && entry.Author.Name != "" {
		author = entry.Author.Name
	}

	body := entry.Description
	if body == "" {
		body = entry.Content
	}
	text := entryText(entry.Title, body)

	return domain.Item{
		ID:        "forum_" + postID,
		Source:    domain.SourceForumPost,
		Channel:   forumName,
		Title:     entry.Title,
		Text:      text,
		URL:       entry.Link,
		Author:    author,
		CreatedAt: created,
		Language:  language,
		Extra: map[string]string{
			"forum":    forumName,
			"location": detectLocation(text, ""),
		},
	}, true
}
