package source

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"monitorbot/internal/config"
	"monitorbot/internal/domain"
	"monitorbot/internal/httpx"
)

var (
	redditPostIDRe = regexp.MustCompile(`/comments/([a-z0-9]+)/`)
	redditAuthorRe = regexp.MustCompile(`/u/(\w+)`)
)

// RedditSource fetches new posts from configured subreddits via their public
// RSS feeds. No API credentials needed.
type RedditSource struct {
	subreddits []config.SubredditConfig
	postsLimit int
	baseURL    string
	client     *http.Client
}

func NewRedditSource(cfg config.RedditConfig) *RedditSource {
	return &RedditSource{
		subreddits: cfg.Subreddits,
		postsLimit: cfg.PostsLimit,
		baseURL:    "https://www.reddit.com",
		client:     httpx.ExternalClient(),
	}
}

func (r *RedditSource) Name() string { return "reddit" }

func (r *RedditSource) Connect(ctx context.Context) error { return nil }

func (r *RedditSource) Disconnect() error { return nil }

// Fetch retrieves new posts from every configured subreddit. One failing
// subreddit is logged and skipped; the rest still fetch.
func (r *RedditSource) Fetch(ctx context.Context, lookback time.Duration) ([]domain.Item, error) {
	cutoff := time.Now().UTC().Add(-lookback)

	var allItems []domain.Item
	for _, sub := range r.subreddits {
		items, err := r.fetchSubreddit(ctx, sub.Name, cutoff)
		if err != nil {
			log.Printf("reddit fetch r/%s error: %v", sub.Name, err)
			continue
		}
		log.Printf("reddit fetch r/%s items=%d", sub.Name, len(items))
		allItems = append(allItems, items...)
	}

	log.Printf("reddit fetch done total=%d", len(allItems))
	return allItems, nil
}

func (r *RedditSource) fetchSubreddit(ctx context.Context, subreddit string, cutoff time.Time) ([]domain.Item, error) {
	feedURL := fmt.Sprintf("%s/r/%s/new/.rss", r.baseURL, subreddit)
	feed, err := fetchFeed(ctx, r.client, feedURL)
	if err != nil {
		return nil, err
	}

	entries := feed.Items
	if len(entries) > r.postsLimit {
		entries = entries[:r.postsLimit]
	}

	var items []domain.Item
	for _, entry := range entries {
		item, ok := r.convertEntry(entry, subreddit, cutoff)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// convertEntry maps one feed entry to an Item. Entries older than the cutoff
// or without a resolvable post ID are dropped.
func (r *RedditSource) convertEntry(entry *gofeed.Item, subreddit string, cutoff time.Time) (domain.Item, bool) {
	created := time.Now().UTC()
	if entry.PublishedParsed != nil {
		created = entry.PublishedParsed.UTC()
	} else if entry.UpdatedParsed != nil {
		created = entry.UpdatedParsed.UTC()
	}
	if created.Before(cutoff) {
		return domain.Item{}, false
	}

	// Stable ID from Reddit's own post ID in the permalink, never from fetch
	// position.
	postID := entry.GUID
	if m := redditPostIDRe.FindStringSubmatch(entry.Link); m != nil {
		postID = m[1]
	}
	if postID == "" {
		log.Printf("reddit entry without ID skipped link=%s", entry.Link)
		return domain.Item{}, false
	}

	author := "unknown"
	if entry.Author != nil && entry.Author.Name != "" {
		author = entry.Author.Name
		if m := redditAuthorRe.FindStringSubmatch(author); m != nil {
			author = m[1]
		}
	}

	// Reddit's Atom feeds carry the body in <content>, not <summary>.
	body := entry.Content
	if body == "" {
		body = entry.Description
	}
	text := entryText(entry.Title, body)
	location := detectLocation(text, subreddit)

	return domain.Item{
		ID:        "reddit_post_" + postID,
		Source:    domain.SourceRedditPost,
		Channel:   "r/" + subreddit,
		Title:     entry.Title,
		Text:      text,
		URL:       entry.Link,
		Author:    strings.TrimPrefix(author, "/u/"),
		CreatedAt: created,
		Language:  "en",
		Extra: map[string]string{
			"subreddit": subreddit,
			"location":  location,
		},
	}, true
}
