package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"monitorbot/internal/config"
	"monitorbot/internal/domain"
)

func redditAtom(entries string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>new posts</title>
` + entries + `
</feed>`
}

func redditEntry(postID, title, body, author string, published time.Time) string {
	return fmt.Sprintf(`<entry>
  <id>t3_%s</id>
  <title>%s</title>
  <link href="https://www.reddit.com/r/immigration/comments/%s/slug/"/>
  <author><name>/u/%s</name><uri>https://www.reddit.com/user/%s</uri></author>
  <content type="html">&lt;p&gt;%s&lt;/p&gt;</content>
  <published>%s</published>
</entry>`, postID, title, postID, author, author, body, published.Format(time.RFC3339))
}

func newTestRedditSource(t *testing.T, feedBody string) *RedditSource {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/new/.rss") {
			http.NotFound(w, r)
			return
		}
		if ua := r.Header.Get("User-Agent"); !strings.Contains(ua, "MonitorBot") {
			t.Errorf("unexpected User-Agent %q", ua)
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, feedBody)
	}))
	t.Cleanup(server.Close)

	src := NewRedditSource(config.RedditConfig{
		Subreddits: []config.SubredditConfig{{Name: "immigration"}},
		PostsLimit: 25,
	})
	src.baseURL = server.URL
	return src
}

func TestRedditFetch(t *testing.T) {
	now := time.Now().UTC()
	feed := redditAtom(
		redditEntry("abc123", "Visa denied, what now?", "My B2 visa got denied yesterday.", "worrieduser", now.Add(-10*time.Minute)) +
			redditEntry("old999", "Old post", "This one is stale.", "someone", now.Add(-48*time.Hour)),
	)
	src := newTestRedditSource(t, feed)

	items, err := src.Fetch(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1 (stale entry must be dropped)", len(items))
	}

	item := items[0]
	if item.ID != "reddit_post_abc123" {
		t.Fatalf("ID = %q", item.ID)
	}
	if item.Source != domain.SourceRedditPost {
		t.Fatalf("Source = %q", item.Source)
	}
	if item.Channel != "r/immigration" {
		t.Fatalf("Channel = %q", item.Channel)
	}
	if item.Author != "worrieduser" {
		t.Fatalf("Author = %q", item.Author)
	}
	if item.Language != "en" {
		t.Fatalf("Language = %q", item.Language)
	}
	if !strings.Contains(item.Text, "Visa denied, what now?") || !strings.Contains(item.Text, "My B2 visa got denied yesterday.") {
		t.Fatalf("Text = %q", item.Text)
	}
	if item.Extra["subreddit"] != "immigration" {
		t.Fatalf("Extra = %v", item.Extra)
	}
}

func TestRedditFetchSubredditLocation(t *testing.T) {
	now := time.Now().UTC()
	feed := redditAtom(redditEntry("loc1", "Question", "Anything about my green card?", "user", now))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feed)
	}))
	t.Cleanup(server.Close)

	src := NewRedditSource(config.RedditConfig{
		Subreddits: []config.SubredditConfig{{Name: "chicago"}},
		PostsLimit: 25,
	})
	src.baseURL = server.URL

	items, err := src.Fetch(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Extra["location"] != "Chicago, IL" {
		t.Fatalf("location = %q, want Chicago, IL", items[0].Extra["location"])
	}
}

func TestRedditFetchFailingSubredditIsSkipped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)

	src := NewRedditSource(config.RedditConfig{
		Subreddits: []config.SubredditConfig{{Name: "immigration"}},
		PostsLimit: 25,
	})
	src.baseURL = server.URL

	items, err := src.Fetch(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("Fetch should contain per-subreddit errors, got %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("got %d items, want 0", len(items))
	}
}

func TestRedditPostsLimit(t *testing.T) {
	now := time.Now().UTC()
	var entries strings.Builder
	for i := 0; i < 10; i++ {
		entries.WriteString(redditEntry(fmt.Sprintf("post%d", i), "Title", "Body text", "user", now))
	}
	src := newTestRedditSource(t, redditAtom(entries.String()))
	src.postsLimit = 3

	items, err := src.Fetch(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
}
