package monitor

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"monitorbot/internal/classify"
	"monitorbot/internal/config"
	"monitorbot/internal/domain"
	"monitorbot/internal/notify"
	"monitorbot/internal/source"
	"monitorbot/internal/storage/sqlite"
)

type fakeSource struct {
	name        string
	items       []domain.Item
	fetchErr    error
	fetches     int
	disconnects int
}

func (f *fakeSource) Name() string                      { return f.name }
func (f *fakeSource) Connect(ctx context.Context) error { return nil }

func (f *fakeSource) Disconnect() error {
	f.disconnects++
	return nil
}

func (f *fakeSource) Fetch(ctx context.Context, lookback time.Duration) ([]domain.Item, error) {
	f.fetches++
	return f.items, f.fetchErr
}

var _ source.Source = (*fakeSource)(nil)

type captureTarget struct {
	sent []string
}

func (c *captureTarget) Name() string { return "capture" }

func (c *captureTarget) Send(ctx context.Context, text string) error {
	c.sent = append(c.sent, text)
	return nil
}

func (c *captureTarget) SendPlain(ctx context.Context, text string) error {
	c.sent = append(c.sent, text)
	return nil
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "monitor-test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func keywordClassifier() *classify.Classifier {
	return classify.New(config.ClassificationConfig{
		EN: config.LanguageMarkers{
			Keywords:          []string{"visa", "asylum", "deportation", "ice"},
			QuestionMarkers:   []string{"?"},
			MinKeywordMatches: 1,
		},
		RU: config.LanguageMarkers{
			Keywords:        []string{"виза", "визу", "виз"},
			QuestionMarkers: []string{"?", "что делать"},
		},
	}, nil)
}

func testItems(now time.Time) []domain.Item {
	return []domain.Item{
		{
			ID:        "reddit_post_rel1",
			Source:    domain.SourceRedditPost,
			Channel:   "r/immigration",
			Text:      "H-1B visa processing delays, has anyone else experienced this?",
			URL:       "https://reddit.com/r/immigration/comments/rel1/",
			CreatedAt: now,
			Language:  "en",
		},
		{
			// "service center" contains the letters of an enforcement
			// keyword but no whole-word hit.
			ID:        "reddit_post_irr1",
			Source:    domain.SourceRedditPost,
			Channel:   "r/immigration",
			Text:      "Great customer service center experience, highly recommend them!",
			URL:       "https://reddit.com/r/immigration/comments/irr1/",
			CreatedAt: now,
			Language:  "en",
		},
		{
			// "самовывоз" contains "виз" as a substring but not as a word.
			ID:        "tg_-1_99",
			Source:    domain.SourceTelegram,
			Channel:   "Барахолка",
			Text:      "Продам диван, возможен самовывоз со склада в любое время",
			URL:       "https://t.me/c/-1/99",
			CreatedAt: now,
			Language:  "ru",
		},
		{
			ID:        "reddit_post_short",
			Source:    domain.SourceRedditPost,
			Channel:   "r/immigration",
			Text:      "visa?",
			URL:       "https://reddit.com/r/immigration/comments/short/",
			CreatedAt: now,
			Language:  "en",
		},
	}
}

func newTestMonitor(t *testing.T, store *sqlite.Store, src source.Source, target notify.Target) *Monitor {
	t.Helper()
	dispatcher := notify.NewDispatcher([]notify.Target{target}, store, 30)
	m := New(store, keywordClassifier(), dispatcher, Options{
		MinTextLength: 30,
		IncludeDraft:  true,
		Retention:     30 * 24 * time.Hour,
		NotifyPause:   time.Millisecond,
	})
	m.AddSource(src, time.Minute, time.Hour)
	return m
}

func TestRunOncePipeline(t *testing.T) {
	store := newTestStore(t)
	target := &captureTarget{}
	src := &fakeSource{name: "reddit", items: testItems(time.Now().UTC())}
	m := newTestMonitor(t, store, src, target)

	if err := m.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	// Relevant question notified, exactly once.
	if len(target.sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(target.sent))
	}
	if !strings.Contains(target.sent[0], "H-1B visa processing delays") {
		t.Fatalf("unexpected notification:\n%s", target.sent[0])
	}

	rec, err := store.GetProcessed("reddit_post_rel1")
	if err != nil {
		t.Fatalf("GetProcessed failed: %v", err)
	}
	if !rec.Notified {
		t.Fatal("relevant item must be flagged notified")
	}
	if !strings.Contains(rec.Classification, `"is_relevant":true`) {
		t.Fatalf("classification = %q", rec.Classification)
	}

	// Boundary traps processed but never notified.
	for _, id := range []string{"reddit_post_irr1", "tg_-1_99"} {
		rec, err = store.GetProcessed(id)
		if err != nil {
			t.Fatalf("GetProcessed %s failed: %v", id, err)
		}
		if rec.Notified {
			t.Fatalf("%s must not be notified", id)
		}
		if !strings.Contains(rec.Classification, `"is_relevant":false`) {
			t.Fatalf("%s classification = %q", id, rec.Classification)
		}
	}

	// Short item recorded with no classification.
	rec, err = store.GetProcessed("reddit_post_short")
	if err != nil {
		t.Fatalf("GetProcessed failed: %v", err)
	}
	if rec.Classification != "" {
		t.Fatalf("short item classification = %q, want empty", rec.Classification)
	}
	if rec.Notified {
		t.Fatal("short item must not be notified")
	}

	// A single pass releases its adapter connections on exit.
	if src.disconnects != 1 {
		t.Fatalf("disconnects = %d, want 1", src.disconnects)
	}
}

func TestRunOnceDeduplicatesAcrossRuns(t *testing.T) {
	store := newTestStore(t)
	target := &captureTarget{}
	src := &fakeSource{name: "reddit", items: testItems(time.Now().UTC())}
	m := newTestMonitor(t, store, src, target)

	if err := m.RunOnce(context.Background()); err != nil {
		t.Fatalf("first RunOnce failed: %v", err)
	}
	if err := m.RunOnce(context.Background()); err != nil {
		t.Fatalf("second RunOnce failed: %v", err)
	}

	if len(target.sent) != 1 {
		t.Fatalf("sent %d notifications across two runs, want 1", len(target.sent))
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalProcessed != 4 {
		t.Fatalf("TotalProcessed = %d, want 4", stats.TotalProcessed)
	}
}

func TestRunOnceFetchErrorContained(t *testing.T) {
	store := newTestStore(t)
	target := &captureTarget{}
	failing := &fakeSource{name: "broken", fetchErr: context.DeadlineExceeded}
	m := newTestMonitor(t, store, failing, target)
	working := &fakeSource{name: "reddit", items: testItems(time.Now().UTC())}
	m.AddSource(working, time.Minute, time.Hour)

	if err := m.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if working.fetches != 1 {
		t.Fatal("second source must still run after first source fails")
	}
	if len(target.sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(target.sent))
	}
}

func TestRunOnceRateLimit(t *testing.T) {
	store := newTestStore(t)
	target := &captureTarget{}
	src := &fakeSource{name: "reddit", items: testItems(time.Now().UTC())}

	dispatcher := notify.NewDispatcher([]notify.Target{target}, store, 0)
	m := New(store, keywordClassifier(), dispatcher, Options{
		MinTextLength: 30,
		NotifyPause:   time.Millisecond,
	})
	m.AddSource(src, time.Minute, time.Hour)

	if err := m.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if len(target.sent) != 0 {
		t.Fatalf("sent %d notifications under zero budget, want 0", len(target.sent))
	}

	// The item is still recorded as processed, just not notified.
	rec, err := store.GetProcessed("reddit_post_rel1")
	if err != nil {
		t.Fatalf("GetProcessed failed: %v", err)
	}
	if rec.Notified {
		t.Fatal("rate-limited item must not be flagged notified")
	}
}

func TestRunForeverStopsOnCancel(t *testing.T) {
	store := newTestStore(t)
	target := &captureTarget{}
	src := &fakeSource{name: "reddit", items: testItems(time.Now().UTC())}

	dispatcher := notify.NewDispatcher([]notify.Target{target}, store, 30)
	m := New(store, keywordClassifier(), dispatcher, Options{
		MinTextLength: 30,
		Tick:          10 * time.Millisecond,
		NotifyPause:   time.Millisecond,
	})
	m.AddSource(src, time.Minute, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.RunForever(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunForever returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunForever did not stop after cancel")
	}

	if src.fetches == 0 {
		t.Fatal("expected at least one fetch before cancel")
	}
	if len(target.sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(target.sent))
	}
}

func TestMarshalClassification(t *testing.T) {
	payload := marshalClassification(domain.ClassificationResult{
		IsRelevant: true,
		IsQuestion: false,
		Category:   "visa",
		Urgency:    "medium",
	}, "Chicago, IL")

	for _, want := range []string{`"is_relevant":true`, `"category":"visa"`, `"location":"Chicago, IL"`} {
		if !strings.Contains(payload, want) {
			t.Fatalf("payload missing %s: %s", want, payload)
		}
	}
}
