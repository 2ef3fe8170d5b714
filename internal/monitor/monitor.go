// Package monitor drives the poll-classify-dispatch cycle: each source runs
// on its own interval, while the dedup store and the rate budget are shared
// across all of them.
package monitor

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"monitorbot/internal/domain"
	"monitorbot/internal/source"
)

// Store is the slice of the dedup store the monitor writes through.
type Store interface {
	IsProcessed(itemID string) (bool, error)
	MarkProcessed(itemID, src, groupName, textPreview, url, classification string) error
	MarkNotified(itemID string) error
	PurgeOlderThan(retention time.Duration) error
	Stats() (domain.Stats, error)
}

// Classifier maps item text to a classification.
type Classifier interface {
	Classify(ctx context.Context, text, sourceLang string, includeDraft bool) domain.ClassificationResult
}

// Dispatcher sends at most one notification per item.
type Dispatcher interface {
	MaybeSend(ctx context.Context, item domain.Item, result domain.ClassificationResult) bool
	SendDigest(ctx context.Context, stats domain.Stats) error
	HasTargets() bool
}

// Options tune pipeline behavior; zero values get sane defaults.
type Options struct {
	MinTextLength  int
	IncludeDraft   bool
	Retention      time.Duration
	DigestSchedule string        // 5-field cron expression, empty = no digest
	Tick           time.Duration // scheduler check interval
	NotifyPause    time.Duration // pacing sleep after a successful send
}

type managedSource struct {
	src      source.Source
	interval time.Duration
	lookback time.Duration
	lastRun  time.Time
}

// Monitor owns the source list and the process lifecycle.
type Monitor struct {
	store      Store
	classifier Classifier
	dispatcher Dispatcher
	sources    []*managedSource
	opts       Options
}

func New(store Store, classifier Classifier, dispatcher Dispatcher, opts Options) *Monitor {
	if opts.Tick == 0 {
		opts.Tick = time.Minute
	}
	if opts.NotifyPause == 0 {
		opts.NotifyPause = time.Second
	}
	if opts.Retention == 0 {
		opts.Retention = 30 * 24 * time.Hour
	}
	return &Monitor{
		store:      store,
		classifier: classifier,
		dispatcher: dispatcher,
		opts:       opts,
	}
}

// AddSource registers a source with its own poll interval and lookback
// window.
func (m *Monitor) AddSource(src source.Source, interval, lookback time.Duration) {
	m.sources = append(m.sources, &managedSource{
		src:      src,
		interval: interval,
		lookback: lookback,
	})
}

// CycleResult carries per-pass counters, one per source.
type CycleResult struct {
	Fetched  int
	NewItems int
	Notified int
}

// RunOnce performs a single poll-classify-dispatch pass over every source,
// then purges expired records. Per-source failures are contained.
func (m *Monitor) RunOnce(ctx context.Context) error {
	log.Printf("--- cycle started at %s ---", time.Now().UTC().Format(time.RFC3339))

	defer func() {
		for _, ms := range m.sources {
			if err := ms.src.Disconnect(); err != nil {
				log.Printf("%s disconnect error: %v", ms.src.Name(), err)
			}
		}
	}()

	for _, ms := range m.sources {
		if err := ms.src.Connect(ctx); err != nil {
			log.Printf("%s connect error: %v", ms.src.Name(), err)
			continue
		}
		m.processSource(ctx, ms)
	}

	if err := m.store.PurgeOlderThan(m.opts.Retention); err != nil {
		log.Printf("purge error: %v", err)
	}

	log.Printf("--- cycle completed ---")
	return ctx.Err()
}

// RunForever keeps each source on its own schedule until the context is
// cancelled. The in-flight pass finishes its current item before exit. Any
// single pass failure is logged and the loop continues.
func (m *Monitor) RunForever(ctx context.Context) error {
	if len(m.sources) == 0 {
		log.Printf("no sources configured, exiting")
		return nil
	}

	for _, ms := range m.sources {
		if err := ms.src.Connect(ctx); err != nil {
			log.Printf("%s connect error: %v", ms.src.Name(), err)
		}
	}
	defer func() {
		for _, ms := range m.sources {
			if err := ms.src.Disconnect(); err != nil {
				log.Printf("%s disconnect error: %v", ms.src.Name(), err)
			}
		}
	}()

	digest := m.startDigestCron(ctx)
	if digest != nil {
		defer digest.Stop()
	}

	log.Printf("monitor started, sources=%d tick=%s", len(m.sources), m.opts.Tick)

	for {
		ranAny := false
		for _, ms := range m.sources {
			if ctx.Err() != nil {
				return nil
			}
			if time.Since(ms.lastRun) < ms.interval {
				continue
			}
			m.processSource(ctx, ms)
			ms.lastRun = time.Now()
			ranAny = true
		}

		if ranAny {
			if err := m.store.PurgeOlderThan(m.opts.Retention); err != nil {
				log.Printf("purge error: %v", err)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(m.opts.Tick):
		}
	}
}

func (m *Monitor) startDigestCron(ctx context.Context) *cron.Cron {
	if m.opts.DigestSchedule == "" || !m.dispatcher.HasTargets() {
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(m.opts.DigestSchedule, func() {
		stats, err := m.store.Stats()
		if err != nil {
			log.Printf("digest stats error: %v", err)
			return
		}
		if err := m.dispatcher.SendDigest(ctx, stats); err != nil {
			log.Printf("digest send error: %v", err)
		}
	})
	if err != nil {
		log.Printf("invalid daily_digest_schedule '%s': %v, digest disabled", m.opts.DigestSchedule, err)
		return nil
	}
	c.Start()
	log.Printf("daily digest scheduled (cron: %s)", m.opts.DigestSchedule)
	return c
}

// processSource runs one full pass for one source. Errors never propagate
// past this boundary.
func (m *Monitor) processSource(ctx context.Context, ms *managedSource) CycleResult {
	name := ms.src.Name()
	log.Printf("=== processing %s ===", name)

	var result CycleResult

	items, err := ms.src.Fetch(ctx, ms.lookback)
	if err != nil {
		log.Printf("%s fetch error: %v", name, err)
		return result
	}
	result.Fetched = len(items)

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		m.processItem(ctx, item, &result)
	}

	log.Printf("%s: %d new items, %d notifications sent", name, result.NewItems, result.Notified)
	return result
}

func (m *Monitor) processItem(ctx context.Context, item domain.Item, result *CycleResult) {
	processed, err := m.store.IsProcessed(item.ID)
	if err != nil {
		log.Printf("dedup check error for %s: %v", item.ID, err)
		return
	}
	if processed {
		return
	}

	// Too short to classify: record it so it is never reconsidered, with no
	// classification attached.
	if len([]rune(item.Text)) < m.opts.MinTextLength {
		if err := m.store.MarkProcessed(item.ID, item.Source, item.Channel, item.Text, item.URL, ""); err != nil {
			log.Printf("mark processed error for %s: %v", item.ID, err)
		}
		return
	}

	classification := m.classifier.Classify(ctx, item.Text, item.Language, m.opts.IncludeDraft)

	payload := marshalClassification(classification, item.Location())
	if err := m.store.MarkProcessed(item.ID, item.Source, item.Channel, item.Text, item.URL, payload); err != nil {
		log.Printf("mark processed error for %s: %v", item.ID, err)
		return
	}
	result.NewItems++

	if m.dispatcher.MaybeSend(ctx, item, classification) {
		// The record was just written above, so a failure here is a bug.
		if err := m.store.MarkNotified(item.ID); err != nil {
			log.Printf("mark notified failed for %s: %v", item.ID, err)
			return
		}
		result.Notified++
		select {
		case <-time.After(m.opts.NotifyPause):
		case <-ctx.Done():
		}
	}
}

type storedClassification struct {
	IsRelevant bool   `json:"is_relevant"`
	IsQuestion bool   `json:"is_question"`
	Category   string `json:"category"`
	Urgency    string `json:"urgency"`
	Location   string `json:"location,omitempty"`
}

func marshalClassification(result domain.ClassificationResult, location string) string {
	payload, err := json.Marshal(storedClassification{
		IsRelevant: result.IsRelevant,
		IsQuestion: result.IsQuestion,
		Category:   result.Category,
		Urgency:    result.Urgency,
		Location:   location,
	})
	if err != nil {
		return ""
	}
	return string(payload)
}
