// Package notify decides whether a classified item warrants a notification,
// enforces the rolling hourly rate budget, and pushes the formatted message to
// the first dispatch target that accepts it.
package notify

import (
	"context"
	"log"
	"time"

	"monitorbot/internal/domain"
)

// Target is one outbound notification channel. Send delivers rich-formatted
// text; SendPlain is the degraded mode used when the channel rejects rich
// formatting.
type Target interface {
	Name() string
	Send(ctx context.Context, text string) error
	SendPlain(ctx context.Context, text string) error
}

// RateCounter is the store capability the dispatcher reads for the rolling
// window. It never writes through this interface.
type RateCounter interface {
	CountNotificationsSince(since time.Time) (int, error)
}

// Actionable reports whether a classified item is eligible for dispatch.
// Broadcast channels carry no questions, so relevance alone is the bar there;
// everything else additionally needs question intent.
func Actionable(item domain.Item, result domain.ClassificationResult) bool {
	return result.IsRelevant && (result.IsQuestion || item.IsBroadcast())
}

// Dispatcher fans a notification out to the first accepting target, under the
// configured per-hour ceiling.
type Dispatcher struct {
	targets    []Target
	counter    RateCounter
	maxPerHour int
}

func NewDispatcher(targets []Target, counter RateCounter, maxPerHour int) *Dispatcher {
	return &Dispatcher{
		targets:    targets,
		counter:    counter,
		maxPerHour: maxPerHour,
	}
}

// HasTargets reports whether any dispatch channel is configured.
func (d *Dispatcher) HasTargets() bool {
	return len(d.targets) > 0
}

// MaybeSend sends at most one notification for the item and reports whether
// one went out. A false return is a normal outcome (not actionable, rate
// limit reached, or every target failed); the caller flips the notified flag
// only on true.
func (d *Dispatcher) MaybeSend(ctx context.Context, item domain.Item, result domain.ClassificationResult) bool {
	if !Actionable(item, result) {
		return false
	}

	count, err := d.counter.CountNotificationsSince(time.Now().UTC().Add(-time.Hour))
	if err != nil {
		log.Printf("notify rate count error: %v", err)
		return false
	}
	if count >= d.maxPerHour {
		log.Printf("notify rate limit reached (%d/%d per hour), skipping %s", count, d.maxPerHour, item.ID)
		return false
	}

	message := FormatMessage(item, result, time.Now().UTC())

	for _, target := range d.targets {
		if err := sendWithFallback(ctx, target, message); err != nil {
			log.Printf("notify %s send failed for %s: %v", target.Name(), item.ID, err)
			continue
		}
		log.Printf("notify sent target=%s source=%s channel=%s", target.Name(), item.Source, item.Channel)
		return true
	}
	return false
}

// SendTest pushes a synthetic notification through every configured target so
// operators can verify channel wiring. Bypasses the rate budget and never
// touches the store.
func (d *Dispatcher) SendTest(ctx context.Context) error {
	item := domain.Item{
		ID:      "test_notification",
		Source:  domain.SourceRedditPost,
		Channel: "r/test",
		Title:   "Test notification",
		Text:    "This is a test notification. If you can read this, the channel is wired correctly.",
		URL:     "https://example.com",
		Author:  "monitorbot",
	}
	result := domain.ClassificationResult{
		IsRelevant: true,
		IsQuestion: true,
		Category:   "other",
		Urgency:    "low",
		Summary:    "Connectivity check.",
		Confidence: 1.0,
		Method:     domain.MethodKeywords,
	}
	message := FormatMessage(item, result, time.Now().UTC())

	var lastErr error
	for _, target := range d.targets {
		if err := sendWithFallback(ctx, target, message); err != nil {
			lastErr = err
			continue
		}
		log.Printf("test notification delivered to %s", target.Name())
	}
	return lastErr
}

// SendDigest pushes an aggregate stats summary through the first target.
func (d *Dispatcher) SendDigest(ctx context.Context, stats domain.Stats) error {
	if len(d.targets) == 0 {
		return nil
	}
	return sendWithFallback(ctx, d.targets[0], FormatStats(stats))
}

// sendWithFallback tries the rich send, then retries exactly once in plain
// text. A second failure is final.
func sendWithFallback(ctx context.Context, target Target, message string) error {
	err := target.Send(ctx, message)
	if err == nil {
		return nil
	}
	log.Printf("notify %s rich send failed, retrying plain: %v", target.Name(), err)
	return target.SendPlain(ctx, stripMarkdown(message))
}
