package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"monitorbot/internal/domain"
)

const previewLimit = 500

var sourceEmoji = map[string]string{
	domain.SourceRedditPost:    "🔴",
	domain.SourceRedditComment: "💬",
	domain.SourceTelegram:      "✈️",
}

var urgencyEmoji = map[string]string{
	"high":   "🔥",
	"medium": "⚡",
	"low":    "💡",
}

var categoryLabels = map[string]string{
	"visa":        "🛂 Visa",
	"asylum":      "🛡 Asylum",
	"deportation": "⚠️ Deportation",
	"green_card":  "💚 Green Card",
	"work":        "💼 Work Permit",
	"family":      "👨‍👩‍👧 Family",
	"citizenship": "🇺🇸 Citizenship",
	"tps":         "🔄 TPS/DACA",
	"other":       "📋 Other",
}

// FormatMessage renders the notification text. Pure function of its inputs
// (now is passed in for the clock line), so the output snapshots cleanly.
func FormatMessage(item domain.Item, result domain.ClassificationResult, now time.Time) string {
	srcEmoji, ok := sourceEmoji[item.Source]
	if !ok {
		srcEmoji = "📝"
	}

	categoryLabel, ok := categoryLabels[result.Category]
	if !ok {
		categoryLabel = "📋 Other"
	}

	preview := item.Text
	if runes := []rune(preview); len(runes) > previewLimit {
		preview = string(runes[:previewLimit]) + "..."
	}

	locationLabel := ""
	switch location := item.Location(); {
	case location == "Chicago, IL":
		locationLabel = "📍 Chicago, IL ⭐"
	case location != "":
		locationLabel = "📍 " + location
	}

	groupLabel := item.Channel
	if item.Source == domain.SourceRedditComment && item.Extra["parent_title"] != "" {
		parent := item.Extra["parent_title"]
		if runes := []rune(parent); len(runes) > 50 {
			parent = string(runes[:50])
		}
		groupLabel += fmt.Sprintf(" (re: %s)", parent)
	}

	categoryLine := "📂 " + categoryLabel
	if locationLabel != "" {
		categoryLine += " | " + locationLabel
	}

	lines := []string{
		fmt.Sprintf("%s **%s** %s", srcEmoji, groupLabel, urgencyEmoji[result.Urgency]),
		categoryLine,
		"",
		"📝 " + preview,
		"",
	}

	if result.Summary != "" {
		lines = append(lines, fmt.Sprintf("📌 *%s*", result.Summary), "")
	}

	if result.DraftResponse != "" {
		lines = append(lines, "✏️ **Draft response:**", result.DraftResponse, "")
	}

	lines = append(lines,
		fmt.Sprintf("🔗 [Open source](%s)", item.URL),
		fmt.Sprintf("🕐 %s UTC", now.UTC().Format("15:04")),
	)

	return strings.Join(lines, "\n")
}

// FormatStats renders the daily digest message.
func FormatStats(stats domain.Stats) string {
	var b strings.Builder
	b.WriteString("📊 **Daily Stats**\n\n")
	fmt.Fprintf(&b, "Total processed: %d\n", stats.TotalProcessed)
	fmt.Fprintf(&b, "Total notified: %d\n", stats.TotalNotified)
	fmt.Fprintf(&b, "Today processed: %d\n", stats.TodayProcessed)
	b.WriteString("\nBy source:\n")
	for _, source := range sortedKeys(stats.BySource) {
		fmt.Fprintf(&b, "  - %s: %d\n", source, stats.BySource[source])
	}
	return b.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// stripMarkdown degrades a rich message to plain text by removing emphasis
// markers, mirroring the rich and plain variants line for line.
func stripMarkdown(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	return strings.ReplaceAll(s, "*", "")
}
