package domain

import "time"

// Classification methods.
const (
	MethodKeywords = "keywords"
	MethodAI       = "ai"
	MethodHybrid   = "hybrid"
)

// ClassificationResult is the classifier output for one item. Category and
// Urgency are always set (never empty), even when IsRelevant is false, so
// downstream consumers never special-case missing fields.
type ClassificationResult struct {
	IsRelevant    bool    `json:"is_relevant"`
	IsQuestion    bool    `json:"is_question"`
	Category      string  `json:"category"` // visa, asylum, deportation, green_card, work, family, citizenship, tps, other
	Urgency       string  `json:"urgency"`  // high, medium, low
	Summary       string  `json:"summary,omitempty"`
	DraftResponse string  `json:"draft_response,omitempty"`
	Confidence    float64 `json:"confidence"`
	Method        string  `json:"method"`
}

// ProcessedRecord is the durable dedup/audit row. At most one exists per item
// ID; the first write wins and is never overwritten.
type ProcessedRecord struct {
	ID             string
	Source         string
	GroupName      string
	TextPreview    string
	URL            string
	Classification string // serialized ClassificationResult, may be empty
	ProcessedAt    time.Time
	Notified       bool
}

// Stats is an aggregate snapshot of the store, for the stats command and the
// daily digest.
type Stats struct {
	TotalProcessed int
	TotalNotified  int
	TodayProcessed int
	BySource       map[string]int
}
