// Package classify routes item text to a language-specific strategy and
// produces a structured classification. English goes keyword pre-filter first
// with AI verification of hits; Russian/Ukrainian are morphologically rich
// ("виза" vs "визу/визой/визы"), so they go AI-first with keywords only as the
// failure fallback.
package classify

import (
	"context"
	"strings"

	"monitorbot/internal/config"
	"monitorbot/internal/domain"
)

// Extra prompt hint for the AI about implicit questions in Russian/Ukrainian
// chat messages: people describe their situation without "?" or question words.
const cyrillicExtraPrompt = `
IMPORTANT: In Russian/Ukrainian texts, questions are often IMPLICIT: people describe
their situation without using "?" or explicit question words. Examples of implicit
questions: "ситуация такая, отказали в визе", "задержали на границе, не знаю что делать",
"продление закончилось, куда обратиться". Treat these as is_question=true when the
person clearly needs help/advice even without explicit question markers.
`

type languageSet struct {
	keywords        []string // cleanText form
	questionMarkers []string // lowercased, matched as substrings
	minMatches      int
}

func newLanguageSet(cfg config.LanguageMarkers) languageSet {
	set := languageSet{minMatches: cfg.MinKeywordMatches}
	if set.minMatches < 1 {
		set.minMatches = 1
	}
	for _, kw := range cfg.Keywords {
		set.keywords = append(set.keywords, cleanText(kw))
	}
	for _, qm := range cfg.QuestionMarkers {
		set.questionMarkers = append(set.questionMarkers, strings.ToLower(qm))
	}
	return set
}

// Classifier maps (text, declared language) to a ClassificationResult. It is
// stateless with respect to the store; the monitor persists what it returns.
type Classifier struct {
	verifier Verifier
	en       languageSet
	ru       languageSet
	uk       languageSet
}

// New builds a Classifier. verifier may be nil (no credential configured), in
// which case every path uses the keyword strategy.
func New(cfg config.ClassificationConfig, verifier Verifier) *Classifier {
	return &Classifier{
		verifier: verifier,
		en:       newLanguageSet(cfg.EN),
		ru:       newLanguageSet(cfg.RU),
		uk:       newLanguageSet(cfg.UK),
	}
}

// Classify routes on the declared language. Category and Urgency in the
// returned result are always non-empty.
func (c *Classifier) Classify(ctx context.Context, text, sourceLang string, includeDraft bool) domain.ClassificationResult {
	switch sourceLang {
	case "ru", "uk", "ru/uk", "uk/ru":
		return c.classifyCyrillic(ctx, text, sourceLang, includeDraft)
	default:
		return c.classifyEnglish(ctx, text, includeDraft)
	}
}

// classifyEnglish runs the keyword pre-filter and verifies hits with the AI.
// Verification failure keeps the keyword result.
func (c *Classifier) classifyEnglish(ctx context.Context, text string, includeDraft bool) domain.ClassificationResult {
	keywordResult := c.englishKeywordResult(text)

	if !keywordResult.IsRelevant || c.verifier == nil {
		return keywordResult
	}

	verified, err := c.verifier.Verify(ctx, text, "en", "", includeDraft)
	if err != nil || verified == nil {
		return keywordResult
	}
	verified.Method = domain.MethodHybrid
	return *verified
}

func (c *Classifier) englishKeywordResult(text string) domain.ClassificationResult {
	cleaned := cleanText(text)
	textLower := strings.ToLower(text)

	matches := countWordMatches(c.en.keywords, cleaned)
	hasQuestion := false
	for _, qm := range c.en.questionMarkers {
		if strings.Contains(textLower, qm) {
			hasQuestion = true
			break
		}
	}

	return domain.ClassificationResult{
		IsRelevant: matches >= c.en.minMatches,
		IsQuestion: hasQuestion,
		Category:   detectCategory(cleaned),
		Urgency:    "medium",
		Confidence: keywordConfidence(matches),
		Method:     domain.MethodKeywords,
	}
}

// classifyCyrillic goes AI-first; keyword presence is a poor relevance signal
// for inflected languages, so keywords only serve the failure fallback.
func (c *Classifier) classifyCyrillic(ctx context.Context, text, sourceLang string, includeDraft bool) domain.ClassificationResult {
	if c.verifier != nil {
		// Mixed codes ("uk/ru", "ru/uk") hint Russian; only plain "uk" is
		// labeled Ukrainian.
		langLabel := "Russian"
		if sourceLang == "uk" {
			langLabel = "Ukrainian"
		}
		verified, err := c.verifier.Verify(
			ctx, text,
			langLabel+" ("+sourceLang+")",
			cyrillicExtraPrompt,
			includeDraft,
		)
		if err == nil && verified != nil {
			verified.Method = domain.MethodAI
			return *verified
		}
	}

	return c.cyrillicKeywordResult(text, sourceLang)
}

func (c *Classifier) cyrillicKeywordResult(text, sourceLang string) domain.ClassificationResult {
	cleaned := cleanText(text)
	textLower := strings.ToLower(text)

	keywords := c.ru.keywords
	markers := c.ru.questionMarkers
	if strings.Contains(sourceLang, "uk") {
		keywords = append(append([]string{}, keywords...), c.uk.keywords...)
		markers = append(append([]string{}, markers...), c.uk.questionMarkers...)
	}

	matches := countWordMatches(keywords, cleaned)
	hasQuestion := false
	for _, m := range markers {
		if strings.Contains(textLower, m) {
			hasQuestion = true
			break
		}
	}

	category := "other"
	if matches >= 1 {
		category = detectCategory(cleaned)
	}

	return domain.ClassificationResult{
		IsRelevant: matches >= 1,
		IsQuestion: hasQuestion,
		Category:   category,
		Urgency:    "medium",
		Confidence: keywordConfidence(matches),
		Method:     domain.MethodKeywords,
	}
}

func keywordConfidence(matches int) float64 {
	confidence := float64(matches) * 0.2
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}
