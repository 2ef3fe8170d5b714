package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"monitorbot/internal/domain"
)

const promptTextLimit = 2000

// Verifier is the external AI verification capability. A nil Verifier means
// no credential is configured and every strategy falls back to keywords.
type Verifier interface {
	Verify(ctx context.Context, text, langHint, extraPrompt string, includeDraft bool) (*domain.ClassificationResult, error)
}

// AnthropicVerifier classifies text with the Anthropic Messages API.
type AnthropicVerifier struct {
	client anthropic.Client
	model  string
}

func NewAnthropicVerifier(apiKey, model string) *AnthropicVerifier {
	return &AnthropicVerifier{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// verifyResponse mirrors the JSON contract the prompt demands. Confidence is
// a pointer so an omitted value can default distinctly from 0.
type verifyResponse struct {
	IsRelevant    bool     `json:"is_relevant"`
	IsQuestion    bool     `json:"is_question"`
	Category      string   `json:"category"`
	Urgency       string   `json:"urgency"`
	Summary       string   `json:"summary"`
	Confidence    *float64 `json:"confidence"`
	DraftResponse string   `json:"draft_response"`
}

func (v *AnthropicVerifier) Verify(ctx context.Context, text, langHint, extraPrompt string, includeDraft bool) (*domain.ClassificationResult, error) {
	prompt := buildVerifyPrompt(text, langHint, extraPrompt, includeDraft)

	message, err := v.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(v.model),
		MaxTokens: 500,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		log.Printf("verify anthropic error: %v", err)
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			return parseVerifyResponse(block.Text)
		}
	}
	return nil, fmt.Errorf("no text content in Anthropic response")
}

func buildVerifyPrompt(text, langHint, extraPrompt string, includeDraft bool) string {
	// Rune slice, not bytes: Cyrillic text would otherwise be cut at half
	// the limit with a split rune at the boundary.
	if runes := []rune(text); len(runes) > promptTextLimit {
		text = string(runes[:promptTextLimit])
	}

	draftField := ""
	draftInstruction := ""
	if includeDraft {
		draftField = `, "draft_response": "helpful response in source language"`
		draftInstruction = `
Also generate a brief, helpful draft response (2-3 sentences) in the SAME language
as the original post. The response should:
- Be empathetic and professional
- Provide a brief helpful insight
- Subtly suggest consulting with an immigration attorney for their specific case
Include it in the "draft_response" field.
`
	}

	return fmt.Sprintf(`Analyze this social media post about potential US immigration topic.
Language hint: %s
%s
Post text: "%s"

Classify it and respond ONLY with valid JSON (no markdown, no backticks):
{
  "is_relevant": true/false (is this about US immigration/visa/legal status?),
  "is_question": true/false (is the person asking for help/advice/information?),
  "category": "visa|asylum|deportation|green_card|work|family|citizenship|tps|other",
  "urgency": "high|medium|low" (high = person in immediate danger/deadline, medium = needs help soon, low = general question),
  "summary": "one sentence summary in English",
  "confidence": 0.0-1.0%s
}
%s`, langHint, extraPrompt, text, draftField, draftInstruction)
}

// parseVerifyResponse tolerates code fences around the JSON but treats any
// other malformation as a hard failure so callers fall back to keywords.
func parseVerifyResponse(responseText string) (*domain.ClassificationResult, error) {
	responseText = strings.TrimSpace(responseText)
	responseText = strings.TrimPrefix(responseText, "```json")
	responseText = strings.TrimPrefix(responseText, "```")
	responseText = strings.TrimSuffix(responseText, "```")
	responseText = strings.TrimSpace(responseText)

	var parsed verifyResponse
	if err := json.Unmarshal([]byte(responseText), &parsed); err != nil {
		return nil, fmt.Errorf("parsing verify response: %w (response: %s)", err, responseText)
	}

	confidence := 0.5
	if parsed.Confidence != nil {
		confidence = *parsed.Confidence
	}
	result := &domain.ClassificationResult{
		IsRelevant:    parsed.IsRelevant,
		IsQuestion:    parsed.IsQuestion,
		Category:      parsed.Category,
		Urgency:       parsed.Urgency,
		Summary:       parsed.Summary,
		DraftResponse: parsed.DraftResponse,
		Confidence:    confidence,
		Method:        domain.MethodAI,
	}
	if result.Category == "" {
		result.Category = "other"
	}
	if result.Urgency == "" {
		result.Urgency = "medium"
	}
	return result, nil
}
