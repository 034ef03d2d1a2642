package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"libripal/internal/assistant/models"
)

const fallbackSuggestion = "I'd be happy to help you with your library needs! " +
	"You can ask me to search for books, check due dates, renew books, or get recommendations."

const analysisPrompt = `You are LibriPal, an AI library assistant. Analyze this user message and determine the intent:

User message: %q
User context: Has borrowed %d books currently

Possible intents:
- book_search: user wants to find/search for books
- reservation: user wants to reserve/borrow a specific book
- renewal: user wants to renew borrowed books
- due_dates: user wants to check due dates or overdue status
- recommendations: user wants book recommendations
- fines: user wants to check fines/fees
- library_info: user wants library information (hours, rules, policies)
- help: general help or unclear intent

Extract relevant information and respond with JSON only:
{
  "intent": "detected_intent",
  "confidence": 0.9,
  "extracted_info": {
    "search_query": "extracted search terms if any",
    "book_title": "specific book title if mentioned",
    "topic": "subject area if mentioned"
  },
  "response_suggestion": "Friendly, helpful response to the user"
}`

// fallbackAnalysis is what every failure path degrades to. The assistant
// never errors at the caller; a broken model just means a help answer.
func fallbackAnalysis() models.Analysis {
	return models.Analysis{
		Intent:             models.IntentHelp,
		Confidence:         0.5,
		ResponseSuggestion: fallbackSuggestion,
	}
}

// analyze asks the model to classify the message. Model failure and
// unparseable output both degrade to the help intent.
func (s *Service) analyze(ctx context.Context, message string, borrowedCount int) models.Analysis {
	raw, err := s.llm.Complete(ctx, fmt.Sprintf(analysisPrompt, message, borrowedCount))
	if err != nil {
		s.logger.WarnContext(ctx, "intent analysis failed", "error", err)
		s.metrics.IncrementAnalysisFallback("llm_error")
		return fallbackAnalysis()
	}

	analysis, err := parseAnalysis(raw)
	if err != nil {
		s.logger.WarnContext(ctx, "intent response unparseable", "error", err)
		s.metrics.IncrementAnalysisFallback("parse_error")
		return fallbackAnalysis()
	}
	return analysis
}

// parseAnalysis decodes the model's JSON, tolerating markdown code fences
// around it. An unknown intent collapses to help.
func parseAnalysis(raw string) (models.Analysis, error) {
	cleaned := stripCodeFence(strings.TrimSpace(raw))

	var analysis models.Analysis
	if err := json.Unmarshal([]byte(cleaned), &analysis); err != nil {
		return models.Analysis{}, fmt.Errorf("decode analysis: %w", err)
	}

	if !analysis.Intent.Known() {
		analysis.Intent = models.IntentHelp
	}
	if analysis.ResponseSuggestion == "" {
		analysis.ResponseSuggestion = fallbackSuggestion
	}
	return analysis, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
