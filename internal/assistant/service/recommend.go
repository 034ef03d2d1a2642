package service

import (
	"context"
	"fmt"
	"strings"

	"libripal/internal/assistant/models"
)

const recommendPrompt = `Based on the user's request: %q

Suggest 5 well-regarded books that would be valuable for a library reader.
Focus on real, popular books in the requested area, or in computer science,
engineering, and mathematics when no area is given.

Format each recommendation as:
Title: [Book Title]
Author: [Author Name]
Reason: [Why this book is recommended]`

// Recommendation is one suggested title from the model.
type Recommendation struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Reason string `json:"reason"`
}

func (s *Service) answerRecommendations(ctx context.Context, analysis models.Analysis, message string) models.ChatResponse {
	recommendations := s.recommend(ctx, message)
	if len(recommendations) == 0 {
		// The model came back empty; a catalog search on the topic still
		// gives the patron something to browse.
		topic := analysis.ExtractedInfo.Topic
		if topic == "" {
			topic = message
		}
		return s.answerSearch(ctx, analysis, topic)
	}

	return models.ChatResponse{
		Type:        "recommendations",
		Message:     analysis.ResponseSuggestion,
		Data:        recommendations,
		Suggestions: []string{"Search similar books", "Check my borrowed books"},
	}
}

func (s *Service) recommend(ctx context.Context, query string) []Recommendation {
	raw, err := s.llm.Complete(ctx, fmt.Sprintf(recommendPrompt, query))
	if err != nil {
		s.logger.WarnContext(ctx, "recommendation request failed", "error", err)
		return nil
	}
	return parseRecommendations(raw)
}

// parseRecommendations reads the Title/Author/Reason line format, skipping
// anything the model wrapped around it.
func parseRecommendations(raw string) []Recommendation {
	var (
		result  []Recommendation
		current Recommendation
	)

	flush := func() {
		if current.Title != "" {
			result = append(result, current)
		}
		current = Recommendation{}
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		switch {
		case strings.HasPrefix(line, "Title:"):
			flush()
			current.Title = strings.TrimSpace(strings.TrimPrefix(line, "Title:"))
		case strings.HasPrefix(line, "Author:"):
			current.Author = strings.TrimSpace(strings.TrimPrefix(line, "Author:"))
		case strings.HasPrefix(line, "Reason:"):
			current.Reason = strings.TrimSpace(strings.TrimPrefix(line, "Reason:"))
		}
	}
	flush()
	return result
}
