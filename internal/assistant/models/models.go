// Package models defines the assistant's intent and response types.
package models

// Intent is the assistant's classification of a chat message.
type Intent string

const (
	IntentBookSearch      Intent = "book_search"
	IntentReservation     Intent = "reservation"
	IntentRenewal         Intent = "renewal"
	IntentDueDates        Intent = "due_dates"
	IntentRecommendations Intent = "recommendations"
	IntentFines           Intent = "fines"
	IntentLibraryInfo     Intent = "library_info"
	IntentHelp            Intent = "help"
)

// Known reports whether the intent is one the router handles. Anything else
// collapses to help.
func (i Intent) Known() bool {
	switch i {
	case IntentBookSearch, IntentReservation, IntentRenewal, IntentDueDates,
		IntentRecommendations, IntentFines, IntentLibraryInfo, IntentHelp:
		return true
	}
	return false
}

// ExtractedInfo is what the model pulled out of the message.
type ExtractedInfo struct {
	SearchQuery string `json:"search_query"`
	BookTitle   string `json:"book_title"`
	Topic       string `json:"topic"`
}

// Analysis is the model's structured reading of one chat message.
type Analysis struct {
	Intent             Intent        `json:"intent"`
	Confidence         float64       `json:"confidence"`
	ExtractedInfo      ExtractedInfo `json:"extracted_info"`
	ResponseSuggestion string        `json:"response_suggestion"`
}

// ChatResponse is the assistant's answer: a type tag the UI renders by, a
// human message, optional structured data, and follow-up suggestions.
type ChatResponse struct {
	Type        string   `json:"type"`
	Message     string   `json:"message"`
	Data        any      `json:"data,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}
