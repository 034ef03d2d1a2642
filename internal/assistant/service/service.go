// Package service implements the chat assistant: the model classifies the
// message into an intent and the service routes it to the catalog, the loan
// ledger, or canned library answers.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"libripal/internal/assistant/llm"
	"libripal/internal/assistant/metrics"
	"libripal/internal/assistant/models"
	catalogmodels "libripal/internal/catalog/models"
	circmodels "libripal/internal/circulation/models"
	circservice "libripal/internal/circulation/service"
)

const (
	searchLimit      = 10
	reservationLimit = 3

	libraryHours = "Library hours: Monday-Friday 9:00 AM - 6:00 PM, " +
		"Saturday 10:00 AM - 4:00 PM, Sunday: Closed"

	helpMessage = `Hi! I'm LibriPal, your library assistant. I can help you with:

- Search for books: "find books on machine learning"
- Borrow books: "I want to borrow Clean Code"
- Renew books: "renew my books" or "extend due dates"
- Check due dates: "when are my books due?"
- Get recommendations: "recommend books like Design Patterns"
- Check fines: "show my fines"
- Library info: "what are the library hours?"

Just ask me naturally!`
)

// Catalog is the search surface the assistant needs.
type Catalog interface {
	Search(ctx context.Context, query string, limit int) []catalogmodels.Item
}

// Circulation is the loan surface the assistant needs.
type Circulation interface {
	ListOpenLoans(ctx context.Context) ([]circmodels.LoanView, error)
	OutstandingFines(ctx context.Context) (circservice.FineSummary, error)
}

// Service answers chat messages.
type Service struct {
	llm         llm.LLM
	catalog     Catalog
	circulation Circulation
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// Option configures the service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the assistant metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New builds the assistant over a model, the catalog, and the loan ledger.
func New(model llm.LLM, catalog Catalog, circulation Circulation, opts ...Option) *Service {
	s := &Service{
		llm:         model,
		catalog:     catalog,
		circulation: circulation,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Chat answers one message from the authenticated patron. Model trouble
// degrades to the help answer; only the loan store can produce an error.
func (s *Service) Chat(ctx context.Context, message string) (models.ChatResponse, error) {
	openLoans, err := s.circulation.ListOpenLoans(ctx)
	if err != nil {
		return models.ChatResponse{}, err
	}

	analysis := s.analyze(ctx, message, len(openLoans))
	s.metrics.IncrementChat(string(analysis.Intent))

	switch analysis.Intent {
	case models.IntentBookSearch:
		return s.answerSearch(ctx, analysis, message), nil
	case models.IntentReservation:
		return s.answerReservation(ctx, analysis), nil
	case models.IntentRenewal:
		return models.ChatResponse{
			Type:        "borrowed_books",
			Message:     "Here are your currently borrowed books:",
			Data:        openLoans,
			Suggestions: []string{"Renew a book", "Check due dates", "View fines"},
		}, nil
	case models.IntentDueDates:
		return answerDueDates(openLoans), nil
	case models.IntentRecommendations:
		return s.answerRecommendations(ctx, analysis, message), nil
	case models.IntentFines:
		summary, err := s.circulation.OutstandingFines(ctx)
		if err != nil {
			return models.ChatResponse{}, err
		}
		return models.ChatResponse{
			Type:        "fines",
			Message:     fmt.Sprintf("Your total outstanding fine: %d.", summary.TotalFine),
			Data:        summary,
			Suggestions: []string{"View overdue books", "Renew books"},
		}, nil
	case models.IntentLibraryInfo:
		return models.ChatResponse{
			Type:        "library_info",
			Message:     libraryHours,
			Suggestions: []string{"Check library rules", "Contact support"},
		}, nil
	default:
		return models.ChatResponse{
			Type:    "help",
			Message: helpMessage,
			Suggestions: []string{
				"Search for books",
				"Check my borrowed books",
				"Get book recommendations",
				"View library hours",
				"Check my fines",
			},
		}, nil
	}
}

func (s *Service) answerSearch(ctx context.Context, analysis models.Analysis, message string) models.ChatResponse {
	query := analysis.ExtractedInfo.SearchQuery
	if query == "" {
		query = message
	}
	items := s.catalog.Search(ctx, query, searchLimit)
	return models.ChatResponse{
		Type:        "book_search",
		Message:     fmt.Sprintf("Found %d books matching %q:", len(items), query),
		Data:        items,
		Suggestions: []string{"Borrow a book", "Get recommendations", "Check due dates"},
	}
}

func (s *Service) answerReservation(ctx context.Context, analysis models.Analysis) models.ChatResponse {
	title := analysis.ExtractedInfo.BookTitle
	if title == "" {
		return models.ChatResponse{
			Type: "reservation_help",
			Message: "Please specify which book you'd like to borrow. " +
				`You can say something like "I want to borrow Clean Code" or search for books first.`,
			Suggestions: []string{"Search for books", "Check my borrowed books"},
		}
	}
	items := s.catalog.Search(ctx, title, reservationLimit)
	return models.ChatResponse{
		Type:    "book_search",
		Message: fmt.Sprintf("Here are books matching %q. Pick one to borrow:", title),
		Data:    items,
	}
}

func answerDueDates(openLoans []circmodels.LoanView) models.ChatResponse {
	var dueSoon []circmodels.LoanView
	for _, loan := range openLoans {
		if loan.Urgency != circmodels.UrgencyNormal {
			dueSoon = append(dueSoon, loan)
		}
	}

	if len(dueSoon) > 0 {
		return models.ChatResponse{
			Type:        "due_dates",
			Message:     fmt.Sprintf("You have %d books due soon or overdue:", len(dueSoon)),
			Data:        dueSoon,
			Suggestions: []string{"Renew books", "View all borrowed books"},
		}
	}
	return models.ChatResponse{
		Type:        "due_dates",
		Message:     "Great! You don't have any books due soon. Here are all your borrowed books:",
		Data:        openLoans,
		Suggestions: []string{"Search for more books", "Get recommendations"},
	}
}

// Suggestions returns starter prompts, weighted by whether the patron has
// anything checked out.
func (s *Service) Suggestions(ctx context.Context) []string {
	suggestions := []string{
		"Search for new books",
		"Get book recommendations",
		"Check library hours",
	}

	openLoans, err := s.circulation.ListOpenLoans(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to personalize suggestions", "error", err)
		return suggestions
	}
	if len(openLoans) > 0 {
		suggestions = append([]string{"Check my due dates", "Renew my books"}, suggestions...)
	}
	return suggestions
}
