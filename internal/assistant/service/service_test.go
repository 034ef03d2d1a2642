package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"libripal/internal/assistant/llm/mocks"
	"libripal/internal/assistant/metrics"
	"libripal/internal/assistant/models"
	catalogmodels "libripal/internal/catalog/models"
	circmodels "libripal/internal/circulation/models"
	circservice "libripal/internal/circulation/service"
)

// =============================================================================
// Assistant Service Test Suite
// =============================================================================
// Justification for unit tests: intent routing and the degrade-to-help
// contract are deterministic given a mocked model; no real completion
// endpoint is involved.

var assistantTestMetrics = metrics.New()

type fakeCatalog struct {
	lastQuery string
	lastLimit int
	items     []catalogmodels.Item
}

func (f *fakeCatalog) Search(_ context.Context, query string, limit int) []catalogmodels.Item {
	f.lastQuery = query
	f.lastLimit = limit
	return f.items
}

type fakeCirculation struct {
	open    []circmodels.LoanView
	summary circservice.FineSummary
	err     error
}

func (f *fakeCirculation) ListOpenLoans(context.Context) ([]circmodels.LoanView, error) {
	return f.open, f.err
}

func (f *fakeCirculation) OutstandingFines(context.Context) (circservice.FineSummary, error) {
	return f.summary, f.err
}

type AssistantServiceSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	llm         *mocks.MockLLM
	catalog     *fakeCatalog
	circulation *fakeCirculation
	service     *Service
}

func TestAssistantServiceSuite(t *testing.T) {
	suite.Run(t, new(AssistantServiceSuite))
}

func (s *AssistantServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.llm = mocks.NewMockLLM(s.ctrl)
	s.catalog = &fakeCatalog{}
	s.circulation = &fakeCirculation{}
	s.service = New(s.llm, s.catalog, s.circulation,
		WithMetrics(assistantTestMetrics),
	)
}

func (s *AssistantServiceSuite) analysisReply(intent, extra string) string {
	return `{"intent": "` + intent + `", "confidence": 0.9, "extracted_info": {` + extra + `}, "response_suggestion": "Sure!"}`
}

// =============================================================================
// Intent routing
// =============================================================================

func (s *AssistantServiceSuite) TestBookSearchIntent() {
	s.catalog.items = []catalogmodels.Item{{Title: "Clean Code"}}
	s.llm.EXPECT().Complete(gomock.Any(), gomock.Any()).
		Return(s.analysisReply("book_search", `"search_query": "clean code"`), nil)

	resp, err := s.service.Chat(context.Background(), "find clean code")
	s.Require().NoError(err)

	s.Equal("book_search", resp.Type)
	s.Contains(resp.Message, `"clean code"`)
	s.Equal("clean code", s.catalog.lastQuery)
	s.Equal(searchLimit, s.catalog.lastLimit)
}

func (s *AssistantServiceSuite) TestBookSearchFallsBackToRawMessage() {
	s.llm.EXPECT().Complete(gomock.Any(), gomock.Any()).
		Return(s.analysisReply("book_search", ""), nil)

	_, err := s.service.Chat(context.Background(), "books about rivers")
	s.Require().NoError(err)
	s.Equal("books about rivers", s.catalog.lastQuery)
}

func (s *AssistantServiceSuite) TestReservationIntentWithTitle() {
	s.llm.EXPECT().Complete(gomock.Any(), gomock.Any()).
		Return(s.analysisReply("reservation", `"book_title": "Clean Code"`), nil)

	resp, err := s.service.Chat(context.Background(), "borrow clean code")
	s.Require().NoError(err)

	s.Equal("book_search", resp.Type)
	s.Equal("Clean Code", s.catalog.lastQuery)
	s.Equal(reservationLimit, s.catalog.lastLimit)
}

func (s *AssistantServiceSuite) TestReservationIntentWithoutTitle() {
	s.llm.EXPECT().Complete(gomock.Any(), gomock.Any()).
		Return(s.analysisReply("reservation", ""), nil)

	resp, err := s.service.Chat(context.Background(), "I want to borrow something")
	s.Require().NoError(err)
	s.Equal("reservation_help", resp.Type)
}

func (s *AssistantServiceSuite) TestDueDatesIntentSplitsUrgent() {
	s.circulation.open = []circmodels.LoanView{
		{Urgency: circmodels.UrgencyNormal},
		{Urgency: circmodels.UrgencyOverdue},
		{Urgency: circmodels.UrgencyDueSoon},
	}
	s.llm.EXPECT().Complete(gomock.Any(), gomock.Any()).
		Return(s.analysisReply("due_dates", ""), nil)

	resp, err := s.service.Chat(context.Background(), "when are my books due")
	s.Require().NoError(err)

	s.Equal("due_dates", resp.Type)
	s.Contains(resp.Message, "2 books due soon or overdue")
}

func (s *AssistantServiceSuite) TestFinesIntent() {
	s.circulation.summary = circservice.FineSummary{TotalFine: 250}
	s.llm.EXPECT().Complete(gomock.Any(), gomock.Any()).
		Return(s.analysisReply("fines", ""), nil)

	resp, err := s.service.Chat(context.Background(), "show my fines")
	s.Require().NoError(err)

	s.Equal("fines", resp.Type)
	s.Contains(resp.Message, "250")
}

func (s *AssistantServiceSuite) TestRecommendationsIntent() {
	s.llm.EXPECT().Complete(gomock.Any(), gomock.Any()).
		Return(s.analysisReply("recommendations", ""), nil)
	s.llm.EXPECT().Complete(gomock.Any(), gomock.Any()).
		Return("Title: SICP\nAuthor: Abelson\nReason: Foundational.", nil)

	resp, err := s.service.Chat(context.Background(), "recommend me something")
	s.Require().NoError(err)

	s.Equal("recommendations", resp.Type)
	recs, ok := resp.Data.([]Recommendation)
	s.Require().True(ok)
	s.Require().Len(recs, 1)
	s.Equal("SICP", recs[0].Title)
}

// =============================================================================
// Degradation
// =============================================================================

func (s *AssistantServiceSuite) TestModelFailureDegradesToHelp() {
	s.llm.EXPECT().Complete(gomock.Any(), gomock.Any()).
		Return("", errors.New("model unavailable"))

	resp, err := s.service.Chat(context.Background(), "anything")
	s.Require().NoError(err, "a broken model is never the caller's problem")
	s.Equal("help", resp.Type)
}

func (s *AssistantServiceSuite) TestGarbageModelOutputDegradesToHelp() {
	s.llm.EXPECT().Complete(gomock.Any(), gomock.Any()).
		Return("I think the user wants to search!", nil)

	resp, err := s.service.Chat(context.Background(), "anything")
	s.Require().NoError(err)
	s.Equal("help", resp.Type)
}

func (s *AssistantServiceSuite) TestUnknownIntentCollapsesToHelp() {
	s.llm.EXPECT().Complete(gomock.Any(), gomock.Any()).
		Return(s.analysisReply("world_domination", ""), nil)

	resp, err := s.service.Chat(context.Background(), "anything")
	s.Require().NoError(err)
	s.Equal("help", resp.Type)
}

func (s *AssistantServiceSuite) TestStorageFailurePropagates() {
	s.circulation.err = errors.New("connection refused")

	_, err := s.service.Chat(context.Background(), "anything")
	s.Require().Error(err)
}

// =============================================================================
// Suggestions
// =============================================================================

func (s *AssistantServiceSuite) TestSuggestionsWithoutLoans() {
	got := s.service.Suggestions(context.Background())
	s.Equal([]string{"Search for new books", "Get book recommendations", "Check library hours"}, got)
}

func (s *AssistantServiceSuite) TestSuggestionsWithLoans() {
	s.circulation.open = []circmodels.LoanView{{}}
	got := s.service.Suggestions(context.Background())
	s.Equal("Check my due dates", got[0])
}

// =============================================================================
// Parsing helpers
// =============================================================================

func TestParseAnalysis(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    models.Intent
		wantErr bool
	}{
		{name: "plain JSON", raw: `{"intent": "fines"}`, want: models.IntentFines},
		{name: "json code fence", raw: "```json\n{\"intent\": \"renewal\"}\n```", want: models.IntentRenewal},
		{name: "bare code fence", raw: "```\n{\"intent\": \"due_dates\"}\n```", want: models.IntentDueDates},
		{name: "unknown intent collapses", raw: `{"intent": "shrug"}`, want: models.IntentHelp},
		{name: "not JSON", raw: "nope", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAnalysis(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got.Intent)
		})
	}
}

func TestParseRecommendations(t *testing.T) {
	raw := `Here are some ideas:

Title: The Go Programming Language
Author: Donovan and Kernighan
Reason: The reference.

- Title: Clean Code
- Author: Robert Martin
- Reason: Readable style guide.`

	got := parseRecommendations(raw)
	assert.Len(t, got, 2)
	assert.Equal(t, "The Go Programming Language", got[0].Title)
	assert.Equal(t, "Robert Martin", got[1].Author)
}
