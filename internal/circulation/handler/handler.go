// Package handler exposes the lending desk over HTTP. Policy denials are 200
// responses with success=false; errors are reserved for infrastructure.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"

	"libripal/internal/circulation/models"
	"libripal/internal/circulation/service"
	id "libripal/pkg/domain"
	dErrors "libripal/pkg/domain-errors"
	"libripal/pkg/platform/httputil"
	"libripal/pkg/requestcontext"
)

// Circulation is the service surface the handler needs.
type Circulation interface {
	Issue(ctx context.Context, item models.ItemSnapshot) (models.Result, error)
	Renew(ctx context.Context, loanID id.LoanID) (models.Result, error)
	Return(ctx context.Context, loanID id.LoanID) (models.Result, error)
	ListOpenLoans(ctx context.Context) ([]models.LoanView, error)
	OutstandingFines(ctx context.Context) (service.FineSummary, error)
}

// Handler handles circulation endpoints.
type Handler struct {
	logger      *slog.Logger
	circulation Circulation
}

// New creates a new circulation Handler.
func New(circulation Circulation, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, circulation: circulation}
}

// Register registers the circulation routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/loans", func(r chi.Router) {
		r.Post("/", h.handleIssue)
		r.Get("/", h.handleList)
		r.Get("/fines", h.handleFines)
		r.Post("/{loanID}/renew", h.handleRenew)
		r.Post("/{loanID}/return", h.handleReturn)
	})
}

// IssueRequest is the payload for POST /api/loans. The snapshot comes from a
// prior catalog search; the item itself lives in the external catalog.
type IssueRequest struct {
	ItemID string `json:"item_id"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

// Validate implements httputil.Validatable.
func (req *IssueRequest) Validate() error {
	if !govalidator.StringLength(req.ItemID, "1", "256") {
		return dErrors.New(dErrors.CodeInvalidInput, "item_id must be between 1 and 256 characters")
	}
	if !govalidator.StringLength(req.Title, "1", "512") {
		return dErrors.New(dErrors.CodeInvalidInput, "title must be between 1 and 512 characters")
	}
	if req.Author == "" {
		req.Author = "Unknown"
	}
	return nil
}

// ListResponse is the JSON payload for GET /api/loans.
type ListResponse struct {
	Loans []LoanViewResponse `json:"loans"`
	Count int                `json:"count"`
}

// LoanViewResponse is one open loan with its derived display fields.
type LoanViewResponse struct {
	ID           string              `json:"id"`
	Item         models.ItemSnapshot `json:"item"`
	IssueDate    string              `json:"issue_date"`
	DueDate      string              `json:"due_date"`
	RenewalCount int                 `json:"renewal_count"`
	DaysUntilDue int                 `json:"days_until_due"`
	Urgency      models.Urgency      `json:"urgency"`
	CurrentFine  int64               `json:"current_fine"`
	CanRenew     bool                `json:"can_renew"`
}

// FinesResponse is the JSON payload for GET /api/loans/fines.
type FinesResponse struct {
	TotalFine    int64              `json:"total_fine"`
	OverdueLoans []LoanViewResponse `json:"overdue_loans"`
}

const dateLayout = "2006-01-02"

func toLoanViewResponse(view models.LoanView) LoanViewResponse {
	return LoanViewResponse{
		ID:           view.ID.String(),
		Item:         view.Item,
		IssueDate:    view.IssueDate.Format(dateLayout),
		DueDate:      view.DueDate.Format(dateLayout),
		RenewalCount: view.RenewalCount,
		DaysUntilDue: view.DaysUntilDue,
		Urgency:      view.Urgency,
		CurrentFine:  view.CurrentFine,
		CanRenew:     view.CanRenew,
	}
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[IssueRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.circulation.Issue(ctx, models.ItemSnapshot{
		ItemID: req.ItemID,
		Title:  req.Title,
		Author: req.Author,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue loan",
			"request_id", requestID,
			"error", err)
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusCreated
	if !result.Success {
		status = http.StatusOK
	}
	httputil.WriteJSON(w, status, result)
}

func (h *Handler) handleRenew(w http.ResponseWriter, r *http.Request) {
	h.handleLoanAction(w, r, "renew", h.circulation.Renew)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	h.handleLoanAction(w, r, "return", h.circulation.Return)
}

func (h *Handler) handleLoanAction(w http.ResponseWriter, r *http.Request, action string, fn func(ctx context.Context, loanID id.LoanID) (models.Result, error)) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	loanID, err := id.ParseLoanID(chi.URLParam(r, "loanID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid loan id"))
		return
	}

	result, err := fn(ctx, loanID)
	if err != nil {
		h.logger.ErrorContext(ctx, fmt.Sprintf("failed to %s loan", action),
			"request_id", requestID,
			"loan_id", loanID,
			"error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	views, err := h.circulation.ListOpenLoans(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list loans",
			"request_id", requestcontext.RequestID(ctx),
			"error", err)
		httputil.WriteError(w, err)
		return
	}

	resp := ListResponse{Loans: make([]LoanViewResponse, 0, len(views)), Count: len(views)}
	for _, view := range views {
		resp.Loans = append(resp.Loans, toLoanViewResponse(view))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleFines(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summary, err := h.circulation.OutstandingFines(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to compute fines",
			"request_id", requestcontext.RequestID(ctx),
			"error", err)
		httputil.WriteError(w, err)
		return
	}

	resp := FinesResponse{TotalFine: summary.TotalFine, OverdueLoans: make([]LoanViewResponse, 0, len(summary.OverdueLoans))}
	for _, view := range summary.OverdueLoans {
		resp.OverdueLoans = append(resp.OverdueLoans, toLoanViewResponse(view))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
