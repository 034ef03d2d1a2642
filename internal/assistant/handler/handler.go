// Package handler exposes the chat assistant over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"

	"libripal/internal/assistant/models"
	dErrors "libripal/pkg/domain-errors"
	"libripal/pkg/platform/httputil"
	"libripal/pkg/requestcontext"
)

// Assistant is the service surface the handler needs.
type Assistant interface {
	Chat(ctx context.Context, message string) (models.ChatResponse, error)
	Suggestions(ctx context.Context) []string
}

// Handler handles assistant endpoints.
type Handler struct {
	logger    *slog.Logger
	assistant Assistant
}

// New creates a new assistant Handler.
func New(assistant Assistant, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, assistant: assistant}
}

// Register registers the assistant routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/chat", h.handleChat)
	r.Get("/api/chat/suggestions", h.handleSuggestions)
}

// ChatRequest is the payload for POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// Validate implements httputil.Validatable.
func (req *ChatRequest) Validate() error {
	if !govalidator.StringLength(req.Message, "1", "2000") {
		return dErrors.New(dErrors.CodeInvalidInput, "message must be between 1 and 2000 characters")
	}
	return nil
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ChatRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	resp, err := h.assistant.Chat(ctx, req.Message)
	if err != nil {
		h.logger.ErrorContext(ctx, "chat failed",
			"request_id", requestID,
			"error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// SuggestionsResponse is the JSON payload for GET /api/chat/suggestions.
type SuggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}

func (h *Handler) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, SuggestionsResponse{
		Suggestions: h.assistant.Suggestions(r.Context()),
	})
}
