package auth

import (
	"log/slog"
	"net/http"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"

	dErrors "libripal/pkg/domain-errors"
	"libripal/pkg/platform/httputil"
	"libripal/pkg/requestcontext"
)

// Handler handles the token exchange endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a new auth Handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service}
}

// Register registers the auth routes with the chi router. The exchange is
// public; it is how a caller gets a token in the first place.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/auth/token", h.handleExchange)
}

// ExchangeRequest is the payload for POST /api/auth/token.
type ExchangeRequest struct {
	Credential string `json:"credential"`
}

// Validate implements httputil.Validatable.
func (req *ExchangeRequest) Validate() error {
	if !govalidator.StringLength(req.Credential, "1", "4096") {
		return dErrors.New(dErrors.CodeInvalidInput, "credential is required")
	}
	return nil
}

func (h *Handler) handleExchange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ExchangeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	session, err := h.service.Exchange(ctx, req.Credential)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}
