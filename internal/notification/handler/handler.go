// Package handler exposes notifications and telegram linking over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"

	"libripal/internal/notification/models"
	patronmodels "libripal/internal/patron/models"
	id "libripal/pkg/domain"
	dErrors "libripal/pkg/domain-errors"
	"libripal/pkg/platform/httputil"
	"libripal/pkg/requestcontext"
)

// Notifications is the service surface the handler needs.
type Notifications interface {
	List(ctx context.Context) ([]*models.Notification, error)
	MarkRead(ctx context.Context, notificationID id.NotificationID) error
	GenerateLinkCode(ctx context.Context) (string, time.Time, error)
	RedeemLinkCode(ctx context.Context, code string, chatID int64) (*patronmodels.Patron, error)
}

// Handler handles notification endpoints.
type Handler struct {
	logger        *slog.Logger
	notifications Notifications
}

// New creates a new notification Handler.
func New(notifications Notifications, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, notifications: notifications}
}

// Register registers the authenticated notification routes with the chi
// router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/notifications", h.handleList)
	r.Post("/api/notifications/{notificationID}/read", h.handleMarkRead)
	r.Post("/api/telegram/link", h.handleLink)
}

// RegisterPublic registers the redeem route, which the bot calls without a
// patron token; the link code itself proves who is linking.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/api/telegram/redeem", h.handleRedeem)
}

// ListResponse is the JSON payload for GET /api/notifications.
type ListResponse struct {
	Notifications []*models.Notification `json:"notifications"`
	Unread        int                    `json:"unread"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	notifications, err := h.notifications.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list notifications",
			"request_id", requestcontext.RequestID(ctx),
			"error", err)
		httputil.WriteError(w, err)
		return
	}

	unread := 0
	for _, n := range notifications {
		if !n.Read {
			unread++
		}
	}
	if notifications == nil {
		notifications = []*models.Notification{}
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Notifications: notifications, Unread: unread})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	notificationID, err := id.ParseNotificationID(chi.URLParam(r, "notificationID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid notification id"))
		return
	}

	if err := h.notifications.MarkRead(ctx, notificationID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"read": true})
}

// LinkResponse is the JSON payload for POST /api/telegram/link. The code is
// shown once and pasted into the bot's /link command.
type LinkResponse struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) handleLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	code, expiresAt, err := h.notifications.GenerateLinkCode(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate link code",
			"request_id", requestcontext.RequestID(ctx),
			"error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, LinkResponse{Code: code, ExpiresAt: expiresAt})
}

// RedeemRequest is the payload for POST /api/telegram/redeem.
type RedeemRequest struct {
	Code   string `json:"code"`
	ChatID int64  `json:"chat_id"`
}

// Validate implements httputil.Validatable.
func (req *RedeemRequest) Validate() error {
	if !govalidator.StringLength(req.Code, "8", "64") {
		return dErrors.New(dErrors.CodeInvalidInput, "code must be between 8 and 64 characters")
	}
	if req.ChatID == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "chat_id is required")
	}
	return nil
}

// RedeemResponse is the JSON payload for POST /api/telegram/redeem.
type RedeemResponse struct {
	Linked    bool   `json:"linked"`
	FirstName string `json:"first_name"`
}

func (h *Handler) handleRedeem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RedeemRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	patron, err := h.notifications.RedeemLinkCode(ctx, req.Code, req.ChatID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RedeemResponse{Linked: true, FirstName: patron.FirstName})
}
