// Package handler exposes patron account management over HTTP. Every route
// operates on the authenticated patron; there is no admin surface.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"

	"libripal/internal/patron/models"
	"libripal/internal/patron/service"
	dErrors "libripal/pkg/domain-errors"
	"libripal/pkg/platform/httputil"
	"libripal/pkg/requestcontext"
)

// Patrons is the service surface the handler needs.
type Patrons interface {
	Get(ctx context.Context) (*models.Patron, error)
	UpdateProfile(ctx context.Context, firstName, lastName string) (*models.Patron, error)
	UpdatePreferences(ctx context.Context, prefs models.Preferences) (*models.Patron, error)
	ExportData(ctx context.Context) (*service.Export, error)
	Deactivate(ctx context.Context) error
}

// Handler handles patron endpoints.
type Handler struct {
	logger  *slog.Logger
	patrons Patrons
}

// New creates a new patron Handler.
func New(patrons Patrons, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, patrons: patrons}
}

// Register registers the patron routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/patrons/me", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Put("/", h.handleUpdateProfile)
		r.Put("/preferences", h.handleUpdatePreferences)
		r.Get("/export", h.handleExport)
		r.Delete("/", h.handleDeactivate)
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	patron, err := h.patrons.Get(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, patron)
}

// UpdateProfileRequest is the payload for PUT /api/patrons/me.
type UpdateProfileRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Validate implements httputil.Validatable.
func (req *UpdateProfileRequest) Validate() error {
	if !govalidator.StringLength(req.FirstName, "1", "100") {
		return dErrors.New(dErrors.CodeInvalidInput, "first_name must be between 1 and 100 characters")
	}
	if req.LastName != "" && !govalidator.StringLength(req.LastName, "1", "100") {
		return dErrors.New(dErrors.CodeInvalidInput, "last_name must be at most 100 characters")
	}
	return nil
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[UpdateProfileRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	patron, err := h.patrons.UpdateProfile(ctx, req.FirstName, req.LastName)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to update profile",
			"request_id", requestID,
			"error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, patron)
}

// UpdatePreferencesRequest is the payload for PUT /api/patrons/me/preferences.
type UpdatePreferencesRequest struct {
	EmailReminders    bool  `json:"email_reminders"`
	TelegramReminders bool  `json:"telegram_reminders"`
	ReminderDays      []int `json:"reminder_days"`
}

// Validate implements httputil.Validatable.
func (req *UpdatePreferencesRequest) Validate() error {
	if len(req.ReminderDays) > 10 {
		return dErrors.New(dErrors.CodeInvalidInput, "at most 10 reminder days")
	}
	return nil
}

func (h *Handler) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[UpdatePreferencesRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	patron, err := h.patrons.UpdatePreferences(ctx, models.Preferences{
		EmailReminders:    req.EmailReminders,
		TelegramReminders: req.TelegramReminders,
		ReminderDays:      req.ReminderDays,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, patron)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	export, err := h.patrons.ExportData(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to export patron data",
			"request_id", requestcontext.RequestID(ctx),
			"error", err)
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="libripal-export.json"`)
	httputil.WriteJSON(w, http.StatusOK, export)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.patrons.Deactivate(ctx); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"deactivated": true})
}
