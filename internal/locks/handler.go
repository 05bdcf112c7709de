package locks

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/brightbooks-erp/brightbooks/internal/shared"
)

// Handler exposes lock operations over HTTP. Every endpoint requires the
// session token header; the token is the caller's lock identity.
type Handler struct {
	logger   *slog.Logger
	manager  *Manager
	validate *validator.Validate
}

// NewHandler constructs the lock handler.
func NewHandler(logger *slog.Logger, manager *Manager) *Handler {
	return &Handler{logger: logger, manager: manager, validate: validator.New()}
}

// MountRoutes registers lock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/check", h.Check)
	r.Post("/acquire", h.Acquire)
	r.Post("/refresh", h.Refresh)
	r.Post("/release", h.Release)
}

type lockRequest struct {
	CompanyID  string `json:"company_id"`
	EntityName string `json:"entity_name" validate:"required"`
	RecordID   string `json:"record_id" validate:"required"`
}

func (h *Handler) readRequest(w http.ResponseWriter, r *http.Request) (lockRequest, shared.Session, bool) {
	var req lockRequest
	if err := shared.ReadJSON(r, &req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, err)
		return req, shared.Session{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, err)
		return req, shared.Session{}, false
	}
	sess, ok := shared.SessionFromContext(r.Context())
	if !ok {
		shared.WriteError(w, http.StatusUnauthorized, shared.ErrSessionRequired)
		return req, shared.Session{}, false
	}
	return req, sess, true
}

func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	req, sess, ok := h.readRequest(w, r)
	if !ok {
		return
	}
	status := h.manager.Check(r.Context(), sess, req.EntityName, req.RecordID)
	shared.WriteJSON(w, http.StatusOK, status)
}

func (h *Handler) Acquire(w http.ResponseWriter, r *http.Request) {
	req, sess, ok := h.readRequest(w, r)
	if !ok {
		return
	}
	result := h.manager.Acquire(r.Context(), sess, req.CompanyID, req.EntityName, req.RecordID)
	if result.Conflict != nil {
		shared.WriteJSON(w, http.StatusConflict, result)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"lock":                  result.Lock,
		"check_failed":          result.CheckFailed,
		"refresh_after_seconds": int(h.manager.RefreshInterval().Seconds()),
	})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	req, sess, ok := h.readRequest(w, r)
	if !ok {
		return
	}
	h.manager.Refresh(r.Context(), sess, req.EntityName, req.RecordID)
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"refreshed":             true,
		"refresh_after_seconds": int(h.manager.RefreshInterval().Seconds()),
	})
}

func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	req, sess, ok := h.readRequest(w, r)
	if !ok {
		return
	}
	h.manager.Release(r.Context(), sess, req.EntityName, req.RecordID)
	shared.WriteJSON(w, http.StatusOK, map[string]any{"released": true})
}
