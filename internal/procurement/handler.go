package procurement

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/brightbooks-erp/brightbooks/internal/accounts"
	"github.com/brightbooks-erp/brightbooks/internal/entitystore"
	"github.com/brightbooks-erp/brightbooks/internal/shared"
)

// Handler exposes goods-receipt operations over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers purchase-order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}", h.Get)
	r.Post("/{id}/receipts", h.Receive)
}

type receiveRequest struct {
	Lines []ReceiptLine `json:"lines" validate:"required,min=1"`
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	po, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, entitystore.ErrNotFound) {
			shared.WriteError(w, http.StatusNotFound, shared.ErrNotFound)
			return
		}
		shared.LogAndWriteError(h.logger, w, "get purchase order", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, po)
}

func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	var req receiveRequest
	if err := shared.ReadJSON(r, &req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, err)
		return
	}
	sess, ok := shared.SessionFromContext(r.Context())
	if !ok {
		shared.WriteError(w, http.StatusUnauthorized, shared.ErrSessionRequired)
		return
	}

	result, err := h.service.Receive(r.Context(), chi.URLParam(r, "id"), req.Lines, sess)
	if err != nil {
		switch {
		case errors.Is(err, entitystore.ErrNotFound):
			shared.WriteError(w, http.StatusNotFound, shared.ErrNotFound)
		case errors.Is(err, accounts.ErrRoleUnresolved):
			shared.WriteError(w, http.StatusUnprocessableEntity, err)
		default:
			shared.LogAndWriteError(h.logger, w, "receive purchase order", err)
		}
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}
