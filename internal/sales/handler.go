package sales

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/brightbooks-erp/brightbooks/internal/accounts"
	"github.com/brightbooks-erp/brightbooks/internal/shared"
)

// Handler exposes the sales-return producer over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/returns", h.Return)
}

type returnRequest struct {
	CompanyID string       `json:"company_id" validate:"required"`
	Reference string       `json:"reference"`
	Lines     []ReturnLine `json:"lines" validate:"required,min=1"`
}

func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
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

	result, err := h.service.Return(r.Context(), req.CompanyID, req.Reference, req.Lines, sess)
	if err != nil {
		if errors.Is(err, accounts.ErrRoleUnresolved) {
			shared.WriteError(w, http.StatusUnprocessableEntity, err)
			return
		}
		shared.LogAndWriteError(h.logger, w, "sales return", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}
