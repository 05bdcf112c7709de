package accounts

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/brightbooks-erp/brightbooks/internal/entitystore"
	"github.com/brightbooks-erp/brightbooks/internal/ledger"
	"github.com/brightbooks-erp/brightbooks/internal/shared"
)

// Handler exposes chart-of-accounts operations over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	resolver *Resolver
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, resolver *Resolver) *Handler {
	return &Handler{logger: logger, service: service, resolver: resolver, validate: validator.New()}
}

// MountRoutes registers account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/settings", h.SetMapping)
}

type createAccountRequest struct {
	CompanyID       string  `json:"company_id" validate:"required"`
	AccountCode     string  `json:"account_code" validate:"required"`
	AccountName     string  `json:"account_name" validate:"required"`
	AccountType     string  `json:"account_type" validate:"required"`
	AccountCategory string  `json:"account_category" validate:"required"`
	Currency        string  `json:"currency"`
	OpeningBalance  float64 `json:"opening_balance" validate:"gte=0"`
}

type setMappingRequest struct {
	CompanyID string `json:"company_id" validate:"required"`
	Role      string `json:"role" validate:"required"`
	AccountID string `json:"account_id" validate:"required"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := shared.ReadJSON(r, &req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, err)
		return
	}
	sess, _ := shared.SessionFromContext(r.Context())

	acc, err := h.service.Create(r.Context(), CreateAccountInput{
		CompanyID:       req.CompanyID,
		AccountCode:     req.AccountCode,
		AccountName:     req.AccountName,
		AccountType:     ledger.AccountType(req.AccountType),
		AccountCategory: req.AccountCategory,
		Currency:        req.Currency,
		OpeningBalance:  req.OpeningBalance,
	}, sess)
	if err != nil {
		// The account row may exist even when the opening posting failed.
		if acc != nil {
			h.logger.Error("opening balance posting failed",
				slog.String("account_id", acc.ID), slog.Any("error", err))
			shared.WriteJSON(w, http.StatusBadGateway, map[string]any{
				"account": acc,
				"error":   err.Error(),
			})
			return
		}
		if errors.Is(err, ErrRoleUnresolved) {
			shared.WriteError(w, http.StatusUnprocessableEntity, err)
			return
		}
		shared.LogAndWriteError(h.logger, w, "create account", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, acc)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	acc, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, entitystore.ErrNotFound) {
			shared.WriteError(w, http.StatusNotFound, shared.ErrNotFound)
			return
		}
		shared.LogAndWriteError(h.logger, w, "get account", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, acc)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	companyID := r.URL.Query().Get("company_id")
	if companyID == "" {
		shared.WriteError(w, http.StatusBadRequest, shared.ErrValidation)
		return
	}
	out, err := h.service.List(r.Context(), companyID)
	if err != nil {
		shared.LogAndWriteError(h.logger, w, "list accounts", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) SetMapping(w http.ResponseWriter, r *http.Request) {
	var req setMappingRequest
	if err := shared.ReadJSON(r, &req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.resolver.SetMapping(r.Context(), req.CompanyID, Role(req.Role), req.AccountID); err != nil {
		if errors.Is(err, entitystore.ErrNotFound) {
			shared.WriteError(w, http.StatusNotFound, shared.ErrNotFound)
			return
		}
		shared.LogAndWriteError(h.logger, w, "set account mapping", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"saved": true})
}
