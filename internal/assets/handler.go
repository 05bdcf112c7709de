package assets

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/brightbooks-erp/brightbooks/internal/accounts"
	"github.com/brightbooks-erp/brightbooks/internal/entitystore"
	"github.com/brightbooks-erp/brightbooks/internal/shared"
)

// Handler exposes fixed-asset operations over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers asset routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/acquire", h.Acquire)
	r.Post("/depreciation/run", h.RunDepreciation)
}

type createAssetRequest struct {
	CompanyID                 string  `json:"company_id" validate:"required"`
	AssetCode                 string  `json:"asset_code"`
	AssetName                 string  `json:"asset_name" validate:"required"`
	AcquisitionDate           string  `json:"acquisition_date"`
	AcquisitionCost           float64 `json:"acquisition_cost" validate:"gt=0"`
	SalvageValue              float64 `json:"salvage_value" validate:"gte=0"`
	UsefulLifeYears           int     `json:"useful_life_years" validate:"gte=0"`
	DepreciationMethod        string  `json:"depreciation_method"`
	AssetAccountID            string  `json:"asset_account_id"`
	DepreciationExpenseAcctID string  `json:"depreciation_expense_account_id"`
	AccumulatedDepAcctID      string  `json:"accumulated_depreciation_account_id"`
}

type runDepreciationRequest struct {
	CompanyID string `json:"company_id" validate:"required"`
	Period    string `json:"period"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAssetRequest
	if err := shared.ReadJSON(r, &req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, err)
		return
	}
	asset, err := h.service.Create(r.Context(), CreateAssetInput{
		CompanyID:                 req.CompanyID,
		AssetCode:                 req.AssetCode,
		AssetName:                 req.AssetName,
		AcquisitionDate:           req.AcquisitionDate,
		AcquisitionCost:           req.AcquisitionCost,
		SalvageValue:              req.SalvageValue,
		UsefulLifeYears:           req.UsefulLifeYears,
		DepreciationMethod:        req.DepreciationMethod,
		AssetAccountID:            req.AssetAccountID,
		DepreciationExpenseAcctID: req.DepreciationExpenseAcctID,
		AccumulatedDepAcctID:      req.AccumulatedDepAcctID,
	})
	if err != nil {
		shared.LogAndWriteError(h.logger, w, "create asset", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, asset)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	asset, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, entitystore.ErrNotFound) {
			shared.WriteError(w, http.StatusNotFound, shared.ErrNotFound)
			return
		}
		shared.LogAndWriteError(h.logger, w, "get asset", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, asset)
}

func (h *Handler) Acquire(w http.ResponseWriter, r *http.Request) {
	sess, ok := shared.SessionFromContext(r.Context())
	if !ok {
		shared.WriteError(w, http.StatusUnauthorized, shared.ErrSessionRequired)
		return
	}
	entry, err := h.service.Acquire(r.Context(), chi.URLParam(r, "id"), sess)
	if err != nil {
		switch {
		case errors.Is(err, entitystore.ErrNotFound):
			shared.WriteError(w, http.StatusNotFound, shared.ErrNotFound)
		case errors.Is(err, accounts.ErrRoleUnresolved):
			shared.WriteError(w, http.StatusUnprocessableEntity, err)
		default:
			shared.LogAndWriteError(h.logger, w, "acquire asset", err)
		}
		return
	}
	shared.WriteJSON(w, http.StatusOK, entry)
}

func (h *Handler) RunDepreciation(w http.ResponseWriter, r *http.Request) {
	var req runDepreciationRequest
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

	period := time.Now().UTC()
	if req.Period != "" {
		parsed, err := time.Parse("2006-01", req.Period)
		if err != nil {
			shared.WriteError(w, http.StatusBadRequest, err)
			return
		}
		period = parsed
	}
	results, err := h.service.RunDepreciation(r.Context(), req.CompanyID, period, sess)
	if err != nil {
		shared.LogAndWriteError(h.logger, w, "run depreciation", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"results": results})
}
