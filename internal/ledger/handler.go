package ledger

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/brightbooks-erp/brightbooks/internal/shared"
)

// LockGuard refuses edits on records held by a foreign session.
type LockGuard interface {
	EnsureEditable(ctx context.Context, sess shared.Session, entityName, recordID string) error
}

// VersionPort snapshots a record before a lock-protected edit.
type VersionPort interface {
	Record(ctx context.Context, entityName, recordID string, data any, actor shared.Session) error
}

// Handler exposes the posting engine over HTTP.
type Handler struct {
	logger   *slog.Logger
	engine   *Engine
	locks    LockGuard
	versions VersionPort
	validate *validator.Validate
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, engine *Engine, locks LockGuard, versions VersionPort) *Handler {
	return &Handler{
		logger:   logger,
		engine:   engine,
		locks:    locks,
		versions: versions,
		validate: validator.New(),
	}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/entries", h.PostEntry)
	r.Get("/entries/{id}", h.GetEntry)
	r.Put("/entries/{id}", h.RepostEntry)
	r.Delete("/entries/{id}", h.DeleteEntry)
	r.Post("/entries/{id}/retry", h.RetryEntry)
}

func (h *Handler) PostEntry(w http.ResponseWriter, r *http.Request) {
	var req PostEntryRequest
	if err := shared.ReadJSON(r, &req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, err)
		return
	}
	sess, _ := shared.SessionFromContext(r.Context())
	entry, err := h.engine.Post(r.Context(), Draft{
		CompanyID:   req.CompanyID,
		EntryDate:   req.EntryDate,
		Reference:   req.Reference,
		Description: req.Description,
		SourceType:  SourceManual,
		PostedBy:    sess.UserID,
		LineItems:   toLineItems(req.LineItems),
	})
	if err != nil {
		h.writePostingError(w, "post entry", entry, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, entry)
}

func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.engine.GetEntry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			shared.WriteError(w, http.StatusNotFound, err)
			return
		}
		shared.LogAndWriteError(h.logger, w, "get entry", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, entry)
}

func (h *Handler) RepostEntry(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "id")
	var req RepostEntryRequest
	if err := shared.ReadJSON(r, &req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, err)
		return
	}
	sess, _ := shared.SessionFromContext(r.Context())
	if err := h.guardEdit(r.Context(), sess, entryID); err != nil {
		h.writeEditRefusal(w, err)
		return
	}
	entry, err := h.engine.Repost(r.Context(), entryID, toLineItems(req.LineItems))
	if err != nil {
		h.writePostingError(w, "repost entry", entry, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, entry)
}

func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "id")
	sess, _ := shared.SessionFromContext(r.Context())
	if err := h.guardEdit(r.Context(), sess, entryID); err != nil {
		h.writeEditRefusal(w, err)
		return
	}
	if err := h.engine.ReverseAndDelete(r.Context(), entryID); err != nil {
		h.writePostingError(w, "delete entry", nil, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) RetryEntry(w http.ResponseWriter, r *http.Request) {
	var req RetryRequest
	if err := shared.ReadJSON(r, &req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.engine.RetryPartial(r.Context(), chi.URLParam(r, "id"), req.AccountIDs); err != nil {
		h.writePostingError(w, "retry entry", nil, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"retried": true})
}

// guardEdit enforces the edit-session discipline: no foreign effective lock,
// and a version snapshot of the entry as it stood before the change.
func (h *Handler) guardEdit(ctx context.Context, sess shared.Session, entryID string) error {
	if h.locks != nil {
		if err := h.locks.EnsureEditable(ctx, sess, EntityJournalEntries, entryID); err != nil {
			return err
		}
	}
	if h.versions != nil {
		entry, err := h.engine.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if err := h.versions.Record(ctx, EntityJournalEntries, entryID, entry, sess); err != nil {
			// Version history is best effort; the edit proceeds.
			h.logger.Warn("version snapshot failed", slog.String("entry_id", entryID), slog.Any("error", err))
		}
	}
	return nil
}

func (h *Handler) writeEditRefusal(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrEntryNotFound) {
		shared.WriteError(w, http.StatusNotFound, err)
		return
	}
	shared.WriteError(w, http.StatusConflict, err)
}

// writePostingError maps the posting taxonomy onto HTTP. Partial failures
// return 207-style detail so callers can retry the listed accounts.
func (h *Handler) writePostingError(w http.ResponseWriter, action string, entry *JournalEntry, err error) {
	var imbalance *ImbalanceError
	var unknown *UnknownAccountError
	var partial *PartialPostingError
	switch {
	case errors.As(err, &imbalance):
		shared.WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":       imbalance.Error(),
			"sum_debits":  imbalance.SumDebits,
			"sum_credits": imbalance.SumCredits,
		})
	case errors.As(err, &unknown):
		shared.WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      unknown.Error(),
			"account_id": unknown.AccountID,
		})
	case errors.As(err, &partial):
		h.logger.Error(action, slog.Any("error", err))
		shared.WriteJSON(w, http.StatusBadGateway, map[string]any{
			"error":              partial.Error(),
			"entry_id":           partial.EntryID,
			"failed_account_ids": partial.FailedAccountIDs,
			"entry":              entry,
		})
	case errors.Is(err, ErrEntryNotFound):
		shared.WriteError(w, http.StatusNotFound, err)
	case errors.Is(err, ErrNotEditable):
		shared.WriteError(w, http.StatusConflict, err)
	case errors.Is(err, ErrCompanyRequired), errors.Is(err, ErrNoLines), errors.Is(err, ErrNegativeAmount):
		shared.WriteError(w, http.StatusBadRequest, err)
	default:
		h.logger.Error(action, slog.Any("error", err))
		shared.WriteError(w, http.StatusInternalServerError, err)
	}
}
