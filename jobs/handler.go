package jobs

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/brightbooks-erp/brightbooks/internal/shared"
)

// Handler exposes queue observability and manual job submission over HTTP.
type Handler struct {
	inspector *asynq.Inspector
	client    *Client
	logger    *slog.Logger
}

func NewHandler(inspector *asynq.Inspector, client *Client, logger *slog.Logger) *Handler {
	return &Handler{inspector: inspector, client: client, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
	r.Post("/depreciation", h.enqueueDepreciation)
}

type queueHealth struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	out := make([]queueHealth, 0, 2)
	for _, queue := range []string{QueueDefault, QueueMaintenance} {
		info, err := h.inspector.GetQueueInfo(queue)
		if err != nil {
			h.logger.Warn("queue health", slog.String("queue", queue), slog.Any("error", err))
			shared.WriteError(w, http.StatusServiceUnavailable, err)
			return
		}
		out = append(out, queueHealth{
			Queue:     info.Queue,
			Pending:   info.Pending,
			Active:    info.Active,
			Scheduled: info.Scheduled,
			Retry:     info.Retry,
		})
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"queues": out})
}

type enqueueDepreciationRequest struct {
	CompanyID string `json:"company_id"`
	Period    string `json:"period"`
}

// enqueueDepreciation submits a depreciation batch to the queue instead of
// running it inline. Useful for re-running a period out of schedule.
func (h *Handler) enqueueDepreciation(w http.ResponseWriter, r *http.Request) {
	if _, ok := shared.SessionFromContext(r.Context()); !ok {
		shared.WriteError(w, http.StatusUnauthorized, shared.ErrSessionRequired)
		return
	}
	var req enqueueDepreciationRequest
	if err := shared.ReadJSON(r, &req); err != nil {
		shared.WriteError(w, http.StatusBadRequest, err)
		return
	}
	if req.Period != "" {
		if _, err := time.Parse("2006-01", req.Period); err != nil {
			shared.WriteError(w, http.StatusBadRequest, err)
			return
		}
	}
	info, err := h.client.EnqueueDepreciationRun(r.Context(), DepreciationRunPayload{
		CompanyID:    req.CompanyID,
		Period:       req.Period,
		ScheduledFor: time.Now().UTC(),
	})
	if err != nil {
		shared.LogAndWriteError(h.logger, w, "enqueue depreciation", err)
		return
	}
	shared.WriteJSON(w, http.StatusAccepted, map[string]string{
		"task_id": info.ID,
		"queue":   info.Queue,
	})
}
