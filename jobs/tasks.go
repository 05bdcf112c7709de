package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/brightbooks-erp/brightbooks/internal/assets"
	"github.com/brightbooks-erp/brightbooks/internal/ledger"
	"github.com/brightbooks-erp/brightbooks/internal/locks"
	"github.com/brightbooks-erp/brightbooks/internal/shared"
)

const (
	// QueueDefault carries business jobs such as depreciation batches.
	QueueDefault = "default"
	// QueueMaintenance carries housekeeping sweeps at a lower weight.
	QueueMaintenance = "maintenance"
	// TaskDepreciationRun posts the monthly straight-line depreciation batch.
	TaskDepreciationRun = "depreciation:run"
	// TaskLockSweep deactivates expired record locks.
	TaskLockSweep = "locks:sweep"
	// TaskLedgerRecover completes postings stranded by partial failures.
	TaskLedgerRecover = "ledger:recover"
)

// jobSession is the attribution stamped on entries produced by background
// jobs.
var jobSession = shared.Session{ID: "system", UserID: "system", UserName: "Scheduler"}

// DepreciationRunPayload scopes a depreciation run. An empty CompanyID fans
// out over every company with active assets.
type DepreciationRunPayload struct {
	CompanyID    string    `json:"company_id,omitempty"`
	Period       string    `json:"period,omitempty"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewDepreciationRunTask constructs the depreciation batch task.
func NewDepreciationRunTask(payload DepreciationRunPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDepreciationRun, body, asynq.Queue(QueueDefault)), nil
}

// NewLockSweepTask constructs the lock sweep task.
func NewLockSweepTask() *asynq.Task {
	return asynq.NewTask(TaskLockSweep, nil, asynq.Queue(QueueMaintenance))
}

// NewLedgerRecoverTask constructs the posting recovery task.
func NewLedgerRecoverTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerRecover, nil, asynq.Queue(QueueMaintenance))
}

// NewDepreciationHandler processes TaskDepreciationRun tasks.
func NewDepreciationHandler(service *assets.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload DepreciationRunPayload
		if len(t.Payload()) > 0 {
			if err := json.Unmarshal(t.Payload(), &payload); err != nil {
				return asynq.SkipRetry
			}
		}
		period := time.Now().UTC()
		if payload.Period != "" {
			parsed, err := time.Parse("2006-01", payload.Period)
			if err != nil {
				return asynq.SkipRetry
			}
			period = parsed
		}

		companies := []string{payload.CompanyID}
		if payload.CompanyID == "" {
			var err error
			companies, err = service.CompaniesWithAssets(ctx)
			if err != nil {
				return err
			}
		}
		for _, companyID := range companies {
			results, err := service.RunDepreciation(ctx, companyID, period, jobSession)
			if err != nil {
				return err
			}
			posted, skipped := 0, 0
			for _, r := range results {
				if r.Skipped {
					skipped++
				} else {
					posted++
				}
			}
			logger.Info("depreciation run finished",
				slog.String("company_id", companyID),
				slog.String("period", assets.PeriodKey(period)),
				slog.Int("posted", posted),
				slog.Int("skipped", skipped))
		}
		return nil
	}
}

// NewLockSweepHandler processes TaskLockSweep tasks.
func NewLockSweepHandler(manager *locks.Manager, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		swept, err := manager.SweepExpired(ctx)
		if err != nil {
			return err
		}
		if swept > 0 {
			logger.Info("expired locks swept", slog.Int("count", swept))
		}
		return nil
	}
}

// recoveryAge is how stale a pending posting intent must be before the sweep
// touches it; younger intents may still be mid-flight.
const recoveryAge = 15 * time.Minute

// NewLedgerRecoverHandler processes TaskLedgerRecover tasks.
func NewLedgerRecoverHandler(engine *ledger.Engine, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		results, err := engine.RecoverPending(ctx, recoveryAge)
		if err != nil {
			return err
		}
		for _, r := range results {
			logger.Info("posting intent recovered",
				slog.String("intent_id", r.IntentID),
				slog.String("entry_id", r.EntryID),
				slog.Int("applied", r.Applied),
				slog.Int("failed", r.Failed))
		}
		return nil
	}
}
