package jobs

import (
	"context"

	"github.com/hibiken/asynq"
)

// Client enqueues background jobs from the API process.
type Client struct {
	client *asynq.Client
}

// NewClient builds an enqueue-only client against the given redis.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueDepreciationRun submits a depreciation batch for processing.
func (c *Client) EnqueueDepreciationRun(ctx context.Context, payload DepreciationRunPayload) (*asynq.TaskInfo, error) {
	task, err := NewDepreciationRunTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

// EnqueueLockSweep submits an out-of-band expired-lock sweep.
func (c *Client) EnqueueLockSweep(ctx context.Context) (*asynq.TaskInfo, error) {
	return c.client.EnqueueContext(ctx, NewLockSweepTask())
}

// EnqueueLedgerRecover submits an out-of-band posting recovery sweep.
func (c *Client) EnqueueLedgerRecover(ctx context.Context) (*asynq.TaskInfo, error) {
	return c.client.EnqueueContext(ctx, NewLedgerRecoverTask())
}

// Close releases the underlying redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}
