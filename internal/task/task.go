package task

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/parley-hq/parley/internal/service"
	"go.uber.org/zap"
)

// Client enqueues background work onto the Redis-backed queue. It is
// the service layer's RecordingPipeline; enqueueing is fire-and-forget
// from the caller's point of view.
type Client struct {
	client *asynq.Client
}

var _ service.RecordingPipeline = (*Client)(nil)

func NewClient(redisURL string) (*Client, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Client{client: asynq.NewClient(opt)}, nil
}

func (c *Client) EnqueueProcessRecording(ctx context.Context, callID uuid.UUID, recordingURL string) error {
	t, err := NewProcessRecordingTask(callID, recordingURL)
	if err != nil {
		return err
	}
	if _, err := c.client.EnqueueContext(ctx, t); err != nil {
		return fmt.Errorf("enqueue %s: %w", TypeProcessRecording, err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// NewServer builds the worker that drains the queue. It runs inside the
// same process as the HTTP server; a dedicated worker deployment can
// run it alone.
func NewServer(redisURL string, concurrency int, logger *zap.Logger) (*asynq.Server, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if concurrency <= 0 {
		concurrency = 10
	}

	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, t *asynq.Task, err error) {
			logger.Warn("task failed",
				zap.String("type", t.Type()),
				zap.Error(err),
			)
		}),
	}), nil
}
