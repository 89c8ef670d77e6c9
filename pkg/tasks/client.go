package tasks

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"ridebook/pkg/logger"
	"ridebook/pkg/models"
)

const taskTimeout = 30 * time.Second

// Client enqueues notification tasks. Pushes are best effort, so tasks are
// never retried.
type Client struct {
	client *asynq.Client
	log    logger.ILogger
}

func NewClient(opt asynq.RedisConnOpt, log logger.ILogger) *Client {
	return &Client{client: asynq.NewClient(opt), log: log}
}

func (c *Client) EnqueueNewRequest(ctx context.Context, orderID, providerID string) error {
	task, err := NewNewRequestTask(orderID, providerID)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

func (c *Client) EnqueueStatus(ctx context.Context, userID string, n models.Notification) error {
	task, err := NewStatusTask(userID, n)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task) error {
	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueNotifications),
		asynq.MaxRetry(0),
		asynq.Timeout(taskTimeout),
	)
	if err != nil {
		c.log.Error("failed to enqueue task", logger.String("type", task.Type()), logger.Error(err))
		return err
	}
	c.log.Debug("task enqueued", logger.String("type", task.Type()), logger.String("task_id", info.ID))
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
