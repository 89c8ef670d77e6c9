// Package tasks moves push notifications off the request path through
// asynq.
package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"ridebook/pkg/models"
)

const (
	TypeNewRequest = "order:new_request"
	TypeStatus     = "notify:status"

	QueueNotifications = "notifications"
)

type NewRequestPayload struct {
	OrderID    string `json:"orderId"`
	ProviderID string `json:"providerId"`
}

type StatusPayload struct {
	UserID       string              `json:"userId"`
	Notification models.Notification `json:"notification"`
}

func NewNewRequestTask(orderID, providerID string) (*asynq.Task, error) {
	b, err := json.Marshal(NewRequestPayload{OrderID: orderID, ProviderID: providerID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeNewRequest, b), nil
}

func NewStatusTask(userID string, n models.Notification) (*asynq.Task, error) {
	b, err := json.Marshal(StatusPayload{UserID: userID, Notification: n})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeStatus, b), nil
}

// decode rejects a malformed payload without retrying it.
func decode(t *asynq.Task, v interface{}) error {
	if err := json.Unmarshal(t.Payload(), v); err != nil {
		return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return nil
}
