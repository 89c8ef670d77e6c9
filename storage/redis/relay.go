package redis

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"ridebook/pkg/live"
	"ridebook/pkg/logger"
)

const liveChannel = "ridebook:live"

// Relay carries live events between instances. Publish goes to Redis; Run
// feeds everything received from Redis into the local hub, including this
// instance's own events.
type Relay struct {
	client *redis.Client
	hub    *live.Hub
	log    logger.ILogger
}

func NewRelay(client *redis.Client, hub *live.Hub, log logger.ILogger) *Relay {
	return &Relay{client: client, hub: hub, log: log}
}

func (r *Relay) Publish(ctx context.Context, evt live.Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, liveChannel, body).Err()
}

// Run blocks until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, liveChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		r.log.Error("live relay subscribe failed", logger.Error(err))
		return err
	}
	r.log.Info("live relay started", logger.String("channel", liveChannel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var evt live.Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				r.log.Warning("dropping malformed live event", logger.Error(err))
				continue
			}
			_ = r.hub.Publish(ctx, evt)
		}
	}
}
