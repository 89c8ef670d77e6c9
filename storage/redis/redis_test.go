package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"ridebook/pkg/live"
	"ridebook/pkg/logger"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestLockerAcquireRelease(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	key := "test:" + uuid.NewString()
	a := NewLocker(client)
	b := NewLocker(client)

	ok, err := a.Acquire(ctx, key, time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	ok, err = b.Acquire(ctx, key, time.Minute)
	if err != nil || ok {
		t.Fatalf("second acquire should fail: ok=%v err=%v", ok, err)
	}

	// Only the holder may release.
	if err := b.Release(ctx, key); err != nil {
		t.Fatal(err)
	}
	if ok, _ := b.Acquire(ctx, key, time.Minute); ok {
		t.Fatal("foreign release must not free the lock")
	}

	if err := a.Release(ctx, key); err != nil {
		t.Fatal(err)
	}
	ok, err = b.Acquire(ctx, key, time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
	}
	_ = b.Release(ctx, key)
}

func TestRelayDeliversToHub(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	hub := live.NewHub(4)
	defer hub.Close()
	relay := NewRelay(client, hub, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = relay.Run(ctx) }()

	topic := live.OrderTopic(uuid.NewString())
	sub := hub.Subscribe(topic)
	defer sub.Close()

	deadline := time.After(3 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case evt := <-sub.C():
			if evt.Type != live.EventOrderUpdated {
				t.Fatalf("evt = %+v", evt)
			}
			return
		case <-tick.C:
			// The relay may not be subscribed yet; keep publishing.
			_ = relay.Publish(ctx, live.Event{Topic: topic, Type: live.EventOrderUpdated})
		case <-deadline:
			t.Fatal("event never relayed")
		}
	}
}
