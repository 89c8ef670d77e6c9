package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"ridebook/config"
	"ridebook/pkg/logger"
)

// NewClient connects to Redis and checks the connection.
func NewClient(ctx context.Context, cfg config.Config, log logger.ILogger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Error("failed to connect Redis", logger.String("addr", cfg.RedisAddr()), logger.Error(err))
		_ = client.Close()
		return nil, err
	}

	log.Info("Redis connected")
	return client, nil
}

const lockKeyPrefix = "ridebook:lock:"

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type Locker struct {
	client *redis.Client
	token  string
}

func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: client, token: uuid.NewString()}
}

func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, lockKeyPrefix+key, l.token, ttl).Result()
}

func (l *Locker) Release(ctx context.Context, key string) error {
	return releaseScript.Run(ctx, l.client, []string{lockKeyPrefix + key}, l.token).Err()
}
