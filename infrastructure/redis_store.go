package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	webhookKeyPrefix = "creditledger:webhook:"
	lockKeyPrefix    = "creditledger:lock:"
)

// releaseLockScript deletes the lock only while it still carries the
// caller's token.
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore keeps short-lived coordination state in Redis: delivered
// webhook ids and worker locks.
type RedisStore struct {
	client *redis.Client
}

// NewRedisClient parses url, connects and pings the server
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.WithField("addr", opts.Addr).Info("Connected to Redis")
	return client, nil
}

// NewRedisStore wraps an existing client
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// MarkDelivered records a webhook delivery id. It returns false when the id
// was already recorded within ttl.
func (s *RedisStore) MarkDelivered(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, webhookKeyPrefix+deliveryID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record webhook delivery: %w", err)
	}
	return ok, nil
}

// ForgetDelivery removes a delivery id so a failed delivery can be retried
func (s *RedisStore) ForgetDelivery(ctx context.Context, deliveryID string) error {
	if err := s.client.Del(ctx, webhookKeyPrefix+deliveryID).Err(); err != nil {
		return fmt.Errorf("failed to forget webhook delivery: %w", err)
	}
	return nil
}

// AcquireLock takes a named lock for ttl and returns the token that owns it.
// acquired is false when another holder owns the lock.
func (s *RedisStore) AcquireLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, lockKeyPrefix+name, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// ReleaseLock drops a named lock if token still owns it. A lock that expired
// and was taken by another holder is left alone.
func (s *RedisStore) ReleaseLock(ctx context.Context, name, token string) error {
	released, err := releaseLockScript.Run(ctx, s.client, []string{lockKeyPrefix + name}, token).Int()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", name, err)
	}
	if released == 0 {
		log.WithField("lock", name).Warn("Lock was no longer held at release")
	}
	return nil
}

// Ping checks the connection
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
