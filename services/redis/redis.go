package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// How long a provider message SID is remembered for webhook deduplication.
const dedupeTTL = 24 * time.Hour

// RedisClient handles Redis operations
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient creates a new Redis client instance
func NewRedisClient(addr string, db int) (*RedisClient, error) {
	var client *redis.Client
	if addr != "localhost:6379" {
		opt, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("error parsing Redis URL: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   db,
		})
	}
	return &RedisClient{client: client}, nil
}

// InitRedis connects to Redis and verifies the connection
func InitRedis(addr string, db int) (*RedisClient, error) {
	rc, err := NewRedisClient(addr, db)
	if err != nil {
		return nil, err
	}
	if err := rc.client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("error pinging Redis: %w", err)
	}
	return rc, nil
}

// CloseRedis closes the underlying connection
func CloseRedis(rc *RedisClient) error {
	return rc.client.Close()
}

// FirstDelivery records a provider message SID and reports whether this is
// the first time it has been seen. Twilio retries webhook deliveries, so a
// false result means the inbound message was already processed and must be
// acknowledged without reprocessing.
func (rc *RedisClient) FirstDelivery(ctx context.Context, messageSID string) (bool, error) {
	key := fmt.Sprintf("sms:sid:%s", messageSID)
	ok, err := rc.client.SetNX(ctx, key, 1, dedupeTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record message SID %s: %w", messageSID, err)
	}
	return ok, nil
}
