// ABOUTME: Redis backed credential store
// ABOUTME: Lets several visualizer instances share one override
package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisKey holds the override in Redis
const RedisKey = "visuallock:sc_client_id"

// RedisOptions configures the Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore keeps the override under RedisKey
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects and verifies the server with a ping
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisStore{client: client, key: RedisKey}, nil
}

// Load returns the stored override, "" when the key is absent
func (s *RedisStore) Load(ctx context.Context) (string, error) {
	v, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get credential: %w", err)
	}
	return v, nil
}

// Save stores the override without expiry
func (s *RedisStore) Save(ctx context.Context, value string) error {
	if err := s.client.Set(ctx, s.key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set credential: %w", err)
	}
	return nil
}

// Close releases the connection pool
func (s *RedisStore) Close() error {
	return s.client.Close()
}
