package clientmanager

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPresenceStore is the optional cross-instance presence guard
// (SPEC_FULL §4.8), grounded directly on the teacher's
// internal/cluster.RedisPresenceStore: short-TTL keys upserted by the
// owning instance, re-keyed from slave id to user id.
type RedisPresenceStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPresenceStore connects to redisURL and pings it once so
// misconfiguration fails fast at startup rather than on first claim.
func NewRedisPresenceStore(redisURL string, ttl time.Duration) (*RedisPresenceStore, error) {
	url := strings.TrimSpace(redisURL)
	if url == "" {
		return nil, fmt.Errorf("clientmanager: redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("clientmanager: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clientmanager: redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &RedisPresenceStore{client: client, ttl: ttl}, nil
}

func presenceKey(userID string) string {
	return fmt.Sprintf("agentbridge:presence:%s", userID)
}

// TryClaim reads the presence key and, unless another instance owns
// it, sets it to instanceID with the store's TTL: it succeeds if no
// other instance currently owns the user, or if this instance already
// does (idempotent re-claim when GetOrConnect starts a replacement
// actor). The read and the write are two separate commands, not one
// atomic set-if-absent.
func (s *RedisPresenceStore) TryClaim(ctx context.Context, userID, instanceID string) (bool, error) {
	key := presenceKey(userID)
	existing, err := s.client.Get(ctx, key).Result()
	if err != nil && err != redis.Nil {
		return false, err
	}
	if err == nil && existing != instanceID {
		return false, nil
	}
	if err := s.client.Set(ctx, key, instanceID, s.ttl).Err(); err != nil {
		return false, err
	}
	return true, nil
}

// Release deletes the presence key, best-effort.
func (s *RedisPresenceStore) Release(ctx context.Context, userID string) error {
	return s.client.Del(ctx, presenceKey(userID)).Err()
}

// Close closes the underlying Redis connection.
func (s *RedisPresenceStore) Close() error {
	return s.client.Close()
}
