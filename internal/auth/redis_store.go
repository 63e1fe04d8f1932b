package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nerrad567/edgelink-core/internal/infrastructure/config"
)

const redisDialTimeout = 5 * time.Second

// RedisStore keeps sessions in Redis so they survive a core restart and can
// be revoked from outside the process. Entries expire with the session.
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(rdb redis.Cmdable, keyPrefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: keyPrefix}
}

// DialRedis connects to Redis and verifies the connection with a ping.
func DialRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisDialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

// Put stores s with a TTL matching its expiry.
func (r *RedisStore) Put(ctx context.Context, s *Session) error {
	ttl := time.Until(s.ExpiresAt)
	if s.ExpiresAt.IsZero() {
		ttl = 0
	} else if ttl <= 0 {
		return fmt.Errorf("storing session %s: already expired", s.ID)
	}

	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := r.rdb.Set(ctx, r.key(s.ID), b, ttl).Err(); err != nil {
		return fmt.Errorf("storing session %s: %w", s.ID, err)
	}
	return nil
}

// Get returns the session or ErrSessionNotFound.
func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	b, err := r.rdb.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}

	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return &s, nil
}

// Revoke deletes a session.
func (r *RedisStore) Revoke(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("revoking session %s: %w", id, err)
	}
	return nil
}
