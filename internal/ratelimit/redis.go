package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares attempt counters across instances. Failure counts
// live under a window-scoped key, locks under a TTL key.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func failureKey(key string) string {
	return "login:failures:" + key
}

func lockKey(key string) string {
	return "login:lock:" + key
}

func (s *RedisStore) Check(ctx context.Context, key string) (Status, error) {
	ttl, err := s.client.TTL(ctx, lockKey(key)).Result()
	if err != nil {
		return Status{}, fmt.Errorf("redis ttl: %w", err)
	}
	if ttl > 0 {
		return Status{Locked: true, RetryAfter: ttl}, nil
	}
	return Status{}, nil
}

func (s *RedisStore) RecordFailure(ctx context.Context, key string) (Status, error) {
	count, err := s.client.Incr(ctx, failureKey(key)).Result()
	if err != nil {
		return Status{}, fmt.Errorf("redis incr: %w", err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, failureKey(key), Window).Err(); err != nil {
			return Status{}, fmt.Errorf("redis expire: %w", err)
		}
	}

	if count >= MaxFailures {
		if err := s.client.Set(ctx, lockKey(key), "1", LockDuration).Err(); err != nil {
			return Status{}, fmt.Errorf("redis set lock: %w", err)
		}
		return Status{Locked: true, RetryAfter: LockDuration}, nil
	}
	return Status{}, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, failureKey(key), lockKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// NewRedisClient dials and verifies the shared backend.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
