package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedis(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisFromClient wraps an existing client; tests use it with miniredis.
func NewRedisFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Ping issues a protocol-level PING and expects PONG back.
func (s *RedisStore) Ping(ctx context.Context) error {
	reply, err := s.client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("pinging redis: %w", err)
	}
	if reply != "PONG" {
		return fmt.Errorf("unexpected redis ping reply %q", reply)
	}
	return nil
}
