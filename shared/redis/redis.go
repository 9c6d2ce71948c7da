package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fraud-advisor/backend/pkg/cache"

	"github.com/redis/go-redis/v9"
)

// Options configures the client
type Options struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisClient implements cache.Store on top of go-redis
type RedisClient struct {
	client *redis.Client
	prefix string
}

var _ cache.Store = (*RedisClient)(nil)

// NewRedisClient connects and verifies the server answers PING
func NewRedisClient(opts Options) (*RedisClient, error) {
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{client: client, prefix: opts.KeyPrefix}, nil
}

// NewFromClient wraps an existing go-redis client
func NewFromClient(client *redis.Client, prefix string) *RedisClient {
	return &RedisClient{client: client, prefix: prefix}
}

func (r *RedisClient) key(k string) string {
	return r.prefix + k
}

// Get returns cache.ErrMiss for absent keys
func (r *RedisClient) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cache.ErrMiss
	}
	return val, err
}

func (r *RedisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.key(key), value, ttl).Err()
}

func (r *RedisClient) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, r.key(key), value, ttl).Result()
}

func (r *RedisClient) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the connection pool
func (r *RedisClient) Close() error {
	return r.client.Close()
}
