package repository

import (
	"context"
	"fmt"
	"time"

	"leasemarket/internal/config"
	"leasemarket/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisResourceLocker serializes lease operations per resource across processes.
type RedisResourceLocker struct {
	client *redis.Client
	prefix string
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisResourceLocker(client *redis.Client, prefix string) *RedisResourceLocker {
	if prefix == "" {
		prefix = "lease_lock"
	}
	return &RedisResourceLocker{client: client, prefix: prefix}
}

func (l *RedisResourceLocker) key(resourceID int64) string {
	return fmt.Sprintf("%s:resource:%d", l.prefix, resourceID)
}

func (l *RedisResourceLocker) Acquire(ctx context.Context, resourceID int64, ttl time.Duration) (func(context.Context) error, error) {
	if l.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	key := l.key(resourceID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock in redis: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("resource %d: %w", resourceID, domain.ErrLocked)
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("failed to release lock in redis: %w", err)
		}
		return nil
	}
	return release, nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
