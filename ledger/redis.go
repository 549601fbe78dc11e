package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/storage/redis/v3"
)

// DefaultRedisKey is the key holding the ledger document.
const DefaultRedisKey = "catalog-watcher:notified_products"

// keyValue is the subset of a fiber storage used by the backend.
type keyValue interface {
	Get(key string) ([]byte, error)
	Set(key string, val []byte, exp time.Duration) error
}

// RedisBackend keeps the ledger as one Redis value.
type RedisBackend struct {
	store keyValue
	key   string
}

// NewRedisBackend connects to url. The redis storage pings on construction and
// panics if the server is unreachable; that panic is returned as an error.
func NewRedisBackend(url, key string) (backend *RedisBackend, err error) {
	if key == "" {
		key = DefaultRedisKey
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("connect to redis: %v", r)
		}
	}()
	return &RedisBackend{
		store: redis.New(redis.Config{URL: url}),
		key:   key,
	}, nil
}

// Read returns the stored document. Fiber storages return a nil value for missing keys.
func (r *RedisBackend) Read(_ context.Context) ([]byte, error) {
	data, err := r.store.Get(r.key)
	if err != nil {
		return nil, fmt.Errorf("read from redis: %w", err)
	}
	if data == nil {
		return nil, ErrNotExist
	}
	return data, nil
}

// Write stores the document without expiry.
func (r *RedisBackend) Write(_ context.Context, data []byte) error {
	if err := r.store.Set(r.key, data, 0); err != nil {
		return fmt.Errorf("write to redis: %w", err)
	}
	return nil
}
