package store

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// RedisSnapshotter is an optional alternative to FileSnapshotter for
// operators who prefer to keep proxy state next to other Redis-backed
// infrastructure. The process remains the sole writer — this does not
// make the core horizontally scalable (spec §1 non-goal), it only
// relocates where the single writer's snapshot lives.
type RedisSnapshotter struct {
	client    *goredis.Client
	keyPrefix string
	timeout   time.Duration
	group     singleflight.Group
}

// RedisOptions configures a RedisSnapshotter.
type RedisOptions struct {
	URL       string
	KeyPrefix string
	Timeout   time.Duration
}

// NewRedisSnapshotter connects to Redis using URL (e.g. "redis://localhost:6379").
func NewRedisSnapshotter(opts RedisOptions) (*RedisSnapshotter, error) {
	parsed, err := goredis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 3 * time.Second
	}

	return &RedisSnapshotter{
		client:    goredis.NewClient(parsed),
		keyPrefix: opts.KeyPrefix,
		timeout:   timeout,
	}, nil
}

func (r *RedisSnapshotter) fullKey(key string) string {
	return r.keyPrefix + key
}

// Ping checks connectivity; cmd/proxyd uses it at startup to decide
// whether to fall back to the file snapshotter.
func (r *RedisSnapshotter) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

// Save writes data as a single Redis string value.
func (r *RedisSnapshotter) Save(ctx context.Context, key string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.client.Set(ctx, r.fullKey(key), data, 0).Err()
}

// Load reads the named blob, coalescing concurrent reloads.
func (r *RedisSnapshotter) Load(ctx context.Context, key string) ([]byte, error) {
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		data, err := r.client.Get(ctx, r.fullKey(key)).Bytes()
		if err == goredis.Nil {
			return nil, ErrNotFound
		}
		return data, err
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Close releases the underlying connection pool.
func (r *RedisSnapshotter) Close() error {
	return r.client.Close()
}
