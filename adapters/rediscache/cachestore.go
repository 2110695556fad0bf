// Package rediscache provides a Redis-backed implementation of the
// subscription cache for deployments that share cache state across
// processes. Get and Put map to single Redis commands, so the per-key
// atomicity the cache contract asks for comes from Redis itself.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/meterly/subgate/domain/billing"
	"github.com/meterly/subgate/ports"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "subgate:sub:"

// Opts configures the Redis connection.
type Opts struct {
	Addr        string        // "127.0.0.1:6379"
	Password    string        // optional
	DB          int           // default 0
	DialTimeout time.Duration // default 5s
}

// CacheStore is a Redis implementation of ports.SubscriptionCache.
// Expiry rides on Redis TTLs, so stale entries vanish without a sweep.
type CacheStore struct {
	rdb *redis.Client
}

// New connects to Redis and verifies the connection.
func New(opts Opts) (*CacheStore, error) {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: opts.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &CacheStore{rdb: rdb}, nil
}

// NewWithClient wraps an existing client (for testing).
func NewWithClient(rdb *redis.Client) *CacheStore {
	return &CacheStore{rdb: rdb}
}

// Get returns the cached subscription if present.
func (s *CacheStore) Get(ctx context.Context, customerRef string) (billing.Subscription, bool, error) {
	raw, err := s.rdb.Get(ctx, keyPrefix+customerRef).Bytes()
	if errors.Is(err, redis.Nil) {
		return billing.Subscription{}, false, nil
	}
	if err != nil {
		return billing.Subscription{}, false, fmt.Errorf("redis get: %w", err)
	}

	var sub billing.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		// A corrupt entry reads as a miss; the next Put overwrites it.
		return billing.Subscription{}, false, fmt.Errorf("decode cached subscription: %w", err)
	}

	return sub, true, nil
}

// Put stores the subscription with the given TTL, overwriting any entry.
func (s *CacheStore) Put(ctx context.Context, customerRef string, sub billing.Subscription, ttl time.Duration) error {
	raw, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encode subscription: %w", err)
	}

	if err := s.rdb.Set(ctx, keyPrefix+customerRef, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *CacheStore) Close() error {
	return s.rdb.Close()
}

// Ensure interface compliance.
var _ ports.SubscriptionCache = (*CacheStore)(nil)
