// Package redis provides a Redis-backed benchmark backend.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gezibash/dbbench/internal/backend"
	"github.com/gezibash/dbbench/internal/dataset"
)

const (
	KeyAddr        = "addr"
	KeyPassword    = "password"
	KeyDB          = "db"
	KeyKeyPrefix   = "key_prefix"
	KeyPageSize    = "page_size"
	KeyDialTimeout = "dial_timeout"

	scanCount = 1000
)

func init() {
	backend.Register("redis", NewFactory, Defaults)
}

// Defaults returns the default configuration for the Redis backend.
func Defaults() backend.Config {
	return backend.Config{
		KeyAddr:        "localhost:6379",
		KeyPassword:    "",
		KeyDB:          "0",
		KeyKeyPrefix:   "test:",
		KeyPageSize:    "5000",
		KeyDialTimeout: "5s",
	}
}

// NewFactory connects to Redis and verifies the connection with PING.
func NewFactory(ctx context.Context, cfg backend.Config) (backend.Backend, error) {
	addr := cfg.String(KeyAddr, "")
	if addr == "" {
		return nil, backend.NewConfigError("redis", KeyAddr, "cannot be empty")
	}
	db, err := cfg.Int("redis", KeyDB, 0)
	if err != nil {
		return nil, err
	}
	if db < 0 {
		return nil, backend.NewConfigErrorWithValue("redis", KeyDB, cfg[KeyDB], "must be non-negative")
	}
	pageSize, err := cfg.PositiveInt("redis", KeyPageSize, backend.DefaultPageSize)
	if err != nil {
		return nil, err
	}
	dialTimeout, err := cfg.Duration("redis", KeyDialTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}
	prefix := cfg.String(KeyKeyPrefix, "test:")

	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    cfg.String(KeyPassword, ""),
		DB:          db,
		DialTimeout: dialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, backend.NewConfigErrorWithCause("redis", KeyAddr, "failed to connect", err)
	}

	slog.Info("redis backend initialized", "addr", addr, "db", db, "key_prefix", prefix)
	return NewWithClient(client, prefix, pageSize), nil
}

// NewWithClient creates a backend over an existing client.
func NewWithClient(client *redis.Client, prefix string, pageSize int) *Backend {
	return &Backend{client: client, prefix: prefix, pageSize: pageSize}
}

// Backend stores one JSON string per record under "<prefix><user id>".
type Backend struct {
	client   *redis.Client
	prefix   string
	pageSize int
	closed   atomic.Bool
}

func (b *Backend) key(id uuid.UUID) string {
	return b.prefix + id.String()
}

// Setup is a no-op: keys need no schema.
func (b *Backend) Setup(_ context.Context) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	return nil
}

func (b *Backend) WriteOne(ctx context.Context, rec *dataset.Record) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	val, err := backend.MarshalRecord(rec)
	if err != nil {
		return err
	}
	if err := b.client.Set(ctx, b.key(rec.UserID), val, 0).Err(); err != nil {
		return fmt.Errorf("redis write one: %w", err)
	}
	return nil
}

// WriteMany pipelines one SET per record, one round trip per page.
func (b *Backend) WriteMany(ctx context.Context, recs []*dataset.Record) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	for _, page := range backend.Pages(recs, b.pageSize) {
		_, err := b.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, rec := range page {
				val, err := backend.MarshalRecord(rec)
				if err != nil {
					return err
				}
				pipe.Set(ctx, b.key(rec.UserID), val, 0)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("redis write many: %w", err)
		}
	}
	return nil
}

func (b *Backend) ReadOne(ctx context.Context, id uuid.UUID) (*dataset.Record, error) {
	if b.closed.Load() {
		return nil, backend.ErrClosed
	}
	val, err := b.client.Get(ctx, b.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis read one: %w", err)
	}
	return backend.UnmarshalRecord(val)
}

// Clean SCANs the prefix and deletes matches in batches.
func (b *Backend) Clean(ctx context.Context) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	var cursor uint64
	for {
		keys, next, err := b.client.Scan(ctx, cursor, b.prefix+"*", scanCount).Result()
		if err != nil {
			return fmt.Errorf("redis clean: scan: %w", err)
		}
		if len(keys) > 0 {
			if err := b.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis clean: del: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.client.Close()
}
