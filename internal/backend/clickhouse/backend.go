// Package clickhouse provides a ClickHouse benchmark backend over the native
// protocol.
package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"

	"github.com/gezibash/dbbench/internal/backend"
	"github.com/gezibash/dbbench/internal/dataset"
)

const (
	KeyAddr        = "addr"
	KeyDatabase    = "database"
	KeyUsername    = "username"
	KeyPassword    = "password"
	KeyTable       = "table"
	KeyPageSize    = "page_size"
	KeyDialTimeout = "dial_timeout"

	defaultPort = "9000"
)

func init() {
	backend.Register("clickhouse", NewFactory, Defaults)
}

// Defaults returns the default configuration for the ClickHouse backend.
func Defaults() backend.Config {
	return backend.Config{
		KeyAddr:        "localhost:9000",
		KeyDatabase:    "default",
		KeyUsername:    "default",
		KeyPassword:    "",
		KeyTable:       "test",
		KeyPageSize:    "5000",
		KeyDialTimeout: "10s",
	}
}

// Addrs splits a comma separated address list, adding the native port to
// bare hosts.
func Addrs(raw string) []string {
	var out []string
	for _, a := range strings.Split(raw, ",") {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(a); err != nil {
			a = net.JoinHostPort(a, defaultPort)
		}
		out = append(out, a)
	}
	return out
}

// NewFactory opens a native connection and pings the server.
func NewFactory(ctx context.Context, cfg backend.Config) (backend.Backend, error) {
	addrs := Addrs(cfg.String(KeyAddr, ""))
	if len(addrs) == 0 {
		return nil, backend.NewConfigError("clickhouse", KeyAddr, "cannot be empty")
	}
	table, err := cfg.Identifier("clickhouse", KeyTable, "test")
	if err != nil {
		return nil, err
	}
	pageSize, err := cfg.PositiveInt("clickhouse", KeyPageSize, backend.DefaultPageSize)
	if err != nil {
		return nil, err
	}
	dialTimeout, err := cfg.Duration("clickhouse", KeyDialTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	database := cfg.String(KeyDatabase, "default")

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: addrs,
		Auth: clickhouse.Auth{
			Database: database,
			Username: cfg.String(KeyUsername, "default"),
			Password: cfg.String(KeyPassword, ""),
		},
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, backend.NewConfigErrorWithCause("clickhouse", KeyAddr, "failed to open connection", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, backend.NewConfigErrorWithCause("clickhouse", KeyAddr, "failed to connect", err)
	}

	slog.Info("clickhouse backend initialized", "addr", addrs, "database", database, "table", table, "page_size", pageSize)
	return &Backend{conn: conn, table: table, pageSize: pageSize}, nil
}

// Backend stores records in a MergeTree table with Array(UUID) columns.
type Backend struct {
	conn     driver.Conn
	table    string
	pageSize int
	closed   atomic.Bool
}

func (b *Backend) Setup(ctx context.Context) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	err := b.conn.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    user_id   UUID,
    likes     Array(UUID),
    dislikes  Array(UUID),
    bookmarks Array(UUID),
    score     Float64
) ENGINE = MergeTree
ORDER BY user_id`, b.table))
	if err != nil {
		return fmt.Errorf("clickhouse setup: %w", err)
	}
	return nil
}

// WriteOne sends a single-row native batch.
func (b *Backend) WriteOne(ctx context.Context, rec *dataset.Record) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	if err := b.send(ctx, []*dataset.Record{rec}); err != nil {
		return fmt.Errorf("clickhouse write one: %w", err)
	}
	return nil
}

// WriteMany sends one native batch per page.
func (b *Backend) WriteMany(ctx context.Context, recs []*dataset.Record) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	for _, page := range backend.Pages(recs, b.pageSize) {
		if err := b.send(ctx, page); err != nil {
			return fmt.Errorf("clickhouse write many: %w", err)
		}
	}
	return nil
}

func (b *Backend) send(ctx context.Context, recs []*dataset.Record) error {
	batch, err := b.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s (user_id, likes, dislikes, bookmarks, score)", b.table))
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, rec := range recs {
		if err := batch.Append(rec.UserID, nonNil(rec.Likes), nonNil(rec.Dislikes), nonNil(rec.Bookmarks), rec.Score); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append %s: %w", rec.UserID, err)
		}
	}
	return batch.Send()
}

func (b *Backend) ReadOne(ctx context.Context, id uuid.UUID) (*dataset.Record, error) {
	if b.closed.Load() {
		return nil, backend.ErrClosed
	}
	var rec dataset.Record
	err := b.conn.QueryRow(ctx,
		fmt.Sprintf("SELECT user_id, likes, dislikes, bookmarks, score FROM %s WHERE user_id = ?", b.table),
		id.String(),
	).Scan(&rec.UserID, &rec.Likes, &rec.Dislikes, &rec.Bookmarks, &rec.Score)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("clickhouse read one: %w", err)
	}
	return &rec, nil
}

func (b *Backend) Clean(ctx context.Context) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	if err := b.conn.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", b.table)); err != nil {
		return fmt.Errorf("clickhouse clean: %w", err)
	}
	return nil
}

func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.conn.Close()
}

func nonNil(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
