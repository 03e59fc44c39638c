// Package postgres provides a PostgreSQL benchmark backend built on pgxpool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gezibash/dbbench/internal/backend"
	"github.com/gezibash/dbbench/internal/dataset"
)

const (
	KeyDSN      = "dsn"
	KeyHost     = "host"
	KeyPort     = "port"
	KeyDatabase = "database"
	KeyUser     = "user"
	KeyPassword = "password"
	KeySSLMode  = "sslmode"
	KeyTable    = "table"
	KeyPageSize = "page_size"
	KeyBulkMode = "bulk_mode"
)

// Bulk write strategies.
const (
	BulkBatch = "batch"
	BulkCopy  = "copy"
)

var columns = []string{"user_id", "likes", "dislikes", "bookmarks", "score"}

func init() {
	backend.Register("postgres", NewFactory, Defaults)
}

// Defaults returns the default configuration for the PostgreSQL backend.
func Defaults() backend.Config {
	return backend.Config{
		KeyHost:     "localhost",
		KeyPort:     "5432",
		KeyDatabase: "postgres",
		KeyUser:     "postgres",
		KeyPassword: "",
		KeySSLMode:  "disable",
		KeyTable:    "test",
		KeyPageSize: "5000",
		KeyBulkMode: BulkBatch,
	}
}

// ConnString builds a connection URL from the discrete keys unless dsn is set.
func ConnString(cfg backend.Config) string {
	if dsn := cfg.String(KeyDSN, ""); dsn != "" {
		return dsn
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.String(KeyHost, "localhost"), cfg.String(KeyPort, "5432")),
		Path:   "/" + cfg.String(KeyDatabase, "postgres"),
	}
	if pass := cfg.String(KeyPassword, ""); pass != "" {
		u.User = url.UserPassword(cfg.String(KeyUser, "postgres"), pass)
	} else {
		u.User = url.User(cfg.String(KeyUser, "postgres"))
	}
	u.RawQuery = url.Values{"sslmode": {cfg.String(KeySSLMode, "disable")}}.Encode()
	return u.String()
}

// NewFactory creates a pool and verifies the server is reachable.
func NewFactory(ctx context.Context, cfg backend.Config) (backend.Backend, error) {
	table, err := cfg.Identifier("postgres", KeyTable, "test")
	if err != nil {
		return nil, err
	}
	pageSize, err := cfg.PositiveInt("postgres", KeyPageSize, backend.DefaultPageSize)
	if err != nil {
		return nil, err
	}
	mode := cfg.String(KeyBulkMode, BulkBatch)
	if mode != BulkBatch && mode != BulkCopy {
		return nil, backend.NewConfigErrorWithValue("postgres", KeyBulkMode, mode, "must be batch or copy")
	}

	poolCfg, err := pgxpool.ParseConfig(ConnString(cfg))
	if err != nil {
		return nil, backend.NewConfigErrorWithCause("postgres", KeyDSN, "invalid connection string", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, backend.NewConfigErrorWithCause("postgres", KeyDSN, "failed to create pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, backend.NewConfigErrorWithCause("postgres", KeyHost, "failed to connect", err)
	}

	slog.Info("postgres backend initialized",
		"host", poolCfg.ConnConfig.Host, "database", poolCfg.ConnConfig.Database,
		"table", table, "bulk_mode", mode, "page_size", pageSize)
	return &Backend{pool: pool, table: pgx.Identifier{table}, pageSize: pageSize, mode: mode}, nil
}

// Backend stores one row per record with native uuid[] list columns.
type Backend struct {
	pool     *pgxpool.Pool
	table    pgx.Identifier
	pageSize int
	mode     string
	closed   atomic.Bool
}

func (b *Backend) Setup(ctx context.Context) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	_, err := b.pool.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    user_id   uuid PRIMARY KEY,
    likes     uuid[] NOT NULL,
    dislikes  uuid[] NOT NULL,
    bookmarks uuid[] NOT NULL,
    score     double precision NOT NULL
)`, b.table.Sanitize()))
	if err != nil {
		return fmt.Errorf("postgres setup: %w", err)
	}
	return nil
}

func (b *Backend) insertSQL() string {
	return fmt.Sprintf(`INSERT INTO %s (user_id, likes, dislikes, bookmarks, score) VALUES ($1, $2, $3, $4, $5)`, b.table.Sanitize())
}

func (b *Backend) WriteOne(ctx context.Context, rec *dataset.Record) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	if _, err := b.pool.Exec(ctx, b.insertSQL(), rowValues(rec)...); err != nil {
		return fmt.Errorf("postgres write one: %w", err)
	}
	return nil
}

// WriteMany sends pipelined INSERT batches of page_size rows, or a single
// COPY when bulk_mode is copy.
func (b *Backend) WriteMany(ctx context.Context, recs []*dataset.Record) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	if b.mode == BulkCopy {
		return b.copyFrom(ctx, recs)
	}

	insert := b.insertSQL()
	for _, page := range backend.Pages(recs, b.pageSize) {
		batch := &pgx.Batch{}
		for _, rec := range page {
			batch.Queue(insert, rowValues(rec)...)
		}
		if err := b.pool.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("postgres write many: %w", err)
		}
	}
	return nil
}

func (b *Backend) copyFrom(ctx context.Context, recs []*dataset.Record) error {
	if len(recs) == 0 {
		return nil
	}
	n, err := b.pool.CopyFrom(ctx, b.table, columns, pgx.CopyFromSlice(len(recs), func(i int) ([]any, error) {
		return rowValues(recs[i]), nil
	}))
	if err != nil {
		return fmt.Errorf("postgres copy: %w", err)
	}
	if int(n) != len(recs) {
		return fmt.Errorf("postgres copy: wrote %d of %d rows", n, len(recs))
	}
	return nil
}

func (b *Backend) ReadOne(ctx context.Context, id uuid.UUID) (*dataset.Record, error) {
	if b.closed.Load() {
		return nil, backend.ErrClosed
	}

	var (
		userID                     pgtype.UUID
		likes, dislikes, bookmarks []pgtype.UUID
		score                      float64
	)
	err := b.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT user_id, likes, dislikes, bookmarks, score FROM %s WHERE user_id = $1`, b.table.Sanitize()),
		pgUUID(id),
	).Scan(&userID, &likes, &dislikes, &bookmarks, &score)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres read one: %w", err)
	}

	return &dataset.Record{
		UserID:    uuid.UUID(userID.Bytes),
		Likes:     fromPG(likes),
		Dislikes:  fromPG(dislikes),
		Bookmarks: fromPG(bookmarks),
		Score:     score,
	}, nil
}

func (b *Backend) Clean(ctx context.Context) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	if _, err := b.pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, b.table.Sanitize())); err != nil {
		return fmt.Errorf("postgres clean: %w", err)
	}
	return nil
}

func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	b.pool.Close()
	return nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func toPG(ids []uuid.UUID) []pgtype.UUID {
	out := make([]pgtype.UUID, len(ids))
	for i, id := range ids {
		out[i] = pgUUID(id)
	}
	return out
}

func fromPG(ids []pgtype.UUID) []uuid.UUID {
	out := make([]uuid.UUID, len(ids))
	for i, id := range ids {
		out[i] = id.Bytes
	}
	return out
}

func rowValues(rec *dataset.Record) []any {
	return []any{pgUUID(rec.UserID), toPG(rec.Likes), toPG(rec.Dislikes), toPG(rec.Bookmarks), rec.Score}
}
