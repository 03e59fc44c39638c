// Package sqlite provides a SQLite-backed benchmark backend.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/gezibash/dbbench/internal/backend"
	"github.com/gezibash/dbbench/internal/dataset"
)

const (
	KeyPath        = "path"
	KeyJournalMode = "journal_mode"
	KeyBusyTimeout = "busy_timeout"
	KeyTable       = "table"
)

func init() {
	backend.Register("sqlite", NewFactory, Defaults)
}

// Defaults returns the default configuration for the SQLite backend.
func Defaults() backend.Config {
	return backend.Config{
		KeyPath:        "~/.dbbench/bench.db",
		KeyJournalMode: "wal",
		KeyBusyTimeout: "5000",
		KeyTable:       "test",
	}
}

// NewFactory opens the database file. The table is created by Setup.
func NewFactory(_ context.Context, cfg backend.Config) (backend.Backend, error) {
	path := cfg.String(KeyPath, "")
	if path == "" {
		return nil, backend.NewConfigError("sqlite", KeyPath, "cannot be empty")
	}
	table, err := cfg.Identifier("sqlite", KeyTable, "test")
	if err != nil {
		return nil, err
	}
	busyTimeout, err := cfg.Int("sqlite", KeyBusyTimeout, 5000)
	if err != nil {
		return nil, err
	}
	journalMode := cfg.String(KeyJournalMode, "wal")

	if path != ":memory:" {
		path = backend.ExpandPath(path)
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, backend.NewConfigErrorWithCause("sqlite", KeyPath, "failed to create directory", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(%s)&_pragma=busy_timeout(%d)", path, journalMode, busyTimeout)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, backend.NewConfigErrorWithCause("sqlite", KeyPath, "failed to open database", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, backend.NewConfigErrorWithCause("sqlite", KeyPath, "failed to open database", err)
	}

	slog.Info("sqlite backend initialized", "path", path, "journal_mode", journalMode, "table", table)
	return &Backend{db: db, table: table}, nil
}

// Backend stores one row per record with the lists as JSON text.
type Backend struct {
	db     *sql.DB
	table  string
	closed atomic.Bool
}

func (b *Backend) Setup(ctx context.Context) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	_, err := b.db.ExecContext(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    user_id   TEXT PRIMARY KEY,
    likes     TEXT NOT NULL,
    dislikes  TEXT NOT NULL,
    bookmarks TEXT NOT NULL,
    score     REAL NOT NULL
)`, b.table))
	if err != nil {
		return fmt.Errorf("sqlite setup: %w", err)
	}
	return nil
}

func (b *Backend) insertSQL() string {
	return fmt.Sprintf(`INSERT INTO %s (user_id, likes, dislikes, bookmarks, score) VALUES (?, ?, ?, ?, ?)`, b.table)
}

func (b *Backend) WriteOne(ctx context.Context, rec *dataset.Record) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	args, err := rowArgs(rec)
	if err != nil {
		return err
	}
	if _, err := b.db.ExecContext(ctx, b.insertSQL(), args...); err != nil {
		return fmt.Errorf("sqlite write one: %w", err)
	}
	return nil
}

// WriteMany inserts every record in one transaction with a prepared statement.
func (b *Backend) WriteMany(ctx context.Context, recs []*dataset.Record) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	if len(recs) == 0 {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite write many: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, b.insertSQL())
	if err != nil {
		return fmt.Errorf("sqlite write many: prepare: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		args, err := rowArgs(rec)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("sqlite write many: insert %s: %w", rec.UserID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite write many: commit: %w", err)
	}
	return nil
}

func (b *Backend) ReadOne(ctx context.Context, id uuid.UUID) (*dataset.Record, error) {
	if b.closed.Load() {
		return nil, backend.ErrClosed
	}

	var (
		userID                     string
		likes, dislikes, bookmarks string
		rec                        dataset.Record
	)
	err := b.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT user_id, likes, dislikes, bookmarks, score FROM %s WHERE user_id = ?`, b.table),
		id.String(),
	).Scan(&userID, &likes, &dislikes, &bookmarks, &rec.Score)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite read one: %w", err)
	}

	if rec.UserID, err = uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("sqlite read one: user id: %w", err)
	}
	for _, c := range []struct {
		raw string
		dst *[]uuid.UUID
	}{{likes, &rec.Likes}, {dislikes, &rec.Dislikes}, {bookmarks, &rec.Bookmarks}} {
		if err := json.Unmarshal([]byte(c.raw), c.dst); err != nil {
			return nil, fmt.Errorf("sqlite read one: decode list: %w", err)
		}
	}
	return &rec, nil
}

func (b *Backend) Clean(ctx context.Context) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	if _, err := b.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, b.table)); err != nil {
		return fmt.Errorf("sqlite clean: %w", err)
	}
	return nil
}

func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.db.Close()
}

func rowArgs(rec *dataset.Record) ([]any, error) {
	args := []any{rec.UserID.String()}
	for _, ids := range [][]uuid.UUID{rec.Likes, rec.Dislikes, rec.Bookmarks} {
		if ids == nil {
			ids = []uuid.UUID{}
		}
		data, err := json.Marshal(ids)
		if err != nil {
			return nil, fmt.Errorf("encode list for %s: %w", rec.UserID, err)
		}
		args = append(args, string(data))
	}
	return append(args, rec.Score), nil
}
