// Package badger provides a BadgerDB-backed benchmark backend.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/gezibash/dbbench/internal/backend"
	"github.com/gezibash/dbbench/internal/dataset"
)

const (
	KeyPath       = "path"
	KeyInMemory   = "in_memory"
	KeySyncWrites = "sync_writes"
	KeyPrefix     = "key_prefix"
)

func init() {
	backend.Register("badger", NewFactory, Defaults)
}

// Defaults returns the default configuration for the BadgerDB backend.
func Defaults() backend.Config {
	return backend.Config{
		KeyPath:       "~/.dbbench/badger",
		KeyInMemory:   "false",
		KeySyncWrites: "false",
		KeyPrefix:     "test",
	}
}

// NewFactory opens a BadgerDB database, on disk or in memory.
func NewFactory(_ context.Context, cfg backend.Config) (backend.Backend, error) {
	inMemory, err := cfg.Bool("badger", KeyInMemory, false)
	if err != nil {
		return nil, err
	}
	syncWrites, err := cfg.Bool("badger", KeySyncWrites, false)
	if err != nil {
		return nil, err
	}
	prefix := cfg.String(KeyPrefix, "test")

	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		path := cfg.String(KeyPath, "")
		if path == "" {
			return nil, backend.NewConfigError("badger", KeyPath, "cannot be empty")
		}
		path = backend.ExpandPath(path)
		if err := os.MkdirAll(path, 0o700); err != nil {
			return nil, backend.NewConfigErrorWithCause("badger", KeyPath, "failed to create directory", err)
		}
		opts = badger.DefaultOptions(path).WithSyncWrites(syncWrites)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, backend.NewConfigErrorWithCause("badger", KeyPath, "failed to open database", err)
	}

	slog.Info("badger backend initialized", "in_memory", inMemory, "sync_writes", syncWrites, "key_prefix", prefix)
	return NewWithDB(db, prefix), nil
}

// NewWithDB creates a backend over an existing BadgerDB instance.
// Records are stored under "<prefix>/<user id>".
func NewWithDB(db *badger.DB, prefix string) *Backend {
	return &Backend{db: db, prefix: []byte(prefix + "/")}
}

// Backend stores one JSON value per record.
type Backend struct {
	db     *badger.DB
	prefix []byte
	closed atomic.Bool
}

func (b *Backend) key(id uuid.UUID) []byte {
	k := make([]byte, 0, len(b.prefix)+36)
	k = append(k, b.prefix...)
	return append(k, id.String()...)
}

// Setup is a no-op: badger has no schema.
func (b *Backend) Setup(_ context.Context) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	return nil
}

func (b *Backend) WriteOne(_ context.Context, rec *dataset.Record) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	val, err := backend.MarshalRecord(rec)
	if err != nil {
		return err
	}
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(b.key(rec.UserID), val)
	}); err != nil {
		return fmt.Errorf("badger write one: %w", err)
	}
	return nil
}

// WriteMany uses a WriteBatch, which splits into transactions as needed.
func (b *Backend) WriteMany(_ context.Context, recs []*dataset.Record) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	for _, rec := range recs {
		val, err := backend.MarshalRecord(rec)
		if err != nil {
			return err
		}
		if err := wb.Set(b.key(rec.UserID), val); err != nil {
			return fmt.Errorf("badger write many: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("badger write many: flush: %w", err)
	}
	return nil
}

func (b *Backend) ReadOne(_ context.Context, id uuid.UUID) (*dataset.Record, error) {
	if b.closed.Load() {
		return nil, backend.ErrClosed
	}
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.key(id))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger read one: %w", err)
	}
	return backend.UnmarshalRecord(val)
}

func (b *Backend) Clean(_ context.Context) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	if err := b.db.DropPrefix(b.prefix); err != nil {
		return fmt.Errorf("badger clean: %w", err)
	}
	return nil
}

func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.db.Close()
}
