// Package memory provides an in-process benchmark backend. It is the
// baseline every other store is compared against and the target the
// harness tests run on.
package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/gezibash/dbbench/internal/backend"
	"github.com/gezibash/dbbench/internal/dataset"
)

func init() {
	backend.Register("memory", NewFactory, Defaults)
}

// Defaults returns the default configuration for the memory backend.
func Defaults() backend.Config {
	return backend.Config{}
}

// NewFactory creates an empty memory backend.
func NewFactory(_ context.Context, _ backend.Config) (backend.Backend, error) {
	return New(), nil
}

// Backend stores cloned records in a map guarded by a RWMutex.
type Backend struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*dataset.Record
	closed  atomic.Bool
}

// New creates an empty memory backend.
func New() *Backend {
	return &Backend{}
}

func (b *Backend) Setup(_ context.Context) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.records == nil {
		b.records = make(map[uuid.UUID]*dataset.Record)
	}
	return nil
}

func (b *Backend) WriteOne(ctx context.Context, rec *dataset.Record) error {
	return b.WriteMany(ctx, []*dataset.Record{rec})
}

func (b *Backend) WriteMany(_ context.Context, recs []*dataset.Record) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.records == nil {
		b.records = make(map[uuid.UUID]*dataset.Record, len(recs))
	}
	for _, rec := range recs {
		b.records[rec.UserID] = rec.Clone()
	}
	return nil
}

func (b *Backend) ReadOne(_ context.Context, id uuid.UUID) (*dataset.Record, error) {
	if b.closed.Load() {
		return nil, backend.ErrClosed
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.records[id]
	if !ok {
		return nil, backend.ErrNotFound
	}
	return rec.Clone(), nil
}

func (b *Backend) Clean(_ context.Context) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = nil
	return nil
}

// Len returns the number of stored records.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records)
}

func (b *Backend) Close() error {
	b.closed.Store(true)
	return nil
}
