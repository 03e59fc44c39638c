// Package backend defines the lifecycle every benchmarked database implements
// and the registry the harness opens them through.
package backend

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/gezibash/dbbench/internal/dataset"
)

var (
	// ErrNotFound indicates the requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrClosed indicates the backend has been closed.
	ErrClosed = errors.New("backend closed")
)

// DefaultPageSize is the bulk write chunk size used by backends that page
// their bulk requests.
const DefaultPageSize = 5000

// Backend is one benchmark target. Setup creates the table, index or
// collection the other calls use and Clean drops it again.
// Implementations must allow concurrent ReadOne calls.
type Backend interface {
	Setup(ctx context.Context) error
	WriteOne(ctx context.Context, rec *dataset.Record) error
	WriteMany(ctx context.Context, recs []*dataset.Record) error
	ReadOne(ctx context.Context, id uuid.UUID) (*dataset.Record, error)
	Clean(ctx context.Context) error
	Close() error
}

// Pages splits recs into consecutive chunks of at most size records.
func Pages(recs []*dataset.Record, size int) [][]*dataset.Record {
	if size <= 0 {
		size = DefaultPageSize
	}
	pages := make([][]*dataset.Record, 0, (len(recs)+size-1)/size)
	for start := 0; start < len(recs); start += size {
		end := min(start+size, len(recs))
		pages = append(pages, recs[start:end])
	}
	return pages
}
