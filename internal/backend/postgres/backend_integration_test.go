//go:build integration

package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/gezibash/dbbench/internal/backend"
	"github.com/gezibash/dbbench/internal/backend/backendtest"
)

func factory(mode string) backendtest.Factory {
	return func(tb testing.TB) backend.Backend {
		tb.Helper()
		cfg := Defaults().Merge(map[string]string{
			KeyDSN:      os.Getenv("PG_DSN"),
			KeyTable:    fmt.Sprintf("dbbench_%d", time.Now().UnixNano()),
			KeyPageSize: "40",
			KeyBulkMode: mode,
		})
		be, err := NewFactory(context.Background(), cfg)
		if err != nil {
			tb.Fatal(err)
		}
		tb.Cleanup(func() { be.Close() })
		return be
	}
}

func TestConformanceBatch(t *testing.T) {
	backendtest.Run(t, factory(BulkBatch))
}

func TestConformanceCopy(t *testing.T) {
	backendtest.Run(t, factory(BulkCopy))
}

func BenchmarkWriteMany(b *testing.B) {
	b.Run("batch", func(b *testing.B) { backendtest.RunWriteMany(b, factory(BulkBatch)) })
	b.Run("copy", func(b *testing.B) { backendtest.RunWriteMany(b, factory(BulkCopy)) })
}

func BenchmarkReadOne(b *testing.B) {
	backendtest.RunReadOne(b, factory(BulkBatch))
}
