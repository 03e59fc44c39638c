package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/gezibash/dbbench/internal/backend"
	"github.com/gezibash/dbbench/internal/backend/backendtest"
)

func newTestBackend(tb testing.TB) backend.Backend {
	tb.Helper()
	cfg := Defaults().Merge(map[string]string{
		KeyPath: filepath.Join(tb.TempDir(), "bench.db"),
	})
	be, err := NewFactory(context.Background(), cfg)
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() { be.Close() })
	return be
}

func TestConformance(t *testing.T) {
	backendtest.Run(t, newTestBackend)
}

func TestRejectsBadTable(t *testing.T) {
	cfg := Defaults().Merge(map[string]string{
		KeyPath:  filepath.Join(t.TempDir(), "bench.db"),
		KeyTable: "test; DROP TABLE x",
	})
	_, err := NewFactory(context.Background(), cfg)
	var ce *backend.ConfigError
	if !errors.As(err, &ce) || ce.Field != KeyTable {
		t.Fatalf("expected table ConfigError, got %v", err)
	}
}

func TestRejectsEmptyPath(t *testing.T) {
	_, err := NewFactory(context.Background(), backend.Config{KeyTable: "test"})
	var ce *backend.ConfigError
	if !errors.As(err, &ce) || ce.Field != KeyPath {
		t.Fatalf("expected path ConfigError, got %v", err)
	}
}

func TestDuplicateWriteFails(t *testing.T) {
	ctx := context.Background()
	be := newTestBackend(t)
	if err := be.Setup(ctx); err != nil {
		t.Fatal(err)
	}
	rec := backendtest.Dataset(t, 1, 2)[0]
	if err := be.WriteOne(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := be.WriteOne(ctx, rec); err == nil {
		t.Fatal("expected primary key violation on duplicate write")
	}
}

func BenchmarkWriteMany(b *testing.B) {
	backendtest.RunWriteMany(b, newTestBackend)
}

func BenchmarkReadOne(b *testing.B) {
	backendtest.RunReadOne(b, newTestBackend)
}
