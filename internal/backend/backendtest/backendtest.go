// Package backendtest provides the lifecycle conformance suite and shared
// benchmarks every benchmark backend runs in its own tests.
package backendtest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gezibash/dbbench/internal/backend"
	"github.com/gezibash/dbbench/internal/dataset"
)

// Seed keeps generated datasets stable across runs.
const Seed = 42

// Factory opens a fresh backend. Implementations register Close and any
// other teardown with t.Cleanup.
type Factory func(tb testing.TB) backend.Backend

// Dataset generates n records with up to maxSubfields ids per list.
func Dataset(tb testing.TB, n, maxSubfields int) dataset.Dataset {
	tb.Helper()
	ds, err := dataset.Generate(context.Background(), dataset.Options{Size: n, MaxSubfields: maxSubfields, Seed: Seed}, nil)
	if err != nil {
		tb.Fatal(err)
	}
	return ds
}

// Run exercises the full Setup, write, read and Clean lifecycle.
func Run(t *testing.T, newBackend Factory) {
	t.Run("WriteOneReadOne", func(t *testing.T) { testWriteOneReadOne(t, newBackend) })
	t.Run("WriteManyReadAll", func(t *testing.T) { testWriteManyReadAll(t, newBackend) })
	t.Run("WriteManyEmpty", func(t *testing.T) { testWriteManyEmpty(t, newBackend) })
	t.Run("ReadMissing", func(t *testing.T) { testReadMissing(t, newBackend) })
	t.Run("EmptyLists", func(t *testing.T) { testEmptyLists(t, newBackend) })
	t.Run("CleanAndSetupAgain", func(t *testing.T) { testCleanAndSetupAgain(t, newBackend) })
	t.Run("ConcurrentReads", func(t *testing.T) { testConcurrentReads(t, newBackend) })
	t.Run("Closed", func(t *testing.T) { testClosed(t, newBackend) })
}

func setup(t *testing.T, newBackend Factory) backend.Backend {
	t.Helper()
	be := newBackend(t)
	if err := be.Setup(context.Background()); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	t.Cleanup(func() { _ = be.Clean(context.Background()) })
	return be
}

func assertRecord(t *testing.T, be backend.Backend, want *dataset.Record) {
	t.Helper()
	got, err := be.ReadOne(context.Background(), want.UserID)
	if err != nil {
		t.Fatalf("ReadOne(%s): %v", want.UserID, err)
	}
	if !got.Equal(want) {
		t.Fatalf("ReadOne(%s) = %+v, want %+v", want.UserID, got, want)
	}
}

func testWriteOneReadOne(t *testing.T, newBackend Factory) {
	be := setup(t, newBackend)
	rec := Dataset(t, 1, 5)[0]
	if err := be.WriteOne(context.Background(), rec); err != nil {
		t.Fatalf("WriteOne: %v", err)
	}
	assertRecord(t, be, rec)
}

func testWriteManyReadAll(t *testing.T, newBackend Factory) {
	be := setup(t, newBackend)
	ds := Dataset(t, 120, 4)
	if err := be.WriteMany(context.Background(), ds); err != nil {
		t.Fatalf("WriteMany: %v", err)
	}
	for _, rec := range ds {
		assertRecord(t, be, rec)
	}
}

func testWriteManyEmpty(t *testing.T, newBackend Factory) {
	be := setup(t, newBackend)
	if err := be.WriteMany(context.Background(), nil); err != nil {
		t.Fatalf("WriteMany(nil): %v", err)
	}
}

func testReadMissing(t *testing.T, newBackend Factory) {
	be := setup(t, newBackend)
	if err := be.WriteOne(context.Background(), Dataset(t, 1, 1)[0]); err != nil {
		t.Fatal(err)
	}
	_, err := be.ReadOne(context.Background(), uuid.New())
	if !errors.Is(err, backend.ErrNotFound) {
		t.Fatalf("ReadOne(missing) = %v, want ErrNotFound", err)
	}
}

func testEmptyLists(t *testing.T, newBackend Factory) {
	be := setup(t, newBackend)
	rec := &dataset.Record{UserID: uuid.New(), Score: 0}
	if err := be.WriteOne(context.Background(), rec); err != nil {
		t.Fatalf("WriteOne: %v", err)
	}
	assertRecord(t, be, rec)
}

func testCleanAndSetupAgain(t *testing.T, newBackend Factory) {
	ctx := context.Background()
	be := setup(t, newBackend)
	rec := Dataset(t, 1, 2)[0]
	if err := be.WriteOne(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := be.Clean(ctx); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if err := be.Setup(ctx); err != nil {
		t.Fatalf("Setup after Clean: %v", err)
	}
	if _, err := be.ReadOne(ctx, rec.UserID); !errors.Is(err, backend.ErrNotFound) {
		t.Fatalf("record survived Clean: %v", err)
	}
}

func testConcurrentReads(t *testing.T, newBackend Factory) {
	ctx := context.Background()
	be := setup(t, newBackend)
	ds := Dataset(t, 50, 3)
	if err := be.WriteMany(ctx, ds); err != nil {
		t.Fatal(err)
	}

	ids := ds.SampleIDs(rand.New(rand.NewSource(Seed)), 200)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, id := range ids {
		g.Go(func() error {
			got, err := be.ReadOne(gctx, id)
			if err != nil {
				return fmt.Errorf("ReadOne(%s): %w", id, err)
			}
			if got.UserID != id {
				return fmt.Errorf("ReadOne(%s) returned %s", id, got.UserID)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func testClosed(t *testing.T, newBackend Factory) {
	ctx := context.Background()
	be := newBackend(t)
	if err := be.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := be.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	rec := Dataset(t, 1, 1)[0]
	checks := map[string]error{
		"Setup":     be.Setup(ctx),
		"WriteOne":  be.WriteOne(ctx, rec),
		"WriteMany": be.WriteMany(ctx, dataset.Dataset{rec}),
		"Clean":     be.Clean(ctx),
	}
	_, checks["ReadOne"] = be.ReadOne(ctx, rec.UserID)
	for op, err := range checks {
		if !errors.Is(err, backend.ErrClosed) {
			t.Errorf("%s after Close = %v, want ErrClosed", op, err)
		}
	}
}

// Sizes are the dataset sizes the shared benchmarks run at.
var Sizes = []int{100, 1_000, 10_000}

// RunWriteMany benchmarks bulk inserts into a freshly set up backend.
func RunWriteMany(b *testing.B, newBackend Factory) {
	for _, n := range Sizes {
		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			ctx := context.Background()
			be := newBackend(b)
			ds := Dataset(b, n, dataset.DefaultMaxSubfields)

			b.ResetTimer()
			for range b.N {
				b.StopTimer()
				if err := be.Setup(ctx); err != nil {
					b.Fatal(err)
				}
				b.StartTimer()
				if err := be.WriteMany(ctx, ds); err != nil {
					b.Fatal(err)
				}
				b.StopTimer()
				if err := be.Clean(ctx); err != nil {
					b.Fatal(err)
				}
				b.StartTimer()
			}
		})
	}
}

// RunReadOne benchmarks point reads against a seeded backend.
func RunReadOne(b *testing.B, newBackend Factory) {
	for _, n := range Sizes {
		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			ctx := context.Background()
			be := newBackend(b)
			if err := be.Setup(ctx); err != nil {
				b.Fatal(err)
			}
			b.Cleanup(func() { _ = be.Clean(ctx) })
			ds := Dataset(b, n, dataset.DefaultMaxSubfields)
			if err := be.WriteMany(ctx, ds); err != nil {
				b.Fatal(err)
			}
			rng := rand.New(rand.NewSource(99))

			b.ResetTimer()
			for range b.N {
				if _, err := be.ReadOne(ctx, ds[rng.Intn(n)].UserID); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
