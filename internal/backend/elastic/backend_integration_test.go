//go:build integration

package elastic

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/gezibash/dbbench/internal/backend"
	"github.com/gezibash/dbbench/internal/backend/backendtest"
)

func newServerBackend(tb testing.TB) backend.Backend {
	tb.Helper()
	cfg := Defaults().Merge(map[string]string{
		KeyURL:      os.Getenv("ELK_URL"),
		KeyIndex:    fmt.Sprintf("dbbench-%d", time.Now().UnixNano()),
		KeyPageSize: "40",
	})
	be, err := NewFactory(context.Background(), cfg)
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() { be.Close() })
	return be
}

func TestServerConformance(t *testing.T) {
	backendtest.Run(t, newServerBackend)
}

func BenchmarkWriteMany(b *testing.B) {
	backendtest.RunWriteMany(b, newServerBackend)
}

func BenchmarkReadOne(b *testing.B) {
	backendtest.RunReadOne(b, newServerBackend)
}
