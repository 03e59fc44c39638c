//go:build integration

package s3

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
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		tb.Skip("S3_BUCKET not set")
	}
	cfg := Defaults().Merge(map[string]string{
		KeyBucket:          bucket,
		KeyEndpoint:        os.Getenv("S3_ENDPOINT"),
		KeyAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		KeySecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		KeyForcePathStyle:  "true",
		KeyPrefix:          fmt.Sprintf("dbbench-%d/", time.Now().UnixNano()),
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
