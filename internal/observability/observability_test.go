package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestShutdownCoordinatorLIFO(t *testing.T) {
	var order []int
	sc := &ShutdownCoordinator{}
	for i := 1; i <= 3; i++ {
		sc.Register(fmt.Sprintf("h%d", i), func(context.Context) error {
			order = append(order, i)
			return nil
		})
	}
	if err := sc.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 3 || order[0] != 3 || order[1] != 2 || order[2] != 1 {
		t.Fatalf("expected LIFO [3,2,1], got %v", order)
	}
}

func TestShutdownCoordinatorJoinsErrors(t *testing.T) {
	sc := &ShutdownCoordinator{}
	ran := 0
	sc.Register("first", func(context.Context) error { ran++; return nil })
	sc.Register("bad", func(context.Context) error { ran++; return errors.New("fail") })
	sc.Register("third", func(context.Context) error { ran++; return nil })

	err := sc.Shutdown(context.Background())
	if err == nil || !strings.Contains(err.Error(), "bad: fail") {
		t.Fatalf("expected joined error mentioning bad, got %v", err)
	}
	if ran != 3 {
		t.Fatalf("expected all handlers to run, ran %d", ran)
	}
	if err := sc.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown should be a no-op, got %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestPrettyHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, false))
	logger.With("backend", "memory").WithGroup("phase").Info("done", "name", "write one", "n", 3)

	line := buf.String()
	for _, want := range []string{"INF done", "backend=memory", `phase.name="write one"`, "phase.n=3"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
	if strings.Contains(line, "\033[") {
		t.Errorf("color disabled but escape codes present: %q", line)
	}
}

func TestPrettyHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}, true))
	logger.Info("hidden")
	logger.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record should be filtered")
	}
	if !strings.Contains(out, colorYellow+"WRN"+colorReset) {
		t.Errorf("expected colored WRN, got %q", out)
	}
}

func TestSetupLoggerJSON(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger := SetupLogger("info", "json", false, &buf)
	logger.Info("hello", "k", "v")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON log line: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "hello" || rec["k"] != "v" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestOperationRecordsMetrics(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	m := NewMetrics()
	op, _ := StartOperation(context.Background(), m, "memory", "write_one")
	if d := op.End(nil); d < 0 {
		t.Fatalf("negative duration %v", d)
	}
	op, _ = StartOperation(context.Background(), m, "memory", "write_one")
	op.End(errors.New("boom"))

	if got := testutil.ToFloat64(m.OperationTotal.WithLabelValues("memory", "write_one", "ok")); got != 1 {
		t.Errorf("ok total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.OperationTotal.WithLabelValues("memory", "write_one", "error")); got != 1 {
		t.Errorf("error total = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.OperationDuration); n != 2 {
		t.Errorf("duration series = %d, want 2", n)
	}
}

func TestOperationNilMetrics(t *testing.T) {
	op, ctx := StartOperation(context.Background(), nil, "memory", "clean")
	if ctx == nil {
		t.Fatal("nil context")
	}
	op.End(nil)
}

func TestNewWithoutTracing(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	obs, err := New(context.Background(), Config{LogLevel: "error"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	defer obs.Close(context.Background())

	switch obs.TracerProvider.(type) {
	case *tracenoop.TracerProvider, tracenoop.TracerProvider:
	default:
		t.Fatalf("expected noop tracer provider, got %T", obs.TracerProvider)
	}
	if obs.Metrics == nil || obs.Logger == nil {
		t.Fatal("metrics and logger must be set")
	}
}

func TestNewRejectsUnknownProtocol(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	_, err := New(context.Background(), Config{OTLPEndpoint: "localhost:4317", OTLPProtocol: "udp"}, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "unknown otlp protocol") {
		t.Fatalf("expected protocol error, got %v", err)
	}
}

func TestServeMetrics(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	obs, err := New(context.Background(), Config{LogLevel: "error"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	defer obs.Close(context.Background())

	obs.Metrics.RecordsTotal.WithLabelValues("memory", "write_many").Add(5)
	addr, err := obs.ServeMetrics("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get("http://" + addr.String() + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `dbbench_records_total{backend="memory",phase="write_many"} 5`) {
		t.Fatalf("metric missing from scrape:\n%s", body)
	}

	health, err := http.Get("http://" + addr.String() + "/health")
	if err != nil {
		t.Fatal(err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", health.StatusCode)
	}
}
