package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the registry and the benchmark meters.
type Metrics struct {
	Registry          *prometheus.Registry
	OperationDuration *prometheus.HistogramVec
	OperationTotal    *prometheus.CounterVec
	RecordsTotal      *prometheus.CounterVec
	ReadLatency       *prometheus.HistogramVec
}

// NewMetrics creates a private registry with the dbbench meters registered.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	opDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dbbench_operation_duration_seconds",
		Help:    "Duration of benchmark backend calls in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 20),
	}, []string{"backend", "phase", "status"})

	opTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dbbench_operation_total",
		Help: "Total number of benchmark backend calls.",
	}, []string{"backend", "phase", "status"})

	records := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dbbench_records_total",
		Help: "Total records successfully written or read.",
	}, []string{"backend", "phase"})

	readLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dbbench_read_latency_seconds",
		Help:    "Latency of individual reads issued by the concurrent read pool.",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 18),
	}, []string{"backend"})

	reg.MustRegister(opDuration, opTotal, records, readLatency)

	return &Metrics{
		Registry:          reg,
		OperationDuration: opDuration,
		OperationTotal:    opTotal,
		RecordsTotal:      records,
		ReadLatency:       readLatency,
	}
}
