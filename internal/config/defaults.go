// Package config loads dbbench settings from flags, environment, .env files
// and config files, and resolves per-backend configuration.
package config

import (
	"os"
	"path/filepath"
)

// Common contains default values for the run settings.
var Common = struct {
	Size         int
	MaxSubfields int
	Reads        int
	Workers      int
	PageSize     int
	Output       string
	LogLevel     string
	LogFormat    string
	OTLPProtocol string
	ServiceName  string
	EnvFile      string
}{
	Size:         100,
	MaxSubfields: 10,
	Reads:        1000,
	Workers:      4,
	PageSize:     5000,
	Output:       "text",
	LogLevel:     "info",
	LogFormat:    "text",
	OTLPProtocol: "http",
	ServiceName:  "dbbench",
	EnvFile:      ".env",
}

// DefaultBackends are benchmarked when no backend is named.
var DefaultBackends = []string{"postgres", "elastic", "mongo", "clickhouse"}

// EnvPrefix prefixes every environment override, e.g. DBBENCH_BENCH_READS.
const EnvPrefix = "DBBENCH"

// DefaultConfigDir returns the per-user config directory (~/.dbbench).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dbbench"
	}
	return filepath.Join(home, ".dbbench")
}
