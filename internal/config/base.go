package config

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/gezibash/dbbench/internal/backend"
)

// LegacySetting maps an environment variable onto a backend setting.
type LegacySetting struct {
	Env     string
	Backend string
	Key     string
}

// Legacy lists the environment variables honoured for compatibility with
// existing deployment scripts.
var Legacy = []LegacySetting{
	{"PG_DBNAME", "postgres", "database"},
	{"PG_DBUSER", "postgres", "user"},
	{"PG_DBPASS", "postgres", "password"},
	{"PG_DBHOST", "postgres", "host"},
	{"PG_DBPORT", "postgres", "port"},
	{"ELK_URL", "elastic", "url"},
	{"MONGO_URL", "mongo", "uri"},
	{"CLICKHOUSE_URL", "clickhouse", "addr"},
	{"CLICKHOUSE_USER", "clickhouse", "username"},
	{"CLICKHOUSE_PASS", "clickhouse", "password"},
	{"REDIS_ADDR", "redis", "addr"},
	{"S3_BUCKET", "s3", "bucket"},
	{"S3_ENDPOINT", "s3", "endpoint"},
}

// LookupFunc reads an environment variable.
type LookupFunc func(key string) (string, bool)

// LegacyConfigs collects the legacy environment settings that are set and
// non-empty, keyed by backend.
func LegacyConfigs(lookup LookupFunc) map[string]backend.Config {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	out := make(map[string]backend.Config)
	for _, s := range Legacy {
		val, ok := lookup(s.Env)
		if !ok || val == "" {
			continue
		}
		if out[s.Backend] == nil {
			out[s.Backend] = backend.Config{}
		}
		out[s.Backend][s.Key] = val
	}
	return out
}

// ParseSet parses backend.key=value overrides.
func ParseSet(values []string) (map[string]backend.Config, error) {
	out := make(map[string]backend.Config)
	for _, raw := range values {
		name, kv, ok := strings.Cut(raw, ".")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q: want backend.key=value", raw)
		}
		key, val, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q: want backend.key=value", raw)
		}
		if out[name] == nil {
			out[name] = backend.Config{}
		}
		out[name][key] = val
	}
	return out, nil
}

// BackendConfigs layers the sources for each backend, lowest first: legacy
// environment, the config file's backends table, then --set overrides.
// Backend defaults are applied later by the registry.
func BackendConfigs(legacy map[string]backend.Config, file map[string]map[string]string, sets map[string]backend.Config) map[string]backend.Config {
	out := make(map[string]backend.Config)
	for _, layer := range []map[string]backend.Config{legacy, toConfigs(file), sets} {
		for name, cfg := range layer {
			out[name] = out[name].Merge(cfg)
		}
	}
	return out
}

func toConfigs(m map[string]map[string]string) map[string]backend.Config {
	out := make(map[string]backend.Config, len(m))
	for name, cfg := range m {
		out[name] = backend.Config(cfg)
	}
	return out
}

// SelectBackends resolves which backends to run: --all picks every
// registered backend, explicit names win next, then the configured list,
// then DefaultBackends.
func SelectBackends(args []string, configured []string, all bool, registered []string) ([]string, error) {
	var names []string
	switch {
	case all:
		names = slices.Clone(registered)
	case len(args) > 0:
		names = args
	case len(configured) > 0:
		names = configured
	default:
		names = DefaultBackends
	}

	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if seen[n] {
			continue
		}
		if !slices.Contains(registered, n) {
			return nil, fmt.Errorf("unknown backend %q (registered: %s)", n, strings.Join(registered, ", "))
		}
		seen[n] = true
		out = append(out, n)
	}
	return out, nil
}
