package config

import (
	"strings"
	"testing"

	"github.com/gezibash/dbbench/internal/backend"
)

func lookupFrom(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLegacyConfigs(t *testing.T) {
	got := LegacyConfigs(lookupFrom(map[string]string{
		"PG_DBNAME":       "bench",
		"PG_DBHOST":       "pg.local",
		"PG_DBPASS":       "",
		"ELK_URL":         "http://es:9200",
		"MONGO_URL":       "mongodb://mongo:27017",
		"CLICKHOUSE_URL":  "ch:9000",
		"CLICKHOUSE_USER": "default",
		"UNRELATED":       "x",
	}))

	want := map[string]backend.Config{
		"postgres":   {"database": "bench", "host": "pg.local"},
		"elastic":    {"url": "http://es:9200"},
		"mongo":      {"uri": "mongodb://mongo:27017"},
		"clickhouse": {"addr": "ch:9000", "username": "default"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for name, cfg := range want {
		for k, v := range cfg {
			if got[name][k] != v {
				t.Errorf("%s.%s = %q, want %q", name, k, got[name][k], v)
			}
		}
		if len(got[name]) != len(cfg) {
			t.Errorf("%s = %v, want %v", name, got[name], cfg)
		}
	}
}

func TestParseSet(t *testing.T) {
	got, err := ParseSet([]string{
		"postgres.host=db",
		"postgres.dsn=postgres://u:p@h/db?sslmode=disable",
		"s3.prefix=",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got["postgres"]["host"] != "db" {
		t.Errorf("host = %q", got["postgres"]["host"])
	}
	if got["postgres"]["dsn"] != "postgres://u:p@h/db?sslmode=disable" {
		t.Errorf("dsn = %q, value must keep later = signs", got["postgres"]["dsn"])
	}
	if v, ok := got["s3"]["prefix"]; !ok || v != "" {
		t.Errorf("s3.prefix = %q, %v", v, ok)
	}

	for _, bad := range []string{"nodot=1", ".key=1", "postgres.=1", "postgres.host"} {
		if _, err := ParseSet([]string{bad}); err == nil {
			t.Errorf("ParseSet(%q) succeeded", bad)
		}
	}
}

func TestBackendConfigsPrecedence(t *testing.T) {
	legacy := map[string]backend.Config{
		"postgres": {"host": "legacy", "user": "legacy-user"},
	}
	file := map[string]map[string]string{
		"postgres": {"host": "file", "port": "5433"},
		"sqlite":   {"path": "x.db"},
	}
	sets := map[string]backend.Config{
		"postgres": {"port": "6000"},
	}

	got := BackendConfigs(legacy, file, sets)
	pg := got["postgres"]
	if pg["host"] != "file" || pg["user"] != "legacy-user" || pg["port"] != "6000" {
		t.Errorf("postgres = %v", pg)
	}
	if got["sqlite"]["path"] != "x.db" {
		t.Errorf("sqlite = %v", got["sqlite"])
	}
}

func TestSelectBackends(t *testing.T) {
	registered := []string{"badger", "clickhouse", "elastic", "memory", "mongo", "postgres"}

	tests := []struct {
		name       string
		args       []string
		configured []string
		all        bool
		want       string
		wantErr    bool
	}{
		{name: "default", want: "postgres,elastic,mongo,clickhouse"},
		{name: "all", all: true, args: []string{"memory"}, want: strings.Join(registered, ",")},
		{name: "args", args: []string{"Memory", "badger", "memory"}, want: "memory,badger"},
		{name: "configured", configured: []string{"mongo"}, want: "mongo"},
		{name: "unknown", args: []string{"oracle"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectBackends(tt.args, tt.configured, tt.all, registered)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if s := strings.Join(got, ","); s != tt.want {
				t.Errorf("got %s, want %s", s, tt.want)
			}
		})
	}
}
