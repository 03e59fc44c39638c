package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/gezibash/dbbench/internal/backend"
	"github.com/gezibash/dbbench/internal/backend/backendtest"
)

func TestConnString(t *testing.T) {
	tests := []struct {
		name string
		cfg  backend.Config
		want string
	}{
		{"defaults", Defaults(), "postgres://postgres@localhost:5432/postgres?sslmode=disable"},
		{
			"password escaped",
			Defaults().Merge(map[string]string{KeyUser: "bench", KeyPassword: "p@ss/word", KeyHost: "db", KeyDatabase: "app"}),
			"postgres://bench:p%40ss%2Fword@db:5432/app?sslmode=disable",
		},
		{"dsn wins", backend.Config{KeyDSN: "postgres://x@y/z", KeyHost: "ignored"}, "postgres://x@y/z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConnString(tt.cfg); got != tt.want {
				t.Errorf("ConnString = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFactoryValidation(t *testing.T) {
	tests := []struct {
		name  string
		cfg   map[string]string
		field string
	}{
		{"bad table", map[string]string{KeyTable: "t; drop"}, KeyTable},
		{"bad page size", map[string]string{KeyPageSize: "-5"}, KeyPageSize},
		{"bad bulk mode", map[string]string{KeyBulkMode: "stream"}, KeyBulkMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFactory(context.Background(), Defaults().Merge(tt.cfg))
			var ce *backend.ConfigError
			if !errors.As(err, &ce) || ce.Field != tt.field {
				t.Fatalf("expected ConfigError on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestUUIDConversion(t *testing.T) {
	rec := backendtest.Dataset(t, 1, 6)[0]
	vals := rowValues(rec)
	if len(vals) != len(columns) {
		t.Fatalf("row has %d values for %d columns", len(vals), len(columns))
	}
	back := fromPG(toPG(rec.Likes))
	if len(back) != len(rec.Likes) {
		t.Fatalf("round trip lost ids")
	}
	for i := range back {
		if back[i] != rec.Likes[i] {
			t.Fatalf("id %d changed: %s != %s", i, back[i], rec.Likes[i])
		}
	}
}
