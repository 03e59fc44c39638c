package clickhouse

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/gezibash/dbbench/internal/backend"
)

func TestAddrs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"localhost", []string{"localhost:9000"}},
		{"ch1:9440, ch2", []string{"ch1:9440", "ch2:9000"}},
		{" , ", nil},
	}
	for _, tt := range tests {
		if got := Addrs(tt.in); !slices.Equal(got, tt.want) {
			t.Errorf("Addrs(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFactoryValidation(t *testing.T) {
	tests := []struct {
		name  string
		cfg   map[string]string
		field string
	}{
		{"empty addr", map[string]string{KeyAddr: " "}, KeyAddr},
		{"bad table", map[string]string{KeyTable: "a.b"}, KeyTable},
		{"bad page size", map[string]string{KeyPageSize: "0"}, KeyPageSize},
		{"bad timeout", map[string]string{KeyDialTimeout: "x"}, KeyDialTimeout},
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
