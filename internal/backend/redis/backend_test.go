package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/gezibash/dbbench/internal/backend"
)

func TestFactoryValidation(t *testing.T) {
	tests := []struct {
		name  string
		cfg   map[string]string
		field string
	}{
		{"empty addr", map[string]string{KeyAddr: ""}, KeyAddr},
		{"negative db", map[string]string{KeyDB: "-1"}, KeyDB},
		{"zero page size", map[string]string{KeyPageSize: "0"}, KeyPageSize},
		{"bad timeout", map[string]string{KeyDialTimeout: "soon"}, KeyDialTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			for k, v := range tt.cfg {
				cfg[k] = v
			}
			_, err := NewFactory(context.Background(), cfg)
			var ce *backend.ConfigError
			if !errors.As(err, &ce) || ce.Field != tt.field {
				t.Fatalf("expected ConfigError on %s, got %v", tt.field, err)
			}
		})
	}
}
