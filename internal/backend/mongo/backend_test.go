package mongo

import (
	"context"
	"errors"
	"testing"

	"github.com/gezibash/dbbench/internal/backend"
	"github.com/gezibash/dbbench/internal/backend/backendtest"
)

func TestDocumentRoundTrip(t *testing.T) {
	for _, rec := range backendtest.Dataset(t, 20, 4) {
		got, err := toDocument(rec).record()
		if err != nil {
			t.Fatal(err)
		}
		if !got.Equal(rec) {
			t.Fatalf("got %+v, want %+v", got, rec)
		}
	}
}

func TestDocumentBadID(t *testing.T) {
	doc := document{UserID: "not-a-uuid"}
	if _, err := doc.record(); err == nil {
		t.Fatal("expected parse error")
	}
	doc = document{UserID: "6f1d3c1e-7a60-4b9f-8d16-3c1c6d1a2b3c", Likes: []string{"nope"}}
	if _, err := doc.record(); err == nil {
		t.Fatal("expected list parse error")
	}
}

func TestFactoryValidation(t *testing.T) {
	tests := []struct {
		name  string
		cfg   map[string]string
		field string
	}{
		{"empty uri", map[string]string{KeyURI: ""}, KeyURI},
		{"bad page size", map[string]string{KeyPageSize: "0"}, KeyPageSize},
		{"bad timeout", map[string]string{KeyConnectTimeout: "later"}, KeyConnectTimeout},
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
