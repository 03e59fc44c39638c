package backend

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/gezibash/dbbench/internal/dataset"
)

type stubBackend struct {
	cfg Config
}

func (s *stubBackend) Setup(context.Context) error { return nil }
func (s *stubBackend) WriteOne(context.Context, *dataset.Record) error { return nil }
func (s *stubBackend) WriteMany(context.Context, []*dataset.Record) error { return nil }
func (s *stubBackend) Clean(context.Context) error { return nil }
func (s *stubBackend) Close() error { return nil }
func (s *stubBackend) ReadOne(context.Context, uuid.UUID) (*dataset.Record, error) {
	return nil, ErrNotFound
}

func init() {
	Register("registry-stub", func(_ context.Context, cfg Config) (Backend, error) {
		return &stubBackend{cfg: cfg}, nil
	}, func() Config {
		return Config{"host": "localhost", "port": "1234"}
	})
	Register("registry-broken", func(context.Context, Config) (Backend, error) {
		return nil, errors.New("cannot connect")
	}, nil)
}

func TestRegistryNewMergesDefaults(t *testing.T) {
	be, err := New(context.Background(), "registry-stub", Config{"port": "9999"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	cfg := be.(*stubBackend).cfg
	if cfg["host"] != "localhost" || cfg["port"] != "9999" {
		t.Fatalf("merged config = %v", cfg)
	}
}

func TestRegistryUnknownBackend(t *testing.T) {
	_, err := New(context.Background(), "nope", nil, nil)
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if !strings.Contains(err.Error(), "registry-stub") {
		t.Errorf("error should list available backends: %v", err)
	}
}

func TestRegistryFactoryError(t *testing.T) {
	if _, err := New(context.Background(), "registry-broken", nil, nil); err == nil || err.Error() != "cannot connect" {
		t.Fatalf("expected factory error, got %v", err)
	}
}

func TestRegistryListAndDefaults(t *testing.T) {
	names := ListBackends()
	if !slices.IsSorted(names) {
		t.Errorf("ListBackends not sorted: %v", names)
	}
	if !IsRegistered("registry-stub") || IsRegistered("nope") {
		t.Error("IsRegistered mismatch")
	}
	if d := GetDefaults("registry-stub"); d["port"] != "1234" {
		t.Errorf("GetDefaults = %v", d)
	}
	if d := GetDefaults("registry-broken"); d != nil {
		t.Errorf("GetDefaults without defaults = %v", d)
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	Register("registry-stub", nil, nil)
}
