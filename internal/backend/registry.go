package backend

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gezibash/dbbench/internal/observability"
)

// Factory creates a backend from its merged configuration.
type Factory func(ctx context.Context, cfg Config) (Backend, error)

// DefaultsFunc returns the default configuration for a backend.
type DefaultsFunc func() Config

type entry struct {
	factory  Factory
	defaults DefaultsFunc
}

var (
	registry   = make(map[string]entry)
	registryMu sync.RWMutex
)

// Register makes a backend available under name.
// Panics if a backend with the same name is already registered.
func Register(name string, factory Factory, defaults DefaultsFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("benchmark backend %q already registered", name))
	}
	registry[name] = entry{factory: factory, defaults: defaults}
}

// GetDefaults returns the default configuration for a backend, or nil.
func GetDefaults(name string) Config {
	registryMu.RLock()
	defer registryMu.RUnlock()

	e, ok := registry[name]
	if !ok || e.defaults == nil {
		return nil
	}
	return e.defaults()
}

// ListBackends returns the names of all registered backends, sorted.
func ListBackends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered reports whether a backend with the given name exists.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// New opens the named backend. cfg is layered over the backend's defaults.
func New(ctx context.Context, name string, cfg Config, metrics *observability.Metrics) (be Backend, err error) {
	op, ctx := observability.StartOperation(ctx, metrics, name, "open", attribute.String("backend", name))
	defer func() { op.End(err) }()

	registryMu.RLock()
	e, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, NewConfigError(name, "", fmt.Sprintf("unknown backend %q (available: %v)", name, ListBackends()))
	}

	var defaults Config
	if e.defaults != nil {
		defaults = e.defaults()
	}
	be, err = e.factory(ctx, defaults.Merge(cfg))
	if err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "benchmark backend opened", "backend", name)
	return be, nil
}
