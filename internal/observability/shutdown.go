package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ShutdownCoordinator runs registered cleanup handlers in LIFO order.
type ShutdownCoordinator struct {
	mu       sync.Mutex
	handlers []namedHandler
}

type namedHandler struct {
	name string
	fn   func(context.Context) error
}

// Register adds a shutdown handler.
func (s *ShutdownCoordinator) Register(name string, fn func(context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, namedHandler{name: name, fn: fn})
}

// Shutdown runs every handler, newest first, and joins their errors.
// Handlers run once; a second call is a no-op.
func (s *ShutdownCoordinator) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	handlers := s.handlers
	s.handlers = nil
	s.mu.Unlock()

	var errs []error
	for i := len(handlers) - 1; i >= 0; i-- {
		h := handlers[i]
		slog.Debug("shutting down", "component", h.name)
		if err := h.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}
	return errors.Join(errs...)
}
