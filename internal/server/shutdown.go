// Package server coordinates graceful shutdown of the dashboard process.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// ShutdownConfig holds configuration for the shutdown manager.
type ShutdownConfig struct {
	// ShutdownTimeout bounds the whole shutdown sequence. Default: 30 seconds
	ShutdownTimeout time.Duration

	// DrainTimeout bounds the wait for in-flight requests. Default: 15 seconds
	DrainTimeout time.Duration

	// PollInterval is how often the in-flight counter is checked while draining
	PollInterval time.Duration
}

// DefaultShutdownConfig returns the default shutdown configuration.
func DefaultShutdownConfig() ShutdownConfig {
	return ShutdownConfig{
		ShutdownTimeout: 30 * time.Second,
		DrainTimeout:    15 * time.Second,
		PollInterval:    50 * time.Millisecond,
	}
}

// ShutdownManager tracks in-flight requests, stops accepting new ones once
// shutdown begins, and closes registered resources in reverse order.
type ShutdownManager struct {
	cfg    ShutdownConfig
	logger *zap.Logger

	done     chan struct{}
	once     sync.Once
	inFlight atomic.Int64
	draining atomic.Bool

	mu      sync.Mutex
	closers []namedCloser
}

type namedCloser struct {
	name string
	c    io.Closer
}

// NewShutdownManager creates a shutdown manager. Zero durations take the
// defaults.
func NewShutdownManager(cfg ShutdownConfig, logger *zap.Logger) *ShutdownManager {
	def := DefaultShutdownConfig()
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = def.DrainTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShutdownManager{
		cfg:    cfg,
		logger: logger.Named("shutdown"),
		done:   make(chan struct{}),
	}
}

// RegisterCloser adds a resource closed during shutdown. Closers run in
// reverse order of registration.
func (sm *ShutdownManager) RegisterCloser(name string, c io.Closer) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.closers = append(sm.closers, namedCloser{name: name, c: c})
}

// WaitForSignal blocks until SIGINT, SIGTERM, ctx cancellation or another
// caller's Shutdown, then shuts down.
func (sm *ShutdownManager) WaitForSignal(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		return sm.Shutdown(context.Background(), fmt.Sprintf("received signal: %v", sig))
	case <-ctx.Done():
		return sm.Shutdown(context.Background(), "context cancelled")
	case <-sm.done:
		return nil
	}
}

// Shutdown drains in-flight requests and closes every registered resource.
// Only the first call does any work.
func (sm *ShutdownManager) Shutdown(ctx context.Context, reason string) error {
	var shutdownErr error

	sm.once.Do(func() {
		sm.logger.Info("shutting down", zap.String("reason", reason))
		sm.draining.Store(true)
		close(sm.done)

		ctx, cancel := context.WithTimeout(ctx, sm.cfg.ShutdownTimeout)
		defer cancel()

		if err := sm.drain(ctx); err != nil {
			shutdownErr = fmt.Errorf("drain failed: %w", err)
		}

		sm.mu.Lock()
		closers := sm.closers
		sm.mu.Unlock()

		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].c.Close(); err != nil {
				sm.logger.Warn("close failed", zap.String("resource", closers[i].name), zap.Error(err))
				if shutdownErr == nil {
					shutdownErr = fmt.Errorf("close %s: %w", closers[i].name, err)
				}
			}
		}
		sm.logger.Info("shutdown complete")
	})

	return shutdownErr
}

func (sm *ShutdownManager) drain(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, sm.cfg.DrainTimeout)
	defer cancel()

	ticker := time.NewTicker(sm.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if sm.inFlight.Load() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			if remaining := sm.inFlight.Load(); remaining > 0 {
				return fmt.Errorf("timeout waiting for %d in-flight requests", remaining)
			}
			return nil
		case <-ticker.C:
		}
	}
}

// TrackRequest counts a request as in flight. It returns false once
// shutdown has begun.
func (sm *ShutdownManager) TrackRequest() bool {
	if sm.draining.Load() {
		return false
	}
	sm.inFlight.Add(1)
	return true
}

// UntrackRequest marks a tracked request as finished.
func (sm *ShutdownManager) UntrackRequest() {
	sm.inFlight.Add(-1)
}

// IsShuttingDown reports whether shutdown has begun.
func (sm *ShutdownManager) IsShuttingDown() bool {
	return sm.draining.Load()
}

// InFlightCount returns the number of tracked requests.
func (sm *ShutdownManager) InFlightCount() int64 {
	return sm.inFlight.Load()
}

// Done is closed when shutdown begins.
func (sm *ShutdownManager) Done() <-chan struct{} {
	return sm.done
}

// ShutdownMiddleware tracks requests and answers 503 once shutdown has begun.
func ShutdownMiddleware(sm *ShutdownManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sm.TrackRequest() {
				w.Header().Set("Connection", "close")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"error":"shutting down"}` + "\n"))
				return
			}
			defer sm.UntrackRequest()

			next.ServeHTTP(w, r)
		})
	}
}

// HTTPServerCloser shuts an http.Server down gracefully within timeout.
func HTTPServerCloser(srv *http.Server, timeout time.Duration) io.Closer {
	return CloserFunc(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(ctx)
	})
}

// CloserFunc is an adapter to allow ordinary functions to be used as io.Closer.
type CloserFunc func() error

// Close calls the underlying function.
func (f CloserFunc) Close() error {
	return f()
}
