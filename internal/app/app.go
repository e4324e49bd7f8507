// Package app wires storage, the dataset loader and the HTTP dashboard into
// one process lifecycle.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/visaboard/visaboard/internal/aggregate"
	httpapi "github.com/visaboard/visaboard/internal/api/http"
	"github.com/visaboard/visaboard/internal/config"
	"github.com/visaboard/visaboard/internal/dataset"
	"github.com/visaboard/visaboard/internal/observability"
	"github.com/visaboard/visaboard/internal/server"
	"github.com/visaboard/visaboard/internal/storage"
)

const (
	// statsWindow is how long an unused metric stays in the usage stats.
	statsWindow = 24 * time.Hour
	// pruneInterval is how often stale usage stats are dropped.
	pruneInterval = time.Hour
)

// App manages the dashboard service lifecycle.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	storage  storage.ObjectStorage
	loader   *dataset.Loader
	engine   *aggregate.Engine
	stats    *observability.ThresholdStats
	shutdown *server.ShutdownManager

	httpServer *http.Server
	listener   net.Listener

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new App with the given configuration.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &App{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// OpenStorage creates the object storage named by cfg.
func OpenStorage(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStorage, error) {
	switch cfg.Type {
	case "local":
		return storage.NewLocalStorage(cfg.Path)
	case "s3":
		s3Cfg := storage.DefaultS3Config()
		if cfg.S3.Region != "" {
			s3Cfg.Region = cfg.S3.Region
		}
		s3Cfg.Endpoint = cfg.S3.Endpoint
		s3Cfg.UsePathStyle = cfg.S3.UsePathStyle
		return storage.NewS3Storage(ctx, cfg.S3.Bucket, s3Cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// NewLoader creates the dataset loader described by cfg on top of store.
func NewLoader(cfg *config.Config, store storage.ObjectStorage, logger *zap.Logger) (*dataset.Loader, error) {
	opts := dataset.Options{
		ObjectPath: cfg.Dataset.Path,
		CacheDir:   cfg.Dataset.CacheDir,
		Format:     cfg.Dataset.Format,
		Table:      cfg.Dataset.Table,
		Sheet:      cfg.Dataset.Sheet,
	}
	if cfg.Dataset.Delimiter != "" {
		opts.Delimiter, _ = utf8.DecodeRuneInString(cfg.Dataset.Delimiter)
	}
	return dataset.NewLoader(store, opts, logger)
}

// Start initializes shared resources and starts the HTTP server.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.initSharedResources(ctx); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to initialize shared resources: %w", err)
	}

	if a.cfg.Dataset.Preload {
		a.preload(ctx)
	}

	if err := a.startHTTP(); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to start http server: %w", err)
	}

	a.wg.Add(1)
	go a.pruneStats(ctx)

	a.logger.Info("visaboard started", zap.String("addr", a.Addr()))
	return nil
}

// initSharedResources initializes storage, the loader, the engine and the
// shutdown manager.
func (a *App) initSharedResources(ctx context.Context) error {
	var err error

	a.storage, err = OpenStorage(ctx, a.cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	fields := []zap.Field{zap.String("type", a.cfg.Storage.Type)}
	if a.cfg.Storage.Type == "s3" {
		fields = append(fields,
			zap.String("bucket", a.cfg.Storage.S3.Bucket),
			zap.String("region", a.cfg.Storage.S3.Region),
			zap.String("endpoint", a.cfg.Storage.S3.Endpoint))
	} else {
		fields = append(fields, zap.String("path", a.cfg.Storage.Path))
	}
	a.logger.Info("storage initialized", fields...)

	if ok, err := a.storage.Exists(ctx, a.cfg.Dataset.Path); err != nil {
		a.logger.Warn("dataset availability check failed", zap.String("path", a.cfg.Dataset.Path), zap.Error(err))
	} else if !ok {
		a.logger.Warn("dataset object not found, requests will fail until it appears",
			zap.String("path", a.cfg.Dataset.Path))
	}

	a.loader, err = NewLoader(a.cfg, a.storage, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dataset loader: %w", err)
	}

	a.engine = aggregate.NewEngine(a.loader)
	a.stats = observability.NewThresholdStats(statsWindow)
	a.shutdown = server.NewShutdownManager(server.DefaultShutdownConfig(), a.logger)

	return nil
}

// preload reads the dataset before the server accepts traffic. A failure
// is logged; the next request retries the load.
func (a *App) preload(ctx context.Context) {
	start := time.Now()
	ds, err := a.loader.Load(ctx)
	if err != nil {
		a.logger.Warn("dataset preload failed", zap.String("path", a.cfg.Dataset.Path), zap.Error(err))
		return
	}
	a.logger.Info("dataset preloaded",
		zap.Int("records", ds.Len()),
		zap.Duration("elapsed", time.Since(start)))
}

func (a *App) startHTTP() error {
	handler := httpapi.NewDashboardHandler(a.engine, a.cfg.View, a.stats, a.logger)

	mux := http.NewServeMux()
	middleware := httpapi.ChainMiddleware(
		server.ShutdownMiddleware(a.shutdown),
		httpapi.DefaultMiddleware(a.logger.Named("http")),
	)
	handler.Register(mux, middleware)
	mux.HandleFunc("GET /health", a.healthHandler())

	ln, err := net.Listen("tcp", a.cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.HTTP.Addr, err)
	}
	a.listener = ln

	a.httpServer = &http.Server{
		Handler:      mux,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	// closers run in reverse: the server stops before the loader drops the dataset
	a.shutdown.RegisterCloser("dataset loader", a.loader)
	a.shutdown.RegisterCloser("http server", server.HTTPServerCloser(a.httpServer, a.cfg.HTTP.WriteTimeout))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
		}
	}()

	return nil
}

func (a *App) pruneStats(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.stats.Prune()
		}
	}
}

// Addr returns the address the HTTP server is bound to.
func (a *App) Addr() string {
	if a.listener == nil {
		return a.cfg.HTTP.Addr
	}
	return a.listener.Addr().String()
}

// Stop gracefully shuts down the server and releases the dataset.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	a.logger.Info("initiating graceful shutdown")

	var stopErr error
	if a.shutdown != nil {
		stopErr = a.shutdown.Shutdown(ctx, "stop requested")
	}
	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("shutdown timeout, some goroutines may not have finished")
	}

	a.logger.Info("visaboard stopped")
	return stopErr
}

// cleanup releases resources after a failed start.
func (a *App) cleanup() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.listener != nil {
		a.listener.Close()
	}
	if a.loader != nil {
		a.loader.Close()
	}
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Service       string `json:"service"`
	DatasetLoaded bool   `json:"dataset_loaded"`
	Dataset       string `json:"dataset"`
}

func (a *App) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(HealthResponse{
			Status:        "healthy",
			Service:       a.cfg.Tracing.ServiceName,
			DatasetLoaded: a.loader.Loaded(),
			Dataset:       a.cfg.Dataset.Path,
		})
	}
}

// WaitForShutdown blocks until a shutdown signal is received or ctx ends,
// then stops the app.
func (a *App) WaitForShutdown(ctx context.Context) error {
	if err := a.shutdown.WaitForSignal(ctx); err != nil {
		a.logger.Warn("shutdown reported errors", zap.Error(err))
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownConfig().ShutdownTimeout)
	defer cancel()
	return a.Stop(stopCtx)
}
