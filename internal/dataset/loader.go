// Package dataset loads the H-1B export once per process and memoizes it.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	verrors "github.com/visaboard/visaboard/internal/errors"
	"github.com/visaboard/visaboard/internal/storage"
	"github.com/visaboard/visaboard/pkg/types"
)

// Options describes the object to load and how to parse it.
type Options struct {
	// ObjectPath is the path of the export inside the object store
	ObjectPath string

	// CacheDir receives the downloaded copy before parsing
	CacheDir string

	// Format overrides extension detection (csv, tsv, csv.sz, tsv.sz, xlsx, sqlite)
	Format string

	// Delimiter overrides the field separator of delimited formats
	Delimiter rune

	// Table is the SQLite table to read
	Table string

	// Sheet is the xlsx worksheet to read; the first sheet when empty
	Sheet string
}

// Loader reads the dataset once and hands out the same *types.Dataset on
// every later call. It is the single-entry cache shared by the engine and
// the HTTP handlers.
type Loader struct {
	storage storage.ObjectStorage
	opts    Options
	logger  *zap.Logger
	tracer  trace.Tracer

	mu      sync.RWMutex
	dataset *types.Dataset
	closed  bool

	group singleflight.Group
	reads atomic.Int64
}

// NewLoader creates a loader for the object described by opts.
func NewLoader(store storage.ObjectStorage, opts Options, logger *zap.Logger) (*Loader, error) {
	if store == nil {
		return nil, verrors.NewConfigurationError(verrors.CodeInvalidConfig, "object storage is required")
	}
	if strings.TrimSpace(opts.ObjectPath) == "" {
		return nil, verrors.NewConfigurationError(verrors.CodeInvalidConfig, "dataset object path is required")
	}
	if _, err := detectFormat(opts.ObjectPath, opts.Format); err != nil {
		return nil, err
	}
	if opts.CacheDir == "" {
		opts.CacheDir = os.TempDir()
	}
	if opts.Table == "" {
		opts.Table = "h1b_data"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Loader{
		storage: store,
		opts:    opts,
		logger:  logger.Named("dataset"),
		tracer:  otel.Tracer("github.com/visaboard/visaboard/internal/dataset"),
	}, nil
}

// Load returns the memoized dataset, reading it from storage on first use.
// Concurrent first calls share one read. Failures are not cached; the next
// call tries again.
func (l *Loader) Load(ctx context.Context) (*types.Dataset, error) {
	if ds, ok := l.cached(); ok {
		return ds, nil
	}

	v, err, _ := l.group.Do("dataset", func() (interface{}, error) {
		if ds, ok := l.cached(); ok {
			return ds, nil
		}

		ds, err := l.read(ctx)
		if err != nil {
			return nil, err
		}

		l.mu.Lock()
		defer l.mu.Unlock()
		if l.closed {
			return nil, verrors.NewInternalError("loader closed during load", nil)
		}
		l.dataset = ds
		return ds, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.Dataset), nil
}

// Loaded reports whether the dataset is in memory.
func (l *Loader) Loaded() bool {
	_, ok := l.cached()
	return ok
}

// Reads returns how many times the object has been read from storage.
func (l *Loader) Reads() int64 {
	return l.reads.Load()
}

// Close drops the cached dataset. Later calls to Load fail.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dataset = nil
	l.closed = true
	return nil
}

func (l *Loader) cached() (*types.Dataset, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dataset, l.dataset != nil
}

func (l *Loader) read(ctx context.Context) (ds *types.Dataset, err error) {
	ctx, span := l.tracer.Start(ctx, "dataset.Load",
		trace.WithAttributes(attribute.String("dataset.object", l.opts.ObjectPath)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	l.mu.RLock()
	closed := l.closed
	l.mu.RUnlock()
	if closed {
		return nil, verrors.NewInternalError("loader is closed", nil)
	}

	start := time.Now()
	l.reads.Add(1)

	localPath := filepath.Join(l.opts.CacheDir, cacheFileName(l.opts.ObjectPath))
	if err := l.storage.Download(ctx, l.opts.ObjectPath, localPath); err != nil {
		return nil, l.downloadError(err)
	}
	defer os.Remove(localPath)

	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, verrors.NewDataLoadError(verrors.CodeUnreadable,
			fmt.Sprintf("failed to read %s", l.opts.ObjectPath), err)
	}

	format, err := detectFormat(l.opts.ObjectPath, l.opts.Format)
	if err != nil {
		return nil, err
	}

	tbl, err := readTable(ctx, format, data, localPath, l.opts)
	if err != nil {
		return nil, err
	}

	records, err := parseTable(tbl.header, tbl.rows)
	if err != nil {
		return nil, err
	}

	ds = types.NewDataset(tbl.header, records, types.DatasetInfo{
		Source:      l.opts.ObjectPath,
		Fingerprint: fingerprint(data),
		LoadedAt:    time.Now().UTC(),
	})

	span.SetAttributes(
		attribute.String("dataset.format", string(format)),
		attribute.Int("dataset.records", ds.Len()),
	)
	l.logger.Info("dataset loaded",
		zap.String("object", l.opts.ObjectPath),
		zap.String("format", string(format)),
		zap.Int("records", ds.Len()),
		zap.String("fingerprint", ds.Fingerprint()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return ds, nil
}

func (l *Loader) downloadError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, storage.ErrObjectNotFound) {
		return verrors.NewDataLoadError(verrors.CodeObjectMissing,
			fmt.Sprintf("dataset object %s not found", l.opts.ObjectPath), err).
			WithDetails(map[string]interface{}{"object": l.opts.ObjectPath})
	}
	cause := verrors.NewStorageError(verrors.CodeDownloadFailed, "download failed", err)
	return verrors.NewDataLoadError(verrors.CodeUnreadable,
		fmt.Sprintf("failed to fetch %s", l.opts.ObjectPath), cause)
}

// cacheFileName flattens an object path into one file name.
func cacheFileName(objectPath string) string {
	name := strings.Trim(filepath.ToSlash(objectPath), "/")
	return strings.ReplaceAll(name, "/", "_")
}
