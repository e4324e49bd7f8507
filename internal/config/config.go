// Package config provides the configuration for the visaboard service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "VISABOARD_"

// Config holds the configuration for the dashboard service.
type Config struct {
	// DataDir is the base directory for working files (downloaded datasets)
	DataDir string `json:"data_dir" yaml:"data_dir" env:"DATA_DIR"`

	// HTTP configuration
	HTTP HTTPConfig `json:"http" yaml:"http" envPrefix:"HTTP_"`

	// Dataset source configuration
	Dataset DatasetConfig `json:"dataset" yaml:"dataset" envPrefix:"DATASET_"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage" envPrefix:"STORAGE_"`

	// View configuration (sliders, preview, charts)
	View ViewConfig `json:"view" yaml:"view" envPrefix:"VIEW_"`

	// Log configuration
	Log LogConfig `json:"log" yaml:"log" envPrefix:"LOG_"`

	// Tracing configuration
	Tracing TracingConfig `json:"tracing" yaml:"tracing" envPrefix:"TRACING_"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the dashboard listen address
	Addr string `json:"addr" yaml:"addr" env:"ADDR"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout" env:"READ_TIMEOUT"`

	// WriteTimeout is the HTTP write timeout
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" env:"WRITE_TIMEOUT"`

	// IdleTimeout is the HTTP idle timeout
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
}

// DatasetConfig describes where the visa export lives and how to read it.
type DatasetConfig struct {
	// Path is the object path of the export inside the configured storage
	Path string `json:"path" yaml:"path" env:"PATH"`

	// Format overrides extension-based detection: csv, tsv, csv.sz, xlsx, sqlite
	Format string `json:"format" yaml:"format" env:"FORMAT"`

	// Delimiter overrides the field delimiter for delimited formats
	Delimiter string `json:"delimiter" yaml:"delimiter" env:"DELIMITER"`

	// Table is the table read from SQLite sources
	Table string `json:"table" yaml:"table" env:"TABLE"`

	// Sheet is the worksheet read from xlsx sources (first sheet when empty)
	Sheet string `json:"sheet" yaml:"sheet" env:"SHEET"`

	// CacheDir is where the object is downloaded before parsing
	CacheDir string `json:"cache_dir" yaml:"cache_dir" env:"CACHE_DIR"`

	// Preload loads the dataset at startup instead of on the first request
	Preload bool `json:"preload" yaml:"preload" env:"PRELOAD"`
}

// StorageConfig holds storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type" env:"TYPE"`

	// Path is the base directory for local storage
	Path string `json:"path" yaml:"path" env:"PATH"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3" envPrefix:"S3_"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket" env:"BUCKET"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region" env:"REGION"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint" env:"ENDPOINT"`

	// UsePathStyle enables path-style addressing (MinIO, LocalStack)
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style" env:"USE_PATH_STYLE"`
}

// SliderConfig is the range and default of one threshold slider.
type SliderConfig struct {
	Min     float64 `json:"min" yaml:"min" env:"MIN"`
	Max     float64 `json:"max" yaml:"max" env:"MAX"`
	Default float64 `json:"default" yaml:"default" env:"DEFAULT"`
	Step    float64 `json:"step" yaml:"step" env:"STEP"`
}

// Contains reports whether v lies within the slider range.
func (s SliderConfig) Contains(v float64) bool {
	return v >= s.Min && v <= s.Max
}

// ViewConfig holds dashboard view settings.
type ViewConfig struct {
	// Approval is the approval threshold slider
	Approval SliderConfig `json:"approval" yaml:"approval" envPrefix:"APPROVAL_"`

	// Denial is the denial threshold slider
	Denial SliderConfig `json:"denial" yaml:"denial" envPrefix:"DENIAL_"`

	// PreviewRows is the number of raw rows in the dataset preview
	PreviewRows int `json:"preview_rows" yaml:"preview_rows" env:"PREVIEW_ROWS"`

	// MaxPreviewRows caps the limit a client may request
	MaxPreviewRows int `json:"max_preview_rows" yaml:"max_preview_rows" env:"MAX_PREVIEW_ROWS"`

	// MaxBars caps the number of employers drawn in a bar chart (0 = no cap)
	MaxBars int `json:"max_bars" yaml:"max_bars" env:"MAX_BARS"`

	// ChartWidth and ChartHeight are the minimum SVG chart dimensions in pixels
	ChartWidth  int `json:"chart_width" yaml:"chart_width" env:"CHART_WIDTH"`
	ChartHeight int `json:"chart_height" yaml:"chart_height" env:"CHART_HEIGHT"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `json:"level" yaml:"level" env:"LEVEL"`

	// Format is json or console
	Format string `json:"format" yaml:"format" env:"FORMAT"`
}

// TracingConfig holds OpenTelemetry settings. Tracing is off unless
// Endpoint is set.
type TracingConfig struct {
	// Endpoint is the OTLP/HTTP collector URL
	Endpoint string `json:"endpoint" yaml:"endpoint" env:"ENDPOINT"`

	// ServiceName is reported as the service.name resource attribute
	ServiceName string `json:"service_name" yaml:"service_name" env:"SERVICE_NAME"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./.visaboard",
		HTTP: HTTPConfig{
			Addr:         ":8501",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Dataset: DatasetConfig{
			Path:    "data/h-1b-data-export.csv",
			Table:   "h1b_data",
			Preload: true,
		},
		Storage: StorageConfig{
			Type: "local",
			Path: ".",
		},
		View: ViewConfig{
			Approval:       SliderConfig{Min: 0, Max: 3500, Default: 50, Step: 1},
			Denial:         SliderConfig{Min: 0, Max: 50, Default: 2, Step: 1},
			PreviewRows:    20,
			MaxPreviewRows: 1000,
			MaxBars:        40,
			ChartWidth:     1024,
			ChartHeight:    512,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			ServiceName: "visaboard",
		},
	}
}

// Resolve fills paths derived from DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./.visaboard"
	}
	if c.Dataset.CacheDir == "" {
		c.Dataset.CacheDir = filepath.Join(c.DataDir, "cache")
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "."
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "visaboard"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}

	if strings.TrimSpace(c.Dataset.Path) == "" {
		return fmt.Errorf("dataset.path is required")
	}

	if c.Dataset.Delimiter != "" && len([]rune(c.Dataset.Delimiter)) != 1 {
		return fmt.Errorf("dataset.delimiter must be a single character, got %q", c.Dataset.Delimiter)
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}

	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	if err := validateSlider("view.approval", c.View.Approval); err != nil {
		return err
	}
	if err := validateSlider("view.denial", c.View.Denial); err != nil {
		return err
	}

	if c.View.PreviewRows <= 0 {
		return fmt.Errorf("view.preview_rows must be positive, got %d", c.View.PreviewRows)
	}
	if c.View.MaxPreviewRows < c.View.PreviewRows {
		return fmt.Errorf("view.max_preview_rows (%d) must be at least view.preview_rows (%d)",
			c.View.MaxPreviewRows, c.View.PreviewRows)
	}
	if c.View.MaxBars < 0 {
		return fmt.Errorf("view.max_bars must not be negative, got %d", c.View.MaxBars)
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Log.Format)
	}

	return nil
}

func validateSlider(name string, s SliderConfig) error {
	if s.Min > s.Max {
		return fmt.Errorf("%s: min %v is greater than max %v", name, s.Min, s.Max)
	}
	if !s.Contains(s.Default) {
		return fmt.Errorf("%s: default %v outside range [%v, %v]", name, s.Default, s.Min, s.Max)
	}
	if s.Step < 0 {
		return fmt.Errorf("%s: step must not be negative", name)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file on top of the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv overlays VISABOARD_* environment variables onto cfg.
// Unset variables leave the current values in place.
func LoadFromEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.DataDir, c.Dataset.CacheDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
