package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/visaboard/visaboard/internal/app"
	"github.com/visaboard/visaboard/internal/observability"
)

var httpAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard over HTTP",
	Long: `Start the dashboard HTTP server.

The dataset is read once (at startup unless dataset.preload is false) and
every request re-aggregates it with the requested thresholds.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&httpAddr, "addr", "", "HTTP listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}

	logger, err := observability.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("starting visaboard",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("dataset", cfg.Dataset.Path),
		zap.String("storage", cfg.Storage.Type),
	)

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	return application.WaitForShutdown(ctx)
}
