// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/starford/rigmerge/internal/batch"
	"github.com/starford/rigmerge/internal/bvh"
	"github.com/starford/rigmerge/internal/curveops"
	"github.com/starford/rigmerge/internal/glb"
	"github.com/starford/rigmerge/internal/library"
	"github.com/starford/rigmerge/internal/source"
	"github.com/starford/rigmerge/internal/watch"
)

// Run merges the configured source directory once, or keeps rebuilding it
// until ctx is cancelled or a shutdown signal arrives in watch mode.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	if app.sourceDir == "" {
		return fmt.Errorf("source directory is required")
	}

	cfg := app.config

	logger := newLogger(cfg.App, app.logOutput)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("source_dir", app.sourceDir),
		slog.String("reference_clip", cfg.Pipeline.ReferenceClip),
		slog.String("cadence", cfg.Pipeline.Cadence),
		slog.Bool("export", cfg.Output.Export),
		slog.Bool("watch", app.watch),
		slog.String("log_level", cfg.App.LogLevel.String()))

	src, err := source.OpenDir(app.sourceDir, cfg.Source.Extension)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}

	orch := newOrchestrator(cfg, logger)

	if !app.watch {
		if _, err := orch.Run(src); err != nil {
			logger.Error("Batch failed", slog.String("error", err.Error()))
			return err
		}
		return nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	watchCtx, stop := context.WithCancel(gCtx)
	defer stop()

	w := watch.New(src,
		func() error {
			_, err := orch.Run(src)
			return err
		},
		watch.WithDebounce(cfg.Watch.Debounce),
		watch.WithLogger(logger))

	g.Go(func() error {
		return w.Run(watchCtx)
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-watchCtx.Done():
			logger.Info("Context cancelled, stopping watcher")
		}
		stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Watcher stopped successfully")
	return nil
}

func newLogger(cfg ApplicationConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == LogFormatText {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func newOrchestrator(cfg *Config, logger *slog.Logger) *batch.Orchestrator {
	opts := []batch.Option{
		batch.WithConventions(cfg.Pipeline.Conventions()),
		batch.WithCadence(curveops.Cadence(cfg.Pipeline.Cadence)),
		batch.WithLoopSuffix(cfg.Pipeline.LoopSuffix),
		batch.WithReferenceClip(cfg.Pipeline.ReferenceClip),
		batch.WithOutputExt(cfg.Output.ProjectExt, cfg.Output.ExportExt),
		batch.WithLogger(logger),
	}
	if cfg.Output.Export {
		opts = append(opts, batch.WithExporter(glb.NewExporter(glb.WithLogger(logger))))
	}
	importer := bvh.NewImporter(bvh.WithObjectScale(cfg.Pipeline.ImportScale))
	return batch.New(importer, library.NewStore(logger), opts...)
}
