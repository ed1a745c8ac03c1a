package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hassviz/hassviz/internal/analytics"
	"github.com/hassviz/hassviz/internal/compare"
	"github.com/hassviz/hassviz/internal/logging"
	"github.com/hassviz/hassviz/internal/panel"
	"github.com/hassviz/hassviz/internal/preview"
	"github.com/hassviz/hassviz/internal/registry"
	"github.com/hassviz/hassviz/internal/relationship"
	"github.com/hassviz/hassviz/internal/scheduler"
	"github.com/hassviz/hassviz/internal/search"
	"github.com/hassviz/hassviz/internal/store"
	"github.com/hassviz/hassviz/internal/streaming"
	"github.com/hassviz/hassviz/internal/validation"
	"github.com/hassviz/hassviz/pkg/mcp"
)

func main() {
	mode := "serve"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	switch mode {
	case "serve", "mcp":
	case "version", "--version", "-v":
		printVersion()
		return
	default:
		fmt.Fprintf(os.Stderr, "usage: hassviz [serve|mcp|version]\n")
		os.Exit(2)
	}

	cfg := loadConfig()
	logger := newLogger(cfg.LogLevel)

	if err := run(mode, cfg, logger); err != nil {
		logger.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(mode string, cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := streaming.NewMemoryHub()

	reg := registry.New(cfg.AutomationsPath, hub, logger)
	if err := reg.Load(ctx); err != nil {
		return fmt.Errorf("load automations: %w", err)
	}
	logger.Info("automations loaded",
		slog.String("path", cfg.AutomationsPath),
		slog.Int("count", reg.Count()),
	)

	validator, err := validation.NewAutomationValidator()
	if err != nil {
		return fmt.Errorf("init validator: %w", err)
	}

	idx := search.NewIndex(logger)
	if err := idx.Build(ctx, reg.List()); err != nil {
		return fmt.Errorf("build search index: %w", err)
	}

	previewSvc, err := preview.NewService(logger)
	if err != nil {
		return fmt.Errorf("init preview engines: %w", err)
	}

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	sched := scheduler.NewScheduler(logger)
	if err := registerJobs(sched, cfg, reg, idx, hub); err != nil {
		return fmt.Errorf("register jobs: %w", err)
	}

	deps := serviceDeps{
		registry:  reg,
		validator: validator,
		index:     idx,
		compare:   compare.NewComparator(logger),
		analyzer:  relationship.NewAnalyzer(logger),
		preview:   previewSvc,
		analytics: analytics.NewService(st, logger),
		scheduler: sched,
		store:     st,
		hub:       hub,
		logger:    logger,
	}

	if mode == "mcp" {
		return runMCP(ctx, deps)
	}
	return runServe(ctx, cfg, deps)
}

type serviceDeps struct {
	registry  *registry.Registry
	validator *validation.AutomationValidator
	index     *search.Index
	compare   *compare.Comparator
	analyzer  *relationship.Analyzer
	preview   *preview.Service
	analytics *analytics.Service
	scheduler *scheduler.Scheduler
	store     store.Store
	hub       streaming.EventHub
	logger    *slog.Logger
}

// runServe runs the HTTP panel plus the background scheduler.
func runServe(ctx context.Context, cfg Config, deps serviceDeps) error {
	if err := deps.scheduler.Start(ctx); err != nil {
		return err
	}
	defer deps.scheduler.Stop()

	// Headless mode: scheduler only, no HTTP surface.
	if !cfg.Panel {
		deps.logger.Info("panel disabled, running headless")
		<-ctx.Done()
		return nil
	}

	srv := panel.NewServer(panel.Deps{
		Registry:  deps.registry,
		Validator: deps.validator,
		Index:     deps.index,
		Compare:   deps.compare,
		Analyzer:  deps.analyzer,
		Preview:   deps.preview,
		Analytics: deps.analytics,
		Scheduler: deps.scheduler,
		Store:     deps.store,
		Hub:       deps.hub,
		Logger:    deps.logger,
	})

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		deps.logger.Info("panel listening", slog.String("addr", cfg.ListenAddr))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// runMCP serves the stdio MCP transport with hub notifications forwarded
// to watching sessions.
func runMCP(ctx context.Context, deps serviceDeps) error {
	if err := deps.scheduler.Start(ctx); err != nil {
		return err
	}
	defer deps.scheduler.Stop()

	srv := mcp.NewVizServer(mcp.VizServerDeps{
		Registry:  deps.registry,
		Validator: deps.validator,
		Index:     deps.index,
		Compare:   deps.compare,
		Analyzer:  deps.analyzer,
		Preview:   deps.preview,
		Analytics: deps.analytics,
		Scheduler: deps.scheduler,
		Store:     deps.store,
		Hub:       deps.hub,
		Logger:    deps.logger,
	})

	go func() {
		if err := srv.Notifier().Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			deps.logger.Warn("notifier stopped", slog.String("error", err.Error()))
		}
	}()

	deps.logger.Info("mcp server listening on stdio")
	return srv.Serve(ctx)
}

// openStore opens the libSQL store and runs migrations. A missing parent
// directory is created; an empty db_path disables persistence.
func openStore(ctx context.Context, cfg Config, logger *slog.Logger) (store.Store, error) {
	if cfg.DBPath == "" {
		logger.Info("persistence disabled")
		return nil, nil
	}
	if err := os.MkdirAll(hassvizDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	st, err := store.NewLibSQLStore("file:" + cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return st, nil
}

// registerJobs wires the recurring maintenance tasks.
func registerJobs(sched *scheduler.Scheduler, cfg Config, reg *registry.Registry, idx *search.Index, hub streaming.EventHub) error {
	if err := sched.Register("registry-reload", cfg.ReloadCron, func(ctx context.Context) error {
		return reg.Reload(ctx)
	}); err != nil {
		return err
	}
	return sched.Register("index-rebuild", cfg.ReloadCron, func(ctx context.Context) error {
		if err := idx.Build(ctx, reg.List()); err != nil {
			return err
		}
		return hub.Publish(ctx, streaming.StreamEvent{
			EventType: streaming.EventIndexRefreshed,
			Payload:   map[string]any{"count": reg.Count()},
		})
	})
}

// newLogger builds the root slog logger with correlation attrs.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(handler))
}
