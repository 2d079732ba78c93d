// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/folio/internal/api"
	"github.com/starford/folio/internal/mcpserver"
	"github.com/starford/folio/internal/notestore"
	"github.com/starford/folio/internal/publish"
	"github.com/starford/folio/internal/sse"
)

func setup(opts []Option) (*application, *slog.Logger, error) {
	app := &application{logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return app, logger, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, logger, err := setup(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.Duration("scheduler_interval", cfg.Scheduler.Interval),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	comps, err := buildComponents(cfg, logger, broker.PublishNoteEvent)
	if err != nil {
		return err
	}
	defer func() {
		if err := comps.Close(); err != nil {
			logger.Error("close components", slog.String("error", err.Error()))
		}
	}()

	apiRouter := api.NewRouter(api.RouterConfig{
		Service:          comps.service,
		Engine:           comps.engine,
		Images:           comps.images,
		AuthEnabled:      cfg.Auth.AuthEnabled(),
		Token:            cfg.Auth.Token,
		CronSecret:       cfg.Auth.CronSecret,
		SweepConcurrency: cfg.Scheduler.Concurrency,
		Events:           broker,
	})

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Broadcast edits made to note files outside the process.
	if cfg.Store.Driver == StoreDriverFiles && cfg.Store.Watch {
		g.Go(func() error {
			if err := notestore.Watch(gCtx, cfg.Store.NotesDir, logger, broker.PublishNoteEvent); err != nil {
				logger.Error("watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// In-process publish trigger.
	if cfg.Scheduler.Interval > 0 {
		g.Go(func() error {
			return comps.engine.RunScheduler(gCtx, cfg.Scheduler.Interval, cfg.Scheduler.Concurrency)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// SSE streams only end when the broker closes.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group context so background loops stop together
// with the HTTP server.
var errShutdown = errors.New("shutdown")

// PublishDue runs one scheduled-publish sweep and writes the JSON report to out.
func PublishDue(ctx context.Context, out io.Writer, opts ...Option) (*publish.SweepReport, error) {
	app, logger, err := setup(opts)
	if err != nil {
		return nil, err
	}
	comps, err := buildComponents(app.config, logger, nil)
	if err != nil {
		return nil, err
	}
	defer comps.Close()

	report, err := comps.engine.Sweep(ctx, comps.service.Now(), app.config.Scheduler.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("sweep: %w", err)
	}
	if out != nil {
		if err := writeReport(out, report); err != nil {
			return report, err
		}
	}
	return report, nil
}

// ServeMCP serves the MCP tools over stdin/stdout until the client disconnects.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, logger, err := setup(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	comps, err := buildComponents(app.config, logger, nil)
	if err != nil {
		return err
	}
	defer comps.Close()

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(comps.service, comps.engine, comps.images).Listen(ctx, os.Stdin, os.Stdout)
}

func writeReport(w io.Writer, report *publish.SweepReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
