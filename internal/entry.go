// Package internal provides the main application initialization and runtime logic.
package internal

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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/recipebox/internal/api"
	"github.com/starford/recipebox/internal/datastore"
	"github.com/starford/recipebox/internal/index"
	"github.com/starford/recipebox/internal/mcpserver"
)

// Run serves the HTTP API until a shutdown signal arrives or ctx ends.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = NewLogger(os.Stdout, cfg.App.LogLevel)
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_dir", cfg.Store.Dir),
		slog.String("store_file", cfg.Store.File),
		slog.Bool("index_enabled", cfg.Index.Enabled),
		slog.Bool("watch_enabled", cfg.Watch.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	stack, err := Open(cfg, logger, app.registry)
	if err != nil {
		return err
	}
	defer func() {
		if err := stack.Close(); err != nil {
			logger.Error("close failed", slog.String("error", err.Error()))
		}
	}()

	handler := newRootRouter(cfg, stack, app.registry, logger)
	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)
	startBackground(gCtx, g, cfg, stack, app.registry, logger)

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

// errShutdown cancels the group context so background tasks stop with the
// server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = NewLogger(os.Stderr, cfg.App.LogLevel)
	}
	slog.SetDefault(logger)

	stack, err := Open(cfg, logger, app.registry)
	if err != nil {
		return err
	}
	defer stack.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)
	startBackground(gCtx, g, cfg, stack, app.registry, logger)

	srv := mcpserver.New(api.NewService(stack.Repo, stack.Index(), logger))
	serveErr := srv.ServeStdio()
	cancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("background task failed", slog.String("error", err.Error()))
	}
	return serveErr
}

// startBackground runs the index follower and the document watcher, as
// configured, until ctx ends.
func startBackground(ctx context.Context, g *errgroup.Group, cfg *Config, stack *Stack, reg prometheus.Registerer, logger *slog.Logger) {
	if stack.DB != nil {
		synced := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recipebox",
			Subsystem: "index",
			Name:      "synced_recipes_total",
			Help:      "Recipes written to or removed from the search index, by kind.",
		}, []string{"kind"})
		if reg == nil {
			reg = prometheus.NewRegistry()
		}
		if err := reg.Register(synced); err != nil {
			logger.Warn("index metrics not registered", slog.String("error", err.Error()))
		}
		g.Go(func() error {
			err := index.Follow(ctx, stack.DB, stack.Repo, logger, func(s index.SyncStats) {
				synced.WithLabelValues("indexed").Add(float64(s.Indexed))
				synced.WithLabelValues("moved").Add(float64(s.Moved))
				synced.WithLabelValues("removed").Add(float64(s.Removed))
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if cfg.Watch.Enabled {
		g.Go(func() error {
			if err := datastore.Watch(ctx, stack.Store, stack.Provider.Root(), cfg.Watch.Debounce, logger); err != nil {
				logger.Warn("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}
}

// newRootRouter mounts health checks, metrics and the API.
func newRootRouter(cfg *Config, stack *Stack, reg *prometheus.Registry, logger *slog.Logger) http.Handler {
	svc := api.NewService(stack.Repo, stack.Index(), logger)
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, api.EventsHandler(stack.Repo))

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
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := stack.Repo.Recipes(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	return r
}
