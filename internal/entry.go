// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
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

	"github.com/starford/doodle/internal/api"
	"github.com/starford/doodle/internal/feed"
	"github.com/starford/doodle/internal/index"
	"github.com/starford/doodle/internal/mcpserver"
	"github.com/starford/doodle/internal/noteservice"
	"github.com/starford/doodle/internal/session"
	"github.com/starford/doodle/internal/sse"
	"github.com/starford/doodle/internal/storage"
)

func newApplication(opts []Option, defaultOutput io.Writer) (*application, error) {
	app := &application{logOutput: defaultOutput}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// newLogger builds the structured JSON logger and makes it the default.
func (a *application) newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// backend is the storage side shared by the server and the MCP command.
type backend struct {
	store *storage.FS
	db    *index.DB
	bus   feed.Bus
	svc   *noteservice.Service
}

func (b *backend) Close() {
	if err := b.bus.Close(); err != nil {
		slog.Warn("close feed", slog.String("error", err.Error()))
	}
	if err := b.db.Close(); err != nil {
		slog.Warn("close index", slog.String("error", err.Error()))
	}
}

func openBackend(cfg *Config, logger *slog.Logger) (*backend, error) {
	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	bus, err := newBus(cfg.Feed, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init feed: %w", err)
	}

	return &backend{
		store: store,
		db:    db,
		bus:   bus,
		svc:   noteservice.NewService(store, db, bus, noteservice.WithLogger(logger)),
	}, nil
}

func newBus(cfg FeedConfig, logger *slog.Logger) (feed.Bus, error) {
	switch cfg.Driver {
	case FeedDriverRedis:
		return feed.NewRedis(cfg.URL, cfg.Channel, logger)
	default:
		return feed.NewLocal(logger), nil
	}
}

// watcherUpdate turns a vault change into a feed update.
func watcherUpdate(ev index.Event) feed.Update {
	return feed.Update{
		NoteID:  ev.ID,
		Content: ev.Content,
		Source:  feed.SourceWatcher,
		Created: ev.Kind == index.EventCreated,
		Deleted: ev.Kind == index.EventDeleted,
	}
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stdout)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("feed_driver", cfg.Feed.Driver),
		slog.Duration("debounce", cfg.Editor.Debounce),
		slog.String("log_level", cfg.App.LogLevel.String()))

	be, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer be.Close()

	// SSE broker.
	broker := sse.NewBroker(cfg.Events.ListThrottle)
	defer broker.Close()

	sessions := session.NewManager(be.svc,
		session.WithDelay(cfg.Editor.Debounce),
		session.WithIdleTTL(cfg.Editor.IdleTTL),
		session.WithLogger(logger),
		session.WithReplaceFunc(broker.PublishSessionReplaced),
	)

	apiRouter := api.NewRouter(be.svc, sessions, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := ready(req.Context(), be); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	sessionUpdates, err := be.bus.Subscribe(gCtx)
	if err != nil {
		return fmt.Errorf("subscribe sessions: %w", err)
	}
	eventUpdates, err := be.bus.Subscribe(gCtx)
	if err != nil {
		return fmt.Errorf("subscribe events: %w", err)
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	// Vault changes made outside the service reach sessions and SSE clients
	// through the feed.
	g.Go(func() error {
		return index.Watch(gCtx, be.db, be.store, cfg.Vault.Path, logger, func(ev index.Event) {
			if err := be.bus.Publish(gCtx, watcherUpdate(ev)); err != nil {
				logger.Warn("publish vault change", slog.String("id", ev.ID), slog.String("error", err.Error()))
			}
		})
	})

	g.Go(func() error {
		return sessions.Run(gCtx, sessionUpdates)
	})

	g.Go(func() error {
		return broker.Consume(gCtx, eventUpdates)
	})

	g.Go(func() error {
		return sessions.RunSweeper(gCtx, cfg.Editor.SweepInterval)
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Shut down on signal or when any goroutine fails.
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

func ready(ctx context.Context, be *backend) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := be.db.Ping(ctx); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	if p, ok := be.bus.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("feed: %w", err)
		}
	}
	return nil
}

// RunMCP serves the agent tools over stdio until stdin closes or a signal
// arrives.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stderr)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	be, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer be.Close()

	if cfg.Feed.Driver == FeedDriverLocal {
		logger.Info("feed driver is local; open editor sessions see agent edits through the vault watcher")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := mcpserver.New(be.svc)
	logger.Info("MCP server starting on stdio", slog.String("vault_path", cfg.Vault.Path))
	if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
