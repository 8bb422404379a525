package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/p-n-ai/worldnet/internal/api"
	"github.com/p-n-ai/worldnet/internal/compare"
	"github.com/p-n-ai/worldnet/internal/country"
	"github.com/p-n-ai/worldnet/internal/offline"
	"github.com/p-n-ai/worldnet/internal/platform/cache"
	"github.com/p-n-ai/worldnet/internal/platform/config"
	"github.com/p-n-ai/worldnet/internal/platform/database"
	"github.com/p-n-ai/worldnet/internal/platform/logging"
	"github.com/p-n-ai/worldnet/internal/quiz"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Format, cfg.Log.Level, os.Stdout)
	if err != nil {
		slog.Error("failed to build logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// app holds the wired components and the resources to release on exit.
type app struct {
	server  *api.Server
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp wires storage, engines and the HTTP server from cfg. PostgreSQL and
// Redis are used only when their URLs are set.
func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	loader, err := country.NewLoader(cfg.DataPath)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	checks := map[string]api.HealthCheck{}

	var backend offline.Backend = offline.NewMemoryBackend(nil)
	var leaderboard quiz.Leaderboard = quiz.NewMemoryLeaderboard(quiz.DemoLeaderboard()...)
	if cfg.UsesRedis() {
		rc, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return nil, fmt.Errorf("connecting to cache: %w", err)
		}
		a.closers = append(a.closers, func() { rc.Close() })
		checks["cache"] = rc.HealthCheck

		backend = offline.NewRedisBackend(rc.Client)
		rl := quiz.NewRedisLeaderboard(rc.Client, "")
		if err := rl.Seed(ctx, quiz.DemoLeaderboard()); err != nil {
			slog.Warn("failed to seed leaderboard", "error", err)
		}
		leaderboard = rl
		slog.Info("cache connected")
	}

	var store quiz.SessionStore = quiz.NewMemoryStore()
	var events quiz.EventLogger = quiz.NopEventLogger{}
	if cfg.UsesPostgres() {
		db, err := database.New(ctx, cfg.Database.URL, database.Options{
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		checks["database"] = db.HealthCheck

		if err := db.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrating database: %w", err)
		}
		if store, err = quiz.NewPostgresStore(db.Pool); err != nil {
			return nil, err
		}
		events = quiz.NewPostgresEventLogger(db.Pool)
		slog.Info("database connected")
	}

	offlineCache, err := offline.New(backend, offline.Options{
		DefaultExpiry:      cfg.Offline.TTL,
		FreshFor:           cfg.Offline.FreshFor,
		DisableCompression: !cfg.Offline.Compress,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { offlineCache.Close() })

	if _, err := offlineCache.Preload(ctx, loader.All()); err != nil {
		slog.Warn("offline cache preload failed", "error", err)
	}

	var rnd *rand.Rand
	if cfg.Quiz.Seed != 0 {
		rnd = rand.New(rand.NewPCG(cfg.Quiz.Seed, cfg.Quiz.Seed))
	}
	service := quiz.NewService(quiz.ServiceConfig{
		Engine:       quiz.NewEngine(quiz.EngineConfig{Rand: rnd}),
		Countries:    offline.NewReadThrough(offlineCache, loader),
		Store:        store,
		Events:       events,
		Leaderboard:  leaderboard,
		DefaultCount: cfg.Quiz.DefaultQuestions,
	})

	a.server, err = api.New(api.Config{
		Catalog:        loader,
		Cache:          offlineCache,
		Quiz:           service,
		Comparator:     compare.NewComparator(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		HealthChecks:   checks,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      a.server.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
