package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/chat-realtime/internal/config"
	"github.com/rickgao/chat-realtime/internal/database"
	"github.com/rickgao/chat-realtime/internal/history"
	"github.com/rickgao/chat-realtime/internal/identity"
	"github.com/rickgao/chat-realtime/internal/logging"
	"github.com/rickgao/chat-realtime/internal/metrics"
	"github.com/rickgao/chat-realtime/internal/relay"
	"github.com/rickgao/chat-realtime/internal/version"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "configs/relay.local.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("relay failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadWithDefaults(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateRelay(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logger, err := logging.Init(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	logger.Info("starting relay", version.Attr(), "config", configPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openHistory(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var opts []relay.Option
	opts = append(opts, relay.WithLogger(logger))
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts = append(opts, relay.WithMetrics(metrics.NewRelay(reg), reg))
	}

	verifier := identity.NewVerifier(cfg.Identity.Secret, cfg.Identity.Issuer)
	srv := relay.NewServer(cfg.RelayServerConfig(), verifier, store, opts...)

	httpServer := &http.Server{
		Addr:              cfg.Relay.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("relay listening", "addr", cfg.Relay.ListenAddr, "metrics", cfg.Metrics.Enabled)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Refuse new upgrades first; closed clients reconnect immediately.
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("relay stopped")
	return err
}

// openHistory selects Postgres when a database host is configured and the
// in-memory store otherwise. The returned func releases it.
func openHistory(ctx context.Context, cfg *config.Config, logger *slog.Logger) (history.Store, func(), error) {
	if !cfg.Database.Postgres.Enabled() {
		logger.Info("using in-memory history", "per_conversation", cfg.Relay.HistorySize)
		return history.NewMemory(cfg.Relay.HistorySize), func() {}, nil
	}

	db := cfg.Database.Postgres
	logger.Info("connecting to database", "host", db.Host, "port", db.Port, "database", db.Name)

	pool, err := database.Connect(ctx, db)
	if err != nil {
		return nil, nil, err
	}

	pg := history.NewPostgres(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	wcfg := history.DefaultWriterConfig()
	wcfg.CacheSize = cfg.Relay.HistorySize
	writer := history.NewWriter(wcfg, pg, logger)
	if err := writer.Start(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	return writer, func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := writer.Stop(stopCtx); err != nil {
			logger.Warn("history writer stop", "error", err)
		}
		stats := writer.Stats()
		logger.Info("history flushed", "inserts", stats.Inserts, "conflicts", stats.Conflicts, "errors", stats.Errors)
		pool.Close()
	}, nil
}
