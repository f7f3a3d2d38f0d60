package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/cdm/internal/config"
	"github.com/JonMunkholm/cdm/internal/core"
	"github.com/JonMunkholm/cdm/internal/logging"
	"github.com/JonMunkholm/cdm/internal/resolver"
	"github.com/JonMunkholm/cdm/internal/store"
	"github.com/JonMunkholm/cdm/internal/web"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()

	configs := resolver.New(cfg.Pipeline.ConfigDir, logger)
	issues := configs.SelfCheck()
	for _, e := range issues.Errors {
		logger.Error("configuration error", "dir", configs.Dir(), "issue", e)
	}
	for _, w := range issues.Warnings {
		logger.Warn("configuration warning", "dir", configs.Dir(), "issue", w)
	}

	docs, err := store.Open(ctx, cfg.Database.URL, store.PoolConfig{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		logger.Error("failed to open document store", "error", err)
		os.Exit(1)
	}

	opts := []core.Option{core.WithLogger(logger)}
	webOpts := web.Options{
		Limiter:      core.NewLimiter(cfg.Pipeline.MaxConcurrent, cfg.Pipeline.MaxWait),
		MaxBodyBytes: cfg.Pipeline.MaxBodyBytes,
		RunTimeout:   cfg.Pipeline.Timeout,
		Rate:         cfg.Rate,
		Security:     cfg.Security,
	}
	if docs != nil {
		defer docs.Close()
		opts = append(opts, core.WithDocumentStore(docs))
		webOpts.Documents = docs
		logger.Info("document store opened", "driver", store.Driver(cfg.Database.URL))
	} else {
		logger.Warn("no database configured, documents will not be stored")
	}
	if cfg.Artifacts.Dir != "" {
		opts = append(opts, core.WithArtifactSink(store.NewArtifactDir(cfg.Artifacts.Dir, logger)))
		logger.Info("writing run artifacts", "dir", cfg.Artifacts.Dir)
	}

	service := core.NewService(configs, opts...)
	server := web.NewServer(service, webOpts)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := webOpts.Limiter.Status(); status.Active > 0 {
			logger.Info("waiting for documents in progress", "active", status.Active)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr(), cfg.Server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-done
	logger.Info("server stopped")
}
