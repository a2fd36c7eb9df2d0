package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/hookrelay/internal/adapter/driven/chat"
	githubadapter "github.com/ericfisherdev/hookrelay/internal/adapter/driven/github"
	sqliteadapter "github.com/ericfisherdev/hookrelay/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/hookrelay/internal/adapter/driving/http"
	"github.com/ericfisherdev/hookrelay/internal/application"
	"github.com/ericfisherdev/hookrelay/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on malformed env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"poll_interval", cfg.PollInterval,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire driven adapters.
	routingStore := sqliteadapter.NewRoutingRepo(db)
	credentialStore := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
	if cfg.SecretKey == nil {
		slog.Info("HOOKRELAY_SECRET_KEY not set, credential storage disabled")
	}

	rate := application.NewRateLimiter()
	host := githubadapter.NewClient(rate)
	dispatcher := chat.NewDispatcher()

	// 6. Wire the routing pipeline.
	mutes := application.NewMuteRegistry()
	digest := application.NewDigestBuffer()
	stats := application.NewStats()
	formatter := application.NewDefaultFormatter()

	legacy := application.LegacyRoute{
		Secret:         cfg.WebhookSecret,
		DefaultChannel: cfg.DefaultChannel,
		ChannelByEvent: cfg.ChannelByEvent,
	}

	router := application.NewRouterService(routingStore, formatter, dispatcher, mutes, digest, stats, legacy)

	// 7. Create and start the poll service.
	pollSvc := application.NewPollService(
		host,
		routingStore,
		credentialStore,
		router,
		rate,
		cfg.GitHubToken,
		cfg.PollInterval,
	)
	go pollSvc.Start(ctx)

	// 8. HTTP server with webhook ingress and management API.
	handler := httphandler.NewHandler(routingStore, router, pollSvc, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(handler, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("hookrelay started",
		"listen_addr", cfg.ListenAddr,
		"poll_interval", cfg.PollInterval,
	)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
