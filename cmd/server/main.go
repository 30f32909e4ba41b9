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

	"github.com/JonMunkholm/gridcheck/internal/config"
	"github.com/JonMunkholm/gridcheck/internal/core"
	"github.com/JonMunkholm/gridcheck/internal/core/rules"
	"github.com/JonMunkholm/gridcheck/internal/logging"
	"github.com/JonMunkholm/gridcheck/internal/store"
	"github.com/JonMunkholm/gridcheck/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded", "config", cfg.String())

	throttling, err := cfg.Throttling()
	if err != nil {
		slog.Error("invalid throttling configuration", "error", err, "code", core.MapError(err).Code)
		os.Exit(1)
	}

	ctx := context.Background()

	// Optional stores backing asynchronous rules
	var db rules.Querier
	if cfg.Database.URL != "" {
		pool, err := store.ConnectPostgres(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		db = pool
	}

	var rdb rules.SetChecker
	if cfg.Redis.URL != "" {
		client, err := store.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err, "code", core.MapError(err).Code)
			os.Exit(1)
		}
		defer client.Close()
		rdb = client
	}

	grid, err := core.NewGrid(buildColumns(cfg.Grid), buildRules(cfg, db, rdb), throttling, cfg.Grid.InitialRows)
	if err != nil {
		slog.Error("failed to create grid", "error", err, "code", core.MapError(err).Code)
		os.Exit(1)
	}

	status := grid.Status()
	slog.Info("grid ready",
		"rows", status.Rows,
		"rules", status.Rules,
		"rule_columns", grid.RuleColumns(),
		"max_concurrent", status.Limiter.MaxConcurrent,
		"throttling", throttling.Enabled,
	)

	server := web.NewServer(grid, cfg.Server)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Ends event streams and waits for in-flight validations
		if pending := grid.PendingValidations(); pending > 0 {
			slog.Info("cancelling pending validations", "pending", pending)
		}
		if err := grid.Close(shutdownCtx); err != nil {
			slog.Warn("grid did not drain in time", "error", err)
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
