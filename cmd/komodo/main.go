// Komodo core server — owns the resource state, dispatches executions to
// periphery agents, reconciles declared TOML resources, and monitors the
// fleet.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/komodo-sh/komodo/pkg/action"
	"github.com/komodo-sh/komodo/pkg/alert"
	"github.com/komodo-sh/komodo/pkg/api"
	"github.com/komodo-sh/komodo/pkg/builder"
	"github.com/komodo-sh/komodo/pkg/cleanup"
	"github.com/komodo-sh/komodo/pkg/config"
	"github.com/komodo-sh/komodo/pkg/database"
	"github.com/komodo-sh/komodo/pkg/execute"
	"github.com/komodo-sh/komodo/pkg/monitor"
	"github.com/komodo-sh/komodo/pkg/permission"
	"github.com/komodo-sh/komodo/pkg/resource"
	"github.com/komodo-sh/komodo/pkg/schedule"
	"github.com/komodo-sh/komodo/pkg/state"
	"github.com/komodo-sh/komodo/pkg/syncer"
	"github.com/komodo-sh/komodo/pkg/update"
	"github.com/komodo-sh/komodo/pkg/version"
	"github.com/komodo-sh/komodo/pkg/webhook"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// setupLogging replaces the default slog handler per the logging config.
func setupLogging(cfg config.LoggingConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func main() {
	configPath := flag.String("config",
		getEnv("KOMODO_CONFIG_PATH", "/config/config.toml"),
		"Path to the core config file")
	flag.Parse()

	// Load .env next to nothing in particular; deployments mount one at the
	// working directory.
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env")
	}

	slog.Info("Starting Komodo core",
		"version", version.Full(),
		"config_path", *configPath)

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(*configPath)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.Logging)

	// 2. Connect to the database and ensure indexes
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(context.Background()); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	if err := db.EnsureIndexes(ctx); err != nil {
		slog.Error("Failed to ensure indexes", "error", err)
		os.Exit(1)
	}

	// 3. Startup recovery: close out updates left in progress by an unclean
	// shutdown, bootstrap the system users and the first admin.
	if err := db.RecoverInterruptedUpdates(ctx); err != nil {
		slog.Error("Failed to recover interrupted updates", "error", err)
		// Non-fatal — continue
	}
	if err := db.EnsureSystemUsers(ctx); err != nil {
		slog.Error("Failed to ensure system users", "error", err)
		os.Exit(1)
	}
	if cfg.InitAdminUsername != "" {
		if err := db.EnsureInitAdmin(ctx, cfg.InitAdminUsername, cfg.InitAdminPassword); err != nil {
			slog.Error("Failed to ensure init admin", "error", err)
			os.Exit(1)
		}
	}

	// 4. Shared state: caches, guards, hubs, periphery factory
	st := state.New(cfg, db)

	// 5. Core components
	store := resource.NewStore(db)
	registry := resource.NewRegistry(store)
	perms := permission.NewEngine(db, cfg.TransparentMode)
	journal := update.NewJournal(db, st.UpdateHub)
	alerts := alert.NewManager(db, store)
	sync := syncer.New(db, store, registry, st, cfg.SyncDirectory)
	actions := action.NewRunner(db, cfg)
	builders := builder.NewManager(cfg)
	exec := execute.New(st, store, registry, perms, journal, sync, actions, alerts, builders)
	listener := webhook.New(st, store, sync, exec)
	slog.Info("Core components initialized")

	// Alerts aimed at resources deleted while the core was down resolve now.
	if err := alerts.ResolveStale(ctx); err != nil {
		slog.Error("Failed to resolve stale alerts", "error", err)
		// Non-fatal — continue
	}

	// 6. Background loops: monitor sweep, schedules, retention pruning
	mon := monitor.New(st, store, alerts, exec)
	mon.Start(ctx)
	defer mon.Stop()

	sched := schedule.New(store, alerts, exec)
	sched.Start(ctx)
	defer sched.Stop()

	retention := cleanup.NewService(&cfg.Retention, db)
	retention.Start(ctx)
	defer retention.Stop()
	slog.Info("Background loops started",
		"monitoring_interval", cfg.Monitoring.Interval().String())

	// 7. HTTP server
	server := api.NewServer(cfg, api.Deps{
		DB:       db,
		State:    st,
		Store:    store,
		Registry: registry,
		Perms:    perms,
		Journal:  journal,
		Alerts:   alerts,
		Syncer:   sync,
		Exec:     exec,
		Listener: listener,
	})

	addr := fmt.Sprintf("%s:%d", cfg.BindIP, cfg.Port)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Komodo core started", "title", cfg.Title)

	// 8. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 9. Graceful shutdown. Deferred stops handle the background loops;
	// in-flight executions finalize their updates or get closed out by the
	// next startup's recovery pass.
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
