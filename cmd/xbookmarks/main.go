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

	"github.com/xbookmarks/api/internal/app"
	"github.com/xbookmarks/api/internal/config"
	"github.com/xbookmarks/api/internal/importer"
	"github.com/xbookmarks/api/internal/logging"
	"github.com/xbookmarks/api/internal/media"
	"github.com/xbookmarks/api/internal/tweet"
)

func main() {
	// Check for subcommands before flag parsing
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "import":
			runImport(os.Args[2:])
			return
		case "backfill-images":
			runBackfill(os.Args[2:])
			return
		case "serve":
			os.Args = append(os.Args[:1], os.Args[2:]...)
		}
	}

	cfg := loadConfig(os.Args[1:])

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create application
	application, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("error creating application", "error", err)
		os.Exit(1)
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		slog.Info("received shutdown signal")
		cancel()

		// Give in-flight previews time to finish
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := application.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during shutdown", "error", err)
		}
	}()

	// Start application
	if err := application.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}

// loadConfig parses flags (supports --config, --database.path, etc.), loads
// the configuration and installs the logger. It exits on failure.
func loadConfig(args []string) *config.Config {
	flags := config.SetupFlags()
	if err := flags.Parse(args); err != nil {
		slog.Error("error parsing flags", "error", err)
		os.Exit(1)
	}

	configPath, _ := flags.GetString("config")

	cfg, err := config.Load(configPath, flags)
	if err != nil {
		slog.Error("error loading config", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Log)
	return cfg
}

func runImport(args []string) {
	flags := config.SetupFlags()
	if err := flags.Parse(args); err != nil {
		slog.Error("error parsing flags", "error", err)
		os.Exit(1)
	}
	path, _ := flags.GetString("file")
	if path == "" {
		fmt.Fprintln(os.Stderr, "usage: xbookmarks import --file bookmarks.json [--database.path PATH]")
		os.Exit(2)
	}

	cfg := loadConfig(args)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open database and run migrations (no full app startup)
	db, err := app.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		slog.Error("error opening database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	res, err := importer.Run(ctx, db.DB, path)
	if err != nil {
		slog.Error("error importing bookmarks", "error", err)
		os.Exit(1)
	}
	fmt.Printf("imported %d of %d bookmarks (%d already present, %d failed)\n",
		res.Imported, res.Total, res.Skipped, res.Errors)
}

func runBackfill(args []string) {
	cfg := loadConfig(args)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := app.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		slog.Error("error opening database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store, err := app.NewMediaStore(cfg.Media)
	if err != nil {
		slog.Error("error opening media store", "error", err)
		os.Exit(1)
	}

	res, err := media.Backfill(ctx, store, tweet.NewRepository(db.DB))
	if err != nil {
		slog.Error("error backfilling images", "error", err)
		os.Exit(1)
	}
	fmt.Printf("checked %d tweets: %d updated, %d without images, %d errors\n",
		res.Checked, res.Updated, res.Skipped, res.Errors)
}
