package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/xbookmarks/api/internal/category"
	"github.com/xbookmarks/api/internal/config"
	"github.com/xbookmarks/api/internal/database"
	"github.com/xbookmarks/api/internal/handler"
	"github.com/xbookmarks/api/internal/linkpreview"
	"github.com/xbookmarks/api/internal/logging"
	"github.com/xbookmarks/api/internal/media"
	"github.com/xbookmarks/api/internal/ratelimit"
	"github.com/xbookmarks/api/internal/server"
	"github.com/xbookmarks/api/internal/telemetry"
	"github.com/xbookmarks/api/internal/tweet"
)

type App struct {
	Config      *config.Config
	DB          *database.DB
	Server      *server.Server
	RateLimiter *ratelimit.Limiter
	Telemetry   *telemetry.Telemetry
}

// OpenDatabase opens the configured database and applies pending migrations.
// It is shared by the server and the offline commands.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(cfg.Path, database.Options{
		MaxOpenConns: cfg.MaxOpenConns,
		BusyTimeout:  cfg.BusyTimeout,
	})
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewMediaStore builds the image store selected by cfg.Backend.
func NewMediaStore(cfg config.MediaConfig) (media.Store, error) {
	switch cfg.Backend {
	case "s3":
		store, err := media.NewS3Store(media.S3Options{
			Endpoint:  cfg.S3.Endpoint,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			UseSSL:    cfg.S3.UseSSL,
			Prefix:    cfg.S3.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "local", "":
		return media.NewLocalStore(cfg.LocalPath), nil
	default:
		return nil, fmt.Errorf("unknown media backend %q", cfg.Backend)
	}
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// Telemetry first so instrumented components pick up the providers
	tel, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return nil, err
	}
	if h := tel.LogHandler(); h != nil {
		slog.SetDefault(slog.New(logging.Fanout(slog.Default().Handler(), h)))
	}

	db, err := OpenDatabase(ctx, cfg.Database)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}

	closeAll := func() {
		_ = db.Close()
		_ = tel.Shutdown(ctx)
	}

	// Initialize repositories
	tweetRepo := tweet.NewRepository(db.DB)
	categoryRepo := category.NewRepository(db.DB)
	if err := categoryRepo.EnsureDefaults(ctx); err != nil {
		closeAll()
		return nil, fmt.Errorf("seeding default categories: %w", err)
	}

	previewStore := linkpreview.NewRepository(db.DB, cfg.LinkPreview.Freshness)
	resolver := linkpreview.NewResolver(
		previewStore,
		linkpreview.NewHTTPClient(cfg.LinkPreview.FetchTimeout, cfg.LinkPreview.BlockPrivateNetworks),
		linkpreview.Options{
			UserAgent:     cfg.LinkPreview.UserAgent,
			MaxBodySize:   cfg.LinkPreview.MaxBodySize,
			Shorteners:    cfg.LinkPreview.Shorteners,
			FetchAttempts: uint(cfg.LinkPreview.FetchAttempts),
		},
	)

	mediaStore, err := NewMediaStore(cfg.Media)
	if err != nil {
		closeAll()
		return nil, err
	}

	h := handler.New(handler.Dependencies{
		TweetRepo:    tweetRepo,
		CategoryRepo: categoryRepo,
		Resolver:     resolver,
		MediaStore:   mediaStore,
	})

	// Build rate limiter (nil if disabled)
	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewLimiter([]ratelimit.Rule{
			{Method: "GET", Path: "/api/link-preview", Limit: cfg.RateLimit.LinkPreview.Limit, Window: cfg.RateLimit.LinkPreview.Window},
		})
	}

	router := server.NewRouter(h, limiter, cfg.Server.AllowedOrigins)

	tlsOpts := server.TLSOptions{
		Mode:     cfg.Server.TLS.Mode,
		CertFile: cfg.Server.TLS.CertFile,
		KeyFile:  cfg.Server.TLS.KeyFile,
		Domain:   cfg.Server.TLS.Auto.Domain,
		Email:    cfg.Server.TLS.Auto.Email,
		CacheDir: cfg.Server.TLS.Auto.CacheDir,
	}
	if tlsOpts.Mode == "auto" {
		if err := os.MkdirAll(tlsOpts.CacheDir, 0700); err != nil {
			closeAll()
			return nil, fmt.Errorf("creating TLS cache directory: %w", err)
		}
	}

	srv := server.New(cfg.Server.Host, cfg.Server.Port, router, tlsOpts)

	return &App{
		Config:      cfg,
		DB:          db,
		Server:      srv,
		RateLimiter: limiter,
		Telemetry:   tel,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	// Start rate limiter cleanup
	if a.RateLimiter != nil {
		go func() {
			ticker := time.NewTicker(10 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					a.RateLimiter.Cleanup()
				}
			}
		}()
	}

	slog.Info("starting xbookmarks backend",
		"addr", a.Server.Addr(),
		"database", a.Config.Database.Path,
		"media", a.Config.Media.Backend,
		"tls", a.Server.TLSMode(),
		"telemetry", a.Config.Telemetry.Enabled,
	)

	return a.Server.Start()
}

// Shutdown stops the server, then flushes telemetry, then closes the database.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.Server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	if err := a.Telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}
	if err := a.DB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}
	return errors.Join(errs...)
}
