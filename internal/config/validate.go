package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

func Validate(cfg *Config) error {
	var errs []error

	// Server validation
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535"))
	}
	for i, origin := range cfg.Server.AllowedOrigins {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("server.allowed_origins[%d] %q is not a valid URL with scheme", i, origin))
		}
	}

	// TLS validation
	switch cfg.Server.TLS.Mode {
	case "", "off":
	case "auto":
		if cfg.Server.TLS.Auto.Domain == "" {
			errs = append(errs, fmt.Errorf("server.tls.auto.domain is required when tls mode is auto"))
		}
		if cfg.Server.TLS.Auto.CacheDir == "" {
			errs = append(errs, fmt.Errorf("server.tls.auto.cache_dir is required when tls mode is auto"))
		}
	case "manual":
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, fmt.Errorf("server.tls.cert_file is required when tls mode is manual"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, fmt.Errorf("server.tls.key_file is required when tls mode is manual"))
		}
	default:
		errs = append(errs, fmt.Errorf("server.tls.mode must be off, auto, or manual"))
	}

	// Database validation
	if cfg.Database.Path == "" {
		errs = append(errs, fmt.Errorf("database.path is required"))
	}
	if cfg.Database.MaxOpenConns < 1 {
		errs = append(errs, fmt.Errorf("database.max_open_conns must be at least 1"))
	}
	if cfg.Database.BusyTimeout < 0 {
		errs = append(errs, fmt.Errorf("database.busy_timeout must not be negative"))
	}

	// Log validation
	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn, or error"))
	}
	switch cfg.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json"))
	}

	// Link preview validation
	if cfg.LinkPreview.Freshness < time.Minute {
		errs = append(errs, fmt.Errorf("link_preview.freshness must be at least 1m"))
	}
	if cfg.LinkPreview.FetchTimeout < time.Second {
		errs = append(errs, fmt.Errorf("link_preview.fetch_timeout must be at least 1s"))
	}
	if cfg.LinkPreview.FetchAttempts < 1 || cfg.LinkPreview.FetchAttempts > 5 {
		errs = append(errs, fmt.Errorf("link_preview.fetch_attempts must be between 1 and 5"))
	}
	if strings.TrimSpace(cfg.LinkPreview.UserAgent) == "" {
		errs = append(errs, fmt.Errorf("link_preview.user_agent is required"))
	}
	if cfg.LinkPreview.MaxBodySize < 1024 {
		errs = append(errs, fmt.Errorf("link_preview.max_body_size must be at least 1KB"))
	}
	for i, host := range cfg.LinkPreview.Shorteners {
		if strings.TrimSpace(host) == "" || strings.Contains(host, "/") {
			errs = append(errs, fmt.Errorf("link_preview.shorteners[%d] %q must be a bare host name", i, host))
		}
	}

	// Rate limit validation (only when enabled)
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.LinkPreview.Limit < 1 {
			errs = append(errs, fmt.Errorf("rate_limit.link_preview.limit must be at least 1"))
		}
		if cfg.RateLimit.LinkPreview.Window < time.Second {
			errs = append(errs, fmt.Errorf("rate_limit.link_preview.window must be at least 1s"))
		}
	}

	// Media validation
	switch cfg.Media.Backend {
	case "local":
		if cfg.Media.LocalPath == "" {
			errs = append(errs, fmt.Errorf("media.local_path is required when media backend is local"))
		}
	case "s3":
		if cfg.Media.S3.Endpoint == "" {
			errs = append(errs, fmt.Errorf("media.s3.endpoint is required when media backend is s3"))
		}
		if cfg.Media.S3.Bucket == "" {
			errs = append(errs, fmt.Errorf("media.s3.bucket is required when media backend is s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("media.backend must be local or s3"))
	}

	// Telemetry validation (only when enabled)
	if cfg.Telemetry.Enabled {
		u, err := url.Parse(cfg.Telemetry.Endpoint)
		if cfg.Telemetry.Endpoint == "" || err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("telemetry.endpoint must be a URL with scheme when telemetry is enabled"))
		}
		switch cfg.Telemetry.Protocol {
		case "http", "grpc":
		default:
			errs = append(errs, fmt.Errorf("telemetry.protocol must be http or grpc"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
