package config

import "time"

type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Database    DatabaseConfig    `koanf:"database"`
	Log         LogConfig         `koanf:"log"`
	LinkPreview LinkPreviewConfig `koanf:"link_preview"`
	RateLimit   RateLimitConfig   `koanf:"rate_limit"`
	Media       MediaConfig       `koanf:"media"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
}

type ServerConfig struct {
	Host           string    `koanf:"host"`
	Port           int       `koanf:"port"`
	AllowedOrigins []string  `koanf:"allowed_origins"`
	TLS            TLSConfig `koanf:"tls"`
}

type TLSConfig struct {
	Mode     string        `koanf:"mode"`      // "off", "auto", "manual"
	CertFile string        `koanf:"cert_file"` // manual mode
	KeyFile  string        `koanf:"key_file"`  // manual mode
	Auto     AutoTLSConfig `koanf:"auto"`
}

type AutoTLSConfig struct {
	Domain   string `koanf:"domain"`
	Email    string `koanf:"email"`
	CacheDir string `koanf:"cache_dir"`
}

type DatabaseConfig struct {
	Path         string        `koanf:"path"`
	MaxOpenConns int           `koanf:"max_open_conns"`
	BusyTimeout  time.Duration `koanf:"busy_timeout"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// LinkPreviewConfig controls the Open Graph preview resolver.
type LinkPreviewConfig struct {
	// Freshness is how long a cached preview is served before a refetch.
	Freshness            time.Duration `koanf:"freshness"`
	FetchTimeout         time.Duration `koanf:"fetch_timeout"`
	FetchAttempts        int           `koanf:"fetch_attempts"`
	UserAgent            string        `koanf:"user_agent"`
	MaxBodySize          int64         `koanf:"max_body_size"`
	Shorteners           []string      `koanf:"shorteners"`
	BlockPrivateNetworks bool          `koanf:"block_private_networks"`
}

type RateLimitConfig struct {
	Enabled     bool              `koanf:"enabled"`
	LinkPreview RateLimitEndpoint `koanf:"link_preview"`
}

type RateLimitEndpoint struct {
	Limit  int           `koanf:"limit"`
	Window time.Duration `koanf:"window"`
}

// MediaConfig selects where tweet images are read from.
type MediaConfig struct {
	Backend   string   `koanf:"backend"` // "local" or "s3"
	LocalPath string   `koanf:"local_path"`
	S3        S3Config `koanf:"s3"`
}

type S3Config struct {
	Endpoint  string `koanf:"endpoint"`
	Bucket    string `koanf:"bucket"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	UseSSL    bool   `koanf:"use_ssl"`
	Prefix    string `koanf:"prefix"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	Protocol    string `koanf:"protocol"` // "http" or "grpc"
	ServiceName string `koanf:"service_name"`
	// Logs also ships slog records to the collector.
	Logs bool `koanf:"logs"`
}

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3001,
			TLS: TLSConfig{
				Mode: "off",
				Auto: AutoTLSConfig{
					CacheDir: "./data/certs",
				},
			},
		},
		Database: DatabaseConfig{
			Path:         "./data/bookmarks.db",
			MaxOpenConns: 4,
			BusyTimeout:  5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		LinkPreview: LinkPreviewConfig{
			Freshness:            24 * time.Hour,
			FetchTimeout:         10 * time.Second,
			FetchAttempts:        1,
			UserAgent:            "Mozilla/5.0 (compatible; X-Bookmarks-Bot/1.0)",
			MaxBodySize:          1 << 20, // 1MB
			Shorteners:           []string{"t.co", "bit.ly", "tinyurl.com"},
			BlockPrivateNetworks: true,
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			LinkPreview: RateLimitEndpoint{Limit: 60, Window: time.Minute},
		},
		Media: MediaConfig{
			Backend:   "local",
			LocalPath: "./static/images",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Protocol:    "http",
			ServiceName: "xbookmarks",
			Logs:        true,
		},
	}
}
