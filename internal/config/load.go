package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "XBOOKMARKS_"

func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Load defaults
	defaults := defaultsProvider(Defaults())
	if err := k.Load(defaults, nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// 2. Load from config file if it exists
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("loading config file: %w", err)
			}
		}
	} else {
		for _, path := range []string{"config.yaml", "config.yml"} {
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
					return nil, fmt.Errorf("loading config file: %w", err)
				}
				break
			}
		}
	}

	// 3. Load from environment variables (XBOOKMARKS_ prefix)
	keys := defaults.keys()
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return envKey(strings.ToLower(strings.TrimPrefix(s, envPrefix)), keys)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	// 4. Load from CLI flags
	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, fmt.Errorf("loading flags: %w", err)
		}
	}

	// 5. Unmarshal into struct
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
	}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// 6. Validate
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// envKey maps a lowercased env suffix such as "link_preview_fetch_timeout" to
// the dotted key "link_preview.fetch_timeout". Known keys win so that
// underscores inside section and leaf names survive; anything unknown falls
// back to replacing every underscore.
func envKey(name string, known []string) string {
	for _, key := range known {
		if strings.ReplaceAll(key, ".", "_") == name {
			return key
		}
	}
	return strings.ReplaceAll(name, "_", ".")
}

type defaultsProviderStruct struct {
	defaults *Config
}

func defaultsProvider(defaults *Config) *defaultsProviderStruct {
	return &defaultsProviderStruct{defaults: defaults}
}

func (d *defaultsProviderStruct) ReadBytes() ([]byte, error) {
	return nil, nil
}

func (d *defaultsProviderStruct) Read() (map[string]interface{}, error) {
	return map[string]interface{}{
		"server": map[string]interface{}{
			"host":            d.defaults.Server.Host,
			"port":            d.defaults.Server.Port,
			"allowed_origins": d.defaults.Server.AllowedOrigins,
			"tls": map[string]interface{}{
				"mode":      d.defaults.Server.TLS.Mode,
				"cert_file": d.defaults.Server.TLS.CertFile,
				"key_file":  d.defaults.Server.TLS.KeyFile,
				"auto": map[string]interface{}{
					"domain":    d.defaults.Server.TLS.Auto.Domain,
					"email":     d.defaults.Server.TLS.Auto.Email,
					"cache_dir": d.defaults.Server.TLS.Auto.CacheDir,
				},
			},
		},
		"database": map[string]interface{}{
			"path":           d.defaults.Database.Path,
			"max_open_conns": d.defaults.Database.MaxOpenConns,
			"busy_timeout":   d.defaults.Database.BusyTimeout.String(),
		},
		"log": map[string]interface{}{
			"level":  d.defaults.Log.Level,
			"format": d.defaults.Log.Format,
		},
		"link_preview": map[string]interface{}{
			"freshness":              d.defaults.LinkPreview.Freshness.String(),
			"fetch_timeout":          d.defaults.LinkPreview.FetchTimeout.String(),
			"fetch_attempts":         d.defaults.LinkPreview.FetchAttempts,
			"user_agent":             d.defaults.LinkPreview.UserAgent,
			"max_body_size":          d.defaults.LinkPreview.MaxBodySize,
			"shorteners":             d.defaults.LinkPreview.Shorteners,
			"block_private_networks": d.defaults.LinkPreview.BlockPrivateNetworks,
		},
		"rate_limit": map[string]interface{}{
			"enabled": d.defaults.RateLimit.Enabled,
			"link_preview": map[string]interface{}{
				"limit":  d.defaults.RateLimit.LinkPreview.Limit,
				"window": d.defaults.RateLimit.LinkPreview.Window.String(),
			},
		},
		"media": map[string]interface{}{
			"backend":    d.defaults.Media.Backend,
			"local_path": d.defaults.Media.LocalPath,
			"s3": map[string]interface{}{
				"endpoint":   d.defaults.Media.S3.Endpoint,
				"bucket":     d.defaults.Media.S3.Bucket,
				"access_key": d.defaults.Media.S3.AccessKey,
				"secret_key": d.defaults.Media.S3.SecretKey,
				"use_ssl":    d.defaults.Media.S3.UseSSL,
				"prefix":     d.defaults.Media.S3.Prefix,
			},
		},
		"telemetry": map[string]interface{}{
			"enabled":      d.defaults.Telemetry.Enabled,
			"endpoint":     d.defaults.Telemetry.Endpoint,
			"protocol":     d.defaults.Telemetry.Protocol,
			"service_name": d.defaults.Telemetry.ServiceName,
			"logs":         d.defaults.Telemetry.Logs,
		},
	}, nil
}

// keys returns every dotted leaf key of the defaults, longest first so the
// most specific match wins in envKey.
func (d *defaultsProviderStruct) keys() []string {
	m, _ := d.Read()
	var out []string
	var walk func(prefix string, m map[string]interface{})
	walk = func(prefix string, m map[string]interface{}) {
		for k, v := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if sub, ok := v.(map[string]interface{}); ok {
				walk(key, sub)
				continue
			}
			out = append(out, key)
		}
	}
	walk("", m)
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}

func SetupFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("xbookmarks", pflag.ContinueOnError)
	flags.String("config", "", "Path to config file")
	flags.String("server.host", "", "Server host")
	flags.Int("server.port", 0, "Server port")
	flags.StringSlice("server.allowed_origins", nil, "Allowed CORS origins")
	flags.String("server.tls.mode", "", "TLS mode: off, auto, or manual")
	flags.String("server.tls.cert_file", "", "TLS certificate file (manual mode)")
	flags.String("server.tls.key_file", "", "TLS key file (manual mode)")
	flags.String("server.tls.auto.domain", "", "Domain for automatic TLS (auto mode)")
	flags.String("server.tls.auto.email", "", "Contact email for Let's Encrypt (auto mode)")
	flags.String("server.tls.auto.cache_dir", "", "Certificate cache directory (auto mode)")
	flags.String("database.path", "", "Database path")
	flags.String("log.level", "", "Log level: debug, info, warn, error")
	flags.String("log.format", "", "Log format: text or json")
	flags.Duration("link_preview.freshness", 0, "How long cached link previews stay fresh")
	flags.Duration("link_preview.fetch_timeout", 0, "Timeout for link preview fetches")
	flags.String("media.backend", "", "Image store backend: local or s3")
	flags.String("media.local_path", "", "Directory holding tweet images (local backend)")
	flags.String("file", "", "Bookmarks JSON file (import command)")
	return flags
}
