// Package config loads the wanikani-dict command configuration from flags,
// WANIKANI_DICT_* environment variables and an optional config file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/wanikani-dict/pkg/client"
	"github.com/Sternrassler/wanikani-dict/pkg/logging"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// DefaultEnvPrefix prefixes every environment variable.
	DefaultEnvPrefix = "WANIKANI_DICT"

	DefaultOut      = "wanikani.zip"
	DefaultCacheTTL = 24 * time.Hour
	DefaultMaxPages = 500
)

// Keys shared by flags, environment variables and config files. A flag
// named "redis-addr" maps to WANIKANI_DICT_REDIS_ADDR.
const (
	KeyConfigFile  = "config"
	KeyToken       = "token"
	KeyBaseURL     = "base-url"
	KeyAPIRevision = "api-revision"
	KeyOut         = "out"
	KeyLogLevel    = "log-level"
	KeyLogPretty   = "log-pretty"
	KeyRedisAddr   = "redis-addr"
	KeyCacheTTL    = "cache-ttl"
	KeyRefresh     = "refresh"
	KeyMetricsAddr = "metrics-addr"
	KeyMaxPages    = "max-pages"
)

// ErrMissingToken is returned when no API token is configured.
var ErrMissingToken = errors.New("WaniKani API token is required (--token or WANIKANI_DICT_TOKEN)")

type (
	Config struct {
		WaniKani
		Output
		Log
		Store
		Metrics
	}

	WaniKani struct {
		Token       string
		BaseURL     string
		APIRevision string
		MaxPages    int
	}
	Output struct {
		Path string // Archive file, "-" for stdout
	}
	Log struct {
		Level  logging.LogLevel
		Pretty bool
	}
	Store struct {
		RedisAddr string        // Empty disables archive reuse
		TTL       time.Duration // 0 keeps archives until replaced
		Refresh   bool          // Rebuild even when a stored archive exists
	}
	Metrics struct {
		Addr string // Empty disables the metrics server
	}
)

// Load builds the configuration. Flags in fs take precedence over the
// environment, which takes precedence over the config file. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.NewWithOptions(
		viper.EnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_")),
	)

	v.SetEnvPrefix(DefaultEnvPrefix)
	v.AutomaticEnv()

	v.SetDefault(KeyBaseURL, client.DefaultBaseURL)
	v.SetDefault(KeyAPIRevision, "")
	v.SetDefault(KeyOut, DefaultOut)
	v.SetDefault(KeyLogLevel, string(logging.LevelInfo))
	v.SetDefault(KeyLogPretty, false)
	v.SetDefault(KeyRedisAddr, "")
	v.SetDefault(KeyCacheTTL, DefaultCacheTTL.String())
	v.SetDefault(KeyRefresh, false)
	v.SetDefault(KeyMetricsAddr, "")
	v.SetDefault(KeyMaxPages, DefaultMaxPages)

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("unable to bind flags: %w", err)
		}
	}

	if file := v.GetString(KeyConfigFile); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	level, err := logging.ParseLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyLogLevel, err)
	}

	cfg := &Config{
		WaniKani: WaniKani{
			Token:       strings.TrimSpace(v.GetString(KeyToken)),
			BaseURL:     v.GetString(KeyBaseURL),
			APIRevision: v.GetString(KeyAPIRevision),
			MaxPages:    v.GetInt(KeyMaxPages),
		},
		Output: Output{
			Path: v.GetString(KeyOut),
		},
		Log: Log{
			Level:  level,
			Pretty: v.GetBool(KeyLogPretty),
		},
		Store: Store{
			RedisAddr: v.GetString(KeyRedisAddr),
			TTL:       v.GetDuration(KeyCacheTTL),
			Refresh:   v.GetBool(KeyRefresh),
		},
		Metrics: Metrics{
			Addr: v.GetString(KeyMetricsAddr),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Token == "" {
		return ErrMissingToken
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid %s %q: must be an absolute http(s) URL", KeyBaseURL, c.BaseURL)
	}

	if c.Path == "" {
		return fmt.Errorf("%s cannot be empty", KeyOut)
	}
	if c.TTL < 0 {
		return fmt.Errorf("%s cannot be negative: %s", KeyCacheTTL, c.TTL)
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("%s cannot be negative: %d", KeyMaxPages, c.MaxPages)
	}

	return nil
}

// ClientConfig returns the enabled client configuration for a build.
func (c *Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig(c.Token)
	cfg.BaseURL = c.BaseURL
	cfg.APIRevision = c.APIRevision
	cfg.Enabled = true
	return cfg
}
