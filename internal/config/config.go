// Package config loads the kernel host's settings: built-in defaults, then
// an optional YAML file, then KERNEL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/G1D0/httpkernel/internal/observe"
)

// EnvPrefix marks environment variables read by Load. A double underscore
// separates key levels: KERNEL_SERVER__DRAIN_TIMEOUT sets server.drain_timeout.
const EnvPrefix = "KERNEL_"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Routes    RoutesConfig    `koanf:"routes"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Breaker   BreakerConfig   `koanf:"breaker"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Tracing   TracingConfig   `koanf:"tracing"`
}

type ServerConfig struct {
	Addr         string        `koanf:"addr"`
	DrainTimeout time.Duration `koanf:"drain_timeout"`
}

type LogConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
}

type RoutesConfig struct {
	// File overrides the application's default route file when set.
	File string `koanf:"file"`
	// ReloadInterval is how often the route file is polled; 0 disables it.
	ReloadInterval time.Duration `koanf:"reload_interval"`
}

type RateLimitConfig struct {
	Burst int     `koanf:"burst"`
	Rate  float64 `koanf:"rate"` // tokens per second
}

type BreakerConfig struct {
	Threshold int           `koanf:"threshold"`
	Cooldown  time.Duration `koanf:"cooldown"`
}

type MetricsConfig struct {
	Path string `koanf:"path"`
}

type TracingConfig struct {
	Enabled bool `koanf:"enabled"`
}

var defaults = map[string]any{
	"server.addr":            ":9000",
	"server.drain_timeout":   "30s",
	"log.level":              "info",
	"routes.reload_interval": "0s",
	"ratelimit.burst":        100,
	"ratelimit.rate":         10.0,
	"breaker.threshold":      5,
	"breaker.cooldown":       "30s",
	"metrics.path":           "/metrics",
	"tracing.enabled":        false,
}

// Load reads the configuration. path names a YAML file; an empty path or a
// missing file is not an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	for key, v := range defaults {
		if !k.Exists(key) {
			k.Set(key, v)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate rejects settings the host cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is empty"))
	}
	if c.Server.DrainTimeout <= 0 {
		errs = append(errs, errors.New("server.drain_timeout must be positive"))
	}
	if _, err := observe.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Routes.ReloadInterval < 0 {
		errs = append(errs, errors.New("routes.reload_interval must not be negative"))
	}
	if c.RateLimit.Burst < 1 {
		errs = append(errs, errors.New("ratelimit.burst must be at least 1"))
	}
	if c.RateLimit.Rate <= 0 {
		errs = append(errs, errors.New("ratelimit.rate must be positive"))
	}
	if c.Breaker.Threshold < 1 {
		errs = append(errs, errors.New("breaker.threshold must be at least 1"))
	}
	if c.Breaker.Cooldown <= 0 {
		errs = append(errs, errors.New("breaker.cooldown must be positive"))
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("metrics.path %q must start with /", c.Metrics.Path))
	}
	return errors.Join(errs...)
}
