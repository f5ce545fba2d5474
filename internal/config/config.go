// Package config loads gateway configuration from an optional YAML file with
// environment-variable overrides, and watches the file for changes.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server       ServerConfig       `koanf:"server"`
	TenantSlug   TenantSlugConfig   `koanf:"tenantslug"`
	RateLimit    RateLimitConfig    `koanf:"ratelimit"`
	ControlPlane ControlPlaneConfig `koanf:"controlplane"`
	Upstream     UpstreamConfig     `koanf:"upstream"`
	Include      IncludeConfig      `koanf:"include"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// TenantSlugConfig governs slug extraction. These fields are hot-reloadable.
type TenantSlugConfig struct {
	// Enabled turns slug extraction off entirely when false.
	Enabled bool `koanf:"enabled"`
	// RequirePrefix selects strict mode: requests without a resolvable slug
	// are rejected with 404. When false (migration mode) they pass through.
	RequirePrefix bool `koanf:"require_prefix"`
	// PlatformPaths bypass slug extraction entirely.
	PlatformPaths []string `koanf:"platform_paths"`
}

// RateLimitConfig governs the per-IP limiter. Window and MaxRequests are
// hot-reloadable.
type RateLimitConfig struct {
	Window        time.Duration `koanf:"window"`
	MaxRequests   int           `koanf:"max_requests"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
	// Paths are the rate-limited path prefixes (unauthenticated endpoints).
	Paths []string `koanf:"paths"`
}

type ControlPlaneConfig struct {
	BaseURL         string        `koanf:"base_url"`
	RefreshInterval time.Duration `koanf:"refresh_interval"`
	Timeout         time.Duration `koanf:"timeout"`
}

type UpstreamConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

type IncludeConfig struct {
	MaxConcurrent int           `koanf:"max_concurrent"`
	FetchTimeout  time.Duration `koanf:"fetch_timeout"`
	CacheSize     int           `koanf:"cache_size"`
	CacheTTL      time.Duration `koanf:"cache_ttl"`
}

// defaults applied for keys absent from both file and environment.
var defaults = map[string]interface{}{
	"server.port":                   8080,
	"server.request_timeout":        "30s",
	"tenantslug.enabled":            true,
	"tenantslug.require_prefix":     false,
	"tenantslug.platform_paths":     []string{"/actuator", "/internal", "/platform"},
	"ratelimit.window":              "60s",
	"ratelimit.max_requests":        100,
	"ratelimit.sweep_interval":      "120s",
	"ratelimit.paths":               []string{"/actuator/health"},
	"controlplane.base_url":         "http://localhost:8081",
	"controlplane.refresh_interval": "60s",
	"controlplane.timeout":          "10s",
	"upstream.base_url":             "http://localhost:8082",
	"upstream.timeout":              "30s",
	"include.max_concurrent":        8,
	"include.fetch_timeout":         "5s",
	"include.cache_size":            1024,
	"include.cache_ttl":             "10m",
}

// Load reads configuration from the YAML file at path (skipped when path is
// empty or the file does not exist), then overlays EMF_* environment
// variables. A double underscore in an env name separates koanf path
// segments: EMF_TENANTSLUG__REQUIRE_PREFIX sets tenantslug.require_prefix.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider("EMF_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "EMF_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
