// Package config loads and defaults the static configuration of the cache
// core: the timeframe table (timeframe.go), upstream retry/timeout
// parameters, rate-limit budgets, and the hot-key and cooldown windows. The
// route table is not configurable here; it is fixed in internal/httpapi.
// Loading mirrors the teacher's ProvidersConfig: read a
// YAML file if one is given, validate it, otherwise run on built-in
// defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RouteClass distinguishes chart-data routes (candles/deltas/streams) from
// general routes (quotes/search/prewarm/health) for rate-limit accounting.
type RouteClass string

const (
	RouteClassChartData RouteClass = "chart-data"
	RouteClassGeneral   RouteClass = "general"
)

// RateLimitConfig holds the per-route-class budgets and fresh-cache boost
// multipliers described in spec.md §4.9.
type RateLimitConfig struct {
	ChartDataRPM      int `yaml:"chart_data_rpm"`
	GeneralRPM        int `yaml:"general_rpm"`
	ChartDataFreshMul int `yaml:"chart_data_fresh_multiplier"`
	GeneralFreshMul   int `yaml:"general_fresh_multiplier"`
	BucketSoftLimit   int `yaml:"bucket_soft_limit"`
}

// UpstreamConfig holds retry/timeout/throttle parameters for the upstream
// client (spec.md §4.2).
type UpstreamConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	AttemptTimeout  time.Duration `yaml:"attempt_timeout"`
	BackoffPerTry   time.Duration `yaml:"backoff_per_try"`
	ThrottleRPS     float64       `yaml:"throttle_rps"`
	ThrottleBurst   int           `yaml:"throttle_burst"`
	MetadataTTL     time.Duration `yaml:"metadata_ttl"`
	BreakerFailures uint32        `yaml:"breaker_consecutive_failures"`
	BreakerOpenFor  time.Duration `yaml:"breaker_open_for"`
}

// CacheBehaviorConfig holds the builder/refresher/cooldown knobs (spec.md
// §4.5, §4.6).
type CacheBehaviorConfig struct {
	CooldownWindow  time.Duration `yaml:"cooldown_window"`
	BuildWaitBudget time.Duration `yaml:"build_wait_budget"`
	RefreshTick     time.Duration `yaml:"refresh_tick"`
	HotWindow       time.Duration `yaml:"hot_window"`
}

// ServerConfig holds the HTTP listen configuration.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// Config is the fully resolved, validated configuration for one process.
type Config struct {
	Server     ServerConfig        `yaml:"server"`
	RateLimit  RateLimitConfig     `yaml:"rate_limit"`
	Upstream   UpstreamConfig      `yaml:"upstream"`
	Cache      CacheBehaviorConfig `yaml:"cache"`
	UpstreamURL string             `yaml:"upstream_url"`
}

// Default returns the built-in configuration, matching the numeric defaults
// named throughout spec.md §4.
func Default() Config {
	port := 8080
	if v := os.Getenv("QUOTECACHE_PORT"); v != "" {
		if p, err := parsePort(v); err == nil {
			port = p
		}
	}

	return Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         port,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0, // streaming routes hold connections open indefinitely
			IdleTimeout:  120 * time.Second,
		},
		RateLimit: RateLimitConfig{
			ChartDataRPM:      600,
			GeneralRPM:        60,
			ChartDataFreshMul: 12,
			GeneralFreshMul:   6,
			BucketSoftLimit:   8000,
		},
		Upstream: UpstreamConfig{
			MaxAttempts:     3,
			AttemptTimeout:  8 * time.Second,
			BackoffPerTry:   350 * time.Millisecond,
			ThrottleRPS:     5,
			ThrottleBurst:   10,
			MetadataTTL:     6 * time.Hour,
			BreakerFailures: 5,
			BreakerOpenFor:  30 * time.Second,
		},
		Cache: CacheBehaviorConfig{
			CooldownWindow:  60 * time.Second,
			BuildWaitBudget: 12 * time.Second,
			RefreshTick:     5 * time.Second,
			HotWindow:       10 * time.Minute,
		},
		UpstreamURL: "https://query1.finance.example.com",
	}
}

// Load reads path as YAML over top of Default(), the way
// LoadProvidersConfig layers a YAML document over library defaults. An empty
// path returns Default() untouched.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations that would make the service misbehave in
// ways that are hard to diagnose at runtime.
func (c Config) Validate() error {
	if c.RateLimit.ChartDataRPM <= 0 || c.RateLimit.GeneralRPM <= 0 {
		return fmt.Errorf("rate_limit: rpm values must be positive")
	}
	if c.Upstream.MaxAttempts <= 0 {
		return fmt.Errorf("upstream: max_attempts must be positive")
	}
	if c.Cache.BuildWaitBudget <= 0 {
		return fmt.Errorf("cache: build_wait_budget must be positive")
	}
	return nil
}

func parsePort(v string) (int, error) {
	var p int
	_, err := fmt.Sscanf(v, "%d", &p)
	return p, err
}
