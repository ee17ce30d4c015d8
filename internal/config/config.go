// Package config defines service configuration structures and loading hooks.
package config

import (
	"time"

	"github.com/okian/audiomatch/internal/domain/scoring"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`

	Catalog CatalogConfig `koanf:"catalog"`
	Cache   CacheConfig   `koanf:"cache"`
	Scoring ScoringConfig `koanf:"scoring"`
	Engine  EngineConfig  `koanf:"engine"`
	HTTP    HTTPConfig    `koanf:"http"`
}

// CatalogConfig selects and tunes the component catalog.
type CatalogConfig struct {
	// Backend is memory or sqlite.
	Backend    string `koanf:"backend" validate:"oneof=memory sqlite"`
	SQLitePath string `koanf:"sqlite_path" validate:"required_if=Backend sqlite"`
	// SeedFile is a JSON component list loaded at startup. Empty uses the
	// bundled catalog; set SkipSeed to start from whatever the backend holds.
	SeedFile     string        `koanf:"seed_file"`
	SkipSeed     bool          `koanf:"skip_seed"`
	QueryTimeout time.Duration `koanf:"query_timeout" validate:"gte=0"`
	Breaker      BreakerConfig `koanf:"breaker"`
}

// BreakerConfig tunes the catalog circuit breaker.
type BreakerConfig struct {
	Enabled      bool          `koanf:"enabled"`
	MaxRequests  uint32        `koanf:"max_requests" validate:"gte=1"`
	Interval     time.Duration `koanf:"interval" validate:"gte=0"`
	Timeout      time.Duration `koanf:"timeout" validate:"gt=0"`
	MinRequests  uint32        `koanf:"min_requests"`
	FailureRatio float64       `koanf:"failure_ratio" validate:"gt=0,lte=1"`
}

// CacheConfig selects the response cache.
type CacheConfig struct {
	// Backend is none, memory or badger.
	Backend    string        `koanf:"backend" validate:"oneof=none memory badger"`
	TTL        time.Duration `koanf:"ttl" validate:"gte=0"`
	MaxEntries int           `koanf:"max_entries" validate:"gte=0"`
	// BadgerDir is the badger data directory. Empty keeps it in memory.
	BadgerDir  string        `koanf:"badger_dir"`
	GCInterval time.Duration `koanf:"gc_interval" validate:"gte=0"`
}

// ScoringConfig selects the ranking strategy and its weights.
type ScoringConfig struct {
	Strategy      string          `koanf:"strategy" validate:"oneof=price_fit performance_tier"`
	TargetCeiling float64         `koanf:"target_ceiling" validate:"gt=0,lte=100"`
	Weights       scoring.Weights `koanf:"weights"`
}

// EngineConfig tunes the recommendation engine.
type EngineConfig struct {
	AutoSuggestCount int `koanf:"autosuggest_count" validate:"gte=0,lte=10"`
	ProbeConcurrency int `koanf:"probe_concurrency" validate:"gte=0"`
}

// HTTPConfig tunes the HTTP server.
type HTTPConfig struct {
	// RateLimitRequests per RateLimitWindow per client IP. Zero disables it.
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gte=0"`
	ReadTimeout       time.Duration `koanf:"read_timeout" validate:"gte=0"`
	WriteTimeout      time.Duration `koanf:"write_timeout" validate:"gte=0"`
}

// New returns a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		ShutdownTimeout: 10 * time.Second,
		Catalog: CatalogConfig{
			Backend:      "memory",
			SQLitePath:   "data/catalog.db",
			QueryTimeout: 2 * time.Second,
			Breaker: BreakerConfig{
				Enabled:      true,
				MaxRequests:  3,
				Interval:     time.Minute,
				Timeout:      30 * time.Second,
				MinRequests:  10,
				FailureRatio: 0.6,
			},
		},
		Cache: CacheConfig{
			Backend:    "memory",
			TTL:        5 * time.Minute,
			MaxEntries: 10_000,
			BadgerDir:  "data/cache",
			GCInterval: 10 * time.Minute,
		},
		Scoring: ScoringConfig{
			Strategy:      "price_fit",
			TargetCeiling: 90,
			Weights:       scoring.DefaultWeights(),
		},
		Engine: EngineConfig{
			AutoSuggestCount: 3,
			ProbeConcurrency: 0,
		},
		HTTP: HTTPConfig{
			RateLimitRequests: 120,
			RateLimitWindow:   time.Minute,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      15 * time.Second,
		},
	}
}

// ScoringWeights returns the weight table with TargetCeiling applied.
func (c *Config) ScoringWeights() scoring.Weights {
	w := c.Scoring.Weights
	if c.Scoring.TargetCeiling > 0 {
		w.TargetCeiling = c.Scoring.TargetCeiling
	}
	return w
}
