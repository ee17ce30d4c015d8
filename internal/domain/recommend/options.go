package recommend

import (
	"time"

	"github.com/okian/audiomatch/internal/domain/budget"
	"github.com/okian/audiomatch/internal/domain/power"
	"github.com/okian/audiomatch/internal/domain/scoring"
	"github.com/okian/audiomatch/pkg/logger"
)

// Defaults.
const (
	DefaultCacheTTL        = 5 * time.Minute
	DefaultAutoSuggest     = 3
	autoSuggestBudgetShare = 0.25
	powerTargetPicks       = 3
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithCache enables response caching. A non-positive ttl keeps the default.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(e *Engine) {
		e.cache = c
		if ttl > 0 {
			e.cacheTTL = ttl
		}
	}
}

// WithOwnership sets the resolver used for existing gear.
func WithOwnership(r OwnershipResolver) Option {
	return func(e *Engine) {
		e.ownership = r
	}
}

// WithStrategy sets the scoring strategy.
func WithStrategy(s scoring.Strategy) Option {
	return func(e *Engine) {
		if s != nil {
			e.strategy = s
		}
	}
}

// WithAllocatorOptions passes options through to the budget allocator.
func WithAllocatorOptions(opts ...budget.Option) Option {
	return func(e *Engine) {
		e.allocOpts = append(e.allocOpts, opts...)
	}
}

// WithAssessor replaces the impedance-only difficulty assessor.
func WithAssessor(a *power.Assessor) Option {
	return func(e *Engine) {
		if a != nil {
			e.assessor = a
		}
	}
}

// WithAutoSuggestCount sets how many amplifiers are suggested when amplification
// is advisable. Zero disables suggestions.
func WithAutoSuggestCount(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.suggestN = n
		}
	}
}
