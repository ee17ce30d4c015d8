// Package scoring filters and ranks catalog candidates for one category.
package scoring

import (
	"context"
	"strings"

	"github.com/okian/audiomatch/internal/domain/model"
	"github.com/okian/audiomatch/internal/domain/power"
	"github.com/okian/audiomatch/internal/domain/synergy"
)

// Strategy names.
const (
	StrategyPriceFit        = "price_fit"
	StrategyPerformanceTier = "performance_tier"
)

// Exclusion reasons reported in Output.Exclusions.
const (
	ReasonDuplicate     = "duplicate"
	ReasonNoPrice       = "no_price"
	ReasonInvertedRange = "inverted_range"
	ReasonOutOfWindow   = "out_of_window"
	ReasonSpread        = "spread"
	ReasonDriverType    = "driver_type"
	ReasonBelowTier     = "below_tier"
)

// Input is everything a strategy needs to rank one category.
type Input struct {
	Category    model.Category
	Candidates  []model.Component
	SubBudget   float64
	TotalBudget float64
	Tolerance   model.Tolerance
	Preference  model.Signature
	DriverType  string
	Experience  model.Experience
	// PowerTarget is the load amplifiers are judged against. Nil disables power adequacy.
	PowerTarget *power.Target
	// Limit overrides MaxResults when positive.
	Limit int
}

// Output is a ranked, truncated candidate list.
type Output struct {
	Candidates []model.ScoredCandidate
	Exclusions map[string]int
	Window     model.PriceWindow
}

// Strategy ranks candidates for one category. Implementations are
// deterministic and safe for concurrent use.
type Strategy interface {
	Name() string
	Rank(ctx context.Context, in Input) Output
}

// Option configures a strategy.
type Option func(*base)

// WithWeights sets the weight table.
func WithWeights(w Weights) Option {
	return func(b *base) {
		b.weights = w
	}
}

// WithSynergy sets the synergy scorer.
func WithSynergy(s *synergy.Scorer) Option {
	return func(b *base) {
		if s != nil {
			b.synergy = s
		}
	}
}

// Names lists the registered strategies.
func Names() []string {
	return []string{StrategyPriceFit, StrategyPerformanceTier}
}

// New builds the strategy called name.
func New(name string, opts ...Option) (Strategy, error) {
	b := base{
		weights: DefaultWeights(),
		synergy: synergy.New(),
	}
	for _, opt := range opts {
		opt(&b)
	}

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrategyPriceFit:
		return &PriceFit{base: b}, nil
	case StrategyPerformanceTier:
		return &PerformanceTier{base: b}, nil
	}
	return nil, ErrUnknownStrategy
}

// base holds what every strategy shares.
type base struct {
	weights Weights
	synergy *synergy.Scorer
}

// MaxResults is the list size for a category and experience level.
func MaxResults(c model.Category, e model.Experience) int {
	transducer := c.IsTransducer()
	switch e {
	case model.ExperienceBeginner:
		if transducer {
			return 3
		}
		return 2
	case model.ExperienceEnthusiast:
		if transducer {
			return 10
		}
		return 6
	default:
		if transducer {
			return 6
		}
		return 4
	}
}

func limitFor(in Input) int {
	if in.Limit > 0 {
		return in.Limit
	}
	return MaxResults(in.Category, in.Experience)
}
