package scoring

import (
	"context"
	"math"

	"github.com/okian/audiomatch/internal/domain/model"
	"github.com/okian/audiomatch/internal/domain/power"
)

// tierSurplusSpan is the surplus (in tiers) that earns full quality credit.
const tierSurplusSpan = 2.0

// PerformanceTier gates candidates on the quality their sub-budget should buy
// and ranks survivors by tier first.
type PerformanceTier struct {
	base
}

// Name implements Strategy.
func (*PerformanceTier) Name() string { return StrategyPerformanceTier }

// Rank implements Strategy.
func (s *PerformanceTier) Rank(ctx context.Context, in Input) Output {
	survivors, excluded, window := filter(in)
	out := Output{Exclusions: excluded, Window: window}
	if ctx.Err() != nil || len(survivors) == 0 {
		return out
	}

	expected := ExpectedTier(in.SubBudget)
	scored := make([]model.ScoredCandidate, 0, len(survivors))
	for i := range survivors {
		c := &survivors[i]
		tier, graded := ActualTier(&c.comp)
		if !graded {
			tier = expected
		}
		if tier < expected {
			excluded[ReasonBelowTier]++
			continue
		}
		scored = append(scored, s.score(in, c, tier, expected))
	}

	sortCandidates(scored, func(a, b *model.ScoredCandidate) int {
		switch {
		case a.Tier > b.Tier:
			return -1
		case a.Tier < b.Tier:
			return 1
		}
		return 0
	})
	out.Candidates = truncate(scored, limitFor(in))
	return out
}

func (s *PerformanceTier) score(in Input, c *candidate, tier, expected float64) model.ScoredCandidate {
	w := s.weights
	sc := newScored(c)
	sc.Tier = tier
	sc.PriceFit = PriceFitScore(c.avg, in.SubBudget)
	sc.Synergy = s.normalisedSynergy(in.Preference, &c.comp)

	// Meeting the expected tier earns half credit, each extra tier more.
	quality := 0.5 + 0.5*math.Min(1, (tier-expected)/tierSurplusSpan)

	fit := sc.PriceFit
	if in.Category.IsAmplifying() && in.PowerTarget != nil {
		m := power.Evaluate(*in.PowerTarget, c.comp)
		adequacy := m.Overall
		sc.PowerAdequacy = &adequacy
		sc.Rationale = m.Rationale
		fit = (fit + adequacy) / 2
	} else {
		sc.Rationale = transducerRationale(&c.comp)
	}

	raw := w.TierQuality*quality + w.TierSynergy*sc.Synergy + w.TierPrice*fit
	sc.Score = rescale(raw, w.TierQuality+w.TierSynergy+w.TierPrice, w.TargetCeiling)
	return sc
}
