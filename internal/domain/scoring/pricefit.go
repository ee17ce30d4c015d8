package scoring

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/okian/audiomatch/internal/domain/model"
	"github.com/okian/audiomatch/internal/domain/power"
)

// PriceFit ranks primarily by how fully a candidate uses its sub-budget.
type PriceFit struct {
	base
}

// Name implements Strategy.
func (*PriceFit) Name() string { return StrategyPriceFit }

// Rank implements Strategy.
func (s *PriceFit) Rank(ctx context.Context, in Input) Output {
	survivors, excluded, window := filter(in)
	out := Output{Exclusions: excluded, Window: window}
	if ctx.Err() != nil || len(survivors) == 0 {
		return out
	}

	scored := make([]model.ScoredCandidate, 0, len(survivors))
	for i := range survivors {
		scored = append(scored, s.score(in, &survivors[i]))
	}
	sortCandidates(scored, nil)
	out.Candidates = truncate(scored, limitFor(in))
	return out
}

func (s *PriceFit) score(in Input, c *candidate) model.ScoredCandidate {
	w := s.weights
	sc := newScored(c)
	sc.PriceFit = PriceFitScore(c.avg, in.SubBudget)
	sc.Synergy = s.normalisedSynergy(in.Preference, &c.comp)
	grade, value := qualityBonus(&c.comp, w)
	sc.QualityBonus = grade + value

	var raw, norm float64
	if in.Category.IsAmplifying() && in.PowerTarget != nil {
		m := power.Evaluate(*in.PowerTarget, c.comp)
		adequacy := m.Overall
		sc.PowerAdequacy = &adequacy
		sc.Rationale = m.Rationale
		raw = w.AmpPrice*sc.PriceFit + w.AmpSynergy*sc.Synergy + w.Power*adequacy
		norm = w.AmpPrice + w.AmpSynergy + w.Power
	} else {
		raw = w.Price*sc.PriceFit + w.Synergy*sc.Synergy
		norm = w.Price + w.Synergy
		sc.Rationale = transducerRationale(&c.comp)
	}
	sc.Score = rescale(raw+sc.QualityBonus, norm, w.TargetCeiling)
	return sc
}

// PriceFitScore rewards spending close to the full budget and penalises
// overspend steeply.
func PriceFitScore(avg, sub float64) float64 {
	if sub <= 0 {
		return 0
	}
	if avg <= sub {
		return math.Sqrt(avg / sub)
	}
	overage := (avg - sub) / sub
	return math.Max(0, 1-2*overage)
}

func (b *base) normalisedSynergy(pref model.Signature, c *model.Component) float64 {
	limit := b.synergy.Max()
	if limit <= 0 {
		return 0
	}
	return b.synergy.Score(pref, c.Signature, c.DetailedSignature).Total / limit
}

func newScored(c *candidate) model.ScoredCandidate {
	return model.ScoredCandidate{
		Component:    c.comp,
		AveragePrice: c.avg,
	}
}

func transducerRationale(c *model.Component) string {
	if !c.Category.IsTransducer() {
		return ""
	}
	return power.RequirementFor(c.ImpedanceOhms, c.SensitivityDBmW).Rationale
}

func rescale(raw, norm, ceiling float64) float64 {
	if norm <= 0 {
		return 0
	}
	return math.Max(0, math.Min(100, raw/norm*ceiling))
}

// sortCandidates orders by primary (when set and non-zero), then score desc, average
// price asc and display name.
func sortCandidates(list []model.ScoredCandidate, primary func(a, b *model.ScoredCandidate) int) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := &list[i], &list[j]
		if primary != nil {
			if p := primary(a, b); p != 0 {
				return p < 0
			}
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.AveragePrice != b.AveragePrice {
			return a.AveragePrice < b.AveragePrice
		}
		return strings.ToLower(a.Component.DisplayName()) < strings.ToLower(b.Component.DisplayName())
	})
}

func truncate(list []model.ScoredCandidate, n int) []model.ScoredCandidate {
	if n > 0 && len(list) > n {
		return list[:n]
	}
	return list
}
