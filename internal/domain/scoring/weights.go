package scoring

import "fmt"

// Weights is the single table of scoring weights.
//
// A price_fit score is
//
//	raw   = Price*priceFit + Synergy*synergy + gradeBonus + valueBonus
//	score = clamp(raw / (Price+Synergy) * TargetCeiling, 0, 100)
//
// Amplifiers judged against a headphone use AmpPrice, AmpSynergy and Power
// instead, normalised by their sum. A perfect fit without bonuses lands on
// TargetCeiling; bonuses can lift it above.
type Weights struct {
	Price   float64 `koanf:"price" json:"price"`
	Synergy float64 `koanf:"synergy" json:"synergy"`

	AmpPrice   float64 `koanf:"amp_price" json:"amp_price"`
	AmpSynergy float64 `koanf:"amp_synergy" json:"amp_synergy"`
	Power      float64 `koanf:"power" json:"power"`

	// GradeBonusMax and ValueBonusMax bound the quality bonuses.
	GradeBonusMax float64 `koanf:"grade_bonus_max" json:"grade_bonus_max"`
	ValueBonusMax float64 `koanf:"value_bonus_max" json:"value_bonus_max"`

	// Tier* weigh the performance_tier blend.
	TierQuality float64 `koanf:"tier_quality" json:"tier_quality"`
	TierSynergy float64 `koanf:"tier_synergy" json:"tier_synergy"`
	TierPrice   float64 `koanf:"tier_price" json:"tier_price"`

	TargetCeiling float64 `koanf:"target_ceiling" json:"target_ceiling"`
}

// DefaultWeights returns the production weight table.
func DefaultWeights() Weights {
	return Weights{
		Price:         0.45,
		Synergy:       0.45,
		AmpPrice:      0.35,
		AmpSynergy:    0.30,
		Power:         0.25,
		GradeBonusMax: 0.06,
		ValueBonusMax: 0.04,
		TierQuality:   0.35,
		TierSynergy:   0.30,
		TierPrice:     0.25,
		TargetCeiling: 90,
	}
}

// Validate rejects tables that cannot produce a bounded score.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"price": w.Price, "synergy": w.Synergy, "amp_price": w.AmpPrice,
		"amp_synergy": w.AmpSynergy, "power": w.Power, "grade_bonus_max": w.GradeBonusMax,
		"value_bonus_max": w.ValueBonusMax, "tier_quality": w.TierQuality,
		"tier_synergy": w.TierSynergy, "tier_price": w.TierPrice,
	} {
		if v < 0 {
			return fmt.Errorf("%w: %s is negative", ErrInvalidWeights, name)
		}
	}
	if w.Price+w.Synergy <= 0 {
		return fmt.Errorf("%w: price+synergy must be positive", ErrInvalidWeights)
	}
	if w.TierQuality+w.TierSynergy+w.TierPrice <= 0 {
		return fmt.Errorf("%w: tier weights must sum above zero", ErrInvalidWeights)
	}
	if w.TargetCeiling <= 0 || w.TargetCeiling > 100 {
		return fmt.Errorf("%w: target_ceiling must be in (0,100]", ErrInvalidWeights)
	}
	return nil
}
