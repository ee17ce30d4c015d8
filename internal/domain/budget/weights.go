package budget

import "github.com/okian/audiomatch/internal/domain/model"

// WeightTable holds the relative share each category receives in a
// multi-category split. Owned applies when the listener already has headphones.
type WeightTable struct {
	Base  map[model.Category]float64
	Owned map[model.Category]float64
}

// DefaultWeightTable returns the production weights.
func DefaultWeightTable() WeightTable {
	return WeightTable{
		Base: map[model.Category]float64{
			model.CategoryHeadphone: 0.60,
			model.CategoryIEM:       0.60,
			model.CategoryDAC:       0.20,
			model.CategoryAmp:       0.20,
			model.CategoryDACAmp:    0.30,
		},
		Owned: map[model.Category]float64{
			model.CategoryDAC:    0.45,
			model.CategoryAmp:    0.45,
			model.CategoryDACAmp: 0.55,
		},
	}
}

// Weight returns the weight for c. Owned overrides Base when ownsHeadphones.
func (t WeightTable) Weight(c model.Category, ownsHeadphones bool) float64 {
	if ownsHeadphones {
		if w, ok := t.Owned[c]; ok {
			return w
		}
	}
	return t.Base[c]
}

// Cap limits.
const (
	transducerCapShare = 0.9
	comboCapMultiplier = 1.5
)

// SignalChainCeiling is the absolute ceiling for a DAC or amp at a total budget.
func SignalChainCeiling(total float64) float64 {
	switch {
	case total < 500:
		return 250
	case total < 1500:
		return 500
	case total < 5000:
		return 1000
	default:
		return 2000
	}
}

// Cap is the most a category may receive out of total.
func Cap(c model.Category, total float64) float64 {
	switch c {
	case model.CategoryHeadphone, model.CategoryIEM:
		return total * transducerCapShare
	case model.CategoryDAC, model.CategoryAmp:
		return SignalChainCeiling(total)
	case model.CategoryDACAmp:
		return SignalChainCeiling(total) * comboCapMultiplier
	}
	return 0
}
