package synergy

import "github.com/okian/audiomatch/internal/domain/model"

// coarseTable[pref][component] is the fraction of the coarse cap awarded.
var coarseTable = map[model.Signature]map[model.Signature]float64{
	model.SignatureNeutral: {
		model.SignatureNeutral:  1.0,
		model.SignatureBalanced: 0.8,
		model.SignatureWarm:     0.4,
		model.SignatureBright:   0.5,
		model.SignatureFun:      0.2,
	},
	model.SignatureBalanced: {
		model.SignatureBalanced: 1.0,
		model.SignatureNeutral:  0.8,
		model.SignatureWarm:     0.5,
		model.SignatureBright:   0.4,
		model.SignatureFun:      0.4,
	},
	model.SignatureWarm: {
		model.SignatureWarm:     1.0,
		model.SignatureBalanced: 0.5,
		model.SignatureNeutral:  0.4,
		model.SignatureFun:      0.5,
		model.SignatureBright:   0.0,
	},
	model.SignatureBright: {
		model.SignatureBright:   1.0,
		model.SignatureNeutral:  0.6,
		model.SignatureBalanced: 0.4,
		model.SignatureFun:      0.3,
		model.SignatureWarm:     0.0,
	},
	model.SignatureFun: {
		model.SignatureFun:      1.0,
		model.SignatureWarm:     0.6,
		model.SignatureBalanced: 0.4,
		model.SignatureBright:   0.3,
		model.SignatureNeutral:  0.2,
	},
}

// DefaultDetailedTable returns a copy of the built-in detailed label weights.
func DefaultDetailedTable() map[model.Signature]map[string]float64 {
	out := make(map[model.Signature]map[string]float64, len(detailedTable))
	for k, v := range detailedTable {
		m := make(map[string]float64, len(v))
		for label, w := range v {
			m[label] = w
		}
		out[k] = m
	}
	return out
}

var detailedTable = map[model.Signature]map[string]float64{
	model.SignatureNeutral: {
		"Neutral":                 1.0,
		"Harman neutral":          1.0,
		"Diffuse field":           1.0,
		"Bass-rolled neutral":     0.8,
		"Neutral with bass boost": 0.7,
		"Neutral bright":          0.6,
		"Mild V-shape":            0.4,
		"Mid-centric":             0.5,
		"Warm neutral":            0.6,
	},
	model.SignatureBalanced: {
		"Harman neutral":          1.0,
		"Neutral":                 0.9,
		"Neutral with bass boost": 0.9,
		"Mild U-shape":            0.9,
		"U-shape":                 0.8,
		"Mild V-shape":            0.7,
		"Warm neutral":            0.7,
		"Bass-rolled neutral":     0.5,
	},
	model.SignatureWarm: {
		"Warm":                    1.0,
		"Warm neutral":            0.9,
		"Dark":                    0.9,
		"Warm V-shape":            0.8,
		"Neutral with bass boost": 0.7,
		"L-shaped":                0.8,
		"Mid-centric":             0.5,
		"Bass-rolled neutral":     0.1,
	},
	model.SignatureBright: {
		"Bright":              1.0,
		"Neutral bright":      0.9,
		"Bass-rolled neutral": 0.8,
		"Analytical":          1.0,
		"Diffuse field":       0.7,
		"Bright V-shape":      0.6,
	},
	model.SignatureFun: {
		"V-shape":        1.0,
		"Warm V-shape":   0.9,
		"Bright V-shape": 0.8,
		"Mild V-shape":   0.7,
		"U-shape":        0.7,
		"L-shaped":       0.7,
		"Bassy":          1.0,
		"Dark":           0.4,
	},
}
