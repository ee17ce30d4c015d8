// Package synergy scores how well a component's sound signature suits a
// listener's preference.
package synergy

import (
	"strings"
	"unicode"

	"github.com/okian/audiomatch/internal/domain/model"
	"golang.org/x/text/cases"
)

// Default score caps.
const (
	DefaultCoarseMax   = 0.40
	DefaultDetailedMax = 0.10

	anyPreferenceCredit = 0.7
)

// Result breaks a synergy score into its layers.
type Result struct {
	Coarse   float64 `json:"coarse"`
	Detailed float64 `json:"detailed"`
	Total    float64 `json:"total"`
}

// Scorer computes synergy scores. It is safe for concurrent use.
type Scorer struct {
	coarseMax   float64
	detailedMax float64
	coarse      map[model.Signature]map[model.Signature]float64
	detailed    map[model.Signature]map[string]float64
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithCaps overrides the coarse and detailed caps.
func WithCaps(coarseMax, detailedMax float64) Option {
	return func(s *Scorer) {
		if coarseMax >= 0 {
			s.coarseMax = coarseMax
		}
		if detailedMax >= 0 {
			s.detailedMax = detailedMax
		}
	}
}

// WithDetailedTable replaces the detailed label table. Labels are normalised on load.
func WithDetailedTable(table map[model.Signature]map[string]float64) Option {
	return func(s *Scorer) {
		s.detailed = table
	}
}

// New creates a Scorer with the default tables.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		coarseMax:   DefaultCoarseMax,
		detailedMax: DefaultDetailedMax,
		coarse:      coarseTable,
		detailed:    detailedTable,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.detailed = s.normaliseTable(s.detailed)
	return s
}

// Max is the highest Total the scorer can return.
func (s *Scorer) Max() float64 { return s.coarseMax + s.detailedMax }

// Score rates componentSig and detailedLabel against pref. Unknown tags score
// as a neutral component (coarse) or zero bonus (detailed).
func (s *Scorer) Score(pref model.Signature, componentSig, detailedLabel string) Result {
	var r Result

	if pref == "" || pref == model.SignatureAny {
		r.Coarse = anyPreferenceCredit * s.coarseMax
		r.Total = r.Coarse
		return r
	}

	sig, err := model.ParseSignature(componentSig)
	if err != nil || sig == model.SignatureAny {
		sig = model.SignatureNeutral
	}
	r.Coarse = s.coarse[pref][sig] * s.coarseMax

	if detailedLabel != "" {
		r.Detailed = s.detailed[pref][s.normalise(detailedLabel)] * s.detailedMax
	}
	r.Total = r.Coarse + r.Detailed
	return r
}

// normalise case-folds a label and collapses punctuation and whitespace runs
// into single spaces.
func (s *Scorer) normalise(label string) string {
	// Casers carry state, so each call gets its own.
	folded := cases.Fold().String(label)
	var sb strings.Builder
	space := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			space = false
			sb.WriteRune(r)
			continue
		}
		space = true
	}
	return sb.String()
}

func (s *Scorer) normaliseTable(in map[model.Signature]map[string]float64) map[model.Signature]map[string]float64 {
	out := make(map[model.Signature]map[string]float64, len(in))
	for pref, labels := range in {
		m := make(map[string]float64, len(labels))
		for label, w := range labels {
			m[s.normalise(label)] = clamp01(w)
		}
		out[pref] = m
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
