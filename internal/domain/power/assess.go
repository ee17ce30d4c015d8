package power

import (
	"fmt"
	"strings"

	"github.com/okian/audiomatch/internal/domain/model"
)

// HardToDrive is an entry in the table of transducers that need more drive
// than their impedance suggests. Model is matched as a case-insensitive substring.
type HardToDrive struct {
	Brand string
	Model string
}

// KnownDifficult is the default curated table. Membership is data, not a rule.
var KnownDifficult = []HardToDrive{
	{Brand: "Sennheiser", Model: "HD 600"},
	{Brand: "Sennheiser", Model: "HD 650"},
	{Brand: "Sennheiser", Model: "HD 6XX"},
	{Brand: "Sennheiser", Model: "HD 800"},
	{Brand: "Beyerdynamic", Model: "DT 880"},
	{Brand: "Beyerdynamic", Model: "DT 990"},
	{Brand: "HiFiMan", Model: "Susvara"},
	{Brand: "HiFiMan", Model: "HE-6"},
	{Brand: "HiFiMan", Model: "Arya"},
	{Brand: "Audeze", Model: "LCD"},
	{Brand: "AKG", Model: "K701"},
	{Brand: "AKG", Model: "K702"},
}

// Assessment is an impedance-only difficulty verdict.
type Assessment struct {
	Difficulty model.Difficulty `json:"difficulty"`
	Rationale  string           `json:"rationale"`
	Upgraded   bool             `json:"upgraded"`
}

// Assessor classifies difficulty from impedance and the known-difficult table.
type Assessor struct {
	table []HardToDrive
}

// AssessorOption configures an Assessor.
type AssessorOption func(*Assessor)

// WithKnownDifficult replaces the known-difficult table.
func WithKnownDifficult(table []HardToDrive) AssessorOption {
	return func(a *Assessor) {
		a.table = table
	}
}

// NewAssessor returns an Assessor using KnownDifficult unless overridden.
func NewAssessor(opts ...AssessorOption) *Assessor {
	a := &Assessor{table: KnownDifficult}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assess classifies difficulty without sensitivity data.
func (a *Assessor) Assess(impedance float64, needsAmp bool, modelName, brand string) Assessment {
	if needsAmp {
		return Assessment{
			Difficulty: model.DifficultyDemanding,
			Rationale:  "manufacturer recommends a dedicated amplifier",
		}
	}
	if impedance <= 0 {
		return Assessment{
			Difficulty: model.DifficultyUnknown,
			Rationale:  "impedance not published",
		}
	}

	var d model.Difficulty
	switch {
	case impedance >= 300:
		d = model.DifficultyDemanding
	case impedance >= 80:
		d = model.DifficultyModerate
	default:
		d = model.DifficultyEasy
	}
	out := Assessment{
		Difficulty: d,
		Rationale:  fmt.Sprintf("%.0f ohm impedance suggests %s", impedance, d),
	}

	if a.isKnownDifficult(brand, modelName) {
		out.Difficulty = upgrade(d)
		out.Upgraded = true
		out.Rationale += fmt.Sprintf("; raised to %s, known to need more drive than impedance implies", out.Difficulty)
	}
	return out
}

func (a *Assessor) isKnownDifficult(brand, modelName string) bool {
	if brand == "" || modelName == "" {
		return false
	}
	b := strings.ToLower(strings.TrimSpace(brand))
	m := squash(modelName)
	for _, h := range a.table {
		if strings.ToLower(h.Brand) == b && strings.Contains(m, squash(h.Model)) {
			return true
		}
	}
	return false
}

// squash lower-cases s and drops spaces and dashes so "HD600" matches "HD 600".
func squash(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		if r == ' ' || r == '-' || r == '_' {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func upgrade(d model.Difficulty) model.Difficulty {
	switch d {
	case model.DifficultyEasy:
		return model.DifficultyModerate
	case model.DifficultyModerate:
		return model.DifficultyDemanding
	default:
		return model.DifficultyVeryDemanding
	}
}

// AssessFromImpedance uses the default Assessor.
func AssessFromImpedance(impedance float64, needsAmp bool, modelName, brand string) Assessment {
	return NewAssessor().Assess(impedance, needsAmp, modelName, brand)
}
