package power

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/audiomatch/internal/domain/model"
)

// Blend weights for the overall match score.
const (
	compatibilityWeight = 0.7
	headroomWeight      = 0.3
)

// Target is the load an amplifier has to drive.
type Target struct {
	Name          string                 `json:"name"`
	ImpedanceOhms float64                `json:"impedance_ohms"`
	Requirement   model.PowerRequirement `json:"requirement"`
}

// Match is how well one amplifier drives a Target.
type Match struct {
	Amplifier     model.Component `json:"amplifier"`
	DeliveredMW   float64         `json:"delivered_mw"`
	RequiredMW    float64         `json:"required_mw"`
	TargetOhms    float64         `json:"target_ohms"`
	Ratio         float64         `json:"ratio"`
	Compatibility float64         `json:"compatibility"`
	Headroom      float64         `json:"headroom"`
	Overall       float64         `json:"overall"`
	Estimated     bool            `json:"estimated"`
	Rationale     string          `json:"rationale"`
}

// MostDemanding picks the load with the highest power requirement. Loads with
// unknown impedance are skipped; ok is false when none remain.
func MostDemanding(loads []model.Electrical) (Target, bool) {
	var (
		best  Target
		found bool
	)
	for _, l := range loads {
		req := RequirementFor(l.ImpedanceOhms, l.SensitivityDBmW)
		if req.Difficulty == model.DifficultyUnknown {
			continue
		}
		if !found || req.PowerMW > best.Requirement.PowerMW {
			best = Target{Name: displayName(l), ImpedanceOhms: l.ImpedanceOhms, Requirement: req}
			found = true
		}
	}
	return best, found
}

func displayName(e model.Electrical) string {
	if e.Brand == "" {
		return e.Name
	}
	return e.Brand + " " + e.Name
}

// Evaluate rates a single amplifier against t.
func Evaluate(t Target, amp model.Component) Match {
	m := Match{
		Amplifier:  amp,
		RequiredMW: t.Requirement.PowerMW,
		TargetOhms: t.ImpedanceOhms,
	}

	if spec, ok := ParseAmplifierSpec(amp.PowerOutput); ok {
		m.DeliveredMW = PowerAtImpedance(spec.PowerMW, spec.ImpedanceOhms, t.ImpedanceOhms, DefaultCurrentLimitMA)
		m.Rationale = fmt.Sprintf("delivers about %.0f mW into %.0f ohms (from rated %.0f mW @ %.0f ohms)",
			m.DeliveredMW, t.ImpedanceOhms, spec.PowerMW, spec.ImpedanceOhms)
	} else {
		price, _ := amp.AveragePrice()
		m.DeliveredMW = EstimateOutputByPrice(price)
		m.Estimated = true
		m.Rationale = fmt.Sprintf("delivers an estimated %.0f mW into %.0f ohms (no rated output, estimated from price)",
			m.DeliveredMW, t.ImpedanceOhms)
	}

	if m.RequiredMW > 0 {
		m.Ratio = m.DeliveredMW / m.RequiredMW
	} else {
		m.Ratio = math.Inf(1)
	}
	m.Compatibility = math.Min(1, m.Ratio)
	m.Headroom = headroom(m.Ratio)
	m.Overall = compatibilityWeight*m.Compatibility + headroomWeight*m.Headroom
	m.Rationale += fmt.Sprintf("; %s needs %.1f mW", t.Name, m.RequiredMW)
	return m
}

func headroom(ratio float64) float64 {
	switch {
	case ratio >= 4:
		return 1.0
	case ratio >= 2:
		return 0.9
	case ratio >= 1.5:
		return 0.7
	case ratio >= 1:
		return 0.5
	default:
		return ratio * 0.5
	}
}

// MatchAmplifiers ranks amplifiers against the most demanding headphone in the
// list. It returns nil when no headphone has a known impedance.
func MatchAmplifiers(headphones, amplifiers []model.Component) []Match {
	loads := make([]model.Electrical, 0, len(headphones))
	for i := range headphones {
		loads = append(loads, headphones[i].Electrical())
	}
	t, ok := MostDemanding(loads)
	if !ok {
		return nil
	}

	out := make([]Match, 0, len(amplifiers))
	for _, amp := range amplifiers {
		out = append(out, Evaluate(t, amp))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Overall != out[j].Overall {
			return out[i].Overall > out[j].Overall
		}
		return out[i].Amplifier.DisplayName() < out[j].Amplifier.DisplayName()
	})
	return out
}
