package power

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// DefaultCurrentLimitMA is the assumed output current ceiling of an amplifier.
const DefaultCurrentLimitMA = 500.0

// Spec is a parsed amplifier output rating.
type Spec struct {
	PowerMW       float64 `json:"power_mw"`
	ImpedanceOhms float64 `json:"impedance_ohms"`
}

var specPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(mw|w)\s*(?:@|/|at)\s*(\d+(?:\.\d+)?)\s*(?:Ω|ohms?)`)

// ParseAmplifierSpec extracts the first "<power> @ <load>" rating from text.
// It accepts mW or W, "@", "/" or "at" as separator, and Ω/ohm/ohms.
func ParseAmplifierSpec(text string) (Spec, bool) {
	m := specPattern.FindStringSubmatch(text)
	if m == nil {
		return Spec{}, false
	}
	p, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Spec{}, false
	}
	z, err := strconv.ParseFloat(m[3], 64)
	if err != nil || z <= 0 || p <= 0 {
		return Spec{}, false
	}
	if strings.EqualFold(m[2], "w") {
		p *= 1000
	}
	return Spec{PowerMW: p, ImpedanceOhms: z}, true
}

// PowerAtImpedance estimates the power (mW) an amplifier rated refMW into refZ
// delivers into targetZ. The amplifier is modelled as a voltage source with a
// current ceiling; the lower of the voltage-limited and current-limited figures wins.
func PowerAtImpedance(refMW, refZ, targetZ, currentLimitMA float64) float64 {
	if refMW <= 0 || refZ <= 0 || targetZ <= 0 {
		return 0
	}
	if targetZ == refZ {
		return refMW
	}
	if currentLimitMA <= 0 {
		currentLimitMA = DefaultCurrentLimitMA
	}
	refW := refMW / 1000
	voltageLimitedW := refW * refZ / targetZ
	amps := currentLimitMA / 1000
	currentLimitedW := amps * amps * targetZ
	return math.Min(voltageLimitedW, currentLimitedW) * 1000
}

// EstimateOutputByPrice guesses an amplifier's output when no rating parses.
func EstimateOutputByPrice(price float64) float64 {
	switch {
	case price > 500:
		return 1000
	case price > 300:
		return 500
	case price > 150:
		return 250
	default:
		return 100
	}
}
