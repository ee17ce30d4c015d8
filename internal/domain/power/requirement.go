// Package power models how much drive a transducer needs and how much an
// amplifier can deliver into a given load.
package power

import (
	"fmt"
	"math"

	"github.com/okian/audiomatch/internal/domain/model"
)

// DefaultTargetSPL is the loudness target (dB SPL) used for requirement maths.
const DefaultTargetSPL = 110.0

// Difficulty thresholds, evaluated in order.
const (
	easyMaxMW        = 10.0
	easyMaxV         = 1.0
	moderateMaxMW    = 50.0
	moderateMaxV     = 2.5
	demandingMaxMW   = 200.0
	demandingMaxV    = 5.0
	highImpedanceOhm = 150.0
)

// Source envelopes used for compatibility flags.
var (
	phoneEnvelope    = envelope{maxV: 1.0, maxMW: 30}
	laptopEnvelope   = envelope{maxV: 2.0, maxMW: 60}
	portableEnvelope = envelope{maxV: 3.0, maxMW: 300}
)

type envelope struct {
	maxV  float64
	maxMW float64
}

func (e envelope) fits(v, mw float64) bool { return v <= e.maxV && mw <= e.maxMW }

// ComputeRequirement returns the drive needed to reach targetSPL with the given
// impedance (ohms) and sensitivity (dB/mW).
func ComputeRequirement(impedance, sensitivity, targetSPL float64) model.PowerRequirement {
	if impedance <= 0 || math.IsNaN(impedance) || math.IsNaN(sensitivity) {
		return model.PowerRequirement{
			Difficulty: model.DifficultyUnknown,
			Rationale:  "impedance unknown; cannot compute drive requirement",
		}
	}
	if targetSPL == 0 {
		targetSPL = DefaultTargetSPL
	}

	mw := math.Pow(10, (targetSPL-sensitivity)/10)
	volts := math.Sqrt(mw / 1000 * impedance)
	ma := volts / impedance * 1000

	req := model.PowerRequirement{
		PowerMW:               mw,
		VoltageV:              volts,
		CurrentMA:             ma,
		Difficulty:            classify(mw, volts),
		PhoneCompatible:       phoneEnvelope.fits(volts, mw),
		LaptopCompatible:      laptopEnvelope.fits(volts, mw),
		PortableAmpCompatible: portableEnvelope.fits(volts, mw),
	}
	req.Rationale = rationale(req, impedance, targetSPL)
	return req
}

func classify(mw, volts float64) model.Difficulty {
	switch {
	case mw <= easyMaxMW && volts <= easyMaxV:
		return model.DifficultyEasy
	case mw <= moderateMaxMW && volts <= moderateMaxV:
		return model.DifficultyModerate
	case mw <= demandingMaxMW && volts <= demandingMaxV:
		return model.DifficultyDemanding
	default:
		return model.DifficultyVeryDemanding
	}
}

// rationale names whichever constraint pushed the requirement into its class.
func rationale(req model.PowerRequirement, impedance, spl float64) string {
	head := fmt.Sprintf("needs %.1f mW and %.2f V for %.0f dB SPL into %.0f ohms", req.PowerMW, req.VoltageV, spl, impedance)
	if req.Difficulty == model.DifficultyEasy {
		return head + "; easy to drive from most sources"
	}

	var maxMW, maxV float64
	switch req.Difficulty {
	case model.DifficultyModerate:
		maxMW, maxV = easyMaxMW, easyMaxV
	case model.DifficultyDemanding:
		maxMW, maxV = moderateMaxMW, moderateMaxV
	default:
		maxMW, maxV = demandingMaxMW, demandingMaxV
	}

	powerRatio := req.PowerMW / maxMW
	voltRatio := req.VoltageV / maxV
	switch {
	case powerRatio <= 1 && voltRatio <= 1 && impedance >= highImpedanceOhm:
		return head + "; high impedance is the limiting factor"
	case voltRatio >= powerRatio:
		return head + "; voltage swing is the limiting factor"
	default:
		return head + "; power output is the limiting factor"
	}
}

// EstimateSensitivity guesses sensitivity (dB/mW) from impedance alone.
func EstimateSensitivity(impedance float64) float64 {
	switch {
	case impedance >= 300:
		return 97
	case impedance >= 150:
		return 99
	case impedance >= 80:
		return 102
	case impedance >= 32:
		return 106
	default:
		return 110
	}
}

// RequirementFor computes the requirement at DefaultTargetSPL using measured
// sensitivity when known and the impedance heuristic otherwise.
func RequirementFor(impedance float64, sensitivity *float64) model.PowerRequirement {
	if sensitivity != nil && *sensitivity > 0 {
		return ComputeRequirement(impedance, *sensitivity, DefaultTargetSPL)
	}
	req := ComputeRequirement(impedance, EstimateSensitivity(impedance), DefaultTargetSPL)
	if req.Difficulty == model.DifficultyUnknown {
		return req
	}
	req.Estimated = true
	req.Rationale += " (sensitivity estimated from impedance)"
	return req
}

// AdvisesAmplification reports whether a dedicated amplifier is recommended.
func AdvisesAmplification(req model.PowerRequirement) bool {
	return req.Difficulty == model.DifficultyDemanding || req.Difficulty == model.DifficultyVeryDemanding
}
