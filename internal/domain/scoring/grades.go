package scoring

import (
	"math"
	"strings"

	"github.com/okian/audiomatch/internal/domain/model"
)

// letterGrades maps reviewer letter grades onto a 1..10 scale.
var letterGrades = map[string]float64{
	"S+": 10, "S": 9.5, "S-": 9,
	"A+": 8.5, "A": 8, "A-": 7.5,
	"B+": 7, "B": 6.5, "B-": 6,
	"C+": 5.5, "C": 5, "C-": 4.5,
	"D+": 4, "D": 3.5, "D-": 3,
	"E": 2, "F": 1,
}

// Grade bonus starts above B+ and SINAD bonus spans 80..120 dB.
const (
	gradeBonusFloor = 7.0
	gradeTop        = 10.0
	sinadFloor      = 80.0
	sinadTop        = 120.0
	valueFloor      = 3.0
	valueTop        = 5.0
)

// GradeValue converts a letter grade. ok is false for unknown grades.
func GradeValue(g string) (float64, bool) {
	v, ok := letterGrades[strings.ToUpper(strings.TrimSpace(g))]
	return v, ok
}

// averageGrade is the mean of the known tone and technical grades.
func averageGrade(c *model.Component) (float64, bool) {
	var sum float64
	var n int
	for _, g := range []string{c.ToneGrade, c.TechnicalGrade} {
		if v, ok := GradeValue(g); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// qualityBonus returns the grade and value bonuses for c.
func qualityBonus(c *model.Component, w Weights) (grade, value float64) {
	if c.Category.IsSignalChain() && c.SINAD != nil {
		grade = ramp(*c.SINAD, sinadFloor, sinadTop) * w.GradeBonusMax
	} else if avg, ok := averageGrade(c); ok {
		grade = ramp(avg, gradeBonusFloor, gradeTop) * w.GradeBonusMax
	}
	if c.ValueRating != nil {
		value = ramp(*c.ValueRating, valueFloor, valueTop) * w.ValueBonusMax
	}
	return grade, value
}

// ramp maps v linearly from [lo,hi] onto [0,1], clamped.
func ramp(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return math.Max(0, math.Min(1, (v-lo)/(hi-lo)))
}

// ExpectedTier is the quality tier a sub-budget should buy.
func ExpectedTier(sub float64) float64 {
	switch {
	case sub < 100:
		return 1
	case sub < 200:
		return 2
	case sub < 400:
		return 3
	case sub < 800:
		return 4
	default:
		return 5
	}
}

// Tier bonuses.
const (
	rankBonusCutoff = 25
	valueBonusMin   = 4.0
	tierBonus       = 0.5
	maxTier         = 5.0
)

// ActualTier maps grades (or SINAD for electronics) plus rank and value
// bonuses to a tier. ok is false when the component carries no quality data.
func ActualTier(c *model.Component) (float64, bool) {
	var tier float64
	switch avg, graded := averageGrade(c); {
	case c.Category.IsSignalChain() && c.SINAD != nil:
		tier = sinadTier(*c.SINAD)
	case graded:
		tier = gradeTier(avg)
	default:
		return 0, false
	}
	if c.ExpertRank > 0 && c.ExpertRank <= rankBonusCutoff {
		tier += tierBonus
	}
	if c.ValueRating != nil && *c.ValueRating >= valueBonusMin {
		tier += tierBonus
	}
	return math.Min(tier, maxTier), true
}

func gradeTier(avg float64) float64 {
	switch {
	case avg >= 8.5:
		return 5
	case avg >= 7.5:
		return 4
	case avg >= 6.5:
		return 3
	case avg >= 5.5:
		return 2
	default:
		return 1
	}
}

func sinadTier(db float64) float64 {
	switch {
	case db >= 115:
		return 5
	case db >= 105:
		return 4
	case db >= 95:
		return 3
	case db >= 85:
		return 2
	default:
		return 1
	}
}
