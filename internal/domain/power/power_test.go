package power_test

import (
	"strings"
	"testing"

	"github.com/okian/audiomatch/internal/domain/model"
	"github.com/okian/audiomatch/internal/domain/power"
	. "github.com/smartystreets/goconvey/convey"
)

func TestComputeRequirement(t *testing.T) {
	Convey("Given a sensitive low impedance IEM", t, func() {
		req := power.ComputeRequirement(16, 110, power.DefaultTargetSPL)

		Convey("Then it needs 1 mW and is phone friendly", func() {
			So(req.PowerMW, ShouldAlmostEqual, 1.0, 1e-9)
			So(req.Difficulty, ShouldEqual, model.DifficultyEasy)
			So(req.PhoneCompatible, ShouldBeTrue)
			So(req.Estimated, ShouldBeFalse)
		})
	})

	Convey("Given a 300 ohm 97 dB/mW headphone", t, func() {
		req := power.ComputeRequirement(300, 97, power.DefaultTargetSPL)

		Convey("Then it needs about 20 mW at 2.45 V", func() {
			So(req.PowerMW, ShouldAlmostEqual, 19.95, 0.01)
			So(req.VoltageV, ShouldAlmostEqual, 2.446, 0.01)
			So(req.CurrentMA, ShouldAlmostEqual, req.VoltageV/300*1000, 1e-9)
			So(req.Difficulty, ShouldEqual, model.DifficultyModerate)
			So(req.PhoneCompatible, ShouldBeFalse)
			So(req.PortableAmpCompatible, ShouldBeTrue)
		})

		Convey("Then the rationale names the binding constraint", func() {
			So(req.Rationale, ShouldContainSubstring, "limiting factor")
		})
	})

	Convey("Given increasing sensitivity at fixed impedance", t, func() {
		Convey("Then required power strictly decreases", func() {
			prev := power.ComputeRequirement(64, 80, power.DefaultTargetSPL).PowerMW
			for s := 81.0; s <= 125; s++ {
				cur := power.ComputeRequirement(64, s, power.DefaultTargetSPL).PowerMW
				So(cur, ShouldBeLessThan, prev)
				prev = cur
			}
		})
	})

	Convey("Given a very insensitive planar", t, func() {
		req := power.ComputeRequirement(60, 83, power.DefaultTargetSPL)
		So(req.Difficulty, ShouldEqual, model.DifficultyVeryDemanding)
		So(req.LaptopCompatible, ShouldBeFalse)
	})

	Convey("Given zero impedance", t, func() {
		req := power.ComputeRequirement(0, 100, power.DefaultTargetSPL)
		So(req.Difficulty, ShouldEqual, model.DifficultyUnknown)
	})
}

func TestRequirementFor(t *testing.T) {
	Convey("Given no measured sensitivity", t, func() {
		req := power.RequirementFor(300, nil)

		Convey("Then the estimate is flagged", func() {
			So(req.Estimated, ShouldBeTrue)
			So(req.Rationale, ShouldContainSubstring, "estimated from impedance")
			So(req.PowerMW, ShouldAlmostEqual, power.ComputeRequirement(300, 97, 110).PowerMW, 1e-9)
		})
	})

	Convey("Given a measured sensitivity", t, func() {
		req := power.RequirementFor(32, model.Float(105))
		So(req.Estimated, ShouldBeFalse)
	})

	Convey("Given the estimate table", t, func() {
		So(power.EstimateSensitivity(600), ShouldEqual, 97)
		So(power.EstimateSensitivity(150), ShouldEqual, 99)
		So(power.EstimateSensitivity(80), ShouldEqual, 102)
		So(power.EstimateSensitivity(32), ShouldEqual, 106)
		So(power.EstimateSensitivity(16), ShouldEqual, 110)
	})
}

func TestAssess(t *testing.T) {
	Convey("Given impedance only", t, func() {
		So(power.AssessFromImpedance(300, false, "", "").Difficulty, ShouldEqual, model.DifficultyDemanding)
		So(power.AssessFromImpedance(150, false, "", "").Difficulty, ShouldEqual, model.DifficultyModerate)
		So(power.AssessFromImpedance(80, false, "", "").Difficulty, ShouldEqual, model.DifficultyModerate)
		So(power.AssessFromImpedance(32, false, "", "").Difficulty, ShouldEqual, model.DifficultyEasy)
		So(power.AssessFromImpedance(0, false, "", "").Difficulty, ShouldEqual, model.DifficultyUnknown)
	})

	Convey("Given an explicit needs-amp flag", t, func() {
		a := power.AssessFromImpedance(16, true, "Anything", "Anyone")
		So(a.Difficulty, ShouldEqual, model.DifficultyDemanding)
	})

	Convey("Given a model from the known-difficult table", t, func() {
		a := power.AssessFromImpedance(300, false, "HD600", "sennheiser")

		Convey("Then it is upgraded one tier", func() {
			So(a.Upgraded, ShouldBeTrue)
			So(a.Difficulty, ShouldEqual, model.DifficultyVeryDemanding)
		})
	})

	Convey("Given an unknown brand", t, func() {
		a := power.AssessFromImpedance(32, false, "HD600", "Nobody")
		So(a.Upgraded, ShouldBeFalse)
		So(a.Difficulty, ShouldEqual, model.DifficultyEasy)
	})

	Convey("Given a custom table", t, func() {
		as := power.NewAssessor(power.WithKnownDifficult([]power.HardToDrive{{Brand: "Acme", Model: "Brick"}}))
		So(as.Assess(32, false, "Brick II", "ACME").Difficulty, ShouldEqual, model.DifficultyModerate)
		So(as.Assess(300, false, "HD 650", "Sennheiser").Upgraded, ShouldBeFalse)
	})
}

func TestParseAmplifierSpec(t *testing.T) {
	Convey("Given rating strings", t, func() {
		cases := []struct {
			in string
			mw float64
			z  float64
		}{
			{"500mW @ 32Ω", 500, 32},
			{"2W @ 32 ohms", 2000, 32},
			{"1.5w@16ohm", 1500, 16},
			{"250mW/300Ω", 250, 300},
			{"80 mW at 300 ohms", 80, 300},
			{"Output: 1W @ 32Ω, 150mW @ 300Ω", 1000, 32},
		}
		for _, c := range cases {
			spec, ok := power.ParseAmplifierSpec(c.in)
			So(ok, ShouldBeTrue)
			So(spec.PowerMW, ShouldAlmostEqual, c.mw)
			So(spec.ImpedanceOhms, ShouldAlmostEqual, c.z)
		}
	})

	Convey("Given garbage", t, func() {
		for _, in := range []string{"", "loud", "500 mW", "@ 32Ω", strings.Repeat("9", 400)} {
			_, ok := power.ParseAmplifierSpec(in)
			So(ok, ShouldBeFalse)
		}
	})
}

func TestPowerAtImpedance(t *testing.T) {
	Convey("Given a 500 mW at 32 ohm amplifier", t, func() {
		Convey("Then 300 ohms gets about 53 mW", func() {
			So(power.PowerAtImpedance(500, 32, 300, power.DefaultCurrentLimitMA), ShouldAlmostEqual, 53.33, 0.01)
		})
		Convey("Then doubling the load halves the power", func() {
			So(power.PowerAtImpedance(500, 32, 64, power.DefaultCurrentLimitMA), ShouldAlmostEqual, 250, 1e-9)
		})
		Convey("Then halving the load doubles the power", func() {
			So(power.PowerAtImpedance(500, 32, 16, power.DefaultCurrentLimitMA), ShouldAlmostEqual, 1000, 1e-9)
		})
		Convey("Then a very low load hits the current ceiling", func() {
			// 4 ohms: voltage-limited 4000 mW, current-limited 0.25 A^2*4 = 1000 mW
			So(power.PowerAtImpedance(500, 32, 4, power.DefaultCurrentLimitMA), ShouldAlmostEqual, 1000, 1e-9)
		})
	})

	Convey("Given equal reference and target impedance", t, func() {
		Convey("Then the reference power is returned unchanged", func() {
			for _, z := range []float64{8, 16, 32, 300, 600} {
				for _, p := range []float64{10, 500, 6000} {
					So(power.PowerAtImpedance(p, z, z, power.DefaultCurrentLimitMA), ShouldEqual, p)
				}
			}
		})
	})

	Convey("Given non-positive input", t, func() {
		So(power.PowerAtImpedance(0, 32, 32, 500), ShouldEqual, 0)
		So(power.PowerAtImpedance(500, 32, -1, 500), ShouldEqual, 0)
	})
}

func TestMatchAmplifiers(t *testing.T) {
	Convey("Given two headphones and three amplifiers", t, func() {
		headphones := []model.Component{
			{Brand: "Easy", Name: "IEM", ImpedanceOhms: 16, SensitivityDBmW: model.Float(110)},
			{Brand: "Hard", Name: "Can", ImpedanceOhms: 300, SensitivityDBmW: model.Float(97)},
		}
		amps := []model.Component{
			{Brand: "Tiny", Name: "Dongle", PowerOutput: "30mW @ 32Ω", PriceNew: model.Float(50)},
			{Brand: "Big", Name: "Desk", PowerOutput: "6W @ 32Ω", PriceNew: model.Float(400)},
			{Brand: "Mystery", Name: "Box", PriceNew: model.Float(350)},
		}

		matches := power.MatchAmplifiers(headphones, amps)

		Convey("Then the most demanding headphone is the target", func() {
			So(matches, ShouldHaveLength, 3)
			So(matches[0].TargetOhms, ShouldEqual, 300)
			So(matches[0].RequiredMW, ShouldAlmostEqual, 19.95, 0.01)
		})

		Convey("Then results are ordered by overall score", func() {
			So(matches[0].Amplifier.Brand, ShouldEqual, "Big")
			So(matches[1].Amplifier.Brand, ShouldEqual, "Mystery")
			So(matches[2].Amplifier.Brand, ShouldEqual, "Tiny")
			for i := 1; i < len(matches); i++ {
				So(matches[i-1].Overall, ShouldBeGreaterThanOrEqualTo, matches[i].Overall)
			}
		})

		Convey("Then price estimates are flagged", func() {
			So(matches[1].Estimated, ShouldBeTrue)
			So(matches[1].DeliveredMW, ShouldEqual, 500)
			So(matches[1].Rationale, ShouldContainSubstring, "estimated")
			So(matches[0].Rationale, ShouldContainSubstring, "300 ohms")
		})

		Convey("Then scores follow the blend", func() {
			m := matches[2]
			So(m.Compatibility, ShouldBeLessThan, 1)
			So(m.Headroom, ShouldAlmostEqual, m.Ratio*0.5, 1e-9)
			So(m.Overall, ShouldAlmostEqual, 0.7*m.Compatibility+0.3*m.Headroom, 1e-9)
		})
	})

	Convey("Given headphones without impedance", t, func() {
		So(power.MatchAmplifiers([]model.Component{{Name: "?"}}, []model.Component{{Name: "amp"}}), ShouldBeNil)
	})

	Convey("Given advisability checks", t, func() {
		So(power.AdvisesAmplification(power.ComputeRequirement(300, 90, 110)), ShouldBeTrue)
		So(power.AdvisesAmplification(power.ComputeRequirement(16, 110, 110)), ShouldBeFalse)
	})
}
