package scoring

import (
	"strings"

	"github.com/okian/audiomatch/internal/domain/model"
	"golang.org/x/text/cases"
)

// maxSpreadRatio rejects used ranges wider than this multiple of the average.
const maxSpreadRatio = 1.5

// candidate is a component that survived filtering.
type candidate struct {
	comp model.Component
	avg  float64
}

// filter applies de-duplication, pricing, window, spread and driver checks.
// It returns survivors in input order plus per-reason exclusion counts.
func filter(in Input) ([]candidate, map[string]int, model.PriceWindow) {
	window := model.WindowFor(in.Category, in.SubBudget, in.TotalBudget, in.Tolerance)
	excluded := make(map[string]int)
	seen := make(map[string]struct{}, len(in.Candidates))
	driver := model.DriverLabel(in.DriverType)
	fold := cases.Fold()

	out := make([]candidate, 0, len(in.Candidates))
	for _, c := range in.Candidates {
		key := identity(fold, c.Brand, c.Name)
		if _, dup := seen[key]; dup {
			excluded[ReasonDuplicate]++
			continue
		}
		seen[key] = struct{}{}

		if c.InvertedRange() {
			excluded[ReasonInvertedRange]++
			continue
		}
		avg, ok := c.AveragePrice()
		if !ok {
			excluded[ReasonNoPrice]++
			continue
		}
		if !window.Contains(avg) {
			excluded[ReasonOutOfWindow]++
			continue
		}
		if c.PriceSpread() > maxSpreadRatio*avg {
			excluded[ReasonSpread]++
			continue
		}
		if driver != "" && in.Category.IsTransducer() && model.DriverLabel(c.DriverType) != driver {
			excluded[ReasonDriverType]++
			continue
		}
		out = append(out, candidate{comp: c, avg: avg})
	}
	return out, excluded, window
}

// identity is the case-folded, whitespace-collapsed brand and model.
func identity(fold cases.Caser, brand, name string) string {
	return fold.String(strings.Join(strings.Fields(brand), " ")) + "\x00" +
		fold.String(strings.Join(strings.Fields(name), " "))
}

// IdentityKey exposes the de-duplication key for adapters and checks.
func IdentityKey(brand, name string) string {
	return identity(cases.Fold(), brand, name)
}
