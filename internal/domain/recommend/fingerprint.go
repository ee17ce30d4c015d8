package recommend

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/okian/audiomatch/internal/domain/model"
	"github.com/okian/audiomatch/internal/validation"
	"golang.org/x/text/cases"
)

const fingerprintPrefix = "rec:v1:"

// normalized is a validated request with every field in canonical form.
type normalized struct {
	requestID  string
	budget     float64
	tolerance  model.Tolerance
	experience model.Experience
	categories []model.Category
	signature  model.Signature
	headphones string
	gear       []string
	driver     string
}

func normalize(req model.RecommendationRequest) (normalized, *validation.RequestValidationError) {
	verr := validation.ValidateStruct(&req)
	if verr == nil {
		verr = &validation.RequestValidationError{}
	}

	n := normalized{
		requestID:  req.RequestID,
		budget:     model.RoundCents(req.Budget),
		tolerance:  req.Tolerance(),
		headphones: collapse(req.ExistingHeadphones),
		driver:     model.DriverLabel(req.DriverType),
	}

	cats, unknown := req.UniqueCategories()
	for _, u := range unknown {
		if u == "" {
			continue
		}
		verr.Add(validation.NewFieldError("categories", "category", u, fmt.Sprintf("categories contains unknown category %q", u)))
	}
	n.categories = cats

	exp, err := model.ParseExperience(req.Experience)
	if err != nil {
		verr.Add(validation.NewFieldError("experience", "experience", req.Experience, err.Error()))
	}
	n.experience = exp

	sig, err := model.ParseSignature(req.Signature)
	if err != nil {
		verr.Add(validation.NewFieldError("signature", "signature", req.Signature, err.Error()))
	}
	n.signature = sig

	if n.driver != "" && !knownDriver(n.driver) {
		verr.Add(validation.NewFieldError("driver_type", "driver_type", req.DriverType,
			fmt.Sprintf("driver_type must be one of: %s", strings.Join(model.DriverTypes(), " "))))
	}

	for _, g := range req.ExistingGear {
		if g = collapse(g); g != "" {
			n.gear = append(n.gear, g)
		}
	}

	if !verr.Empty() {
		return normalized{}, verr
	}
	return n, nil
}

func knownDriver(d string) bool {
	for _, k := range model.DriverTypes() {
		if d == k {
			return true
		}
	}
	return false
}

// collapse trims s and squeezes inner whitespace runs to one space.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// key is the cache fingerprint of n under strategy. Categories and gear are
// order-independent; free text is case-folded.
func (n normalized) key(strategy string) string {
	fold := cases.Fold()

	cats := make([]string, len(n.categories))
	for i, c := range n.categories {
		cats[i] = string(c)
	}
	sort.Strings(cats)

	gear := make([]string, len(n.gear))
	for i, g := range n.gear {
		gear[i] = fold.String(g)
	}
	sort.Strings(gear)

	var b strings.Builder
	fmt.Fprintf(&b, "budget=%.2f\n", n.budget)
	fmt.Fprintf(&b, "tolerance=%.4f/%.4f\n", n.tolerance.Below, n.tolerance.Above)
	fmt.Fprintf(&b, "experience=%s\n", n.experience)
	fmt.Fprintf(&b, "categories=%s\n", strings.Join(cats, ","))
	fmt.Fprintf(&b, "signature=%s\n", n.signature)
	fmt.Fprintf(&b, "headphones=%s\n", fold.String(n.headphones))
	fmt.Fprintf(&b, "gear=%s\n", strings.Join(gear, "|"))
	fmt.Fprintf(&b, "driver=%s\n", n.driver)
	fmt.Fprintf(&b, "strategy=%s\n", strategy)

	sum := sha256.Sum256([]byte(b.String()))
	return fingerprintPrefix + hex.EncodeToString(sum[:])
}

// Fingerprint returns the cache key for req scored by strategy. Requests
// that differ only in ordering, casing, whitespace or alias spelling share a
// key. ok is false for invalid requests.
func Fingerprint(req model.RecommendationRequest, strategy string) (string, bool) {
	n, verr := normalize(req)
	if verr != nil {
		return "", false
	}
	return n.key(strategy), true
}
