package model

import (
	"errors"
	"fmt"
	"strings"
)

// Budget limits accepted by the engine.
const (
	MinBudget = 20.0
	MaxBudget = 50000.0

	DefaultToleranceBelow = 20.0
	DefaultToleranceAbove = 10.0
)

// Experience is the user's self-declared experience level.
type Experience string

// Experience levels.
const (
	ExperienceBeginner     Experience = "beginner"
	ExperienceIntermediate Experience = "intermediate"
	ExperienceEnthusiast   Experience = "enthusiast"
)

// Signature is a coarse sound-signature tag.
type Signature string

// Coarse signatures. SignatureAny means no preference.
const (
	SignatureNeutral  Signature = "neutral"
	SignatureWarm     Signature = "warm"
	SignatureBright   Signature = "bright"
	SignatureFun      Signature = "fun"
	SignatureBalanced Signature = "balanced"
	SignatureAny      Signature = "any"
)

// Parse errors.
var (
	ErrUnknownExperience = errors.New("unknown experience level")
	ErrUnknownSignature  = errors.New("unknown signature")
)

// ParseExperience maps free text to an Experience. Empty input is intermediate.
func ParseExperience(s string) (Experience, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ExperienceIntermediate, nil
	case "beginner", "novice", "new":
		return ExperienceBeginner, nil
	case "intermediate":
		return ExperienceIntermediate, nil
	case "enthusiast", "expert", "audiophile":
		return ExperienceEnthusiast, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownExperience, s)
}

var signatureAliases = map[string]Signature{
	"":           SignatureAny,
	"any":        SignatureAny,
	"neutral":    SignatureNeutral,
	"analytical": SignatureNeutral,
	"reference":  SignatureNeutral,
	"warm":       SignatureWarm,
	"dark":       SignatureWarm,
	"bright":     SignatureBright,
	"fun":        SignatureFun,
	"v-shaped":   SignatureFun,
	"v_shaped":   SignatureFun,
	"vshaped":    SignatureFun,
	"balanced":   SignatureBalanced,
	"u-shaped":   SignatureBalanced,
	"u_shaped":   SignatureBalanced,
}

// ParseSignature maps a preference or catalog tag to a coarse Signature.
// Empty input means any.
func ParseSignature(s string) (Signature, error) {
	if sig, ok := signatureAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return sig, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSignature, s)
}

// RecommendationRequest is the engine input.
type RecommendationRequest struct {
	RequestID          string     `json:"request_id,omitempty"`
	Budget             float64    `json:"budget" validate:"gte=20,lte=50000"`
	ToleranceBelow     *float64   `json:"tolerance_below,omitempty" validate:"omitempty,gte=0,lte=100"`
	ToleranceAbove     *float64   `json:"tolerance_above,omitempty" validate:"omitempty,gte=0,lte=100"`
	Experience         string     `json:"experience,omitempty" validate:"max=32"`
	Categories         []Category `json:"categories" validate:"required,min=1,dive,required"`
	Signature          string     `json:"signature,omitempty" validate:"max=32"`
	ExistingHeadphones string     `json:"existing_headphones,omitempty" validate:"max=200"`
	ExistingGear       []string   `json:"existing_gear,omitempty" validate:"max=20,dive,max=200"`
	DriverType         string     `json:"driver_type,omitempty" validate:"max=32"`
}

// Tolerance is a price window expressed as fractions of the sub-budget.
type Tolerance struct {
	Below float64 `json:"below"`
	Above float64 `json:"above"`
}

// Tolerance returns the request tolerances as fractions with defaults applied.
func (r *RecommendationRequest) Tolerance() Tolerance {
	t := Tolerance{Below: DefaultToleranceBelow / 100, Above: DefaultToleranceAbove / 100}
	if r.ToleranceBelow != nil {
		t.Below = *r.ToleranceBelow / 100
	}
	if r.ToleranceAbove != nil {
		t.Above = *r.ToleranceAbove / 100
	}
	return t
}

// UniqueCategories returns the requested categories de-duplicated in request order.
// Aliases are resolved; unknown entries are returned in the second value.
func (r *RecommendationRequest) UniqueCategories() ([]Category, []string) {
	seen := make(map[Category]struct{}, len(r.Categories))
	out := make([]Category, 0, len(r.Categories))
	var unknown []string
	for _, raw := range r.Categories {
		c, err := ParseCategory(string(raw))
		if err != nil {
			unknown = append(unknown, string(raw))
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out, unknown
}

// DriverTypes lists the canonical driver labels.
func DriverTypes() []string {
	return []string{"dynamic", "planar", "ba", "hybrid", "electrostatic"}
}

// DriverLabel normalises a driver type label for comparison.
func DriverLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "balanced armature", "balanced_armature", "balanced-armature":
		return "ba"
	case "planar magnetic", "planar-magnetic", "planar_magnetic":
		return "planar"
	case "estat", "electrostat":
		return "electrostatic"
	}
	return s
}
