package model

// Component is a physical product in the catalog. It is read-only for the engine.
type Component struct {
	ID       string   `json:"id" validate:"required,max=128"`
	Brand    string   `json:"brand" validate:"required,max=100"`
	Name     string   `json:"name" validate:"required,max=200"`
	Category Category `json:"category" validate:"required,oneof=headphone iem dac amp dac_amp"`

	PriceNew      *float64 `json:"price_new,omitempty" validate:"omitempty,gte=0"`
	PriceUsedLow  *float64 `json:"price_used_low,omitempty" validate:"omitempty,gte=0"`
	PriceUsedHigh *float64 `json:"price_used_high,omitempty" validate:"omitempty,gte=0"`

	ImpedanceOhms   float64  `json:"impedance_ohms,omitempty" validate:"gte=0"`
	SensitivityDBmW *float64 `json:"sensitivity_db_mw,omitempty"`
	PowerDrawMW     *float64 `json:"power_draw_mw,omitempty"`
	NeedsAmp        bool     `json:"needs_amp,omitempty"`
	DriverType      string   `json:"driver_type,omitempty"`

	Signature         string `json:"signature,omitempty"`
	DetailedSignature string `json:"detailed_signature,omitempty"`

	ToneGrade      string   `json:"tone_grade,omitempty"`
	TechnicalGrade string   `json:"technical_grade,omitempty"`
	SINAD          *float64 `json:"sinad,omitempty"`
	ExpertRank     int      `json:"expert_rank,omitempty" validate:"gte=0"`
	ValueRating    *float64 `json:"value_rating,omitempty"`

	PowerOutput string `json:"power_output,omitempty"`
}

// Electrical carries the specs needed for power matching.
type Electrical struct {
	ImpedanceOhms   float64  `json:"impedance_ohms"`
	SensitivityDBmW *float64 `json:"sensitivity_db_mw,omitempty"`
	NeedsAmp        bool     `json:"needs_amp,omitempty"`
	Brand           string   `json:"brand,omitempty"`
	Name            string   `json:"name,omitempty"`
}

// Electrical returns the power-relevant subset of the component.
func (c *Component) Electrical() Electrical {
	return Electrical{
		ImpedanceOhms:   c.ImpedanceOhms,
		SensitivityDBmW: c.SensitivityDBmW,
		NeedsAmp:        c.NeedsAmp,
		Brand:           c.Brand,
		Name:            c.Name,
	}
}

// DisplayName joins brand and model.
func (c *Component) DisplayName() string {
	if c.Brand == "" {
		return c.Name
	}
	return c.Brand + " " + c.Name
}

// HasUsedRange reports whether both used price bounds are present.
func (c *Component) HasUsedRange() bool {
	return c.PriceUsedLow != nil && c.PriceUsedHigh != nil
}

// InvertedRange reports a used range whose low bound exceeds the high bound.
func (c *Component) InvertedRange() bool {
	return c.HasUsedRange() && *c.PriceUsedLow > *c.PriceUsedHigh
}

// AveragePrice is the mean of the used range when both bounds exist,
// otherwise the new price. ok is false when no usable price exists.
func (c *Component) AveragePrice() (avg float64, ok bool) {
	if c.HasUsedRange() {
		return (*c.PriceUsedLow + *c.PriceUsedHigh) / 2, true
	}
	if c.PriceNew != nil && *c.PriceNew > 0 {
		return *c.PriceNew, true
	}
	return 0, false
}

// PriceSpread is used-high minus used-low, or zero without a full used range.
func (c *Component) PriceSpread() float64 {
	if !c.HasUsedRange() {
		return 0
	}
	return *c.PriceUsedHigh - *c.PriceUsedLow
}

// Float returns a pointer to v. It keeps literal component fixtures short.
func Float(v float64) *float64 { return &v }
