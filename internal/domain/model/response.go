package model

// CategoryStatus describes the outcome for one requested category.
type CategoryStatus string

// Category statuses.
const (
	StatusOK          CategoryStatus = "ok"
	StatusUnavailable CategoryStatus = "unavailable"
	StatusNoResults   CategoryStatus = "no_results"
	StatusError       CategoryStatus = "error"
)

// Difficulty classifies how hard a transducer is to drive.
type Difficulty string

// Difficulty levels, ordered from easiest.
const (
	DifficultyEasy          Difficulty = "easy"
	DifficultyModerate      Difficulty = "moderate"
	DifficultyDemanding     Difficulty = "demanding"
	DifficultyVeryDemanding Difficulty = "very_demanding"
	DifficultyUnknown       Difficulty = "unknown"
)

// Rank orders difficulties. Unknown ranks below easy.
func (d Difficulty) Rank() int {
	switch d {
	case DifficultyEasy:
		return 1
	case DifficultyModerate:
		return 2
	case DifficultyDemanding:
		return 3
	case DifficultyVeryDemanding:
		return 4
	}
	return 0
}

// PowerRequirement is the drive requirement of a transducer at a target SPL.
type PowerRequirement struct {
	PowerMW               float64    `json:"power_mw"`
	VoltageV              float64    `json:"voltage_v"`
	CurrentMA             float64    `json:"current_ma"`
	Difficulty            Difficulty `json:"difficulty"`
	PhoneCompatible       bool       `json:"phone_compatible"`
	LaptopCompatible      bool       `json:"laptop_compatible"`
	PortableAmpCompatible bool       `json:"portable_amp_compatible"`
	Estimated             bool       `json:"estimated"`
	Rationale             string     `json:"rationale"`
}

// Allocation is what the allocator handed to a single category.
type Allocation struct {
	Category Category       `json:"category"`
	Amount   float64        `json:"amount"`
	Status   CategoryStatus `json:"status"`
	Window   PriceWindow    `json:"window"`
	Count    int            `json:"available_count"`
}

// PriceWindow is an inclusive price range.
type PriceWindow struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Contains reports whether price falls inside the window.
func (w PriceWindow) Contains(price float64) bool {
	return price >= w.Low && price <= w.High
}

// BudgetAllocation is the realised split of the total budget.
type BudgetAllocation struct {
	Total           float64                 `json:"total"`
	Categories      map[Category]Allocation `json:"categories"`
	Redistributed   float64                 `json:"redistributed"`
	OwnedHeadphones bool                    `json:"owned_headphones"`
}

// Sum returns the total allotted across categories.
func (b *BudgetAllocation) Sum() float64 {
	var s float64
	for _, a := range b.Categories {
		s += a.Amount
	}
	return s
}

// ScoredCandidate is a component with its ranking detail.
type ScoredCandidate struct {
	Component     Component `json:"component"`
	Score         float64   `json:"score"`
	PriceFit      float64   `json:"price_fit"`
	Synergy       float64   `json:"synergy"`
	PowerAdequacy *float64  `json:"power_adequacy,omitempty"`
	QualityBonus  float64   `json:"quality_bonus"`
	Tier          float64   `json:"tier,omitempty"`
	AveragePrice  float64   `json:"average_price"`
	Rationale     string    `json:"rationale,omitempty"`
}

// CategoryResult is the ranked output for a single category.
type CategoryResult struct {
	Category   Category          `json:"category"`
	Status     CategoryStatus    `json:"status"`
	Allocation float64           `json:"allocation"`
	Candidates []ScoredCandidate `json:"candidates"`
	Excluded   map[string]int    `json:"excluded,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// Response is the engine output.
type Response struct {
	RequestID              string            `json:"request_id,omitempty"`
	Strategy               string            `json:"strategy"`
	Budget                 float64           `json:"budget"`
	Allocation             BudgetAllocation  `json:"allocation"`
	Results                []CategoryResult  `json:"results"`
	AmplificationAdvisable bool              `json:"amplification_advisable"`
	AmplificationRationale string            `json:"amplification_rationale,omitempty"`
	OwnedHeadphones        *Electrical       `json:"owned_headphones,omitempty"`
	SuggestedAmplifiers    []ScoredCandidate `json:"suggested_amplifiers,omitempty"`
	Cached                 bool              `json:"cached"`
}

// Result returns the category result for c if present.
func (r *Response) Result(c Category) (CategoryResult, bool) {
	for _, res := range r.Results {
		if res.Category == c {
			return res, true
		}
	}
	return CategoryResult{}, false
}
