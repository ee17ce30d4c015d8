package loadcheck

import (
	"math/rand"

	"github.com/google/uuid"

	"github.com/okian/audiomatch/internal/domain/model"
)

// Budget range for generated requests.
const (
	minGeneratedBudget = 50
	maxGeneratedBudget = 3000
)

var (
	experiences = []model.Experience{"", model.ExperienceBeginner, model.ExperienceIntermediate, model.ExperienceEnthusiast}
	signatures  = []model.Signature{"", model.SignatureNeutral, model.SignatureWarm, model.SignatureBright, model.SignatureFun, model.SignatureAny}
	owned       = []string{"", "", "", "Sennheiser HD 600", "HiFiMan Sundara", "300 ohm headphones", "Moondrop Aria 2"}

	// categorySets weights common shopping lists over odd ones.
	categorySets = [][]model.Category{
		{model.CategoryHeadphone},
		{model.CategoryIEM},
		{model.CategoryHeadphone, model.CategoryAmp},
		{model.CategoryHeadphone, model.CategoryDACAmp},
		{model.CategoryHeadphone, model.CategoryDAC, model.CategoryAmp},
		{model.CategoryIEM, model.CategoryDACAmp},
		{model.CategoryAmp},
		{model.CategoryDAC, model.CategoryAmp},
	}
)

// Generate returns n varied recommendation requests. The same seed always
// yields the same requests apart from their IDs.
func Generate(n int, seed int64) []model.RecommendationRequest {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // load shape, not security
	out := make([]model.RecommendationRequest, n)
	for i := range out {
		cats := categorySets[rng.Intn(len(categorySets))]
		req := model.RecommendationRequest{
			RequestID:  uuid.NewString(),
			Budget:     float64(minGeneratedBudget + rng.Intn(maxGeneratedBudget-minGeneratedBudget)),
			Categories: append([]model.Category(nil), cats...),
			Experience: string(experiences[rng.Intn(len(experiences))]),
			Signature:  string(signatures[rng.Intn(len(signatures))]),
		}
		if rng.Intn(4) == 0 {
			below := float64(5 + rng.Intn(30))
			req.ToleranceBelow = &below
		}
		// Only pair owned headphones with lists that don't buy new ones.
		if cats[0] != model.CategoryHeadphone {
			req.ExistingHeadphones = owned[rng.Intn(len(owned))]
		}
		out[i] = req
	}
	return out
}
