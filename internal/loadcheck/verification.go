package loadcheck

import (
	"fmt"
	"strings"

	"github.com/okian/audiomatch/internal/domain/model"
)

// allocationSlack absorbs cent rounding in the allocator.
const allocationSlack = 0.01

// Violation describes one broken invariant in a response.
type Violation struct {
	RequestID string `json:"request_id"`
	Rule      string `json:"rule"`
	Detail    string `json:"detail"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s (%s)", v.RequestID, v.Rule, v.Detail)
}

// Rule names.
const (
	RuleBudget     = "allocation_within_budget"
	RuleScoreRange = "score_in_range"
	RuleScoreOrder = "scores_descending"
	RuleUnique     = "unique_models"
	RuleCategory   = "category_matches"
	RuleRequested  = "category_requested"
)

// Verify checks resp against the request that produced it.
func Verify(req model.RecommendationRequest, resp *model.Response) []Violation {
	var out []Violation
	add := func(rule, format string, args ...any) {
		out = append(out, Violation{RequestID: req.RequestID, Rule: rule, Detail: fmt.Sprintf(format, args...)})
	}

	if sum := resp.Allocation.Sum(); sum > req.Budget+allocationSlack {
		add(RuleBudget, "allocated %.2f of %.2f", sum, req.Budget)
	}

	requested := make(map[model.Category]bool, len(req.Categories))
	for _, c := range req.Categories {
		if canon, err := model.ParseCategory(string(c)); err == nil {
			requested[canon] = true
		}
	}

	for _, res := range resp.Results {
		if !requested[res.Category] {
			add(RuleRequested, "unrequested category %s", res.Category)
		}
		seen := make(map[string]bool, len(res.Candidates))
		for i, cand := range res.Candidates {
			if cand.Score < 0 || cand.Score > 100 {
				add(RuleScoreRange, "%s #%d scored %.2f", res.Category, i+1, cand.Score)
			}
			if i > 0 && cand.Score > res.Candidates[i-1].Score {
				add(RuleScoreOrder, "%s #%d (%.2f) above #%d (%.2f)", res.Category, i+1, cand.Score, i, res.Candidates[i-1].Score)
			}
			if cand.Component.Category != res.Category {
				add(RuleCategory, "%s listed under %s", cand.Component.ID, res.Category)
			}
			key := strings.ToLower(cand.Component.Brand) + "|" + strings.ToLower(cand.Component.Name)
			if seen[key] {
				add(RuleUnique, "%s %s repeated in %s", cand.Component.Brand, cand.Component.Name, res.Category)
			}
			seen[key] = true
		}
	}
	return out
}
