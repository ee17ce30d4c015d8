package model

// Clone returns a copy of c that shares no pointers with it.
func (c Component) Clone() Component {
	c.PriceNew = cloneFloat(c.PriceNew)
	c.PriceUsedLow = cloneFloat(c.PriceUsedLow)
	c.PriceUsedHigh = cloneFloat(c.PriceUsedHigh)
	c.SensitivityDBmW = cloneFloat(c.SensitivityDBmW)
	c.PowerDrawMW = cloneFloat(c.PowerDrawMW)
	c.SINAD = cloneFloat(c.SINAD)
	c.ValueRating = cloneFloat(c.ValueRating)
	return c
}

// Clone returns a deep copy of r. Slices, maps and pointers are duplicated
// so the copy can be mutated freely.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	out := *r

	if r.Allocation.Categories != nil {
		out.Allocation.Categories = make(map[Category]Allocation, len(r.Allocation.Categories))
		for c, a := range r.Allocation.Categories {
			out.Allocation.Categories[c] = a
		}
	}

	if r.Results != nil {
		out.Results = make([]CategoryResult, len(r.Results))
		for i, res := range r.Results {
			res.Candidates = cloneCandidates(res.Candidates)
			if res.Excluded != nil {
				excluded := make(map[string]int, len(res.Excluded))
				for k, v := range res.Excluded {
					excluded[k] = v
				}
				res.Excluded = excluded
			}
			out.Results[i] = res
		}
	}

	if r.OwnedHeadphones != nil {
		owned := *r.OwnedHeadphones
		owned.SensitivityDBmW = cloneFloat(owned.SensitivityDBmW)
		out.OwnedHeadphones = &owned
	}
	out.SuggestedAmplifiers = cloneCandidates(r.SuggestedAmplifiers)
	return &out
}

func cloneCandidates(in []ScoredCandidate) []ScoredCandidate {
	if in == nil {
		return nil
	}
	out := make([]ScoredCandidate, len(in))
	for i, sc := range in {
		sc.Component = sc.Component.Clone()
		sc.PowerAdequacy = cloneFloat(sc.PowerAdequacy)
		out[i] = sc
	}
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := *v
	return &f
}
