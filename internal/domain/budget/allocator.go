// Package budget splits a total budget across requested categories and
// shifts money away from categories the catalog cannot serve.
package budget

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/okian/audiomatch/internal/domain/model"
	"golang.org/x/sync/errgroup"
)

// Prober counts catalog items inside a price window.
type Prober interface {
	CountInPriceWindow(ctx context.Context, category model.Category, minPrice, maxPrice float64) (int, error)
}

// Request is the input to Allocate.
type Request struct {
	Total          float64
	Categories     []model.Category
	OwnsHeadphones bool
	Tolerance      model.Tolerance
}

// ProbeError records a failed availability probe.
type ProbeError struct {
	Category model.Category
	Err      error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Category, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// Result is an allocation plus any probe failures. Failed categories keep
// their allotment with status error.
type Result struct {
	Allocation  model.BudgetAllocation
	ProbeErrors []*ProbeError
}

// Allocator splits budgets. It holds no per-request state.
type Allocator struct {
	prober      Prober
	weights     WeightTable
	concurrency int
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithWeightTable replaces the weight table.
func WithWeightTable(t WeightTable) Option {
	return func(a *Allocator) {
		a.weights = t
	}
}

// WithProbeConcurrency bounds concurrent probes. Zero or less means unbounded.
func WithProbeConcurrency(n int) Option {
	return func(a *Allocator) {
		a.concurrency = n
	}
}

// New creates an Allocator backed by prober.
func New(prober Prober, opts ...Option) *Allocator {
	a := &Allocator{
		prober:  prober,
		weights: DefaultWeightTable(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Initial computes the capped split before any availability probe.
func (a *Allocator) Initial(req Request) map[model.Category]float64 {
	out := make(map[model.Category]float64, len(req.Categories))
	if len(req.Categories) == 1 {
		c := req.Categories[0]
		out[c] = model.RoundCents(math.Min(req.Total, Cap(c, req.Total)))
		return out
	}

	headroom := make(map[model.Category]float64, len(req.Categories))
	for _, c := range req.Categories {
		headroom[c] = Cap(c, req.Total)
	}
	for c, v := range a.fill(req.Total, req.Categories, headroom, req.OwnsHeadphones) {
		out[c] = v
	}
	trim(out, req.Total)
	return out
}

// Allocate splits req.Total, probes availability concurrently and
// redistributes the share of categories with nothing in their window.
func (a *Allocator) Allocate(ctx context.Context, req Request) (Result, error) {
	if len(req.Categories) == 0 {
		return Result{}, ErrNoCategories
	}
	if req.Total <= 0 || math.IsNaN(req.Total) || math.IsInf(req.Total, 0) {
		return Result{}, ErrInvalidBudget
	}

	initial := a.Initial(req)
	counts, errs, err := a.probe(ctx, req, initial)
	if err != nil {
		return Result{}, err
	}

	alloc := model.BudgetAllocation{
		Total:           req.Total,
		Categories:      make(map[model.Category]model.Allocation, len(req.Categories)),
		OwnedHeadphones: req.OwnsHeadphones,
	}
	var (
		freed     float64
		available []model.Category
		res       Result
	)
	for _, c := range req.Categories {
		amount := initial[c]
		entry := model.Allocation{
			Category: c,
			Amount:   amount,
			Window:   model.WindowFor(c, amount, req.Total, req.Tolerance),
			Count:    counts[c],
		}
		switch {
		case errs[c] != nil:
			entry.Status = model.StatusError
			res.ProbeErrors = append(res.ProbeErrors, &ProbeError{Category: c, Err: errs[c]})
		case counts[c] == 0:
			entry.Status = model.StatusUnavailable
			freed += amount
			entry.Amount = 0
		default:
			entry.Status = model.StatusOK
			available = append(available, c)
		}
		alloc.Categories[c] = entry
	}

	if freed > 0 && len(available) > 0 {
		alloc.Redistributed = a.redistribute(&alloc, freed, available, req)
	}
	res.Allocation = alloc
	return res, nil
}

// probe runs one count per category. Individual failures are reported per
// category; only cancellation of ctx aborts the whole call.
func (a *Allocator) probe(ctx context.Context, req Request, initial map[model.Category]float64) (map[model.Category]int, map[model.Category]error, error) {
	counts := make([]int, len(req.Categories))
	errs := make([]error, len(req.Categories))

	g, gctx := errgroup.WithContext(ctx)
	if a.concurrency > 0 {
		g.SetLimit(a.concurrency)
	}
	for i, c := range req.Categories {
		g.Go(func() error {
			w := model.WindowFor(c, initial[c], req.Total, req.Tolerance)
			n, err := a.prober.CountInPriceWindow(gctx, c, w.Low, w.High)
			counts[i], errs[i] = n, err
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("availability probe: %w", err)
	}

	cm := make(map[model.Category]int, len(req.Categories))
	em := make(map[model.Category]error, len(req.Categories))
	for i, c := range req.Categories {
		cm[c] = counts[i]
		if errs[i] != nil {
			em[c] = errs[i]
		}
	}
	return cm, em, nil
}

// redistribute spreads freed over available categories by weight within
// their remaining cap headroom and returns the amount actually moved.
func (a *Allocator) redistribute(alloc *model.BudgetAllocation, freed float64, available []model.Category, req Request) float64 {
	headroom := make(map[model.Category]float64, len(available))
	for _, c := range available {
		headroom[c] = math.Max(0, Cap(c, req.Total)-alloc.Categories[c].Amount)
	}
	extra := a.fill(freed, available, headroom, req.OwnsHeadphones)

	// Only available categories move, so they absorb any rounding overshoot
	// against what the others already hold.
	limit := req.Total
	amounts := make(map[model.Category]float64, len(available))
	for _, c := range available {
		amounts[c] = alloc.Categories[c].Amount + extra[c]
	}
	for c, e := range alloc.Categories {
		if _, ok := amounts[c]; !ok {
			limit -= e.Amount
		}
	}
	trim(amounts, math.Max(0, limit))

	var moved float64
	for _, c := range available {
		e := alloc.Categories[c]
		moved += amounts[c] - e.Amount
		e.Amount = amounts[c]
		e.Window = model.WindowFor(c, e.Amount, req.Total, req.Tolerance)
		alloc.Categories[c] = e
	}
	return model.RoundCents(moved)
}

// fill water-fills amount over cats by weight, never exceeding headroom.
// Categories that hit their limit are frozen and the rest is re-split.
func (a *Allocator) fill(amount float64, cats []model.Category, headroom map[model.Category]float64, owns bool) map[model.Category]float64 {
	out := make(map[model.Category]float64, len(cats))
	active := append([]model.Category(nil), cats...)
	remaining := amount

	for len(active) > 0 && remaining > 0 {
		var sumW float64
		for _, c := range active {
			sumW += a.weights.Weight(c, owns)
		}
		if sumW <= 0 {
			break
		}

		var capped []model.Category
		for _, c := range active {
			share := remaining * a.weights.Weight(c, owns) / sumW
			if share >= headroom[c]-out[c] {
				capped = append(capped, c)
			}
		}
		if len(capped) == 0 {
			for _, c := range active {
				out[c] += remaining * a.weights.Weight(c, owns) / sumW
			}
			break
		}
		for _, c := range capped {
			remaining -= headroom[c] - out[c]
			out[c] = headroom[c]
		}
		active = without(active, capped)
	}

	for c, v := range out {
		out[c] = model.RoundCents(v)
	}
	return out
}

func without(list, drop []model.Category) []model.Category {
	skip := make(map[model.Category]struct{}, len(drop))
	for _, c := range drop {
		skip[c] = struct{}{}
	}
	out := list[:0:0]
	for _, c := range list {
		if _, ok := skip[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// trim removes rounding excess, a cent at a time from the largest amounts,
// so the total never exceeds limit.
func trim(amounts map[model.Category]float64, limit float64) {
	keys := make([]model.Category, 0, len(amounts))
	for c := range amounts {
		keys = append(keys, c)
	}
	sort.Slice(keys, func(i, j int) bool {
		if amounts[keys[i]] != amounts[keys[j]] {
			return amounts[keys[i]] > amounts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	sum := func() float64 {
		var s float64
		for _, v := range amounts {
			s += v
		}
		return s
	}
	for i := 0; sum() > limit+1e-9 && len(keys) > 0; i++ {
		c := keys[i%len(keys)]
		if amounts[c] >= 0.01 {
			amounts[c] = model.RoundCents(amounts[c] - 0.01)
		}
		if i > 100*len(keys) {
			break
		}
	}
}
