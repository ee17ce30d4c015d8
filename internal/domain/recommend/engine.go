// Package recommend orchestrates a recommendation: validation, budget
// allocation, catalog fetches, per-category ranking and the amplification
// advice that ties headphones to amplifiers.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/okian/audiomatch/internal/domain/budget"
	"github.com/okian/audiomatch/internal/domain/model"
	"github.com/okian/audiomatch/internal/domain/power"
	"github.com/okian/audiomatch/internal/domain/scoring"
	"github.com/okian/audiomatch/pkg/logger"
	"github.com/okian/audiomatch/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Engine produces recommendations. It is safe for concurrent use and holds
// no per-request state.
type Engine struct {
	catalog   Catalog
	ownership OwnershipResolver
	cache     Cache
	cacheTTL  time.Duration
	strategy  scoring.Strategy
	assessor  *power.Assessor
	allocOpts []budget.Option
	allocator *budget.Allocator
	suggestN  int
	logger    logger.Logger
}

// New creates an Engine reading from catalog.
func New(catalog Catalog, opts ...Option) (*Engine, error) {
	if catalog == nil {
		return nil, errors.New("recommend: catalog is required")
	}
	e := &Engine{
		catalog:  catalog,
		cacheTTL: DefaultCacheTTL,
		assessor: power.NewAssessor(),
		suggestN: DefaultAutoSuggest,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.strategy == nil {
		s, err := scoring.New(scoring.StrategyPriceFit)
		if err != nil {
			return nil, err
		}
		e.strategy = s
	}
	if e.logger == nil {
		e.logger = logger.Get().Named("engine")
	}
	e.allocator = budget.New(catalog, e.allocOpts...)
	return e, nil
}

// Strategy returns the name of the scoring strategy in use.
func (e *Engine) Strategy() string { return e.strategy.Name() }

type fetched struct {
	components []model.Component
	err        error
}

type ownedGear struct {
	headphones bool
	loads      []model.Electrical
}

// Recommend runs one recommendation. Invalid requests fail with
// ErrInvalidRequest before any catalog call. Catalog failures are isolated
// per category; an error wrapping ErrUpstream is returned only when every
// requested category failed.
func (e *Engine) Recommend(ctx context.Context, req model.RecommendationRequest) (*model.Response, error) {
	start := time.Now()

	n, verr := normalize(req)
	if verr != nil {
		metrics.RecordRecommendation(metrics.OutcomeInvalid, sinceMs(start))
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, verr)
	}
	log := []logger.Field{logger.String("request_id", n.requestID)}

	key := n.key(e.strategy.Name())
	if e.cache != nil {
		if cached, ok := e.cache.Get(ctx, key); ok {
			out := *cached
			out.Cached = true
			out.RequestID = n.requestID
			e.logger.Debug(ctx, "cache hit", log...)
			metrics.RecordRecommendation(metrics.OutcomeCached, sinceMs(start))
			return &out, nil
		}
	}

	owned := e.resolveOwnership(ctx, n)
	e.logger.Debug(ctx, "ownership resolved", append(log,
		logger.Bool("owns_headphones", owned.headphones),
		logger.Int("resolved", len(owned.loads)))...)

	alloc, err := e.allocator.Allocate(ctx, budget.Request{
		Total:          n.budget,
		Categories:     n.categories,
		OwnsHeadphones: owned.headphones,
		Tolerance:      n.tolerance,
	})
	if err != nil {
		e.fail(ctx, start, err, log)
		return nil, err
	}
	e.recordAllocation(alloc)
	for _, pe := range alloc.ProbeErrors {
		e.logger.Warn(ctx, "availability probe failed", append(log,
			logger.String("category", string(pe.Category)), logger.Error(pe.Err))...)
	}
	e.logger.Debug(ctx, "budget allocated", append(log,
		logger.Float64("redistributed", alloc.Allocation.Redistributed))...)

	lists, err := e.fetch(ctx, n.categories, alloc.Allocation)
	if err != nil {
		e.fail(ctx, start, err, log)
		return nil, err
	}

	resp := &model.Response{
		RequestID:  n.requestID,
		Strategy:   e.strategy.Name(),
		Budget:     n.budget,
		Allocation: alloc.Allocation,
	}
	results := make(map[model.Category]model.CategoryResult, len(n.categories))

	var picks []model.Component
	for _, c := range n.categories {
		if !c.IsTransducer() {
			continue
		}
		res := e.rank(ctx, n, c, resp, lists[c], nil)
		results[c] = res
		for i := 0; i < len(res.Candidates) && i < powerTargetPicks; i++ {
			picks = append(picks, res.Candidates[i].Component)
		}
	}

	loads := append([]model.Electrical(nil), owned.loads...)
	for i := range picks {
		loads = append(loads, picks[i].Electrical())
	}
	target, hasTarget := power.MostDemanding(loads)
	var targetRef *power.Target
	if hasTarget {
		targetRef = &target
	}

	for _, c := range n.categories {
		if c.IsTransducer() {
			continue
		}
		var t *power.Target
		if c.IsAmplifying() {
			t = targetRef
		}
		results[c] = e.rank(ctx, n, c, resp, lists[c], t)
	}

	for _, c := range n.categories {
		resp.Results = append(resp.Results, results[c])
	}
	if len(owned.loads) > 0 {
		first := owned.loads[0]
		resp.OwnedHeadphones = &first
	}

	advised := picks
	if len(advised) == 0 {
		for _, l := range owned.loads {
			advised = append(advised, model.Component{
				Brand: l.Brand, Name: l.Name, Category: model.CategoryHeadphone,
				ImpedanceOhms: l.ImpedanceOhms, SensitivityDBmW: l.SensitivityDBmW, NeedsAmp: l.NeedsAmp,
			})
		}
	}
	resp.AmplificationAdvisable, resp.AmplificationRationale = e.advise(advised)

	if resp.AmplificationAdvisable && len(picks) > 0 && !requestsAmplifier(n.categories) && e.suggestN > 0 {
		resp.SuggestedAmplifiers = e.suggest(ctx, n, targetRef, log)
	}

	failed := 0
	for _, r := range resp.Results {
		if r.Status == model.StatusError {
			failed++
		}
	}
	if failed == len(resp.Results) {
		err := e.upstreamError(resp.Results)
		metrics.RecordRecommendation(metrics.OutcomeUpstream, sinceMs(start))
		e.logger.Error(ctx, "every category failed", append(log, logger.Error(err))...)
		return nil, err
	}

	outcome := metrics.OutcomeOK
	if failed > 0 {
		outcome = metrics.OutcomePartial
	} else if e.cache != nil {
		e.cache.Set(ctx, key, resp, e.cacheTTL)
	}
	metrics.RecordRecommendation(outcome, sinceMs(start))
	e.logger.Debug(ctx, "recommendation complete", append(log,
		logger.String("outcome", outcome),
		logger.Bool("amplification_advisable", resp.AmplificationAdvisable),
		logger.Duration("elapsed", time.Since(start)))...)
	return resp, nil
}

// resolveOwnership works out whether the user already has headphones and the
// electrical specs of whatever could be identified.
func (e *Engine) resolveOwnership(ctx context.Context, n normalized) ownedGear {
	var (
		out   ownedGear
		descs []string
	)
	if n.headphones != "" {
		out.headphones = true
		descs = append(descs, n.headphones)
	}

	var unresolved []string
	for _, g := range n.gear {
		cat, desc := splitDescriptor(g)
		switch {
		case cat != "" && cat.IsTransducer():
			out.headphones = true
			if desc != "" {
				descs = append(descs, desc)
			}
		case cat == "":
			unresolved = append(unresolved, desc)
		}
	}

	if e.ownership == nil {
		return out
	}
	for _, d := range descs {
		if el, ok := e.resolve(ctx, d); ok {
			out.loads = append(out.loads, el)
		}
	}
	// Bare descriptors count as headphones only when the catalog knows them as such.
	for _, d := range unresolved {
		if el, ok := e.resolve(ctx, d); ok {
			out.headphones = true
			out.loads = append(out.loads, el)
		}
	}
	return out
}

func (e *Engine) resolve(ctx context.Context, desc string) (model.Electrical, bool) {
	el, ok, err := e.ownership.Resolve(ctx, desc)
	if err != nil {
		e.logger.Warn(ctx, "ownership lookup failed", logger.String("description", desc), logger.Error(err))
		return model.Electrical{}, false
	}
	return el, ok
}

// splitDescriptor reads "category: description", a bare category, or a
// bare description.
func splitDescriptor(g string) (model.Category, string) {
	if i := strings.IndexByte(g, ':'); i > 0 {
		if c, err := model.ParseCategory(g[:i]); err == nil {
			return c, strings.TrimSpace(g[i+1:])
		}
	}
	if c, err := model.ParseCategory(g); err == nil {
		return c, ""
	}
	return "", g
}

// fetch loads candidates for every category with money allotted.
func (e *Engine) fetch(ctx context.Context, cats []model.Category, alloc model.BudgetAllocation) (map[model.Category]fetched, error) {
	out := make([]fetched, len(cats))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range cats {
		if a := alloc.Categories[c]; a.Status != model.StatusOK {
			continue
		}
		g.Go(func() error {
			comps, err := e.catalog.FetchComponents(gctx, []model.Category{c}, OrderPriceAsc)
			if err != nil {
				err = &CategoryError{Category: c, Op: "fetch", Err: err}
			}
			out[i] = fetched{components: comps, err: err}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}

	m := make(map[model.Category]fetched, len(cats))
	for i, c := range cats {
		m[c] = out[i]
	}
	return m, nil
}

// rank scores one category and keeps resp.Allocation in step with the result.
func (e *Engine) rank(ctx context.Context, n normalized, c model.Category, resp *model.Response, f fetched, target *power.Target) model.CategoryResult {
	a := resp.Allocation.Categories[c]
	res := model.CategoryResult{
		Category:   c,
		Status:     a.Status,
		Allocation: a.Amount,
		Candidates: []model.ScoredCandidate{},
	}

	switch a.Status {
	case model.StatusUnavailable:
		return res
	case model.StatusError:
		res.Error = fmt.Sprintf("availability probe failed for %s", c)
		return res
	}
	if f.err != nil {
		res.Status = model.StatusError
		res.Error = f.err.Error()
		a.Status = model.StatusError
		resp.Allocation.Categories[c] = a
		e.logger.Warn(ctx, "category fetch failed", logger.String("request_id", n.requestID),
			logger.String("category", string(c)), logger.Error(f.err))
		return res
	}

	out := e.strategy.Rank(ctx, scoring.Input{
		Category:    c,
		Candidates:  f.components,
		SubBudget:   a.Amount,
		TotalBudget: n.budget,
		Tolerance:   n.tolerance,
		Preference:  n.signature,
		DriverType:  n.driver,
		Experience:  n.experience,
		PowerTarget: target,
	})
	metrics.RecordExclusions(string(c), out.Exclusions)
	if len(out.Exclusions) > 0 {
		res.Excluded = out.Exclusions
	}

	if len(out.Candidates) == 0 {
		res.Status = model.StatusNoResults
		res.Allocation = 0
		a.Status = model.StatusNoResults
		a.Amount = 0
		resp.Allocation.Categories[c] = a
		return res
	}
	res.Candidates = out.Candidates
	return res
}

// advise decides whether a dedicated amplifier is worth recommending for
// the given transducers.
func (e *Engine) advise(transducers []model.Component) (bool, string) {
	var (
		worst     model.Difficulty = model.DifficultyUnknown
		rationale string
	)
	for i := range transducers {
		t := &transducers[i]
		d, why := e.difficulty(t)
		if d.Rank() > worst.Rank() {
			worst = d
			rationale = fmt.Sprintf("%s: %s", t.DisplayName(), why)
		}
	}
	if worst.Rank() >= model.DifficultyDemanding.Rank() {
		return true, rationale
	}
	return false, rationale
}

// difficulty prefers the measured requirement and falls back to the
// impedance assessment. The assessment wins whenever it is harder, so
// manufacturer advice and known-difficult models are never ignored.
func (e *Engine) difficulty(t *model.Component) (model.Difficulty, string) {
	assessed := e.assessor.Assess(t.ImpedanceOhms, t.NeedsAmp, t.Name, t.Brand)
	if t.SensitivityDBmW == nil || *t.SensitivityDBmW <= 0 {
		return assessed.Difficulty, assessed.Rationale
	}
	req := power.RequirementFor(t.ImpedanceOhms, t.SensitivityDBmW)
	if (t.NeedsAmp || assessed.Upgraded) && assessed.Difficulty.Rank() > req.Difficulty.Rank() {
		return assessed.Difficulty, assessed.Rationale
	}
	return req.Difficulty, req.Rationale
}

// suggest ranks amplifiers and combos against a conservative sub-budget.
// Failures only drop the suggestion.
func (e *Engine) suggest(ctx context.Context, n normalized, target *power.Target, log []logger.Field) []model.ScoredCandidate {
	comps, err := e.catalog.FetchComponents(ctx, []model.Category{model.CategoryAmp, model.CategoryDACAmp}, OrderPriceAsc)
	if err != nil {
		e.logger.Warn(ctx, "amplifier suggestion skipped", append(log, logger.Error(err))...)
		return nil
	}
	sub := model.RoundCents(math.Min(autoSuggestBudgetShare*n.budget, budget.SignalChainCeiling(n.budget)))
	out := e.strategy.Rank(ctx, scoring.Input{
		Category:    model.CategoryAmp,
		Candidates:  comps,
		SubBudget:   sub,
		TotalBudget: n.budget,
		Tolerance:   n.tolerance,
		Preference:  n.signature,
		Experience:  n.experience,
		PowerTarget: target,
		Limit:       e.suggestN,
	})
	if len(out.Candidates) > 0 {
		metrics.RecordAutoSuggestion()
	}
	return out.Candidates
}

func (e *Engine) recordAllocation(res budget.Result) {
	if res.Allocation.Redistributed > 0 {
		metrics.RecordRedistribution()
	}
	for c, a := range res.Allocation.Categories {
		switch a.Status {
		case model.StatusOK:
			metrics.RecordProbe(string(c), "ok")
		case model.StatusUnavailable:
			metrics.RecordProbe(string(c), "empty")
		case model.StatusError:
			metrics.RecordProbe(string(c), "error")
		}
	}
}

func (e *Engine) fail(ctx context.Context, start time.Time, err error, log []logger.Field) {
	outcome := metrics.OutcomeUpstream
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		outcome = metrics.OutcomeCanceled
	}
	metrics.RecordRecommendation(outcome, sinceMs(start))
	e.logger.Debug(ctx, "recommendation aborted", append(log, logger.String("outcome", outcome), logger.Error(err))...)
}

func (e *Engine) upstreamError(results []model.CategoryResult) error {
	errs := make([]error, 0, len(results)+1)
	errs = append(errs, ErrUpstream)
	for _, r := range results {
		errs = append(errs, &CategoryError{Category: r.Category, Op: "recommend", Err: errors.New(r.Error)})
	}
	return errors.Join(errs...)
}

func requestsAmplifier(cats []model.Category) bool {
	for _, c := range cats {
		if c.IsAmplifying() {
			return true
		}
	}
	return false
}

func sinceMs(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
