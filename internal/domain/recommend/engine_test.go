package recommend_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/audiomatch/internal/domain/model"
	"github.com/okian/audiomatch/internal/domain/recommend"
	"github.com/okian/audiomatch/internal/domain/scoring"
	"github.com/okian/audiomatch/internal/validation"
	"github.com/okian/audiomatch/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type fakeCatalog struct {
	components []model.Component
	fetchErr   map[model.Category]error
	countErr   map[model.Category]error
	fetches    atomic.Int32
	counts     atomic.Int32
}

func (f *fakeCatalog) FetchComponents(ctx context.Context, cats []model.Category, _ recommend.OrderHint) ([]model.Component, error) {
	f.fetches.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []model.Component
	for _, c := range cats {
		if err := f.fetchErr[c]; err != nil {
			return nil, err
		}
		for _, comp := range f.components {
			if comp.Category == c {
				out = append(out, comp)
			}
		}
	}
	return out, nil
}

func (f *fakeCatalog) CountInPriceWindow(ctx context.Context, c model.Category, lo, hi float64) (int, error) {
	f.counts.Add(1)
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := f.countErr[c]; err != nil {
		return 0, err
	}
	n := 0
	for i := range f.components {
		comp := &f.components[i]
		if comp.Category != c {
			continue
		}
		if avg, ok := comp.AveragePrice(); ok && avg >= lo && avg <= hi {
			n++
		}
	}
	return n, nil
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string]*model.Response
	sets int
}

func (c *fakeCache) Get(_ context.Context, key string) (*model.Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.data[key]
	return r, ok
}

func (c *fakeCache) Set(_ context.Context, key string, resp *model.Response, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = map[string]*model.Response{}
	}
	c.data[key] = resp
	c.sets++
}

type fakeResolver struct {
	known map[string]model.Electrical
	err   error
}

func (r *fakeResolver) Resolve(_ context.Context, desc string) (model.Electrical, bool, error) {
	if r.err != nil {
		return model.Electrical{}, false, r.err
	}
	for k, v := range r.known {
		if strings.Contains(strings.ToLower(desc), k) {
			return v, true, nil
		}
	}
	return model.Electrical{}, false, nil
}

func catalogFixture() []model.Component {
	return []model.Component{
		{ID: "hd600", Brand: "Sennheiser", Name: "HD 600", Category: model.CategoryHeadphone, ImpedanceOhms: 300, SensitivityDBmW: model.Float(97), PriceUsedLow: model.Float(250), PriceUsedHigh: model.Float(310), Signature: "neutral", DriverType: "dynamic"},
		{ID: "porta", Brand: "Koss", Name: "Porta Pro", Category: model.CategoryHeadphone, ImpedanceOhms: 32, SensitivityDBmW: model.Float(101), PriceNew: model.Float(230), Signature: "warm", DriverType: "dynamic"},
		{ID: "sundara", Brand: "HiFiMan", Name: "Sundara", Category: model.CategoryHeadphone, ImpedanceOhms: 37, SensitivityDBmW: model.Float(94), PriceNew: model.Float(329), Signature: "neutral", DriverType: "planar"},
		{ID: "aria", Brand: "Moondrop", Name: "Aria", Category: model.CategoryIEM, ImpedanceOhms: 32, SensitivityDBmW: model.Float(122), PriceNew: model.Float(80), Signature: "neutral", DriverType: "dynamic"},
		{ID: "e30", Brand: "Topping", Name: "E30", Category: model.CategoryDAC, PriceNew: model.Float(99), SINAD: model.Float(118)},
		{ID: "magni", Brand: "Schiit", Name: "Magni", Category: model.CategoryAmp, PriceNew: model.Float(70), PowerOutput: "2.4W @ 32Ω"},
		{ID: "asgard", Brand: "Schiit", Name: "Asgard 3", Category: model.CategoryAmp, PriceNew: model.Float(220), PowerOutput: "3.5W @ 32 ohms"},
		{ID: "k3", Brand: "FiiO", Name: "K3", Category: model.CategoryDACAmp, PriceNew: model.Float(80), PowerOutput: "320mW @ 32ohm"},
	}
}

// recordingLogger keeps every entry so tests can inspect fields.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	msg    string
	fields []logger.Field
}

func (l *recordingLogger) record(msg string, fields []logger.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{msg: msg, fields: fields})
}

func (l *recordingLogger) Info(_ context.Context, msg string, f ...logger.Field)  { l.record(msg, f) }
func (l *recordingLogger) Error(_ context.Context, msg string, f ...logger.Field) { l.record(msg, f) }
func (l *recordingLogger) Debug(_ context.Context, msg string, f ...logger.Field) { l.record(msg, f) }
func (l *recordingLogger) Warn(_ context.Context, msg string, f ...logger.Field)  { l.record(msg, f) }
func (l *recordingLogger) Fatal(_ context.Context, msg string, f ...logger.Field) { l.record(msg, f) }
func (l *recordingLogger) Named(string) logger.Logger                           { return l }

func (l *recordingLogger) field(msg, key string) (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.msg != msg {
			continue
		}
		for _, f := range e.fields {
			if f.Key == key {
				return f.Value, true
			}
		}
	}
	return nil, false
}

func newEngine(cat *fakeCatalog, opts ...recommend.Option) *recommend.Engine {
	e, err := recommend.New(cat, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

func ids(list []model.ScoredCandidate) []string {
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = c.Component.ID
	}
	return out
}

func TestRecommendSingleHeadphone(t *testing.T) {
	Convey("Given a 300 budget for headphones only", t, func() {
		cat := &fakeCatalog{components: catalogFixture()}
		e := newEngine(cat)
		resp, err := e.Recommend(context.Background(), model.RecommendationRequest{
			RequestID:  "req-1",
			Budget:     300,
			Categories: []model.Category{"headphones"},
			Signature:  "neutral",
		})

		Convey("Then the headphone cap limits the allocation", func() {
			So(err, ShouldBeNil)
			So(resp.RequestID, ShouldEqual, "req-1")
			So(resp.Strategy, ShouldEqual, scoring.StrategyPriceFit)
			So(resp.Allocation.Categories[model.CategoryHeadphone].Amount, ShouldEqual, 270)
			res, ok := resp.Result(model.CategoryHeadphone)
			So(ok, ShouldBeTrue)
			So(res.Status, ShouldEqual, model.StatusOK)
			So(res.Allocation, ShouldEqual, 270)
		})

		Convey("Then only candidates in the window are ranked", func() {
			res, _ := resp.Result(model.CategoryHeadphone)
			So(ids(res.Candidates), ShouldContain, "hd600")
			So(ids(res.Candidates), ShouldContain, "porta")
			So(ids(res.Candidates), ShouldNotContain, "sundara")
			for i := 1; i < len(res.Candidates); i++ {
				So(res.Candidates[i-1].Score, ShouldBeGreaterThanOrEqualTo, res.Candidates[i].Score)
			}
		})

		Convey("Then a hard to drive pick triggers amplifier suggestions", func() {
			So(resp.AmplificationAdvisable, ShouldBeTrue)
			So(resp.AmplificationRationale, ShouldContainSubstring, "HD 600")
			So(resp.SuggestedAmplifiers, ShouldHaveLength, 2)
			for _, s := range resp.SuggestedAmplifiers {
				So(s.Component.Category.IsAmplifying(), ShouldBeTrue)
				So(s.PowerAdequacy, ShouldNotBeNil)
			}
		})
	})
}

func TestRecommendEasyIEM(t *testing.T) {
	Convey("Given a sensitive IEM request", t, func() {
		cat := &fakeCatalog{components: catalogFixture()}
		resp, err := newEngine(cat).Recommend(context.Background(), model.RecommendationRequest{
			Budget: 100, Categories: []model.Category{model.CategoryIEM},
		})

		Convey("Then no amplifier is advised", func() {
			So(err, ShouldBeNil)
			res, _ := resp.Result(model.CategoryIEM)
			So(ids(res.Candidates), ShouldResemble, []string{"aria"})
			So(resp.AmplificationAdvisable, ShouldBeFalse)
			So(resp.SuggestedAmplifiers, ShouldBeEmpty)
		})
	})
}

func TestRecommendRedistribution(t *testing.T) {
	Convey("Given headphones and an amp where no amp fits the window", t, func() {
		cat := &fakeCatalog{components: catalogFixture()}
		resp, err := newEngine(cat).Recommend(context.Background(), model.RecommendationRequest{
			Budget: 400, Categories: []model.Category{model.CategoryHeadphone, model.CategoryAmp},
		})

		Convey("Then the amp share moves to headphones", func() {
			So(err, ShouldBeNil)
			amp, _ := resp.Result(model.CategoryAmp)
			So(amp.Status, ShouldEqual, model.StatusUnavailable)
			So(amp.Allocation, ShouldEqual, 0)
			So(amp.Candidates, ShouldBeEmpty)
			So(resp.Allocation.Categories[model.CategoryHeadphone].Amount, ShouldEqual, 360)
			So(resp.Allocation.Redistributed, ShouldEqual, 60)
			So(resp.Allocation.Sum(), ShouldBeLessThanOrEqualTo, 400)
			hp, _ := resp.Result(model.CategoryHeadphone)
			So(ids(hp.Candidates), ShouldResemble, []string{"sundara"})
		})

		Convey("Then no suggestion is made because an amp was requested", func() {
			So(resp.SuggestedAmplifiers, ShouldBeEmpty)
		})
	})
}

func TestRecommendNoResults(t *testing.T) {
	Convey("Given a driver type nothing in the window uses", t, func() {
		cat := &fakeCatalog{components: catalogFixture()}
		resp, err := newEngine(cat).Recommend(context.Background(), model.RecommendationRequest{
			Budget: 300, Categories: []model.Category{model.CategoryHeadphone}, DriverType: "Electrostatic",
		})

		Convey("Then the category reports no results and zero allocation", func() {
			So(err, ShouldBeNil)
			res, _ := resp.Result(model.CategoryHeadphone)
			So(res.Status, ShouldEqual, model.StatusNoResults)
			So(res.Candidates, ShouldBeEmpty)
			So(res.Allocation, ShouldEqual, 0)
			So(res.Excluded[scoring.ReasonDriverType], ShouldEqual, 2)
			So(resp.Allocation.Categories[model.CategoryHeadphone].Amount, ShouldEqual, 0)
			So(resp.AmplificationAdvisable, ShouldBeFalse)
		})
	})
}

func TestRecommendFailures(t *testing.T) {
	Convey("Given a catalog failing for one category", t, func() {
		cat := &fakeCatalog{
			components: catalogFixture(),
			fetchErr:   map[model.Category]error{model.CategoryDAC: errors.New("boom")},
		}
		cache := &fakeCache{}
		resp, err := newEngine(cat, recommend.WithCache(cache, time.Minute)).Recommend(context.Background(), model.RecommendationRequest{
			Budget: 400, Categories: []model.Category{model.CategoryHeadphone, model.CategoryDAC},
		})

		Convey("Then the other category still succeeds", func() {
			So(err, ShouldBeNil)
			hp, _ := resp.Result(model.CategoryHeadphone)
			So(hp.Status, ShouldEqual, model.StatusOK)
			So(hp.Candidates, ShouldNotBeEmpty)
			dac, _ := resp.Result(model.CategoryDAC)
			So(dac.Status, ShouldEqual, model.StatusError)
			So(dac.Error, ShouldContainSubstring, "boom")
		})

		Convey("Then the partial response is not cached", func() {
			So(cache.sets, ShouldEqual, 0)
		})
	})

	Convey("Given a catalog failing for every category", t, func() {
		cat := &fakeCatalog{
			components: catalogFixture(),
			countErr:   map[model.Category]error{model.CategoryHeadphone: errors.New("probe down")},
			fetchErr:   map[model.Category]error{model.CategoryIEM: errors.New("fetch down")},
		}
		resp, err := newEngine(cat).Recommend(context.Background(), model.RecommendationRequest{
			Budget: 200, Categories: []model.Category{model.CategoryHeadphone, model.CategoryIEM},
		})

		Convey("Then an upstream error is returned", func() {
			So(resp, ShouldBeNil)
			So(errors.Is(err, recommend.ErrUpstream), ShouldBeTrue)
			So(errors.Is(err, recommend.ErrInvalidRequest), ShouldBeFalse)
			var ce *recommend.CategoryError
			So(errors.As(err, &ce), ShouldBeTrue)
		})
	})

	Convey("Given a canceled context", t, func() {
		cat := &fakeCatalog{components: catalogFixture()}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newEngine(cat).Recommend(ctx, model.RecommendationRequest{
			Budget: 300, Categories: []model.Category{model.CategoryHeadphone},
		})
		So(errors.Is(err, context.Canceled), ShouldBeTrue)
	})

	Convey("Given an aborted request with an ID", t, func() {
		rec := &recordingLogger{}
		cat := &fakeCatalog{components: catalogFixture()}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newEngine(cat, recommend.WithLogger(rec)).Recommend(ctx, model.RecommendationRequest{
			RequestID: "req-42", Budget: 300, Categories: []model.Category{model.CategoryHeadphone},
		})
		So(err, ShouldNotBeNil)

		Convey("Then the abort log carries the request ID", func() {
			id, ok := rec.field("recommendation aborted", "request_id")
			So(ok, ShouldBeTrue)
			So(id, ShouldEqual, "req-42")
		})
	})
}

func TestRecommendInvalid(t *testing.T) {
	cases := []struct {
		name  string
		req   model.RecommendationRequest
		field string
	}{
		{"budget too low", model.RecommendationRequest{Budget: 5, Categories: []model.Category{"headphone"}}, "budget"},
		{"budget too high", model.RecommendationRequest{Budget: 60000, Categories: []model.Category{"headphone"}}, "budget"},
		{"no categories", model.RecommendationRequest{Budget: 300}, "categories"},
		{"unknown category", model.RecommendationRequest{Budget: 300, Categories: []model.Category{"turntable"}}, "categories"},
		{"unknown signature", model.RecommendationRequest{Budget: 300, Categories: []model.Category{"iem"}, Signature: "spicy"}, "signature"},
		{"unknown experience", model.RecommendationRequest{Budget: 300, Categories: []model.Category{"iem"}, Experience: "guru"}, "experience"},
		{"unknown driver", model.RecommendationRequest{Budget: 300, Categories: []model.Category{"iem"}, DriverType: "piezo"}, "driver_type"},
		{"negative tolerance", model.RecommendationRequest{Budget: 300, Categories: []model.Category{"iem"}, ToleranceBelow: model.Float(-1)}, "tolerance_below"},
	}

	Convey("Given invalid requests", t, func() {
		for _, tc := range cases {
			Convey("When "+tc.name, func() {
				cat := &fakeCatalog{components: catalogFixture()}
				_, err := newEngine(cat).Recommend(context.Background(), tc.req)

				So(errors.Is(err, recommend.ErrInvalidRequest), ShouldBeTrue)
				var verr *validation.RequestValidationError
				So(errors.As(err, &verr), ShouldBeTrue)
				fields := []string{}
				for _, fe := range verr.Errors() {
					fields = append(fields, fe.Field())
				}
				So(fields, ShouldContain, tc.field)
				So(cat.counts.Load(), ShouldEqual, 0)
				So(cat.fetches.Load(), ShouldEqual, 0)
			})
		}
	})
}

func TestRecommendCache(t *testing.T) {
	Convey("Given an engine with a cache", t, func() {
		cat := &fakeCatalog{components: catalogFixture()}
		cache := &fakeCache{}
		e := newEngine(cat, recommend.WithCache(cache, time.Minute))
		ctx := context.Background()

		first, err := e.Recommend(ctx, model.RecommendationRequest{
			RequestID: "one", Budget: 300, Categories: []model.Category{"headphone"}, Signature: "neutral",
		})
		So(err, ShouldBeNil)
		So(first.Cached, ShouldBeFalse)
		So(cache.sets, ShouldEqual, 1)
		fetches := cat.fetches.Load()

		Convey("When an equivalent request arrives", func() {
			second, err := e.Recommend(ctx, model.RecommendationRequest{
				RequestID: "two", Budget: 300.001, Categories: []model.Category{" Headphones "}, Signature: "Analytical",
			})

			Convey("Then it is served from the cache", func() {
				So(err, ShouldBeNil)
				So(second.Cached, ShouldBeTrue)
				So(second.RequestID, ShouldEqual, "two")
				So(cat.fetches.Load(), ShouldEqual, fetches)
				So(first.Cached, ShouldBeFalse)
			})
		})
	})
}

func TestRecommendOwnership(t *testing.T) {
	hd650 := model.Electrical{Brand: "Sennheiser", Name: "HD 650", ImpedanceOhms: 300, SensitivityDBmW: model.Float(103)}

	Convey("Given a listener who owns headphones and wants an amp", t, func() {
		cat := &fakeCatalog{components: catalogFixture()}
		e := newEngine(cat, recommend.WithOwnership(&fakeResolver{known: map[string]model.Electrical{"hd 650": hd650}}))

		for _, req := range []model.RecommendationRequest{
			{Budget: 300, Categories: []model.Category{"amp"}, ExistingHeadphones: "Sennheiser HD 650"},
			{Budget: 300, Categories: []model.Category{"amp"}, ExistingGear: []string{"headphones: HD 650"}},
			{Budget: 300, Categories: []model.Category{"amp"}, ExistingGear: []string{"my old HD 650"}},
		} {
			resp, err := e.Recommend(context.Background(), req)

			So(err, ShouldBeNil)
			So(resp.Allocation.OwnedHeadphones, ShouldBeTrue)
			So(resp.OwnedHeadphones, ShouldNotBeNil)
			So(resp.OwnedHeadphones.Name, ShouldEqual, "HD 650")
			So(resp.Allocation.Categories[model.CategoryAmp].Amount, ShouldEqual, 250)

			amp, _ := resp.Result(model.CategoryAmp)
			So(ids(amp.Candidates), ShouldResemble, []string{"asgard"})
			So(amp.Candidates[0].PowerAdequacy, ShouldNotBeNil)
			So(resp.AmplificationAdvisable, ShouldBeTrue)
			So(resp.SuggestedAmplifiers, ShouldBeEmpty)
		}
	})

	Convey("Given a resolver that fails", t, func() {
		cat := &fakeCatalog{components: catalogFixture()}
		e := newEngine(cat, recommend.WithOwnership(&fakeResolver{err: errors.New("lookup down")}))
		resp, err := e.Recommend(context.Background(), model.RecommendationRequest{
			Budget: 300, Categories: []model.Category{"amp"}, ExistingHeadphones: "HD 650",
		})

		Convey("Then ownership still counts and electrical specs are skipped", func() {
			So(err, ShouldBeNil)
			So(resp.Allocation.OwnedHeadphones, ShouldBeTrue)
			So(resp.OwnedHeadphones, ShouldBeNil)
			amp, _ := resp.Result(model.CategoryAmp)
			So(amp.Candidates[0].PowerAdequacy, ShouldBeNil)
		})
	})
}

func TestRecommendPerformanceTier(t *testing.T) {
	Convey("Given the performance_tier strategy", t, func() {
		s, err := scoring.New(scoring.StrategyPerformanceTier)
		So(err, ShouldBeNil)
		cat := &fakeCatalog{components: catalogFixture()}
		e := newEngine(cat, recommend.WithStrategy(s), recommend.WithAutoSuggestCount(0))
		So(e.Strategy(), ShouldEqual, scoring.StrategyPerformanceTier)

		resp, err := e.Recommend(context.Background(), model.RecommendationRequest{
			Budget: 300, Categories: []model.Category{"headphone"},
		})
		So(err, ShouldBeNil)
		So(resp.Strategy, ShouldEqual, scoring.StrategyPerformanceTier)
		So(resp.SuggestedAmplifiers, ShouldBeEmpty)
	})
}

func TestFingerprint(t *testing.T) {
	Convey("Given two requests differing only in presentation", t, func() {
		a := model.RecommendationRequest{
			Budget: 500, Categories: []model.Category{"headphone", "amp"}, Signature: "warm",
			ExistingGear: []string{"Topping E30", "cans"},
		}
		b := model.RecommendationRequest{
			RequestID: "ignored", Budget: 500.00, Categories: []model.Category{"Amplifier", "headphones", "amp"}, Signature: "DARK",
			ExistingGear: []string{"  cans", "topping   e30"},
		}
		ka, okA := recommend.Fingerprint(a, scoring.StrategyPriceFit)
		kb, okB := recommend.Fingerprint(b, scoring.StrategyPriceFit)

		So(okA, ShouldBeTrue)
		So(okB, ShouldBeTrue)
		So(ka, ShouldEqual, kb)
		So(ka, ShouldStartWith, "rec:v1:")

		Convey("Then strategy and budget change the key", func() {
			kc, _ := recommend.Fingerprint(a, scoring.StrategyPerformanceTier)
			So(kc, ShouldNotEqual, ka)
			a.Budget = 501
			kd, _ := recommend.Fingerprint(a, scoring.StrategyPriceFit)
			So(kd, ShouldNotEqual, ka)
		})

		Convey("Then invalid requests have no key", func() {
			_, ok := recommend.Fingerprint(model.RecommendationRequest{Budget: 1}, scoring.StrategyPriceFit)
			So(ok, ShouldBeFalse)
		})
	})
}
