package budget_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/audiomatch/internal/domain/budget"
	"github.com/okian/audiomatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// stubProber returns fixed counts per category and records the windows asked for.
type stubProber struct {
	mu      sync.Mutex
	counts  map[model.Category]int
	errs    map[model.Category]error
	windows map[model.Category][2]float64
	delay   time.Duration
	calls   atomic.Int32
}

func (p *stubProber) CountInPriceWindow(ctx context.Context, c model.Category, lo, hi float64) (int, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(p.delay):
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.windows == nil {
		p.windows = map[model.Category][2]float64{}
	}
	p.windows[c] = [2]float64{lo, hi}
	if err := p.errs[c]; err != nil {
		return 0, err
	}
	if n, ok := p.counts[c]; ok {
		return n, nil
	}
	return 10, nil
}

var defaultTol = model.Tolerance{Below: 0.2, Above: 0.1}

func TestSingleCategory(t *testing.T) {
	Convey("Given a single headphone request of 300", t, func() {
		a := budget.New(&stubProber{})
		res, err := a.Allocate(context.Background(), budget.Request{
			Total: 300, Categories: []model.Category{model.CategoryHeadphone}, Tolerance: defaultTol,
		})

		Convey("Then the headphone cap applies", func() {
			So(err, ShouldBeNil)
			So(res.Allocation.Categories[model.CategoryHeadphone].Amount, ShouldEqual, 270)
			So(res.Allocation.Categories[model.CategoryHeadphone].Status, ShouldEqual, model.StatusOK)
		})
	})

	Convey("Given a single DAC request on a big budget", t, func() {
		a := budget.New(&stubProber{})
		res, err := a.Allocate(context.Background(), budget.Request{
			Total: 3000, Categories: []model.Category{model.CategoryDACAmp}, Tolerance: defaultTol,
		})
		So(err, ShouldBeNil)
		So(res.Allocation.Categories[model.CategoryDACAmp].Amount, ShouldEqual, 1500)
	})
}

func TestMultiCategory(t *testing.T) {
	Convey("Given headphones plus an amp at 300", t, func() {
		p := &stubProber{}
		a := budget.New(p)
		res, err := a.Allocate(context.Background(), budget.Request{
			Total: 300, Categories: []model.Category{model.CategoryHeadphone, model.CategoryAmp}, Tolerance: defaultTol,
		})

		Convey("Then the split follows the weight table", func() {
			So(err, ShouldBeNil)
			So(res.Allocation.Categories[model.CategoryHeadphone].Amount, ShouldEqual, 225)
			So(res.Allocation.Categories[model.CategoryAmp].Amount, ShouldEqual, 75)
			So(p.calls.Load(), ShouldEqual, 2)
		})

		Convey("Then probes use the tolerance window", func() {
			w := p.windows[model.CategoryAmp]
			So(w[0], ShouldAlmostEqual, 60, 1e-9)
			So(w[1], ShouldAlmostEqual, 82.5, 1e-9)
		})
	})

	Convey("Given ownership of headphones", t, func() {
		a := budget.New(&stubProber{})
		res, err := a.Allocate(context.Background(), budget.Request{
			Total: 1000, Categories: []model.Category{model.CategoryDAC, model.CategoryAmp}, OwnsHeadphones: true, Tolerance: defaultTol,
		})
		So(err, ShouldBeNil)
		So(res.Allocation.Categories[model.CategoryDAC].Amount, ShouldEqual, 500)
		So(res.Allocation.Categories[model.CategoryAmp].Amount, ShouldEqual, 500)
		So(res.Allocation.OwnedHeadphones, ShouldBeTrue)
	})

	Convey("Given a split that hits a signal-chain cap", t, func() {
		a := budget.New(&stubProber{})
		res, err := a.Allocate(context.Background(), budget.Request{
			Total: 400, Categories: []model.Category{model.CategoryDAC, model.CategoryAmp, model.CategoryIEM}, OwnsHeadphones: true, Tolerance: defaultTol,
		})
		So(err, ShouldBeNil)
		for _, e := range res.Allocation.Categories {
			So(e.Amount, ShouldBeLessThanOrEqualTo, budget.Cap(e.Category, 400))
		}
		So(res.Allocation.Sum(), ShouldBeLessThanOrEqualTo, 400+1e-6)
	})
}

func TestAllocatorInvariants(t *testing.T) {
	Convey("Given many budgets and category mixes", t, func() {
		mixes := [][]model.Category{
			{model.CategoryHeadphone, model.CategoryDAC},
			{model.CategoryHeadphone, model.CategoryAmp, model.CategoryDAC},
			{model.CategoryIEM, model.CategoryDACAmp},
			{model.CategoryHeadphone, model.CategoryIEM, model.CategoryDAC, model.CategoryAmp, model.CategoryDACAmp},
		}
		a := budget.New(&stubProber{counts: map[model.Category]int{model.CategoryDAC: 0}})

		Convey("Then the sum never exceeds the total and nothing is negative", func() {
			for _, total := range []float64{20, 33.33, 149.99, 300, 777.77, 1499, 4999.99, 12000, 50000} {
				for _, cats := range mixes {
					for _, owns := range []bool{false, true} {
						res, err := a.Allocate(context.Background(), budget.Request{Total: total, Categories: cats, OwnsHeadphones: owns, Tolerance: defaultTol})
						So(err, ShouldBeNil)
						So(res.Allocation.Sum(), ShouldBeLessThanOrEqualTo, total+1e-6)
						for _, e := range res.Allocation.Categories {
							So(e.Amount, ShouldBeGreaterThanOrEqualTo, 0)
						}
					}
				}
			}
		})
	})
}

func TestAllocatorInvariantsWithFailedProbes(t *testing.T) {
	Convey("Given an unavailable headphone slot next to a failed IEM probe", t, func() {
		a := budget.New(&stubProber{
			counts: map[model.Category]int{model.CategoryHeadphone: 0},
			errs:   map[model.Category]error{model.CategoryIEM: errors.New("timeout")},
		})
		req := budget.Request{
			Total:      553,
			Categories: []model.Category{model.CategoryHeadphone, model.CategoryIEM, model.CategoryDAC, model.CategoryAmp},
			Tolerance:  defaultTol,
		}
		before := a.Initial(req)

		res, err := a.Allocate(context.Background(), req)
		So(err, ShouldBeNil)

		Convey("Then the failed category keeps its share and the total holds", func() {
			So(res.Allocation.Categories[model.CategoryIEM].Amount, ShouldEqual, model.RoundCents(before[model.CategoryIEM]))
			So(res.Allocation.Categories[model.CategoryHeadphone].Amount, ShouldEqual, 0)
			So(res.Allocation.Sum(), ShouldBeLessThanOrEqualTo, 553+1e-6)
		})
	})

	Convey("Given random mixes of empty, failing and stocked categories", t, func() {
		rng := rand.New(rand.NewSource(7))
		all := model.AllCategories()

		Convey("Then the sum never exceeds the total", func() {
			violations := 0
			for i := 0; i < 5000; i++ {
				p := &stubProber{counts: map[model.Category]int{}, errs: map[model.Category]error{}}
				var cats []model.Category
				for _, c := range all {
					if rng.Intn(3) == 0 {
						continue
					}
					cats = append(cats, c)
					switch rng.Intn(3) {
					case 0:
						p.counts[c] = 0
					case 1:
						p.errs[c] = errors.New("probe failed")
					default:
						p.counts[c] = 1 + rng.Intn(20)
					}
				}
				if len(cats) == 0 {
					continue
				}
				total := float64(20+rng.Intn(9980)) + float64(rng.Intn(100))/100
				res, err := budget.New(p).Allocate(context.Background(), budget.Request{
					Total: total, Categories: cats, OwnsHeadphones: rng.Intn(2) == 0, Tolerance: defaultTol,
				})
				So(err, ShouldBeNil)
				if res.Allocation.Sum() > total+1e-6 {
					violations++
				}
				for _, e := range res.Allocation.Categories {
					So(e.Amount, ShouldBeGreaterThanOrEqualTo, 0)
				}
			}
			So(violations, ShouldEqual, 0)
		})
	})
}

func TestRedistribution(t *testing.T) {
	Convey("Given a category with nothing in its window", t, func() {
		cats := []model.Category{model.CategoryHeadphone, model.CategoryDAC, model.CategoryAmp}
		a := budget.New(&stubProber{counts: map[model.Category]int{model.CategoryDAC: 0}})
		req := budget.Request{Total: 1000, Categories: cats, Tolerance: defaultTol}
		before := a.Initial(req)

		res, err := a.Allocate(context.Background(), req)
		So(err, ShouldBeNil)
		got := res.Allocation.Categories

		Convey("Then it is kept at zero with status unavailable", func() {
			So(got[model.CategoryDAC].Amount, ShouldEqual, 0)
			So(got[model.CategoryDAC].Status, ShouldEqual, model.StatusUnavailable)
		})

		Convey("Then the others gain at least what they had", func() {
			So(got[model.CategoryHeadphone].Amount+got[model.CategoryAmp].Amount, ShouldBeGreaterThanOrEqualTo,
				before[model.CategoryHeadphone]+before[model.CategoryAmp])
			So(res.Allocation.Redistributed, ShouldBeGreaterThan, 0)
			So(res.Allocation.Sum(), ShouldBeLessThanOrEqualTo, 1000+1e-6)
		})
	})

	Convey("Given a failing probe", t, func() {
		boom := errors.New("db down")
		a := budget.New(&stubProber{errs: map[model.Category]error{model.CategoryAmp: boom}, counts: map[model.Category]int{model.CategoryDAC: 0}})
		req := budget.Request{Total: 600, Categories: []model.Category{model.CategoryHeadphone, model.CategoryAmp, model.CategoryDAC}, Tolerance: defaultTol}
		before := a.Initial(req)

		res, err := a.Allocate(context.Background(), req)

		Convey("Then the failure is isolated to that category", func() {
			So(err, ShouldBeNil)
			amp := res.Allocation.Categories[model.CategoryAmp]
			So(amp.Status, ShouldEqual, model.StatusError)
			So(amp.Amount, ShouldEqual, before[model.CategoryAmp])
			So(res.ProbeErrors, ShouldHaveLength, 1)
			So(errors.Is(res.ProbeErrors[0], boom), ShouldBeTrue)
			So(res.Allocation.Categories[model.CategoryHeadphone].Status, ShouldEqual, model.StatusOK)
		})
	})

	Convey("Given a cancelled context", t, func() {
		a := budget.New(&stubProber{delay: time.Second}, budget.WithProbeConcurrency(1))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := a.Allocate(ctx, budget.Request{Total: 500, Categories: []model.Category{model.CategoryHeadphone, model.CategoryDAC}, Tolerance: defaultTol})
		So(errors.Is(err, context.Canceled), ShouldBeTrue)
	})

	Convey("Given invalid input", t, func() {
		a := budget.New(&stubProber{})
		_, err := a.Allocate(context.Background(), budget.Request{Total: 100})
		So(err, ShouldEqual, budget.ErrNoCategories)
		_, err = a.Allocate(context.Background(), budget.Request{Total: -1, Categories: []model.Category{model.CategoryDAC}})
		So(err, ShouldEqual, budget.ErrInvalidBudget)
	})
}

func TestCaps(t *testing.T) {
	Convey("Given cap tiers", t, func() {
		So(budget.SignalChainCeiling(499), ShouldEqual, 250)
		So(budget.SignalChainCeiling(500), ShouldEqual, 500)
		So(budget.SignalChainCeiling(1500), ShouldEqual, 1000)
		So(budget.SignalChainCeiling(5000), ShouldEqual, 2000)
		So(budget.Cap(model.CategoryIEM, 100), ShouldAlmostEqual, 90, 1e-9)
		So(budget.Cap(model.CategoryDACAmp, 1000), ShouldEqual, 750)
	})
}
