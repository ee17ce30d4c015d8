package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/okian/audiomatch/internal/domain/model"
	"github.com/okian/audiomatch/internal/domain/recommend"
)

func priced(id string, cat model.Category, price float64) model.Component {
	return model.Component{ID: id, Brand: "Brand", Name: "Model " + id, Category: cat, PriceNew: model.Float(price)}
}

func TestTreapCatalog_BasicOperations(t *testing.T) {
	ctx := context.Background()
	store := NewTreapCatalog(ctx)
	defer store.Close()

	counts, _ := store.Counts(ctx)
	if len(counts) != 0 {
		t.Errorf("expected empty catalog, got %v", counts)
	}

	n, err := store.Upsert(ctx,
		priced("a", model.CategoryHeadphone, 100),
		priced("b", model.CategoryHeadphone, 200),
		priced("c", model.CategoryHeadphone, 300),
		priced("d", model.CategoryAmp, 150),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4 {
		t.Errorf("expected 4 written, got %d", n)
	}

	got, err := store.Get(ctx, "b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "Model b" {
		t.Errorf("expected Model b, got %s", got.Name)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	counts, _ = store.Counts(ctx)
	if counts[model.CategoryHeadphone] != 3 || counts[model.CategoryAmp] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
}

func TestTreapCatalog_WindowBoundsAreInclusive(t *testing.T) {
	ctx := context.Background()
	store := NewTreapCatalog(ctx)
	defer store.Close()

	_, _ = store.Upsert(ctx,
		priced("a", model.CategoryIEM, 80),
		priced("b", model.CategoryIEM, 99.99),
		priced("c", model.CategoryIEM, 100),
		priced("d", model.CategoryIEM, 100.01),
	)

	tests := []struct {
		lo, hi float64
		want   int
	}{
		{80, 100, 3},
		{80.01, 100, 2},
		{100, 100, 1},
		{0, 1000, 4},
		{200, 300, 0},
		{100, 80, 0},
	}
	for _, tt := range tests {
		got, err := store.CountInPriceWindow(ctx, model.CategoryIEM, tt.lo, tt.hi)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tt.want {
			t.Errorf("window [%v, %v]: expected %d, got %d", tt.lo, tt.hi, tt.want, got)
		}
	}

	if got, _ := store.CountInPriceWindow(ctx, model.CategoryDAC, 0, 1000); got != 0 {
		t.Errorf("expected empty category to count 0, got %d", got)
	}
}

func TestTreapCatalog_UpsertMovesPrice(t *testing.T) {
	ctx := context.Background()
	store := NewTreapCatalog(ctx)
	defer store.Close()

	_, _ = store.Upsert(ctx, priced("a", model.CategoryHeadphone, 100))
	_, _ = store.Upsert(ctx, priced("a", model.CategoryHeadphone, 500))

	if got, _ := store.CountInPriceWindow(ctx, model.CategoryHeadphone, 90, 110); got != 0 {
		t.Errorf("expected old price to be gone, got %d", got)
	}
	if got, _ := store.CountInPriceWindow(ctx, model.CategoryHeadphone, 490, 510); got != 1 {
		t.Errorf("expected new price to be indexed, got %d", got)
	}

	// Category change moves the component between trees.
	moved := priced("a", model.CategoryAmp, 500)
	_, _ = store.Upsert(ctx, moved)
	if got, _ := store.CountInPriceWindow(ctx, model.CategoryHeadphone, 0, 1000); got != 0 {
		t.Errorf("expected headphone tree to be empty, got %d", got)
	}
	if got, _ := store.CountInPriceWindow(ctx, model.CategoryAmp, 0, 1000); got != 1 {
		t.Errorf("expected amp tree to hold it, got %d", got)
	}
}

func TestTreapCatalog_UnpricedAndInverted(t *testing.T) {
	ctx := context.Background()
	store := NewTreapCatalog(ctx)
	defer store.Close()

	inverted := model.Component{ID: "inv", Brand: "X", Name: "Inv", Category: model.CategoryDAC,
		PriceUsedLow: model.Float(300), PriceUsedHigh: model.Float(100)}
	unpriced := model.Component{ID: "none", Brand: "X", Name: "None", Category: model.CategoryDAC}
	_, err := store.Upsert(ctx, priced("ok", model.CategoryDAC, 150), inverted, unpriced)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got, _ := store.CountInPriceWindow(ctx, model.CategoryDAC, 0, 10000); got != 1 {
		t.Errorf("expected only the priced component counted, got %d", got)
	}

	list, err := store.FetchComponents(ctx, []model.Category{model.CategoryDAC}, recommend.OrderPriceAsc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected all 3 components returned, got %d", len(list))
	}
	if list[0].ID != "ok" {
		t.Errorf("expected priced component first, got %s", list[0].ID)
	}
}

func TestTreapCatalog_FetchOrders(t *testing.T) {
	ctx := context.Background()
	store := NewTreapCatalog(ctx)
	defer store.Close()

	a := priced("a", model.CategoryAmp, 300)
	a.ExpertRank = 2
	b := priced("b", model.CategoryDACAmp, 100)
	c := priced("c", model.CategoryAmp, 200)
	c.ExpertRank = 1
	_, _ = store.Upsert(ctx, a, b, c)

	ids := func(list []model.Component) string {
		s := ""
		for _, c := range list {
			s += c.ID
		}
		return s
	}
	cats := []model.Category{model.CategoryAmp, model.CategoryDACAmp}
	tests := []struct {
		order recommend.OrderHint
		want  string
	}{
		{recommend.OrderPriceAsc, "bca"},
		{recommend.OrderPriceDesc, "acb"},
		{recommend.OrderRank, "cab"},
		{recommend.OrderNone, "abc"},
	}
	for _, tt := range tests {
		list, err := store.FetchComponents(ctx, cats, tt.order)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := ids(list); got != tt.want {
			t.Errorf("order %q: expected %s, got %s", tt.order, tt.want, got)
		}
	}
}

func TestTreapCatalog_RejectsInvalid(t *testing.T) {
	ctx := context.Background()
	store := NewTreapCatalog(ctx)
	defer store.Close()

	bad := model.Component{ID: "x", Name: "No brand", Category: model.CategoryAmp}
	if _, err := store.Upsert(ctx, priced("good", model.CategoryAmp, 100), bad); !errors.Is(err, ErrInvalidComponent) {
		t.Fatalf("expected ErrInvalidComponent, got %v", err)
	}
	if _, err := store.Get(ctx, "good"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected batch to be rejected as a whole, got %v", err)
	}
}

// TestTreapCatalog_MatchesBruteForce checks window counts against a linear scan.
func TestTreapCatalog_MatchesBruteForce(t *testing.T) {
	ctx := context.Background()
	store := NewTreapCatalog(ctx)
	defer store.Close()

	rng := rand.New(rand.NewSource(42))
	prices := make(map[string]float64)
	for i := 0; i < 2000; i++ {
		id := fmt.Sprintf("c%d", rng.Intn(800))
		p := float64(1+rng.Intn(99999)) / 100
		prices[id] = p
		if _, err := store.Upsert(ctx, priced(id, model.CategoryHeadphone, p)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	for i := 0; i < 200; i++ {
		loCents := rng.Intn(100000)
		lo := float64(loCents) / 100
		hi := float64(loCents+rng.Intn(30000)) / 100
		want := 0
		for _, p := range prices {
			if p >= lo && p <= hi {
				want++
			}
		}
		got, _ := store.CountInPriceWindow(ctx, model.CategoryHeadphone, lo, hi)
		if got != want {
			t.Fatalf("window [%v, %v]: expected %d, got %d", lo, hi, want, got)
		}
	}

	if root := store.trees[model.CategoryHeadphone]; nsize(root) != len(prices) {
		t.Errorf("expected tree size %d, got %d", len(prices), nsize(root))
	}
}

func TestTreapCatalog_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewTreapCatalog(ctx)
	defer store.Close()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := fmt.Sprintf("w%d-%d", w, i)
				_, _ = store.Upsert(ctx, priced(id, model.CategoryIEM, float64(10+i)))
				_, _ = store.CountInPriceWindow(ctx, model.CategoryIEM, 20, 60)
				_, _ = store.FetchComponents(ctx, []model.Category{model.CategoryIEM}, recommend.OrderPriceAsc)
			}
		}(w)
	}
	wg.Wait()

	if got, _ := store.CountInPriceWindow(ctx, model.CategoryIEM, 0, 1000); got != 800 {
		t.Errorf("expected 800 components, got %d", got)
	}
}

func TestTreapCatalog_CanceledContext(t *testing.T) {
	store := NewTreapCatalog(context.Background())
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.FetchComponents(ctx, []model.Category{model.CategoryIEM}, recommend.OrderNone); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if _, err := store.CountInPriceWindow(ctx, model.CategoryIEM, 0, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
