package repository

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/okian/audiomatch/internal/domain/model"
	"github.com/okian/audiomatch/internal/domain/recommend"
	"github.com/okian/audiomatch/internal/validation"
	"github.com/okian/audiomatch/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Each category keeps its priced components in a treap ordered by
// average price ASC, then ID ASC. Subtree sizes turn a price window count
// into two O(log n) rank queries. Components without a usable price are kept
// by ID only; they are still returned by FetchComponents so the scorer can
// count them.

// priceScale stores prices as whole cents.
const priceScale = 100

type priceFP int64

func toFixedPoint(x float64) priceFP {
	if math.IsNaN(x) {
		return 0
	}
	scaled := math.Round(x * priceScale)
	if scaled > float64(math.MaxInt64) {
		return priceFP(math.MaxInt64)
	}
	if scaled < float64(math.MinInt64) {
		return priceFP(math.MinInt64)
	}
	return priceFP(scaled)
}

func toFloat(x priceFP) float64 {
	return float64(x) / priceScale
}

// treap node
type node struct {
	id    string
	price priceFP
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aPrice, aID) sorts before (bPrice, bID).
func less(aPrice priceFP, aID string, bPrice priceFP, bID string) bool {
	if aPrice != bPrice {
		return aPrice < bPrice
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// priority hashes the ID so the tree shape is random but reproducible.
func priority(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

func insert(n *node, id string, price priceFP) *node {
	if n == nil {
		return &node{id: id, price: price, prio: priority(id), size: 1}
	}
	if less(price, id, n.price, n.id) {
		n.left = insert(n.left, id, price)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, price)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, price priceFP) *node {
	if n == nil {
		return nil
	}
	if price == n.price && id == n.id {
		// Merge children by rotating highest priority up until leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, price)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, price)
		}
	} else if less(price, id, n.price, n.id) {
		n.left = deleteNode(n.left, id, price)
	} else {
		n.right = deleteNode(n.right, id, price)
	}
	fix(n)
	return n
}

// countBelow returns how many nodes have a price under p, or at most p when
// inclusive is set.
func countBelow(n *node, p priceFP, inclusive bool) int {
	count := 0
	for n != nil {
		if n.price < p || (inclusive && n.price == p) {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collectAll appends IDs in price order.
func collectAll(n *node, out *[]string) {
	if n == nil {
		return
	}
	collectAll(n.left, out)
	*out = append(*out, n.id)
	collectAll(n.right, out)
}

// indexPrice is the treap key for c. ok is false for components that cannot
// be placed in a price window.
func indexPrice(c *model.Component) (priceFP, bool) {
	if c.InvertedRange() {
		return 0, false
	}
	avg, ok := c.AveragePrice()
	if !ok {
		return 0, false
	}
	return toFixedPoint(avg), true
}

// TreapCatalog is an in-memory catalog indexed by price per category.
type TreapCatalog struct {
	mu                    sync.RWMutex
	byID                  map[string]model.Component
	trees                 map[model.Category]*node
	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewTreapCatalog constructs an empty catalog and starts its metrics updater.
func NewTreapCatalog(ctx context.Context, opts ...Option) *TreapCatalog {
	s := &TreapCatalog{
		byID:                  make(map[string]model.Component),
		trees:                 make(map[model.Category]*node),
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the background metrics updater.
func (s *TreapCatalog) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// Upsert implements Store.Upsert in O(log n) expected time per component.
// Nothing is written when any component fails validation.
func (s *TreapCatalog) Upsert(ctx context.Context, components ...model.Component) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	for i := range components {
		if err := validateComponent(&components[i]); err != nil {
			return 0, err
		}
	}

	s.mu.Lock()
	for i := range components {
		c := components[i]
		if old, ok := s.byID[c.ID]; ok {
			if p, ok := indexPrice(&old); ok {
				s.trees[old.Category] = deleteNode(s.trees[old.Category], old.ID, p)
			}
		}
		s.byID[c.ID] = c
		if p, ok := indexPrice(&c); ok {
			s.trees[c.Category] = insert(s.trees[c.Category], c.ID, p)
		}
	}
	s.mu.Unlock()

	s.updateMetrics()
	return len(components), nil
}

// Get implements Store.Get.
func (s *TreapCatalog) Get(ctx context.Context, id string) (model.Component, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[id]
	if !ok {
		return model.Component{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, nil
}

// FetchComponents returns every component in cats. OrderPriceAsc walks the
// treaps directly; other orders sort the merged list.
func (s *TreapCatalog) FetchComponents(ctx context.Context, cats []model.Category, order recommend.OrderHint) ([]model.Component, error) {
	start := time.Now()
	defer func() {
		metrics.RecordCatalogQuery(BackendMemory, "fetch", float64(time.Since(start).Microseconds())/1000, false)
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]model.Component, 0)
	for _, c := range cats {
		var ids []string
		collectAll(s.trees[c], &ids)
		for _, id := range ids {
			out = append(out, s.byID[id])
		}
		var unpriced []model.Component
		for _, comp := range s.byID {
			if comp.Category != c {
				continue
			}
			if _, ok := indexPrice(&comp); !ok {
				unpriced = append(unpriced, comp)
			}
		}
		sort.Slice(unpriced, func(i, j int) bool { return unpriced[i].ID < unpriced[j].ID })
		out = append(out, unpriced...)
	}
	s.mu.RUnlock()

	if len(cats) > 1 || order != recommend.OrderPriceAsc {
		sortComponents(out, order)
	}
	return out, nil
}

// CountInPriceWindow counts priced components with minPrice <= avg <= maxPrice.
func (s *TreapCatalog) CountInPriceWindow(ctx context.Context, category model.Category, minPrice, maxPrice float64) (int, error) {
	start := time.Now()
	defer func() {
		metrics.RecordCatalogQuery(BackendMemory, "count", float64(time.Since(start).Microseconds())/1000, false)
	}()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if maxPrice < minPrice {
		return 0, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	root := s.trees[category]
	return countBelow(root, toFixedPoint(maxPrice), true) - countBelow(root, toFixedPoint(minPrice), false), nil
}

// Counts returns the number of components per category.
func (s *TreapCatalog) Counts(ctx context.Context) (map[model.Category]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.Category]int, len(model.AllCategories()))
	for _, c := range s.byID {
		out[c.Category]++
	}
	return out, nil
}

// startMetricsUpdater starts a background goroutine that publishes catalog sizes.
func (s *TreapCatalog) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *TreapCatalog) updateMetrics() {
	counts, _ := s.Counts(context.Background())
	for _, c := range model.AllCategories() {
		metrics.SetCatalogComponents(string(c), counts[c])
	}
}

func validateComponent(c *model.Component) error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidComponent, c.ID, verr)
	}
	return nil
}

// sortComponents orders a merged list by hint. Ties fall back to ID.
func sortComponents(list []model.Component, order recommend.OrderHint) {
	price := func(c *model.Component) (float64, bool) {
		p, ok := indexPrice(c)
		return toFloat(p), ok
	}
	sort.SliceStable(list, func(i, j int) bool {
		a, b := &list[i], &list[j]
		switch order {
		case recommend.OrderPriceAsc, recommend.OrderPriceDesc:
			pa, oka := price(a)
			pb, okb := price(b)
			if oka != okb {
				return oka
			}
			if pa != pb {
				if order == recommend.OrderPriceDesc {
					return pa > pb
				}
				return pa < pb
			}
		case recommend.OrderRank:
			ra, rb := a.ExpertRank, b.ExpertRank
			if (ra > 0) != (rb > 0) {
				return ra > 0
			}
			if ra != rb {
				return ra < rb
			}
		}
		return a.ID < b.ID
	})
}
