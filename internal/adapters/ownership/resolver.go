// Package ownership matches free-text gear descriptions against the catalog.
package ownership

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/okian/audiomatch/internal/domain/model"
	"github.com/okian/audiomatch/internal/domain/recommend"
	"github.com/okian/audiomatch/pkg/logger"
)

// minModelLen keeps one or two character model names from matching everything.
const minModelLen = 3

var impedancePattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:ohms?|Ω)`)

type entry struct {
	brand string
	model string
	el    model.Electrical
	id    string
}

// Resolver implements recommend.OwnershipResolver over a catalog's
// headphones and IEMs.
type Resolver struct {
	catalog recommend.Catalog
	refresh time.Duration
	now     func() time.Time
	logger  logger.Logger

	mu      sync.Mutex
	entries []entry
	loaded  time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRefreshInterval sets how long the transducer snapshot is reused.
// Zero reloads on every call.
func WithRefreshInterval(d time.Duration) Option {
	return func(r *Resolver) {
		if d >= 0 {
			r.refresh = d
		}
	}
}

// WithLogger replaces the resolver logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// New builds a resolver reading from catalog.
func New(catalog recommend.Catalog, opts ...Option) *Resolver {
	r := &Resolver{
		catalog: catalog,
		refresh: time.Minute,
		now:     time.Now,
		logger:  logger.Get().Named("ownership"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve finds the catalog transducer whose brand and model best match
// description. When nothing matches, an "NNN ohm" mention is used instead.
// Catalog errors are returned only when the fallback also fails.
func (r *Resolver) Resolve(ctx context.Context, description string) (model.Electrical, bool, error) {
	desc := squash(cases.Fold().String(description))
	if desc == "" {
		return model.Electrical{}, false, nil
	}

	entries, err := r.snapshot(ctx)
	if err == nil {
		if e, ok := best(entries, desc); ok {
			r.logger.Debug(ctx, "resolved owned gear",
				logger.String("description", description), logger.String("component_id", e.id))
			return e.el, true, nil
		}
	}

	if el, ok := parseImpedance(description); ok {
		return el, true, nil
	}
	if err != nil {
		return model.Electrical{}, false, fmt.Errorf("resolve %q: %w", description, err)
	}
	return model.Electrical{}, false, nil
}

func (r *Resolver) snapshot(ctx context.Context) ([]entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries != nil && r.refresh > 0 && r.now().Sub(r.loaded) < r.refresh {
		return r.entries, nil
	}
	list, err := r.catalog.FetchComponents(ctx,
		[]model.Category{model.CategoryHeadphone, model.CategoryIEM}, recommend.OrderNone)
	if err != nil {
		return nil, err
	}

	fold := cases.Fold()
	entries := make([]entry, 0, len(list))
	for i := range list {
		c := &list[i]
		m := squash(fold.String(c.Name))
		if len(m) < minModelLen {
			continue
		}
		entries = append(entries, entry{
			brand: squash(fold.String(c.Brand)),
			model: m,
			el:    c.Electrical(),
			id:    c.ID,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })
	r.entries = entries
	r.loaded = r.now()
	return entries, nil
}

// best picks the entry with the longest model match, preferring ones whose
// brand is also mentioned.
func best(entries []entry, desc string) (entry, bool) {
	var (
		top   entry
		score int
	)
	for _, e := range entries {
		if !strings.Contains(desc, e.model) {
			continue
		}
		s := len(e.model)
		if e.brand != "" && strings.Contains(desc, e.brand) {
			s += len(e.brand)
		}
		if s > score {
			top, score = e, s
		}
	}
	return top, score > 0
}

func parseImpedance(description string) (model.Electrical, bool) {
	m := impedancePattern.FindStringSubmatch(description)
	if m == nil {
		return model.Electrical{}, false
	}
	z, err := strconv.ParseFloat(m[1], 64)
	if err != nil || z <= 0 {
		return model.Electrical{}, false
	}
	return model.Electrical{ImpedanceOhms: z, Name: strings.TrimSpace(description)}, true
}

// squash keeps letters and digits only.
func squash(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
