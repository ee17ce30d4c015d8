package repository

import (
	"context"
	"time"

	"github.com/okian/audiomatch/internal/domain/model"
	"github.com/okian/audiomatch/internal/domain/recommend"
)

// TimeoutCatalog bounds every call to the wrapped catalog. A zero timeout
// passes calls straight through.
type TimeoutCatalog struct {
	next    recommend.Catalog
	timeout time.Duration
}

// NewTimeoutCatalog wraps next with a per-call deadline.
func NewTimeoutCatalog(next recommend.Catalog, timeout time.Duration) *TimeoutCatalog {
	return &TimeoutCatalog{next: next, timeout: timeout}
}

// Timeout returns the per-call deadline.
func (t *TimeoutCatalog) Timeout() time.Duration { return t.timeout }

// FetchComponents implements recommend.Catalog.
func (t *TimeoutCatalog) FetchComponents(ctx context.Context, cats []model.Category, order recommend.OrderHint) ([]model.Component, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.next.FetchComponents(ctx, cats, order)
}

// CountInPriceWindow implements recommend.Catalog.
func (t *TimeoutCatalog) CountInPriceWindow(ctx context.Context, category model.Category, minPrice, maxPrice float64) (int, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.next.CountInPriceWindow(ctx, category, minPrice, maxPrice)
}

func (t *TimeoutCatalog) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, t.timeout)
}
