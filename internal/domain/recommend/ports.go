package recommend

import (
	"context"
	"time"

	"github.com/okian/audiomatch/internal/domain/model"
)

// OrderHint asks the catalog for a preferred ordering. Catalogs may ignore it.
type OrderHint string

// Order hints.
const (
	OrderNone      OrderHint = ""
	OrderPriceAsc  OrderHint = "price_asc"
	OrderPriceDesc OrderHint = "price_desc"
	OrderRank      OrderHint = "rank"
)

// Catalog is the read-only component source.
type Catalog interface {
	FetchComponents(ctx context.Context, categories []model.Category, order OrderHint) ([]model.Component, error)
	CountInPriceWindow(ctx context.Context, category model.Category, minPrice, maxPrice float64) (int, error)
}

// OwnershipResolver turns a free-text description of owned gear into
// electrical specs. ok is false when nothing matched.
type OwnershipResolver interface {
	Resolve(ctx context.Context, description string) (model.Electrical, bool, error)
}

// Cache stores responses by fingerprint.
type Cache interface {
	Get(ctx context.Context, key string) (*model.Response, bool)
	Set(ctx context.Context, key string, resp *model.Response, ttl time.Duration)
}
