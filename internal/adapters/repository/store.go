// Package repository holds the catalog backends the engine reads from.
package repository

import (
	"context"
	"fmt"

	"github.com/okian/audiomatch/internal/domain/model"
	"github.com/okian/audiomatch/internal/domain/recommend"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Store is a loadable catalog.
type Store interface {
	recommend.Catalog

	// Upsert inserts or replaces components by ID and returns how many were written.
	Upsert(ctx context.Context, components ...model.Component) (int, error)

	// Get returns one component. Returns ErrNotFound if the ID is unknown.
	Get(ctx context.Context, id string) (model.Component, error)

	// Counts returns the number of components per category.
	Counts(ctx context.Context) (map[model.Category]int, error)

	Close() error
}

// Open returns the backend named by backend. path is only used by sqlite.
func Open(ctx context.Context, backend, path string, opts ...Option) (Store, error) {
	switch backend {
	case "", BackendMemory:
		return NewTreapCatalog(ctx, opts...), nil
	case BackendSQLite:
		return OpenSQLite(ctx, path)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
}
