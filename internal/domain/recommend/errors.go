package recommend

import (
	"errors"
	"fmt"

	"github.com/okian/audiomatch/internal/domain/model"
)

// Sentinel errors.
var (
	ErrInvalidRequest = errors.New("invalid recommendation request")
	ErrUpstream       = errors.New("catalog unavailable")
)

// CategoryError is a catalog failure scoped to one category.
type CategoryError struct {
	Category model.Category
	Op       string
	Err      error
}

func (e *CategoryError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Category, e.Err)
}

// Unwrap lets errors.Is match both ErrUpstream and the cause.
func (e *CategoryError) Unwrap() []error { return []error{ErrUpstream, e.Err} }
