package budget

import "errors"

// Sentinel errors for allocation.
var (
	ErrNoCategories  = errors.New("no categories to allocate")
	ErrInvalidBudget = errors.New("budget must be a positive finite amount")
)
