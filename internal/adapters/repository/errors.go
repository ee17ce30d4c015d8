package repository

import "errors"

// Sentinel kinds for catalog errors.
var (
	ErrNotFound         = errors.New("component not found")
	ErrInvalidComponent = errors.New("invalid component")
	ErrUnknownBackend   = errors.New("unknown catalog backend")
)
