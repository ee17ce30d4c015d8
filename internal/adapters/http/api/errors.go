package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrBodyTooLarge  = errors.New("request body too large")
	ErrNoLookup      = errors.New("component lookup not configured")
	ErrEmptyLoadList = errors.New("at least one headphone with a known impedance is required")
)
