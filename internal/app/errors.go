package service

import "errors"

// ErrNotStarted is returned when the service is used before Start.
var ErrNotStarted = errors.New("service not started")

// ErrCatalogUnavailable is reported by the health check while the catalog
// circuit is open.
var ErrCatalogUnavailable = errors.New("catalog circuit is open")
