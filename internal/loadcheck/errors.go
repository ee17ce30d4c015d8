package loadcheck

import "errors"

// Run errors.
var (
	ErrUnhealthy  = errors.New("service is not healthy")
	ErrViolations = errors.New("responses violated recommendation invariants")
)
