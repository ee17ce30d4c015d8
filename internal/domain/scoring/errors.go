package scoring

import "errors"

// Sentinel errors for scoring.
var (
	ErrUnknownStrategy = errors.New("unknown scoring strategy")
	ErrInvalidWeights  = errors.New("invalid scoring weights")
)
