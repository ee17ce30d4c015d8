package cache

import "errors"

// ErrUnknownBackend is returned for an unrecognised cache backend name.
var ErrUnknownBackend = errors.New("unknown cache backend")
