package repository

import "time"

// Option applies a configuration option to the TreapCatalog.
type Option func(*TreapCatalog)

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *TreapCatalog) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}
