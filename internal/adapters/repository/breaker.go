package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/okian/audiomatch/internal/domain/model"
	"github.com/okian/audiomatch/internal/domain/recommend"
	"github.com/okian/audiomatch/pkg/logger"
	"github.com/okian/audiomatch/pkg/metrics"
)

// BreakerSettings configures BreakerCatalog.
type BreakerSettings struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
	// QueryTimeout bounds every catalog call. Zero disables it.
	QueryTimeout time.Duration
}

// DefaultBreakerSettings returns conservative settings for a local catalog.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:         "catalog",
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MinRequests:  10,
		FailureRatio: 0.6,
		QueryTimeout: 2 * time.Second,
	}
}

// BreakerCatalog wraps a catalog with a circuit breaker and a per-call timeout.
// Count and fetch share one breaker so a failing backend trips both.
type BreakerCatalog struct {
	next    recommend.Catalog
	cb      *gobreaker.CircuitBreaker[any]
	name    string
	timeout time.Duration
	logger  logger.Logger
}

// NewBreakerCatalog wraps next.
func NewBreakerCatalog(next recommend.Catalog, s BreakerSettings, log logger.Logger) *BreakerCatalog {
	if s.Name == "" {
		s.Name = "catalog"
	}
	metrics.SetBreakerState(s.Name, 0)

	b := &BreakerCatalog{next: next, name: s.Name, timeout: s.QueryTimeout, logger: log}
	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= s.FailureRatio {
				log.Warn(context.Background(), "opening catalog circuit",
					logger.Int("failures", int(counts.TotalFailures)),
					logger.Float64("failure_ratio", ratio))
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info(context.Background(), "catalog circuit state changed",
				logger.String("from", stateToString(from)), logger.String("to", stateToString(to)))
			metrics.SetBreakerState(name, stateToFloat(to))
		},
		// Canceled calls do not count as failures.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return b
}

// State returns the breaker state as a string.
func (b *BreakerCatalog) State() string { return stateToString(b.cb.State()) }

// FetchComponents implements recommend.Catalog.
func (b *BreakerCatalog) FetchComponents(ctx context.Context, cats []model.Category, order recommend.OrderHint) ([]model.Component, error) {
	res, err := b.execute(ctx, func(ctx context.Context) (any, error) {
		return b.next.FetchComponents(ctx, cats, order)
	})
	if err != nil {
		return nil, err
	}
	list, ok := res.([]model.Component)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", res)
	}
	return list, nil
}

// CountInPriceWindow implements recommend.Catalog.
func (b *BreakerCatalog) CountInPriceWindow(ctx context.Context, category model.Category, minPrice, maxPrice float64) (int, error) {
	res, err := b.execute(ctx, func(ctx context.Context) (any, error) {
		return b.next.CountInPriceWindow(ctx, category, minPrice, maxPrice)
	})
	if err != nil {
		return 0, err
	}
	n, ok := res.(int)
	if !ok {
		return 0, fmt.Errorf("circuit breaker: unexpected result type %T", res)
	}
	return n, nil
}

func (b *BreakerCatalog) execute(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	res, err := b.cb.Execute(func() (any, error) { return fn(ctx) })
	switch {
	case err == nil:
		metrics.RecordBreakerRequest(b.name, "success")
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordBreakerRequest(b.name, "rejected")
		b.logger.Warn(ctx, "catalog call rejected", logger.String("breaker", b.name), logger.Error(err))
		return nil, fmt.Errorf("catalog %s: %w", b.name, err)
	default:
		metrics.RecordBreakerRequest(b.name, "failure")
		return nil, err
	}
	return res, nil
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
