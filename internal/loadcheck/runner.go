package loadcheck

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/audiomatch/pkg/logger"
)

// Run executes a complete load check and returns its statistics. The error
// wraps ErrViolations when any response broke an invariant.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	cfg := config.withDefaults()
	log := logger.Get().Named("loadcheck")
	stats := &Stats{}
	start := time.Now()

	log.Info(ctx, "starting load check",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("requests", cfg.Requests),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout))

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)
	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	requests := Generate(cfg.Requests, cfg.Seed)
	stats.Generated = len(requests)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	work := make(chan int, cfg.Workers*workerChannelMultiplier)
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				req := requests[idx]
				resp, outcome, err := client.Recommend(ctx, req)

				var found []Violation
				if resp != nil {
					found = Verify(req, resp)
				}

				mu.Lock()
				stats.Submitted++
				switch outcome {
				case outcomeSuccess:
					stats.Succeeded++
					if resp.Cached {
						stats.Cached++
					}
				case outcomeRejected:
					stats.Rejected++
				default:
					stats.Failed++
				}
				stats.Violations = append(stats.Violations, found...)
				mu.Unlock()

				if err != nil && cfg.Verbose {
					log.Warn(ctx, "request did not succeed", logger.String("request_id", req.RequestID),
						logger.String("outcome", outcome), logger.Error(err))
				}
				if cfg.Verbose {
					for _, v := range found {
						log.Warn(ctx, "invariant violated", logger.String("violation", v.String()))
					}
				}
			}
		}()
	}

	func() {
		defer close(work)
		for i := range requests {
			select {
			case <-ctx.Done():
				return
			case work <- i:
			}
		}
	}()
	wg.Wait()

	stats.Duration = time.Since(start)
	log.Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("succeeded", stats.Succeeded),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed),
		logger.Int("cached", stats.Cached),
		logger.Int("violations", len(stats.Violations)),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", stats.SuccessRate()),
		logger.Float64("requestsPerSecond", stats.Throughput()))

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if len(stats.Violations) > 0 {
		return stats, fmt.Errorf("%w: %d found", ErrViolations, len(stats.Violations))
	}
	return stats, nil
}
