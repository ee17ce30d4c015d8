// Package service wires the catalog, cache, scoring and HTTP layers into
// the recommendation service.
package service

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/okian/audiomatch/internal/adapters/cache"
	"github.com/okian/audiomatch/internal/adapters/http/api"
	"github.com/okian/audiomatch/internal/adapters/http/swagger"
	"github.com/okian/audiomatch/internal/adapters/ownership"
	"github.com/okian/audiomatch/internal/adapters/repository"
	"github.com/okian/audiomatch/internal/config"
	"github.com/okian/audiomatch/internal/domain/budget"
	"github.com/okian/audiomatch/internal/domain/model"
	"github.com/okian/audiomatch/internal/domain/recommend"
	"github.com/okian/audiomatch/internal/domain/scoring"
	"github.com/okian/audiomatch/pkg/logger"
)

// responseCache is a recommend.Cache that owns resources.
type responseCache interface {
	recommend.Cache
	Close() error
}

// Service implements the API dependencies for the recommendation engine.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	// Core components
	store    repository.Store
	catalog  recommend.Catalog
	breaker  *repository.BreakerCatalog
	cache    responseCache
	resolver *ownership.Resolver
	engine   *recommend.Engine

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service from cfg. A nil cfg uses config.New.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the catalog, seeds it and builds the engine.
func (s *Service) Start(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	defer func() {
		if err != nil {
			s.closeLocked()
		}
	}()

	s.logger.Info(ctx, "starting recommendation service...")

	cc := s.cfg.Catalog
	s.store, err = repository.Open(ctx, cc.Backend, cc.SQLitePath)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	if !cc.SkipSeed {
		n, seedErr := repository.Seed(ctx, s.store, cc.SeedFile)
		if seedErr != nil {
			return fmt.Errorf("seed catalog: %w", seedErr)
		}
		s.logger.Info(ctx, "catalog seeded", logger.Int("components", n), logger.String("backend", cc.Backend))
	}

	s.catalog, s.breaker = wrapCatalog(s.store, cc, s.logger)

	s.cache, err = openCache(s.cfg.Cache, s.logger)
	if err != nil {
		return err
	}

	strategy, err := scoring.New(s.cfg.Scoring.Strategy, scoring.WithWeights(s.cfg.ScoringWeights()))
	if err != nil {
		return fmt.Errorf("scoring strategy %q: %w", s.cfg.Scoring.Strategy, err)
	}

	s.resolver = ownership.New(s.catalog, ownership.WithLogger(s.logger.Named("ownership")))

	opts := []recommend.Option{
		recommend.WithLogger(s.logger.Named("engine")),
		recommend.WithOwnership(s.resolver),
		recommend.WithStrategy(strategy),
		recommend.WithAutoSuggestCount(s.cfg.Engine.AutoSuggestCount),
		recommend.WithAllocatorOptions(budget.WithProbeConcurrency(s.cfg.Engine.ProbeConcurrency)),
	}
	if s.cache != nil {
		opts = append(opts, recommend.WithCache(s.cache, s.cfg.Cache.TTL))
	}
	s.engine, err = recommend.New(s.catalog, opts...)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	s.started = true
	s.logger.Info(ctx, "recommendation service started",
		logger.String("catalog", cc.Backend),
		logger.String("cache", s.cfg.Cache.Backend),
		logger.String("strategy", strategy.Name()),
		logger.Bool("breaker", s.breaker != nil),
	)
	return nil
}

// wrapCatalog bounds every call by cc.QueryTimeout and puts the circuit
// breaker in front when it is enabled.
func wrapCatalog(next recommend.Catalog, cc config.CatalogConfig, log logger.Logger) (recommend.Catalog, *repository.BreakerCatalog) {
	bounded := repository.NewTimeoutCatalog(next, cc.QueryTimeout)
	if !cc.Breaker.Enabled {
		return bounded, nil
	}

	settings := repository.DefaultBreakerSettings()
	settings.MaxRequests = cc.Breaker.MaxRequests
	settings.Interval = cc.Breaker.Interval
	settings.Timeout = cc.Breaker.Timeout
	settings.MinRequests = cc.Breaker.MinRequests
	settings.FailureRatio = cc.Breaker.FailureRatio
	// The inner catalog already carries the deadline.
	settings.QueryTimeout = 0
	breaker := repository.NewBreakerCatalog(bounded, settings, log.Named("breaker"))
	return breaker, breaker
}

func openCache(cc config.CacheConfig, log logger.Logger) (responseCache, error) {
	switch cc.Backend {
	case cache.BackendNone:
		return nil, nil
	case "", cache.BackendMemory:
		return cache.NewMemory(cache.WithMaxEntries(cc.MaxEntries)), nil
	case cache.BackendBadger:
		b, err := cache.OpenBadger(cache.BadgerSettings{Dir: cc.BadgerDir, GCInterval: cc.GCInterval}, log.Named("cache"))
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	return nil, fmt.Errorf("%w: %q", cache.ErrUnknownBackend, cc.Backend)
}

// Stop releases the cache and catalog.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(context.Background(), "stopping recommendation service...")
	s.closeLocked()
	s.started = false
	s.logger.Info(context.Background(), "recommendation service stopped")
}

func (s *Service) closeLocked() {
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Warn(context.Background(), "close cache", logger.Error(err))
		}
		s.cache = nil
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(context.Background(), "close catalog", logger.Error(err))
		}
		s.store = nil
	}
	s.catalog, s.breaker, s.engine, s.resolver = nil, nil, nil, nil
}

// Recommend implements api.Recommender.
func (s *Service) Recommend(ctx context.Context, req model.RecommendationRequest) (*model.Response, error) {
	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()
	if engine == nil {
		return nil, ErrNotStarted
	}
	return engine.Recommend(ctx, req)
}

// Strategy implements api.Recommender.
func (s *Service) Strategy() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.engine == nil {
		return s.cfg.Scoring.Strategy
	}
	return s.engine.Strategy()
}

// Get implements api.ComponentLookup.
func (s *Service) Get(ctx context.Context, id string) (model.Component, error) {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()
	if store == nil {
		return model.Component{}, ErrNotStarted
	}
	return store.Get(ctx, id)
}

// Components lists every component in cats, cheapest first.
func (s *Service) Components(ctx context.Context, cats ...model.Category) ([]model.Component, error) {
	s.mu.RLock()
	catalog := s.catalog
	s.mu.RUnlock()
	if catalog == nil {
		return nil, ErrNotStarted
	}
	if len(cats) == 0 {
		cats = model.AllCategories()
	}
	return catalog.FetchComponents(ctx, cats, recommend.OrderPriceAsc)
}

// CheckCatalog reports whether the catalog can serve requests.
func (s *Service) CheckCatalog(ctx context.Context) error {
	s.mu.RLock()
	store, breaker := s.store, s.breaker
	s.mu.RUnlock()
	if store == nil {
		return ErrNotStarted
	}
	if breaker != nil && breaker.State() == "open" {
		return ErrCatalogUnavailable
	}
	_, err := store.Counts(ctx)
	return err
}

// Handler builds the HTTP handler with docs mounted next to the API.
func (s *Service) Handler() http.Handler {
	h := s.cfg.HTTP
	srv := api.NewServer(s, s,
		api.WithLookup(s),
		api.WithRateLimit(h.RateLimitRequests, h.RateLimitWindow),
		api.WithHealthCheck("catalog", s.CheckCatalog),
		api.WithMount(swagger.Register),
	)
	return srv.Handler()
}

// NewHTTPServer returns an http.Server for addr using the configured timeouts.
func (s *Service) NewHTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.HTTP.ReadTimeout,
		WriteTimeout:      s.cfg.HTTP.WriteTimeout,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":         s.started,
		"catalog_backend": s.cfg.Catalog.Backend,
		"cache_backend":   s.cfg.Cache.Backend,
		"strategy":        s.cfg.Scoring.Strategy,
	}
	if !s.started {
		return stats
	}

	if counts, err := s.store.Counts(context.Background()); err == nil {
		byCategory := make(map[string]int, len(counts))
		total := 0
		for c, n := range counts {
			byCategory[string(c)] = n
			total += n
		}
		stats["components"] = byCategory
		stats["total_components"] = total
	}
	if s.breaker != nil {
		stats["breaker_state"] = s.breaker.State()
	}
	if sized, ok := s.cache.(interface{ Size() int64 }); ok {
		stats["cache_entries"] = sized.Size()
	}
	stats["strategy"] = s.engine.Strategy()
	return stats
}
