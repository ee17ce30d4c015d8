package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/okian/audiomatch/internal/domain/model"
	"github.com/okian/audiomatch/pkg/logger"
	"github.com/okian/audiomatch/pkg/metrics"
)

// BadgerSettings configures a Badger cache.
type BadgerSettings struct {
	// Dir holds the database files. Empty runs badger in memory.
	Dir string
	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration
	// GCRatio is the discard ratio passed to RunValueLogGC.
	GCRatio float64
}

// Badger persists responses in a BadgerDB with native key TTLs.
type Badger struct {
	db     *badger.DB
	logger logger.Logger
	ratio  float64

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// OpenBadger opens the cache database and starts value log GC.
func OpenBadger(s BadgerSettings, log logger.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(s.Dir)
	if s.Dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}

	b := &Badger{db: db, logger: log, ratio: s.GCRatio, stopChan: make(chan struct{})}
	if b.ratio <= 0 || b.ratio >= 1 {
		b.ratio = 0.5
	}
	if s.GCInterval > 0 && s.Dir != "" {
		b.startGC(s.GCInterval)
	}
	return b, nil
}

// Get decodes the cached response for key.
func (b *Badger) Get(ctx context.Context, key string) (*model.Response, bool) {
	var resp model.Response
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &resp)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			b.logger.Warn(ctx, "cache read failed", logger.String("key", key), logger.Error(err))
		}
		metrics.RecordCacheLookup(BackendBadger, false)
		return nil, false
	}
	metrics.RecordCacheLookup(BackendBadger, true)
	return &resp, true
}

// Set stores resp under key. A ttl <= 0 never expires.
func (b *Badger) Set(ctx context.Context, key string, resp *model.Response, ttl time.Duration) {
	if resp == nil {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		b.logger.Warn(ctx, "cache encode failed", logger.String("key", key), logger.Error(err))
		return
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), data)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		b.logger.Warn(ctx, "cache write failed", logger.String("key", key), logger.Error(err))
	}
}

// RunGC reclaims value log space until nothing is left to rewrite.
func (b *Badger) RunGC() error {
	for {
		err := b.db.RunValueLogGC(b.ratio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run value log gc: %w", err)
		}
	}
}

// Close stops GC and closes the database.
func (b *Badger) Close() error {
	b.stopOnce.Do(func() { close(b.stopChan) })
	b.wg.Wait()
	return b.db.Close()
}

func (b *Badger) startGC(every time.Duration) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-b.stopChan:
				return
			case <-ticker.C:
				if err := b.RunGC(); err != nil {
					b.logger.Warn(context.Background(), "cache gc failed", logger.Error(err))
				}
			}
		}
	}()
}
