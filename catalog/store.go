package catalog

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"vavoo-proxy/faults"
	"vavoo-proxy/logger"
	"vavoo-proxy/metrics"
)

// Store owns the current catalog snapshot. Readers always see a complete
// snapshot; a new one replaces the old in a single atomic swap.
type Store struct {
	fetcher Fetcher
	logger  logger.Logger
	now     func() time.Time

	current atomic.Pointer[Snapshot]
	loads   singleflight.Group
}

func NewStore(fetcher Fetcher, logger logger.Logger) *Store {
	return &Store{
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
	}
}

// Current returns the published snapshot, or nil before the first success.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Snapshot returns the published snapshot, loading it first if there is
// none. Concurrent callers share one fetch. A failed fetch publishes nothing,
// so the next call tries again.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	if snap := s.current.Load(); snap != nil {
		return snap, nil
	}

	ch := s.loads.DoChan("initial", func() (any, error) {
		if snap := s.current.Load(); snap != nil {
			return snap, nil
		}
		return s.fetch(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, faults.New(faults.ErrCatalogFetch, "catalog.snapshot", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

// Reload fetches a fresh snapshot and publishes it. On failure the previous
// snapshot stays in place.
func (s *Store) Reload(ctx context.Context) (*Snapshot, error) {
	v, err, _ := s.loads.Do("reload", func() (any, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

func (s *Store) fetch(ctx context.Context) (*Snapshot, error) {
	channels, err := s.fetcher.Load(ctx)
	metrics.CatalogLoads.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		s.logger.Errorf("Error loading channels: %v", err)
		return nil, err
	}

	snap, duplicates, err := NewSnapshot(channels, s.now())
	if err != nil {
		s.logger.Errorf("Error building catalog snapshot: %v", err)
		return nil, faults.New(faults.ErrCatalogFetch, "catalog.index", err)
	}
	for _, dup := range duplicates {
		s.logger.Warnf("Duplicate channel id %s (%s) skipped", dup.ID, dup.Name)
	}

	s.current.Store(snap)
	return snap, nil
}
