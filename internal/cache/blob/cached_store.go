package blob

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	blobrepo "docbridge/internal/gateway/repository/blob"
)

type Store = blobrepo.Store

type CacheConfig struct {
	BlobTTL        time.Duration
	BlobMaxEntries int
	// Blobs larger than this are read through without being cached.
	BlobMaxBytes int

	ListTTL        time.Duration
	ListMaxEntries int
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		BlobTTL:        5 * time.Minute,
		BlobMaxEntries: 256,
		BlobMaxBytes:   8 * 1024 * 1024, // 8MiB
		ListTTL:        10 * time.Second,
		ListMaxEntries: 128,
	}
}

type MetricsSnapshot struct {
	BlobHits       uint64
	BlobMisses     uint64
	StatHits       uint64
	StatMisses     uint64
	ListHits       uint64
	ListMisses     uint64
	OriginReads    uint64
	OriginWrites   uint64
	OriginReadErr  uint64
	OriginWriteErr uint64
}

type Metrics struct {
	blobHits       atomic.Uint64
	blobMisses     atomic.Uint64
	statHits       atomic.Uint64
	statMisses     atomic.Uint64
	listHits       atomic.Uint64
	listMisses     atomic.Uint64
	originReads    atomic.Uint64
	originWrites   atomic.Uint64
	originReadErr  atomic.Uint64
	originWriteErr atomic.Uint64
}

func (m *Metrics) snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		BlobHits:       m.blobHits.Load(),
		BlobMisses:     m.blobMisses.Load(),
		StatHits:       m.statHits.Load(),
		StatMisses:     m.statMisses.Load(),
		ListHits:       m.listHits.Load(),
		ListMisses:     m.listMisses.Load(),
		OriginReads:    m.originReads.Load(),
		OriginWrites:   m.originWrites.Load(),
		OriginReadErr:  m.originReadErr.Load(),
		OriginWriteErr: m.originWriteErr.Load(),
	}
}

// CachedStore is a read-through, write-invalidate cache in front of an
// origin Store. Misses (ErrNotFound) are never cached so a blob written by
// another gateway instance becomes visible on the next read.
type CachedStore struct {
	origin Store
	cfg    CacheConfig

	blobCache *expirable.LRU[string, []byte]
	statCache *expirable.LRU[string, blobrepo.Info]
	listCache *expirable.LRU[string, []blobrepo.Info]
	metrics   Metrics

	// writes counts invalidations. Results read from the origin are only
	// cached if no write happened while the read was in flight.
	mu     sync.Mutex
	writes uint64
}

func NewCachedStore(origin Store, cfg CacheConfig) *CachedStore {
	def := DefaultCacheConfig()
	if cfg.BlobTTL <= 0 {
		cfg.BlobTTL = def.BlobTTL
	}
	if cfg.BlobMaxEntries <= 0 {
		cfg.BlobMaxEntries = def.BlobMaxEntries
	}
	if cfg.BlobMaxBytes < 0 {
		cfg.BlobMaxBytes = def.BlobMaxBytes
	}
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = def.ListTTL
	}
	if cfg.ListMaxEntries <= 0 {
		cfg.ListMaxEntries = def.ListMaxEntries
	}

	return &CachedStore{
		origin:    origin,
		cfg:       cfg,
		blobCache: expirable.NewLRU[string, []byte](cfg.BlobMaxEntries, nil, cfg.BlobTTL),
		statCache: expirable.NewLRU[string, blobrepo.Info](cfg.BlobMaxEntries, nil, cfg.BlobTTL),
		listCache: expirable.NewLRU[string, []blobrepo.Info](cfg.ListMaxEntries, nil, cfg.ListTTL),
	}
}

func (s *CachedStore) Put(ctx context.Context, key string, content []byte) error {
	s.metrics.originWrites.Add(1)
	key = cacheKey(key)
	seen := s.generation()
	if err := s.origin.Put(ctx, key, content); err != nil {
		s.metrics.originWriteErr.Add(1)
		s.invalidate(key)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidateLocked(key)
	// A concurrent write may have landed after ours at the origin.
	if s.writes == seen+1 && s.cacheable(len(content)) {
		s.blobCache.Add(key, append([]byte(nil), content...))
	}
	return nil
}

func (s *CachedStore) Get(ctx context.Context, key string) ([]byte, error) {
	key = cacheKey(key)
	if raw, ok := s.blobCache.Get(key); ok {
		s.metrics.blobHits.Add(1)
		return append([]byte(nil), raw...), nil
	}
	s.metrics.blobMisses.Add(1)
	s.metrics.originReads.Add(1)

	seen := s.generation()
	raw, err := s.origin.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, blobrepo.ErrNotFound) {
			s.metrics.originReadErr.Add(1)
		}
		return nil, err
	}
	if s.cacheable(len(raw)) {
		s.addIfCurrent(seen, func() { s.blobCache.Add(key, append([]byte(nil), raw...)) })
	}
	return raw, nil
}

func (s *CachedStore) Stat(ctx context.Context, key string) (blobrepo.Info, error) {
	key = cacheKey(key)
	if info, ok := s.statCache.Get(key); ok {
		s.metrics.statHits.Add(1)
		return info, nil
	}
	s.metrics.statMisses.Add(1)
	s.metrics.originReads.Add(1)

	seen := s.generation()
	info, err := s.origin.Stat(ctx, key)
	if err != nil {
		if !errors.Is(err, blobrepo.ErrNotFound) {
			s.metrics.originReadErr.Add(1)
		}
		return blobrepo.Info{}, err
	}
	s.addIfCurrent(seen, func() { s.statCache.Add(key, info) })
	return info, nil
}

func (s *CachedStore) List(ctx context.Context, prefix string) ([]blobrepo.Info, error) {
	prefix = strings.TrimLeft(strings.TrimSpace(prefix), "/")
	if list, ok := s.listCache.Get(prefix); ok {
		s.metrics.listHits.Add(1)
		return append([]blobrepo.Info(nil), list...), nil
	}
	s.metrics.listMisses.Add(1)
	s.metrics.originReads.Add(1)

	seen := s.generation()
	list, err := s.origin.List(ctx, prefix)
	if err != nil {
		s.metrics.originReadErr.Add(1)
		return nil, err
	}
	s.addIfCurrent(seen, func() { s.listCache.Add(prefix, append([]blobrepo.Info(nil), list...)) })
	return list, nil
}

func (s *CachedStore) Delete(ctx context.Context, key string) error {
	s.metrics.originWrites.Add(1)
	key = cacheKey(key)
	err := s.origin.Delete(ctx, key)
	s.invalidate(key)
	if err != nil && !errors.Is(err, blobrepo.ErrNotFound) {
		s.metrics.originWriteErr.Add(1)
	}
	return err
}

func (s *CachedStore) Metrics() MetricsSnapshot {
	if s == nil {
		return MetricsSnapshot{}
	}
	return s.metrics.snapshot()
}

func (s *CachedStore) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// addIfCurrent runs add unless a write happened since seen.
func (s *CachedStore) addIfCurrent(seen uint64, add func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writes == seen {
		add()
	}
}

func (s *CachedStore) invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidateLocked(key)
}

func (s *CachedStore) invalidateLocked(key string) {
	s.writes++
	s.blobCache.Remove(key)
	s.statCache.Remove(key)
	// Any listing may contain the key; listings are cheap to rebuild.
	s.listCache.Purge()
}

func (s *CachedStore) cacheable(size int) bool {
	return s.cfg.BlobMaxBytes == 0 || size <= s.cfg.BlobMaxBytes
}

func cacheKey(key string) string {
	return strings.TrimLeft(strings.TrimSpace(key), "/")
}
