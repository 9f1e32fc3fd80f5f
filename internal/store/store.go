// Package store implements the byte-budgeted memory cache for decoded images.
package store

import (
	"fmt"
	"sync"

	"image-engine/internal/bitmap"
	"image-engine/internal/cachekey"
	logutil "image-engine/internal/logging"
	"image-engine/internal/observability"
	"image-engine/internal/store/policy"

	"github.com/go-logr/logr"
	platformerrors "github.com/jmgilman/go/errors"
)

// entry is a resident image and the byte size charged for it on insert.
type entry struct {
	image bitmap.Decoded
	size  int
}

// Stats is a consistent snapshot of the store counters.
type Stats struct {
	Size          int `json:"size"`
	MaxSize       int `json:"max_size"`
	Entries       int `json:"entries"`
	HitCount      int `json:"hit_count"`
	MissCount     int `json:"miss_count"`
	PutCount      int `json:"put_count"`
	EvictionCount int `json:"eviction_count"`
}

// Store is a thread-safe in-memory image cache bounded by total bytes.
// A single mutex covers the map, the recency order, the byte total and every
// counter, so no reader can observe a byte total that disagrees with the map.
type Store struct {
	mu     sync.Mutex
	items  map[string]*entry
	policy policy.EvictionPolicy
	log    logr.Logger

	maxSize       int
	size          int
	putCount      int
	hitCount      int
	missCount     int
	evictionCount int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for debug output.
func WithLogger(l logr.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// New creates a Store holding at most maxSize bytes of images.
func New(maxSize int, opts ...Option) (*Store, error) {
	if maxSize <= 0 {
		return nil, platformerrors.Newf(platformerrors.CodeInvalidConfig, "max size must be positive, got %d", maxSize)
	}
	s := &Store{
		items:   make(map[string]*entry),
		policy:  policy.NewLRU(),
		log:     logr.Discard(),
		maxSize: maxSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Get returns the image for key and whether it was found. A hit promotes the
// key to most recently used.
func (s *Store) Get(key string) (bitmap.Decoded, bool, error) {
	if key == "" {
		observability.CacheOperationsTotal.WithLabelValues("get", "invalid").Inc()
		return nil, false, platformerrors.New(platformerrors.CodeInvalidInput, "key must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, found := s.items[key]
	if !found {
		s.missCount++
		observability.CacheMissesTotal.Inc()
		return nil, false, nil
	}
	s.hitCount++
	s.policy.OnAccess(key)
	observability.CacheHitsTotal.Inc()
	return e.image, true, nil
}

// Set stores image under key as the most recently used entry and evicts
// least recently used entries until the store is back within budget.
// An image larger than the whole budget is dropped without touching the
// store, so a single oversized request cannot flush the cache.
func (s *Store) Set(key string, image bitmap.Decoded) error {
	if b, ok := image.(*bitmap.Bitmap); key == "" || image == nil || (ok && b == nil) {
		observability.CacheOperationsTotal.WithLabelValues("set", "invalid").Inc()
		return platformerrors.New(platformerrors.CodeInvalidInput, "key and image must not be empty")
	}

	added := image.ByteSize()
	if added < 0 {
		observability.CacheOperationsTotal.WithLabelValues("set", "invalid").Inc()
		return platformerrors.Newf(platformerrors.CodeInvalidInput, "image for %q reports negative size %d", key, added)
	}
	if added > s.maxSize {
		s.log.V(logutil.DEBUG).Info("Image exceeds cache budget, not caching",
			"key", key, "bytes", added, "maxSize", s.maxSize)
		observability.CacheRejectedTotal.Inc()
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.putCount++
	s.size += added
	if prev, ok := s.items[key]; ok {
		s.size -= prev.size
	}
	s.items[key] = &entry{image: image, size: added}
	s.policy.OnAdd(key)
	observability.CachePutsTotal.Inc()

	s.trim(s.maxSize)
	return nil
}

// Trim evicts least recently used entries until the resident total is at
// most targetSize or the store is empty.
func (s *Store) Trim(targetSize int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trim(targetSize)
}

// EvictAll removes every entry, including zero-byte ones.
func (s *Store) EvictAll() {
	s.Trim(-1)
	observability.CacheOperationsTotal.WithLabelValues("clear", "success").Inc()
}

// Clear is an alias for EvictAll.
func (s *Store) Clear() {
	s.EvictAll()
}

// InvalidateByKeyPrefix removes every entry whose key was built for exactly
// uri and returns how many were removed. Removal here is not counted as
// eviction.
func (s *Store) InvalidateByKeyPrefix(uri string) (int, error) {
	if uri == "" {
		observability.CacheOperationsTotal.WithLabelValues("invalidate", "invalid").Inc()
		return 0, platformerrors.New(platformerrors.CodeInvalidInput, "uri must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.items {
		if !cachekey.HasSource(key, uri) {
			continue
		}
		delete(s.items, key)
		s.policy.OnRemove(key)
		s.size -= e.size
		removed++
	}
	s.checkInvariants()
	observability.CacheResidentBytes.Set(float64(s.size))
	observability.CacheOperationsTotal.WithLabelValues("invalidate", "success").Inc()
	s.log.V(logutil.VERBOSE).Info("Invalidated cache entries", "uri", uri, "removed", removed)
	return removed, nil
}

// Size returns the resident byte total.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// MaxSize returns the byte budget.
func (s *Store) MaxSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxSize
}

// Len returns the number of resident entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// HitCount returns the number of times Get found a value.
func (s *Store) HitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hitCount
}

// MissCount returns the number of times Get found nothing.
func (s *Store) MissCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.missCount
}

// PutCount returns the number of images accepted by Set.
func (s *Store) PutCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putCount
}

// EvictionCount returns the number of entries evicted to honour the budget.
func (s *Store) EvictionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictionCount
}

// Stats returns all counters read in one critical section.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Size:          s.size,
		MaxSize:       s.maxSize,
		Entries:       len(s.items),
		HitCount:      s.hitCount,
		MissCount:     s.missCount,
		PutCount:      s.putCount,
		EvictionCount: s.evictionCount,
	}
}

// trim is not protected against concurrent access; callers hold s.mu.
func (s *Store) trim(targetSize int) {
	for {
		s.checkInvariants()
		if s.size <= targetSize || len(s.items) == 0 {
			break
		}

		key := s.policy.SelectVictim()
		e, ok := s.items[key]
		if !ok {
			panic(platformerrors.Newf(platformerrors.CodeInternal,
				"eviction order names %q which is not resident", key))
		}
		delete(s.items, key)
		s.policy.OnRemove(key)
		s.size -= e.size
		s.evictionCount++
		observability.CacheEvictionsTotal.Inc()
		s.log.V(logutil.TRACE).Info("Evicted image", "key", key, "bytes", e.size)
	}
	observability.CacheResidentBytes.Set(float64(s.size))
}

// checkInvariants panics when byte accounting no longer matches the map.
func (s *Store) checkInvariants() {
	if s.size < 0 || (len(s.items) == 0 && s.size != 0) || len(s.items) != s.policy.Len() {
		panic(platformerrors.New(platformerrors.CodeInternal, fmt.Sprintf(
			"inconsistent cache accounting: size=%d entries=%d tracked=%d",
			s.size, len(s.items), s.policy.Len())))
	}
}
