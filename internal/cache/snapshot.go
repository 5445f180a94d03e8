// Package cache provides a time-boxed, whole-value snapshot cache whose
// refreshes are collapsed so that concurrent misses issue one load.
package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a loaded snapshot is served before a refresh.
const DefaultTTL = 5 * time.Minute

// Clock returns the current time.
type Clock func() time.Time

// Recorder observes cache activity. Implemented by the metrics package.
type Recorder interface {
	CacheHit(name string)
	CacheMiss(name string)
	CacheInvalidated(name string)
}

type nopRecorder struct{}

func (nopRecorder) CacheHit(string)         {}
func (nopRecorder) CacheMiss(string)        {}
func (nopRecorder) CacheInvalidated(string) {}

// LoadFunc fetches a fresh value.
type LoadFunc[T any] func(ctx context.Context) (T, error)

// Snapshot caches a single value of type T for a fixed TTL. Stored values are
// replaced whole; readers never observe a partially refreshed value.
type Snapshot[T any] struct {
	name     string
	ttl      time.Duration
	now      Clock
	recorder Recorder

	mu         sync.RWMutex
	value      T
	loadedAt   time.Time
	valid      bool
	generation uint64

	group singleflight.Group
}

// Option configures a Snapshot.
type Option func(*options)

type options struct {
	clock    Clock
	recorder Recorder
}

// WithClock overrides time.Now.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// NewSnapshot creates an empty snapshot. A non-positive ttl means DefaultTTL.
func NewSnapshot[T any](name string, ttl time.Duration, opts ...Option) *Snapshot[T] {
	o := options{clock: time.Now, recorder: nopRecorder{}}
	for _, opt := range opts {
		opt(&o)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Snapshot[T]{
		name:     name,
		ttl:      ttl,
		now:      o.clock,
		recorder: o.recorder,
	}
}

// Name returns the snapshot's name.
func (s *Snapshot[T]) Name() string {
	return s.name
}

// Get returns the cached value while fresh, otherwise loads a new one. Load
// errors are returned to every waiting caller and nothing is cached. A caller
// whose ctx ends stops waiting, but the load carries on for the others; load
// receives a context without ctx's cancellation and must apply its own timeout.
func (s *Snapshot[T]) Get(ctx context.Context, load LoadFunc[T]) (T, error) {
	if v, ok := s.fresh(); ok {
		s.recorder.CacheHit(s.name)
		return v, nil
	}
	s.recorder.CacheMiss(s.name)

	s.mu.RLock()
	gen := s.generation
	s.mu.RUnlock()

	// Keyed by generation so a load begun before an invalidation is never
	// joined by callers arriving after it. The load is shared, so it must not
	// end when the caller that started it goes away; LoadFunc bounds it.
	loadCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		if v, ok := s.fresh(); ok {
			return v, nil
		}
		v, err := load(loadCtx)
		if err != nil {
			return v, err
		}
		s.store(v, gen)
		return v, nil
	})

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// Invalidate drops the cached value so the next Get reloads immediately.
func (s *Snapshot[T]) Invalidate() {
	s.mu.Lock()
	var zero T
	s.value = zero
	s.valid = false
	s.generation++
	s.mu.Unlock()

	s.recorder.CacheInvalidated(s.name)
}

// LoadedAt reports when the current value was loaded, if any.
func (s *Snapshot[T]) LoadedAt() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt, s.valid
}

func (s *Snapshot[T]) fresh() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.valid && s.now().Sub(s.loadedAt) < s.ttl {
		return s.value, true
	}
	var zero T
	return zero, false
}

func (s *Snapshot[T]) store(v T, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// An invalidation raced the load; keep the slot empty.
	if s.generation != gen {
		return
	}
	s.value = v
	s.loadedAt = s.now()
	s.valid = true
}
