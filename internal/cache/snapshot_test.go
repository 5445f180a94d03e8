package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type countingRecorder struct {
	hits, misses, invalidations atomic.Int32
}

func (r *countingRecorder) CacheHit(string)         { r.hits.Add(1) }
func (r *countingRecorder) CacheMiss(string)        { r.misses.Add(1) }
func (r *countingRecorder) CacheInvalidated(string) { r.invalidations.Add(1) }

func counter(loads *atomic.Int32) LoadFunc[int] {
	return func(ctx context.Context) (int, error) {
		return int(loads.Add(1)), nil
	}
}

func TestSnapshot_ServesWithinTTL(t *testing.T) {
	clock := newFakeClock()
	rec := &countingRecorder{}
	s := NewSnapshot[int]("rates", 5*time.Minute, WithClock(clock.Now), WithRecorder(rec))
	ctx := context.Background()
	var loads atomic.Int32

	v, err := s.Get(ctx, counter(&loads))
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	clock.Advance(4 * time.Minute)
	v, err = s.Get(ctx, counter(&loads))
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, int32(1), loads.Load())
	assert.Equal(t, int32(1), rec.hits.Load())
	assert.Equal(t, int32(1), rec.misses.Load())
}

func TestSnapshot_RefreshesAfterTTL(t *testing.T) {
	clock := newFakeClock()
	s := NewSnapshot[int]("rates", 5*time.Minute, WithClock(clock.Now))
	ctx := context.Background()
	var loads atomic.Int32

	_, err := s.Get(ctx, counter(&loads))
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	v, err := s.Get(ctx, counter(&loads))
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestSnapshot_InvalidateBypassesTTL(t *testing.T) {
	clock := newFakeClock()
	rec := &countingRecorder{}
	s := NewSnapshot[int]("fees", time.Hour, WithClock(clock.Now), WithRecorder(rec))
	ctx := context.Background()
	var loads atomic.Int32

	_, err := s.Get(ctx, counter(&loads))
	require.NoError(t, err)

	s.Invalidate()
	_, ok := s.LoadedAt()
	assert.False(t, ok)

	v, err := s.Get(ctx, counter(&loads))
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, int32(1), rec.invalidations.Load())
}

func TestSnapshot_ErrorsAreNotCached(t *testing.T) {
	s := NewSnapshot[int]("fees", time.Minute)
	ctx := context.Background()
	boom := errors.New("connection refused")

	_, err := s.Get(ctx, func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	v, err := s.Get(ctx, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestSnapshot_ConcurrentMissesLoadOnce(t *testing.T) {
	s := NewSnapshot[int]("rates", time.Minute)
	ctx := context.Background()

	var loads atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once

	load := func(context.Context) (int, error) {
		loads.Add(1)
		once.Do(func() { close(started) })
		<-release
		return 42, nil
	}

	const callers = 16
	var wg sync.WaitGroup
	results := make([]int, callers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		v, _ := s.Get(ctx, load)
		results[0] = v
	}()
	<-started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _ := s.Get(ctx, load)
			results[i] = v
		}(i)
	}

	// Give the followers a moment to join the in-flight load.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestSnapshot_InvalidateDuringLoadDiscardsResult(t *testing.T) {
	s := NewSnapshot[int]("rates", time.Hour)
	ctx := context.Background()

	v, err := s.Get(ctx, func(context.Context) (int, error) {
		s.Invalidate()
		return 1, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, ok := s.LoadedAt()
	assert.False(t, ok)

	v, err = s.Get(ctx, func(context.Context) (int, error) { return 2, nil })
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestSnapshot_ContextCancelled(t *testing.T) {
	s := NewSnapshot[int]("rates", time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	release := make(chan struct{})
	defer close(release)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := s.Get(ctx, func(context.Context) (int, error) {
		<-release
		return 1, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSnapshot_CancelledCallerDoesNotFailOthers(t *testing.T) {
	s := NewSnapshot[int]("rates", time.Hour)
	leaderCtx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	release := make(chan struct{})
	load := func(ctx context.Context) (int, error) {
		close(started)
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-release:
			return 42, nil
		}
	}

	leaderErr := make(chan error, 1)
	go func() {
		_, err := s.Get(leaderCtx, load)
		leaderErr <- err
	}()
	<-started

	type result struct {
		v   int
		err error
	}
	follower := make(chan result, 1)
	go func() {
		v, err := s.Get(context.Background(), func(context.Context) (int, error) {
			return 0, errors.New("second load issued")
		})
		follower <- result{v, err}
	}()

	cancel()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)

	// Let the follower join the in-flight load before it completes.
	time.Sleep(20 * time.Millisecond)
	close(release)

	res := <-follower
	require.NoError(t, res.err)
	assert.Equal(t, 42, res.v)

	v, err := s.Get(context.Background(), func(context.Context) (int, error) { return 0, errors.New("reloaded") })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestNewSnapshot_DefaultTTL(t *testing.T) {
	s := NewSnapshot[int]("rates", 0)
	assert.Equal(t, DefaultTTL, s.ttl)
	assert.Equal(t, "rates", s.Name())
}
