package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/models"
)

type fakeStore struct {
	mu        sync.Mutex
	rates     []models.TaxRate
	fees      []models.PlatformFee
	states    []models.State
	err       error
	rateCalls int
	feeCalls  int
}

func (s *fakeStore) ListActiveTaxRates(ctx context.Context) ([]models.TaxRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateCalls++
	if s.err != nil {
		return nil, s.err
	}
	return append([]models.TaxRate(nil), s.rates...), nil
}

func (s *fakeStore) ListActiveFees(ctx context.Context) ([]models.PlatformFee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feeCalls++
	if s.err != nil {
		return nil, s.err
	}
	return append([]models.PlatformFee(nil), s.fees...), nil
}

func (s *fakeStore) ListStates(ctx context.Context) ([]models.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.states, nil
}

type fakeBroadcaster struct {
	calls int
	err   error
}

func (b *fakeBroadcaster) PublishInvalidation(ctx context.Context) error {
	b.calls++
	return b.err
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newClock() *clock {
	return &clock{now: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func caSales(rate string) models.TaxRate {
	ca := "st_ca"
	return models.TaxRate{
		ID: "tr_" + rate, Scope: models.TaxScopeState, JurisdictionID: &ca, Name: "CA Sales",
		Rate: decimal.RequireFromString(rate), TaxType: "sales", AppliesTo: models.AppliesToAll, IsActive: true,
	}
}

func TestRateRepository_CachesWithinTTL(t *testing.T) {
	store := &fakeStore{rates: []models.TaxRate{caSales("0.0725")}}
	clk := newClock()
	repo := NewRateRepository(store, RateRepositoryOptions{TTL: 5 * time.Minute, Clock: clk.Now})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rates, err := repo.GetActiveTaxRates(ctx)
		require.NoError(t, err)
		assert.Len(t, rates, 1)
	}
	assert.Equal(t, 1, store.rateCalls)

	clk.now = clk.now.Add(5 * time.Minute)
	_, err := repo.GetActiveTaxRates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, store.rateCalls)
}

func TestRateRepository_InvalidateReflectsNewConfigImmediately(t *testing.T) {
	store := &fakeStore{rates: []models.TaxRate{caSales("0.0725")}}
	bus := &fakeBroadcaster{}
	repo := NewRateRepository(store, RateRepositoryOptions{TTL: time.Hour, Clock: newClock().Now, Broadcaster: bus})
	ctx := context.Background()

	rates, err := repo.GetActiveTaxRates(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.0725").Equal(rates[0].Rate))

	store.mu.Lock()
	store.rates = []models.TaxRate{caSales("0.08")}
	store.mu.Unlock()

	rates, err = repo.GetActiveTaxRates(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.0725").Equal(rates[0].Rate), "still cached")

	require.NoError(t, repo.InvalidateCache(ctx))
	assert.Equal(t, 1, bus.calls)

	rates, err = repo.GetActiveTaxRates(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.08").Equal(rates[0].Rate))
}

func TestRateRepository_InvalidateBroadcastFailureStillDropsLocal(t *testing.T) {
	store := &fakeStore{rates: []models.TaxRate{caSales("0.0725")}}
	bus := &fakeBroadcaster{err: errors.New("redis down")}
	repo := NewRateRepository(store, RateRepositoryOptions{TTL: time.Hour, Broadcaster: bus})
	ctx := context.Background()

	_, err := repo.GetActiveTaxRates(ctx)
	require.NoError(t, err)

	assert.Error(t, repo.InvalidateCache(ctx))

	_, err = repo.GetActiveTaxRates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, store.rateCalls)
}

func TestRateRepository_LoadFailureIsReturnedAndCounted(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	m := metrics.NewForTest()
	repo := NewRateRepository(store, RateRepositoryOptions{Metrics: m})
	ctx := context.Background()

	rates, err := repo.GetActiveTaxRates(ctx)
	assert.Error(t, err)
	assert.Nil(t, rates)

	_, err = repo.GetActiveFees(ctx)
	assert.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConfigLoadFailures.WithLabelValues("tax_rates")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConfigLoadFailures.WithLabelValues("platform_fees")))

	// Failures are not cached.
	store.mu.Lock()
	store.err = nil
	store.mu.Unlock()
	_, err = repo.GetActiveTaxRates(ctx)
	assert.NoError(t, err)
}

func TestRateRepository_EmptyByDesign(t *testing.T) {
	repo := NewRateRepository(&fakeStore{}, RateRepositoryOptions{})

	rates, err := repo.GetActiveTaxRates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rates)
}

func TestRateRepository_FiltersFeesByEffectiveWindow(t *testing.T) {
	clk := newClock()
	yesterday := clk.now.Add(-24 * time.Hour)
	tomorrow := clk.now.Add(24 * time.Hour)
	inAnHour := clk.now.Add(time.Hour)

	store := &fakeStore{fees: []models.PlatformFee{
		{ID: "current", IsActive: true, EffectiveDate: yesterday},
		{ID: "future", IsActive: true, EffectiveDate: tomorrow},
		{ID: "ending", IsActive: true, EffectiveDate: yesterday, EndDate: &inAnHour},
	}}
	repo := NewRateRepository(store, RateRepositoryOptions{TTL: 72 * time.Hour, Clock: clk.Now})
	ctx := context.Background()

	fees, err := repo.GetActiveFees(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"current", "ending"}, feeIDs(fees))

	clk.now = clk.now.Add(25 * time.Hour)
	fees, err = repo.GetActiveFees(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"current", "future"}, feeIDs(fees))
	assert.Equal(t, 1, store.feeCalls)
}

func feeIDs(fees []models.PlatformFee) []string {
	ids := make([]string, len(fees))
	for i, f := range fees {
		ids[i] = f.ID
	}
	return ids
}

func TestRateRepository_ResolveJurisdiction(t *testing.T) {
	store := &fakeStore{states: []models.State{
		{ID: "st_ca", Code: "CA", Name: "California"},
		{ID: "st_tx", Code: "TX", Name: "Texas"},
	}}
	repo := NewRateRepository(store, RateRepositoryOptions{})
	ctx := context.Background()

	tests := []struct {
		input  string
		wantID string
		wantOK bool
	}{
		{"CA", "st_ca", true},
		{"ca", "st_ca", true},
		{" texas ", "st_tx", true},
		{"TEXAS", "st_tx", true},
		{"Narnia", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			id, ok, err := repo.ResolveJurisdictionByCodeOrName(ctx, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestMatchState_CodeBeatsName(t *testing.T) {
	states := []models.State{
		{ID: "name_match", Code: "XX", Name: "IN"},
		{ID: "code_match", Code: "IN", Name: "Indiana"},
	}

	id, ok := MatchState(states, "in")
	assert.True(t, ok)
	assert.Equal(t, "code_match", id)
}

// gatedStore holds tax rate loads until release is closed or the load's
// context ends.
type gatedStore struct {
	fakeStore
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *gatedStore) ListActiveTaxRates(ctx context.Context) ([]models.TaxRate, error) {
	s.once.Do(func() { close(s.started) })
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.release:
		return s.fakeStore.ListActiveTaxRates(ctx)
	}
}

func TestRateRepository_CancelledCallerDoesNotFailConcurrentLoads(t *testing.T) {
	store := &gatedStore{
		fakeStore: fakeStore{rates: []models.TaxRate{caSales("0.0725")}},
		started:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	repo := NewRateRepository(store, RateRepositoryOptions{TTL: 5 * time.Minute, QueryTimeout: 5 * time.Second})

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := repo.GetActiveTaxRates(leaderCtx)
		leaderErr <- err
	}()
	<-store.started

	type result struct {
		rates []models.TaxRate
		err   error
	}
	follower := make(chan result, 1)
	go func() {
		rates, err := repo.GetActiveTaxRates(context.Background())
		follower <- result{rates, err}
	}()

	cancel()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)

	time.Sleep(20 * time.Millisecond)
	close(store.release)

	res := <-follower
	require.NoError(t, res.err)
	require.Len(t, res.rates, 1)
	assert.Equal(t, "0.0725", res.rates[0].Rate.String())
}

func TestRateRepository_QueryTimeoutStillApplies(t *testing.T) {
	store := &gatedStore{started: make(chan struct{}), release: make(chan struct{})}
	m := metrics.NewForTest()
	repo := NewRateRepository(store, RateRepositoryOptions{QueryTimeout: 20 * time.Millisecond, Metrics: m})

	_, err := repo.GetActiveTaxRates(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConfigLoadFailures.WithLabelValues("tax_rates")))
}
