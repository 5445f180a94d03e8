package repository

import (
	"context"
	"strings"
	"time"

	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/cache"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/models"
)

const (
	taxRatesCache = "tax_rates"
	feesCache     = "platform_fees"
	statesCache   = "states"

	defaultQueryTimeout = 3 * time.Second
)

// RateRepositoryOptions configures a RateRepository.
type RateRepositoryOptions struct {
	TTL          time.Duration
	QueryTimeout time.Duration
	Clock        cache.Clock
	Metrics      *metrics.Metrics
	Logger       *logging.Logger
	Broadcaster  Broadcaster
}

// RateRepository serves tax rates, fee rules and states from per-instance
// snapshots of the ConfigStore. Returned slices are shared with the cache and
// must not be modified.
type RateRepository struct {
	store        ConfigStore
	taxRates     *cache.Snapshot[[]models.TaxRate]
	fees         *cache.Snapshot[[]models.PlatformFee]
	states       *cache.Snapshot[[]models.State]
	now          cache.Clock
	queryTimeout time.Duration
	metrics      *metrics.Metrics
	logger       *logging.Logger
	broadcaster  Broadcaster
}

// NewRateRepository creates a cached repository over store.
func NewRateRepository(store ConfigStore, opts RateRepositoryOptions) *RateRepository {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = defaultQueryTimeout
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewForTest()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	cacheOpts := []cache.Option{cache.WithClock(opts.Clock), cache.WithRecorder(opts.Metrics)}

	return &RateRepository{
		store:        store,
		taxRates:     cache.NewSnapshot[[]models.TaxRate](taxRatesCache, opts.TTL, cacheOpts...),
		fees:         cache.NewSnapshot[[]models.PlatformFee](feesCache, opts.TTL, cacheOpts...),
		states:       cache.NewSnapshot[[]models.State](statesCache, opts.TTL, cacheOpts...),
		now:          opts.Clock,
		queryTimeout: opts.QueryTimeout,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		broadcaster:  opts.Broadcaster,
	}
}

// GetActiveTaxRates returns active tax rates. A nil error with an empty slice
// means no rates are configured; a non-nil error means the store could not be
// read and nothing was cached.
func (r *RateRepository) GetActiveTaxRates(ctx context.Context) ([]models.TaxRate, error) {
	return r.taxRates.Get(ctx, func(ctx context.Context) ([]models.TaxRate, error) {
		ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
		defer cancel()

		rates, err := r.store.ListActiveTaxRates(ctx)
		if err != nil {
			r.loadFailed(taxRatesCache, err)
			return nil, err
		}
		return rates, nil
	})
}

// GetActiveFees returns fee rules active at the current time.
func (r *RateRepository) GetActiveFees(ctx context.Context) ([]models.PlatformFee, error) {
	all, err := r.fees.Get(ctx, func(ctx context.Context) ([]models.PlatformFee, error) {
		ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
		defer cancel()

		fees, err := r.store.ListActiveFees(ctx)
		if err != nil {
			r.loadFailed(feesCache, err)
			return nil, err
		}
		return fees, nil
	})
	if err != nil {
		return nil, err
	}

	// The snapshot may outlive a rule's effective window; filter on every read.
	now := r.now()
	active := make([]models.PlatformFee, 0, len(all))
	for i := range all {
		if all[i].ActiveAt(now) {
			active = append(active, all[i])
		}
	}
	return active, nil
}

// ListStates returns known state jurisdictions.
func (r *RateRepository) ListStates(ctx context.Context) ([]models.State, error) {
	return r.states.Get(ctx, func(ctx context.Context) ([]models.State, error) {
		ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
		defer cancel()

		states, err := r.store.ListStates(ctx)
		if err != nil {
			r.loadFailed(statesCache, err)
			return nil, err
		}
		return states, nil
	})
}

// ResolveJurisdictionByCodeOrName matches input case-insensitively against
// state codes first, then state names.
func (r *RateRepository) ResolveJurisdictionByCodeOrName(ctx context.Context, input string) (string, bool, error) {
	states, err := r.ListStates(ctx)
	if err != nil {
		return "", false, err
	}
	id, ok := MatchState(states, input)
	return id, ok, nil
}

// MatchState applies the code-then-name lookup to an in-memory state list.
func MatchState(states []models.State, input string) (string, bool) {
	needle := strings.TrimSpace(input)
	if needle == "" {
		return "", false
	}
	for _, s := range states {
		if strings.EqualFold(s.Code, needle) {
			return s.ID, true
		}
	}
	for _, s := range states {
		if strings.EqualFold(s.Name, needle) {
			return s.ID, true
		}
	}
	return "", false
}

// InvalidateCache drops every local snapshot and asks other instances to do
// the same. The local drop always happens; a broadcast failure is returned.
func (r *RateRepository) InvalidateCache(ctx context.Context) error {
	r.InvalidateLocal()

	if r.broadcaster == nil {
		return nil
	}
	if err := r.broadcaster.PublishInvalidation(ctx); err != nil {
		r.logger.Error("Failed to broadcast cache invalidation", logging.Fields{"error": err.Error()})
		return err
	}
	return nil
}

// InvalidateLocal drops this instance's snapshots only.
func (r *RateRepository) InvalidateLocal() {
	r.taxRates.Invalidate()
	r.fees.Invalidate()
	r.states.Invalidate()
	r.logger.Info("Pricing configuration cache invalidated")
}

func (r *RateRepository) loadFailed(source string, err error) {
	r.metrics.ConfigLoadFailures.WithLabelValues(source).Inc()
	r.logger.Error("Failed to load pricing configuration", logging.Fields{
		"source": source,
		"error":  err.Error(),
	})
}
