package repository

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"

	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/models"
)

// ErrStoreUnavailable is returned while the breaker is open.
var ErrStoreUnavailable = errors.New("configuration store unavailable: circuit open")

// BreakerStore guards a ConfigStore with a circuit breaker so an unhealthy
// database fails fast instead of stalling every checkout.
type BreakerStore struct {
	next ConfigStore
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerStore wraps next.
func NewBreakerStore(next ConfigStore, cfg config.CircuitBreakerConfig, logger *logging.Logger) *BreakerStore {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:        "pricing-config-store",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// The caller giving up is not a store failure.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", logging.Fields{
				"name": name,
				"from": from.String(),
				"to":   to.String(),
			})
		},
	}

	return &BreakerStore{
		next: next,
		cb:   gobreaker.NewCircuitBreaker(settings),
	}
}

// State reports the breaker state.
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerStore) ListActiveTaxRates(ctx context.Context) ([]models.TaxRate, error) {
	res, err := b.execute(func() (interface{}, error) {
		return b.next.ListActiveTaxRates(ctx)
	})
	if err != nil {
		return nil, err
	}
	return res.([]models.TaxRate), nil
}

func (b *BreakerStore) ListActiveFees(ctx context.Context) ([]models.PlatformFee, error) {
	res, err := b.execute(func() (interface{}, error) {
		return b.next.ListActiveFees(ctx)
	})
	if err != nil {
		return nil, err
	}
	return res.([]models.PlatformFee), nil
}

func (b *BreakerStore) ListStates(ctx context.Context) ([]models.State, error) {
	res, err := b.execute(func() (interface{}, error) {
		return b.next.ListStates(ctx)
	})
	if err != nil {
		return nil, err
	}
	return res.([]models.State), nil
}

func (b *BreakerStore) execute(fn func() (interface{}, error)) (interface{}, error) {
	res, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrStoreUnavailable
	}
	return res, err
}
