// Package jurisdiction maps free-form state input to a canonical jurisdiction id.
package jurisdiction

import (
	"context"
	"strings"

	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/logging"
)

// Lookup is the configuration store's view of known jurisdictions.
type Lookup interface {
	ResolveJurisdictionByCodeOrName(ctx context.Context, input string) (string, bool, error)
}

// Resolver resolves state identifiers. An unmatched input is not an error.
type Resolver struct {
	lookup Lookup
	logger *logging.Logger
}

// NewResolver creates a resolver over lookup.
func NewResolver(lookup Lookup, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{lookup: lookup, logger: logger}
}

// ResolveStateID returns the jurisdiction id for a state code or name.
// ok is false when input is blank or matches no known state. err is non-nil
// only when the jurisdiction list itself could not be read.
func (r *Resolver) ResolveStateID(ctx context.Context, input string) (id string, ok bool, err error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", false, nil
	}

	id, ok, err = r.lookup.ResolveJurisdictionByCodeOrName(ctx, input)
	if err != nil {
		return "", false, err
	}
	if !ok {
		r.logger.Debug("State not resolved", logging.Fields{"state": input})
	}
	return id, ok, nil
}
