package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/models"
)

// Ensure PostgresConfigStore implements ConfigStore
var _ ConfigStore = (*PostgresConfigStore)(nil)

// PostgresConfigStore implements ConfigStore using PostgreSQL.
type PostgresConfigStore struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewPostgresConfigStore creates a new PostgreSQL configuration store.
func NewPostgresConfigStore(db *sql.DB, logger *logging.Logger) *PostgresConfigStore {
	return &PostgresConfigStore{
		db:     db,
		logger: logger,
	}
}

// ListActiveTaxRates retrieves every active tax rate.
func (r *PostgresConfigStore) ListActiveTaxRates(ctx context.Context) ([]models.TaxRate, error) {
	r.logger.Debug("Fetching active tax rates")

	query := `
		SELECT id, scope, state_id, county_id, city_id, name, rate,
		       tax_type, applies_to, categories, is_active
		FROM tax_rates
		WHERE is_active = true
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to query tax rates", logging.Fields{"error": err.Error()})
		return nil, errors.Wrap(err, "query tax rates")
	}
	defer rows.Close()

	rates := make([]models.TaxRate, 0)
	for rows.Next() {
		rate, err := scanTaxRate(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan tax rate")
		}
		if err := rate.Validate(); err != nil {
			r.logger.Warn("Skipping invalid tax rate", logging.Fields{
				"tax_rate_id": rate.ID,
				"error":       err.Error(),
			})
			continue
		}
		rates = append(rates, *rate)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate tax rates")
	}

	r.logger.Info("Tax rates fetched", logging.Fields{"count": len(rates)})
	return rates, nil
}

// ListActiveFees retrieves active fee rules that have not ended yet.
func (r *PostgresConfigStore) ListActiveFees(ctx context.Context) ([]models.PlatformFee, error) {
	r.logger.Debug("Fetching active platform fees")

	query := `
		SELECT id, scope, state_id, name, fee_type, calculation_type, value,
		       tiers, is_active, effective_date, end_date, created_at
		FROM platform_fees
		WHERE is_active = true
		  AND (end_date IS NULL OR end_date >= NOW())
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to query platform fees", logging.Fields{"error": err.Error()})
		return nil, errors.Wrap(err, "query platform fees")
	}
	defer rows.Close()

	fees := make([]models.PlatformFee, 0)
	for rows.Next() {
		fee, err := r.scanFee(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan platform fee")
		}
		if fee != nil {
			fees = append(fees, *fee)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate platform fees")
	}

	r.logger.Info("Platform fees fetched", logging.Fields{"count": len(fees)})
	return fees, nil
}

// ListStates retrieves every state jurisdiction.
func (r *PostgresConfigStore) ListStates(ctx context.Context) ([]models.State, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, code, name FROM states ORDER BY code`)
	if err != nil {
		r.logger.Error("Failed to query states", logging.Fields{"error": err.Error()})
		return nil, errors.Wrap(err, "query states")
	}
	defer rows.Close()

	states := make([]models.State, 0, 64)
	for rows.Next() {
		var s models.State
		if err := rows.Scan(&s.ID, &s.Code, &s.Name); err != nil {
			return nil, errors.Wrap(err, "scan state")
		}
		states = append(states, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate states")
	}
	return states, nil
}

func scanTaxRate(rows *sql.Rows) (*models.TaxRate, error) {
	var rate models.TaxRate
	var stateID, countyID, cityID sql.NullString
	var categories pq.StringArray

	err := rows.Scan(
		&rate.ID,
		&rate.Scope,
		&stateID,
		&countyID,
		&cityID,
		&rate.Name,
		&rate.Rate,
		&rate.TaxType,
		&rate.AppliesTo,
		&categories,
		&rate.IsActive,
	)
	if err != nil {
		return nil, err
	}

	rate.JurisdictionID = jurisdictionForScope(rate.Scope, stateID, countyID, cityID)
	if len(categories) > 0 {
		rate.Categories = []string(categories)
	}
	return &rate, nil
}

func jurisdictionForScope(scope models.TaxScope, stateID, countyID, cityID sql.NullString) *string {
	var ref sql.NullString
	switch scope {
	case models.TaxScopeState:
		ref = stateID
	case models.TaxScopeCounty:
		ref = countyID
	case models.TaxScopeCity:
		ref = cityID
	}
	if !ref.Valid {
		return nil
	}
	return &ref.String
}

// scanFee returns nil for rows whose calculation cannot be decoded; those are
// logged and left out of the snapshot.
func (r *PostgresConfigStore) scanFee(rows *sql.Rows) (*models.PlatformFee, error) {
	var fee models.PlatformFee
	var stateID sql.NullString
	var calcType string
	var value decimal.NullDecimal
	var tiersJSON []byte
	var endDate sql.NullTime

	err := rows.Scan(
		&fee.ID,
		&fee.Scope,
		&stateID,
		&fee.Name,
		&fee.FeeType,
		&calcType,
		&value,
		&tiersJSON,
		&fee.IsActive,
		&fee.EffectiveDate,
		&endDate,
		&fee.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if stateID.Valid {
		fee.JurisdictionID = &stateID.String
	}
	if endDate.Valid {
		fee.EndDate = &endDate.Time
	}

	tiers, err := decodeTiers(tiersJSON)
	if err != nil {
		r.logger.Warn("Skipping fee with malformed tiers", logging.Fields{
			"fee_id": fee.ID,
			"error":  err.Error(),
		})
		return nil, nil
	}

	calc, err := models.NewCalculation(models.CalculationType(calcType), value.Decimal, tiers)
	if err != nil {
		r.logger.Warn("Skipping fee with invalid calculation", logging.Fields{
			"fee_id": fee.ID,
			"error":  err.Error(),
		})
		return nil, nil
	}
	fee.Calculation = calc

	return &fee, nil
}

// decodeTiers parses the tiers JSONB column. NULL and JSON null decode to no tiers.
func decodeTiers(data []byte) ([]models.FeeTier, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var tiers []models.FeeTier
	if err := json.Unmarshal(data, &tiers); err != nil {
		return nil, err
	}
	return tiers, nil
}
