package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tm-acme-shop/acme-shop-settlement-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/fees"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/service"
)

type fakeTax struct {
	err      error
	gotItems []models.TaxableItem
	gotState string
}

func (f *fakeTax) CalculateTaxes(ctx context.Context, items []models.TaxableItem, address models.ShippingAddress) (*models.TaxCalculationResult, error) {
	f.gotItems = items
	f.gotState = address.State
	if f.err != nil {
		return nil, f.err
	}
	return &models.TaxCalculationResult{
		Subtotal:     decimal.RequireFromString("100"),
		TaxAmount:    decimal.RequireFromString("7.25"),
		TaxRate:      decimal.RequireFromString("0.0725"),
		TaxBreakdown: []models.TaxBreakdownLine{},
		TotalWithTax: decimal.RequireFromString("107.25"),
	}, nil
}

func (f *fakeTax) EstimateTaxRate(ctx context.Context, state string) (*models.TaxEstimate, error) {
	return &models.TaxEstimate{State: state, Rate: decimal.RequireFromString("0.08")}, f.err
}

type fakeFees struct {
	err       error
	gotAmount decimal.Decimal
	issues    []fees.Issue
}

func (f *fakeFees) CalculateFees(ctx context.Context, amount decimal.Decimal, stateCode string) (*models.FeeCalculationResult, error) {
	f.gotAmount = amount
	if f.err != nil {
		return nil, f.err
	}
	return &models.FeeCalculationResult{TotalPlatformFees: decimal.RequireFromString("12.5")}, nil
}

func (f *fakeFees) ValidateActive(ctx context.Context) ([]fees.Issue, error) {
	return f.issues, f.err
}

type fakeCache struct {
	calls int
	err   error
}

func (f *fakeCache) InvalidateCache(ctx context.Context) error {
	f.calls++
	return f.err
}

type fakePayouts struct {
	gotID  string
	gotReq *service.PayoutRequest
}

func (f *fakePayouts) PayoutStore(ctx context.Context, storeID string, req *service.PayoutRequest) (*models.Payout, error) {
	f.gotID, f.gotReq = storeID, req
	return &models.Payout{ID: "po_1", PayeeType: models.PayeeStore, PayeeID: storeID, Status: models.TransferStatusSubmitted}, nil
}

func (f *fakePayouts) PayoutDeliveryPartner(ctx context.Context, partnerID string, req *service.PayoutRequest) (*models.Payout, error) {
	f.gotID, f.gotReq = partnerID, req
	return nil, apperrors.NewValidationError("grossTotal", "gross total cannot be negative")
}

func newTestHandlers(deps Dependencies) *Handlers {
	h := NewHandlers(deps, nil)
	h.logger = logging.NewNop()
	return h
}

func newContext(method, target string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	c.Request = httptest.NewRequest(method, target, &buf)
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	h := newTestHandlers(Dependencies{})
	c, w := newContext(http.MethodGet, "/health", nil)

	h.Health(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "settlement-service", resp["service"])
}

func TestReady(t *testing.T) {
	h := newTestHandlers(Dependencies{Readiness: map[string]ReadinessCheck{
		"database": func(context.Context) error { return nil },
	}})
	c, w := newContext(http.MethodGet, "/ready", nil)

	h.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReady_DependencyDown(t *testing.T) {
	h := newTestHandlers(Dependencies{Readiness: map[string]ReadinessCheck{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}})
	c, w := newContext(http.MethodGet, "/ready", nil)

	h.Ready(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	checks := decode(t, w)["checks"].(map[string]interface{})
	assert.Equal(t, "ok", checks["database"])
	assert.Equal(t, "connection refused", checks["redis"])
}

func TestLive(t *testing.T) {
	h := newTestHandlers(Dependencies{})
	c, w := newContext(http.MethodGet, "/live", nil)

	h.Live(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCalculateTax(t *testing.T) {
	tax := &fakeTax{}
	h := newTestHandlers(Dependencies{Tax: tax})
	c, w := newContext(http.MethodPost, "/api/v1/tax/calculate",
		`{"items":[{"productId":"p1","name":"Widget","price":100,"quantity":1}],"address":{"state":"CA","city":"LA","zipCode":"90001","country":"US"}}`)

	h.CalculateTax(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "CA", tax.gotState)
	require.Len(t, tax.gotItems, 1)
	assert.Equal(t, "100", tax.gotItems[0].Price.String())

	resp := decode(t, w)
	assert.Equal(t, 7.25, resp["taxAmount"])
	assert.Equal(t, 107.25, resp["totalWithTax"])
}

func TestCalculateTax_InvalidBody(t *testing.T) {
	h := newTestHandlers(Dependencies{Tax: &fakeTax{}})
	c, w := newContext(http.MethodPost, "/api/v1/tax/calculate", `{"items":`)

	h.CalculateTax(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEstimateTax(t *testing.T) {
	h := newTestHandlers(Dependencies{Tax: &fakeTax{}})

	c, w := newContext(http.MethodGet, "/api/v1/tax/estimate?state=CA", nil)
	h.EstimateTax(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0.08, decode(t, w)["rate"])

	c, w = newContext(http.MethodGet, "/api/v1/tax/estimate", nil)
	h.EstimateTax(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCalculateFees(t *testing.T) {
	f := &fakeFees{}
	h := newTestHandlers(Dependencies{Fees: f})

	c, w := newContext(http.MethodPost, "/api/v1/fees/calculate", `{"orderAmount":"125.00","stateCode":"TX"}`)
	h.CalculateFees(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "125", f.gotAmount.String())

	c, w = newContext(http.MethodPost, "/api/v1/fees/calculate", `{"stateCode":"TX"}`)
	h.CalculateFees(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCalculateFees_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", apperrors.NewValidationError("orderAmount", "amount cannot be negative"), http.StatusBadRequest},
		{"config unavailable", apperrors.ConfigUnavailable(errors.New("db down")), http.StatusServiceUnavailable},
		{"not found", apperrors.ErrNotFound, http.StatusNotFound},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandlers(Dependencies{Fees: &fakeFees{err: tt.err}})
			c, w := newContext(http.MethodPost, "/api/v1/fees/calculate", `{"orderAmount":10}`)

			h.CalculateFees(c)
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestHandleError_ValidationDetails(t *testing.T) {
	c, w := newContext(http.MethodGet, "/", nil)

	handleError(c, apperrors.NewValidationError("items[0].price", "price cannot be negative"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "price cannot be negative", resp["error"])
	details := resp["details"].(map[string]interface{})
	assert.Equal(t, "price cannot be negative", details["items[0].price"])
}

func TestInvalidateCache(t *testing.T) {
	cache := &fakeCache{}
	h := newTestHandlers(Dependencies{Cache: cache})
	c, w := newContext(http.MethodPost, "/api/v1/admin/cache/invalidate", nil)

	h.InvalidateCache(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, cache.calls)
}

func TestInvalidateCache_BroadcastFailure(t *testing.T) {
	h := newTestHandlers(Dependencies{Cache: &fakeCache{err: errors.New("redis down")}})
	c, w := newContext(http.MethodPost, "/api/v1/admin/cache/invalidate", nil)

	h.InvalidateCache(c)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestValidateFees(t *testing.T) {
	h := newTestHandlers(Dependencies{Fees: &fakeFees{issues: []fees.Issue{
		{FeeID: "fee_1", FeeType: "processing_fee", Problem: "negative rate -0.01"},
	}}})
	c, w := newContext(http.MethodGet, "/api/v1/admin/fees/validate", nil)

	h.ValidateFees(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, false, resp["valid"])
	assert.Len(t, resp["issues"], 1)
}

func TestPayoutStore(t *testing.T) {
	payouts := &fakePayouts{}
	h := newTestHandlers(Dependencies{Payouts: payouts})
	c, w := newContext(http.MethodPost, "/api/v1/payouts/stores/store_9", `{"grossTotal":250,"stateCode":"CA","idempotencyKey":"k1"}`)
	c.Params = gin.Params{{Key: "id", Value: "store_9"}}

	h.PayoutStore(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "store_9", payouts.gotID)
	assert.Equal(t, "k1", payouts.gotReq.IdempotencyKey)
	assert.Equal(t, "250", payouts.gotReq.GrossTotal.String())
}

func TestPayoutDeliveryPartner_Validation(t *testing.T) {
	h := newTestHandlers(Dependencies{Payouts: &fakePayouts{}})
	c, w := newContext(http.MethodPost, "/api/v1/payouts/delivery-partners/dp_1", `{"grossTotal":-1}`)
	c.Params = gin.Params{{Key: "id", Value: "dp_1"}}

	h.PayoutDeliveryPartner(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
