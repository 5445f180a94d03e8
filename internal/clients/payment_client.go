package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/models"
)

const (
	defaultMaxAttempts = 3
	retryBackoff       = 100 * time.Millisecond
)

// TransferClient instructs the payment service to move funds to a payee.
type TransferClient interface {
	CreateTransfer(ctx context.Context, req *models.TransferRequest) (*models.TransferResponse, error)
}

// Ensure HTTPPaymentClient implements TransferClient
var _ TransferClient = (*HTTPPaymentClient)(nil)

// HTTPPaymentClient implements TransferClient against the payment service's
// v2 API.
type HTTPPaymentClient struct {
	baseURL     string
	httpClient  *http.Client
	apiKey      string
	maxAttempts int
	logger      *logging.Logger
}

// NewHTTPPaymentClient creates a new HTTP-based payment client.
func NewHTTPPaymentClient(cfg config.ServiceConfig, logger *logging.Logger) *HTTPPaymentClient {
	return &HTTPPaymentClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		apiKey:      cfg.APIKey,
		maxAttempts: defaultMaxAttempts,
		logger:      logger,
	}
}

// CreateTransfer posts a transfer instruction. Server errors are retried with
// the same idempotency key, so a retried request never moves funds twice.
func (c *HTTPPaymentClient) CreateTransfer(ctx context.Context, req *models.TransferRequest) (*models.TransferResponse, error) {
	c.logger.Debug("Creating transfer", logging.Fields{
		"payee_type":      req.PayeeType,
		"payee_id":        req.PayeeID,
		"amount_cents":    req.AmountCents,
		"idempotency_key": req.IdempotencyKey,
	})

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/v2/transfers", c.baseURL)

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying transfer request", logging.Fields{
				"payee_id": req.PayeeID,
				"attempt":  attempt + 1,
			})
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * retryBackoff):
			}
		}

		result, retry, err := c.postTransfer(ctx, url, body, req)
		if err == nil {
			c.logger.Info("Transfer created", logging.Fields{
				"payee_id":    req.PayeeID,
				"transfer_id": result.TransferID,
				"status":      result.Status,
			})
			return result, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}

	c.logger.Error("Transfer request failed", logging.Fields{
		"payee_id": req.PayeeID,
		"error":    lastErr.Error(),
	})
	return nil, lastErr
}

func (c *HTTPPaymentClient) postTransfer(ctx context.Context, url string, body []byte, req *models.TransferRequest) (*models.TransferResponse, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}

	c.setHeaders(ctx, httpReq)
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, true, fmt.Errorf("payment service returned status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, false, fmt.Errorf("payment service returned status %d", resp.StatusCode)
	}

	var result models.TransferResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, false, err
	}
	return &result, false, nil
}

func (c *HTTPPaymentClient) setHeaders(ctx context.Context, req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	// Propagate request ID for tracing
	if requestID := middleware.RequestIDFrom(ctx); requestID != "" {
		req.Header.Set(middleware.HeaderRequestID, requestID)
	}
}

// MockPaymentClient is a mock implementation for testing and local runs.
type MockPaymentClient struct {
	mu        sync.Mutex
	transfers map[string]*models.TransferResponse
	Requests  []*models.TransferRequest
	Err       error
}

// NewMockPaymentClient creates a mock payment client.
func NewMockPaymentClient() *MockPaymentClient {
	return &MockPaymentClient{
		transfers: make(map[string]*models.TransferResponse),
	}
}

// CreateTransfer records req and returns the same transfer for a repeated
// idempotency key.
func (m *MockPaymentClient) CreateTransfer(ctx context.Context, req *models.TransferRequest) (*models.TransferResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	if existing, ok := m.transfers[req.IdempotencyKey]; ok {
		return existing, nil
	}

	resp := &models.TransferResponse{
		TransferID: "tr_" + uuid.NewString(),
		Status:     models.TransferStatusSubmitted,
	}
	m.transfers[req.IdempotencyKey] = resp
	return resp, nil
}
