package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/clients"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/events"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/money"
)

// SettlementCalculator computes transfer amounts for payees.
type SettlementCalculator interface {
	CalculateStoreTransferAmount(ctx context.Context, storeGrossTotal decimal.Decimal, stateCode string) (*models.TransferResult, error)
	CalculateDeliveryPartnerTransferAmount(ctx context.Context, grossTotal decimal.Decimal, stateCode string) (*models.TransferResult, error)
}

// PayoutRequest is the accumulated gross owed to a payee.
type PayoutRequest struct {
	GrossTotal     decimal.Decimal `json:"grossTotal"`
	StateCode      string          `json:"stateCode,omitempty"`
	IdempotencyKey string          `json:"idempotencyKey"`
	Description    string          `json:"description,omitempty"`
}

// PayoutService computes settlements and instructs the payment service to
// move funds.
type PayoutService struct {
	settlement     SettlementCalculator
	paymentClient  clients.TransferClient
	eventPublisher events.Publisher
	config         *config.Config
	metrics        *metrics.Metrics
	logger         *logging.Logger
	now            func() time.Time
}

// NewPayoutService creates a new payout service.
func NewPayoutService(
	settlement SettlementCalculator,
	paymentClient clients.TransferClient,
	eventPublisher events.Publisher,
	cfg *config.Config,
	m *metrics.Metrics,
	logger *logging.Logger,
) *PayoutService {
	if eventPublisher == nil || !cfg.Features.EnableSettlementEvents {
		eventPublisher = events.NopPublisher{}
	}
	if m == nil {
		m = metrics.NewForTest()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &PayoutService{
		settlement:     settlement,
		paymentClient:  paymentClient,
		eventPublisher: eventPublisher,
		config:         cfg,
		metrics:        m,
		logger:         logger,
		now:            time.Now,
	}
}

// PayoutStore settles a store's gross total net of commission.
func (s *PayoutService) PayoutStore(ctx context.Context, storeID string, req *PayoutRequest) (*models.Payout, error) {
	if err := ValidatePayoutRequest(storeID, req); err != nil {
		return nil, err
	}

	transfer, err := s.settlement.CalculateStoreTransferAmount(ctx, req.GrossTotal, req.StateCode)
	if err != nil {
		return nil, err
	}
	return s.payout(ctx, models.PayeeStore, storeID, req, transfer)
}

// PayoutDeliveryPartner settles a delivery partner's gross earnings net of
// the delivery-platform fee.
func (s *PayoutService) PayoutDeliveryPartner(ctx context.Context, partnerID string, req *PayoutRequest) (*models.Payout, error) {
	if err := ValidatePayoutRequest(partnerID, req); err != nil {
		return nil, err
	}

	transfer, err := s.settlement.CalculateDeliveryPartnerTransferAmount(ctx, req.GrossTotal, req.StateCode)
	if err != nil {
		return nil, err
	}
	return s.payout(ctx, models.PayeeDeliveryPartner, partnerID, req, transfer)
}

func (s *PayoutService) payout(ctx context.Context, payeeType models.PayeeType, payeeID string, req *PayoutRequest, transfer *models.TransferResult) (*models.Payout, error) {
	payout := &models.Payout{
		ID:        "po_" + uuid.NewString(),
		PayeeType: payeeType,
		PayeeID:   payeeID,
		StateCode: req.StateCode,
		Transfer:  transfer,
		Status:    models.TransferStatusPending,
		CreatedAt: s.now().UTC(),
	}

	s.logger.Info("Processing payout", logging.Fields{
		"payout_id":       payout.ID,
		"payee_type":      payeeType,
		"payee_id":        payeeID,
		"gross":           transfer.OriginalAmount.String(),
		"platform_fee":    transfer.PlatformFee.String(),
		"transfer_amount": transfer.TransferAmount.String(),
	})

	if !transfer.TransferAmount.IsPositive() {
		payout.Status = models.TransferStatusSkipped
		s.logger.Info("Nothing to transfer", logging.Fields{"payout_id": payout.ID, "payee_id": payeeID})
	} else {
		resp, err := s.paymentClient.CreateTransfer(ctx, &models.TransferRequest{
			IdempotencyKey: req.IdempotencyKey,
			PayeeType:      payeeType,
			PayeeID:        payeeID,
			AmountCents:    money.ToCents(transfer.TransferAmount),
			Currency:       s.config.Settlement.Currency,
			Description:    req.Description,
		})
		if err != nil {
			s.metrics.Transfers.WithLabelValues(string(payeeType), string(models.TransferStatusFailed)).Inc()
			s.logger.Error("Transfer failed", logging.Fields{
				"payout_id": payout.ID,
				"payee_id":  payeeID,
				"error":     err.Error(),
			})
			return nil, errors.Wrap(err, "instruct transfer")
		}

		payout.TransferID = resp.TransferID
		payout.Status = resp.Status
		if payout.Status == "" {
			payout.Status = models.TransferStatusSubmitted
		}
	}
	s.metrics.Transfers.WithLabelValues(string(payeeType), string(payout.Status)).Inc()

	// Event failures do not fail an instructed payout.
	if err := s.eventPublisher.PublishTransferCalculated(ctx, payout); err != nil {
		s.logger.Warn("Failed to publish settlement event", logging.Fields{
			"payout_id": payout.ID,
			"error":     err.Error(),
		})
	}

	return payout, nil
}
