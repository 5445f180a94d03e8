package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayeeType distinguishes who a transfer is owed to.
type PayeeType string

const (
	PayeeStore           PayeeType = "store"
	PayeeDeliveryPartner PayeeType = "delivery_partner"
)

// TransferResult is the net amount owed to a payee after platform fees.
type TransferResult struct {
	OriginalAmount decimal.Decimal `json:"originalAmount"`
	PlatformFee    decimal.Decimal `json:"platformFee"`
	TransferAmount decimal.Decimal `json:"transferAmount"`
	FeeRate        decimal.Decimal `json:"feeRate"`
}

// PricedOrder combines tax and fees computed from the same order snapshot.
type PricedOrder struct {
	Tax          *TaxCalculationResult `json:"tax"`
	Fees         *FeeCalculationResult `json:"fees"`
	CustomerFees decimal.Decimal       `json:"customerFees"`
	Total        decimal.Decimal       `json:"total"`
}

// TransferStatus is the payment service's view of a transfer instruction.
type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusSubmitted TransferStatus = "submitted"
	TransferStatusSkipped   TransferStatus = "skipped"
	TransferStatusFailed    TransferStatus = "failed"
)

// TransferRequest instructs the payment service to move funds to a payee.
type TransferRequest struct {
	IdempotencyKey string    `json:"idempotency_key"`
	PayeeType      PayeeType `json:"payee_type"`
	PayeeID        string    `json:"payee_id"`
	AmountCents    int64     `json:"amount_cents"`
	Currency       string    `json:"currency"`
	Description    string    `json:"description,omitempty"`
}

// TransferResponse is returned by the payment service.
type TransferResponse struct {
	TransferID string         `json:"transfer_id"`
	Status     TransferStatus `json:"status"`
}

// Payout records a computed settlement and its transfer instruction.
type Payout struct {
	ID         string          `json:"id"`
	PayeeType  PayeeType       `json:"payeeType"`
	PayeeID    string          `json:"payeeId"`
	StateCode  string          `json:"stateCode,omitempty"`
	Transfer   *TransferResult `json:"transfer"`
	TransferID string          `json:"transferId,omitempty"`
	Status     TransferStatus  `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
}
