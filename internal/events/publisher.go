package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/models"
)

// EventType represents the type of settlement event.
type EventType string

const (
	EventTypeTransferCalculated EventType = "settlement.transfer_calculated"
)

// SettlementEvent is published for every computed payout.
type SettlementEvent struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	PayeeType     string          `json:"payee_type"`
	PayeeID       string          `json:"payee_id"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

// Publisher emits settlement events.
type Publisher interface {
	PublishTransferCalculated(ctx context.Context, payout *models.Payout) error
}

// Ensure KafkaPublisher implements Publisher
var _ Publisher = (*KafkaPublisher)(nil)

// KafkaPublisher publishes settlement events to Kafka.
type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
	logger *logging.Logger
}

// NewKafkaPublisher creates a new Kafka-based event publisher.
func NewKafkaPublisher(cfg config.KafkaConfig, logger *logging.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.SettlementsTopic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}

	return &KafkaPublisher{
		writer: writer,
		topic:  cfg.SettlementsTopic,
		logger: logger,
	}
}

// PublishTransferCalculated publishes the computed transfer for a payout.
func (p *KafkaPublisher) PublishTransferCalculated(ctx context.Context, payout *models.Payout) error {
	p.logger.Debug("Publishing transfer calculated event", logging.Fields{
		"payout_id": payout.ID,
		"payee_id":  payout.PayeeID,
	})

	event, err := NewTransferCalculatedEvent(ctx, payout)
	if err != nil {
		return err
	}
	return p.publish(ctx, event)
}

// NewTransferCalculatedEvent builds the event for payout.
func NewTransferCalculatedEvent(ctx context.Context, payout *models.Payout) (*SettlementEvent, error) {
	data, err := json.Marshal(payout)
	if err != nil {
		return nil, err
	}

	return &SettlementEvent{
		ID:            uuid.NewString(),
		Type:          EventTypeTransferCalculated,
		PayeeType:     string(payout.PayeeType),
		PayeeID:       payout.PayeeID,
		Data:          data,
		Timestamp:     time.Now().UTC(),
		CorrelationID: middleware.RequestIDFrom(ctx),
	}, nil
}

func (p *KafkaPublisher) publish(ctx context.Context, event *SettlementEvent) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.PayeeID),
		Value: eventData,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish event", logging.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
			"payee_id":   event.PayeeID,
			"error":      err.Error(),
		})
		return err
	}

	p.logger.Info("Event published", logging.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
		"payee_id":   event.PayeeID,
	})

	return nil
}

// Close closes the Kafka writer.
func (p *KafkaPublisher) Close() error {
	p.logger.Info("Closing Kafka publisher")
	return p.writer.Close()
}

// NopPublisher drops events. Used when settlement events are disabled.
type NopPublisher struct{}

func (NopPublisher) PublishTransferCalculated(context.Context, *models.Payout) error { return nil }

// MockEventPublisher is a mock implementation for testing.
type MockEventPublisher struct {
	mu     sync.Mutex
	Events []*SettlementEvent
	Err    error
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{
		Events: make([]*SettlementEvent, 0),
	}
}

func (m *MockEventPublisher) PublishTransferCalculated(ctx context.Context, payout *models.Payout) error {
	if m.Err != nil {
		return m.Err
	}
	event, err := NewTransferCalculatedEvent(ctx, payout)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return nil
}
