package events

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/logging"
)

// ConfigEventType represents the type of pricing configuration event.
type ConfigEventType string

const (
	ConfigEventChanged ConfigEventType = "pricing_config.changed"
)

// ConfigEvent is raised by the configuration surface after a write to tax
// rates or fee rules.
type ConfigEvent struct {
	ID        string          `json:"id"`
	Type      ConfigEventType `json:"type"`
	Entity    string          `json:"entity"`
	EntityID  string          `json:"entity_id"`
	Timestamp time.Time       `json:"timestamp"`
}

// Invalidator drops this instance's cached pricing configuration.
type Invalidator interface {
	InvalidateLocal()
}

// KafkaConsumer consumes pricing configuration events from Kafka.
type KafkaConsumer struct {
	reader      *kafka.Reader
	invalidator Invalidator
	logger      *logging.Logger
	stopCh      chan struct{}
}

// NewKafkaConsumer creates a new Kafka-based event consumer.
func NewKafkaConsumer(cfg config.KafkaConfig, invalidator Invalidator, logger *logging.Logger) *KafkaConsumer {
	groupID := instanceGroupID(cfg.ConsumerGroup)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.ConfigTopic,
		GroupID:     groupID,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
	})
	logger.Info("Config event consumer created", logging.Fields{"group_id": groupID, "topic": cfg.ConfigTopic})

	return &KafkaConsumer{
		reader:      reader,
		invalidator: invalidator,
		logger:      logger,
		stopCh:      make(chan struct{}),
	}
}

// instanceGroupID returns a consumer group owned by this process alone. Every
// instance holds its own cache, so each must see every configuration event;
// a shared group would hand each event to a single instance.
func instanceGroupID(base string) string {
	if base == "" {
		base = "settlement-service"
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return base + "-" + host + "-" + uuid.NewString()[:8]
}

// Start begins consuming events.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	c.logger.Info("Starting Kafka consumer")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			c.logger.Info("Kafka consumer stopped")
			return nil
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				select {
				case <-c.stopCh:
					return nil
				default:
				}
				c.logger.Error("Failed to read message", logging.Fields{"error": err.Error()})
				continue
			}

			c.handleMessage(msg)
		}
	}
}

// Stop stops the consumer.
func (c *KafkaConsumer) Stop() {
	close(c.stopCh)
	c.reader.Close()
}

func (c *KafkaConsumer) handleMessage(msg kafka.Message) {
	c.logger.Debug("Received message", logging.Fields{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	var event ConfigEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Error("Failed to unmarshal event", logging.Fields{"error": err.Error()})
		return
	}

	switch event.Type {
	case ConfigEventChanged:
		c.logger.Info("Pricing configuration changed", logging.Fields{
			"event_id":  event.ID,
			"entity":    event.Entity,
			"entity_id": event.EntityID,
		})
		c.invalidator.InvalidateLocal()
	default:
		c.logger.Debug("Ignoring unknown event type", logging.Fields{"type": event.Type})
	}
}
