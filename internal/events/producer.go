package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/freight-booking/internal/models"
)

// OrderEvent is the lifecycle record published for downstream consumers
// (revenue reporting, notifications).
type OrderEvent struct {
	Type     string            `json:"type"` // created, accepted, status_changed, matching_timeout
	OrderID  string            `json:"orderId"`
	ItemID   string            `json:"itemId,omitempty"`
	DriverID string            `json:"driverId,omitempty"`
	Status   models.ItemStatus `json:"status,omitempty"`
	At       time.Time         `json:"at"`
}

const (
	TypeCreated         = "created"
	TypeAccepted        = "accepted"
	TypeStatusChanged   = "status_changed"
	TypeMatchingTimeout = "matching_timeout"
)

// Producer publishes order events; the Noop variant keeps call sites clean
// when no brokers are configured.
type Producer interface {
	Publish(ev OrderEvent) error
	Close() error
}

type KafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &KafkaProducer{writer: w}
}

func (k *KafkaProducer) Publish(ev OrderEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	b, _ := json.Marshal(ev)
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.OrderID), Value: b})
}

func (k *KafkaProducer) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

type NoopProducer struct{}

func (NoopProducer) Publish(OrderEvent) error { return nil }
func (NoopProducer) Close() error { return nil }
