// Package events publishes notification lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/anonto42/eyewitness/backend/internal/models"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// NotificationCreated is the event type written for every stored notification.
// A pending notice rewritten into its verdict is sent again under the same
// notification ID.
const NotificationCreated = "notification.created"

// DefaultPublishTimeout bounds one Publish so that an unreachable broker does
// not hold up the request that triggered the notification.
const DefaultPublishTimeout = 2 * time.Second

// Envelope is the JSON value of an event message.
type Envelope struct {
	Type         string               `json:"type"`
	OccurredAt   time.Time            `json:"occurredAt"`
	Notification *models.Notification `json:"notification"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes notification events keyed by recipient so that one
// recipient's events stay ordered within a partition.
type KafkaSink struct {
	writer  messageWriter
	logger  *zap.Logger
	now     func() time.Time
	timeout time.Duration
}

// NewKafkaWriter builds the writer used by KafkaSink.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		WriteTimeout: DefaultPublishTimeout,
		Transport: &kafka.Transport{
			ClientID: "eyewitness-backend",
		},
	}
}

// NewKafkaSink creates a KafkaSink
func NewKafkaSink(writer *kafka.Writer, logger *zap.Logger) *KafkaSink {
	return newKafkaSink(writer, logger)
}

func newKafkaSink(writer messageWriter, logger *zap.Logger) *KafkaSink {
	return &KafkaSink{writer: writer, logger: logger, now: time.Now, timeout: DefaultPublishTimeout}
}

// Publish writes a notification.created event.
func (s *KafkaSink) Publish(ctx context.Context, n *models.Notification) error {
	value, err := json.Marshal(Envelope{
		Type:         NotificationCreated,
		OccurredAt:   s.now().UTC(),
		Notification: n,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(n.RecipientID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(NotificationCreated)},
			{Key: "kind", Value: []byte(n.Type)},
		},
	})
	if err != nil {
		return err
	}

	s.logger.Debug("Notification event published",
		zap.String("recipient", n.RecipientID),
		zap.String("notification_id", n.ID))
	return nil
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
