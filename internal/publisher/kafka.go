package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"solaralert/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher produces one message per recorded alert to the alert topic.
type KafkaPublisher struct {
	writer messageWriter
	logger *slog.Logger
}

// AlertMessage is the payload consumers of the alert topic receive.
type AlertMessage struct {
	AlertID    uint             `json:"alert_id"`
	Type       models.EventType `json:"type"`
	Level      models.Level     `json:"level"`
	Message    string           `json:"message"`
	SentAt     time.Time        `json:"sent_at"`
	Deliveries int              `json:"deliveries"`
}

func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &KafkaPublisher{writer: w, logger: logger}
}

func (p *KafkaPublisher) PublishAlert(ctx context.Context, alert *models.Alert, deliveries int) error {
	msg, err := serializeAlert(alert, deliveries)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish alert %d: %w", alert.ID, err)
	}
	p.logger.Debug("alert published", "alert_id", alert.ID, "type", alert.Type)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// serializeAlert keys messages by event type so alerts of one type stay
// ordered within a partition.
func serializeAlert(alert *models.Alert, deliveries int) (kafkago.Message, error) {
	data, err := json.Marshal(AlertMessage{
		AlertID:    alert.ID,
		Type:       alert.Type,
		Level:      alert.Level,
		Message:    alert.Message,
		SentAt:     alert.SentAt.UTC(),
		Deliveries: deliveries,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(alert.Type),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "alert_id", Value: []byte(strconv.FormatUint(uint64(alert.ID), 10))},
			{Key: "level", Value: []byte(alert.Level)},
			{Key: "sent_at", Value: []byte(alert.SentAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
