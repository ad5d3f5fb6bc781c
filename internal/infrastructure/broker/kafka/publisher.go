package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
	"github.com/99minutos/dock-kiosk/internal/core/ports"
)

var _ ports.StatusPublisher = (*StatusPublisher)(nil)

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// StatusPublisher writes booking status changes to a Kafka topic keyed by
// booking ID, so consumers see each booking's transitions in order.
type StatusPublisher struct {
	writer writer
}

// NewStatusPublisher creates a publisher for the given topic.
func NewStatusPublisher(brokers []string, topic string) *StatusPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &StatusPublisher{writer: w}
}

type statusMessage struct {
	BookingID        string               `json:"booking_id"`
	ConfirmationCode string               `json:"confirmation_code"`
	Status           domain.BookingStatus `json:"status"`
	Notes            string               `json:"notes,omitempty"`
	Timestamp        time.Time            `json:"timestamp"`
}

func (p *StatusPublisher) PublishStatus(ctx context.Context, b *domain.Booking, entry domain.StatusHistoryEntry) error {
	data, err := json.Marshal(statusMessage{
		BookingID:        b.ID,
		ConfirmationCode: b.ConfirmationCode,
		Status:           entry.Status,
		Notes:            entry.Notes,
		Timestamp:        entry.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(b.ID),
		Value: data,
		Time:  entry.Timestamp,
	}); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *StatusPublisher) Close() error {
	return p.writer.Close()
}
