package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
	"github.com/99minutos/dock-kiosk/internal/core/ports"
)

var _ ports.GeofenceEventPublisher = (*EventPublisher)(nil)

const (
	exchangeName = "kiosk.geofence"
	queueName    = "geofence_events"
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Dial opens a connection to the broker.
func Dial(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq connect: %w", err)
	}
	return conn, nil
}

// EventPublisher fans geofence events out on a durable fanout exchange.
type EventPublisher struct {
	ch channel
}

// NewEventPublisher declares the exchange and its default queue.
func NewEventPublisher(conn *amqp.Connection) (*EventPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchangeName, "fanout", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(queueName, "", exchangeName, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	return &EventPublisher{ch: ch}, nil
}

type eventMessage struct {
	BookingID      string           `json:"booking_id"`
	ZoneID         string           `json:"zone_id"`
	ZoneKind       domain.ZoneKind  `json:"zone_kind"`
	Event          domain.EventKind `json:"event"`
	Location       eventLocation    `json:"location"`
	DistanceMeters float64          `json:"distance_meters"`
	DwellMillis    int64            `json:"dwell_ms,omitempty"`
	Timestamp      int64            `json:"timestamp"`
}

type eventLocation struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AccuracyMeters float64 `json:"accuracy_meters"`
}

func newEventMessage(bookingID string, ev domain.GeofenceEvent) eventMessage {
	return eventMessage{
		BookingID: bookingID,
		ZoneID:    ev.ZoneID,
		ZoneKind:  ev.ZoneKind,
		Event:     ev.Kind,
		Location: eventLocation{
			Latitude:       ev.Position.Latitude,
			Longitude:      ev.Position.Longitude,
			AccuracyMeters: ev.Position.AccuracyMeters,
		},
		DistanceMeters: ev.DistanceMeters,
		DwellMillis:    ev.DwellThreshold.Milliseconds(),
		Timestamp:      ev.Timestamp.UnixMilli(),
	}
}

func (p *EventPublisher) PublishGeofenceEvent(ctx context.Context, bookingID string, ev domain.GeofenceEvent) error {
	body, err := json.Marshal(newEventMessage(bookingID, ev))
	if err != nil {
		return fmt.Errorf("marshal geofence event: %w", err)
	}

	return p.ch.PublishWithContext(ctx, exchangeName, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.Timestamp,
		Type:         string(ev.Kind),
		Body:         body,
	})
}

// Close closes the publishing channel.
func (p *EventPublisher) Close() error {
	return p.ch.Close()
}
