package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
)

type fakeChannel struct {
	exchange string
	msg      amqp.Publishing
	err      error
	closed   bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, _ string, _, _ bool, msg amqp.Publishing) error {
	f.exchange = exchange
	f.msg = msg
	return f.err
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestPublishGeofenceEvent(t *testing.T) {
	ch := &fakeChannel{}
	p := &EventPublisher{ch: ch}
	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	ev := domain.GeofenceEvent{
		ZoneID:         "Z1",
		ZoneKind:       domain.ZoneSite,
		Kind:           domain.EventDwell,
		Timestamp:      ts,
		Position:       domain.PositionSample{Latitude: 19.4, Longitude: -99.1, AccuracyMeters: 7},
		DistanceMeters: 12.5,
		DwellThreshold: time.Minute,
	}
	if err := p.PublishGeofenceEvent(context.Background(), "B1", ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ch.exchange != exchangeName {
		t.Errorf("expected exchange %s, got %s", exchangeName, ch.exchange)
	}
	if ch.msg.Type != "dwell" || ch.msg.DeliveryMode != amqp.Persistent {
		t.Errorf("unexpected publishing %+v", ch.msg)
	}

	var got eventMessage
	if err := json.Unmarshal(ch.msg.Body, &got); err != nil {
		t.Fatalf("body is not json: %v", err)
	}
	if got.BookingID != "B1" || got.ZoneID != "Z1" || got.Event != domain.EventDwell {
		t.Errorf("unexpected message %+v", got)
	}
	if got.DwellMillis != 60000 {
		t.Errorf("expected dwell_ms 60000, got %d", got.DwellMillis)
	}
	if got.Timestamp != ts.UnixMilli() {
		t.Errorf("expected timestamp %d, got %d", ts.UnixMilli(), got.Timestamp)
	}
}

func TestPublishGeofenceEvent_Error(t *testing.T) {
	p := &EventPublisher{ch: &fakeChannel{err: amqp.ErrClosed}}

	err := p.PublishGeofenceEvent(context.Background(), "B1", domain.GeofenceEvent{Kind: domain.EventEnter})
	if !errors.Is(err, amqp.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestClose(t *testing.T) {
	ch := &fakeChannel{}
	p := &EventPublisher{ch: ch}
	if err := p.Close(); err != nil || !ch.closed {
		t.Fatalf("expected channel to be closed, err=%v", err)
	}
}
