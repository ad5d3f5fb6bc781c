package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error { return nil }

func TestPublishStatus(t *testing.T) {
	w := &fakeWriter{}
	p := &StatusPublisher{writer: w}
	ts := time.Date(2026, 3, 1, 9, 0, 30, 0, time.UTC)

	b := &domain.Booking{ID: "B1", ConfirmationCode: "ABC123"}
	entry := domain.StatusHistoryEntry{Status: domain.StatusCheckedIn, Timestamp: ts, Notes: "geofence"}
	if err := p.PublishStatus(context.Background(), b, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "B1" {
		t.Errorf("expected key B1, got %s", msg.Key)
	}
	var got statusMessage
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("value is not json: %v", err)
	}
	if got.Status != domain.StatusCheckedIn || got.ConfirmationCode != "ABC123" || !got.Timestamp.Equal(ts) {
		t.Errorf("unexpected message %+v", got)
	}
}

func TestPublishStatus_WriteError(t *testing.T) {
	boom := errors.New("leader not available")
	p := &StatusPublisher{writer: &fakeWriter{err: boom}}

	err := p.PublishStatus(context.Background(), &domain.Booking{ID: "B1"}, domain.StatusHistoryEntry{Status: domain.StatusAtDock})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped write error, got %v", err)
	}
}
