package ports

import (
	"context"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
)

// GeofenceEventPublisher fans geofence events out to downstream consumers.
type GeofenceEventPublisher interface {
	PublishGeofenceEvent(ctx context.Context, bookingID string, ev domain.GeofenceEvent) error
}

// StatusPublisher announces booking status transitions.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, b *domain.Booking, entry domain.StatusHistoryEntry) error
}

// HelpNotifier alerts site operators about a help request.
type HelpNotifier interface {
	NotifyHelp(ctx context.Context, req *domain.HelpRequest) error
}

// SampleDedup suppresses redelivered position samples. sessionID is the
// kiosk session ID, not the booking ID, so a restarted session starts clean.
type SampleDedup interface {
	SeenBefore(ctx context.Context, sessionID string, s domain.PositionSample) (bool, error)
}
