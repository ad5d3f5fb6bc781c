package ports

import (
	"context"
	"time"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
)

// BookingRepository defines persistence operations for dock bookings.
type BookingRepository interface {
	Create(ctx context.Context, b *domain.Booking) error
	FindByID(ctx context.Context, id string) (*domain.Booking, error)
	FindByConfirmationCode(ctx context.Context, code string) (*domain.Booking, error)
	// UpdateStatus atomically replaces the booking's mutable fields and appends
	// entry to its status history. It fails with domain.ErrInvalidTransition when
	// the stored status no longer equals from.
	UpdateStatus(ctx context.Context, b *domain.Booking, from domain.BookingStatus, entry domain.StatusHistoryEntry) error
	// SetArrivedAt records the first site geofence entry if none is stored yet.
	SetArrivedAt(ctx context.Context, id string, at time.Time) error
}

// GeofenceEventRepository is the audit trail of geofence transitions.
type GeofenceEventRepository interface {
	Insert(ctx context.Context, bookingID string, ev domain.GeofenceEvent) error
	ListByBooking(ctx context.Context, bookingID string, limit int64) ([]domain.GeofenceEvent, error)
}

// HelpRequestRepository stores driver help requests.
type HelpRequestRepository interface {
	Insert(ctx context.Context, req *domain.HelpRequest) error
}
