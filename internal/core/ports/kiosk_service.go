package ports

import (
	"context"
	"time"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
)

// StartSessionInput opens tracking for a booking. Zones are watched in
// addition to the booking's own site and dock zones.
type StartSessionInput struct {
	BookingID string
	Zones     []domain.Zone
}

// SessionView is a point-in-time snapshot of a kiosk session.
type SessionView struct {
	SessionID     string
	BookingID     string
	Booking       *domain.Booking
	Zones         []domain.Zone
	CurrentZones  []string
	LastSample    *domain.PositionSample
	LastError     *domain.SourceError
	Tracking      bool
	CanCheckIn    bool
	DockDwellHint bool
	StartedAt     time.Time
}

// SessionService manages live geofence sessions keyed by booking ID.
type SessionService interface {
	Start(ctx context.Context, in StartSessionInput) (*SessionView, error)
	Get(ctx context.Context, bookingID string) (*SessionView, error)
	Resume(ctx context.Context, bookingID string) (*SessionView, error)
	Stop(ctx context.Context, bookingID string) error
	// Check reports whether the session's engine would accept s, without ingesting it.
	Check(bookingID string, s domain.PositionSample) error
	ReportSourceError(bookingID string, err *domain.SourceError) error
	// Watch registers fn for the session's geofence events until the returned func is called.
	Watch(bookingID string, fn func(domain.GeofenceEvent)) (func(), error)
}

// CheckInInput carries the optional geofence override.
type CheckInInput struct {
	Override bool
	Reason   string
}

// CreateBookingInput registers a confirmed booking coming from planning.
type CreateBookingInput struct {
	ConfirmationCode string
	SiteZone         domain.Zone
	DockZone         *domain.Zone
	GeofenceEnabled  bool
}

// KioskService runs driver and operator actions against a booking.
type KioskService interface {
	CheckIn(ctx context.Context, bookingID string, in CheckInInput) (*domain.Booking, error)
	ArriveAtDock(ctx context.Context, bookingID string) (*domain.Booking, error)
	StartLoading(ctx context.Context, bookingID string) (*domain.Booking, error)
	Complete(ctx context.Context, bookingID, signature, notes string) (*domain.Booking, error)
	Cancel(ctx context.Context, bookingID, reason string) (*domain.Booking, error)
	RequestHelp(ctx context.Context, bookingID, message string) (*domain.HelpRequest, error)
	GetBooking(ctx context.Context, bookingID string) (*domain.Booking, error)
	CreateBooking(ctx context.Context, in CreateBookingInput) (*domain.Booking, error)
	ListGeofenceEvents(ctx context.Context, bookingID string, limit int64) ([]domain.GeofenceEvent, error)
}
