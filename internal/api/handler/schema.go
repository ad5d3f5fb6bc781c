package handler

import (
	"time"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
)

// --- Auth ---

type registerRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type driverLoginRequest struct {
	ConfirmationCode string `json:"confirmation_code" validate:"required"`
}

type authResponse struct {
	Token     string       `json:"token,omitempty"`
	User      *domain.User `json:"user,omitempty"`
	BookingID string       `json:"booking_id,omitempty"`
	Status    string       `json:"status,omitempty"`
}

// --- Zones ---

type coordinatesRequest struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

type zoneRequest struct {
	ID           string             `json:"id"            validate:"required"`
	Name         string             `json:"name"`
	Center       coordinatesRequest `json:"center"`
	RadiusMeters float64            `json:"radius_meters" validate:"gt=0"`
	Kind         string             `json:"kind"          validate:"omitempty,oneof=site dock parking custom"`
}

func (z zoneRequest) toDomain() domain.Zone {
	return domain.Zone{
		ID:           z.ID,
		Name:         z.Name,
		Center:       domain.Coordinates{Lat: z.Center.Lat, Lng: z.Center.Lng},
		RadiusMeters: z.RadiusMeters,
		Kind:         domain.ZoneKind(z.Kind),
	}
}

// --- Sessions ---

type startSessionRequest struct {
	BookingID string        `json:"booking_id" validate:"required"`
	Zones     []zoneRequest `json:"zones"      validate:"dive"`
}

type positionRequest struct {
	Latitude       float64    `json:"latitude"        validate:"gte=-90,lte=90"`
	Longitude      float64    `json:"longitude"       validate:"gte=-180,lte=180"`
	AccuracyMeters float64    `json:"accuracy_meters" validate:"gte=0"`
	Timestamp      *time.Time `json:"timestamp"`
}

type positionErrorRequest struct {
	Code    string `json:"code"    validate:"required,oneof=permission_denied position_unavailable timeout"`
	Message string `json:"message"`
}

type sampleResult struct {
	Index    int    `json:"index"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

type positionsResponse struct {
	Accepted int            `json:"accepted"`
	Rejected int            `json:"rejected"`
	Results  []sampleResult `json:"results"`
}

type sourceErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type sessionResponse struct {
	SessionID     string                 `json:"session_id"`
	BookingID     string                 `json:"booking_id"`
	Status        string                 `json:"status"`
	Zones         []domain.Zone          `json:"zones"`
	CurrentZones  []string               `json:"current_zones"`
	LastSample    *domain.PositionSample `json:"last_sample,omitempty"`
	LastError     *sourceErrorResponse   `json:"last_error,omitempty"`
	Tracking      bool                   `json:"tracking"`
	CanCheckIn    bool                   `json:"can_check_in"`
	DockDwellHint bool                   `json:"dock_dwell_hint"`
	StartedAt     string                 `json:"started_at"`
	Links         sessionLinks           `json:"_links"`
}

type sessionLinks struct {
	Self      string `json:"self"`
	Booking   string `json:"booking"`
	Positions string `json:"positions"`
	Stream    string `json:"stream"`
}

// --- Bookings ---

type createBookingRequest struct {
	ConfirmationCode string       `json:"confirmation_code" validate:"required"`
	SiteZone         zoneRequest  `json:"site_zone"`
	DockZone         *zoneRequest `json:"dock_zone"`
	// GeofenceEnabled defaults to true when omitted.
	GeofenceEnabled *bool `json:"geofence_enabled"`
}

type checkInRequest struct {
	Override bool   `json:"override"`
	Reason   string `json:"reason" validate:"required_if=Override true"`
}

type completeRequest struct {
	Signature string `json:"signature" validate:"required"`
	Notes     string `json:"notes"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type helpRequest struct {
	Message string `json:"message" validate:"required"`
}

type bookingLinks struct {
	Self           string `json:"self"`
	Session        string `json:"session"`
	GeofenceEvents string `json:"geofence_events"`
}

type bookingResponse struct {
	*domain.Booking
	Links bookingLinks `json:"_links"`
}

type geofenceEventsResponse struct {
	BookingID string                 `json:"booking_id"`
	Events    []domain.GeofenceEvent `json:"events"`
}
