package handler

import (
	"time"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
	"github.com/99minutos/dock-kiosk/internal/core/ports"
)

func toSessionResponse(v *ports.SessionView) sessionResponse {
	resp := sessionResponse{
		SessionID:     v.SessionID,
		BookingID:     v.BookingID,
		Zones:         v.Zones,
		CurrentZones:  v.CurrentZones,
		LastSample:    v.LastSample,
		Tracking:      v.Tracking,
		CanCheckIn:    v.CanCheckIn,
		DockDwellHint: v.DockDwellHint,
		StartedAt:     v.StartedAt.UTC().Format(time.RFC3339),
		Links: sessionLinks{
			Self:      "/v1/sessions/" + v.BookingID,
			Booking:   "/v1/bookings/" + v.BookingID,
			Positions: "/v1/sessions/" + v.BookingID + "/positions",
			Stream:    "/v1/sessions/" + v.BookingID + "/stream",
		},
	}
	if resp.CurrentZones == nil {
		resp.CurrentZones = []string{}
	}
	if v.Booking != nil {
		resp.Status = string(v.Booking.Status)
	}
	if v.LastError != nil {
		resp.LastError = &sourceErrorResponse{Code: string(v.LastError.Code), Message: v.LastError.Message}
	}
	return resp
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	return bookingResponse{
		Booking: b,
		Links: bookingLinks{
			Self:           "/v1/bookings/" + b.ID,
			Session:        "/v1/sessions/" + b.ID,
			GeofenceEvents: "/v1/bookings/" + b.ID + "/geofence-events",
		},
	}
}

func (r positionRequest) toSample(now time.Time) domain.PositionSample {
	s := domain.PositionSample{
		Latitude:       r.Latitude,
		Longitude:      r.Longitude,
		AccuracyMeters: r.AccuracyMeters,
		Timestamp:      now.UTC(),
	}
	if r.Timestamp != nil {
		s.Timestamp = r.Timestamp.UTC()
	}
	return s
}
