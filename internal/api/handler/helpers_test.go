package handler

import (
	"context"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/dock-kiosk/internal/api/middleware"
	"github.com/99minutos/dock-kiosk/internal/core/domain"
	"github.com/99minutos/dock-kiosk/internal/core/ports"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func withClaims(c echo.Context, role, bookingID string) echo.Context {
	c.Set(middleware.CtxRole, role)
	c.Set(middleware.CtxBookingID, bookingID)
	return c
}

func withBooking(c echo.Context, bookingID string) echo.Context {
	c.SetParamNames("booking_id")
	c.SetParamValues(bookingID)
	return c
}

type stubSessions struct {
	mu      sync.Mutex
	startFn func(in ports.StartSessionInput) (*ports.SessionView, error)
	checkFn func(bookingID string, s domain.PositionSample) error
	view    *ports.SessionView
	stopped []string
	srcErr  *domain.SourceError
	watcher func(domain.GeofenceEvent)
}

func (s *stubSessions) Start(_ context.Context, in ports.StartSessionInput) (*ports.SessionView, error) {
	return s.startFn(in)
}

func (s *stubSessions) Get(_ context.Context, bookingID string) (*ports.SessionView, error) {
	if s.view == nil || s.view.BookingID != bookingID {
		return nil, domain.ErrSessionNotFound
	}
	return s.view, nil
}

func (s *stubSessions) Resume(ctx context.Context, bookingID string) (*ports.SessionView, error) {
	return s.Get(ctx, bookingID)
}

func (s *stubSessions) Stop(_ context.Context, bookingID string) error {
	if s.view == nil || s.view.BookingID != bookingID {
		return domain.ErrSessionNotFound
	}
	s.stopped = append(s.stopped, bookingID)
	return nil
}

func (s *stubSessions) Check(bookingID string, sample domain.PositionSample) error {
	if s.checkFn != nil {
		return s.checkFn(bookingID, sample)
	}
	if s.view == nil || s.view.BookingID != bookingID {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *stubSessions) ReportSourceError(bookingID string, err *domain.SourceError) error {
	if s.view == nil || s.view.BookingID != bookingID {
		return domain.ErrSessionNotFound
	}
	s.srcErr = err
	return nil
}

func (s *stubSessions) Watch(bookingID string, fn func(domain.GeofenceEvent)) (func(), error) {
	if s.view == nil || s.view.BookingID != bookingID {
		return nil, domain.ErrSessionNotFound
	}
	s.mu.Lock()
	s.watcher = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.watcher = nil
		s.mu.Unlock()
	}, nil
}

func (s *stubSessions) emit(ev domain.GeofenceEvent) bool {
	s.mu.Lock()
	fn := s.watcher
	s.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(ev)
	return true
}

type stubQueue struct {
	got []ports.SampleInput
	err error
}

func (q *stubQueue) Enqueue(_ context.Context, in ports.SampleInput) error {
	if q.err != nil {
		return q.err
	}
	q.got = append(q.got, in)
	return nil
}

func (q *stubQueue) EnqueueBatch(ctx context.Context, batch []ports.SampleInput) error {
	for _, in := range batch {
		if err := q.Enqueue(ctx, in); err != nil {
			return err
		}
	}
	return nil
}

func sessionView(bookingID string) *ports.SessionView {
	return &ports.SessionView{
		SessionID:    "S1",
		BookingID:    bookingID,
		Booking:      &domain.Booking{ID: bookingID, Status: domain.StatusConfirmed},
		Zones:        []domain.Zone{{ID: "site-" + bookingID, Kind: domain.ZoneSite, RadiusMeters: 200}},
		CurrentZones: []string{"site-" + bookingID},
		Tracking:     true,
		CanCheckIn:   true,
		StartedAt:    t0,
	}
}
