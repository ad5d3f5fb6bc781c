package service

import (
	"context"
	"sync"
	"time"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
	"github.com/99minutos/dock-kiosk/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Stubs shared by the service tests
// ---------------------------------------------------------------------------

type stubBookingRepo struct {
	mu        sync.Mutex
	byID      map[string]*domain.Booking
	updateErr error
	updates   []domain.StatusHistoryEntry
	arrivals  map[string]time.Time
}

func newStubBookingRepo(bookings ...*domain.Booking) *stubBookingRepo {
	r := &stubBookingRepo{byID: make(map[string]*domain.Booking), arrivals: make(map[string]time.Time)}
	for _, b := range bookings {
		r.byID[b.ID] = b.Clone()
	}
	return r
}

func (r *stubBookingRepo) Create(_ context.Context, b *domain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[b.ID]; ok {
		return domain.ErrBookingExists
	}
	r.byID[b.ID] = b.Clone()
	return nil
}

func (r *stubBookingRepo) FindByID(_ context.Context, id string) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	return b.Clone(), nil
}

func (r *stubBookingRepo) FindByConfirmationCode(_ context.Context, code string) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.byID {
		if b.ConfirmationCode == code {
			return b.Clone(), nil
		}
	}
	return nil, domain.ErrBookingNotFound
}

func (r *stubBookingRepo) UpdateStatus(_ context.Context, b *domain.Booking, from domain.BookingStatus, entry domain.StatusHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	stored, ok := r.byID[b.ID]
	if !ok {
		return domain.ErrBookingNotFound
	}
	if stored.Status != from {
		return domain.ErrInvalidTransition
	}
	r.byID[b.ID] = b.Clone()
	r.updates = append(r.updates, entry)
	return nil
}

func (r *stubBookingRepo) SetArrivedAt(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.arrivals[id]; !ok {
		r.arrivals[id] = at
	}
	return nil
}

func (r *stubBookingRepo) status(id string) domain.BookingStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id].Status
}

func (r *stubBookingRepo) arrival(id string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	at, ok := r.arrivals[id]
	return at, ok
}

type stubEventRepo struct {
	mu     sync.Mutex
	events []domain.GeofenceEvent
}

func (r *stubEventRepo) Insert(_ context.Context, _ string, ev domain.GeofenceEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *stubEventRepo) ListByBooking(_ context.Context, _ string, _ int64) ([]domain.GeofenceEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.GeofenceEvent(nil), r.events...), nil
}

func (r *stubEventRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type stubEventPublisher struct {
	mu        sync.Mutex
	published []domain.GeofenceEvent
	err       error
}

func (p *stubEventPublisher) PublishGeofenceEvent(_ context.Context, _ string, ev domain.GeofenceEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, ev)
	return nil
}

func (p *stubEventPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

type stubStatusPublisher struct {
	mu       sync.Mutex
	statuses []domain.BookingStatus
	err      error
}

func (p *stubStatusPublisher) PublishStatus(_ context.Context, _ *domain.Booking, entry domain.StatusHistoryEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, entry.Status)
	return p.err
}

type stubDedup struct {
	mu       sync.Mutex
	seen     map[string]bool
	sessions []string
	err      error
}

func (d *stubDedup) SeenBefore(_ context.Context, sessionID string, s domain.PositionSample) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessions = append(d.sessions, sessionID)
	if d.err != nil {
		return false, d.err
	}
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	key := sessionID + s.Timestamp.String()
	if d.seen[key] {
		return true, nil
	}
	d.seen[key] = true
	return false, nil
}

type stubSource struct {
	mu       sync.Mutex
	onSample func(domain.PositionSample)
	onError  func(error)
	closed   bool
}

func (s *stubSource) Subscribe(onSample func(domain.PositionSample), onError func(error)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, domain.ErrPositionUnavailable
	}
	s.onSample, s.onError = onSample, onError
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.onSample, s.onError = nil, nil
	}, nil
}

func (s *stubSource) Push(p domain.PositionSample) int {
	s.mu.Lock()
	fn := s.onSample
	s.mu.Unlock()
	if fn == nil {
		return 0
	}
	fn(p)
	return 1
}

func (s *stubSource) Fail(err error) {
	s.mu.Lock()
	fn := s.onError
	s.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (s *stubSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.onSample, s.onError = nil, nil
}

var _ ports.PushSource = (*stubSource)(nil)

type stubHelpRepo struct {
	inserted []*domain.HelpRequest
	err      error
}

func (r *stubHelpRepo) Insert(_ context.Context, req *domain.HelpRequest) error {
	if r.err != nil {
		return r.err
	}
	r.inserted = append(r.inserted, req)
	return nil
}

type stubNotifier struct {
	sent []*domain.HelpRequest
	err  error
}

func (n *stubNotifier) NotifyHelp(_ context.Context, req *domain.HelpRequest) error {
	n.sent = append(n.sent, req)
	return n.err
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func seededBooking(id string, status domain.BookingStatus) *domain.Booking {
	confirmed := t0.Add(-24 * time.Hour)
	return &domain.Booking{
		ID:               id,
		ConfirmationCode: "CODE-" + id,
		SiteZone:         domain.Zone{ID: "site-" + id, Name: "Gate", Center: domain.Coordinates{}, RadiusMeters: 200, Kind: domain.ZoneSite},
		DockZone:         &domain.Zone{ID: "dock-" + id, Name: "Dock 4", Center: domain.Coordinates{Lat: 0, Lng: 0.001}, RadiusMeters: 30, Kind: domain.ZoneDock},
		GeofenceEnabled:  true,
		Status:           status,
		Timestamps:       domain.Timestamps{Confirmed: &confirmed},
		StatusHistory:    []domain.StatusHistoryEntry{{Status: domain.StatusConfirmed, Timestamp: confirmed}},
	}
}
