package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/99minutos/dock-kiosk/internal/core/checkin"
	"github.com/99minutos/dock-kiosk/internal/core/domain"
	"github.com/99minutos/dock-kiosk/internal/core/geofence"
	"github.com/99minutos/dock-kiosk/internal/core/ports"
)

// WorkflowProvider hands out the workflow that owns a booking.
type WorkflowProvider interface {
	Workflow(ctx context.Context, bookingID string) (*checkin.Workflow, error)
	Stop(ctx context.Context, bookingID string) error
	Forget(bookingID string)
}

type kioskService struct {
	workflows WorkflowProvider
	bookings  ports.BookingRepository
	events    ports.GeofenceEventRepository
	help      ports.HelpRequestRepository
	notifier  ports.HelpNotifier
	log       zerolog.Logger
}

// NewKioskService returns a KioskService implementation. notifier may be nil.
func NewKioskService(
	workflows WorkflowProvider,
	bookings ports.BookingRepository,
	events ports.GeofenceEventRepository,
	help ports.HelpRequestRepository,
	notifier ports.HelpNotifier,
	log zerolog.Logger,
) ports.KioskService {
	return &kioskService{
		workflows: workflows,
		bookings:  bookings,
		events:    events,
		help:      help,
		notifier:  notifier,
		log:       log,
	}
}

func (s *kioskService) CheckIn(ctx context.Context, bookingID string, in ports.CheckInInput) (*domain.Booking, error) {
	return s.run(ctx, bookingID, func(w *checkin.Workflow) error {
		return w.CheckIn(ctx, checkin.CheckInOptions{Override: in.Override, Reason: in.Reason})
	})
}

func (s *kioskService) ArriveAtDock(ctx context.Context, bookingID string) (*domain.Booking, error) {
	return s.run(ctx, bookingID, func(w *checkin.Workflow) error { return w.ArriveAtDock(ctx) })
}

func (s *kioskService) StartLoading(ctx context.Context, bookingID string) (*domain.Booking, error) {
	return s.run(ctx, bookingID, func(w *checkin.Workflow) error { return w.StartLoading(ctx) })
}

func (s *kioskService) Complete(ctx context.Context, bookingID, signature, notes string) (*domain.Booking, error) {
	return s.run(ctx, bookingID, func(w *checkin.Workflow) error { return w.Complete(ctx, signature, notes) })
}

func (s *kioskService) Cancel(ctx context.Context, bookingID, reason string) (*domain.Booking, error) {
	return s.run(ctx, bookingID, func(w *checkin.Workflow) error { return w.Cancel(ctx, reason) })
}

func (s *kioskService) GetBooking(ctx context.Context, bookingID string) (*domain.Booking, error) {
	w, err := s.workflows.Workflow(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return w.Booking(), nil
}

// CreateBooking registers a confirmed booking and returns it with a fresh ID.
func (s *kioskService) CreateBooking(ctx context.Context, in ports.CreateBookingInput) (*domain.Booking, error) {
	if strings.TrimSpace(in.ConfirmationCode) == "" {
		return nil, fmt.Errorf("create booking: %w: confirmation code is required", domain.ErrInvalidBooking)
	}
	if in.SiteZone.Kind == "" {
		in.SiteZone.Kind = domain.ZoneSite
	}
	zones := []domain.Zone{in.SiteZone}
	if in.DockZone != nil {
		if in.DockZone.Kind == "" {
			in.DockZone.Kind = domain.ZoneDock
		}
		zones = append(zones, *in.DockZone)
	}
	if _, err := geofence.NewRegistry(zones); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	now := time.Now().UTC()
	b := &domain.Booking{
		ID:               uuid.NewString(),
		ConfirmationCode: strings.TrimSpace(in.ConfirmationCode),
		SiteZone:         in.SiteZone,
		DockZone:         in.DockZone,
		GeofenceEnabled:  in.GeofenceEnabled,
		Status:           domain.StatusConfirmed,
		Timestamps:       domain.Timestamps{Confirmed: &now},
		StatusHistory:    []domain.StatusHistoryEntry{{Status: domain.StatusConfirmed, Timestamp: now}},
	}
	if err := s.bookings.Create(ctx, b); err != nil {
		return nil, err
	}
	s.log.Info().Str("booking_id", b.ID).Msg("booking created")
	return b, nil
}

// ListGeofenceEvents returns the audit trail of a booking, newest first.
func (s *kioskService) ListGeofenceEvents(ctx context.Context, bookingID string, limit int64) ([]domain.GeofenceEvent, error) {
	if _, err := s.bookings.FindByID(ctx, bookingID); err != nil {
		return nil, err
	}
	return s.events.ListByBooking(ctx, bookingID, limit)
}

// RequestHelp stores the request and alerts operators. Notification failures
// are logged; the stored request stands.
func (s *kioskService) RequestHelp(ctx context.Context, bookingID, message string) (*domain.HelpRequest, error) {
	w, err := s.workflows.Workflow(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	req, err := w.RequestHelp(message)
	if err != nil {
		return nil, err
	}
	if err := s.help.Insert(ctx, req); err != nil {
		return nil, fmt.Errorf("request help: store: %w", err)
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyHelp(ctx, req); err != nil {
			s.log.Warn().Err(err).Str("booking_id", bookingID).Str("help_id", req.ID).Msg("failed to notify operators")
		}
	}
	return req, nil
}

// run applies action and, once the booking is closed, ends its session.
func (s *kioskService) run(ctx context.Context, bookingID string, action func(*checkin.Workflow) error) (*domain.Booking, error) {
	w, err := s.workflows.Workflow(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := action(w); err != nil {
		return nil, err
	}

	b := w.Booking()
	if b.Status.Terminal() {
		if err := s.workflows.Stop(ctx, bookingID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			s.log.Warn().Err(err).Str("booking_id", bookingID).Msg("failed to stop session of closed booking")
		}
		s.workflows.Forget(bookingID)
	}
	return b, nil
}
