// Package checkin drives a booking through the kiosk check-in lifecycle.
package checkin

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
)

// Membership answers geofence questions for the check-in guard.
// *geofence.Engine satisfies it.
type Membership interface {
	IsInside(zoneID string) bool
	LastSample() (domain.PositionSample, bool)
}

// Committer persists a transition before it becomes visible. If it fails the
// workflow keeps the previous booking.
type Committer interface {
	Commit(ctx context.Context, b *domain.Booking, from domain.BookingStatus, entry domain.StatusHistoryEntry) error
}

// Metrics receives workflow outcomes.
type Metrics interface {
	TransitionCommitted(from, to domain.BookingStatus)
	TransitionRejected(action string, err error)
}

type nopMetrics struct{}

func (nopMetrics) TransitionCommitted(domain.BookingStatus, domain.BookingStatus) {}
func (nopMetrics) TransitionRejected(string, error)                               {}

// NoMembership is used for workflows that have no live position feed.
// Nothing is ever inside.
type NoMembership struct{}

func (NoMembership) IsInside(string) bool                      { return false }
func (NoMembership) LastSample() (domain.PositionSample, bool) { return domain.PositionSample{}, false }

// CheckInOptions controls the check-in guard. Override bypasses the geofence
// requirement and needs a non-blank Reason.
type CheckInOptions struct {
	Override bool
	Reason   string
}

// Option configures a Workflow.
type Option func(*Workflow)

func WithCommitter(c Committer) Option { return func(w *Workflow) { w.committer = c } }

func WithClock(c clockwork.Clock) Option { return func(w *Workflow) { w.clock = c } }

func WithLogger(l zerolog.Logger) Option { return func(w *Workflow) { w.log = l } }

func WithMetrics(m Metrics) Option { return func(w *Workflow) { w.metrics = m } }

// Workflow serialises every kiosk action for one booking.
type Workflow struct {
	mu         sync.Mutex
	booking    *domain.Booking
	membership Membership
	committer  Committer
	clock      clockwork.Clock
	log        zerolog.Logger
	metrics    Metrics

	// geofence hints, kept apart from mu so event delivery never waits on a commit
	siteZoneID string
	dockZoneID string
	obsMu      sync.Mutex
	arrivedAt  *time.Time
	dockDwell  bool
}

// New wraps a copy of b. A nil membership behaves like NoMembership.
func New(b *domain.Booking, m Membership, opts ...Option) *Workflow {
	if m == nil {
		m = NoMembership{}
	}
	w := &Workflow{
		booking:    b.Clone(),
		membership: m,
		clock:      clockwork.NewRealClock(),
		log:        zerolog.Nop(),
		metrics:    nopMetrics{},
		siteZoneID: b.SiteZoneID(),
		dockZoneID: b.DockZoneID(),
	}
	if b.Timestamps.ArrivedAt != nil {
		at := *b.Timestamps.ArrivedAt
		w.arrivedAt = &at
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.With().Str("booking_id", b.ID).Logger()
	return w
}

// Booking returns a snapshot of the current booking.
func (w *Workflow) Booking() *domain.Booking {
	w.mu.Lock()
	b := w.booking.Clone()
	w.mu.Unlock()
	w.mergeHints(b)
	return b
}

func (w *Workflow) Status() domain.BookingStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.booking.Status
}

// CanCheckIn reports whether CheckIn without override would currently pass.
func (w *Workflow) CanCheckIn() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.booking.Status != domain.StatusConfirmed {
		return false
	}
	return !w.booking.GeofenceEnabled || w.membership.IsInside(w.booking.SiteZoneID())
}

// CheckIn moves confirmed -> checked_in. With the geofence enabled the driver
// must be inside the site zone unless opts carries an override.
func (w *Workflow) CheckIn(ctx context.Context, opts CheckInOptions) error {
	return w.apply(ctx, "check in", func(b *domain.Booking, now time.Time) (domain.StatusHistoryEntry, error) {
		if !b.Status.CanTransitionTo(domain.StatusCheckedIn) {
			return domain.StatusHistoryEntry{}, fmt.Errorf("%w (from %s to %s)", domain.ErrInvalidTransition, b.Status, domain.StatusCheckedIn)
		}

		within := w.membership.IsInside(b.SiteZoneID())
		rec := domain.CheckInRecord{WithinGeofence: within}
		if s, ok := w.membership.LastSample(); ok {
			rec.Position = &s
		}

		if b.GeofenceEnabled && !within {
			if !opts.Override {
				return domain.StatusHistoryEntry{}, domain.ErrGeofenceRequired
			}
			reason := strings.TrimSpace(opts.Reason)
			if reason == "" {
				return domain.StatusHistoryEntry{}, fmt.Errorf("%w: override reason is required", domain.ErrMissingGuard)
			}
			rec.Override = true
			rec.OverrideReason = reason
		}
		return b.MarkCheckedIn(now, rec)
	})
}

// ArriveAtDock moves checked_in -> at_dock.
func (w *Workflow) ArriveAtDock(ctx context.Context) error {
	return w.apply(ctx, "arrive at dock", func(b *domain.Booking, now time.Time) (domain.StatusHistoryEntry, error) {
		return b.MarkAtDock(now)
	})
}

// StartLoading moves at_dock -> loading.
func (w *Workflow) StartLoading(ctx context.Context) error {
	return w.apply(ctx, "start loading", func(b *domain.Booking, now time.Time) (domain.StatusHistoryEntry, error) {
		return b.MarkLoading(now)
	})
}

// Complete moves loading -> completed.
func (w *Workflow) Complete(ctx context.Context, signature, notes string) error {
	return w.apply(ctx, "complete", func(b *domain.Booking, now time.Time) (domain.StatusHistoryEntry, error) {
		return b.MarkCompleted(now, strings.TrimSpace(signature), strings.TrimSpace(notes))
	})
}

// Cancel moves any non-terminal booking to cancelled.
func (w *Workflow) Cancel(ctx context.Context, reason string) error {
	return w.apply(ctx, "cancel", func(b *domain.Booking, now time.Time) (domain.StatusHistoryEntry, error) {
		return b.MarkCancelled(now, strings.TrimSpace(reason))
	})
}

// RequestHelp builds a help request for the booking. It never changes status.
func (w *Workflow) RequestHelp(message string) (*domain.HelpRequest, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.booking.Status.Terminal() {
		err := fmt.Errorf("request help: %w: booking is %s", domain.ErrInvalidTransition, w.booking.Status)
		w.metrics.TransitionRejected("request help", err)
		return nil, err
	}
	message = strings.TrimSpace(message)
	if message == "" {
		err := fmt.Errorf("request help: %w: message is required", domain.ErrMissingGuard)
		w.metrics.TransitionRejected("request help", err)
		return nil, err
	}

	req := &domain.HelpRequest{
		ID:        uuid.NewString(),
		BookingID: w.booking.ID,
		Code:      w.booking.ConfirmationCode,
		Message:   message,
		Status:    w.booking.Status,
		CreatedAt: w.clock.Now().UTC(),
	}
	if s, ok := w.membership.LastSample(); ok {
		req.Position = &s
	}
	w.log.Info().Str("help_id", req.ID).Str("status", string(req.Status)).Msg("help requested")
	return req, nil
}

// Observe feeds a geofence event into the workflow. It records the first
// arrival at the site and a dwell hint for the dock; neither changes status.
// It reports whether the event set the arrival time.
func (w *Workflow) Observe(ev domain.GeofenceEvent) (arrived bool) {
	w.obsMu.Lock()
	defer w.obsMu.Unlock()

	siteID, dockID := w.siteZoneID, w.dockZoneID
	switch {
	case ev.Kind == domain.EventEnter && ev.ZoneID == siteID && w.arrivedAt == nil:
		at := ev.Timestamp.UTC()
		w.arrivedAt = &at
		w.log.Info().Time("arrived_at", at).Msg("driver arrived at site")
		return true
	case ev.Kind == domain.EventDwell && dockID != "" && ev.ZoneID == dockID:
		w.dockDwell = true
		w.log.Debug().Str("zone_id", ev.ZoneID).Msg("dock dwell hint")
	case ev.Kind == domain.EventExit && dockID != "" && ev.ZoneID == dockID:
		w.dockDwell = false
	}
	return false
}

// DockDwellHint reports whether the driver has dwelt in the dock zone since last entering it.
func (w *Workflow) DockDwellHint() bool {
	w.obsMu.Lock()
	defer w.obsMu.Unlock()
	return w.dockDwell
}

func (w *Workflow) mergeHints(b *domain.Booking) {
	w.obsMu.Lock()
	defer w.obsMu.Unlock()
	if b.Timestamps.ArrivedAt == nil && w.arrivedAt != nil {
		at := *w.arrivedAt
		b.Timestamps.ArrivedAt = &at
	}
}

type mutation func(b *domain.Booking, now time.Time) (domain.StatusHistoryEntry, error)

// apply runs mutate on a copy and swaps it in only once it has been committed.
func (w *Workflow) apply(ctx context.Context, action string, mutate mutation) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	next := w.booking.Clone()
	w.mergeHints(next)
	from := next.Status

	entry, err := mutate(next, w.clock.Now())
	if err != nil {
		w.metrics.TransitionRejected(action, err)
		w.log.Debug().Err(err).Str("action", action).Str("status", string(from)).Msg("transition rejected")
		return fmt.Errorf("%s: %w", action, err)
	}

	if w.committer != nil {
		if err := w.committer.Commit(ctx, next, from, entry); err != nil {
			w.log.Error().Err(err).Str("action", action).Msg("transition commit failed")
			return fmt.Errorf("%s: commit: %w", action, err)
		}
	}

	w.booking = next
	w.metrics.TransitionCommitted(from, entry.Status)
	w.log.Info().
		Str("from", string(from)).
		Str("to", string(entry.Status)).
		Msg("booking status changed")
	return nil
}
