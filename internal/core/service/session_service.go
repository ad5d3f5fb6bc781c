package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/99minutos/dock-kiosk/internal/core/checkin"
	"github.com/99minutos/dock-kiosk/internal/core/domain"
	"github.com/99minutos/dock-kiosk/internal/core/geofence"
	"github.com/99minutos/dock-kiosk/internal/core/ports"
)

const (
	eventBuffer     = 128
	sideEffectLimit = 5 * time.Second
)

// SessionConfig tunes the engines created for each session.
type SessionConfig struct {
	AccuracyThresholdMeters float64
	DwellThreshold          time.Duration
}

// SessionDeps groups the collaborators of SessionService. Only Bookings and
// NewSource are required.
type SessionDeps struct {
	Bookings        ports.BookingRepository
	Events          ports.GeofenceEventRepository
	EventPublisher  ports.GeofenceEventPublisher
	StatusPublisher ports.StatusPublisher
	Dedup           ports.SampleDedup
	NewSource       func(bookingID string) ports.PushSource
	Clock           clockwork.Clock
	EngineMetrics   geofence.Metrics
	WorkflowMetrics checkin.Metrics
}

type session struct {
	id        string
	bookingID string
	engine    *geofence.Engine
	workflow  *checkin.Workflow
	source    ports.PushSource
	startedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	unsub  []func()
	events chan observed
	done   chan struct{}
}

type observed struct {
	ev      domain.GeofenceEvent
	arrived bool
}

// SessionService owns one geofence engine and check-in workflow per active booking.
type SessionService struct {
	deps SessionDeps
	cfg  SessionConfig
	log  zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*session
	detached map[string]*checkin.Workflow
}

func NewSessionService(deps SessionDeps, cfg SessionConfig, log zerolog.Logger) *SessionService {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &SessionService{
		deps:     deps,
		cfg:      cfg,
		log:      log,
		sessions: make(map[string]*session),
		detached: make(map[string]*checkin.Workflow),
	}
}

// Start opens a session for a booking: its engine watches the booking's
// zones plus any extra zones in the input.
func (s *SessionService) Start(ctx context.Context, in ports.StartSessionInput) (*ports.SessionView, error) {
	if _, err := s.lookup(in.BookingID); err == nil {
		return nil, fmt.Errorf("start session: %w", domain.ErrSessionExists)
	}

	booking, err := s.deps.Bookings.FindByID(ctx, in.BookingID)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	if booking.Status.Terminal() {
		return nil, fmt.Errorf("start session: %w: booking is %s", domain.ErrInvalidTransition, booking.Status)
	}

	zones := booking.Zones()
	seen := make(map[string]struct{}, len(zones))
	for _, z := range zones {
		seen[z.ID] = struct{}{}
	}
	for _, z := range in.Zones {
		if _, dup := seen[z.ID]; dup {
			continue
		}
		seen[z.ID] = struct{}{}
		zones = append(zones, z)
	}

	sess := &session{
		id:        uuid.NewString(),
		bookingID: booking.ID,
		source:    s.deps.NewSource(booking.ID),
		startedAt: s.deps.Clock.Now().UTC(),
		events:    make(chan observed, eventBuffer),
		done:      make(chan struct{}),
	}
	sess.ctx, sess.cancel = context.WithCancel(context.Background())
	log := s.log.With().Str("booking_id", booking.ID).Str("session_id", sess.id).Logger()

	sess.engine = geofence.NewEngine(sess.source, geofence.Options{
		AccuracyThresholdMeters: s.cfg.AccuracyThresholdMeters,
		DwellThreshold:          s.cfg.DwellThreshold,
		Clock:                   s.deps.Clock,
		Metrics:                 s.deps.EngineMetrics,
	}, log)
	if err := sess.engine.Configure(zones); err != nil {
		sess.cancel()
		sess.source.Close()
		return nil, fmt.Errorf("start session: %w", err)
	}

	sess.workflow = s.newWorkflow(booking, sess.engine, log)
	sess.unsub = append(sess.unsub, sess.engine.Subscribe(func(ev domain.GeofenceEvent) {
		arrived := sess.workflow.Observe(ev)
		select {
		case sess.events <- observed{ev: ev, arrived: arrived}:
		default:
			log.Warn().Str("zone_id", ev.ZoneID).Str("kind", string(ev.Kind)).Msg("geofence side-effect queue full, event dropped")
		}
	}))
	go s.runSideEffects(sess, log)

	if err := sess.engine.Start(sess.ctx); err != nil {
		s.teardown(sess)
		return nil, fmt.Errorf("start session: %w", err)
	}

	s.mu.Lock()
	if _, exists := s.sessions[booking.ID]; exists {
		s.mu.Unlock()
		s.teardown(sess)
		return nil, fmt.Errorf("start session: %w", domain.ErrSessionExists)
	}
	delete(s.detached, booking.ID)
	s.sessions[booking.ID] = sess
	s.mu.Unlock()

	log.Info().Int("zones", len(zones)).Msg("kiosk session started")
	return s.view(sess), nil
}

// runSideEffects persists and publishes geofence events away from the engine loop.
func (s *SessionService) runSideEffects(sess *session, log zerolog.Logger) {
	defer close(sess.done)
	for o := range sess.events {
		ev := o.ev
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectLimit)
		if o.arrived {
			if err := s.deps.Bookings.SetArrivedAt(ctx, sess.bookingID, ev.Timestamp); err != nil {
				log.Warn().Err(err).Msg("failed to record arrival")
			}
		}
		if s.deps.Events != nil {
			if err := s.deps.Events.Insert(ctx, sess.bookingID, ev); err != nil {
				log.Warn().Err(err).Str("zone_id", ev.ZoneID).Msg("failed to insert geofence audit event")
			}
		}
		if s.deps.EventPublisher != nil {
			if err := s.deps.EventPublisher.PublishGeofenceEvent(ctx, sess.bookingID, ev); err != nil {
				log.Warn().Err(err).Str("zone_id", ev.ZoneID).Msg("failed to publish geofence event")
			}
		}
		cancel()
	}
}

func (s *SessionService) newWorkflow(b *domain.Booking, m checkin.Membership, log zerolog.Logger) *checkin.Workflow {
	return checkin.New(b, m,
		checkin.WithCommitter(&bookingCommitter{repo: s.deps.Bookings, publisher: s.deps.StatusPublisher, log: log}),
		checkin.WithClock(s.deps.Clock),
		checkin.WithLogger(log),
		checkin.WithMetrics(s.deps.WorkflowMetrics),
	)
}

// Get returns a snapshot of the session for bookingID.
func (s *SessionService) Get(_ context.Context, bookingID string) (*ports.SessionView, error) {
	sess, err := s.lookup(bookingID)
	if err != nil {
		return nil, err
	}
	return s.view(sess), nil
}

// Resume resubscribes a session whose position source failed.
func (s *SessionService) Resume(_ context.Context, bookingID string) (*ports.SessionView, error) {
	sess, err := s.lookup(bookingID)
	if err != nil {
		return nil, err
	}
	if err := sess.engine.Start(sess.ctx); err != nil {
		return nil, fmt.Errorf("resume session: %w", err)
	}
	return s.view(sess), nil
}

// Stop tears the session down. The workflow is dropped; later kiosk actions
// reload the booking from the repository.
func (s *SessionService) Stop(_ context.Context, bookingID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[bookingID]
	if ok {
		delete(s.sessions, bookingID)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("stop session: %w", domain.ErrSessionNotFound)
	}
	s.teardown(sess)
	s.log.Info().Str("booking_id", bookingID).Str("session_id", sess.id).Msg("kiosk session stopped")
	return nil
}

// StopAll tears every session down. Used on shutdown.
func (s *SessionService) StopAll() {
	s.mu.Lock()
	all := make([]*session, 0, len(s.sessions))
	for id, sess := range s.sessions {
		all = append(all, sess)
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	for _, sess := range all {
		s.teardown(sess)
	}
}

func (s *SessionService) teardown(sess *session) {
	sess.engine.Stop()
	sess.engine.Drain()
	sess.cancel()
	for _, u := range sess.unsub {
		u()
	}
	sess.source.Close()
	close(sess.events)
	<-sess.done
}

// Check reports whether the session's engine would accept sample.
func (s *SessionService) Check(bookingID string, sample domain.PositionSample) error {
	sess, err := s.lookup(bookingID)
	if err != nil {
		return err
	}
	return sess.engine.Check(sample)
}

// Process delivers a queued sample to its session, dropping redeliveries.
func (s *SessionService) Process(ctx context.Context, in ports.SampleInput) error {
	sess, err := s.lookup(in.SessionID)
	if err != nil {
		return err
	}
	if s.deps.Dedup != nil {
		dup, err := s.deps.Dedup.SeenBefore(ctx, sess.id, in.Sample)
		if err != nil {
			s.log.Warn().Err(err).Str("booking_id", in.SessionID).Str("session_id", sess.id).Msg("sample dedup check failed, processing anyway")
		} else if dup {
			s.log.Debug().Str("booking_id", in.SessionID).Str("session_id", sess.id).Str("origin", in.Origin).Msg("duplicate sample skipped")
			return nil
		}
	}
	sess.source.Push(in.Sample)
	return nil
}

// ReportSourceError forwards a device-side position failure to the session.
func (s *SessionService) ReportSourceError(bookingID string, srcErr *domain.SourceError) error {
	sess, err := s.lookup(bookingID)
	if err != nil {
		return err
	}
	sess.source.Fail(srcErr)
	return nil
}

// Watch registers fn for the session's geofence events. fn runs on the
// engine's loop and must not block.
func (s *SessionService) Watch(bookingID string, fn func(domain.GeofenceEvent)) (func(), error) {
	sess, err := s.lookup(bookingID)
	if err != nil {
		return nil, err
	}
	return sess.engine.Subscribe(fn), nil
}

// Workflow returns the workflow for bookingID: the live session's when one is
// active, otherwise a workflow with no position feed.
func (s *SessionService) Workflow(ctx context.Context, bookingID string) (*checkin.Workflow, error) {
	s.mu.RLock()
	if sess, ok := s.sessions[bookingID]; ok {
		s.mu.RUnlock()
		return sess.workflow, nil
	}
	if wf, ok := s.detached[bookingID]; ok {
		s.mu.RUnlock()
		return wf, nil
	}
	s.mu.RUnlock()

	booking, err := s.deps.Bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[bookingID]; ok {
		return sess.workflow, nil
	}
	if wf, ok := s.detached[bookingID]; ok {
		return wf, nil
	}
	wf := s.newWorkflow(booking, checkin.NoMembership{}, s.log.With().Str("booking_id", bookingID).Logger())
	s.detached[bookingID] = wf
	return wf, nil
}

// Forget drops the cached workflow of a closed booking.
func (s *SessionService) Forget(bookingID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.detached, bookingID)
}

func (s *SessionService) lookup(bookingID string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[bookingID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", bookingID, domain.ErrSessionNotFound)
	}
	return sess, nil
}

func (s *SessionService) view(sess *session) *ports.SessionView {
	v := &ports.SessionView{
		SessionID:     sess.id,
		BookingID:     sess.bookingID,
		Booking:       sess.workflow.Booking(),
		Zones:         sess.engine.Zones(),
		CurrentZones:  sess.engine.CurrentZones(),
		LastError:     sess.engine.LastError(),
		Tracking:      sess.engine.Tracking(),
		CanCheckIn:    sess.workflow.CanCheckIn(),
		DockDwellHint: sess.workflow.DockDwellHint(),
		StartedAt:     sess.startedAt,
	}
	if last, ok := sess.engine.LastSample(); ok {
		v.LastSample = &last
	}
	return v
}
