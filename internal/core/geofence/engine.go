// Package geofence turns a stream of position samples into zone membership
// events (enter, exit, dwell).
package geofence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
	"github.com/99minutos/dock-kiosk/internal/core/ports"
)

// DefaultAccuracyThreshold is the worst sample accuracy, in meters, the engine accepts.
const DefaultAccuracyThreshold = 100.0

// Handler receives geofence events.
type Handler func(domain.GeofenceEvent)

// ErrorHandler receives classified position source failures.
type ErrorHandler func(*domain.SourceError)

// Metrics receives engine counters. api/metrics provides the Prometheus implementation.
type Metrics interface {
	SampleAccepted()
	SampleRejected(reason string)
	EventEmitted(ev domain.GeofenceEvent)
	IngestObserved(d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) SampleAccepted()                   {}
func (nopMetrics) SampleRejected(string)             {}
func (nopMetrics) EventEmitted(domain.GeofenceEvent) {}
func (nopMetrics) IngestObserved(time.Duration)      {}

// Options tunes an Engine. Zero values pick the defaults; a negative
// DwellThreshold disables dwell events.
type Options struct {
	AccuracyThresholdMeters float64
	DwellThreshold          time.Duration
	Clock                   clockwork.Clock
	Metrics                 Metrics
}

type subscription struct {
	id   uint64
	kind domain.EventKind // empty matches every kind
	fn   Handler
}

type errSubscription struct {
	id uint64
	fn ErrorHandler
}

// Engine tracks which zones the latest accepted sample lies in.
//
// Ingest, dwell firing and Configure are serialised on loop. Read accessors
// and Stop only take state, so handlers may query or stop the engine while an
// event is being delivered. Handlers must not call Ingest or Configure.
//
// Every Start and Stop bumps gen. Samples delivered through a subscription
// from an older generation are dropped, as are samples arriving after Stop.
type Engine struct {
	source   ports.PositionSource
	accuracy float64
	clock    clockwork.Clock
	metrics  Metrics
	log      zerolog.Logger

	life        sync.Mutex
	unsubscribe func()
	done        chan struct{}

	loop  sync.Mutex
	dwell *DwellScheduler

	state    sync.RWMutex
	registry *Registry
	inside   map[string]domain.GeofenceEvent
	last     *domain.PositionSample
	lastErr  *domain.SourceError
	tracking bool
	stopped  bool
	gen      uint64

	hmu       sync.RWMutex
	nextID    uint64
	handlers  []subscription
	errorSubs []errSubscription
}

// NewEngine returns an engine with an empty registry bound to source.
// source may be nil when samples are only fed through Ingest.
func NewEngine(source ports.PositionSource, opts Options, log zerolog.Logger) *Engine {
	if opts.AccuracyThresholdMeters <= 0 {
		opts.AccuracyThresholdMeters = DefaultAccuracyThreshold
	}
	if opts.DwellThreshold == 0 {
		opts.DwellThreshold = DefaultDwellThreshold
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	e := &Engine{
		source:   source,
		accuracy: opts.AccuracyThresholdMeters,
		clock:    opts.Clock,
		metrics:  opts.Metrics,
		log:      log,
		registry: &Registry{index: map[string]int{}},
		inside:   make(map[string]domain.GeofenceEvent),
	}
	e.dwell = NewDwellScheduler(opts.Clock, opts.DwellThreshold, &e.loop)
	return e
}

// Configure replaces the zone registry. Zones that disappear are dropped from
// the membership set without an exit event and their dwell timers cancelled.
// Zones kept by ID stay members. Invalid input leaves the engine untouched.
func (e *Engine) Configure(zones []domain.Zone) error {
	reg, err := NewRegistry(zones)
	if err != nil {
		return err
	}

	e.loop.Lock()
	defer e.loop.Unlock()

	e.state.Lock()
	for id := range e.inside {
		if !reg.Has(id) {
			delete(e.inside, id)
			e.dwell.Cancel(id)
		}
	}
	e.registry = reg
	e.state.Unlock()

	e.log.Debug().Int("zones", reg.Len()).Msg("geofence zones configured")
	return nil
}

// ErrStopped is returned by Ingest between Stop and the next Start.
var ErrStopped = errors.New("geofence engine stopped")

// Ingest evaluates a sample against every zone and emits transitions in
// registry order.
func (e *Engine) Ingest(s domain.PositionSample) error {
	return e.ingest(s, 0)
}

// ingest runs a sample through the engine. A non-zero sub is the generation
// of the source subscription that delivered it.
func (e *Engine) ingest(s domain.PositionSample, sub uint64) error {
	started := e.clock.Now()
	defer func() { e.metrics.IngestObserved(e.clock.Since(started)) }()

	if err := e.Check(s); err != nil {
		if errors.Is(err, domain.ErrLowAccuracySample) {
			e.metrics.SampleRejected("low_accuracy")
			e.log.Debug().
				Float64("accuracy_m", s.AccuracyMeters).
				Float64("threshold_m", e.accuracy).
				Msg("sample skipped: low accuracy")
		} else {
			e.metrics.SampleRejected("invalid")
		}
		return err
	}

	e.loop.Lock()
	defer e.loop.Unlock()

	var events []domain.GeofenceEvent
	point := s.Coordinates()

	e.state.Lock()
	if e.stopped || (sub != 0 && sub != e.gen) {
		e.state.Unlock()
		return ErrStopped
	}
	gen := e.gen
	sample := s
	e.last = &sample
	e.lastErr = nil
	for _, z := range e.registry.zones {
		in, dist := z.Contains(point)
		_, was := e.inside[z.ID]
		switch {
		case in && !was:
			ev := newEvent(z, domain.EventEnter, s, dist)
			e.inside[z.ID] = ev
			events = append(events, ev)
			zoneID := z.ID
			e.dwell.Arm(zoneID, func() { e.fireDwell(zoneID) })
		case !in && was:
			delete(e.inside, z.ID)
			e.dwell.Cancel(z.ID)
			events = append(events, newEvent(z, domain.EventExit, s, dist))
		}
	}
	e.state.Unlock()

	e.metrics.SampleAccepted()
	for _, ev := range events {
		if !e.current(gen) {
			break
		}
		e.emit(ev)
	}
	return nil
}

// current reports whether no Start or Stop happened since generation gen.
func (e *Engine) current(gen uint64) bool {
	e.state.RLock()
	defer e.state.RUnlock()
	return e.gen == gen
}

// Check applies the sample filters without touching engine state.
func (e *Engine) Check(s domain.PositionSample) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.AccuracyMeters > e.accuracy {
		return fmt.Errorf("%w: %.1fm > %.1fm", domain.ErrLowAccuracySample, s.AccuracyMeters, e.accuracy)
	}
	return nil
}

// fireDwell runs under loop, via the dwell scheduler.
func (e *Engine) fireDwell(zoneID string) {
	e.state.RLock()
	enter, ok := e.inside[zoneID]
	if e.stopped {
		ok = false
	}
	e.state.RUnlock()
	if !ok {
		return
	}
	ev := enter
	ev.Kind = domain.EventDwell
	ev.Timestamp = e.clock.Now()
	ev.DwellThreshold = e.dwell.Threshold()
	e.emit(ev)
}

func newEvent(z domain.Zone, kind domain.EventKind, s domain.PositionSample, dist float64) domain.GeofenceEvent {
	return domain.GeofenceEvent{
		ZoneID:         z.ID,
		ZoneName:       z.Name,
		ZoneKind:       z.Kind,
		Kind:           kind,
		Timestamp:      s.Timestamp,
		Position:       s,
		DistanceMeters: dist,
	}
}

// Start subscribes to the position source. Calling it while already tracking
// is a no-op; calling it after a source failure resubscribes. The engine stops
// when ctx is cancelled.
func (e *Engine) Start(ctx context.Context) error {
	if e.source == nil {
		return fmt.Errorf("start geofence engine: %w: no position source", domain.ErrPositionUnavailable)
	}

	e.life.Lock()
	defer e.life.Unlock()

	if e.Tracking() {
		return nil
	}
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}

	e.state.Lock()
	e.gen++
	sub := e.gen
	e.stopped = false
	e.state.Unlock()

	unsub, err := e.source.Subscribe(
		func(s domain.PositionSample) { e.onSample(sub, s) },
		func(err error) { e.onSourceError(sub, err) },
	)
	if err != nil {
		se := domain.AsSourceError(err)
		e.state.Lock()
		e.lastErr = se
		e.state.Unlock()
		return fmt.Errorf("start geofence engine: %w", se)
	}
	e.unsubscribe = unsub

	e.state.Lock()
	e.tracking = true
	e.lastErr = nil
	e.state.Unlock()

	if e.done == nil {
		e.done = make(chan struct{})
		go e.watch(ctx, e.done)
	}
	e.log.Info().Msg("geofence tracking started")
	return nil
}

func (e *Engine) watch(ctx context.Context, done <-chan struct{}) {
	select {
	case <-ctx.Done():
		e.Stop()
	case <-done:
	}
}

// Stop unsubscribes from the source, cancels every dwell timer and clears the
// membership set without emitting exits. Safe to call any number of times,
// including from an event handler. Events of an in-flight sample that have not
// been delivered yet are dropped.
func (e *Engine) Stop() {
	e.life.Lock()
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
	if e.done != nil {
		close(e.done)
		e.done = nil
	}
	e.life.Unlock()

	e.state.Lock()
	e.gen++
	e.stopped = true
	wasTracking := e.tracking
	e.tracking = false
	clear(e.inside)
	e.dwell.CancelAll()
	e.state.Unlock()

	if wasTracking {
		e.log.Info().Msg("geofence tracking stopped")
	}
}

// Drain blocks until the sample or dwell delivery in progress, if any, has
// returned. After Stop and Drain no handler is running or will run again
// until the next Start. Must not be called from a handler.
func (e *Engine) Drain() {
	e.loop.Lock()
	e.loop.Unlock()
}

func (e *Engine) onSample(sub uint64, s domain.PositionSample) {
	if err := e.ingest(s, sub); err != nil {
		e.log.Debug().Err(err).Msg("sample not ingested")
	}
}

// onSourceError records the failure and keeps the last known membership.
func (e *Engine) onSourceError(sub uint64, err error) {
	se := domain.AsSourceError(err)

	e.state.Lock()
	if sub != e.gen {
		e.state.Unlock()
		return
	}
	e.lastErr = se
	e.tracking = false
	e.state.Unlock()

	e.log.Warn().Str("code", string(se.Code)).Err(se).Msg("position source failed")

	e.hmu.RLock()
	subs := make([]errSubscription, len(e.errorSubs))
	copy(subs, e.errorSubs)
	e.hmu.RUnlock()
	for _, s := range subs {
		e.safeCall(func() { s.fn(se) })
	}
}

// OnEnter registers h for enter events. The returned func unregisters it.
func (e *Engine) OnEnter(h Handler) func() { return e.addHandler(domain.EventEnter, h) }

// OnExit registers h for exit events.
func (e *Engine) OnExit(h Handler) func() { return e.addHandler(domain.EventExit, h) }

// OnDwell registers h for dwell events.
func (e *Engine) OnDwell(h Handler) func() { return e.addHandler(domain.EventDwell, h) }

// Subscribe registers h for every event kind.
func (e *Engine) Subscribe(h Handler) func() { return e.addHandler("", h) }

// OnError registers h for position source failures.
func (e *Engine) OnError(h ErrorHandler) func() {
	e.hmu.Lock()
	defer e.hmu.Unlock()
	e.nextID++
	id := e.nextID
	e.errorSubs = append(e.errorSubs, errSubscription{id: id, fn: h})
	return func() {
		e.hmu.Lock()
		defer e.hmu.Unlock()
		for i, s := range e.errorSubs {
			if s.id == id {
				e.errorSubs = append(e.errorSubs[:i:i], e.errorSubs[i+1:]...)
				return
			}
		}
	}
}

func (e *Engine) addHandler(kind domain.EventKind, h Handler) func() {
	e.hmu.Lock()
	defer e.hmu.Unlock()
	e.nextID++
	id := e.nextID
	e.handlers = append(e.handlers, subscription{id: id, kind: kind, fn: h})
	return func() {
		e.hmu.Lock()
		defer e.hmu.Unlock()
		for i, s := range e.handlers {
			if s.id == id {
				e.handlers = append(e.handlers[:i:i], e.handlers[i+1:]...)
				return
			}
		}
	}
}

func (e *Engine) emit(ev domain.GeofenceEvent) {
	e.metrics.EventEmitted(ev)
	e.log.Debug().
		Str("zone_id", ev.ZoneID).
		Str("kind", string(ev.Kind)).
		Float64("distance_m", ev.DistanceMeters).
		Msg("geofence event")

	e.hmu.RLock()
	subs := make([]subscription, 0, len(e.handlers))
	for _, s := range e.handlers {
		if s.kind == "" || s.kind == ev.Kind {
			subs = append(subs, s)
		}
	}
	e.hmu.RUnlock()

	for _, s := range subs {
		e.safeCall(func() { s.fn(ev) })
	}
}

// safeCall shields the engine from a panicking handler.
func (e *Engine) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Msg("geofence handler panicked")
		}
	}()
	fn()
}

// CurrentZones returns the IDs of the zones the position is inside, in registry order.
func (e *Engine) CurrentZones() []string {
	e.state.RLock()
	defer e.state.RUnlock()
	out := make([]string, 0, len(e.inside))
	for _, z := range e.registry.zones {
		if _, ok := e.inside[z.ID]; ok {
			out = append(out, z.ID)
		}
	}
	return out
}

// IsInside reports whether zoneID is in the membership set.
func (e *Engine) IsInside(zoneID string) bool {
	e.state.RLock()
	defer e.state.RUnlock()
	_, ok := e.inside[zoneID]
	return ok
}

// LastSample returns the latest accepted sample.
func (e *Engine) LastSample() (domain.PositionSample, bool) {
	e.state.RLock()
	defer e.state.RUnlock()
	if e.last == nil {
		return domain.PositionSample{}, false
	}
	return *e.last, true
}

// LastError returns the most recent source failure, cleared by the next accepted sample.
func (e *Engine) LastError() *domain.SourceError {
	e.state.RLock()
	defer e.state.RUnlock()
	return e.lastErr
}

// Tracking reports whether the engine is subscribed to a healthy source.
func (e *Engine) Tracking() bool {
	e.state.RLock()
	defer e.state.RUnlock()
	return e.tracking
}

// Zones returns the configured zones.
func (e *Engine) Zones() []domain.Zone {
	e.state.RLock()
	defer e.state.RUnlock()
	return e.registry.Zones()
}

// PendingDwells returns the number of armed dwell timers.
func (e *Engine) PendingDwells() int { return e.dwell.Pending() }
