package domain

import (
	"fmt"
	"strings"
	"time"
)

// BookingStatus represents the lifecycle state of a dock booking.
type BookingStatus string

const (
	StatusConfirmed BookingStatus = "confirmed"
	StatusCheckedIn BookingStatus = "checked_in"
	StatusAtDock    BookingStatus = "at_dock"
	StatusLoading   BookingStatus = "loading"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
)

// validTransitions defines the allowed state machine transitions.
var validTransitions = map[BookingStatus][]BookingStatus{
	StatusConfirmed: {StatusCheckedIn, StatusCancelled},
	StatusCheckedIn: {StatusAtDock, StatusCancelled},
	StatusAtDock:    {StatusLoading, StatusCancelled},
	StatusLoading:   {StatusCompleted, StatusCancelled},
}

// CanTransitionTo reports whether a transition from current status to next is valid.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s BookingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Timestamps records when each transition fired. Each field is set at most once.
type Timestamps struct {
	Confirmed      *time.Time `json:"confirmed,omitempty" bson:"confirmed,omitempty"`
	CheckedIn      *time.Time `json:"checked_in,omitempty" bson:"checked_in,omitempty"`
	AtDock         *time.Time `json:"at_dock,omitempty" bson:"at_dock,omitempty"`
	LoadingStarted *time.Time `json:"loading_started,omitempty" bson:"loading_started,omitempty"`
	Completed      *time.Time `json:"completed,omitempty" bson:"completed,omitempty"`
	Cancelled      *time.Time `json:"cancelled,omitempty" bson:"cancelled,omitempty"`
	// ArrivedAt is the first geofence entry into the site zone. Informational only.
	ArrivedAt *time.Time `json:"arrived_at,omitempty" bson:"arrived_at,omitempty"`
}

// slot returns the timestamp field owned by status s.
func (t *Timestamps) slot(s BookingStatus) **time.Time {
	switch s {
	case StatusConfirmed:
		return &t.Confirmed
	case StatusCheckedIn:
		return &t.CheckedIn
	case StatusAtDock:
		return &t.AtDock
	case StatusLoading:
		return &t.LoadingStarted
	case StatusCompleted:
		return &t.Completed
	case StatusCancelled:
		return &t.Cancelled
	}
	return nil
}

// CheckInRecord captures how a check-in was authorised.
type CheckInRecord struct {
	WithinGeofence bool            `json:"within_geofence" bson:"within_geofence"`
	Override       bool            `json:"override" bson:"override"`
	OverrideReason string          `json:"override_reason,omitempty" bson:"override_reason,omitempty"`
	Position       *PositionSample `json:"position,omitempty" bson:"position,omitempty"`
}

// StatusHistoryEntry records a single status transition on a booking.
type StatusHistoryEntry struct {
	Status    BookingStatus `json:"status" bson:"status"`
	Timestamp time.Time     `json:"timestamp" bson:"timestamp"`
	Notes     string        `json:"notes,omitempty" bson:"notes,omitempty"`
}

// Booking is the aggregate a kiosk session operates on.
type Booking struct {
	ID               string               `json:"id" bson:"_id"`
	ConfirmationCode string               `json:"confirmation_code" bson:"confirmation_code"`
	SiteZone         Zone                 `json:"site_zone" bson:"site_zone"`
	DockZone         *Zone                `json:"dock_zone,omitempty" bson:"dock_zone,omitempty"`
	GeofenceEnabled  bool                 `json:"geofence_enabled" bson:"geofence_enabled"`
	Status           BookingStatus        `json:"status" bson:"status"`
	Timestamps       Timestamps           `json:"timestamps" bson:"timestamps"`
	CheckIn          *CheckInRecord       `json:"check_in,omitempty" bson:"check_in,omitempty"`
	Signature        string               `json:"signature,omitempty" bson:"signature,omitempty"`
	CompletionNotes  string               `json:"completion_notes,omitempty" bson:"completion_notes,omitempty"`
	CancelReason     string               `json:"cancel_reason,omitempty" bson:"cancel_reason,omitempty"`
	StatusHistory    []StatusHistoryEntry `json:"status_history" bson:"status_history"`
}

// SiteZoneID returns the id of the site zone.
func (b *Booking) SiteZoneID() string { return b.SiteZone.ID }

// DockZoneID returns the id of the dock zone, or "" when none is assigned.
func (b *Booking) DockZoneID() string {
	if b.DockZone == nil {
		return ""
	}
	return b.DockZone.ID
}

// Zones returns the zones a kiosk session should watch for this booking.
func (b *Booking) Zones() []Zone {
	zones := []Zone{b.SiteZone}
	if b.DockZone != nil {
		zones = append(zones, *b.DockZone)
	}
	return zones
}

// Clone returns a deep copy so callers can mutate it without touching b.
func (b *Booking) Clone() *Booking {
	c := *b
	if b.DockZone != nil {
		dz := *b.DockZone
		c.DockZone = &dz
	}
	if b.CheckIn != nil {
		ci := *b.CheckIn
		if ci.Position != nil {
			p := *ci.Position
			ci.Position = &p
		}
		c.CheckIn = &ci
	}
	c.Timestamps = Timestamps{
		Confirmed:      cloneTime(b.Timestamps.Confirmed),
		CheckedIn:      cloneTime(b.Timestamps.CheckedIn),
		AtDock:         cloneTime(b.Timestamps.AtDock),
		LoadingStarted: cloneTime(b.Timestamps.LoadingStarted),
		Completed:      cloneTime(b.Timestamps.Completed),
		Cancelled:      cloneTime(b.Timestamps.Cancelled),
		ArrivedAt:      cloneTime(b.Timestamps.ArrivedAt),
	}
	c.StatusHistory = append([]StatusHistoryEntry(nil), b.StatusHistory...)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// transition moves the booking to next, stamping its timestamp and history.
func (b *Booking) transition(next BookingStatus, at time.Time, notes string) (StatusHistoryEntry, error) {
	if !b.Status.CanTransitionTo(next) {
		return StatusHistoryEntry{}, fmt.Errorf("%w (from %s to %s)", ErrInvalidTransition, b.Status, next)
	}
	slot := b.Timestamps.slot(next)
	if *slot != nil {
		return StatusHistoryEntry{}, fmt.Errorf("%w: %s already stamped", ErrInvalidTransition, next)
	}
	at = at.UTC()
	*slot = &at
	b.Status = next
	entry := StatusHistoryEntry{Status: next, Timestamp: at, Notes: notes}
	b.StatusHistory = append(b.StatusHistory, entry)
	return entry, nil
}

// MarkCheckedIn moves confirmed -> checked_in. Geofence gating is the
// caller's responsibility; rec records how it was satisfied.
func (b *Booking) MarkCheckedIn(at time.Time, rec CheckInRecord) (StatusHistoryEntry, error) {
	notes := "geofence"
	if rec.Override {
		notes = "override: " + rec.OverrideReason
	} else if !rec.WithinGeofence {
		notes = "manual"
	}
	entry, err := b.transition(StatusCheckedIn, at, notes)
	if err != nil {
		return entry, err
	}
	b.CheckIn = &rec
	return entry, nil
}

// MarkAtDock moves checked_in -> at_dock.
func (b *Booking) MarkAtDock(at time.Time) (StatusHistoryEntry, error) {
	return b.transition(StatusAtDock, at, "")
}

// MarkLoading moves at_dock -> loading.
func (b *Booking) MarkLoading(at time.Time) (StatusHistoryEntry, error) {
	return b.transition(StatusLoading, at, "")
}

// MarkCompleted moves loading -> completed. A non-blank signature is required.
func (b *Booking) MarkCompleted(at time.Time, signature, notes string) (StatusHistoryEntry, error) {
	if !b.Status.CanTransitionTo(StatusCompleted) {
		return StatusHistoryEntry{}, fmt.Errorf("%w (from %s to %s)", ErrInvalidTransition, b.Status, StatusCompleted)
	}
	if strings.TrimSpace(signature) == "" {
		return StatusHistoryEntry{}, fmt.Errorf("%w: signature is required", ErrMissingGuard)
	}
	entry, err := b.transition(StatusCompleted, at, notes)
	if err != nil {
		return entry, err
	}
	b.Signature = signature
	b.CompletionNotes = notes
	return entry, nil
}

// MarkCancelled moves any non-terminal booking to cancelled.
func (b *Booking) MarkCancelled(at time.Time, reason string) (StatusHistoryEntry, error) {
	entry, err := b.transition(StatusCancelled, at, reason)
	if err != nil {
		return entry, err
	}
	b.CancelReason = reason
	return entry, nil
}

// MarkArrived records the first site zone entry. Later calls are ignored.
func (b *Booking) MarkArrived(at time.Time) bool {
	if b.Timestamps.ArrivedAt != nil {
		return false
	}
	at = at.UTC()
	b.Timestamps.ArrivedAt = &at
	return true
}
