package domain

import "time"

// EventKind is the type of a geofence transition.
type EventKind string

const (
	EventEnter EventKind = "enter"
	EventExit  EventKind = "exit"
	EventDwell EventKind = "dwell"
)

// GeofenceEvent is emitted once per membership transition.
// DwellThreshold is only set on dwell events.
type GeofenceEvent struct {
	ZoneID         string         `json:"zone_id" bson:"zone_id"`
	ZoneName       string         `json:"zone_name" bson:"zone_name"`
	ZoneKind       ZoneKind       `json:"zone_kind" bson:"zone_kind"`
	Kind           EventKind      `json:"kind" bson:"kind"`
	Timestamp      time.Time      `json:"timestamp" bson:"timestamp"`
	Position       PositionSample `json:"position" bson:"position"`
	DistanceMeters float64        `json:"distance_meters" bson:"distance_meters"`
	DwellThreshold time.Duration  `json:"dwell_threshold,omitempty" bson:"dwell_threshold,omitempty"`
}
