package domain

import (
	"fmt"
	"math"
	"time"
)

// PositionSample is a single reading from a position source.
type PositionSample struct {
	Latitude       float64   `json:"latitude" bson:"latitude"`
	Longitude      float64   `json:"longitude" bson:"longitude"`
	AccuracyMeters float64   `json:"accuracy_meters" bson:"accuracy_meters"`
	Timestamp      time.Time `json:"timestamp" bson:"timestamp"`
}

// Coordinates returns the sample's point.
func (p PositionSample) Coordinates() Coordinates {
	return Coordinates{Lat: p.Latitude, Lng: p.Longitude}
}

// Validate rejects samples that cannot be placed on the globe.
func (p PositionSample) Validate() error {
	if !p.Coordinates().Valid() {
		return fmt.Errorf("%w: coordinates out of range", ErrInvalidSample)
	}
	if math.IsNaN(p.AccuracyMeters) || p.AccuracyMeters < 0 {
		return fmt.Errorf("%w: accuracy must be non-negative", ErrInvalidSample)
	}
	return nil
}
