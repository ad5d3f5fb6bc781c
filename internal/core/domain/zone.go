package domain

import "fmt"

// ZoneKind classifies a geofence zone.
type ZoneKind string

const (
	ZoneSite    ZoneKind = "site"
	ZoneDock    ZoneKind = "dock"
	ZoneParking ZoneKind = "parking"
	ZoneCustom  ZoneKind = "custom"
)

// Valid reports whether k is one of the known zone kinds.
func (k ZoneKind) Valid() bool {
	switch k {
	case ZoneSite, ZoneDock, ZoneParking, ZoneCustom:
		return true
	}
	return false
}

// Zone is a circular geofence. Zones are immutable once registered.
type Zone struct {
	ID           string      `json:"id" bson:"id"`
	Name         string      `json:"name" bson:"name"`
	Center       Coordinates `json:"center" bson:"center"`
	RadiusMeters float64     `json:"radius_meters" bson:"radius_meters"`
	Kind         ZoneKind    `json:"kind" bson:"kind"`
}

// Validate checks a single zone definition.
func (z Zone) Validate() error {
	switch {
	case z.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidZone)
	case !z.Center.Valid():
		return fmt.Errorf("%w: zone %s has out of range center", ErrInvalidZone, z.ID)
	case !(z.RadiusMeters > 0):
		return fmt.Errorf("%w: zone %s radius must be positive", ErrInvalidZone, z.ID)
	case !z.Kind.Valid():
		return fmt.Errorf("%w: zone %s has unknown kind %q", ErrInvalidZone, z.ID, z.Kind)
	}
	return nil
}

// Contains reports whether p lies inside the zone, along with its distance to the center.
func (z Zone) Contains(p Coordinates) (bool, float64) {
	d := Distance(p, z.Center)
	return d <= z.RadiusMeters, d
}
