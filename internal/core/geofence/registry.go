package geofence

import (
	"fmt"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
)

// Registry is an immutable, ordered set of zones keyed by ID.
type Registry struct {
	zones []domain.Zone
	index map[string]int
}

// NewRegistry validates zones and builds a registry preserving their order.
func NewRegistry(zones []domain.Zone) (*Registry, error) {
	r := &Registry{
		zones: make([]domain.Zone, 0, len(zones)),
		index: make(map[string]int, len(zones)),
	}
	for _, z := range zones {
		if err := z.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.index[z.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate zone id %s", domain.ErrInvalidZone, z.ID)
		}
		r.index[z.ID] = len(r.zones)
		r.zones = append(r.zones, z)
	}
	return r, nil
}

// Zones returns a copy of the registered zones in configuration order.
func (r *Registry) Zones() []domain.Zone {
	out := make([]domain.Zone, len(r.zones))
	copy(out, r.zones)
	return out
}

// Get looks up a zone by ID.
func (r *Registry) Get(id string) (domain.Zone, bool) {
	i, ok := r.index[id]
	if !ok {
		return domain.Zone{}, false
	}
	return r.zones[i], true
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.index[id]
	return ok
}

func (r *Registry) Len() int { return len(r.zones) }
