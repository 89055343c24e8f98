// Package geo implements the geospatial safety checks: no-fly zone
// containment, drone-to-drone proximity and trajectory resampling.
//
// Everything here is a pure function over caller-supplied data. A ZoneSet
// is never modified after Build returns, so one instance can be shared by
// any number of goroutines.
package geo

import (
	"fmt"

	"github.com/droneguard/backend/internal/models"
)

// MinRingVertices is the smallest vertex count that encloses an area.
const MinRingVertices = 3

// ZoneSet is an immutable, ordered collection of no-fly zones.
type ZoneSet struct {
	zones []models.Zone
}

// Build validates specs and returns a ZoneSet in the same order.
// A single invalid ring aborts the whole build.
func Build(specs []models.ZoneSpec) (*ZoneSet, error) {
	zones := make([]models.Zone, 0, len(specs))
	for i, spec := range specs {
		if len(spec.Rings) == 0 {
			return nil, fmt.Errorf("zone %d (%q) has no rings: %w", i, spec.Name, ErrInvalidGeometry)
		}
		rings := make([]models.Ring, len(spec.Rings))
		for j, r := range spec.Rings {
			if len(r) < MinRingVertices {
				return nil, fmt.Errorf("zone %d (%q) ring %d has %d vertices, need at least %d: %w",
					i, spec.Name, j, len(r), MinRingVertices, ErrInvalidGeometry)
			}
			rings[j] = append(models.Ring(nil), r...)
		}

		var shape models.Shape
		if spec.Multi || len(rings) > 1 {
			shape = models.MultiShape(rings...)
		} else {
			shape = models.SimpleShape(rings[0])
		}
		zones = append(zones, models.Zone{Name: spec.Name, Shape: shape})
	}
	return &ZoneSet{zones: zones}, nil
}

// Len returns the number of zones. A nil set is empty.
func (zs *ZoneSet) Len() int {
	if zs == nil {
		return 0
	}
	return len(zs.zones)
}

// Zone returns a deep copy of the i-th zone.
func (zs *ZoneSet) Zone(i int) *models.Zone {
	z := cloneZone(zs.zones[i])
	return &z
}

// Names returns zone names in set order.
func (zs *ZoneSet) Names() []string {
	names := make([]string, 0, zs.Len())
	for i := 0; i < zs.Len(); i++ {
		names = append(names, zs.zones[i].Name)
	}
	return names
}

// Zones returns a deep copy of the zones.
func (zs *ZoneSet) Zones() []models.Zone {
	out := make([]models.Zone, zs.Len())
	for i := range out {
		out[i] = cloneZone(zs.zones[i])
	}
	return out
}

func cloneZone(z models.Zone) models.Zone {
	rings := make([]models.Ring, len(z.Shape.Rings))
	for j, r := range z.Shape.Rings {
		rings[j] = append(models.Ring(nil), r...)
	}
	return models.Zone{Name: z.Name, Shape: models.Shape{Kind: z.Shape.Kind, Rings: rings}}
}
