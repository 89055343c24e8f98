package geo

import "github.com/droneguard/backend/internal/models"

// Locate returns a copy of the first zone in set order whose shape contains
// p. Multi-ring zones contain p when any of their rings does.
func Locate(zs *ZoneSet, p models.Point3D) (*models.Zone, bool) {
	i := locateIndex(zs, p)
	if i < 0 {
		return nil, false
	}
	return zs.Zone(i), true
}

func locateIndex(zs *ZoneSet, p models.Point3D) int {
	for i := 0; i < zs.Len(); i++ {
		if ShapeContains(zs.zones[i].Shape, p) {
			return i
		}
	}
	return -1
}

// ShapeContains reports whether any ring of s contains p.
func ShapeContains(s models.Shape, p models.Point3D) bool {
	for _, r := range s.Rings {
		if RingContains(r, p) {
			return true
		}
	}
	return false
}

// RingContains runs an even-odd ray cast on (lon, lat) with an altitude gate:
// an edge only counts when p.Alt does not exceed the higher of its two vertex
// altitudes. This is an upper bound against raw vertex altitudes, not a
// vertical prism test.
//
// Points exactly on a vertex or edge are not normalised; the result follows
// from the comparisons below (lower latitude bound exclusive, upper inclusive,
// crossing test inclusive).
func RingContains(r models.Ring, p models.Point3D) bool {
	if len(r) == 0 {
		return false
	}

	inside := false
	// xints survives across iterations; a horizontal edge reuses the last value.
	var xints float64
	p1 := r[len(r)-1]
	for _, p2 := range r {
		if p.Lat > min(p1.Lat, p2.Lat) &&
			p.Lat <= max(p1.Lat, p2.Lat) &&
			p.Lon <= max(p1.Lon, p2.Lon) &&
			p.Alt <= max(p1.Alt, p2.Alt) {
			if p1.Lat != p2.Lat {
				xints = (p.Lat-p1.Lat)*(p2.Lon-p1.Lon)/(p2.Lat-p1.Lat) + p1.Lon
			}
			if p1.Lon == p2.Lon || p.Lon <= xints {
				inside = !inside
			}
		}
		p1 = p2
	}
	return inside
}

// CheckZones runs Locate for every drone against a single snapshot.
func CheckZones(zs *ZoneSet, drones []models.DroneSnapshot) map[string]models.ZoneHit {
	hits := make(map[string]models.ZoneHit, len(drones))
	for _, d := range drones {
		hit := models.ZoneHit{}
		if i := locateIndex(zs, d.Position); i >= 0 {
			name := zs.zones[i].Name
			hit.Inside = true
			hit.Zone = &name
		}
		hits[d.ID] = hit
	}
	return hits
}
