package geo

import (
	"math"

	"github.com/droneguard/backend/internal/models"
)

// EarthRadiusMeters is the mean Earth radius used for great-circle distances.
const EarthRadiusMeters = 6371008.8

// Haversine returns the great-circle surface distance in meters between two
// points, ignoring altitude.
func Haversine(a, b models.Point3D) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Distance combines surface distance and altitude difference and rounds the
// result to centimeters.
func Distance(a, b models.Point3D) float64 {
	surface := Haversine(a, b)
	height := math.Abs(a.Alt - b.Alt)
	return round2(math.Hypot(surface, height))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Detect lists, for each drone, the other drones closer than that drone's own
// safety buffer. Pairs are directional: a may list b while b does not list a.
// Drones without threats are omitted. When IDs repeat, a later snapshot with
// threats replaces the list of an earlier one.
func Detect(drones []models.DroneSnapshot) map[string][]models.Threat {
	out := make(map[string][]models.Threat)
	for _, a := range drones {
		var threats []models.Threat
		for _, b := range drones {
			if a.ID == b.ID {
				continue
			}
			d := Distance(a.Position, b.Position)
			if d < a.SafetyBufferMeters {
				threats = append(threats, models.Threat{ID: b.ID, Distance: d})
			}
		}
		if len(threats) > 0 {
			out[a.ID] = threats
		}
	}
	return out
}
