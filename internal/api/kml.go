package api

import (
	"bytes"
	"image/color"
	"time"

	"github.com/droneguard/backend/internal/models"
	"github.com/twpayne/go-kml"
)

const kmlContentType = "application/vnd.google-earth.kml+xml"

func kmlCoordinates(ring models.Ring, closed bool) []kml.Coordinate {
	coords := make([]kml.Coordinate, 0, len(ring)+1)
	for _, p := range ring {
		coords = append(coords, kml.Coordinate{Lon: p.Lon, Lat: p.Lat, Alt: p.Alt})
	}
	if closed && len(ring) > 0 {
		coords = append(coords, coords[0])
	}
	return coords
}

func kmlPolygon(ring models.Ring) kml.Element {
	return kml.Polygon(
		kml.OuterBoundaryIs(
			kml.LinearRing(kml.Coordinates(kmlCoordinates(ring, true)...)),
		),
	)
}

// encodeZonesKML writes the zone set back out as KML, one Placemark per zone.
func encodeZonesKML(zs []models.Zone) ([]byte, error) {
	doc := kml.Document(
		kml.Name("No-fly zones"),
		kml.SharedStyle("zone",
			kml.LineStyle(kml.Color(color.RGBA{R: 255, A: 255}), kml.Width(2)),
			kml.PolyStyle(kml.Color(color.RGBA{R: 255, A: 96})),
		),
	)
	for _, z := range zs {
		var geom kml.Element
		if z.Shape.Kind == models.ShapeMulti {
			mg := kml.MultiGeometry()
			for _, r := range z.Shape.Rings {
				mg.Add(kmlPolygon(r))
			}
			geom = mg
		} else {
			geom = kmlPolygon(z.Shape.Rings[0])
		}
		doc.Add(kml.Placemark(kml.Name(z.Name), kml.StyleURL("#zone"), geom))
	}

	var buf bytes.Buffer
	if err := kml.KML(doc).WriteIndent(&buf, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeTrackKML writes one route as a LineString placemark.
func encodeTrackKML(droneID string, track models.Track) ([]byte, error) {
	ring := make(models.Ring, len(track))
	for i, f := range track {
		ring[i] = f.Position
	}

	pm := kml.Placemark(
		kml.Name(droneID),
		kml.StyleURL("#route"),
		kml.LineString(kml.Coordinates(kmlCoordinates(ring, false)...)),
	)
	if len(track) > 0 {
		pm.Add(kml.TimeSpan(
			kml.Begin(time.Unix(track[0].Timestamp, 0).UTC()),
			kml.End(time.Unix(track[len(track)-1].Timestamp, 0).UTC()),
		))
	}

	doc := kml.Document(
		kml.Name("Route "+droneID),
		kml.SharedStyle("route",
			kml.LineStyle(kml.Color(color.RGBA{B: 255, A: 200}), kml.Width(3)),
		),
		pm,
	)

	var buf bytes.Buffer
	if err := kml.KML(doc).WriteIndent(&buf, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
