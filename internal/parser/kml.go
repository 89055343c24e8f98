package parser

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/droneguard/backend/internal/models"
)

// kmlFile is the subset of a KML document that carries no-fly polygons.
type kmlFile struct {
	XMLName    xml.Name       `xml:"kml"`
	Documents  []kmlContainer `xml:"Document"`
	Folders    []kmlContainer `xml:"Folder"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlContainer struct {
	Name       string         `xml:"name"`
	Documents  []kmlContainer `xml:"Document"`
	Folders    []kmlContainer `xml:"Folder"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlPlacemark struct {
	Name          string            `xml:"name"`
	Polygon       *kmlPolygon       `xml:"Polygon"`
	MultiGeometry *kmlMultiGeometry `xml:"MultiGeometry"`
}

type kmlMultiGeometry struct {
	Polygons       []kmlPolygon       `xml:"Polygon"`
	MultiGeometrys []kmlMultiGeometry `xml:"MultiGeometry"`
}

// Inner boundaries are not read: zones are unions of their outer rings.
type kmlPolygon struct {
	Outer struct {
		LinearRing struct {
			Coordinates string `xml:"coordinates"`
		} `xml:"LinearRing"`
	} `xml:"outerBoundaryIs"`
}

// ParseZonesKMLFile parses a KML file of no-fly zones.
func ParseZonesKMLFile(filePath string) ([]models.ZoneSpec, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseZonesKML(file)
}

// ParseZonesKML reads every Placemark with a Polygon or MultiGeometry. The
// placemarks of a container come before those of its nested Documents and
// Folders. Placemarks with other geometry are skipped.
func ParseZonesKML(r io.Reader) ([]models.ZoneSpec, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var raw kmlFile
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding KML: %w", err)
	}

	var specs []models.ZoneSpec
	root := kmlContainer{Documents: raw.Documents, Folders: raw.Folders, Placemarks: raw.Placemarks}
	if err := collectZones(root, &specs); err != nil {
		return nil, err
	}
	return specs, nil
}

func collectZones(c kmlContainer, specs *[]models.ZoneSpec) error {
	for _, pm := range c.Placemarks {
		spec, ok, err := placemarkZone(pm)
		if err != nil {
			return err
		}
		if ok {
			*specs = append(*specs, spec)
		}
	}
	for _, d := range c.Documents {
		if err := collectZones(d, specs); err != nil {
			return err
		}
	}
	for _, f := range c.Folders {
		if err := collectZones(f, specs); err != nil {
			return err
		}
	}
	return nil
}

func placemarkZone(pm kmlPlacemark) (models.ZoneSpec, bool, error) {
	name := strings.TrimSpace(pm.Name)
	switch {
	case pm.Polygon != nil:
		ring, err := ParseCoordinates(pm.Polygon.Outer.LinearRing.Coordinates)
		if err != nil {
			return models.ZoneSpec{}, false, fmt.Errorf("placemark %q: %w", name, err)
		}
		return models.ZoneSpec{Name: name, Rings: []models.Ring{ring}}, true, nil

	case pm.MultiGeometry != nil:
		var rings []models.Ring
		if err := collectRings(*pm.MultiGeometry, &rings); err != nil {
			return models.ZoneSpec{}, false, fmt.Errorf("placemark %q: %w", name, err)
		}
		if len(rings) == 0 {
			return models.ZoneSpec{}, false, nil
		}
		return models.ZoneSpec{Name: name, Multi: true, Rings: rings}, true, nil
	}
	return models.ZoneSpec{}, false, nil
}

func collectRings(mg kmlMultiGeometry, rings *[]models.Ring) error {
	for _, p := range mg.Polygons {
		ring, err := ParseCoordinates(p.Outer.LinearRing.Coordinates)
		if err != nil {
			return err
		}
		*rings = append(*rings, ring)
	}
	for _, nested := range mg.MultiGeometrys {
		if err := collectRings(nested, rings); err != nil {
			return err
		}
	}
	return nil
}

// ParseCoordinates parses a KML coordinates string of whitespace separated
// "lon,lat[,alt]" tuples. A missing altitude is 0. A closing vertex equal to
// the first one is dropped since rings are implicitly closed.
func ParseCoordinates(s string) (models.Ring, error) {
	fields := strings.Fields(s)
	ring := make(models.Ring, 0, len(fields))
	for _, tuple := range fields {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("invalid coordinate tuple %q", tuple)
		}
		var vals [3]float64
		for i, part := range parts {
			v, err := strconv.ParseFloat(part, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid coordinate tuple %q: %w", tuple, err)
			}
			vals[i] = v
		}
		ring = append(ring, models.Point3D{Lon: vals[0], Lat: vals[1], Alt: vals[2]})
	}
	if n := len(ring); n > 1 && ring[0] == ring[n-1] {
		ring = ring[:n-1]
	}
	return ring, nil
}
