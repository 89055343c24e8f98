package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testZonesKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <name>Droneforbudszoner</name>
    <Folder>
      <name>Lufthavne</name>
      <Placemark>
        <name>Odense Lufthavn</name>
        <Polygon>
          <outerBoundaryIs>
            <LinearRing>
              <coordinates>
                10.30,55.46,120 10.36,55.46,120 10.36,55.49,120 10.30,55.49,120 10.30,55.46,120
              </coordinates>
            </LinearRing>
          </outerBoundaryIs>
          <innerBoundaryIs>
            <LinearRing><coordinates>10.32,55.47 10.33,55.47 10.33,55.48</coordinates></LinearRing>
          </innerBoundaryIs>
        </Polygon>
      </Placemark>
      <Placemark>
        <name>Marker</name>
        <Point><coordinates>10.0,55.0</coordinates></Point>
      </Placemark>
    </Folder>
    <Placemark>
      <name>Fængsler</name>
      <MultiGeometry>
        <Polygon><outerBoundaryIs><LinearRing><coordinates>12.0,55.0 12.1,55.0 12.1,55.1</coordinates></LinearRing></outerBoundaryIs></Polygon>
        <MultiGeometry>
          <Polygon><outerBoundaryIs><LinearRing><coordinates>13.0,56.0,50 13.1,56.0,50 13.1,56.1,50 13.0,56.1,50</coordinates></LinearRing></outerBoundaryIs></Polygon>
        </MultiGeometry>
      </MultiGeometry>
    </Placemark>
  </Document>
</kml>`

func TestParseZonesKML(t *testing.T) {
	specs, err := ParseZonesKML(strings.NewReader(testZonesKML))
	if err != nil {
		t.Fatalf("ParseZonesKML failed: %v", err)
	}

	if len(specs) != 2 {
		t.Fatalf("expected 2 zones, got %d", len(specs))
	}

	// Document placemarks come before those in nested folders.
	multi := specs[0]
	if multi.Name != "Fængsler" {
		t.Errorf("unexpected first zone name: %q", multi.Name)
	}
	if !multi.Multi {
		t.Error("expected MultiGeometry zone to be flagged multi")
	}
	if len(multi.Rings) != 2 {
		t.Fatalf("expected 2 rings, got %d", len(multi.Rings))
	}
	if multi.Rings[0][0].Alt != 0 {
		t.Errorf("expected missing altitude to default to 0, got %v", multi.Rings[0][0].Alt)
	}
	if multi.Rings[1][2].Alt != 50 {
		t.Errorf("expected nested ring altitude 50, got %v", multi.Rings[1][2].Alt)
	}

	airport := specs[1]
	if airport.Name != "Odense Lufthavn" {
		t.Errorf("unexpected zone name: %q", airport.Name)
	}
	if airport.Multi {
		t.Error("expected simple polygon")
	}
	if len(airport.Rings) != 1 {
		t.Fatalf("expected inner boundaries to be ignored, got %d rings", len(airport.Rings))
	}
	if len(airport.Rings[0]) != 4 {
		t.Errorf("expected closing vertex to be dropped, got %d vertices", len(airport.Rings[0]))
	}
	if got := airport.Rings[0][1]; got.Lon != 10.36 || got.Lat != 55.46 || got.Alt != 120 {
		t.Errorf("unexpected vertex: %+v", got)
	}
}

func TestParseZonesKML_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not xml", "this is not kml"},
		{"bad coordinate", `<kml><Placemark><name>X</name><Polygon><outerBoundaryIs><LinearRing><coordinates>1,2 a,b</coordinates></LinearRing></outerBoundaryIs></Polygon></Placemark></kml>`},
		{"too many components", `<kml><Placemark><name>X</name><Polygon><outerBoundaryIs><LinearRing><coordinates>1,2,3,4</coordinates></LinearRing></outerBoundaryIs></Polygon></Placemark></kml>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseZonesKML(strings.NewReader(tt.content)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestParseZonesKMLFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "zones.kml")
	if err := os.WriteFile(path, []byte(testZonesKML), 0644); err != nil {
		t.Fatal(err)
	}

	specs, err := ParseZonesKMLFile(path)
	if err != nil {
		t.Fatalf("ParseZonesKMLFile failed: %v", err)
	}
	if len(specs) != 2 {
		t.Errorf("expected 2 zones, got %d", len(specs))
	}

	if _, err := ParseZonesKMLFile(filepath.Join(tmpDir, "missing.kml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseCoordinates(t *testing.T) {
	ring, err := ParseCoordinates("\n\t1,2,3  4,5\n6,7,8\n")
	if err != nil {
		t.Fatalf("ParseCoordinates failed: %v", err)
	}
	if len(ring) != 3 {
		t.Fatalf("expected 3 vertices, got %d", len(ring))
	}
	if ring[1].Lon != 4 || ring[1].Lat != 5 || ring[1].Alt != 0 {
		t.Errorf("unexpected vertex: %+v", ring[1])
	}

	empty, err := ParseCoordinates("   ")
	if err != nil || len(empty) != 0 {
		t.Errorf("expected empty ring, got %v, %v", empty, err)
	}
}
