// Package models contains domain types for the drone safety backend.
package models

// Point3D is a geographic position. Lon and Lat are degrees, Alt is meters.
type Point3D struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
	Alt float64 `json:"alt"`
}

// Ring is an implicitly closed sequence of vertices; the last vertex connects
// back to the first.
type Ring []Point3D

// ShapeKind distinguishes single-polygon zones from multi-polygon zones.
type ShapeKind string

const (
	ShapeSimple ShapeKind = "polygon"
	ShapeMulti  ShapeKind = "multipolygon"
)

// Shape is the geometry of a zone. A simple shape carries exactly one ring,
// a multi shape carries one or more disjoint rings.
type Shape struct {
	Kind  ShapeKind `json:"kind"`
	Rings []Ring    `json:"rings"`
}

// SimpleShape builds a single-ring shape.
func SimpleShape(r Ring) Shape {
	return Shape{Kind: ShapeSimple, Rings: []Ring{r}}
}

// MultiShape builds a multi-ring shape.
func MultiShape(rings ...Ring) Shape {
	return Shape{Kind: ShapeMulti, Rings: rings}
}

// Zone is a named no-fly area.
type Zone struct {
	Name  string `json:"name"`
	Shape Shape  `json:"shape"`
}

// ZoneSpec is unvalidated zone data as produced by a loader.
type ZoneSpec struct {
	Name  string `json:"name"`
	Multi bool   `json:"multi"`
	Rings []Ring `json:"rings"`
}
