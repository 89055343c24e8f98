package models

// DroneSnapshot is one live drone position in a point-in-time batch.
type DroneSnapshot struct {
	ID                 string  `json:"id"`
	Position           Point3D `json:"position"`
	SafetyBufferMeters float64 `json:"bufferRadius"`
}

// ZoneHit is the containment result for a single drone.
type ZoneHit struct {
	Inside bool    `json:"inside"`
	Zone   *string `json:"zone"`
}

// Threat is another drone found inside a drone's safety buffer.
type Threat struct {
	ID       string  `json:"id"`
	Distance float64 `json:"distance"`
}

// LiveDrone is the wire shape of a live drone in collision requests.
type LiveDrone struct {
	ID           string   `json:"id" msgpack:"id"`
	Lon          float64  `json:"lon" msgpack:"lon"`
	Lat          float64  `json:"lat" msgpack:"lat"`
	Alt          float64  `json:"alt" msgpack:"alt"`
	BufferRadius *float64 `json:"buffer_radius,omitempty" msgpack:"buffer_radius,omitempty"`
}
