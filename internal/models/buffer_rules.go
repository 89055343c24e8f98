package models

import "path"

// BufferRules assigns safety buffers to drones that report none.
// Overrides are evaluated in order; the first matching pattern wins.
type BufferRules struct {
	DefaultBuffer float64          `json:"defaultBuffer" yaml:"default_buffer"`
	Overrides     []BufferOverride `json:"overrides" yaml:"overrides"`
}

// BufferOverride maps a drone ID pattern (with * and ? wildcards) to a buffer in meters.
type BufferOverride struct {
	Pattern string  `json:"pattern" yaml:"pattern"`
	Buffer  float64 `json:"buffer" yaml:"buffer_meters"`
}

// BufferFor returns the buffer for droneID.
func (r *BufferRules) BufferFor(droneID string) float64 {
	if r == nil {
		return 0
	}
	for _, o := range r.Overrides {
		if ok, err := path.Match(o.Pattern, droneID); err == nil && ok {
			return o.Buffer
		}
	}
	return r.DefaultBuffer
}
