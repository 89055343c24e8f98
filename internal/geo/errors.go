package geo

import "errors"

var (
	// ErrInvalidGeometry is returned when a zone ring cannot form a polygon.
	ErrInvalidGeometry = errors.New("invalid geometry")

	// ErrInsufficientData is returned when a track cannot be fitted, for
	// example because two fixes share a timestamp.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidInterval is returned for a non-positive resampling interval.
	ErrInvalidInterval = errors.New("invalid interval")
)
