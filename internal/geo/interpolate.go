package geo

import (
	"fmt"

	"github.com/droneguard/backend/internal/models"
)

// MinResampleFixes is the smallest track Resample will fit. Shorter tracks
// are returned as-is.
const MinResampleFixes = 4

// Resample fits a natural cubic spline through each coordinate of track as a
// function of time and samples it every intervalSeconds from the first
// timestamp. The last fix is always included, so the final gap is shorter
// than intervalSeconds when the span is not a multiple of it. The curve
// passes through every original fix.
//
// Tracks shorter than MinResampleFixes are returned as-is, whatever the
// interval.
func Resample(track models.Track, intervalSeconds int64) (models.Track, error) {
	if len(track) < MinResampleFixes {
		return track, nil
	}
	if intervalSeconds <= 0 {
		return nil, fmt.Errorf("interval %ds: %w", intervalSeconds, ErrInvalidInterval)
	}

	n := len(track)
	t0 := track[0].Timestamp
	ts := make([]float64, n)
	lon := make([]float64, n)
	lat := make([]float64, n)
	alt := make([]float64, n)
	for i, f := range track {
		if i > 0 && f.Timestamp <= track[i-1].Timestamp {
			return nil, fmt.Errorf("fix %d at t=%d does not follow t=%d: %w",
				i, f.Timestamp, track[i-1].Timestamp, ErrInsufficientData)
		}
		ts[i] = float64(f.Timestamp - t0)
		lon[i] = f.Position.Lon
		lat[i] = f.Position.Lat
		alt[i] = f.Position.Alt
	}

	sLon := newSpline(ts, lon)
	sLat := newSpline(ts, lat)
	sAlt := newSpline(ts, alt)

	last := track[n-1].Timestamp
	out := make(models.Track, 0, (last-t0)/intervalSeconds+2)
	seg := 0
	for t := t0; t <= last; t += intervalSeconds {
		x := float64(t - t0)
		for seg < n-2 && x > ts[seg+1] {
			seg++
		}
		out = append(out, models.TimedFix{
			Timestamp: t,
			Position: models.Point3D{
				Lon: sLon.at(seg, x),
				Lat: sLat.at(seg, x),
				Alt: sAlt.at(seg, x),
			},
		})
	}
	if out[len(out)-1].Timestamp != last {
		out = append(out, track[n-1])
	}
	return out, nil
}

// spline is a natural cubic spline; m holds the second derivatives at the knots.
type spline struct {
	x, y, m []float64
}

// newSpline solves the tridiagonal system for the knot second derivatives with
// m[0] = m[n-1] = 0. x must be strictly increasing.
func newSpline(x, y []float64) *spline {
	n := len(x)
	m := make([]float64, n)
	if n < 3 {
		return &spline{x: x, y: y, m: m}
	}

	// Thomas algorithm over the n-2 interior knots.
	c := make([]float64, n)
	d := make([]float64, n)
	for i := 1; i < n-1; i++ {
		h0 := x[i] - x[i-1]
		h1 := x[i+1] - x[i]
		a := h0
		b := 2 * (h0 + h1)
		r := 6 * ((y[i+1]-y[i])/h1 - (y[i]-y[i-1])/h0)
		if i > 1 {
			b -= a * c[i-1]
			r -= a * d[i-1]
		}
		c[i] = h1 / b
		d[i] = r / b
	}
	for i := n - 2; i >= 1; i-- {
		m[i] = d[i] - c[i]*m[i+1]
	}
	return &spline{x: x, y: y, m: m}
}

// at evaluates the spline on segment [x[i], x[i+1]].
func (s *spline) at(i int, v float64) float64 {
	if v == s.x[i] {
		return s.y[i]
	}
	if v == s.x[i+1] {
		return s.y[i+1]
	}
	h := s.x[i+1] - s.x[i]
	a := s.x[i+1] - v
	b := v - s.x[i]
	return s.m[i]*a*a*a/(6*h) + s.m[i+1]*b*b*b/(6*h) +
		(s.y[i]/h-s.m[i]*h/6)*a + (s.y[i+1]/h-s.m[i+1]*h/6)*b
}
