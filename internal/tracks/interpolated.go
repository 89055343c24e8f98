package tracks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/droneguard/backend/internal/geo"
	"github.com/droneguard/backend/internal/models"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

type trackKey struct {
	droneID    string
	start, end int64
	interval   int64
}

// Result is an interpolated route. Resampled is false when the route was too
// short to fit. Fallback is set when the spline could not be fitted and the
// raw fixes were returned instead.
type Result struct {
	Track     models.Track
	Resampled bool
	Fallback  bool
	Reason    error
}

// Interpolator resamples stored routes and caches the results.
type Interpolator struct {
	store Store
	cache *expirable.LRU[trackKey, Result]
}

func NewInterpolator(store Store, size int, ttl time.Duration) *Interpolator {
	if size <= 0 {
		size = 256
	}
	return &Interpolator{
		store: store,
		cache: expirable.NewLRU[trackKey, Result](size, nil, ttl),
	}
}

// Interpolated returns the fixes of droneID in [start, end] resampled every
// interval seconds. Tracks that cannot be fitted come back unchanged with
// Fallback set; an invalid interval is an error.
func (ip *Interpolator) Interpolated(ctx context.Context, droneID string, start, end, interval int64) (Result, error) {
	key := trackKey{droneID: droneID, start: start, end: end, interval: interval}
	if res, ok := ip.cache.Get(key); ok {
		return res, nil
	}

	raw, err := ip.store.Track(ctx, droneID, start, end)
	if err != nil {
		return Result{}, err
	}

	var res Result
	out, err := geo.Resample(raw, interval)
	switch {
	case err == nil:
		res = Result{Track: out, Resampled: len(raw) >= geo.MinResampleFixes}
	case errors.Is(err, geo.ErrInsufficientData):
		res = Result{Track: raw, Fallback: true, Reason: err}
	default:
		return Result{}, fmt.Errorf("resampling %s: %w", droneID, err)
	}

	ip.cache.Add(key, res)
	return res, nil
}

// Invalidate drops every cached result for droneID.
func (ip *Interpolator) Invalidate(droneID string) {
	for _, k := range ip.cache.Keys() {
		if k.droneID == droneID {
			ip.cache.Remove(k)
		}
	}
}

// Len reports the number of cached results.
func (ip *Interpolator) Len() int {
	return ip.cache.Len()
}
