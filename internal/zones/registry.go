// Package zones holds the active no-fly zone set and keeps it up to date.
package zones

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/droneguard/backend/internal/geo"
	"github.com/droneguard/backend/internal/metrics"
	"github.com/droneguard/backend/internal/models"
	"github.com/droneguard/backend/internal/parser"
)

// Snapshot is one published zone set together with where it came from.
type Snapshot struct {
	Set      *geo.ZoneSet
	Source   string
	LoadedAt time.Time
}

// Registry publishes the active zone set. Readers take one snapshot per batch
// and never block; a refresh replaces the whole snapshot.
type Registry struct {
	current atomic.Pointer[Snapshot]
	metrics *metrics.Collector
}

func NewRegistry(m *metrics.Collector) *Registry {
	return &Registry{metrics: m}
}

// Current returns the active zone set, or nil before the first load.
func (r *Registry) Current() *geo.ZoneSet {
	if s := r.current.Load(); s != nil {
		return s.Set
	}
	return nil
}

// Snapshot returns the active snapshot, or nil before the first load.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// Swap publishes set as the active zone set.
func (r *Registry) Swap(set *geo.ZoneSet, source string) {
	r.current.Store(&Snapshot{Set: set, Source: source, LoadedAt: time.Now()})
	r.metrics.SetZonesLoaded(set.Len())
}

// LoadFile parses a KML file and publishes it. On error the active set is
// left untouched.
func (r *Registry) LoadFile(path string) (*geo.ZoneSet, error) {
	specs, err := parser.ParseZonesKMLFile(path)
	if err != nil {
		return nil, err
	}
	return r.publish(specs, path)
}

// LoadReader is LoadFile for an in-memory document.
func (r *Registry) LoadReader(rd io.Reader, source string) (*geo.ZoneSet, error) {
	specs, err := parser.ParseZonesKML(rd)
	if err != nil {
		return nil, err
	}
	return r.publish(specs, source)
}

func (r *Registry) publish(specs []models.ZoneSpec, source string) (*geo.ZoneSet, error) {
	set, err := geo.Build(specs)
	if err != nil {
		return nil, fmt.Errorf("building zones from %s: %w", source, err)
	}
	r.Swap(set, source)
	return set, nil
}

// CheckZones locates every drone against a single snapshot.
func (r *Registry) CheckZones(drones []models.DroneSnapshot) map[string]models.ZoneHit {
	hits := geo.CheckZones(r.Current(), drones)
	inside := 0
	for _, h := range hits {
		if h.Inside {
			inside++
		}
	}
	r.metrics.AddZoneViolations(inside)
	return hits
}

// Locate checks a single position.
func (r *Registry) Locate(p models.Point3D) (*models.Zone, bool) {
	return geo.Locate(r.Current(), p)
}
