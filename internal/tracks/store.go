// Package tracks persists drone fixes and serves per-drone routes.
package tracks

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/droneguard/backend/internal/models"
)

// ErrNoFixes is returned when a route query matches nothing.
var ErrNoFixes = errors.New("no fixes in range")

// Store is the persistence boundary for recorded fixes.
type Store interface {
	AddFixes(ctx context.Context, droneID string, fixes []models.TimedFix) error
	ListRoutes(ctx context.Context) ([]models.RouteSummary, error)
	// Track returns the fixes of droneID with start <= time <= end, ordered by time.
	Track(ctx context.Context, droneID string, start, end int64) (models.Track, error)
	Close() error
}

// Driver names accepted by Open.
const (
	DriverDuckDB   = "duckdb"
	DriverPostgres = "postgres"
)

// Options configures Open.
type Options struct {
	Driver      string
	DSN         string
	Threads     int
	MemoryLimit string
}

// Open returns the Store for opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverPostgres:
		return NewPgStore(ctx, opts.DSN)
	case DriverDuckDB, "":
		return NewDuckStore(opts.DSN, DuckOptions{Threads: opts.Threads, MemoryLimit: opts.MemoryLimit})
	default:
		return nil, errors.New("unknown track driver: " + opts.Driver)
	}
}

// NewRouteSummary fills the derived fields of a route.
func NewRouteSummary(droneID string, start, end int64, count int) models.RouteSummary {
	st := time.Unix(start, 0).UTC()
	et := time.Unix(end, 0).UTC()
	return models.RouteSummary{
		DroneID:        droneID,
		StartTime:      start,
		EndTime:        end,
		StartTimestamp: st,
		EndTimestamp:   et,
		Duration:       et.Sub(st).String(),
		FixCount:       count,
	}
}

func sortRoutes(routes []models.RouteSummary) {
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].DroneID != routes[j].DroneID {
			return routes[i].DroneID < routes[j].DroneID
		}
		return routes[i].StartTime < routes[j].StartTime
	})
}
