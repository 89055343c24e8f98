// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"
)

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// ZoneHandler handles no-fly zone operations
type ZoneHandler interface {
	HandleListZones(c echo.Context) error
	HandleExportZonesKML(c echo.Context) error
	HandleUploadZones(c echo.Context) error
	HandleRefreshZones(c echo.Context) error
	HandleListZoneFiles(c echo.Context) error
}

// CollisionHandler handles live collision checks
type CollisionHandler interface {
	HandleZoneCollisions(c echo.Context) error
	HandleDroneCollisions(c echo.Context) error
}

// TrackHandler handles recorded fixes and routes
type TrackHandler interface {
	HandleIngestFixes(c echo.Context) error
	HandleListRoutes(c echo.Context) error
	HandleGetRoute(c echo.Context) error
	HandleGetInterpolated(c echo.Context) error
	HandleGetInterpolatedMsgpack(c echo.Context) error
	HandleGetRouteKML(c echo.Context) error
}

// ZoneRefresher re-downloads and republishes the zone file.
// This allows mocking in tests
type ZoneRefresher interface {
	Refresh(ctx context.Context, force bool) (string, error)
}
