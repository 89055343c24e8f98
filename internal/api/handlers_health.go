// handlers_health.go - Health check handlers
package api

import (
	"net/http"
	"time"

	"github.com/droneguard/backend/internal/zones"
	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version  string
	registry *zones.Registry
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, registry *zones.Registry) HealthHandler {
	return &HealthHandlerImpl{
		version:  version,
		registry: registry,
	}
}

// HandleHealth returns server health status. The service reports "degraded"
// until a zone set has been published.
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	status := "ok"
	var loadedAt *time.Time
	count := 0
	if snap := h.registry.Snapshot(); snap != nil {
		t := snap.LoadedAt
		loadedAt = &t
		count = snap.Set.Len()
	} else {
		status = "degraded"
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":        status,
		"version":       h.version,
		"zones":         count,
		"zonesLoadedAt": loadedAt,
	})
}
