// handlers_collision.go - Live collision check handlers
package api

import (
	"fmt"
	"net/http"

	"github.com/droneguard/backend/internal/geo"
	"github.com/droneguard/backend/internal/metrics"
	"github.com/droneguard/backend/internal/models"
	"github.com/droneguard/backend/internal/zones"
	"github.com/labstack/echo/v4"
)

// CollisionHandlerImpl implements the CollisionHandler interface
type CollisionHandlerImpl struct {
	registry *zones.Registry
	buffers  *models.BufferRules
	metrics  *metrics.Collector
}

// NewCollisionHandler creates a new collision handler. buffers supplies the
// safety buffer for drones that report none and may be nil.
func NewCollisionHandler(registry *zones.Registry, buffers *models.BufferRules, m *metrics.Collector) CollisionHandler {
	return &CollisionHandlerImpl{
		registry: registry,
		buffers:  buffers,
		metrics:  m,
	}
}

type collisionRequest struct {
	Live []models.LiveDrone `json:"live"`
}

func (r *collisionRequest) validate() error {
	if r.Live == nil {
		return NewValidationError("live")
	}
	for i, d := range r.Live {
		if d.ID == "" {
			return NewValidationError(fmt.Sprintf("live[%d].id", i))
		}
		if d.BufferRadius != nil && *d.BufferRadius < 0 {
			return NewValidationError(fmt.Sprintf("live[%d].buffer_radius", i))
		}
	}
	return nil
}

func (h *CollisionHandlerImpl) snapshots(live []models.LiveDrone) []models.DroneSnapshot {
	out := make([]models.DroneSnapshot, len(live))
	for i, d := range live {
		buffer := h.buffers.BufferFor(d.ID)
		if d.BufferRadius != nil {
			buffer = *d.BufferRadius
		}
		out[i] = models.DroneSnapshot{
			ID:                 d.ID,
			Position:           models.Point3D{Lon: d.Lon, Lat: d.Lat, Alt: d.Alt},
			SafetyBufferMeters: buffer,
		}
	}
	return out
}

func bindCollisionRequest(c echo.Context) (*collisionRequest, error) {
	var req collisionRequest
	if err := c.Bind(&req); err != nil {
		return nil, NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// HandleZoneCollisions reports, per drone, the first no-fly zone containing it
func (h *CollisionHandlerImpl) HandleZoneCollisions(c echo.Context) error {
	req, err := bindCollisionRequest(c)
	if err != nil {
		return err
	}
	if h.registry.Current() == nil {
		return NewServiceUnavailableError("no-fly zones not loaded", nil)
	}
	return c.JSON(http.StatusOK, h.registry.CheckZones(h.snapshots(req.Live)))
}

// HandleDroneCollisions reports, per drone, the other drones inside its own
// safety buffer. Drones without threats are omitted.
func (h *CollisionHandlerImpl) HandleDroneCollisions(c echo.Context) error {
	req, err := bindCollisionRequest(c)
	if err != nil {
		return err
	}
	threats := geo.Detect(h.snapshots(req.Live))
	total := 0
	for _, t := range threats {
		total += len(t)
	}
	h.metrics.AddProximityThreats(total)
	return c.JSON(http.StatusOK, threats)
}
