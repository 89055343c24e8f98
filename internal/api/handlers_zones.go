// handlers_zones.go - No-fly zone handlers
package api

import (
	"bytes"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/droneguard/backend/internal/geo"
	"github.com/droneguard/backend/internal/logging"
	"github.com/droneguard/backend/internal/storage"
	"github.com/droneguard/backend/internal/zones"
	"github.com/labstack/echo/v4"
)

// ZoneHandlerImpl implements the ZoneHandler interface
type ZoneHandlerImpl struct {
	registry  *zones.Registry
	refresher ZoneRefresher
	store     storage.Store
	log       logging.Logger
}

// NewZoneHandler creates a new zone handler. refresher may be nil when no
// zone source is configured.
func NewZoneHandler(registry *zones.Registry, refresher ZoneRefresher, store storage.Store, log logging.Logger) ZoneHandler {
	return &ZoneHandlerImpl{
		registry:  registry,
		refresher: refresher,
		store:     store,
		log:       log,
	}
}

type zoneListResponse struct {
	Count    int        `json:"count"`
	Names    []string   `json:"names"`
	Source   string     `json:"source,omitempty"`
	LoadedAt *time.Time `json:"loadedAt,omitempty"`
}

// HandleListZones returns the names of the active zones in set order
func (h *ZoneHandlerImpl) HandleListZones(c echo.Context) error {
	snap := h.registry.Snapshot()
	if snap == nil {
		return c.JSON(http.StatusOK, zoneListResponse{Names: []string{}})
	}
	loadedAt := snap.LoadedAt
	return c.JSON(http.StatusOK, zoneListResponse{
		Count:    snap.Set.Len(),
		Names:    snap.Set.Names(),
		Source:   snap.Source,
		LoadedAt: &loadedAt,
	})
}

// HandleExportZonesKML returns the active zones as a KML document
func (h *ZoneHandlerImpl) HandleExportZonesKML(c echo.Context) error {
	set := h.registry.Current()
	if set == nil {
		return NewServiceUnavailableError("no-fly zones not loaded", nil)
	}
	data, err := encodeZonesKML(set.Zones())
	if err != nil {
		return NewInternalError("failed to encode KML", err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="zones.kml"`)
	return c.Blob(http.StatusOK, kmlContentType, data)
}

type uploadZonesRequest struct {
	Name string `json:"name"`
	Data string `json:"data"` // Base64-encoded KML
}

func (r *uploadZonesRequest) validate() error {
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}

// HandleUploadZones stores an uploaded KML file and publishes it as the
// active zone set. Invalid geometry leaves the previous set in place.
func (h *ZoneHandlerImpl) HandleUploadZones(c echo.Context) error {
	var req uploadZonesRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	info, err := h.store.Save(req.Name, bytes.NewReader(decoded))
	if err != nil {
		return NewInternalError("failed to save zone file", err)
	}

	ctx := c.Request().Context()
	set, err := h.registry.LoadReader(bytes.NewReader(decoded), "upload:"+info.ID)
	if err != nil {
		_ = h.store.SetStatus(info.ID, storage.StatusError)
		h.log.Warn(ctx, "rejected zone upload", logging.String("file_id", info.ID), logging.Err(err))
		if errors.Is(err, geo.ErrInvalidGeometry) {
			return NewInvalidGeometryError(err)
		}
		return NewBadRequestError("invalid KML", err)
	}
	_ = h.store.SetStatus(info.ID, storage.StatusActive)
	info.Status = storage.StatusActive

	h.log.Info(ctx, "zones published from upload",
		logging.String("file_id", info.ID),
		logging.Int("zones", set.Len()))

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"file":  info,
		"zones": set.Len(),
	})
}

// HandleRefreshZones forces a download of the configured zone source
func (h *ZoneHandlerImpl) HandleRefreshZones(c echo.Context) error {
	if h.refresher == nil {
		return NewServiceUnavailableError("no zone source configured", nil)
	}
	result, err := h.refresher.Refresh(c.Request().Context(), true)
	if err != nil {
		if errors.Is(err, geo.ErrInvalidGeometry) {
			return NewInvalidGeometryError(err)
		}
		return NewServiceUnavailableError("zone refresh failed", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"result": result,
		"zones":  h.registry.Current().Len(),
	})
}

// HandleListZoneFiles returns the most recent uploaded zone files
func (h *ZoneHandlerImpl) HandleListZoneFiles(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = 20
	}
	files, err := h.store.List(limit)
	if err != nil {
		return NewInternalError("failed to list zone files", err)
	}
	return c.JSON(http.StatusOK, files)
}
