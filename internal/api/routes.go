// routes.go - Route registration helpers
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/droneguard/backend/internal/config"
	"github.com/droneguard/backend/internal/logging"
	"github.com/droneguard/backend/internal/metrics"
	"github.com/droneguard/backend/internal/models"
	"github.com/droneguard/backend/internal/storage"
	"github.com/droneguard/backend/internal/tracks"
	"github.com/droneguard/backend/internal/zones"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Registry     *zones.Registry
	Refresher    ZoneRefresher
	ZoneFiles    storage.Store
	Tracks       tracks.Store
	Interpolator *tracks.Interpolator
	Buffers      *models.BufferRules
	Metrics      *metrics.Collector
	Logger       logging.Logger
	Interval     int64
	Version      string
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Zones     ZoneHandler
	Collision CollisionHandler
	Tracks    TrackHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	log := deps.Logger
	if log == nil {
		log = logging.Noop()
	}
	return &Handlers{
		Health:    NewHealthHandler(deps.Version, deps.Registry),
		Zones:     NewZoneHandler(deps.Registry, deps.Refresher, deps.ZoneFiles, log),
		Collision: NewCollisionHandler(deps.Registry, deps.Buffers, deps.Metrics),
		Tracks:    NewTrackHandler(deps.Tracks, deps.Interpolator, deps.Interval, log, deps.Metrics),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// No-fly zones
	apiGroup.GET("/zones", handlers.Zones.HandleListZones)
	apiGroup.GET("/zones/kml", handlers.Zones.HandleExportZonesKML)
	apiGroup.GET("/zones/files", handlers.Zones.HandleListZoneFiles)
	apiGroup.POST("/zones/upload", handlers.Zones.HandleUploadZones)
	apiGroup.POST("/zones/refresh", handlers.Zones.HandleRefreshZones)

	// Live collision checks
	apiGroup.POST("/collision/zones", handlers.Collision.HandleZoneCollisions)
	apiGroup.POST("/collision/drones", handlers.Collision.HandleDroneCollisions)

	// Recorded routes
	apiGroup.POST("/fixes", handlers.Tracks.HandleIngestFixes)
	apiGroup.GET("/routes", handlers.Tracks.HandleListRoutes)
	apiGroup.GET("/routes/:id/:start/:end", handlers.Tracks.HandleGetRoute)
	apiGroup.GET("/routes/:id/:start/:end/interpolated", handlers.Tracks.HandleGetInterpolated)
	apiGroup.GET("/routes/:id/:start/:end/interpolated/msgpack", handlers.Tracks.HandleGetInterpolatedMsgpack)
	apiGroup.GET("/routes/:id/:start/:end/kml", handlers.Tracks.HandleGetRouteKML)
}

// RegisterMetricsRoute exposes the Prometheus handler
func RegisterMetricsRoute(e *echo.Echo, path string, m *metrics.Collector) {
	if path == "" {
		path = "/metrics"
	}
	e.GET(path, echo.WrapHandler(m.Handler()))
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg *config.AppConfig, log logging.Logger, m *metrics.Collector) {
	e.HTTPErrorHandler = ErrorHandler(log, strings.EqualFold(cfg.Logging.Level, "debug"))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10,
	}))
	e.Use(RequestID())

	if cfg.Logging.EnableRequestLogging {
		e.Use(RequestLogger(log, func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/api/health" || path == cfg.Metrics.Path
		}))
	}
	if cfg.Metrics.Enabled {
		e.Use(m.Middleware())
	}

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper: func(c echo.Context) bool {
			return strings.HasSuffix(c.Request().URL.Path, "/refresh")
		},
		ErrorMessage: "Request timeout - query took too long",
	}))

	if cfg.Server.EnableGzip {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Skipper: func(c echo.Context) bool {
				return c.Request().URL.Path == cfg.Metrics.Path
			},
		}))
	}

	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderXRequestID},
		}))
	}
}
