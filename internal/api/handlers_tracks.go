// handlers_tracks.go - Recorded fix and route handlers
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/droneguard/backend/internal/logging"
	"github.com/droneguard/backend/internal/metrics"
	"github.com/droneguard/backend/internal/models"
	"github.com/droneguard/backend/internal/parser"
	"github.com/droneguard/backend/internal/tracks"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// TrackHandlerImpl implements the TrackHandler interface
type TrackHandlerImpl struct {
	store           tracks.Store
	interpolator    *tracks.Interpolator
	defaultInterval int64
	feed            *parser.DroneFeedParser
	log             logging.Logger
	metrics         *metrics.Collector
}

// NewTrackHandler creates a new track handler
func NewTrackHandler(store tracks.Store, ip *tracks.Interpolator, defaultInterval int64, log logging.Logger, m *metrics.Collector) TrackHandler {
	if defaultInterval <= 0 {
		defaultInterval = 2
	}
	return &TrackHandlerImpl{
		store:           store,
		interpolator:    ip,
		defaultInterval: defaultInterval,
		feed:            parser.NewDroneFeedParser(),
		log:             log,
		metrics:         m,
	}
}

type ingestFixesRequest struct {
	ID    string              `json:"id"`
	Fixes []models.TrackPoint `json:"fixes"`
}

func (r *ingestFixesRequest) validate() error {
	if r.ID == "" {
		return NewValidationError("id")
	}
	if len(r.Fixes) == 0 {
		return NewValidationError("fixes")
	}
	return nil
}

type ingestFixesResponse struct {
	Stored int                  `json:"stored"`
	Drones int                  `json:"drones"`
	Errors []*models.ParseError `json:"errors,omitempty"`
}

// HandleIngestFixes stores fixes from either the CSV live feed (text/csv) or
// a JSON body {id, fixes:[{time,lon,lat,alt}]}
func (h *TrackHandlerImpl) HandleIngestFixes(c echo.Context) error {
	ctx := c.Request().Context()
	byDrone := make(map[string][]models.TimedFix)
	order := make([]string, 0)
	var parseErrs []*models.ParseError

	ct := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(ct, "text/csv") || strings.HasPrefix(ct, echo.MIMETextPlain) {
		records, errs, err := h.feed.Parse(c.Request().Body)
		if err != nil {
			return NewBadRequestError("failed to read feed", err)
		}
		parseErrs = errs
		for _, rec := range records {
			if _, ok := byDrone[rec.ID]; !ok {
				order = append(order, rec.ID)
			}
			byDrone[rec.ID] = append(byDrone[rec.ID], rec.TimedFix())
		}
	} else {
		var req ingestFixesRequest
		if err := c.Bind(&req); err != nil {
			return NewBadRequestError("invalid JSON body", err)
		}
		if err := req.validate(); err != nil {
			return err
		}
		order = append(order, req.ID)
		byDrone[req.ID] = models.TrackFromPoints(req.Fixes)
	}

	stored := 0
	for _, id := range order {
		fixes := byDrone[id]
		if err := h.store.AddFixes(ctx, id, fixes); err != nil {
			return NewInternalError("failed to store fixes", err)
		}
		h.interpolator.Invalidate(id)
		stored += len(fixes)
	}

	if len(parseErrs) > 0 {
		h.log.Warn(ctx, "feed lines rejected", logging.Int("rejected", len(parseErrs)), logging.Int("stored", stored))
	}

	return c.JSON(http.StatusOK, ingestFixesResponse{
		Stored: stored,
		Drones: len(order),
		Errors: parseErrs,
	})
}

// HandleListRoutes returns one summary per recorded drone
func (h *TrackHandlerImpl) HandleListRoutes(c echo.Context) error {
	routes, err := h.store.ListRoutes(c.Request().Context())
	if err != nil {
		return NewInternalError("failed to list routes", err)
	}
	return c.JSON(http.StatusOK, routes)
}

type routeParams struct {
	id         string
	start, end int64
}

func parseRouteParams(c echo.Context) (routeParams, error) {
	p := routeParams{id: c.Param("id")}
	if p.id == "" {
		return p, NewValidationError("id")
	}
	var err error
	if p.start, err = strconv.ParseInt(c.Param("start"), 10, 64); err != nil {
		return p, NewValidationError("start")
	}
	if p.end, err = strconv.ParseInt(c.Param("end"), 10, 64); err != nil {
		return p, NewValidationError("end")
	}
	if p.end < p.start {
		return p, NewValidationError("end")
	}
	return p, nil
}

type routeResponse struct {
	ID           string              `json:"id" msgpack:"id"`
	Start        int64               `json:"start" msgpack:"start"`
	End          int64               `json:"end" msgpack:"end"`
	Interval     int64               `json:"interval,omitempty" msgpack:"interval,omitempty"`
	Interpolated bool                `json:"interpolated" msgpack:"interpolated"`
	Points       []models.TrackPoint `json:"points" msgpack:"points"`
}

// HandleGetRoute returns the raw fixes of one drone between start and end
func (h *TrackHandlerImpl) HandleGetRoute(c echo.Context) error {
	p, err := parseRouteParams(c)
	if err != nil {
		return err
	}
	track, err := h.store.Track(c.Request().Context(), p.id, p.start, p.end)
	if err != nil {
		return fromDomainError(fmt.Sprintf("route not found: %s", p.id), err)
	}
	return c.JSON(http.StatusOK, routeResponse{
		ID:     p.id,
		Start:  p.start,
		End:    p.end,
		Points: track.Points(),
	})
}

func (h *TrackHandlerImpl) interpolated(c echo.Context) (*routeResponse, error) {
	p, err := parseRouteParams(c)
	if err != nil {
		return nil, err
	}
	interval := h.defaultInterval
	if q := c.QueryParam("interval"); q != "" {
		if interval, err = strconv.ParseInt(q, 10, 64); err != nil {
			return nil, NewValidationError("interval")
		}
	}
	if interval <= 0 {
		return nil, NewValidationError("interval")
	}

	ctx := c.Request().Context()
	res, err := h.interpolator.Interpolated(ctx, p.id, p.start, p.end, interval)
	if err != nil {
		return nil, fromDomainError(fmt.Sprintf("route not found: %s", p.id), err)
	}
	if res.Fallback {
		h.metrics.IncInterpolationFallback()
		h.log.Warn(ctx, "interpolation failed, returning raw fixes",
			logging.String("drone_id", p.id),
			logging.Err(res.Reason))
	}

	return &routeResponse{
		ID:           p.id,
		Start:        p.start,
		End:          p.end,
		Interval:     interval,
		Interpolated: res.Resampled,
		Points:       res.Track.Points(),
	}, nil
}

// HandleGetInterpolated returns the route resampled on a regular time grid.
// Routes that cannot be fitted are returned as recorded.
func (h *TrackHandlerImpl) HandleGetInterpolated(c echo.Context) error {
	resp, err := h.interpolated(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleGetInterpolatedMsgpack is HandleGetInterpolated in MessagePack format
func (h *TrackHandlerImpl) HandleGetInterpolatedMsgpack(c echo.Context) error {
	resp, err := h.interpolated(c)
	if err != nil {
		return err
	}
	data, err := msgpack.Marshal(resp)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleGetRouteKML returns the raw route as a KML LineString
func (h *TrackHandlerImpl) HandleGetRouteKML(c echo.Context) error {
	p, err := parseRouteParams(c)
	if err != nil {
		return err
	}
	track, err := h.store.Track(c.Request().Context(), p.id, p.start, p.end)
	if err != nil {
		if errors.Is(err, tracks.ErrNoFixes) {
			return NewNotFoundError("route", p.id)
		}
		return NewInternalError("failed to load route", err)
	}
	data, err := encodeTrackKML(p.id, track)
	if err != nil {
		return NewInternalError("failed to encode KML", err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="route_%s_%d_%d.kml"`, p.id, p.start, p.end))
	return c.Blob(http.StatusOK, kmlContentType, data)
}
