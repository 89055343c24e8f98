package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/droneguard/backend/internal/logging"
	"github.com/droneguard/backend/internal/metrics"
	"github.com/droneguard/backend/internal/models"
	"github.com/droneguard/backend/internal/testutil"
	"github.com/droneguard/backend/internal/tracks"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type trackFixture struct {
	store   *testutil.MockTrackStore
	handler TrackHandler
	metrics *metrics.Collector
}

func newTrackFixture(t *testing.T) *trackFixture {
	t.Helper()
	m, err := metrics.NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)
	store := testutil.NewMockTrackStore()
	ip := tracks.NewInterpolator(store, 16, time.Minute)
	return &trackFixture{
		store:   store,
		handler: NewTrackHandler(store, ip, 2, logging.Noop(), m),
		metrics: m,
	}
}

func routeContext(target, id, start, end string) (echo.Context, *httptest.ResponseRecorder) {
	c, rec := newJSONContext(http.MethodGet, target, nil)
	c.SetParamNames("id", "start", "end")
	c.SetParamValues(id, start, end)
	return c, rec
}

func (f *trackFixture) seedLine(t *testing.T, id string) {
	t.Helper()
	fixes := models.Track{}
	for i := int64(0); i < 4; i++ {
		fixes = append(fixes, models.TimedFix{
			Timestamp: 100 + 10*i,
			Position:  models.Point3D{Lon: 10 + float64(i)*0.001, Lat: 55, Alt: float64(i) * 10},
		})
	}
	require.NoError(t, f.store.AddFixes(context.Background(), id, fixes))
}

func TestTrackHandler_HandleIngestFixes_CSV(t *testing.T) {
	f := newTrackFixture(t)
	feed := strings.Join([]string{
		"time_stamp,time,id,name,lat,lon,alt,acc,fix,lnk,eng,sim",
		"2018-03-22 10:56:06,1521712566,914,SDU drone,55.37,10.43,0.0,5,1,1,1,0",
		"2018-03-22 10:56:06,1521712566,915,Other,55.38,10.44,10.0,5,1,1,1,0",
		"2018-03-22 10:56:11,1521712571,914,SDU drone,55.38,10.43,100.0,5,1,1,1,0",
		"broken,line",
	}, "\n")

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/fixes", strings.NewReader(feed))
	req.Header.Set(echo.HeaderContentType, "text/csv")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, f.handler.HandleIngestFixes(c))
	var resp ingestFixesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Stored)
	assert.Equal(t, 2, resp.Drones)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, 5, resp.Errors[0].Line)

	assert.Equal(t, 2, f.store.FixCount("914"))
	assert.Equal(t, 1, f.store.FixCount("915"))
}

func TestTrackHandler_HandleIngestFixes_JSON(t *testing.T) {
	tests := []struct {
		name     string
		body     interface{}
		wantCode string
		stored   int
	}{
		{
			name: "valid",
			body: ingestFixesRequest{ID: "d1", Fixes: []models.TrackPoint{
				{Time: 1, Lon: 10, Lat: 55, Alt: 0},
				{Time: 2, Lon: 10.1, Lat: 55.1, Alt: 5},
			}},
			stored: 2,
		},
		{name: "missing id", body: ingestFixesRequest{Fixes: []models.TrackPoint{{Time: 1}}}, wantCode: "VALIDATION_ERROR"},
		{name: "no fixes", body: ingestFixesRequest{ID: "d1"}, wantCode: "VALIDATION_ERROR"},
		{name: "malformed", body: `{"id":`, wantCode: "BAD_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTrackFixture(t)
			c, rec := newJSONContext(http.MethodPost, "/api/fixes", tt.body)

			err := f.handler.HandleIngestFixes(c)
			if tt.wantCode != "" {
				requireAPIError(t, err, http.StatusBadRequest, tt.wantCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.stored, f.store.FixCount("d1"))
		})
	}
}

func TestTrackHandler_StoreFailure(t *testing.T) {
	f := newTrackFixture(t)
	f.store.AddErr = errors.New("disk full")
	c, _ := newJSONContext(http.MethodPost, "/api/fixes", ingestFixesRequest{ID: "d1", Fixes: []models.TrackPoint{{Time: 1}}})
	requireAPIError(t, f.handler.HandleIngestFixes(c), http.StatusInternalServerError, "INTERNAL_ERROR")
}

func TestTrackHandler_HandleListRoutes(t *testing.T) {
	f := newTrackFixture(t)
	f.seedLine(t, "d1")
	c, rec := newJSONContext(http.MethodGet, "/api/routes", nil)

	require.NoError(t, f.handler.HandleListRoutes(c))
	var routes []models.RouteSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &routes))
	require.Len(t, routes, 1)
	assert.Equal(t, "d1", routes[0].DroneID)
	assert.Equal(t, int64(100), routes[0].StartTime)
	assert.Equal(t, int64(130), routes[0].EndTime)
	assert.Equal(t, 4, routes[0].FixCount)
}

func TestTrackHandler_HandleGetRoute(t *testing.T) {
	f := newTrackFixture(t)
	f.seedLine(t, "d1")

	tests := []struct {
		name       string
		id         string
		start, end string
		wantStatus int
		wantCode   string
		wantPoints int
	}{
		{name: "full range", id: "d1", start: "0", end: "1000", wantStatus: http.StatusOK, wantPoints: 4},
		{name: "partial range", id: "d1", start: "105", end: "120", wantStatus: http.StatusOK, wantPoints: 2},
		{name: "unknown drone", id: "ghost", start: "0", end: "1000", wantStatus: http.StatusNotFound, wantCode: "NOT_FOUND"},
		{name: "bad start", id: "d1", start: "abc", end: "1000", wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR"},
		{name: "end before start", id: "d1", start: "500", end: "100", wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := routeContext("/api/routes", tt.id, tt.start, tt.end)
			err := f.handler.HandleGetRoute(c)
			if tt.wantCode != "" {
				requireAPIError(t, err, tt.wantStatus, tt.wantCode)
				return
			}
			require.NoError(t, err)
			var resp routeResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Interpolated)
			assert.Len(t, resp.Points, tt.wantPoints)
		})
	}
}

func TestTrackHandler_HandleGetInterpolated(t *testing.T) {
	t.Run("resamples on the default interval", func(t *testing.T) {
		f := newTrackFixture(t)
		f.seedLine(t, "d1")
		c, rec := routeContext("/api/routes/d1/0/1000/interpolated", "d1", "0", "1000")

		require.NoError(t, f.handler.HandleGetInterpolated(c))
		var resp routeResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Interpolated)
		assert.Equal(t, int64(2), resp.Interval)
		require.Len(t, resp.Points, 16)
		assert.Equal(t, int64(100), resp.Points[0].Time)
		assert.Equal(t, int64(130), resp.Points[15].Time)
		assert.InDelta(t, 16.0, resp.Points[8].Alt, 1e-9)
	})

	t.Run("interval query parameter", func(t *testing.T) {
		f := newTrackFixture(t)
		f.seedLine(t, "d1")
		c, rec := routeContext("/api/routes/d1/0/1000/interpolated?interval=10", "d1", "0", "1000")

		require.NoError(t, f.handler.HandleGetInterpolated(c))
		var resp routeResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.Points, 4)
	})

	t.Run("invalid interval", func(t *testing.T) {
		f := newTrackFixture(t)
		f.seedLine(t, "d1")
		for _, q := range []string{"0", "-3", "x"} {
			c, _ := routeContext("/api/routes/d1/0/1000/interpolated?interval="+q, "d1", "0", "1000")
			requireAPIError(t, f.handler.HandleGetInterpolated(c), http.StatusBadRequest, "VALIDATION_ERROR")
		}

		require.NoError(t, f.store.AddFixes(context.Background(), "short", []models.TimedFix{{Timestamp: 1}}))
		c, _ := routeContext("/api/routes/short/0/10/interpolated?interval=0", "short", "0", "10")
		requireAPIError(t, f.handler.HandleGetInterpolated(c), http.StatusBadRequest, "VALIDATION_ERROR")
	})

	t.Run("duplicate timestamps fall back to raw fixes", func(t *testing.T) {
		f := newTrackFixture(t)
		fixes := []models.TimedFix{
			{Timestamp: 1, Position: models.Point3D{Lon: 10}},
			{Timestamp: 2, Position: models.Point3D{Lon: 10.1}},
			{Timestamp: 2, Position: models.Point3D{Lon: 10.2}},
			{Timestamp: 5, Position: models.Point3D{Lon: 10.3}},
		}
		require.NoError(t, f.store.AddFixes(context.Background(), "dup", fixes))
		c, rec := routeContext("/x", "dup", "0", "10")

		require.NoError(t, f.handler.HandleGetInterpolated(c))
		var resp routeResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Interpolated)
		assert.Len(t, resp.Points, 4)
		assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.InterpolationFallbacks))
	})

	t.Run("too few fixes come back unchanged", func(t *testing.T) {
		f := newTrackFixture(t)
		require.NoError(t, f.store.AddFixes(context.Background(), "short", []models.TimedFix{{Timestamp: 1}, {Timestamp: 9}}))
		c, rec := routeContext("/x", "short", "0", "10")

		require.NoError(t, f.handler.HandleGetInterpolated(c))
		var resp routeResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Interpolated)
		assert.Len(t, resp.Points, 2)
		assert.Equal(t, 0.0, promtest.ToFloat64(f.metrics.InterpolationFallbacks))
	})
}

func TestTrackHandler_HandleGetInterpolatedMsgpack(t *testing.T) {
	f := newTrackFixture(t)
	f.seedLine(t, "d1")
	c, rec := routeContext("/x", "d1", "0", "1000")

	require.NoError(t, f.handler.HandleGetInterpolatedMsgpack(c))
	assert.Equal(t, "application/msgpack", rec.Header().Get("Content-Type"))

	var resp routeResponse
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "d1", resp.ID)
	assert.Len(t, resp.Points, 16)
}

func TestTrackHandler_HandleGetRouteKML(t *testing.T) {
	f := newTrackFixture(t)
	f.seedLine(t, "d1")

	c, rec := routeContext("/x", "d1", "0", "1000")
	require.NoError(t, f.handler.HandleGetRouteKML(c))
	assert.Equal(t, kmlContentType, rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "<LineString>")
	assert.Contains(t, body, "<name>d1</name>")

	c, _ = routeContext("/x", "ghost", "0", "1000")
	requireAPIError(t, f.handler.HandleGetRouteKML(c), http.StatusNotFound, "NOT_FOUND")
}
