package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/droneguard/backend/internal/config"
	"github.com/droneguard/backend/internal/logging"
	"github.com/droneguard/backend/internal/metrics"
	"github.com/droneguard/backend/internal/testutil"
	"github.com/droneguard/backend/internal/tracks"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	e := echo.New()
	e.Use(RequestID())
	var seen string
	e.GET("/x", func(c echo.Context) error {
		seen = logging.RequestIDFromContext(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	})

	t.Run("generates an id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("keeps the caller's id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(echo.HeaderXRequestID, "abc-123")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", rec.Header().Get(echo.HeaderXRequestID))
	})
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewWithWriter(&buf, logging.Config{Level: "debug", Format: "json"})

	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(log, false)
	e.Use(RequestID())
	e.Use(RequestLogger(log, func(c echo.Context) bool { return c.Path() == "/skip" }))
	e.GET("/ok", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/missing", func(c echo.Context) error { return NewNotFoundError("route", "x") })
	e.GET("/skip", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for _, path := range []string{"/ok", "/missing", "/skip"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"status":200`)
	assert.Contains(t, lines[0], `"request_id"`)
	assert.Contains(t, lines[1], `"status":404`)
	assert.Contains(t, lines[1], `"level":"WARN"`)
}

func TestRoutesEndToEnd(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.EnableRequestLogging = false

	m, err := metrics.NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)
	store := testutil.NewMockTrackStore()

	e := echo.New()
	SetupMiddleware(e, cfg, logging.Noop(), m)
	RegisterRoutes(e, NewHandlers(&Dependencies{
		Registry:     newTestRegistry(t),
		ZoneFiles:    testutil.NewMockStorage(),
		Tracks:       store,
		Interpolator: tracks.NewInterpolator(store, 8, time.Minute),
		Metrics:      m,
		Interval:     2,
		Version:      "test",
	}))
	RegisterMetricsRoute(e, cfg.Metrics.Path, m)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodPost, "/api/collision/zones", `{"live":[{"id":"d1","lon":10.2,"lat":55.2,"alt":50}]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"d1":{"inside":true,"zone":"Alpha"}}`, rec.Body.String())

	rec = do(http.MethodPost, "/api/collision/drones", `{"live":[{"id":"a","lon":10,"lat":55,"alt":0,"buffer_radius":50},{"id":"b","lon":10,"lat":55,"alt":30}]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"a":[{"id":"b","distance":30}]}`, rec.Body.String())

	rec = do(http.MethodPost, "/api/fixes", `{"id":"d9","fixes":[{"time":1,"lon":10,"lat":55,"alt":0}]}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(http.MethodGet, "/api/routes/d9/0/10", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(http.MethodGet, "/api/routes/ghost/0/10/interpolated", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"NOT_FOUND"`)

	rec = do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{code="404",method="GET",path="/api/routes/:id/:start/:end/interpolated"} 1`)
}
