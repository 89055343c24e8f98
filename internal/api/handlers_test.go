package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/droneguard/backend/internal/geo"
	"github.com/droneguard/backend/internal/logging"
	"github.com/droneguard/backend/internal/models"
	"github.com/droneguard/backend/internal/tracks"
	"github.com/droneguard/backend/internal/zones"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testZoneKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2"><Document>
  <Placemark><name>Odense Lufthavn</name>
    <Polygon><outerBoundaryIs><LinearRing>
      <coordinates>10,55,120 11,55,120 11,56,120 10,56,120 10,55,120</coordinates>
    </LinearRing></outerBoundaryIs></Polygon>
  </Placemark>
  <Placemark><name>Fængsler</name>
    <MultiGeometry>
      <Polygon><outerBoundaryIs><LinearRing><coordinates>12,55,50 12.5,55,50 12.5,55.5,50</coordinates></LinearRing></outerBoundaryIs></Polygon>
      <Polygon><outerBoundaryIs><LinearRing><coordinates>13,56,50 13.5,56,50 13.5,56.5,50</coordinates></LinearRing></outerBoundaryIs></Polygon>
    </MultiGeometry>
  </Placemark>
</Document></kml>`

func square(lon, lat, size, alt float64) models.Ring {
	return models.Ring{
		{Lon: lon, Lat: lat, Alt: alt},
		{Lon: lon + size, Lat: lat, Alt: alt},
		{Lon: lon + size, Lat: lat + size, Alt: alt},
		{Lon: lon, Lat: lat + size, Alt: alt},
	}
}

// newTestRegistry publishes two zones: "Alpha" covering lon/lat 10..11 and
// "Beta" covering 10.5..11.5 at altitudes up to 120 m.
func newTestRegistry(t *testing.T) *zones.Registry {
	t.Helper()
	set, err := geo.Build([]models.ZoneSpec{
		{Name: "Alpha", Rings: []models.Ring{square(10, 55, 1, 120)}},
		{Name: "Beta", Rings: []models.Ring{square(10.5, 55.5, 1, 120)}},
	})
	require.NoError(t, err)
	reg := zones.NewRegistry(nil)
	reg.Swap(set, "test")
	return reg
}

func newJSONContext(method, target string, body interface{}) (echo.Context, *httptest.ResponseRecorder) {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	e := echo.New()
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func requireAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %T", err)
	assert.Equal(t, status, apiErr.Status)
	assert.Equal(t, code, apiErr.Code)
}

func TestHealthHandler(t *testing.T) {
	t.Run("degraded before zones load", func(t *testing.T) {
		h := NewHealthHandler("test", zones.NewRegistry(nil))
		c, rec := newJSONContext(http.MethodGet, "/api/health", nil)

		require.NoError(t, h.HandleHealth(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
	})

	t.Run("ok with zones", func(t *testing.T) {
		h := NewHealthHandler("1.2.3", newTestRegistry(t))
		c, rec := newJSONContext(http.MethodGet, "/api/health", nil)

		require.NoError(t, h.HandleHealth(c))
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, "1.2.3", body["version"])
		assert.Equal(t, 2.0, body["zones"])
	})
}

func TestFromDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid geometry", fmt.Errorf("zone x: %w", geo.ErrInvalidGeometry), http.StatusUnprocessableEntity, "INVALID_GEOMETRY"},
		{"invalid interval", geo.ErrInvalidInterval, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"no fixes", fmt.Errorf("d1: %w", tracks.ErrNoFixes), http.StatusNotFound, "NOT_FOUND"},
		{"api error passes through", NewValidationError("id"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := fromDomainError("msg", tt.err)
			assert.Equal(t, tt.wantStatus, apiErr.Status)
			assert.Equal(t, tt.wantCode, apiErr.Code)
		})
	}
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		expose      bool
		wantStatus  int
		wantCode    string
		wantDetails bool
	}{
		{"api error", NewNotFoundError("route", "d1"), false, http.StatusNotFound, "NOT_FOUND", false},
		{"echo error", echo.NewHTTPError(http.StatusMethodNotAllowed, "nope"), false, http.StatusMethodNotAllowed, "HTTP_ERROR", false},
		{"unknown hidden", errors.New("boom"), false, http.StatusInternalServerError, "UNKNOWN_ERROR", false},
		{"unknown exposed", errors.New("boom"), true, http.StatusInternalServerError, "UNKNOWN_ERROR", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newJSONContext(http.MethodGet, "/api/x", nil)
			ErrorHandler(logging.Noop(), tt.expose)(tt.err, c)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body APIError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantDetails, body.Details != "")
		})
	}
}

type stubRefresher struct {
	result string
	err    error
	calls  int
	force  bool
}

func (s *stubRefresher) Refresh(_ context.Context, force bool) (string, error) {
	s.calls++
	s.force = force
	return s.result, s.err
}
