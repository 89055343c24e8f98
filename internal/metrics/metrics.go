// Package metrics bundles the Prometheus collectors of the service.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the HTTP and safety-check metrics. A nil *Collector is
// valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec

	ZonesLoaded            prometheus.Gauge
	ZoneRefreshes          *prometheus.CounterVec
	ZoneViolations         prometheus.Counter
	ProximityThreats       prometheus.Counter
	InterpolationFallbacks prometheus.Counter
}

// NewCollector registers all metrics against reg, defaulting to the global
// Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of handled HTTP requests, labeled by method, route and status code.",
	}, []string{"method", "path", "code"}), "http_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "path"}), "http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	zones, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "zones_loaded",
		Help: "Number of no-fly zones in the active zone set.",
	}), "zones_loaded")
	if err != nil {
		return nil, err
	}

	refreshes, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zone_refresh_total",
		Help: "Zone refresh attempts, labeled by result (downloaded, loaded, fresh, failed).",
	}, []string{"result"}), "zone_refresh_total")
	if err != nil {
		return nil, err
	}

	violations, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zone_violations_total",
		Help: "Drones found inside a no-fly zone.",
	}), "zone_violations_total")
	if err != nil {
		return nil, err
	}

	threats, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proximity_threats_total",
		Help: "Directional drone pairs found inside the first drone's safety buffer.",
	}), "proximity_threats_total")
	if err != nil {
		return nil, err
	}

	fallbacks, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "interpolation_fallbacks_total",
		Help: "Interpolation requests answered with the raw track because the fit failed.",
	}), "interpolation_fallbacks_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:               gatherer,
		HTTPRequests:           requests,
		HTTPDurations:          durations,
		ZonesLoaded:            zones,
		ZoneRefreshes:          refreshes,
		ZoneViolations:         violations,
		ProximityThreats:       threats,
		InterpolationFallbacks: fallbacks,
	}, nil
}

// Middleware records request counts and durations per registered route.
func (c *Collector) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if c == nil {
				return next(ctx)
			}
			start := time.Now()
			err := next(ctx)

			status := ctx.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if sc, ok := err.(interface{ StatusCode() int }); ok {
					status = sc.StatusCode()
				} else if status < 400 {
					status = http.StatusInternalServerError
				}
			}

			path := ctx.Path()
			if path == "" {
				path = "unmatched"
			}
			method := ctx.Request().Method
			c.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
			c.HTTPDurations.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) SetZonesLoaded(n int) {
	if c == nil {
		return
	}
	c.ZonesLoaded.Set(float64(n))
}

func (c *Collector) ObserveRefresh(result string) {
	if c == nil {
		return
	}
	c.ZoneRefreshes.WithLabelValues(result).Inc()
}

func (c *Collector) AddZoneViolations(n int) {
	if c == nil || n == 0 {
		return
	}
	c.ZoneViolations.Add(float64(n))
}

func (c *Collector) AddProximityThreats(n int) {
	if c == nil || n == 0 {
		return
	}
	c.ProximityThreats.Add(float64(n))
}

func (c *Collector) IncInterpolationFallback() {
	if c == nil {
		return
	}
	c.InterpolationFallbacks.Inc()
}

// register registers col, reusing an existing collector of the same type.
func register[T prometheus.Collector](reg prometheus.Registerer, col T, name string) (T, error) {
	if err := reg.Register(col); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return col, nil
}
