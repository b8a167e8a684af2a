// Package metrics defines the Prometheus instruments of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "radio_slots"

// Metrics holds the collectors.  A nil *Metrics is valid and records
// nothing, so components can be built without instrumentation.
type Metrics struct {
	RequestCounter  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RollupDuration  prometheus.Histogram
	RollupCells     prometheus.Counter
	RollupInputs    prometheus.Histogram
	Confirmations   *prometheus.CounterVec
	EventsPublished *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors with reg.  Pass prometheus.NewRegistry()
// in tests to avoid clashing with the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{
		RequestCounter: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		RollupDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rollup_duration_seconds",
			Help:      "Time spent building one rollup, storage reads included",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		RollupCells: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollup_cells_scanned_total",
			Help:      "Occupied cells visited by rollups",
		}),
		RollupInputs: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rollup_reservations",
			Help:      "Reservations fetched per rollup",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		Confirmations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_confirmed_total",
			Help:      "Reservation confirmations by outcome",
		}, []string{"outcome"}),
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events handed to the broker by outcome",
		}, []string{"event", "outcome"}),
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// ObserveRollup records one finished rollup.
func (m *Metrics) ObserveRollup(d time.Duration, reservations, cells int) {
	if m == nil {
		return
	}
	m.RollupDuration.Observe(d.Seconds())
	m.RollupInputs.Observe(float64(reservations))
	m.RollupCells.Add(float64(cells))
}

// Confirmed counts a confirmation attempt; outcome is "ok", "invalid" or
// "error".
func (m *Metrics) Confirmed(outcome string) {
	if m == nil {
		return
	}
	m.Confirmations.WithLabelValues(outcome).Inc()
}

// Published counts an event publish attempt.
func (m *Metrics) Published(event string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.EventsPublished.WithLabelValues(event, outcome).Inc()
}

// Middleware records request counts and latency per route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if m == nil {
			return next
		}
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			method := c.Request().Method
			m.RequestCounter.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
