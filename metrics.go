package outfit

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the client-side request collectors.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	invalidations   prometheus.Counter
}

// NewMetrics registers the client collectors on reg. Clients sharing a
// registerer share the collectors registered by the first of them.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		requestsTotal: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outfit_client_requests_total",
				Help: "Total number of backend requests by endpoint and status class",
			},
			[]string{"endpoint", "status"},
		)),
		requestDuration: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "outfit_client_request_duration_seconds",
				Help:    "Backend request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		)),
		invalidations: register(reg, prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "outfit_client_session_invalidations_total",
				Help: "Sessions cleared after a 401 response",
			},
		)),
	}
}

// register adds c to reg, or returns the equal collector already there.
// Any other registration error is a programming mistake and panics, as
// promauto does.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	panic(err)
}

// observe records one request. status 0 means the request never got a
// response.
func (m *Metrics) observe(endpoint string, status int, d time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status/100) + "xx"
	}
	m.requestsTotal.WithLabelValues(endpoint, label).Inc()
	m.requestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *Metrics) sessionInvalidated() {
	if m == nil {
		return
	}
	m.invalidations.Inc()
}
