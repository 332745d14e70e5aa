package transport

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	requests  *prometheus.CounterVec
	retries   *prometheus.CounterVec
	refreshes *prometheus.CounterVec
	pending   prometheus.Gauge
}

// newMetrics registers the transport collectors on reg; a nil reg leaves them unregistered
func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paneld_transport_requests_total",
				Help: "Logical API requests by final outcome",
			},
			[]string{"method", "outcome"},
		),
		retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paneld_transport_retries_total",
				Help: "Retries of transient (network or 5xx) failures",
			},
			[]string{"method"},
		),
		refreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paneld_transport_refreshes_total",
				Help: "Session refresh calls by result",
			},
			[]string{"result"},
		),
		pending: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "paneld_transport_pending_requests",
				Help: "Requests waiting on the in-flight session refresh",
			},
		),
	}
}

func (m *metrics) observe(method string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		var terr *Error
		if errors.As(err, &terr) {
			outcome = terr.Kind.String()
		}
	}
	m.requests.WithLabelValues(method, outcome).Inc()
}
