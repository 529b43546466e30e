package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	registry *prometheus.Registry

	// requests counts handled requests by route pattern, method and status code.
	requests *prometheus.CounterVec
	// rankDuration tracks how long a single employer ranking takes.
	rankDuration prometheus.Histogram
	// candidatesReceived counts employees submitted for ranking, before
	// filters drop any of them.
	candidatesReceived prometheus.Counter
}

// newMetrics registers collectors on a registry owned by one server, so
// several servers can coexist in a process.
func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)

	return &metrics{
		registry: reg,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matchmaker_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route", "method", "code"},
		),
		rankDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "matchmaker_rank_duration_seconds",
				Help:    "Duration of ranking one employer in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
		candidatesReceived: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "matchmaker_candidates_received_total",
				Help: "Total number of employees received for ranking",
			},
		),
	}
}
