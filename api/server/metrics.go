// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package server

import (
	"net/http"
	"time"

	"github.com/luxfi/metric"
	"github.com/luxfi/utils/wrappers"
)

var routeLabels = []string{"method", "endpoint"}

type serverMetrics struct {
	requests    metric.CounterVec
	durationSum metric.GaugeVec
	inflight    metric.Gauge
}

func newMetrics(registerer metric.Registerer) (*serverMetrics, error) {
	m := &serverMetrics{
		requests: metric.NewCounterVec(
			metric.CounterOpts{
				Name: "api_requests_total",
				Help: "Total number of API requests",
			},
			routeLabels,
		),
		durationSum: metric.NewGaugeVec(
			metric.GaugeOpts{
				Name: "api_request_duration_sum",
				Help: "Time (in ns) spent serving API requests",
			},
			routeLabels,
		),
		inflight: metric.NewGauge(metric.GaugeOpts{
			Name: "api_requests_inflight",
			Help: "Number of inflight API requests",
		}),
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(metric.AsCollector(m.requests)),
		registerer.Register(metric.AsCollector(m.durationSum)),
		registerer.Register(metric.AsCollector(m.inflight)),
	)
	return m, errs.Err
}

func (m *serverMetrics) wrapHandler(endpoint string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		labels := metric.Labels{
			"method":   r.Method,
			"endpoint": endpoint,
		}
		m.requests.With(labels).Inc()
		m.inflight.Inc()
		defer m.inflight.Dec()

		start := time.Now()
		handler.ServeHTTP(w, r)
		m.durationSum.With(labels).Add(float64(time.Since(start)))
	})
}
