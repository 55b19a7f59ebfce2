// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package metrics exposes Prometheus collectors for searches, manifest
// retrievals and upstream round trips.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/autobrr/nzbridge/internal/results"
)

// Manifest outcomes.
const (
	ManifestOK            = "ok"
	ManifestSample        = "sample"
	ManifestInvalidToken  = "invalid_token"
	ManifestUpstreamError = "upstream_error"
)

// Metrics is the set of collectors registered on one registry.
type Metrics struct {
	Registry *prometheus.Registry

	SearchRequestsTotal   *prometheus.CounterVec
	SearchDuration        *prometheus.HistogramVec
	PipelineRecordsTotal  *prometheus.CounterVec
	ManifestRequestsTotal *prometheus.CounterVec
	UpstreamRequestsTotal *prometheus.CounterVec
	UpstreamDuration      *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		SearchRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nzbridge_search_requests_total",
			Help: "Total number of feed searches by mode",
		}, []string{"mode"}),
		SearchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nzbridge_search_duration_seconds",
			Help:    "Time spent answering a feed search, upstream included",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode"}),
		PipelineRecordsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nzbridge_pipeline_records_total",
			Help: "Upstream records by pipeline outcome",
		}, []string{"outcome"}),
		ManifestRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nzbridge_manifest_requests_total",
			Help: "Total number of manifest retrievals by outcome",
		}, []string{"outcome"}),
		UpstreamRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nzbridge_upstream_requests_total",
			Help: "Upstream round trips by operation and status code",
		}, []string{"op", "status"}),
		UpstreamDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nzbridge_upstream_request_duration_seconds",
			Help:    "Upstream round trip latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"op"}),
	}
}

// ObserveSearch records one answered search and the fate of its records.
func (m *Metrics) ObserveSearch(mode string, stats results.Stats, elapsed time.Duration) {
	m.SearchRequestsTotal.WithLabelValues(mode).Inc()
	m.SearchDuration.WithLabelValues(mode).Observe(elapsed.Seconds())

	for outcome, n := range map[string]int{
		"malformed":  stats.Malformed,
		"undersized": stats.Undersized,
		"flagged":    stats.Flagged,
		"unmatched":  stats.Unmatched,
		"kept":       stats.Kept,
	} {
		if n > 0 {
			m.PipelineRecordsTotal.WithLabelValues(outcome).Add(float64(n))
		}
	}
}

// ObserveManifest records one manifest retrieval.
func (m *Metrics) ObserveManifest(outcome string) {
	m.ManifestRequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveUpstream implements easynews.RequestObserver. A zero status means the
// request never got a response.
func (m *Metrics) ObserveUpstream(op string, statusCode int, elapsed time.Duration) {
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	m.UpstreamRequestsTotal.WithLabelValues(op, status).Inc()
	m.UpstreamDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}
