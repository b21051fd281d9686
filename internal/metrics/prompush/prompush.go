// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// Collectors are client_golang vectors registered on a private registry.
// Flush pushes that registry to a Pushgateway under the configured job name;
// the job label carried by metrics.Labels becomes the Pushgateway grouping
// key instead of a per-series label.
package prompush

import (
	"fmt"

	"himalaya/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec // step, status
	stepDuration *prometheus.SummaryVec // step, status

	rowCounter   *prometheus.CounterVec   // table
	cacheCounter *prometheus.CounterVec   // result
	reqCounter   *prometheus.CounterVec   // route, code
	reqDuration  *prometheus.HistogramVec // route, code
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name (usually the pipeline job).
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "himalaya"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.StepTotal,
				Help: "Pipeline stage executions, partitioned by step and status.",
			},
			[]string{"step", "status"},
		),
		stepDuration: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Name:       metrics.StepDuration,
				Help:       "Duration of pipeline stages in seconds.",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			},
			[]string{"step", "status"},
		),
		rowCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.RowsTotal,
				Help: "Rows produced per table or view.",
			},
			[]string{"table"},
		),
		cacheCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.CacheTotal,
				Help: "Record loader cache lookups by result (hit, miss).",
			},
			[]string{"result"},
		),
		reqCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.RequestTotal,
				Help: "JSON API requests by route and status code.",
			},
			[]string{"route", "code"},
		),
		reqDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metrics.RequestDuration,
				Help:    "JSON API request latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "code"},
		),
	}

	for name, c := range map[string]prometheus.Collector{
		"step counter":     b.stepCounter,
		"step summary":     b.stepDuration,
		"row counter":      b.rowCounter,
		"cache counter":    b.cacheCounter,
		"request counter":  b.reqCounter,
		"request duration": b.reqDuration,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter != nil {
			b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
		}
	case metrics.RowsTotal:
		if b.rowCounter != nil {
			b.rowCounter.WithLabelValues(labels["table"]).Add(delta)
		}
	case metrics.CacheTotal:
		if b.cacheCounter != nil {
			b.cacheCounter.WithLabelValues(labels["result"]).Add(delta)
		}
	case metrics.RequestTotal:
		if b.reqCounter != nil {
			b.reqCounter.WithLabelValues(labels["route"], labels["code"]).Add(delta)
		}
	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	switch name {
	case metrics.StepDuration:
		if b.stepDuration != nil {
			b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
		}
	case metrics.RequestDuration:
		if b.reqDuration != nil {
			b.reqDuration.WithLabelValues(labels["route"], labels["code"]).Observe(value)
		}
	}
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
