// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the himalaya pipeline and its JSON API.
//
// A global, pluggable backend defaults to a no-op implementation, so the
// Record* helpers are always safe to call. Concrete systems live in
// subpackages (prompush, datadog) so the core never imports them.
package metrics

import (
	"strconv"
	"time"
)

// Metric names shared by every backend.
const (
	StepTotal       = "himalaya_step_total"
	StepDuration    = "himalaya_step_duration_seconds"
	RowsTotal       = "himalaya_rows_total"
	CacheTotal      = "himalaya_cache_total"
	RequestTotal    = "himalaya_http_requests_total"
	RequestDuration = "himalaya_http_request_duration_seconds"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing
// backend. Call it once at startup, before any Record* call.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep measures latency and success/failure of one pipeline stage
// (load, select, join, reorder, topn, derive, aggregate).
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow adds the row count of a produced table, labeled by table name
// (peaks, expeditions, combined, top, or a view name).
func RecordRow(job, table string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RowsTotal, float64(delta), Labels{
		"job":   job,
		"table": table,
	})
}

// RecordCache counts loader cache lookups; result is "hit" or "miss".
func RecordCache(job, result string) {
	backend.IncCounter(CacheTotal, 1, Labels{
		"job":    job,
		"result": result,
	})
}

// RecordRequest counts one API request and its latency.
func RecordRequest(job, route string, status int, d time.Duration) {
	lbls := Labels{
		"job":   job,
		"route": route,
		"code":  strconv.Itoa(status),
	}
	backend.IncCounter(RequestTotal, 1, lbls)
	backend.ObserveHistogram(RequestDuration, d.Seconds(), lbls)
}
