// Package metrics records Prometheus metrics for provisioning runs.
//
// A Recorder owns its registry so that concurrent test runs and batch
// invocations never collide on the global default registry. The CLI can
// dump the registry in the node_exporter textfile format after a run.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nodeseed"

// Recorder collects workflow, provider API and bootstrap metrics.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	workflowsTotal    *prometheus.CounterVec
	workflowDuration  *prometheus.HistogramVec
	apiCallsTotal     *prometheus.CounterVec
	apiLatency        *prometheus.HistogramVec
	addressPolls      prometheus.Histogram
	bootstrapAttempts *prometheus.HistogramVec
}

// NewRecorder creates a Recorder with a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		workflowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "runs_total",
				Help:      "Total number of provisioning workflows by final state",
			},
			[]string{"state"},
		),

		workflowDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "duration_seconds",
				Help:      "Duration of provisioning workflows in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34min
			},
			[]string{"state"},
		),

		apiCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "api_calls_total",
				Help:      "Total number of provider API calls by operation and result",
			},
			[]string{"operation", "result"},
		),

		apiLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "api_latency_seconds",
				Help:      "Latency of provider API calls in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
			},
			[]string{"operation"},
		),

		addressPolls: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "provisioner",
				Name:      "address_polls",
				Help:      "Number of polls until a node reported an address",
				Buckets:   prometheus.LinearBuckets(1, 2, 10),
			},
		),

		bootstrapAttempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "bootstrap",
				Name:      "connect_attempts",
				Help:      "Number of shell connection attempts per bootstrap by result",
				Buckets:   prometheus.LinearBuckets(1, 1, 10),
			},
			[]string{"result"},
		),
	}

	r.registry.MustRegister(
		r.workflowsTotal,
		r.workflowDuration,
		r.apiCallsTotal,
		r.apiLatency,
		r.addressPolls,
		r.bootstrapAttempts,
	)
	return r
}

// Registry exposes the underlying registry, e.g. for an HTTP handler.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RecordWorkflow records a finished workflow and its final state.
func (r *Recorder) RecordWorkflow(state string, duration time.Duration) {
	if r == nil {
		return
	}
	r.workflowsTotal.WithLabelValues(state).Inc()
	r.workflowDuration.WithLabelValues(state).Observe(duration.Seconds())
}

// RecordAPICall records a provider API call.
func (r *Recorder) RecordAPICall(operation string, err error, latency time.Duration) {
	if r == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	r.apiCallsTotal.WithLabelValues(operation, result).Inc()
	r.apiLatency.WithLabelValues(operation).Observe(latency.Seconds())
}

// RecordAddressPolls records how many polls a node needed to get an address.
func (r *Recorder) RecordAddressPolls(polls int) {
	if r == nil {
		return
	}
	r.addressPolls.Observe(float64(polls))
}

// RecordBootstrapAttempts records the number of connection attempts of a bootstrap.
func (r *Recorder) RecordBootstrapAttempts(attempts int, succeeded bool) {
	if r == nil {
		return
	}
	result := "failed"
	if succeeded {
		result = "succeeded"
	}
	r.bootstrapAttempts.WithLabelValues(result).Observe(float64(attempts))
}

// WriteTextfile writes all metrics to path in the Prometheus text format,
// atomically, for the node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
