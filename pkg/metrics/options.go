package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Option tunes a Manager before its collectors are registered.
type Option func(*Manager)

// WithNamespace prefixes every metric name; "sensorboard" when unset.
func WithNamespace(ns string) Option {
	return func(m *Manager) {
		if ns != "" {
			m.namespace = ns
		}
	}
}

// WithSubsystem inserts a second name segment after the namespace.
func WithSubsystem(sub string) Option {
	return func(m *Manager) {
		if sub != "" {
			m.subsystem = sub
		}
	}
}

// WithHistogramBuckets overrides the millisecond buckets shared by the
// latency histograms. Empty input keeps the defaults.
func WithHistogramBuckets(ms []float64) Option {
	return func(m *Manager) {
		if len(ms) == 0 {
			return
		}
		m.histogramBuckets = append([]float64(nil), ms...)
	}
}

// WithCustomLabels merges constant labels, e.g. env or site, into every metric.
func WithCustomLabels(labels map[string]string) Option {
	return func(m *Manager) {
		for k, v := range labels {
			m.constLabels[k] = v
		}
	}
}

// WithRuntimeCollectors also registers the Go runtime and process collectors.
func WithRuntimeCollectors(on bool) Option {
	return func(m *Manager) { m.runtimeCollectors = on }
}

// WithPrometheusRegistry registers into reg instead of prometheus.DefaultRegisterer.
func WithPrometheusRegistry(reg prometheus.Registerer) Option {
	return func(m *Manager) {
		if reg != nil {
			m.registry = reg
		}
	}
}
