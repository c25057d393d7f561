package datastore

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Update results reported in the updates counter.
const (
	resultOK      = "ok"
	resultAborted = "aborted"
	resultError   = "error"
)

type metrics struct {
	updates     *prometheus.CounterVec
	duration    prometheus.Histogram
	corruptions prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "recipebox",
			Subsystem: "store",
			Name:      "updates_total",
			Help:      "Document updates by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "recipebox",
			Subsystem: "store",
			Name:      "update_duration_seconds",
			Help:      "Time spent applying and persisting one update.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		corruptions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "recipebox",
			Subsystem: "store",
			Name:      "corruptions_total",
			Help:      "Reads that found an undecodable document.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	var err error
	if m.updates, err = register(reg, m.updates); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	if m.corruptions, err = register(reg, m.corruptions); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, reusing the collector already registered under the
// same descriptor so several stores can share one registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}
