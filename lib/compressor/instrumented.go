package compressor

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	measurements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seqcluster_measurements_total",
			Help: "Total number of compressed size measurements.",
		},
		[]string{"oracle", "mode"},
	)
	measurementErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seqcluster_measurement_errors_total",
			Help: "Total number of failed compressed size measurements.",
		},
		[]string{"oracle", "mode"},
	)
	measuredBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seqcluster_measured_bytes_total",
			Help: "Total number of uncompressed bytes handed to the compressor.",
		},
		[]string{"oracle"},
	)
	measurementDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seqcluster_measurement_duration_seconds",
			Help:    "Duration of compressed size measurements.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"oracle", "mode"},
	)
)

func init() {
	prometheus.MustRegister(measurements)
	prometheus.MustRegister(measurementErrors)
	prometheus.MustRegister(measuredBytes)
	prometheus.MustRegister(measurementDuration)
}

// Instrumented records prometheus metrics for every measurement.
type Instrumented struct {
	inner Oracle
}

func NewInstrumented(inner Oracle) *Instrumented {
	return &Instrumented{inner: inner}
}

func (i *Instrumented) Name() string {
	return i.inner.Name()
}

func (i *Instrumented) Unwrap() Oracle {
	return i.inner
}

func (i *Instrumented) Measure(ctx context.Context, payload []byte) (int, error) {
	return i.observe("plain", len(payload), func() (int, error) {
		return i.inner.Measure(ctx, payload)
	})
}

func (i *Instrumented) MeasurePrimed(ctx context.Context, payload []byte, prior []byte) (int, error) {
	return i.observe("primed", len(payload)+len(prior), func() (int, error) {
		return measurePrimed(ctx, i.inner, payload, prior)
	})
}

func (i *Instrumented) observe(mode string, inputBytes int, measure func() (int, error)) (int, error) {
	name := i.inner.Name()
	start := time.Now()
	size, err := measure()
	measurementDuration.WithLabelValues(name, mode).Observe(time.Since(start).Seconds())
	if err != nil {
		measurementErrors.WithLabelValues(name, mode).Inc()
		return 0, err
	}
	measurements.WithLabelValues(name, mode).Inc()
	measuredBytes.WithLabelValues(name).Add(float64(inputBytes))
	return size, nil
}
