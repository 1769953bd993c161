// Package metrics exports scheduler and registry measurements through OpenTelemetry.
package metrics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/talktojer/ge-sub000/internal/simulation"
)

const instrumentationName = "github.com/talktojer/ge-sub000/internal/metrics"

// SizeFunc reports the current size of each named registry, e.g. battles or locks.
type SizeFunc func() map[string]int64

// Recorder turns scheduler iterations into OpenTelemetry measurements.
type Recorder struct {
	iterations metric.Int64Counter
	failures   metric.Int64Counter
	processed  metric.Int64Counter
	duration   metric.Float64Histogram
	registries metric.Int64ObservableGauge
	meter      metric.Meter
}

// New creates the instruments on the given meter, or on the global provider when nil.
func New(meter metric.Meter) (*Recorder, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	r := &Recorder{meter: meter}
	var err error
	r.iterations, err = meter.Int64Counter(
		"ge.loop.iterations",
		metric.WithDescription("Scheduler loop iterations"),
	)
	if err != nil {
		return nil, fmt.Errorf("create iterations counter: %w", err)
	}
	r.failures, err = meter.Int64Counter(
		"ge.loop.errors",
		metric.WithDescription("Failed objects and failed iterations per loop"),
	)
	if err != nil {
		return nil, fmt.Errorf("create errors counter: %w", err)
	}
	r.processed, err = meter.Int64Counter(
		"ge.loop.processed",
		metric.WithDescription("Objects processed per loop"),
	)
	if err != nil {
		return nil, fmt.Errorf("create processed counter: %w", err)
	}
	r.duration, err = meter.Float64Histogram(
		"ge.loop.duration",
		metric.WithDescription("Iteration duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}
	return r, nil
}

// ObserveIteration records one scheduler iteration.
func (r *Recorder) ObserveIteration(loop simulation.LoopName, duration time.Duration, summary simulation.Summary, err error) {
	if r == nil {
		return
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("loop", string(loop)))
	r.iterations.Add(ctx, 1, attrs)
	r.duration.Record(ctx, float64(duration)/float64(time.Millisecond), attrs)
	if summary.Processed > 0 {
		r.processed.Add(ctx, int64(summary.Processed), attrs)
	}
	failures := int64(summary.Errors)
	if err != nil {
		failures++
	}
	if failures > 0 {
		r.failures.Add(ctx, failures, attrs)
	}
}

// ObserveRegistries publishes the registry sizes as an observable gauge.
func (r *Recorder) ObserveRegistries(sizes SizeFunc) (metric.Registration, error) {
	if r == nil || sizes == nil {
		return nil, fmt.Errorf("recorder and size func must be provided")
	}
	gauge, err := r.meter.Int64ObservableGauge(
		"ge.registry.size",
		metric.WithDescription("Entries held by each tactical registry"),
	)
	if err != nil {
		return nil, fmt.Errorf("create registry gauge: %w", err)
	}
	r.registries = gauge
	return r.meter.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			current := sizes()
			//1.- Observe in a stable order so exporters see consistent series.
			names := make([]string, 0, len(current))
			for name := range current {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				o.ObserveInt64(gauge, current[name], metric.WithAttributes(attribute.String("registry", name)))
			}
			return nil
		},
		gauge,
	)
}
