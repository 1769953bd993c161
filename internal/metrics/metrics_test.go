package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/embedded"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/talktojer/ge-sub000/internal/simulation"
)

// Compile-time interface check
var _ simulation.Observer = (*Recorder)(nil)

type fakeCounter struct {
	noop.Int64Counter
	totals map[string]int64
}

func (c *fakeCounter) Add(_ context.Context, incr int64, opts ...metric.AddOption) {
	set := metric.NewAddConfig(opts).Attributes()
	loop, _ := set.Value(attribute.Key("loop"))
	c.totals[loop.AsString()] += incr
}

type fakeHistogram struct {
	noop.Float64Histogram
	values []float64
}

func (h *fakeHistogram) Record(_ context.Context, value float64, _ ...metric.RecordOption) {
	h.values = append(h.values, value)
}

type fakeObserver struct {
	embedded.Observer
	values map[string]int64
}

func (o *fakeObserver) ObserveFloat64(metric.Float64Observable, float64, ...metric.ObserveOption) {}

func (o *fakeObserver) ObserveInt64(_ metric.Int64Observable, value int64, opts ...metric.ObserveOption) {
	set := metric.NewObserveConfig(opts).Attributes()
	name, _ := set.Value(attribute.Key("registry"))
	o.values[name.AsString()] = value
}

type fakeMeter struct {
	noop.Meter
	counters  map[string]*fakeCounter
	histogram *fakeHistogram
	callback  metric.Callback
}

func newFakeMeter() *fakeMeter {
	return &fakeMeter{counters: make(map[string]*fakeCounter), histogram: &fakeHistogram{}}
}

func (m *fakeMeter) Int64Counter(name string, _ ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	counter := &fakeCounter{totals: make(map[string]int64)}
	m.counters[name] = counter
	return counter, nil
}

func (m *fakeMeter) Float64Histogram(string, ...metric.Float64HistogramOption) (metric.Float64Histogram, error) {
	return m.histogram, nil
}

func (m *fakeMeter) RegisterCallback(f metric.Callback, _ ...metric.Observable) (metric.Registration, error) {
	m.callback = f
	return noop.Registration{}, nil
}

func TestObserveIterationRecordsPerLoop(t *testing.T) {
	meter := newFakeMeter()
	recorder, err := New(meter)
	require.NoError(t, err)

	recorder.ObserveIteration(simulation.LoopMovement, 4*time.Millisecond, simulation.Summary{Processed: 12}, nil)
	recorder.ObserveIteration(simulation.LoopMovement, 2*time.Millisecond, simulation.Summary{Processed: 3, Errors: 2}, nil)
	recorder.ObserveIteration(simulation.LoopPlanets, time.Millisecond, simulation.Summary{}, errors.New("planet cache"))

	assert.Equal(t, int64(2), meter.counters["ge.loop.iterations"].totals["movement"])
	assert.Equal(t, int64(15), meter.counters["ge.loop.processed"].totals["movement"])
	assert.Equal(t, int64(2), meter.counters["ge.loop.errors"].totals["movement"])
	assert.Equal(t, int64(1), meter.counters["ge.loop.errors"].totals["planets"], "a failed iteration counts once")
	assert.Equal(t, []float64{4, 2, 1}, meter.histogram.values)
}

func TestObserveRegistriesReportsSizes(t *testing.T) {
	meter := newFakeMeter()
	recorder, err := New(meter)
	require.NoError(t, err)

	sizes := map[string]int64{"battles": 2, "locks": 5}
	_, err = recorder.ObserveRegistries(func() map[string]int64 { return sizes })
	require.NoError(t, err)
	require.NotNil(t, meter.callback)

	observer := &fakeObserver{values: make(map[string]int64)}
	require.NoError(t, meter.callback(context.Background(), observer))
	assert.Equal(t, map[string]int64{"battles": 2, "locks": 5}, observer.values)

	_, err = recorder.ObserveRegistries(nil)
	require.Error(t, err)
}

func TestNewFallsBackToGlobalMeter(t *testing.T) {
	recorder, err := New(nil)
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		recorder.ObserveIteration(simulation.LoopCybertron, time.Millisecond, simulation.Summary{Processed: 1}, nil)
	})
}
