package telemetry

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talktojer/ge-sub000/internal/logging"
	"github.com/talktojer/ge-sub000/internal/simulation"
)

func loopStats(name simulation.LoopName, samples ...time.Duration) simulation.ProcessorStats {
	var longest time.Duration
	for _, sample := range samples {
		if sample > longest {
			longest = sample
		}
	}
	var average time.Duration
	if len(samples) > 0 {
		var total time.Duration
		for _, sample := range samples {
			total += sample
		}
		average = total / time.Duration(len(samples))
	}
	return simulation.ProcessorStats{
		Name:        name,
		Interval:    time.Second,
		TotalTicks:  uint64(len(samples)),
		Enabled:     true,
		LastSummary: simulation.Summary{Processed: 7},
		Timing:      simulation.TickMetricsSnapshot{Samples: len(samples), Average: average, Max: longest, Recent: samples},
	}
}

func TestSummarizeComputesDistribution(t *testing.T) {
	samples := make([]time.Duration, 0, 100)
	//1.- Insert in descending order so the summary has to sort them.
	for i := 100; i >= 1; i-- {
		samples = append(samples, time.Duration(i)*time.Millisecond)
	}
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	row := Summarize(loopStats(simulation.LoopMovement, samples...), at)

	assert.Equal(t, "movement", row.Loop)
	assert.Equal(t, "2024-01-02T03:04:05Z", row.CapturedAt)
	assert.Equal(t, 100, row.Samples)
	assert.Equal(t, 7, row.Processed)
	assert.InDelta(t, 50.5, row.MeanMs, 1e-9)
	assert.InDelta(t, 29.01, row.StdDevMs, 0.01)
	assert.Equal(t, 50.0, row.P50Ms)
	assert.InDelta(t, 95.0, row.P95Ms, 1)
	assert.InDelta(t, 99.0, row.P99Ms, 1)
	assert.Equal(t, 100.0, row.MaxMs)
	assert.InDelta(t, 0.05, row.Utilisation, 1e-3)
}

func TestSummarizeHandlesSparseSamples(t *testing.T) {
	empty := Summarize(loopStats(simulation.LoopPlanets), time.Now())
	assert.Zero(t, empty.MeanMs)
	assert.Zero(t, empty.P99Ms)

	single := Summarize(loopStats(simulation.LoopPlanets, 3*time.Millisecond), time.Now())
	assert.Equal(t, 3.0, single.MeanMs)
	assert.Zero(t, single.StdDevMs)
	assert.Equal(t, 3.0, single.P50Ms)
}

func TestExporterWritesHeaderOnce(t *testing.T) {
	disabled, err := NewExporter("", nil)
	require.NoError(t, err)
	assert.Nil(t, disabled)
	assert.NoError(t, disabled.Write([]LoopStats{{Loop: "movement"}}))

	exporter, err := NewExporter(t.TempDir(), logging.NewTestLogger())
	require.NoError(t, err)
	exporter.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	source := func() []simulation.ProcessorStats {
		return []simulation.ProcessorStats{
			loopStats(simulation.LoopMovement, time.Millisecond, 3*time.Millisecond),
			loopStats(simulation.LoopShipSystems, 2*time.Millisecond),
		}
	}
	require.NoError(t, exporter.Export(source))
	require.NoError(t, exporter.Export(source))
	require.NoError(t, exporter.Close())
	require.Error(t, exporter.Write([]LoopStats{{Loop: "late"}}))

	data, err := os.ReadFile(exporter.Path())
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "captured_at"), "header written once")

	var rows []LoopStats
	require.NoError(t, gocsv.UnmarshalBytes(data, &rows))
	require.Len(t, rows, 4)
	assert.Equal(t, "ship_systems", rows[1].Loop)
	assert.Equal(t, 2.0, rows[0].MeanMs)
}

func TestExporterRunWritesFinalSnapshot(t *testing.T) {
	exporter, err := NewExporter(t.TempDir(), logging.NewTestLogger())
	require.NoError(t, err)
	defer exporter.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exporter.Run(ctx, time.Hour, func() []simulation.ProcessorStats {
		return []simulation.ProcessorStats{loopStats(simulation.LoopCybertron, time.Millisecond)}
	})

	data, err := os.ReadFile(exporter.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "cybertron")
}
