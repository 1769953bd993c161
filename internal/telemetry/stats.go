// Package telemetry condenses scheduler timings into distribution statistics and exports them as CSV.
package telemetry

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/talktojer/ge-sub000/internal/simulation"
)

// LoopStats is one exported row describing a scheduler loop.
type LoopStats struct {
	CapturedAt  string  `csv:"captured_at"`
	Loop        string  `csv:"loop"`
	Enabled     bool    `csv:"enabled"`
	TotalTicks  uint64  `csv:"total_ticks"`
	Errors      uint64  `csv:"errors"`
	Processed   int     `csv:"last_processed"`
	Samples     int     `csv:"samples"`
	MeanMs      float64 `csv:"mean_ms"`
	StdDevMs    float64 `csv:"stddev_ms"`
	P50Ms       float64 `csv:"p50_ms"`
	P95Ms       float64 `csv:"p95_ms"`
	P99Ms       float64 `csv:"p99_ms"`
	MaxMs       float64 `csv:"max_ms"`
	Utilisation float64 `csv:"utilisation"`
}

// Summarize computes the distribution of the recent iteration durations of one loop.
func Summarize(stats simulation.ProcessorStats, at time.Time) LoopStats {
	row := LoopStats{
		CapturedAt:  at.UTC().Format(time.RFC3339),
		Loop:        string(stats.Name),
		Enabled:     stats.Enabled,
		TotalTicks:  stats.TotalTicks,
		Errors:      stats.Errors,
		Processed:   stats.LastSummary.Processed,
		Samples:     len(stats.Timing.Recent),
		MaxMs:       milliseconds(stats.Timing.Max),
		Utilisation: stats.Timing.Utilisation(stats.Interval),
	}
	if len(stats.Timing.Recent) == 0 {
		return row
	}
	//1.- Quantiles need the samples in ascending order.
	samples := make([]float64, len(stats.Timing.Recent))
	for idx, duration := range stats.Timing.Recent {
		samples[idx] = milliseconds(duration)
	}
	sort.Float64s(samples)
	row.MeanMs, row.StdDevMs = stat.MeanStdDev(samples, nil)
	if len(samples) < 2 {
		row.StdDevMs = 0
	}
	row.P50Ms = stat.Quantile(0.5, stat.Empirical, samples, nil)
	row.P95Ms = stat.Quantile(0.95, stat.Empirical, samples, nil)
	row.P99Ms = stat.Quantile(0.99, stat.Empirical, samples, nil)
	return row
}

// SummarizeAll converts every loop of a scheduler snapshot.
func SummarizeAll(stats []simulation.ProcessorStats, at time.Time) []LoopStats {
	rows := make([]LoopStats, 0, len(stats))
	for _, loop := range stats {
		rows = append(rows, Summarize(loop, at))
	}
	return rows
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
