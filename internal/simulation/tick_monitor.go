package simulation

import (
	"sync"
	"time"
)

// recentWindow is the number of recent durations kept for percentile analysis.
const recentWindow = 256

// TickMetricsSnapshot summarises the observed iteration durations of one loop.
type TickMetricsSnapshot struct {
	Samples int             `json:"samples"`
	Average time.Duration   `json:"average"`
	Max     time.Duration   `json:"max"`
	Last    time.Duration   `json:"last"`
	Recent  []time.Duration `json:"-"`
}

// Utilisation reports the share of the interval consumed by an average iteration.
func (s TickMetricsSnapshot) Utilisation(interval time.Duration) float64 {
	if interval <= 0 || s.Average <= 0 {
		return 0
	}
	return float64(s.Average) / float64(interval)
}

// TickMonitor accumulates timing statistics for a loop.
type TickMonitor struct {
	mu      sync.Mutex
	samples int
	total   time.Duration
	max     time.Duration
	last    time.Duration
	recent  []time.Duration
	cursor  int
}

// NewTickMonitor constructs an empty monitor ready to collect samples.
func NewTickMonitor() *TickMonitor {
	return &TickMonitor{recent: make([]time.Duration, 0, recentWindow)}
}

// Observe records the duration of a completed iteration.
func (m *TickMonitor) Observe(duration time.Duration) {
	if m == nil || duration <= 0 {
		return
	}
	m.mu.Lock()
	//1.- Accumulate the sample count and aggregate duration for average calculations.
	m.samples++
	m.total += duration
	//2.- Track the worst-case iteration so operators can spot spikes quickly.
	if duration > m.max {
		m.max = duration
	}
	m.last = duration
	//3.- Keep a bounded ring of recent samples for distribution statistics.
	if len(m.recent) < recentWindow {
		m.recent = append(m.recent, duration)
	} else {
		m.recent[m.cursor] = duration
		m.cursor = (m.cursor + 1) % recentWindow
	}
	m.mu.Unlock()
}

// Snapshot returns a copy of the aggregated statistics.
func (m *TickMonitor) Snapshot() TickMetricsSnapshot {
	if m == nil {
		return TickMetricsSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := TickMetricsSnapshot{
		Samples: m.samples,
		Max:     m.max,
		Last:    m.last,
		Recent:  append([]time.Duration(nil), m.recent...),
	}
	if m.samples > 0 {
		snapshot.Average = m.total / time.Duration(m.samples)
	}
	return snapshot
}

// Reset clears the accumulated statistics.
func (m *TickMonitor) Reset() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.samples = 0
	m.total = 0
	m.max = 0
	m.last = 0
	m.recent = m.recent[:0]
	m.cursor = 0
	m.mu.Unlock()
}
