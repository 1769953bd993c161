package simulation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// LoopName identifies one of the scheduler cadences.
type LoopName string

const (
	LoopMovement    LoopName = "movement"
	LoopShipSystems LoopName = "ship_systems"
	LoopCybertron   LoopName = "cybertron"
	LoopPlanets     LoopName = "planets"
)

// ErrProcessorPanic wraps a panic recovered from a processor iteration.
var ErrProcessorPanic = errors.New("processor panicked")

// Tick describes one iteration handed to a processor.
type Tick struct {
	Loop     LoopName      `json:"loop"`
	Number   uint64        `json:"number"`
	Started  time.Time     `json:"started"`
	Interval time.Duration `json:"interval"`
}

// Summary is what one processor iteration reports back.
type Summary struct {
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
}

// Processor handles the work of one loop.
type Processor interface {
	Name() string
	Process(ctx context.Context, tick Tick) (Summary, error)
}

// ProcessorFunc adapts a function into a Processor.
type ProcessorFunc struct {
	Label string
	Fn    func(ctx context.Context, tick Tick) (Summary, error)
}

// Name returns the label.
func (p ProcessorFunc) Name() string { return p.Label }

// Process invokes the function.
func (p ProcessorFunc) Process(ctx context.Context, tick Tick) (Summary, error) {
	if p.Fn == nil {
		return Summary{}, nil
	}
	return p.Fn(ctx, tick)
}

// LoopConfig registers a processor at a cadence.
type LoopConfig struct {
	Name      LoopName
	Interval  time.Duration
	Enabled   bool
	Processor Processor
}

// InBatch reports whether the object at index belongs to the batch processed on this tick
// when objects are spread over stride ticks.
func InBatch(index int, tick uint64, stride int) bool {
	if stride <= 1 {
		return true
	}
	return uint64(index%stride) == tick%uint64(stride)
}

// loop owns the timing and bookkeeping of one cadence.
type loop struct {
	name      LoopName
	interval  time.Duration
	processor Processor
	monitor   *TickMonitor

	mu          sync.Mutex
	enabled     bool
	ticks       uint64
	errors      uint64
	lastTick    time.Time
	intervalSum time.Duration
	intervals   int
	lastSummary Summary
}

func (l *loop) isEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

func (l *loop) setEnabled(enabled bool) {
	l.mu.Lock()
	l.enabled = enabled
	l.mu.Unlock()
}

// next reserves the tick number for an iteration starting at started.
func (l *loop) next(started time.Time) Tick {
	l.mu.Lock()
	defer l.mu.Unlock()
	//1.- Track the spacing between iteration starts for the average interval.
	if !l.lastTick.IsZero() {
		l.intervalSum += started.Sub(l.lastTick)
		l.intervals++
	}
	l.lastTick = started
	l.ticks++
	return Tick{Loop: l.name, Number: l.ticks, Started: started, Interval: l.interval}
}

func (l *loop) record(summary Summary, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastSummary = summary
	//1.- Per-object failures arrive in the summary; a failed iteration counts at least once.
	failures := summary.Errors
	if err != nil && failures == 0 {
		failures = 1
	}
	if failures > 0 {
		l.errors += uint64(failures)
	}
}

// iterate runs the processor once, converting a panic into an error.
func (l *loop) iterate(ctx context.Context, tick Tick) (summary Summary, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%w: %s: %v", ErrProcessorPanic, l.name, recovered)
		}
	}()
	return l.processor.Process(ctx, tick)
}

func (l *loop) stats() ProcessorStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	stats := ProcessorStats{
		Name:         l.name,
		Processor:    l.processor.Name(),
		Interval:     l.interval,
		TotalTicks:   l.ticks,
		LastTickTime: l.lastTick,
		Errors:       l.errors,
		Enabled:      l.enabled,
		LastSummary:  l.lastSummary,
		Timing:       l.monitor.Snapshot(),
	}
	if l.intervals > 0 {
		stats.AverageInterval = l.intervalSum / time.Duration(l.intervals)
	}
	return stats
}

// sleep waits for the duration or until the context is cancelled.
func sleep(ctx context.Context, wait time.Duration) bool {
	if wait <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
