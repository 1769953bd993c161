// Package simulation runs the independently timed processing loops of the core.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/talktojer/ge-sub000/internal/logging"
)

// DefaultErrorBackoff pauses a loop after a failed iteration.
const DefaultErrorBackoff = time.Second

var (
	// ErrRunning rejects changes that require a stopped scheduler.
	ErrRunning = errors.New("scheduler already running")
	// ErrUnknownLoop signals a loop name that was never registered.
	ErrUnknownLoop = errors.New("unknown loop")
)

// ProcessorStats exposes the bookkeeping of one loop.
type ProcessorStats struct {
	Name            LoopName            `json:"name"`
	Processor       string              `json:"processor"`
	Interval        time.Duration       `json:"interval"`
	TotalTicks      uint64              `json:"total_ticks"`
	LastTickTime    time.Time           `json:"last_tick_time"`
	AverageInterval time.Duration       `json:"average_interval"`
	Errors          uint64              `json:"errors"`
	Enabled         bool                `json:"enabled"`
	LastSummary     Summary             `json:"last_summary"`
	Timing          TickMetricsSnapshot `json:"timing"`
}

// Observer is notified after every loop iteration, e.g. by the metrics exporter.
type Observer interface {
	ObserveIteration(loop LoopName, duration time.Duration, summary Summary, err error)
}

// Scheduler drives every registered loop on its own goroutine.
type Scheduler struct {
	mu        sync.Mutex
	loops     map[LoopName]*loop
	order     []LoopName
	backoff   time.Duration
	observers []Observer
	logger    *logging.Logger
	now       func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// Option customises the scheduler.
type Option func(*Scheduler)

// WithErrorBackoff overrides the pause that follows a failed iteration.
func WithErrorBackoff(backoff time.Duration) Option {
	return func(s *Scheduler) {
		if backoff >= 0 {
			s.backoff = backoff
		}
	}
}

// WithObserver adds an iteration observer.
func WithObserver(observer Observer) Option {
	return func(s *Scheduler) {
		if observer != nil {
			s.observers = append(s.observers, observer)
		}
	}
}

// WithLogger routes scheduler logs to the provided logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock injects the time source used to pace the loops.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// NewScheduler constructs a scheduler without loops.
func NewScheduler(opts ...Option) *Scheduler {
	scheduler := &Scheduler{
		loops:   make(map[LoopName]*loop),
		backoff: DefaultErrorBackoff,
		logger:  logging.L(),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(scheduler)
		}
	}
	return scheduler
}

// Register adds a loop. Loops can only be registered while the scheduler is stopped.
func (s *Scheduler) Register(cfg LoopConfig) error {
	if cfg.Name == "" {
		return errors.New("loop name must not be empty")
	}
	if cfg.Interval <= 0 {
		return fmt.Errorf("loop %s: interval must be positive", cfg.Name)
	}
	if cfg.Processor == nil {
		return fmt.Errorf("loop %s: processor is required", cfg.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return ErrRunning
	}
	if _, exists := s.loops[cfg.Name]; exists {
		return fmt.Errorf("loop %s already registered", cfg.Name)
	}
	s.loops[cfg.Name] = &loop{
		name:      cfg.Name,
		interval:  cfg.Interval,
		processor: cfg.Processor,
		enabled:   cfg.Enabled,
		monitor:   NewTickMonitor(),
	}
	s.order = append(s.order, cfg.Name)
	return nil
}

// Start launches every loop. The scheduler may be restarted after Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return ErrRunning
	}
	if len(s.loops) == 0 {
		return errors.New("no loops registered")
	}
	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	for _, name := range s.order {
		current := s.loops[name]
		group.Go(func() error {
			s.run(groupCtx, current)
			return nil
		})
	}
	done := make(chan struct{})
	go func() {
		//1.- Close done once every loop returned so Stop can await in-flight iterations.
		_ = group.Wait()
		close(done)
	}()
	s.cancel = cancel
	s.done = done
	s.logger.Info("scheduler started", logging.Int("loops", len(s.order)))
	return nil
}

// Stop cancels every loop and waits for the running iterations to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("scheduler stopped")
}

// Running reports whether the loops are active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done != nil
}

// SetEnabled toggles a loop without stopping the scheduler.
func (s *Scheduler) SetEnabled(name LoopName, enabled bool) error {
	s.mu.Lock()
	current, ok := s.loops[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLoop, name)
	}
	current.setEnabled(enabled)
	s.logger.Info("loop toggled", logging.String("loop", string(name)), logging.Bool("enabled", enabled))
	return nil
}

// Stats returns the bookkeeping of every loop in registration order.
func (s *Scheduler) Stats() []ProcessorStats {
	s.mu.Lock()
	loops := make([]*loop, 0, len(s.order))
	for _, name := range s.order {
		loops = append(loops, s.loops[name])
	}
	s.mu.Unlock()
	stats := make([]ProcessorStats, 0, len(loops))
	for _, current := range loops {
		stats = append(stats, current.stats())
	}
	return stats
}

// LoopStats returns the bookkeeping of one loop.
func (s *Scheduler) LoopStats(name LoopName) (ProcessorStats, error) {
	s.mu.Lock()
	current, ok := s.loops[name]
	s.mu.Unlock()
	if !ok {
		return ProcessorStats{}, fmt.Errorf("%w: %s", ErrUnknownLoop, name)
	}
	return current.stats(), nil
}

// Loops lists the registered loop names sorted alphabetically.
func (s *Scheduler) Loops() []LoopName {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := append([]LoopName(nil), s.order...)
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

func (s *Scheduler) run(ctx context.Context, current *loop) {
	logger := s.logger.With(logging.String("loop", string(current.name)))
	for ctx.Err() == nil {
		started := s.now()
		wait := current.interval
		if current.isEnabled() {
			//1.- Run one iteration and keep going whatever it returns.
			tick := current.next(started)
			summary, err := current.iterate(ctx, tick)
			elapsed := s.now().Sub(started)
			current.monitor.Observe(elapsed)
			current.record(summary, err)
			for _, observer := range s.observers {
				observer.ObserveIteration(current.name, elapsed, summary, err)
			}
			if err != nil {
				//2.- Failed iterations are logged and followed by the error backoff.
				logger.Error("tick failed", logging.Uint64("tick", tick.Number), logging.Error(err))
				wait = s.backoff
			} else {
				wait = current.interval - elapsed
			}
		}
		if !sleep(ctx, wait) {
			return
		}
	}
}
