package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/talktojer/ge-sub000/internal/battle"
	"github.com/talktojer/ge-sub000/internal/events"
	"github.com/talktojer/ge-sub000/internal/logging"
	"github.com/talktojer/ge-sub000/internal/simulation"
)

// SubscriberID is the durable stream subscriber name used by the journal.
const SubscriberID = "journal"

const subscriberBuffer = 1024

// Stats summarises recorder health for monitoring endpoints.
type Stats struct {
	Directory   string
	Events      int64
	Battles     int64
	Frames      int64
	Failures    int64
	LastEventAt time.Time
}

// LoopFrame is the payload stored for each observed loop iteration.
type LoopFrame struct {
	Loop       string  `json:"loop"`
	Iteration  uint64  `json:"iteration"`
	DurationMs float64 `json:"duration_ms"`
	Processed  int     `json:"processed"`
	Errors     int     `json:"errors"`
	Error      string  `json:"error,omitempty"`
}

// Recorder feeds the journal writer from the event stream, the battle manager and the scheduler.
type Recorder struct {
	writer *Writer
	logger *logging.Logger

	mu         sync.Mutex
	iterations map[simulation.LoopName]uint64
	lastTick   uint64
	stats      Stats
	sub        *events.Subscription
	cancel     context.CancelFunc
	done       chan struct{}
	closed     bool
}

// RecorderOption customises a recorder.
type RecorderOption func(*Recorder)

// WithRecorderLogger routes recorder logs to the provided logger.
func WithRecorderLogger(logger *logging.Logger) RecorderOption {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRecorder wraps a writer.
func NewRecorder(writer *Writer, opts ...RecorderOption) (*Recorder, error) {
	if writer == nil {
		return nil, fmt.Errorf("journal writer must be provided")
	}
	recorder := &Recorder{
		writer:     writer,
		logger:     logging.L(),
		iterations: make(map[simulation.LoopName]uint64),
		stats:      Stats{Directory: writer.Directory()},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(recorder)
		}
	}
	return recorder, nil
}

// Start subscribes to the stream and persists every delivered event until Close.
func (r *Recorder) Start(ctx context.Context, stream *events.Stream) error {
	if r == nil || stream == nil {
		return fmt.Errorf("recorder and stream must be provided")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("recorder closed")
	}
	if r.sub != nil {
		return fmt.Errorf("recorder already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	sub, err := stream.Subscribe(ctx, SubscriberID, subscriberBuffer)
	if err != nil {
		cancel()
		return err
	}
	r.sub = sub
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.consume(ctx, sub, r.done)
	return nil
}

func (r *Recorder) consume(ctx context.Context, sub *events.Subscription, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case envelope, ok := <-sub.Events():
			if !ok {
				return
			}
			r.persist(envelope.Event)
			//1.- A gap means the buffer overflowed; the skipped events replay on the next start.
			if err := sub.Ack(envelope.Sequence); err != nil && !errors.Is(err, events.ErrOutOfOrderAck) {
				r.logger.Warn("journal ack failed", logging.Error(err), logging.Uint64("sequence", envelope.Sequence))
			}
		}
	}
}

func (r *Recorder) persist(event events.Event) {
	err := r.writer.AppendEvent(event)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.stats.Failures++
		r.logger.Error("journal event write failed", logging.Error(err), logging.String("event_id", event.ID))
		return
	}
	r.stats.Events++
	if event.OccurredAt.After(r.stats.LastEventAt) {
		r.stats.LastEventAt = event.OccurredAt
	}
	if event.Tick > r.lastTick {
		r.lastTick = event.Tick
	}
}

// RecordBattle writes a finished battle straight to the journal.
func (r *Recorder) RecordBattle(summary battle.Summary) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	tick := r.lastTick
	r.mu.Unlock()

	event := events.FromBattle(tick, summary)
	if err := r.writer.AppendEvent(event); err != nil {
		r.mu.Lock()
		r.stats.Failures++
		r.mu.Unlock()
		return err
	}
	r.mu.Lock()
	r.stats.Battles++
	r.mu.Unlock()
	return nil
}

// ObserveIteration stores one frame per scheduler iteration.
func (r *Recorder) ObserveIteration(loop simulation.LoopName, duration time.Duration, summary simulation.Summary, err error) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.iterations[loop]++
	iteration := r.iterations[loop]
	r.mu.Unlock()

	frame := LoopFrame{
		Loop:       string(loop),
		Iteration:  iteration,
		DurationMs: float64(duration) / float64(time.Millisecond),
		Processed:  summary.Processed,
		Errors:     summary.Errors,
	}
	if err != nil {
		frame.Error = err.Error()
	}
	payload, marshalErr := json.Marshal(frame)
	if marshalErr == nil {
		marshalErr = r.writer.AppendFrame(iteration, string(loop), payload)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if marshalErr != nil {
		r.stats.Failures++
		r.logger.Warn("journal frame write failed", logging.Error(marshalErr), logging.String("loop", string(loop)))
		return
	}
	r.stats.Frames++
}

// Snapshot returns statistics describing the recorder state.
func (r *Recorder) Snapshot() Stats {
	if r == nil {
		return Stats{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Close stops the subscription, waits for the consumer and closes the writer.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	sub, cancel, done := r.sub, r.cancel, r.done
	r.mu.Unlock()

	if sub != nil {
		sub.Close()
		cancel()
		<-done
	}
	return r.writer.Close()
}
