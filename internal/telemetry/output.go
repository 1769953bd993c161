package telemetry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/talktojer/ge-sub000/internal/logging"
	"github.com/talktojer/ge-sub000/internal/simulation"
)

// StatsSource yields the current scheduler statistics, e.g. Scheduler.Stats.
type StatsSource func() []simulation.ProcessorStats

// Exporter appends loop statistics to ticks.csv.
type Exporter struct {
	mu            sync.Mutex
	path          string
	file          *os.File
	headerWritten bool
	now           func() time.Time
	logger        *logging.Logger
}

// NewExporter creates the output directory and file.
// Returns nil if dir is empty (export disabled).
func NewExporter(dir string, logger *logging.Logger) (*Exporter, error) {
	if dir == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.L()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating telemetry directory: %w", err)
	}
	path := filepath.Join(dir, "ticks.csv")
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating ticks.csv: %w", err)
	}
	return &Exporter{path: path, file: file, now: time.Now, logger: logger}, nil
}

// Path returns the CSV file location.
func (e *Exporter) Path() string {
	if e == nil {
		return ""
	}
	return e.path
}

// Write appends rows, emitting the header with the first batch.
func (e *Exporter) Write(rows []LoopStats) error {
	if e == nil || len(rows) == 0 {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.file == nil {
		return fmt.Errorf("exporter closed")
	}
	if !e.headerWritten {
		if err := gocsv.Marshal(rows, e.file); err != nil {
			return fmt.Errorf("writing tick stats: %w", err)
		}
		e.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(rows, e.file); err != nil {
		return fmt.Errorf("writing tick stats: %w", err)
	}
	return nil
}

// Export summarises the source once and writes the rows.
func (e *Exporter) Export(source StatsSource) error {
	if e == nil || source == nil {
		return nil
	}
	return e.Write(SummarizeAll(source(), e.now()))
}

// Run exports on every interval until the context ends, then writes a final snapshot.
func (e *Exporter) Run(ctx context.Context, interval time.Duration, source StatsSource) {
	if e == nil || source == nil {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := e.Export(source); err != nil {
				e.logger.Warn("final tick stats export failed", logging.Error(err))
			}
			return
		case <-ticker.C:
			if err := e.Export(source); err != nil {
				e.logger.Warn("tick stats export failed", logging.Error(err))
			}
		}
	}
}

// Close flushes and closes the CSV file.
func (e *Exporter) Close() error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.file == nil {
		return nil
	}
	err := e.file.Close()
	e.file = nil
	return err
}
