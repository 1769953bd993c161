package journalplayer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/talktojer/ge-sub000/internal/events"
	"github.com/talktojer/ge-sub000/internal/replay"
)

// Filter narrows the events of a session. Zero values match everything.
type Filter struct {
	Kinds  []events.Kind
	ShipID string
}

func (f Filter) matches(event events.Event) bool {
	if f.ShipID != "" && event.ShipID != f.ShipID && event.TargetID != f.ShipID {
		return false
	}
	if len(f.Kinds) == 0 {
		return true
	}
	for _, kind := range f.Kinds {
		if kind == event.Kind {
			return true
		}
	}
	return false
}

// LoopSummary aggregates the scheduler frames of one loop.
type LoopSummary struct {
	Frames    int     `json:"frames"`
	Processed int     `json:"processed"`
	Errors    int     `json:"errors"`
	MaxMs     float64 `json:"max_ms"`
}

// Report is the decoded view of one journal session.
type Report struct {
	Manifest replay.Manifest        `json:"manifest"`
	Header   *replay.Header         `json:"header,omitempty"`
	Events   []events.Event         `json:"events"`
	Counts   map[events.Kind]int    `json:"counts"`
	Loops    map[string]LoopSummary `json:"loops"`
}

// Inspect loads a session directory, or the directory of a manifest.json, and filters its events.
func Inspect(path string, filter Filter) (Report, error) {
	if path == "" {
		return Report{}, fmt.Errorf("path is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Report{}, err
	}
	dir := path
	if !info.IsDir() {
		dir = filepath.Dir(path)
	}
	loader, err := replay.Load(dir)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		Manifest: loader.Manifest(),
		Counts:   make(map[events.Kind]int),
		Loops:    make(map[string]LoopSummary),
	}
	if header, ok := loader.Header(); ok {
		report.Header = &header
	}
	//1.- Walk the timeline once: events are filtered, frames are folded per loop.
	err = loader.Replay(func(entry replay.TimelineEntry) error {
		if entry.Event != nil {
			if filter.matches(*entry.Event) {
				report.Events = append(report.Events, *entry.Event)
				report.Counts[entry.Event.Kind]++
			}
			return nil
		}
		var frame replay.LoopFrame
		if err := json.Unmarshal(entry.Payload, &frame); err != nil {
			return fmt.Errorf("decode frame at tick %d: %w", entry.Tick, err)
		}
		summary := report.Loops[entry.Loop]
		summary.Frames++
		summary.Processed += frame.Processed
		summary.Errors += frame.Errors
		if frame.DurationMs > summary.MaxMs {
			summary.MaxMs = frame.DurationMs
		}
		report.Loops[entry.Loop] = summary
		return nil
	})
	if err != nil {
		return Report{}, err
	}
	return report, nil
}

// Kinds returns the event kinds present in the report in a stable order.
func (r Report) Kinds() []events.Kind {
	kinds := make([]events.Kind, 0, len(r.Counts))
	for kind := range r.Counts {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
