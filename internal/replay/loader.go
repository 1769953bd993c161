package replay

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"github.com/talktojer/ge-sub000/internal/events"
)

// Timeline entry types.
const (
	EntryEvent = "event"
	EntryFrame = "frame"
)

// TimelineEntry represents a single journal datum ready for ordered iteration.
type TimelineEntry struct {
	Tick       uint64
	CapturedAt time.Time
	Type       string
	// Loop names the scheduler loop for frame entries.
	Loop    string
	Event   *events.Event
	Payload json.RawMessage
}

// Loader rehydrates a journal bundle for inspection and tests.
type Loader struct {
	manifest Manifest
	header   *Header
	entries  []TimelineEntry
}

// Load reads the bundle stored in dir.
func Load(dir string) (*Loader, error) {
	if dir == "" {
		return nil, fmt.Errorf("journal directory must be provided")
	}
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, err
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	//1.- Events come first so frames captured in the same instant sort after them.
	entries, err := loadEvents(filepath.Join(dir, manifest.EventsPath))
	if err != nil {
		return nil, err
	}
	frames, err := loadFrames(filepath.Join(dir, manifest.FramesPath))
	if err != nil {
		return nil, err
	}
	entries = append(entries, frames...)

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CapturedAt.Equal(entries[j].CapturedAt) {
			if entries[i].Tick == entries[j].Tick {
				return entries[i].Type < entries[j].Type
			}
			return entries[i].Tick < entries[j].Tick
		}
		return entries[i].CapturedAt.Before(entries[j].CapturedAt)
	})

	loader := &Loader{manifest: manifest, entries: entries}
	//2.- The header only exists once the writer closed cleanly.
	if header, err := ReadHeader(filepath.Join(dir, headerFile)); err == nil {
		loader.header = &header
	}
	return loader, nil
}

func loadEvents(path string) ([]TimelineEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(snappy.NewReader(file))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var entries []TimelineEntry
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event events.Event
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		entries = append(entries, TimelineEntry{
			Tick:       event.Tick,
			CapturedAt: event.OccurredAt,
			Type:       EntryEvent,
			Event:      &event,
			Payload:    append(json.RawMessage(nil), line...),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return entries, nil
}

func loadFrames(path string) ([]TimelineEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder, err := zstd.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	var entries []TimelineEntry
	header := make([]byte, frameHeaderSize)
	for {
		//1.- A clean EOF on a frame boundary ends the stream.
		if _, err := io.ReadFull(decoder, header); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read frame header: %w", err)
		}
		tick := binary.LittleEndian.Uint64(header[0:8])
		captured := time.Unix(0, int64(binary.LittleEndian.Uint64(header[8:16]))).UTC()
		loopLen := int(binary.LittleEndian.Uint16(header[16:18]))
		payloadLen := int(binary.LittleEndian.Uint32(header[18:22]))

		body := make([]byte, loopLen+payloadLen)
		if _, err := io.ReadFull(decoder, body); err != nil {
			return nil, fmt.Errorf("read frame body: %w", err)
		}
		entries = append(entries, TimelineEntry{
			Tick:       tick,
			CapturedAt: captured,
			Type:       EntryFrame,
			Loop:       string(body[:loopLen]),
			Payload:    json.RawMessage(body[loopLen:]),
		})
	}
	return entries, nil
}

// Manifest returns the bundle manifest.
func (l *Loader) Manifest() Manifest {
	if l == nil {
		return Manifest{}
	}
	return l.manifest
}

// Header returns the persisted header when the bundle was closed cleanly.
func (l *Loader) Header() (Header, bool) {
	if l == nil || l.header == nil {
		return Header{}, false
	}
	header := *l.header
	header.Parameters = header.Parameters.Clone()
	return header, true
}

// Replay iterates over the loaded entries in order.
func (l *Loader) Replay(apply func(TimelineEntry) error) error {
	if l == nil {
		return fmt.Errorf("loader not initialised")
	}
	if apply == nil {
		return fmt.Errorf("replay callback must be provided")
	}
	for _, entry := range l.entries {
		if err := apply(entry); err != nil {
			return err
		}
	}
	return nil
}

// Entries exposes a copy of the timeline for external assertions.
func (l *Loader) Entries() []TimelineEntry {
	if l == nil {
		return nil
	}
	out := make([]TimelineEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Events returns only the event entries, in timeline order.
func (l *Loader) Events() []events.Event {
	if l == nil {
		return nil
	}
	var out []events.Event
	for _, entry := range l.entries {
		if entry.Event != nil {
			out = append(out, entry.Event.Clone())
		}
	}
	return out
}
