// Package replay persists the combat journal of a simulation session: a snappy compressed
// JSONL event log plus zstd compressed loop frames, and reads it back for inspection.
package replay

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"github.com/talktojer/ge-sub000/internal/events"
)

var sessionCleaner = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

const (
	// frameFlushInterval batches loop frames before they reach the zstd stream.
	frameFlushInterval = 5 * time.Second
	eventsFile         = "events.jsonl.sz"
	framesFile         = "frames.bin.zst"
	manifestFile       = "manifest.json"
	headerFile         = "header.json"
	// frameHeaderSize is tick, capture time, loop name length and payload length.
	frameHeaderSize = 8 + 8 + 2 + 4
)

// frameBlob stores frame metadata before it is persisted to disk.
type frameBlob struct {
	Tick       uint64
	Loop       string
	CapturedAt time.Time
	Payload    []byte
}

// Writer streams journal artefacts to disk.
type Writer struct {
	mu           sync.Mutex
	dir          string
	now          func() time.Time
	eventFile    *os.File
	eventStream  *snappy.Writer
	frameFile    *os.File
	frameStream  *zstd.Encoder
	pending      []frameBlob
	lastFlush    time.Time
	sessionID    string
	headerSeed   string
	headerParams Parameters
	closed       bool
}

// Manifest describes the journal bundle layout so tooling can locate artefacts.
type Manifest struct {
	Version         int    `json:"version"`
	SessionID       string `json:"session_id"`
	CreatedAt       string `json:"created_at"`
	FrameIntervalMs int    `json:"frame_interval_ms"`
	EventsPath      string `json:"events_path"`
	FramesPath      string `json:"frames_path"`
}

// NewWriter prepares the journal directory and opens the compressed sinks.
func NewWriter(root, sessionID string, clock func() time.Time) (*Writer, Manifest, error) {
	if root == "" {
		return nil, Manifest{}, fmt.Errorf("journal root must be provided")
	}
	if clock == nil {
		clock = time.Now
	}

	cleaned := sessionCleaner.ReplaceAllString(sessionID, "")
	if cleaned == "" {
		cleaned = "session"
	}
	created := clock().UTC()
	path := filepath.Join(root, fmt.Sprintf("%s-%s", cleaned, created.Format("20060102T150405Z")))
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, Manifest{}, err
	}

	eventFile, err := os.Create(filepath.Join(path, eventsFile))
	if err != nil {
		return nil, Manifest{}, err
	}
	eventStream := snappy.NewBufferedWriter(eventFile)

	frameFile, err := os.Create(filepath.Join(path, framesFile))
	if err != nil {
		eventFile.Close()
		return nil, Manifest{}, err
	}
	frameStream, err := zstd.NewWriter(frameFile)
	if err != nil {
		eventStream.Close()
		eventFile.Close()
		frameFile.Close()
		return nil, Manifest{}, err
	}
	closeAll := func() {
		frameStream.Close()
		frameFile.Close()
		eventStream.Close()
		eventFile.Close()
	}

	manifest := Manifest{
		Version:         1,
		SessionID:       cleaned,
		CreatedAt:       created.Format(time.RFC3339Nano),
		FrameIntervalMs: int(frameFlushInterval / time.Millisecond),
		EventsPath:      eventsFile,
		FramesPath:      framesFile,
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		closeAll()
		return nil, Manifest{}, err
	}
	if err := os.WriteFile(filepath.Join(path, manifestFile), data, 0o644); err != nil {
		closeAll()
		return nil, Manifest{}, err
	}

	return &Writer{
		dir:         path,
		now:         clock,
		eventFile:   eventFile,
		eventStream: eventStream,
		frameFile:   frameFile,
		frameStream: frameStream,
		sessionID:   cleaned,
	}, manifest, nil
}

// Directory exposes the directory backing the journal bundle.
func (w *Writer) Directory() string {
	if w == nil {
		return ""
	}
	return w.dir
}

// AppendEvent writes a single JSON event line to the compressed event log.
func (w *Writer) AppendEvent(event events.Event) error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	line, err := json.Marshal(event)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("writer closed")
	}
	//1.- One event per line so JSONL readers can stream the log.
	if _, err := w.eventStream.Write(append(line, '\n')); err != nil {
		return err
	}
	return w.eventStream.Flush()
}

// AppendFrame buffers a loop frame until the flush interval is reached.
func (w *Writer) AppendFrame(tick uint64, loop string, payload []byte) error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	if len(loop) > 0xffff {
		return fmt.Errorf("loop name too long")
	}
	captured := w.now().UTC()
	clone := append([]byte(nil), payload...)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("writer closed")
	}
	//1.- Stage the frame so the flush cadence can persist batches together.
	w.pending = append(w.pending, frameBlob{Tick: tick, Loop: loop, CapturedAt: captured, Payload: clone})
	if w.lastFlush.IsZero() {
		w.lastFlush = captured
		return nil
	}
	if captured.Sub(w.lastFlush) >= frameFlushInterval {
		if err := w.flushLocked(); err != nil {
			return err
		}
		w.lastFlush = captured
	}
	return nil
}

// SetHeaderMetadata configures the header persisted alongside the journal bundle.
func (w *Writer) SetHeaderMetadata(seed string, params Parameters) {
	if w == nil {
		return
	}
	w.mu.Lock()
	w.headerSeed = seed
	w.headerParams = params.Clone()
	w.mu.Unlock()
}

// Flush forces pending frames to be written regardless of cadence.
func (w *Writer) Flush() error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	if err := w.flushLocked(); err != nil {
		return err
	}
	w.lastFlush = w.now().UTC()
	return w.frameStream.Flush()
}

// Close synchronously flushes all buffers and releases file handles.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	//1.- Persist the header before dismantling the streaming sinks.
	var firstErr error
	header := Header{
		SchemaVersion: HeaderSchemaVersion,
		SessionID:     w.sessionID,
		Seed:          w.headerSeed,
		Parameters:    w.headerParams.Clone(),
		FilePointer:   manifestFile,
	}
	if err := WriteHeader(filepath.Join(w.dir, headerFile), header); err != nil && firstErr == nil {
		firstErr = err
	}
	//2.- Attempt every flush and close and surface the first failure.
	if err := w.flushLocked(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.eventStream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.eventFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.frameStream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.frameFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// flushLocked writes buffered frames to the zstd stream; callers must hold the mutex.
func (w *Writer) flushLocked() error {
	if len(w.pending) == 0 {
		return nil
	}
	//1.- Write length-prefixed frames so readers can step through them.
	for _, frame := range w.pending {
		header := make([]byte, frameHeaderSize)
		binary.LittleEndian.PutUint64(header[0:8], frame.Tick)
		binary.LittleEndian.PutUint64(header[8:16], uint64(frame.CapturedAt.UnixNano()))
		binary.LittleEndian.PutUint16(header[16:18], uint16(len(frame.Loop)))
		binary.LittleEndian.PutUint32(header[18:22], uint32(len(frame.Payload)))
		if _, err := w.frameStream.Write(header); err != nil {
			return err
		}
		if _, err := w.frameStream.Write([]byte(frame.Loop)); err != nil {
			return err
		}
		if _, err := w.frameStream.Write(frame.Payload); err != nil {
			return err
		}
	}
	w.pending = w.pending[:0]
	return nil
}
