package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/talktojer/ge-sub000/internal/config"
)

// segmentStamp names sealed segments so they sort lexically in seal order.
const segmentStamp = "20060102T150405.000"

// segmentWriter appends to the live core log and seals it into a dated
// segment once it outgrows the configured size. Sealed segments live next
// to the live file as <stem>-<UTC stamp><ext>, gzipped when requested.
type segmentWriter struct {
	mu         sync.Mutex
	dir        string
	stem       string
	ext        string
	limit      int64
	maxBackups int
	maxAge     time.Duration
	compress   bool
	now        func() time.Time
	file       *os.File
	size       int64
}

// segment is a sealed log file and the instant it was sealed.
type segment struct {
	path     string
	sealedAt time.Time
}

func openSegmentWriter(cfg config.LoggingConfig, now func() time.Time) (*segmentWriter, error) {
	switch {
	case cfg.MaxSizeMB <= 0:
		return nil, errors.New("log max size must be positive")
	case cfg.MaxBackups < 0:
		return nil, errors.New("log max backups must be non-negative")
	case cfg.MaxAgeDays < 0:
		return nil, errors.New("log max age must be non-negative")
	}
	if now == nil {
		now = time.Now
	}
	base := filepath.Base(cfg.Path)
	ext := filepath.Ext(base)
	if ext == "" {
		ext = ".log"
	}
	w := &segmentWriter{
		dir:        filepath.Dir(cfg.Path),
		stem:       strings.TrimSuffix(base, filepath.Ext(base)),
		ext:        ext,
		limit:      int64(cfg.MaxSizeMB) << 20,
		maxBackups: cfg.MaxBackups,
		maxAge:     time.Duration(cfg.MaxAgeDays) * 24 * time.Hour,
		compress:   cfg.Compress,
		now:        now,
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if err := w.openLive(os.O_APPEND); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *segmentWriter) livePath() string {
	return filepath.Join(w.dir, w.stem+w.ext)
}

func (w *segmentWriter) openLive(mode int) error {
	file, err := os.OpenFile(w.livePath(), os.O_CREATE|os.O_WRONLY|mode, 0o644)
	if err != nil {
		return fmt.Errorf("open core log: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return err
	}
	w.file = file
	w.size = info.Size()
	return nil
}

// Write seals the live file first when p would push it past the limit. A
// single record larger than the limit still lands whole in a fresh file.
func (w *segmentWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return 0, os.ErrClosed
	}
	if w.size > 0 && w.size+int64(len(p)) > w.limit {
		if err := w.sealLocked(); err != nil {
			return 0, err
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *segmentWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

func (w *segmentWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *segmentWriter) sealLocked() error {
	//1.- Close the live file and move it aside under its seal stamp.
	if err := w.file.Close(); err != nil {
		return err
	}
	w.file = nil
	sealed := filepath.Join(w.dir, w.stem+"-"+w.now().UTC().Format(segmentStamp)+w.ext)
	if err := os.Rename(w.livePath(), sealed); err != nil {
		return fmt.Errorf("seal core log: %w", err)
	}
	//2.- Compression failure keeps the plain segment rather than losing lines.
	if w.compress {
		if err := gzipFile(sealed); err == nil {
			_ = os.Remove(sealed)
		}
	}
	w.pruneLocked()
	//3.- Start a fresh live file in place of the sealed one.
	return w.openLive(os.O_TRUNC)
}

// segments lists sealed segments newest first, keyed by the stamp in their name.
func (w *segmentWriter) segments() []segment {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil
	}
	prefix := w.stem + "-"
	found := make([]segment, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimSuffix(name, ".gz"), w.ext)
		if stamp == strings.TrimSuffix(name, ".gz") {
			continue
		}
		sealedAt, err := time.Parse(segmentStamp, strings.TrimPrefix(stamp, prefix))
		if err != nil {
			continue
		}
		found = append(found, segment{path: filepath.Join(w.dir, name), sealedAt: sealedAt})
	}
	slices.SortFunc(found, func(a, b segment) int { return b.sealedAt.Compare(a.sealedAt) })
	return found
}

func (w *segmentWriter) pruneLocked() {
	sealed := w.segments()
	cutoff := time.Time{}
	if w.maxAge > 0 {
		cutoff = w.now().UTC().Add(-w.maxAge)
	}
	for i, seg := range sealed {
		overCount := w.maxBackups > 0 && i >= w.maxBackups
		tooOld := !cutoff.IsZero() && seg.sealedAt.Before(cutoff)
		if overCount || tooOld {
			_ = os.Remove(seg.path)
		}
	}
}

func gzipFile(src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(src+".gz", os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(out)
	if _, err := io.Copy(zw, in); err != nil {
		_ = zw.Close()
		_ = out.Close()
		_ = os.Remove(src + ".gz")
		return err
	}
	if err := zw.Close(); err != nil {
		_ = out.Close()
		_ = os.Remove(src + ".gz")
		return err
	}
	return out.Close()
}
