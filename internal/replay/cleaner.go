package replay

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/talktojer/ge-sub000/internal/logging"
)

// RetentionPolicy defines how many journal sessions are retained on disk.
type RetentionPolicy struct {
	MaxSessions int
	MaxAge      time.Duration
}

// StorageStats summarises the disk footprint of persisted journals.
type StorageStats struct {
	Sessions  int
	Bytes     int64
	LastSweep time.Time
}

// Cleaner periodically prunes journal sessions according to a retention policy.
type Cleaner struct {
	mu     sync.RWMutex
	dir    string
	policy RetentionPolicy
	log    *logging.Logger
	now    func() time.Time
	stats  StorageStats
	// active is skipped by every sweep, it is the session currently being written.
	active string
}

// NewCleaner constructs a cleaner for the provided journal root.
func NewCleaner(dir string, policy RetentionPolicy, logger *logging.Logger) *Cleaner {
	if logger == nil {
		logger = logging.L()
	}
	return &Cleaner{dir: dir, policy: policy, log: logger, now: time.Now}
}

// Protect excludes the given session directory from pruning.
func (c *Cleaner) Protect(path string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.active = filepath.Clean(path)
	c.mu.Unlock()
}

// Run executes retention sweeps until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context, interval time.Duration) {
	if c == nil || ctx == nil {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	//1.- Perform an eager sweep so retention applies immediately on startup.
	c.sweep()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// RunOnce performs a single retention sweep.
func (c *Cleaner) RunOnce() {
	if c == nil {
		return
	}
	c.sweep()
}

// Stats returns the last recorded storage statistics.
func (c *Cleaner) Stats() StorageStats {
	if c == nil {
		return StorageStats{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

type session struct {
	name    string
	path    string
	size    int64
	modTime time.Time
}

func (c *Cleaner) sweep() {
	if c == nil || strings.TrimSpace(c.dir) == "" {
		return
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.log.Warn("journal retention scan failed", logging.Error(err), logging.String("directory", c.dir))
		return
	}
	c.mu.RLock()
	active := c.active
	c.mu.RUnlock()

	sessions := c.collect(entries)
	now := c.now()
	kept := 0
	stats := StorageStats{LastSweep: now}
	for _, current := range sessions {
		if current.path != active {
			if remove, reasons := c.shouldRemove(current, now, kept); remove {
				err := os.RemoveAll(current.path)
				if err == nil || errors.Is(err, fs.ErrNotExist) {
					c.log.Info("journal retention removed session", logging.String("session", current.name), logging.String("reason", reasons))
					continue
				}
				c.log.Warn("journal retention removal failed", logging.Error(err), logging.String("session", current.name))
			}
		}
		//1.- Anything not removed counts towards the retained budget.
		kept++
		stats.Sessions++
		stats.Bytes += current.size
	}
	c.mu.Lock()
	c.stats = stats
	c.mu.Unlock()
}

func (c *Cleaner) collect(entries []os.DirEntry) []session {
	sessions := make([]session, 0, len(entries))
	for _, entry := range entries {
		//1.- Only session directories are journal artefacts, stray files are left alone.
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(c.dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			c.log.Warn("journal retention stat failed", logging.Error(err), logging.String("path", path))
			continue
		}
		size, err := directorySize(path)
		if err != nil {
			c.log.Warn("journal retention size failed", logging.Error(err), logging.String("path", path))
			continue
		}
		sessions = append(sessions, session{name: entry.Name(), path: filepath.Clean(path), size: size, modTime: info.ModTime()})
	}
	//2.- Newest first so the session limit favours recent runs.
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].modTime.After(sessions[j].modTime) })
	return sessions
}

func (c *Cleaner) shouldRemove(current session, now time.Time, kept int) (bool, string) {
	reasons := make([]string, 0, 2)
	if c.policy.MaxAge > 0 && now.Sub(current.modTime) > c.policy.MaxAge {
		reasons = append(reasons, fmt.Sprintf("age>%s", c.policy.MaxAge))
	}
	if c.policy.MaxSessions > 0 && kept >= c.policy.MaxSessions {
		reasons = append(reasons, fmt.Sprintf(">=%d sessions", c.policy.MaxSessions))
	}
	return len(reasons) > 0, strings.Join(reasons, ", ")
}

func directorySize(root string) (int64, error) {
	var total int64
	walkErr := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, walkErr
}
