package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/talktojer/ge-sub000/internal/logging"
	"github.com/talktojer/ge-sub000/internal/state"
)

type snapshotOption func(*WorldSnapshotter)

// WithSnapshotClock overrides the snapshot time source; primarily used in tests.
func WithSnapshotClock(clock func() time.Time) snapshotOption {
	return func(s *WorldSnapshotter) {
		if clock != nil {
			s.now = clock
		}
	}
}

// shipRestorer re-registers persisted player ships so population accounting sees them.
type shipRestorer interface {
	UpsertShip(ctx context.Context, ship state.Ship) error
}

// WorldSnapshotter persists the ships and objects of the world so a restarted core
// resumes where it stopped.
type WorldSnapshotter struct {
	path     string
	interval time.Duration
	world    *state.World
	log      *logging.Logger
	now      func() time.Time
}

type snapshotFile struct {
	SavedAt time.Time      `json:"saved_at"`
	Ships   []state.Ship   `json:"ships"`
	Objects []state.Object `json:"objects"`
}

// NewWorldSnapshotter returns nil when persistence is disabled.
func NewWorldSnapshotter(path string, interval time.Duration, world *state.World, logger *logging.Logger, opts ...snapshotOption) *WorldSnapshotter {
	if path == "" || interval <= 0 || world == nil {
		return nil
	}
	if logger == nil {
		logger = logging.L()
	}
	snapshot := &WorldSnapshotter{
		path:     path,
		interval: interval,
		world:    world,
		log:      logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(snapshot)
		}
	}
	return snapshot
}

// Restore loads the persisted snapshot. Objects go straight into the world, player ships
// go through the restorer; Cybertrons are left to the population controller.
func (s *WorldSnapshotter) Restore(ctx context.Context, ships shipRestorer) (int, error) {
	if s == nil {
		return 0, nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	var file snapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("decode world snapshot: %w", err)
	}
	restored := 0
	for _, object := range file.Objects {
		if err := s.world.UpsertObject(object); err != nil {
			s.log.Warn("skipping snapshot object", logging.String("object_id", object.ID), logging.Error(err))
			continue
		}
		restored++
	}
	for _, ship := range file.Ships {
		if ship.AI || ship.Combat.Destroyed() {
			continue
		}
		if err := ships.UpsertShip(ctx, ship); err != nil {
			return restored, fmt.Errorf("restore ship %s: %w", ship.ID(), err)
		}
		restored++
	}
	s.log.Info("world snapshot restored", logging.Int("records", restored), logging.String("saved_at", file.SavedAt.Format(time.RFC3339)))
	return restored, nil
}

// Run persists the world on every interval and once more when the context ends.
func (s *WorldSnapshotter) Run(ctx context.Context) error {
	if s == nil {
		return nil
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.flush()
		case <-ctx.Done():
			s.flush()
			return nil
		}
	}
}

// Flush immediately persists the current world to disk.
func (s *WorldSnapshotter) Flush() error {
	if s == nil {
		return nil
	}
	snapshot := s.world.Snapshot()
	file := snapshotFile{SavedAt: s.now().UTC(), Ships: snapshot.Ships.Updated, Objects: snapshot.Objects.Updated}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
		return err
	}
	//1.- Write beside the target and rename so a crash never leaves half a snapshot behind.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *WorldSnapshotter) flush() {
	if err := s.Flush(); err != nil {
		s.log.Error("failed to persist world snapshot", logging.Error(err))
	}
}
