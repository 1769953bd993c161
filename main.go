package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/talktojer/ge-sub000/internal/archive"
	"github.com/talktojer/ge-sub000/internal/battle"
	"github.com/talktojer/ge-sub000/internal/config"
	"github.com/talktojer/ge-sub000/internal/engine"
	"github.com/talktojer/ge-sub000/internal/events"
	"github.com/talktojer/ge-sub000/internal/galaxy"
	grpcbridge "github.com/talktojer/ge-sub000/internal/grpc"
	"github.com/talktojer/ge-sub000/internal/logging"
	"github.com/talktojer/ge-sub000/internal/metrics"
	"github.com/talktojer/ge-sub000/internal/replay"
	"github.com/talktojer/ge-sub000/internal/simulation"
	"github.com/talktojer/ge-sub000/internal/state"
	"github.com/talktojer/ge-sub000/internal/telemetry"
)

// configFileEnv names the optional configuration file.
const configFileEnv = "GE_CONFIG_FILE"

const (
	journalMaxSessions   = 20
	journalMaxAge        = 7 * 24 * time.Hour
	journalSweepInterval = time.Hour
	eventRetention       = 4096
	shutdownGrace        = 5 * time.Second
)

func main() {
	cfg, err := config.Load(os.Getenv(configFileEnv))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	logging.ReplaceGlobals(logger)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	node, err := newNode(cfg, logger)
	if err != nil {
		logger.Error("simulation core failed to start", logging.Error(err))
		os.Exit(1)
	}
	listener, err := net.Listen("tcp", cfg.GRPC.Address)
	if err != nil {
		node.Close()
		logger.Error("grpc listen failed", logging.String("address", cfg.GRPC.Address), logging.Error(err))
		os.Exit(1)
	}
	if err := node.Run(ctx, listener); err != nil {
		logger.Error("simulation core stopped with error", logging.Error(err))
		os.Exit(1)
	}
}

// node owns every long lived component of the simulation core process.
type node struct {
	cfg       *config.Config
	logger    *logging.Logger
	world     *state.World
	stream    *events.Stream
	core      *engine.Core
	scheduler *simulation.Scheduler
	server    *grpc.Server

	archive   *archive.Archive
	recorder  *replay.Recorder
	cleaner   *replay.Cleaner
	exporter  *telemetry.Exporter
	snapshots *WorldSnapshotter
	closers   []func() error
}

// newNode wires the world, the core, its sinks and the gRPC bridge from configuration.
func newNode(cfg *config.Config, logger *logging.Logger) (_ *node, err error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.L()
	}
	stream := events.NewStream(events.Config{Retain: eventRetention})
	n := &node{
		cfg:    cfg,
		logger: logger,
		stream: stream,
		world:  state.NewWorld(state.WithPublisher(stream), state.WithLogger(logger)),
	}
	defer func() {
		if err != nil {
			n.Close()
		}
	}()

	//1.- Battle summaries fan out to whichever persistent sinks are enabled.
	var sinks []battle.SummarySink
	if cfg.Archive.Enabled {
		n.archive, err = archive.Open(archive.Config{Driver: cfg.Archive.Driver, Path: cfg.Archive.Path, DSN: cfg.Archive.DSN}, logger)
		if err != nil {
			return nil, err
		}
		n.closers = append(n.closers, n.archive.Close)
		sinks = append(sinks, n.archive)
	}
	if cfg.Journal.Enabled {
		writer, _, err := replay.NewWriter(cfg.Journal.Dir, uuid.NewString(), time.Now)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		writer.SetHeaderMetadata(cfg.Combat.Seed, replay.Parameters{
			"universe_max": cfg.Galaxy.UniverseMax,
			"battle_range": cfg.Combat.BattleRange,
			"lock_range":   cfg.Combat.LockRange,
		})
		n.recorder, err = replay.NewRecorder(writer, replay.WithRecorderLogger(logger))
		if err != nil {
			writer.Close()
			return nil, err
		}
		n.closers = append(n.closers, n.recorder.Close)
		sinks = append(sinks, n.recorder)
		n.cleaner = replay.NewCleaner(cfg.Journal.Dir, replay.RetentionPolicy{MaxSessions: journalMaxSessions, MaxAge: journalMaxAge}, logger)
		n.cleaner.Protect(writer.Directory())
	}

	n.core, err = engine.New(n.world, n.world,
		engine.WithSeed(cfg.Combat.Seed),
		engine.WithBoundary(galaxy.Boundary{Max: cfg.Galaxy.UniverseMax, Wrap: cfg.Galaxy.Wrap}),
		engine.WithMovementStride(cfg.Ticks.MovementStride),
		engine.WithBattleLimits(cfg.Combat.BattleRange, cfg.Combat.BattleTimeout),
		engine.WithLockLimits(cfg.Combat.LockRange, cfg.Combat.LockBaseTime),
		engine.WithFleet(cfg.AI.Population, cfg.AI.MaxDecisionsPerTick),
		engine.WithSummarySinks(sinks...),
		engine.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	//2.- Every loop iteration feeds the metrics and, when journaling, a frame.
	recorder, err := metrics.New(nil)
	if err != nil {
		return nil, err
	}
	if _, err := recorder.ObserveRegistries(n.core.RegistrySizes); err != nil {
		return nil, err
	}
	schedulerOpts := []simulation.Option{
		simulation.WithLogger(logger),
		simulation.WithErrorBackoff(cfg.Ticks.ErrorBackoff),
		simulation.WithObserver(recorder),
	}
	if n.recorder != nil {
		schedulerOpts = append(schedulerOpts, simulation.WithObserver(n.recorder))
	}
	n.scheduler = simulation.NewScheduler(schedulerOpts...)
	if err := n.core.Register(n.scheduler, loopSettings(cfg.Ticks)); err != nil {
		return nil, err
	}

	if cfg.Telemetry.Dir != "" {
		n.exporter, err = telemetry.NewExporter(cfg.Telemetry.Dir, logger)
		if err != nil {
			return nil, err
		}
		n.closers = append(n.closers, n.exporter.Close)
	}
	n.snapshots = NewWorldSnapshotter(cfg.Snapshot.Path, cfg.Snapshot.Interval, n.world, logger)
	n.server = grpcbridge.NewServer(n.core, stream, cfg.GRPC, logger)
	return n, nil
}

func loopSettings(ticks config.TickConfig) map[simulation.LoopName]engine.LoopSettings {
	return map[simulation.LoopName]engine.LoopSettings{
		simulation.LoopMovement:    {Interval: ticks.MovementInterval, Enabled: ticks.MovementEnabled},
		simulation.LoopShipSystems: {Interval: ticks.ShipSystemsInterval, Enabled: ticks.ShipSystemsEnabled},
		simulation.LoopCybertron:   {Interval: ticks.CybertronInterval, Enabled: ticks.CybertronEnabled},
		simulation.LoopPlanets:     {Interval: ticks.PlanetInterval, Enabled: ticks.PlanetEnabled},
	}
}

// Run restores the world, starts the loops and serves the bridge until the context ends.
func (n *node) Run(ctx context.Context, listener net.Listener) error {
	defer n.Close()
	if _, err := n.snapshots.Restore(ctx, n.core); err != nil {
		return err
	}
	if err := n.core.Populate(ctx); err != nil {
		return fmt.Errorf("populate cybertrons: %w", err)
	}
	if n.archive != nil {
		if err := n.archive.Start(ctx, n.stream); err != nil {
			return err
		}
	}
	if n.recorder != nil {
		if err := n.recorder.Start(ctx, n.stream); err != nil {
			return err
		}
	}
	if err := n.scheduler.Start(ctx); err != nil {
		return err
	}
	defer n.scheduler.Stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		n.logger.Info("grpc bridge listening", logging.String("address", listener.Addr().String()))
		if err := n.server.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		//1.- Event streams never finish on their own, so a slow drain falls back to a hard stop.
		stopped := make(chan struct{})
		go func() {
			n.server.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(shutdownGrace):
			n.server.Stop()
		}
		return nil
	})
	group.Go(func() error {
		return n.snapshots.Run(groupCtx)
	})
	if n.exporter != nil {
		group.Go(func() error {
			n.exporter.Run(groupCtx, n.cfg.Telemetry.Interval, n.scheduler.Stats)
			return nil
		})
	}
	if n.cleaner != nil {
		group.Go(func() error {
			n.cleaner.Run(groupCtx, journalSweepInterval)
			return nil
		})
	}
	return group.Wait()
}

// Close releases the sinks in reverse order of creation.
func (n *node) Close() {
	if n == nil {
		return
	}
	closers := n.closers
	n.closers = nil
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			n.logger.Warn("close failed", logging.Error(err))
		}
	}
}
