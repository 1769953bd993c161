// Package engine is the facade of the simulation core. It owns the tactical registries,
// dispatches player and AI commands against world snapshots and hands every outcome back
// to the world as explicit change sets.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/talktojer/ge-sub000/internal/ai"
	"github.com/talktojer/ge-sub000/internal/battle"
	"github.com/talktojer/ge-sub000/internal/combat"
	"github.com/talktojer/ge-sub000/internal/destruct"
	"github.com/talktojer/ge-sub000/internal/events"
	"github.com/talktojer/ge-sub000/internal/galaxy"
	"github.com/talktojer/ge-sub000/internal/logging"
	"github.com/talktojer/ge-sub000/internal/physics"
	"github.com/talktojer/ge-sub000/internal/radar"
	"github.com/talktojer/ge-sub000/internal/state"
	"github.com/talktojer/ge-sub000/internal/targeting"
)

var (
	// ErrUnknownShip is returned when a command references a ship the world does not know.
	ErrUnknownShip = errors.New("unknown ship")
	// ErrMalformedShip marks a ship record the simulation cannot process.
	ErrMalformedShip = errors.New("malformed ship")
)

// WorldSource hands out immutable snapshots of the world the core reads every tick.
type WorldSource interface {
	Ships(ctx context.Context) ([]state.Ship, error)
	Planets(ctx context.Context) ([]state.Object, error)
	Objects(ctx context.Context) ([]state.Object, error)
}

// ResultSink receives every change set the core produces.
type ResultSink interface {
	Apply(ctx context.Context, changes state.Changes) error
}

// Core wires the combat engine, the tactical registries and the AI fleet together.
type Core struct {
	world WorldSource
	sink  ResultSink

	combat     *combat.Engine
	locks      *targeting.Registry
	destructs  *destruct.Registry
	battles    *battle.Manager
	scanner    *radar.Scanner
	fleet      *ai.Manager
	population *ai.PopulationController

	boundary galaxy.Boundary
	stride   int
	step     func(physics.MovementState, galaxy.Boundary) physics.MovementState
	now      func() time.Time
	logger   *logging.Logger

	tick    atomic.Uint64
	planets atomic.Int64
	shots   atomic.Uint64

	mu      sync.Mutex
	pending state.Changes
	players map[string]struct{}
}

type settings struct {
	seed          string
	boundary      galaxy.Boundary
	stride        int
	now           func() time.Time
	logger        *logging.Logger
	sinks         []battle.SummarySink
	battleRange   float64
	battleTimeout time.Duration
	lockRange     float64
	lockBaseTime  int
	maxDecisions  int
	population    int
}

// Option customises the core.
type Option func(*settings)

// WithSeed derives every random source from the match seed so runs can be replayed.
func WithSeed(seed string) Option {
	return func(s *settings) {
		s.seed = seed
	}
}

// WithBoundary overrides how ships are kept inside the galaxy.
func WithBoundary(boundary galaxy.Boundary) Option {
	return func(s *settings) {
		if boundary.Max > 0 {
			s.boundary = boundary
		}
	}
}

// WithMovementStride spreads the movement loop over stride ticks.
func WithMovementStride(stride int) Option {
	return func(s *settings) {
		if stride > 0 {
			s.stride = stride
		}
	}
}

// WithClock injects the monotonic time source shared by the battle manager and events.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger routes core logs to the provided logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSummarySinks forwards battle summaries, e.g. to the archive and the journal.
func WithSummarySinks(sinks ...battle.SummarySink) Option {
	return func(s *settings) {
		for _, sink := range sinks {
			if sink != nil {
				s.sinks = append(s.sinks, sink)
			}
		}
	}
}

// WithBattleLimits overrides the battle start range and the inactivity timeout.
func WithBattleLimits(maxRange float64, timeout time.Duration) Option {
	return func(s *settings) {
		s.battleRange = maxRange
		s.battleTimeout = timeout
	}
}

// WithLockLimits overrides the lock range and the base acquisition time.
func WithLockLimits(maxRange float64, baseTime int) Option {
	return func(s *settings) {
		s.lockRange = maxRange
		s.lockBaseTime = baseTime
	}
}

// WithFleet sizes the Cybertron population and the per tick decision budget.
func WithFleet(population, maxDecisions int) Option {
	return func(s *settings) {
		if population >= 0 {
			s.population = population
		}
		s.maxDecisions = maxDecisions
	}
}

// New constructs the core and its registries. Registries live as long as the core.
func New(world WorldSource, sink ResultSink, opts ...Option) (*Core, error) {
	if world == nil {
		return nil, errors.New("world source is required")
	}
	if sink == nil {
		return nil, errors.New("result sink is required")
	}
	cfg := settings{
		boundary: galaxy.DefaultBoundary(),
		stride:   1,
		now:      time.Now,
		logger:   logging.L(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	//1.- Every registry draws from its own stream so adding rolls in one never shifts another.
	rng := func(name string) combat.Rand {
		return combat.NewRand(combat.SeedFor(cfg.seed, name))
	}
	combatOpts := []combat.Option{}
	if cfg.seed != "" {
		combatOpts = append(combatOpts, combat.WithMatchSeed(cfg.seed))
	}
	weapons := combat.NewEngine(rng("combat"), combatOpts...)
	locks := targeting.NewRegistry(targeting.WithMaxRange(cfg.lockRange), targeting.WithBaseTime(cfg.lockBaseTime))
	destructs := destruct.NewRegistry(rng("destruct"))

	battleOpts := []battle.Option{
		battle.WithMaxRange(cfg.battleRange),
		battle.WithTimeout(cfg.battleTimeout),
		battle.WithClock(cfg.now),
		battle.WithLogger(cfg.logger),
	}
	for _, sink := range cfg.sinks {
		battleOpts = append(battleOpts, battle.WithSummarySink(sink))
	}

	core := &Core{
		world:     world,
		sink:      sink,
		combat:    weapons,
		locks:     locks,
		destructs: destructs,
		battles:   battle.NewManager(weapons, locks, destructs, battleOpts...),
		scanner:   radar.NewScanner(rng("radar")),
		boundary:  cfg.boundary,
		stride:    cfg.stride,
		step:      physics.Step,
		now:       cfg.now,
		logger:    cfg.logger,
		players:   make(map[string]struct{}),
	}
	//2.- Population scaling reports spawns and retirements back into the pending change set.
	core.fleet = ai.NewManager(rng("ai"),
		ai.WithMaxDecisionsPerTick(cfg.maxDecisions),
		ai.WithSpawnArea(cfg.boundary.Max),
		ai.WithLogger(cfg.logger),
		ai.WithHooks(ai.Hooks{Spawned: core.queueSpawn, Retired: core.queueRetire}),
	)
	core.population = ai.NewPopulationController(ai.PopulationConfig{TargetPopulation: cfg.population, Launcher: core.fleet})
	return core, nil
}

// Battles exposes the battle manager.
func (c *Core) Battles() *battle.Manager { return c.battles }

// Locks exposes the lock registry.
func (c *Core) Locks() *targeting.Registry { return c.locks }

// Destructs exposes the self-destruct registry.
func (c *Core) Destructs() *destruct.Registry { return c.destructs }

// Fleet exposes the AI registry.
func (c *Core) Fleet() *ai.Manager { return c.fleet }

// Population exposes the Cybertron population controller.
func (c *Core) Population() *ai.PopulationController { return c.population }

// Tick returns the latest movement tick, the clock every tactical countdown runs on.
func (c *Core) Tick() uint64 { return c.tick.Load() }

// Populate scales the Cybertron fleet to the configured population and spawns the ships.
func (c *Core) Populate(ctx context.Context) error {
	return c.adjustPopulation(ctx, c.population.Reconcile)
}

// UpsertShip registers or replaces a ship. New player ships shrink the Cybertron fleet.
func (c *Core) UpsertShip(ctx context.Context, ship state.Ship) error {
	if ship.ID() == "" {
		return state.ErrMissingID
	}
	if err := c.sink.Apply(ctx, state.Changes{Spawned: []state.Ship{ship}}); err != nil {
		return fmt.Errorf("upsert ship %s: %w", ship.ID(), err)
	}
	if ship.AI {
		return nil
	}
	c.mu.Lock()
	_, known := c.players[ship.ID()]
	c.players[ship.ID()] = struct{}{}
	c.mu.Unlock()
	if known {
		return nil
	}
	return c.adjustPopulation(ctx, c.population.PlayerJoined)
}

// RemoveShip discards a ship and everything the registries hold for it.
func (c *Core) RemoveShip(ctx context.Context, shipID string) error {
	if shipID == "" {
		return state.ErrMissingID
	}
	changes := state.Changes{Removed: []string{shipID}}
	c.forget(shipID)
	changes.Emit(c.lifecycle(shipID, "removed"))
	if err := c.sink.Apply(ctx, changes); err != nil {
		return fmt.Errorf("remove ship %s: %w", shipID, err)
	}
	c.mu.Lock()
	_, player := c.players[shipID]
	delete(c.players, shipID)
	c.mu.Unlock()
	if !player {
		return nil
	}
	return c.adjustPopulation(ctx, c.population.PlayerLeft)
}

// SpawnAI registers a Cybertron or droid created on request and adds it to the world.
func (c *Core) SpawnAI(ctx context.Context, req ai.CreateRequest) (ai.Result, error) {
	result := c.fleet.Create(req)
	if !result.Success || result.Ship == nil {
		return result, nil
	}
	changes := state.Changes{Spawned: []state.Ship{shipFromAI(*result.Ship)}}
	changes.Emit(c.lifecycle(result.Ship.ID, "spawned"))
	if err := c.sink.Apply(ctx, changes); err != nil {
		c.fleet.Remove(result.Ship.ID)
		return ai.Result{Message: "Spawn failed"}, fmt.Errorf("spawn %s: %w", result.Ship.ID, err)
	}
	return result, nil
}

func (c *Core) adjustPopulation(ctx context.Context, adjust func(context.Context) error) error {
	if err := adjust(ctx); err != nil {
		return fmt.Errorf("population: %w", err)
	}
	changes := c.drainPending()
	if changes.Empty() {
		return nil
	}
	return c.sink.Apply(ctx, changes)
}

func (c *Core) queueSpawn(ship ai.Ship) {
	c.mu.Lock()
	c.pending.Spawned = append(c.pending.Spawned, shipFromAI(ship))
	c.pending.Emit(c.lifecycle(ship.ID, "spawned"))
	c.mu.Unlock()
}

func (c *Core) queueRetire(shipID string) {
	//1.- The fleet already dropped the ship, the tactical registries still hold it.
	c.battles.CleanupShip(shipID)
	c.scanner.Forget(shipID)
	c.mu.Lock()
	c.pending.Removed = append(c.pending.Removed, shipID)
	c.pending.Emit(c.lifecycle(shipID, "retired"))
	c.mu.Unlock()
}

func (c *Core) drainPending() state.Changes {
	c.mu.Lock()
	defer c.mu.Unlock()
	pending := c.pending
	c.pending = state.Changes{}
	return pending
}

// forget drops every registry record the core keeps for the ship.
func (c *Core) forget(shipID string) battle.CleanupReport {
	report := c.battles.CleanupShip(shipID)
	c.fleet.Remove(shipID)
	c.scanner.Forget(shipID)
	return report
}

func (c *Core) lifecycle(shipID, message string) events.Event {
	return events.Lifecycle(events.KindLifecycle, c.Tick(), c.now(), shipID, message)
}

// Stats is the registry overview exposed to operators.
type Stats struct {
	Tick          uint64                `json:"tick"`
	Battles       int                   `json:"battles"`
	Locks         int                   `json:"locks"`
	SelfDestructs int                   `json:"self_destructs"`
	AIShips       int                   `json:"ai_ships"`
	Planets       int64                 `json:"planets"`
	Population    ai.PopulationSnapshot `json:"population"`
}

// Stats reports the size of every registry.
func (c *Core) Stats() Stats {
	return Stats{
		Tick:          c.Tick(),
		Battles:       c.battles.Len(),
		Locks:         c.locks.Len(),
		SelfDestructs: c.destructs.Len(),
		AIShips:       c.fleet.Len(),
		Planets:       c.planets.Load(),
		Population:    c.population.Snapshot(),
	}
}

// RegistrySizes feeds the registry gauges.
func (c *Core) RegistrySizes() map[string]int64 {
	stats := c.Stats()
	return map[string]int64{
		"battles":        int64(stats.Battles),
		"locks":          int64(stats.Locks),
		"self_destructs": int64(stats.SelfDestructs),
		"ai_ships":       int64(stats.AIShips),
		"cooldowns":      int64(c.combat.Cooldowns().Len()),
		"decoys":         int64(c.combat.Decoys().Len()),
	}
}
