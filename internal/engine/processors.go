package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/talktojer/ge-sub000/internal/combat"
	"github.com/talktojer/ge-sub000/internal/destruct"
	"github.com/talktojer/ge-sub000/internal/events"
	"github.com/talktojer/ge-sub000/internal/galaxy"
	"github.com/talktojer/ge-sub000/internal/logging"
	"github.com/talktojer/ge-sub000/internal/physics"
	"github.com/talktojer/ge-sub000/internal/simulation"
	"github.com/talktojer/ge-sub000/internal/state"
	"github.com/talktojer/ge-sub000/internal/targeting"
)

const (
	// MaxEnergy caps energy regeneration.
	MaxEnergy = 50000.0
	// EnergyRegen is the energy an undamaged ship regains per ship systems tick.
	EnergyRegen = 100.0
	// ShieldRecharge is the charge raised shields regain per ship systems tick.
	ShieldRecharge = 5.0
	// HullRepair is the hull damage repaired per ship systems tick outside battle.
	HullRepair = 2.0
	// SystemRepair is the subsystem damage repaired per ship systems tick outside battle.
	SystemRepair = 1.0
)

// LoopSettings is the cadence of one loop.
type LoopSettings struct {
	Interval time.Duration
	Enabled  bool
}

// Processors returns the processor of every loop in scheduling order.
func (c *Core) Processors() []simulation.Processor {
	return []simulation.Processor{
		simulation.ProcessorFunc{Label: string(simulation.LoopMovement), Fn: c.processMovement},
		simulation.ProcessorFunc{Label: string(simulation.LoopShipSystems), Fn: c.processShipSystems},
		simulation.ProcessorFunc{Label: string(simulation.LoopCybertron), Fn: c.processCybertrons},
		simulation.ProcessorFunc{Label: string(simulation.LoopPlanets), Fn: c.processPlanets},
	}
}

// Register installs every processor on the scheduler with its configured cadence.
func (c *Core) Register(scheduler *simulation.Scheduler, loops map[simulation.LoopName]LoopSettings) error {
	if scheduler == nil {
		return fmt.Errorf("scheduler is required")
	}
	for _, processor := range c.Processors() {
		name := simulation.LoopName(processor.Name())
		cadence, ok := loops[name]
		if !ok {
			return fmt.Errorf("loop %s is not configured", name)
		}
		if err := scheduler.Register(simulation.LoopConfig{
			Name:      name,
			Interval:  cadence.Interval,
			Enabled:   cadence.Enabled,
			Processor: processor,
		}); err != nil {
			return err
		}
	}
	return nil
}

// ledger tracks ship records as one tick changes them, so later steps see earlier damage.
type ledger map[string]state.Ship

func newLedger(ships []state.Ship) ledger {
	entries := make(ledger, len(ships))
	for _, ship := range ships {
		entries[ship.ID()] = ship
	}
	return entries
}

func (l ledger) locate(shipID string) (galaxy.Coordinate, bool) {
	ship, ok := l[shipID]
	if !ok {
		return galaxy.Coordinate{}, false
	}
	return ship.Combat.Position, true
}

func (l ledger) resolve(attackerID, targetID string) (targeting.Observation, bool) {
	attacker, ok := l[attackerID]
	if !ok || attacker.Combat.Destroyed() {
		return targeting.Observation{}, false
	}
	target, ok := l[targetID]
	if !ok || target.Combat.Destroyed() {
		return targeting.Observation{}, false
	}
	return targeting.Observation{
		Range:        galaxy.Range(attacker.Combat.Position, target.Combat.Position),
		Bearing:      galaxy.Bearing(attacker.Combat.Position, target.Combat.Position, attacker.Combat.Heading),
		JammerActive: target.Combat.JammerActive,
	}, true
}

// processMovement is the fast loop: movement, lock upkeep, battle sweep, countdowns and mines.
func (c *Core) processMovement(ctx context.Context, tick simulation.Tick) (simulation.Summary, error) {
	c.tick.Store(tick.Number)
	world, err := c.read(ctx)
	if err != nil {
		return simulation.Summary{Errors: 1}, err
	}
	entries := newLedger(world.ships)
	var changes state.Changes
	summary := simulation.Summary{}

	//1.- Step every moving ship of this tick's batch; a broken ship never stalls its peers.
	for index, ship := range world.ships {
		if ship.Combat.Destroyed() || !physics.Moving(ship.Movement) {
			continue
		}
		if !simulation.InBatch(index, tick.Number, c.stride) {
			continue
		}
		c.isolate(&summary, tick, ship.ID(), func() error {
			if !ship.Movement.Position.Finite() {
				return fmt.Errorf("%w: position %+v", ErrMalformedShip, ship.Movement.Position)
			}
			moved := ship
			moved.Movement = c.step(ship.Movement, c.boundary)
			moved = moved.Synced()
			entries[ship.ID()] = moved
			changes.Move(ship.ID(), moved.Movement)
			summary.Processed++
			return nil
		})
	}

	//2.- Locks follow the new geometry; lost locks are reported once.
	for _, lock := range c.locks.Tick(entries.resolve) {
		if lock.Status != targeting.StatusLost {
			continue
		}
		event := events.Lifecycle(events.KindLock, tick.Number, c.now(), lock.AttackerID, "lock lost")
		event.TargetID = lock.TargetID
		changes.Emit(event)
	}

	//3.- Battle timeouts and self-destruct countdowns.
	battles := c.battles.Tick(entries.locate)
	for _, detonation := range battles.Detonations {
		c.detonate(&changes, entries, detonation, tick.Number)
	}

	//4.- Mines trigger on the first ship inside their trigger range.
	for _, object := range world.objects {
		if object.Mine == nil {
			continue
		}
		if c.triggerMine(&changes, entries, object, tick.Number) {
			changes.ObjectsRemoved = append(changes.ObjectsRemoved, object.ID)
		}
	}

	//5.- Cooldowns advance and expired decoys drop their flag.
	for _, shipID := range c.combat.Tick(tick.Number) {
		changes.Patch(combat.ShipPatch{ShipID: shipID, DecoyActive: combat.Bool(false)})
	}

	if err := c.apply(ctx, changes); err != nil {
		summary.Errors++
		return summary, err
	}
	return summary, nil
}

func (c *Core) detonate(changes *state.Changes, entries ledger, detonation destruct.Detonation, tick uint64) {
	exploding, ok := entries[detonation.ShipID]
	source := combat.ShipCombatSnapshot{ID: detonation.ShipID, Position: detonation.Position}
	if ok {
		source = exploding.Combat
	}
	targets := make([]destruct.Target, 0, len(entries))
	for id, ship := range entries {
		if ship.Combat.Destroyed() {
			continue
		}
		targets = append(targets, destruct.Target{ID: id, Position: ship.Combat.Position})
	}
	impacts := detonation.Affected(targets)
	for _, impact := range impacts {
		c.inflict(changes, entries, source, impact.ShipID, combat.DamageTypeSelfDestruct, impact.Damage, impact.Distance, tick)
	}
	changes.Emit(events.FromDetonation(tick, c.now(), detonation, len(impacts)))
	if ok && !exploding.Combat.Destroyed() {
		c.destroy(changes, exploding, tick)
	}
}

func (c *Core) triggerMine(changes *state.Changes, entries ledger, object state.Object, tick uint64) bool {
	mine := *object.Mine
	victimID := ""
	closest := math.Inf(1)
	for id, ship := range entries {
		if id == mine.OwnerID || ship.Combat.Destroyed() {
			continue
		}
		distance := galaxy.Range(mine.Position, ship.Combat.Position)
		if distance <= mine.TriggerRange && (distance < closest || (distance == closest && id < victimID)) {
			victimID, closest = id, distance
		}
	}
	if victimID == "" {
		return false
	}
	source := combat.ShipCombatSnapshot{ID: mine.OwnerID, Position: mine.Position}
	if owner, ok := entries[mine.OwnerID]; ok {
		source = owner.Combat
	}
	c.inflict(changes, entries, source, victimID, combat.DamageTypeMine, mine.Damage, closest, tick)
	return true
}

// inflict resolves area damage against one ship of the ledger.
func (c *Core) inflict(changes *state.Changes, entries ledger, source combat.ShipCombatSnapshot, victimID string, damageType combat.DamageType, amount, distance float64, tick uint64) {
	victim, ok := entries[victimID]
	if !ok || victim.Combat.Destroyed() {
		return
	}
	report := c.combat.ResolveAttack(source, victim.Combat, damageType, amount, distance)
	damaged, patch := combat.ApplyDamage(victim.Combat, report)
	victim.Combat = damaged
	entries[victimID] = victim
	changes.Patch(patch)
	changes.Emit(events.FromDamage(tick, c.now(), source.ID, report))
	if report.ShipDestroyed {
		c.destroy(changes, victim, tick)
	}
}

// processShipSystems is the medium loop: energy regeneration, shield recharge and repairs.
func (c *Core) processShipSystems(ctx context.Context, tick simulation.Tick) (simulation.Summary, error) {
	ships, err := c.world.Ships(ctx)
	if err != nil {
		return simulation.Summary{Errors: 1}, fmt.Errorf("read ships: %w", err)
	}
	fighting := make(map[string]struct{})
	for _, active := range c.battles.Active() {
		fighting[active.AttackerID] = struct{}{}
		fighting[active.DefenderID] = struct{}{}
	}
	var changes state.Changes
	summary := simulation.Summary{}
	for _, ship := range ships {
		if ship.Combat.Destroyed() {
			continue
		}
		_, inBattle := fighting[ship.ID()]
		c.isolate(&summary, tick, ship.ID(), func() error {
			changes.Patch(Regenerate(ship.Combat, inBattle))
			summary.Processed++
			return nil
		})
	}
	if err := c.apply(ctx, changes); err != nil {
		summary.Errors++
		return summary, err
	}
	return summary, nil
}

// Regenerate returns the upkeep patch of one ship systems tick. Ships in battle are not repaired.
func Regenerate(ship combat.ShipCombatSnapshot, inBattle bool) combat.ShipPatch {
	patch := combat.ShipPatch{ShipID: ship.ID}
	if ship.Energy < MaxEnergy {
		regen := EnergyRegen * (1 - ship.HullDamage/200)
		patch.EnergyDelta = math.Max(0, math.Min(regen, MaxEnergy-ship.Energy))
	}
	if ship.ShieldsUp && ship.ShieldCharge < 100 && ship.ShieldDamage < 100 {
		recharge := ShieldRecharge * (1 - ship.ShieldDamage/100)
		patch.ShieldChargeDelta = math.Min(recharge, 100-ship.ShieldCharge)
	}
	if inBattle {
		return patch
	}
	patch.HullDamage = -math.Min(HullRepair, ship.HullDamage)
	patch.HelmDamage = -math.Min(SystemRepair, ship.HelmDamage)
	patch.TacticalDamage = -math.Min(SystemRepair, ship.TacticalDamage)
	patch.FireControlDamage = -math.Min(SystemRepair, ship.FireControlDamage)
	patch.EngineDamage = -math.Min(SystemRepair, ship.EngineDamage)
	patch.PhaserDamage = -math.Min(SystemRepair, ship.PhaserDamage)
	patch.ShieldDamage = -math.Min(SystemRepair, ship.ShieldDamage)
	return patch
}

// processPlanets is the slow loop: planet cache refresh and Cybertron population upkeep.
func (c *Core) processPlanets(ctx context.Context, tick simulation.Tick) (simulation.Summary, error) {
	planets, err := c.world.Planets(ctx)
	if err != nil {
		return simulation.Summary{Errors: 1}, fmt.Errorf("read planets: %w", err)
	}
	c.planets.Store(int64(len(planets)))
	summary := simulation.Summary{Processed: len(planets)}
	//1.- Replace destroyed Cybertrons so the fleet stays at its target size.
	if err := c.adjustPopulation(ctx, c.population.Reconcile); err != nil {
		summary.Errors++
		return summary, err
	}
	return summary, nil
}

// isolate runs the work of one object. A returned error or a panic is logged and counted,
// the remaining objects of the tick are processed regardless.
func (c *Core) isolate(summary *simulation.Summary, tick simulation.Tick, objectID string, work func() error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			summary.Errors++
			c.logger.Error("object processing panicked",
				logging.String("loop", string(tick.Loop)),
				logging.Uint64("tick", tick.Number),
				logging.String("object_id", objectID),
				logging.Error(fmt.Errorf("%v", recovered)),
			)
		}
	}()
	if err := work(); err != nil {
		summary.Errors++
		c.logger.Error("object processing failed",
			logging.String("loop", string(tick.Loop)),
			logging.Uint64("tick", tick.Number),
			logging.String("object_id", objectID),
			logging.Error(err),
		)
	}
}

func (c *Core) apply(ctx context.Context, changes state.Changes) error {
	if changes.Empty() {
		return nil
	}
	if err := c.sink.Apply(ctx, changes); err != nil {
		c.logger.Error("apply changes failed", logging.Error(err), logging.Int("patches", len(changes.Patches)))
		return fmt.Errorf("apply changes: %w", err)
	}
	return nil
}
