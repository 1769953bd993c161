package engine

import (
	"context"
	"fmt"

	"github.com/talktojer/ge-sub000/internal/ai"
	"github.com/talktojer/ge-sub000/internal/combat"
	"github.com/talktojer/ge-sub000/internal/events"
	"github.com/talktojer/ge-sub000/internal/galaxy"
	"github.com/talktojer/ge-sub000/internal/gameplay"
	"github.com/talktojer/ge-sub000/internal/logging"
	"github.com/talktojer/ge-sub000/internal/physics"
	"github.com/talktojer/ge-sub000/internal/radar"
	"github.com/talktojer/ge-sub000/internal/simulation"
	"github.com/talktojer/ge-sub000/internal/state"
)

const (
	// patrolImpulse is the cruise power of patrolling and task ships.
	patrolImpulse = 50
	// arrivalDistance stops task ships once they reach their objective, in coordinate units.
	arrivalDistance = 0.5
)

// processCybertrons is the AI loop: sweep, decide and execute the decisions as commands.
func (c *Core) processCybertrons(ctx context.Context, tick simulation.Tick) (simulation.Summary, error) {
	world, err := c.read(ctx)
	if err != nil {
		return simulation.Summary{Errors: 1}, err
	}

	//1.- Each pilot sees the world through a passive long range sweep.
	observations := make(map[string]ai.Observation)
	for _, pilot := range c.fleet.Ships() {
		ship, ok := world.byID[pilot.ID]
		if !ok || ship.Combat.Destroyed() {
			c.forget(pilot.ID)
			c.logger.Info("ai ship dropped", logging.String("ship_id", pilot.ID))
			continue
		}
		scanRange := 0.0
		if class, ok := gameplay.Lookup(ship.Combat.Class); ok {
			scanRange = class.ScanRange
		}
		contacts := c.scanner.Sweep(ship.Observer(), radar.ScannerLongRange, scanRange, world.scannable(ship.ID(), cybertronView), tick.Number)
		observations[pilot.ID] = observation(ship, contacts)
	}

	//2.- Decide, then execute individual decisions before group support orders.
	result := c.fleet.Tick(tick.Number, observations)
	summary := simulation.Summary{Processed: len(result.Decisions)}
	var changes state.Changes
	for _, decision := range result.Decisions {
		changes.Emit(events.FromDecision(c.Tick(), c.now(), decision))
		c.executeIsolated(ctx, &summary, tick, world, decision, &changes)
	}
	for _, decision := range result.Coordination {
		if decision.Action != ai.ActionSupport {
			continue
		}
		c.executeIsolated(ctx, &summary, tick, world, decision, &changes)
	}
	if err := c.apply(ctx, changes); err != nil {
		summary.Errors++
		return summary, err
	}
	return summary, nil
}

// executeIsolated keeps the orders of one decision only when it executed cleanly.
func (c *Core) executeIsolated(ctx context.Context, summary *simulation.Summary, tick simulation.Tick, world snapshot, decision ai.Decision, changes *state.Changes) {
	c.isolate(summary, tick, decision.ShipID, func() error {
		var orders state.Changes
		if err := c.execute(ctx, world, decision, &orders); err != nil {
			return fmt.Errorf("%s decision: %w", decision.Action, err)
		}
		changes.Merge(orders)
		return nil
	})
}

// execute turns a decision into helm orders and combat commands, exactly like a player would.
func (c *Core) execute(ctx context.Context, world snapshot, decision ai.Decision, changes *state.Changes) error {
	ship, ok := world.byID[decision.ShipID]
	if !ok || ship.Combat.Destroyed() {
		return nil
	}
	movement := ship.Movement
	target, hasTarget := world.byID[decision.TargetID]

	switch decision.Action {
	case ai.ActionHunt, ai.ActionPursue, ai.ActionEngage:
		if !hasTarget {
			break
		}
		movement = physics.Rotate(movement, physics.PursuitHeading(movement, target.Movement))
		movement = physics.SetSpeed(movement, movement.MaxSpeed)
		if decision.Action == ai.ActionEngage {
			rangeToTarget := galaxy.Range(ship.Combat.Position, target.Combat.Position)
			bearing := galaxy.Bearing(ship.Combat.Position, target.Combat.Position, ship.Combat.Heading)
			c.locks.Acquire(ship.ID(), target.ID(), rangeToTarget, bearing, ship.Combat.FireControlDamaged())
		}
	case ai.ActionAttack:
		if !hasTarget {
			break
		}
		movement = attackManoeuvre(movement, target, decision.Parameters.Pattern)
		weapon := decision.Parameters.Weapon
		if weapon == "" {
			weapon = combat.ActionFirePhasers
		}
		result, err := c.Combat(ctx, CombatRequest{ShipID: ship.ID(), TargetID: target.ID(), Action: string(weapon)})
		if err != nil {
			return fmt.Errorf("attack %s: %w", target.ID(), err)
		}
		if !result.Success {
			c.logger.Debug("ai attack rejected", logging.String("ship_id", ship.ID()), logging.String("reason", result.Message))
		}
	case ai.ActionRetreat:
		if threat, ok := world.byID[decision.Parameters.EvadeFrom]; ok {
			movement = physics.Rotate(movement, physics.EvasionHeading(ship.Combat.Position, threat.Combat.Position))
		}
		movement = physics.SetSpeed(movement, movement.MaxSpeed)
	case ai.ActionRepair, ai.ActionIdle, ai.ActionAwaitCargo:
		movement = physics.Stop(movement)
	case ai.ActionPatrol, ai.ActionPatrolAlert, ai.ActionScoutArea, ai.ActionSearchResources:
		sector := galaxy.SectorOf(ship.Combat.Position)
		anchor := galaxy.Coordinate{X: float64(sector.X) + 0.5, Y: float64(sector.Y) + 0.5}
		movement = physics.Rotate(movement, physics.OrbitHeading(ship.Combat.Position, anchor))
		movement = cruise(movement)
	case ai.ActionMineResources, ai.ActionTransportCargo:
		destination, ok := objectPosition(world, decision.TargetID)
		if !ok {
			break
		}
		if galaxy.Distance(ship.Combat.Position, destination) <= arrivalDistance {
			movement = physics.Stop(movement)
			break
		}
		movement = physics.Rotate(movement, galaxy.HeadingTo(ship.Combat.Position, destination))
		movement = cruise(movement)
	case ai.ActionSupport:
		if !hasTarget {
			break
		}
		movement = physics.Rotate(movement, physics.PursuitHeading(movement, target.Movement))
		movement = physics.SetSpeed(movement, target.Movement.Speed)
		if target.Movement.Speed == 0 {
			movement = cruise(movement)
		}
	}
	if movement != ship.Movement {
		changes.Move(ship.ID(), movement)
	}
	return nil
}

// attackManoeuvre shapes the approach flown while firing.
func attackManoeuvre(movement physics.MovementState, target state.Ship, pattern ai.AttackPattern) physics.MovementState {
	switch pattern {
	case ai.PatternFlanking:
		movement = physics.Rotate(movement, physics.OrbitHeading(movement.Position, target.Combat.Position))
		return physics.SetSpeed(movement, movement.MaxSpeed*0.75)
	case ai.PatternDefensiveFire:
		movement = physics.Rotate(movement, galaxy.HeadingTo(movement.Position, target.Combat.Position))
		return physics.SetSpeed(movement, movement.MaxSpeed*0.25)
	case ai.PatternFrontalAssault:
		movement = physics.Rotate(movement, physics.PursuitHeading(movement, target.Movement))
		return physics.SetSpeed(movement, movement.MaxSpeed)
	default:
		movement = physics.Rotate(movement, physics.PursuitHeading(movement, target.Movement))
		return physics.SetSpeed(movement, movement.MaxSpeed*0.5)
	}
}

func cruise(movement physics.MovementState) physics.MovementState {
	speed, err := physics.ImpulseSpeed(patrolImpulse)
	if err != nil {
		return movement
	}
	return physics.SetSpeed(movement, speed)
}

func objectPosition(world snapshot, objectID string) (galaxy.Coordinate, bool) {
	if objectID == "" {
		return galaxy.Coordinate{}, false
	}
	for _, object := range world.objects {
		if object.ID == objectID {
			return object.Position, true
		}
	}
	if ship, ok := world.byID[objectID]; ok {
		return ship.Combat.Position, true
	}
	return galaxy.Coordinate{}, false
}
