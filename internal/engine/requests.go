package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/talktojer/ge-sub000/internal/ai"
	"github.com/talktojer/ge-sub000/internal/battle"
	"github.com/talktojer/ge-sub000/internal/combat"
	"github.com/talktojer/ge-sub000/internal/destruct"
	"github.com/talktojer/ge-sub000/internal/events"
	"github.com/talktojer/ge-sub000/internal/galaxy"
	"github.com/talktojer/ge-sub000/internal/gameplay"
	"github.com/talktojer/ge-sub000/internal/logging"
	"github.com/talktojer/ge-sub000/internal/physics"
	"github.com/talktojer/ge-sub000/internal/radar"
	"github.com/talktojer/ge-sub000/internal/state"
	"github.com/talktojer/ge-sub000/internal/targeting"
)

// NavigationRequest is one helm order.
type NavigationRequest struct {
	ShipID  string  `json:"ship_id"`
	Command string  `json:"command"`
	Warp    int     `json:"warp,omitempty"`
	Impulse int     `json:"impulse,omitempty"`
	Heading float64 `json:"heading,omitempty"`
}

// NavigationResult reports the accepted movement target.
type NavigationResult struct {
	Success  bool                   `json:"success"`
	Message  string                 `json:"message"`
	Movement *physics.MovementState `json:"movement,omitempty"`
}

// Navigate validates the command against the hull's warp rating and updates the movement target.
func (c *Core) Navigate(ctx context.Context, req NavigationRequest) (NavigationResult, error) {
	kind, err := physics.ParseCommandKind(req.Command)
	if err != nil {
		return NavigationResult{Message: fmt.Sprintf("Unknown navigation command: %s", req.Command)}, nil
	}
	world, err := c.read(ctx)
	if err != nil {
		return NavigationResult{}, err
	}
	ship, err := world.ship(req.ShipID)
	if err != nil {
		return NavigationResult{Message: "Ship not found"}, nil
	}
	if ship.Combat.Destroyed() {
		return NavigationResult{Message: "Ship destroyed"}, nil
	}
	cmd := physics.NavigationCommand{Kind: kind, Warp: req.Warp, Impulse: req.Impulse, Heading: req.Heading}
	if class, ok := gameplay.Lookup(ship.Combat.Class); ok {
		cmd.MaxWarp = class.MaxWarp
	}
	//1.- Invalid commands are validation failures and leave the ship untouched.
	movement, err := physics.ApplyNavigation(ship.Movement, cmd)
	if err != nil {
		return NavigationResult{Message: navigationMessage(err)}, nil
	}
	var changes state.Changes
	changes.Move(ship.ID(), movement)
	event := events.Lifecycle(events.KindNavigation, c.Tick(), c.now(), ship.ID(), fmt.Sprintf("%s accepted", kind))
	event.Metadata = map[string]string{"command": string(kind)}
	changes.Emit(event)
	if err := c.sink.Apply(ctx, changes); err != nil {
		return NavigationResult{}, fmt.Errorf("navigate %s: %w", ship.ID(), err)
	}
	return NavigationResult{Success: true, Message: fmt.Sprintf("Navigation command %s accepted", kind), Movement: &movement}, nil
}

func navigationMessage(err error) string {
	switch {
	case errors.Is(err, physics.ErrInvalidWarp):
		return "Invalid warp factor"
	case errors.Is(err, physics.ErrInvalidImpulse):
		return "Invalid impulse power"
	default:
		return "Invalid navigation command"
	}
}

// CombatRequest fires a weapon or operates a countermeasure.
type CombatRequest struct {
	ShipID   string `json:"ship_id"`
	TargetID string `json:"target_id,omitempty"`
	Action   string `json:"action"`
}

// CombatResult reports one resolved combat action.
type CombatResult struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Fire    *combat.FireResult   `json:"fire,omitempty"`
	Battle  *battle.State        `json:"battle,omitempty"`
	Summary *battle.Summary      `json:"summary,omitempty"`
	Damage  *radar.DamageDisplay `json:"damage_display,omitempty"`
}

// Combat resolves a combat action. Weapon fire opens a battle with the target when none is active.
func (c *Core) Combat(ctx context.Context, req CombatRequest) (CombatResult, error) {
	action, err := combat.ParseAction(req.Action)
	if err != nil {
		return CombatResult{Message: fmt.Sprintf("Unknown combat action: %s", req.Action)}, nil
	}
	world, err := c.read(ctx)
	if err != nil {
		return CombatResult{}, err
	}
	attacker, err := world.ship(req.ShipID)
	if err != nil {
		return CombatResult{Message: "Ship not found"}, nil
	}
	tick := c.Tick()
	var changes state.Changes

	if action.Countermeasure() {
		fire := c.combat.Countermeasure(attacker.Combat, action, tick)
		if !fire.Success {
			return CombatResult{Message: fire.Message, Fire: &fire}, nil
		}
		changes.Patch(fire.AttackerPatch)
		if fire.Mine != nil {
			changes.Objects = append(changes.Objects, state.MineObject(fmt.Sprintf("mine-%s-%d", attacker.ID(), c.shots.Add(1)), *fire.Mine))
		}
		changes.Emit(events.FromFire(tick, c.now(), attacker.ID(), "", fire))
		if err := c.sink.Apply(ctx, changes); err != nil {
			return CombatResult{}, fmt.Errorf("combat %s: %w", attacker.ID(), err)
		}
		return CombatResult{Success: true, Message: fire.Message, Fire: &fire}, nil
	}

	target, err := world.ship(req.TargetID)
	if err != nil {
		return CombatResult{Message: "Target not found"}, nil
	}
	//1.- Open the battle first; it validates range and flags both ships hostile.
	opened := false
	if !c.engaged(attacker.ID(), target.ID()) {
		opened = true
		start := c.battles.Start(attacker.Combat, target.Combat)
		if !start.Success {
			return CombatResult{Message: start.Message}, nil
		}
		changes.Patch(start.AttackerPatch, start.DefenderPatch)
		attacker.Combat = start.AttackerPatch.Apply(attacker.Combat)
		target.Combat = start.DefenderPatch.Apply(target.Combat)
	}
	//2.- Resolve the shot inside the battle and fold both deltas into the change set.
	outcome := c.battles.ProcessAction(combat.FireRequest{
		Action:   action,
		Attacker: attacker.Combat,
		Target:   target.Combat,
		Tick:     tick,
		ShotID:   fmt.Sprintf("%s-%d-%d", attacker.ID(), tick, c.shots.Add(1)),
	})
	fire := outcome.Fire
	result := CombatResult{Success: outcome.Success, Message: outcome.Message, Fire: &fire, Battle: outcome.Battle, Summary: outcome.Summary}
	if !outcome.Success {
		//3.- A rejected opening shot takes back the battle and its hostile flags.
		if opened {
			c.battles.Discard(attacker.ID(), target.ID())
		}
		result.Battle = nil
		return result, nil
	}
	changes.Patch(fire.AttackerPatch, fire.TargetPatch)
	changes.Emit(events.FromFire(tick, c.now(), attacker.ID(), target.ID(), fire))
	if fire.Report != nil {
		display := radar.FormatDamageReport(*fire.Report)
		result.Damage = &display
		if fire.Report.ShipDestroyed {
			c.destroy(&changes, target, tick)
		}
	}
	if err := c.sink.Apply(ctx, changes); err != nil {
		return CombatResult{}, fmt.Errorf("combat %s: %w", attacker.ID(), err)
	}
	return result, nil
}

func (c *Core) engaged(a, b string) bool {
	for _, active := range c.battles.Active() {
		if (active.AttackerID == a && active.DefenderID == b) || (active.AttackerID == b && active.DefenderID == a) {
			return true
		}
	}
	return false
}

// ScanRequest runs a powered sensor sweep.
type ScanRequest struct {
	ShipID      string  `json:"ship_id"`
	ScannerType string  `json:"scanner_type"`
	Range       float64 `json:"range,omitempty"`
}

// ScanResponse carries the sweep outcome.
type ScanResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Report  *radar.ScanReport `json:"report,omitempty"`
}

// Scan sweeps the surroundings with the requested scanner and charges its energy.
func (c *Core) Scan(ctx context.Context, req ScanRequest) (ScanResponse, error) {
	scannerType, err := radar.ParseScannerType(req.ScannerType)
	if err != nil {
		return ScanResponse{Message: fmt.Sprintf("Unknown scanner type: %s", req.ScannerType)}, nil
	}
	world, err := c.read(ctx)
	if err != nil {
		return ScanResponse{}, err
	}
	ship, err := world.ship(req.ShipID)
	if err != nil {
		return ScanResponse{Message: "Ship not found"}, nil
	}
	if ship.Combat.Destroyed() {
		return ScanResponse{Message: "Ship destroyed"}, nil
	}
	report, err := c.scanner.Scan(ship.Observer(), radar.ScanRequest{Type: scannerType, Range: req.Range}, world.scannable(ship.ID(), nil))
	if err != nil {
		if errors.Is(err, radar.ErrInsufficientEnergy) {
			return ScanResponse{Message: "Insufficient energy for scan"}, nil
		}
		return ScanResponse{Message: err.Error()}, nil
	}
	var changes state.Changes
	changes.Patch(combat.ShipPatch{ShipID: ship.ID(), EnergyDelta: -report.EnergyUsed})
	if err := c.sink.Apply(ctx, changes); err != nil {
		return ScanResponse{}, fmt.Errorf("scan %s: %w", ship.ID(), err)
	}
	return ScanResponse{Success: true, Message: fmt.Sprintf("Scan complete: %d contacts", len(report.Results)), Report: &report}, nil
}

// Lock operations.
const (
	LockAcquire = "acquire"
	LockBreak   = "break"
	LockStatus  = "status"
)

// LockRequest drives the target lock of one attacker.
type LockRequest struct {
	ShipID    string `json:"ship_id"`
	TargetID  string `json:"target_id"`
	Operation string `json:"operation"`
}

// Lock acquires, breaks or inspects a target lock.
func (c *Core) Lock(ctx context.Context, req LockRequest) (targeting.Result, error) {
	operation := strings.ToLower(strings.TrimSpace(req.Operation))
	if operation == "" {
		operation = LockAcquire
	}
	switch operation {
	case LockBreak:
		result := c.locks.Break(req.ShipID, req.TargetID)
		if result.Success {
			if err := c.emitLock(ctx, req.ShipID, req.TargetID, "lock broken"); err != nil {
				return targeting.Result{}, err
			}
		}
		return result, nil
	case LockStatus:
		lock, ok := c.locks.Status(req.ShipID, req.TargetID)
		if !ok {
			return targeting.Result{Message: "No target lock"}, nil
		}
		return targeting.Result{Success: true, Message: string(lock.Status), Lock: &lock}, nil
	case LockAcquire:
	default:
		return targeting.Result{Message: fmt.Sprintf("Unknown lock operation: %s", req.Operation)}, nil
	}

	world, err := c.read(ctx)
	if err != nil {
		return targeting.Result{}, err
	}
	attacker, err := world.ship(req.ShipID)
	if err != nil {
		return targeting.Result{Message: "Ship not found"}, nil
	}
	target, err := world.ship(req.TargetID)
	if err != nil {
		return targeting.Result{Message: "Target not found"}, nil
	}
	rangeToTarget := galaxy.Range(attacker.Combat.Position, target.Combat.Position)
	bearing := galaxy.Bearing(attacker.Combat.Position, target.Combat.Position, attacker.Combat.Heading)
	result := c.locks.Acquire(attacker.ID(), target.ID(), rangeToTarget, bearing, attacker.Combat.FireControlDamaged())
	if result.Success {
		if err := c.emitLock(ctx, attacker.ID(), target.ID(), "acquiring lock"); err != nil {
			return targeting.Result{}, err
		}
	}
	return result, nil
}

func (c *Core) emitLock(ctx context.Context, attackerID, targetID, message string) error {
	event := events.Lifecycle(events.KindLock, c.Tick(), c.now(), attackerID, message)
	event.TargetID = targetID
	if err := c.sink.Apply(ctx, state.Changes{Events: []events.Event{event}}); err != nil {
		return fmt.Errorf("lock %s: %w", attackerID, err)
	}
	return nil
}

// DisplayRequest asks for the tactical picture around a ship.
type DisplayRequest struct {
	ShipID string  `json:"ship_id"`
	Mode   string  `json:"mode,omitempty"`
	Range  float64 `json:"range,omitempty"`
}

// DisplayResponse wraps the tactical display.
type DisplayResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Display *radar.TacticalDisplay `json:"display,omitempty"`
}

// Display renders the tactical display. It reads the world only.
func (c *Core) Display(ctx context.Context, req DisplayRequest) (DisplayResponse, error) {
	mode := radar.ModeOverview
	if strings.TrimSpace(req.Mode) != "" {
		parsed, err := radar.ParseDisplayMode(req.Mode)
		if err != nil {
			return DisplayResponse{Message: fmt.Sprintf("Unknown display mode: %s", req.Mode)}, nil
		}
		mode = parsed
	}
	world, err := c.read(ctx)
	if err != nil {
		return DisplayResponse{}, err
	}
	ship, err := world.ship(req.ShipID)
	if err != nil {
		return DisplayResponse{Message: "Ship not found"}, nil
	}
	display := c.scanner.Display(ship.Combat, mode, req.Range, world.scannable(ship.ID(), nil))
	return DisplayResponse{Success: true, Message: string(mode), Display: &display}, nil
}

// Self-destruct operations.
const (
	SelfDestructInitiate = "initiate"
	SelfDestructAbort    = "abort"
	SelfDestructStatus   = "status"
)

// SelfDestructRequest arms, aborts or inspects a self-destruct countdown.
type SelfDestructRequest struct {
	ShipID    string `json:"ship_id"`
	Operation string `json:"operation"`
	Initiator string `json:"initiator,omitempty"`
	AbortCode int    `json:"abort_code,omitempty"`
}

// SelfDestruct drives the countdown registry.
func (c *Core) SelfDestruct(ctx context.Context, req SelfDestructRequest) (destruct.Result, error) {
	switch strings.ToLower(strings.TrimSpace(req.Operation)) {
	case SelfDestructAbort:
		result := c.destructs.Abort(req.ShipID, req.AbortCode)
		if result.Success {
			if err := c.emitSelfDestruct(ctx, req.ShipID, "self-destruct aborted"); err != nil {
				return destruct.Result{}, err
			}
		}
		return result, nil
	case SelfDestructStatus:
		status, ok := c.destructs.Status(req.ShipID)
		if !ok {
			return destruct.Result{Message: "No self-destruct in progress"}, nil
		}
		return destruct.Result{Success: true, Message: fmt.Sprintf("Countdown: %d ticks", status.Countdown), State: &status}, nil
	case SelfDestructInitiate:
	default:
		return destruct.Result{Message: fmt.Sprintf("Unknown self-destruct operation: %s", req.Operation)}, nil
	}

	world, err := c.read(ctx)
	if err != nil {
		return destruct.Result{}, err
	}
	ship, err := world.ship(req.ShipID)
	if err != nil {
		return destruct.Result{Message: "Ship not found"}, nil
	}
	if ship.Combat.Destroyed() {
		return destruct.Result{Message: "Ship destroyed"}, nil
	}
	class, _ := gameplay.Lookup(ship.Combat.Class)
	initiator := req.Initiator
	if initiator == "" {
		initiator = ship.OwnerID
	}
	result := c.destructs.Initiate(ship.ID(), initiator, class, ship.Combat.Position)
	if result.Success {
		if err := c.emitSelfDestruct(ctx, ship.ID(), "self-destruct initiated"); err != nil {
			return destruct.Result{}, err
		}
	}
	return result, nil
}

func (c *Core) emitSelfDestruct(ctx context.Context, shipID, message string) error {
	event := events.Lifecycle(events.KindSelfDestruct, c.Tick(), c.now(), shipID, message)
	if err := c.sink.Apply(ctx, state.Changes{Events: []events.Event{event}}); err != nil {
		return fmt.Errorf("self-destruct %s: %w", shipID, err)
	}
	return nil
}

// ShipStatus gathers the tactical state of one ship across every registry.
type ShipStatus struct {
	Ship         state.Ship         `json:"ship"`
	Battle       *battle.ShipStatus `json:"battle,omitempty"`
	Locks        []targeting.Lock   `json:"locks,omitempty"`
	SelfDestruct *destruct.State    `json:"self_destruct,omitempty"`
	AI           *ai.Status         `json:"ai,omitempty"`
}

// Status reports the tactical state of a ship.
func (c *Core) Status(ctx context.Context, shipID string) (ShipStatus, error) {
	world, err := c.read(ctx)
	if err != nil {
		return ShipStatus{}, err
	}
	ship, err := world.ship(shipID)
	if err != nil {
		return ShipStatus{}, err
	}
	status := ShipStatus{Ship: ship, Locks: c.locks.LocksFor(shipID)}
	if current, ok := c.battles.Status(shipID); ok {
		status.Battle = &current
	}
	if countdown, ok := c.destructs.Status(shipID); ok {
		status.SelfDestruct = &countdown
	}
	if pilot, ok := c.fleet.Status(shipID); ok {
		status.AI = &pilot
	}
	return status, nil
}

// destroy records a destruction and tears down the registries of the wreck. AI wrecks leave
// the world so the population controller can replace them.
func (c *Core) destroy(changes *state.Changes, ship state.Ship, tick uint64) {
	changes.Patch(combat.ShipPatch{ShipID: ship.ID(), Destroyed: true})
	report := c.forget(ship.ID())
	if ship.AI {
		changes.Removed = append(changes.Removed, ship.ID())
	}
	changes.Emit(events.Lifecycle(events.KindLifecycle, tick, c.now(), ship.ID(), "destroyed"))
	c.logger.Info("ship destroyed",
		logging.String("ship_id", ship.ID()),
		logging.Int("battles_closed", len(report.Summaries)),
		logging.Int("locks_removed", report.LocksRemoved),
	)
}
