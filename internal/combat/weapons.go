package combat

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/talktojer/ge-sub000/internal/galaxy"
	"github.com/talktojer/ge-sub000/internal/gameplay"
)

// Action enumerates the combat verbs a ship may issue.
type Action string

const (
	ActionFirePhasers      Action = "fire_phasers"
	ActionFireHyperPhasers Action = "fire_hyper_phasers"
	ActionFireTorpedo      Action = "fire_torpedo"
	ActionFireMissile      Action = "fire_missile"
	ActionFireIonCannon    Action = "fire_ion_cannon"
	ActionLaunchDecoy      Action = "launch_decoy"
	ActionActivateJammer   Action = "activate_jammer"
	ActionDeactivateJammer Action = "deactivate_jammer"
	ActionLayMine          Action = "lay_mine"
)

var actionWeapons = map[Action]WeaponID{
	ActionFirePhasers:      WeaponPhaser,
	ActionFireHyperPhasers: WeaponHyperPhaser,
	ActionFireTorpedo:      WeaponTorpedo,
	ActionFireMissile:      WeaponMissile,
	ActionFireIonCannon:    WeaponIonCannon,
}

// ParseAction maps a textual verb onto the closed action set.
func ParseAction(raw string) (Action, error) {
	action := Action(strings.ToLower(strings.TrimSpace(raw)))
	switch action {
	case ActionFirePhasers, ActionFireHyperPhasers, ActionFireTorpedo, ActionFireMissile, ActionFireIonCannon,
		ActionLaunchDecoy, ActionActivateJammer, ActionDeactivateJammer, ActionLayMine:
		return action, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, raw)
	}
}

// Weapon returns the weapon family fired by the action.
func (a Action) Weapon() (WeaponID, bool) {
	id, ok := actionWeapons[a]
	return id, ok
}

// Countermeasure reports whether the action is defensive.
func (a Action) Countermeasure() bool {
	switch a {
	case ActionLaunchDecoy, ActionActivateJammer, ActionDeactivateJammer, ActionLayMine:
		return true
	default:
		return false
	}
}

const baseHitProbability = 0.8

// HitProbability returns the chance a shot connects.
func HitProbability(rangeToTarget, maxRange, accuracy, targetSize float64, fireControlDamaged bool) float64 {
	//1.- Nothing beyond the weapon envelope can be hit.
	if !(maxRange > 0) || rangeToTarget > maxRange {
		return 0
	}
	//2.- Degrade linearly with the range fraction and scale by accuracy and hull size.
	probability := baseHitProbability * (1 - rangeToTarget/maxRange*0.3) * accuracy / 100 * math.Min(1, targetSize/100)
	if fireControlDamaged {
		probability *= 0.5
	}
	return clampProbability(probability)
}

// Mine describes a mine laid into space.
type Mine struct {
	OwnerID        string            `json:"owner_id"`
	Position       galaxy.Coordinate `json:"position"`
	Damage         float64           `json:"damage"`
	DetectionRange float64           `json:"detection_range"`
	TriggerRange   float64           `json:"trigger_range"`
	LaidTick       uint64            `json:"laid_tick"`
}

// FireRequest asks the engine to resolve one combat action.
type FireRequest struct {
	Action   Action             `json:"action"`
	Attacker ShipCombatSnapshot `json:"attacker"`
	Target   ShipCombatSnapshot `json:"target"`
	Tick     uint64             `json:"tick"`
	// ShotID enables deterministic decoy rolls when the engine carries a match seed.
	ShotID string `json:"shot_id,omitempty"`
}

// FireResult reports the outcome of a combat action. Failed validation carries no side effects.
type FireResult struct {
	Success        bool          `json:"success"`
	Message        string        `json:"message"`
	Action         Action        `json:"action"`
	Weapon         WeaponID      `json:"weapon,omitempty"`
	Range          float64       `json:"range,omitempty"`
	Hit            bool          `json:"hit"`
	HitProbability float64       `json:"hit_probability,omitempty"`
	Spoofed        bool          `json:"spoofed,omitempty"`
	TravelTicks    int           `json:"travel_ticks,omitempty"`
	EnergyUsed     float64       `json:"energy_used,omitempty"`
	AmmoUsed       int           `json:"ammo_used,omitempty"`
	Report         *DamageReport `json:"report,omitempty"`
	AttackerPatch  ShipPatch     `json:"attacker_patch"`
	TargetPatch    ShipPatch     `json:"target_patch"`
	Mine           *Mine         `json:"mine,omitempty"`
	Effects        []string      `json:"effects,omitempty"`
}

func failure(action Action, format string, args ...any) FireResult {
	return FireResult{Action: action, Message: fmt.Sprintf(format, args...)}
}

// Engine resolves weapon fire, countermeasures and damage with an injected random source.
type Engine struct {
	rng          Rand
	catalog      WeaponCatalog
	optimalRange float64
	matchSeed    string
	cooldowns    *CooldownTracker
	decoys       *DecoyTracker
}

// Option customises the engine.
type Option func(*Engine)

// WithOptimalRange overrides the full effectiveness range.
func WithOptimalRange(optimal float64) Option {
	return func(e *Engine) {
		if optimal > 0 {
			e.optimalRange = optimal
		}
	}
}

// WithMatchSeed makes decoy rolls reproducible per shot.
func WithMatchSeed(seed string) Option {
	return func(e *Engine) { e.matchSeed = seed }
}

// WithCatalog swaps the embedded weapon catalog.
func WithCatalog(catalog WeaponCatalog) Option {
	return func(e *Engine) { e.catalog = catalog.Clone() }
}

// NewEngine builds an engine drawing from the provided random source.
func NewEngine(rng Rand, opts ...Option) *Engine {
	if rng == nil {
		rng = NewRand(SeedFor("engine"))
	}
	engine := &Engine{rng: rng, catalog: Catalog(), optimalRange: DefaultOptimalRange}
	for _, opt := range opts {
		if opt != nil {
			opt(engine)
		}
	}
	engine.cooldowns = NewCooldownTracker()
	engine.decoys = NewDecoyTracker(engine.catalog.Countermeasures.Decoy.Window())
	return engine
}

// Rand exposes the engine random source to collaborators sharing the stream.
func (e *Engine) Rand() Rand { return e.rng }

// Cooldowns exposes the weapon cooldown registry.
func (e *Engine) Cooldowns() *CooldownTracker { return e.cooldowns }

// Decoys exposes the decoy registry.
func (e *Engine) Decoys() *DecoyTracker { return e.decoys }

// WeaponCatalog returns a copy of the active catalog.
func (e *Engine) WeaponCatalog() WeaponCatalog { return e.catalog.Clone() }

// Tick advances cooldowns and returns ships whose decoys expired.
func (e *Engine) Tick(tick uint64) []string {
	e.cooldowns.Tick()
	return e.decoys.Expire(tick)
}

// RemoveShip drops every per ship record the engine keeps.
func (e *Engine) RemoveShip(shipID string) {
	e.cooldowns.RemoveShip(shipID)
	e.decoys.Release(shipID)
}

// BaseDamage returns the raw damage of a hit before effectiveness is applied.
func BaseDamage(action Action, spec WeaponSpec, attacker ShipCombatSnapshot) float64 {
	damage := spec.Damage
	switch action {
	case ActionFirePhasers:
		if attacker.PhaserStrength > 0 {
			damage = attacker.PhaserStrength * 2
		}
	case ActionFireHyperPhasers:
		if attacker.PhaserStrength > 0 {
			damage = attacker.PhaserStrength * 4
		}
	}
	//1.- Damaged phaser banks lose output proportionally.
	if spec.DamageType == DamageTypePhaser && attacker.PhaserDamage > 0 {
		damage *= math.Max(0, 1-attacker.PhaserDamage/100)
	}
	return damage
}

// Fire validates and resolves a combat action.
func (e *Engine) Fire(req FireRequest) FireResult {
	if req.Action.Countermeasure() {
		return e.Countermeasure(req.Attacker, req.Action, req.Tick)
	}
	weaponID, ok := req.Action.Weapon()
	if !ok {
		return failure(req.Action, "Unknown combat action %q", req.Action)
	}
	spec, err := e.catalog.Weapon(weaponID)
	if err != nil {
		return failure(req.Action, "Unknown weapon %q", weaponID)
	}
	attacker, target := req.Attacker, req.Target
	//1.- Validate the engagement without touching any state.
	switch {
	case attacker.Destroyed():
		return failure(req.Action, "Ship destroyed")
	case target.ID == "" || target.ID == attacker.ID:
		return failure(req.Action, "Invalid target")
	case target.Destroyed():
		return failure(req.Action, "Target already destroyed")
	}
	if remaining := e.cooldowns.Remaining(attacker.ID, weaponID); remaining > 0 {
		return failure(req.Action, "%s recharging (%d ticks)", spec.Name, remaining)
	}
	switch spec.Ammo {
	case AmmoTorpedo:
		if attacker.Torpedoes <= 0 {
			return failure(req.Action, "No torpedoes available")
		}
	case AmmoMissile:
		if attacker.Missiles <= 0 {
			return failure(req.Action, "No missiles available")
		}
	}
	if attacker.Energy < spec.Energy {
		return failure(req.Action, "Insufficient energy for %s", strings.ToLower(spec.Name))
	}
	rangeToTarget := galaxy.Range(attacker.Position, target.Position)
	if rangeToTarget > spec.MaxRange {
		return failure(req.Action, "Target out of %s range", strings.ToLower(spec.Name))
	}
	if target.Cloaked && spec.CannotTargetCloaked {
		return failure(req.Action, "Cannot target cloaked vessel")
	}

	//2.- The shot is committed: consume energy and ammunition.
	result := FireResult{
		Success:     true,
		Action:      req.Action,
		Weapon:      weaponID,
		Range:       rangeToTarget,
		TravelTicks: spec.TravelTicks,
		EnergyUsed:  spec.Energy,
	}
	result.AttackerPatch = ShipPatch{ShipID: attacker.ID, EnergyDelta: -spec.Energy}
	switch spec.Ammo {
	case AmmoTorpedo:
		result.AmmoUsed = 1
		result.AttackerPatch.TorpedoDelta = -1
	case AmmoMissile:
		result.AmmoUsed = 1
		result.AttackerPatch.MissileDelta = -1
	}
	if spec.CooldownTicks > 0 {
		e.cooldowns.Start(attacker.ID, weaponID, spec.CooldownTicks)
	}

	//3.- Compute the hit probability including cloak penalties and tracking.
	accuracy := spec.Accuracy
	if target.Cloaked && spec.CloakPenalty > 0 {
		accuracy *= spec.CloakPenalty
	}
	probability := HitProbability(rangeToTarget, spec.MaxRange, accuracy, target.TargetSize(), attacker.FireControlDamaged())
	if spec.Tracking > 0 {
		probability *= spec.Tracking
	}
	if spec.HitCap > 0 {
		probability = math.Min(spec.HitCap, probability)
	}
	result.HitProbability = probability

	//4.- Active decoys may pull guided ordnance off course.
	if spec.DecoyVulnerable && target.DecoyActive {
		breakProbability := e.decoys.BreakProbability(target.ID, req.Tick)
		if e.matchSeed != "" && req.ShotID != "" {
			result.Spoofed = ShouldDecoyBreak(e.matchSeed, req.ShotID, target.ID, breakProbability)
		} else {
			result.Spoofed = e.rng.Float64() < breakProbability
		}
		if result.Spoofed {
			result.Message = fmt.Sprintf("%s spoofed by decoy", spec.Name)
			return result
		}
	}

	//5.- One Bernoulli trial decides the hit.
	if e.rng.Float64() >= probability {
		result.Message = fmt.Sprintf("%s missed target", spec.Name)
		return result
	}
	report := e.ResolveAttack(attacker, target, spec.DamageType, BaseDamage(req.Action, spec, attacker), rangeToTarget)
	result.Hit = true
	result.Report = &report
	result.TargetPatch = DamagePatch(target, report)
	result.Effects = report.Effects()
	result.Message = fmt.Sprintf("%s hit for %.1f damage", spec.Name, report.TotalDamage)
	return result
}

// Countermeasure resolves decoy, jammer and mine actions for the ship.
func (e *Engine) Countermeasure(ship ShipCombatSnapshot, action Action, tick uint64) FireResult {
	cm := e.catalog.Countermeasures
	class, hasClass := gameplay.Lookup(ship.Class)
	if ship.Destroyed() {
		return failure(action, "Ship destroyed")
	}
	switch action {
	case ActionLaunchDecoy:
		if hasClass && !class.HasDecoy {
			return failure(action, "Ship has no decoy launcher")
		}
		if ship.Decoys <= 0 {
			return failure(action, "No decoys available")
		}
		if ship.Energy < cm.Decoy.Energy {
			return failure(action, "Insufficient energy for decoy launch")
		}
		e.decoys.Launch(ship.ID, tick)
		return FireResult{
			Success:       true,
			Action:        action,
			Message:       "Decoy launched",
			EnergyUsed:    cm.Decoy.Energy,
			AmmoUsed:      1,
			AttackerPatch: ShipPatch{ShipID: ship.ID, EnergyDelta: -cm.Decoy.Energy, DecoyDelta: -1, DecoyActive: Bool(true)},
			Effects:       []string{fmt.Sprintf("Decoy will confuse incoming weapons for %d ticks", cm.Decoy.DurationTicks)},
		}
	case ActionActivateJammer:
		if hasClass && !class.HasJammer {
			return failure(action, "Ship has no jammer")
		}
		if ship.JammerActive {
			return failure(action, "Jammer already active")
		}
		if ship.Energy < cm.Jammer.Energy {
			return failure(action, "Insufficient energy for jammer activation")
		}
		return FireResult{
			Success:       true,
			Action:        action,
			Message:       "Jammer activated",
			EnergyUsed:    cm.Jammer.Energy,
			AttackerPatch: ShipPatch{ShipID: ship.ID, EnergyDelta: -cm.Jammer.Energy, JammerActive: Bool(true)},
		}
	case ActionDeactivateJammer:
		if !ship.JammerActive {
			return failure(action, "Jammer not active")
		}
		return FireResult{
			Success:       true,
			Action:        action,
			Message:       "Jammer deactivated",
			AttackerPatch: ShipPatch{ShipID: ship.ID, JammerActive: Bool(false)},
		}
	case ActionLayMine:
		if hasClass && !class.HasMine {
			return failure(action, "Ship cannot lay mines")
		}
		if ship.Mines <= 0 {
			return failure(action, "No mines available")
		}
		if ship.Energy < cm.Mine.Energy {
			return failure(action, "Insufficient energy for mine laying")
		}
		return FireResult{
			Success:       true,
			Action:        action,
			Message:       "Mine laid",
			EnergyUsed:    cm.Mine.Energy,
			AmmoUsed:      1,
			AttackerPatch: ShipPatch{ShipID: ship.ID, EnergyDelta: -cm.Mine.Energy, MineDelta: -1},
			Mine: &Mine{
				OwnerID:        ship.ID,
				Position:       ship.Position,
				Damage:         cm.Mine.Damage,
				DetectionRange: cm.Mine.DetectionRange,
				TriggerRange:   cm.Mine.TriggerRange,
				LaidTick:       tick,
			},
		}
	default:
		return failure(action, "Unknown countermeasure %q", action)
	}
}

// CooldownTracker counts down weapon recharge per ship and weapon.
type CooldownTracker struct {
	mu        sync.Mutex
	remaining map[cooldownKey]int
}

type cooldownKey struct {
	shipID string
	weapon WeaponID
}

// NewCooldownTracker constructs an empty tracker.
func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{remaining: make(map[cooldownKey]int)}
}

// Start arms a cooldown for the ship and weapon.
func (c *CooldownTracker) Start(shipID string, weapon WeaponID, ticks int) {
	if ticks <= 0 {
		return
	}
	c.mu.Lock()
	c.remaining[cooldownKey{shipID, weapon}] = ticks
	c.mu.Unlock()
}

// Remaining reports the ticks left before the weapon may fire again.
func (c *CooldownTracker) Remaining(shipID string, weapon WeaponID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining[cooldownKey{shipID, weapon}]
}

// Tick decrements every cooldown and drops the finished ones.
func (c *CooldownTracker) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, ticks := range c.remaining {
		if ticks <= 1 {
			delete(c.remaining, key)
			continue
		}
		c.remaining[key] = ticks - 1
	}
}

// RemoveShip drops every cooldown owned by the ship.
func (c *CooldownTracker) RemoveShip(shipID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.remaining {
		if key.shipID == shipID {
			delete(c.remaining, key)
		}
	}
}

// Len reports the number of active cooldowns.
func (c *CooldownTracker) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.remaining)
}
