package combat

import (
	"errors"
	"math"

	"github.com/talktojer/ge-sub000/internal/galaxy"
)

var (
	// ErrUnknownWeapon signals a weapon identifier missing from the catalog.
	ErrUnknownWeapon = errors.New("unknown weapon")
	// ErrUnknownAction signals a combat verb outside the supported set.
	ErrUnknownAction = errors.New("unknown combat action")
)

// DamageType enumerates the origins of combat damage.
type DamageType string

const (
	DamageTypePhaser       DamageType = "phaser"
	DamageTypeTorpedo      DamageType = "torpedo"
	DamageTypeMissile      DamageType = "missile"
	DamageTypeIonCannon    DamageType = "ion_cannon"
	DamageTypeMine         DamageType = "mine"
	DamageTypeCollision    DamageType = "collision"
	DamageTypeSelfDestruct DamageType = "self_destruct"
)

// System names a ship subsystem that can take damage.
type System string

const (
	SystemHelm        System = "helm"
	SystemTactical    System = "tactical"
	SystemFireControl System = "fire_control"
	SystemEngines     System = "engines"
	SystemPhasers     System = "phasers"
	SystemShields     System = "shields"
)

// damageableSystems lists the subsystems rolled after a hull hit, in roll order.
var damageableSystems = []System{SystemHelm, SystemTactical, SystemFireControl, SystemEngines, SystemPhasers, SystemShields}

const (
	// MaxHullDamage destroys a ship once reached.
	MaxHullDamage = 100.0
	// fireControlDamagedThreshold flags fire control as damaged.
	fireControlDamagedThreshold = 50.0
	defaultDamageFactor         = 100.0
	defaultTargetSize           = 100.0
)

// ShipCombatSnapshot is the immutable view of a ship used by every combat roll.
type ShipCombatSnapshot struct {
	ID                string            `json:"id"`
	Class             int               `json:"class"`
	Position          galaxy.Coordinate `json:"position"`
	Heading           float64           `json:"heading"`
	Speed             float64           `json:"speed"`
	Energy            float64           `json:"energy"`
	HullDamage        float64           `json:"hull_damage"`
	ShieldType        int               `json:"shield_type"`
	ShieldCharge      float64           `json:"shield_charge"`
	ShieldsUp         bool              `json:"shields_up"`
	PhaserStrength    float64           `json:"phaser_strength"`
	HelmDamage        float64           `json:"helm_damage"`
	TacticalDamage    float64           `json:"tactical_damage"`
	FireControlDamage float64           `json:"fire_control_damage"`
	EngineDamage      float64           `json:"engine_damage"`
	PhaserDamage      float64           `json:"phaser_damage"`
	ShieldDamage      float64           `json:"shield_damage"`
	FireControlHit    bool              `json:"fire_control_damaged"`
	Hostile           bool              `json:"hostile"`
	Cloaked           bool              `json:"cloaked"`
	JammerActive      bool              `json:"jammer_active"`
	DecoyActive       bool              `json:"decoy_active"`
	Torpedoes         int               `json:"torpedoes"`
	Missiles          int               `json:"missiles"`
	Decoys            int               `json:"decoys"`
	Mines             int               `json:"mines"`
	DamageFactor      float64           `json:"damage_factor"`
	Size              float64           `json:"size"`
}

// FireControlDamaged reports whether targeting penalties apply.
func (s ShipCombatSnapshot) FireControlDamaged() bool {
	return s.FireControlHit || s.FireControlDamage > fireControlDamagedThreshold
}

// Destroyed reports whether the hull has failed.
func (s ShipCombatSnapshot) Destroyed() bool {
	return s.HullDamage >= MaxHullDamage
}

// ClassModifier converts the damage factor into a weapon effectiveness multiplier.
func (s ShipCombatSnapshot) ClassModifier() float64 {
	if !(s.DamageFactor > 0) {
		return defaultDamageFactor / 100
	}
	return s.DamageFactor / 100
}

// TargetSize returns the hit size, defaulting to a full sized hull.
func (s ShipCombatSnapshot) TargetSize() float64 {
	if !(s.Size > 0) {
		return defaultTargetSize
	}
	return s.Size
}

// ShipPatch is the explicit delta a combat operation applies to a ship.
// Collaborators apply patches to their own records; snapshots are never mutated in place.
type ShipPatch struct {
	ShipID            string  `json:"ship_id"`
	EnergyDelta       float64 `json:"energy_delta,omitempty"`
	TorpedoDelta      int     `json:"torpedo_delta,omitempty"`
	MissileDelta      int     `json:"missile_delta,omitempty"`
	DecoyDelta        int     `json:"decoy_delta,omitempty"`
	MineDelta         int     `json:"mine_delta,omitempty"`
	HullDamage        float64 `json:"hull_damage,omitempty"`
	ShieldChargeDelta float64 `json:"shield_charge_delta,omitempty"`
	HelmDamage        float64 `json:"helm_damage,omitempty"`
	TacticalDamage    float64 `json:"tactical_damage,omitempty"`
	FireControlDamage float64 `json:"fire_control_damage,omitempty"`
	EngineDamage      float64 `json:"engine_damage,omitempty"`
	PhaserDamage      float64 `json:"phaser_damage,omitempty"`
	ShieldDamage      float64 `json:"shield_damage,omitempty"`
	FireControlHit    bool    `json:"fire_control_hit,omitempty"`
	Destroyed         bool    `json:"destroyed,omitempty"`
	JammerActive      *bool   `json:"jammer_active,omitempty"`
	DecoyActive       *bool   `json:"decoy_active,omitempty"`
	Hostile           *bool   `json:"hostile,omitempty"`
}

// Empty reports whether applying the patch would change nothing.
func (p ShipPatch) Empty() bool {
	return p == ShipPatch{ShipID: p.ShipID}
}

// Merge folds another patch for the same ship into this one.
func (p ShipPatch) Merge(other ShipPatch) ShipPatch {
	if p.ShipID == "" {
		p.ShipID = other.ShipID
	}
	p.EnergyDelta += other.EnergyDelta
	p.TorpedoDelta += other.TorpedoDelta
	p.MissileDelta += other.MissileDelta
	p.DecoyDelta += other.DecoyDelta
	p.MineDelta += other.MineDelta
	p.HullDamage += other.HullDamage
	p.ShieldChargeDelta += other.ShieldChargeDelta
	p.HelmDamage += other.HelmDamage
	p.TacticalDamage += other.TacticalDamage
	p.FireControlDamage += other.FireControlDamage
	p.EngineDamage += other.EngineDamage
	p.PhaserDamage += other.PhaserDamage
	p.ShieldDamage += other.ShieldDamage
	p.FireControlHit = p.FireControlHit || other.FireControlHit
	p.Destroyed = p.Destroyed || other.Destroyed
	if other.JammerActive != nil {
		p.JammerActive = other.JammerActive
	}
	if other.DecoyActive != nil {
		p.DecoyActive = other.DecoyActive
	}
	if other.Hostile != nil {
		p.Hostile = other.Hostile
	}
	return p
}

// Apply returns a copy of the snapshot with the patch folded in and every gauge clamped.
func (p ShipPatch) Apply(s ShipCombatSnapshot) ShipCombatSnapshot {
	s.Energy = math.Max(0, s.Energy+p.EnergyDelta)
	s.Torpedoes = maxInt(0, s.Torpedoes+p.TorpedoDelta)
	s.Missiles = maxInt(0, s.Missiles+p.MissileDelta)
	s.Decoys = maxInt(0, s.Decoys+p.DecoyDelta)
	s.Mines = maxInt(0, s.Mines+p.MineDelta)
	s.HullDamage = clampGauge(s.HullDamage + p.HullDamage)
	s.ShieldCharge = clampGauge(s.ShieldCharge + p.ShieldChargeDelta)
	s.HelmDamage = clampGauge(s.HelmDamage + p.HelmDamage)
	s.TacticalDamage = clampGauge(s.TacticalDamage + p.TacticalDamage)
	s.FireControlDamage = clampGauge(s.FireControlDamage + p.FireControlDamage)
	s.EngineDamage = clampGauge(s.EngineDamage + p.EngineDamage)
	s.PhaserDamage = clampGauge(s.PhaserDamage + p.PhaserDamage)
	s.ShieldDamage = clampGauge(s.ShieldDamage + p.ShieldDamage)
	s.FireControlHit = s.FireControlHit || p.FireControlHit
	if p.Destroyed {
		s.HullDamage = MaxHullDamage
	}
	if p.JammerActive != nil {
		s.JammerActive = *p.JammerActive
	}
	if p.DecoyActive != nil {
		s.DecoyActive = *p.DecoyActive
	}
	if p.Hostile != nil {
		s.Hostile = *p.Hostile
	}
	return s
}

// Bool returns a pointer for the optional patch toggles.
func Bool(value bool) *bool {
	return &value
}

func clampGauge(value float64) float64 {
	if math.IsNaN(value) || value < 0 {
		return 0
	}
	if value > MaxHullDamage {
		return MaxHullDamage
	}
	return value
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
