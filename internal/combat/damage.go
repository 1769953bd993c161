package combat

import (
	"fmt"
	"math"
	"sort"

	"github.com/talktojer/ge-sub000/internal/logging"
)

const (
	// DefaultOptimalRange is the distance up to which weapons keep full effectiveness.
	DefaultOptimalRange = 100000.0
	maxEffectiveness    = 2.0
	minRangeFactor      = 0.1

	criticalBaseChance       = 0.1
	criticalTacticalFactor   = 1.5
	criticalTacticalTrigger  = 50.0
	criticalMultiplier       = 2.5
	criticalSystemDamage     = 25.0
	systemDamageMinimumHull  = 10.0
	systemDamageChance       = 0.15
	systemDamageLow          = 5.0
	systemDamageHigh         = 25.0
	systemDestroyedThreshold = 80.0
)

// shieldTier pairs a shield type with a value in a lookup table.
type shieldTier struct {
	shieldType int
	value      float64
}

var shieldEffectiveness = []shieldTier{
	{0, 0}, {1, 0.1}, {2, 0.2}, {3, 0.3}, {4, 0.4}, {5, 0.5}, {10, 0.75}, {15, 0.9}, {19, 0.95},
}

var weaponShieldModifiers = map[DamageType][]shieldTier{
	DamageTypePhaser:    {{1, 0.8}, {5, 0.9}, {10, 0.95}, {19, 0.98}},
	DamageTypeTorpedo:   {{1, 1.2}, {5, 1.1}, {10, 1.0}, {19, 0.9}},
	DamageTypeIonCannon: {{1, 1.5}, {5, 1.3}, {10, 1.1}, {19, 0.95}},
}

// tierValue returns the value of the highest tier not above the shield type.
func tierValue(tiers []shieldTier, shieldType int, fallback float64) float64 {
	value := fallback
	for _, tier := range tiers {
		if tier.shieldType > shieldType {
			break
		}
		value = tier.value
	}
	return value
}

// ShieldBaseEffectiveness returns the fraction a fully charged shield of the type absorbs.
func ShieldBaseEffectiveness(shieldType int) float64 {
	return tierValue(shieldEffectiveness, shieldType, 0)
}

// ShieldModifier returns how well the damage type fares against the shield type.
func ShieldModifier(damageType DamageType, shieldType int) float64 {
	return tierValue(weaponShieldModifiers[damageType], shieldType, 1.0)
}

// WeaponEffectiveness combines weapon strength, hull design and range into a [0, 2] multiplier.
func WeaponEffectiveness(strength, classModifier, rangeToTarget, optimalRange float64) float64 {
	//1.- Start from the raw weapon strength scaled by the hull design.
	effectiveness := strength / 100 * classModifier
	//2.- Beyond the optimal range the weapon falls off with the square root of the ratio.
	if !(optimalRange > 0) {
		optimalRange = DefaultOptimalRange
	}
	if rangeToTarget > optimalRange {
		effectiveness *= math.Max(minRangeFactor, 1/math.Sqrt(rangeToTarget/optimalRange))
	}
	if math.IsNaN(effectiveness) || effectiveness < 0 {
		return 0
	}
	return math.Min(maxEffectiveness, effectiveness)
}

// ShieldAbsorption splits incoming damage into the absorbed and penetrating parts.
func ShieldAbsorption(shieldType int, charge float64, damageType DamageType, incoming float64) (float64, float64) {
	//1.- Negative or missing damage never produces absorption.
	if !(incoming > 0) {
		return 0, 0
	}
	if !(charge > 0) {
		return 0, incoming
	}
	charge = math.Min(charge, 100)
	//2.- Base effectiveness scales with charge and the weapon versus shield modifier.
	rate := ShieldBaseEffectiveness(shieldType) * charge / 100 * ShieldModifier(damageType, shieldType)
	absorbed := math.Max(0, math.Min(incoming, incoming*rate))
	return absorbed, incoming - absorbed
}

// BlastDamage applies the linear falloff used for area damage.
func BlastDamage(damage, radius, distance float64) float64 {
	if !(damage > 0) || !(radius > 0) || distance > radius {
		return 0
	}
	normalized := math.Max(0, distance) / radius
	return damage * (1 - normalized)
}

// CriticalEffect names the extra system a critical hit disables.
type CriticalEffect string

const (
	CriticalHelm        CriticalEffect = "helm"
	CriticalTactical    CriticalEffect = "tactical"
	CriticalFireControl CriticalEffect = "fire_control"
	CriticalEngine      CriticalEffect = "engine"
)

var criticalEffects = []CriticalEffect{CriticalHelm, CriticalTactical, CriticalFireControl, CriticalEngine}

// Message renders the effect for damage reports.
func (c CriticalEffect) Message() string {
	switch c {
	case CriticalHelm:
		return "Helm control damaged!"
	case CriticalTactical:
		return "Tactical systems damaged!"
	case CriticalFireControl:
		return "Fire control systems damaged!"
	case CriticalEngine:
		return "Engine systems damaged!"
	default:
		return ""
	}
}

// DamageReport describes the resolved outcome of a single hit.
type DamageReport struct {
	TargetID            string             `json:"target_id"`
	AttackerID          string             `json:"attacker_id,omitempty"`
	DamageType          DamageType         `json:"damage_type"`
	TotalDamage         float64            `json:"total_damage"`
	ShieldDamage        float64            `json:"shield_damage"`
	HullDamage          float64            `json:"hull_damage"`
	PriorHullDamage     float64            `json:"prior_hull_damage"`
	SystemDamage        map[System]float64 `json:"system_damage,omitempty"`
	Critical            bool               `json:"critical"`
	CriticalEffects     []CriticalEffect   `json:"critical_effects,omitempty"`
	SystemsDestroyed    []System           `json:"systems_destroyed,omitempty"`
	ShipDestroyed       bool               `json:"ship_destroyed"`
	WeaponEffectiveness float64            `json:"weapon_effectiveness"`
	ShieldEffectiveness float64            `json:"shield_effectiveness"`
}

// Clone returns a deep copy for callers that keep the report.
func (r DamageReport) Clone() DamageReport {
	clone := r
	if r.SystemDamage != nil {
		clone.SystemDamage = make(map[System]float64, len(r.SystemDamage))
		for key, value := range r.SystemDamage {
			clone.SystemDamage[key] = value
		}
	}
	clone.CriticalEffects = append([]CriticalEffect(nil), r.CriticalEffects...)
	clone.SystemsDestroyed = append([]System(nil), r.SystemsDestroyed...)
	return clone
}

// Effects lists the human readable side effects of the hit.
func (r DamageReport) Effects() []string {
	var effects []string
	if r.Critical {
		effects = append(effects, "Critical hit!")
	}
	for _, effect := range r.CriticalEffects {
		effects = append(effects, effect.Message())
	}
	for _, system := range r.SystemsDestroyed {
		effects = append(effects, fmt.Sprintf("%s destroyed!", system))
	}
	if r.ShipDestroyed {
		effects = append(effects, "Target destroyed!")
	}
	return effects
}

// Metadata flattens the report into stable string keys for journals and telemetry.
func (r DamageReport) Metadata() map[string]string {
	//1.- Emit deterministic keys to simplify log inspection.
	meta := map[string]string{
		"damage_type":   string(r.DamageType),
		"damage_total":  formatDamageValue(r.TotalDamage),
		"damage_shield": formatDamageValue(r.ShieldDamage),
		"damage_hull":   formatDamageValue(r.HullDamage),
		"critical":      fmt.Sprintf("%t", r.Critical),
		"destroyed":     fmt.Sprintf("%t", r.ShipDestroyed),
	}
	for _, system := range sortedSystems(r.SystemDamage) {
		meta[fmt.Sprintf("system_%s", system)] = formatDamageValue(r.SystemDamage[system])
	}
	return meta
}

// LoggingFields returns structured logging fields describing the resolved damage.
func (r DamageReport) LoggingFields() []logging.Field {
	fields := []logging.Field{
		logging.String("target", r.TargetID),
		logging.String("damage_type", string(r.DamageType)),
		logging.Float64("damage_total", r.TotalDamage),
		logging.Float64("damage_shield", r.ShieldDamage),
		logging.Float64("damage_hull", r.HullDamage),
		logging.Bool("critical", r.Critical),
		logging.Bool("destroyed", r.ShipDestroyed),
	}
	if r.AttackerID != "" {
		fields = append(fields, logging.String("attacker", r.AttackerID))
	}
	//2.- Collect per-system entries to maintain deterministic ordering in logs.
	for _, system := range sortedSystems(r.SystemDamage) {
		fields = append(fields, logging.Float64(fmt.Sprintf("system_%s", system), r.SystemDamage[system]))
	}
	return fields
}

// CriticalHit rolls for a critical and returns the adjusted damage and any side effect.
func (e *Engine) CriticalHit(damage float64, target ShipCombatSnapshot) (float64, []CriticalEffect) {
	//1.- Damaged tactical systems make the target easier to cripple.
	chance := criticalBaseChance
	if target.TacticalDamage > criticalTacticalTrigger {
		chance *= criticalTacticalFactor
	}
	if e.rng.Float64() >= chance {
		return damage, nil
	}
	//2.- A critical multiplies the damage and knocks out one named system.
	effect := criticalEffects[e.rng.Intn(len(criticalEffects))]
	return damage * criticalMultiplier, []CriticalEffect{effect}
}

// SystemDamage rolls per subsystem damage after a hull hit.
func (e *Engine) SystemDamage(hullDamage float64) map[System]float64 {
	//1.- Only meaningful hull hits reach the internals.
	if hullDamage < systemDamageMinimumHull {
		return nil
	}
	chance := systemDamageChance * math.Min(1, hullDamage/100)
	damage := make(map[System]float64)
	//2.- Roll each subsystem independently in a fixed order.
	for _, system := range damageableSystems {
		if e.rng.Float64() < chance {
			damage[system] = Uniform(e.rng, systemDamageLow, systemDamageHigh)
		}
	}
	if len(damage) == 0 {
		return nil
	}
	return damage
}

// ResolveAttack computes the full damage report for a hit against the defender.
func (e *Engine) ResolveAttack(attacker, defender ShipCombatSnapshot, damageType DamageType, baseDamage, rangeToTarget float64) DamageReport {
	report := DamageReport{
		TargetID:        defender.ID,
		AttackerID:      attacker.ID,
		DamageType:      damageType,
		PriorHullDamage: defender.HullDamage,
	}
	if !(baseDamage > 0) {
		report.ShipDestroyed = defender.Destroyed()
		return report
	}
	//1.- Scale the raw damage by the weapon effectiveness.
	report.WeaponEffectiveness = WeaponEffectiveness(baseDamage, attacker.ClassModifier(), rangeToTarget, e.optimalRange)
	effective := baseDamage * report.WeaponEffectiveness
	//2.- Roll for criticals before the shields see the damage.
	final, effects := e.CriticalHit(effective, defender)
	report.Critical = len(effects) > 0
	report.CriticalEffects = effects
	report.TotalDamage = final
	//3.- Shields only absorb while raised.
	charge := defender.ShieldCharge
	if !defender.ShieldsUp {
		charge = 0
	}
	report.ShieldDamage, report.HullDamage = ShieldAbsorption(defender.ShieldType, charge, damageType, final)
	//4.- Penetrating damage may reach the internals.
	report.SystemDamage = e.SystemDamage(report.HullDamage)
	for _, system := range sortedSystems(report.SystemDamage) {
		if report.SystemDamage[system] > systemDestroyedThreshold {
			report.SystemsDestroyed = append(report.SystemsDestroyed, system)
		}
	}
	report.ShipDestroyed = defender.HullDamage+report.HullDamage >= MaxHullDamage
	if final > 0 {
		report.ShieldEffectiveness = report.ShieldDamage / final
	}
	return report
}

// DamagePatch converts a report into the delta for the damaged ship.
func DamagePatch(target ShipCombatSnapshot, report DamageReport) ShipPatch {
	patch := ShipPatch{ShipID: target.ID}
	//1.- Hull damage never pushes the gauge past destruction.
	patch.HullDamage = math.Max(0, math.Min(report.HullDamage, MaxHullDamage-target.HullDamage))
	patch.ShieldChargeDelta = -math.Min(report.ShieldDamage, math.Max(0, target.ShieldCharge))
	//2.- Fold subsystem rolls and critical side effects into the gauges.
	for system, amount := range report.SystemDamage {
		switch system {
		case SystemHelm:
			patch.HelmDamage += amount
		case SystemTactical:
			patch.TacticalDamage += amount
		case SystemFireControl:
			patch.FireControlDamage += amount
		case SystemEngines:
			patch.EngineDamage += amount
		case SystemPhasers:
			patch.PhaserDamage += amount
		case SystemShields:
			patch.ShieldDamage += amount
		}
	}
	for _, effect := range report.CriticalEffects {
		switch effect {
		case CriticalHelm:
			patch.HelmDamage += criticalSystemDamage
		case CriticalTactical:
			patch.TacticalDamage += criticalSystemDamage
		case CriticalFireControl:
			patch.FireControlDamage += criticalSystemDamage
			patch.FireControlHit = true
		case CriticalEngine:
			patch.EngineDamage += criticalSystemDamage
		}
	}
	patch.Destroyed = report.ShipDestroyed
	return patch
}

// ApplyDamage returns the damaged snapshot together with the patch that produced it.
func ApplyDamage(target ShipCombatSnapshot, report DamageReport) (ShipCombatSnapshot, ShipPatch) {
	patch := DamagePatch(target, report)
	return patch.Apply(target), patch
}

func sortedSystems(damage map[System]float64) []System {
	systems := make([]System, 0, len(damage))
	for system := range damage {
		systems = append(systems, system)
	}
	sort.Slice(systems, func(i, j int) bool { return systems[i] < systems[j] })
	return systems
}

func formatDamageValue(amount float64) string {
	//1.- Clamp extremely small floating point noise to zero for readability.
	if math.Abs(amount) < 1e-6 {
		amount = 0
	}
	return fmt.Sprintf("%.2f", amount)
}
