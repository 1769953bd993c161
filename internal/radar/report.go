package radar

import (
	"fmt"
	"strings"

	"github.com/talktojer/ge-sub000/internal/combat"
)

// DamageDisplay is a damage report shaped for the tactical console.
type DamageDisplay struct {
	TotalDamage         float64                   `json:"total_damage"`
	ShieldDamage        float64                   `json:"shield_damage"`
	HullDamage          float64                   `json:"hull_damage"`
	ShipDestroyed       bool                      `json:"ship_destroyed"`
	DamageType          combat.DamageType         `json:"damage_type"`
	WeaponEffectiveness float64                   `json:"weapon_effectiveness"`
	ShieldEffectiveness float64                   `json:"shield_effectiveness"`
	CriticalEffects     []string                  `json:"critical_effects"`
	SystemDamage        map[combat.System]float64 `json:"system_damage"`
	SystemsDestroyed    []combat.System           `json:"systems_destroyed"`
	Message             string                    `json:"display_message"`
}

// FormatDamageReport converts a report into its console form.
func FormatDamageReport(report combat.DamageReport) DamageDisplay {
	report = report.Clone()
	effects := make([]string, 0, len(report.CriticalEffects))
	for _, effect := range report.CriticalEffects {
		effects = append(effects, effect.Message())
	}
	return DamageDisplay{
		TotalDamage:         report.TotalDamage,
		ShieldDamage:        report.ShieldDamage,
		HullDamage:          report.HullDamage,
		ShipDestroyed:       report.ShipDestroyed,
		DamageType:          report.DamageType,
		WeaponEffectiveness: report.WeaponEffectiveness,
		ShieldEffectiveness: report.ShieldEffectiveness,
		CriticalEffects:     effects,
		SystemDamage:        report.SystemDamage,
		SystemsDestroyed:    report.SystemsDestroyed,
		Message:             DamageMessage(report),
	}
}

// DamageMessage renders the one line headline for a report.
func DamageMessage(report combat.DamageReport) string {
	if report.ShipDestroyed {
		return "TARGET DESTROYED!"
	}
	var parts []string
	switch {
	case report.HullDamage > 50:
		parts = append(parts, "HEAVY DAMAGE")
	case report.HullDamage > 20:
		parts = append(parts, "MODERATE DAMAGE")
	case report.HullDamage > 0:
		parts = append(parts, "LIGHT DAMAGE")
	}
	if report.ShieldDamage > 0 {
		parts = append(parts, fmt.Sprintf("SHIELDS HIT (%.1f)", report.ShieldDamage))
	}
	if report.Critical {
		parts = append(parts, "CRITICAL HIT!")
	}
	if len(report.SystemsDestroyed) > 0 {
		parts = append(parts, "SYSTEMS DESTROYED")
	}
	if len(parts) == 0 {
		return "NO EFFECT"
	}
	return strings.Join(parts, " - ")
}
