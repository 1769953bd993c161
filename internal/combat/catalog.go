package combat

import (
	"fmt"
	"sync"

	_ "embed"

	"gopkg.in/yaml.v3"
)

// WeaponID identifies a weapon family in the catalog.
type WeaponID string

const (
	WeaponPhaser      WeaponID = "phaser"
	WeaponHyperPhaser WeaponID = "hyper_phaser"
	WeaponTorpedo     WeaponID = "torpedo"
	WeaponMissile     WeaponID = "missile"
	WeaponIonCannon   WeaponID = "ion_cannon"
)

// AmmoKind names the magazine a weapon draws from.
type AmmoKind string

const (
	AmmoNone    AmmoKind = ""
	AmmoTorpedo AmmoKind = "torpedo"
	AmmoMissile AmmoKind = "missile"
	AmmoDecoy   AmmoKind = "decoy"
	AmmoMine    AmmoKind = "mine"
)

// WeaponSpec captures the balance values for one weapon family.
type WeaponSpec struct {
	Name                string     `yaml:"name"`
	DamageType          DamageType `yaml:"damage_type"`
	Damage              float64    `yaml:"damage"`
	MaxRange            float64    `yaml:"max_range"`
	Energy              float64    `yaml:"energy"`
	Accuracy            float64    `yaml:"accuracy"`
	CooldownTicks       int        `yaml:"cooldown_ticks"`
	TravelTicks         int        `yaml:"travel_ticks"`
	Ammo                AmmoKind   `yaml:"ammo"`
	CloakPenalty        float64    `yaml:"cloak_penalty"`
	Tracking            float64    `yaml:"tracking"`
	HitCap              float64    `yaml:"hit_cap"`
	CannotTargetCloaked bool       `yaml:"cannot_target_cloaked"`
	DecoyVulnerable     bool       `yaml:"decoy_vulnerable"`
}

// DecoySpec configures decoy launches and their spoofing window.
type DecoySpec struct {
	Energy                  float64 `yaml:"energy"`
	DurationTicks           int     `yaml:"duration_ticks"`
	InitialBreakProbability float64 `yaml:"initial_break_probability"`
	InitialTicks            int     `yaml:"initial_ticks"`
	FinalBreakProbability   float64 `yaml:"final_break_probability"`
}

// Window converts the decoy balance into a spoof probability profile.
func (d DecoySpec) Window() DecoyWindow {
	return DecoyWindow{
		InitialProbability: d.InitialBreakProbability,
		InitialTicks:       d.InitialTicks,
		FinalProbability:   d.FinalBreakProbability,
		TotalTicks:         d.DurationTicks,
	}
}

// JammerSpec configures jammer activation.
type JammerSpec struct {
	Energy float64 `yaml:"energy"`
}

// MineSpec configures laid mines.
type MineSpec struct {
	Energy         float64 `yaml:"energy"`
	Damage         float64 `yaml:"damage"`
	DetectionRange float64 `yaml:"detection_range"`
	TriggerRange   float64 `yaml:"trigger_range"`
}

// CountermeasureCatalog groups the defensive systems.
type CountermeasureCatalog struct {
	Decoy  DecoySpec  `yaml:"decoy"`
	Jammer JammerSpec `yaml:"jammer"`
	Mine   MineSpec   `yaml:"mine"`
}

// WeaponCatalog mirrors the structure of weapons.yaml.
type WeaponCatalog struct {
	Weapons         map[WeaponID]WeaponSpec `yaml:"weapons"`
	Countermeasures CountermeasureCatalog   `yaml:"countermeasures"`
}

// Clone produces a defensive copy to protect the cached catalog from mutation.
func (c WeaponCatalog) Clone() WeaponCatalog {
	clones := WeaponCatalog{
		Weapons:         make(map[WeaponID]WeaponSpec, len(c.Weapons)),
		Countermeasures: c.Countermeasures,
	}
	for key, value := range c.Weapons {
		clones.Weapons[key] = value
	}
	return clones
}

// Weapon resolves the spec for a weapon family.
func (c WeaponCatalog) Weapon(id WeaponID) (WeaponSpec, error) {
	spec, ok := c.Weapons[id]
	if !ok {
		return WeaponSpec{}, fmt.Errorf("%w: %q", ErrUnknownWeapon, id)
	}
	return spec, nil
}

var (
	catalogOnce sync.Once
	catalogData WeaponCatalog
	catalogErr  error
)

//go:embed weapons.yaml
var catalogPayload []byte

// Catalog exposes the parsed weapon catalog shared across the simulation.
func Catalog() WeaponCatalog {
	catalogOnce.Do(func() {
		//1.- Parse the embedded YAML payload once so concurrent callers share the same data.
		catalogErr = yaml.Unmarshal(catalogPayload, &catalogData)
	})
	//2.- Surface configuration errors immediately to keep combat deterministic and debuggable.
	if catalogErr != nil {
		panic(catalogErr)
	}
	//3.- Return a clone so tests cannot accidentally mutate the cached catalog.
	return catalogData.Clone()
}
