// Package gameplay exposes the embedded ship class catalog.
package gameplay

import (
	"fmt"
	"sort"
	"sync"

	_ "embed"

	"gopkg.in/yaml.v3"
)

// ShipType groups ship classes by who flies them.
type ShipType string

const (
	ShipTypeUser   ShipType = "user"
	ShipTypeCyborg ShipType = "cyborg"
	ShipTypeDroid  ShipType = "droid"
)

// ShipClass captures the combat and movement envelope of a hull design.
type ShipClass struct {
	Number          int      `yaml:"number" json:"number"`
	Name            string   `yaml:"name" json:"name"`
	Type            ShipType `yaml:"type" json:"type"`
	MaxShields      int      `yaml:"max_shields" json:"max_shields"`
	MaxPhasers      int      `yaml:"max_phasers" json:"max_phasers"`
	MaxTorpedoes    int      `yaml:"max_torpedoes" json:"max_torpedoes"`
	MaxMissiles     int      `yaml:"max_missiles" json:"max_missiles"`
	HasDecoy        bool     `yaml:"has_decoy" json:"has_decoy"`
	HasJammer       bool     `yaml:"has_jammer" json:"has_jammer"`
	HasZipper       bool     `yaml:"has_zipper" json:"has_zipper"`
	HasMine         bool     `yaml:"has_mine" json:"has_mine"`
	HasAttackPlanet bool     `yaml:"has_attack_planet" json:"has_attack_planet"`
	HasCloaking     bool     `yaml:"has_cloaking" json:"has_cloaking"`
	MaxAcceleration float64  `yaml:"max_acceleration" json:"max_acceleration"`
	MaxWarp         int      `yaml:"max_warp" json:"max_warp"`
	MaxTons         float64  `yaml:"max_tons" json:"max_tons"`
	MaxPrice        int      `yaml:"max_price" json:"max_price"`
	MaxPoints       float64  `yaml:"max_points" json:"max_points"`
	ScanRange       float64  `yaml:"scan_range" json:"scan_range"`
	CybsCanAttack   bool     `yaml:"cybs_can_attack" json:"cybs_can_attack"`
	NumberToAttack  int      `yaml:"number_to_attack" json:"number_to_attack"`
	DamageFactor    float64  `yaml:"damage_factor" json:"damage_factor"`
}

// MaxSpeed converts the warp rating into movement speed units.
func (c ShipClass) MaxSpeed() float64 {
	return float64(c.MaxWarp) * 1000
}

// Catalog indexes ship classes by number.
type Catalog struct {
	Classes map[int]ShipClass
}

// Clone produces a defensive copy to protect the cached catalog from mutation.
func (c Catalog) Clone() Catalog {
	clones := Catalog{Classes: make(map[int]ShipClass, len(c.Classes))}
	for key, value := range c.Classes {
		clones.Classes[key] = value
	}
	return clones
}

// Lookup resolves a class by number.
func (c Catalog) Lookup(number int) (ShipClass, bool) {
	class, ok := c.Classes[number]
	return class, ok
}

// Numbers lists the class numbers in ascending order.
func (c Catalog) Numbers() []int {
	numbers := make([]int, 0, len(c.Classes))
	for number := range c.Classes {
		numbers = append(numbers, number)
	}
	sort.Ints(numbers)
	return numbers
}

// OfType lists the classes flown by the provided type in ascending order.
func (c Catalog) OfType(kind ShipType) []ShipClass {
	var classes []ShipClass
	for _, number := range c.Numbers() {
		if class := c.Classes[number]; class.Type == kind {
			classes = append(classes, class)
		}
	}
	return classes
}

type classFile struct {
	Classes []ShipClass `yaml:"classes"`
}

//go:embed classes.yaml
var classPayload []byte

var (
	classOnce sync.Once
	classData Catalog
	classErr  error
)

// Classes exposes the parsed ship class catalog.
func Classes() Catalog {
	classOnce.Do(func() {
		//1.- Parse the embedded YAML payload exactly once in a threadsafe manner.
		classData, classErr = parseCatalog(classPayload)
	})
	//2.- Panic immediately when the catalog cannot be decoded to avoid silent divergence.
	if classErr != nil {
		panic(classErr)
	}
	//3.- Return a clone so callers cannot mutate shared state.
	return classData.Clone()
}

// Lookup resolves a class number against the embedded catalog.
func Lookup(number int) (ShipClass, bool) {
	return Classes().Lookup(number)
}

func parseCatalog(payload []byte) (Catalog, error) {
	var decoded classFile
	if err := yaml.Unmarshal(payload, &decoded); err != nil {
		return Catalog{}, fmt.Errorf("decode ship classes: %w", err)
	}
	catalog := Catalog{Classes: make(map[int]ShipClass, len(decoded.Classes))}
	for _, class := range decoded.Classes {
		if class.Number <= 0 {
			return Catalog{}, fmt.Errorf("ship class %q has invalid number %d", class.Name, class.Number)
		}
		if _, dup := catalog.Classes[class.Number]; dup {
			return Catalog{}, fmt.Errorf("duplicate ship class %d", class.Number)
		}
		catalog.Classes[class.Number] = class
	}
	return catalog, nil
}
