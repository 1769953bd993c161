package radar

import (
	"fmt"
	"math"
	"strings"

	"github.com/talktojer/ge-sub000/internal/combat"
	"github.com/talktojer/ge-sub000/internal/galaxy"
)

// DefaultDisplayRange is the tactical display radius in parsecs.
const DefaultDisplayRange = 150000.0

// DisplayMode selects the tactical display layout.
type DisplayMode string

const (
	ModeOverview      DisplayMode = "overview"
	ModeCombat        DisplayMode = "combat"
	ModeNavigation    DisplayMode = "navigation"
	ModeDamageControl DisplayMode = "damage_control"
	ModeScanner       DisplayMode = "scanner"
)

// ParseDisplayMode maps a textual mode onto the closed set, defaulting to overview.
func ParseDisplayMode(raw string) (DisplayMode, error) {
	mode := DisplayMode(strings.ToLower(strings.TrimSpace(raw)))
	switch mode {
	case "":
		return ModeOverview, nil
	case ModeOverview, ModeCombat, ModeNavigation, ModeDamageControl, ModeScanner:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown display mode %q", raw)
	}
}

// GridKind distinguishes the overlay primitives.
type GridKind string

const (
	GridVertical   GridKind = "vertical"
	GridHorizontal GridKind = "horizontal"
	GridCircle     GridKind = "circle"
)

// GridLine is one overlay primitive in coordinate units.
type GridLine struct {
	Kind   GridKind          `json:"type"`
	At     float64           `json:"at,omitempty"`
	Start  float64           `json:"start,omitempty"`
	End    float64           `json:"end,omitempty"`
	Center galaxy.Coordinate `json:"center,omitempty"`
	Radius float64           `json:"radius,omitempty"`
}

// Threat is one entry of the threat assessment.
type Threat struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
	Level    float64 `json:"threat_level"`
	Kind     string  `json:"threat_type"`
}

// ThreatAssessment aggregates the threats on the display.
type ThreatAssessment struct {
	Total          float64  `json:"total_threat_level"`
	Count          int      `json:"threat_count"`
	Threats        []Threat `json:"threats"`
	Recommendation string   `json:"recommendation"`
}

// Navigation summarises the observer's own motion.
type Navigation struct {
	Position galaxy.Coordinate `json:"current_position"`
	Sector   galaxy.Sector     `json:"current_sector"`
	Heading  float64           `json:"heading"`
	Speed    float64           `json:"speed"`
}

// DamageStatus summarises the observer's condition.
type DamageStatus struct {
	HullDamage        float64 `json:"hull_damage"`
	ShieldsUp         bool    `json:"shield_status"`
	ShieldType        int     `json:"shield_type"`
	ShieldCharge      float64 `json:"shield_charge"`
	Energy            float64 `json:"energy_level"`
	TacticalDamage    float64 `json:"tactical"`
	HelmDamage        float64 `json:"helm"`
	FireControlDamage bool    `json:"fire_control"`
}

// TacticalDisplay is the full tactical picture handed to collaborators.
type TacticalDisplay struct {
	Mode       DisplayMode       `json:"display_mode"`
	Center     galaxy.Coordinate `json:"center_position"`
	Range      float64           `json:"display_range"`
	Objects    []ScanResult      `json:"objects"`
	Grid       []GridLine        `json:"grid_lines"`
	Threats    ThreatAssessment  `json:"threat_assessment"`
	Navigation Navigation        `json:"navigation_data"`
	Damage     DamageStatus      `json:"damage_status"`
}

// Display builds the tactical picture around the ship. Objects pass through the tactical
// scanner's detection model, which is powered by the display and costs no energy.
func (s *Scanner) Display(ship combat.ShipCombatSnapshot, mode DisplayMode, displayRange float64, objects []Object) TacticalDisplay {
	if !(displayRange > 0) {
		displayRange = DefaultDisplayRange
	}
	if mode == "" {
		mode = ModeOverview
	}
	observer := Observer{ID: ship.ID, Position: ship.Position, Heading: ship.Heading, Energy: ship.Energy}
	detected := s.detect(observer, scannerSpecs[ScannerTactical], displayRange, objects)
	return TacticalDisplay{
		Mode:    mode,
		Center:  ship.Position,
		Range:   displayRange,
		Objects: detected,
		Grid:    Grid(ship.Position, displayRange),
		Threats: AssessThreats(detected),
		Navigation: Navigation{
			Position: ship.Position,
			Sector:   galaxy.SectorOf(ship.Position),
			Heading:  ship.Heading,
			Speed:    ship.Speed,
		},
		Damage: DamageStatus{
			HullDamage:        ship.HullDamage,
			ShieldsUp:         ship.ShieldsUp,
			ShieldType:        ship.ShieldType,
			ShieldCharge:      ship.ShieldCharge,
			Energy:            ship.Energy,
			TacticalDamage:    ship.TacticalDamage,
			HelmDamage:        ship.HelmDamage,
			FireControlDamage: ship.FireControlDamaged(),
		},
	}
}

// Grid returns eleven vertical and eleven horizontal lines plus three range circles.
func Grid(center galaxy.Coordinate, displayRange float64) []GridLine {
	extent := displayRange / galaxy.SectorScale
	spacing := extent / 10
	lines := make([]GridLine, 0, 25)
	for i := -5; i <= 5; i++ {
		lines = append(lines, GridLine{Kind: GridVertical, At: center.X + float64(i)*spacing, Start: center.Y - extent, End: center.Y + extent})
	}
	for i := -5; i <= 5; i++ {
		lines = append(lines, GridLine{Kind: GridHorizontal, At: center.Y + float64(i)*spacing, Start: center.X - extent, End: center.X + extent})
	}
	for i := 1; i <= 3; i++ {
		lines = append(lines, GridLine{Kind: GridCircle, Center: center, Radius: extent * float64(i) / 4})
	}
	return lines
}

// ThreatLevel scores a hostile ship contact.
func ThreatLevel(result ScanResult) float64 {
	level := 0.5
	switch {
	case result.Distance < 50000:
		level += 0.3
	case result.Distance < 100000:
		level += 0.2
	default:
		level += 0.1
	}
	if result.Cloaked {
		level += 0.2
	}
	return math.Min(1, level)
}

const mineThreat = 0.7

// AssessThreats scores hostile ships and mines among the contacts.
func AssessThreats(results []ScanResult) ThreatAssessment {
	assessment := ThreatAssessment{Threats: make([]Threat, 0)}
	total := 0.0
	for _, result := range results {
		switch {
		case result.Kind == KindShip && result.Hostile:
			level := ThreatLevel(result)
			assessment.Threats = append(assessment.Threats, Threat{ID: result.TargetID, Name: result.Name, Distance: result.Distance, Level: level, Kind: "hostile_ship"})
			total += level
		case result.Kind == KindMine:
			assessment.Threats = append(assessment.Threats, Threat{ID: result.TargetID, Name: "Mine", Distance: result.Distance, Level: mineThreat, Kind: "mine"})
			total += mineThreat
		}
	}
	assessment.Total = math.Min(1, total)
	assessment.Count = len(assessment.Threats)
	assessment.Recommendation = Recommendation(total)
	return assessment
}

// Recommendation buckets an aggregate threat level.
func Recommendation(total float64) string {
	switch {
	case total < 0.3:
		return "LOW_THREAT"
	case total < 0.6:
		return "MODERATE_THREAT"
	case total < 0.8:
		return "HIGH_THREAT"
	default:
		return "EXTREME_THREAT"
	}
}
