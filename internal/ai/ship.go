package ai

import (
	"fmt"
	"strings"

	"github.com/talktojer/ge-sub000/internal/combat"
	"github.com/talktojer/ge-sub000/internal/galaxy"
)

// Family selects which AI implementation flies a ship.
type Family string

const (
	FamilyCybertron Family = "cyborg"
	FamilyDroid     Family = "droid"
)

// ParseFamily maps a textual family onto the closed set.
func ParseFamily(raw string) (Family, error) {
	switch family := Family(strings.ToLower(strings.TrimSpace(raw))); family {
	case FamilyCybertron, FamilyDroid:
		return family, nil
	default:
		return "", fmt.Errorf("unknown ai type %q", raw)
	}
}

// Task is the standing assignment of a droid.
type Task string

const (
	TaskMining    Task = "mining"
	TaskScout     Task = "scout"
	TaskTransport Task = "transport"
)

// Ship is the AI record of one computer controlled vessel.
type Ship struct {
	ID          string            `json:"ship_id"`
	Class       int               `json:"ship_class"`
	Family      Family            `json:"ai_type"`
	Task        Task              `json:"task_type,omitempty"`
	TaskTarget  string            `json:"task_target,omitempty"`
	Personality Personality       `json:"personality"`
	State       State             `json:"current_state"`
	Position    galaxy.Coordinate `json:"position"`
	Heading     float64           `json:"heading"`
	Speed       float64           `json:"speed"`
	Energy      float64           `json:"energy"`
	Damage      float64           `json:"damage"`
	Shields     int               `json:"shields"`
	TargetID    string            `json:"target_id,omitempty"`
	LeaderID    string            `json:"leader_id,omitempty"`
	Cooldown    int               `json:"decision_cooldown"`
	Skill       int               `json:"skill_level"`
	Aggression  float64           `json:"aggression"`
	Caution     float64           `json:"caution"`
	LastTick    uint64            `json:"last_decision_tick"`
	// Managed marks Cybertrons owned by the population controller.
	Managed bool `json:"managed,omitempty"`
}

// Action is the verb of an AI decision.
type Action string

const (
	ActionIdle            Action = "idle"
	ActionPatrol          Action = "patrol"
	ActionPatrolAlert     Action = "patrol_alert"
	ActionHunt            Action = "hunt"
	ActionEngage          Action = "engage"
	ActionPursue          Action = "pursue"
	ActionAttack          Action = "attack"
	ActionRetreat         Action = "retreat"
	ActionRepair          Action = "repair"
	ActionCoordinate      Action = "coordinate"
	ActionSupport         Action = "support"
	ActionMineResources   Action = "mine_resources"
	ActionSearchResources Action = "search_resources"
	ActionScoutArea       Action = "scout_area"
	ActionTransportCargo  Action = "transport_cargo"
	ActionAwaitCargo      Action = "await_cargo"
)

// Engaging reports whether the action moves the ship towards combat.
func (a Action) Engaging() bool {
	switch a {
	case ActionHunt, ActionEngage, ActionPursue, ActionAttack:
		return true
	default:
		return false
	}
}

// AttackPattern is the manoeuvre a ship flies while attacking.
type AttackPattern string

const (
	PatternFrontalAssault AttackPattern = "frontal_assault"
	PatternFlanking       AttackPattern = "flanking_maneuver"
	PatternDefensiveFire  AttackPattern = "defensive_fire"
	PatternStandard       AttackPattern = "standard_attack"
)

// Parameters carries the optional arguments of a decision.
type Parameters struct {
	PatrolRadius     float64       `json:"patrol_radius,omitempty"`
	AlertLevel       float64       `json:"alert_level,omitempty"`
	EngagementRange  float64       `json:"engagement_range,omitempty"`
	MaxPursuitRange  float64       `json:"max_pursuit_range,omitempty"`
	RetreatDistance  float64       `json:"retreat_distance,omitempty"`
	RetreatSpeed     string        `json:"retreat_speed,omitempty"`
	EvadeFrom        string        `json:"evade_from,omitempty"`
	Weapon           combat.Action `json:"weapon_type,omitempty"`
	Pattern          AttackPattern `json:"attack_pattern,omitempty"`
	RepairPriority   string        `json:"repair_priority,omitempty"`
	Role             string        `json:"role,omitempty"`
	GroupSize        int           `json:"group_size,omitempty"`
	Leader           string        `json:"leader,omitempty"`
	MiningEfficiency float64       `json:"mining_efficiency,omitempty"`
	SearchRadius     float64       `json:"search_radius,omitempty"`
	ScoutRadius      float64       `json:"scout_radius,omitempty"`
	StealthMode      bool          `json:"stealth_mode,omitempty"`
	ReportFrequency  int           `json:"report_frequency,omitempty"`
	CargoPriority    string        `json:"cargo_priority,omitempty"`
}

// Decision is the action an AI ship proposes for this cycle. Decisions are executed by
// the engine exactly like player commands.
type Decision struct {
	ShipID     string     `json:"ship_id"`
	Action     Action     `json:"action_type"`
	TargetID   string     `json:"target_id,omitempty"`
	Parameters Parameters `json:"parameters"`
	Priority   float64    `json:"priority"`
	Reasoning  string     `json:"reasoning"`
}
