package ai

import "github.com/talktojer/ge-sub000/internal/combat"

const (
	// DefaultEngagementRange is the parsec range at which a hunting ship commits to attack.
	DefaultEngagementRange = 150000.0
	// repairedDamage ends the repair state.
	repairedDamage = 20.0
)

// Engine runs the shared decision machine for every AI family.
type Engine struct {
	engagementRange float64
}

// EngineOption customises the decision engine.
type EngineOption func(*Engine)

// WithEngagementRange overrides the base engagement range before personality scaling.
func WithEngagementRange(parsecs float64) EngineOption {
	return func(e *Engine) {
		if parsecs > 0 {
			e.engagementRange = parsecs
		}
	}
}

// NewEngine constructs a decision engine.
func NewEngine(opts ...EngineOption) *Engine {
	engine := &Engine{engagementRange: DefaultEngagementRange}
	for _, opt := range opts {
		if opt != nil {
			opt(engine)
		}
	}
	return engine
}

// EngagementRange reports the personality scaled engagement range of the ship.
func (e *Engine) EngagementRange(ship Ship) float64 {
	return e.engagementRange * ModifiersFor(ship.Personality).EngagementRange
}

// RetreatThreshold reports the hull damage above which an attacking ship withdraws.
func RetreatThreshold(ship Ship) float64 {
	return ModifiersFor(ship.Personality).RetreatThreshold * 100
}

// Decide applies one transition of the machine and returns the updated ship and its decision.
// Droids replace every engaging decision with their task.
func (e *Engine) Decide(ship Ship, situation Situation) (Ship, Decision) {
	var decision Decision
	ship, decision = e.decideCombat(ship, situation)
	if ship.Family == FamilyDroid {
		ship, decision = resolveTask(ship, situation, decision)
	}
	decision.ShipID = ship.ID
	return ship, decision
}

func (e *Engine) decideCombat(ship Ship, situation Situation) (Ship, Decision) {
	aggression := ship.Aggression * ModifiersFor(ship.Personality).Aggression
	switch ship.State {
	case StateIdle:
		return decideIdle(ship, situation, aggression)
	case StatePatrol:
		return decidePatrol(ship, situation, aggression)
	case StateHunt:
		return e.decideHunt(ship, situation)
	case StateAttack:
		return decideAttack(ship, situation)
	case StateRetreat:
		return decideRetreat(ship, situation)
	case StateRepair:
		return decideRepair(ship)
	default:
		ship.State = StatePatrol
		return decidePatrol(ship, situation, aggression)
	}
}

func closestID(situation Situation) string {
	if situation.ClosestEnemy == nil {
		return ""
	}
	return situation.ClosestEnemy.ID
}

func decideIdle(ship Ship, situation Situation, aggression float64) (Ship, Decision) {
	if situation.EnemyCount() > 0 && aggression > 0.3 {
		ship.State = StateHunt
		return ship, Decision{Action: ActionHunt, TargetID: closestID(situation), Priority: 0.8, Reasoning: "Enemies detected - switching to hunt mode"}
	}
	ship.State = StatePatrol
	return ship, Decision{Action: ActionPatrol, Parameters: Parameters{PatrolRadius: 100000}, Priority: 0.3, Reasoning: "No immediate threats - beginning patrol"}
}

func decidePatrol(ship Ship, situation Situation, aggression float64) (Ship, Decision) {
	if situation.EnemyCount() > 0 {
		if aggression > 0.5 {
			ship.State = StateHunt
			return ship, Decision{Action: ActionHunt, TargetID: closestID(situation), Priority: 0.7, Reasoning: "Enemy contact - engaging hunt mode"}
		}
		return ship, Decision{Action: ActionPatrolAlert, Parameters: Parameters{AlertLevel: 0.8}, Priority: 0.5, Reasoning: "Enemy detected but maintaining defensive posture"}
	}
	return ship, Decision{Action: ActionPatrol, Parameters: Parameters{PatrolRadius: 150000}, Priority: 0.3, Reasoning: "Continuing patrol sweep"}
}

func (e *Engine) decideHunt(ship Ship, situation Situation) (Ship, Decision) {
	if situation.ClosestEnemy == nil {
		ship.State = StatePatrol
		ship.TargetID = ""
		return ship, Decision{Action: ActionPatrol, Priority: 0.4, Reasoning: "No targets found - returning to patrol"}
	}
	closest := *situation.ClosestEnemy
	engagement := e.EngagementRange(ship)
	if closest.Distance < engagement {
		ship.State = StateAttack
		ship.TargetID = closest.ID
		return ship, Decision{Action: ActionEngage, TargetID: closest.ID, Parameters: Parameters{EngagementRange: engagement}, Priority: 0.9, Reasoning: "Target in range - engaging"}
	}
	return ship, Decision{Action: ActionPursue, TargetID: closest.ID, Parameters: Parameters{MaxPursuitRange: 300000}, Priority: 0.6, Reasoning: "Pursuing target"}
}

func decideAttack(ship Ship, situation Situation) (Ship, Decision) {
	//1.- Damage beyond the personality threshold always wins over the attack.
	if ship.Damage > RetreatThreshold(ship) {
		ship.State = StateRetreat
		return ship, Decision{Action: ActionRetreat, Parameters: Parameters{RetreatDistance: 200000, EvadeFrom: evadeFrom(ship, situation)}, Priority: 0.9, Reasoning: "Heavy damage - retreating"}
	}
	//2.- A target that left the scanner picture sends the ship back to hunting.
	if ship.TargetID == "" {
		ship.State = StateHunt
		return ship, Decision{Action: ActionHunt, Priority: 0.5, Reasoning: "Lost target - resuming hunt"}
	}
	if _, visible := situation.Enemy(ship.TargetID); !visible {
		ship.State = StateHunt
		ship.TargetID = ""
		return ship, Decision{Action: ActionHunt, Priority: 0.5, Reasoning: "Lost target - resuming hunt"}
	}
	return ship, Decision{
		Action:     ActionAttack,
		TargetID:   ship.TargetID,
		Parameters: Parameters{Weapon: ChooseWeapon(ship), Pattern: ChoosePattern(ship.Personality)},
		Priority:   1.0,
		Reasoning:  "Continuing attack on target",
	}
}

func evadeFrom(ship Ship, situation Situation) string {
	if ship.TargetID != "" {
		return ship.TargetID
	}
	return closestID(situation)
}

func decideRetreat(ship Ship, situation Situation) (Ship, Decision) {
	recovered := ship.Damage < RetreatThreshold(ship)/2
	switch {
	case situation.EnemyCount() == 0 && recovered:
		ship.State = StatePatrol
		ship.TargetID = ""
		return ship, Decision{Action: ActionPatrol, Priority: 0.4, Reasoning: "Damage repaired and no enemies - resuming patrol"}
	case situation.EnemyCount() == 0:
		ship.State = StateRepair
		ship.TargetID = ""
		return ship, Decision{Action: ActionRepair, Parameters: Parameters{RepairPriority: "hull"}, Priority: 0.7, Reasoning: "Disengaged - beginning repairs"}
	case recovered:
		ship.State = StateHunt
		return ship, Decision{Action: ActionHunt, TargetID: closestID(situation), Priority: 0.6, Reasoning: "Damage under control - re-engaging"}
	}
	return ship, Decision{Action: ActionRetreat, Parameters: Parameters{RetreatSpeed: "maximum", EvadeFrom: evadeFrom(ship, situation)}, Priority: 0.8, Reasoning: "Continuing tactical withdrawal"}
}

func decideRepair(ship Ship) (Ship, Decision) {
	if ship.Damage < repairedDamage {
		ship.State = StatePatrol
		return ship, Decision{Action: ActionPatrol, Priority: 0.4, Reasoning: "Repairs complete - resuming operations"}
	}
	return ship, Decision{Action: ActionRepair, Parameters: Parameters{RepairPriority: "hull"}, Priority: 0.7, Reasoning: "Continuing repairs"}
}

// ChooseWeapon picks the weapon the remaining energy can sustain.
func ChooseWeapon(ship Ship) combat.Action {
	switch {
	case ship.Energy > 500:
		return combat.ActionFirePhasers
	case ship.Energy > 200:
		return combat.ActionFireTorpedo
	default:
		return combat.ActionFireMissile
	}
}

// ChoosePattern maps a personality to its attack manoeuvre.
func ChoosePattern(personality Personality) AttackPattern {
	switch personality {
	case PersonalityAggressive:
		return PatternFrontalAssault
	case PersonalityTactical:
		return PatternFlanking
	case PersonalityDefensive:
		return PatternDefensiveFire
	default:
		return PatternStandard
	}
}
