package ai

import (
	"sort"

	"github.com/talktojer/ge-sub000/internal/combat"
	"github.com/talktojer/ge-sub000/internal/galaxy"
)

const (
	// CybertronUpdateFrequency is the number of AI ticks between Cybertron decisions.
	CybertronUpdateFrequency = 3
	// DroidUpdateFrequency is the number of AI ticks between droid decisions.
	DroidUpdateFrequency = 5
	// DefaultCoordinationRange groups Cybertron ships within this many parsecs.
	DefaultCoordinationRange = 200000.0

	cybertronSkillBase = 75
	cybertronEnergy    = 50000.0
	droidSkillBase     = 40
	droidEnergy        = 30000.0
	highEndCyborgClass = 9
)

// UpdateFrequency reports the decision cadence of the family.
func (f Family) UpdateFrequency() int {
	if f == FamilyDroid {
		return DroidUpdateFrequency
	}
	return CybertronUpdateFrequency
}

// NewCybertron creates a combat AI ship. Heavy hulls fly tactically, the rest aggressively.
// A non positive skill rolls 75 plus a jitter in [-10, 15].
func NewCybertron(rng combat.Rand, id string, class int, position galaxy.Coordinate, skill int) Ship {
	ship := Ship{
		ID:          id,
		Class:       class,
		Family:      FamilyCybertron,
		Personality: PersonalityAggressive,
		State:       StatePatrol,
		Position:    position,
		Energy:      cybertronEnergy,
		Aggression:  0.9,
		Caution:     0.2,
	}
	if class >= highEndCyborgClass {
		ship.Personality = PersonalityTactical
		ship.Aggression = 0.8
		ship.Caution = 0.4
	}
	if skill <= 0 {
		skill = cybertronSkillBase + combat.RandomInt(rng, -10, 15)
	}
	ship.Skill = skill
	ship.Heading = combat.Uniform(rng, 0, 360)
	return ship
}

// NewDroid creates a task AI ship. Droids start idle with a combat averse personality.
func NewDroid(rng combat.Rand, id string, class int, position galaxy.Coordinate, task Task) Ship {
	if task == "" {
		task = TaskMining
	}
	ship := Ship{
		ID:          id,
		Class:       class,
		Family:      FamilyDroid,
		Task:        task,
		Personality: PersonalityDefensive,
		State:       StateIdle,
		Position:    position,
		Energy:      droidEnergy,
		Aggression:  0.3,
		Caution:     0.7,
	}
	switch task {
	case TaskMining:
		ship.Personality = PersonalityCoward
		ship.Aggression = 0.1
		ship.Caution = 0.9
	case TaskScout:
		ship.Aggression = 0.2
		ship.Caution = 0.8
	}
	ship.Skill = droidSkillBase + combat.RandomInt(rng, -15, 10)
	ship.Heading = combat.Uniform(rng, 0, 360)
	return ship
}

// resolveTask swaps engaging and routine decisions of a droid for its task work.
// Withdrawals, repairs and alerts are kept.
func resolveTask(ship Ship, situation Situation, decision Decision) (Ship, Decision) {
	switch decision.Action {
	case ActionRetreat, ActionRepair, ActionPatrolAlert:
		return ship, decision
	}
	if decision.Action.Engaging() || ship.State == StateHunt || ship.State == StateAttack {
		ship.State = StatePatrol
		ship.TargetID = ""
	}
	return ship, TaskDecision(ship, situation)
}

// TaskDecision resolves the task specific sub decision of a droid.
func TaskDecision(ship Ship, situation Situation) Decision {
	switch ship.Task {
	case TaskMining:
		target := ship.TaskTarget
		if target == "" {
			if resource, ok := situation.ClosestResource(); ok {
				target = resource.ID
			}
		}
		if target != "" {
			return Decision{Action: ActionMineResources, TargetID: target, Parameters: Parameters{MiningEfficiency: float64(ship.Skill) / 100}, Priority: 0.8, Reasoning: "Continuing mining operations"}
		}
		return Decision{Action: ActionSearchResources, Parameters: Parameters{SearchRadius: 200000}, Priority: 0.6, Reasoning: "Searching for mining opportunities"}
	case TaskScout:
		return Decision{Action: ActionScoutArea, Parameters: Parameters{ScoutRadius: 300000, StealthMode: true, ReportFrequency: 10}, Priority: 0.7, Reasoning: "Conducting reconnaissance mission"}
	case TaskTransport:
		if ship.TaskTarget != "" {
			return Decision{Action: ActionTransportCargo, TargetID: ship.TaskTarget, Parameters: Parameters{CargoPriority: "high"}, Priority: 0.8, Reasoning: "Delivering cargo to destination"}
		}
		return Decision{Action: ActionAwaitCargo, Priority: 0.3, Reasoning: "Waiting for cargo assignment"}
	default:
		return Decision{Action: ActionIdle, Priority: 0.1, Reasoning: "Unknown task type"}
	}
}

// Group is a set of Cybertron ships flying together.
type Group struct {
	LeaderID string   `json:"leader_id"`
	Members  []string `json:"members"`
}

// GroupByProximity clusters ships around the first ungrouped ship in id order.
func GroupByProximity(ships []Ship, parsecs float64) []Group {
	if parsecs <= 0 {
		parsecs = DefaultCoordinationRange
	}
	ordered := append([]Ship(nil), ships...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	var groups []Group
	grouped := make(map[string]bool, len(ordered))
	for i, anchor := range ordered {
		if grouped[anchor.ID] {
			continue
		}
		grouped[anchor.ID] = true
		//1.- Collect the ungrouped ships within range of the anchor.
		members := []Ship{anchor}
		for _, other := range ordered[i+1:] {
			if grouped[other.ID] {
				continue
			}
			if galaxy.Range(anchor.Position, other.Position) <= parsecs {
				grouped[other.ID] = true
				members = append(members, other)
			}
		}
		//2.- The most skilled member leads; ties go to the earliest id.
		leader := members[0]
		ids := make([]string, 0, len(members))
		for _, member := range members {
			ids = append(ids, member.ID)
			if member.Skill > leader.Skill {
				leader = member
			}
		}
		groups = append(groups, Group{LeaderID: leader.ID, Members: ids})
	}
	return groups
}

// Coordinate elects a leader in every multi ship group and has the followers support it.
func Coordinate(ships []Ship, parsecs float64) []Decision {
	var decisions []Decision
	for _, group := range GroupByProximity(ships, parsecs) {
		if len(group.Members) < 2 {
			continue
		}
		for _, member := range group.Members {
			if member == group.LeaderID {
				decisions = append(decisions, Decision{ShipID: member, Action: ActionCoordinate, Parameters: Parameters{Role: "leader", GroupSize: len(group.Members)}, Priority: 0.6, Reasoning: "Acting as group leader"})
				continue
			}
			decisions = append(decisions, Decision{ShipID: member, Action: ActionSupport, TargetID: group.LeaderID, Parameters: Parameters{Role: "support", Leader: group.LeaderID}, Priority: 0.5, Reasoning: "Supporting group leader"})
		}
	}
	return decisions
}
