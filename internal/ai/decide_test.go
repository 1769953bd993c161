package ai

import (
	"math"
	"testing"

	"github.com/talktojer/ge-sub000/internal/combat"
	"github.com/talktojer/ge-sub000/internal/radar"
)

func attacker(personality Personality, state State) Ship {
	return Ship{ID: "ai", Class: 3, Family: FamilyCybertron, Personality: personality, State: state, Energy: 5000, Aggression: 0.9, Caution: 0.2}
}

func enemyAt(id string, distance float64) Situation {
	enemy := Contact{ID: id, Kind: radar.KindShip, Distance: distance, Threat: 0.5}
	return Situation{Enemies: []Contact{enemy}, ThreatLevel: 0.5, ClosestEnemy: &enemy}
}

func TestAttackRetreatsOnHeavyDamage(t *testing.T) {
	engine := NewEngine()
	ship := attacker(PersonalityBalanced, StateAttack)
	ship.Damage = 85
	ship.TargetID = "e1"

	updated, decision := engine.Decide(ship, enemyAt("e1", 40000))
	if updated.State != StateRetreat || decision.Action != ActionRetreat {
		t.Fatalf("expected retreat, got state %s action %s", updated.State, decision.Action)
	}
	if decision.Parameters.EvadeFrom != "e1" || decision.Priority != 0.9 || decision.ShipID != "ai" {
		t.Fatalf("unexpected retreat decision %+v", decision)
	}
	if ship.State != StateAttack {
		t.Fatalf("input ship must not be mutated")
	}
}

func TestAggressivePersonalityToleratesMoreDamage(t *testing.T) {
	ship := attacker(PersonalityAggressive, StateAttack)
	ship.Damage = 85
	ship.TargetID = "e1"
	updated, decision := NewEngine().Decide(ship, enemyAt("e1", 40000))
	if updated.State != StateAttack || decision.Action != ActionAttack {
		t.Fatalf("expected the attack to continue, got %s/%s", updated.State, decision.Action)
	}
	if decision.Parameters.Weapon != combat.ActionFirePhasers || decision.Parameters.Pattern != PatternFrontalAssault {
		t.Fatalf("unexpected attack parameters %+v", decision.Parameters)
	}
}

func TestHuntEngagesInsideEngagementRange(t *testing.T) {
	engine := NewEngine()
	balanced := attacker(PersonalityBalanced, StateHunt)
	updated, decision := engine.Decide(balanced, enemyAt("e1", 120000))
	if updated.State != StateAttack || updated.TargetID != "e1" || decision.Action != ActionEngage {
		t.Fatalf("expected engagement, got %+v / %+v", updated, decision)
	}
	if decision.Parameters.EngagementRange != 150000 {
		t.Fatalf("unexpected engagement range %.0f", decision.Parameters.EngagementRange)
	}

	coward := attacker(PersonalityCoward, StateHunt)
	updated, decision = engine.Decide(coward, enemyAt("e1", 120000))
	if updated.State != StateHunt || decision.Action != ActionPursue || decision.TargetID != "e1" {
		t.Fatalf("expected pursuit outside the scaled range, got %s/%s", updated.State, decision.Action)
	}

	updated, decision = engine.Decide(balanced, Situation{})
	if updated.State != StatePatrol || decision.Action != ActionPatrol {
		t.Fatalf("expected patrol without enemies, got %s/%s", updated.State, decision.Action)
	}
}

func TestIdleAndPatrolTransitions(t *testing.T) {
	engine := NewEngine()
	updated, decision := engine.Decide(attacker(PersonalityAggressive, StateIdle), enemyAt("e1", 90000))
	if updated.State != StateHunt || decision.Action != ActionHunt || decision.TargetID != "e1" {
		t.Fatalf("expected hunt from idle, got %s/%s", updated.State, decision.Action)
	}
	updated, decision = engine.Decide(attacker(PersonalityAggressive, StateIdle), Situation{})
	if updated.State != StatePatrol || decision.Parameters.PatrolRadius != 100000 {
		t.Fatalf("expected patrol from idle, got %s/%+v", updated.State, decision)
	}

	cautious := attacker(PersonalityBalanced, StatePatrol)
	cautious.Aggression = 0.6
	updated, decision = engine.Decide(cautious, enemyAt("e1", 90000))
	if updated.State != StatePatrol || decision.Action != ActionPatrolAlert || decision.Parameters.AlertLevel != 0.8 {
		t.Fatalf("expected alert patrol, got %s/%+v", updated.State, decision)
	}
	updated, decision = engine.Decide(attacker(PersonalityBerserker, StatePatrol), enemyAt("e1", 90000))
	if updated.State != StateHunt || decision.Priority != 0.7 {
		t.Fatalf("expected hunt from patrol, got %s/%+v", updated.State, decision)
	}
}

func TestAttackLosesTarget(t *testing.T) {
	ship := attacker(PersonalityBalanced, StateAttack)
	ship.TargetID = "gone"
	updated, decision := NewEngine().Decide(ship, enemyAt("e1", 40000))
	if updated.State != StateHunt || updated.TargetID != "" || decision.Action != ActionHunt {
		t.Fatalf("expected hunt after losing the target, got %+v / %+v", updated, decision)
	}
}

func TestRetreatAndRepairTransitions(t *testing.T) {
	engine := NewEngine()
	cases := []struct {
		name      string
		damage    float64
		situation Situation
		state     State
		action    Action
	}{
		{name: "recovered and alone", damage: 30, situation: Situation{}, state: StatePatrol, action: ActionPatrol},
		{name: "damaged and alone", damage: 60, situation: Situation{}, state: StateRepair, action: ActionRepair},
		{name: "recovered under fire", damage: 10, situation: enemyAt("e1", 60000), state: StateHunt, action: ActionHunt},
		{name: "damaged under fire", damage: 70, situation: enemyAt("e1", 60000), state: StateRetreat, action: ActionRetreat},
	}
	for _, tc := range cases {
		ship := attacker(PersonalityBalanced, StateRetreat)
		ship.Damage = tc.damage
		updated, decision := engine.Decide(ship, tc.situation)
		if updated.State != tc.state || decision.Action != tc.action {
			t.Fatalf("%s: expected %s/%s, got %s/%s", tc.name, tc.state, tc.action, updated.State, decision.Action)
		}
	}

	repairing := attacker(PersonalityBalanced, StateRepair)
	repairing.Damage = 30
	if updated, _ := engine.Decide(repairing, Situation{}); updated.State != StateRepair {
		t.Fatalf("expected repairs to continue, got %s", updated.State)
	}
	repairing.Damage = 10
	if updated, _ := engine.Decide(repairing, Situation{}); updated.State != StatePatrol {
		t.Fatalf("expected patrol once repaired, got %s", updated.State)
	}
}

func TestUnknownStatesFallBackToPatrol(t *testing.T) {
	for _, state := range []State{StateDefend, StateResupply, State("confused")} {
		updated, decision := NewEngine().Decide(attacker(PersonalityBalanced, state), Situation{})
		if updated.State != StatePatrol || decision.Action != ActionPatrol {
			t.Fatalf("state %s: expected patrol fallback, got %s/%s", state, updated.State, decision.Action)
		}
	}
}

func TestChooseWeaponByEnergy(t *testing.T) {
	cases := map[float64]combat.Action{600: combat.ActionFirePhasers, 500: combat.ActionFireTorpedo, 201: combat.ActionFireTorpedo, 200: combat.ActionFireMissile}
	for energy, want := range cases {
		if got := ChooseWeapon(Ship{Energy: energy}); got != want {
			t.Fatalf("energy %.0f: expected %s, got %s", energy, want, got)
		}
	}
}

func TestAssessClassifiesContacts(t *testing.T) {
	ship := Ship{ID: "ai", Class: 2}
	results := []radar.ScanResult{
		{TargetID: "ai", Kind: radar.KindShip, Hostile: true},
		{TargetID: "raider", Kind: radar.KindShip, Class: 4, Hostile: true, Distance: 30000, Damage: 40},
		{TargetID: "scout", Kind: radar.KindShip, Class: 1, Hostile: true, Distance: 150000},
		{TargetID: "wing", Kind: radar.KindShip, Distance: 20000},
		{TargetID: "mine", Kind: radar.KindMine, Distance: 15000},
		{TargetID: "fort", Kind: radar.KindPlanet, Hostile: true, Distance: 250000},
		{TargetID: "home", Kind: radar.KindPlanet, Distance: 80000},
	}
	situation := Assess(ship, results)
	if situation.EnemyCount() != 3 || len(situation.Allies) != 1 || len(situation.Threats) != 1 || len(situation.Resources) != 1 {
		t.Fatalf("unexpected classification %+v", situation)
	}
	if situation.ClosestEnemy == nil || situation.ClosestEnemy.ID != "raider" {
		t.Fatalf("expected raider as closest enemy, got %+v", situation.ClosestEnemy)
	}
	raider, _ := situation.Enemy("raider")
	scout, _ := situation.Enemy("scout")
	if raider.Threat != 1 || math.Abs(scout.Threat-0.25) > 1e-9 {
		t.Fatalf("unexpected enemy threats raider=%.3f scout=%.3f", raider.Threat, scout.Threat)
	}
	if math.Abs(situation.ThreatLevel-(1+0.25+0.3+0.7)) > 1e-9 {
		t.Fatalf("unexpected aggregate threat %.3f", situation.ThreatLevel)
	}
}

func TestEnemyThreatFloor(t *testing.T) {
	got := EnemyThreat(Ship{Class: 8}, radar.ScanResult{Class: 1, Distance: 200000, Damage: 100})
	if got != 0.1 {
		t.Fatalf("expected the 0.1 floor, got %.4f", got)
	}
}

func TestPersonalityTable(t *testing.T) {
	if got := ModifiersFor(PersonalityBerserker); got.RetreatThreshold != 1 || got.EngagementRange != 1.5 {
		t.Fatalf("unexpected berserker modifiers %+v", got)
	}
	if got := ModifiersFor(Personality("mystic")); got != neutralModifiers {
		t.Fatalf("expected neutral modifiers, got %+v", got)
	}
	if _, err := ParsePersonality("Tactical"); err != nil {
		t.Fatalf("parse personality: %v", err)
	}
	if _, err := ParseState("sleeping"); err == nil {
		t.Fatalf("expected unknown state error")
	}
}
