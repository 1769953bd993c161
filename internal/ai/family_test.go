package ai

import (
	"testing"

	"github.com/talktojer/ge-sub000/internal/combat/combattest"
	"github.com/talktojer/ge-sub000/internal/galaxy"
	"github.com/talktojer/ge-sub000/internal/radar"
)

func TestNewCybertronRollsSkillAndPersonality(t *testing.T) {
	rng := combattest.NewRand(0.5).WithInts(20)
	heavy := NewCybertron(rng, "cyb-1", 10, galaxy.Coordinate{X: 1}, 0)
	if heavy.Skill != 85 || heavy.Heading != 180 {
		t.Fatalf("unexpected rolls skill=%d heading=%.1f", heavy.Skill, heavy.Heading)
	}
	if heavy.Personality != PersonalityTactical || heavy.Aggression != 0.8 || heavy.Caution != 0.4 {
		t.Fatalf("unexpected heavy cyborg profile %+v", heavy)
	}
	if heavy.State != StatePatrol || heavy.Energy != 50000 || heavy.Family.UpdateFrequency() != 3 {
		t.Fatalf("unexpected cyborg defaults %+v", heavy)
	}

	light := NewCybertron(combattest.NewRand(0.25), "cyb-2", 3, galaxy.Coordinate{}, 60)
	if light.Skill != 60 || light.Personality != PersonalityAggressive || light.Heading != 90 {
		t.Fatalf("unexpected light cyborg %+v", light)
	}
}

func TestNewDroidFollowsTask(t *testing.T) {
	miner := NewDroid(combattest.NewRand(0.1).WithInts(5), "droid-1", 11, galaxy.Coordinate{}, "")
	if miner.Task != TaskMining || miner.Personality != PersonalityCoward || miner.Skill != 30 {
		t.Fatalf("unexpected miner %+v", miner)
	}
	if miner.State != StateIdle || miner.Energy != 30000 || miner.Family.UpdateFrequency() != 5 {
		t.Fatalf("unexpected droid defaults %+v", miner)
	}
	scout := NewDroid(combattest.NewRand(), "droid-2", 12, galaxy.Coordinate{}, TaskScout)
	if scout.Personality != PersonalityDefensive || scout.Aggression != 0.2 || scout.Caution != 0.8 {
		t.Fatalf("unexpected scout %+v", scout)
	}
	hauler := NewDroid(combattest.NewRand(), "droid-3", 12, galaxy.Coordinate{}, TaskTransport)
	if hauler.Aggression != 0.3 || hauler.Caution != 0.7 {
		t.Fatalf("unexpected transport %+v", hauler)
	}
}

func TestDroidsWorkInsteadOfEngaging(t *testing.T) {
	engine := NewEngine()
	miner := NewDroid(combattest.NewRand().WithInts(15), "droid-1", 11, galaxy.Coordinate{}, TaskMining)
	situation := Assess(miner, []radar.ScanResult{
		{TargetID: "raider", Kind: radar.KindShip, Hostile: true, Distance: 60000},
		{TargetID: "far", Kind: radar.KindPlanet, Distance: 90000},
		{TargetID: "near", Kind: radar.KindPlanet, Distance: 40000},
	})
	updated, decision := engine.Decide(miner, situation)
	if updated.State != StatePatrol || decision.Action != ActionMineResources || decision.TargetID != "near" {
		t.Fatalf("expected mining at the nearest planet, got %s/%+v", updated.State, decision)
	}
	if decision.Parameters.MiningEfficiency != 0.4 || decision.ShipID != "droid-1" {
		t.Fatalf("unexpected mining parameters %+v", decision)
	}

	scout := NewDroid(combattest.NewRand(), "droid-2", 12, galaxy.Coordinate{}, TaskScout)
	scout.State = StateHunt
	updated, decision = engine.Decide(scout, enemyAt("raider", 10000))
	if updated.State != StatePatrol || updated.TargetID != "" || decision.Action != ActionScoutArea || !decision.Parameters.StealthMode {
		t.Fatalf("expected the scout to keep scouting, got %+v / %+v", updated, decision)
	}

	hauler := NewDroid(combattest.NewRand(), "droid-3", 12, galaxy.Coordinate{}, TaskTransport)
	if _, decision = engine.Decide(hauler, Situation{}); decision.Action != ActionAwaitCargo {
		t.Fatalf("expected await cargo, got %s", decision.Action)
	}
	hauler.TaskTarget = "starbase"
	if _, decision = engine.Decide(hauler, Situation{}); decision.Action != ActionTransportCargo || decision.TargetID != "starbase" {
		t.Fatalf("expected cargo delivery, got %+v", decision)
	}

	wounded := NewDroid(combattest.NewRand(), "droid-4", 12, galaxy.Coordinate{}, TaskScout)
	wounded.State = StateAttack
	wounded.TargetID = "raider"
	wounded.Damage = 90
	if updated, decision = engine.Decide(wounded, enemyAt("raider", 10000)); decision.Action != ActionRetreat || updated.State != StateRetreat {
		t.Fatalf("expected droids to keep withdrawals, got %s/%s", updated.State, decision.Action)
	}
}

func TestCoordinateElectsSkilledLeader(t *testing.T) {
	ships := []Ship{
		{ID: "d", Skill: 80, Position: galaxy.Coordinate{X: 15}},
		{ID: "a", Skill: 70},
		{ID: "c", Skill: 99, Position: galaxy.Coordinate{X: 100}},
		{ID: "b", Skill: 90, Position: galaxy.Coordinate{X: 10}},
	}
	groups := GroupByProximity(ships, 0)
	if len(groups) != 2 || groups[0].LeaderID != "b" || len(groups[0].Members) != 3 || groups[1].LeaderID != "c" {
		t.Fatalf("unexpected groups %+v", groups)
	}
	decisions := Coordinate(ships, 0)
	if len(decisions) != 3 {
		t.Fatalf("expected three coordination decisions, got %+v", decisions)
	}
	if decisions[0].ShipID != "a" || decisions[0].Action != ActionSupport || decisions[0].TargetID != "b" {
		t.Fatalf("unexpected follower decision %+v", decisions[0])
	}
	if decisions[1].ShipID != "b" || decisions[1].Action != ActionCoordinate || decisions[1].Parameters.GroupSize != 3 {
		t.Fatalf("unexpected leader decision %+v", decisions[1])
	}
}
