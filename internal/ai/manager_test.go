package ai

import (
	"context"
	"testing"

	"github.com/talktojer/ge-sub000/internal/combat/combattest"
	"github.com/talktojer/ge-sub000/internal/galaxy"
	"github.com/talktojer/ge-sub000/internal/logging"
	"github.com/talktojer/ge-sub000/internal/radar"
)

func newTestManager(opts ...Option) *Manager {
	opts = append([]Option{WithLogger(logging.NewTestLogger())}, opts...)
	return NewManager(combattest.NewRand(), opts...)
}

func TestManagerCreateValidation(t *testing.T) {
	manager := newTestManager()
	if result := manager.Create(CreateRequest{ShipID: "c1", Class: 9, Family: FamilyCybertron, Skill: 80}); !result.Success || result.Ship.Skill != 80 {
		t.Fatalf("expected creation, got %+v", result)
	}
	if result := manager.Create(CreateRequest{ShipID: "c1", Family: FamilyCybertron}); result.Success || result.Message != "AI ship already exists" {
		t.Fatalf("expected duplicate failure, got %+v", result)
	}
	if result := manager.Create(CreateRequest{ShipID: "x", Family: "pirate"}); result.Success {
		t.Fatalf("expected unknown family failure")
	}
	if result := manager.Create(CreateRequest{Family: FamilyDroid}); result.Success {
		t.Fatalf("expected missing id failure")
	}
	if manager.Len() != 1 {
		t.Fatalf("expected a single ship, got %d", manager.Len())
	}
}

func TestManagerTickHonoursCooldown(t *testing.T) {
	manager := newTestManager()
	manager.Create(CreateRequest{ShipID: "c1", Class: 9, Family: FamilyCybertron, Skill: 80})

	var decidedAt []uint64
	for tick := uint64(1); tick <= 9; tick++ {
		if result := manager.Tick(tick, nil); len(result.Decisions) == 1 {
			decidedAt = append(decidedAt, tick)
		}
	}
	if len(decidedAt) != 3 || decidedAt[0] != 1 || decidedAt[1] != 5 || decidedAt[2] != 9 {
		t.Fatalf("unexpected decision ticks %v", decidedAt)
	}
	status, ok := manager.Status("c1")
	if !ok || status.LastDecision == nil || status.LastDecision.Action != ActionPatrol || status.Ship.LastTick != 9 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestManagerDrivesAttackToRetreat(t *testing.T) {
	manager := newTestManager()
	manager.Create(CreateRequest{ShipID: "c1", Class: 9, Family: FamilyCybertron, Skill: 80})
	contacts := []radar.ScanResult{{TargetID: "p1", Kind: radar.KindShip, Class: 3, Hostile: true, Distance: 50000}}

	decide := func(tick uint64, damage float64) Decision {
		result := manager.Tick(tick, map[string]Observation{"c1": {Energy: 5000, Damage: damage, Contacts: contacts}})
		if len(result.Decisions) != 1 {
			t.Fatalf("tick %d: expected a decision, got %+v", tick, result)
		}
		for skip := tick + 1; skip < tick+4; skip++ {
			manager.Tick(skip, nil)
		}
		return result.Decisions[0]
	}
	if decision := decide(1, 0); decision.Action != ActionHunt {
		t.Fatalf("expected hunt, got %s", decision.Action)
	}
	if decision := decide(5, 0); decision.Action != ActionEngage || decision.TargetID != "p1" {
		t.Fatalf("expected engagement, got %+v", decision)
	}
	if decision := decide(9, 50); decision.Action != ActionAttack || decision.Parameters.Pattern != PatternFlanking {
		t.Fatalf("expected attack, got %+v", decision)
	}
	if decision := decide(13, 75); decision.Action != ActionRetreat {
		t.Fatalf("expected retreat above the tactical threshold, got %+v", decision)
	}
	if status, _ := manager.Status("c1"); status.Ship.State != StateRetreat || status.Ship.Damage != 75 {
		t.Fatalf("unexpected ship record %+v", status.Ship)
	}
}

func TestManagerDefersBeyondDecisionBudget(t *testing.T) {
	manager := newTestManager(WithMaxDecisionsPerTick(2))
	for _, id := range []string{"a", "b", "c"} {
		manager.Create(CreateRequest{ShipID: id, Class: 11, Family: FamilyDroid})
	}
	first := manager.Tick(1, nil)
	if len(first.Decisions) != 2 || first.Deferred != 1 {
		t.Fatalf("expected two decisions and one deferral, got %+v", first)
	}
	second := manager.Tick(2, nil)
	if len(second.Decisions) != 1 || second.Decisions[0].ShipID != "c" {
		t.Fatalf("expected the deferred ship to decide next, got %+v", second)
	}
}

func TestManagerRecordsGroupLeaders(t *testing.T) {
	manager := newTestManager()
	manager.Create(CreateRequest{ShipID: "c1", Class: 9, Family: FamilyCybertron, Skill: 70})
	manager.Create(CreateRequest{ShipID: "c2", Class: 9, Family: FamilyCybertron, Skill: 90})
	result := manager.Tick(1, map[string]Observation{
		"c1": {Position: galaxy.Coordinate{X: 1}},
		"c2": {Position: galaxy.Coordinate{X: 2}},
	})
	if len(result.Coordination) != 2 {
		t.Fatalf("expected coordination for both ships, got %+v", result.Coordination)
	}
	if status, _ := manager.Status("c1"); status.Ship.LeaderID != "c2" {
		t.Fatalf("expected c2 to lead, got %q", status.Ship.LeaderID)
	}
	if !manager.Remove("c2") || manager.Remove("c2") {
		t.Fatalf("remove should report presence exactly once")
	}
	manager.Tick(2, nil)
	if status, _ := manager.Status("c1"); status.Ship.LeaderID != "" {
		t.Fatalf("expected the group to dissolve, got leader %q", status.Ship.LeaderID)
	}
}

func TestManagerScalesCybertronFleet(t *testing.T) {
	var spawned, retired []string
	manager := newTestManager(WithHooks(Hooks{
		Spawned: func(ship Ship) { spawned = append(spawned, ship.ID) },
		Retired: func(id string) { retired = append(retired, id) },
	}))
	manager.Create(CreateRequest{ShipID: "droid-1", Class: 11, Family: FamilyDroid})

	confirmed, err := manager.Scale(context.Background(), 2)
	if err != nil || confirmed != 2 {
		t.Fatalf("scale up: confirmed=%d err=%v", confirmed, err)
	}
	if len(spawned) != 2 || spawned[0] != "cyb-0001" || spawned[1] != "cyb-0002" {
		t.Fatalf("unexpected spawns %v", spawned)
	}
	status, _ := manager.Status("cyb-0001")
	if status.Ship.Class != 9 || status.Ship.Skill != 65 || !galaxy.DefaultBoundary().Contains(status.Ship.Position) {
		t.Fatalf("unexpected spawned ship %+v", status.Ship)
	}

	confirmed, err = manager.Scale(context.Background(), 1)
	if err != nil || confirmed != 1 || len(retired) != 1 || retired[0] != "cyb-0002" {
		t.Fatalf("scale down: confirmed=%d retired=%v err=%v", confirmed, retired, err)
	}
	if manager.Len() != 2 {
		t.Fatalf("droids must not be retired, got %d ships", manager.Len())
	}
	if _, err := manager.Scale(context.Background(), -1); err == nil {
		t.Fatalf("expected negative target error")
	}
}

func TestManagerScaleLeavesRequestedCybertrons(t *testing.T) {
	manager := newTestManager()
	if result := manager.Create(CreateRequest{ShipID: "cyb-escort", Class: 9, Family: FamilyCybertron}); !result.Success || result.Ship.Managed {
		t.Fatalf("requested ships are not population managed: %+v", result)
	}

	confirmed, err := manager.Scale(context.Background(), 2)
	if err != nil || confirmed != 2 || manager.Len() != 3 {
		t.Fatalf("scale up: confirmed=%d len=%d err=%v", confirmed, manager.Len(), err)
	}
	confirmed, err = manager.Scale(context.Background(), 0)
	if err != nil || confirmed != 0 {
		t.Fatalf("scale down: confirmed=%d err=%v", confirmed, err)
	}
	ships := manager.Ships()
	if len(ships) != 1 || ships[0].ID != "cyb-escort" {
		t.Fatalf("expected only the requested cybertron to remain, got %+v", ships)
	}
}
