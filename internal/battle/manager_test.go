package battle

import (
	"testing"
	"time"

	"github.com/talktojer/ge-sub000/internal/combat"
	"github.com/talktojer/ge-sub000/internal/combat/combattest"
	"github.com/talktojer/ge-sub000/internal/destruct"
	"github.com/talktojer/ge-sub000/internal/galaxy"
	"github.com/talktojer/ge-sub000/internal/gameplay"
	"github.com/talktojer/ge-sub000/internal/logging"
	"github.com/talktojer/ge-sub000/internal/targeting"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type recordingSink struct{ summaries []Summary }

func (s *recordingSink) RecordBattle(summary Summary) error {
	s.summaries = append(s.summaries, summary)
	return nil
}

func ship(id string, x float64) combat.ShipCombatSnapshot {
	return combat.ShipCombatSnapshot{ID: id, Position: galaxy.Coordinate{X: x}, Energy: 5000, Torpedoes: 2, DamageFactor: 100}
}

func newTestManager(rng combat.Rand, opts ...Option) (*Manager, *fakeClock, *recordingSink) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	sink := &recordingSink{}
	engine := combat.NewEngine(rng)
	opts = append([]Option{WithClock(clock.Now), WithSummarySink(sink), WithLogger(logging.NewTestLogger())}, opts...)
	return NewManager(engine, targeting.NewRegistry(), destruct.NewRegistry(rng), opts...), clock, sink
}

func TestStartBattleRange(t *testing.T) {
	manager, _, _ := newTestManager(combattest.NewRand())
	result := manager.Start(ship("a", 0), ship("d", 5))
	if !result.Success || result.Battle.Range != 50000 {
		t.Fatalf("expected battle at 50000, got %+v", result)
	}
	if result.AttackerPatch.Hostile == nil || !*result.DefenderPatch.Hostile {
		t.Fatalf("both sides should be flagged hostile")
	}
	if res := manager.Start(ship("a", 0), ship("d", 5)); res.Success || res.Message != "Battle already in progress" {
		t.Fatalf("expected duplicate failure, got %+v", res)
	}
	if res := manager.Start(ship("b", 0), ship("far", 25)); res.Success || res.Message != "Target out of combat range" {
		t.Fatalf("expected range failure at 250000, got %+v", res)
	}
	if manager.Len() != 1 {
		t.Fatalf("expected one battle, got %d", manager.Len())
	}
}

// plainHit scripts one shot that hits, misses the critical roll and spares every subsystem.
func plainHit() []float64 {
	return []float64{0.1, 0.5, 0.99, 0.99, 0.99, 0.99, 0.99, 0.99}
}

func TestProcessActionCreditsBothSides(t *testing.T) {
	rolls := append(plainHit(), plainHit()...)
	rng := combattest.NewRand(rolls...)
	manager, _, _ := newTestManager(rng)
	manager.Start(ship("a", 0), ship("d", 5))

	first := manager.ProcessAction(combat.FireRequest{Action: combat.ActionFirePhasers, Attacker: ship("a", 0), Target: ship("d", 5)})
	if !first.Success || !first.Continues || first.Battle.AttackerDamageDealt != 25 {
		t.Fatalf("unexpected attacker action %+v", first)
	}
	second := manager.ProcessAction(combat.FireRequest{Action: combat.ActionFirePhasers, Attacker: ship("d", 5), Target: ship("a", 0)})
	if !second.Success || second.Battle.DefenderDamageDealt != 25 || second.Battle.DurationTicks != 2 {
		t.Fatalf("unexpected defender action %+v", second.Battle)
	}
	status, ok := manager.Status("d")
	if !ok || status.IsAttacker || status.OpponentID != "a" || status.DamageDealt != 25 {
		t.Fatalf("unexpected defender status %+v", status)
	}
	if status, ok := manager.Status("a"); !ok || !status.IsAttacker || status.DamageDealt != 25 {
		t.Fatalf("unexpected attacker status %+v", status)
	}
	if rng.Remaining() != 0 {
		t.Fatalf("expected every scripted roll consumed, %d left", rng.Remaining())
	}
}

func TestDiscardDropsUntouchedBattle(t *testing.T) {
	manager, _, sink := newTestManager(combattest.NewRand(plainHit()...))
	manager.Start(ship("a", 0), ship("d", 5))
	if !manager.Discard("a", "d") || manager.Len() != 0 {
		t.Fatalf("expected the fresh battle to be discarded")
	}
	if len(sink.summaries) != 0 {
		t.Fatalf("discarding must not publish a summary, got %d", len(sink.summaries))
	}

	manager.Start(ship("a", 0), ship("d", 5))
	manager.ProcessAction(combat.FireRequest{Action: combat.ActionFirePhasers, Attacker: ship("a", 0), Target: ship("d", 5)})
	if manager.Discard("a", "d") || manager.Len() != 1 {
		t.Fatalf("a battle with a resolved action must survive Discard")
	}
}

func TestProcessActionRequiresBattleAndValidShot(t *testing.T) {
	manager, _, _ := newTestManager(combattest.NewRand(0.1))
	if res := manager.ProcessAction(combat.FireRequest{Action: combat.ActionFirePhasers, Attacker: ship("a", 0), Target: ship("d", 5)}); res.Success || res.Message != "No active battle found" {
		t.Fatalf("expected missing battle failure, got %+v", res)
	}
	manager.Start(ship("a", 0), ship("d", 12))
	res := manager.ProcessAction(combat.FireRequest{Action: combat.ActionFirePhasers, Attacker: ship("a", 0), Target: ship("d", 12)})
	if res.Success || res.Message != "Target out of phasers range" {
		t.Fatalf("expected validation failure, got %+v", res)
	}
	if state := manager.Active()[0]; state.DurationTicks != 0 {
		t.Fatalf("failed validation must not advance the battle")
	}
}

func TestDestroyedDefenderEndsBattle(t *testing.T) {
	manager, _, sink := newTestManager(combattest.NewRand(0.1))
	defender := ship("d", 1)
	defender.HullDamage = 90
	manager.Start(ship("a", 0), defender)
	res := manager.ProcessAction(combat.FireRequest{Action: combat.ActionFireTorpedo, Attacker: ship("a", 0), Target: defender})
	if !res.Success || res.Continues || res.Summary == nil || res.Summary.EndReason != ReasonDestroyed {
		t.Fatalf("expected destruction to end the battle, got %+v", res)
	}
	if manager.Len() != 0 || len(sink.summaries) != 1 {
		t.Fatalf("expected summary published and battle removed")
	}
}

func TestSweepEndsIdleBattles(t *testing.T) {
	manager, clock, sink := newTestManager(combattest.NewRand())
	manager.Start(ship("a", 0), ship("d", 5))
	clock.Advance(99 * time.Second)
	if summaries := manager.Sweep(); len(summaries) != 0 {
		t.Fatalf("battle timed out early")
	}
	clock.Advance(2 * time.Second)
	summaries := manager.Sweep()
	if len(summaries) != 1 || summaries[0].EndReason != ReasonTimeout || summaries[0].DurationSeconds != 101 {
		t.Fatalf("unexpected timeout summaries %+v", summaries)
	}
	if len(sink.summaries) != 1 {
		t.Fatalf("expected sink to receive the summary")
	}
}

func TestTickAdvancesBattlesAndDetonations(t *testing.T) {
	rng := combattest.NewRand()
	manager, _, _ := newTestManager(rng, WithTimeout(time.Hour))
	manager.Start(ship("a", 0), ship("d", 5))
	class, _ := gameplay.Lookup(1)
	manager.Destructs().Initiate("d", "d", class, galaxy.Coordinate{X: 5})

	var detonations []destruct.Detonation
	var last TickResult
	for i := 0; i < destruct.DefaultCountdown; i++ {
		last = manager.Tick(nil)
		detonations = append(detonations, last.Detonations...)
	}
	if len(last.Battles) != 1 || last.Battles[0].DurationTicks != destruct.DefaultCountdown {
		t.Fatalf("unexpected battles %+v", last.Battles)
	}
	if len(detonations) != 1 || detonations[0].ShipID != "d" {
		t.Fatalf("expected one detonation, got %+v", detonations)
	}
}

func TestEndAndCleanupShip(t *testing.T) {
	manager, _, _ := newTestManager(combattest.NewRand())
	manager.Start(ship("a", 0), ship("d", 5))
	manager.Start(ship("d", 5), ship("c", 6))
	manager.Start(ship("x", 0), ship("y", 1))
	manager.Locks().Acquire("a", "d", 1000, 0, false)

	if _, ok := manager.End("x", "nope", ""); ok {
		t.Fatalf("ending a missing battle must fail")
	}
	summary, ok := manager.End("x", "y", "")
	if !ok || summary.EndReason != ReasonManual {
		t.Fatalf("unexpected manual end %+v", summary)
	}

	report := manager.CleanupShip("d")
	if len(report.Summaries) != 2 || report.LocksRemoved != 1 || report.SelfDestruct {
		t.Fatalf("unexpected cleanup %+v", report)
	}
	if manager.Len() != 0 || manager.InBattle("a") {
		t.Fatalf("cleanup left battles behind")
	}
}
